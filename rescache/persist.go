package rescache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/gogpu/wavescope"
)

// On-disk entry layout, little-endian:
//
//	magic   [8]byte "WSCACHE1"
//	version uint32
//	tagLen  uint32 | tag   driver/build identity
//	keyLen  uint32 | key   original cache key
//	dataLen uint32 | data  payload bytes
//
// Filenames are sha256(key) hex; the key inside the file recovers the
// mapping on load. Anything unreadable, short, or written under another
// tag or version is an ordinary miss.
const (
	fileMagic   = "WSCACHE1"
	fileVersion = uint32(1)

	blobSubdir     = "blob"
	pipelineSubdir = "pipeline"
	fileExt        = ".bin"

	// maxEntrySize bounds a single decoded block so a corrupt length field
	// cannot trigger a huge allocation.
	maxEntrySize = 256 << 20
)

// Decode errors. All of them degrade to misses; they are never surfaced
// past LoadFromDisk.
var (
	errBadMagic    = errors.New("rescache: bad magic")
	errBadVersion  = errors.New("rescache: unsupported format version")
	errTagMismatch = errors.New("rescache: driver tag mismatch")
	errTruncated   = errors.New("rescache: truncated entry")
)

// entryFilename returns the deterministic file name for a cache key.
func entryFilename(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + fileExt
}

func appendBlock(buf, block []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(block)))
	return append(buf, block...)
}

func readBlock(b []byte) (block, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, errTruncated
	}
	n := binary.LittleEndian.Uint32(b)
	b = b[4:]
	if n > maxEntrySize || uint32(len(b)) < n {
		return nil, nil, errTruncated
	}
	return b[:n], b[n:], nil
}

func encodeEntry(tag, key string, payload []byte) []byte {
	buf := make([]byte, 0, len(fileMagic)+4+12+len(tag)+len(key)+len(payload))
	buf = append(buf, fileMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, fileVersion)
	buf = appendBlock(buf, []byte(tag))
	buf = appendBlock(buf, []byte(key))
	buf = appendBlock(buf, payload)
	return buf
}

func decodeEntry(b []byte, wantTag string) (key string, payload []byte, err error) {
	if len(b) < len(fileMagic)+4 {
		return "", nil, errTruncated
	}
	if string(b[:len(fileMagic)]) != fileMagic {
		return "", nil, errBadMagic
	}
	b = b[len(fileMagic):]
	if binary.LittleEndian.Uint32(b) != fileVersion {
		return "", nil, errBadVersion
	}
	b = b[4:]

	tag, b, err := readBlock(b)
	if err != nil {
		return "", nil, err
	}
	if string(tag) != wantTag {
		return "", nil, errTagMismatch
	}
	keyBytes, b, err := readBlock(b)
	if err != nil {
		return "", nil, err
	}
	payload, _, err = readBlock(b)
	if err != nil {
		return "", nil, err
	}
	return string(keyBytes), payload, nil
}

// wordsToBytes serializes blob words little-endian.
func wordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// bytesToWords is the inverse of wordsToBytes.
func bytesToWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, errTruncated
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}

// writeEntryFile writes an entry atomically: temp file, then rename.
func writeEntryFile(path, tag, key string, payload []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encodeEntry(tag, key, payload), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SaveToDisk writes every entry to the cache root, one file per entry.
// A no-op when persistence is disabled. Individual write failures are
// logged and skipped; the first one is returned so callers that care can
// see it, but Close ignores it.
//
// Entries are snapshotted under the mutex; all file and driver I/O happens
// outside it.
func (c *Cache) SaveToDisk() error {
	if c.root == "" {
		return nil
	}

	c.mu.Lock()
	blobs := make(map[string][]uint32, len(c.blobs))
	for key, words := range c.blobs {
		blobs[key] = words
	}
	entries := make([]*PipelineEntry, 0, len(c.pipelines))
	for _, e := range c.pipelines {
		e.retain() // keep the driver object alive across the write
		entries = append(entries, e)
	}
	c.mu.Unlock()

	defer func() {
		for _, e := range entries {
			e.Release()
		}
	}()

	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	blobRoot := filepath.Join(c.root, blobSubdir)
	if err := os.MkdirAll(blobRoot, 0o755); err != nil {
		fail(err)
	} else {
		for key, words := range blobs {
			path := filepath.Join(blobRoot, entryFilename(key))
			if err := writeEntryFile(path, c.tag, key, wordsToBytes(words)); err != nil {
				wavescope.Logger().Warn("rescache: write blob entry failed", "key", key, "error", err)
				fail(err)
			}
		}
	}

	pipeRoot := filepath.Join(c.root, pipelineSubdir)
	if err := os.MkdirAll(pipeRoot, 0o755); err != nil {
		fail(err)
	} else {
		for _, e := range entries {
			data, err := e.Object().Data()
			if err != nil {
				wavescope.Logger().Warn("rescache: pipeline cache data unavailable", "key", e.Key(), "error", err)
				fail(err)
				continue
			}
			path := filepath.Join(pipeRoot, entryFilename(e.Key()))
			if err := writeEntryFile(path, c.tag, e.Key(), data); err != nil {
				wavescope.Logger().Warn("rescache: write pipeline entry failed", "key", e.Key(), "error", err)
				fail(err)
			}
		}
	}

	wavescope.Logger().Info("rescache: saved to disk",
		"blobs", len(blobs), "pipelines", len(entries), "dir", c.root)
	return firstErr
}

// LoadFromDisk rehydrates both mappings from the cache root. A no-op when
// persistence is disabled. Unreadable, corrupt, stale-tagged or
// driver-rejected files are ordinary misses: they are skipped (and removed,
// best-effort, when stale) and never fail the call. Entries already present
// in memory win over disk.
func (c *Cache) LoadFromDisk() error {
	if c.root == "" {
		return nil
	}

	blobs := make(map[string][]uint32)
	c.loadDir(filepath.Join(c.root, blobSubdir), func(key string, payload []byte) {
		words, err := bytesToWords(payload)
		if err != nil {
			wavescope.Logger().Debug("rescache: skipping misaligned blob entry", "key", key)
			return
		}
		blobs[key] = words
	})

	pipelines := make(map[string]*PipelineEntry)
	if c.device != nil {
		c.loadDir(filepath.Join(c.root, pipelineSubdir), func(key string, payload []byte) {
			obj, err := c.device.CreatePipelineCache(payload)
			if err != nil {
				// The driver rejected the persisted bytes: a miss.
				wavescope.Logger().Debug("rescache: driver rejected pipeline entry", "key", key, "error", err)
				return
			}
			c.pcreated.Add(1)
			e := &PipelineEntry{key: key, obj: obj}
			e.refs.Store(1)
			pipelines[key] = e
		})
	}

	// Merge under the lock; memory is fresher than disk.
	var lost []*PipelineEntry
	c.mu.Lock()
	for key, words := range blobs {
		if _, ok := c.blobs[key]; !ok {
			c.blobs[key] = words
		}
	}
	for key, e := range pipelines {
		if _, ok := c.pipelines[key]; ok {
			lost = append(lost, e)
			continue
		}
		c.pipelines[key] = e
	}
	c.mu.Unlock()

	for _, e := range lost {
		e.Release()
	}

	wavescope.Logger().Info("rescache: loaded from disk",
		"blobs", len(blobs), "pipelines", len(pipelines), "dir", c.root)
	return nil
}

// loadDir decodes every entry file in dir, passing valid ones to accept.
// Stale or corrupt files are removed best-effort.
func (c *Cache) loadDir(dir string, accept func(key string, payload []byte)) {
	names, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			wavescope.Logger().Debug("rescache: cache dir unreadable", "dir", dir, "error", err)
		}
		return
	}

	for _, de := range names {
		if de.IsDir() || filepath.Ext(de.Name()) != fileExt {
			continue
		}
		path := filepath.Join(dir, de.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			wavescope.Logger().Debug("rescache: cache file unreadable", "file", path, "error", err)
			continue
		}
		key, payload, err := decodeEntry(raw, c.tag)
		if err != nil {
			wavescope.Logger().Debug("rescache: skipping cache file", "file", path, "reason", err)
			// Stale and corrupt files will never load; reclaim the space.
			_ = os.Remove(path)
			continue
		}
		accept(key, payload)
	}
}
