package rescache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wavescope"
	"github.com/gogpu/wavescope/gpuctx"
)

// Cache errors.
var (
	// ErrInit is returned by New when the cache root directory cannot be
	// resolved or created. The returned cache is still fully usable in
	// memory; only persistence is disabled.
	ErrInit = errors.New("rescache: cache root unavailable")

	// ErrNoDevice is returned by LookupOrCreatePipeline when the cache was
	// created without a device and must allocate a driver object.
	ErrNoDevice = errors.New("rescache: no device configured")
)

// Config configures a Cache.
type Config struct {
	// Device allocates driver pipeline-cache objects and rehydrates
	// persisted ones. Optional: a cache without a device still stores
	// blobs, but LookupOrCreatePipeline fails with ErrNoDevice.
	Device gpuctx.Device

	// Tag is the driver/build identity embedded in persisted files,
	// typically gpuctx.Capabilities.CacheTag(). Files written under a
	// different tag are ignored on load. Optional; an empty tag still
	// invalidates against any non-empty one.
	Tag string

	// Dir overrides the platform cache root. Used by tests and by hosts
	// that manage their own directories. If empty, a per-user cache
	// directory is resolved for the application name.
	Dir string

	// AppName names the per-user cache directory. Defaults to "wavescope".
	AppName string
}

// PipelineEntry is a shared handle to a driver pipeline-cache object.
//
// The cache holds one reference; every LookupOrCreatePipeline call hands out
// another. The driver object is destroyed when the last reference is
// released, so entries obtained before a Clear remain valid until their
// holders call Release.
type PipelineEntry struct {
	key  string
	obj  gpuctx.PipelineCache
	refs atomic.Int32
}

// Key returns the cache key the entry is registered under.
func (e *PipelineEntry) Key() string { return e.key }

// Object returns the driver pipeline-cache object. Valid until the holder's
// reference is released.
func (e *PipelineEntry) Object() gpuctx.PipelineCache { return e.obj }

// Release drops the holder's reference. The driver object is destroyed when
// the last reference is released. Release must be called exactly once per
// handle obtained from LookupOrCreatePipeline.
func (e *PipelineEntry) Release() {
	if e.refs.Add(-1) == 0 {
		e.obj.Destroy()
	}
}

func (e *PipelineEntry) retain() { e.refs.Add(1) }

// Stats reports cache contents and traffic.
type Stats struct {
	// Blobs is the number of blob entries currently stored.
	Blobs int
	// Pipelines is the number of pipeline entries currently stored.
	Pipelines int
	// Hits and Misses count lookups across both mappings.
	Hits   uint64
	Misses uint64
	// PipelinesCreated counts driver pipeline-cache objects allocated over
	// the cache's lifetime, including rehydrated ones.
	PipelinesCreated uint64
}

// Cache is the process-wide store for costly GPU artifacts. Create one at
// startup with New and pass it to every consumer.
//
// Cache is safe for concurrent use. One mutex guards both mappings; no disk
// or driver-destroy work happens while it is held.
type Cache struct {
	mu        sync.Mutex
	blobs     map[string][]uint32
	pipelines map[string]*PipelineEntry

	// root is the resolved cache directory, or "" when persistence is
	// disabled.
	root   string
	device gpuctx.Device
	tag    string

	hits     atomic.Uint64
	misses   atomic.Uint64
	pcreated atomic.Uint64
}

// New creates a Cache, resolves its root directory and loads persisted
// entries.
//
// The returned cache is never nil. If the root directory cannot be resolved
// or created, New returns the cache together with an error wrapping ErrInit;
// the cache then runs in-memory only. Load failures never surface here:
// unreadable or stale files are ordinary misses.
func New(cfg Config) (*Cache, error) {
	c := &Cache{
		blobs:     make(map[string][]uint32),
		pipelines: make(map[string]*PipelineEntry),
		device:    cfg.Device,
		tag:       cfg.Tag,
	}

	root, err := resolveRoot(cfg)
	if err != nil {
		return c, fmt.Errorf("%w: %w", ErrInit, err)
	}
	c.root = root
	wavescope.Logger().Info("rescache: cache root resolved", "dir", root)

	if err := c.LoadFromDisk(); err != nil {
		wavescope.Logger().Warn("rescache: load from disk failed", "error", err)
	}
	return c, nil
}

// LookupBlob returns the blob stored under key, or ok=false on a miss.
// The returned words are shared; callers must not modify them.
func (c *Cache) LookupBlob(key string) ([]uint32, bool) {
	c.mu.Lock()
	words, ok := c.blobs[key]
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		wavescope.Logger().Debug("rescache: miss for blob", "key", key)
		return nil, false
	}
	c.hits.Add(1)
	wavescope.Logger().Debug("rescache: hit for blob", "key", key)
	return words, true
}

// StoreBlob inserts or overwrites the blob under key. Last writer wins.
// The words are stored as-is (not copied); callers must not modify them
// after storing.
func (c *Cache) StoreBlob(key string, words []uint32) {
	c.mu.Lock()
	c.blobs[key] = words
	c.mu.Unlock()

	wavescope.Logger().Debug("rescache: store blob", "key", key, "words", len(words))
}

// LookupOrCreatePipeline returns the pipeline entry for key, creating an
// empty driver pipeline-cache object and registering it on first access.
// Lookup and creation happen under one critical section, so at most one
// driver object is ever created per key, even under concurrent first access.
//
// This deliberately differs from LookupBlob's plain-miss semantics: pipeline
// callers always need a live object to attach subsequent build calls to,
// while blob callers construct the value themselves.
//
// The caller owns one reference on the returned entry and must Release it.
func (c *Cache) LookupOrCreatePipeline(key string) (*PipelineEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.pipelines[key]; ok {
		c.hits.Add(1)
		wavescope.Logger().Debug("rescache: hit for pipeline", "key", key)
		e.retain()
		return e, nil
	}

	c.misses.Add(1)
	wavescope.Logger().Debug("rescache: miss for pipeline", "key", key)

	if c.device == nil {
		return nil, ErrNoDevice
	}
	obj, err := c.device.CreatePipelineCache(nil)
	if err != nil {
		return nil, fmt.Errorf("rescache: create pipeline cache for %q: %w", key, err)
	}
	c.pcreated.Add(1)

	e := &PipelineEntry{key: key, obj: obj}
	e.refs.Store(1) // the cache's own reference
	e.retain()      // the caller's
	c.pipelines[key] = e
	return e, nil
}

// Clear drops every entry from both mappings. Driver objects behind pipeline
// entries are destroyed once their last outstanding handle is released.
// Safe to call at any time, including concurrently with lookups.
func (c *Cache) Clear() {
	c.mu.Lock()
	pipelines := c.pipelines
	c.blobs = make(map[string][]uint32)
	c.pipelines = make(map[string]*PipelineEntry)
	c.mu.Unlock()

	// Release the cache's references outside the lock: dropping the last
	// one calls into the driver.
	for _, e := range pipelines {
		e.Release()
	}
}

// Close saves the cache to disk and clears it. Save failures are logged and
// otherwise ignored; shutdown never fails because a file could not be
// written.
func (c *Cache) Close() {
	if err := c.SaveToDisk(); err != nil {
		wavescope.Logger().Warn("rescache: save to disk failed", "error", err)
	}
	c.Clear()
}

// Stats returns current contents and traffic counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	blobs := len(c.blobs)
	pipelines := len(c.pipelines)
	c.mu.Unlock()

	return Stats{
		Blobs:            blobs,
		Pipelines:        pipelines,
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		PipelinesCreated: c.pcreated.Load(),
	}
}

// Root returns the resolved cache directory, or "" when the cache runs
// in-memory only.
func (c *Cache) Root() string { return c.root }
