// Package shader compiles WGSL compute shaders to SPIR-V, memoizing results
// through the resource cache. Compilation is the canonical producer of blob
// entries: a hit skips the compiler entirely.
package shader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/wavescope"
	"github.com/gogpu/wavescope/rescache"
)

// Key derives the cache key for a shader from its label and full source.
// The source participates so an edited shader never hits a stale artifact.
func Key(label, wgslSource string) string {
	sum := sha256.Sum256([]byte(wgslSource))
	return label + "." + hex.EncodeToString(sum[:8])
}

// Compile returns the SPIR-V words for a WGSL source, consulting the cache
// under key first and storing the result on a miss.
//
// The returned words are shared with the cache; callers must not modify
// them.
func Compile(cache *rescache.Cache, key, wgslSource string) ([]uint32, error) {
	if words, ok := cache.LookupBlob(key); ok {
		return words, nil
	}

	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("shader: compile %q: %w", key, err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	cache.StoreBlob(key, words)
	wavescope.Logger().Debug("shader: compiled", "key", key, "words", len(words))
	return words, nil
}
