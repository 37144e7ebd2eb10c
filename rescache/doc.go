// Package rescache caches expensive-to-recreate GPU compute artifacts.
//
// Two kinds of artifacts are stored under opaque string keys:
//   - blobs: immutable sequences of 32-bit words (compiled SPIR-V,
//     precomputed tables), with plain lookup-miss semantics;
//   - pipeline entries: shared handles to driver pipeline-cache objects,
//     with get-or-create semantics, because callers always need a live
//     object to attach subsequent pipeline builds to.
//
// A Cache is created once at startup and passed to every consumer; there is
// no package-level instance. The cache persists its content to a per-user
// cache directory between runs, best-effort: a cache that cannot reach disk
// still works, purely in memory, and files written by a different GPU driver
// or build are never reused as hits.
//
// All map operations are guarded by one mutex and never perform I/O while
// holding it. SaveToDisk and LoadFromDisk snapshot or merge under the lock
// and do file I/O outside it.
package rescache
