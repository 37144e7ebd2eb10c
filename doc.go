// Package wavescope provides the GPU resource layer for a waveform-processing
// application built on the GoGPU ecosystem.
//
// # Overview
//
// GPU compute artifacts are expensive to recreate: compiling a shader,
// warming a driver pipeline cache, or building an FFT execution plan can
// each cost tens of milliseconds of driver time. wavescope caches these
// artifacts across calls and, best-effort, across process runs, and manages
// the lifetime of per-size transform plans.
//
// The library is organized into:
//   - gpuctx: the GPU execution context surface (device, queue, command
//     pool, capabilities), consumed by every other package and constructed
//     by backend/wgpu or by the host application.
//   - rescache: keyed store for raw precomputed blobs and driver
//     pipeline-cache objects, with optional disk persistence.
//   - shader: WGSL compilation memoized through rescache.
//   - fftplan: per-size FFT execution plans sharing one queue and command
//     pool, with optional by-size reuse.
//
// # Quick Start
//
//	ctx, cleanup, err := wgpu.NewContext()
//	if err != nil {
//		// no GPU available
//	}
//	defer cleanup()
//
//	cache, err := rescache.New(rescache.Config{
//		Device: ctx.Device,
//		Tag:    ctx.Capabilities.CacheTag(),
//	})
//	if err != nil {
//		// cache still works, in-memory only
//	}
//	defer cache.Close()
//
//	pool, err := fftplan.NewPool(ctx, builder)
//	if err != nil {
//		// invalid context or builder
//	}
//	plan, err := fftplan.New(pool, 1024)
//
// # Logging
//
// wavescope produces no log output by default. Call SetLogger to enable it;
// all sub-packages share the logger configured here.
package wavescope
