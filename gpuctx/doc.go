// Package gpuctx defines the GPU execution context surface consumed by the
// wavescope resource layer.
//
// The context (device, submission queue, command pool, and a physical-device
// capability descriptor) is owned and created elsewhere: by backend/wgpu for
// real hardware, or by the host application. Packages in this module only
// consume it; none of them create or destroy the underlying driver objects
// the context hands out, except for objects they explicitly allocate through
// it (pipeline caches, fences).
//
// The interfaces here extend the gogpu/gpucontext device contract with the
// two driver objects this layer allocates: pipeline-cache objects
// (driver-opaque compilation containers) and fences (completion signals).
package gpuctx
