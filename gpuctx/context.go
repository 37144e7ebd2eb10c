package gpuctx

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Context validation errors.
var (
	// ErrNilDevice is returned when a Context is missing its device.
	ErrNilDevice = errors.New("gpuctx: nil device")

	// ErrNilQueue is returned when a Context is missing its submission queue.
	ErrNilQueue = errors.New("gpuctx: nil queue")

	// ErrNilPool is returned when a Context is missing its command pool.
	ErrNilPool = errors.New("gpuctx: nil command pool")
)

// Capabilities describes the physical device behind a Context.
// It is informational except for CacheTag, which feeds cache invalidation.
type Capabilities struct {
	// Name is the device name (e.g., "NVIDIA GeForce RTX 3080").
	Name string
	// Vendor is the device vendor.
	Vendor string
	// Driver is the driver version string.
	Driver string
	// DeviceType is the kind of device (discrete, integrated, etc.).
	DeviceType gputypes.DeviceType
	// Backend is the graphics API in use (Vulkan, Metal, DX12).
	Backend gputypes.Backend
}

// String returns a human-readable description of the device.
func (c *Capabilities) String() string {
	return fmt.Sprintf("%s (%v, %v)", c.Name, c.DeviceType, c.Backend)
}

// CacheTag returns the identity string embedded in persisted cache files.
// Artifacts written under one tag are never reused under another, so a
// driver update or a backend switch invalidates every on-disk entry.
func (c *Capabilities) CacheTag() string {
	return fmt.Sprintf("%v|%s|%s|%s", c.Backend, c.Vendor, c.Name, c.Driver)
}

// Device is the device handle the resource layer consumes. It extends the
// gogpu device contract with the two driver objects this layer allocates.
//
// Implementations must be safe for concurrent use: the resource cache and
// the plan pool call into the device from multiple goroutines.
type Device interface {
	gpucontext.Device

	// CreatePipelineCache creates a driver pipeline-cache object, optionally
	// seeded with previously serialized driver bytes. A driver that rejects
	// the bytes must create an empty cache object rather than fail, where it
	// can; otherwise it returns an error.
	CreatePipelineCache(initialData []byte) (PipelineCache, error)

	// CreateFence creates an unsignaled completion fence.
	CreateFence() (Fence, error)
}

// PipelineCache is a driver-opaque container that lets the driver reuse
// prior pipeline compilation results. The driver mutates it as compiled
// data accumulates; this layer never replaces one in place.
type PipelineCache interface {
	// Data returns the serialized driver bytes for persistence.
	// The layout is vendor-opaque.
	Data() ([]byte, error)

	// Destroy releases the driver object. No calls are valid afterward.
	Destroy()
}

// Fence is a synchronization primitive signaled when device-side work
// completes. Execution completion is observed through it by callers outside
// this layer.
type Fence interface {
	// Wait blocks until the fence signals or the timeout elapses.
	Wait(timeout time.Duration) error

	// Signaled reports whether the fence has signaled without blocking.
	Signaled() bool

	// Reset returns the fence to the unsignaled state.
	Reset() error

	// Destroy releases the driver object. No calls are valid afterward.
	Destroy()
}

// Queue is the single logical submission queue all plans execute against.
type Queue interface {
	gpucontext.Queue
}

// CommandPool allocates the command buffers plan builders record into.
// It is not safe for concurrent use; the plan construction mutex covers it.
type CommandPool interface {
	// Reset recycles all command buffers allocated from the pool.
	Reset() error

	// Destroy releases the driver object. No calls are valid afterward.
	Destroy()
}

// Context bundles the externally owned GPU execution state supplied to the
// resource cache and the plan pool. Wavescope consumes a Context; it never
// constructs one outside backend adapters and tests.
type Context struct {
	Device       Device
	Queue        Queue
	Pool         CommandPool
	Capabilities Capabilities
}

// Validate reports the first missing collaborator, or nil if the context is
// complete enough to hand to the resource layer.
func (c *Context) Validate() error {
	if c.Device == nil {
		return ErrNilDevice
	}
	if c.Queue == nil {
		return ErrNilQueue
	}
	if c.Pool == nil {
		return ErrNilPool
	}
	return nil
}
