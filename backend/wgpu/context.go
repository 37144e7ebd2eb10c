package wgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/wavescope"
	"github.com/gogpu/wavescope/gpuctx"
)

// Context construction errors.
var (
	// ErrNoBackend is returned when no supported GPU backend is available.
	ErrNoBackend = errors.New("wgpu: no GPU backend available")

	// ErrNoAdapter is returned when the backend exposes no adapters.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")
)

// NewContext opens the best available GPU adapter and assembles a
// gpuctx.Context around its device and queue. Discrete and integrated GPUs
// are preferred over software adapters.
//
// The returned cleanup function releases the device and instance; call it
// after every consumer of the context has shut down.
func NewContext() (*gpuctx.Context, func(), error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, nil, ErrNoBackend
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, ErrNoAdapter
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	caps := capabilitiesFor(selected.Info)

	dev := &device{hal: openDev.Device}
	ctx := &gpuctx.Context{
		Device:       dev,
		Queue:        &queue{hal: openDev.Queue},
		Pool:         &commandPool{},
		Capabilities: caps,
	}

	wavescope.Logger().Info("wgpu: GPU context ready", "adapter", caps.String())

	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return ctx, cleanup, nil
}

// capabilitiesFor builds the capability descriptor for an adapter. Vendor
// and driver feed CacheTag, so dropping either would let artifacts persisted
// under an older driver load as hits after an upgrade.
func capabilitiesFor(info gputypes.AdapterInfo) gpuctx.Capabilities {
	return gpuctx.Capabilities{
		Name:       info.Name,
		Vendor:     info.Vendor,
		Driver:     info.Driver,
		DeviceType: info.DeviceType,
		Backend:    gputypes.BackendVulkan,
	}
}

// device adapts hal.Device to gpuctx.Device.
type device struct {
	hal hal.Device
}

// Poll is a no-op for this backend: HAL submissions complete at fence waits.
func (d *device) Poll(wait bool) {}

func (d *device) Destroy() {
	d.hal.Destroy()
}

// CreatePipelineCache returns an in-memory pipeline cache. The initial
// bytes are carried through Data so persisted entries round-trip.
func (d *device) CreatePipelineCache(initialData []byte) (gpuctx.PipelineCache, error) {
	pc := &pipelineCache{}
	if len(initialData) > 0 {
		pc.data = append([]byte(nil), initialData...)
	}
	return pc, nil
}

func (d *device) CreateFence() (gpuctx.Fence, error) {
	f, err := d.hal.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("wgpu: create fence: %w", err)
	}
	return &fence{device: d.hal, hal: f}, nil
}

// HAL returns the underlying hal.Device for plan builders that record
// backend-specific command buffers.
func (d *device) HAL() hal.Device { return d.hal }

// queue adapts hal.Queue to gpuctx.Queue.
type queue struct {
	hal hal.Queue
}

// HAL returns the underlying hal.Queue.
func (q *queue) HAL() hal.Queue { return q.hal }

// commandPool satisfies gpuctx.CommandPool. HAL allocates transient command
// encoders from the device rather than from an explicit pool, so there is
// nothing to recycle here.
type commandPool struct{}

func (commandPool) Reset() error { return nil }
func (commandPool) Destroy()     {}

// pipelineCache holds serialized driver bytes in memory.
type pipelineCache struct {
	mu        sync.Mutex
	data      []byte
	destroyed bool
}

func (p *pipelineCache) Data() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, errors.New("wgpu: pipeline cache destroyed")
	}
	return append([]byte(nil), p.data...), nil
}

func (p *pipelineCache) Destroy() {
	p.mu.Lock()
	p.destroyed = true
	p.data = nil
	p.mu.Unlock()
}

// fenceDevice is the part of hal.Device a fence needs.
type fenceDevice interface {
	CreateFence() (hal.Fence, error)
	DestroyFence(hal.Fence)
	Wait(fence hal.Fence, value uint64, timeout time.Duration) (bool, error)
}

// fence adapts a hal.Fence to gpuctx.Fence. HAL fences are waited through
// the device; a reset recreates the fence since HAL fences are single-shot.
//
// The mutex is held across the driver wait, so Reset and Destroy cannot
// release the handle while a Wait is in flight; they block until it returns.
type fence struct {
	device fenceDevice

	mu        sync.Mutex
	hal       hal.Fence
	destroyed bool
}

// fenceSignalValue is the value submissions signal fences with.
const fenceSignalValue = 1

func (f *fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed {
		return errors.New("wgpu: fence destroyed")
	}
	ok, err := f.device.Wait(f.hal, fenceSignalValue, timeout)
	if err != nil {
		return fmt.Errorf("wgpu: wait for fence: %w", err)
	}
	if !ok {
		return fmt.Errorf("wgpu: fence timeout after %v", timeout)
	}
	return nil
}

func (f *fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed {
		return false
	}
	ok, err := f.device.Wait(f.hal, fenceSignalValue, 0)
	return err == nil && ok
}

func (f *fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed {
		return errors.New("wgpu: fence destroyed")
	}
	nf, err := f.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: reset fence: %w", err)
	}
	f.device.DestroyFence(f.hal)
	f.hal = nf
	return nil
}

func (f *fence) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed {
		return
	}
	f.device.DestroyFence(f.hal)
	f.destroyed = true
}
