package gpuctx

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// stubDevice implements Device for validation tests.
type stubDevice struct{}

func (stubDevice) Poll(wait bool) {}
func (stubDevice) Destroy()       {}
func (stubDevice) CreatePipelineCache(initialData []byte) (PipelineCache, error) {
	return nil, errors.New("not implemented")
}
func (stubDevice) CreateFence() (Fence, error) {
	return nil, errors.New("not implemented")
}

// stubQueue implements Queue.
type stubQueue struct{}

// stubPool implements CommandPool.
type stubPool struct{}

func (stubPool) Reset() error { return nil }
func (stubPool) Destroy()     {}

// stubFence implements Fence.
type stubFence struct{}

func (stubFence) Wait(time.Duration) error { return nil }
func (stubFence) Signaled() bool           { return false }
func (stubFence) Reset() error             { return nil }
func (stubFence) Destroy()                 {}

var _ Fence = stubFence{}

func TestContextValidate(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want error
	}{
		{"missing device", Context{Queue: stubQueue{}, Pool: stubPool{}}, ErrNilDevice},
		{"missing queue", Context{Device: stubDevice{}, Pool: stubPool{}}, ErrNilQueue},
		{"missing pool", Context{Device: stubDevice{}, Queue: stubQueue{}}, ErrNilPool},
		{"complete", Context{Device: stubDevice{}, Queue: stubQueue{}, Pool: stubPool{}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.ctx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCapabilitiesCacheTag(t *testing.T) {
	a := Capabilities{
		Name:   "Device A",
		Vendor: "Vendor",
		Driver: "535.43",
	}
	b := a
	b.Driver = "540.01"

	if a.CacheTag() == b.CacheTag() {
		t.Error("different driver versions must produce different cache tags")
	}
	if a.CacheTag() != a.CacheTag() {
		t.Error("CacheTag must be deterministic")
	}
	for _, part := range []string{"Device A", "Vendor", "535.43"} {
		if !strings.Contains(a.CacheTag(), part) {
			t.Errorf("CacheTag missing %q: %s", part, a.CacheTag())
		}
	}
}

func TestCapabilitiesString(t *testing.T) {
	c := Capabilities{Name: "Device A"}
	if !strings.Contains(c.String(), "Device A") {
		t.Errorf("String() missing device name: %s", c.String())
	}
}
