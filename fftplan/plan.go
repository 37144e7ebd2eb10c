package fftplan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wavescope"
	"github.com/gogpu/wavescope/gpuctx"
)

// Plan errors.
var (
	// ErrPlanInit is returned when the underlying plan builder fails.
	// The plan is unusable and must be discarded, not retried with the
	// same inputs expecting a different outcome.
	ErrPlanInit = errors.New("fftplan: plan initialization failed")

	// ErrInvalidSize is returned for non-positive transform sizes.
	ErrInvalidSize = errors.New("fftplan: size must be positive")

	// ErrNilContext is returned when a Pool is created without a GPU context.
	ErrNilContext = errors.New("fftplan: nil GPU context")

	// ErrNilBuilder is returned when a Pool is created without a builder.
	ErrNilBuilder = errors.New("fftplan: nil builder")

	// ErrNilPool is returned when a plan is requested from a nil pool.
	ErrNilPool = errors.New("fftplan: nil pool")
)

// Config describes one transform. Only one-dimensional transforms over a
// single buffer are supported for now.
type Config struct {
	// Dim is the transform dimensionality.
	Dim int

	// Size holds the element count per dimension. Unused dimensions are 1.
	Size [3]int

	// BufferSize is the single data buffer's size in elements.
	BufferSize uint64
}

// configFor builds the one-dimensional configuration for a transform of
// size elements.
func configFor(size int) Config {
	return Config{
		Dim:        1,
		Size:       [3]int{size, 1, 1},
		BufferSize: uint64(size),
	}
}

// Graph is a built, dispatch-ready execution graph for one transform size.
// Implementations wrap whatever the builder records (pipelines, command
// buffers, bindings).
type Graph interface {
	// Destroy releases the graph's GPU resources. No calls are valid
	// afterward.
	Destroy()
}

// Builder turns a configuration into an execution graph using the shared
// GPU context.
//
// Build is NOT safe for concurrent invocation; the Pool serializes every
// call behind its construction mutex.
type Builder interface {
	Build(ctx *gpuctx.Context, cfg *Config) (Graph, error)
}

// Pool owns the state shared by all plan constructions: the GPU execution
// context, the plan builder, and the single construction mutex. Create one
// at startup and pass it to every consumer.
//
// The construction mutex is intentionally separate from any cache lock:
// it is held for the duration of slow driver calls, and serializing fast
// map lookups behind it would be a throughput regression.
type Pool struct {
	ctx     *gpuctx.Context
	builder Builder

	// mu serializes all Build calls across all sizes and callers.
	mu sync.Mutex
}

// NewPool creates a plan pool over the externally owned GPU context.
func NewPool(ctx *gpuctx.Context, builder Builder) (*Pool, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	if builder == nil {
		return nil, ErrNilBuilder
	}
	return &Pool{ctx: ctx, builder: builder}, nil
}

// Context returns the GPU execution context plans execute against.
func (p *Pool) Context() *gpuctx.Context { return p.ctx }

// PlanState tracks a plan through its lifecycle.
type PlanState int

const (
	// PlanUninitialized is the zero state before construction completes.
	PlanUninitialized PlanState = iota

	// PlanReady means the plan holds a built graph and fence.
	PlanReady

	// PlanFailed means the builder reported an error; the plan is unusable.
	PlanFailed

	// PlanDestroyed is terminal; no transition leaves it.
	PlanDestroyed
)

// String returns the string representation of PlanState.
func (s PlanState) String() string {
	switch s {
	case PlanUninitialized:
		return "Uninitialized"
	case PlanReady:
		return "Ready"
	case PlanFailed:
		return "Failed"
	case PlanDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Plan is a per-size FFT execution plan: a configuration, a built execution
// graph, and a completion fence.
//
// State machine:
//
//	Uninitialized → Ready (build success) → Destroyed
//	Uninitialized → Failed (build error)  → Destroyed
//
// A Plan is returned from New only in the Ready state. Destroy is terminal
// and idempotent.
type Plan struct {
	mu    sync.Mutex
	state PlanState

	size  int
	cfg   Config
	graph Graph
	fence gpuctx.Fence
}

// New constructs a plan for a transform of size elements.
//
// The builder call is serialized behind the pool's construction mutex; the
// mutex is released on every exit path. On builder failure the fence is
// released and New returns an error wrapping ErrPlanInit with no usable
// plan.
func New(pool *Pool, size int) (*Plan, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	p := &Plan{size: size, cfg: configFor(size)}

	fence, err := pool.ctx.Device.CreateFence()
	if err != nil {
		p.state = PlanFailed
		return nil, fmt.Errorf("%w: create fence: %w", ErrPlanInit, err)
	}
	p.fence = fence

	pool.mu.Lock()
	graph, err := pool.builder.Build(pool.ctx, &p.cfg)
	pool.mu.Unlock()

	if err != nil {
		fence.Destroy()
		p.fence = nil
		p.state = PlanFailed
		wavescope.Logger().Warn("fftplan: plan construction failed", "size", size, "error", err)
		return nil, fmt.Errorf("%w: size %d: %w", ErrPlanInit, size, err)
	}

	p.graph = graph
	p.state = PlanReady
	wavescope.Logger().Debug("fftplan: plan built", "size", size)
	return p, nil
}

// Size returns the transform size the plan was built for.
func (p *Plan) Size() int { return p.size }

// Config returns a copy of the plan's configuration.
func (p *Plan) Config() Config { return p.cfg }

// State returns the current lifecycle state.
func (p *Plan) State() PlanState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Graph returns the built execution graph, or nil once destroyed.
func (p *Plan) Graph() Graph {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.graph
}

// Fence returns the plan's completion fence, or nil once destroyed.
// Callers outside this layer observe execution completion through it.
func (p *Plan) Fence() gpuctx.Fence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fence
}

// Destroy releases the execution graph and fence deterministically.
// Idempotent; no operations are valid on the plan afterward.
func (p *Plan) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PlanDestroyed {
		return
	}
	if p.graph != nil {
		p.graph.Destroy()
		p.graph = nil
	}
	if p.fence != nil {
		p.fence.Destroy()
		p.fence = nil
	}
	p.state = PlanDestroyed
}
