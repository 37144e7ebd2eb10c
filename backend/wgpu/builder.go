package wgpu

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/wavescope"
	"github.com/gogpu/wavescope/fftplan"
	"github.com/gogpu/wavescope/gpuctx"
	"github.com/gogpu/wavescope/rescache"
	"github.com/gogpu/wavescope/shader"
)

// Builder errors.
var (
	// ErrNilCache is returned when a PlanBuilder is created without a
	// resource cache to memoize shader compilation through.
	ErrNilCache = errors.New("wgpu: nil resource cache")

	// ErrNoStages is returned when a PlanBuilder is created with no
	// kernel stages.
	ErrNoStages = errors.New("wgpu: no kernel stages")

	// ErrForeignDevice is returned when Build is handed a context whose
	// device was not created by this backend.
	ErrForeignDevice = errors.New("wgpu: device does not expose a HAL handle")

	// ErrTooLarge is returned when a transform needs more workgroups than
	// a dispatch can address.
	ErrTooLarge = errors.New("wgpu: transform exceeds dispatch limits")
)

// planWorkgroupSize is the workgroup width every stage kernel is expected
// to declare. Dispatch counts are derived from it.
const planWorkgroupSize = 256

// Stage is one compute kernel of a transform. The source must declare a
// compute entry point named main with the layout
//
//	@group(0) @binding(0) var<uniform>             params
//	@group(0) @binding(1) var<storage, read_write> data
//
// operating in place on the single data buffer.
type Stage struct {
	Label  string
	Source string
}

// PlanBuilder builds transform execution graphs on a HAL device. Each stage
// kernel is compiled to SPIR-V through the resource cache, so repeated plan
// construction across sizes reuses the compiled artifacts.
//
// Build is not safe for concurrent invocation; the plan pool serializes it.
type PlanBuilder struct {
	cache  *rescache.Cache
	stages []Stage
}

// NewPlanBuilder creates a builder over the given kernel stages.
func NewPlanBuilder(cache *rescache.Cache, stages []Stage) (*PlanBuilder, error) {
	if cache == nil {
		return nil, ErrNilCache
	}
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	return &PlanBuilder{cache: cache, stages: stages}, nil
}

// halDevice is satisfied by devices created by this backend.
type halDevice interface {
	HAL() hal.Device
}

// Build compiles every stage kernel and creates its compute pipeline,
// returning a dispatch-ready graph. On any failure the partially built
// resources are released and no graph is returned.
func (b *PlanBuilder) Build(ctx *gpuctx.Context, cfg *fftplan.Config) (fftplan.Graph, error) {
	groups64 := cfg.BufferSize / planWorkgroupSize
	if cfg.BufferSize%planWorkgroupSize != 0 {
		groups64++
	}
	if groups64 > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d elements need %d workgroups", ErrTooLarge, cfg.BufferSize, groups64)
	}

	hd, ok := ctx.Device.(halDevice)
	if !ok {
		return nil, fmt.Errorf("%w (%T)", ErrForeignDevice, ctx.Device)
	}
	dev := hd.HAL()

	groups := uint32(groups64)
	if groups == 0 {
		groups = 1
	}

	g := &planGraph{device: dev, groups: groups}
	for _, st := range b.stages {
		if err := b.buildStage(g, dev, st); err != nil {
			g.Destroy()
			return nil, err
		}
	}

	wavescope.Logger().Debug("wgpu: plan graph built",
		"stages", len(b.stages),
		"size", cfg.Size[0],
		"workgroups", groups)
	return g, nil
}

func (b *PlanBuilder) buildStage(g *planGraph, dev hal.Device, st Stage) error {
	spirv, err := shader.Compile(b.cache, shader.Key(st.Label, st.Source), st.Source)
	if err != nil {
		return fmt.Errorf("wgpu: stage %s: %w", st.Label, err)
	}

	module, err := dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  st.Label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create shader module for %s: %w", st.Label, err)
	}
	g.modules = append(g.modules, module)

	// binding(0) = params uniform, binding(1) = in-place data buffer.
	bgLayout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: st.Label + "_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group layout for %s: %w", st.Label, err)
	}
	g.bindLayouts = append(g.bindLayouts, bgLayout)

	pipeLayout, err := dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            st.Label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout for %s: %w", st.Label, err)
	}
	g.pipeLayouts = append(g.pipeLayouts, pipeLayout)

	pipeline, err := dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  st.Label,
		Layout: pipeLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create compute pipeline for %s: %w", st.Label, err)
	}
	g.pipelines = append(g.pipelines, pipeline)
	return nil
}

// planGraph holds the per-stage pipelines of one built transform.
type planGraph struct {
	device      hal.Device
	modules     []hal.ShaderModule
	bindLayouts []hal.BindGroupLayout
	pipeLayouts []hal.PipelineLayout
	pipelines   []hal.ComputePipeline
	groups      uint32
}

// Stages returns the number of built pipeline stages.
func (g *planGraph) Stages() int { return len(g.pipelines) }

// Workgroups returns the dispatch width each stage runs with.
func (g *planGraph) Workgroups() uint32 { return g.groups }

// Destroy releases all stage resources. Safe to call on a partially built
// graph and more than once.
func (g *planGraph) Destroy() {
	if g.device == nil {
		return
	}
	for _, p := range g.pipelines {
		g.device.DestroyComputePipeline(p)
	}
	for _, l := range g.pipeLayouts {
		g.device.DestroyPipelineLayout(l)
	}
	for _, l := range g.bindLayouts {
		g.device.DestroyBindGroupLayout(l)
	}
	for _, m := range g.modules {
		g.device.DestroyShaderModule(m)
	}
	g.pipelines, g.pipeLayouts, g.bindLayouts, g.modules = nil, nil, nil, nil
	g.device = nil
}
