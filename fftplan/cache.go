package fftplan

import "sync"

// PlanCache reuses plans by transform size, amortizing construction across
// repeated requests for the same size. It is opt-in: callers that need a
// plan once should use New directly.
//
// The cache owns the plans it hands out; callers must not Destroy them.
// PlanCache is safe for concurrent use.
type PlanCache struct {
	pool *Pool

	mu    sync.Mutex
	plans map[int]*Plan
}

// NewPlanCache creates an empty plan cache over pool.
func NewPlanCache(pool *Pool) (*PlanCache, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	return &PlanCache{pool: pool, plans: make(map[int]*Plan)}, nil
}

// Get returns the cached plan for size, building it on first request.
// Lookup and construction happen under one critical section, so at most one
// plan is ever built per size, even under concurrent first access. Build
// failures are returned and not cached; a later Get for the same size tries
// again.
func (pc *PlanCache) Get(size int) (*Plan, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if p, ok := pc.plans[size]; ok {
		return p, nil
	}

	p, err := New(pc.pool, size)
	if err != nil {
		return nil, err
	}
	pc.plans[size] = p
	return p, nil
}

// Len returns the number of cached plans.
func (pc *PlanCache) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.plans)
}

// Clear destroys every cached plan and empties the cache. Plans obtained
// from Get become invalid.
func (pc *PlanCache) Clear() {
	pc.mu.Lock()
	plans := pc.plans
	pc.plans = make(map[int]*Plan)
	pc.mu.Unlock()

	// Destroy outside the lock: releasing graphs calls into the driver.
	for _, p := range plans {
		p.Destroy()
	}
}
