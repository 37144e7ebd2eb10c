package fftplan

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPlanCacheGet(t *testing.T) {
	builder := &mockBuilder{}
	pool, _ := newTestPool(t, builder)
	pc, err := NewPlanCache(pool)
	if err != nil {
		t.Fatalf("NewPlanCache() = %v", err)
	}

	a, err := pc.Get(1024)
	if err != nil {
		t.Fatalf("Get(1024) = %v", err)
	}
	b, err := pc.Get(1024)
	if err != nil {
		t.Fatalf("Get(1024) = %v", err)
	}
	if a != b {
		t.Error("repeated Get for the same size returned different plans")
	}
	if n := builder.builds.Load(); n != 1 {
		t.Errorf("builds = %d, want 1 (construction amortized)", n)
	}

	c, err := pc.Get(2048)
	if err != nil {
		t.Fatalf("Get(2048) = %v", err)
	}
	if c == a {
		t.Error("distinct sizes must map to distinct plans")
	}
	if pc.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pc.Len())
	}
}

func TestPlanCacheConcurrentFirstAccess(t *testing.T) {
	builder := &mockBuilder{delay: time.Millisecond}
	pool, _ := newTestPool(t, builder)
	pc, err := NewPlanCache(pool)
	if err != nil {
		t.Fatalf("NewPlanCache() = %v", err)
	}

	const goroutines = 16
	plans := make([]*Plan, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := pc.Get(4096)
			if err != nil {
				t.Errorf("Get() = %v", err)
				return
			}
			plans[i] = p
		}()
	}
	wg.Wait()

	if n := builder.builds.Load(); n != 1 {
		t.Errorf("builds = %d, want exactly 1 per size", n)
	}
	for i := 1; i < goroutines; i++ {
		if plans[i] != plans[0] {
			t.Fatalf("goroutine %d observed a different plan", i)
		}
	}
}

func TestPlanCacheFailureNotCached(t *testing.T) {
	builder := &mockBuilder{}
	builder.fail.Store(true)
	pool, _ := newTestPool(t, builder)
	pc, err := NewPlanCache(pool)
	if err != nil {
		t.Fatalf("NewPlanCache() = %v", err)
	}

	if _, err := pc.Get(512); !errors.Is(err, ErrPlanInit) {
		t.Fatalf("Get() = %v, want ErrPlanInit", err)
	}
	if pc.Len() != 0 {
		t.Error("failed build must not be cached")
	}

	// The condition clears (say, driver recovered): a later Get succeeds.
	builder.fail.Store(false)
	p, err := pc.Get(512)
	if err != nil {
		t.Fatalf("Get() after failure = %v", err)
	}
	if p.Size() != 512 {
		t.Errorf("Size() = %d, want 512", p.Size())
	}
}

func TestPlanCacheClear(t *testing.T) {
	builder := &mockBuilder{}
	pool, _ := newTestPool(t, builder)
	pc, err := NewPlanCache(pool)
	if err != nil {
		t.Fatalf("NewPlanCache() = %v", err)
	}

	p, err := pc.Get(256)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	graph := p.Graph().(*mockGraph)

	pc.Clear()

	if pc.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", pc.Len())
	}
	if p.State() != PlanDestroyed {
		t.Errorf("cached plan state after Clear = %v, want Destroyed", p.State())
	}
	if !graph.isDestroyed() {
		t.Error("graph not released by Clear")
	}

	// A fresh Get rebuilds.
	p2, err := pc.Get(256)
	if err != nil {
		t.Fatalf("Get() after Clear = %v", err)
	}
	if p2 == p {
		t.Error("Clear did not evict the plan")
	}
}

func TestNewPlanCacheNilPool(t *testing.T) {
	if _, err := NewPlanCache(nil); !errors.Is(err, ErrNilPool) {
		t.Errorf("NewPlanCache(nil) = %v, want ErrNilPool", err)
	}
}
