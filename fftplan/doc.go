// Package fftplan manages per-size GPU FFT execution plans.
//
// A Plan binds one transform size to a built execution graph and a
// completion fence. Plans are built through a Pool, which owns the one
// construction mutex shared by all sizes and callers: the underlying plan
// builder is not safe for concurrent invocation, so construction is globally
// serialized. Execution is not: callers run plans through the GPU context
// and observe completion via the plan's fence.
//
// Construction blocks on the pool mutex and on driver calls, so it suits
// infrequent, amortized-once-per-size use. Callers that repeatedly need the
// same sizes can reuse plans through a PlanCache instead of constructing a
// fresh plan per request.
package fftplan
