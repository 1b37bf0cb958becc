// Package pool provides the fan-out/join thread pool transtable.Table uses
// to parallelize Clear and Resize. It is a concrete implementation of the
// transtable.ThreadPool interface; the core transtable package only
// depends on that interface, treating the pool as an external
// collaborator.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Static is a ThreadPool that runs exactly n goroutines per Go call,
// joining all of them (or returning the first error/ctx cancellation)
// before returning.
type Static struct {
	// MaxConcurrency caps how many of the n requested threads actually
	// run at once. Zero means unbounded: run all n immediately.
	MaxConcurrency int
}

// New returns a Static thread pool with no concurrency cap.
func New() *Static { return &Static{} }

// Go runs body(i) for every i in [0, n) and waits for all of them to
// finish. If ctx is cancelled mid-run, already-started bodies still run
// to completion; ctx only gates whether a not-yet-started body is
// launched at all.
func (p *Static) Go(ctx context.Context, n int, body func(threadIndex int)) error {
	if n <= 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if p != nil && p.MaxConcurrency > 0 {
		g.SetLimit(p.MaxConcurrency)
	}
	for i := 0; i < n; i++ {
		threadIndex := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			body(threadIndex)
			return nil
		})
	}
	return g.Wait()
}
