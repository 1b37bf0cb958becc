package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestStaticGoRunsEveryIndexExactlyOnce(t *testing.T) {
	const n = 17
	var counts [n]atomic.Int32

	p := New()
	err := p.Go(context.Background(), n, func(threadIndex int) {
		counts[threadIndex].Add(1)
	})
	if err != nil {
		t.Fatalf("Go() error = %v", err)
	}
	for i := range counts {
		if got := counts[i].Load(); got != 1 {
			t.Errorf("thread %d ran %d times, want 1", i, got)
		}
	}
}

func TestStaticGoZeroIsNoOp(t *testing.T) {
	p := New()
	called := false
	err := p.Go(context.Background(), 0, func(int) { called = true })
	if err != nil {
		t.Fatalf("Go(n=0) error = %v", err)
	}
	if called {
		t.Error("body should never run for n=0")
	}
}

func TestStaticGoRespectsMaxConcurrency(t *testing.T) {
	p := &Static{MaxConcurrency: 2}
	var running, peak atomic.Int32

	err := p.Go(context.Background(), 8, func(int) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		running.Add(-1)
	})
	if err != nil {
		t.Fatalf("Go() error = %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("observed peak concurrency %d, want <= 2", peak.Load())
	}
}

func TestStaticGoCancelledContextStopsUnstartedWork(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	err := p.Go(ctx, 100, func(int) {
		ran.Add(1)
	})
	if err == nil {
		t.Error("expected an error from a pre-cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if ran.Load() != 0 {
		t.Errorf("body ran %d times against a pre-cancelled context, want 0", ran.Load())
	}
}
