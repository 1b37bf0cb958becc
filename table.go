// table.go: table management -- sizing, huge-page-aligned allocation,
// parallel clear, generation advance, occupancy estimation, and the
// probe/write protocol's entry point.
//
// Copyright (c) 2025 Corvid Chess contributors
// SPDX-License-Identifier: MPL-2.0
package transtable

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// TranspositionTable is the concrete, lock-free implementation of Table.
// The zero value is not usable; construct one with New.
type TranspositionTable struct {
	cfg   Config
	alloc PageAllocator

	// mu guards Resize and Clear against each other and against
	// themselves, but not against concurrent Probe/Write: the caller is
	// responsible for never calling Resize/Clear while search threads are
	// probing or writing.
	mu sync.Mutex

	mem          []byte
	clusters     []Cluster
	clusterCount uint64

	generation atomic.Uint32 // only the low 8 bits are ever meaningful

	// ageWeight is read on every Probe miss (victim selection) and
	// gentleAging on every Write, possibly concurrently with HotTuning
	// applying a change; they are mirrored here as atomics rather than
	// read straight off cfg so that race does not require a lock on the
	// hot path. HugePages has no such mirror: it only selects alloc, which
	// setHugePages replaces and Resize uses, both while holding mu.
	ageWeight   atomic.Int32
	gentleAging atomic.Bool
}

var _ Table = (*TranspositionTable)(nil)

// New constructs a TranspositionTable from cfg, normalizing cfg via
// Validate and sizing the table to cfg.MegaBytes. Returns an error for an
// invalid configuration or an allocation failure; it never calls os.Exit
// itself -- see FatalAllocError for a caller-opt-in "abort the process"
// wrapper.
func New(cfg Config) (*TranspositionTable, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tt := &TranspositionTable{cfg: cfg}
	tt.ageWeight.Store(int32(cfg.AgeWeight))
	tt.gentleAging.Store(cfg.GentleAging)
	if cfg.HugePages {
		tt.alloc = NewHugePageAllocator()
	} else {
		tt.alloc = NewHeapAllocator()
	}

	if err := tt.Resize(cfg.MegaBytes); err != nil {
		return nil, err
	}
	return tt, nil
}

func (tt *TranspositionTable) logger() Logger            { return tt.cfg.Logger }
func (tt *TranspositionTable) metrics() MetricsCollector { return tt.cfg.MetricsCollector }
func (tt *TranspositionTable) currentAgeWeight() int     { return int(tt.ageWeight.Load()) }
func (tt *TranspositionTable) currentGentleAging() bool  { return tt.gentleAging.Load() }

// Generation returns the current 8-bit generation counter.
func (tt *TranspositionTable) Generation() uint8 {
	return uint8(tt.generation.Load())
}

// NewSearch advances the generation counter by GenerationDelta, wrapping
// modulo 256. It never touches table memory.
func (tt *TranspositionTable) NewSearch() {
	for {
		old := tt.generation.Load()
		next := (old + GenerationDelta) & 0xFF
		if tt.generation.CompareAndSwap(old, next) {
			return
		}
	}
}

// clusterCountFor returns the cluster count for an mb-megabyte table:
// floor(mb*2^20 / ClusterBytes).
func clusterCountFor(mb int) uint64 {
	return uint64(mb) * (1 << 20) / ClusterBytes
}

// Resize frees the existing allocation, recomputes clusterCount, allocates
// clusterCount*goClusterSize bytes via the configured PageAllocator, and
// clears the new table. The caller must ensure no Probe or Write is in
// flight.
func (tt *TranspositionTable) Resize(mb int) error {
	if mb <= 0 {
		return NewErrInvalidSize(mb)
	}

	clusterCount := clusterCountFor(mb)
	if clusterCount == 0 {
		return NewErrSizeOverflow(mb)
	}
	structBytes := uint64(goClusterSize)
	totalBytes := clusterCount * structBytes
	if totalBytes/structBytes != clusterCount {
		return NewErrSizeOverflow(mb)
	}

	tt.mu.Lock()
	defer tt.mu.Unlock()

	if tt.mem != nil {
		if err := tt.alloc.Free(tt.mem); err != nil {
			tt.logger().Warn("transtable: failed to free previous allocation", "error", err)
		}
		tt.mem = nil
		tt.clusters = nil
	}

	mem, err := tt.alloc.Alloc(int(totalBytes))
	if err != nil {
		wrapped := NewErrAllocFailed(mb, clusterCount, err)
		tt.logger().Error("transtable: allocation failed", "mb", mb, "cluster_count", clusterCount, "error", err)
		return wrapped
	}

	tt.mem = mem
	tt.clusters = bytesToClusters(mem, clusterCount)
	tt.clusterCount = clusterCount

	if tt.cfg.MetricsCollector != nil {
		tt.cfg.MetricsCollector.RecordResize(mb)
	}

	tt.clearLocked()
	return nil
}

// Clear zeroes the table in parallel across cfg.Threads goroutines and
// resets the generation to 0. The caller must ensure no Probe or Write is
// in flight.
func (tt *TranspositionTable) Clear() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.clearLocked()
}

func (tt *TranspositionTable) clearLocked() {
	tt.generation.Store(0)

	n := len(tt.clusters)
	if n == 0 {
		if tt.cfg.MetricsCollector != nil {
			tt.cfg.MetricsCollector.RecordClear()
		}
		return
	}

	threads := tt.cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	if threads > n {
		threads = n
	}

	stride := n / threads
	_ = tt.cfg.ThreadPool.Go(context.Background(), threads, func(threadIndex int) {
		start := stride * threadIndex
		end := start + stride
		if threadIndex+1 == threads {
			end = n // the last thread absorbs the final partial stride
		}
		zeroClusters(tt.clusters[start:end])
	})

	if tt.cfg.MetricsCollector != nil {
		tt.cfg.MetricsCollector.RecordClear()
	}
}

// Probe hashes key to a cluster and either finds a stub match or selects
// a replacement victim.
func (tt *TranspositionTable) Probe(key uint64) (bool, TTData, Writer) {
	idx := clusterIndex(key, tt.clusterCount)
	cl := &tt.clusters[idx]
	keyStub := uint16(key & 0xFFFF)

	for i := 0; i < ClusterSize; i++ {
		e := &cl.entries[i]
		if e.keyStub16() == keyStub {
			hit := e.isOccupied()
			data := e.read(cutAccessor(cl, i).get())
			if tt.cfg.MetricsCollector != nil {
				tt.cfg.MetricsCollector.RecordProbe(hit)
			}
			return hit, data, Writer{cluster: cl, index: i, tbl: tt}
		}
	}

	victim := pickVictim(cl, tt.Generation(), tt.currentAgeWeight())
	if tt.cfg.MetricsCollector != nil {
		tt.cfg.MetricsCollector.RecordProbe(false)
	}
	return false, defaultSnapshot(), Writer{cluster: cl, index: victim, tbl: tt}
}

// defaultSnapshot is the TTData returned on a miss.
func defaultSnapshot() TTData {
	return TTData{
		Move:  0,
		Value: 0,
		Eval:  0,
		Depth: DepthEntryOffset,
		Bound: BoundNone,
		IsPV:  false,
		Cut:   false,
	}
}

// Hashfull samples the first 1000 clusters and returns an approximate
// per-mille occupancy of entries within maxAge*GenerationDelta of the
// current generation.
func (tt *TranspositionTable) Hashfull(maxAge uint8) uint16 {
	limit := len(tt.clusters)
	if limit > 1000 {
		limit = 1000
	}
	gen := tt.Generation()
	threshold := int(maxAge) * GenerationDelta

	count := 0
	for i := 0; i < limit; i++ {
		cl := &tt.clusters[i]
		for j := 0; j < ClusterSize; j++ {
			e := &cl.entries[j]
			if e.isOccupied() && int(e.relativeAge(gen)) <= threshold {
				count++
			}
		}
	}
	return uint16(count / ClusterSize)
}

// PrefetchHint is a no-op hook for callers that want to overlap a
// cluster's memory latency with move generation, the way a compiler
// prefetch builtin would in a language that has one. Go has no portable
// prefetch intrinsic, so this exists purely so a caller on a platform
// with one available has somewhere to hang it without changing Probe's
// signature. Prefetching is an optional throughput optimization, never
// required for correctness.
func (tt *TranspositionTable) PrefetchHint(key uint64) {}

// DebugDump writes a human-readable listing of up to limit occupied
// entries to w, for interactive inspection.
func (tt *TranspositionTable) DebugDump(w io.Writer, limit int) {
	gen := tt.Generation()
	written := 0
	for ci := range tt.clusters {
		if written >= limit {
			return
		}
		cl := &tt.clusters[ci]
		for i := 0; i < ClusterSize; i++ {
			e := &cl.entries[i]
			if !e.isOccupied() {
				continue
			}
			d := e.read(cutAccessor(cl, i).get())
			fmt.Fprintf(w, "cluster=%d slot=%d stub=%04x depth=%d bound=%s pv=%v move=%04x value=%d eval=%d age=%d\n",
				ci, i, e.keyStub16(), d.Depth, d.Bound, d.IsPV, d.Move, d.Value, d.Eval, e.relativeAge(gen))
			written++
			if written >= limit {
				return
			}
		}
	}
}

// Close releases the table's backing memory.
func (tt *TranspositionTable) Close() error {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.mem == nil {
		return nil
	}
	err := tt.alloc.Free(tt.mem)
	tt.mem = nil
	tt.clusters = nil
	tt.clusterCount = 0
	return err
}

// ClusterCount returns the number of clusters currently allocated.
func (tt *TranspositionTable) ClusterCount() uint64 { return tt.clusterCount }

// setHugePages swaps the allocator used by future Resize calls. It does
// not reallocate the table currently in use; the new allocator only takes
// effect on the next explicit Resize.
func (tt *TranspositionTable) setHugePages(v bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.cfg.HugePages = v
	if v {
		tt.alloc = NewHugePageAllocator()
	} else {
		tt.alloc = NewHeapAllocator()
	}
}
