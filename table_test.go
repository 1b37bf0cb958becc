package transtable

import (
	"sync"
	"testing"
)

func newTestTable(t *testing.T, mb int) *TranspositionTable {
	t.Helper()
	tbl, err := New(Config{MegaBytes: mb, Threads: 2, AgeWeight: 2, GentleAging: true, HugePages: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func TestNewRejectsInvalidSize(t *testing.T) {
	if _, err := New(Config{MegaBytes: -1}); err == nil {
		t.Fatal("expected an error for a negative MegaBytes")
	}
}

func TestClusterCountMatchesFormula(t *testing.T) {
	tbl := newTestTable(t, 4)
	want := clusterCountFor(4)
	if tbl.ClusterCount() != want {
		t.Errorf("ClusterCount() = %d, want %d", tbl.ClusterCount(), want)
	}
}

func TestProbeMissThenWriteThenHit(t *testing.T) {
	tbl := newTestTable(t, 1)
	key := uint64(0xDEADBEEFCAFEBABE)

	hit, _, w := tbl.Probe(key)
	if hit {
		t.Fatal("expected a miss on an empty table")
	}
	w.Write(key, 42, true, BoundExact, 12, 0x100, 7, false)

	hit, data, _ := tbl.Probe(key)
	if !hit {
		t.Fatal("expected a hit after writing the same key")
	}
	if data.Value != 42 || data.Depth != 12 || data.Bound != BoundExact || !data.IsPV || data.Move != 0x100 {
		t.Errorf("unexpected snapshot after write: %+v", data)
	}
}

func TestProbeStubCollisionIsTreatedAsSamePosition(t *testing.T) {
	tbl := newTestTable(t, 1)
	count := tbl.ClusterCount()

	key := uint64(1)
	targetCluster := clusterIndex(key, count)
	targetStub := uint16(key & 0xFFFF)

	var alias uint64
	found := false
	for m := uint64(1); m < 10_000_000; m++ {
		k := key + m*0x10000 // keeps the low 16 bits (the stub) fixed
		if clusterIndex(k, count) == targetCluster {
			alias = k
			found = true
			break
		}
	}
	if !found {
		t.Fatal("could not find a same-stub, same-cluster alias within the search budget")
	}
	if uint16(alias&0xFFFF) != targetStub {
		t.Fatal("constructed alias does not actually share the original key's stub")
	}

	_, _, w := tbl.Probe(key)
	w.Write(key, 99, false, BoundUpper, 10, 0, 0, false)

	// A genuinely different position that happens to alias onto the same
	// stub in the same cluster reads back as a false hit: this is the
	// accepted key-stub collision behavior, not a bug.
	hit, data, _ := tbl.Probe(alias)
	if !hit {
		t.Fatal("expected the aliased key to read back as a hit against the stub match")
	}
	if data.Value != 99 {
		t.Errorf("aliased probe returned value %d, want the colliding entry's value 99", data.Value)
	}
}

func TestWriteExactBoundAlwaysOverwritesShallowerEntry(t *testing.T) {
	tbl := newTestTable(t, 1)
	key := uint64(0x1234567890ABCDEF)

	_, _, w := tbl.Probe(key)
	w.Write(key, 1, false, BoundUpper, 40, 0, 0, false)

	_, _, w2 := tbl.Probe(key)
	w2.Write(key, 2, false, BoundExact, 3, 0, 0, false)

	_, data, _ := tbl.Probe(key)
	if data.Bound != BoundExact || data.Depth != 3 {
		t.Errorf("expected the exact-bound write to win: %+v", data)
	}
}

// sameClusterKeys searches for n distinct keys that all hash to the same
// cluster index on tbl, so a test can deliberately fill a single cluster.
func sameClusterKeys(t *testing.T, tbl *TranspositionTable, n int) []uint64 {
	t.Helper()
	count := tbl.ClusterCount()
	target := clusterIndex(0, count)
	seenStub := map[uint16]bool{}
	var keys []uint64
	for k := uint64(1); len(keys) < n; k++ {
		stub := uint16(k & 0xFFFF)
		if clusterIndex(k, count) == target && !seenStub[stub] {
			keys = append(keys, k)
			seenStub[stub] = true
		}
		if k > 5_000_000 {
			t.Fatal("could not find enough same-cluster keys within a reasonable search budget")
		}
	}
	return keys
}

func TestNewSearchAdvancesGenerationAndAffectsVictimSelection(t *testing.T) {
	tbl := newTestTable(t, 1)

	filled := sameClusterKeys(t, tbl, ClusterSize)
	for _, k := range filled {
		_, _, w := tbl.Probe(k)
		w.Write(k, 0, false, BoundUpper, 30, 0, 0, false)
	}

	tbl.NewSearch()
	tbl.NewSearch()

	// A brand new key landing in the same cluster should pick the oldest
	// (now lowest-score) entry as its victim and evict it.
	newKey := sameClusterKeys(t, tbl, ClusterSize+1)[ClusterSize]
	_, _, w := tbl.Probe(newKey)
	w.Write(newKey, 0, false, BoundUpper, 30, 0, 0, false)

	hitCount := 0
	for _, k := range filled {
		hit, _, _ := tbl.Probe(k)
		if hit {
			hitCount++
		}
	}
	if hitCount != ClusterSize-1 {
		t.Errorf("expected exactly one of the original %d entries to be evicted, %d still hit", ClusterSize, hitCount)
	}
}

func TestClearResetsGenerationAndOccupancy(t *testing.T) {
	tbl := newTestTable(t, 1)
	key := uint64(0xAAAABBBBCCCCDDDD)

	_, _, w := tbl.Probe(key)
	w.Write(key, 1, false, BoundExact, 10, 0, 0, false)
	tbl.NewSearch()

	tbl.Clear()

	if tbl.Generation() != 0 {
		t.Errorf("Generation() after Clear() = %d, want 0", tbl.Generation())
	}
	hit, _, _ := tbl.Probe(key)
	if hit {
		t.Error("expected a miss after Clear()")
	}
}

func TestResizeChangesClusterCount(t *testing.T) {
	tbl := newTestTable(t, 1)
	if err := tbl.Resize(4); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	want := clusterCountFor(4)
	if tbl.ClusterCount() != want {
		t.Errorf("ClusterCount() after Resize(4) = %d, want %d", tbl.ClusterCount(), want)
	}
}

func TestHashfullReflectsOccupancy(t *testing.T) {
	tbl := newTestTable(t, 1)
	if got := tbl.Hashfull(0); got != 0 {
		t.Errorf("Hashfull() on an empty table = %d, want 0", got)
	}

	for i := 0; i < 500; i++ {
		key := uint64(i) * 0x9E3779B97F4A7C15
		_, _, w := tbl.Probe(key)
		w.Write(key, 0, false, BoundUpper, 10, 0, 0, false)
	}

	if got := tbl.Hashfull(255); got == 0 {
		t.Error("Hashfull() should be nonzero after writing 500 entries")
	}
}

func TestConcurrentClearDoesNotRace(t *testing.T) {
	tbl := newTestTable(t, 1)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl.Clear()
		}()
	}
	wg.Wait()
}

func TestDebugDumpListsOccupiedEntries(t *testing.T) {
	tbl := newTestTable(t, 1)
	key := uint64(0x55667788)
	_, _, w := tbl.Probe(key)
	w.Write(key, 1, false, BoundExact, 10, 0, 0, false)

	var sb sbuf
	tbl.DebugDump(&sb, 5)
	if sb.Len() == 0 {
		t.Error("DebugDump() wrote nothing after a write")
	}
}

// sbuf is a minimal io.Writer for tests that want to inspect written bytes
// without importing bytes.Buffer into the production import graph.
type sbuf struct {
	data []byte
}

func (b *sbuf) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *sbuf) Len() int { return len(b.data) }
