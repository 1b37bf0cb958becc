// config.go: configuration for transtable's shared transposition table.
//
// Copyright (c) 2025 Corvid Chess contributors
// SPDX-License-Identifier: MPL-2.0
package transtable

import (
	"runtime"

	timecache "github.com/agilira/go-timecache"

	"github.com/corvidchess/transtable/pool"
)

// Config holds configuration parameters for a transposition table.
type Config struct {
	// MegaBytes is the table size. Must be > 0 once resolved; leave at the
	// zero value to take DefaultMegaBytes. Passing a negative value other
	// than the zero value explicitly is treated as a caller error by
	// Validate, not silently defaulted, since a negative size can only
	// arise from a configuration bug upstream (e.g. an unchecked UCI
	// "setoption name Hash value" argument).
	MegaBytes int

	// Threads is the fan-out width Resize and Clear use to zero the table
	// in parallel. Default: runtime.GOMAXPROCS(0).
	Threads int

	// AgeWeight is the replacement-score age multiplier k used when Probe
	// scans a full cluster for a victim to evict. The save-time overwrite
	// check is a separate, k-independent comparison (see entry.save).
	// Default: DefaultAgeWeight (2).
	AgeWeight int

	// GentleAging enables the rule that decrements the stored depth by 1
	// when a save is skipped, so an entry that keeps surviving probes
	// without being refreshed slowly becomes cheaper to evict. Default:
	// true.
	GentleAging bool

	// HugePages requests huge-page-backed allocation from the allocator
	// when the platform supports it. Default: true.
	HugePages bool

	// Logger is used for diagnostics around Resize/Clear/hot-reload.
	// If nil, NoOpLogger is used.
	Logger Logger

	// TimeProvider supplies a clock. If nil, a go-timecache-backed
	// implementation is used. Nothing in this package reads it; hot-reload
	// polling is scheduled by the watcher's own PollInterval.
	TimeProvider TimeProvider

	// MetricsCollector receives probe/write/resize/clear events.
	// If nil, NoOpMetricsCollector is used (zero overhead).
	MetricsCollector MetricsCollector

	// ThreadPool is the fan-out/join collaborator Resize and Clear use to
	// parallelize zeroing. If nil, a pool.Static with no concurrency cap
	// is used.
	ThreadPool ThreadPool
}

// Validate normalizes Config in place, filling in defaults for every
// field that can be defaulted without masking a caller error, and
// returns an error only for the one field that cannot: an explicit
// negative MegaBytes.
//
// Default values applied:
//   - MegaBytes: DefaultMegaBytes if left at the Go zero value (0)
//   - Threads: runtime.GOMAXPROCS(0) if <= 0
//   - AgeWeight: DefaultAgeWeight if <= 0
//   - Logger: NoOpLogger{} if nil
//   - TimeProvider: a go-timecache-backed provider if nil
//   - MetricsCollector: NoOpMetricsCollector{} if nil
func (c *Config) Validate() error {
	if c.MegaBytes < 0 {
		return NewErrInvalidSize(c.MegaBytes)
	}
	if c.MegaBytes == 0 {
		c.MegaBytes = DefaultMegaBytes
	}

	if c.Threads <= 0 {
		c.Threads = runtime.GOMAXPROCS(0)
	}

	if c.AgeWeight <= 0 {
		c.AgeWeight = DefaultAgeWeight
	}

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}

	if c.TimeProvider == nil {
		c.TimeProvider = &systemTimeProvider{}
	}

	if c.MetricsCollector == nil {
		c.MetricsCollector = NoOpMetricsCollector{}
	}

	if c.ThreadPool == nil {
		c.ThreadPool = pool.New()
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MegaBytes:        DefaultMegaBytes,
		Threads:          runtime.GOMAXPROCS(0),
		AgeWeight:        DefaultAgeWeight,
		GentleAging:      true,
		HugePages:        true,
		Logger:           NoOpLogger{},
		TimeProvider:     &systemTimeProvider{},
		MetricsCollector: NoOpMetricsCollector{},
		ThreadPool:       pool.New(),
	}
}

// systemTimeProvider is the default time provider, backed by
// go-timecache's coarse cached clock. It is never read on the probe/write
// hot path, nor by hot-reload polling.
type systemTimeProvider struct{}

func (t *systemTimeProvider) Now() int64 {
	return timecache.CachedTimeNano()
}
