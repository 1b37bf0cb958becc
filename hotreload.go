// hotreload.go: dynamic tuning of replacement-policy parameters via Argus
// file watching.
//
// Copyright (c) 2025 Corvid Chess contributors
// SPDX-License-Identifier: MPL-2.0
package transtable

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// HotTuning watches a configuration file and applies AgeWeight, GentleAging,
// and HugePages changes to a running TranspositionTable without a restart.
// MegaBytes is deliberately not watched: changing table size means
// reallocating and re-clearing, which the caller must coordinate explicitly
// by calling Resize itself once search threads are quiesced rather than
// having this package do it behind the caller's back.
type HotTuning struct {
	tbl     *TranspositionTable
	watcher *argus.Watcher
	mu      sync.RWMutex
	current tunables

	// OnReload is called after a reload is applied. Optional; must be fast
	// and non-blocking.
	OnReload func(old, new tunables)
}

// tunables is the subset of Config that HotTuning is allowed to change at
// runtime.
type tunables struct {
	AgeWeight   int
	GentleAging bool
	HugePages   bool
}

// HotTuningOptions configures hot-reload behavior.
type HotTuningOptions struct {
	// ConfigPath is the file to watch. Supports JSON, YAML, TOML, HCL,
	// INI, and Properties, per argus.UniversalConfigWatcher.
	ConfigPath string

	// PollInterval is how often to check for changes. Default: 1 second,
	// floor 100ms.
	PollInterval time.Duration

	OnReload func(old, new tunables)
	Logger   Logger
}

// NewHotTuning starts watching opts.ConfigPath and applies AgeWeight,
// GentleAging, and HugePages changes to tbl as they are detected.
//
// Recognized keys, optionally nested under a "transtable" section:
//
//	age_weight (int, >0)
//	gentle_aging (bool)
//	huge_pages (bool)
//
// HugePages changes only take effect on the next Resize; they cannot
// migrate already-allocated memory between allocators.
func NewHotTuning(tbl *TranspositionTable, opts HotTuningOptions) (*HotTuning, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config_path is required")
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = tbl.logger()
	}

	ht := &HotTuning{
		tbl:      tbl,
		OnReload: opts.OnReload,
		current: tunables{
			AgeWeight:   tbl.currentAgeWeight(),
			GentleAging: tbl.currentGentleAging(),
			HugePages:   tbl.cfg.HugePages,
		},
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, ht.handleChange, argus.Config{
		PollInterval: opts.PollInterval,
	})
	if err != nil {
		return nil, err
	}
	ht.watcher = watcher
	return ht, nil
}

// Start begins watching. NewHotTuning does not start the watcher itself.
func (ht *HotTuning) Start() error {
	if ht.watcher.IsRunning() {
		return nil
	}
	return ht.watcher.Start()
}

// Stop stops watching.
func (ht *HotTuning) Stop() error {
	return ht.watcher.Stop()
}

// Current returns the tunables currently in effect.
func (ht *HotTuning) Current() tunables {
	ht.mu.RLock()
	defer ht.mu.RUnlock()
	return ht.current
}

func (ht *HotTuning) handleChange(data map[string]interface{}) {
	section, ok := data["transtable"].(map[string]interface{})
	if !ok {
		section = data
	}

	ht.mu.Lock()
	old := ht.current
	next := old

	if v, ok := parsePositiveIntField(section["age_weight"]); ok {
		next.AgeWeight = v
	}
	if v, ok := section["gentle_aging"].(bool); ok {
		next.GentleAging = v
	}
	if v, ok := section["huge_pages"].(bool); ok {
		next.HugePages = v
	}
	ht.current = next
	ht.mu.Unlock()

	if next == old {
		return
	}

	ht.tbl.ageWeight.Store(int32(next.AgeWeight))
	ht.tbl.gentleAging.Store(next.GentleAging)
	if next.HugePages != old.HugePages {
		ht.tbl.setHugePages(next.HugePages)
	}

	if ht.OnReload != nil {
		ht.OnReload(old, next)
	}
}

// parsePositiveIntField extracts a positive int from a value that may have
// come through as int or float64, as Argus's format decoders produce both
// depending on source format (JSON ints decode as float64, for instance).
func parsePositiveIntField(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int(v), true
		}
	}
	return 0, false
}
