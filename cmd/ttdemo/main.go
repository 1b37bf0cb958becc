// ttdemo exercises a transtable.TranspositionTable under synthetic
// concurrent load from the command line, the way a UCI engine's search
// threads would drive it.
//
// Copyright (c) 2025 Corvid Chess contributors
// SPDX-License-Identifier: MPL-2.0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"sync"

	otelmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/corvidchess/transtable"
	"github.com/corvidchess/transtable/internal/telemetry"
)

var (
	flgHash      int
	flgThreads   int
	flgAgeWeight int
	flgProbes    int
	flgSearches  int
	flgHugePages bool
	flgMetrics   bool
)

func main() {
	flag.IntVar(&flgHash, "hash", transtable.DefaultMegaBytes, "table size in megabytes")
	flag.IntVar(&flgThreads, "threads", runtime.NumCPU(), "number of concurrent probing goroutines")
	flag.IntVar(&flgAgeWeight, "age-weight", transtable.DefaultAgeWeight, "replacement-score age multiplier")
	flag.IntVar(&flgProbes, "probes", 2_000_000, "probe/write operations per goroutine")
	flag.IntVar(&flgSearches, "searches", 4, "number of NewSearch generation bumps during the run")
	flag.BoolVar(&flgHugePages, "huge-pages", true, "request huge-page-backed allocation")
	flag.BoolVar(&flgMetrics, "metrics", false, "collect OpenTelemetry metrics and print a summary on exit")
	flag.Parse()

	logger := log.New(os.Stderr, "ttdemo: ", log.LstdFlags)

	var reader *otelmetric.ManualReader
	var collector *telemetry.Collector
	cfg := transtable.Config{
		MegaBytes:   flgHash,
		Threads:     flgThreads,
		AgeWeight:   flgAgeWeight,
		GentleAging: true,
		HugePages:   flgHugePages,
	}
	if flgMetrics {
		reader = otelmetric.NewManualReader()
		provider := otelmetric.NewMeterProvider(otelmetric.WithReader(reader))
		defer provider.Shutdown(context.Background())

		var err error
		collector, err = telemetry.New(provider)
		if err != nil {
			logger.Fatalf("failed to construct metrics collector: %v", err)
		}
		cfg.MetricsCollector = collector
	}

	tbl, err := transtable.New(cfg)
	if err != nil {
		logger.Fatalf("failed to construct table: %v", err)
	}
	defer tbl.Close()

	if collector != nil {
		collector.SetHashfullSource(func() uint16 { return tbl.Hashfull(0) })
	}

	logger.Printf("allocated %d MB, %d clusters", flgHash, tbl.ClusterCount())

	var wg sync.WaitGroup
	for t := 0; t < flgThreads; t++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			runWorker(tbl, seed, flgProbes)
		}(int64(t) + 1)
	}

	for s := 0; s < flgSearches; s++ {
		tbl.NewSearch()
	}

	wg.Wait()

	fmt.Printf("generation=%d hashfull(0)=%d/1000\n", tbl.Generation(), tbl.Hashfull(0))

	dumpLimit := 10
	fmt.Printf("sample of up to %d occupied entries:\n", dumpLimit)
	tbl.DebugDump(os.Stdout, dumpLimit)

	if reader != nil {
		printMetrics(reader)
	}
}

// printMetrics collects and prints the counters and gauges recorded by a
// ManualReader-backed telemetry.Collector. This is a convenience for
// inspecting the demo run, not a general-purpose exporter.
func printMetrics(reader *otelmetric.ManualReader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		fmt.Fprintf(os.Stderr, "ttdemo: metrics collect error: %v\n", err)
		return
	}
	fmt.Println("metrics:")
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				fmt.Printf("  %s = %d\n", m.Name, total)
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					fmt.Printf("  %s = %d\n", m.Name, data.DataPoints[len(data.DataPoints)-1].Value)
				}
			}
		}
	}
}

func runWorker(tbl *transtable.TranspositionTable, seed int64, n int) {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		key := rng.Uint64()
		hit, data, w := tbl.Probe(key)

		depth := 1 + rng.Intn(60)
		bound := transtable.Bound(1 + rng.Intn(3))
		move := uint16(rng.Intn(1 << 16))
		value := int16(rng.Intn(20000) - 10000)
		evalv := int16(rng.Intn(20000) - 10000)
		isPV := rng.Intn(4) == 0

		if hit {
			depth = data.Depth
		}
		w.Write(key, value, isPV, bound, depth, move, evalv, false)
	}
}
