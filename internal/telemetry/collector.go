// Package telemetry adapts transtable.MetricsCollector onto OpenTelemetry
// instruments.
//
// Copyright (c) 2025 Corvid Chess contributors
// SPDX-License-Identifier: MPL-2.0
package telemetry

import (
	"context"
	"errors"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"github.com/corvidchess/transtable"
)

// Collector implements transtable.MetricsCollector using OpenTelemetry.
// The dependency runs one way: this package imports transtable and
// go.opentelemetry.io/otel/metric, while transtable imports nothing from
// OpenTelemetry, so it never pulls in an OTEL SDK just to support this
// optional adapter.
//
// Metrics exposed:
//
//	transtable_probe_hits_total
//	transtable_probe_misses_total
//	transtable_writes_accepted_total
//	transtable_writes_skipped_total
//	transtable_resizes_total
//	transtable_clears_total
//	transtable_size_megabytes
//	transtable_hashfull_permille (observable gauge, see SetHashfullSource)
type Collector struct {
	probeHits      metric.Int64Counter
	probeMisses    metric.Int64Counter
	writeOK        metric.Int64Counter
	writeSkip      metric.Int64Counter
	resizes        metric.Int64Counter
	clears         metric.Int64Counter
	sizeMB         metric.Int64Gauge
	hashfullSource atomic.Pointer[func() uint16]
}

// Options configures a Collector.
type Options struct {
	// MeterName is the OpenTelemetry meter name. Default:
	// "github.com/corvidchess/transtable".
	MeterName string
}

// Option is a functional option for New.
type Option func(*Options)

// WithMeterName overrides the default meter name.
func WithMeterName(name string) Option {
	return func(o *Options) { o.MeterName = name }
}

// New creates a Collector backed by provider. provider must not be nil.
func New(provider metric.MeterProvider, opts ...Option) (*Collector, error) {
	if provider == nil {
		return nil, errors.New("meter provider cannot be nil")
	}

	options := Options{MeterName: "github.com/corvidchess/transtable"}
	for _, opt := range opts {
		opt(&options)
	}

	meter := provider.Meter(options.MeterName)
	c := &Collector{}
	var err error

	c.probeHits, err = meter.Int64Counter("transtable_probe_hits_total",
		metric.WithDescription("Total number of transposition table probe hits"))
	if err != nil {
		return nil, err
	}
	c.probeMisses, err = meter.Int64Counter("transtable_probe_misses_total",
		metric.WithDescription("Total number of transposition table probe misses"))
	if err != nil {
		return nil, err
	}
	c.writeOK, err = meter.Int64Counter("transtable_writes_accepted_total",
		metric.WithDescription("Total number of writes that overwrote a slot"))
	if err != nil {
		return nil, err
	}
	c.writeSkip, err = meter.Int64Counter("transtable_writes_skipped_total",
		metric.WithDescription("Total number of writes the replacement policy skipped"))
	if err != nil {
		return nil, err
	}
	c.resizes, err = meter.Int64Counter("transtable_resizes_total",
		metric.WithDescription("Total number of table resizes"))
	if err != nil {
		return nil, err
	}
	c.clears, err = meter.Int64Counter("transtable_clears_total",
		metric.WithDescription("Total number of table clears"))
	if err != nil {
		return nil, err
	}
	c.sizeMB, err = meter.Int64Gauge("transtable_size_megabytes",
		metric.WithDescription("Current table size in megabytes"))
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge("transtable_hashfull_permille",
		metric.WithDescription("Approximate per-mille occupancy, sampled from the hashfull source"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if src := c.hashfullSource.Load(); src != nil {
				o.Observe(int64((*src)()))
			}
			return nil
		}))
	if err != nil {
		return nil, err
	}

	return c, nil
}

// SetHashfullSource registers the function the hashfull gauge samples from
// on every collection. Callers typically pass tbl.Hashfull's bound form,
// e.g. func() uint16 { return tbl.Hashfull(0) }, once the table this
// Collector is attached to has been constructed. Until a source is set,
// the gauge reports no data points.
func (c *Collector) SetHashfullSource(source func() uint16) {
	c.hashfullSource.Store(&source)
}

// RecordProbe implements transtable.MetricsCollector.
func (c *Collector) RecordProbe(hit bool) {
	ctx := context.Background()
	if hit {
		c.probeHits.Add(ctx, 1)
	} else {
		c.probeMisses.Add(ctx, 1)
	}
}

// RecordWrite implements transtable.MetricsCollector.
func (c *Collector) RecordWrite(accepted bool) {
	ctx := context.Background()
	if accepted {
		c.writeOK.Add(ctx, 1)
	} else {
		c.writeSkip.Add(ctx, 1)
	}
}

// RecordResize implements transtable.MetricsCollector.
func (c *Collector) RecordResize(mb int) {
	ctx := context.Background()
	c.resizes.Add(ctx, 1)
	c.sizeMB.Record(ctx, int64(mb))
}

// RecordClear implements transtable.MetricsCollector.
func (c *Collector) RecordClear() {
	c.clears.Add(context.Background(), 1)
}

var _ transtable.MetricsCollector = (*Collector)(nil)
