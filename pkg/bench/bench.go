// Package bench times repeated replays of the same transaction against
// warm vs. cold object caches, reporting p50/p95/p99 latency (SPEC_FULL
// §10.x, grounded on `src/benchmark/
// ptb_eval.rs`'s evaluation-loop shape and `pkg/metrics`'s prometheus
// histogram idiom for the duration observations).
package bench

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sui-sandbox/replay/pkg/replay"
	"github.com/sui-sandbox/replay/pkg/types"
)

// EngineFactory builds a fresh replay.Engine, e.g. wiring a new,
// empty object cache for a cold run or reusing a warmed one.
type EngineFactory func() *replay.Engine

// Report is the egress artifact for one benchmark run: the same
// transaction replayed Iterations times, either against one engine
// instance reused across iterations (WarmCache) or a fresh one per
// iteration (cold).
type Report struct {
	Digest     string
	Iterations int
	WarmCache  bool
	Min        time.Duration
	Max        time.Duration
	Mean       time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration

	// FinalOutcome holds the last iteration's outcome so a caller can
	// sanity-check the benchmark actually reached the expected reason
	// code rather than silently timing a string of MissingObject misses.
	FinalOutcome *types.OutcomeRecord
}

// durationHistogram wraps a prometheus.Histogram with the raw samples it
// observed, so callers get both a scrape-able collector and exact
// (not bucket-estimated) percentiles.
type durationHistogram struct {
	histogram prometheus.Histogram
	samples   []time.Duration
}

func newDurationHistogram(digest string) *durationHistogram {
	return &durationHistogram{
		histogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "sui_replay_bench_duration_seconds",
			Help:        "Per-iteration replay duration observed by a benchmark run",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"digest": digest},
		}),
	}
}

func (h *durationHistogram) observe(d time.Duration) {
	h.histogram.Observe(d.Seconds())
	h.samples = append(h.samples, d)
}

// Collector returns the underlying prometheus.Histogram for registration
// with a caller's registry.
func (h *durationHistogram) Collector() prometheus.Histogram {
	return h.histogram
}

func (h *durationHistogram) percentile(p float64) time.Duration {
	if len(h.samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(h.samples))
	copy(sorted, h.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// Run replays tx against newEngine() Iterations times, timing each
// attempt. When warmCache is true, newEngine is called once and the same
// Engine (and its object/package caches) is reused across iterations, so
// only the first iteration pays any cold-fetch cost; when false, a fresh
// Engine is built every iteration, re-paying that cost each time.
func Run(ctx context.Context, newEngine EngineFactory, tx replay.Transaction, iterations int, warmCache bool) (Report, error) {
	if iterations <= 0 {
		return Report{}, fmt.Errorf("bench: iterations must be positive, got %d", iterations)
	}

	hist := newDurationHistogram(tx.Digest)
	var engine *replay.Engine
	if warmCache {
		engine = newEngine()
	}

	var total time.Duration
	var outcome *types.OutcomeRecord
	for i := 0; i < iterations; i++ {
		if !warmCache {
			engine = newEngine()
		}

		start := time.Now()
		result, err := engine.Replay(ctx, tx)
		elapsed := time.Since(start)
		if err != nil {
			return Report{}, fmt.Errorf("bench: replay iteration %d: %w", i, err)
		}

		hist.observe(elapsed)
		total += elapsed
		outcome = result
	}

	report := Report{
		Digest:       tx.Digest,
		Iterations:   iterations,
		WarmCache:    warmCache,
		Min:          hist.percentile(0),
		Max:          hist.percentile(1),
		Mean:         total / time.Duration(iterations),
		P50:          hist.percentile(0.50),
		P95:          hist.percentile(0.95),
		P99:          hist.percentile(0.99),
		FinalOutcome: outcome,
	}
	return report, nil
}
