// Package runner drives timed, concurrent benchmark loops and aggregates
// the latency distribution.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/Efreh/sqlOptimizer/internal/database"
)

// Histogram bounds, in microseconds.
const (
	histogramMin = 1
	histogramMax = 60_000_000
)

// Operation runs one unit of work on a driver.
type Operation func(ctx context.Context, drv database.Driver) error

// DriverFactory opens a fresh connection for one worker. Drivers are not
// safe for concurrent use, so every worker gets its own.
type DriverFactory func(ctx context.Context) (database.Driver, error)

// Options shape a benchmark window.
type Options struct {
	Variant     string
	Concurrency int
	Duration    time.Duration
	Warmup      time.Duration
}

// Result captures one benchmark window. Latencies are milliseconds.
type Result struct {
	Variant     string  `json:"variant"`
	Concurrency int     `json:"concurrency"`
	Operations  int64   `json:"operations"`
	Errors      int64   `json:"errors"`
	ErrorRate   float64 `json:"error_rate"`
	Elapsed     float64 `json:"elapsed_seconds"`
	Throughput  float64 `json:"throughput_ops_sec"`
	AvgLatency  float64 `json:"avg_latency_ms"`
	P50         float64 `json:"p50_ms"`
	P95         float64 `json:"p95_ms"`
	P99         float64 `json:"p99_ms"`
	Max         float64 `json:"max_ms"`
}

// Bench runs op concurrently until the window closes. Each worker records
// into its own histogram; the histograms are merged only after every worker
// has stopped, so nothing is shared while the clock runs. Operations started
// during the warmup are discarded.
func Bench(ctx context.Context, factory DriverFactory, op Operation, opts Options) (*Result, error) {
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", opts.Concurrency)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}

	var operations, failures atomic.Int64
	histograms := make([]*hdrhistogram.Histogram, opts.Concurrency)
	workerErrs := make([]error, opts.Concurrency)

	benchCtx, cancel := context.WithTimeout(ctx, opts.Warmup+opts.Duration)
	defer cancel()

	start := time.Now()
	measureFrom := start.Add(opts.Warmup)

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		hist := hdrhistogram.New(histogramMin, histogramMax, 3)
		histograms[i] = hist

		wg.Add(1)
		go func(worker int, hist *hdrhistogram.Histogram) {
			defer wg.Done()

			drv, err := factory(benchCtx)
			if err != nil {
				workerErrs[worker] = fmt.Errorf("worker %d: %w", worker, err)
				cancel()
				return
			}
			defer drv.Close(context.Background())

			for {
				select {
				case <-benchCtx.Done():
					return
				default:
				}

				began := time.Now()
				err := op(benchCtx, drv)
				took := time.Since(began)

				if began.Before(measureFrom) {
					continue
				}
				if err != nil {
					if benchCtx.Err() != nil {
						return
					}
					failures.Add(1)
					continue
				}
				operations.Add(1)
				_ = hist.RecordValue(clamp(took.Microseconds()))
			}
		}(i, hist)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range workerErrs {
		if err != nil {
			return nil, err
		}
	}

	elapsed := time.Since(start) - opts.Warmup
	if elapsed <= 0 {
		elapsed = opts.Duration
	}

	merged := hdrhistogram.New(histogramMin, histogramMax, 3)
	for _, h := range histograms {
		merged.Merge(h)
	}

	ops := operations.Load()
	errs := failures.Load()
	res := &Result{
		Variant:     opts.Variant,
		Concurrency: opts.Concurrency,
		Operations:  ops,
		Errors:      errs,
		Elapsed:     elapsed.Seconds(),
		Throughput:  float64(ops) / elapsed.Seconds(),
	}
	if total := ops + errs; total > 0 {
		res.ErrorRate = float64(errs) / float64(total)
	}
	if merged.TotalCount() > 0 {
		res.AvgLatency = merged.Mean() / 1000
		res.P50 = float64(merged.ValueAtQuantile(50)) / 1000
		res.P95 = float64(merged.ValueAtQuantile(95)) / 1000
		res.P99 = float64(merged.ValueAtQuantile(99)) / 1000
		res.Max = float64(merged.Max()) / 1000
	}
	return res, nil
}

func clamp(us int64) int64 {
	if us < histogramMin {
		return histogramMin
	}
	if us > histogramMax {
		return histogramMax
	}
	return us
}
