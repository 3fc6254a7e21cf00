// Package report assembles one lab run's plans, timings and verification
// probes into a single document and renders it as JSON or terminal text.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Efreh/sqlOptimizer/internal/plan"
	"github.com/Efreh/sqlOptimizer/internal/runner"
	"github.com/Efreh/sqlOptimizer/internal/seed"
)

// Parity compares the two query variants' totals for one user. A nil total
// is a SQL NULL, which the variants must agree on too.
type Parity struct {
	UserID         int64    `json:"user_id"`
	BaselineTotal  *float64 `json:"baseline_total"`
	OptimizedTotal *float64 `json:"optimized_total"`
	Tolerance      float64  `json:"tolerance"`
	Match          bool     `json:"match"`
}

// Fanout reports how the shared-column orders join multiplies cart rows for
// one user before aggregation.
type Fanout struct {
	UserID       int64   `json:"user_id"`
	CartRows     int64   `json:"cart_rows"`
	ActiveOrders int64   `json:"active_orders"`
	JoinRows     int64   `json:"join_rows"`
	Multiplier   float64 `json:"multiplier"`
}

// Plans holds the captured execution plans for both variants, before and
// after the indexes exist.
type Plans struct {
	BaselinePreIndex   *plan.Report `json:"baseline_pre_index,omitempty"`
	OptimizedPreIndex  *plan.Report `json:"optimized_pre_index,omitempty"`
	BaselinePostIndex  *plan.Report `json:"baseline_post_index,omitempty"`
	OptimizedPostIndex *plan.Report `json:"optimized_post_index,omitempty"`
}

// Comparison is the full output of one lab run.
type Comparison struct {
	RunID     string         `json:"run_id"`
	Engine    string         `json:"engine"`
	StartedAt time.Time      `json:"started_at"`
	DataSet   *seed.Summary  `json:"data_set,omitempty"`
	Plans     Plans          `json:"plans"`
	Baseline  *runner.Result `json:"baseline,omitempty"`
	Optimized *runner.Result `json:"optimized,omitempty"`
	Speedup   float64        `json:"speedup,omitempty"`
	Parity    *Parity        `json:"parity,omitempty"`
	Fanout    *Fanout        `json:"fanout,omitempty"`
	Insights  []plan.Insight `json:"insights,omitempty"`
}

// New starts an empty comparison for the engine with a fresh run ID.
func New(engine string) *Comparison {
	return &Comparison{
		RunID:     uuid.NewString(),
		Engine:    engine,
		StartedAt: time.Now().UTC(),
	}
}

// ComputeSpeedup fills Speedup as the ratio of the two average latencies.
// It is a no-op until both benchmark results are present.
func (c *Comparison) ComputeSpeedup() {
	if c.Baseline == nil || c.Optimized == nil || c.Optimized.AvgLatency <= 0 {
		return
	}
	c.Speedup = c.Baseline.AvgLatency / c.Optimized.AvgLatency
}

// WriteJSON renders the comparison as indented JSON.
func (c *Comparison) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteText renders a terminal summary.
func (c *Comparison) WriteText(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "cart total lab  engine=%s  run=%s\n", c.Engine, c.RunID)
	fmt.Fprintln(&b, rule)

	if c.DataSet != nil {
		fmt.Fprintf(&b, "data set: %d users, %d products, %d orders, %d cart items\n",
			c.DataSet.Users, c.DataSet.Products, c.DataSet.Orders, c.DataSet.CartItems)
	}

	writePlans(&b, c.Plans)

	if c.Baseline != nil || c.Optimized != nil {
		fmt.Fprintln(&b, "\nbenchmarks:")
		writeResult(&b, c.Baseline)
		writeResult(&b, c.Optimized)
		if c.Speedup > 0 {
			fmt.Fprintf(&b, "  speedup: %.2fx (average latency)\n", c.Speedup)
		}
	}

	if c.Parity != nil {
		fmt.Fprintf(&b, "\nparity: user %d baseline=%s optimized=%s tolerance=%.3f match=%t\n",
			c.Parity.UserID, fmtTotal(c.Parity.BaselineTotal), fmtTotal(c.Parity.OptimizedTotal),
			c.Parity.Tolerance, c.Parity.Match)
	}
	if c.Fanout != nil {
		fmt.Fprintf(&b, "fanout: user %d has %d cart rows and %d active orders, the join returns %d rows (%.1fx)\n",
			c.Fanout.UserID, c.Fanout.CartRows, c.Fanout.ActiveOrders, c.Fanout.JoinRows, c.Fanout.Multiplier)
	}

	if len(c.Insights) > 0 {
		fmt.Fprintln(&b, "\ninsights:")
		for _, in := range c.Insights {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", in.Level, in.Category, in.Message)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writePlans(b *strings.Builder, p Plans) {
	rows := []struct {
		label string
		rep   *plan.Report
	}{
		{"baseline  pre-index ", p.BaselinePreIndex},
		{"optimized pre-index ", p.OptimizedPreIndex},
		{"baseline  post-index", p.BaselinePostIndex},
		{"optimized post-index", p.OptimizedPostIndex},
	}

	wrote := false
	for _, row := range rows {
		if row.rep == nil {
			continue
		}
		if !wrote {
			fmt.Fprintln(b, "\nplans:")
			wrote = true
		}
		fmt.Fprintf(b, "  %s  scans=%v indexes=%v peak_rows=%d\n",
			row.label, row.rep.TableScans, row.rep.IndexesUsed, row.rep.PeakActualRows)
	}
}

func writeResult(b *strings.Builder, r *runner.Result) {
	if r == nil {
		return
	}
	fmt.Fprintf(b, "  %-9s  %d ops in %.1fs  %.1f ops/s  avg %.2fms  p50 %.2fms  p95 %.2fms  p99 %.2fms  errors %d\n",
		r.Variant, r.Operations, r.Elapsed, r.Throughput, r.AvgLatency, r.P50, r.P95, r.P99, r.Errors)
}

func fmtTotal(v *float64) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%.2f", *v)
}
