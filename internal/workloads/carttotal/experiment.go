package carttotal

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/Efreh/sqlOptimizer/internal/config"
	"github.com/Efreh/sqlOptimizer/internal/database"
	"github.com/Efreh/sqlOptimizer/internal/migrations"
	"github.com/Efreh/sqlOptimizer/internal/plan"
	"github.com/Efreh/sqlOptimizer/internal/report"
	"github.com/Efreh/sqlOptimizer/internal/runner"
	"github.com/Efreh/sqlOptimizer/internal/seed"
)

// Experiment wires one engine through the lab: reset, migrate, seed, capture
// plans, benchmark both variants, verify, report.
type Experiment struct {
	Engine  string
	DSN     string
	Seed    seed.Profile
	Options runner.Options
	// UserID is the user the plan captures and verification probes target.
	// Benchmark workers query random seeded users instead.
	UserID int64
	Logger zerolog.Logger
}

// New builds an experiment for one engine from the loaded configuration.
func New(cfg *config.Config, engine string, logger zerolog.Logger) (*Experiment, error) {
	dsn := cfg.Databases.DSN(engine)
	if dsn == "" {
		return nil, fmt.Errorf("no DSN configured for engine %q", engine)
	}
	duration, err := cfg.BenchDuration()
	if err != nil {
		return nil, err
	}
	warmup, err := cfg.BenchWarmup()
	if err != nil {
		return nil, err
	}

	return &Experiment{
		Engine: engine,
		DSN:    dsn,
		Seed: seed.Profile{
			Users:       cfg.Seed.Users,
			Products:    cfg.Seed.Products,
			Orders:      cfg.Seed.Orders,
			CartItems:   cfg.Seed.CartItems,
			ActiveRatio: cfg.Seed.ActiveRatio,
			Seed:        cfg.Seed.Seed,
		},
		Options: runner.Options{
			Concurrency: cfg.Bench.Concurrency,
			Duration:    duration,
			Warmup:      warmup,
		},
		UserID: seed.DemoUserID,
		Logger: logger,
	}, nil
}

// Setup drops whatever is left from earlier runs, creates the base schema
// and seeds it. The three indexes do not exist afterwards.
func (e *Experiment) Setup(ctx context.Context) (*seed.Summary, error) {
	drv, err := database.Open(ctx, e.Engine, e.DSN)
	if err != nil {
		return nil, err
	}
	defer drv.Close(ctx)

	e.Logger.Info().Str("engine", e.Engine).Msg("resetting schema")
	if err := drv.Reset(ctx); err != nil {
		return nil, err
	}
	if err := migrations.Base(e.Engine, e.DSN); err != nil {
		return nil, err
	}

	e.Logger.Info().
		Int("users", e.Seed.Users).
		Int("products", e.Seed.Products).
		Int("orders", e.Seed.Orders).
		Int("cart_items", e.Seed.CartItems).
		Int64("seed", e.Seed.Seed).
		Msg("seeding data set")
	summary, err := seed.Run(ctx, drv, e.Seed)
	if err != nil {
		return nil, err
	}

	if err := drv.RefreshStats(ctx); err != nil {
		return nil, fmt.Errorf("refresh stats: %w", err)
	}
	return summary, nil
}

// ApplyIndexes creates the three indexes.
func (e *Experiment) ApplyIndexes() error {
	e.Logger.Info().Str("engine", e.Engine).Msg("applying index migration")
	return migrations.ApplyIndexes(e.Engine, e.DSN)
}

// RollbackIndexes drops the three indexes.
func (e *Experiment) RollbackIndexes() error {
	e.Logger.Info().Str("engine", e.Engine).Msg("rolling back index migration")
	return migrations.RollbackIndexes(e.Engine, e.DSN)
}

// ExplainVariant captures the execution plan of one variant for the pinned
// user.
func (e *Experiment) ExplainVariant(ctx context.Context, variant string, indexed bool) (*plan.Report, error) {
	query, err := QueryFor(variant)
	if err != nil {
		return nil, err
	}
	drv, err := database.Open(ctx, e.Engine, e.DSN)
	if err != nil {
		return nil, err
	}
	defer drv.Close(ctx)

	rep, err := drv.Explain(ctx, query, e.UserID)
	if err != nil {
		return nil, fmt.Errorf("explain %s: %w", variant, err)
	}
	rep.Variant = variant
	rep.Indexed = indexed

	e.Logger.Debug().
		Str("variant", variant).
		Bool("indexed", indexed).
		Strs("indexes_used", rep.IndexesUsed).
		Strs("table_scans", rep.TableScans).
		Int64("peak_actual_rows", rep.PeakActualRows).
		Msg("captured plan")
	return rep, nil
}

// Bench runs one variant's timed loop. Every worker opens its own connection
// and queries a random seeded user per operation.
func (e *Experiment) Bench(ctx context.Context, variant string) (*runner.Result, error) {
	query, err := QueryFor(variant)
	if err != nil {
		return nil, err
	}

	factory := func(ctx context.Context) (database.Driver, error) {
		return database.Open(ctx, e.Engine, e.DSN)
	}
	users := int64(e.Seed.Users)
	op := func(ctx context.Context, drv database.Driver) error {
		var total *float64
		return drv.QueryRow(ctx, query, 1+rand.Int63n(users)).Scan(&total)
	}

	opts := e.Options
	opts.Variant = variant
	e.Logger.Info().
		Str("variant", variant).
		Int("concurrency", opts.Concurrency).
		Dur("duration", opts.Duration).
		Dur("warmup", opts.Warmup).
		Msg("benchmark window")
	return runner.Bench(ctx, factory, op, opts)
}

// paritySampleSize is how many extra users Verify probes beyond the pinned
// one.
const paritySampleSize = 8

// Verify runs the parity and fanout probes. Parity is checked for the pinned
// user plus a sample of others; a disagreement is reported for the user that
// produced it.
func (e *Experiment) Verify(ctx context.Context) (*report.Parity, *report.Fanout, error) {
	drv, err := database.Open(ctx, e.Engine, e.DSN)
	if err != nil {
		return nil, nil, err
	}
	defer drv.Close(ctx)

	parity, err := VerifyParity(ctx, drv, e.UserID)
	if err != nil {
		return nil, nil, err
	}
	rng := rand.New(rand.NewSource(e.Seed.Seed))
	for i := 0; parity.Match && i < paritySampleSize; i++ {
		sampled, err := VerifyParity(ctx, drv, 1+rng.Int63n(int64(e.Seed.Users)))
		if err != nil {
			return nil, nil, err
		}
		if !sampled.Match {
			parity = sampled
		}
	}

	fanout, err := MeasureFanout(ctx, drv, e.UserID)
	if err != nil {
		return nil, nil, err
	}
	return parity, fanout, nil
}

// probeTotals captures both variants' totals for the pinned user, used to
// check that the index migration changed plans but not results.
func (e *Experiment) probeTotals(ctx context.Context) (baseline, optimized *float64, err error) {
	drv, err := database.Open(ctx, e.Engine, e.DSN)
	if err != nil {
		return nil, nil, err
	}
	defer drv.Close(ctx)

	if baseline, err = TotalCost(ctx, drv, VariantBaseline, e.UserID); err != nil {
		return nil, nil, err
	}
	if optimized, err = TotalCost(ctx, drv, VariantOptimized, e.UserID); err != nil {
		return nil, nil, err
	}
	return baseline, optimized, nil
}

// Teardown drops the lab tables.
func (e *Experiment) Teardown(ctx context.Context) error {
	drv, err := database.Open(ctx, e.Engine, e.DSN)
	if err != nil {
		return err
	}
	defer drv.Close(ctx)
	return drv.Reset(ctx)
}

// Run executes the full pipeline. The baseline variant is measured on the
// bare schema, the optimized variant after the index migration, matching how
// the before and after plans were captured in the original tuning pass.
func (e *Experiment) Run(ctx context.Context) (*report.Comparison, error) {
	cmp := report.New(e.Engine)

	summary, err := e.Setup(ctx)
	if err != nil {
		return nil, err
	}
	cmp.DataSet = summary

	if cmp.Plans.BaselinePreIndex, err = e.ExplainVariant(ctx, VariantBaseline, false); err != nil {
		return nil, err
	}
	if cmp.Plans.OptimizedPreIndex, err = e.ExplainVariant(ctx, VariantOptimized, false); err != nil {
		return nil, err
	}
	if cmp.Baseline, err = e.Bench(ctx, VariantBaseline); err != nil {
		return nil, err
	}

	preBase, preOpt, err := e.probeTotals(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.ApplyIndexes(); err != nil {
		return nil, err
	}

	postBase, postOpt, err := e.probeTotals(ctx)
	if err != nil {
		return nil, err
	}
	if !totalsAgree(preBase, postBase) || !totalsAgree(preOpt, postOpt) {
		return nil, fmt.Errorf("index migration changed totals for user %d", e.UserID)
	}

	if cmp.Plans.BaselinePostIndex, err = e.ExplainVariant(ctx, VariantBaseline, true); err != nil {
		return nil, err
	}
	if cmp.Plans.OptimizedPostIndex, err = e.ExplainVariant(ctx, VariantOptimized, true); err != nil {
		return nil, err
	}
	if cmp.Optimized, err = e.Bench(ctx, VariantOptimized); err != nil {
		return nil, err
	}
	cmp.ComputeSpeedup()

	if cmp.Parity, cmp.Fanout, err = e.Verify(ctx); err != nil {
		return nil, err
	}
	cmp.Insights = deriveInsights(cmp)

	e.Logger.Info().
		Str("run_id", cmp.RunID).
		Float64("speedup", cmp.Speedup).
		Bool("parity", cmp.Parity.Match).
		Msg("run complete")
	return cmp, nil
}
