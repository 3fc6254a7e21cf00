package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/Efreh/sqlOptimizer/internal/config"
	"github.com/Efreh/sqlOptimizer/internal/database"
	"github.com/Efreh/sqlOptimizer/internal/migrations"
	"github.com/Efreh/sqlOptimizer/internal/report"
	"github.com/Efreh/sqlOptimizer/internal/workloads/carttotal"
)

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	engine := flag.String("engine", database.EnginePostgres, "database engine (postgres, mysql, or sqlite)")
	phase := flag.String("phase", "run", "phase to execute (run, setup, queries, explain, bench, verify, indexes-up, indexes-down, teardown)")
	variant := flag.String("variant", carttotal.VariantOptimized, "query variant for explain and bench (baseline or optimized)")
	concurrency := flag.Int("concurrency", 0, "benchmark workers, overrides config")
	duration := flag.Duration("duration", 0, "benchmark window, overrides config")
	warmup := flag.Duration("warmup", 0, "benchmark warmup, overrides config")
	userID := flag.Int64("user", 0, "user for explain and verify probes, overrides the pinned demo user")
	seedValue := flag.Int64("seed", 0, "data set seed, overrides config")
	jsonOut := flag.Bool("json", false, "emit the run report as JSON instead of text")
	debug := flag.Bool("debug", false, "enable debug logging")

	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// A missing default config file is fine; an explicitly named one is not.
	path := *configPath
	if !set["config"] {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		exitCode = 1
		return
	}

	if set["concurrency"] {
		cfg.Bench.Concurrency = *concurrency
	}
	if set["duration"] {
		cfg.Bench.Duration = duration.String()
	}
	if set["warmup"] {
		cfg.Bench.Warmup = warmup.String()
	}
	if set["seed"] {
		cfg.Seed.Seed = *seedValue
	}

	exp, err := carttotal.New(cfg, *engine, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build experiment")
		exitCode = 1
		return
	}
	if set["user"] {
		exp.UserID = *userID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *phase {
	case "run":
		cmp, err := exp.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("run failed")
			exitCode = 1
			return
		}
		if err := writeReport(cmp, *jsonOut); err != nil {
			logger.Error().Err(err).Msg("failed to write report")
			exitCode = 1
		}
		if cmp.Parity != nil && !cmp.Parity.Match {
			logger.Error().Msg("variants disagree")
			exitCode = 1
		}

	case "setup":
		summary, err := exp.Setup(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("setup failed")
			exitCode = 1
			return
		}
		if err := printJSON(summary); err != nil {
			logger.Error().Err(err).Msg("failed to write summary")
			exitCode = 1
		}

	case "queries":
		ddl, err := migrations.IndexDDL(*engine)
		if err != nil {
			logger.Error().Err(err).Msg("failed to read index DDL")
			exitCode = 1
			return
		}
		out := struct {
			Baseline  string `json:"baseline"`
			Optimized string `json:"optimized"`
			IndexDDL  string `json:"index_ddl"`
		}{carttotal.BaselineQuery, carttotal.OptimizedQuery, ddl}
		if err := printJSON(out); err != nil {
			logger.Error().Err(err).Msg("failed to write queries")
			exitCode = 1
		}

	case "explain":
		version, _, err := migrations.Version(*engine, exp.DSN)
		if err != nil {
			logger.Error().Err(err).Msg("failed to read schema version")
			exitCode = 1
			return
		}
		rep, err := exp.ExplainVariant(ctx, *variant, version >= migrations.VersionIndexes)
		if err != nil {
			logger.Error().Err(err).Msg("explain failed")
			exitCode = 1
			return
		}
		if err := printJSON(rep); err != nil {
			logger.Error().Err(err).Msg("failed to write plan")
			exitCode = 1
		}

	case "bench":
		result, err := exp.Bench(ctx, *variant)
		if err != nil {
			logger.Error().Err(err).Msg("benchmark failed")
			exitCode = 1
			return
		}
		if err := printJSON(result); err != nil {
			logger.Error().Err(err).Msg("failed to write result")
			exitCode = 1
		}

	case "verify":
		parity, fanout, err := exp.Verify(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("verification failed")
			exitCode = 1
			return
		}
		out := struct {
			Parity *report.Parity `json:"parity"`
			Fanout *report.Fanout `json:"fanout"`
		}{parity, fanout}
		if err := printJSON(out); err != nil {
			logger.Error().Err(err).Msg("failed to write verification")
			exitCode = 1
		}
		if !parity.Match {
			logger.Error().Msg("variants disagree")
			exitCode = 1
		}

	case "indexes-up":
		if err := exp.ApplyIndexes(); err != nil {
			logger.Error().Err(err).Msg("index migration failed")
			exitCode = 1
		}

	case "indexes-down":
		if err := exp.RollbackIndexes(); err != nil {
			logger.Error().Err(err).Msg("index rollback failed")
			exitCode = 1
		}

	case "teardown":
		if err := exp.Teardown(ctx); err != nil {
			logger.Error().Err(err).Msg("teardown failed")
			exitCode = 1
		}

	default:
		logger.Error().Str("phase", *phase).Msg("unsupported phase")
		exitCode = 1
	}
}

func writeReport(cmp *report.Comparison, asJSON bool) error {
	if asJSON {
		return cmp.WriteJSON(os.Stdout)
	}
	return cmp.WriteText(os.Stdout)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
