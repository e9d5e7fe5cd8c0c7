package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"equity-backtest-lab/internal/backtest"
	"equity-backtest-lab/internal/config"
	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/storage"
	chstore "equity-backtest-lab/internal/storage/clickhouse"
	"equity-backtest-lab/internal/storage/memory"
	"equity-backtest-lab/internal/storage/migrations"
	pgstore "equity-backtest-lab/internal/storage/postgres"
	"equity-backtest-lab/internal/strategy"
	"equity-backtest-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (required)")
	outputJSON := flag.Bool("json", false, "Output run record as JSON")
	verify := flag.Bool("verify", false, "Re-run after persisting and compare artifacts")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *configPath == "" {
		logger.Fatal("--config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
		cancel()
	}()

	stores, barStore, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Fatal("set up storage", zap.Error(err))
	}
	defer cleanup()

	series, err := loadSeries(ctx, cfg, barStore)
	if err != nil {
		logger.Fatal("load bars", zap.Error(err))
	}

	strat, err := strategy.FromConfig(cfg.Strategy)
	if err != nil {
		logger.Fatal("build strategy", zap.Error(err))
	}

	engineCfg := domain.EngineConfig{
		InitialCash:        cfg.Engine.InitialCash,
		CommissionPerShare: cfg.Engine.CommissionPerShare,
		SlippageBps:        cfg.Engine.SlippageBps,
	}

	runner := backtest.NewRunner(engineCfg, strat, stores, logger)
	result, err := runner.Run(ctx, cfg.Data.Symbols, series)
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}

	if *verify && stores.Runs != nil {
		replayStrat, err := strategy.FromConfig(cfg.Strategy)
		if err != nil {
			logger.Fatal("build replay strategy", zap.Error(err))
		}
		replayRunner := backtest.NewRunner(engineCfg, replayStrat, backtest.Stores{}, zap.NewNop())

		verifier := verification.NewVerifier(stores.Runs, stores.Fills)
		vr, err := verifier.VerifyRun(ctx, result.Run.RunID, replayRunner, series)
		if err != nil {
			logger.Fatal("verification failed", zap.Error(err))
		}
		if !vr.Match {
			for _, d := range vr.Divergences {
				logger.Error("divergence",
					zap.String("field", d.Field),
					zap.Any("expected", d.Expected),
					zap.Any("actual", d.Actual),
				)
			}
			logger.Fatal("run is not reproducible", zap.String("run_id", vr.RunID))
		}
		logger.Info("run verified reproducible", zap.String("run_id", vr.RunID))
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result.Run, "", "  ")
		fmt.Println(string(output))
	} else {
		printRun(result.Run)
	}
}

// buildStores wires the result stores and the bar source for the configured
// backend. The returned cleanup closes whatever connections were opened.
func buildStores(ctx context.Context, cfg *config.Config) (backtest.Stores, storage.BarStore, func(), error) {
	if cfg.Storage.Backend == config.BackendMemory {
		stores := backtest.Stores{
			Runs:        memory.NewRunStore(),
			Fills:       memory.NewFillStore(),
			EquityCurve: memory.NewEquityCurveStore(),
		}
		return stores, memory.NewBarStore(), func() {}, nil
	}

	// database backend: Postgres for runs and fills, ClickHouse for bars
	// and equity curves.
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return backtest.Stores{}, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return backtest.Stores{}, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return backtest.Stores{}, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := backtest.Stores{
		Runs:        pgstore.NewRunStore(pool),
		Fills:       pgstore.NewFillStore(pool),
		EquityCurve: chstore.NewEquityCurveStore(conn),
	}
	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return stores, chstore.NewBarStore(conn), cleanup, nil
}

// loadSeries reads one bar series per configured symbol, from CSV files
// when csv_dir is set and from the bar store otherwise.
func loadSeries(ctx context.Context, cfg *config.Config, barStore storage.BarStore) (map[string][]domain.Bar, error) {
	series := make(map[string][]domain.Bar, len(cfg.Data.Symbols))

	for _, symbol := range cfg.Data.Symbols {
		var bars []domain.Bar
		var err error

		if cfg.Data.CSVDir != "" {
			path := filepath.Join(cfg.Data.CSVDir, symbol+".csv")
			bars, err = marketdata.LoadCSVFile(path, symbol)
			if err != nil {
				return nil, err
			}
			bars = filterRange(bars, cfg.Data.StartMs, cfg.Data.EndMs)
		} else {
			end := cfg.Data.EndMs
			if end == 0 {
				end = int64(^uint64(0) >> 1)
			}
			stored, err := barStore.GetByTimeRange(ctx, symbol, cfg.Data.StartMs, end)
			if err != nil {
				return nil, fmt.Errorf("load %s from store: %w", symbol, err)
			}
			bars = make([]domain.Bar, len(stored))
			for i, b := range stored {
				bars[i] = *b
			}
		}

		series[symbol] = bars
	}

	return series, nil
}

// filterRange keeps bars within [startMs, endMs]; endMs 0 means no upper
// bound.
func filterRange(bars []domain.Bar, startMs, endMs int64) []domain.Bar {
	var out []domain.Bar
	for _, b := range bars {
		if b.TimestampMs < startMs {
			continue
		}
		if endMs > 0 && b.TimestampMs > endMs {
			continue
		}
		out = append(out, b)
	}
	return out
}

// printRun outputs a human-readable run summary.
func printRun(r *domain.RunRecord) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:           %s\n", r.RunID)
	fmt.Printf("Strategy:         %s\n", r.StrategyID)
	fmt.Printf("Symbols:          %v\n", r.Symbols)
	fmt.Printf("Window:           %d .. %d (ms)\n", r.StartMs, r.EndMs)
	fmt.Println()

	fmt.Println("Outcome:")
	fmt.Printf("  Initial Cash:   %.2f\n", r.InitialCash)
	fmt.Printf("  Final Equity:   %.2f\n", r.FinalEquity)
	fmt.Printf("  Total Return:   %.4f%%\n", r.TotalReturn*100)
	fmt.Printf("  Max Drawdown:   %.4f%%\n", r.MaxDrawdown*100)
	fmt.Printf("  Sharpe:         %.4f\n", r.Sharpe)
	fmt.Printf("  Realized P&L:   %.2f\n", r.RealizedPnL)
	fmt.Printf("  Win Rate:       %.4f (%d round trips)\n", r.WinRate, r.RoundTrips)
	fmt.Printf("  Fills:          %d\n", r.FillCount)
	fmt.Printf("  Bars Replayed:  %d\n", r.BarCount)
}
