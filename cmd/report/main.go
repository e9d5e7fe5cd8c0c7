package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"equity-backtest-lab/internal/decision"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/reporting"
	"equity-backtest-lab/internal/storage"
	chstore "equity-backtest-lab/internal/storage/clickhouse"
	"equity-backtest-lab/internal/storage/migrations"
	pgstore "equity-backtest-lab/internal/storage/postgres"
)

func main() {
	runID := flag.String("run-id", "", "Run ID to report on (required)")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	gate := flag.Bool("gate", true, "Also render the promotion gate report")
	flag.Parse()

	ctx := context.Background()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run-id is required")
		os.Exit(1)
	}
	if *postgresDSN == "" || *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn are required")
		os.Exit(1)
	}

	runStore, fillStore, curveStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	generator := reporting.NewGenerator(runStore, fillStore, curveStore)
	report, err := generator.Generate(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	files := map[string]string{
		"REPORT.md":        reporting.RenderMarkdown(report),
		"fills.csv":        reporting.RenderFillsCSV(report.Fills),
		"equity_curve.csv": reporting.RenderEquityCurveCSV(report.EquityCurve),
	}
	if *gate {
		result := decision.NewEvaluator(decision.DefaultCriteria()).Evaluate(report.Run)
		files["PROMOTION_GATE.md"] = decision.RenderMarkdown(result)
	}

	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
	}
	observability.RecordReportRendered()
}

// createStores connects to both databases and returns the result stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string) (storage.RunStore, storage.FillStore, storage.EquityCurveStore, func(), error) {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return pgstore.NewRunStore(pool), pgstore.NewFillStore(pool), chstore.NewEquityCurveStore(conn), cleanup, nil
}
