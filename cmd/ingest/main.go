package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/storage"
	chstore "equity-backtest-lab/internal/storage/clickhouse"
	"equity-backtest-lab/internal/storage/memory"
	"equity-backtest-lab/internal/storage/migrations"
)

func main() {
	csvDir := flag.String("csv-dir", "", "Directory with one <symbol>.csv file per symbol")
	symbols := flag.String("symbols", "", "Comma-separated symbols to ingest (default: every .csv in the directory)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Parse and validate only, using in-memory storage")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	if *csvDir == "" {
		logger.Fatal("--csv-dir is required")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, aborting", sig)
		cancel()
	}()

	var barStore storage.BarStore
	if *useMemory {
		barStore = memory.NewBarStore()
	} else {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn or CLICKHOUSE_DSN is required without --use-memory")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("ClickHouse setup failed: %v", err)
		}
		defer conn.Close()
		barStore = chstore.NewBarStore(conn)
	}

	symbolList, err := resolveSymbols(*csvDir, *symbols)
	if err != nil {
		logger.Fatalf("Resolve symbols: %v", err)
	}
	if len(symbolList) == 0 {
		logger.Fatal("No symbols to ingest")
	}
	logger.Printf("Ingesting %d symbols: %v", len(symbolList), symbolList)

	total := 0
	for _, symbol := range symbolList {
		if ctx.Err() != nil {
			logger.Fatalf("Aborted: %v", ctx.Err())
		}

		path := filepath.Join(*csvDir, symbol+".csv")
		bars, err := marketdata.LoadCSVFile(path, symbol)
		if err != nil {
			observability.RecordIngestionError("parse")
			logger.Fatalf("Load %s: %v", path, err)
		}

		rows := make([]*domain.Bar, len(bars))
		for i := range bars {
			rows[i] = &bars[i]
		}
		if err := barStore.InsertBulk(ctx, rows); err != nil {
			observability.RecordIngestionError("insert")
			logger.Fatalf("Insert %s: %v", symbol, err)
		}

		observability.RecordBarsIngested(len(bars))
		total += len(bars)
		logger.Printf("Ingested %d bars for %s", len(bars), symbol)
	}

	logger.Printf("Done: %d bars across %d symbols", total, len(symbolList))
}

// resolveSymbols returns the explicit symbol list when given, and otherwise
// derives one from the .csv files present in the directory.
func resolveSymbols(csvDir, symbols string) ([]string, error) {
	if symbols != "" {
		var out []string
		for _, s := range strings.Split(symbols, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}

	entries, err := os.ReadDir(csvDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".csv"))
	}
	return out, nil
}
