// Package main provides the unified service: it keeps bar data and run
// artifacts behind HTTP endpoints, launches backtests on demand, and
// streams run progress over WebSocket.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"equity-backtest-lab/internal/backtest"
	"equity-backtest-lab/internal/config"
	"equity-backtest-lab/internal/decision"
	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/storage"
	chstore "equity-backtest-lab/internal/storage/clickhouse"
	"equity-backtest-lab/internal/storage/memory"
	"equity-backtest-lab/internal/storage/migrations"
	pgstore "equity-backtest-lab/internal/storage/postgres"
	"equity-backtest-lab/internal/strategy"
	"equity-backtest-lab/internal/stream"
)

// Server holds all components of the unified service.
type Server struct {
	cfg      *config.Config
	stores   backtest.Stores
	barStore storage.BarStore
	hub      *stream.Hub
	logger   *log.Logger
	zlogger  *zap.Logger

	mu         sync.Mutex
	started    time.Time
	lastRunID  string
	lastRunAt  time.Time
	runsTotal  int
	runRunning bool
}

func main() {
	loadEnvFile()

	configPath := flag.String("config", "", "Path to YAML config (required)")
	addr := flag.String("addr", "", "Listen address (overrides config server host/port)")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *configPath == "" {
		logger.Fatal("--config is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	zlogger, err := zap.NewProduction()
	if err != nil {
		logger.Fatalf("Create logger: %v", err)
	}
	defer zlogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, barStore, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Create stores: %v", err)
	}
	defer cleanup()

	server := &Server{
		cfg:      cfg,
		stores:   stores,
		barStore: barStore,
		hub:      stream.NewHub(nil),
		logger:   logger,
		zlogger:  zlogger,
		started:  time.Now(),
	}
	defer server.hub.Close()

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: server.routes(),
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
		close(done)
	}()

	logger.Printf("Listening on %s", listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}
	<-done
	logger.Println("Shutdown complete")
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/ws", s.hub)

	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/gate", s.handleGetGate)
	mux.HandleFunc("GET /strategies/{id}/runs", s.handleListRuns)

	return mux
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	RunsTotal  int       `json:"runs_total"`
	RunRunning bool      `json:"run_running"`
	WSClients  int       `json:"ws_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).String(),
		LastRunID:  s.lastRunID,
		LastRunAt:  s.lastRunAt,
		RunsTotal:  s.runsTotal,
		RunRunning: s.runRunning,
	}
	s.mu.Unlock()
	resp.WSClients = s.hub.ClientCount()

	writeJSON(w, http.StatusOK, resp)
}

// StartRunRequest optionally narrows the run to a subset of the configured
// symbols.
type StartRunRequest struct {
	Symbols []string `json:"symbols,omitempty"`
}

// handleStartRun launches a backtest in the background. One run at a time;
// progress goes out over /ws.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = s.cfg.Data.Symbols
	}

	s.mu.Lock()
	if s.runRunning {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	s.runRunning = true
	s.mu.Unlock()

	go s.executeRun(symbols)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "started",
		"symbols": symbols,
	})
}

// executeRun performs one backtest and broadcasts its lifecycle.
func (s *Server) executeRun(symbols []string) {
	defer func() {
		s.mu.Lock()
		s.runRunning = false
		s.mu.Unlock()
	}()

	ctx := context.Background()

	series, err := s.loadSeries(ctx, symbols)
	if err != nil {
		s.logger.Printf("Load bars: %v", err)
		return
	}
	strat, err := strategy.FromConfig(s.cfg.Strategy)
	if err != nil {
		s.logger.Printf("Build strategy: %v", err)
		return
	}

	engineCfg := domain.EngineConfig{
		InitialCash:        s.cfg.Engine.InitialCash,
		CommissionPerShare: s.cfg.Engine.CommissionPerShare,
		SlippageBps:        s.cfg.Engine.SlippageBps,
	}
	runner := backtest.NewRunner(engineCfg, strat, s.stores, s.zlogger)
	runner.Observe(stream.NewObserver(s.hub, ""))

	s.hub.Broadcast(stream.Event{Type: stream.EventRunStarted})
	result, err := runner.Run(ctx, symbols, series)
	if err != nil {
		s.logger.Printf("Run failed: %v", err)
		s.hub.Broadcast(stream.Event{Type: stream.EventRunCompleted, Status: "error"})
		return
	}

	s.mu.Lock()
	s.lastRunID = result.Run.RunID
	s.lastRunAt = time.Now()
	s.runsTotal++
	s.mu.Unlock()

	s.hub.Broadcast(stream.Event{
		Type:   stream.EventRunCompleted,
		RunID:  result.Run.RunID,
		Status: "success",
		Run:    result.Run,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.stores.Runs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetGate(w http.ResponseWriter, r *http.Request) {
	run, err := s.stores.Runs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	result := decision.NewEvaluator(decision.DefaultCriteria()).Evaluate(run)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.stores.Runs.GetByStrategy(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// loadSeries reads one bar series per symbol, from CSV files when csv_dir
// is set and from the bar store otherwise.
func (s *Server) loadSeries(ctx context.Context, symbols []string) (map[string][]domain.Bar, error) {
	series := make(map[string][]domain.Bar, len(symbols))
	for _, symbol := range symbols {
		var bars []domain.Bar

		if s.cfg.Data.CSVDir != "" {
			loaded, err := marketdata.LoadCSVFile(filepath.Join(s.cfg.Data.CSVDir, symbol+".csv"), symbol)
			if err != nil {
				return nil, err
			}
			for _, b := range loaded {
				if b.TimestampMs < s.cfg.Data.StartMs {
					continue
				}
				if s.cfg.Data.EndMs > 0 && b.TimestampMs > s.cfg.Data.EndMs {
					continue
				}
				bars = append(bars, b)
			}
		} else {
			end := s.cfg.Data.EndMs
			if end == 0 {
				end = int64(^uint64(0) >> 1)
			}
			stored, err := s.barStore.GetByTimeRange(ctx, symbol, s.cfg.Data.StartMs, end)
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

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config) (backtest.Stores, storage.BarStore, func(), error) {
	if cfg.Storage.Backend == config.BackendMemory {
		stores := backtest.Stores{
			Runs:        memory.NewRunStore(),
			Fills:       memory.NewFillStore(),
			EquityCurve: memory.NewEquityCurveStore(),
		}
		return stores, memory.NewBarStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return backtest.Stores{}, nil, nil, fmt.Errorf("connect to postgres: %w", err)
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
		conn.Close()
		pool.Close()
	}
	return stores, chstore.NewBarStore(conn), cleanup, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if err == storage.ErrNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// loadEnvFile loads environment variables from a .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
