// Package backtest wires market data, the engine, one strategy, and the
// result stores into a single reproducible run.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/engine"
	"equity-backtest-lab/internal/idhash"
	"equity-backtest-lab/internal/metrics"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/storage"
	"equity-backtest-lab/internal/strategy"
)

// ErrNoData is returned when a run is started without any bars.
var ErrNoData = errors.New("backtest: no bars to replay")

// Stores groups the optional persistence targets of a run. A nil Stores
// (or nil members) means results stay in memory only.
type Stores struct {
	Runs        storage.RunStore
	Fills       storage.FillStore
	EquityCurve storage.EquityCurveStore
}

// Result holds the complete output of one run.
type Result struct {
	Run           *domain.RunRecord
	Fills         []*domain.Fill
	EquityCurve   []*domain.EquityPoint
	HandlerPanics int
}

// Runner executes one strategy over one set of bar series.
type Runner struct {
	cfg    domain.EngineConfig
	strat  strategy.Strategy
	stores Stores
	logger *zap.Logger
	extra  []engine.Observer
}

// NewRunner creates a runner. logger must not be nil; pass zap.NewNop()
// when logging is unwanted.
func NewRunner(cfg domain.EngineConfig, strat strategy.Strategy, stores Stores, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		strat:  strat,
		stores: stores,
		logger: logger,
	}
}

// Observe registers an additional observer subscribed after the strategy
// on every run, for progress streaming and similar side channels.
func (r *Runner) Observe(obs engine.Observer) {
	r.extra = append(r.extra, obs)
}

// Run replays every series to exhaustion, force-flattens open positions at
// the final price, computes metrics, and persists the run record, fill
// log, and equity curve. symbols fixes the registration order, which is
// part of the run identity.
func (r *Runner) Run(ctx context.Context, symbols []string, series map[string][]domain.Bar) (*Result, error) {
	started := time.Now()
	startMs, endMs, barCount := window(symbols, series)
	if barCount == 0 {
		return nil, ErrNoData
	}

	eng := engine.New(r.cfg)
	for _, symbol := range symbols {
		if err := eng.RegisterSeries(symbol, series[symbol]); err != nil {
			return nil, err
		}
	}

	r.strat.Bind(eng)
	eng.Subscribe(r.strat)
	for _, obs := range r.extra {
		eng.Subscribe(obs)
	}

	runID := idhash.ComputeRunID(r.strat.ID(), symbols, r.cfg, startMs, endMs)
	r.logger.Info("starting backtest run",
		zap.String("run_id", runID),
		zap.String("strategy", r.strat.ID()),
		zap.Strings("symbols", symbols),
		zap.Int("bars", barCount),
	)

	var curve []*domain.EquityPoint
	for {
		advanced, err := eng.Step()
		if err != nil {
			return nil, fmt.Errorf("step: %w", err)
		}
		if !advanced {
			break
		}
		curve = sample(curve, visibleTimestamp(eng), eng.Equity(), eng.Cash())
	}

	// Close out whatever is still open at the last traded price, then take
	// the final equity sample so the curve ends flat.
	for _, symbol := range symbols {
		pos := eng.Position(symbol)
		if pos.Qty == 0 {
			continue
		}
		price, ok := eng.LastPrice(symbol)
		if !ok {
			continue
		}
		if err := eng.ForceFlatten(symbol, price, endMs); err != nil {
			return nil, fmt.Errorf("force flatten %s: %w", symbol, err)
		}
		r.logger.Info("force-flattened position",
			zap.String("run_id", runID),
			zap.String("symbol", symbol),
			zap.Int64("qty", pos.Qty),
			zap.Float64("price", price),
		)
	}
	curve = sample(curve, endMs, eng.Equity(), eng.Cash())

	fills := eng.Fills()
	m := metrics.Compute(r.cfg.InitialCash, curve, fills)

	realized := 0.0
	for _, symbol := range symbols {
		realized += eng.Position(symbol).RealizedPnL
	}

	run := &domain.RunRecord{
		RunID:              runID,
		StrategyID:         r.strat.ID(),
		Symbols:            symbols,
		InitialCash:        r.cfg.InitialCash,
		CommissionPerShare: r.cfg.CommissionPerShare,
		SlippageBps:        r.cfg.SlippageBps,
		StartMs:            startMs,
		EndMs:              endMs,
		FinalEquity:        eng.Equity(),
		TotalReturn:        m.TotalReturn,
		MaxDrawdown:        m.MaxDrawdown,
		Sharpe:             m.Sharpe,
		RealizedPnL:        realized,
		WinRate:            m.WinRate,
		RoundTrips:         m.RoundTrips,
		FillCount:          len(fills),
		BarCount:           barCount,
	}

	if err := r.persist(ctx, run, fills, curve); err != nil {
		return nil, err
	}

	if panics := eng.HandlerPanics(); panics > 0 {
		r.logger.Warn("strategy handler panics recovered",
			zap.String("run_id", runID),
			zap.Int("count", panics),
		)
		observability.RecordObserverPanics(panics)
	}
	observability.RecordRunCompleted("success", time.Since(started).Seconds(),
		int64(barCount), int64(len(fills)))
	r.logger.Info("backtest run complete",
		zap.String("run_id", runID),
		zap.Float64("final_equity", run.FinalEquity),
		zap.Float64("total_return", run.TotalReturn),
		zap.Int("fills", run.FillCount),
	)

	return &Result{
		Run:           run,
		Fills:         fills,
		EquityCurve:   curve,
		HandlerPanics: eng.HandlerPanics(),
	}, nil
}

// persist writes run artifacts to whichever stores are configured. A
// duplicate run record means the identical run was already recorded, which
// is expected for reproducible inputs; artifacts are then left untouched.
func (r *Runner) persist(ctx context.Context, run *domain.RunRecord, fills []*domain.Fill, curve []*domain.EquityPoint) error {
	if r.stores.Runs == nil {
		return nil
	}

	err := r.stores.Runs.Insert(ctx, run)
	if errors.Is(err, storage.ErrDuplicateKey) {
		r.logger.Info("run already recorded, skipping persistence",
			zap.String("run_id", run.RunID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist run: %w", err)
	}

	if r.stores.Fills != nil {
		if err := r.stores.Fills.InsertBulk(ctx, run.RunID, fills); err != nil {
			return fmt.Errorf("persist fills: %w", err)
		}
	}
	if r.stores.EquityCurve != nil {
		if err := r.stores.EquityCurve.InsertBulk(ctx, run.RunID, curve); err != nil {
			return fmt.Errorf("persist equity curve: %w", err)
		}
	}
	return nil
}

// window returns the time span and total bar count across all series.
func window(symbols []string, series map[string][]domain.Bar) (startMs, endMs int64, barCount int) {
	for _, symbol := range symbols {
		bars := series[symbol]
		if len(bars) == 0 {
			continue
		}
		if barCount == 0 || bars[0].TimestampMs < startMs {
			startMs = bars[0].TimestampMs
		}
		if last := bars[len(bars)-1].TimestampMs; last > endMs {
			endMs = last
		}
		barCount += len(bars)
	}
	return startMs, endMs, barCount
}

// visibleTimestamp returns the latest bar timestamp visible across all
// symbols, which stamps the equity sample for the step just completed.
func visibleTimestamp(eng *engine.Engine) int64 {
	var ts int64
	for _, symbol := range eng.Symbols() {
		h := eng.History(symbol)
		if len(h) == 0 {
			continue
		}
		if last := h[len(h)-1].TimestampMs; last > ts {
			ts = last
		}
	}
	return ts
}

// sample appends an equity point, replacing the previous one when the
// timestamp has not advanced (staggered series can end on the same stamp).
func sample(curve []*domain.EquityPoint, ts int64, equity, cash float64) []*domain.EquityPoint {
	p := &domain.EquityPoint{TimestampMs: ts, Equity: equity, Cash: cash}
	if n := len(curve); n > 0 && curve[n-1].TimestampMs >= ts {
		curve[n-1] = p
		return curve
	}
	return append(curve, p)
}
