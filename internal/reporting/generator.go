package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equity-backtest-lab/internal/storage"
)

// Generator assembles run reports from stores.
type Generator struct {
	runStore   storage.RunStore
	fillStore  storage.FillStore
	curveStore storage.EquityCurveStore
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore, fillStore storage.FillStore, curveStore storage.EquityCurveStore) *Generator {
	return &Generator{
		runStore:   runStore,
		fillStore:  fillStore,
		curveStore: curveStore,
	}
}

// Generate loads a run and its artifacts into a Report. A run without
// fills is valid; the fill section is simply empty.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	fills, err := g.fillStore.GetByRunID(ctx, runID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load fills for %s: %w", runID, err)
	}

	curve, err := g.curveStore.GetByRunID(ctx, runID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load equity curve for %s: %w", runID, err)
	}

	return &Report{
		GeneratedAt: time.Now().UTC(),
		Run:         run,
		Fills:       fills,
		EquityCurve: curve,
	}, nil
}
