// Package idhash derives deterministic identifiers from run inputs, so
// identical inputs always map to the same record key.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"equity-backtest-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(strategy_id|symbols,...|initial_cash|commission|slippage|start_ms|end_ms)
// Returns hex-encoded hash (64 characters). Symbols are joined in the
// order the run registers them, so symbol order is part of the identity.
func ComputeRunID(
	strategyID string,
	symbols []string,
	cfg domain.EngineConfig,
	startMs, endMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%g|%g|%g|%d|%d",
		strategyID,
		strings.Join(symbols, ","),
		cfg.InitialCash,
		cfg.CommissionPerShare,
		cfg.SlippageBps,
		startMs,
		endMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
