package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	run := r.Run
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", run.RunID))
	sb.WriteString(fmt.Sprintf("Strategy: `%s` | Symbols: %s\n\n",
		run.StrategyID, strings.Join(run.Symbols, ", ")))

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Cash | %.2f |\n", run.InitialCash))
	sb.WriteString(fmt.Sprintf("| Commission / Share | %.4f |\n", run.CommissionPerShare))
	sb.WriteString(fmt.Sprintf("| Slippage (bps) | %.2f |\n", run.SlippageBps))
	sb.WriteString(fmt.Sprintf("| Window Start (ms) | %d |\n", run.StartMs))
	sb.WriteString(fmt.Sprintf("| Window End (ms) | %d |\n", run.EndMs))
	sb.WriteString("\n")

	// Outcome
	sb.WriteString("## Outcome\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", run.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Total Return | %.4f%% |\n", run.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f%% |\n", run.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("| Sharpe | %.4f |\n", run.Sharpe))
	sb.WriteString(fmt.Sprintf("| Realized P&L | %.2f |\n", run.RealizedPnL))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", run.WinRate))
	sb.WriteString(fmt.Sprintf("| Round Trips | %d |\n", run.RoundTrips))
	sb.WriteString(fmt.Sprintf("| Fills | %d |\n", run.FillCount))
	sb.WriteString(fmt.Sprintf("| Bars Replayed | %d |\n", run.BarCount))
	sb.WriteString("\n")

	// Fills
	sb.WriteString("## Fills\n\n")
	if len(r.Fills) > 0 {
		sb.WriteString("| Order | Symbol | Side | Qty | Price | Commission | Timestamp (ms) |\n")
		sb.WriteString("|-------|--------|------|-----|-------|------------|----------------|\n")
		for _, f := range r.Fills {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %.4f | %.4f | %d |\n",
				f.OrderID, f.Symbol, f.Side, f.Qty, f.Price, f.Commission, f.TimestampMs))
		}
	} else {
		sb.WriteString("No fills recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
