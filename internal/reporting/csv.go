package reporting

import (
	"fmt"
	"strings"

	"equity-backtest-lab/internal/domain"
)

// RenderFillsCSV renders a fill log as CSV string, in resolution order.
func RenderFillsCSV(fills []*domain.Fill) string {
	var sb strings.Builder

	sb.WriteString("order_id,symbol,side,qty,price,commission,timestamp_ms\n")

	for _, f := range fills {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%.6f,%.6f,%d\n",
			f.OrderID,
			f.Symbol,
			f.Side,
			f.Qty,
			f.Price,
			f.Commission,
			f.TimestampMs,
		))
	}

	return sb.String()
}

// RenderEquityCurveCSV renders an equity curve as CSV string, in time order.
func RenderEquityCurveCSV(points []*domain.EquityPoint) string {
	var sb strings.Builder

	sb.WriteString("timestamp_ms,equity,cash\n")

	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%d,%.6f,%.6f\n",
			p.TimestampMs,
			p.Equity,
			p.Cash,
		))
	}

	return sb.String()
}
