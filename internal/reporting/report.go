package reporting

import (
	"time"

	"equity-backtest-lab/internal/domain"
)

// Report is the renderable view of one completed run.
type Report struct {
	GeneratedAt time.Time

	Run         *domain.RunRecord
	Fills       []*domain.Fill
	EquityCurve []*domain.EquityPoint
}
