package strategy

import (
	"testing"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/ledger"
)

// fakeTrader records submissions and serves canned positions.
type fakeTrader struct {
	submitted []*domain.Order
	positions map[string]ledger.Position
}

func newFakeTrader() *fakeTrader {
	return &fakeTrader{positions: make(map[string]ledger.Position)}
}

func (f *fakeTrader) Submit(o *domain.Order) error {
	f.submitted = append(f.submitted, o)
	return nil
}

func (f *fakeTrader) Cancel(_ *domain.Order) error { return nil }

func (f *fakeTrader) Position(symbol string) ledger.Position {
	return f.positions[symbol]
}

func bars(closes ...float64) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{
			Symbol:      "TEST",
			TimestampMs: int64(i+1) * 1000,
			Open:        c,
			High:        c + 1,
			Low:         c - 1,
			Close:       c,
			Volume:      100,
		}
	}
	return out
}

func TestBuyHold_EntersOncePerSymbol(t *testing.T) {
	trader := newFakeTrader()
	s := NewBuyHoldStrategy(100)
	s.Bind(trader)

	history := bars(100, 101, 102)
	s.OnBar("AAPL", history[:1], true)
	s.OnBar("AAPL", history[:2], true)
	s.OnBar("MSFT", history[:1], true)

	if len(trader.submitted) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(trader.submitted))
	}
	o := trader.submitted[0]
	if o.Symbol != "AAPL" || o.Side != domain.OrderSideBuy || o.Qty != 100 || o.Kind != domain.OrderKindMarket {
		t.Errorf("unexpected first order: %+v", o)
	}
	if trader.submitted[1].Symbol != "MSFT" {
		t.Errorf("expected second order for MSFT, got %s", trader.submitted[1].Symbol)
	}
}

func TestBuyHold_ID(t *testing.T) {
	if got := NewBuyHoldStrategy(100).ID(); got != "buy_hold_100" {
		t.Errorf("ID() = %q", got)
	}
}

func TestSMACross_GoesLongOnCrossAbove(t *testing.T) {
	trader := newFakeTrader()
	s := NewSMACrossStrategy(2, 3, 50)
	s.Bind(trader)

	// Downtrend then sharp reversal: short SMA crosses above long SMA
	// on the last bar.
	history := bars(105, 104, 103, 102, 110)
	for i := 1; i <= len(history); i++ {
		s.OnBar("TEST", history[:i], true)
	}

	if len(trader.submitted) != 1 {
		t.Fatalf("expected 1 order, got %d", len(trader.submitted))
	}
	o := trader.submitted[0]
	if o.Side != domain.OrderSideBuy || o.Qty != 50 {
		t.Errorf("unexpected order: %+v", o)
	}
}

func TestSMACross_FlattensOnCrossBelow(t *testing.T) {
	trader := newFakeTrader()
	trader.positions["TEST"] = ledger.Position{Qty: 50, AvgCost: 105}
	s := NewSMACrossStrategy(2, 3, 50)
	s.Bind(trader)

	// Uptrend then sharp drop: short SMA crosses below long SMA.
	history := bars(100, 101, 102, 103, 95)
	for i := 1; i <= len(history); i++ {
		s.OnBar("TEST", history[:i], true)
	}

	if len(trader.submitted) != 1 {
		t.Fatalf("expected 1 order, got %d", len(trader.submitted))
	}
	o := trader.submitted[0]
	if o.Side != domain.OrderSideSell || o.Qty != 50 {
		t.Errorf("unexpected order: %+v", o)
	}
}

func TestSMACross_NoTradeBeforeWarmup(t *testing.T) {
	trader := newFakeTrader()
	s := NewSMACrossStrategy(2, 3, 50)
	s.Bind(trader)

	history := bars(100, 110, 120)
	for i := 1; i <= len(history); i++ {
		s.OnBar("TEST", history[:i], true)
	}

	if len(trader.submitted) != 0 {
		t.Fatalf("expected no orders during warmup, got %d", len(trader.submitted))
	}
}

func TestSMACross_PendingBlocksResubmission(t *testing.T) {
	trader := newFakeTrader()
	s := NewSMACrossStrategy(2, 3, 50)
	s.Bind(trader)

	history := bars(105, 104, 103, 102, 110, 115)
	for i := 1; i <= len(history); i++ {
		s.OnBar("TEST", history[:i], true)
	}

	// The cross at bar 5 submits; bar 6 must not submit again while the
	// order is unresolved.
	if len(trader.submitted) != 1 {
		t.Fatalf("expected 1 order, got %d", len(trader.submitted))
	}

	// A fill clears the block.
	s.OnFill(&domain.Order{Symbol: "TEST"}, &domain.Fill{Symbol: "TEST"})
	if s.pending["TEST"] {
		t.Error("pending flag not cleared after fill")
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantID  string
		wantErr error
	}{
		{
			name:   "buy hold",
			cfg:    Config{Type: TypeBuyHold, Qty: 100},
			wantID: "buy_hold_100",
		},
		{
			name:   "sma cross",
			cfg:    Config{Type: TypeSMACross, Qty: 50, ShortPeriod: 10, LongPeriod: 30},
			wantID: "sma_cross_10_30",
		},
		{
			name:    "unknown type",
			cfg:     Config{Type: "momentum"},
			wantErr: ErrUnknownStrategyType,
		},
		{
			name:    "missing qty",
			cfg:     Config{Type: TypeBuyHold},
			wantErr: ErrNonPositiveQty,
		},
		{
			name:    "inverted periods",
			cfg:     Config{Type: TypeSMACross, Qty: 50, ShortPeriod: 30, LongPeriod: 10},
			wantErr: ErrInvalidPeriods,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromConfig(tt.cfg)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.ID() != tt.wantID {
				t.Errorf("ID() = %q, want %q", s.ID(), tt.wantID)
			}
		})
	}
}
