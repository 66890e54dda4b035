package risk

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/walidbouh09/tradesense/pkg/types"
)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

var featStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func mkTrade(id string, pnl, qty, price float64, at time.Time) types.Trade {
	return types.Trade{
		TradeID:     id,
		ChallengeID: "ch_1",
		Symbol:      "EURUSD",
		Side:        types.TradeSideBuy,
		Quantity:    dec(qty),
		Price:       dec(price),
		RealizedPnL: dec(pnl),
		ExecutedAt:  at,
	}
}

func TestComputeEmptyHistoryReturnsDefaults(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	fs := e.Compute(nil, featStart, featStart.Add(time.Hour))
	if !reflect.DeepEqual(fs, DefaultFeatureSet()) {
		t.Errorf("expected default feature set, got %+v", fs)
	}
	if !fs.ProfitFactor.Equal(dec(1)) {
		t.Errorf("expected neutral profit factor 1, got %s", fs.ProfitFactor)
	}
	if !fs.AnalysisPeriodHours.Equal(dec(1)) {
		t.Errorf("expected 1 hour floor, got %s", fs.AnalysisPeriodHours)
	}
}

func TestComputeSkipsMalformedTrades(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	trades := []types.Trade{
		mkTrade("bad-qty", 100, 0, 1.08, featStart),
		mkTrade("bad-price", 100, 1, -1, featStart),
		{TradeID: "bad-time", Quantity: dec(1), Price: dec(1)},
	}
	fs := e.Compute(trades, featStart, featStart.Add(time.Hour))
	if fs.TotalTrades != 0 {
		t.Errorf("expected all trades skipped, got %d", fs.TotalTrades)
	}

	// One valid trade among garbage still counts.
	trades = append(trades, mkTrade("good", 50, 1, 1.08, featStart))
	fs = e.Compute(trades, featStart, featStart.Add(time.Hour))
	if fs.TotalTrades != 1 {
		t.Errorf("expected 1 valid trade, got %d", fs.TotalTrades)
	}
}

func TestComputeBasicStatistics(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	// Four trades in one hour: pnls 100, -50, 100, -50.
	trades := []types.Trade{
		mkTrade("t1", 100, 1, 100, featStart),
		mkTrade("t2", -50, 1, 100, featStart.Add(15*time.Minute)),
		mkTrade("t3", 100, 1, 100, featStart.Add(30*time.Minute)),
		mkTrade("t4", -50, 1, 100, featStart.Add(45*time.Minute)),
	}
	fs := e.Compute(trades, featStart, featStart.Add(time.Hour))

	if !fs.AvgTradePnL.Equal(dec(25)) {
		t.Errorf("expected avg pnl 25, got %s", fs.AvgTradePnL)
	}
	// Population stdev of {100,-50,100,-50} around mean 25 is 75.
	if !fs.PnLVolatility.Equal(dec(75)) {
		t.Errorf("expected volatility 75, got %s", fs.PnLVolatility)
	}
	if !fs.WinRate.Equal(dec(50)) {
		t.Errorf("expected win rate 50, got %s", fs.WinRate)
	}
	// 200 won over 100 lost.
	if !fs.ProfitFactor.Equal(dec(2)) {
		t.Errorf("expected profit factor 2, got %s", fs.ProfitFactor)
	}
	if !fs.TradesPerHour.Equal(dec(4)) {
		t.Errorf("expected 4 trades per hour, got %s", fs.TradesPerHour)
	}
	if fs.TotalTrades != 4 {
		t.Errorf("expected 4 trades, got %d", fs.TotalTrades)
	}
}

func TestProfitFactorNeutralWithoutLosses(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	trades := []types.Trade{
		mkTrade("t1", 100, 1, 100, featStart),
		mkTrade("t2", 200, 1, 100, featStart.Add(time.Minute)),
	}
	fs := e.Compute(trades, featStart, featStart.Add(time.Hour))
	if !fs.ProfitFactor.Equal(dec(1)) {
		t.Errorf("expected profit factor 1 with no losses, got %s", fs.ProfitFactor)
	}
}

func TestTrailingLossStreak(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	trades := []types.Trade{
		mkTrade("t1", -10, 1, 100, featStart),
		mkTrade("t2", 20, 1, 100, featStart.Add(time.Minute)),
		mkTrade("t3", -5, 1, 100, featStart.Add(2*time.Minute)),
		mkTrade("t4", -5, 1, 100, featStart.Add(3*time.Minute)),
		mkTrade("t5", -5, 1, 100, featStart.Add(4*time.Minute)),
	}
	fs := e.Compute(trades, featStart, featStart.Add(time.Hour))
	if fs.LossStreak != 3 {
		t.Errorf("expected trailing streak 3, got %d", fs.LossStreak)
	}

	// A winning last trade resets the streak to zero.
	trades = append(trades, mkTrade("t6", 1, 1, 100, featStart.Add(5*time.Minute)))
	fs = e.Compute(trades, featStart, featStart.Add(time.Hour))
	if fs.LossStreak != 0 {
		t.Errorf("expected streak 0, got %d", fs.LossStreak)
	}
}

func TestMaxIntradayDrawdown(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	day2 := featStart.Add(24 * time.Hour)
	trades := []types.Trade{
		// Day one walks 10000 -> 9500 -> 9700 -> 9000: a 10% trough.
		mkTrade("t1", -500, 1, 100, featStart),
		mkTrade("t2", 200, 1, 100, featStart.Add(time.Hour)),
		mkTrade("t3", -700, 1, 100, featStart.Add(2*time.Hour)),
		// Day two only dips 1%.
		mkTrade("t4", -100, 1, 100, day2),
	}
	fs := e.Compute(trades, featStart, day2.Add(time.Hour))
	if !fs.MaxIntradayDrawdown.Equal(dec(10)) {
		t.Errorf("expected worst intraday drawdown 10, got %s", fs.MaxIntradayDrawdown)
	}

	// Mean absolute loss (500+700+100)/3 over the 10000 reference.
	if !fs.DrawdownSpeed.Equal(dec(4.33)) {
		t.Errorf("expected drawdown speed 4.33, got %s", fs.DrawdownSpeed)
	}
}

func TestRevengeTradingScore(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	// Pair one: loss at notional 100 followed by notional 200 (>1.2x).
	// Pair two: loss at notional 200 followed by notional 50.
	trades := []types.Trade{
		mkTrade("t1", -10, 1, 100, featStart),
		mkTrade("t2", -10, 2, 100, featStart.Add(time.Minute)),
		mkTrade("t3", 5, 1, 50, featStart.Add(2*time.Minute)),
	}
	fs := e.Compute(trades, featStart, featStart.Add(time.Hour))
	if !fs.RevengeTradingScore.Equal(dec(50)) {
		t.Errorf("expected revenge score 50, got %s", fs.RevengeTradingScore)
	}
}

func TestRevengeTradingScoreNeedsThreeTrades(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	trades := []types.Trade{
		mkTrade("t1", -10, 1, 100, featStart),
		mkTrade("t2", -10, 10, 100, featStart.Add(time.Minute)),
	}
	fs := e.Compute(trades, featStart, featStart.Add(time.Hour))
	if !fs.RevengeTradingScore.IsZero() {
		t.Errorf("expected zero with fewer than three trades, got %s", fs.RevengeTradingScore)
	}
}

func TestAnalysisPeriodSpansStartToNow(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	trades := []types.Trade{
		mkTrade("t1", 10, 1, 100, featStart.Add(2*time.Hour)),
	}
	// Challenge started two hours before the trade, observed five hours
	// after it: seven hours total.
	fs := e.Compute(trades, featStart, featStart.Add(7*time.Hour))
	if !fs.AnalysisPeriodHours.Equal(dec(7)) {
		t.Errorf("expected 7 hour period, got %s", fs.AnalysisPeriodHours)
	}
}

func TestComputeDeterministic(t *testing.T) {
	e := NewEngineer(zap.NewNop())

	trades := []types.Trade{
		mkTrade("t1", 100, 1, 100, featStart),
		mkTrade("t2", -80, 2, 120, featStart.Add(10*time.Minute)),
		mkTrade("t3", -40, 3, 90, featStart.Add(20*time.Minute)),
	}
	now := featStart.Add(2 * time.Hour)

	first := e.Compute(trades, featStart, now)
	for i := 0; i < 5; i++ {
		if got := e.Compute(trades, featStart, now); !reflect.DeepEqual(got, first) {
			t.Fatalf("feature computation not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestCustomReferenceBalance(t *testing.T) {
	e := NewEngineerWithReference(zap.NewNop(), dec(1000))

	trades := []types.Trade{
		mkTrade("t1", -100, 1, 100, featStart),
	}
	fs := e.Compute(trades, featStart, featStart.Add(time.Hour))
	// 100 lost against a 1000 reference is a 10% trough.
	if !fs.MaxIntradayDrawdown.Equal(dec(10)) {
		t.Errorf("expected drawdown 10 against custom reference, got %s", fs.MaxIntradayDrawdown)
	}
	if !fs.DrawdownSpeed.Equal(dec(10)) {
		t.Errorf("expected speed 10 against custom reference, got %s", fs.DrawdownSpeed)
	}
}
