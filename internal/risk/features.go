// Package risk implements the cold-path risk scoring pipeline: feature
// engineering over trade history, weighted scoring, threshold
// classification and action plans.
package risk

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/walidbouh09/tradesense/pkg/types"
	"github.com/walidbouh09/tradesense/pkg/utils"
)

// DefaultReferenceBalance normalizes drawdown and drawdown-speed
// percentages. The feature layer is intentionally decoupled from live
// equity; this is a modeling constant, not the challenge balance.
var DefaultReferenceBalance = decimal.NewFromInt(10000)

var (
	hundred       = decimal.NewFromInt(100)
	revengeFactor = decimal.NewFromFloat(1.2)
)

// FeatureSet is the immutable summary of one trade history. All values
// are rounded to two decimal places.
type FeatureSet struct {
	AvgTradePnL         decimal.Decimal `json:"avgTradePnl"`
	PnLVolatility       decimal.Decimal `json:"pnlVolatility"`
	WinRate             decimal.Decimal `json:"winRate"`
	ProfitFactor        decimal.Decimal `json:"profitFactor"`
	MaxIntradayDrawdown decimal.Decimal `json:"maxIntradayDrawdown"`
	DrawdownSpeed       decimal.Decimal `json:"drawdownSpeed"`
	LossStreak          int             `json:"lossStreak"`
	TradesPerHour       decimal.Decimal `json:"tradesPerHour"`
	OvertradingScore    decimal.Decimal `json:"overtradingScore"`
	RevengeTradingScore decimal.Decimal `json:"revengeTradingScore"`
	TotalTrades         int             `json:"totalTrades"`
	AnalysisPeriodHours decimal.Decimal `json:"analysisPeriodHours"`
}

// DefaultFeatureSet is the documented output for an empty trade history.
func DefaultFeatureSet() FeatureSet {
	return FeatureSet{
		ProfitFactor:        decimal.NewFromInt(1),
		AnalysisPeriodHours: decimal.NewFromInt(1),
	}
}

// Engineer computes feature sets. Deterministic for a given input;
// malformed trade records are skipped with a log entry.
type Engineer struct {
	logger           *zap.Logger
	referenceBalance decimal.Decimal
}

// NewEngineer creates a feature engineer with the default reference
// balance.
func NewEngineer(logger *zap.Logger) *Engineer {
	return &Engineer{
		logger:           logger.Named("feature-engineer"),
		referenceBalance: DefaultReferenceBalance,
	}
}

// NewEngineerWithReference creates a feature engineer with a custom
// reference balance.
func NewEngineerWithReference(logger *zap.Logger, referenceBalance decimal.Decimal) *Engineer {
	return &Engineer{
		logger:           logger.Named("feature-engineer"),
		referenceBalance: referenceBalance,
	}
}

// Compute derives the eleven features from a chronologically sorted
// trade history. now is the observation time; the analysis period spans
// from min(challengeStartedAt, first trade) to max(last trade, now).
func (e *Engineer) Compute(trades []types.Trade, challengeStartedAt, now time.Time) FeatureSet {
	valid := trades[:0:0]
	for i := range trades {
		t := trades[i]
		if !t.Quantity.IsPositive() || !t.Price.IsPositive() || t.ExecutedAt.IsZero() {
			e.logger.Warn("skipping malformed trade record",
				zap.String("trade_id", t.TradeID),
				zap.String("challenge_id", t.ChallengeID),
			)
			continue
		}
		valid = append(valid, t)
	}

	if len(valid) == 0 {
		return DefaultFeatureSet()
	}

	n := len(valid)
	pnls := make([]float64, n)
	for i, t := range valid {
		pnls[i], _ = t.RealizedPnL.Float64()
	}

	hours := analysisPeriodHours(valid, challengeStartedAt, now)

	var wins int
	var sumWins, sumLosses decimal.Decimal
	for _, t := range valid {
		if t.RealizedPnL.IsPositive() {
			wins++
			sumWins = sumWins.Add(t.RealizedPnL)
		} else if t.RealizedPnL.IsNegative() {
			sumLosses = sumLosses.Add(t.RealizedPnL.Abs())
		}
	}

	winRateFraction := float64(wins) / float64(n)

	profitFactor := decimal.NewFromInt(1)
	if sumLosses.IsPositive() {
		profitFactor = sumWins.Div(sumLosses)
	}

	tradesPerHour := float64(n) / hours

	overtrading := math.Min(1, tradesPerHour/10) * (1 - winRateFraction) * 100

	return FeatureSet{
		AvgTradePnL:         round2f(mean(pnls)),
		PnLVolatility:       round2f(populationStdev(pnls)),
		WinRate:             round2f(winRateFraction * 100),
		ProfitFactor:        profitFactor.Round(2),
		MaxIntradayDrawdown: e.maxIntradayDrawdown(valid).Round(2),
		DrawdownSpeed:       e.drawdownSpeed(valid).Round(2),
		LossStreak:          trailingLossStreak(valid),
		TradesPerHour:       round2f(tradesPerHour),
		OvertradingScore:    round2f(overtrading),
		RevengeTradingScore: revengeTradingScore(valid).Round(2),
		TotalTrades:         n,
		AnalysisPeriodHours: round2f(hours),
	}
}

// analysisPeriodHours spans the earliest of challenge start / first
// trade to the latest of last trade / now, floored at one hour.
func analysisPeriodHours(trades []types.Trade, challengeStartedAt, now time.Time) float64 {
	earliest := trades[0].ExecutedAt
	if !challengeStartedAt.IsZero() && challengeStartedAt.Before(earliest) {
		earliest = challengeStartedAt
	}
	latest := trades[len(trades)-1].ExecutedAt
	if now.After(latest) {
		latest = now
	}
	hours := latest.Sub(earliest).Hours()
	if hours < 1 {
		return 1
	}
	return hours
}

// maxIntradayDrawdown walks each UTC day's trades over a running equity
// seeded with the reference balance and returns the worst
// start-to-trough decline across days, in percent.
func (e *Engineer) maxIntradayDrawdown(trades []types.Trade) decimal.Decimal {
	var maxDD decimal.Decimal

	i := 0
	for i < len(trades) {
		day := utils.UTCDate(trades[i].ExecutedAt)

		first := e.referenceBalance
		equity := e.referenceBalance
		minEquity := e.referenceBalance

		for i < len(trades) && utils.UTCDate(trades[i].ExecutedAt).Equal(day) {
			equity = equity.Add(trades[i].RealizedPnL)
			if equity.LessThan(minEquity) {
				minEquity = equity
			}
			i++
		}

		if first.IsPositive() {
			dd := first.Sub(minEquity).Div(first).Mul(hundred)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// drawdownSpeed is the mean absolute loss normalized by the reference
// balance, in percent.
func (e *Engineer) drawdownSpeed(trades []types.Trade) decimal.Decimal {
	var sum decimal.Decimal
	var losses int64
	for _, t := range trades {
		if t.RealizedPnL.IsNegative() {
			sum = sum.Add(t.RealizedPnL.Abs())
			losses++
		}
	}
	if losses == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(losses)).Div(e.referenceBalance).Mul(hundred)
}

// trailingLossStreak counts consecutive losing trades at the end of the
// history.
func trailingLossStreak(trades []types.Trade) int {
	streak := 0
	for i := len(trades) - 1; i >= 0; i-- {
		if !trades[i].RealizedPnL.IsNegative() {
			break
		}
		streak++
	}
	return streak
}

// revengeTradingScore measures sizing-up right after a loss: over pairs
// whose first trade lost, the fraction whose next trade's notional
// exceeds 1.2x the losing trade's notional, in percent. Zero with fewer
// than three trades or no losing pairs.
func revengeTradingScore(trades []types.Trade) decimal.Decimal {
	if len(trades) < 3 {
		return decimal.Zero
	}

	var pairs, hits int64
	for i := 0; i < len(trades)-1; i++ {
		if !trades[i].RealizedPnL.IsNegative() {
			continue
		}
		pairs++
		threshold := trades[i].Notional().Mul(revengeFactor)
		if trades[i+1].Notional().GreaterThan(threshold) {
			hits++
		}
	}

	if pairs == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(hits).Div(decimal.NewFromInt(pairs)).Mul(hundred)
}

// mean calculates arithmetic mean
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdev calculates the population standard deviation, zero
// when fewer than two samples.
func populationStdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// round2f normalizes a float statistic back to a two-place decimal.
func round2f(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
