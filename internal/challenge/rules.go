package challenge

import (
	"github.com/shopspring/decimal"

	"github.com/walidbouh09/tradesense/pkg/types"
	"github.com/walidbouh09/tradesense/pkg/utils"
)

// Snapshot is the full input to rule evaluation. It is a value copy of
// the aggregate fields the rules read, so evaluation can never mutate
// the challenge.
type Snapshot struct {
	Status                  types.ChallengeStatus
	CurrentEquity           decimal.Decimal
	MaxEquityEver           decimal.Decimal
	DailyStartEquity        decimal.Decimal
	InitialBalance          decimal.Decimal
	MaxDailyDrawdownPercent decimal.Decimal
	MaxTotalDrawdownPercent decimal.Decimal
	ProfitTargetPercent     decimal.Decimal
}

// RuleResult is the evaluator's verdict. Reason is empty when the status
// is unchanged or the transition is PROFIT_TARGET-free.
type RuleResult struct {
	NewStatus types.ChallengeStatus
	Reason    types.TransitionReason
}

// EvaluateRules is the sole arbiter of challenge outcome. It is pure and
// total: no I/O, no clock, no errors. Rules fire in strict priority
// order and the first firing rule wins:
//
//  1. daily drawdown  (strict >)  -> FAILED / MAX_DAILY_DRAWDOWN
//  2. total drawdown  (strict >)  -> FAILED / MAX_TOTAL_DRAWDOWN
//  3. profit target   (>=)        -> FUNDED / PROFIT_TARGET
//
// A rule whose denominator is not positive does not fire. Non-ACTIVE
// statuses are returned unchanged.
func EvaluateRules(s Snapshot) RuleResult {
	if s.Status != types.StatusActive {
		return RuleResult{NewStatus: s.Status}
	}

	if s.DailyStartEquity.IsPositive() {
		dailyDrawdown := s.DailyStartEquity.Sub(s.CurrentEquity).Div(s.DailyStartEquity)
		if dailyDrawdown.GreaterThan(utils.Percent(s.MaxDailyDrawdownPercent)) {
			return RuleResult{NewStatus: types.StatusFailed, Reason: types.TransitionReasonMaxDailyDrawdown}
		}
	}

	if s.MaxEquityEver.IsPositive() {
		totalDrawdown := s.MaxEquityEver.Sub(s.CurrentEquity).Div(s.MaxEquityEver)
		if totalDrawdown.GreaterThan(utils.Percent(s.MaxTotalDrawdownPercent)) {
			return RuleResult{NewStatus: types.StatusFailed, Reason: types.TransitionReasonMaxTotalDrawdown}
		}
	}

	if s.InitialBalance.IsPositive() {
		gain := s.CurrentEquity.Sub(s.InitialBalance).Div(s.InitialBalance)
		if gain.GreaterThanOrEqual(utils.Percent(s.ProfitTargetPercent)) {
			return RuleResult{NewStatus: types.StatusFunded, Reason: types.TransitionReasonProfitTarget}
		}
	}

	return RuleResult{NewStatus: types.StatusActive}
}

// DailyDrawdownRatio returns the current day's drawdown as a fraction of
// the day-start equity, zero when the denominator is not positive or the
// day is in profit. Used by the hot path's approach-to-limit alerting.
func DailyDrawdownRatio(s Snapshot) decimal.Decimal {
	if !s.DailyStartEquity.IsPositive() {
		return decimal.Zero
	}
	dd := s.DailyStartEquity.Sub(s.CurrentEquity).Div(s.DailyStartEquity)
	if dd.IsNegative() {
		return decimal.Zero
	}
	return dd
}

// TotalDrawdownRatio returns the peak-to-current decline as a fraction of
// the all-time maximum equity.
func TotalDrawdownRatio(s Snapshot) decimal.Decimal {
	if !s.MaxEquityEver.IsPositive() {
		return decimal.Zero
	}
	dd := s.MaxEquityEver.Sub(s.CurrentEquity).Div(s.MaxEquityEver)
	if dd.IsNegative() {
		return decimal.Zero
	}
	return dd
}
