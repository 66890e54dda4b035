// Package challenge provides the challenge aggregate and the rule
// evaluation that decides challenge outcomes.
package challenge

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/walidbouh09/tradesense/pkg/types"
	"github.com/walidbouh09/tradesense/pkg/utils"
)

// Config is the immutable rule parameterization of a challenge.
type Config struct {
	InitialBalance          decimal.Decimal `json:"initialBalance"`
	MaxDailyDrawdownPercent decimal.Decimal `json:"maxDailyDrawdownPercent"`
	MaxTotalDrawdownPercent decimal.Decimal `json:"maxTotalDrawdownPercent"`
	ProfitTargetPercent     decimal.Decimal `json:"profitTargetPercent"`
	ChallengeType           string          `json:"challengeType"`
}

// Validate checks the creation-time constraints on challenge parameters.
func (c Config) Validate() error {
	if !c.InitialBalance.IsPositive() {
		return fmt.Errorf("initial balance must be positive, got %s", c.InitialBalance)
	}
	hundred := decimal.NewFromInt(100)
	for name, pct := range map[string]decimal.Decimal{
		"max daily drawdown": c.MaxDailyDrawdownPercent,
		"max total drawdown": c.MaxTotalDrawdownPercent,
		"profit target":      c.ProfitTargetPercent,
	} {
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return fmt.Errorf("%s percent must be in (0,100], got %s", name, pct)
		}
	}
	return nil
}

// Challenge is the aggregate root for one evaluation account. Instances
// are private to the transaction that loaded them; the persisted row is
// the authoritative copy between transactions.
type Challenge struct {
	ID       string `json:"id"`
	TraderID string `json:"traderId"`
	Config   Config `json:"config"`

	// Equity state
	CurrentEquity decimal.Decimal `json:"currentEquity"`
	MaxEquityEver decimal.Decimal `json:"maxEquityEver"`

	// Daily tracking (UTC calendar day)
	DailyStartEquity decimal.Decimal `json:"dailyStartEquity"`
	DailyMaxEquity   decimal.Decimal `json:"dailyMaxEquity"`
	DailyMinEquity   decimal.Decimal `json:"dailyMinEquity"`
	CurrentDate      time.Time       `json:"currentDate"`

	// Performance tracking
	TotalTrades int64           `json:"totalTrades"`
	TotalPnL    decimal.Decimal `json:"totalPnl"`

	// Lifecycle
	Status        types.ChallengeStatus `json:"status"`
	FailureReason types.FailureReason   `json:"failureReason,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	StartedAt     *time.Time            `json:"startedAt,omitempty"`
	EndedAt       *time.Time            `json:"endedAt,omitempty"`
	FundedAt      *time.Time            `json:"fundedAt,omitempty"`
	LastTradeAt   *time.Time            `json:"lastTradeAt,omitempty"`

	// Optimistic concurrency token, bumped by the storage layer on save.
	Version int64 `json:"version"`
}

// New creates a PENDING challenge with equity counters seeded from the
// initial balance.
func New(traderID string, cfg Config, now time.Time) (*Challenge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Challenge{
		ID:               utils.GenerateChallengeID(),
		TraderID:         traderID,
		Config:           cfg,
		CurrentEquity:    cfg.InitialBalance,
		MaxEquityEver:    cfg.InitialBalance,
		DailyStartEquity: cfg.InitialBalance,
		DailyMaxEquity:   cfg.InitialBalance,
		DailyMinEquity:   cfg.InitialBalance,
		CurrentDate:      utils.UTCDate(now),
		Status:           types.StatusPending,
		CreatedAt:        now.UTC(),
		Version:          1,
	}, nil
}

// allowedTransitions is the full state machine. Terminal states have no
// outgoing edges.
var allowedTransitions = map[types.ChallengeStatus][]types.ChallengeStatus{
	types.StatusPending: {types.StatusActive},
	types.StatusActive:  {types.StatusFailed, types.StatusFunded},
	types.StatusFailed:  {},
	types.StatusFunded:  {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to types.ChallengeStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an illegal state-machine edge. It is a
// programming error and must abort the enclosing transaction.
type InvalidTransitionError struct {
	ChallengeID string
	From        types.ChallengeStatus
	To          types.ChallengeStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("challenge %s: invalid state transition %s -> %s", e.ChallengeID, e.From, e.To)
}

// Activate moves PENDING -> ACTIVE on the first accepted trade.
func (c *Challenge) Activate(at time.Time) error {
	if !CanTransition(c.Status, types.StatusActive) {
		return &InvalidTransitionError{ChallengeID: c.ID, From: c.Status, To: types.StatusActive}
	}
	c.Status = types.StatusActive
	started := at.UTC()
	c.StartedAt = &started
	return nil
}

// Fail moves ACTIVE -> FAILED with the breached rule recorded.
func (c *Challenge) Fail(reason types.FailureReason, at time.Time) error {
	if !CanTransition(c.Status, types.StatusFailed) {
		return &InvalidTransitionError{ChallengeID: c.ID, From: c.Status, To: types.StatusFailed}
	}
	c.Status = types.StatusFailed
	c.FailureReason = reason
	ended := at.UTC()
	c.EndedAt = &ended
	return nil
}

// Fund moves ACTIVE -> FUNDED, the terminal success state.
func (c *Challenge) Fund(at time.Time) error {
	if !CanTransition(c.Status, types.StatusFunded) {
		return &InvalidTransitionError{ChallengeID: c.ID, From: c.Status, To: types.StatusFunded}
	}
	c.Status = types.StatusFunded
	ended := at.UTC()
	c.EndedAt = &ended
	c.FundedAt = &ended
	return nil
}

// ResetDailyIfNeeded rebases the daily counters when the trade lands on a
// new UTC calendar day. The new day's reference equity is the equity at
// that moment, before the trade's P&L is applied.
func (c *Challenge) ResetDailyIfNeeded(executedAt time.Time) bool {
	tradeDate := utils.UTCDate(executedAt)
	if tradeDate.Equal(utils.UTCDate(c.CurrentDate)) {
		return false
	}
	c.CurrentDate = tradeDate
	c.DailyStartEquity = c.CurrentEquity
	c.DailyMaxEquity = c.CurrentEquity
	c.DailyMinEquity = c.CurrentEquity
	return true
}

// EquityChange captures the before/after of one equity application.
type EquityChange struct {
	PreviousEquity decimal.Decimal
	CurrentEquity  decimal.Decimal
}

// ApplyTrade folds a realized P&L into the equity counters. Equity is
// floored at zero and MaxEquityEver never decreases.
func (c *Challenge) ApplyTrade(pnl decimal.Decimal, executedAt time.Time) EquityChange {
	previous := c.CurrentEquity

	next := c.CurrentEquity.Add(pnl)
	if next.IsNegative() {
		next = decimal.Zero
	}
	c.CurrentEquity = next

	c.MaxEquityEver = utils.MaxDecimal(c.MaxEquityEver, c.CurrentEquity)
	c.DailyMaxEquity = utils.MaxDecimal(c.DailyMaxEquity, c.CurrentEquity)
	c.DailyMinEquity = utils.MinDecimal(c.DailyMinEquity, c.CurrentEquity)

	c.TotalTrades++
	c.TotalPnL = c.TotalPnL.Add(pnl)
	last := executedAt.UTC()
	c.LastTradeAt = &last

	return EquityChange{PreviousEquity: previous, CurrentEquity: c.CurrentEquity}
}

// Snapshot extracts the rule evaluator's input from the aggregate.
func (c *Challenge) Snapshot() Snapshot {
	return Snapshot{
		Status:                  c.Status,
		CurrentEquity:           c.CurrentEquity,
		MaxEquityEver:           c.MaxEquityEver,
		DailyStartEquity:        c.DailyStartEquity,
		InitialBalance:          c.Config.InitialBalance,
		MaxDailyDrawdownPercent: c.Config.MaxDailyDrawdownPercent,
		MaxTotalDrawdownPercent: c.Config.MaxTotalDrawdownPercent,
		ProfitTargetPercent:     c.Config.ProfitTargetPercent,
	}
}
