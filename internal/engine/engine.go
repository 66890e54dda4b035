// Package engine implements the hot path of the challenge evaluation
// core: one trade against one challenge inside one exclusive transaction.
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/walidbouh09/tradesense/internal/challenge"
	"github.com/walidbouh09/tradesense/internal/events"
	"github.com/walidbouh09/tradesense/pkg/types"
)

// ChallengeStore is the storage capability the engine consumes. A store
// instance is bound to the caller's transaction: LoadForUpdate acquires
// an exclusive row lock inside that transaction and Save writes all
// fields back with an optimistic version check as a second line of
// defense. The engine never commits or rolls back.
type ChallengeStore interface {
	LoadForUpdate(ctx context.Context, challengeID string) (*challenge.Challenge, error)
	Save(ctx context.Context, ch *challenge.Challenge) error
}

// approachAlertFactor is the fraction of a drawdown limit at which the
// hot path emits an advisory approach-to-limit alert.
var approachAlertFactor = decimal.NewFromFloat(0.8)

// Engine processes TradeExecuted events. It holds no per-challenge
// state; everything lives on the row the store loads and locks.
type Engine struct {
	bus    *events.Bus
	logger *zap.Logger
}

// New creates a challenge engine
func New(logger *zap.Logger, bus *events.Bus) *Engine {
	return &Engine{
		bus:    bus,
		logger: logger.Named("challenge-engine"),
	}
}

// HandleTradeExecuted runs the full hot-path pipeline: load and lock,
// validate against status, daily reset, equity update, rule evaluation,
// status transition, event emission. All work happens inside the
// caller-provided transaction represented by store; on error the caller
// rolls back and no emitted state survives.
func (e *Engine) HandleTradeExecuted(ctx context.Context, store ChallengeStore, evt *types.TradeExecuted) error {
	if err := validateEvent(evt); err != nil {
		return err
	}

	ch, err := store.LoadForUpdate(ctx, evt.ChallengeID)
	if err != nil {
		return err
	}

	priorStatus := ch.Status

	// Validate the trade is allowed in the current lifecycle state.
	switch ch.Status {
	case types.StatusPending:
		if err := ch.Activate(evt.ExecutedAt); err != nil {
			return err
		}
	case types.StatusActive:
		// accept
	case types.StatusFailed, types.StatusFunded:
		return &TradeRejectedError{ChallengeID: ch.ID, TradeID: evt.TradeID, Status: ch.Status}
	default:
		return fmt.Errorf("challenge %s: unknown status %q", ch.ID, ch.Status)
	}

	if ch.ResetDailyIfNeeded(evt.ExecutedAt) {
		e.logger.Debug("daily counters reset",
			zap.String("challenge_id", ch.ID),
			zap.Time("trade_date", ch.CurrentDate),
			zap.String("daily_start_equity", ch.DailyStartEquity.String()),
		)
	}

	change := ch.ApplyTrade(evt.RealizedPnL, evt.ExecutedAt)

	// EquityUpdated goes out first, after the counters are consistent.
	e.bus.Publish(events.NewEquityUpdatedEvent(
		ch.ID,
		change.PreviousEquity,
		change.CurrentEquity,
		ch.MaxEquityEver,
		ch.DailyStartEquity,
		ch.DailyMaxEquity,
		ch.DailyMinEquity,
		evt.RealizedPnL,
		evt.ExecutedAt,
	))

	snapshot := ch.Snapshot()
	result := challenge.EvaluateRules(snapshot)

	if result.NewStatus == types.StatusActive {
		e.emitApproachAlerts(ch, snapshot)
	}

	if result.NewStatus != ch.Status {
		switch result.NewStatus {
		case types.StatusFailed:
			reason := types.FailureReason(result.Reason)
			if err := ch.Fail(reason, evt.ExecutedAt); err != nil {
				return err
			}
		case types.StatusFunded:
			if err := ch.Fund(evt.ExecutedAt); err != nil {
				return err
			}
		default:
			// The evaluator only ever asks for FAILED or FUNDED from
			// ACTIVE; anything else is a bug and must abort loudly.
			return &challenge.InvalidTransitionError{ChallengeID: ch.ID, From: ch.Status, To: result.NewStatus}
		}
	}

	if err := store.Save(ctx, ch); err != nil {
		return fmt.Errorf("saving challenge %s: %w", ch.ID, err)
	}

	if priorStatus == types.StatusPending {
		e.bus.Publish(events.NewChallengeStatusChangedEvent(
			ch.ID, types.StatusPending, types.StatusActive, types.TransitionReasonFirstTrade, evt.ExecutedAt,
		))
	}
	if ch.Status.IsTerminal() {
		e.bus.Publish(events.NewChallengeStatusChangedEvent(
			ch.ID, types.StatusActive, ch.Status, result.Reason, evt.ExecutedAt,
		))
	}

	e.logger.Info("trade processed",
		zap.String("challenge_id", ch.ID),
		zap.String("trade_id", evt.TradeID),
		zap.String("pnl", evt.RealizedPnL.String()),
		zap.String("equity", ch.CurrentEquity.String()),
		zap.String("status", string(ch.Status)),
	)

	return nil
}

// emitApproachAlerts publishes advisory alerts when a drawdown metric
// exceeds 0.8x its configured limit without having breached it. Purely
// informational and decoupled from the rule decisions above.
func (e *Engine) emitApproachAlerts(ch *challenge.Challenge, s challenge.Snapshot) {
	dailyLimit := s.MaxDailyDrawdownPercent.Div(decimal.NewFromInt(100))
	if dd := challenge.DailyDrawdownRatio(s); dd.GreaterThan(dailyLimit.Mul(approachAlertFactor)) {
		e.bus.Publish(events.NewRiskAlertEvent(
			ch.ID,
			"daily_drawdown_approach",
			types.SeverityWarning,
			"Approaching daily drawdown limit",
			fmt.Sprintf("daily drawdown %s of limit %s", dd.StringFixed(4), dailyLimit.StringFixed(4)),
			map[string]any{
				"current_equity":     s.CurrentEquity.String(),
				"daily_start_equity": s.DailyStartEquity.String(),
				"drawdown_ratio":     dd.String(),
				"limit_ratio":        dailyLimit.String(),
			},
		))
	}

	totalLimit := s.MaxTotalDrawdownPercent.Div(decimal.NewFromInt(100))
	if dd := challenge.TotalDrawdownRatio(s); dd.GreaterThan(totalLimit.Mul(approachAlertFactor)) {
		e.bus.Publish(events.NewRiskAlertEvent(
			ch.ID,
			"total_drawdown_approach",
			types.SeverityWarning,
			"Approaching total drawdown limit",
			fmt.Sprintf("total drawdown %s of limit %s", dd.StringFixed(4), totalLimit.StringFixed(4)),
			map[string]any{
				"current_equity":  s.CurrentEquity.String(),
				"max_equity_ever": s.MaxEquityEver.String(),
				"drawdown_ratio":  dd.String(),
				"limit_ratio":     totalLimit.String(),
			},
		))
	}
}

// validateEvent asserts the preconditions the caller is responsible for.
func validateEvent(evt *types.TradeExecuted) error {
	if evt == nil {
		return fmt.Errorf("nil trade event")
	}
	if evt.ChallengeID == "" {
		return fmt.Errorf("trade %s: missing challenge id", evt.TradeID)
	}
	if !evt.Quantity.IsPositive() {
		return fmt.Errorf("trade %s: quantity must be positive, got %s", evt.TradeID, evt.Quantity)
	}
	if !evt.Price.IsPositive() {
		return fmt.Errorf("trade %s: price must be positive, got %s", evt.TradeID, evt.Price)
	}
	if evt.Side != types.TradeSideBuy && evt.Side != types.TradeSideSell {
		return fmt.Errorf("trade %s: invalid side %q", evt.TradeID, evt.Side)
	}
	if evt.ExecutedAt.IsZero() {
		return fmt.Errorf("trade %s: missing execution timestamp", evt.TradeID)
	}
	return nil
}
