package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/walidbouh09/tradesense/pkg/types"
)

// EquityUpdatedEvent carries the before/after snapshot of one equity
// application. Emitted after equity is fully consistent and before any
// status change event for the same trade.
type EquityUpdatedEvent struct {
	BaseEvent
	ChallengeID      string          `json:"challengeId"`
	PreviousEquity   decimal.Decimal `json:"previousEquity"`
	CurrentEquity    decimal.Decimal `json:"currentEquity"`
	MaxEquityEver    decimal.Decimal `json:"maxEquityEver"`
	DailyStartEquity decimal.Decimal `json:"dailyStartEquity"`
	DailyMaxEquity   decimal.Decimal `json:"dailyMaxEquity"`
	DailyMinEquity   decimal.Decimal `json:"dailyMinEquity"`
	TradePnL         decimal.Decimal `json:"tradePnl"`
	ExecutedAt       time.Time       `json:"executedAt"`
}

// NewEquityUpdatedEvent creates an equity update event
func NewEquityUpdatedEvent(challengeID string, previous, current, maxEver, dayStart, dayMax, dayMin, pnl decimal.Decimal, executedAt time.Time) *EquityUpdatedEvent {
	return &EquityUpdatedEvent{
		BaseEvent:        newBaseEvent(EventTypeEquityUpdated, executedAt),
		ChallengeID:      challengeID,
		PreviousEquity:   previous,
		CurrentEquity:    current,
		MaxEquityEver:    maxEver,
		DailyStartEquity: dayStart,
		DailyMaxEquity:   dayMax,
		DailyMinEquity:   dayMin,
		TradePnL:         pnl,
		ExecutedAt:       executedAt,
	}
}

// ChallengeStatusChangedEvent records one state-machine transition.
type ChallengeStatusChangedEvent struct {
	BaseEvent
	ChallengeID string                 `json:"challengeId"`
	OldStatus   types.ChallengeStatus  `json:"oldStatus"`
	NewStatus   types.ChallengeStatus  `json:"newStatus"`
	Reason      types.TransitionReason `json:"reason,omitempty"`
	ChangedAt   time.Time              `json:"changedAt"`
}

// NewChallengeStatusChangedEvent creates a status change event
func NewChallengeStatusChangedEvent(challengeID string, oldStatus, newStatus types.ChallengeStatus, reason types.TransitionReason, changedAt time.Time) *ChallengeStatusChangedEvent {
	return &ChallengeStatusChangedEvent{
		BaseEvent:   newBaseEvent(EventTypeChallengeStatusChanged, changedAt),
		ChallengeID: challengeID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Reason:      reason,
		ChangedAt:   changedAt,
	}
}

// RiskAlertEvent is an advisory alert. It never changes challenge
// status; consumers treat it as monitoring input only.
type RiskAlertEvent struct {
	BaseEvent
	ChallengeID string              `json:"challengeId"`
	AlertType   string              `json:"alertType"`
	Severity    types.AlertSeverity `json:"severity"`
	Title       string              `json:"title"`
	Message     string              `json:"message"`
	Context     map[string]any      `json:"context,omitempty"`
}

// NewRiskAlertEvent creates a risk alert event
func NewRiskAlertEvent(challengeID, alertType string, severity types.AlertSeverity, title, message string, context map[string]any) *RiskAlertEvent {
	return &RiskAlertEvent{
		BaseEvent:   newBaseEvent(EventTypeRiskAlert, time.Now().UTC()),
		ChallengeID: challengeID,
		AlertType:   alertType,
		Severity:    severity,
		Title:       title,
		Message:     message,
		Context:     context,
	}
}
