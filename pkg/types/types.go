// Package types provides shared type definitions for the challenge
// evaluation backend.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChallengeStatus represents the lifecycle state of a challenge
type ChallengeStatus string

const (
	StatusPending ChallengeStatus = "PENDING"
	StatusActive  ChallengeStatus = "ACTIVE"
	StatusFailed  ChallengeStatus = "FAILED"
	StatusFunded  ChallengeStatus = "FUNDED"
)

// IsTerminal reports whether the status admits no further transitions
func (s ChallengeStatus) IsTerminal() bool {
	return s == StatusFailed || s == StatusFunded
}

// FailureReason identifies which loss rule ended a challenge
type FailureReason string

const (
	ReasonMaxDailyDrawdown FailureReason = "MAX_DAILY_DRAWDOWN"
	ReasonMaxTotalDrawdown FailureReason = "MAX_TOTAL_DRAWDOWN"
)

// TransitionReason labels why a status transition happened
type TransitionReason string

const (
	TransitionReasonFirstTrade       TransitionReason = "FIRST_TRADE"
	TransitionReasonProfitTarget     TransitionReason = "PROFIT_TARGET"
	TransitionReasonMaxDailyDrawdown TransitionReason = TransitionReason(ReasonMaxDailyDrawdown)
	TransitionReasonMaxTotalDrawdown TransitionReason = TransitionReason(ReasonMaxTotalDrawdown)
)

// TradeSide represents buy or sell
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// TradeExecuted is the inbound event the hot path consumes. The caller
// validates Quantity > 0, Price > 0 and ExecutedAt in UTC before handing
// it to the engine.
type TradeExecuted struct {
	ChallengeID string          `json:"challengeId"`
	TradeID     string          `json:"tradeId"`
	Symbol      string          `json:"symbol"`
	Side        TradeSide       `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	RealizedPnL decimal.Decimal `json:"realizedPnl"`
	ExecutedAt  time.Time       `json:"executedAt"`
}

// Notional returns quantity * price
func (t *TradeExecuted) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// Trade is a finished trade as read back by the cold path, scoped to one
// challenge and sorted chronologically by the storage layer.
type Trade struct {
	TradeID     string          `json:"tradeId"`
	ChallengeID string          `json:"challengeId"`
	Symbol      string          `json:"symbol"`
	Side        TradeSide       `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	RealizedPnL decimal.Decimal `json:"realizedPnl"`
	ExecutedAt  time.Time       `json:"executedAt"`
}

// Notional returns quantity * price
func (t *Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// RiskLevel classifies a risk score
type RiskLevel string

const (
	RiskLevelStable   RiskLevel = "STABLE"
	RiskLevelMonitor  RiskLevel = "MONITOR"
	RiskLevelHighRisk RiskLevel = "HIGH_RISK"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// AlertSeverity grades outbound risk alerts
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)
