package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/walidbouh09/tradesense/internal/challenge"
	"github.com/walidbouh09/tradesense/pkg/types"
)

// ChallengeRecord is the persisted form of the challenge aggregate. The
// row is the authoritative copy between transactions.
type ChallengeRecord struct {
	ID            string `gorm:"primaryKey;size:64"`
	TraderID      string `gorm:"index;size:64"`
	ChallengeType string `gorm:"size:64"`

	InitialBalance          decimal.Decimal `gorm:"type:decimal(20,8);check:initial_balance > 0"`
	MaxDailyDrawdownPercent decimal.Decimal `gorm:"type:decimal(5,2)"`
	MaxTotalDrawdownPercent decimal.Decimal `gorm:"type:decimal(5,2)"`
	ProfitTargetPercent     decimal.Decimal `gorm:"type:decimal(5,2)"`

	CurrentEquity decimal.Decimal `gorm:"type:decimal(20,8);check:current_equity >= 0"`
	MaxEquityEver decimal.Decimal `gorm:"type:decimal(20,8)"`

	DailyStartEquity decimal.Decimal `gorm:"type:decimal(20,8)"`
	DailyMaxEquity   decimal.Decimal `gorm:"type:decimal(20,8)"`
	DailyMinEquity   decimal.Decimal `gorm:"type:decimal(20,8)"`
	CurrentDate      time.Time

	TotalTrades int64           `gorm:"check:total_trades >= 0"`
	TotalPnL    decimal.Decimal `gorm:"type:decimal(20,8)"`

	Status        string `gorm:"index;size:16"`
	FailureReason string `gorm:"size:32"`
	StartedAt     *time.Time
	EndedAt       *time.Time
	FundedAt      *time.Time
	LastTradeAt   *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name explicit
func (ChallengeRecord) TableName() string { return "challenges" }

// ToDomain converts a row into the aggregate
func (r *ChallengeRecord) ToDomain() *challenge.Challenge {
	return &challenge.Challenge{
		ID:       r.ID,
		TraderID: r.TraderID,
		Config: challenge.Config{
			InitialBalance:          r.InitialBalance,
			MaxDailyDrawdownPercent: r.MaxDailyDrawdownPercent,
			MaxTotalDrawdownPercent: r.MaxTotalDrawdownPercent,
			ProfitTargetPercent:     r.ProfitTargetPercent,
			ChallengeType:           r.ChallengeType,
		},
		CurrentEquity:    r.CurrentEquity,
		MaxEquityEver:    r.MaxEquityEver,
		DailyStartEquity: r.DailyStartEquity,
		DailyMaxEquity:   r.DailyMaxEquity,
		DailyMinEquity:   r.DailyMinEquity,
		CurrentDate:      r.CurrentDate,
		TotalTrades:      r.TotalTrades,
		TotalPnL:         r.TotalPnL,
		Status:           types.ChallengeStatus(r.Status),
		FailureReason:    types.FailureReason(r.FailureReason),
		CreatedAt:        r.CreatedAt,
		StartedAt:        r.StartedAt,
		EndedAt:          r.EndedAt,
		FundedAt:         r.FundedAt,
		LastTradeAt:      r.LastTradeAt,
		Version:          r.Version,
	}
}

// recordFromDomain converts the aggregate into a row
func recordFromDomain(c *challenge.Challenge) *ChallengeRecord {
	return &ChallengeRecord{
		ID:                      c.ID,
		TraderID:                c.TraderID,
		ChallengeType:           c.Config.ChallengeType,
		InitialBalance:          c.Config.InitialBalance,
		MaxDailyDrawdownPercent: c.Config.MaxDailyDrawdownPercent,
		MaxTotalDrawdownPercent: c.Config.MaxTotalDrawdownPercent,
		ProfitTargetPercent:     c.Config.ProfitTargetPercent,
		CurrentEquity:           c.CurrentEquity,
		MaxEquityEver:           c.MaxEquityEver,
		DailyStartEquity:        c.DailyStartEquity,
		DailyMaxEquity:          c.DailyMaxEquity,
		DailyMinEquity:          c.DailyMinEquity,
		CurrentDate:             c.CurrentDate,
		TotalTrades:             c.TotalTrades,
		TotalPnL:                c.TotalPnL,
		Status:                  string(c.Status),
		FailureReason:           string(c.FailureReason),
		StartedAt:               c.StartedAt,
		EndedAt:                 c.EndedAt,
		FundedAt:                c.FundedAt,
		LastTradeAt:             c.LastTradeAt,
		Version:                 c.Version,
		CreatedAt:               c.CreatedAt,
	}
}

// TradeRecord is a finished trade, scoped to a challenge and read back
// chronologically by the cold path.
type TradeRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	TradeID     string `gorm:"uniqueIndex:idx_trades_challenge_trade;size:64"`
	ChallengeID string `gorm:"uniqueIndex:idx_trades_challenge_trade;index;size:64"`
	Symbol      string `gorm:"size:32"`
	Side        string `gorm:"size:8"`

	Quantity    decimal.Decimal `gorm:"type:decimal(20,8)"`
	Price       decimal.Decimal `gorm:"type:decimal(20,8)"`
	RealizedPnL decimal.Decimal `gorm:"type:decimal(20,8)"`

	ExecutedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}

// TableName keeps the table name explicit
func (TradeRecord) TableName() string { return "trades" }

// ToDomain converts a row into the cold-path trade value
func (r *TradeRecord) ToDomain() types.Trade {
	return types.Trade{
		TradeID:     r.TradeID,
		ChallengeID: r.ChallengeID,
		Symbol:      r.Symbol,
		Side:        types.TradeSide(r.Side),
		Quantity:    r.Quantity,
		Price:       r.Price,
		RealizedPnL: r.RealizedPnL,
		ExecutedAt:  r.ExecutedAt,
	}
}

// RiskAssessmentRecord is an append-only assessment row. Nested
// breakdowns and feature snapshots are stored as JSON documents; the
// score and level are first-class columns for querying.
type RiskAssessmentRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	ChallengeID string `gorm:"index:idx_assessments_challenge_time;size:64"`
	TraderID    string `gorm:"index;size:64"`

	Score decimal.Decimal `gorm:"type:decimal(5,2)"`
	Level string          `gorm:"size:16"`

	Breakdown  string `gorm:"type:text"`
	Features   string `gorm:"type:text"`
	Threshold  string `gorm:"type:text"`
	ActionPlan string `gorm:"type:text"`

	AssessedAt        time.Time `gorm:"index:idx_assessments_challenge_time,sort:desc"`
	AssessmentVersion string    `gorm:"size:32"`
	CreatedAt         time.Time
}

// TableName keeps the table name explicit
func (RiskAssessmentRecord) TableName() string { return "risk_assessments" }
