package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/walidbouh09/tradesense/pkg/types"
	"github.com/walidbouh09/tradesense/pkg/utils"
)

// RiskAssessment is the append-only record one cold-path run produces
// for one challenge. Assessments are never mutated after creation.
type RiskAssessment struct {
	ID                string     `json:"id"`
	ChallengeID       string     `json:"challengeId"`
	TraderID          string     `json:"traderId"`
	Score             RiskScore  `json:"score"`
	Threshold         Threshold  `json:"threshold"`
	Features          FeatureSet `json:"features"`
	ActionPlan        ActionPlan `json:"actionPlan"`
	AssessedAt        time.Time  `json:"assessedAt"`
	AssessmentVersion string     `json:"assessmentVersion"`
}

// AlertDecision is the outcome of the alert threshold check.
type AlertDecision string

const (
	AlertNone     AlertDecision = "none"
	AlertWarning  AlertDecision = "warning"
	AlertCritical AlertDecision = "critical"
)

// Severity maps the decision onto the outbound alert severity.
func (d AlertDecision) Severity() types.AlertSeverity {
	switch d {
	case AlertCritical:
		return types.SeverityCritical
	case AlertWarning:
		return types.SeverityWarning
	default:
		return types.SeverityInfo
	}
}

// Assessor orchestrates one risk assessment: features, score,
// classification, action plan. It is read-only over its inputs and
// never influences challenge status.
type Assessor struct {
	logger            *zap.Logger
	engineer          *Engineer
	warningThreshold  decimal.Decimal
	criticalThreshold decimal.Decimal
	version           string
}

// NewAssessor creates an assessor. Threshold table contiguity is
// validated here so a misconfigured build fails at startup.
func NewAssessor(logger *zap.Logger, alerts types.AlertConfig, version string) (*Assessor, error) {
	if err := ValidateThresholds(); err != nil {
		return nil, fmt.Errorf("risk threshold table: %w", err)
	}
	if alerts.CriticalThreshold < alerts.WarningThreshold {
		return nil, fmt.Errorf("critical alert threshold %v below warning threshold %v",
			alerts.CriticalThreshold, alerts.WarningThreshold)
	}
	return &Assessor{
		logger:            logger.Named("risk-assessor"),
		engineer:          NewEngineer(logger),
		warningThreshold:  decimal.NewFromFloat(alerts.WarningThreshold),
		criticalThreshold: decimal.NewFromFloat(alerts.CriticalThreshold),
		version:           version,
	}, nil
}

// AssessChallengeRisk produces a full assessment for one challenge from
// its finished trades. trades must be chronologically sorted.
func (a *Assessor) AssessChallengeRisk(challengeID, traderID string, trades []types.Trade, challengeStartedAt time.Time, now time.Time) (*RiskAssessment, error) {
	if challengeID == "" {
		return nil, fmt.Errorf("missing challenge id")
	}

	features := a.engineer.Compute(trades, challengeStartedAt, now)
	score := ScoreFeatures(features)

	assessment := &RiskAssessment{
		ID:                utils.GenerateAssessmentID(),
		ChallengeID:       challengeID,
		TraderID:          traderID,
		Score:             score,
		Threshold:         ClassifyScore(score.Score),
		Features:          features,
		ActionPlan:        GenerateActionPlan(score.Score),
		AssessedAt:        now.UTC(),
		AssessmentVersion: a.version,
	}

	a.logger.Debug("challenge assessed",
		zap.String("challenge_id", challengeID),
		zap.String("score", score.Score.String()),
		zap.String("level", string(score.Level)),
		zap.Int("trades", features.TotalTrades),
	)

	return assessment, nil
}

// ShouldEmitAlert applies the deployment alert thresholds to a score.
func (a *Assessor) ShouldEmitAlert(score decimal.Decimal) AlertDecision {
	switch {
	case score.GreaterThanOrEqual(a.criticalThreshold):
		return AlertCritical
	case score.GreaterThanOrEqual(a.warningThreshold):
		return AlertWarning
	default:
		return AlertNone
	}
}
