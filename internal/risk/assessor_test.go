package risk

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/walidbouh09/tradesense/pkg/types"
)

func testAlerts() types.AlertConfig {
	return types.AlertConfig{WarningThreshold: 60, CriticalThreshold: 80}
}

func newTestAssessor(t *testing.T) *Assessor {
	t.Helper()
	a, err := NewAssessor(zap.NewNop(), testAlerts(), "v1")
	if err != nil {
		t.Fatalf("NewAssessor: %v", err)
	}
	return a
}

func TestNewAssessorRejectsInvertedThresholds(t *testing.T) {
	_, err := NewAssessor(zap.NewNop(), types.AlertConfig{WarningThreshold: 80, CriticalThreshold: 60}, "v1")
	if err == nil {
		t.Fatal("expected error for critical below warning")
	}
}

func TestAssessChallengeRiskProducesFullRecord(t *testing.T) {
	a := newTestAssessor(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	trades := []types.Trade{
		mkTrade("t1", 100, 1, 100, now.Add(-2*time.Hour)),
		mkTrade("t2", -50, 1, 100, now.Add(-time.Hour)),
	}
	assessment, err := a.AssessChallengeRisk("ch_1", "trader-1", trades, now.Add(-3*time.Hour), now)
	if err != nil {
		t.Fatalf("AssessChallengeRisk: %v", err)
	}

	if assessment.ID == "" {
		t.Error("expected generated assessment id")
	}
	if assessment.ChallengeID != "ch_1" || assessment.TraderID != "trader-1" {
		t.Errorf("identity fields wrong: %s / %s", assessment.ChallengeID, assessment.TraderID)
	}
	if assessment.AssessmentVersion != "v1" {
		t.Errorf("expected version v1, got %s", assessment.AssessmentVersion)
	}
	if !assessment.AssessedAt.Equal(now) {
		t.Errorf("expected AssessedAt %s, got %s", now, assessment.AssessedAt)
	}
	if assessment.Features.TotalTrades != 2 {
		t.Errorf("expected 2 trades in features, got %d", assessment.Features.TotalTrades)
	}
	if assessment.Threshold.Level != assessment.Score.Level {
		t.Errorf("threshold level %s disagrees with score level %s",
			assessment.Threshold.Level, assessment.Score.Level)
	}
	if assessment.ActionPlan.Level != assessment.Score.Level {
		t.Errorf("action plan level %s disagrees with score level %s",
			assessment.ActionPlan.Level, assessment.Score.Level)
	}
	if len(assessment.Score.Breakdown) != 5 {
		t.Errorf("expected full breakdown, got %d components", len(assessment.Score.Breakdown))
	}
}

func TestAssessChallengeRiskRequiresChallengeID(t *testing.T) {
	a := newTestAssessor(t)
	if _, err := a.AssessChallengeRisk("", "trader-1", nil, time.Now(), time.Now()); err == nil {
		t.Fatal("expected error for missing challenge id")
	}
}

func TestAssessEmptyHistoryIsDeterministic(t *testing.T) {
	a := newTestAssessor(t)
	now := time.Now().UTC()

	first, err := a.AssessChallengeRisk("ch_1", "trader-1", nil, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("AssessChallengeRisk: %v", err)
	}
	second, err := a.AssessChallengeRisk("ch_1", "trader-1", nil, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("AssessChallengeRisk: %v", err)
	}
	if !first.Score.Score.Equal(second.Score.Score) {
		t.Errorf("same inputs, different scores: %s vs %s", first.Score.Score, second.Score.Score)
	}
}

func TestShouldEmitAlertBoundaries(t *testing.T) {
	a := newTestAssessor(t)

	tests := []struct {
		score float64
		want  AlertDecision
	}{
		{0, AlertNone},
		{59.99, AlertNone},
		{60, AlertWarning},
		{79.99, AlertWarning},
		{80, AlertCritical},
		{100, AlertCritical},
	}
	for _, tt := range tests {
		if got := a.ShouldEmitAlert(dec(tt.score)); got != tt.want {
			t.Errorf("score %v: expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestAlertDecisionSeverity(t *testing.T) {
	tests := []struct {
		decision AlertDecision
		want     types.AlertSeverity
	}{
		{AlertCritical, types.SeverityCritical},
		{AlertWarning, types.SeverityWarning},
		{AlertNone, types.SeverityInfo},
	}
	for _, tt := range tests {
		if got := tt.decision.Severity(); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.decision, tt.want, got)
		}
	}
}
