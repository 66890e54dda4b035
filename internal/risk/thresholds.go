package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/walidbouh09/tradesense/pkg/types"
)

// Threshold describes one risk band. Bands are half-open (Min, Max]
// except the first, which includes its lower bound, so together they
// cover [0, 100] contiguously.
type Threshold struct {
	Level              types.RiskLevel `json:"level"`
	Min                decimal.Decimal `json:"min"`
	Max                decimal.Decimal `json:"max"`
	Description        string          `json:"description"`
	RequiredAction     string          `json:"requiredAction"`
	MonitoringCadence  string          `json:"monitoringCadence"`
	EscalationCriteria string          `json:"escalationCriteria"`
}

// thresholdTable is the static classification data. Order matters: it is
// scanned lowest band first.
var thresholdTable = []Threshold{
	{
		Level:              types.RiskLevelStable,
		Min:                decimal.Zero,
		Max:                decimal.NewFromInt(30),
		Description:        "Trading behavior within normal bounds",
		RequiredAction:     "none",
		MonitoringCadence:  "daily",
		EscalationCriteria: "score rises above 30 on two consecutive assessments",
	},
	{
		Level:              types.RiskLevelMonitor,
		Min:                decimal.NewFromInt(30),
		Max:                decimal.NewFromInt(60),
		Description:        "Elevated risk markers, watch closely",
		RequiredAction:     "flag account for review queue",
		MonitoringCadence:  "hourly",
		EscalationCriteria: "score rises above 60 or loss streak reaches 4",
	},
	{
		Level:              types.RiskLevelHighRisk,
		Min:                decimal.NewFromInt(60),
		Max:                decimal.NewFromInt(80),
		Description:        "Sustained risky behavior detected",
		RequiredAction:     "notify risk desk and annotate account",
		MonitoringCadence:  "every cycle",
		EscalationCriteria: "score rises above 80 or a drawdown limit is approached",
	},
	{
		Level:              types.RiskLevelCritical,
		Min:                decimal.NewFromInt(80),
		Max:                decimal.NewFromInt(100),
		Description:        "Behavior consistent with imminent blow-up",
		RequiredAction:     "immediate manual review by risk desk",
		MonitoringCadence:  "every cycle",
		EscalationCriteria: "any further deterioration",
	},
}

// ValidateThresholds checks at startup that the bands cover [0, 100]
// contiguously with no gaps or overlaps.
func ValidateThresholds() error {
	if len(thresholdTable) == 0 {
		return fmt.Errorf("empty threshold table")
	}
	if !thresholdTable[0].Min.IsZero() {
		return fmt.Errorf("threshold table must start at 0, starts at %s", thresholdTable[0].Min)
	}
	for i, t := range thresholdTable {
		if t.Max.LessThanOrEqual(t.Min) {
			return fmt.Errorf("threshold %s: max %s not above min %s", t.Level, t.Max, t.Min)
		}
		if i > 0 && !t.Min.Equal(thresholdTable[i-1].Max) {
			return fmt.Errorf("threshold %s: min %s does not continue from %s",
				t.Level, t.Min, thresholdTable[i-1].Max)
		}
	}
	last := thresholdTable[len(thresholdTable)-1]
	if !last.Max.Equal(decimal.NewFromInt(100)) {
		return fmt.Errorf("threshold table must end at 100, ends at %s", last.Max)
	}
	return nil
}

// ClassifyScore returns the band a score falls into. Scores are clamped
// into [0, 100] first, so classification is total.
func ClassifyScore(score decimal.Decimal) Threshold {
	if score.LessThanOrEqual(thresholdTable[0].Max) {
		return thresholdTable[0]
	}
	for _, t := range thresholdTable[1:] {
		if score.GreaterThan(t.Min) && score.LessThanOrEqual(t.Max) {
			return t
		}
	}
	return thresholdTable[len(thresholdTable)-1]
}

// ActionPlan is the operator-facing response to a classified score.
type ActionPlan struct {
	Level            types.RiskLevel `json:"level"`
	Threshold        Threshold       `json:"threshold"`
	ImmediateActions []string        `json:"immediateActions"`
	Timeline         string          `json:"timeline"`
	Contacts         []string        `json:"contacts"`
}

// planTable holds the level-specific response data.
var planTable = map[types.RiskLevel]struct {
	actions  []string
	timeline string
	contacts []string
}{
	types.RiskLevelStable: {
		actions:  []string{"continue standard monitoring"},
		timeline: "next scheduled assessment",
		contacts: []string{"monitoring@tradesense"},
	},
	types.RiskLevelMonitor: {
		actions:  []string{"add account to review queue", "compare against previous assessment"},
		timeline: "within 24 hours",
		contacts: []string{"monitoring@tradesense"},
	},
	types.RiskLevelHighRisk: {
		actions:  []string{"notify risk desk", "annotate account with breakdown", "review recent trade sizing"},
		timeline: "within 4 hours",
		contacts: []string{"risk-desk@tradesense", "monitoring@tradesense"},
	},
	types.RiskLevelCritical: {
		actions:  []string{"page risk desk", "prepare manual account review", "snapshot full trade history"},
		timeline: "immediately",
		contacts: []string{"risk-desk@tradesense", "head-of-risk@tradesense"},
	},
}

// GenerateActionPlan returns the matching threshold entry plus the
// level-specific immediate actions, timeline and contact list.
func GenerateActionPlan(score decimal.Decimal) ActionPlan {
	threshold := ClassifyScore(score)
	plan := planTable[threshold.Level]
	return ActionPlan{
		Level:            threshold.Level,
		Threshold:        threshold,
		ImmediateActions: plan.actions,
		Timeline:         plan.timeline,
		Contacts:         plan.contacts,
	}
}
