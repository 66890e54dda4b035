package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/walidbouh09/tradesense/pkg/types"
	"github.com/walidbouh09/tradesense/pkg/utils"
)

// Sub-score weights. They sum to 1; the weighted total is clamped to
// [0, 100] regardless.
var (
	weightVolatility  = decimal.NewFromFloat(0.30)
	weightDrawdown    = decimal.NewFromFloat(0.25)
	weightBehavior    = decimal.NewFromFloat(0.20)
	weightLossStreak  = decimal.NewFromFloat(0.15)
	weightOvertrading = decimal.NewFromFloat(0.10)
)

// ScoreComponent is one line of the audit breakdown.
type ScoreComponent struct {
	Name        string          `json:"name"`
	Raw         decimal.Decimal `json:"raw"`
	Weight      decimal.Decimal `json:"weight"`
	Weighted    decimal.Decimal `json:"weighted"`
	Explanation string          `json:"explanation"`
}

// RiskScore is the scored and classified output for one feature set.
type RiskScore struct {
	Score      decimal.Decimal  `json:"score"`
	Level      types.RiskLevel  `json:"level"`
	Breakdown  []ScoreComponent `json:"breakdown"`
	ComputedAt time.Time        `json:"computedAt"`
}

// ScoreFeatures combines five normalized sub-scores into a [0,100] risk
// score with a full audit breakdown. Deterministic for a given feature
// set; extreme inputs are clamped, never rejected.
func ScoreFeatures(fs FeatureSet) RiskScore {
	// An empty history carries no risk signal at all; every sub-score is
	// zero rather than the neutral values used for sparse histories.
	if fs.TotalTrades == 0 {
		return RiskScore{
			Score: decimal.Zero,
			Level: ClassifyScore(decimal.Zero).Level,
			Breakdown: []ScoreComponent{
				component("volatility", decimal.Zero, weightVolatility, "no trades in analysis window"),
				component("drawdown", decimal.Zero, weightDrawdown, "no trades in analysis window"),
				component("behavior", decimal.Zero, weightBehavior, "no trades in analysis window"),
				component("loss_streak", decimal.Zero, weightLossStreak, "no trades in analysis window"),
				component("overtrading", decimal.Zero, weightOvertrading, "no trades in analysis window"),
			},
			ComputedAt: time.Now().UTC(),
		}
	}

	components := []ScoreComponent{
		component("volatility", volatilitySubScore(fs), weightVolatility,
			fmt.Sprintf("pnl volatility %s vs avg pnl %s", fs.PnLVolatility, fs.AvgTradePnL)),
		component("drawdown", drawdownSubScore(fs), weightDrawdown,
			fmt.Sprintf("max intraday drawdown %s%%, drawdown speed %s%%", fs.MaxIntradayDrawdown, fs.DrawdownSpeed)),
		component("behavior", behaviorSubScore(fs), weightBehavior,
			fmt.Sprintf("%s trades per hour", fs.TradesPerHour)),
		component("loss_streak", lossStreakSubScore(fs.LossStreak), weightLossStreak,
			fmt.Sprintf("%d consecutive losing trades", fs.LossStreak)),
		component("overtrading", fs.OvertradingScore, weightOvertrading,
			fmt.Sprintf("overtrading score %s", fs.OvertradingScore)),
	}

	var total decimal.Decimal
	for _, c := range components {
		total = total.Add(c.Weighted)
	}
	total = utils.ClampDecimal(total, decimal.Zero, hundred).Round(2)

	return RiskScore{
		Score:      total,
		Level:      ClassifyScore(total).Level,
		Breakdown:  components,
		ComputedAt: time.Now().UTC(),
	}
}

func component(name string, raw, weight decimal.Decimal, explanation string) ScoreComponent {
	raw = utils.ClampDecimal(raw, decimal.Zero, hundred).Round(2)
	return ScoreComponent{
		Name:        name,
		Raw:         raw,
		Weight:      weight,
		Weighted:    raw.Mul(weight).Round(2),
		Explanation: explanation,
	}
}

// volatilitySubScore maps the volatility-to-mean ratio onto [0,100].
// Fewer than two trades gives the neutral 50; a zero mean with nonzero
// volatility is an infinite ratio, treated as 100.
func volatilitySubScore(fs FeatureSet) decimal.Decimal {
	if fs.TotalTrades < 2 {
		return decimal.NewFromInt(50)
	}
	absAvg := fs.AvgTradePnL.Abs()
	if absAvg.IsZero() {
		if fs.PnLVolatility.IsZero() {
			return decimal.Zero
		}
		return hundred
	}
	ratio := fs.PnLVolatility.Div(absAvg)
	five := decimal.NewFromInt(5)
	if ratio.GreaterThan(five) {
		ratio = five
	}
	return ratio.Div(five).Mul(hundred)
}

// drawdownSubScore blends depth and speed of intraday drawdowns.
func drawdownSubScore(fs FeatureSet) decimal.Decimal {
	depth := utils.MinDecimal(hundred, fs.MaxIntradayDrawdown.Mul(decimal.NewFromInt(2)))
	speed := utils.MinDecimal(hundred, fs.DrawdownSpeed.Mul(decimal.NewFromInt(10)))
	return depth.Mul(decimal.NewFromFloat(0.7)).Add(speed.Mul(decimal.NewFromFloat(0.3)))
}

// behaviorSubScore is piecewise in trade frequency. Very low frequency
// is mildly suspect, the 1-5 per hour band is baseline, and frequency
// above ten per hour dominates.
func behaviorSubScore(fs FeatureSet) decimal.Decimal {
	tph := fs.TradesPerHour
	switch {
	case tph.LessThan(decimal.NewFromInt(1)):
		return decimal.NewFromInt(30)
	case tph.LessThanOrEqual(decimal.NewFromInt(5)):
		return decimal.NewFromInt(10)
	case tph.LessThanOrEqual(decimal.NewFromInt(10)):
		return decimal.NewFromInt(40)
	default:
		return decimal.NewFromInt(80)
	}
}

// lossStreakSubScore maps trailing loss streak length onto [0,100].
func lossStreakSubScore(streak int) decimal.Decimal {
	switch {
	case streak <= 0:
		return decimal.Zero
	case streak == 1:
		return decimal.NewFromInt(20)
	case streak == 2:
		return decimal.NewFromInt(40)
	case streak == 3:
		return decimal.NewFromInt(65)
	case streak <= 5:
		return decimal.NewFromInt(80)
	default:
		return hundred
	}
}
