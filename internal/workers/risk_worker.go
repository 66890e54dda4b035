// Package workers provides the background risk scoring worker. It is
// the cold path: read-only over challenges and trades, never blocking
// the trade-handling hot path, sharing state with it only through the
// database and the event bus.
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/walidbouh09/tradesense/internal/challenge"
	"github.com/walidbouh09/tradesense/internal/events"
	"github.com/walidbouh09/tradesense/internal/risk"
	"github.com/walidbouh09/tradesense/pkg/types"
)

// ChallengeLister lists challenges eligible for assessment. Read-only;
// implementations must not take write locks.
type ChallengeLister interface {
	ListActive(ctx context.Context) ([]*challenge.Challenge, error)
}

// TradeLister loads a challenge's finished trades in execution order.
type TradeLister interface {
	ListByChallenge(ctx context.Context, challengeID string) ([]types.Trade, error)
}

// AssessmentWriter appends one immutable assessment row.
type AssessmentWriter interface {
	Insert(ctx context.Context, a *risk.RiskAssessment) error
}

// Config configures the risk worker
type Config struct {
	Interval      time.Duration // cycle cadence
	MaxRuntime    time.Duration // soft restart boundary
	MaxConcurrent int           // challenges assessed in parallel per cycle
}

// DefaultConfig returns the deployment defaults
func DefaultConfig() Config {
	return Config{
		Interval:      time.Minute,
		MaxRuntime:    24 * time.Hour,
		MaxConcurrent: 8,
	}
}

// Stats tracks worker progress
type Stats struct {
	CyclesCompleted  int64 `json:"cycles_completed"`
	CyclesOverrun    int64 `json:"cycles_overrun"`
	ChallengesScored int64 `json:"challenges_scored"`
	AssessmentErrors int64 `json:"assessment_errors"`
	AlertsEmitted    int64 `json:"alerts_emitted"`
}

// RiskWorker periodically assesses every active challenge.
type RiskWorker struct {
	logger      *zap.Logger
	config      Config
	assessor    *risk.Assessor
	bus         *events.Bus
	challenges  ChallengeLister
	trades      TradeLister
	assessments AssessmentWriter

	// now is swappable for tests
	now func() time.Time

	cyclesCompleted  atomic.Int64
	cyclesOverrun    atomic.Int64
	challengesScored atomic.Int64
	assessmentErrors atomic.Int64
	alertsEmitted    atomic.Int64
}

// NewRiskWorker creates a risk worker
func NewRiskWorker(
	logger *zap.Logger,
	config Config,
	assessor *risk.Assessor,
	bus *events.Bus,
	challenges ChallengeLister,
	trades TradeLister,
	assessments AssessmentWriter,
) *RiskWorker {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 8
	}
	return &RiskWorker{
		logger:      logger.Named("risk-worker"),
		config:      config,
		assessor:    assessor,
		bus:         bus,
		challenges:  challenges,
		trades:      trades,
		assessments: assessments,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run executes assessment cycles until the context is cancelled or the
// configured max runtime elapses, after which the worker exits and the
// supervisor restarts it. A cycle that overruns its interval logs a
// warning and the next cycle starts immediately.
func (w *RiskWorker) Run(ctx context.Context) error {
	w.logger.Info("risk worker started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("max_runtime", w.config.MaxRuntime),
		zap.Int("max_concurrent", w.config.MaxConcurrent),
	)

	if w.config.MaxRuntime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.MaxRuntime)
		defer cancel()
	}

	for {
		started := time.Now()
		if err := w.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("risk worker stopping", zap.Error(ctx.Err()))
				return nil
			}
			w.logger.Error("assessment cycle failed", zap.Error(err))
		}

		elapsed := time.Since(started)
		if elapsed > w.config.Interval {
			w.cyclesOverrun.Add(1)
			w.logger.Warn("assessment cycle overran its interval",
				zap.Duration("elapsed", elapsed),
				zap.Duration("interval", w.config.Interval),
			)
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info("risk worker stopping", zap.Error(ctx.Err()))
			return nil
		case <-time.After(w.config.Interval - elapsed):
		}
	}
}

// RunCycle assesses every active challenge once, with bounded
// concurrency so one slow challenge cannot starve the rest. The whole
// cycle shares one budget equal to the interval.
func (w *RiskWorker) RunCycle(ctx context.Context) error {
	cycleCtx, cancel := context.WithTimeout(ctx, w.config.Interval)
	defer cancel()

	active, err := w.challenges.ListActive(cycleCtx)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, w.config.MaxConcurrent)
	var wg sync.WaitGroup

	for _, ch := range active {
		ch := ch
		select {
		case <-cycleCtx.Done():
			wg.Wait()
			return cycleCtx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					w.assessmentErrors.Add(1)
					w.logger.Error("assessment panic",
						zap.String("challenge_id", ch.ID),
						zap.Any("panic", r),
					)
				}
			}()

			if err := w.assessChallenge(cycleCtx, ch); err != nil {
				w.assessmentErrors.Add(1)
				w.logger.Warn("challenge assessment failed",
					zap.String("challenge_id", ch.ID),
					zap.Error(err),
				)
			}
		}()
	}

	wg.Wait()
	w.cyclesCompleted.Add(1)
	return nil
}

// assessChallenge runs the full pipeline for one challenge: load trades,
// assess, persist, maybe alert.
func (w *RiskWorker) assessChallenge(ctx context.Context, ch *challenge.Challenge) error {
	trades, err := w.trades.ListByChallenge(ctx, ch.ID)
	if err != nil {
		return err
	}

	startedAt := ch.CreatedAt
	if ch.StartedAt != nil {
		startedAt = *ch.StartedAt
	}

	assessment, err := w.assessor.AssessChallengeRisk(ch.ID, ch.TraderID, trades, startedAt, w.now())
	if err != nil {
		return err
	}

	if err := w.assessments.Insert(ctx, assessment); err != nil {
		return err
	}
	w.challengesScored.Add(1)

	decision := w.assessor.ShouldEmitAlert(assessment.Score.Score)
	if decision == risk.AlertNone {
		return nil
	}

	w.alertsEmitted.Add(1)
	w.bus.Publish(events.NewRiskAlertEvent(
		ch.ID,
		"behavioral_risk",
		decision.Severity(),
		"Elevated behavioral risk score",
		"risk score "+assessment.Score.Score.String()+" classified "+string(assessment.Score.Level),
		map[string]any{
			"assessment_id":       assessment.ID,
			"score":               assessment.Score.Score.String(),
			"level":               string(assessment.Score.Level),
			"features":            assessment.Features,
			"breakdown":           assessment.Score.Breakdown,
			"recommended_actions": assessment.ActionPlan.ImmediateActions,
		},
	))

	return nil
}

// GetStats returns current worker counters
func (w *RiskWorker) GetStats() Stats {
	return Stats{
		CyclesCompleted:  w.cyclesCompleted.Load(),
		CyclesOverrun:    w.cyclesOverrun.Load(),
		ChallengesScored: w.challengesScored.Load(),
		AssessmentErrors: w.assessmentErrors.Load(),
		AlertsEmitted:    w.alertsEmitted.Load(),
	}
}

// SetNow overrides the worker clock. Test hook.
func (w *RiskWorker) SetNow(now func() time.Time) {
	w.now = now
}
