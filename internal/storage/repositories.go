package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/walidbouh09/tradesense/internal/challenge"
	"github.com/walidbouh09/tradesense/internal/engine"
	"github.com/walidbouh09/tradesense/internal/risk"
	"github.com/walidbouh09/tradesense/pkg/types"
)

// ChallengeRepository implements the engine's ChallengeStore against one
// gorm handle. Bind it to a transaction for the hot path; the row lock
// it takes lives exactly as long as that transaction.
type ChallengeRepository struct {
	tx *gorm.DB
}

// NewChallengeRepository binds a repository to a transaction (or, for
// read-only callers, to the base handle).
func NewChallengeRepository(tx *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{tx: tx}
}

// LoadForUpdate fetches a challenge under an exclusive row lock.
// Sqlite serializes writers at the database level, so the explicit
// locking clause is applied only on postgres.
func (r *ChallengeRepository) LoadForUpdate(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	q := r.tx.WithContext(ctx)
	if r.tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rec ChallengeRecord
	if err := q.First(&rec, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &engine.ChallengeNotFoundError{ChallengeID: challengeID}
		}
		return nil, fmt.Errorf("loading challenge %s: %w", challengeID, err)
	}
	return rec.ToDomain(), nil
}

// Save writes all aggregate fields back. The update is guarded by the
// version the aggregate was loaded with; a mismatch means another
// transaction slipped past the row lock and the save is rejected.
func (r *ChallengeRepository) Save(ctx context.Context, c *challenge.Challenge) error {
	rec := recordFromDomain(c)
	loadedVersion := rec.Version
	rec.Version = loadedVersion + 1

	result := r.tx.WithContext(ctx).
		Model(&ChallengeRecord{}).
		Where("id = ? AND version = ?", rec.ID, loadedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(rec)
	if result.Error != nil {
		return fmt.Errorf("saving challenge %s: %w", rec.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("challenge %s at version %d: %w", rec.ID, loadedVersion, ErrVersionConflict)
	}

	c.Version = rec.Version
	return nil
}

// Create inserts a new challenge row.
func (r *ChallengeRepository) Create(ctx context.Context, c *challenge.Challenge) error {
	rec := recordFromDomain(c)
	if err := r.tx.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("creating challenge %s: %w", c.ID, err)
	}
	return nil
}

// Get fetches a challenge without locking.
func (r *ChallengeRepository) Get(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	var rec ChallengeRecord
	if err := r.tx.WithContext(ctx).First(&rec, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &engine.ChallengeNotFoundError{ChallengeID: challengeID}
		}
		return nil, fmt.Errorf("loading challenge %s: %w", challengeID, err)
	}
	return rec.ToDomain(), nil
}

// ListActive returns every ACTIVE challenge, read-only. Used by the
// cold path; takes no row locks.
func (r *ChallengeRepository) ListActive(ctx context.Context) ([]*challenge.Challenge, error) {
	var recs []ChallengeRecord
	if err := r.tx.WithContext(ctx).
		Where("status = ?", string(types.StatusActive)).
		Order("created_at").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing active challenges: %w", err)
	}
	out := make([]*challenge.Challenge, len(recs))
	for i := range recs {
		out[i] = recs[i].ToDomain()
	}
	return out, nil
}

// TradeRepository persists and reads finished trades.
type TradeRepository struct {
	tx *gorm.DB
}

// NewTradeRepository binds a trade repository to a gorm handle.
func NewTradeRepository(tx *gorm.DB) *TradeRepository {
	return &TradeRepository{tx: tx}
}

// Insert records one executed trade.
func (r *TradeRepository) Insert(ctx context.Context, evt *types.TradeExecuted) error {
	rec := &TradeRecord{
		TradeID:     evt.TradeID,
		ChallengeID: evt.ChallengeID,
		Symbol:      evt.Symbol,
		Side:        string(evt.Side),
		Quantity:    evt.Quantity,
		Price:       evt.Price,
		RealizedPnL: evt.RealizedPnL,
		ExecutedAt:  evt.ExecutedAt.UTC(),
	}
	if err := r.tx.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("inserting trade %s: %w", evt.TradeID, err)
	}
	return nil
}

// ListByChallenge returns a challenge's trades in execution order.
func (r *TradeRepository) ListByChallenge(ctx context.Context, challengeID string) ([]types.Trade, error) {
	var recs []TradeRecord
	if err := r.tx.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("executed_at, id").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing trades for challenge %s: %w", challengeID, err)
	}
	out := make([]types.Trade, len(recs))
	for i := range recs {
		out[i] = recs[i].ToDomain()
	}
	return out, nil
}

// AssessmentRepository persists append-only risk assessments.
type AssessmentRepository struct {
	tx *gorm.DB
}

// NewAssessmentRepository binds an assessment repository to a handle.
func NewAssessmentRepository(tx *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{tx: tx}
}

// Insert writes one immutable assessment row.
func (r *AssessmentRepository) Insert(ctx context.Context, a *risk.RiskAssessment) error {
	breakdown, err := json.Marshal(a.Score.Breakdown)
	if err != nil {
		return fmt.Errorf("encoding breakdown: %w", err)
	}
	features, err := json.Marshal(a.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}
	threshold, err := json.Marshal(a.Threshold)
	if err != nil {
		return fmt.Errorf("encoding threshold: %w", err)
	}
	plan, err := json.Marshal(a.ActionPlan)
	if err != nil {
		return fmt.Errorf("encoding action plan: %w", err)
	}

	rec := &RiskAssessmentRecord{
		ID:                a.ID,
		ChallengeID:       a.ChallengeID,
		TraderID:          a.TraderID,
		Score:             a.Score.Score,
		Level:             string(a.Score.Level),
		Breakdown:         string(breakdown),
		Features:          string(features),
		Threshold:         string(threshold),
		ActionPlan:        string(plan),
		AssessedAt:        a.AssessedAt.UTC(),
		AssessmentVersion: a.AssessmentVersion,
	}
	if err := r.tx.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("inserting assessment %s: %w", a.ID, err)
	}
	return nil
}

// ListByChallenge returns a challenge's assessments, newest first.
func (r *AssessmentRepository) ListByChallenge(ctx context.Context, challengeID string, limit int) ([]*risk.RiskAssessment, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []RiskAssessmentRecord
	if err := r.tx.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("assessed_at DESC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing assessments for challenge %s: %w", challengeID, err)
	}

	out := make([]*risk.RiskAssessment, 0, len(recs))
	for i := range recs {
		a, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *RiskAssessmentRecord) toDomain() (*risk.RiskAssessment, error) {
	a := &risk.RiskAssessment{
		ID:          r.ID,
		ChallengeID: r.ChallengeID,
		TraderID:    r.TraderID,
		Score: risk.RiskScore{
			Score:      r.Score,
			Level:      types.RiskLevel(r.Level),
			ComputedAt: r.AssessedAt,
		},
		AssessedAt:        r.AssessedAt,
		AssessmentVersion: r.AssessmentVersion,
	}
	if err := json.Unmarshal([]byte(r.Breakdown), &a.Score.Breakdown); err != nil {
		return nil, fmt.Errorf("decoding breakdown for assessment %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Features), &a.Features); err != nil {
		return nil, fmt.Errorf("decoding features for assessment %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Threshold), &a.Threshold); err != nil {
		return nil, fmt.Errorf("decoding threshold for assessment %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.ActionPlan), &a.ActionPlan); err != nil {
		return nil, fmt.Errorf("decoding action plan for assessment %s: %w", r.ID, err)
	}
	return a, nil
}
