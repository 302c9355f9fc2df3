// Package review exposes persisted duplicate scores as confidence tiers for
// human review. Scoring happens during reconciliation; review only reads.
package review

import (
	"context"

	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/pkg/errors"
)

// Tier is a duplicate confidence band.
type Tier string

const (
	// TierHigh covers scores 76-100: almost certainly duplicates.
	TierHigh Tier = "high"
	// TierMedium covers scores 51-75: likely duplicates, worth a look.
	TierMedium Tier = "medium"
	// TierLow covers scores 21-50: weak signals, usually distinct.
	TierLow Tier = "low"
)

// tier bounds, inclusive on both ends.
var tierBounds = map[Tier][2]int{
	TierHigh:   {76, 100},
	TierMedium: {51, 75},
	TierLow:    {21, 50},
}

// AllTiers lists the tiers from most to least confident.
func AllTiers() []Tier {
	return []Tier{TierHigh, TierMedium, TierLow}
}

// TierFor returns the tier a score falls in. Scores below the low band have
// no tier; such records are not review candidates.
func TierFor(score int) (Tier, bool) {
	for _, tier := range AllTiers() {
		bounds := tierBounds[tier]
		if score >= bounds[0] && score <= bounds[1] {
			return tier, true
		}
	}
	return "", false
}

// Store is the scored-record read surface the queue needs.
type Store interface {
	FindScored(ctx context.Context, ownerID int64, min, max, limit int) ([]*models.Record, error)
}

// Queue serves an owner's flagged duplicates grouped by confidence.
type Queue struct {
	store Store
}

// NewQueue creates a review queue over the given store.
func NewQueue(store Store) *Queue {
	return &Queue{store: store}
}

// Duplicates returns the owner's records in one confidence tier, highest
// score first. A positive limit caps the result; zero means everything.
func (q *Queue) Duplicates(ctx context.Context, ownerID int64, tier Tier, limit int) ([]*models.Record, error) {
	bounds, ok := tierBounds[tier]
	if !ok {
		return nil, errors.New(errors.CategoryValidation, errors.CodeInvalidTier,
			"unknown confidence tier "+string(tier))
	}
	return q.store.FindScored(ctx, ownerID, bounds[0], bounds[1], limit)
}

// Report groups every review candidate by tier.
type Report struct {
	OwnerID int64                     `json:"owner_id"`
	Tiers   map[Tier][]*models.Record `json:"tiers"`
}

// Total returns the number of records across all tiers.
func (r *Report) Total() int {
	n := 0
	for _, records := range r.Tiers {
		n += len(records)
	}
	return n
}

// All builds the full review report for an owner. A positive limit applies
// per tier.
func (q *Queue) All(ctx context.Context, ownerID int64, limit int) (*Report, error) {
	report := &Report{OwnerID: ownerID, Tiers: make(map[Tier][]*models.Record)}
	for _, tier := range AllTiers() {
		records, err := q.Duplicates(ctx, ownerID, tier, limit)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			report.Tiers[tier] = records
		}
	}
	return report, nil
}
