package reconciler

import (
	"time"

	"fintrack-reconciliation-service/internal/models"
)

// SkippedItem is a batch item that was deliberately not written: either the
// ledger already knew it, or it looks like a duplicate that needs review.
type SkippedItem struct {
	Record *models.Record `json:"record"`
	// Score is the 0-100 duplicate confidence for possible duplicates;
	// zero for ledger skips.
	Score  int    `json:"score,omitempty"`
	Reason string `json:"reason"`
}

// FailedItem is a batch item that could not be processed.
type FailedItem struct {
	Record *models.Record `json:"record"`
	Reason string         `json:"reason"`
}

// Outcome is the full result of one reconciliation batch.
type Outcome struct {
	BatchID     string           `json:"batch_id"`
	OwnerID     int64            `json:"owner_id"`
	Created     []*models.Record `json:"created"`
	Updated     []*models.Record `json:"updated"`
	Skipped     []SkippedItem    `json:"skipped"`
	Failed      []FailedItem     `json:"failed"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Total returns the number of items the batch carried.
func (o *Outcome) Total() int {
	return len(o.Created) + len(o.Updated) + len(o.Skipped) + len(o.Failed)
}

// Duration returns how long the batch took.
func (o *Outcome) Duration() time.Duration {
	return o.CompletedAt.Sub(o.StartedAt)
}
