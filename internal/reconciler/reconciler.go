// Package reconciler orchestrates batch ingestion: fingerprint, consult the
// sync ledger, classify against known records, write through the gateway,
// and record the sync. Items are processed in insertion order, and records
// accepted earlier in a batch take part in matching the later ones, so a
// batch that repeats itself deduplicates against itself.
package reconciler

import (
	"context"
	"time"

	"fintrack-reconciliation-service/internal/ledger"
	"fintrack-reconciliation-service/internal/matcher"
	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/pkg/errors"
	"fintrack-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// Storage is the entity persistence the orchestrator writes through.
type Storage interface {
	FindByOwnerAndKind(ctx context.Context, ownerID int64, kind models.EntityKind) ([]*models.Record, error)
	Begin(ctx context.Context) (BatchTx, error)
}

// BatchTx is one batch's write transaction.
type BatchTx interface {
	Insert(ctx context.Context, r *models.Record) (int64, error)
	Update(ctx context.Context, r *models.Record) error
	Commit() error
	Rollback() error
}

// SyncLog is the ledger surface the orchestrator needs. Ledger errors are
// advisory: they are logged and never block entity writes.
type SyncLog interface {
	Lookup(ctx context.Context, ownerID int64, dataType models.DataType, source, sourceIdentifier string) (*ledger.Entry, error)
	Record(ctx context.Context, entry *ledger.Entry) (bool, error)
	Status(ctx context.Context, ownerID int64) ([]ledger.SourceStatus, error)
}

// Options tunes one reconciliation run.
type Options struct {
	// ForceRefresh skips the ledger short-circuit so already-synced
	// records are re-matched and refreshed.
	ForceRefresh bool
}

// Orchestrator runs reconciliation batches.
type Orchestrator struct {
	engine  *matcher.Engine
	storage Storage
	syncLog SyncLog
	logger  logger.Logger
}

// NewOrchestrator wires the match engine, entity storage and sync ledger
// together. The ledger may be nil, which disables sync tracking.
func NewOrchestrator(engine *matcher.Engine, storage Storage, syncLog SyncLog) *Orchestrator {
	return &Orchestrator{
		engine:  engine,
		storage: storage,
		syncLog: syncLog,
		logger:  logger.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// Reconcile processes one batch of incoming records for an owner. All
// accepted writes share a single transaction: a storage failure rolls the
// whole batch back and fails every item. Item-level problems (a missing
// required field, an unknown kind) fail only that item.
func (o *Orchestrator) Reconcile(ctx context.Context, ownerID int64, items []*models.Record, opts Options) (*Outcome, error) {
	outcome := &Outcome{
		BatchID:   uuid.New().String(),
		OwnerID:   ownerID,
		StartedAt: time.Now().UTC(),
	}
	log := o.logger.WithFields(logger.Fields{
		"batch_id": outcome.BatchID,
		"owner_id": ownerID,
		"items":    len(items),
	})
	log.Info("Starting reconciliation batch")

	known, err := o.loadKnown(ctx, ownerID, items)
	if err != nil {
		return o.failBatch(outcome, items, err), err
	}

	tx, err := o.storage.Begin(ctx)
	if err != nil {
		return o.failBatch(outcome, items, err), err
	}

	progress := logger.NewBatchProgress(log, "reconcile", len(items))
	// Records accepted earlier in this batch; later items match against
	// them as well as against persisted ones.
	accepted := make(map[models.EntityKind][]*models.Record)

	for _, item := range items {
		item.OwnerID = ownerID

		if !opts.ForceRefresh && o.alreadySynced(ctx, item) {
			outcome.Skipped = append(outcome.Skipped, SkippedItem{Record: item, Reason: "already synced"})
			progress.Observe(false, false, true, false)
			continue
		}

		verdict, err := o.classify(ctx, item, known[item.Kind], accepted[item.Kind])
		if err != nil {
			if e, ok := errors.AsError(err); ok && !e.ItemFatal() {
				tx.Rollback()
				return o.failBatch(outcome, items, err), err
			}
			outcome.Failed = append(outcome.Failed, FailedItem{Record: item, Reason: errors.ReasonFor(err)})
			progress.Observe(false, false, false, true)
			continue
		}

		switch verdict.Classification {
		case matcher.ClassConfirmedDuplicate:
			item.ID = verdict.Matched.ID
			item.DuplicateScore = verdict.Score
			if item.Kind == models.KindTransaction {
				// The stored time anchors the duplicate window. A later
				// sighting must not slide it forward, or a chain of
				// sightings could swallow genuinely new payments.
				item.OccurredAt = verdict.Matched.OccurredAt
			}
			if err := tx.Update(ctx, item); err != nil {
				tx.Rollback()
				return o.failBatch(outcome, items, err), err
			}
			accepted[item.Kind] = append(accepted[item.Kind], item)
			outcome.Updated = append(outcome.Updated, item)
			o.recordSync(ctx, item)
			progress.Observe(false, true, false, false)

		case matcher.ClassPossibleDuplicate:
			outcome.Skipped = append(outcome.Skipped, SkippedItem{
				Record: item,
				Score:  verdict.Score,
				Reason: verdict.Reason,
			})
			progress.Observe(false, false, true, false)

		default:
			if _, err := tx.Insert(ctx, item); err != nil {
				tx.Rollback()
				return o.failBatch(outcome, items, err), err
			}
			accepted[item.Kind] = append(accepted[item.Kind], item)
			outcome.Created = append(outcome.Created, item)
			o.recordSync(ctx, item)
			progress.Observe(true, false, false, false)
		}
	}

	if err := tx.Commit(); err != nil {
		return o.failBatch(outcome, items, err), err
	}
	progress.Finish()

	outcome.CompletedAt = time.Now().UTC()
	log.WithFields(logger.Fields{
		"created": len(outcome.Created),
		"updated": len(outcome.Updated),
		"skipped": len(outcome.Skipped),
		"failed":  len(outcome.Failed),
	}).Info("Reconciliation batch complete")
	return outcome, nil
}

// classify validates one item and runs the match engine against both the
// persisted records and the ones this batch already accepted.
func (o *Orchestrator) classify(ctx context.Context, item *models.Record, persisted, accepted []*models.Record) (*matcher.Verdict, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	pool := persisted
	if len(accepted) > 0 {
		pool = make([]*models.Record, 0, len(persisted)+len(accepted))
		pool = append(pool, persisted...)
		pool = append(pool, accepted...)
	}
	return o.engine.Match(ctx, item, pool)
}

// alreadySynced consults the ledger for records that carry a source
// identity. Ledger failures count as "not synced": duplicate detection still
// runs, so a broken ledger costs work, not correctness.
func (o *Orchestrator) alreadySynced(ctx context.Context, item *models.Record) bool {
	if o.syncLog == nil || item.Source == "" || item.SourceIdentifier == "" {
		return false
	}
	entry, err := o.syncLog.Lookup(ctx, item.OwnerID, item.Kind.DataType(), item.Source, item.SourceIdentifier)
	if err != nil {
		o.logger.WithError(err).WithFields(logger.Fields{
			"source":            item.Source,
			"source_identifier": item.SourceIdentifier,
		}).Warn("Ledger lookup failed, proceeding without sync state")
		return false
	}
	return entry != nil
}

// recordSync writes the ledger entry for an accepted item. Advisory only.
func (o *Orchestrator) recordSync(ctx context.Context, item *models.Record) {
	if o.syncLog == nil || item.Source == "" || item.SourceIdentifier == "" {
		return
	}
	_, err := o.syncLog.Record(ctx, &ledger.Entry{
		OwnerID:          item.OwnerID,
		DataType:         item.Kind.DataType(),
		Source:           item.Source,
		SourceIdentifier: item.SourceIdentifier,
		LastKnownDate:    item.OccurredAt,
	})
	if err != nil {
		o.logger.WithError(err).WithFields(logger.Fields{
			"source":            item.Source,
			"source_identifier": item.SourceIdentifier,
		}).Warn("Ledger write failed, entity write already accepted")
	}
}

// loadKnown fetches the owner's persisted records once per kind in the
// batch.
func (o *Orchestrator) loadKnown(ctx context.Context, ownerID int64, items []*models.Record) (map[models.EntityKind][]*models.Record, error) {
	known := make(map[models.EntityKind][]*models.Record)
	for _, item := range items {
		if !item.Kind.IsValid() {
			continue
		}
		if _, loaded := known[item.Kind]; loaded {
			continue
		}
		records, err := o.storage.FindByOwnerAndKind(ctx, ownerID, item.Kind)
		if err != nil {
			return nil, err
		}
		known[item.Kind] = records
	}
	return known, nil
}

// failBatch marks every item failed after a batch-fatal error.
func (o *Orchestrator) failBatch(outcome *Outcome, items []*models.Record, cause error) *Outcome {
	reason := errors.ReasonFor(cause)
	outcome.Created = nil
	outcome.Updated = nil
	outcome.Skipped = nil
	outcome.Failed = make([]FailedItem, 0, len(items))
	for _, item := range items {
		outcome.Failed = append(outcome.Failed, FailedItem{Record: item, Reason: reason})
	}
	outcome.CompletedAt = time.Now().UTC()
	o.logger.WithError(cause).WithField("batch_id", outcome.BatchID).
		Error("Reconciliation batch failed, all writes rolled back")
	return outcome
}

// SyncStatus summarizes the owner's ledger, grouped by data type and source.
func (o *Orchestrator) SyncStatus(ctx context.Context, ownerID int64) ([]ledger.SourceStatus, error) {
	if o.syncLog == nil {
		return nil, nil
	}
	return o.syncLog.Status(ctx, ownerID)
}

// CheckSync reports whether one source record has been synced, returning
// its ledger entry or nil.
func (o *Orchestrator) CheckSync(ctx context.Context, ownerID int64, dataType models.DataType, source, sourceIdentifier string) (*ledger.Entry, error) {
	if o.syncLog == nil {
		return nil, nil
	}
	return o.syncLog.Lookup(ctx, ownerID, dataType, source, sourceIdentifier)
}
