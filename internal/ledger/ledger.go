// Package ledger persists which source records have already been ingested,
// keyed by owner, data type, source and the source's own identifier. The
// ledger lets repeated scraper runs skip work they have already done and
// answers "have I seen this before" without touching entity storage.
//
// The ledger is advisory. Callers log and continue on ledger errors; a
// broken ledger costs duplicate detection work on the next run, never data.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/pkg/errors"
	"fintrack-reconciliation-service/pkg/logger"

	_ "modernc.org/sqlite"
)

// Entry is one ledger row: a single source record seen for an owner.
type Entry struct {
	ID               int64             `json:"id"`
	OwnerID          int64             `json:"owner_id"`
	DataType         models.DataType   `json:"data_type"`
	Source           string            `json:"source"`
	SourceIdentifier string            `json:"source_identifier"`
	SourceFileHash   string            `json:"source_file_hash,omitempty"`
	LastKnownDate    time.Time         `json:"last_known_date,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	SyncedAt         time.Time         `json:"synced_at"`
}

// SourceStatus summarizes one (data type, source) pair for an owner.
type SourceStatus struct {
	DataType models.DataType `json:"data_type"`
	Source   string          `json:"source"`
	Count    int             `json:"count"`
	LastSync time.Time       `json:"last_sync"`
}

// Ledger is the sqlite-backed sync log.
type Ledger struct {
	db     *sql.DB
	logger logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS sync_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id INTEGER NOT NULL,
	data_type TEXT NOT NULL,
	source TEXT NOT NULL,
	source_identifier TEXT NOT NULL,
	source_file_hash TEXT NOT NULL DEFAULT '',
	last_known_date TIMESTAMP,
	metadata TEXT NOT NULL DEFAULT '{}',
	synced_at TIMESTAMP NOT NULL,
	UNIQUE(owner_id, data_type, source, source_identifier)
);
CREATE INDEX IF NOT EXISTS idx_sync_log_owner_type ON sync_log(owner_id, data_type);
`

// Open opens (or creates) a ledger database at path. Use ":memory:" for an
// ephemeral ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.LedgerError(errors.CodeLedgerWriteFailure, "open", err)
	}
	// In-memory sqlite gives every connection its own database; a single
	// connection keeps the ledger coherent and sidesteps write contention
	// on file databases too.
	db.SetMaxOpenConns(1)

	ledger, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return ledger, nil
}

// New wraps an existing database handle and ensures the schema exists.
func New(db *sql.DB) (*Ledger, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.LedgerError(errors.CodeLedgerWriteFailure, "migrate", err)
	}
	return &Ledger{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("ledger"),
	}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Lookup returns the ledger entry for a source record, or nil when the
// record has never been synced.
func (l *Ledger) Lookup(ctx context.Context, ownerID int64, dataType models.DataType, source, sourceIdentifier string) (*Entry, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, owner_id, data_type, source, source_identifier,
		       source_file_hash, last_known_date, metadata, synced_at
		FROM sync_log
		WHERE owner_id = ? AND data_type = ? AND source = ? AND source_identifier = ?`,
		ownerID, string(dataType), source, sourceIdentifier)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "lookup", err)
	}
	return entry, nil
}

// Record upserts a ledger entry and reports whether it was newly created.
// The (owner, data type, source, identifier) tuple is the identity; a repeat
// sync refreshes the existing row instead of growing the log.
func (l *Ledger) Record(ctx context.Context, entry *Entry) (bool, error) {
	if entry.SyncedAt.IsZero() {
		entry.SyncedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return false, errors.LedgerError(errors.CodeLedgerWriteFailure, "record", err)
	}
	if entry.Metadata == nil {
		metadata = []byte("{}")
	}

	// Created-vs-updated comes from a read before the upsert. That is only
	// race-free because the pool is pinned to a single connection; a wider
	// pool would need RETURNING to answer atomically.
	existing, err := l.Lookup(ctx, entry.OwnerID, entry.DataType, entry.Source, entry.SourceIdentifier)
	if err != nil {
		return false, err
	}

	var lastKnown interface{}
	if !entry.LastKnownDate.IsZero() {
		lastKnown = entry.LastKnownDate.UTC()
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO sync_log (owner_id, data_type, source, source_identifier,
		                      source_file_hash, last_known_date, metadata, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, data_type, source, source_identifier) DO UPDATE SET
			source_file_hash = excluded.source_file_hash,
			last_known_date = excluded.last_known_date,
			metadata = excluded.metadata,
			synced_at = excluded.synced_at`,
		entry.OwnerID, string(entry.DataType), entry.Source, entry.SourceIdentifier,
		entry.SourceFileHash, lastKnown, string(metadata), entry.SyncedAt.UTC())
	if err != nil {
		return false, errors.LedgerError(errors.CodeLedgerWriteFailure, "record", err)
	}
	return existing == nil, nil
}

// Partition splits source identifiers into those the ledger already knows
// and those it has never seen, in a single query. Known identifiers come
// back with their entries; order follows the input, duplicates collapse.
func (l *Ledger) Partition(ctx context.Context, ownerID int64, dataType models.DataType, source string, identifiers []string) ([]*Entry, []string, error) {
	if len(identifiers) == 0 {
		return nil, nil, nil
	}

	placeholders := strings.Repeat(",?", len(identifiers))[1:]
	args := make([]interface{}, 0, len(identifiers)+3)
	args = append(args, ownerID, string(dataType), source)
	for _, id := range identifiers {
		args = append(args, id)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, owner_id, data_type, source, source_identifier,
		       source_file_hash, last_known_date, metadata, synced_at
		FROM sync_log
		WHERE owner_id = ? AND data_type = ? AND source = ?
		  AND source_identifier IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "partition", err)
	}
	defer rows.Close()

	known := make(map[string]*Entry, len(identifiers))
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "partition", err)
		}
		known[entry.SourceIdentifier] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "partition", err)
	}

	var synced []*Entry
	var notSynced []string
	seen := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		if seen[id] {
			continue
		}
		seen[id] = true
		if entry, ok := known[id]; ok {
			synced = append(synced, entry)
		} else {
			notSynced = append(notSynced, id)
		}
	}
	return synced, notSynced, nil
}

// RecordBatch upserts several entries and reports how many were new and how
// many refreshed existing rows.
func (l *Ledger) RecordBatch(ctx context.Context, entries []*Entry) (int, int, error) {
	newCount, updatedCount := 0, 0
	for _, entry := range entries {
		created, err := l.Record(ctx, entry)
		if err != nil {
			return newCount, updatedCount, err
		}
		if created {
			newCount++
		} else {
			updatedCount++
		}
	}
	return newCount, updatedCount, nil
}

// Status summarizes an owner's sync state grouped by data type and source,
// most recently synced first.
func (l *Ledger) Status(ctx context.Context, ownerID int64) ([]SourceStatus, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT data_type, source, COUNT(*), MAX(synced_at)
		FROM sync_log
		WHERE owner_id = ?
		GROUP BY data_type, source
		ORDER BY MAX(synced_at) DESC`, ownerID)
	if err != nil {
		return nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "status", err)
	}
	defer rows.Close()

	var statuses []SourceStatus
	for rows.Next() {
		var s SourceStatus
		var dataType, lastSync string
		if err := rows.Scan(&dataType, &s.Source, &s.Count, &lastSync); err != nil {
			return nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "status", err)
		}
		s.DataType = models.DataType(dataType)
		// MAX() loses the column's time affinity, so the driver hands the
		// aggregate back as text.
		if s.LastSync, err = parseTimestamp(lastSync); err != nil {
			return nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "status", err)
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "status", err)
	}
	return statuses, nil
}

// Entries lists an owner's ledger rows for one data type, most recent first.
func (l *Ledger) Entries(ctx context.Context, ownerID int64, dataType models.DataType) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, owner_id, data_type, source, source_identifier,
		       source_file_hash, last_known_date, metadata, synced_at
		FROM sync_log
		WHERE owner_id = ? AND data_type = ?
		ORDER BY synced_at DESC, id DESC`, ownerID, string(dataType))
	if err != nil {
		return nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "entries", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "entries", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.LedgerError(errors.CodeLedgerLookupFailure, "entries", err)
	}
	return entries, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var dataType, metadata string
	var lastKnown sql.NullTime
	err := row.Scan(&entry.ID, &entry.OwnerID, &dataType, &entry.Source,
		&entry.SourceIdentifier, &entry.SourceFileHash, &lastKnown,
		&metadata, &entry.SyncedAt)
	if err != nil {
		return nil, err
	}
	entry.DataType = models.DataType(dataType)
	if lastKnown.Valid {
		entry.LastKnownDate = lastKnown.Time
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}
