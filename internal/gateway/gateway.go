// Package gateway is the persistence boundary for financial entities. All
// batch writes go through a single transaction so a storage failure rolls
// the whole batch back instead of leaving half of it behind.
package gateway

import (
	"context"
	"database/sql"
	"time"

	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/pkg/errors"
	"fintrack-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// Gateway stores entities in sqlite. Monetary values are persisted as exact
// decimal strings, never floats.
type Gateway struct {
	db     *sql.DB
	logger logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	owner_id INTEGER NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	source_identifier TEXT NOT NULL DEFAULT '',
	amount TEXT NOT NULL DEFAULT '0',
	principal TEXT NOT NULL DEFAULT '0',
	occurred_at TIMESTAMP,
	maturity_date TIMESTAMP,
	start_date TIMESTAMP,
	bank TEXT NOT NULL DEFAULT '',
	account_number TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	symbol TEXT NOT NULL DEFAULT '',
	folio_number TEXT NOT NULL DEFAULT '',
	tenure_months INTEGER NOT NULL DEFAULT 0,
	fund_type TEXT NOT NULL DEFAULT '',
	reference_number TEXT NOT NULL DEFAULT '',
	duplicate_score INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_owner_kind ON entities(owner_id, kind);
CREATE INDEX IF NOT EXISTS idx_entities_owner_score ON entities(owner_id, duplicate_score);
`

// Open opens (or creates) an entity database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Gateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageQueryFailure, "open", err)
	}
	db.SetMaxOpenConns(1)

	gateway, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return gateway, nil
}

// New wraps an existing database handle and ensures the schema exists.
func New(db *sql.DB) (*Gateway, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.StorageError(errors.CodeStorageQueryFailure, "migrate", err)
	}
	return &Gateway{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("gateway"),
	}, nil
}

// Close releases the underlying database handle.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// FindByOwnerAndKind loads all of an owner's entities of one kind, in
// insertion order.
func (g *Gateway) FindByOwnerAndKind(ctx context.Context, ownerID int64, kind models.EntityKind) ([]*models.Record, error) {
	rows, err := g.db.QueryContext(ctx, selectColumns+`
		FROM entities
		WHERE owner_id = ? AND kind = ?
		ORDER BY id`, ownerID, string(kind))
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageQueryFailure, "find", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// FindScored loads an owner's entities whose duplicate score falls in the
// inclusive [min, max] range, highest score first. A positive limit caps the
// result; zero means unbounded.
func (g *Gateway) FindScored(ctx context.Context, ownerID int64, min, max, limit int) ([]*models.Record, error) {
	query := selectColumns + `
		FROM entities
		WHERE owner_id = ? AND duplicate_score BETWEEN ? AND ?
		ORDER BY duplicate_score DESC, id`
	args := []interface{}{ownerID, min, max}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageQueryFailure, "find_scored", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Begin starts a batch write transaction.
func (g *Gateway) Begin(ctx context.Context) (*Tx, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageTransactionFailure, "begin", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx is one batch's write transaction. Either every accepted write in the
// batch commits or none do.
type Tx struct {
	tx *sql.Tx
}

// Insert writes a new entity and returns its assigned ID.
func (t *Tx) Insert(ctx context.Context, r *models.Record) (int64, error) {
	now := time.Now().UTC()
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO entities (kind, owner_id, source, source_identifier,
			amount, principal, occurred_at, maturity_date, start_date,
			bank, account_number, name, symbol, folio_number,
			tenure_months, fund_type, reference_number, duplicate_score,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.Kind), r.OwnerID, r.Source, r.SourceIdentifier,
		r.Amount.String(), r.Principal.String(),
		nullableTime(r.OccurredAt), nullableTime(r.MaturityDate), nullableTime(r.StartDate),
		r.Bank, r.AccountNumber, r.Name, r.Symbol, r.FolioNumber,
		r.TenureMonths, r.FundType, r.ReferenceNumber, r.DuplicateScore,
		now, now)
	if err != nil {
		return 0, errors.StorageError(errors.CodeStorageTransactionFailure, "insert", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.StorageError(errors.CodeStorageTransactionFailure, "insert", err)
	}
	r.ID = id
	return id, nil
}

// Update refreshes an existing entity in place from r, which must carry the
// ID of the row being refreshed.
func (t *Tx) Update(ctx context.Context, r *models.Record) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE entities SET
			source = ?, source_identifier = ?,
			amount = ?, principal = ?,
			occurred_at = ?, maturity_date = ?, start_date = ?,
			bank = ?, account_number = ?, name = ?, symbol = ?,
			folio_number = ?, tenure_months = ?, fund_type = ?,
			reference_number = ?, duplicate_score = ?, updated_at = ?
		WHERE id = ?`,
		r.Source, r.SourceIdentifier,
		r.Amount.String(), r.Principal.String(),
		nullableTime(r.OccurredAt), nullableTime(r.MaturityDate), nullableTime(r.StartDate),
		r.Bank, r.AccountNumber, r.Name, r.Symbol,
		r.FolioNumber, r.TenureMonths, r.FundType,
		r.ReferenceNumber, r.DuplicateScore, time.Now().UTC(),
		r.ID)
	if err != nil {
		return errors.StorageError(errors.CodeStorageTransactionFailure, "update", err)
	}
	return nil
}

// Commit makes the batch's writes durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errors.StorageError(errors.CodeStorageTransactionFailure, "commit", err)
	}
	return nil
}

// Rollback discards the batch's writes. Safe to call after Commit.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return errors.StorageError(errors.CodeStorageTransactionFailure, "rollback", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, kind, owner_id, source, source_identifier,
	       amount, principal, occurred_at, maturity_date, start_date,
	       bank, account_number, name, symbol, folio_number,
	       tenure_months, fund_type, reference_number, duplicate_score`

func collectRecords(rows *sql.Rows) ([]*models.Record, error) {
	var records []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.StorageError(errors.CodeStorageQueryFailure, "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(errors.CodeStorageQueryFailure, "scan", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (*models.Record, error) {
	var r models.Record
	var kind, amount, principal string
	var occurredAt, maturityDate, startDate sql.NullTime
	err := rows.Scan(&r.ID, &kind, &r.OwnerID, &r.Source, &r.SourceIdentifier,
		&amount, &principal, &occurredAt, &maturityDate, &startDate,
		&r.Bank, &r.AccountNumber, &r.Name, &r.Symbol, &r.FolioNumber,
		&r.TenureMonths, &r.FundType, &r.ReferenceNumber, &r.DuplicateScore)
	if err != nil {
		return nil, err
	}
	r.Kind = models.EntityKind(kind)
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if r.Principal, err = decimal.NewFromString(principal); err != nil {
		return nil, err
	}
	if occurredAt.Valid {
		r.OccurredAt = occurredAt.Time
	}
	if maturityDate.Valid {
		r.MaturityDate = maturityDate.Time
	}
	if startDate.Valid {
		r.StartDate = startDate.Time
	}
	return &r, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
