// Package parsers loads scraper export files into record batches. Export
// files are JSON: a small envelope naming the owner and the source, then the
// items with string-typed amounts and dates as the scrapers emit them.
//
// Parsing is lenient per item and strict per file: a malformed amount drops
// that item and is reported in the stats, while a file that is not valid
// JSON fails outright. Required-field enforcement is deliberately left to
// the fingerprint builders, which know what each kind needs.
package parsers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/pkg/logger"
)

// ParseError describes a problem with one item in a batch file.
type ParseError struct {
	Index   int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("item %d (%s=%q): %s: %v", e.Index, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("item %d (%s=%q): %s", e.Index, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStats summarizes one file's parse.
type ParseStats struct {
	ItemsRead  int
	ItemsValid int
	Errors     []*ParseError
}

// HasErrors reports whether any items were dropped.
func (s *ParseStats) HasErrors() bool {
	return len(s.Errors) > 0
}

// String returns a human-readable parse summary.
func (s *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d items (%d valid, %d dropped)",
		s.ItemsRead, s.ItemsValid, len(s.Errors))
}

// BatchFile is one parsed scraper export.
type BatchFile struct {
	OwnerID int64
	Source  string
	Items   []*models.Record
}

type rawBatch struct {
	OwnerID int64     `json:"owner_id"`
	Source  string    `json:"source"`
	Items   []rawItem `json:"items"`
}

// rawItem mirrors what the scrapers emit: money and dates as strings, often
// with currency symbols, thousands separators or local date formats.
type rawItem struct {
	EntityKind       string `json:"entity_kind"`
	Source           string `json:"source,omitempty"`
	SourceIdentifier string `json:"source_identifier,omitempty"`
	Amount           string `json:"amount,omitempty"`
	Principal        string `json:"principal,omitempty"`
	OccurredAt       string `json:"occurred_at,omitempty"`
	MaturityDate     string `json:"maturity_date,omitempty"`
	StartDate        string `json:"start_date,omitempty"`
	Bank             string `json:"bank,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
	Name             string `json:"name,omitempty"`
	Symbol           string `json:"symbol,omitempty"`
	FolioNumber      string `json:"folio_number,omitempty"`
	TenureMonths     int    `json:"tenure_months,omitempty"`
	FundType         string `json:"fund_type,omitempty"`
	ReferenceNumber  string `json:"reference_number,omitempty"`
}

// BatchParser parses scraper export files.
type BatchParser struct {
	logger logger.Logger
}

// NewBatchParser creates a batch parser.
func NewBatchParser() *BatchParser {
	return &BatchParser{
		logger: logger.GetGlobalLogger().WithComponent("parser"),
	}
}

// ParseFile parses the batch file at path.
func (p *BatchParser) ParseFile(path string) (*BatchFile, *ParseStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open batch file %s: %w", path, err)
	}
	defer file.Close()
	return p.Parse(file)
}

// Parse parses a batch from r.
func (p *BatchParser) Parse(r io.Reader) (*BatchFile, *ParseStats, error) {
	var raw rawBatch
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("batch file is not valid JSON: %w", err)
	}
	if raw.OwnerID <= 0 {
		return nil, nil, fmt.Errorf("batch file must name a positive owner_id, got %d", raw.OwnerID)
	}

	batch := &BatchFile{OwnerID: raw.OwnerID, Source: raw.Source}
	stats := &ParseStats{}

	for i, item := range raw.Items {
		stats.ItemsRead++
		record, err := p.convert(i, item, raw)
		if err != nil {
			parseErr, ok := err.(*ParseError)
			if !ok {
				parseErr = &ParseError{Index: i, Message: err.Error(), Err: err}
			}
			stats.Errors = append(stats.Errors, parseErr)
			p.logger.WithError(parseErr).WithField("item", i).Warn("Dropping unparseable batch item")
			continue
		}
		stats.ItemsValid++
		batch.Items = append(batch.Items, record)
	}

	p.logger.WithFields(logger.Fields{
		"owner_id": batch.OwnerID,
		"source":   batch.Source,
		"items":    stats.ItemsRead,
		"valid":    stats.ItemsValid,
		"dropped":  len(stats.Errors),
	}).Info("Parsed batch file")
	return batch, stats, nil
}

func (p *BatchParser) convert(index int, item rawItem, batch rawBatch) (*models.Record, error) {
	kind := models.EntityKind(strings.TrimSpace(item.EntityKind))
	if !kind.IsValid() {
		return nil, &ParseError{
			Index: index, Field: "entity_kind", Value: item.EntityKind,
			Message: "unknown entity kind",
		}
	}

	record := &models.Record{
		Kind:             kind,
		OwnerID:          batch.OwnerID,
		Source:           item.Source,
		SourceIdentifier: item.SourceIdentifier,
		Bank:             item.Bank,
		AccountNumber:    item.AccountNumber,
		Name:             item.Name,
		Symbol:           item.Symbol,
		FolioNumber:      item.FolioNumber,
		TenureMonths:     item.TenureMonths,
		FundType:         item.FundType,
		ReferenceNumber:  item.ReferenceNumber,
	}
	if record.Source == "" {
		record.Source = batch.Source
	}

	var err error
	if item.Amount != "" {
		if record.Amount, err = models.ParseDecimalFromString(item.Amount); err != nil {
			return nil, &ParseError{Index: index, Field: "amount", Value: item.Amount,
				Message: "invalid amount", Err: err}
		}
	}
	if item.Principal != "" {
		if record.Principal, err = models.ParseDecimalFromString(item.Principal); err != nil {
			return nil, &ParseError{Index: index, Field: "principal", Value: item.Principal,
				Message: "invalid principal", Err: err}
		}
	}
	if item.OccurredAt != "" {
		if record.OccurredAt, err = models.ParseTimeWithFormats(item.OccurredAt); err != nil {
			return nil, &ParseError{Index: index, Field: "occurred_at", Value: item.OccurredAt,
				Message: "invalid timestamp", Err: err}
		}
	}
	if item.MaturityDate != "" {
		if record.MaturityDate, err = models.ParseTimeWithFormats(item.MaturityDate); err != nil {
			return nil, &ParseError{Index: index, Field: "maturity_date", Value: item.MaturityDate,
				Message: "invalid date", Err: err}
		}
	}
	if item.StartDate != "" {
		if record.StartDate, err = models.ParseTimeWithFormats(item.StartDate); err != nil {
			return nil, &ParseError{Index: index, Field: "start_date", Value: item.StartDate,
				Message: "invalid date", Err: err}
		}
	}
	return record, nil
}
