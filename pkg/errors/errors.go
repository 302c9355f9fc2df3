// Package errors defines the error taxonomy shared by the reconciliation
// engine. Errors carry a category, a machine-readable code, optional context
// and a stack trace so callers can decide between per-item recovery and
// batch-level failure.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by the recovery policy that applies to them.
type Category string

const (
	// CategoryValidation covers per-item input problems. Items with
	// validation errors are skipped; the rest of the batch continues.
	CategoryValidation Category = "validation"

	// CategoryOracle covers semantic-oracle failures. The matcher falls
	// back to deterministic rules; these are never fatal.
	CategoryOracle Category = "oracle"

	// CategoryLedger covers sync-ledger failures. The ledger is advisory,
	// so these are logged and otherwise ignored.
	CategoryLedger Category = "ledger"

	// CategoryStorage covers entity-store failures. A storage transaction
	// failure aborts the whole batch.
	CategoryStorage Category = "storage"

	// CategoryReconciliation covers orchestration faults that fit none of
	// the above.
	CategoryReconciliation Category = "reconciliation"
)

// Code identifies a specific failure within a category.
type Code string

const (
	// Validation codes
	CodeMissingField  Code = "missing_field"
	CodeInvalidAmount Code = "invalid_amount"
	CodeInvalidDate   Code = "invalid_date"
	CodeUnknownKind   Code = "unknown_entity_kind"
	CodeInvalidTier   Code = "invalid_tier"

	// Oracle codes
	CodeOracleUnavailable Code = "oracle_unavailable"
	CodeOracleTimeout     Code = "oracle_timeout"
	CodeOracleBadAnswer   Code = "oracle_bad_answer"

	// Ledger codes
	CodeLedgerWriteFailure  Code = "ledger_write_failure"
	CodeLedgerLookupFailure Code = "ledger_lookup_failure"

	// Storage codes
	CodeStorageTransactionFailure Code = "storage_transaction_failure"
	CodeStorageQueryFailure       Code = "storage_query_failure"

	// Reconciliation codes
	CodeMatchingFailed Code = "matching_failed"
	CodeBatchRejected  Code = "batch_rejected"
)

// Error is the base error type for the reconciliation engine.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context carries structured details about the failure.
type Context map[string]interface{}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value detail to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// ItemFatal reports whether the error should fail only the item it belongs
// to, as opposed to the whole batch. Only storage failures are batch-fatal.
func (e *Error) ItemFatal() bool {
	return e.Category != CategoryStorage
}

// Reason returns a short machine-readable reason string suitable for the
// per-item failure list in a reconciliation outcome.
func (e *Error) Reason() string {
	return string(e.Code)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new Error with a captured stack trace.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap annotates an existing error with category and code.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// MissingFieldError reports that a field a fingerprint or match rule depends
// on is absent. Fingerprint builders fail loudly with this rather than
// treating the record as equal to everything.
func MissingFieldError(kind, field string) *Error {
	return New(CategoryValidation, CodeMissingField,
		fmt.Sprintf("%s record is missing required field %q", kind, field)).
		WithContext("entity_kind", kind).
		WithContext("field", field)
}

// OracleUnavailableError reports that the semantic oracle could not be
// reached or returned an unusable response.
func OracleUnavailableError(err error) *Error {
	return Wrap(err, CategoryOracle, CodeOracleUnavailable,
		"semantic oracle unavailable")
}

// OracleTimeoutError reports that the oracle call exceeded its deadline.
// Timeouts count as oracle failure; the caller falls back to deterministic
// rules and never retries in the request path.
func OracleTimeoutError(err error) *Error {
	return Wrap(err, CategoryOracle, CodeOracleTimeout,
		"semantic oracle call timed out")
}

// LedgerError reports a sync-ledger read or write failure. The ledger is a
// cache, so the caller logs this and continues.
func LedgerError(code Code, operation string, err error) *Error {
	return Wrap(err, CategoryLedger, code,
		fmt.Sprintf("sync ledger %s failed", operation)).
		WithContext("operation", operation)
}

// StorageError reports an entity-store failure. Transaction failures abort
// the batch; the orchestrator rolls back and reports every item as failed.
func StorageError(code Code, operation string, err error) *Error {
	return Wrap(err, CategoryStorage, code,
		fmt.Sprintf("storage %s failed", operation)).
		WithContext("operation", operation)
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code Code) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsCategory reports whether err (or anything it wraps) carries the given
// category.
func IsCategory(err error, category Category) bool {
	e, ok := AsError(err)
	return ok && e.Category == category
}

// IsOracleFailure reports whether err is any oracle-category failure,
// timeout included.
func IsOracleFailure(err error) bool {
	return IsCategory(err, CategoryOracle)
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ReasonFor formats any error as a per-item failure reason. Engine errors
// yield their code; foreign errors yield their message.
func ReasonFor(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := AsError(err); ok {
		return e.Reason()
	}
	return err.Error()
}

// Summary aggregates the errors of one reconciliation batch.
type Summary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	ByCode     map[Code]int     `json:"by_code"`
	Errors     []*Error         `json:"errors"`
}

// NewSummary builds a Summary from a slice of errors.
func NewSummary(errs []*Error) *Summary {
	s := &Summary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		ByCode:     make(map[Code]int),
		Errors:     errs,
	}
	for _, e := range errs {
		s.ByCategory[e.Category]++
		s.ByCode[e.Code]++
	}
	return s
}

// Error formats the summary as a single message.
func (s *Summary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}
	if s.Total == 1 {
		return s.Errors[0].Error()
	}
	parts := make([]string, 0, len(s.ByCategory))
	for category, count := range s.ByCategory {
		parts = append(parts, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", s.Total, strings.Join(parts, ", "))
}

// HasCategory reports whether the summary contains errors of the category.
func (s *Summary) HasCategory(category Category) bool {
	return s.ByCategory[category] > 0
}
