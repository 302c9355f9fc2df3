// Package models defines the record envelope shared by the fingerprinting,
// matching and reconciliation components.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind identifies which kind of financial record an envelope carries.
type EntityKind string

const (
	KindTransaction  EntityKind = "transaction"
	KindStock        EntityKind = "stock"
	KindMutualFund   EntityKind = "mutual_fund"
	KindFixedDeposit EntityKind = "fixed_deposit"
	KindEMI          EntityKind = "emi"
	KindBankAccount  EntityKind = "bank_account"
	KindLongTermFund EntityKind = "long_term_fund"
)

// AllKinds lists every supported entity kind.
func AllKinds() []EntityKind {
	return []EntityKind{
		KindTransaction, KindStock, KindMutualFund, KindFixedDeposit,
		KindEMI, KindBankAccount, KindLongTermFund,
	}
}

// String returns the string representation of the kind.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid checks whether the kind is one of the supported entity kinds.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindTransaction, KindStock, KindMutualFund, KindFixedDeposit,
		KindEMI, KindBankAccount, KindLongTermFund:
		return true
	}
	return false
}

// DataType is the sync-ledger name for a kind. The ledger predates the
// envelope and uses plural table-style names, with long-term funds shortened
// to "long_term".
type DataType string

const (
	DataTypeTransactions  DataType = "transactions"
	DataTypeStocks        DataType = "stocks"
	DataTypeMutualFunds   DataType = "mutual_funds"
	DataTypeFixedDeposits DataType = "fixed_deposits"
	DataTypeEMIs          DataType = "emis"
	DataTypeBankAccounts  DataType = "bank_accounts"
	DataTypeLongTerm      DataType = "long_term"
)

// DataType maps an entity kind to its sync-ledger data type.
func (k EntityKind) DataType() DataType {
	switch k {
	case KindTransaction:
		return DataTypeTransactions
	case KindStock:
		return DataTypeStocks
	case KindMutualFund:
		return DataTypeMutualFunds
	case KindFixedDeposit:
		return DataTypeFixedDeposits
	case KindEMI:
		return DataTypeEMIs
	case KindBankAccount:
		return DataTypeBankAccounts
	case KindLongTermFund:
		return DataTypeLongTerm
	}
	return DataType(k)
}

// IsValid checks whether the data type is a known ledger data type.
func (d DataType) IsValid() bool {
	switch d {
	case DataTypeTransactions, DataTypeStocks, DataTypeMutualFunds,
		DataTypeFixedDeposits, DataTypeEMIs, DataTypeBankAccounts,
		DataTypeLongTerm:
		return true
	}
	return false
}

// Record is the generic envelope for an incoming or persisted financial
// record. Only the fields relevant to a record's kind are populated; the
// fingerprint builder for each kind decides which fields are required.
type Record struct {
	ID      int64      `json:"id,omitempty"`
	Kind    EntityKind `json:"entity_kind"`
	OwnerID int64      `json:"owner_id"`

	// SourceIdentifier is the external system's natural key for this
	// record (stock ticker, folio number, FD number). Optional.
	SourceIdentifier string `json:"source_identifier,omitempty"`

	Amount        decimal.Decimal `json:"amount,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at,omitempty"`
	Bank          string          `json:"bank,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	Name          string          `json:"name,omitempty"`
	Symbol        string          `json:"symbol,omitempty"`
	FolioNumber   string          `json:"folio_number,omitempty"`
	Principal     decimal.Decimal `json:"principal,omitempty"`
	MaturityDate  time.Time       `json:"maturity_date,omitempty"`
	StartDate     time.Time       `json:"start_date,omitempty"`
	TenureMonths  int             `json:"tenure_months,omitempty"`
	FundType      string          `json:"fund_type,omitempty"`

	ReferenceNumber string `json:"reference_number,omitempty"`
	Source          string `json:"source,omitempty"`

	// DuplicateScore is a 0-100 confidence annotation computed by an
	// upstream pass on persisted transactions. Zero means unscored.
	DuplicateScore int `json:"duplicate_score,omitempty"`
}

// Validate performs the envelope-level checks that apply to every kind.
// Kind-specific required fields are enforced by the fingerprint builders.
func (r *Record) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid entity kind: %q", r.Kind)
	}
	if r.OwnerID <= 0 {
		return fmt.Errorf("owner_id must be positive, got %d", r.OwnerID)
	}
	return nil
}

// String returns a compact description used in logs and oracle prompts.
func (r *Record) String() string {
	switch r.Kind {
	case KindTransaction:
		return fmt.Sprintf("transaction of %s on account %s at %s",
			r.Amount.StringFixed(2), r.AccountNumber, r.OccurredAt.Format(time.RFC3339))
	case KindStock:
		return fmt.Sprintf("stock holding %s (%s)", r.Symbol, r.Name)
	case KindMutualFund:
		return fmt.Sprintf("mutual fund %q folio %s", r.Name, r.FolioNumber)
	case KindFixedDeposit:
		return fmt.Sprintf("fixed deposit at %s, principal %s, maturing %s",
			r.Bank, r.Principal.StringFixed(2), r.MaturityDate.Format("2006-01-02"))
	case KindEMI:
		return fmt.Sprintf("EMI %q of %s starting %s",
			r.Name, r.Amount.StringFixed(2), r.StartDate.Format("2006-01-02"))
	case KindBankAccount:
		return fmt.Sprintf("bank account %s at %s", r.AccountNumber, r.Bank)
	case KindLongTermFund:
		return fmt.Sprintf("%s fund, account %s", r.FundType, r.AccountNumber)
	}
	return fmt.Sprintf("%s record", r.Kind)
}

// ParseDecimalFromString parses a money amount, tolerating currency symbols
// and thousands separators as they appear in scraped statement data.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "₹", "")
	s = strings.ReplaceAll(s, "Rs.", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format %q: %w", s, err)
	}
	return d, nil
}

// ParseTimeWithFormats parses a timestamp using the formats seen in bank
// SMS, statement emails and scraper payloads.
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02-01-2006",
		"02/01/2006",
		"2006/01/02",
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time %q: %w", s, lastErr)
}
