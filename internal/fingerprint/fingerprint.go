// Package fingerprint builds normalized comparison keys for financial
// records. Fingerprinting is pure and deterministic: the same input always
// yields the same key, and cosmetic variants (masked account numbers, case,
// whitespace) collapse so true duplicates fingerprint identically whenever
// possible.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/pkg/errors"
)

// Key is a normalized comparison key for one record. Keys of the same kind
// compare equal exactly when the deterministic duplicate criterion for that
// kind holds on the normalized fields (time-window closeness for
// transactions is the matcher's concern and is not encoded here).
type Key struct {
	Kind  models.EntityKind
	Parts []string
}

// String renders the key in a stable, loggable form.
func (k Key) String() string {
	return string(k.Kind) + "|" + strings.Join(k.Parts, "|")
}

// Equal reports whether two keys are identical.
func (k Key) Equal(other Key) bool {
	if k.Kind != other.Kind || len(k.Parts) != len(other.Parts) {
		return false
	}
	for i := range k.Parts {
		if k.Parts[i] != other.Parts[i] {
			return false
		}
	}
	return true
}

// amountPrecision is the currency precision used for amount equality (INR).
const amountPrecision = 2

// pseudoIDPrefix marks account identifiers synthesized from fully-masked
// input.
const pseudoIDPrefix = "AUTO_"

// Build computes the fingerprint key for a record. It fails with a
// missing_field error when a field the kind's key depends on is absent,
// rather than silently treating the record as equal to everything.
func Build(r *models.Record) (Key, error) {
	switch r.Kind {
	case models.KindTransaction:
		return transactionKey(r)
	case models.KindStock:
		return stockKey(r)
	case models.KindMutualFund:
		return mutualFundKey(r)
	case models.KindFixedDeposit:
		return fixedDepositKey(r)
	case models.KindEMI:
		return emiKey(r)
	case models.KindBankAccount:
		return bankAccountKey(r)
	case models.KindLongTermFund:
		return longTermFundKey(r)
	}
	return Key{}, errors.New(errors.CategoryValidation, errors.CodeUnknownKind,
		"cannot fingerprint unknown entity kind "+string(r.Kind))
}

func transactionKey(r *models.Record) (Key, error) {
	if strings.TrimSpace(r.AccountNumber) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "account_number")
	}
	if r.Amount.IsZero() {
		return Key{}, errors.MissingFieldError(string(r.Kind), "amount")
	}
	if r.OccurredAt.IsZero() {
		return Key{}, errors.MissingFieldError(string(r.Kind), "occurred_at")
	}
	return Key{
		Kind: r.Kind,
		Parts: []string{
			ownerPart(r),
			NormalizeAccountNumber(r.Bank, r.AccountNumber),
			r.Amount.StringFixed(amountPrecision),
			r.OccurredAt.UTC().Truncate(time.Minute).Format(time.RFC3339),
		},
	}, nil
}

func stockKey(r *models.Record) (Key, error) {
	if strings.TrimSpace(r.Symbol) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "symbol")
	}
	return Key{
		Kind:  r.Kind,
		Parts: []string{ownerPart(r), NormalizeName(r.Symbol)},
	}, nil
}

func mutualFundKey(r *models.Record) (Key, error) {
	if strings.TrimSpace(r.Name) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "name")
	}
	if strings.TrimSpace(r.FolioNumber) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "folio_number")
	}
	return Key{
		Kind:  r.Kind,
		Parts: []string{ownerPart(r), NormalizeName(r.Name), NormalizeName(r.FolioNumber)},
	}, nil
}

func fixedDepositKey(r *models.Record) (Key, error) {
	if strings.TrimSpace(r.Bank) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "bank")
	}
	if r.Principal.IsZero() {
		return Key{}, errors.MissingFieldError(string(r.Kind), "principal")
	}
	if r.MaturityDate.IsZero() {
		return Key{}, errors.MissingFieldError(string(r.Kind), "maturity_date")
	}
	return Key{
		Kind: r.Kind,
		Parts: []string{
			ownerPart(r),
			NormalizeName(r.Bank),
			r.Principal.StringFixed(amountPrecision),
			r.MaturityDate.Format("2006-01-02"),
		},
	}, nil
}

func emiKey(r *models.Record) (Key, error) {
	if strings.TrimSpace(r.Name) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "name")
	}
	if r.Amount.IsZero() {
		return Key{}, errors.MissingFieldError(string(r.Kind), "amount")
	}
	if r.StartDate.IsZero() {
		return Key{}, errors.MissingFieldError(string(r.Kind), "start_date")
	}
	return Key{
		Kind: r.Kind,
		Parts: []string{
			ownerPart(r),
			NormalizeName(r.Name),
			r.Amount.StringFixed(amountPrecision),
			r.StartDate.Format("2006-01-02"),
		},
	}, nil
}

func bankAccountKey(r *models.Record) (Key, error) {
	if strings.TrimSpace(r.AccountNumber) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "account_number")
	}
	return Key{
		Kind:  r.Kind,
		Parts: []string{ownerPart(r), NormalizeAccountNumber(r.Bank, r.AccountNumber)},
	}, nil
}

func longTermFundKey(r *models.Record) (Key, error) {
	if strings.TrimSpace(r.FundType) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "fund_type")
	}
	if strings.TrimSpace(r.AccountNumber) == "" {
		return Key{}, errors.MissingFieldError(string(r.Kind), "account_number")
	}
	return Key{
		Kind: r.Kind,
		Parts: []string{
			ownerPart(r),
			NormalizeName(r.FundType),
			NormalizeAccountNumber(r.Bank, r.AccountNumber),
		},
	}, nil
}

func ownerPart(r *models.Record) string {
	return "owner:" + strconv.FormatInt(r.OwnerID, 10)
}

// NormalizeAccountNumber strips mask characters (*, X, whitespace, hyphens)
// from a bank account number. If nothing survives, it synthesizes a stable
// pseudo-identifier from the bank name and the raw input, so two
// fully-masked numbers from different banks do not collide while repeated
// ingestion of the same masked string stays idempotent.
func NormalizeAccountNumber(bank, raw string) string {
	var b strings.Builder
	for _, c := range raw {
		switch c {
		case '*', 'X', 'x', ' ', '\t', '-':
			continue
		}
		b.WriteRune(c)
	}
	cleaned := b.String()
	if cleaned != "" {
		return cleaned
	}

	sum := sha256.Sum256([]byte(bank + raw))
	return pseudoIDPrefix + hex.EncodeToString(sum[:])[:10]
}

// NormalizeName case-folds a free-text name and collapses internal
// whitespace. Fuzzier comparison is deliberately not attempted here; close
// but unequal names escalate to the semantic oracle in the matcher.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
