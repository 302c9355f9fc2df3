package matcher

import "fintrack-reconciliation-service/internal/models"

// Classification is the outcome of matching one incoming record against the
// already-known records of the same owner and kind.
type Classification int

const (
	// ClassDistinct means no known record matches; the incoming record is
	// new.
	ClassDistinct Classification = iota

	// ClassPossibleDuplicate means a near-miss was found but not
	// confirmed. The record is held back and surfaced with a score for
	// review instead of being written.
	ClassPossibleDuplicate

	// ClassConfirmedDuplicate means a known record describes the same
	// real-world item. The incoming record refreshes the matched one.
	ClassConfirmedDuplicate
)

// String returns the classification name used in logs and reports.
func (c Classification) String() string {
	switch c {
	case ClassDistinct:
		return "distinct"
	case ClassPossibleDuplicate:
		return "possible_duplicate"
	case ClassConfirmedDuplicate:
		return "confirmed_duplicate"
	}
	return "unknown"
}

// confirmedScore is the duplicate score assigned to confirmed matches.
const confirmedScore = 100

// Verdict is the full result of a match decision.
type Verdict struct {
	Classification Classification
	// Score is a 0-100 duplicate confidence. 100 for confirmed matches,
	// the near-miss similarity for possible ones, 0 for distinct records.
	Score int
	// Matched is the known record the verdict refers to; nil for distinct.
	Matched *models.Record
	// Reason names the rule or signal behind the verdict.
	Reason string
}

// Distinct is the verdict for a record with no match.
func Distinct() *Verdict {
	return &Verdict{Classification: ClassDistinct}
}

// Confirmed builds a confirmed-duplicate verdict against a known record.
func Confirmed(matched *models.Record, reason string) *Verdict {
	return &Verdict{
		Classification: ClassConfirmedDuplicate,
		Score:          confirmedScore,
		Matched:        matched,
		Reason:         reason,
	}
}

// Possible builds a possible-duplicate verdict with a 0-100 confidence.
func Possible(matched *models.Record, score int, reason string) *Verdict {
	return &Verdict{
		Classification: ClassPossibleDuplicate,
		Score:          score,
		Matched:        matched,
		Reason:         reason,
	}
}
