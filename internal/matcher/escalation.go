package matcher

import (
	"context"
	"strings"
	"time"

	"fintrack-reconciliation-service/internal/fingerprint"
	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// isNearMiss reports whether existing is close enough to candidate to be
// worth escalating or surfacing, without being a deterministic match.
func (e *Engine) isNearMiss(candidate, existing *models.Record) bool {
	switch candidate.Kind {
	case models.KindEMI:
		return e.amountsWithinTolerance(candidate.Amount, existing.Amount) &&
			daysApart(candidate.StartDate, existing.StartDate) <= e.config.DateNearMissDays &&
			nameSimilarity(candidate.Name, existing.Name) >= e.config.NameSimilarityThreshold
	case models.KindFixedDeposit:
		return fingerprint.NormalizeName(candidate.Bank) == fingerprint.NormalizeName(existing.Bank) &&
			e.amountsWithinTolerance(candidate.Principal, existing.Principal) &&
			daysApart(candidate.MaturityDate, existing.MaturityDate) <= e.config.DateNearMissDays
	case models.KindMutualFund:
		return fingerprint.NormalizeName(candidate.FolioNumber) == fingerprint.NormalizeName(existing.FolioNumber) &&
			nameSimilarity(candidate.Name, existing.Name) >= e.config.NameSimilarityThreshold
	}
	// Transactions outside the window are legitimately separate payments
	// (two rent transfers a day apart are both real). Stocks, bank
	// accounts and long-term funds have exact identifiers. None of these
	// kinds produce near-misses.
	return false
}

// resolveNearMisses decides what to do with records the deterministic rules
// could not confirm. EMIs escalate to the oracle; other kinds surface the
// best-scoring near-miss as a possible duplicate.
func (e *Engine) resolveNearMisses(ctx context.Context, candidate *models.Record, nearMisses []*models.Record) (*Verdict, error) {
	if len(nearMisses) == 0 {
		return Distinct(), nil
	}

	if candidate.Kind == models.KindEMI {
		return e.escalate(ctx, candidate, nearMisses)
	}

	var best *models.Record
	bestScore := 0.0
	for _, existing := range nearMisses {
		if score := e.nearMissScore(candidate, existing); score > bestScore {
			best, bestScore = existing, score
		}
	}
	if bestScore < e.config.PossibleDuplicateThreshold {
		return Distinct(), nil
	}
	return Possible(best, int(bestScore*100), "near-miss on "+string(candidate.Kind)+" fields"), nil
}

// escalate asks the oracle about each near-miss pair in turn. Any oracle
// failure downgrades the decision to deterministic rules only, so a broken
// or slow oracle can delay classification but never invent a duplicate.
func (e *Engine) escalate(ctx context.Context, candidate *models.Record, nearMisses []*models.Record) (*Verdict, error) {
	if !e.config.EnableOracleEscalation || e.oracle == nil {
		return Distinct(), nil
	}

	for _, existing := range nearMisses {
		same, err := e.oracle.IsDuplicate(ctx, candidate.String(), existing.String())
		if err != nil {
			e.logger.WithError(err).WithFields(logger.Fields{
				"kind":     candidate.Kind,
				"owner_id": candidate.OwnerID,
			}).Warn("Oracle escalation failed, falling back to deterministic rules")
			return Distinct(), nil
		}
		if same {
			return Confirmed(existing, "oracle confirmed semantic match"), nil
		}
	}
	return Distinct(), nil
}

// nearMissScore rates a gated near-miss pair between 0.0 and 1.0.
func (e *Engine) nearMissScore(candidate, existing *models.Record) float64 {
	switch candidate.Kind {
	case models.KindFixedDeposit:
		principal := e.amountCloseness(candidate.Principal, existing.Principal)
		dates := 1.0
		if e.config.DateNearMissDays > 0 {
			gap := daysApart(candidate.MaturityDate, existing.MaturityDate)
			dates = 1.0 - float64(gap)/float64(e.config.DateNearMissDays)
		}
		return 0.5*principal + 0.5*dates
	case models.KindMutualFund:
		return nameSimilarity(candidate.Name, existing.Name)
	}
	return 0.0
}

func (e *Engine) amountsWithinTolerance(a, b decimal.Decimal) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	diff := a.Sub(b).Abs()
	base := a.Abs()
	if b.Abs().GreaterThan(base) {
		base = b.Abs()
	}
	relative, _ := diff.Div(base).Float64()
	return relative*100.0 <= e.config.AmountNearMissPercent
}

func (e *Engine) amountCloseness(a, b decimal.Decimal) float64 {
	if e.config.AmountNearMissPercent <= 0 {
		return 1.0
	}
	diff := a.Sub(b).Abs()
	base := a.Abs()
	if b.Abs().GreaterThan(base) {
		base = b.Abs()
	}
	relative, _ := diff.Div(base).Float64()
	closeness := 1.0 - (relative*100.0)/e.config.AmountNearMissPercent
	if closeness < 0 {
		return 0.0
	}
	return closeness
}

// nameSimilarity is the token-overlap (Jaccard) similarity of two free-text
// names after normalization.
func nameSimilarity(a, b string) float64 {
	tokensA := strings.Fields(fingerprint.NormalizeName(a))
	tokensB := strings.Fields(fingerprint.NormalizeName(b))
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, tok := range tokensA {
		setA[tok] = struct{}{}
	}
	union := make(map[string]struct{}, len(tokensA)+len(tokensB))
	for tok := range setA {
		union[tok] = struct{}{}
	}
	shared := 0
	for _, tok := range tokensB {
		if _, seen := union[tok]; !seen {
			union[tok] = struct{}{}
			continue
		}
		if _, ok := setA[tok]; ok {
			shared++
			delete(setA, tok)
		}
	}
	return float64(shared) / float64(len(union))
}

func daysApart(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
