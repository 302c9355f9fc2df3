package matcher

import (
	"context"

	"fintrack-reconciliation-service/internal/fingerprint"
	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/internal/oracle"
	"fintrack-reconciliation-service/pkg/logger"
)

// Engine classifies incoming records against known ones. Deterministic
// per-kind rules are always evaluated first; the oracle only sees pairs the
// rules could neither confirm nor rule out.
type Engine struct {
	config *Config
	oracle oracle.Oracle
	logger logger.Logger
}

// NewEngine creates a match engine. A nil config gets defaults; a nil oracle
// disables escalation entirely.
func NewEngine(config *Config, orc oracle.Oracle) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config: config,
		oracle: orc,
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
	}
}

// Config returns the engine's matching configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// Match classifies candidate against the known records. Known records are
// expected to share the candidate's owner and kind; others are ignored. The
// first confirmed match wins; among near-misses the highest-scoring one is
// surfaced.
func (e *Engine) Match(ctx context.Context, candidate *models.Record, known []*models.Record) (*Verdict, error) {
	candidateKey, err := fingerprint.Build(candidate)
	if err != nil {
		return nil, err
	}

	nearMisses := make([]*models.Record, 0)
	for _, existing := range known {
		if existing.Kind != candidate.Kind || existing.OwnerID != candidate.OwnerID {
			continue
		}

		if candidate.Kind == models.KindTransaction {
			if e.transactionsMatch(candidate, existing) {
				return Confirmed(existing, "same account, amount and time window"), nil
			}
		} else {
			existingKey, err := fingerprint.Build(existing)
			if err != nil {
				// Legacy rows can predate required-field enforcement;
				// they cannot match anything deterministically.
				e.logger.WithError(err).WithField("existing_id", existing.ID).
					Debug("Skipping unfingerprintable known record")
				continue
			}
			if candidateKey.Equal(existingKey) {
				return Confirmed(existing, "identical fingerprint"), nil
			}
		}

		if e.isNearMiss(candidate, existing) {
			nearMisses = append(nearMisses, existing)
		}
	}

	return e.resolveNearMisses(ctx, candidate, nearMisses)
}

// transactionsMatch is the deterministic duplicate criterion for
// transactions: same normalized account, same amount, timestamps within the
// configured window. The window is inclusive on both ends.
func (e *Engine) transactionsMatch(a, b *models.Record) bool {
	if fingerprint.NormalizeAccountNumber(a.Bank, a.AccountNumber) !=
		fingerprint.NormalizeAccountNumber(b.Bank, b.AccountNumber) {
		return false
	}
	if !a.Amount.Equal(b.Amount) {
		return false
	}
	return absDuration(a.OccurredAt.Sub(b.OccurredAt)) <= e.config.TransactionWindow
}
