// Package matcher implements the per-kind duplicate match rules engine.
//
// Every entity kind gets one deterministic duplicate criterion, evaluated
// first. When deterministic rules find no equality but a near-miss, the
// engine can escalate to a semantic-similarity oracle; oracle failure always
// degrades to the strict deterministic criterion, never to "is a
// duplicate".
package matcher

import (
	"fmt"
	"time"
)

// Config holds the tolerances that drive duplicate matching.
type Config struct {
	// TransactionWindow is the timestamp closeness required for two
	// transactions on the same account with the same amount to be
	// duplicates. Bank and SMS clocks drift, so this is a window rather
	// than exact equality.
	TransactionWindow time.Duration `json:"transaction_window"`

	// AmountNearMissPercent is the relative amount difference (0-100)
	// still considered a near-miss worth escalating or surfacing.
	AmountNearMissPercent float64 `json:"amount_near_miss_percent"`

	// DateNearMissDays is the start/maturity date difference still
	// considered a near-miss.
	DateNearMissDays int `json:"date_near_miss_days"`

	// NameSimilarityThreshold is the minimum token-overlap similarity
	// (0.0-1.0) between two free-text names for a near-miss.
	NameSimilarityThreshold float64 `json:"name_similarity_threshold"`

	// PossibleDuplicateThreshold is the minimum near-miss score (0.0-1.0)
	// that produces a possible_duplicate verdict for kinds without oracle
	// escalation.
	PossibleDuplicateThreshold float64 `json:"possible_duplicate_threshold"`

	// EnableOracleEscalation turns semantic escalation for EMIs on or
	// off. With it off, near-miss EMIs are classified by deterministic
	// rules only.
	EnableOracleEscalation bool `json:"enable_oracle_escalation"`
}

// DefaultConfig returns the standard matching tolerances: a 60 minute
// transaction window, 10% amount tolerance, 31 day date tolerance.
func DefaultConfig() *Config {
	return &Config{
		TransactionWindow:          60 * time.Minute,
		AmountNearMissPercent:      10.0,
		DateNearMissDays:           31,
		NameSimilarityThreshold:    0.5,
		PossibleDuplicateThreshold: 0.6,
		EnableOracleEscalation:     true,
	}
}

// StrictConfig returns tolerances for deterministic-only matching: no
// oracle escalation and no near-miss surfacing.
func StrictConfig() *Config {
	return &Config{
		TransactionWindow:          60 * time.Minute,
		AmountNearMissPercent:      0.0,
		DateNearMissDays:           0,
		NameSimilarityThreshold:    1.0,
		PossibleDuplicateThreshold: 1.0,
		EnableOracleEscalation:     false,
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.TransactionWindow < 0 {
		return fmt.Errorf("transaction window cannot be negative: %s", c.TransactionWindow)
	}
	if c.AmountNearMissPercent < 0.0 || c.AmountNearMissPercent > 100.0 {
		return fmt.Errorf("amount near-miss percent must be between 0 and 100: %f", c.AmountNearMissPercent)
	}
	if c.DateNearMissDays < 0 {
		return fmt.Errorf("date near-miss days cannot be negative: %d", c.DateNearMissDays)
	}
	if c.NameSimilarityThreshold < 0.0 || c.NameSimilarityThreshold > 1.0 {
		return fmt.Errorf("name similarity threshold must be between 0.0 and 1.0: %f", c.NameSimilarityThreshold)
	}
	if c.PossibleDuplicateThreshold < 0.0 || c.PossibleDuplicateThreshold > 1.0 {
		return fmt.Errorf("possible duplicate threshold must be between 0.0 and 1.0: %f", c.PossibleDuplicateThreshold)
	}
	return nil
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Window: %s, AmountTolerance: %.1f%%, DateTolerance: %dd, Oracle: %t}",
		c.TransactionWindow, c.AmountNearMissPercent, c.DateNearMissDays, c.EnableOracleEscalation)
}
