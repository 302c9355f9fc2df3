// Package oracle provides the semantic-similarity oracle used when
// deterministic match rules are inconclusive. The oracle answers one
// question: are these two record descriptions the same real-world item?
//
// The oracle is strictly advisory. Callers must treat any failure —
// unavailability, timeout, unusable answer — as "no evidence" and fall back
// to deterministic rules; a failure is never interpreted as "is a
// duplicate".
package oracle

import (
	"context"
	"time"
)

// Oracle classifies two natural-language record descriptions as duplicates
// or not. Implementations must be safe for concurrent use.
type Oracle interface {
	IsDuplicate(ctx context.Context, descriptionA, descriptionB string) (bool, error)
}

// Config holds the connection settings for the chat-completions backend.
type Config struct {
	Endpoint   string        `json:"endpoint"`
	APIKey     string        `json:"-"`
	Deployment string        `json:"deployment"`
	APIVersion string        `json:"api_version"`
	Timeout    time.Duration `json:"timeout"`

	// CacheTTL bounds how long a verdict for the same description pair is
	// reused before asking again. Zero disables caching.
	CacheTTL time.Duration `json:"cache_ttl"`
}

// DefaultConfig returns the standard oracle settings: a hard 10 second
// timeout and a day-long verdict cache.
func DefaultConfig() *Config {
	return &Config{
		Deployment: "gpt-4-turbo",
		APIVersion: "2024-02-15-preview",
		Timeout:    10 * time.Second,
		CacheTTL:   24 * time.Hour,
	}
}

// Configured reports whether the backend credentials are present. An
// unconfigured oracle behaves as permanently unavailable, which the matcher
// treats as "deterministic rules only".
func (c *Config) Configured() bool {
	return c.Endpoint != "" && c.APIKey != ""
}
