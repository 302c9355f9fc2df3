// Package config assembles the runtime configuration for the CLI from
// viper-bound flags, environment variables and optional config files.
package config

import (
	"database/sql"
	"fmt"
	"time"

	"fintrack-reconciliation-service/internal/gateway"
	"fintrack-reconciliation-service/internal/ledger"
	"fintrack-reconciliation-service/internal/matcher"
	"fintrack-reconciliation-service/internal/oracle"
	"fintrack-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"

	_ "modernc.org/sqlite"
)

// Stores bundles the two sqlite-backed layers, which share one database
// file so a single --db flag configures both.
type Stores struct {
	Gateway *gateway.Gateway
	Ledger  *ledger.Ledger

	db *sql.DB
}

// Close releases the shared database handle.
func (s *Stores) Close() error {
	return s.db.Close()
}

// OpenStores opens the entity gateway and the sync ledger on one sqlite
// database.
func OpenStores(path string) (*Stores, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty (set --db or FINTRACK_DB)")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	g, err := gateway.New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	l, err := ledger.New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Stores{Gateway: g, Ledger: l, db: db}, nil
}

// BuildMatcherConfig applies CLI overrides to the default matching
// tolerances and validates the result.
func BuildMatcherConfig(windowMinutes int, amountTolerance float64, dateToleranceDays int, disableOracle bool) (*matcher.Config, error) {
	cfg := matcher.DefaultConfig()
	if windowMinutes > 0 {
		cfg.TransactionWindow = time.Duration(windowMinutes) * time.Minute
	}
	if amountTolerance >= 0 {
		cfg.AmountNearMissPercent = amountTolerance
	}
	if dateToleranceDays >= 0 {
		cfg.DateNearMissDays = dateToleranceDays
	}
	if disableOracle {
		cfg.EnableOracleEscalation = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}
	return cfg, nil
}

// BuildOracleConfig reads the oracle backend settings. Credentials come
// from the environment (FINTRACK_ORACLE_ENDPOINT, FINTRACK_ORACLE_API_KEY)
// or a config file, never from flags.
func BuildOracleConfig() *oracle.Config {
	cfg := oracle.DefaultConfig()
	cfg.Endpoint = viper.GetString("oracle.endpoint")
	cfg.APIKey = viper.GetString("oracle.api_key")
	if deployment := viper.GetString("oracle.deployment"); deployment != "" {
		cfg.Deployment = deployment
	}
	if version := viper.GetString("oracle.api_version"); version != "" {
		cfg.APIVersion = version
	}
	if timeout := viper.GetDuration("oracle.timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg
}

// BuildLoggerConfig maps the --verbose flag and log settings onto the
// logger configuration.
func BuildLoggerConfig(verbose bool) *logger.Config {
	cfg := logger.DefaultConfig()
	if verbose {
		cfg.Level = logger.DebugLevel
	}
	if level := viper.GetString("log.level"); level != "" && !verbose {
		cfg.Level = logger.Level(level)
	}
	if format := viper.GetString("log.format"); format != "" {
		cfg.Format = logger.Format(format)
	}
	if file := viper.GetString("log.file"); file != "" {
		cfg.File = file
	}
	return cfg
}
