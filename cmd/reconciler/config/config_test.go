package config

import (
	"context"
	"testing"
	"time"

	"fintrack-reconciliation-service/internal/models"
)

func TestBuildMatcherConfigDefaults(t *testing.T) {
	cfg, err := BuildMatcherConfig(0, -1, -1, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.TransactionWindow != 60*time.Minute {
		t.Errorf("Expected default 60 minute window, got %s", cfg.TransactionWindow)
	}
	if cfg.AmountNearMissPercent != 10.0 {
		t.Errorf("Expected default 10%% tolerance, got %f", cfg.AmountNearMissPercent)
	}
	if !cfg.EnableOracleEscalation {
		t.Error("Expected escalation enabled by default")
	}
}

func TestBuildMatcherConfigOverrides(t *testing.T) {
	cfg, err := BuildMatcherConfig(30, 5.0, 7, true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.TransactionWindow != 30*time.Minute {
		t.Errorf("Expected 30 minute window, got %s", cfg.TransactionWindow)
	}
	if cfg.AmountNearMissPercent != 5.0 || cfg.DateNearMissDays != 7 {
		t.Errorf("Expected overridden tolerances, got %+v", cfg)
	}
	if cfg.EnableOracleEscalation {
		t.Error("Expected escalation disabled")
	}
}

func TestBuildMatcherConfigRejectsBadValues(t *testing.T) {
	if _, err := BuildMatcherConfig(0, 150.0, 0, false); err == nil {
		t.Error("Expected validation error for 150% tolerance")
	}
}

func TestOpenStoresSharesOneDatabase(t *testing.T) {
	stores, err := OpenStores(":memory:")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer stores.Close()

	// Both layers must be usable on the shared handle.
	if _, err := stores.Gateway.FindByOwnerAndKind(context.Background(), 1, models.KindStock); err != nil {
		t.Errorf("Gateway unusable: %v", err)
	}
	if _, err := stores.Ledger.Status(context.Background(), 1); err != nil {
		t.Errorf("Ledger unusable: %v", err)
	}
}

func TestOpenStoresRejectsEmptyPath(t *testing.T) {
	if _, err := OpenStores(""); err == nil {
		t.Error("Expected an error for an empty database path")
	}
}
