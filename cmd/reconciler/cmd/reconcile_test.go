package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fintrack-reconciliation-service/cmd/reconciler/config"
	"fintrack-reconciliation-service/internal/models"

	"github.com/spf13/viper"
)

func TestCommandsAreRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"reconcile", "sync-status", "check-sync", "duplicates"} {
		if !names[want] {
			t.Errorf("Expected %q command to be registered", want)
		}
	}
}

func TestReconcileFlags(t *testing.T) {
	for _, flag := range []string{
		"input", "force-refresh", "output-format",
		"transaction-window", "amount-tolerance", "date-tolerance", "no-oracle",
	} {
		if reconcileCmd.Flags().Lookup(flag) == nil {
			t.Errorf("Expected reconcile to define --%s", flag)
		}
	}
}

const testBatch = `{
	"owner_id": 1,
	"source": "test",
	"items": [
		{"entity_kind": "stock", "source_identifier": "TCS", "symbol": "TCS"},
		{"entity_kind": "stock", "symbol": "tcs"}
	]
}`

func TestRunReconcileEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(input, []byte(testBatch), 0644); err != nil {
		t.Fatalf("Failed to write batch file: %v", err)
	}

	database := filepath.Join(dir, "fintrack.db")
	viper.Set("db", database)
	defer viper.Set("db", "")

	inputFile = input
	outputFormat = "json"
	noOracle = true
	forceRefresh = false
	windowMinutes = 0
	amountTolerance = -1
	dateTolerance = -1
	reconcileCmd.SetContext(context.Background())

	if err := runReconcile(reconcileCmd, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	stores, err := config.OpenStores(database)
	if err != nil {
		t.Fatalf("Failed to reopen stores: %v", err)
	}
	defer stores.Close()

	records, err := stores.Gateway.FindByOwnerAndKind(context.Background(), 1, models.KindStock)
	if err != nil {
		t.Fatalf("Failed to read records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected the in-batch duplicate to collapse to 1 record, got %d", len(records))
	}

	entry, err := stores.Ledger.Lookup(context.Background(), 1, models.DataTypeStocks, "test", "TCS")
	if err != nil {
		t.Fatalf("Failed to read ledger: %v", err)
	}
	if entry == nil {
		t.Error("Expected the sourced item to be recorded in the ledger")
	}
}
