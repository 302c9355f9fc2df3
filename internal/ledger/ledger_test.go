package ledger

import (
	"context"
	"testing"
	"time"

	"fintrack-reconciliation-service/internal/models"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLookupUnknownRecordReturnsNil(t *testing.T) {
	l := openTestLedger(t)

	entry, err := l.Lookup(context.Background(), 1, models.DataTypeStocks, "zerodha", "RELIANCE")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entry != nil {
		t.Errorf("Expected nil for never-synced record, got %+v", entry)
	}
}

func TestRecordThenLookup(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	created, err := l.Record(ctx, &Entry{
		OwnerID:          1,
		DataType:         models.DataTypeStocks,
		Source:           "zerodha",
		SourceIdentifier: "RELIANCE",
		Metadata:         map[string]string{"exchange": "NSE"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !created {
		t.Error("First record must report created")
	}

	entry, err := l.Lookup(ctx, 1, models.DataTypeStocks, "zerodha", "RELIANCE")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entry == nil {
		t.Fatal("Expected a ledger entry")
	}
	if entry.Metadata["exchange"] != "NSE" {
		t.Errorf("Expected metadata round-trip, got %v", entry.Metadata)
	}
	if entry.SyncedAt.IsZero() {
		t.Error("Expected synced_at to be set")
	}
}

func TestRepeatSyncUpdatesInsteadOfGrowing(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	first := &Entry{
		OwnerID: 1, DataType: models.DataTypeStocks,
		Source: "zerodha", SourceIdentifier: "RELIANCE",
		SyncedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	if _, err := l.Record(ctx, first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	second := &Entry{
		OwnerID: 1, DataType: models.DataTypeStocks,
		Source: "zerodha", SourceIdentifier: "RELIANCE",
		SyncedAt: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
	}
	created, err := l.Record(ctx, second)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created {
		t.Error("Repeat sync must report updated, not created")
	}

	entries, err := l.Entries(ctx, 1, models.DataTypeStocks)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected a single ledger row, got %d", len(entries))
	}
	if !entries[0].SyncedAt.Equal(second.SyncedAt) {
		t.Errorf("Expected synced_at refreshed to %s, got %s", second.SyncedAt, entries[0].SyncedAt)
	}
}

func TestPartitionSplitsSyncedFromNot(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for _, id := range []string{"RELIANCE", "TCS"} {
		if _, err := l.Record(ctx, &Entry{
			OwnerID: 1, DataType: models.DataTypeStocks,
			Source: "zerodha", SourceIdentifier: id,
		}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	synced, notSynced, err := l.Partition(ctx, 1, models.DataTypeStocks, "zerodha",
		[]string{"RELIANCE", "INFY", "TCS", "WIPRO"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(synced) != 2 {
		t.Fatalf("Expected 2 synced entries, got %d", len(synced))
	}
	if synced[0].SourceIdentifier != "RELIANCE" || synced[1].SourceIdentifier != "TCS" {
		t.Errorf("Expected synced entries in input order, got %+v", synced)
	}
	if len(notSynced) != 2 || notSynced[0] != "INFY" || notSynced[1] != "WIPRO" {
		t.Errorf("Expected INFY and WIPRO not synced, got %v", notSynced)
	}
}

func TestPartitionEmptyInput(t *testing.T) {
	l := openTestLedger(t)

	synced, notSynced, err := l.Partition(context.Background(), 1, models.DataTypeStocks, "zerodha", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if synced != nil || notSynced != nil {
		t.Errorf("Expected empty partitions for empty input, got %v / %v", synced, notSynced)
	}
}

func TestRecordBatchCountsNewAndUpdated(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if _, err := l.Record(ctx, &Entry{
		OwnerID: 1, DataType: models.DataTypeStocks,
		Source: "zerodha", SourceIdentifier: "RELIANCE",
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	newCount, updatedCount, err := l.RecordBatch(ctx, []*Entry{
		{OwnerID: 1, DataType: models.DataTypeStocks, Source: "zerodha", SourceIdentifier: "RELIANCE"},
		{OwnerID: 1, DataType: models.DataTypeStocks, Source: "zerodha", SourceIdentifier: "TCS"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if newCount != 1 || updatedCount != 1 {
		t.Errorf("Expected new=1 updated=1, got new=%d updated=%d", newCount, updatedCount)
	}
}

func TestSameIdentifierDifferentSourcesStaySeparate(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for _, source := range []string{"zerodha", "groww"} {
		if _, err := l.Record(ctx, &Entry{
			OwnerID: 1, DataType: models.DataTypeStocks,
			Source: source, SourceIdentifier: "RELIANCE",
		}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	entries, err := l.Entries(ctx, 1, models.DataTypeStocks)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected one row per source, got %d", len(entries))
	}
}

func TestStatusGroupsByTypeAndSource(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	seed := []*Entry{
		{OwnerID: 1, DataType: models.DataTypeStocks, Source: "zerodha", SourceIdentifier: "RELIANCE", SyncedAt: older},
		{OwnerID: 1, DataType: models.DataTypeStocks, Source: "zerodha", SourceIdentifier: "TCS", SyncedAt: older},
		{OwnerID: 1, DataType: models.DataTypeTransactions, Source: "hdfc_statement", SourceIdentifier: "TXN-1", SyncedAt: newer},
		{OwnerID: 2, DataType: models.DataTypeStocks, Source: "zerodha", SourceIdentifier: "INFY", SyncedAt: newer},
	}
	for _, entry := range seed {
		if _, err := l.Record(ctx, entry); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	statuses, err := l.Status(ctx, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("Expected 2 status groups, got %d", len(statuses))
	}
	if statuses[0].DataType != models.DataTypeTransactions {
		t.Errorf("Expected most recently synced group first, got %s", statuses[0].DataType)
	}
	if statuses[1].Count != 2 {
		t.Errorf("Expected 2 stock entries, got %d", statuses[1].Count)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if _, err := l.Record(ctx, &Entry{
		OwnerID: 1, DataType: models.DataTypeStocks,
		Source: "zerodha", SourceIdentifier: "RELIANCE",
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	entry, err := l.Lookup(ctx, 2, models.DataTypeStocks, "zerodha", "RELIANCE")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entry != nil {
		t.Error("Owner 2 must not see owner 1's ledger entries")
	}
}
