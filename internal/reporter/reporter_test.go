package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"fintrack-reconciliation-service/internal/ledger"
	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/internal/reconciler"
	"fintrack-reconciliation-service/internal/review"
)

func sampleOutcome() *reconciler.Outcome {
	started := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return &reconciler.Outcome{
		BatchID: "batch-1",
		OwnerID: 1,
		Created: []*models.Record{{Kind: models.KindStock, OwnerID: 1, Symbol: "TCS"}},
		Updated: []*models.Record{{Kind: models.KindStock, OwnerID: 1, Symbol: "INFY"}},
		Skipped: []reconciler.SkippedItem{
			{
				Record: &models.Record{Kind: models.KindMutualFund, OwnerID: 1, Name: "HDFC Mid Cap", FolioNumber: "12/34"},
				Score:  66,
				Reason: "near-miss on mutual_fund fields",
			},
		},
		Failed: []reconciler.FailedItem{
			{Record: &models.Record{Kind: models.KindStock, OwnerID: 1}, Reason: "missing_field"},
		},
		StartedAt:   started,
		CompletedAt: started.Add(120 * time.Millisecond),
	}
}

func TestTextOutcomeReport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewReporter(&buf, FormatText).ReportOutcome(sampleOutcome()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"created: 1", "updated: 1", "skipped: 1", "failed: 1",
		"score 66", "missing_field", "batch-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestJSONOutcomeReportIsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewReporter(&buf, FormatJSON).ReportOutcome(sampleOutcome()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if decoded["batch_id"] != "batch-1" {
		t.Errorf("Expected batch_id in JSON, got %v", decoded["batch_id"])
	}
}

func TestSyncStatusReport(t *testing.T) {
	var buf bytes.Buffer
	statuses := []ledger.SourceStatus{
		{DataType: models.DataTypeStocks, Source: "zerodha", Count: 12,
			LastSync: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
	}
	if err := NewReporter(&buf, FormatText).ReportSyncStatus(1, statuses); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"stocks", "zerodha", "12", "2026-02-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSyncStatusReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewReporter(&buf, FormatText).ReportSyncStatus(1, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "no synced records") {
		t.Errorf("Unexpected empty-state output: %s", buf.String())
	}
}

func TestCheckSyncReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, FormatText)

	if err := r.ReportCheckSync(models.DataTypeStocks, "zerodha", nil, []string{"RELIANCE"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "not synced") {
		t.Errorf("Expected not-synced output, got: %s", buf.String())
	}

	buf.Reset()
	entry := &ledger.Entry{
		SourceIdentifier: "RELIANCE",
		SyncedAt:         time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := r.ReportCheckSync(models.DataTypeStocks, "zerodha", []*ledger.Entry{entry}, []string{"TCS"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"RELIANCE" from zerodha: synced at 2026-02-01`) {
		t.Errorf("Expected synced line, got: %s", out)
	}
	if !strings.Contains(out, `"TCS" from zerodha: not synced`) {
		t.Errorf("Expected not-synced line, got: %s", out)
	}
}

func TestCheckSyncReportJSONPartitions(t *testing.T) {
	var buf bytes.Buffer
	entry := &ledger.Entry{
		SourceIdentifier: "RELIANCE",
		SyncedAt:         time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := NewReporter(&buf, FormatJSON).
		ReportCheckSync(models.DataTypeStocks, "zerodha", []*ledger.Entry{entry}, []string{"TCS"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded struct {
		AlreadySynced []string `json:"already_synced"`
		NotSynced     []string `json:"not_synced"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(decoded.AlreadySynced) != 1 || decoded.AlreadySynced[0] != "RELIANCE" {
		t.Errorf("Expected RELIANCE already synced, got %v", decoded.AlreadySynced)
	}
	if len(decoded.NotSynced) != 1 || decoded.NotSynced[0] != "TCS" {
		t.Errorf("Expected TCS not synced, got %v", decoded.NotSynced)
	}
}

func TestDuplicatesReport(t *testing.T) {
	var buf bytes.Buffer
	report := &review.Report{
		OwnerID: 1,
		Tiers: map[review.Tier][]*models.Record{
			review.TierHigh: {
				{Kind: models.KindStock, OwnerID: 1, Symbol: "TCS", DuplicateScore: 90},
			},
			review.TierLow: {
				{Kind: models.KindStock, OwnerID: 1, Symbol: "INFY", DuplicateScore: 30},
			},
		},
	}
	if err := NewReporter(&buf, FormatText).ReportDuplicates(report); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "high confidence (1)") || !strings.Contains(out, "low confidence (1)") {
		t.Errorf("Expected tier sections, got:\n%s", out)
	}
	if strings.Index(out, "high confidence") > strings.Index(out, "low confidence") {
		t.Error("Expected high confidence listed before low")
	}
}
