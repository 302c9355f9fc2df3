package matcher

import (
	"context"
	"testing"
	"time"

	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

type fakeOracle struct {
	answer bool
	err    error
	calls  int
}

func (f *fakeOracle) IsDuplicate(ctx context.Context, a, b string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.answer, nil
}

func transactionAt(ts time.Time) *models.Record {
	return &models.Record{
		Kind:          models.KindTransaction,
		OwnerID:       1,
		Bank:          "HDFC Bank",
		AccountNumber: "XXXX1234",
		Amount:        decimal.NewFromFloat(500.00),
		OccurredAt:    ts,
	}
}

func TestTransactionWindowEdges(t *testing.T) {
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	known := []*models.Record{transactionAt(base)}
	engine := NewEngine(DefaultConfig(), nil)

	cases := []struct {
		name string
		at   time.Time
		want Classification
	}{
		{"59 minutes later", base.Add(59 * time.Minute), ClassConfirmedDuplicate},
		{"exactly 60 minutes later", base.Add(60 * time.Minute), ClassConfirmedDuplicate},
		{"61 minutes later", base.Add(61 * time.Minute), ClassDistinct},
		{"59 minutes earlier", base.Add(-59 * time.Minute), ClassConfirmedDuplicate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, err := engine.Match(context.Background(), transactionAt(tc.at), known)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if verdict.Classification != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, verdict.Classification)
			}
		})
	}
}

func TestTransactionMaskedAccountMatchesUnmasked(t *testing.T) {
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	plain := transactionAt(base)
	plain.AccountNumber = "1234"

	engine := NewEngine(DefaultConfig(), nil)
	verdict, err := engine.Match(context.Background(), transactionAt(base.Add(5*time.Minute)), []*models.Record{plain})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassConfirmedDuplicate {
		t.Errorf("Expected confirmed duplicate across masking, got %s", verdict.Classification)
	}
}

func TestTransactionDifferentAccountsDistinct(t *testing.T) {
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	other := transactionAt(base)
	other.AccountNumber = "9999"

	engine := NewEngine(DefaultConfig(), nil)
	verdict, err := engine.Match(context.Background(), transactionAt(base), []*models.Record{other})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassDistinct {
		t.Errorf("Expected distinct, got %s", verdict.Classification)
	}
}

func TestStockSymbolMatch(t *testing.T) {
	known := []*models.Record{
		{ID: 7, Kind: models.KindStock, OwnerID: 1, Symbol: "TCS"},
	}
	engine := NewEngine(DefaultConfig(), nil)

	verdict, err := engine.Match(context.Background(),
		&models.Record{Kind: models.KindStock, OwnerID: 1, Symbol: "tcs"}, known)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassConfirmedDuplicate {
		t.Fatalf("Expected confirmed duplicate, got %s", verdict.Classification)
	}
	if verdict.Matched.ID != 7 {
		t.Errorf("Expected match against record 7, got %d", verdict.Matched.ID)
	}

	verdict, err = engine.Match(context.Background(),
		&models.Record{Kind: models.KindStock, OwnerID: 1, Symbol: "INFY"}, known)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassDistinct {
		t.Errorf("Expected distinct, got %s", verdict.Classification)
	}
}

func emiRecord(name string, amount float64, start time.Time) *models.Record {
	return &models.Record{
		Kind:      models.KindEMI,
		OwnerID:   1,
		Name:      name,
		Amount:    decimal.NewFromFloat(amount),
		StartDate: start,
	}
}

func TestEMIOracleConfirmsNearMiss(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	known := []*models.Record{emiRecord("Car Loan", 15500, start)}
	orc := &fakeOracle{answer: true}

	engine := NewEngine(DefaultConfig(), orc)
	verdict, err := engine.Match(context.Background(),
		emiRecord("Car Loan EMI", 15000, start.AddDate(0, 0, 4)), known)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassConfirmedDuplicate {
		t.Fatalf("Expected confirmed duplicate, got %s", verdict.Classification)
	}
	if orc.calls != 1 {
		t.Errorf("Expected 1 oracle call, got %d", orc.calls)
	}
}

func TestEMIOracleDeniesNearMiss(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	known := []*models.Record{emiRecord("Car Loan", 15500, start)}
	orc := &fakeOracle{answer: false}

	engine := NewEngine(DefaultConfig(), orc)
	verdict, err := engine.Match(context.Background(),
		emiRecord("Car Loan EMI", 15000, start.AddDate(0, 0, 4)), known)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassDistinct {
		t.Errorf("Expected distinct, got %s", verdict.Classification)
	}
}

func TestEMIOracleFailureNeverConfirms(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	known := []*models.Record{emiRecord("Car Loan", 15500, start)}
	orc := &fakeOracle{err: errors.OracleTimeoutError(context.DeadlineExceeded)}

	engine := NewEngine(DefaultConfig(), orc)
	verdict, err := engine.Match(context.Background(),
		emiRecord("Car Loan EMI", 15000, start.AddDate(0, 0, 4)), known)
	if err != nil {
		t.Fatalf("Oracle failure must not fail the match: %v", err)
	}
	if verdict.Classification != ClassDistinct {
		t.Errorf("Expected distinct on oracle failure, got %s", verdict.Classification)
	}
}

func TestEMIEscalationDisabledSkipsOracle(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	known := []*models.Record{emiRecord("Car Loan", 15500, start)}
	orc := &fakeOracle{answer: true}

	config := DefaultConfig()
	config.EnableOracleEscalation = false
	engine := NewEngine(config, orc)

	verdict, err := engine.Match(context.Background(),
		emiRecord("Car Loan EMI", 15000, start.AddDate(0, 0, 4)), known)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassDistinct {
		t.Errorf("Expected distinct with escalation off, got %s", verdict.Classification)
	}
	if orc.calls != 0 {
		t.Errorf("Expected no oracle calls, got %d", orc.calls)
	}
}

func TestEMIExactMatchNeedsNoOracle(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	known := []*models.Record{emiRecord("Car Loan", 15000, start)}
	orc := &fakeOracle{answer: false}

	engine := NewEngine(DefaultConfig(), orc)
	verdict, err := engine.Match(context.Background(), emiRecord("car  loan", 15000, start), known)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassConfirmedDuplicate {
		t.Fatalf("Expected confirmed duplicate, got %s", verdict.Classification)
	}
	if orc.calls != 0 {
		t.Errorf("Deterministic matches must not consult the oracle, got %d calls", orc.calls)
	}
}

func TestMutualFundNearMissSurfacedForReview(t *testing.T) {
	known := []*models.Record{
		{
			Kind: models.KindMutualFund, OwnerID: 1,
			Name: "HDFC Mid Cap Fund", FolioNumber: "12345/67",
		},
	}
	engine := NewEngine(DefaultConfig(), nil)

	verdict, err := engine.Match(context.Background(), &models.Record{
		Kind: models.KindMutualFund, OwnerID: 1,
		Name: "HDFC Mid Cap Fund Direct Growth", FolioNumber: "12345/67",
	}, known)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassPossibleDuplicate {
		t.Fatalf("Expected possible duplicate, got %s", verdict.Classification)
	}
	if verdict.Score <= 0 || verdict.Score >= 100 {
		t.Errorf("Expected a partial confidence score, got %d", verdict.Score)
	}
}

func TestRecordsOfOtherOwnersIgnored(t *testing.T) {
	known := []*models.Record{
		{Kind: models.KindStock, OwnerID: 2, Symbol: "TCS"},
	}
	engine := NewEngine(DefaultConfig(), nil)

	verdict, err := engine.Match(context.Background(),
		&models.Record{Kind: models.KindStock, OwnerID: 1, Symbol: "TCS"}, known)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Classification != ClassDistinct {
		t.Errorf("Expected distinct across owners, got %s", verdict.Classification)
	}
}

func TestUnfingerprintableCandidateFails(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	_, err := engine.Match(context.Background(),
		&models.Record{Kind: models.KindStock, OwnerID: 1}, nil)
	if !errors.IsCode(err, errors.CodeMissingField) {
		t.Errorf("Expected missing_field error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
	if err := StrictConfig().Validate(); err != nil {
		t.Errorf("Strict config must validate: %v", err)
	}

	bad := DefaultConfig()
	bad.AmountNearMissPercent = 150
	if err := bad.Validate(); err == nil {
		t.Error("Expected validation error for out-of-range tolerance")
	}

	bad = DefaultConfig()
	bad.TransactionWindow = -time.Minute
	if err := bad.Validate(); err == nil {
		t.Error("Expected validation error for negative window")
	}
}

func TestConfigClone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()
	clone.TransactionWindow = 5 * time.Minute
	if original.TransactionWindow == clone.TransactionWindow {
		t.Error("Clone must not share state with the original")
	}
}
