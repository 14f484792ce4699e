package usage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nethira/chatcore/internal/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db := utils.SetupTestDB(t, &Metric{})
	db.Exec("DELETE FROM usage_metrics")
	return db
}

func TestPeriodStart(t *testing.T) {
	ts := time.Date(2025, time.March, 17, 14, 32, 11, 0, time.UTC)
	want := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	if got := PeriodStart(ts); !got.Equal(want) {
		t.Errorf("PeriodStart() = %v, want %v", got, want)
	}

	// Any two instants in the same month map to the same period
	other := time.Date(2025, time.March, 1, 0, 0, 0, 1, time.UTC)
	if !PeriodStart(ts).Equal(PeriodStart(other)) {
		t.Errorf("PeriodStart() should agree within one month")
	}
}

func TestLedger_Increment(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, 3000)

	userID := uuid.New().String()

	if err := ledger.Increment(userID, 100, 0.0002); err != nil {
		t.Fatalf("Increment() unexpected error: %v", err)
	}
	if err := ledger.Increment(userID, 50, 0.0001); err != nil {
		t.Fatalf("Increment() unexpected error: %v", err)
	}

	m, err := ledger.Current(userID)
	if err != nil {
		t.Fatalf("Current() unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("Current() = nil, want a row")
	}
	if m.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", m.TotalTokens)
	}
	if m.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2", m.TotalMessages)
	}

	// Both increments must land on the same row
	var count int64
	db.Model(&Metric{}).Where("user_id = ?", userID).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

// Concurrent increments must not lose updates
func TestLedger_Increment_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, 3000)

	userID := uuid.New().String()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.Increment(userID, 10, 0.00002)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Increment() goroutine %d: %v", i, err)
		}
	}

	m, err := ledger.Current(userID)
	if err != nil {
		t.Fatalf("Current() unexpected error: %v", err)
	}
	if m.TotalTokens != n*10 {
		t.Errorf("TotalTokens = %d, want %d", m.TotalTokens, n*10)
	}
	if m.TotalMessages != n {
		t.Errorf("TotalMessages = %d, want %d", m.TotalMessages, n)
	}
}

func TestLedger_CheckLimit(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, 100)

	userID := uuid.New().String()

	// No row yet: nothing consumed, check passes
	if err := ledger.CheckLimit(userID); err != nil {
		t.Errorf("CheckLimit() fresh user error = %v, want nil", err)
	}

	if err := ledger.Increment(userID, 99, 0); err != nil {
		t.Fatalf("Increment() unexpected error: %v", err)
	}
	if err := ledger.CheckLimit(userID); err != nil {
		t.Errorf("CheckLimit() below limit error = %v, want nil", err)
	}

	if err := ledger.Increment(userID, 1, 0); err != nil {
		t.Fatalf("Increment() unexpected error: %v", err)
	}
	if err := ledger.CheckLimit(userID); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("CheckLimit() at limit error = %v, want ErrQuotaExceeded", err)
	}
}

// A new calendar month starts from zero
func TestLedger_PeriodRollover(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, 100)

	userID := uuid.New().String()

	ledger.now = func() time.Time { return time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC) }
	if err := ledger.Increment(userID, 100, 0); err != nil {
		t.Fatalf("Increment() unexpected error: %v", err)
	}
	if err := ledger.CheckLimit(userID); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("CheckLimit() error = %v, want ErrQuotaExceeded", err)
	}

	ledger.now = func() time.Time { return time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC) }
	if err := ledger.CheckLimit(userID); err != nil {
		t.Errorf("CheckLimit() after rollover error = %v, want nil", err)
	}

	history, err := ledger.History(userID)
	if err != nil {
		t.Fatalf("History() unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("History() count = %d, want 1", len(history))
	}
}
