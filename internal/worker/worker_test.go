package worker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/finbook/loan-engine/internal/store"
	"github.com/finbook/loan-engine/pkg/datetime"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bills.db"))
	if err != nil {
		t.Fatalf("store.Open() returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProcessDueBills(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.CreateBill(ctx, store.Bill{
		Name:           "Rent",
		Amount:         1200,
		RecurrenceType: "monthly",
		StartDate:      "2024-01-31",
		Active:         true,
	})
	if err != nil {
		t.Fatalf("CreateBill() returned error: %v", err)
	}

	p := NewProcessor(s, nil, 2)
	created, err := p.ProcessDueBills(ctx, datetime.MustParseDate("2024-03-15"))
	if err != nil {
		t.Fatalf("ProcessDueBills() returned error: %v", err)
	}
	if created != 2 {
		t.Fatalf("ProcessDueBills() created %d instances, expected 2", created)
	}

	instances, err := s.Instances(ctx, id)
	if err != nil {
		t.Fatalf("Instances() returned error: %v", err)
	}
	expected := []string{"2024-01-31", "2024-02-29"}
	if len(instances) != len(expected) {
		t.Fatalf("got %d instances, expected %d", len(instances), len(expected))
	}
	for i, want := range expected {
		if instances[i].DueDate != want {
			t.Errorf("instance %d due %s, expected %s", i, instances[i].DueDate, want)
		}
	}
}

func TestProcessDueBillsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.CreateBill(ctx, store.Bill{
		Name:           "Internet",
		Amount:         60,
		RecurrenceType: "monthly",
		StartDate:      "2024-01-15",
		Active:         true,
	})
	if err != nil {
		t.Fatalf("CreateBill() returned error: %v", err)
	}

	p := NewProcessor(s, nil, 1)
	now := datetime.MustParseDate("2024-02-20")

	first, err := p.ProcessDueBills(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDueBills() returned error: %v", err)
	}
	if first != 2 {
		t.Fatalf("first run created %d instances, expected 2", first)
	}

	second, err := p.ProcessDueBills(ctx, now)
	if err != nil {
		t.Fatalf("second ProcessDueBills() returned error: %v", err)
	}
	if second != 0 {
		t.Errorf("second run created %d instances, expected 0", second)
	}

	instances, err := s.Instances(ctx, id)
	if err != nil {
		t.Fatalf("Instances() returned error: %v", err)
	}
	if len(instances) != 2 {
		t.Errorf("got %d instances after rerun, expected 2", len(instances))
	}
}

func TestProcessDueBillsSkipsBrokenRule(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.CreateBill(ctx, store.Bill{
		Name:           "Broken",
		Amount:         10,
		RecurrenceType: "fortnightly",
		StartDate:      "2024-01-01",
		Active:         true,
	}); err != nil {
		t.Fatalf("CreateBill() returned error: %v", err)
	}
	healthy, err := s.CreateBill(ctx, store.Bill{
		Name:           "Gym",
		Amount:         35,
		RecurrenceType: "weekly",
		StartDate:      "2024-01-01",
		Active:         true,
	})
	if err != nil {
		t.Fatalf("CreateBill() returned error: %v", err)
	}

	p := NewProcessor(s, nil, 4)
	created, err := p.ProcessDueBills(ctx, datetime.MustParseDate("2024-01-15"))
	if err != nil {
		t.Fatalf("ProcessDueBills() returned error: %v", err)
	}
	// Jan 1, 8, 15 for the healthy weekly bill; the broken one contributes
	// nothing and does not abort the run.
	if created != 3 {
		t.Errorf("ProcessDueBills() created %d instances, expected 3", created)
	}

	instances, err := s.Instances(ctx, healthy)
	if err != nil {
		t.Fatalf("Instances() returned error: %v", err)
	}
	if len(instances) != 3 {
		t.Errorf("healthy bill has %d instances, expected 3", len(instances))
	}
}

func TestProcessDueBillsDeactivatesExhaustedSeries(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.CreateBill(ctx, store.Bill{
		Name:           "Short series",
		Amount:         100,
		RecurrenceType: "monthly",
		StartDate:      "2024-01-15",
		EndDate:        "2024-02-15",
		Active:         true,
	}); err != nil {
		t.Fatalf("CreateBill() returned error: %v", err)
	}

	p := NewProcessor(s, nil, 1)
	created, err := p.ProcessDueBills(ctx, datetime.MustParseDate("2024-06-01"))
	if err != nil {
		t.Fatalf("ProcessDueBills() returned error: %v", err)
	}
	if created != 2 {
		t.Errorf("ProcessDueBills() created %d instances, expected 2", created)
	}

	bills, err := s.ActiveBills(ctx)
	if err != nil {
		t.Fatalf("ActiveBills() returned error: %v", err)
	}
	if len(bills) != 0 {
		t.Errorf("exhausted bill still active: %v", bills)
	}
}
