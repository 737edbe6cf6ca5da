// Package store persists recurring bills and their materialized instances.
// This is the authoritative home of the "next due date": the scheduler only
// ever recomputes occurrences from the stored rule.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finbook/loan-engine/pkg/datetime"
	"github.com/finbook/loan-engine/pkg/schedule"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bills (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	name                TEXT    NOT NULL,
	amount              REAL    NOT NULL,
	recurrence_type     TEXT    NOT NULL,
	recurrence_interval INTEGER NOT NULL DEFAULT 1,
	start_date          TEXT    NOT NULL,
	end_date            TEXT    NOT NULL DEFAULT '',
	last_generated      TEXT    NOT NULL DEFAULT '',
	active              INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS bill_instances (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	bill_id    INTEGER NOT NULL REFERENCES bills(id),
	due_date   TEXT    NOT NULL,
	amount     REAL    NOT NULL,
	created_at TEXT    NOT NULL,
	UNIQUE(bill_id, due_date)
);
`

// Bill is a recurring obligation as stored.
type Bill struct {
	ID             int64
	Name           string
	Amount         float64
	RecurrenceType string
	Interval       int
	StartDate      string
	EndDate        string
	LastGenerated  string
	Active         bool
}

// Rule converts the stored recurrence columns into a scheduler rule.
func (b Bill) Rule() (schedule.Rule, error) {
	start, err := datetime.ParseDate(b.StartDate)
	if err != nil {
		return schedule.Rule{}, fmt.Errorf("bill %d has malformed start date %q: %w", b.ID, b.StartDate, err)
	}
	rule := schedule.Rule{
		Type:      schedule.Type(b.RecurrenceType),
		Interval:  b.Interval,
		StartDate: start,
	}
	if b.EndDate != "" {
		end, err := datetime.ParseDate(b.EndDate)
		if err != nil {
			return schedule.Rule{}, fmt.Errorf("bill %d has malformed end date %q: %w", b.ID, b.EndDate, err)
		}
		rule.EndDate = end
	}
	return rule, nil
}

// Instance is one materialized occurrence of a bill.
type Instance struct {
	ID      int64
	BillID  int64
	DueDate string
	Amount  float64
}

// Store wraps the sqlite database holding bills.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the bill database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open bill database: %w", err)
	}
	// The worker is the only writer; a single connection avoids SQLITE_BUSY
	// on concurrent instance inserts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize bill schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateBill inserts a bill and returns its id.
func (s *Store) CreateBill(ctx context.Context, bill Bill) (int64, error) {
	interval := bill.Interval
	if interval < 1 {
		interval = 1
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO bills (name, amount, recurrence_type, recurrence_interval, start_date, end_date, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bill.Name, bill.Amount, bill.RecurrenceType, interval, bill.StartDate, bill.EndDate, boolToInt(bill.Active))
	if err != nil {
		return 0, fmt.Errorf("insert bill %q: %w", bill.Name, err)
	}
	return result.LastInsertId()
}

// ActiveBills returns every bill still eligible for materialization.
func (s *Store) ActiveBills(ctx context.Context) ([]Bill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, amount, recurrence_type, recurrence_interval, start_date, end_date, last_generated, active
		 FROM bills WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active bills: %w", err)
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		var b Bill
		var active int
		if err := rows.Scan(&b.ID, &b.Name, &b.Amount, &b.RecurrenceType, &b.Interval,
			&b.StartDate, &b.EndDate, &b.LastGenerated, &active); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		b.Active = active != 0
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// InsertInstance materializes one occurrence of a bill. Inserting the same
// due date twice is a no-op, which makes reprocessing after a crash safe.
func (s *Store) InsertInstance(ctx context.Context, billID int64, dueDate time.Time, amount float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO bill_instances (bill_id, due_date, amount, created_at)
		 VALUES (?, ?, ?, ?)`,
		billID, dueDate.Format(datetime.DateLayout), amount, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert instance for bill %d: %w", billID, err)
	}
	return nil
}

// SetLastGenerated records the most recent materialized occurrence date.
func (s *Store) SetLastGenerated(ctx context.Context, billID int64, date time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bills SET last_generated = ? WHERE id = ?`,
		date.Format(datetime.DateLayout), billID)
	if err != nil {
		return fmt.Errorf("update last generated for bill %d: %w", billID, err)
	}
	return nil
}

// DeactivateBill marks an exhausted bill so the worker stops considering it.
func (s *Store) DeactivateBill(ctx context.Context, billID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE bills SET active = 0 WHERE id = ?`, billID)
	if err != nil {
		return fmt.Errorf("deactivate bill %d: %w", billID, err)
	}
	return nil
}

// Instances returns the materialized occurrences of a bill, oldest first.
func (s *Store) Instances(ctx context.Context, billID int64) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bill_id, due_date, amount FROM bill_instances WHERE bill_id = ? ORDER BY due_date`,
		billID)
	if err != nil {
		return nil, fmt.Errorf("query instances for bill %d: %w", billID, err)
	}
	defer rows.Close()

	var instances []Instance
	for rows.Next() {
		var inst Instance
		if err := rows.Scan(&inst.ID, &inst.BillID, &inst.DueDate, &inst.Amount); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
