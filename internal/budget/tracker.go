// Package budget meters model spend against run and monthly caps,
// persisting a per-call ledger in SQLite.
package budget

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/analysis"
)

const schema = `
CREATE TABLE IF NOT EXISTS budget_ledger (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_cents REAL NOT NULL,
	document_id TEXT NOT NULL,
	job_type TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_budget_ledger_date ON budget_ledger(date);
`

// Rates is the model price in cents per million tokens.
type Rates struct {
	InputCentsPerMTok  float64
	OutputCentsPerMTok float64
}

// SonnetRates matches the current claude-sonnet list price.
var SonnetRates = Rates{InputCentsPerMTok: 300, OutputCentsPerMTok: 1500}

// Record is one ledger row.
type Record struct {
	ID           int64   `db:"id"`
	Date         string  `db:"date"`
	Model        string  `db:"model"`
	InputTokens  int     `db:"input_tokens"`
	OutputTokens int     `db:"output_tokens"`
	CostCents    float64 `db:"cost_cents"`
	DocumentID   string  `db:"document_id"`
	JobType      string  `db:"job_type"`
}

// Tracker meters spend. It implements analysis.BudgetGate: Allow
// refuses once cumulative spend reaches a cap, comparing spend alone so
// a run may overshoot by at most one call.
type Tracker struct {
	db    *sqlx.DB
	rates Rates
	model string
	job   string

	// RunCapCents limits this run's spend; zero disables the check.
	RunCapCents float64
	// MonthCapCents limits the UTC calendar month; zero disables.
	MonthCapCents float64

	runSpent float64
	now      func() time.Time
}

// Open connects to the ledger database, creating the schema when
// absent. path may be ":memory:" for tests.
func Open(path, model, jobType string, rates Rates) (*Tracker, error) {
	dsn := path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening budget db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating budget schema: %w", err)
	}
	return &Tracker{db: db, rates: rates, model: model, job: jobType, now: time.Now}, nil
}

func (t *Tracker) Close() error { return t.db.Close() }

// Cost prices one call in cents, rounded up to the nearest 0.01 cent
// so repeated small calls never round to free.
func (t *Tracker) Cost(inputTokens, outputTokens int) float64 {
	cents := float64(inputTokens)*t.rates.InputCentsPerMTok/1e6 +
		float64(outputTokens)*t.rates.OutputCentsPerMTok/1e6
	return math.Ceil(cents*100) / 100
}

// RunSpent is the cents charged through this tracker instance.
func (t *Tracker) RunSpent() float64 { return t.runSpent }

// MonthSpent sums the ledger for the UTC calendar month containing now.
func (t *Tracker) MonthSpent(ctx context.Context) (float64, error) {
	prefix := t.now().UTC().Format("2006-01") + "%"
	var total float64
	err := t.db.GetContext(ctx,
		&total, `SELECT COALESCE(SUM(cost_cents), 0) FROM budget_ledger WHERE date LIKE ?`, prefix)
	if err != nil {
		return 0, fmt.Errorf("summing month spend: %w", err)
	}
	return total, nil
}

// Allow reports whether another paid call may proceed. The decision
// compares cumulative spend against the caps; the next call's estimated
// cost is deliberately not part of the comparison.
func (t *Tracker) Allow(ctx context.Context) error {
	if t.RunCapCents > 0 && t.runSpent >= t.RunCapCents {
		return fmt.Errorf("run spend %.2f¢ at cap %.2f¢: %w", t.runSpent, t.RunCapCents, analysis.ErrBudgetExhausted)
	}
	if t.MonthCapCents > 0 {
		spent, err := t.MonthSpent(ctx)
		if err != nil {
			return err
		}
		if spent >= t.MonthCapCents {
			return fmt.Errorf("month spend %.2f¢ at cap %.2f¢: %w", spent, t.MonthCapCents, analysis.ErrBudgetExhausted)
		}
	}
	return nil
}

// Charge prices and records one completed call, returning its cost.
func (t *Tracker) Charge(ctx context.Context, documentID string, inputTokens, outputTokens int) (float64, error) {
	cost := t.Cost(inputTokens, outputTokens)
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO budget_ledger (date, model, input_tokens, output_tokens, cost_cents, document_id, job_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.now().UTC().Format("2006-01-02"), t.model, inputTokens, outputTokens, cost, documentID, t.job)
	if err != nil {
		return 0, fmt.Errorf("recording charge: %w", err)
	}
	t.runSpent += cost
	return cost, nil
}

// Ledger returns every row for the UTC calendar month containing now,
// newest first.
func (t *Tracker) Ledger(ctx context.Context) ([]Record, error) {
	prefix := t.now().UTC().Format("2006-01") + "%"
	var rows []Record
	err := t.db.SelectContext(ctx,
		&rows, `SELECT * FROM budget_ledger WHERE date LIKE ? ORDER BY id DESC`, prefix)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return rows, nil
}
