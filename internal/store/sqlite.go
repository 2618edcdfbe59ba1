// Package store persists analysis results and the deduplicated roster.
// The SQLite store is the system of record; a directory-of-JSON store
// covers environments without a database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/analysis"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/dedup"
)

// Store is what the pipeline needs from a result backend. Saves are
// idempotent: re-saving an unchanged result is a no-op in effect.
type Store interface {
	HasResult(ctx context.Context, fileName string) (bool, error)
	SaveResult(ctx context.Context, res analysis.TieredAnalysisResult) error
	ListResults(ctx context.Context) ([]analysis.TieredAnalysisResult, error)
	SaveRoster(ctx context.Context, roster []dedup.Person) error
	Close() error
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	file_name TEXT PRIMARY KEY,
	data_set TEXT NOT NULL,
	document_type TEXT NOT NULL,
	date_original TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL,
	persons TEXT NOT NULL,
	connections TEXT NOT NULL,
	events TEXT NOT NULL,
	locations TEXT NOT NULL,
	key_facts TEXT NOT NULL,
	tier INTEGER NOT NULL,
	cost_cents REAL NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	analyzed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS person_roster (
	name TEXT PRIMARY KEY,
	role TEXT NOT NULL,
	category TEXT NOT NULL,
	total_mentions INTEGER NOT NULL,
	doc_count INTEGER NOT NULL
);
`

// SQLiteStore keeps results in a single-file database.
type SQLiteStore struct {
	db *sqlx.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening results db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating results schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) HasResult(ctx context.Context, fileName string) (bool, error) {
	var one int
	err := s.db.GetContext(ctx, &one,
		`SELECT 1 FROM analysis_results WHERE file_name = ?`, fileName)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking result %s: %w", fileName, err)
	}
	return true, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, res analysis.TieredAnalysisResult) error {
	persons, err := json.Marshal(res.Persons)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", res.FileName, err)
	}
	connections, err := json.Marshal(res.Connections)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", res.FileName, err)
	}
	events, err := json.Marshal(res.Events)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", res.FileName, err)
	}
	locations, err := json.Marshal(res.Locations)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", res.FileName, err)
	}
	keyFacts, err := json.Marshal(res.KeyFacts)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", res.FileName, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analysis_results
		 (file_name, data_set, document_type, date_original, summary,
		  persons, connections, events, locations, key_facts,
		  tier, cost_cents, input_tokens, output_tokens, analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.FileName, res.DataSet, res.DocumentType, res.DateOriginal, res.Summary,
		string(persons), string(connections), string(events), string(locations), string(keyFacts),
		res.Tier, res.CostCents, res.InputTokens, res.OutputTokens,
		res.AnalyzedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving result %s: %w", res.FileName, err)
	}
	return nil
}

type resultRow struct {
	FileName     string  `db:"file_name"`
	DataSet      string  `db:"data_set"`
	DocumentType string  `db:"document_type"`
	DateOriginal string  `db:"date_original"`
	Summary      string  `db:"summary"`
	Persons      string  `db:"persons"`
	Connections  string  `db:"connections"`
	Events       string  `db:"events"`
	Locations    string  `db:"locations"`
	KeyFacts     string  `db:"key_facts"`
	Tier         int     `db:"tier"`
	CostCents    float64 `db:"cost_cents"`
	InputTokens  int     `db:"input_tokens"`
	OutputTokens int     `db:"output_tokens"`
	AnalyzedAt   string  `db:"analyzed_at"`
}

func (s *SQLiteStore) ListResults(ctx context.Context) ([]analysis.TieredAnalysisResult, error) {
	var rows []resultRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM analysis_results ORDER BY file_name`)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	out := make([]analysis.TieredAnalysisResult, 0, len(rows))
	for _, r := range rows {
		res, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r resultRow) decode() (analysis.TieredAnalysisResult, error) {
	res := analysis.TieredAnalysisResult{
		AnalysisResult: analysis.AnalysisResult{
			FileName:     r.FileName,
			DataSet:      r.DataSet,
			DocumentType: r.DocumentType,
			DateOriginal: r.DateOriginal,
			Summary:      r.Summary,
		},
		Tier:         r.Tier,
		CostCents:    r.CostCents,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
	}
	if t, err := time.Parse(time.RFC3339, r.AnalyzedAt); err == nil {
		res.AnalyzedAt = t
	}
	for _, field := range []struct {
		raw string
		dst any
	}{
		{r.Persons, &res.Persons},
		{r.Connections, &res.Connections},
		{r.Events, &res.Events},
		{r.Locations, &res.Locations},
		{r.KeyFacts, &res.KeyFacts},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
			return analysis.TieredAnalysisResult{}, fmt.Errorf("decoding result %s: %w", r.FileName, err)
		}
	}
	return res, nil
}

// SaveRoster replaces the roster table with the given entries in one
// transaction.
func (s *SQLiteStore) SaveRoster(ctx context.Context, roster []dedup.Person) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving roster: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM person_roster`); err != nil {
		return fmt.Errorf("saving roster: %w", err)
	}
	for _, p := range roster {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO person_roster (name, role, category, total_mentions, doc_count)
			 VALUES (?, ?, ?, ?, ?)`,
			p.Name, p.TopRole, string(p.TopCategory), p.TotalMentions, p.DocCount)
		if err != nil {
			return fmt.Errorf("saving roster entry %s: %w", p.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving roster: %w", err)
	}
	return nil
}
