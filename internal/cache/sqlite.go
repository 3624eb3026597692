package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/bbreport/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS builders (
	name TEXT PRIMARY KEY,
	host TEXT NOT NULL DEFAULT '',
	branch TEXT NOT NULL DEFAULT '',
	lastbuild INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS builds (
	builder TEXT NOT NULL,
	buildnumber INTEGER NOT NULL,
	revision INTEGER NOT NULL DEFAULT 0,
	result TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (builder, buildnumber)
);
CREATE TABLE IF NOT EXISTS failures (
	builder TEXT NOT NULL,
	buildnumber INTEGER NOT NULL,
	testname TEXT NOT NULL,
	PRIMARY KEY (builder, buildnumber, testname)
);
CREATE TABLE IF NOT EXISTS rules (
	issue TEXT NOT NULL,
	test TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	builder TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (issue, test, message, builder)
);
`

// SQLiteStore implements Store on an in-memory SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens an empty in-memory store with the schema in place.
func NewSQLiteStore() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Builders(ctx context.Context) ([]BuilderRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name, host, branch, lastbuild, status FROM builders ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query builders: %w", err)
	}
	defer rows.Close()

	var out []BuilderRow
	for rows.Next() {
		var (
			b      BuilderRow
			status string
		)
		if err := rows.Scan(&b.Name, &b.Host, &b.Branch, &b.LastBuild, &status); err != nil {
			return nil, fmt.Errorf("scan builder: %w", err)
		}
		if b.Status, err = model.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("builder %q: %w", b.Name, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builders: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) PutBuilder(ctx context.Context, b BuilderRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO builders (name, host, branch, lastbuild, status) VALUES (?, ?, ?, ?, ?)",
		b.Name, b.Host, b.Branch, b.LastBuild, string(b.Status))
	if err != nil {
		return fmt.Errorf("upsert builder %q: %w", b.Name, err)
	}
	return nil
}

func (s *SQLiteStore) GetBuild(ctx context.Context, builder string, number int) (BuildRow, bool, error) {
	if number < 0 {
		return BuildRow{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := BuildRow{Builder: builder, Number: number}
	var result string
	err := s.db.QueryRowContext(ctx,
		"SELECT revision, result, message FROM builds WHERE builder = ? AND buildnumber = ?",
		builder, number).Scan(&b.Revision, &result, &b.Message)
	if err == sql.ErrNoRows {
		return BuildRow{}, false, nil
	}
	if err != nil {
		return BuildRow{}, false, fmt.Errorf("query build: %w", err)
	}
	if b.Result, err = model.ParseStatus(result); err != nil {
		return BuildRow{}, false, fmt.Errorf("build %s #%d: %w", builder, number, err)
	}
	return b, true, nil
}

func (s *SQLiteStore) PutBuild(ctx context.Context, b BuildRow, failures model.TestSet) error {
	if b.Number < 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO builds (builder, buildnumber, revision, result, message) VALUES (?, ?, ?, ?, ?)",
		b.Builder, b.Number, b.Revision, string(b.Result), b.Message)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	for _, test := range failures {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO failures (builder, buildnumber, testname) VALUES (?, ?, ?)",
			b.Builder, b.Number, test); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Failures(ctx context.Context, builder string, number int) (model.TestSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT testname FROM failures WHERE builder = ? AND buildnumber = ? ORDER BY rowid",
		builder, number)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out model.TestSet
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = out.Add(name)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Evict(ctx context.Context, builder string, below int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM builds WHERE builder = ? AND buildnumber < ?", builder, below)
	if err != nil {
		return 0, fmt.Errorf("evict builds: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM failures WHERE builder = ? AND buildnumber < ?", builder, below); err != nil {
		return 0, fmt.Errorf("evict failures: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) Rules(ctx context.Context) ([]RuleRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT issue, test, message, builder FROM rules ORDER BY issue, rowid")
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []RuleRow
	for rows.Next() {
		var r RuleRow
		if err := rows.Scan(&r.Issue, &r.Test, &r.Message, &r.Builder); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutRule(ctx context.Context, r RuleRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO rules (issue, test, message, builder) VALUES (?, ?, ?, ?)",
		r.Issue, r.Test, r.Message, r.Builder)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRules(ctx context.Context, issue string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE issue = ?", issue)
	if err != nil {
		return 0, fmt.Errorf("delete rules: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
