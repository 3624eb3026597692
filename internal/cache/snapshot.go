package cache

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
)

const snapshotHeader = "-- bbreport cache snapshot v1"

// columns lists the snapshot layout of every relation in dump order.
var columns = []struct {
	table string
	cols  string
	n     int
}{
	{"builders", "name, host, branch, lastbuild, status", 5},
	{"builds", "builder, buildnumber, revision, result, message", 5},
	{"failures", "builder, buildnumber, testname", 3},
	{"rules", "issue, test, message, builder", 4},
}

// Dump writes every row as a gzip-compressed stream of INSERT statements.
func (s *SQLiteStore) Dump(ctx context.Context, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zw := gzip.NewWriter(w)
	bw := bufio.NewWriter(zw)
	fmt.Fprintln(bw, snapshotHeader)

	for _, rel := range columns {
		if err := s.dumpTable(ctx, bw, rel.table, rel.cols, rel.n); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return zw.Close()
}

func (s *SQLiteStore) dumpTable(ctx context.Context, w io.Writer, table, cols string, n int) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+cols+" FROM "+table+" ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("dump %s: %w", table, err)
		}
		parts := make([]string, n)
		for i, v := range values {
			parts[i] = literal(v)
		}
		if _, err := fmt.Fprintf(w, "INSERT INTO %s VALUES(%s);\n", table, strings.Join(parts, ",")); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	return rows.Err()
}

func literal(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case []byte:
		return quote(string(x))
	case string:
		return quote(x)
	case nil:
		return "''"
	default:
		return quote(fmt.Sprint(x))
	}
}

// quote renders a single-line SQL string literal.
func quote(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Load replaces the content of the store with a snapshot written by Dump.
// Any malformed statement rejects the whole snapshot.
func (s *SQLiteStore) Load(ctx context.Context, r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return corrupt(err, 0)
	}
	defer zr.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rel := range columns {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+rel.table); err != nil {
			return fmt.Errorf("clear %s: %w", rel.table, err)
		}
	}

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "--") {
			continue
		}
		table, values, err := parseInsert(text)
		if err != nil {
			return corrupt(err, line)
		}
		stmt, ok := insertStatement(table, len(values))
		if !ok {
			return corrupt(fmt.Errorf("unexpected relation %q with %d values", table, len(values)), line)
		}
		if _, err := tx.ExecContext(ctx, stmt, values...); err != nil {
			return corrupt(err, line)
		}
	}
	if err := sc.Err(); err != nil {
		return corrupt(err, line)
	}
	return tx.Commit()
}

func insertStatement(table string, n int) (string, bool) {
	for _, rel := range columns {
		if rel.table == table && rel.n == n {
			return "INSERT OR IGNORE INTO " + rel.table + " (" + rel.cols + ") VALUES (" +
				strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")", true
		}
	}
	return "", false
}

// parseInsert reads `INSERT INTO name VALUES(v, ...);` where each value is an
// integer or a single-quoted string with doubled quotes.
func parseInsert(stmt string) (string, []any, error) {
	const prefix = "INSERT INTO "
	if !strings.HasPrefix(stmt, prefix) || !strings.HasSuffix(stmt, ");") {
		return "", nil, fmt.Errorf("not an insert statement")
	}
	rest := stmt[len(prefix) : len(stmt)-2]
	open := strings.Index(rest, " VALUES(")
	if open < 0 {
		return "", nil, fmt.Errorf("missing VALUES clause")
	}
	table := rest[:open]
	body := rest[open+len(" VALUES("):]

	var values []any
	for i := 0; i < len(body); {
		switch {
		case body[i] == '\'':
			var b strings.Builder
			i++
			for {
				if i >= len(body) {
					return "", nil, fmt.Errorf("unterminated string")
				}
				if body[i] == '\'' {
					if i+1 < len(body) && body[i+1] == '\'' {
						b.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(body[i])
				i++
			}
			values = append(values, b.String())
		default:
			end := strings.IndexByte(body[i:], ',')
			if end < 0 {
				end = len(body) - i
			}
			n, err := strconv.ParseInt(strings.TrimSpace(body[i:i+end]), 10, 64)
			if err != nil {
				return "", nil, fmt.Errorf("bad integer: %w", err)
			}
			values = append(values, n)
			i += end
		}
		if i < len(body) {
			if body[i] != ',' {
				return "", nil, fmt.Errorf("expected ',' at offset %d", i)
			}
			i++
		}
	}
	return table, values, nil
}

func corrupt(err error, line int) error {
	return errors.WrapError(err, errors.CategoryCache, "cache snapshot is corrupt").
		Warning().
		WithContext("line", line).
		Build()
}

// OpenSnapshot creates an in-memory store and fills it from the snapshot at
// path. A missing file gives an empty store.
func OpenSnapshot(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "cache unavailable").Warning().Build()
	}
	f, err := os.Open(path)
	if stderrors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		_ = store.Close()
		return nil, errors.WrapError(err, errors.CategoryCache, "cache unavailable").
			Warning().WithContext("path", path).Build()
	}
	defer f.Close()

	if err := store.Load(ctx, f); err != nil {
		_ = store.Close()
		if ce, ok := errors.AsClassified(err); ok {
			ce.Context().Set("path", path)
			return nil, ce
		}
		return nil, errors.WrapError(err, errors.CategoryCache, "cache unavailable").
			Warning().WithContext("path", path).Build()
	}
	return store, nil
}

// DumpFile writes the snapshot of s to path, replacing it atomically.
func DumpFile(ctx context.Context, s Store, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".bbreport-cache-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := s.Dump(ctx, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
