package graphstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store on an embedded SQLite database.
//
// Writes go through a single-connection pool so upserts serialize; reads use
// a separate pool for file databases so lineage queries run alongside builds.
type SQLiteStore struct {
	db     *sql.DB // write pool
	reader *sql.DB // read pool; same as db for in-memory databases
	closed atomic.Bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates an unopened SQLite store.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// OpenSQLite opens the database at path and migrates it to the latest schema.
// Use ":memory:" for an in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	s := NewSQLiteStore()
	if err := s.Open(ctx, path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func dsn(path string, readOnly bool) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	pragmas += "&_pragma=journal_mode(WAL)"
	if readOnly {
		pragmas += "&_pragma=query_only(1)"
	}
	return "file:" + path + "?" + pragmas
}

// Open opens the connection pools.
func (s *SQLiteStore) Open(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", dsn(path, false))
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer keeps upserts serialized. An in-memory database lives in its
	// only connection, so it must never be recycled.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return mapErr(err, "ping sqlite database")
	}

	reader := db
	if path != ":memory:" {
		reader, err = sql.Open("sqlite", dsn(path, true))
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to open sqlite read pool: %w", err)
		}
	}

	s.db = db
	s.reader = reader
	return nil
}

// Close closes both connection pools.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) || s.db == nil {
		return nil
	}
	var errs []error
	if s.reader != nil && s.reader != s.db {
		errs = append(errs, s.reader.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

func (s *SQLiteStore) ready() error {
	if s.db == nil {
		return graph.Unavailable(nil, "database not opened")
	}
	if s.closed.Load() {
		return graph.Unavailable(nil, "database closed")
	}
	return nil
}

// mapErr translates driver errors into the graph error taxonomy.
func mapErr(err error, op string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(op, args...)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", msg, err)
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return graph.Unavailable(err, "failed to %s", msg)
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		if serr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
			(serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(serr.Error(), "FOREIGN KEY")) {
			return graph.NotFound("%s: endpoint missing", msg)
		}
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
			return graph.Unavailable(err, "failed to %s", msg)
		}
	}

	return fmt.Errorf("failed to %s: %w", msg, err)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func encodeProps(props graph.Properties) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", graph.InvalidArgument("properties are not serializable: %v", err)
	}
	return string(b), nil
}

// decodeProps decodes stored JSON. Arrays of strings come back as []string
// and whole numbers as int so values round-trip the way they were written.
func decodeProps(raw string) (graph.Properties, error) {
	props := graph.Properties{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	for k, v := range props {
		switch val := v.(type) {
		case float64:
			if val == float64(int(val)) {
				props[k] = int(val)
			}
		case []any:
			strs := make([]string, 0, len(val))
			ok := true
			for _, item := range val {
				s, isStr := item.(string)
				if !isStr {
					ok = false
					break
				}
				strs = append(strs, s)
			}
			if ok {
				props[k] = strs
			}
		}
	}
	return props, nil
}

// placeholders returns "?, ?, ..." for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (graph.Stats, error) {
	if err := s.ready(); err != nil {
		return graph.Stats{}, err
	}

	stats := EmptyStats()
	count := func(query string, add func(kind string, n int)) error {
		rows, err := s.reader.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var kind string
			var n int
			if err := rows.Scan(&kind, &n); err != nil {
				return err
			}
			add(kind, n)
		}
		return rows.Err()
	}

	if err := count(`SELECT kind, COUNT(*) FROM nodes GROUP BY kind`, func(kind string, n int) {
		stats.Nodes[graph.NodeKind(kind)] = n
	}); err != nil {
		return graph.Stats{}, mapErr(err, "count nodes")
	}
	if err := count(`SELECT kind, COUNT(*) FROM edges GROUP BY kind`, func(kind string, n int) {
		stats.Edges[graph.RelKind(kind)] = n
	}); err != nil {
		return graph.Stats{}, mapErr(err, "count edges")
	}
	return stats, nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges`); err != nil {
		return mapErr(err, "delete edges")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return mapErr(err, "delete nodes")
	}
	return mapErr(tx.Commit(), "commit clear")
}
