// Package sqlite implements the document store on an embedded SQLite
// database, one table per record kind.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/introspection"
	_ "modernc.org/sqlite"

	"github.com/aretw0/fieldbook/pkg/core"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultPageSize = 200

// Config holds the store setup.
type Config struct {
	Path   string
	Logger *slog.Logger
	// PageSize bounds how many rows a scan loads per query.
	PageSize int
}

// Store is a core.Store backed by SQLite. It holds a single connection, so
// scans load pages and release the connection before yielding; callers may
// write while ranging over a scan.
type Store struct {
	db     *sql.DB
	config Config

	mu     sync.Mutex
	tables map[core.Kind]bool
}

// Open opens or creates the database at config.Path.
func Open(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}

	if config.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers; a single connection also keeps
	// an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &Store{db: db, config: config, tables: make(map[core.Kind]bool)}, nil
}

// Initialize creates the tables of the built-in kinds.
func (s *Store) Initialize(ctx context.Context) error {
	for _, k := range core.DefaultKinds {
		if err := s.ensureTable(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func tableName(kind core.Kind) string {
	return "records_" + string(kind)
}

func (s *Store) ensureTable(ctx context.Context, kind core.Kind) error {
	if !kind.Valid() {
		return core.Validation("sqlite", kind, "", fmt.Sprintf("invalid kind %q", kind))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[kind] {
		return nil
	}

	table := tableName(kind)
	schema := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	owner  TEXT NOT NULL,
	id     TEXT NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	fields TEXT NOT NULL,
	UNIQUE(owner, id)
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_pending ON %[1]s(owner, synced)`, table),
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return core.StorageFault("sqlite create table", err)
		}
	}
	s.tables[kind] = true
	s.config.Logger.Debug("sqlite table ready", "table", table)
	return nil
}

func (s *Store) Put(ctx context.Context, kind core.Kind, row core.Row) error {
	if err := s.ensureTable(ctx, kind); err != nil {
		return err
	}
	payload, err := json.Marshal(row.Fields)
	if err != nil {
		return core.StorageFault("sqlite encode", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (owner, id, synced, fields) VALUES (?, ?, ?, ?)
ON CONFLICT(owner, id) DO UPDATE SET synced = excluded.synced, fields = excluded.fields`, tableName(kind))
	if _, err := s.db.ExecContext(ctx, query, row.Owner, row.ID, row.Synced, string(payload)); err != nil {
		return core.StorageFault("sqlite put", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind core.Kind, key core.Key) (core.Row, error) {
	if err := s.ensureTable(ctx, kind); err != nil {
		return core.Row{}, err
	}

	query := fmt.Sprintf(`SELECT seq, owner, id, synced, fields FROM %s WHERE owner = ? AND id = ?`, tableName(kind))
	row, err := scanRow(s.db.QueryRowContext(ctx, query, key.Owner, key.ID))
	if err == sql.ErrNoRows {
		return core.Row{}, core.NotFound("get", kind, key.ID)
	}
	if err != nil {
		return core.Row{}, core.StorageFault("sqlite get", err)
	}
	return row, nil
}

func (s *Store) Scan(ctx context.Context, kind core.Kind, filter core.Filter) iter.Seq2[core.Row, error] {
	return func(yield func(core.Row, error) bool) {
		if err := s.ensureTable(ctx, kind); err != nil {
			yield(core.Row{}, err)
			return
		}

		cursor := int64(0)
		if filter.Order == core.OrderInsertionDesc {
			cursor = math.MaxInt64
		}
		for {
			page, err := s.page(ctx, kind, filter, cursor)
			if err != nil {
				yield(core.Row{}, err)
				return
			}
			for _, r := range page {
				cursor = r.Seq
				if filter.Match != nil && !filter.Match(r) {
					continue
				}
				if !yield(r, nil) {
					return
				}
			}
			if len(page) < s.config.PageSize {
				return
			}
		}
	}
}

func (s *Store) page(ctx context.Context, kind core.Kind, filter core.Filter, cursor int64) ([]core.Row, error) {
	var (
		where []string
		args  []any
	)
	if filter.Order == core.OrderInsertionDesc {
		where = append(where, "seq < ?")
	} else {
		where = append(where, "seq > ?")
	}
	args = append(args, cursor)
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Unsynced {
		where = append(where, "synced = 0")
	}
	order := "ASC"
	if filter.Order == core.OrderInsertionDesc {
		order = "DESC"
	}
	args = append(args, s.config.PageSize)

	query := fmt.Sprintf(`SELECT seq, owner, id, synced, fields FROM %s WHERE %s ORDER BY seq %s LIMIT ?`,
		tableName(kind), strings.Join(where, " AND "), order)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.StorageFault("sqlite scan", err)
	}
	defer rows.Close()

	var out []core.Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, core.StorageFault("sqlite scan", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageFault("sqlite scan", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, kind core.Kind, filter core.Filter) (int, error) {
	if filter.Match != nil {
		n := 0
		for _, err := range s.Scan(ctx, kind, filter) {
			if err != nil {
				return 0, err
			}
			n++
		}
		return n, nil
	}
	if err := s.ensureTable(ctx, kind); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE 1 = 1`, tableName(kind))
	var args []any
	if filter.Owner != "" {
		query += " AND owner = ?"
		args = append(args, filter.Owner)
	}
	if filter.Unsynced {
		query += " AND synced = 0"
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, core.StorageFault("sqlite count", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (core.Row, error) {
	var (
		r       core.Row
		payload string
	)
	if err := sc.Scan(&r.Seq, &r.Owner, &r.ID, &r.Synced, &payload); err != nil {
		return core.Row{}, err
	}
	if err := json.Unmarshal([]byte(payload), &r.Fields); err != nil {
		return core.Row{}, fmt.Errorf("decode fields of %s: %w", r.ID, err)
	}
	if r.Fields == nil {
		r.Fields = core.Fields{}
	}
	return r, nil
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Path   string      `json:"path"`
	Tables []core.Kind `json:"tables"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	tables := make([]core.Kind, 0, len(s.tables))
	for k := range s.tables {
		tables = append(tables, k)
	}
	return StoreState{Path: s.config.Path, Tables: tables}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "sqlite-store"
}

var _ core.Store = (*Store)(nil)
var _ core.Initializer = (*Store)(nil)
var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
