// Package memory provides an in-memory document store, used in tests and as
// a scratch backend for the CLI.
package memory

import (
	"context"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aretw0/introspection"

	"github.com/aretw0/fieldbook/pkg/core"
)

type table struct {
	rows map[core.Key]*core.Row
	seq  int64
}

// Store keeps rows in maps guarded by a RWMutex. Rows are deep-copied on the
// way in and out so callers never alias stored state.
type Store struct {
	mu     sync.RWMutex
	tables map[core.Kind]*table

	scans atomic.Int64
}

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[core.Kind]*table)}
}

// Scans returns how many scans have been executed.
func (s *Store) Scans() int64 {
	return s.scans.Load()
}

func (s *Store) Put(ctx context.Context, kind core.Kind, row core.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[kind]
	if !ok {
		t = &table{rows: make(map[core.Key]*core.Row)}
		s.tables[kind] = t
	}

	stored := row
	stored.Fields = row.Fields.DeepClone()
	if prev, ok := t.rows[row.Key()]; ok {
		stored.Seq = prev.Seq
	} else {
		t.seq++
		stored.Seq = t.seq
	}
	t.rows[row.Key()] = &stored
	return nil
}

func (s *Store) Get(ctx context.Context, kind core.Kind, key core.Key) (core.Row, error) {
	if err := ctx.Err(); err != nil {
		return core.Row{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tables[kind]; ok {
		if r, ok := t.rows[key]; ok {
			return copyRow(r), nil
		}
	}
	return core.Row{}, core.NotFound("get", kind, key.ID)
}

func (s *Store) Scan(ctx context.Context, kind core.Kind, filter core.Filter) iter.Seq2[core.Row, error] {
	return func(yield func(core.Row, error) bool) {
		s.scans.Add(1)
		for _, r := range s.snapshot(kind, filter) {
			if err := ctx.Err(); err != nil {
				yield(core.Row{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *Store) Count(ctx context.Context, kind core.Kind, filter core.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.snapshot(kind, filter)), nil
}

func (s *Store) snapshot(kind core.Kind, filter core.Filter) []core.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[kind]
	if !ok {
		return nil
	}
	out := make([]core.Row, 0, len(t.rows))
	for _, r := range t.rows {
		if filter.Matches(*r) {
			out = append(out, copyRow(r))
		}
	}
	slices.SortFunc(out, func(a, b core.Row) int {
		if filter.Order == core.OrderInsertionDesc {
			return int(b.Seq - a.Seq)
		}
		return int(a.Seq - b.Seq)
	})
	return out
}

func copyRow(r *core.Row) core.Row {
	out := *r
	out.Fields = r.Fields.DeepClone()
	return out
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Kinds map[core.Kind]int `json:"kinds"`
	Scans int64             `json:"scans"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make(map[core.Kind]int, len(s.tables))
	for k, t := range s.tables {
		kinds[k] = len(t.rows)
	}
	return StoreState{Kinds: kinds, Scans: s.scans.Load()}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

var _ core.Store = (*Store)(nil)
var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
