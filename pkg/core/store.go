package core

import (
	"context"
	"iter"
)

// Key identifies a row within a kind.
type Key struct {
	Owner string
	ID    string
}

// Row is the stored form of a record.
type Row struct {
	ID     string
	Owner  string
	Synced bool
	Fields Fields
	// Seq is the insertion position assigned by the store. It is preserved
	// when a row is replaced.
	Seq int64
}

// Key returns the row's identity within its kind.
func (r Row) Key() Key {
	return Key{Owner: r.Owner, ID: r.ID}
}

// Order selects the ordering of a scan.
type Order int

const (
	// OrderInsertion yields rows oldest first.
	OrderInsertion Order = iota
	// OrderInsertionDesc yields rows newest first.
	OrderInsertionDesc
)

// Filter is the predicate of a scan or count. Zero values match everything.
type Filter struct {
	Owner    string
	Unsynced bool
	Match    func(Row) bool
	Order    Order
}

// Matches applies the filter to a row.
func (f Filter) Matches(r Row) bool {
	if f.Owner != "" && r.Owner != f.Owner {
		return false
	}
	if f.Unsynced && r.Synced {
		return false
	}
	if f.Match != nil && !f.Match(r) {
		return false
	}
	return true
}

// Store is the document store port: durable keyed storage with one logical
// table per kind. It provides no transactions and no concurrency control
// beyond keeping its own structures consistent.
type Store interface {
	// Put inserts the row or fully replaces the row with the same key.
	Put(ctx context.Context, kind Kind, row Row) error

	// Get returns the row for key, or ErrNotFound.
	Get(ctx context.Context, kind Kind, key Key) (Row, error)

	// Scan yields the rows matching filter. The sequence is lazy and ranging
	// over it again re-executes the scan.
	Scan(ctx context.Context, kind Kind, filter Filter) iter.Seq2[Row, error]

	// Count returns the number of rows matching filter.
	Count(ctx context.Context, kind Kind, filter Filter) (int, error)
}

// Initializer is implemented by stores that need preparation before use
// (directories, schema).
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Watchable is implemented by stores that can report changes made outside
// the process.
type Watchable interface {
	Watch(ctx context.Context) (<-chan Event, error)
}
