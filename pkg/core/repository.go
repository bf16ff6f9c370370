package core

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Repository is an owner-scoped view over a Store for one kind. Every
// operation filters or stamps by the owner fixed at construction; rows of
// other owners are invisible, indistinguishable from rows that do not exist.
//
// A Repository is not safe for concurrent mutation of the same owner; callers
// serialize writers.
type Repository struct {
	store        Store
	kind         Kind
	owner        string
	organisation string
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithOrganisation stamps org into newly inserted records.
func WithOrganisation(org string) RepositoryOption {
	return func(r *Repository) {
		r.organisation = org
	}
}

// NewRepository returns a repository over store for kind, scoped to owner.
func NewRepository(store Store, kind Kind, owner string, opts ...RepositoryOption) (*Repository, error) {
	if store == nil {
		return nil, Validation("new repository", kind, "", "store is nil")
	}
	if !kind.Valid() {
		return nil, Validation("new repository", kind, "", fmt.Sprintf("invalid kind %q", kind))
	}
	if strings.TrimSpace(owner) == "" {
		return nil, Validation("new repository", kind, "", "owner is empty")
	}
	r := &Repository{store: store, kind: kind, owner: owner}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Kind returns the kind the repository is bound to.
func (r *Repository) Kind() Kind { return r.kind }

// Owner returns the owner the repository is scoped to.
func (r *Repository) Owner() string { return r.owner }

// Create inserts rec, or merges its fields into the existing row with the
// same id. Incoming keys overwrite, keys only present in the stored row are
// kept, the owner never changes. The result is always unsynced.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	if err := r.validate("create", rec); err != nil {
		return Record{}, err
	}

	existing, err := r.store.Get(ctx, r.kind, Key{Owner: r.owner, ID: rec.ID})
	switch {
	case err == nil:
		return r.merge(ctx, "create", existing, rec.Fields)
	case IsNotFound(err):
	default:
		return Record{}, StorageFault("create", err)
	}

	fields := rec.Fields.Clone()
	if r.organisation != "" {
		if _, ok := fields[FieldOrganisation]; !ok {
			fields[FieldOrganisation] = r.organisation
		}
	}
	row := Row{ID: rec.ID, Owner: r.owner, Fields: r.stamp(fields, rec.ID)}
	if err := r.store.Put(ctx, r.kind, row); err != nil {
		return Record{}, StorageFault("create", err)
	}
	return r.toRecord(row), nil
}

// Update merges rec into an existing row. It fails with ErrNotFound when the
// id is unknown to this owner.
func (r *Repository) Update(ctx context.Context, rec Record) (Record, error) {
	if err := r.validate("update", rec); err != nil {
		return Record{}, err
	}

	existing, err := r.store.Get(ctx, r.kind, Key{Owner: r.owner, ID: rec.ID})
	if err != nil {
		if IsNotFound(err) {
			return Record{}, NotFound("update", r.kind, rec.ID)
		}
		return Record{}, StorageFault("update", err)
	}
	return r.merge(ctx, "update", existing, rec.Fields)
}

// Get returns the record with id, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, NotFound("get", r.kind, id)
	}
	row, err := r.store.Get(ctx, r.kind, Key{Owner: r.owner, ID: id})
	if err != nil {
		if IsNotFound(err) {
			return Record{}, NotFound("get", r.kind, id)
		}
		return Record{}, StorageFault("get", err)
	}
	return r.toRecord(row), nil
}

// Exists reports whether id is stored for this owner.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.Get(ctx, id)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// All yields every record of the owner in insertion order.
func (r *Repository) All(ctx context.Context) iter.Seq2[Record, error] {
	return r.scan(ctx, "all", Filter{Owner: r.owner})
}

// ToBeSynced yields the owner's unsynced records in insertion order.
func (r *Repository) ToBeSynced(ctx context.Context) iter.Seq2[Record, error] {
	return r.scan(ctx, "to be synced", Filter{Owner: r.owner, Unsynced: true})
}

// Size returns the number of records of the owner.
func (r *Repository) Size(ctx context.Context) (int, error) {
	n, err := r.store.Count(ctx, r.kind, Filter{Owner: r.owner})
	if err != nil {
		return 0, StorageFault("size", err)
	}
	return n, nil
}

// MarkSynced flags id as acknowledged by the server without touching its
// fields. A missing id is a no-op.
func (r *Repository) MarkSynced(ctx context.Context, id string) error {
	return r.acknowledge(ctx, "mark synced", id, "")
}

// Acknowledge is MarkSynced that also records the server revision, so later
// pulls of the same revision are not treated as newer. A missing id is a
// no-op.
func (r *Repository) Acknowledge(ctx context.Context, id, revision string) error {
	return r.acknowledge(ctx, "acknowledge", id, revision)
}

func (r *Repository) acknowledge(ctx context.Context, op, id, revision string) error {
	row, err := r.store.Get(ctx, r.kind, Key{Owner: r.owner, ID: id})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return StorageFault(op, err)
	}
	if row.Synced && (revision == "" || row.Fields[FieldRevision] == revision) {
		return nil
	}
	row.Synced = true
	if revision != "" {
		row.Fields = row.Fields.Clone()
		row.Fields[FieldRevision] = revision
	}
	if err := r.store.Put(ctx, r.kind, row); err != nil {
		return StorageFault(op, err)
	}
	return nil
}

// Search yields the owner's records whose string values under fields contain
// query, ignoring case. Field names may be glob patterns; no names means all
// fields. A blank query yields nothing and never reaches the store.
func (r *Repository) Search(ctx context.Context, query string, fields []string) iter.Seq2[Record, error] {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return func(yield func(Record, error) bool) {}
	}
	return r.scan(ctx, "search", Filter{
		Owner: r.owner,
		Match: func(row Row) bool {
			return matchFields(row.Fields, fields, needle)
		},
	})
}

func (r *Repository) scan(ctx context.Context, op string, filter Filter) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for row, err := range r.store.Scan(ctx, r.kind, filter) {
			if err != nil {
				yield(Record{}, StorageFault(op, err))
				return
			}
			if !yield(r.toRecord(row), nil) {
				return
			}
		}
	}
}

func (r *Repository) merge(ctx context.Context, op string, existing Row, incoming Fields) (Record, error) {
	fields := existing.Fields.Clone()
	for k, v := range incoming {
		fields[k] = v
	}
	row := Row{
		ID:     existing.ID,
		Owner:  existing.Owner,
		Fields: r.stamp(fields, existing.ID),
		Seq:    existing.Seq,
	}
	if err := r.store.Put(ctx, r.kind, row); err != nil {
		return Record{}, StorageFault(op, err)
	}
	return r.toRecord(row), nil
}

func (r *Repository) stamp(fields Fields, id string) Fields {
	fields[FieldID] = id
	fields[FieldOwner] = r.owner
	return fields
}

func (r *Repository) validate(op string, rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return Validation(op, r.kind, rec.ID, "record id is empty")
	}
	if rec.Kind != "" && rec.Kind != r.kind {
		return Validation(op, r.kind, rec.ID, fmt.Sprintf("record of kind %q written to %q", rec.Kind, r.kind))
	}
	if rec.Owner != "" && rec.Owner != r.owner {
		return Validation(op, r.kind, rec.ID, fmt.Sprintf("record owned by %q cannot be written by %q", rec.Owner, r.owner))
	}
	return nil
}

func (r *Repository) toRecord(row Row) Record {
	return Record{
		Kind:   r.kind,
		ID:     row.ID,
		Owner:  row.Owner,
		Fields: row.Fields,
		Synced: row.Synced,
	}
}

func matchFields(f Fields, patterns []string, needle string) bool {
	for k, v := range f {
		if !fieldSelected(k, patterns) {
			continue
		}
		if containsFold(v, needle) {
			return true
		}
	}
	return false
}

func fieldSelected(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// containsFold expects needle already lower-cased.
func containsFold(v any, needle string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), needle)
	case []string:
		for _, s := range t {
			if strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		}
	case []any:
		for _, item := range t {
			if containsFold(item, needle) {
				return true
			}
		}
	case map[string]any:
		for _, item := range t {
			if containsFold(item, needle) {
				return true
			}
		}
	case Fields:
		for _, item := range t {
			if containsFold(item, needle) {
				return true
			}
		}
	}
	return false
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
