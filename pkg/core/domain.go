// Package core holds the domain types and ports of fieldbook: records, the
// document store contract, the owner-scoped repository and the remote
// synchronization contract.
package core

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Kind discriminates the logical table a record lives in.
type Kind string

const (
	KindChild   Kind = "child"
	KindEnquiry Kind = "enquiry"
)

// DefaultKinds are the kinds synchronized when none are configured.
var DefaultKinds = []Kind{KindChild, KindEnquiry}

var kindPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Valid reports whether k can be used as a table or directory name.
func (k Kind) Valid() bool {
	return kindPattern.MatchString(string(k))
}

// Collection is the plural resource name used by remote endpoints.
func (k Kind) Collection() string {
	switch k {
	case KindChild:
		return "children"
	case KindEnquiry:
		return "enquiries"
	}
	return string(k) + "s"
}

// Identity keys stamped into every persisted field map.
const (
	FieldID           = "id"
	FieldOwner        = "created_by"
	FieldOrganisation = "created_organisation"
	FieldRevision     = "_rev"
)

// Fields is the open-schema payload of a record.
type Fields map[string]any

// Clone returns a shallow copy of f. Nested values are shared.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DeepClone copies f together with nested maps and slices.
func (f Fields) DeepClone() Fields {
	if f == nil {
		return nil
	}
	return cloneValue(map[string]any(f)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case Fields:
		return Fields(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// Record is a semi-structured document identified by kind, owner and id.
type Record struct {
	Kind   Kind
	ID     string
	Owner  string
	Fields Fields
	Synced bool
}

// NewRecord returns an unsaved record of the given kind with a fresh id.
func NewRecord(kind Kind, fields Fields) Record {
	if fields == nil {
		fields = Fields{}
	}
	return Record{
		Kind:   kind,
		ID:     uuid.New().String(),
		Fields: fields,
	}
}

// ShortID is the trailing seven characters of the id, used as a display handle.
func (r Record) ShortID() string {
	return ShortID(r.ID)
}

// Revision returns the server revision carried in the fields, if any.
func (r Record) Revision() string {
	s, _ := r.Fields[FieldRevision].(string)
	return s
}

// ShortID is the trailing seven characters of id.
func ShortID(id string) string {
	if len(id) <= 7 {
		return id
	}
	return id[len(id)-7:]
}

// RevisionGeneration parses the generation prefix of an "N-hash" revision.
// Missing or malformed revisions have generation 0.
func RevisionGeneration(rev string) int {
	head, _, _ := strings.Cut(rev, "-")
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Newer reports whether remote carries a later revision than local.
func Newer(remote, local Record) bool {
	return RevisionGeneration(remote.Revision()) > RevisionGeneration(local.Revision())
}

// EventType represents the type of change observed in a store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change to a stored row made outside the repository,
// for instance by another process writing into a file-backed store.
type Event struct {
	Type      EventType
	Kind      Kind
	Owner     string
	ID        string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return string(e.Type) + " " + string(e.Kind) + "/" + e.Owner + "/" + e.ID
}
