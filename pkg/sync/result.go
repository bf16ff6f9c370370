package sync

import (
	"fmt"
	"time"

	"github.com/aretw0/fieldbook/pkg/core"
)

// Strategy names the reconciliation a run performs.
type Strategy string

const (
	// StrategyFull pushes pending records and pulls remote ones.
	StrategyFull Strategy = "full"
	// StrategyRestricted only pushes the user's own pending records.
	StrategyRestricted Strategy = "restricted"
	// StrategySingle reconciles exactly one record.
	StrategySingle Strategy = "single"
)

// RunState is the state of a sync run.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// Terminal reports whether s ends a run.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// CanTransition reports whether a run may move from s to next. A new run may
// start from idle or from the terminal state of the previous run.
func (s RunState) CanTransition(next RunState) bool {
	switch next {
	case StateRunning:
		return s == StateIdle || s.Terminal()
	case StateCompleted, StateFailed, StateCancelled:
		return s == StateRunning
	}
	return false
}

// Op is the remote operation a record outcome refers to.
type Op string

const (
	OpPush Op = "push"
	OpPull Op = "pull"
)

// Ref points at one record.
type Ref struct {
	Kind core.Kind `json:"kind"`
	ID   string    `json:"id"`
}

func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

// Failure is a per-record fault. ID is empty when a whole pull page failed.
type Failure struct {
	Kind core.Kind `json:"kind"`
	ID   string    `json:"id"`
	Op   Op        `json:"op"`
	Err  error     `json:"-"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s %s/%s: %v", f.Op, f.Kind, f.ID, f.Err)
}

// Result aggregates the outcome of one run.
type Result struct {
	Strategy Strategy `json:"strategy"`
	State    RunState `json:"state"`
	User     string   `json:"user"`

	// Succeeded lists pushed records acknowledged by the server.
	Succeeded []Ref `json:"succeeded"`
	// Pulled lists remote records merged locally.
	Pulled []Ref `json:"pulled"`
	// Conflicts lists remote updates not applied because the local copy has
	// unsynced changes.
	Conflicts []Ref     `json:"conflicts"`
	Failed    []Failure `json:"failed"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Err is the run-level fault of a failed or cancelled run.
	Err error `json:"-"`
}

// Duration is how long the run took.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SucceededIDs returns the ids of acknowledged pushes in push order.
func (r *Result) SucceededIDs() []string {
	ids := make([]string, 0, len(r.Succeeded))
	for _, ref := range r.Succeeded {
		ids = append(ids, ref.ID)
	}
	return ids
}

// FailedIDs returns the ids of failed records in attempt order.
func (r *Result) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

func (r *Result) succeed(kind core.Kind, id string) {
	r.Succeeded = append(r.Succeeded, Ref{Kind: kind, ID: id})
}

func (r *Result) pulled(kind core.Kind, id string) {
	r.Pulled = append(r.Pulled, Ref{Kind: kind, ID: id})
}

func (r *Result) conflict(kind core.Kind, id string) {
	r.Conflicts = append(r.Conflicts, Ref{Kind: kind, ID: id})
}

func (r *Result) fail(kind core.Kind, id string, op Op, err error) {
	r.Failed = append(r.Failed, Failure{Kind: kind, ID: id, Op: op, Err: err})
}
