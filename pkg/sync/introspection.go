package sync

import (
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/fieldbook/pkg/core"
)

// EngineState exposes the engine for observability.
type EngineState struct {
	State   RunState    `json:"state"`
	Running bool        `json:"running"`
	Kinds   []core.Kind `json:"kinds"`
	LastRun *RunSummary `json:"last_run,omitempty"`
}

// RunSummary condenses a Result.
type RunSummary struct {
	Strategy   Strategy      `json:"strategy"`
	State      RunState      `json:"state"`
	User       string        `json:"user"`
	Succeeded  int           `json:"succeeded"`
	Pulled     int           `json:"pulled"`
	Conflicts  int           `json:"conflicts"`
	Failed     int           `json:"failed"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Summary condenses r.
func (r *Result) Summary() RunSummary {
	s := RunSummary{
		Strategy:   r.Strategy,
		State:      r.State,
		User:       r.User,
		Succeeded:  len(r.Succeeded),
		Pulled:     len(r.Pulled),
		Conflicts:  len(r.Conflicts),
		Failed:     len(r.Failed),
		FinishedAt: r.FinishedAt,
		Duration:   r.Duration(),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := EngineState{
		State:   e.state,
		Running: e.running.Load(),
		Kinds:   e.Kinds(),
	}
	if e.last != nil {
		sum := e.last.Summary()
		st.LastRun = &sum
	}
	return st
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "sync-engine"
}

// TaskState exposes a background run.
type TaskState struct {
	Finished bool        `json:"finished"`
	Result   *RunSummary `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// State implements introspection.Introspectable.
func (t *Task) State() any {
	var st TaskState
	select {
	case <-t.done:
		st.Finished = true
	default:
		return st
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result != nil {
		sum := t.result.Summary()
		st.Result = &sum
	}
	if t.err != nil {
		st.Error = t.err.Error()
	}
	return st
}

// ComponentType implements introspection.Component.
func (t *Task) ComponentType() string {
	return "sync-task"
}

var (
	_ introspection.Introspectable = (*Engine)(nil)
	_ introspection.Component      = (*Engine)(nil)
	_ introspection.Introspectable = (*Task)(nil)
	_ introspection.Component      = (*Task)(nil)
)
