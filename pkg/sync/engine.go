// Package sync reconciles the local document store with the central server.
//
// An Engine runs one of three strategies: Full for verified users (push then
// pull), Restricted for unverified users (push only) and Single for one
// record. Runs are sequential and one at a time per engine; per-record
// failures are collected in the Result and never abort the run.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/fieldbook/pkg/core"
)

var (
	// ErrRunInProgress is returned when a run is requested while another is
	// still executing on the same engine.
	ErrRunInProgress = errors.New("sync already in progress")
	// ErrCancelled marks a run stopped by its caller between records.
	ErrCancelled = errors.New("sync cancelled")
	// ErrTierMismatch is the engine fault of a full run for an unverified user.
	ErrTierMismatch = errors.New("full sync requires a verified user")
)

// Option configures an Engine.
type Option func(*Engine)

// WithKinds sets the kinds reconciled by collection-wide runs.
func WithKinds(kinds ...core.Kind) Option {
	return func(e *Engine) {
		e.kinds = slices.DeleteFunc(slices.Clone(kinds), func(k core.Kind) bool {
			return k == MarkerKind
		})
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records runs and record outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithOrganisation sets the organisation stamped on pulled records when the
// user carries none.
func WithOrganisation(org string) Option {
	return func(e *Engine) {
		e.organisation = org
	}
}

// WithDispatcher sets how task completion callbacks are delivered. The
// default calls them on the task goroutine.
func WithDispatcher(dispatch func(func())) Option {
	return func(e *Engine) {
		e.dispatch = dispatch
	}
}

// Engine reconciles records of the current user with a remote.
type Engine struct {
	store        core.Store
	remote       core.RemoteDAO
	users        core.UserProvider
	kinds        []core.Kind
	organisation string
	logger       *slog.Logger
	metrics      *Metrics
	dispatch     func(func())
	markers      markers

	running atomic.Bool

	mu    gosync.RWMutex
	state RunState
	last  *Result
}

// New builds an engine over store and remote for the user reported by users.
func New(store core.Store, remote core.RemoteDAO, users core.UserProvider, opts ...Option) (*Engine, error) {
	if store == nil || remote == nil || users == nil {
		return nil, fmt.Errorf("sync engine needs a store, a remote and a user provider")
	}
	e := &Engine{
		store:    store,
		remote:   remote,
		users:    users,
		kinds:    slices.Clone(core.DefaultKinds),
		logger:   slog.Default(),
		dispatch: func(fn func()) { fn() },
		markers:  markers{store: store},
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, k := range e.kinds {
		if !k.Valid() {
			return nil, core.Validation("new engine", k, "", fmt.Sprintf("invalid kind %q", k))
		}
	}
	return e, nil
}

// Kinds returns the kinds reconciled by collection-wide runs.
func (e *Engine) Kinds() []core.Kind {
	return slices.Clone(e.kinds)
}

// Status returns the state of the current or last run.
func (e *Engine) Status() RunState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastResult returns the result of the last finished run, or nil.
func (e *Engine) LastResult() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Run resolves the current user's tier and runs the matching strategy. A
// user that cannot be resolved fails the run as restricted.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	user, err := e.users.CurrentUser(ctx)
	if err == nil && core.Resolve(user) == core.TierVerified {
		return e.RunFull(ctx)
	}
	return e.RunRestricted(ctx)
}

// RunFull pushes every pending record, then pulls remote records the device
// lacks or holds an older revision of, for each kind in order.
func (e *Engine) RunFull(ctx context.Context) (*Result, error) {
	return e.execute(ctx, StrategyFull, func(ctx context.Context, user core.User, res *Result) error {
		if core.Resolve(user) != core.TierVerified {
			return core.EngineFault("full sync", ErrTierMismatch)
		}
		if err := e.ping(ctx); err != nil {
			return err
		}
		for _, kind := range e.kinds {
			if err := e.pushKind(ctx, user, kind, res); err != nil {
				return err
			}
			if err := e.pullKind(ctx, user, kind, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunRestricted pushes the current user's pending records. It never pulls.
func (e *Engine) RunRestricted(ctx context.Context) (*Result, error) {
	return e.execute(ctx, StrategyRestricted, func(ctx context.Context, user core.User, res *Result) error {
		if err := e.ping(ctx); err != nil {
			return err
		}
		for _, kind := range e.kinds {
			if err := e.pushKind(ctx, user, kind, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunSingle reconciles one record of the current user regardless of tier:
// an unsynced local copy is pushed, otherwise the server copy is pulled and
// merged when it is newer.
func (e *Engine) RunSingle(ctx context.Context, kind core.Kind, id string) (*Result, error) {
	if !kind.Valid() {
		return nil, core.Validation("single sync", kind, id, fmt.Sprintf("invalid kind %q", kind))
	}
	if id == "" {
		return nil, core.Validation("single sync", kind, id, "record id is empty")
	}
	return e.execute(ctx, StrategySingle, func(ctx context.Context, user core.User, res *Result) error {
		if err := e.ping(ctx); err != nil {
			return err
		}
		return e.syncOne(ctx, user, kind, id, res)
	})
}

type runBody func(ctx context.Context, user core.User, res *Result) error

func (e *Engine) execute(ctx context.Context, strategy Strategy, body runBody) (res *Result, err error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	res = &Result{Strategy: strategy, StartedAt: time.Now()}
	e.transition(StateRunning)

	defer func() {
		if p := recover(); p != nil {
			err = core.EngineFault(string(strategy), fmt.Errorf("panic: %v", p))
		}
		err = e.finish(ctx, res, err)
	}()

	user, uerr := e.users.CurrentUser(ctx)
	if uerr != nil {
		return res, core.EngineFault("resolve user", uerr)
	}
	if user.Username == "" {
		return res, core.EngineFault("resolve user", errors.New("no current user"))
	}
	res.User = user.Username

	e.logger.Info("sync run started", "strategy", strategy, "user", user.Username, "tier", core.Resolve(user))
	if err := ctx.Err(); err != nil {
		return res, cancelled(err)
	}
	return res, body(ctx, user, res)
}

func (e *Engine) finish(ctx context.Context, res *Result, err error) error {
	res.FinishedAt = time.Now()
	switch {
	case err == nil:
		res.State = StateCompleted
	case errors.Is(err, ErrCancelled), ctx.Err() != nil && isContextErr(err):
		err = cancelled(err)
		res.State = StateCancelled
	default:
		if core.KindOf(err) != core.CodeEngine {
			err = core.EngineFault(string(res.Strategy), err)
		}
		res.State = StateFailed
	}
	res.Err = err

	e.mu.Lock()
	e.transitionLocked(res.State)
	e.last = res
	e.mu.Unlock()
	e.running.Store(false)

	e.metrics.observeRun(res)
	attrs := []any{
		"strategy", res.Strategy,
		"user", res.User,
		"state", res.State,
		"succeeded", len(res.Succeeded),
		"pulled", len(res.Pulled),
		"conflicts", len(res.Conflicts),
		"failed", len(res.Failed),
		"duration", res.Duration(),
	}
	if err != nil {
		e.logger.Warn("sync run finished", append(attrs, "error", err)...)
	} else {
		e.logger.Info("sync run finished", attrs...)
	}
	return err
}

func (e *Engine) transition(next RunState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitionLocked(next)
}

func (e *Engine) transitionLocked(next RunState) {
	if !e.state.CanTransition(next) {
		e.logger.Error("invalid sync state transition", "from", e.state, "to", next)
		return
	}
	e.state = next
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func cancelled(err error) error {
	if errors.Is(err, ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// ping fails the run before any record is attempted when the remote is
// unreachable.
func (e *Engine) ping(ctx context.Context) error {
	p, ok := e.remote.(core.Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		return core.EngineFault("ping", err)
	}
	return nil
}

func (e *Engine) repository(kind core.Kind, owner string, opts ...core.RepositoryOption) (*core.Repository, error) {
	return core.NewRepository(e.store, kind, owner, opts...)
}
