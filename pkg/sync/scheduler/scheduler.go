// Package scheduler runs sync in the background: on a fixed interval and
// whenever a trigger arrives, for instance from a store watcher.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"

	syncpkg "github.com/aretw0/fieldbook/pkg/sync"
)

// Engine is the part of the sync engine the scheduler drives.
type Engine interface {
	Run(ctx context.Context) (*syncpkg.Result, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithRunTimeout bounds each run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// Scheduler calls Engine.Run periodically and on demand.
type Scheduler struct {
	engine   Engine
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	trigger chan struct{}
	stopCh  chan struct{}
	exited  chan struct{}

	mu        sync.RWMutex
	isRunning bool
	isOnline  bool
	runs      int
	skipped   int
	lastRun   time.Time
	last      *syncpkg.Result
	lastErr   error
}

// New builds a scheduler. An interval of zero disables the ticker; runs then
// only happen on Trigger.
func New(engine Engine, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   slog.Default(),
		trigger:  make(chan struct{}, 1),
		isOnline: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the loop. Calling it on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.exited = make(chan struct{})
	stopCh, exited := s.stopCh, s.exited
	s.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(exited)
		defer s.release(stopCh)
		s.loop(ctx, stopCh)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("sync scheduler panic", "error", err)
	}))

	s.logger.Info("sync scheduler started", "interval", s.interval)
}

// Stop ends the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	exited := s.exited
	s.mu.Unlock()

	<-exited
	s.logger.Info("sync scheduler stopped")
}

// release marks the scheduler stopped when the loop owning stopCh exits on
// its own, so a later Start launches a new loop.
func (s *Scheduler) release(stopCh chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == stopCh {
		s.isRunning = false
	}
}

// Trigger requests a run as soon as possible. It never blocks; triggers that
// arrive while one is pending are merged into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SetOnline pauses or resumes runs.
func (s *Scheduler) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isOnline != online {
		s.logger.Info("online status changed", "was_online", s.isOnline, "is_online", online)
	}
	s.isOnline = online
}

// IsOnline reports whether runs are allowed.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// LastResult returns the outcome of the most recent run.
func (s *Scheduler) LastResult() (*syncpkg.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}) {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-tick:
			s.run(ctx, "tick")
		case <-s.trigger:
			s.run(ctx, "trigger")
		}
	}
}

func (s *Scheduler) run(ctx context.Context, reason string) {
	if !s.IsOnline() {
		s.logger.Debug("skipping sync, offline", "reason", reason)
		return
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.engine.Run(runCtx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(err, syncpkg.ErrRunInProgress) {
		s.skipped++
		s.logger.Debug("sync already in progress, skipping", "reason", reason)
		return
	}
	s.runs++
	s.lastRun = time.Now()
	s.last, s.lastErr = res, err
	if err != nil {
		s.logger.Warn("scheduled sync failed", "reason", reason, "error", err)
	}
}

// SchedulerState exposes the scheduler for observability.
type SchedulerState struct {
	Running  bool                `json:"running"`
	Online   bool                `json:"online"`
	Interval time.Duration       `json:"interval"`
	Runs     int                 `json:"runs"`
	Skipped  int                 `json:"skipped"`
	LastRun  *time.Time          `json:"last_run,omitempty"`
	Last     *syncpkg.RunSummary `json:"last,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Scheduler) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SchedulerState{
		Running:  s.isRunning,
		Online:   s.isOnline,
		Interval: s.interval,
		Runs:     s.runs,
		Skipped:  s.skipped,
	}
	if !s.lastRun.IsZero() {
		t := s.lastRun
		st.LastRun = &t
	}
	if s.last != nil {
		sum := s.last.Summary()
		st.Last = &sum
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *Scheduler) ComponentType() string {
	return "sync-scheduler"
}

var _ introspection.Introspectable = (*Scheduler)(nil)
var _ introspection.Component = (*Scheduler)(nil)
