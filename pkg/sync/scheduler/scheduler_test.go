package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncpkg "github.com/aretw0/fieldbook/pkg/sync"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls int
	err   error
	runs  chan struct{}
	block chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{runs: make(chan struct{}, 16)}
}

func (f *fakeEngine) Run(ctx context.Context) (*syncpkg.Result, error) {
	f.mu.Lock()
	f.calls++
	err, block := f.err, f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.runs <- struct{}{}
	return &syncpkg.Result{Strategy: syncpkg.StrategyRestricted, State: syncpkg.StateCompleted}, err
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitRun(t *testing.T, f *fakeEngine) {
	t.Helper()
	select {
	case <-f.runs:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for sync run")
	}
}

func TestScheduler_RunsOnTick(t *testing.T) {
	engine := newFakeEngine()
	s := New(engine, 20*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	waitRun(t, engine)
	waitRun(t, engine)

	res, err := s.LastResult()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, syncpkg.StateCompleted, res.State)
}

func TestScheduler_Trigger(t *testing.T) {
	engine := newFakeEngine()
	s := New(engine, 0)
	s.Start(context.Background())
	defer s.Stop()

	s.Trigger()
	waitRun(t, engine)
	assert.Equal(t, 1, engine.count())
}

func TestScheduler_TriggersCoalesce(t *testing.T) {
	engine := newFakeEngine()
	engine.block = make(chan struct{})
	s := New(engine, 0)
	s.Start(context.Background())
	defer s.Stop()

	s.Trigger()
	require.Eventually(t, func() bool { return engine.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	// The first run is blocked; these collapse into one pending trigger.
	s.Trigger()
	s.Trigger()
	s.Trigger()

	close(engine.block)
	waitRun(t, engine)
	waitRun(t, engine)

	select {
	case <-engine.runs:
		t.Fatal("expected coalesced triggers to produce a single run")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, engine.count())
}

func TestScheduler_Offline(t *testing.T) {
	engine := newFakeEngine()
	s := New(engine, 0)
	s.Start(context.Background())
	defer s.Stop()

	s.SetOnline(false)
	assert.False(t, s.IsOnline())
	s.Trigger()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, engine.count())

	s.SetOnline(true)
	s.Trigger()
	waitRun(t, engine)
	assert.Equal(t, 1, engine.count())
}

func TestScheduler_SkipsRunInProgress(t *testing.T) {
	engine := newFakeEngine()
	engine.err = syncpkg.ErrRunInProgress
	s := New(engine, 0)
	s.Start(context.Background())
	defer s.Stop()

	s.Trigger()
	waitRun(t, engine)

	require.Eventually(t, func() bool {
		return s.State().(SchedulerState).Skipped == 1
	}, 2*time.Second, 5*time.Millisecond)
	res, err := s.LastResult()
	assert.Nil(t, res)
	assert.NoError(t, err)
}

func TestScheduler_StopAndRestart(t *testing.T) {
	engine := newFakeEngine()
	s := New(engine, 0)

	s.Stop() // no-op before start

	s.Start(context.Background())
	s.Start(context.Background())
	state := s.State().(SchedulerState)
	assert.True(t, state.Running)
	s.Stop()
	assert.False(t, s.State().(SchedulerState).Running)

	s.Start(context.Background())
	defer s.Stop()
	s.Trigger()
	waitRun(t, engine)
	assert.Equal(t, "sync-scheduler", s.ComponentType())
}

func TestScheduler_ContextCancelEndsLoop(t *testing.T) {
	engine := newFakeEngine()
	s := New(engine, 0)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

func TestScheduler_RestartsAfterContextEnds(t *testing.T) {
	engine := newFakeEngine()
	s := New(engine, 0)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	require.Eventually(t, func() bool {
		return !s.State().(SchedulerState).Running
	}, 2*time.Second, 5*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()
	assert.True(t, s.State().(SchedulerState).Running)

	s.Trigger()
	waitRun(t, engine)
	assert.Equal(t, 1, engine.count())
}
