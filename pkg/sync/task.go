package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/fieldbook/pkg/core"
)

// Runner is one sync run, such as Engine.Run or the result of Engine.Single.
type Runner func(ctx context.Context) (*Result, error)

// Single returns a Runner reconciling one record.
func (e *Engine) Single(kind core.Kind, id string) Runner {
	return func(ctx context.Context) (*Result, error) {
		return e.RunSingle(ctx, kind, id)
	}
}

// Task is a sync run executing in the background.
type Task struct {
	engine *Engine
	cancel context.CancelFunc
	done   chan struct{}
	once   gosync.Once

	mu     gosync.Mutex
	result *Result
	err    error
}

// Go starts run in the background. done, when not nil, receives the outcome
// exactly once through the engine dispatcher, including for cancelled runs.
func (e *Engine) Go(ctx context.Context, run Runner, done func(*Result, error)) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		engine: e,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	lifecycle.Go(taskCtx, func(ctx context.Context) error {
		res, err := run(ctx)
		t.complete(res, err, done)
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		t.complete(nil, core.EngineFault("sync task", fmt.Errorf("panic: %w", err)), done)
	}))
	return t
}

func (t *Task) complete(res *Result, err error, done func(*Result, error)) {
	t.once.Do(func() {
		t.mu.Lock()
		t.result, t.err = res, err
		t.mu.Unlock()
		close(t.done)
		t.cancel()
		if done != nil {
			t.engine.dispatch(func() { done(res, err) })
		}
	})
}

// Cancel asks the run to stop before its next record.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the run has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the run finishes and returns its outcome.
func (t *Task) Wait() (*Result, error) {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}
