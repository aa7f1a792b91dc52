package service

import (
	"context"
	"sync"

	"creatorfeed/pkg/logger"
)

// Task is a handle on background work. Callers either Wait for it or drop
// the handle; failures are logged either way.
type Task[T any] struct {
	name   string
	done   chan struct{}
	cancel context.CancelFunc
	result T
	err    error
}

// Done is closed when the task finishes
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel abandons the task
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Runner owns background tasks so shutdown can wait for them
type Runner struct {
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logger.Logger
}

// NewRunner creates a runner
func NewRunner(log *logger.Logger) *Runner {
	base, cancel := context.WithCancel(context.Background())
	return &Runner{base: base, cancel: cancel, logger: log.Named("tasks")}
}

// Start runs fn in the background. The task outlives the request that
// started it and stops when the runner shuts down or the task is cancelled.
func Start[T any](r *Runner, name string, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(r.base)
	t := &Task[T]{name: name, done: make(chan struct{}), cancel: cancel}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		defer close(t.done)

		t.result, t.err = fn(ctx)
		if t.err != nil {
			r.logger.WithError(t.err).WithField("task", name).Error("Background task failed")
			return
		}
		r.logger.WithField("task", name).Debug("Background task finished")
	}()

	return t
}

// Shutdown waits for running tasks until ctx ends, then cancels the rest
func (r *Runner) Shutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-finished
		return ctx.Err()
	}
}
