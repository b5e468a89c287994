package conc

import (
	"context"
	"sync"

	"github.com/hycast/hycast/internal/herrors"
)

// Executor runs submitted Tasks on their own goroutine and returns a
// Future for each, mirroring the original's unbounded per-task thread
// pool (main/misc/Executor.h) rather than a fixed worker-pool, since
// hycast's per-task counts are small (one per active peer stream).
type Executor[T any] struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	shutdown bool
}

// NewExecutor returns an Executor whose tasks are all canceled together
// when the parent ctx is canceled or Shutdown is called.
func NewExecutor[T any](parent context.Context) *Executor[T] {
	ctx, cancel := context.WithCancel(parent)
	return &Executor[T]{ctx: ctx, cancel: cancel}
}

// Submit starts task on its own goroutine and returns a Future for its
// result. It returns an error without starting the task if the Executor
// has already been shut down.
func (ex *Executor[T]) Submit(task Task[T]) (*Future[T], error) {
	ex.mu.Lock()
	if ex.shutdown {
		ex.mu.Unlock()
		return nil, herrors.NewLogicError("executor has been shut down")
	}
	ex.wg.Add(1)
	ex.mu.Unlock()

	future := newFuture[T]()
	taskCtx, taskCancel := context.WithCancel(ex.ctx)
	future.setCancel(taskCancel)

	go func() {
		defer ex.wg.Done()
		defer taskCancel()
		value, err := task(taskCtx)
		future.complete(value, err)
	}()

	return future, nil
}

// Shutdown cancels every outstanding task and prevents new submissions.
func (ex *Executor[T]) Shutdown() {
	ex.mu.Lock()
	ex.shutdown = true
	ex.mu.Unlock()
	ex.cancel()
}

// AwaitTermination blocks until every submitted task has returned.
func (ex *Executor[T]) AwaitTermination() {
	ex.wg.Wait()
}
