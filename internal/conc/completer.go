package conc

import "context"

// Completer submits Tasks like an Executor but hands results back in the
// order they finish rather than the order they were submitted, which is
// what lets a caller service whichever peer request completes first
// instead of head-of-line blocking on a slow one.
type Completer[T any] struct {
	ex      *Executor[T]
	results chan result[T]
}

type result[T any] struct {
	value T
	err   error
}

// NewCompleter returns a Completer whose tasks are canceled together when
// parent is canceled or Shutdown is called.
func NewCompleter[T any](parent context.Context) *Completer[T] {
	return &Completer[T]{
		ex:      NewExecutor[T](parent),
		results: make(chan result[T], 64),
	}
}

// Submit starts task and arranges for its result to be delivered via Take
// once it finishes.
func (c *Completer[T]) Submit(task Task[T]) error {
	_, err := c.ex.Submit(func(ctx context.Context) (T, error) {
		value, err := task(ctx)
		c.results <- result[T]{value: value, err: err}
		return value, err
	})
	return err
}

// Take blocks until the next task finishes, in completion order, and
// returns its result. ctx may be used to abandon the wait without
// affecting the underlying tasks.
func (c *Completer[T]) Take(ctx context.Context) (T, error) {
	select {
	case r := <-c.results:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Shutdown cancels every outstanding task.
func (c *Completer[T]) Shutdown() {
	c.ex.Shutdown()
}

// AwaitTermination blocks until every submitted task has returned.
func (c *Completer[T]) AwaitTermination() {
	c.ex.AwaitTermination()
}
