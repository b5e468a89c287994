package conc

import "context"

// Task is a unit of work submitted to an Executor: a function of a
// context, whose Done channel firing is that task's only cancellation
// signal, per this package's translation decision from thread-interrupt
// to context cancellation.
type Task[T any] func(ctx context.Context) (T, error)
