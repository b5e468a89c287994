package conc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutorSubmitAndGet(t *testing.T) {
	ex := NewExecutor[int](context.Background())
	defer ex.Shutdown()

	future, err := ex.Submit(func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, err := future.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestExecutorTaskError(t *testing.T) {
	ex := NewExecutor[int](context.Background())
	defer ex.Shutdown()

	wantErr := errors.New("boom")
	future, err := ex.Submit(func(ctx context.Context) (int, error) {
		return 0, wantErr
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = future.Get()
	if !errors.Is(err, wantErr) {
		t.Errorf("Get() err = %v, want %v", err, wantErr)
	}
}

func TestFutureCancel(t *testing.T) {
	ex := NewExecutor[int](context.Background())
	defer ex.Shutdown()

	started := make(chan struct{})
	future, err := ex.Submit(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	future.Cancel()
	if !future.IsCanceled() {
		t.Error("expected IsCanceled() to be true")
	}
	<-future.Done()
}

func TestExecutorShutdownRejectsSubmit(t *testing.T) {
	ex := NewExecutor[int](context.Background())
	ex.Shutdown()
	ex.AwaitTermination()
	if _, err := ex.Submit(func(ctx context.Context) (int, error) { return 0, nil }); err == nil {
		t.Fatal("expected error submitting after shutdown")
	}
}

func TestCompleterCompletionOrder(t *testing.T) {
	c := NewCompleter[int](context.Background())
	defer c.Shutdown()

	if err := c.Submit(func(ctx context.Context) (int, error) {
		time.Sleep(30 * time.Millisecond)
		return 1, nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := c.Submit(func(ctx context.Context) (int, error) {
		return 2, nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	first, err := c.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if first != 2 {
		t.Errorf("first completed = %d, want 2 (the faster task)", first)
	}
	second, err := c.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if second != 1 {
		t.Errorf("second completed = %d, want 1", second)
	}
}

func TestDelayQueueOrdersByRevealTime(t *testing.T) {
	q := NewDelayQueue[string]()
	q.Push("late", 40*time.Millisecond)
	q.Push("early", 5*time.Millisecond)

	first, ok := q.Pop()
	if !ok || first != "early" {
		t.Errorf("first pop = %q, ok=%v, want \"early\"", first, ok)
	}
	second, ok := q.Pop()
	if !ok || second != "late" {
		t.Errorf("second pop = %q, ok=%v, want \"late\"", second, ok)
	}
}

func TestDelayQueueImmediateAvailability(t *testing.T) {
	q := NewDelayQueue[int]()
	q.Push(1, 0)
	v, ok := q.Pop()
	if !ok || v != 1 {
		t.Errorf("Pop() = %d, ok=%v, want 1, true", v, ok)
	}
}

func TestDelayQueueCloseDrainsThenStops(t *testing.T) {
	q := NewDelayQueue[int]()
	q.Push(1, 0)
	q.Close()

	v, ok := q.Pop()
	if !ok || v != 1 {
		t.Fatalf("Pop() = %d, ok=%v, want 1, true", v, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected ok=false once closed and drained")
	}
}

func TestDelayQueueEmptyBlocksUntilPush(t *testing.T) {
	q := NewDelayQueue[int]()
	done := make(chan int, 1)
	go func() {
		v, _ := q.Pop()
		done <- v
	}()
	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Pop returned before any value was pushed")
	default:
	}
	q.Push(7, 0)
	select {
	case v := <-done:
		if v != 7 {
			t.Errorf("got %d, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}
