package outbound

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherExecutesJobs(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 8, Workers: 2})

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		err := d.Enqueue(context.Background(), "test.job", "unit", func() error {
			ran.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	d.Close()

	if got := ran.Load(); got != 5 {
		t.Fatalf("ran %d jobs, want 5", got)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("error count = %d, want 0", d.ErrorCount())
	}
}

func TestDispatcherCountsFailures(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1, MaxRetries: 0})

	if err := d.Enqueue(context.Background(), "test.fail", "unit", func() error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()

	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	d.Close()

	err := d.Enqueue(context.Background(), "test.job", "unit", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	defer d.Close()

	block := make(chan struct{})
	release := make(chan struct{})
	_ = d.Enqueue(context.Background(), "test.block", "unit", func() error {
		close(block)
		<-release
		return nil
	})
	<-block

	// Worker is busy; fill the single queue slot, then overflow.
	_ = d.Enqueue(context.Background(), "test.fill", "unit", func() error { return nil })

	var overflowed bool
	deadline := time.After(time.Second)
	for !overflowed {
		select {
		case <-deadline:
			t.Fatal("queue never reported full")
		default:
		}
		if err := d.Enqueue(context.Background(), "test.overflow", "unit", func() error { return nil }); errors.Is(err, ErrQueueFull) {
			overflowed = true
		}
	}
	close(release)
}

func TestEnqueueConcurrentWithCloseDoesNotPanic(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := NewDispatcher(Options{QueueSize: 4, Workers: 1})

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				err := d.Enqueue(context.Background(), "test.job", "unit", func() error {
					return nil
				})
				if errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}()

		d.Close()
		<-done
	}
}
