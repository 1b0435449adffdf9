package runloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestPostRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("closures ran out of order: %v", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 closures, got %d", len(got))
	}
}

func TestPostFromInsideLoop(t *testing.T) {
	l, _ := startLoop(t)

	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestCallAfterStop(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()
	<-l.Done()

	if l.Post(func() {}) {
		t.Fatalf("Post should fail after stop")
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Call after stop = %v, want ErrStopped", err)
	}
}

func TestEveryTicksUntilCancelled(t *testing.T) {
	l, _ := startLoop(t)

	var ticks atomic.Int32
	task := l.Every(5*time.Millisecond, func() { ticks.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("task did not tick, got %d", ticks.Load())
		}
		time.Sleep(time.Millisecond)
	}

	if err := l.Call(context.Background(), task.Cancel); err != nil {
		t.Fatal(err)
	}
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}
	if ticks.Load() != after {
		t.Fatalf("ticks continued after cancel: %d -> %d", after, ticks.Load())
	}
	if !task.Cancelled() {
		t.Fatalf("Cancelled() should report true")
	}
	task.Cancel()
}

func TestEveryNeverOverlaps(t *testing.T) {
	l, _ := startLoop(t)

	var inFlight, maxInFlight, ticks atomic.Int32
	task := l.Every(time.Millisecond, func() {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(3 * time.Millisecond)
		inFlight.Add(-1)
		ticks.Add(1)
	})
	defer task.Cancel()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 5 {
		if time.Now().After(deadline) {
			t.Fatal("not enough ticks")
		}
		time.Sleep(time.Millisecond)
	}
	if maxInFlight.Load() != 1 {
		t.Fatalf("max in flight = %d, want 1", maxInFlight.Load())
	}
}
