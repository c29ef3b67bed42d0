package loop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(slog.New(slog.NewTextHandler(io.Discard, nil)), 16)
	l.Start(context.Background())
	t.Cleanup(func() {
		l.Stop()
		l.Wait()
	})
	return l
}

func TestCallRunsInOrder(t *testing.T) {
	l := newTestLoop(t)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Call(context.Background(), func() { got = append(got, 5) }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
	if len(got) != 6 {
		t.Errorf("len = %d, want 6", len(got))
	}
}

func TestCallRecoversPanic(t *testing.T) {
	l := newTestLoop(t)

	err := l.Call(context.Background(), func() { panic("boom") })
	if err == nil {
		t.Fatal("expected error from panicking task")
	}

	// The loop keeps running.
	ran := false
	if err := l.Call(context.Background(), func() { ran = true }); err != nil || !ran {
		t.Errorf("Call after panic: ran=%v err=%v", ran, err)
	}
}

func TestCallAfterStop(t *testing.T) {
	l := New(slog.New(slog.NewTextHandler(io.Discard, nil)), 1)
	l.Start(context.Background())
	l.Stop()
	l.Wait()

	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Call() = %v, want ErrStopped", err)
	}
	if l.Post(func() {}) {
		t.Error("Post() should report false after Stop")
	}
}

func TestStopDoesNotWaitForRunningFunction(t *testing.T) {
	l := New(slog.New(slog.NewTextHandler(io.Discard, nil)), 1)
	l.Start(context.Background())

	running := make(chan struct{})
	release := make(chan struct{})
	l.Post(func() {
		close(running)
		<-release
	})
	<-running

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on the running function")
	}

	close(release)
	l.Wait()
	if !l.Stopped() {
		t.Error("Stopped() = false after Stop")
	}
}

func TestCallContextCanceled(t *testing.T) {
	l := newTestLoop(t)

	block := make(chan struct{})
	l.Post(func() { <-block })
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Call(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() = %v, want DeadlineExceeded", err)
	}
}

func TestContextStopsLoop(t *testing.T) {
	l := New(slog.New(slog.NewTextHandler(io.Discard, nil)), 1)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	cancel()
	l.Wait()

	if !l.Stopped() {
		t.Error("loop should be stopped after context cancel")
	}
}

func TestAfterFunc(t *testing.T) {
	l := newTestLoop(t)

	var mu sync.Mutex
	fired := 0
	done := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AfterFunc did not fire")
	}

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestAfterFuncCancel(t *testing.T) {
	l := newTestLoop(t)

	fired := false
	cancel := l.AfterFunc(20*time.Millisecond, func() { fired = true })
	if err := l.Call(context.Background(), cancel); err != nil {
		t.Fatal(err)
	}

	time.Sleep(60 * time.Millisecond)
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}
	if err := l.Call(context.Background(), func() {
		if fired {
			t.Error("cancelled callback ran")
		}
	}); err != nil {
		t.Fatal(err)
	}
}
