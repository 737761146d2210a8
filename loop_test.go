package crtc

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopCallRunsOnDrain(t *testing.T) {
	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()

	var calls int32
	if err := loop.Call(func() { atomic.AddInt32(&calls, 1) }, 0); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("callback ran synchronously, calls = %d", n)
	}

	loop.DispatchEvents(false)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected exactly one execution, got %d", n)
	}

	loop.DispatchEvents(false)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("callback executed again on second drain, got %d", n)
	}
}

func TestLoopDueTimeOrdering(t *testing.T) {
	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	if err := loop.Call(record("A"), 50*time.Millisecond); err != nil {
		t.Fatalf("Call A failed: %v", err)
	}
	if err := loop.Call(record("B"), 10*time.Millisecond); err != nil {
		t.Fatalf("Call B failed: %v", err)
	}
	if err := loop.Call(record("C"), 10*time.Millisecond); err != nil {
		t.Fatalf("Call C failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	loop.DispatchEvents(false)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "B" || order[1] != "C" || order[2] != "A" {
		t.Fatalf("expected order [B C A], got %v", order)
	}
}

func TestLoopEqualDelayFIFO(t *testing.T) {
	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		if err := loop.SetImmediate(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("SetImmediate failed: %v", err)
		}
	}

	loop.DispatchEvents(false)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 10 {
		t.Fatalf("expected 10 executions, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("expected submission order, got %v", order)
		}
	}
}

func TestLoopDispatchEventsReportsRemaining(t *testing.T) {
	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()

	if err := loop.SetTimeout(func() {}, time.Hour); err != nil {
		t.Fatalf("SetTimeout failed: %v", err)
	}
	if !loop.DispatchEvents(false) {
		t.Fatal("expected remaining tasks to be reported")
	}

	loop2 := NewLoop(LoopOptions{})
	defer func() { _ = loop2.Close() }()
	if loop2.DispatchEvents(false) {
		t.Fatal("expected no remaining tasks on empty loop")
	}
}

func TestLoopPanicDoesNotHaltQueue(t *testing.T) {
	var reported atomic.Int32
	loop := NewLoop(LoopOptions{
		OnError: func(err *Error) {
			if err.Message() == "" {
				t.Error("expected non-empty panic report")
			}
			reported.Add(1)
		},
	})
	defer func() { _ = loop.Close() }()

	var ran atomic.Int32
	_ = loop.SetImmediate(func() { panic("boom") })
	_ = loop.SetImmediate(func() { ran.Add(1) })

	loop.DispatchEvents(false)

	if got := ran.Load(); got != 1 {
		t.Fatalf("task after panic did not run, ran = %d", got)
	}
	if got := reported.Load(); got != 1 {
		t.Fatalf("expected one error report, got %d", got)
	}
}

func TestLoopConcurrentProducers(t *testing.T) {
	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()

	const producers = 8
	const perProducer = 100

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if err := loop.SetImmediate(func() { ran.Add(1) }); err != nil {
					t.Errorf("SetImmediate failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	loop.DispatchEvents(false)
	if got := ran.Load(); got != producers*perProducer {
		t.Fatalf("expected %d executions, got %d", producers*perProducer, got)
	}
}

func TestLoopRunDrainsUntilCancel(t *testing.T) {
	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	ran := make(chan struct{})
	if err := loop.SetTimeout(func() { close(ran) }, 20*time.Millisecond); err != nil {
		t.Fatalf("SetTimeout failed: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for delayed task")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoopCloseFailsPendingTasks(t *testing.T) {
	var failures []string
	loop := NewLoop(LoopOptions{
		OnError: func(err *Error) { failures = append(failures, err.Message()) },
	})

	_ = loop.SetTimeout(func() { t.Error("task ran after Close") }, time.Hour)
	_ = loop.SetTimeout(func() { t.Error("task ran after Close") }, time.Hour)

	if err := loop.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(failures) != 2 {
		t.Fatalf("expected 2 teardown failures, got %d", len(failures))
	}
	for _, msg := range failures {
		if msg != "loop terminated" {
			t.Errorf("expected terminated error, got %q", msg)
		}
	}

	if err := loop.Call(func() {}, 0); err != ErrLoopClosed {
		t.Fatalf("expected ErrLoopClosed after Close, got %v", err)
	}
	if err := loop.Close(); err != ErrLoopClosed {
		t.Fatalf("expected ErrLoopClosed on double Close, got %v", err)
	}
}

func TestLoopRegisterAsyncCallback(t *testing.T) {
	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()

	var notified atomic.Int32
	loop.RegisterAsyncCallback(func() { notified.Add(1) })

	_ = loop.SetImmediate(func() {})
	if got := notified.Load(); got != 1 {
		t.Fatalf("expected pump notification, got %d", got)
	}

	loop.UnregisterAsyncCallback()
	_ = loop.SetImmediate(func() {})
	if got := notified.Load(); got != 1 {
		t.Fatalf("notification after unregister, got %d", got)
	}
}

func TestLoopNestedSubmissionRunsInSameDrainWhenDue(t *testing.T) {
	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()

	var ran atomic.Int32
	_ = loop.SetImmediate(func() {
		_ = loop.SetImmediate(func() { ran.Add(1) })
	})

	loop.DispatchEvents(false)
	if got := ran.Load(); got != 1 {
		t.Fatalf("nested due task did not run in the same drain, ran = %d", got)
	}
}
