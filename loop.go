package crtc

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/logging"
)

// ErrLoopClosed is returned when a task is submitted to, or a drain is
// requested from, a Loop that has been closed.
var ErrLoopClosed = errors.New("crtc: loop is closed")

const terminatedMessage = "loop terminated"

// task is a unit of deferred work owned by the Loop from submission until
// execution or teardown. fail, when set, is invoked instead of run if the
// Loop is closed while the task is still pending.
type task struct {
	run  func()
	fail ErrorCallback
	due  time.Time
	seq  uint64
}

// taskHeap orders tasks by due time, FIFO on ties.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	// LoggerFactory produces the loop's scoped logger. Defaults to
	// logging.NewDefaultLoggerFactory.
	LoggerFactory logging.LoggerFactory

	// OnError is the environment's error channel: it receives panics
	// recovered at the dispatch boundary and teardown failures of tasks
	// that have no failure hook of their own. Optional.
	OnError ErrorCallback
}

// Loop is a single-consumer, multi-producer dispatch queue. Producers on
// arbitrary goroutines submit callbacks with an optional delay; a single
// consumer context at a time drains the tasks that have come due, in
// (due time, submission order).
//
// A Loop must be created with NewLoop and released with Close. Closing
// fails every still-pending task with a "loop terminated" error rather
// than dropping it.
type Loop struct {
	log     logging.LeveledLogger
	onError ErrorCallback

	mu     sync.Mutex
	tasks  taskHeap
	seq    uint64
	notify func()
	closed bool

	// drainMu serializes consumers: DispatchEvents and Run may be called
	// from any goroutine but only one drains at a time.
	drainMu sync.Mutex

	wake chan struct{}
	done chan struct{}
}

// NewLoop creates an empty dispatch queue. The caller decides how it is
// pumped: a dedicated goroutine calling Run, or cooperative calls to
// DispatchEvents (typically driven by the RegisterAsyncCallback hook).
func NewLoop(opts LoopOptions) *Loop {
	lf := opts.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Loop{
		log:     lf.NewLogger("crtc"),
		onError: opts.OnError,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Call enqueues fn for execution no earlier than now+delay. It returns
// immediately and never executes fn synchronously on the calling
// goroutine. Safe to call from any goroutine, including Loop callbacks.
func (l *Loop) Call(fn func(), delay time.Duration) error {
	if fn == nil {
		return errors.New("crtc: nil callback")
	}
	return l.submit(fn, nil, delay)
}

// SetImmediate enqueues fn to run on the next drain.
func (l *Loop) SetImmediate(fn func()) error {
	return l.Call(fn, 0)
}

// SetTimeout enqueues fn to run after delay. A negative delay is treated
// as zero.
func (l *Loop) SetTimeout(fn func(), delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return l.Call(fn, delay)
}

// submit owns the queue-side bookkeeping shared by Call and the promise
// machinery. fail may be nil; then teardown reports through OnError.
func (l *Loop) submit(run func(), fail ErrorCallback, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.seq++
	heap.Push(&l.tasks, &task{
		run:  run,
		fail: fail,
		due:  time.Now().Add(delay),
		seq:  l.seq,
	})
	notify := l.notify
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	if notify != nil {
		notify()
	}
	return nil
}

// RegisterAsyncCallback installs the hook the host environment uses to
// learn that the queue has work; the host decides when pumping happens.
// The hook is invoked on the producer's goroutine after each submission.
func (l *Loop) RegisterAsyncCallback(fn func()) {
	l.mu.Lock()
	l.notify = fn
	l.mu.Unlock()
}

// UnregisterAsyncCallback removes the pump hook.
func (l *Loop) UnregisterAsyncCallback() {
	l.RegisterAsyncCallback(nil)
}

// DispatchEvents drains tasks that have come due. With forever false it
// drains once and reports whether tasks remain queued; with forever true
// it keeps draining, sleeping until the next task is due, until the Loop
// is closed.
func (l *Loop) DispatchEvents(forever bool) bool {
	if !forever {
		l.drainMu.Lock()
		defer l.drainMu.Unlock()
		return l.drainDue()
	}
	_ = l.Run(context.Background())
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks) > 0
}

// Run drains the queue on the calling goroutine until ctx is cancelled or
// the Loop is closed. This is the dedicated-runner mode; cooperative
// hosts use DispatchEvents instead.
func (l *Loop) Run(ctx context.Context) error {
	l.drainMu.Lock()
	defer l.drainMu.Unlock()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		l.drainDue()

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil
		}
		var wait time.Duration = -1
		if len(l.tasks) > 0 {
			wait = time.Until(l.tasks[0].due)
			if wait < 0 {
				wait = 0
			}
		}
		l.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		var due <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			due = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		case <-due:
		}
	}
}

// drainDue executes every task whose due time has passed, in (due, seq)
// order, and reports whether tasks remain. Tasks submitted by the tasks
// being executed run in the same drain if already due.
func (l *Loop) drainDue() bool {
	for {
		l.mu.Lock()
		if l.closed || len(l.tasks) == 0 || l.tasks[0].due.After(time.Now()) {
			remaining := len(l.tasks) > 0
			l.mu.Unlock()
			return remaining
		}
		t := heap.Pop(&l.tasks).(*task)
		l.mu.Unlock()

		l.execute(t)
	}
}

// execute runs one task, containing panics at the dispatch boundary so a
// failing task does not halt the queue or lose the tasks behind it.
func (l *Loop) execute(t *task) {
	defer func() {
		if r := recover(); r != nil {
			err := Errorf("recovered panic in dispatched task: %v", r)
			l.log.Errorf("%v", err)
			if l.onError != nil {
				l.onError(err)
			}
		}
	}()
	t.run()
}

// Close tears the queue down. Every still-pending task is failed
// synchronously, in queue order, with a "loop terminated" error: tasks
// with a failure hook (promise deliveries) receive it directly, others
// are reported through OnError. Submissions and drains after Close
// return ErrLoopClosed.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.closed = true
	pending := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	close(l.done)

	for pending.Len() > 0 {
		t := heap.Pop(&pending).(*task)
		err := NewError(terminatedMessage)
		switch {
		case t.fail != nil:
			t.fail(err)
		case l.onError != nil:
			l.onError(err)
		default:
			l.log.Warnf("dropping task on teardown: %v", err)
		}
	}
	return nil
}
