package crtc

import (
	"context"
	"sync"
)

// Void is the fulfillment type of promises that carry no value.
type Void struct{}

const invalidExecutorMessage = "invalid executor callback"

type promisePhase int

const (
	promisePending promisePhase = iota
	promiseFulfilled
	promiseRejected
)

// Promise is a single-shot, multi-subscriber future. It settles at most
// once, and every registered continuation is delivered at most once,
// always asynchronously via the Loop, in registration order. The handle
// is a thin reference to a separately owned settlement cell, so resolver
// closures never retain the handle itself.
type Promise[T any] struct {
	s *promiseState[T]
}

// promiseState is the settlement cell shared by the promise handle, its
// resolver closures and the queued delivery task.
type promiseState[T any] struct {
	loop *Loop

	mu        sync.Mutex
	phase     promisePhase
	value     T
	cause     *Error
	delivered bool
	done      chan struct{}

	onFulfilled []func(T)
	onRejected  []ErrorCallback
	onFinally   []func()
}

// NewPromise constructs a pending promise and invokes executor
// synchronously on the calling goroutine. Settlement through resolve or
// reject is recorded immediately but delivered to subscribers only
// through the Loop, never on the settling call stack. A nil executor
// yields a promise scheduled for rejection with an "invalid executor"
// error, through the same path as any other rejection.
func NewPromise[T any](loop *Loop, executor func(resolve func(T), reject ErrorCallback)) *Promise[T] {
	s := &promiseState[T]{
		loop: loop,
		done: make(chan struct{}),
	}
	if executor == nil {
		s.reject(NewError(invalidExecutorMessage))
	} else {
		executor(s.resolve, s.reject)
	}
	return &Promise[T]{s: s}
}

// NewResolvedPromise returns a promise already scheduled to fulfill with
// value.
func NewResolvedPromise[T any](loop *Loop, value T) *Promise[T] {
	return NewPromise(loop, func(resolve func(T), _ ErrorCallback) {
		resolve(value)
	})
}

// NewRejectedPromise returns a promise already scheduled to reject with
// cause.
func NewRejectedPromise[T any](loop *Loop, cause *Error) *Promise[T] {
	return NewPromise(loop, func(_ func(T), reject ErrorCallback) {
		reject(cause)
	})
}

func (s *promiseState[T]) resolve(value T) {
	s.mu.Lock()
	if s.phase != promisePending {
		s.mu.Unlock()
		return
	}
	s.phase = promiseFulfilled
	s.value = value
	close(s.done)
	s.mu.Unlock()
	s.scheduleDelivery()
}

func (s *promiseState[T]) reject(cause *Error) {
	if cause == nil {
		cause = NewError("rejected")
	}
	s.mu.Lock()
	if s.phase != promisePending {
		s.mu.Unlock()
		return
	}
	s.phase = promiseRejected
	s.cause = cause
	close(s.done)
	s.mu.Unlock()
	s.scheduleDelivery()
}

// scheduleDelivery queues the single settlement dispatch. If the loop is
// already gone the subscribers are failed immediately with the loop's
// terminated error; there is no queue left to preserve asynchrony on.
func (s *promiseState[T]) scheduleDelivery() {
	if err := s.loop.submit(s.deliver, s.failDelivery, 0); err != nil {
		s.failDelivery(NewError(terminatedMessage))
	}
}

// deliver performs the settlement dispatch: each registered callback
// fires once, in registration order, and the lists are cleared so that
// captured resources are released and nothing can fire twice.
func (s *promiseState[T]) deliver() {
	s.mu.Lock()
	if s.delivered {
		s.mu.Unlock()
		return
	}
	s.delivered = true
	phase, value, cause := s.phase, s.value, s.cause
	fulfilled, rejected, finally := s.onFulfilled, s.onRejected, s.onFinally
	s.onFulfilled, s.onRejected, s.onFinally = nil, nil, nil
	s.mu.Unlock()

	if phase == promiseFulfilled {
		for _, cb := range fulfilled {
			cb(value)
		}
	} else {
		for _, cb := range rejected {
			cb(cause)
		}
	}
	for _, cb := range finally {
		cb()
	}
}

// failDelivery replaces the settlement dispatch when the Loop is torn
// down first: rejection and finally subscribers still fire exactly once,
// observing the terminated error; fulfillment subscribers cannot be
// given a value that was never delivered and are dropped.
func (s *promiseState[T]) failDelivery(cause *Error) {
	s.mu.Lock()
	if s.delivered {
		s.mu.Unlock()
		return
	}
	s.delivered = true
	rejected, finally := s.onRejected, s.onFinally
	s.onFulfilled, s.onRejected, s.onFinally = nil, nil, nil
	s.mu.Unlock()

	for _, cb := range rejected {
		cb(cause)
	}
	for _, cb := range finally {
		cb()
	}
}

// Then registers a fulfillment continuation and returns the same promise
// for chained registration. A continuation registered after the
// settlement dispatch still fires, once, on a later drain.
func (p *Promise[T]) Then(cb func(T)) *Promise[T] {
	if cb == nil {
		return p
	}
	s := p.s
	s.mu.Lock()
	if !s.delivered {
		s.onFulfilled = append(s.onFulfilled, cb)
		s.mu.Unlock()
		return p
	}
	phase, value := s.phase, s.value
	s.mu.Unlock()

	if phase == promiseFulfilled {
		_ = s.loop.submit(func() { cb(value) }, nil, 0)
	}
	return p
}

// Catch registers a rejection continuation and returns the same promise.
func (p *Promise[T]) Catch(cb ErrorCallback) *Promise[T] {
	if cb == nil {
		return p
	}
	s := p.s
	s.mu.Lock()
	if !s.delivered {
		s.onRejected = append(s.onRejected, cb)
		s.mu.Unlock()
		return p
	}
	phase, cause := s.phase, s.cause
	s.mu.Unlock()

	if phase == promiseRejected {
		_ = s.loop.submit(func() { cb(cause) }, func(err *Error) { cb(err) }, 0)
	}
	return p
}

// Finally registers a continuation that fires on settlement either way,
// and returns the same promise.
func (p *Promise[T]) Finally(cb func()) *Promise[T] {
	if cb == nil {
		return p
	}
	s := p.s
	s.mu.Lock()
	if !s.delivered {
		s.onFinally = append(s.onFinally, cb)
		s.mu.Unlock()
		return p
	}
	s.mu.Unlock()

	_ = s.loop.submit(cb, func(*Error) { cb() }, 0)
	return p
}

// Await blocks the calling goroutine until the promise settles or ctx is
// done, and returns the settlement. This is the one opt-in blocking
// operation; promise chains never block by default. Await must not be
// called from the goroutine draining the Loop, which would deadlock on
// the settlement it is itself expected to dispatch.
func (p *Promise[T]) Await(ctx context.Context) (T, *Error) {
	s := p.s
	select {
	case <-s.done:
	case <-ctx.Done():
		var zero T
		return zero, Errorf("await: %v", ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == promiseFulfilled {
		return s.value, nil
	}
	var zero T
	return zero, s.cause
}
