// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentCalls bounds an ExecutionContext created with a
// non-positive limit.
const DefaultMaxConcurrentCalls = 64

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("execution context is closed")

// ExecutionContext runs blocking calls on a bounded set of goroutines.
// It is safe for concurrent use.
type ExecutionContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	slots  *semaphore.Weighted

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

// NewExecutionContext returns an execution context that runs at most
// maxConcurrent calls at once. Callers beyond that wait for a slot.
func NewExecutionContext(maxConcurrent int64) *ExecutionContext {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCalls
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ExecutionContext{
		ctx:    ctx,
		cancel: cancel,
		slots:  semaphore.NewWeighted(maxConcurrent),
	}
}

// Run executes work on a pool goroutine and blocks until it returns.
// work receives the execution context's root context, which is
// cancelled only when Close gives up waiting.
func (e *ExecutionContext) Run(work func(ctx context.Context) error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.running.Add(1)
	e.mu.Unlock()
	defer e.running.Done()

	if err := e.slots.Acquire(e.ctx, 1); err != nil {
		return ErrClosed
	}
	result := make(chan error, 1)
	go func() {
		defer e.slots.Release(1)
		result <- work(e.ctx)
	}()
	return <-result
}

// Close rejects new work and waits for running work to finish. If ctx
// ends first, Close cancels the context running work was given and
// returns ctx's error without waiting further. Close is idempotent.
func (e *ExecutionContext) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		e.running.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}

// call runs work and returns its value.
func call[T any](e *ExecutionContext, work func(ctx context.Context) (T, error)) (T, error) {
	var value T
	err := e.Run(func(ctx context.Context) error {
		var err error
		value, err = work(ctx)
		return err
	})
	return value, err
}
