// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glalby/glalby/lib/clock"
)

// State is a task lifecycle state.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Receive backoff bounds.
const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("signer task already started")

// TaskConfig holds the optional collaborators of a Task.
type TaskConfig struct {
	// Diagnostics defaults to LogDiagnostics over Logger.
	Diagnostics Diagnostics

	// Clock paces receive backoff. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Task answers challenges from a Stream with a KeySigner until its
// ShutdownSignal fires or it is cancelled. It owns both stream and key
// from NewTask on, and closes them when it stops. A Task runs at most
// once.
type Task struct {
	stream      Stream
	key         KeySigner
	signal      *ShutdownSignal
	diagnostics Diagnostics
	clock       clock.Clock
	logger      *slog.Logger

	mu      sync.Mutex
	state   State
	started bool
	cancel  context.CancelFunc

	done      chan struct{}
	processed atomic.Uint64
}

// NewTask returns an Idle task.
func NewTask(stream Stream, key KeySigner, signal *ShutdownSignal, config TaskConfig) *Task {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Diagnostics == nil {
		config.Diagnostics = LogDiagnostics{Logger: config.Logger}
	}
	return &Task{
		stream:      stream,
		key:         key,
		signal:      signal,
		diagnostics: config.Diagnostics,
		clock:       config.Clock,
		logger:      config.Logger,
		done:        make(chan struct{}),
	}
}

// Start launches the task and returns once it is Running. The task
// keeps ctx's values but not its cancellation: the task lives until
// its signal fires or Cancel is called, not until the caller's request
// context ends.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.mu.Unlock()

	running := make(chan struct{})
	go t.run(runCtx, running)
	<-running
	return nil
}

// Cancel forces the task to stop, interrupting a challenge in
// progress. It does not wait. Safe to call at any time, any number of
// times.
func (t *Task) Cancel() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed once the task is Stopped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Finished reports whether the task is Stopped.
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Processed returns the number of challenges handled so far,
// successful or not.
func (t *Task) Processed() uint64 {
	return t.processed.Load()
}

func (t *Task) transition(to State) {
	t.mu.Lock()
	from := t.state
	t.state = to
	t.mu.Unlock()
	if from != to {
		t.diagnostics.StateChanged(from, to)
	}
}

func (t *Task) run(ctx context.Context, running chan<- struct{}) {
	t.transition(Running)
	close(running)

	receiveCtx, stopReceiving := context.WithCancel(ctx)
	challenges := make(chan Challenge)
	receiverDone := make(chan struct{})
	go t.receive(receiveCtx, challenges, receiverDone)

	t.loop(ctx, challenges)

	t.transition(Stopping)
	stopReceiving()
	if err := t.stream.Close(); err != nil {
		t.logger.Debug("closing signer stream", "error", err)
	}
	<-receiverDone
	if err := t.key.Close(); err != nil {
		t.logger.Error("closing signing key", "error", err)
	}
	t.Cancel()
	t.transition(Stopped)
	close(t.done)
}

// loop returns when the task should stop.
func (t *Task) loop(ctx context.Context, challenges <-chan Challenge) {
	for {
		select {
		case <-t.signal.C():
			return
		case <-ctx.Done():
			return
		case challenge := <-challenges:
			// The signal wins over a challenge that became ready at
			// the same time.
			select {
			case <-t.signal.C():
				return
			default:
			}
			if ctx.Err() != nil {
				return
			}
			t.handle(ctx, challenge)
		}
	}
}

// handle signs one challenge and sends the response. Failures go to
// diagnostics. A failed signature is still answered, with Error set,
// so the node does not wait for a reply that will never come.
func (t *Task) handle(ctx context.Context, challenge Challenge) {
	defer t.processed.Add(1)

	response := Response{ID: challenge.ID}
	signature, err := t.key.Sign(ctx, challenge)
	if err != nil {
		t.diagnostics.ChallengeFailed(challenge, err)
		response.Error = err.Error()
	} else {
		response.Signature = signature
	}

	if ctx.Err() != nil {
		return
	}
	if err := t.stream.Send(ctx, response); err != nil {
		t.diagnostics.ChallengeFailed(challenge, fmt.Errorf("sending response: %w", err))
	}
}

// receive feeds challenges to the loop until ctx is done.
func (t *Task) receive(ctx context.Context, challenges chan<- Challenge, done chan<- struct{}) {
	defer close(done)

	backoff := initialBackoff
	for {
		challenge, err := t.stream.Recv(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.diagnostics.ReceiveFailed(err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-t.clock.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		select {
		case challenges <- challenge:
		case <-ctx.Done():
			return
		}
	}
}
