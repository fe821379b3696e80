// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/glalby/glalby/lib/clock"
	"github.com/glalby/glalby/lib/testutil"
)

const testTimeout = 5 * time.Second

// recordingDiagnostics captures everything reported by a task.
type recordingDiagnostics struct {
	mu          sync.Mutex
	transitions []State
	failures    []error
	receives    []time.Duration
	failed      chan error
}

func newRecordingDiagnostics() *recordingDiagnostics {
	return &recordingDiagnostics{failed: make(chan error, 16)}
}

func (d *recordingDiagnostics) StateChanged(_, to State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitions = append(d.transitions, to)
}

func (d *recordingDiagnostics) ChallengeFailed(_ Challenge, err error) {
	d.mu.Lock()
	d.failures = append(d.failures, err)
	d.mu.Unlock()
	d.failed <- err
}

func (d *recordingDiagnostics) ReceiveFailed(_ error, backoff time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receives = append(d.receives, backoff)
}

func (d *recordingDiagnostics) states() []State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]State(nil), d.transitions...)
}

func (d *recordingDiagnostics) backoffs() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.receives...)
}

// gatedKey blocks every Sign until released, or until ctx is done.
type gatedKey struct {
	entered chan Challenge
	release chan struct{}

	mu      sync.Mutex
	signed  int
	ctxErrs []error
	closed  bool
}

func newGatedKey() *gatedKey {
	return &gatedKey{entered: make(chan Challenge, 8), release: make(chan struct{}, 8)}
}

func (k *gatedKey) Sign(ctx context.Context, challenge Challenge) ([]byte, error) {
	k.entered <- challenge
	select {
	case <-k.release:
	case <-ctx.Done():
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ctxErrs = append(k.ctxErrs, ctx.Err())
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	k.signed++
	return []byte{byte(challenge.ID)}, nil
}

func (k *gatedKey) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	return nil
}

func (k *gatedKey) snapshot() (signed int, ctxErrs []error, closed bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.signed, append([]error(nil), k.ctxErrs...), k.closed
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTask(t *testing.T, stream Stream, key KeySigner, diagnostics Diagnostics, clk clock.Clock) (*Task, *ShutdownSignal) {
	t.Helper()
	signal := NewShutdownSignal()
	task := NewTask(stream, key, signal, TaskConfig{Diagnostics: diagnostics, Clock: clk, Logger: quietLogger()})
	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		task.Cancel()
		<-task.Done()
	})
	return task, signal
}

func TestTask_AnswersChallengesUntilSignalled(t *testing.T) {
	stream := NewMemoryStream(4)
	signer, publicKey := newTestSigner(t)
	diagnostics := newRecordingDiagnostics()

	task, signal := startTask(t, stream, signer, diagnostics, clock.Real())
	if task.State() != Running {
		t.Fatalf("state after Start = %s, want running", task.State())
	}

	digest := sha256.Sum256([]byte("htlc"))
	if err := stream.Push(context.Background(), Challenge{ID: 7, Kind: KindDigest, Payload: digest[:]}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	response := testutil.RequireReceive(t, stream.Responses(), testTimeout, "response to challenge 7")
	if response.ID != 7 || response.Error != "" {
		t.Fatalf("response = %+v", response)
	}
	verify(t, response.Signature, digest[:], publicKey)

	if !signal.Send() {
		t.Fatal("Send returned false")
	}
	testutil.RequireClosed(t, task.Done(), testTimeout, "task stop after signal")

	if !task.Finished() || task.State() != Stopped {
		t.Fatalf("Finished=%v State=%s after Done", task.Finished(), task.State())
	}
	testutil.RequireClosed(t, stream.Closed(), testTimeout, "stream closed on stop")
	digestAgain := sha256.Sum256(nil)
	if _, err := signer.Sign(context.Background(), Challenge{Kind: KindDigest, Payload: digestAgain[:]}); !errors.Is(err, ErrKeyClosed) {
		t.Errorf("key still usable after stop: %v", err)
	}

	want := []State{Running, Stopping, Stopped}
	got := diagnostics.states()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}
	if task.Processed() != 1 {
		t.Errorf("Processed = %d, want 1", task.Processed())
	}
}

func TestTask_GracefulStopFinishesInFlightChallenge(t *testing.T) {
	stream := NewMemoryStream(4)
	key := newGatedKey()
	task, signal := startTask(t, stream, key, newRecordingDiagnostics(), clock.Real())

	if err := stream.Push(context.Background(), Challenge{ID: 1, Kind: KindDigest}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	testutil.RequireReceive(t, key.entered, testTimeout, "sign entered")

	signal.Send()
	if task.Finished() {
		t.Fatal("task finished while a challenge was in flight")
	}
	key.release <- struct{}{}

	response := testutil.RequireReceive(t, stream.Responses(), testTimeout, "in-flight response")
	if response.ID != 1 || response.Error != "" {
		t.Fatalf("response = %+v", response)
	}
	testutil.RequireClosed(t, task.Done(), testTimeout, "graceful stop")

	signed, ctxErrs, closed := key.snapshot()
	if signed != 1 {
		t.Errorf("signed = %d, want 1", signed)
	}
	if len(ctxErrs) != 1 || ctxErrs[0] != nil {
		t.Errorf("sign context errors = %v, want one nil", ctxErrs)
	}
	if !closed {
		t.Error("key not closed on stop")
	}
}

func TestTask_CancelInterruptsInFlightChallenge(t *testing.T) {
	stream := NewMemoryStream(4)
	key := newGatedKey()
	diagnostics := newRecordingDiagnostics()
	task, _ := startTask(t, stream, key, diagnostics, clock.Real())

	if err := stream.Push(context.Background(), Challenge{ID: 1, Kind: KindDigest}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	testutil.RequireReceive(t, key.entered, testTimeout, "sign entered")

	task.Cancel()
	testutil.RequireClosed(t, task.Done(), testTimeout, "forced stop")

	failure := testutil.RequireReceive(t, diagnostics.failed, testTimeout, "interrupted challenge reported")
	if !errors.Is(failure, context.Canceled) {
		t.Errorf("failure = %v, want context.Canceled", failure)
	}
	select {
	case response := <-stream.Responses():
		t.Fatalf("interrupted challenge was answered: %+v", response)
	default:
	}
}

func TestTask_SignalWinsOverReadyChallenge(t *testing.T) {
	stream := NewMemoryStream(4)
	key := newGatedKey()
	task, signal := startTask(t, stream, key, newRecordingDiagnostics(), clock.Real())

	if err := stream.Push(context.Background(), Challenge{ID: 1, Kind: KindDigest}); err != nil {
		t.Fatalf("Push first: %v", err)
	}
	testutil.RequireReceive(t, key.entered, testTimeout, "first sign entered")

	// The receiver takes the second challenge and parks it, ready for
	// the loop, while the first is still being signed.
	if err := stream.Push(context.Background(), Challenge{ID: 2, Kind: KindDigest}); err != nil {
		t.Fatalf("Push second: %v", err)
	}
	signal.Send()
	key.release <- struct{}{}

	testutil.RequireClosed(t, task.Done(), testTimeout, "stop after signal")

	signed, _, _ := key.snapshot()
	if signed != 1 {
		t.Fatalf("signed %d challenges, want only the in-flight one", signed)
	}
	if task.Processed() != 1 {
		t.Fatalf("Processed = %d, want 1", task.Processed())
	}
}

func TestTask_ChallengeFailureDoesNotStopTask(t *testing.T) {
	stream := NewMemoryStream(4)
	signer, publicKey := newTestSigner(t)
	diagnostics := newRecordingDiagnostics()
	task, signal := startTask(t, stream, signer, diagnostics, clock.Real())

	if err := stream.Push(context.Background(), Challenge{ID: 1, Kind: Kind(42)}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	failed := testutil.RequireReceive(t, stream.Responses(), testTimeout, "error response")
	if failed.ID != 1 || failed.Error == "" || failed.Signature != nil {
		t.Fatalf("response = %+v, want an error response", failed)
	}
	if err := testutil.RequireReceive(t, diagnostics.failed, testTimeout, "diagnostic"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("diagnostic = %v, want ErrUnknownKind", err)
	}

	digest := sha256.Sum256([]byte("next"))
	if err := stream.Push(context.Background(), Challenge{ID: 2, Kind: KindDigest, Payload: digest[:]}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	response := testutil.RequireReceive(t, stream.Responses(), testTimeout, "response after failure")
	verify(t, response.Signature, digest[:], publicKey)

	signal.Send()
	testutil.RequireClosed(t, task.Done(), testTimeout, "stop")
}

// flakyStream fails the first failures receives, then delegates.
type flakyStream struct {
	*MemoryStream

	mu       sync.Mutex
	failures int
}

func (s *flakyStream) Recv(ctx context.Context) (Challenge, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return Challenge{}, errors.New("connection reset")
	}
	s.mu.Unlock()
	return s.MemoryStream.Recv(ctx)
}

func TestTask_ReceiveErrorsBackOff(t *testing.T) {
	stream := &flakyStream{MemoryStream: NewMemoryStream(4), failures: 3}
	signer, _ := newTestSigner(t)
	diagnostics := newRecordingDiagnostics()
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	task, signal := startTask(t, stream, signer, diagnostics, fake)

	for _, step := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		fake.WaitForTimers(1)
		fake.Advance(step)
	}

	if err := stream.Push(context.Background(), Challenge{ID: 9, Kind: KindPing}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	response := testutil.RequireReceive(t, stream.Responses(), testTimeout, "ping after recovery")
	if response.ID != 9 {
		t.Fatalf("response = %+v", response)
	}

	got := diagnostics.backoffs()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("backoffs = %v, want %v", got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("backoffs = %v, want %v", got, want)
		}
	}

	signal.Send()
	testutil.RequireClosed(t, task.Done(), testTimeout, "stop")
}

func TestTask_StartTwice(t *testing.T) {
	task, _ := startTask(t, NewMemoryStream(1), newGatedKey(), newRecordingDiagnostics(), clock.Real())
	if err := task.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v, want ErrAlreadyStarted", err)
	}
}

func TestTask_StartIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	signal := NewShutdownSignal()
	task := NewTask(NewMemoryStream(1), newGatedKey(), signal, TaskConfig{Logger: quietLogger()})
	if err := task.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	if task.Finished() {
		t.Fatal("task stopped when the start context was cancelled")
	}
	signal.Send()
	testutil.RequireClosed(t, task.Done(), testTimeout, "stop")
}

func TestTask_CancelBeforeStart(t *testing.T) {
	task := NewTask(NewMemoryStream(1), newGatedKey(), NewShutdownSignal(), TaskConfig{Logger: quietLogger()})
	task.Cancel()
	if task.State() != Idle || task.Finished() {
		t.Fatalf("State=%s Finished=%v, want idle and unfinished", task.State(), task.Finished())
	}
}
