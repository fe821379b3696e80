// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/clock"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/lib/testutil"
	"github.com/glalby/glalby/node"
	"github.com/glalby/glalby/signer"
)

func TestShutdown_Idempotent(t *testing.T) {
	establisher, _, handle := scenario(t, node.GetInfoResponse{Alias: "test"})
	session, err := establisher.Establish(context.Background(), testPhrase, credential.Credentials{Blob: []byte("abc123")})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}

	first := session.Shutdown()
	if !first.Graceful || first.Forced || !first.Stopped || first.AlreadySignalled {
		t.Errorf("first Shutdown = %+v, want graceful stop", first)
	}
	second := session.Shutdown()
	if !second.AlreadySignalled || !second.Stopped || second.Forced {
		t.Errorf("second Shutdown = %+v, want already signalled and stopped", second)
	}
	if handle.CloseCount() != 1 {
		t.Errorf("handle closed %d times, want 1", handle.CloseCount())
	}
	if session.SignerState() != signer.Stopped {
		t.Errorf("signer state = %v, want stopped", session.SignerState())
	}

	_, err = session.GetInfo(context.Background())
	if !sdkerr.IsInvalidArgument(err) || !strings.Contains(err.Error(), "shut down") {
		t.Errorf("GetInfo after Shutdown = %v, want invalid argument naming shutdown", err)
	}
	if handle.Calls("get_info") != 0 {
		t.Errorf("a call after Shutdown reached the node")
	}
}

// stuckKey never returns from Sign until released, whatever its
// context says.
type stuckKey struct {
	entered chan struct{}
	release chan struct{}
}

func (k *stuckKey) Sign(context.Context, signer.Challenge) ([]byte, error) {
	k.entered <- struct{}{}
	<-k.release
	return nil, nil
}

func (k *stuckKey) Close() error { return nil }

// hungSession establishes a session whose signer is blocked inside
// stuckKey.Sign and will not return until key.release is closed.
func hungSession(t *testing.T) (*Session, *node.MemoryHandle, *stuckKey, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Unix(1_700_000_000, 0))
	handle := node.NewMemoryHandle(node.GetInfoResponse{}, bitcoin.Regtest)
	key := &stuckKey{entered: make(chan struct{}, 1), release: make(chan struct{})}
	signal := signer.NewShutdownSignal()

	session := newSession(handle, signal, DefaultShutdownPolicy(), clk, discardLogger)
	session.task = signer.NewTask(handle.Stream(), key, signal, signer.TaskConfig{Clock: clk, Logger: discardLogger})
	if err := session.task.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	pushed := make(chan error, 1)
	go func() {
		pushed <- handle.Stream().Push(context.Background(), signer.Challenge{ID: 1, Kind: signer.KindPing})
	}()
	testutil.RequireReceive(t, key.entered, testTimeout, "signer never took the challenge")
	if err := testutil.RequireReceive(t, pushed, testTimeout, "push did not return"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	return session, handle, key, clk
}

// forceShutdown runs Shutdown on a hung session, driving the fake
// clock through every poll and the cancel delay.
func forceShutdown(t *testing.T, session *Session, clk *clock.FakeClock) ShutdownResult {
	t.Helper()
	results := make(chan ShutdownResult, 1)
	go func() { results <- session.Shutdown() }()

	for range DefaultPollAttempts {
		clk.WaitForTimers(1)
		clk.Advance(DefaultPollInterval)
	}
	clk.WaitForTimers(1)
	clk.Advance(DefaultCancelDelay)

	return testutil.RequireReceive(t, results, testTimeout, "Shutdown did not return")
}

func TestShutdown_BoundedWhenSignerHangs(t *testing.T) {
	session, handle, key, clk := hungSession(t)

	result := forceShutdown(t, session, clk)
	if result.Graceful || !result.Forced || result.Stopped {
		t.Errorf("Shutdown = %+v, want forced and not yet stopped", result)
	}
	if want := DefaultPollInterval*DefaultPollAttempts + DefaultCancelDelay; result.Elapsed != want {
		t.Errorf("Elapsed = %v, want %v", result.Elapsed, want)
	}
	if handle.CloseCount() != 1 {
		t.Errorf("handle closed %d times, want 1", handle.CloseCount())
	}

	close(key.release)
	testutil.RequireClosed(t, session.task.Done(), testTimeout, "signer did not stop once released")
}

func TestShutdown_RepeatAfterForcedKeepsOutcome(t *testing.T) {
	session, handle, key, clk := hungSession(t)

	first := forceShutdown(t, session, clk)
	if first.Graceful || !first.Forced {
		t.Fatalf("first Shutdown = %+v, want forced", first)
	}

	close(key.release)
	testutil.RequireClosed(t, session.task.Done(), testTimeout, "signer did not stop once released")

	second := session.Shutdown()
	if second.Graceful || !second.Forced {
		t.Errorf("second Shutdown = %+v, want the first call's forced outcome", second)
	}
	if !second.AlreadySignalled || !second.Stopped {
		t.Errorf("second Shutdown = %+v, want already signalled and stopped", second)
	}
	if second.Elapsed != 0 {
		t.Errorf("second Shutdown Elapsed = %v, want 0 on an unmoved clock", second.Elapsed)
	}
	if handle.CloseCount() != 1 {
		t.Errorf("handle closed %d times, want 1", handle.CloseCount())
	}
}

func TestShutdown_WaitsForInFlightCall(t *testing.T) {
	establisher, gateway, memory := scenario(t, node.GetInfoResponse{Alias: "slow"})
	blocking := &blockingHandle{MemoryHandle: memory, entered: make(chan struct{}, 1), release: make(chan struct{})}
	gateway.Handle = blocking

	session, err := establisher.Establish(context.Background(), testPhrase, credential.Credentials{Blob: []byte("abc123")})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}

	type outcome struct {
		info *node.GetInfoResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		info, err := session.GetInfo(context.Background())
		done <- outcome{info, err}
	}()
	testutil.RequireReceive(t, blocking.entered, testTimeout, "GetInfo never reached the node")

	result := session.Shutdown()
	if !result.Graceful {
		t.Errorf("Shutdown = %+v, want graceful", result)
	}
	if memory.CloseCount() != 0 {
		t.Fatal("handle closed while a call was in flight")
	}
	if _, err := session.GetInfo(context.Background()); !sdkerr.IsInvalidArgument(err) {
		t.Errorf("new call during drain = %v, want invalid argument", err)
	}

	close(blocking.release)
	finished := testutil.RequireReceive(t, done, testTimeout, "in-flight GetInfo did not finish")
	if finished.err != nil || finished.info.Alias != "slow" {
		t.Errorf("in-flight GetInfo = %+v, %v", finished.info, finished.err)
	}
	testutil.Eventually(t, func() bool { return memory.CloseCount() == 1 }, testTimeout, "handle not closed after the last call")
}

func TestShutdownPolicy_Defaults(t *testing.T) {
	policy := ShutdownPolicy{PollAttempts: 2}.withDefaults()
	if policy.PollInterval != DefaultPollInterval || policy.PollAttempts != 2 || policy.CancelDelay != DefaultCancelDelay {
		t.Errorf("withDefaults = %+v", policy)
	}
}
