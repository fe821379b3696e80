// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/node"
	"github.com/glalby/glalby/scheduler"
	"github.com/glalby/glalby/signer"
)

func TestScenario_RecoverEstablishGetInfo(t *testing.T) {
	establisher, gateway, handle := scenario(t, node.GetInfoResponse{Alias: "test", BlockHeight: 100})
	ctx := context.Background()

	creds, err := establisher.Recover(ctx, testPhrase)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !creds.Equal(credential.Credentials{Blob: []byte("abc123")}) {
		t.Fatalf("Recover = %q, want abc123", creds.Blob)
	}

	session, err := establisher.Establish(ctx, testPhrase, creds)
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	shutdownOnCleanup(t, session)

	if session.SignerState() != signer.Running {
		t.Errorf("signer state after Establish = %v, want running", session.SignerState())
	}
	if gateway.LastRune() != "rune-abc" {
		t.Errorf("scheduler saw rune %q", gateway.LastRune())
	}

	info, err := session.GetInfo(ctx)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Alias != "test" || info.BlockHeight != 100 {
		t.Errorf("GetInfo = %+v, want alias test at height 100", info)
	}
	if handle.Calls("get_info") != 1 {
		t.Errorf("node saw %d get_info calls", handle.Calls("get_info"))
	}
}

func TestEstablish_RegisteredNodeEndToEnd(t *testing.T) {
	gateway, err := scheduler.NewMemoryGateway(nil)
	if err != nil {
		t.Fatalf("NewMemoryGateway: %v", err)
	}
	establisher := NewEstablisher(Config{Gateway: gateway, Network: bitcoin.Regtest, Logger: discardLogger})
	ctx := context.Background()

	creds, err := establisher.Register(ctx, testPhrase, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	recovered, err := establisher.Recover(ctx, testPhrase)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if recovered.Equal(creds) {
		t.Error("recovery returned the registration credentials unchanged")
	}

	session, err := establisher.Establish(ctx, testPhrase, recovered)
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	shutdownOnCleanup(t, session)

	// Signing goes node -> signer task -> node key.
	signed, err := session.SignMessage(ctx, node.SignMessageRequest{Message: "glalby"})
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	raw, err := node.ParseHex(signed.Signature, 0)
	if err != nil {
		t.Fatalf("signature hex: %v", err)
	}
	signature, err := ecdsa.ParseDERSignature(raw)
	if err != nil {
		t.Fatalf("ParseDERSignature: %v", err)
	}
	publicKey, err := btcec.ParsePubKey(nodeIDFor(t, testPhrase))
	if err != nil {
		t.Fatalf("ParsePubKey: %v", err)
	}
	if !signature.Verify(signer.MessageDigest([]byte("glalby")), publicKey) {
		t.Error("session signature does not verify against the node id")
	}
}

func TestMalformedPhrase_NoSchedulerCalls(t *testing.T) {
	establisher, gateway, _ := scenario(t, node.GetInfoResponse{})
	ctx := context.Background()
	creds := credential.Credentials{Blob: []byte("abc123")}

	phrases := []string{
		"",
		"not a recovery phrase",
		strings.Replace(testPhrase, "about", "zebra", 1),
	}
	for _, phrase := range phrases {
		if _, err := establisher.Recover(ctx, phrase); !sdkerr.IsInvalidArgument(err) {
			t.Errorf("Recover(%q) = %v, want invalid argument", phrase, err)
		}
		if _, err := establisher.Register(ctx, phrase, "invite"); !sdkerr.IsInvalidArgument(err) {
			t.Errorf("Register(%q) = %v, want invalid argument", phrase, err)
		}
		if _, err := establisher.Establish(ctx, phrase, creds); !sdkerr.IsInvalidArgument(err) {
			t.Errorf("Establish(%q) = %v, want invalid argument", phrase, err)
		}
	}
	if calls := gateway.TotalCalls(); calls != 0 {
		t.Errorf("scheduler received %d calls for malformed phrases", calls)
	}
}

func TestEstablish_RejectsBadCredentials(t *testing.T) {
	establisher, gateway, handle := scenario(t, node.GetInfoResponse{})
	ctx := context.Background()

	if _, err := establisher.Establish(ctx, testPhrase, credential.Credentials{Blob: []byte("garbage")}); !sdkerr.IsInvalidArgument(err) {
		t.Errorf("malformed credentials: %v, want invalid argument", err)
	}
	// abc123 decodes to testPhrase's node.
	_, err := establisher.Establish(ctx, otherPhrase, credential.Credentials{Blob: []byte("abc123")})
	if !sdkerr.IsInvalidArgument(err) {
		t.Errorf("credentials for another node: %v, want invalid argument", err)
	}
	if gateway.Calls("schedule") != 0 {
		t.Errorf("scheduler contacted %d times for rejected credentials", gateway.Calls("schedule"))
	}
	if handle.CloseCount() != 0 {
		t.Errorf("handle closed %d times without being scheduled", handle.CloseCount())
	}
}

func TestEstablish_RejectsNetworkMismatch(t *testing.T) {
	gateway, err := scheduler.NewMemoryGateway(nil)
	if err != nil {
		t.Fatalf("NewMemoryGateway: %v", err)
	}
	regtest := NewEstablisher(Config{Gateway: gateway, Network: bitcoin.Regtest, Logger: discardLogger})
	signet := NewEstablisher(Config{Gateway: gateway, Network: bitcoin.Signet, Logger: discardLogger})

	creds, err := regtest.Register(context.Background(), testPhrase, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := signet.Establish(context.Background(), testPhrase, creds); !sdkerr.IsInvalidArgument(err) {
		t.Errorf("regtest credentials on signet: %v, want invalid argument", err)
	}
}

func TestEstablish_SchedulerFailureIsRemote(t *testing.T) {
	establisher, gateway, _ := scenario(t, node.GetInfoResponse{})
	gateway.ScheduleErr = status.Error(codes.Unavailable, "scheduler overloaded")

	_, err := establisher.Establish(context.Background(), testPhrase, credential.Credentials{Blob: []byte("abc123")})
	if !sdkerr.IsRemoteAPI(err) {
		t.Fatalf("Establish = %v, want remote API error", err)
	}
	if !sdkerr.Retryable(err) {
		t.Errorf("Unavailable from the scheduler should be retryable: %v", err)
	}
	if !strings.Contains(err.Error(), "scheduler overloaded") {
		t.Errorf("error %q lost its cause", err)
	}
}

func TestRecover_SchedulerFailureIsRemote(t *testing.T) {
	establisher, gateway, _ := scenario(t, node.GetInfoResponse{})
	cause := errors.New("scheduler unreachable")
	gateway.RecoverErr = cause

	_, err := establisher.Recover(context.Background(), testPhrase)
	if !sdkerr.IsRemoteAPI(err) || !errors.Is(err, cause) {
		t.Fatalf("Recover = %v, want remote API error wrapping the cause", err)
	}
}

func TestEstablish_FailureAfterScheduleClosesHandle(t *testing.T) {
	establisher, gateway, handle := scenario(t, node.GetInfoResponse{})
	gateway.Handle = &brokenStreamHandle{MemoryHandle: handle}

	_, err := establisher.Establish(context.Background(), testPhrase, credential.Credentials{Blob: []byte("abc123")})
	if !sdkerr.IsRemoteAPI(err) {
		t.Fatalf("Establish = %v, want remote API error", err)
	}
	if handle.CloseCount() != 1 {
		t.Errorf("handle closed %d times, want 1", handle.CloseCount())
	}
}

func TestEstablish_SignerRunsBeforeFirstCall(t *testing.T) {
	events := &recorder{}
	establisher, gateway, handle := scenario(t, node.GetInfoResponse{Alias: "ordered"})
	establisher.diagnostics = recorderDiagnostics{recorder: events}
	gateway.OnCall = func(op string) { events.add("scheduler:" + op) }
	handle.OnCall = func(op string) { events.add("node:" + op) }

	session, err := establisher.Establish(context.Background(), testPhrase, credential.Credentials{Blob: []byte("abc123")})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if _, err := session.GetInfo(context.Background()); err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	session.Shutdown()

	got := events.snapshot()
	want := []string{"scheduler:schedule", "signer:running", "node:get_info", "signer:stopping", "signer:stopped"}
	if !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSession_ConcurrentGetInfo(t *testing.T) {
	establisher, _, handle := scenario(t, node.GetInfoResponse{Alias: "busy", BlockHeight: 7})
	session, err := establisher.Establish(context.Background(), testPhrase, credential.Credentials{Blob: []byte("abc123")})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	shutdownOnCleanup(t, session)

	const callers = 32
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := session.GetInfo(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if info.Alias != "busy" || info.BlockHeight != 7 {
				errs <- errors.New("unexpected info " + info.Alias)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if handle.Calls("get_info") != callers {
		t.Errorf("node saw %d calls, want %d", handle.Calls("get_info"), callers)
	}
}
