// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/identity"
	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/node"
	"github.com/glalby/glalby/scheduler"
	"github.com/glalby/glalby/signer"
	"github.com/glalby/glalby/transport"
)

const (
	testPhrase  = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	otherPhrase = "legal winner thank year wave sausage worth useful legal winner thank yellow"
	testTimeout = 5 * time.Second
)

var discardLogger = slog.New(slog.DiscardHandler)

func nodeIDFor(t *testing.T, phrase string) []byte {
	t.Helper()
	id, err := identity.FromPhrase(phrase, bitcoin.Regtest)
	if err != nil {
		t.Fatalf("FromPhrase: %v", err)
	}
	defer id.Close()
	return id.NodeID()
}

// blobCodec maps opaque blobs to material for one node, standing in
// for whatever encoding a scheduler chooses.
type blobCodec struct {
	blobs map[string][]byte
}

func (c blobCodec) Encode(*credential.TrustMaterial) (credential.Credentials, error) {
	return credential.Credentials{}, errors.New("blobCodec cannot encode")
}

func (c blobCodec) Decode(credentials credential.Credentials) (*credential.TrustMaterial, error) {
	nodeID, ok := c.blobs[string(credentials.Blob)]
	if !ok {
		return nil, credential.ErrMalformed
	}
	return &credential.TrustMaterial{
		Version:    credential.EnvelopeVersion,
		NodeID:     append([]byte(nil), nodeID...),
		Network:    "regtest",
		DeviceCert: []byte("cert"),
		DeviceKey:  []byte("key"),
		Rune:       "rune-abc",
	}, nil
}

// stubTransport skips certificate parsing for blob credentials.
func stubTransport(*credential.TrustMaterial) (*transport.Identity, error) {
	return &transport.Identity{}, nil
}

// recorder collects events from several sources in the order they
// happen.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// recorderDiagnostics reports signer state changes to a recorder.
type recorderDiagnostics struct {
	recorder *recorder
}

func (d recorderDiagnostics) StateChanged(_, to signer.State) {
	d.recorder.add("signer:" + to.String())
}

func (d recorderDiagnostics) ChallengeFailed(signer.Challenge, error) {}

func (d recorderDiagnostics) ReceiveFailed(error, time.Duration) {}

// scenario is a memory scheduler that hands out "abc123" and a fixed
// node handle.
func scenario(t *testing.T, info node.GetInfoResponse) (*Establisher, *scheduler.MemoryGateway, *node.MemoryHandle) {
	t.Helper()
	gateway, err := scheduler.NewMemoryGateway(nil)
	if err != nil {
		t.Fatalf("NewMemoryGateway: %v", err)
	}
	gateway.Credentials = credential.Credentials{Blob: []byte("abc123")}
	handle := node.NewMemoryHandle(info, bitcoin.Regtest)
	gateway.Handle = handle

	establisher := NewEstablisher(Config{
		Gateway:   gateway,
		Codec:     blobCodec{blobs: map[string][]byte{"abc123": nodeIDFor(t, testPhrase)}},
		Transport: stubTransport,
		Network:   bitcoin.Regtest,
		Logger:    discardLogger,
	})
	return establisher, gateway, handle
}

// shutdownOnCleanup stops session when the test ends, so goleak sees
// no signer goroutines.
func shutdownOnCleanup(t *testing.T, session *Session) {
	t.Helper()
	t.Cleanup(func() { session.Shutdown() })
}

// blockingHandle holds GetInfo until release is closed.
type blockingHandle struct {
	*node.MemoryHandle
	entered chan struct{}
	release chan struct{}
}

func (h *blockingHandle) GetInfo(ctx context.Context) (*node.GetInfoResponse, error) {
	h.entered <- struct{}{}
	<-h.release
	return h.MemoryHandle.GetInfo(ctx)
}

// brokenStreamHandle cannot open a signer stream.
type brokenStreamHandle struct {
	*node.MemoryHandle
}

func (h *brokenStreamHandle) SignerStream(context.Context) (signer.Stream, error) {
	return nil, errors.New("stream refused")
}
