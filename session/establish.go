// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/identity"
	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/clock"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/node"
	"github.com/glalby/glalby/scheduler"
	"github.com/glalby/glalby/signer"
	"github.com/glalby/glalby/transport"
)

// TransportFunc derives the mutual TLS identity from decoded
// credentials.
type TransportFunc func(material *credential.TrustMaterial) (*transport.Identity, error)

// Config configures an Establisher. Only Gateway is required.
type Config struct {
	Gateway scheduler.Gateway

	// Codec decodes credentials. Defaults to credential.EnvelopeCodec.
	Codec credential.Codec

	// Transport defaults to transport.NewIdentity.
	Transport TransportFunc

	// Network is the chain phrases derive identities for. Defaults to
	// bitcoin.Mainnet.
	Network bitcoin.Network

	// Policy bounds Shutdown. Zero fields take the defaults.
	Policy ShutdownPolicy

	// Clock drives the shutdown wait and the signer's retry backoff.
	// Defaults to the real clock.
	Clock clock.Clock

	// Diagnostics receives signer task events. Defaults to logging
	// through Logger.
	Diagnostics signer.Diagnostics

	Logger *slog.Logger
}

// Establisher recovers and registers credentials and establishes
// sessions. It holds no per-session state and is safe for concurrent
// use.
type Establisher struct {
	gateway     scheduler.Gateway
	codec       credential.Codec
	transport   TransportFunc
	network     bitcoin.Network
	policy      ShutdownPolicy
	clock       clock.Clock
	diagnostics signer.Diagnostics
	logger      *slog.Logger
}

// NewEstablisher applies defaults to config.
func NewEstablisher(config Config) *Establisher {
	if config.Codec == nil {
		config.Codec = credential.EnvelopeCodec{}
	}
	if config.Transport == nil {
		config.Transport = transport.NewIdentity
	}
	if config.Network == "" {
		config.Network = bitcoin.Mainnet
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Diagnostics == nil {
		config.Diagnostics = signer.LogDiagnostics{Logger: config.Logger}
	}
	return &Establisher{
		gateway:     config.Gateway,
		codec:       config.Codec,
		transport:   config.Transport,
		network:     config.Network,
		policy:      config.Policy.withDefaults(),
		clock:       config.Clock,
		diagnostics: config.Diagnostics,
		logger:      config.Logger,
	}
}

// deriveIdentity parses phrase, classifying failure as an invalid
// argument of op.
func (e *Establisher) deriveIdentity(op, phrase string) (*identity.Identity, error) {
	id, err := identity.FromPhrase(phrase, e.network)
	if err != nil {
		return nil, sdkerr.InvalidArgument(op, "%w", err)
	}
	return id, nil
}

// Recover obtains fresh credentials for the node the phrase derives.
// A malformed phrase fails before the scheduler is contacted.
func (e *Establisher) Recover(ctx context.Context, phrase string) (credential.Credentials, error) {
	const op = "recover"
	id, err := e.deriveIdentity(op, phrase)
	if err != nil {
		return credential.Credentials{}, err
	}
	defer id.Close()

	credentials, err := e.gateway.Recover(ctx, scheduler.RecoverRequest{
		NodeID:  id.NodeID(),
		Network: id.Network(),
		Prover:  id,
	})
	if err != nil {
		return credential.Credentials{}, sdkerr.RemoteAPI(op, err)
	}
	e.logger.Info("credentials recovered",
		"node_id", id.NodeIDHex(),
		"credentials", credentials.Fingerprint(),
	)
	return credentials, nil
}

// Register creates the node the phrase derives and returns its first
// credentials. inviteCode is passed through unchanged.
func (e *Establisher) Register(ctx context.Context, phrase, inviteCode string) (credential.Credentials, error) {
	const op = "register"
	id, err := e.deriveIdentity(op, phrase)
	if err != nil {
		return credential.Credentials{}, err
	}
	defer id.Close()

	credentials, err := e.gateway.Register(ctx, scheduler.RegisterRequest{
		NodeID:     id.NodeID(),
		Network:    id.Network(),
		Prover:     id,
		InviteCode: inviteCode,
	})
	if err != nil {
		return credential.Credentials{}, sdkerr.RemoteAPI(op, err)
	}
	e.logger.Info("node registered",
		"node_id", id.NodeIDHex(),
		"network", id.Network(),
		"credentials", credentials.Fingerprint(),
	)
	return credentials, nil
}

// Establish starts a session for the node the phrase derives, using
// credentials issued for that node. The returned session's signer is
// already running. On failure nothing is left open: the node handle
// is closed and the node key is zeroed.
func (e *Establisher) Establish(ctx context.Context, phrase string, credentials credential.Credentials) (*Session, error) {
	const op = "establish"

	id, err := e.deriveIdentity(op, phrase)
	if err != nil {
		return nil, err
	}
	// Close zeroes the key unless it has been released to the signer.
	defer id.Close()

	material, err := e.codec.Decode(credentials)
	if err != nil {
		return nil, sdkerr.InvalidArgument(op, "decoding credentials: %w", err)
	}
	defer material.Zero()
	if !material.MatchesNode(id.NodeID()) {
		return nil, sdkerr.InvalidArgument(op, "credentials were issued for node %x, phrase derives %s", material.NodeID, id.NodeIDHex())
	}
	if material.Network != id.Network().String() {
		return nil, sdkerr.InvalidArgument(op, "credentials are for network %q, session uses %q", material.Network, id.Network())
	}

	transportIdentity, err := e.transport(material)
	if err != nil {
		return nil, sdkerr.RemoteAPI(op, fmt.Errorf("deriving transport identity: %w", err))
	}

	handle, err := e.gateway.Schedule(ctx, scheduler.ScheduleRequest{
		NodeID:    id.NodeID(),
		Network:   id.Network(),
		Rune:      material.Rune,
		Transport: transportIdentity,
	})
	if err != nil {
		return nil, sdkerr.RemoteAPI(op, fmt.Errorf("scheduling node: %w", err))
	}

	session, err := e.start(ctx, id, handle)
	if err != nil {
		if closeErr := handle.Close(); closeErr != nil {
			e.logger.Warn("closing node handle after failed establish", "error", closeErr)
		}
		return nil, sdkerr.RemoteAPI(op, err)
	}
	session.logger.Info("session established",
		"node_id", id.NodeIDHex(),
		"credentials", credentials.Fingerprint(),
	)
	return session, nil
}

// start opens the signer stream, hands the node key to a new signer
// task, and waits for it to run.
func (e *Establisher) start(ctx context.Context, id *identity.Identity, handle node.Handle) (*Session, error) {
	stream, err := handle.SignerStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening signer stream: %w", err)
	}
	key, err := id.ReleaseKey()
	if err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			e.logger.Warn("closing signer stream after failed key release", "error", closeErr)
		}
		return nil, fmt.Errorf("releasing node key: %w", err)
	}

	signal := signer.NewShutdownSignal()
	session := newSession(handle, signal, e.policy, e.clock, e.logger)
	task := signer.NewTask(stream, signer.NewSecp256k1Signer(key), signal, signer.TaskConfig{
		Diagnostics: e.diagnostics,
		Clock:       e.clock,
		Logger:      session.logger.With("component", "signer"),
	})
	if err := task.Start(ctx); err != nil {
		// The task owns stream and key only once it runs.
		if closeErr := stream.Close(); closeErr != nil {
			e.logger.Warn("closing signer stream after failed start", "error", closeErr)
		}
		if closeErr := key.Close(); closeErr != nil {
			e.logger.Warn("zeroing node key after failed start", "error", closeErr)
		}
		return nil, fmt.Errorf("starting signer: %w", err)
	}
	session.task = task
	return session, nil
}
