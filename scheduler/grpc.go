// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/node"
	"github.com/glalby/glalby/transport"
)

// Full method names of the scheduler service.
const (
	MethodGetChallenge = "/scheduler.Scheduler/GetChallenge"
	MethodRecover      = "/scheduler.Scheduler/Recover"
	MethodRegister     = "/scheduler.Scheduler/Register"
	MethodSchedule     = "/scheduler.Scheduler/Schedule"
)

// Compile-time interface check.
var _ Gateway = (*GRPCGateway)(nil)

type wireChallengeRequest struct {
	Scope  string `cbor:"scope"`
	NodeID []byte `cbor:"node_id"`
}

type wireChallengeResponse struct {
	Challenge []byte `cbor:"challenge"`
}

type wireRecoveryRequest struct {
	NodeID    []byte `cbor:"node_id"`
	Challenge []byte `cbor:"challenge"`
	Signature []byte `cbor:"signature"`
	CSR       []byte `cbor:"csr"`
}

type wireRegistrationRequest struct {
	NodeID     []byte `cbor:"node_id"`
	Network    string `cbor:"network"`
	Challenge  []byte `cbor:"challenge"`
	Signature  []byte `cbor:"signature"`
	CSR        []byte `cbor:"csr"`
	InviteCode string `cbor:"invite_code,omitempty"`
}

type wireScheduleRequest struct {
	NodeID []byte `cbor:"node_id"`
}

type wireNodeInfo struct {
	NodeID  []byte `cbor:"node_id"`
	GrpcURI string `cbor:"grpc_uri"`
}

// Config describes the scheduler endpoint.
type Config struct {
	// Address is the scheduler's host:port.
	Address string

	// TLS verifies the scheduler. Required.
	TLS *tls.Config

	// Dialer reaches the scheduler. Defaults to TCP.
	Dialer transport.Dialer

	// NodeDialer reaches scheduled nodes. Defaults to TCP.
	NodeDialer transport.Dialer

	// Codec packs enrolled material. Defaults to
	// credential.EnvelopeCodec.
	Codec credential.Codec

	Logger *slog.Logger
}

// GRPCGateway is a Gateway over gRPC.
type GRPCGateway struct {
	conn       *grpc.ClientConn
	codec      credential.Codec
	nodeDialer transport.Dialer
	logger     *slog.Logger
}

// Dial creates a gateway. The channel connects on first use.
func Dial(config Config) (*GRPCGateway, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("scheduler address is empty")
	}
	conn, err := transport.Dial(transport.DialConfig{
		Target: transport.Passthrough(config.Address),
		TLS:    config.TLS,
		Dialer: config.Dialer,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to scheduler: %w", err)
	}
	if config.Codec == nil {
		config.Codec = credential.EnvelopeCodec{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &GRPCGateway{
		conn:       conn,
		codec:      config.Codec,
		nodeDialer: config.NodeDialer,
		logger:     config.Logger,
	}, nil
}

// Close releases the scheduler channel. Scheduled node handles are
// independent and stay open.
func (g *GRPCGateway) Close() error {
	return g.conn.Close()
}

func (g *GRPCGateway) challenge(ctx context.Context, scope string, nodeID []byte) ([]byte, error) {
	var response wireChallengeResponse
	if err := g.conn.Invoke(ctx, MethodGetChallenge, &wireChallengeRequest{Scope: scope, NodeID: nodeID}, &response); err != nil {
		return nil, fmt.Errorf("requesting %s challenge: %w", scope, err)
	}
	if len(response.Challenge) == 0 {
		return nil, fmt.Errorf("scheduler sent an empty %s challenge", scope)
	}
	return response.Challenge, nil
}

func (g *GRPCGateway) Recover(ctx context.Context, request RecoverRequest) (credential.Credentials, error) {
	challenge, err := g.challenge(ctx, ScopeRecover, request.NodeID)
	if err != nil {
		return credential.Credentials{}, err
	}
	credentials, err := enroll(ctx, g.codec, request.NodeID, request.Network, request.Prover, challenge,
		func(ctx context.Context, p proof) (*enrollment, error) {
			var issued enrollment
			wire := &wireRecoveryRequest{NodeID: request.NodeID, Challenge: p.Challenge, Signature: p.Signature, CSR: p.CSR}
			if err := g.conn.Invoke(ctx, MethodRecover, wire, &issued); err != nil {
				return nil, fmt.Errorf("recovering node: %w", err)
			}
			return &issued, nil
		})
	if err != nil {
		return credential.Credentials{}, err
	}
	g.logger.Info("recovered node credentials",
		"node_id", node.FormatHex(request.NodeID),
		"credentials", credentials.Fingerprint(),
	)
	return credentials, nil
}

func (g *GRPCGateway) Register(ctx context.Context, request RegisterRequest) (credential.Credentials, error) {
	challenge, err := g.challenge(ctx, ScopeRegister, request.NodeID)
	if err != nil {
		return credential.Credentials{}, err
	}
	credentials, err := enroll(ctx, g.codec, request.NodeID, request.Network, request.Prover, challenge,
		func(ctx context.Context, p proof) (*enrollment, error) {
			var issued enrollment
			wire := &wireRegistrationRequest{
				NodeID:     request.NodeID,
				Network:    request.Network.String(),
				Challenge:  p.Challenge,
				Signature:  p.Signature,
				CSR:        p.CSR,
				InviteCode: request.InviteCode,
			}
			if err := g.conn.Invoke(ctx, MethodRegister, wire, &issued); err != nil {
				return nil, fmt.Errorf("registering node: %w", err)
			}
			return &issued, nil
		})
	if err != nil {
		return credential.Credentials{}, err
	}
	g.logger.Info("registered node",
		"node_id", node.FormatHex(request.NodeID),
		"network", request.Network,
		"credentials", credentials.Fingerprint(),
	)
	return credentials, nil
}

func (g *GRPCGateway) Schedule(ctx context.Context, request ScheduleRequest) (node.Handle, error) {
	var info wireNodeInfo
	if err := g.conn.Invoke(ctx, MethodSchedule, &wireScheduleRequest{NodeID: request.NodeID}, &info); err != nil {
		return nil, fmt.Errorf("scheduling node: %w", err)
	}
	if !bytes.Equal(info.NodeID, request.NodeID) {
		return nil, fmt.Errorf("scheduler assigned node %x, want %x", info.NodeID, request.NodeID)
	}

	handle, err := node.Dial(node.DialConfig{
		URI:      info.GrpcURI,
		Identity: request.Transport,
		Dialer:   g.nodeDialer,
		Rune:     request.Rune,
		Network:  request.Network,
		Logger:   g.logger.With("node_id", node.FormatHex(request.NodeID)),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to scheduled node: %w", err)
	}
	g.logger.Debug("node scheduled", "node_id", node.FormatHex(request.NodeID), "uri", info.GrpcURI)
	return handle, nil
}

