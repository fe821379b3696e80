// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/pki"
	"github.com/glalby/glalby/node"
)

// Compile-time interface check.
var _ Gateway = (*MemoryGateway)(nil)

// MemoryGateway is an in-process scheduler. It enrolls devices against
// its own certificate authority, verifies every challenge signature,
// and tracks which nodes are registered. The exported fields override
// behavior for tests and must be set before first use.
type MemoryGateway struct {
	// Credentials, when non-zero, is returned by Recover and Register
	// in place of enrolling.
	Credentials credential.Credentials

	// RecoverErr, RegisterErr and ScheduleErr fail the matching call.
	RecoverErr  error
	RegisterErr error
	ScheduleErr error

	// InviteCode, when set, is required by Register.
	InviteCode string

	// Handle is returned by Schedule. When nil Schedule creates a
	// node.MemoryHandle per call.
	Handle node.Handle

	// OnCall observes each call by name as it starts.
	OnCall func(op string)

	authority *pki.Authority
	codec     credential.Codec

	mu         sync.Mutex
	calls      map[string]int
	registered map[string]bool
	lastRune   string
}

// NewMemoryGateway returns a gateway with a fresh authority. A nil
// codec means credential.EnvelopeCodec.
func NewMemoryGateway(codec credential.Codec) (*MemoryGateway, error) {
	authority, err := pki.NewAuthority("glalby memory scheduler")
	if err != nil {
		return nil, err
	}
	if codec == nil {
		codec = credential.EnvelopeCodec{}
	}
	return &MemoryGateway{
		authority:  authority,
		codec:      codec,
		calls:      make(map[string]int),
		registered: make(map[string]bool),
	}, nil
}

// Authority is the CA that signs enrolled devices.
func (g *MemoryGateway) Authority() *pki.Authority {
	return g.authority
}

// Calls returns how many times op ("recover", "register",
// "schedule") was called.
func (g *MemoryGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// TotalCalls returns the number of calls of any kind.
func (g *MemoryGateway) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, count := range g.calls {
		total += count
	}
	return total
}

// LastRune returns the rune presented by the most recent Schedule.
func (g *MemoryGateway) LastRune() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRune
}

// MarkRegistered records nodeID as registered without enrolling.
func (g *MemoryGateway) MarkRegistered(nodeID []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registered[node.FormatHex(nodeID)] = true
}

func (g *MemoryGateway) begin(op string) {
	if g.OnCall != nil {
		g.OnCall(op)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
}

func (g *MemoryGateway) isRegistered(nodeID []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registered[node.FormatHex(nodeID)]
}

func (g *MemoryGateway) Recover(ctx context.Context, request RecoverRequest) (credential.Credentials, error) {
	g.begin(ScopeRecover)
	if g.RecoverErr != nil {
		return credential.Credentials{}, g.RecoverErr
	}
	if !g.Credentials.IsZero() {
		return g.Credentials, nil
	}
	if !g.isRegistered(request.NodeID) {
		return credential.Credentials{}, status.Errorf(codes.NotFound, "node %x is not registered", request.NodeID)
	}
	return g.enroll(ctx, request.NodeID, request.Network, request.Prover)
}

func (g *MemoryGateway) Register(ctx context.Context, request RegisterRequest) (credential.Credentials, error) {
	g.begin(ScopeRegister)
	if g.RegisterErr != nil {
		return credential.Credentials{}, g.RegisterErr
	}
	if g.InviteCode != "" && request.InviteCode != g.InviteCode {
		return credential.Credentials{}, status.Error(codes.PermissionDenied, "invalid invite code")
	}
	if !g.Credentials.IsZero() {
		return g.Credentials, nil
	}
	if g.isRegistered(request.NodeID) {
		return credential.Credentials{}, status.Errorf(codes.AlreadyExists, "node %x is already registered", request.NodeID)
	}
	credentials, err := g.enroll(ctx, request.NodeID, request.Network, request.Prover)
	if err != nil {
		return credential.Credentials{}, err
	}
	g.MarkRegistered(request.NodeID)
	return credentials, nil
}

func (g *MemoryGateway) enroll(ctx context.Context, nodeID []byte, network bitcoin.Network, prover Prover) (credential.Credentials, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return credential.Credentials{}, err
	}
	return enroll(ctx, g.codec, nodeID, network, prover, challenge, func(_ context.Context, p proof) (*enrollment, error) {
		if err := VerifyProof(nodeID, challenge, p.Signature); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		certificate, err := g.authority.IssueClient(p.CSR)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return &enrollment{
			DeviceCert: certificate,
			CACert:     g.authority.CertPEM(),
			Rune:       fmt.Sprintf("memory-rune-%x", nodeID[:4]),
		}, nil
	})
}

func (g *MemoryGateway) Schedule(ctx context.Context, request ScheduleRequest) (node.Handle, error) {
	g.begin("schedule")
	if g.ScheduleErr != nil {
		return nil, g.ScheduleErr
	}
	g.mu.Lock()
	g.lastRune = request.Rune
	g.mu.Unlock()
	if g.Handle != nil {
		return g.Handle, nil
	}
	network := request.Network
	if network == "" {
		network = bitcoin.Mainnet
	}
	return node.NewMemoryHandle(node.GetInfoResponse{
		Pubkey:  node.FormatHex(request.NodeID),
		Alias:   "memory",
		Network: network.String(),
	}, network), nil
}
