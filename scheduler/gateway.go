// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/pki"
	"github.com/glalby/glalby/node"
	"github.com/glalby/glalby/transport"
)

// Challenge scopes.
const (
	ScopeRecover  = "recover"
	ScopeRegister = "register"
)

// ErrProofRejected is returned when a challenge signature does not
// verify against the node id.
var ErrProofRejected = errors.New("challenge signature does not match node id")

// Prover signs enrollment challenges with the node key.
type Prover interface {
	Prove(ctx context.Context, challenge []byte) ([]byte, error)
}

// RecoverRequest asks for fresh credentials for an existing node.
type RecoverRequest struct {
	NodeID  []byte
	Network bitcoin.Network
	Prover  Prover
}

// RegisterRequest creates a node. InviteCode is passed through as
// given; the scheduler decides whether it is required.
type RegisterRequest struct {
	NodeID     []byte
	Network    bitcoin.Network
	Prover     Prover
	InviteCode string
}

// ScheduleRequest asks where a node runs and connects to it.
type ScheduleRequest struct {
	NodeID    []byte
	Network   bitcoin.Network
	Rune      string
	Transport *transport.Identity
}

// Gateway is the scheduler as the session sees it.
type Gateway interface {
	Recover(ctx context.Context, request RecoverRequest) (credential.Credentials, error)
	Register(ctx context.Context, request RegisterRequest) (credential.Credentials, error)
	Schedule(ctx context.Context, request ScheduleRequest) (node.Handle, error)
}

// VerifyProof checks a DER signature over SHA-256(challenge) against
// the compressed public key nodeID.
func VerifyProof(nodeID, challenge, signature []byte) error {
	publicKey, err := btcec.ParsePubKey(nodeID)
	if err != nil {
		return fmt.Errorf("parsing node id: %w", err)
	}
	parsed, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	digest := sha256.Sum256(challenge)
	if !parsed.Verify(digest[:], publicKey) {
		return ErrProofRejected
	}
	return nil
}

// enrollment is what the scheduler issues for a device.
type enrollment struct {
	DeviceCert []byte `cbor:"device_cert"`
	CACert     []byte `cbor:"ca_cert,omitempty"`
	Rune       string `cbor:"rune"`
}

// proof is a signed challenge plus the device CSR.
type proof struct {
	Challenge []byte
	Signature []byte
	CSR       []byte
}

// enroll runs the shared half of recovery and registration: sign the
// challenge, create a device key and CSR, exchange them for an
// enrollment, and pack the result as credentials.
func enroll(ctx context.Context, codec credential.Codec, nodeID []byte, network bitcoin.Network, prover Prover, challenge []byte, exchange func(context.Context, proof) (*enrollment, error)) (credential.Credentials, error) {
	if prover == nil {
		return credential.Credentials{}, errors.New("no prover for challenge")
	}
	signature, err := prover.Prove(ctx, challenge)
	if err != nil {
		return credential.Credentials{}, fmt.Errorf("signing challenge: %w", err)
	}

	device, err := pki.NewDeviceKey()
	if err != nil {
		return credential.Credentials{}, err
	}
	csr, err := device.CSR(hex.EncodeToString(nodeID))
	if err != nil {
		return credential.Credentials{}, err
	}

	issued, err := exchange(ctx, proof{Challenge: challenge, Signature: signature, CSR: csr})
	if err != nil {
		return credential.Credentials{}, err
	}

	keyPEM, err := device.PEM()
	if err != nil {
		return credential.Credentials{}, err
	}
	material := &credential.TrustMaterial{
		Version:    credential.EnvelopeVersion,
		NodeID:     nodeID,
		Network:    network.String(),
		DeviceCert: issued.DeviceCert,
		DeviceKey:  keyPEM,
		CACert:     issued.CACert,
		Rune:       issued.Rune,
	}
	defer material.Zero()
	return codec.Encode(material)
}
