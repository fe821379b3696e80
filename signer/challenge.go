// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"fmt"
)

// Kind says what a challenge asks the key to sign.
type Kind int

const (
	// KindDigest asks for a signature over a 32-byte digest the node
	// has already computed.
	KindDigest Kind = iota + 1

	// KindMessage asks for a signature over an arbitrary message,
	// hashed as a Lightning signed message.
	KindMessage

	// KindPing checks liveness. The response carries no signature.
	KindPing
)

func (k Kind) String() string {
	switch k {
	case KindDigest:
		return "digest"
	case KindMessage:
		return "message"
	case KindPing:
		return "ping"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Challenge is one signing request from the node.
type Challenge struct {
	ID      uint64 `cbor:"id"`
	Kind    Kind   `cbor:"kind"`
	Payload []byte `cbor:"payload,omitempty"`
}

// Response answers the challenge with the same ID. Exactly one of
// Signature and Error is meaningful; a ping response has neither.
type Response struct {
	ID        uint64 `cbor:"id"`
	Signature []byte `cbor:"signature,omitempty"`
	Error     string `cbor:"error,omitempty"`
}

// Stream carries challenges from the node and responses back.
// Implementations must make Recv and Send return when ctx is done.
// Close unblocks any pending Recv.
type Stream interface {
	Recv(ctx context.Context) (Challenge, error)
	Send(ctx context.Context, response Response) error
	Close() error
}
