// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/glalby/glalby/lib/secret"
)

// KeySigner produces the signature for one challenge. Close zeroes
// the key; Sign after Close fails with ErrKeyClosed.
type KeySigner interface {
	Sign(ctx context.Context, challenge Challenge) ([]byte, error)
	Close() error
}

var (
	ErrKeyClosed   = errors.New("signing key is closed")
	ErrUnknownKind = errors.New("unknown challenge kind")
)

// lightningMessagePrefix is prepended to messages before double
// SHA-256, as Lightning nodes do for signmessage.
const lightningMessagePrefix = "Lightning Signed Message:"

// Secp256k1Signer signs challenges with a secp256k1 key held in a
// secret.Buffer. Signatures are DER-encoded ECDSA with low S.
type Secp256k1Signer struct {
	mu  sync.Mutex
	key *secret.Buffer
}

// NewSecp256k1Signer takes ownership of key.
func NewSecp256k1Signer(key *secret.Buffer) *Secp256k1Signer {
	return &Secp256k1Signer{key: key}
}

func (s *Secp256k1Signer) Sign(ctx context.Context, challenge Challenge) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var digest []byte
	switch challenge.Kind {
	case KindPing:
		return nil, nil
	case KindDigest:
		if len(challenge.Payload) != sha256.Size {
			return nil, fmt.Errorf("digest challenge payload is %d bytes, want %d", len(challenge.Payload), sha256.Size)
		}
		digest = challenge.Payload
	case KindMessage:
		digest = MessageDigest(challenge.Payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, challenge.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return nil, ErrKeyClosed
	}
	privateKey, _ := btcec.PrivKeyFromBytes(s.key.Bytes())
	defer privateKey.Zero()
	return ecdsa.Sign(privateKey, digest).Serialize(), nil
}

// Close zeroes the key. Idempotent.
func (s *Secp256k1Signer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return nil
	}
	err := s.key.Close()
	s.key = nil
	return err
}

// MessageDigest returns SHA-256(SHA-256(prefix || message)).
func MessageDigest(message []byte) []byte {
	inner := sha256.New()
	inner.Write([]byte(lightningMessagePrefix))
	inner.Write(message)
	outer := sha256.Sum256(inner.Sum(nil))
	return outer[:]
}
