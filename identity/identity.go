// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/secret"
)

// NodeKeySize is the length of the secp256k1 node secret.
const NodeKeySize = 32

// nodeKeyInfo is the HKDF info string for the node secret.
const nodeKeyInfo = "nodeid"

var (
	// ErrInvalidPhrase wraps every phrase parsing failure.
	ErrInvalidPhrase = errors.New("invalid recovery phrase")

	// ErrKeyReleased is returned by Prove after ReleaseKey or Close.
	ErrKeyReleased = errors.New("node key already released")
)

// Identity is a node key and the node id derived from it.
type Identity struct {
	network bitcoin.Network
	nodeID  []byte

	mu  sync.Mutex
	key *secret.Buffer
}

// FromPhrase validates phrase and derives the identity for network.
// Whitespace and letter case in the phrase are normalized. A failure
// wraps ErrInvalidPhrase and never includes the phrase.
func FromPhrase(phrase string, network bitcoin.Network) (*Identity, error) {
	if network.Params() == nil {
		return nil, fmt.Errorf("unknown network %q", network)
	}

	words := strings.Fields(strings.ToLower(phrase))
	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return nil, fmt.Errorf("%w: expected 12 to 24 words in steps of 3, got %d", ErrInvalidPhrase, len(words))
	}

	seed, err := bip39.NewSeedWithErrorChecking(strings.Join(words, " "), "")
	if err != nil {
		// go-bip39 errors name the failing check, not the words.
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhrase, err)
	}
	defer secret.Zero(seed)

	return FromSeed(seed[:32], network)
}

// FromSeed derives the identity from the 32-byte seed prefix. The
// caller keeps ownership of seed.
func FromSeed(seed []byte, network bitcoin.Network) (*Identity, error) {
	if len(seed) != 32 {
		return nil, fmt.Errorf("seed must be 32 bytes, got %d", len(seed))
	}

	derived := make([]byte, NodeKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte(nodeKeyInfo)), derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("deriving node key: %w", err)
	}

	privateKey, publicKey := btcec.PrivKeyFromBytes(derived)
	privateKey.Zero()

	key, err := secret.NewFromBytes(derived)
	if err != nil {
		return nil, fmt.Errorf("protecting node key: %w", err)
	}

	return &Identity{
		network: network,
		nodeID:  publicKey.SerializeCompressed(),
		key:     key,
	}, nil
}

// NodeID returns a copy of the 33-byte compressed public key.
func (i *Identity) NodeID() []byte {
	return append([]byte(nil), i.nodeID...)
}

// NodeIDHex returns the node id as lowercase hex.
func (i *Identity) NodeIDHex() string {
	return hex.EncodeToString(i.nodeID)
}

// Network returns the network the identity was derived for.
func (i *Identity) Network() bitcoin.Network {
	return i.network
}

// Prove signs SHA-256(challenge) with the node key and returns a DER
// signature. The scheduler verifies it against the node id during
// recovery and registration.
func (i *Identity) Prove(ctx context.Context, challenge []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.key == nil {
		return nil, ErrKeyReleased
	}
	digest := sha256.Sum256(challenge)
	privateKey, _ := btcec.PrivKeyFromBytes(i.key.Bytes())
	defer privateKey.Zero()
	return ecdsa.Sign(privateKey, digest[:]).Serialize(), nil
}

// ReleaseKey transfers the node key buffer to the caller, who must
// Close it. Later calls, and Prove, fail with ErrKeyReleased.
func (i *Identity) ReleaseKey() (*secret.Buffer, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.key == nil {
		return nil, ErrKeyReleased
	}
	key := i.key
	i.key = nil
	return key, nil
}

// Close zeroes the node key unless it has been released. Idempotent.
func (i *Identity) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.key == nil {
		return nil
	}
	err := i.key.Close()
	i.key = nil
	return err
}
