// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/glalby/glalby/lib/codec"
	"github.com/glalby/glalby/lib/secret"
)

// EnvelopeVersion is the only envelope version this package writes
// and reads.
const EnvelopeVersion = 1

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("malformed credentials")

// Credentials is an opaque credential blob.
type Credentials struct {
	Blob []byte
}

// IsZero reports whether c holds no blob.
func (c Credentials) IsZero() bool {
	return len(c.Blob) == 0
}

// Equal reports whether c and other hold the same bytes.
func (c Credentials) Equal(other Credentials) bool {
	return bytes.Equal(c.Blob, other.Blob)
}

// fingerprintKey is the BLAKE3 key for credential fingerprints: the
// ASCII domain name, zero-padded to 32 bytes.
var fingerprintKey = [32]byte{
	'g', 'l', 'a', 'l', 'b', 'y', '.', 'c', 'r', 'e', 'd', 'e', 'n', 't', 'i', 'a',
	'l', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns a short, stable, non-reversible identifier for
// the blob: the first 8 bytes of its keyed BLAKE3 hash, in hex.
func (c Credentials) Fingerprint() string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("credential: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(c.Blob)
	return hex.EncodeToString(hasher.Sum(nil)[:8])
}

// TrustMaterial is the decoded content of a credential blob. All
// certificate and key fields are PEM.
type TrustMaterial struct {
	Version    int    `cbor:"version"`
	NodeID     []byte `cbor:"node_id"`
	Network    string `cbor:"network"`
	DeviceCert []byte `cbor:"device_cert"`
	DeviceKey  []byte `cbor:"device_key"`
	CACert     []byte `cbor:"ca_cert,omitempty"`
	Rune       string `cbor:"rune,omitempty"`
}

// Validate checks that every required field is present.
func (m *TrustMaterial) Validate() error {
	var errs []error
	if m.Version != EnvelopeVersion {
		errs = append(errs, fmt.Errorf("unsupported envelope version %d", m.Version))
	}
	if len(m.NodeID) != 33 {
		errs = append(errs, fmt.Errorf("node id is %d bytes, want 33", len(m.NodeID)))
	}
	if m.Network == "" {
		errs = append(errs, errors.New("network is missing"))
	}
	if len(m.DeviceCert) == 0 {
		errs = append(errs, errors.New("device certificate is missing"))
	}
	if len(m.DeviceKey) == 0 {
		errs = append(errs, errors.New("device key is missing"))
	}
	return errors.Join(errs...)
}

// MatchesNode reports whether the material was issued for nodeID.
func (m *TrustMaterial) MatchesNode(nodeID []byte) bool {
	return bytes.Equal(m.NodeID, nodeID)
}

// Zero overwrites the device key.
func (m *TrustMaterial) Zero() {
	secret.Zero(m.DeviceKey)
}

// Codec converts between TrustMaterial and Credentials.
type Codec interface {
	Encode(material *TrustMaterial) (Credentials, error)
	Decode(credentials Credentials) (*TrustMaterial, error)
}

// EnvelopeCodec is the CBOR envelope codec.
type EnvelopeCodec struct{}

// Compile-time interface check.
var _ Codec = EnvelopeCodec{}

func (EnvelopeCodec) Encode(material *TrustMaterial) (Credentials, error) {
	if material.Version == 0 {
		material.Version = EnvelopeVersion
	}
	if err := material.Validate(); err != nil {
		return Credentials{}, fmt.Errorf("encoding credentials: %w", err)
	}
	blob, err := codec.Marshal(material)
	if err != nil {
		return Credentials{}, fmt.Errorf("encoding credentials: %w", err)
	}
	return Credentials{Blob: blob}, nil
}

func (EnvelopeCodec) Decode(credentials Credentials) (*TrustMaterial, error) {
	if credentials.IsZero() {
		return nil, fmt.Errorf("%w: empty blob", ErrMalformed)
	}
	var material TrustMaterial
	if err := codec.UnmarshalStrict(credentials.Blob, &material); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := material.Validate(); err != nil {
		material.Zero()
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &material, nil
}
