// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity turns a BIP-39 recovery phrase into the node's
// signing key and public node id.
//
// Derivation is deterministic: the mnemonic is checked against the
// BIP-39 word list and checksum, stretched to a 64-byte seed, and the
// first 32 bytes of that seed are expanded with HKDF-SHA256 into the
// secp256k1 node secret. The same phrase always yields the same node
// id, which is how the scheduler recognizes a returning node during
// recovery.
//
// The node secret lives in a [secret.Buffer] from derivation onward.
// An [Identity] is held by the session establisher while credentials
// are obtained or checked, and [Identity.ReleaseKey] hands the buffer
// to the signer task, which then owns it until the session stops.
// Identity has no String or Format method; the only printable part is
// [Identity.NodeIDHex].
package identity
