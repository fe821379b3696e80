// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts credential files at rest with age.
//
// The session core never persists anything; the host does. The glalby
// CLI stores the credential blob returned by recover or register in a
// file, and when the config names seal recipients that file is an
// ASCII-armored age message instead of raw CBOR. [Open] takes the
// matching X25519 identity from a [secret.Buffer] and returns the
// plaintext in another one.
//
// [IsSealed] tells the two file shapes apart by the armor header, so a
// host can switch to sealing without migrating existing files.
package sealed
