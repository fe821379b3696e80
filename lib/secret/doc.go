// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material and recovery phrases in memory
// that the Go runtime never sees.
//
// [Buffer] is an anonymous mmap region, mlock'd against swap and
// marked MADV_DONTDUMP so it never lands in a core file. Close zeroes,
// unlocks, and unmaps it. The node secret derived from a recovery
// phrase lives in a Buffer from derivation until the signer task
// stops, and the CLI reads phrases straight into one.
//
// Constructors:
//
//   - [New] allocates a zero-filled buffer
//   - [NewFromBytes] copies into protected memory and zeroes the source
//   - [ReadFromPath] reads a trimmed secret from a file or stdin
//
// Any access after Close panics. Close is idempotent.
package secret
