// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package node is the client's view of a scheduled Lightning node.
//
// [Client] lists the node operations a session exposes: node info,
// invoices, payments, peers, channels, on-chain funds, and message
// signing. Request and response types use lowercase hex strings for
// every binary identifier (node ids, payment hashes, txids, preimages)
// and pointers for optional fields. Hex input is accepted in either
// case and is decoded before anything is sent, so a malformed
// identifier fails with an invalid-argument error and no remote call.
//
// A [Handle] is a Client plus the node's signer challenge stream. Two
// implementations exist:
//
//   - [GRPCHandle] talks to a real node over mutual TLS, one unary
//     method per operation, with the signer stream as a server stream
//     that reopens itself after failures.
//   - [MemoryHandle] is an in-process node for tests and local
//     development. Operations that need the node key (pay, keysend,
//     sign-message) round-trip a challenge through its signer stream,
//     so they only succeed while a signer task is serving it.
package node
