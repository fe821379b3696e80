// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential defines the credential blob that lets a node
// identity talk to its scheduled node, and the envelope it travels in.
//
// [Credentials] is what hosts see: an opaque, immutable byte blob
// produced by recovery or registration and handed back, unchanged, to
// every later session establishment. Hosts store it however they
// like. The session core never persists it.
//
// Inside, the default [EnvelopeCodec] encodes a [TrustMaterial] as
// deterministic CBOR: the node id and network the credentials were
// issued for, the device certificate and private key that
// authenticate the client over mutual TLS, the CA that signed the
// scheduler and node certificates, and the rune (an authorization
// token) the scheduler issued. Establishment decodes the blob and
// refuses it if the node id does not match the identity derived from
// the recovery phrase.
//
// Because the blob contains a private key it must never be logged;
// [Credentials.Fingerprint] is a BLAKE3 keyed hash for use in log
// lines instead. [Save] and [Load] keep a blob in a file for the CLI,
// sealed with age when recipients are configured.
package credential
