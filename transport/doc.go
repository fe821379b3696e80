// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport opens the gRPC connections to the scheduler and to
// a scheduled node.
//
// Both connections are gRPC over TLS. The scheduler connection
// authenticates the server only, since a client that is recovering or
// registering has no device certificate yet. The node connection is
// mutual TLS: [NewIdentity] builds the client certificate and the CA
// pool from the trust material inside a credential blob.
//
// Messages are CBOR, not protobuf. The package registers a gRPC codec
// named "cbor" (see lib/codec) and [Dial] selects it as the default
// content-subtype, so adapters invoke methods with plain Go structs.
//
// Connections go out through a [Dialer]. Production uses [TCPDialer];
// tests pass a [DialerFunc] over an in-memory listener and keep the
// rest of the stack, TLS included, unchanged.
package transport
