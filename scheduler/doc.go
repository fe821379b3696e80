// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler talks to the service that enrolls devices for a
// node and assigns each node to a host.
//
// Recovery and registration are both enrollment: the scheduler issues
// a challenge, the node key proves possession by signing it, and the
// scheduler answers a freshly generated device CSR with a client
// certificate, its CA, and a rune authorizing node calls. The device
// key and the issued material are packed into opaque
// [credential.Credentials]. Schedule resolves the node's current host
// and dials it with the device identity.
//
// [GRPCGateway] is the production adapter. [MemoryGateway] runs the
// same enrollment against an in-process certificate authority and
// hands out [node.MemoryHandle] nodes.
package scheduler
