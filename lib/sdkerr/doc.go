// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package sdkerr is the error taxonomy hosts see.
//
// Every error that leaves the session, client, or credential packages
// is an [*Error] of one of two kinds:
//
//   - [KindInvalidArgument]: the caller handed over something unusable
//     (a malformed recovery phrase, a credential blob for a different
//     node, an undecodable hex id, a call on a shut-down session). No
//     remote call was made, or retrying with the same input cannot
//     succeed.
//   - [KindRemoteAPI]: the scheduler or node failed or rejected the
//     request. The wrapped chain carries the gRPC status.
//
// Error renders the whole cause chain, so a host that only prints the
// message still sees the root cause. Match kinds with errors.Is against
// [ErrInvalidArgument] or [ErrRemoteAPI], or with [IsInvalidArgument]
// and [IsRemoteAPI]. [Retryable] is a hint derived from the gRPC status
// code; it never changes the kind.
package sdkerr
