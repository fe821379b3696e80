// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package signer runs the background task that answers the node's
// signing challenges for the lifetime of a session.
//
// A remote node cannot spend or open channels on its own: every
// operation that needs the node key arrives as a [Challenge] on the
// node's signer [Stream], and the client answers with a [Response]
// signed by a [KeySigner] that holds the key locally. A [Task] owns
// the stream and the key and moves through four states:
//
//	Idle -> Running -> Stopping -> Stopped
//
// While Running it waits for the next challenge, the session's
// [ShutdownSignal], or forced cancellation. Challenges are handled one
// at a time, each to completion, before the task looks at anything
// else. If a challenge and the shutdown signal are ready at the same
// moment, the signal wins. On the way to Stopped the task closes the
// stream and the key signer, which zeroes the key.
//
// Graceful stop ([ShutdownSignal.Send]) never interrupts a challenge
// that is being processed. [Task.Cancel] does: it cancels the context
// handed to the key signer and the stream, so a wedged signature or a
// blocked send returns promptly.
//
// Nothing that goes wrong while handling a single challenge ends the
// task. Signing failures, unknown challenge kinds, failed response
// sends, and receive errors are reported to the [Diagnostics] sink.
// Receive errors additionally back off, from one second doubling to
// thirty, on the task's clock.
package signer
