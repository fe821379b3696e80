// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package session turns a recovery phrase and credentials into a live
// node session, and tears it down again.
//
// An [Establisher] owns the path from phrase to session: derive the
// node identity, decode and check the credentials, build the mutual
// TLS identity, ask the scheduler for the node, and start the signer
// task that answers the node's signing challenges for the lifetime of
// the session. Establish either returns a fully running [Session] or
// releases everything it acquired.
//
// A [Session] forwards node calls while it is open. [Session.Shutdown]
// signals the signer, waits a bounded time for it to finish, forces
// cancellation if it does not, and closes the node handle once the
// last in-flight call returns. Shutdown never fails and may be called
// any number of times.
package session
