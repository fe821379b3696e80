// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import "sync/atomic"

// ShutdownSignal asks a task to stop gracefully. Only the first Send
// has any effect; later sends report false without blocking.
type ShutdownSignal struct {
	channel chan struct{}
	sent    atomic.Bool
}

// NewShutdownSignal returns an unsent signal.
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{channel: make(chan struct{}, 1)}
}

// Send delivers the signal. It returns true for the call that
// delivered it.
func (s *ShutdownSignal) Send() bool {
	if !s.sent.CompareAndSwap(false, true) {
		return false
	}
	s.channel <- struct{}{}
	return true
}

// Sent reports whether Send has been called.
func (s *ShutdownSignal) Sent() bool {
	return s.sent.Load()
}

// C is the receive side. It yields one value, once.
func (s *ShutdownSignal) C() <-chan struct{} {
	return s.channel
}
