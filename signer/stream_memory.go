// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"errors"
	"sync"
)

// Compile-time interface check.
var _ Stream = (*MemoryStream)(nil)

// ErrStreamClosed is returned by MemoryStream operations after Close.
var ErrStreamClosed = errors.New("signer stream closed")

// MemoryStream is an in-process Stream. The node side injects
// challenges with Push and reads answers from Responses. Used by the
// in-memory node handle and by tests.
type MemoryStream struct {
	challenges chan Challenge
	responses  chan Response

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemoryStream returns a stream whose response channel buffers up
// to capacity answers.
func NewMemoryStream(capacity int) *MemoryStream {
	return &MemoryStream{
		challenges: make(chan Challenge),
		responses:  make(chan Response, capacity),
		closed:     make(chan struct{}),
	}
}

func (s *MemoryStream) Recv(ctx context.Context) (Challenge, error) {
	select {
	case challenge := <-s.challenges:
		return challenge, nil
	case <-ctx.Done():
		return Challenge{}, ctx.Err()
	case <-s.closed:
		return Challenge{}, ErrStreamClosed
	}
}

func (s *MemoryStream) Send(ctx context.Context, response Response) error {
	select {
	case <-s.closed:
		return ErrStreamClosed
	default:
	}
	select {
	case s.responses <- response:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrStreamClosed
	}
}

// Close unblocks pending and future Recv and Send calls. Idempotent.
func (s *MemoryStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Push hands a challenge to whoever is receiving. It blocks until the
// challenge is taken, ctx is done, or the stream closes.
func (s *MemoryStream) Push(ctx context.Context, challenge Challenge) error {
	select {
	case s.challenges <- challenge:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrStreamClosed
	}
}

// Responses yields answers sent by the receiver.
func (s *MemoryStream) Responses() <-chan Response {
	return s.responses
}

// Closed is closed when Close is called.
func (s *MemoryStream) Closed() <-chan struct{} {
	return s.closed
}
