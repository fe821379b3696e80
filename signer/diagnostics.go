// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"log/slog"
	"time"
)

// Diagnostics receives everything the task notices but does not act
// on. Calls come from the task's goroutines and must not block.
type Diagnostics interface {
	StateChanged(from, to State)
	ChallengeFailed(challenge Challenge, err error)
	ReceiveFailed(err error, backoff time.Duration)
}

// LogDiagnostics writes diagnostics to a structured logger.
type LogDiagnostics struct {
	Logger *slog.Logger
}

func (d LogDiagnostics) StateChanged(from, to State) {
	d.Logger.Debug("signer state changed", "from", from, "to", to)
}

func (d LogDiagnostics) ChallengeFailed(challenge Challenge, err error) {
	d.Logger.Warn("signer challenge failed",
		"challenge_id", challenge.ID,
		"kind", challenge.Kind,
		"error", err,
	)
}

func (d LogDiagnostics) ReceiveFailed(err error, backoff time.Duration) {
	d.Logger.Error("signer stream receive failed, retrying", "error", err, "backoff", backoff)
}
