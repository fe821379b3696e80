// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "time"

// Shutdown defaults.
const (
	DefaultPollInterval = time.Second
	DefaultPollAttempts = 5
	DefaultCancelDelay  = time.Second
)

// ShutdownPolicy bounds how long Shutdown waits for the signer.
// Shutdown takes at most PollInterval*PollAttempts + CancelDelay.
type ShutdownPolicy struct {
	// PollInterval is the wait between checks for a finished signer.
	PollInterval time.Duration

	// PollAttempts is how many checks precede forced cancellation.
	PollAttempts int

	// CancelDelay is the wait after forced cancellation.
	CancelDelay time.Duration
}

// DefaultShutdownPolicy waits up to five seconds for a graceful stop
// and one more after cancelling.
func DefaultShutdownPolicy() ShutdownPolicy {
	return ShutdownPolicy{
		PollInterval: DefaultPollInterval,
		PollAttempts: DefaultPollAttempts,
		CancelDelay:  DefaultCancelDelay,
	}
}

func (p ShutdownPolicy) withDefaults() ShutdownPolicy {
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.PollAttempts <= 0 {
		p.PollAttempts = DefaultPollAttempts
	}
	if p.CancelDelay <= 0 {
		p.CancelDelay = DefaultCancelDelay
	}
	return p
}

// ShutdownResult describes how a Shutdown call ended.
type ShutdownResult struct {
	// Graceful is true when the signer stopped on its signal within
	// the poll window.
	Graceful bool

	// Forced is true when the first Shutdown had to cancel the signer.
	Forced bool

	// Stopped is true when the signer had stopped by the time
	// Shutdown returned. A forced shutdown of a signer that ignores
	// cancellation can return with Stopped false.
	Stopped bool

	// AlreadySignalled is true when an earlier Shutdown sent the
	// signal. Graceful and Forced then describe that earlier call.
	AlreadySignalled bool

	Elapsed time.Duration
}

// Shutdown stops the session: it refuses new calls, signals the
// signer, polls for it to finish, cancels it if it has not, and closes
// the node handle after the last in-flight call returns. In-flight
// calls are not interrupted. Shutdown always returns, within the
// policy's bound, and is safe to call repeatedly. Later calls wait for
// the first to finish and report its outcome with AlreadySignalled
// set and Stopped refreshed.
func (s *Session) Shutdown() ShutdownResult {
	start := s.clock.Now()
	first := false
	s.shutdownOnce.Do(func() {
		first = true
		s.shutdownResult = s.shutdown(start)
	})
	if first {
		return s.shutdownResult
	}

	result := s.shutdownResult
	result.AlreadySignalled = true
	result.Stopped = s.task.Finished()
	result.Elapsed = s.clock.Now().Sub(start)
	s.logger.Debug("session already shut down",
		"graceful", result.Graceful,
		"forced", result.Forced,
		"stopped", result.Stopped,
	)
	return result
}

func (s *Session) shutdown(start time.Time) ShutdownResult {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	result := ShutdownResult{AlreadySignalled: !s.signal.Send()}

	for attempt := 0; attempt < s.policy.PollAttempts && !s.task.Finished(); attempt++ {
		select {
		case <-s.task.Done():
		case <-s.clock.After(s.policy.PollInterval):
		}
	}
	result.Graceful = s.task.Finished()

	if !result.Graceful {
		result.Forced = true
		s.logger.Warn("signer did not stop gracefully, cancelling",
			"waited", s.policy.PollInterval*time.Duration(s.policy.PollAttempts),
		)
		s.task.Cancel()
		select {
		case <-s.task.Done():
		case <-s.clock.After(s.policy.CancelDelay):
		}
	}
	result.Stopped = s.task.Finished()

	s.mu.Lock()
	s.drained = true
	closeNow := s.inFlight == 0
	inFlight := s.inFlight
	s.mu.Unlock()
	if closeNow {
		s.closeHandle()
	}

	result.Elapsed = s.clock.Now().Sub(start)
	s.logger.Info("session shut down",
		"graceful", result.Graceful,
		"forced", result.Forced,
		"stopped", result.Stopped,
		"already_signalled", result.AlreadySignalled,
		"in_flight", inFlight,
		"elapsed", result.Elapsed,
	)
	return result
}
