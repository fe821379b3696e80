// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-dependent code run against a controllable
// clock in tests.
//
// The session shutdown protocol polls the signer task on a fixed
// interval and the signer backs off between failed stream receives.
// Both take a [Clock] instead of calling the time package, so tests can
// drive the full grace window without sleeping.
//
// Production code uses [Real]. Tests use [Fake]:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go session.Shutdown()
//	fake.WaitForTimers(1)        // the poll registered its timer
//	fake.Advance(time.Second)    // fire it
//
// [FakeClock.WaitForTimers] closes the race between a goroutine arming
// a timer and the test advancing time past it.
package clock
