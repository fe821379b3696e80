// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout safety valve so that a broken concurrency test
// fails instead of hanging. They are the only place tests use the wall
// clock; everything time-dependent under test runs on a
// clock.FakeClock.
//
// [ServeGRPC] runs a gRPC server over an in-memory listener for
// adapter tests.
//
// [Eventually] polls a condition for state that has no channel to
// wait on, such as an in-flight call counter.
//
// Every helper calls t.Fatalf on failure.
package testutil
