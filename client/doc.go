// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the blocking facade over sessions, for hosts that
// call in from plain threads rather than goroutines with contexts.
//
// The host constructs one [ExecutionContext] and passes it to every
// entry point; there is no package-level runtime. Each call blocks the
// calling goroutine while the work runs on a bounded pool, and closing
// the execution context drains outstanding work before rejecting new
// calls.
//
//	exec := client.NewExecutionContext(0)
//	defer exec.Close(context.Background())
//
//	creds, err := client.Recover(exec, establisher, phrase)
//	...
//	c, err := client.Connect(exec, establisher, phrase, creds)
//	...
//	info, err := c.GetInfo()
//	c.Shutdown()
package client
