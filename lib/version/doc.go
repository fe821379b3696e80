// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which glalby build is running.
//
// [Version], [GitCommit], and [BuildTime] are injected with -ldflags:
//
//	go build -ldflags "-X github.com/glalby/glalby/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [Info] is printed by "glalby version". [UserAgent] is sent on every
// scheduler and node connection so operators can tell client builds
// apart.
package version
