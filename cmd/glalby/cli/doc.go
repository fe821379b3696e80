// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the glalby CLI.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a parameter struct whose tagged fields
// become flags (see [BindFlags]), and a Run function. Commands are
// assembled into a tree in cmd/glalby/commands and dispatched via
// [Command.Execute], which parses flags, routes subcommands, and
// prints help with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against the known names and
// suggests the closest match (distance <= 3).
//
// [ReadPhrase] obtains the recovery phrase from a file, stdin, or an
// echo-less terminal prompt, always into a [secret.Buffer].
package cli
