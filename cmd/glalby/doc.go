// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Glalby is the command-line client for hosted Lightning nodes. It
// recovers or registers credentials from a recovery phrase and runs
// one node operation per invocation, printing the result as JSON.
//
// Configuration comes from --config, else $GLALBY_CONFIG, else
// built-in defaults that target the production scheduler on mainnet.
// See lib/config for the file format.
package main
