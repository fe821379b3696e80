// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package bitcoin names the networks a node can run on and validates
// on-chain addresses against them.
//
// The network is chosen once, when the identity is derived from the
// recovery phrase, and every later step checks against it: the
// credential envelope records it, the scheduler schedules the node for
// it, and withdrawals refuse destination addresses for any other
// network. Address parsing is btcutil's, with chaincfg parameters.
package bitcoin
