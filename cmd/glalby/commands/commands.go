// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the glalby CLI command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glalby/glalby/cmd/glalby/cli"
	"github.com/glalby/glalby/lib/version"
)

// Root builds and returns the complete glalby command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "glalby",
		Description: `glalby: drive a hosted Lightning node from its recovery phrase.

Credentials come from "glalby recover" or "glalby register" and are
kept in the credentials file. Every other command derives the node key
from the phrase, runs the signer for the length of one call, and prints
the result as JSON.`,
		Subcommands: []*cli.Command{
			recoverCommand(),
			registerCommand(),
			infoCommand(),
			invoiceCommand(),
			payCommand(),
			keysendCommand(),
			fundsCommand(),
			connectCommand(),
			fundChannelCommand(),
			newAddressCommand(),
			invoicesCommand(),
			paymentsCommand(),
			signMessageCommand(),
			withdrawCommand(),
			closeCommand(),
			sealCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Printf("glalby %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Create a node on regtest",
				Command:     "glalby register --config regtest.yaml --phrase-file phrase.txt",
			},
			{
				Description: "Show node info",
				Command:     "glalby info --phrase-file phrase.txt",
			},
			{
				Description: "Create an invoice for 10 sats",
				Command:     "glalby invoice --amount-msat 10000 --description tip",
			},
		},
	}
}
