// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glalby/glalby/client"
	"github.com/glalby/glalby/cmd/glalby/cli"
	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/identity"
)

// enrollResult is what recover and register print. The credential
// blob itself is only ever written to the credentials file.
type enrollResult struct {
	NodeID      string `json:"node_id"`
	Network     string `json:"network"`
	Credentials string `json:"credentials"`
	Path        string `json:"path"`
}

type recoverParams struct {
	connectionParams
}

func recoverCommand() *cli.Command {
	var params recoverParams
	return &cli.Command{
		Name:    "recover",
		Summary: "Obtain fresh credentials for an existing node",
		Description: `Prove ownership of the node derived from the recovery phrase and
save a fresh set of credentials to the credentials file.

The scheduler issues a new device certificate each time; earlier
credentials for the same node stay valid.`,
		Usage:  "glalby recover [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Recover using a phrase file on a test network",
				Command:     "glalby recover --phrase-file ~/.glalby/phrase --config testnet.yaml",
			},
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("recover takes no positional arguments, got %q", args[0])
			}
			return enroll(ctx, &params.connectionParams, "glalby recover", func(env *environment, phrase string) (credential.Credentials, error) {
				return client.Recover(env.exec, env.establisher, phrase)
			})
		},
	}
}

type registerParams struct {
	connectionParams
	InviteCode string `json:"invite_code" flag:"invite-code" desc:"invite code, when the scheduler requires one"`
}

func registerCommand() *cli.Command {
	var params registerParams
	return &cli.Command{
		Name:    "register",
		Summary: "Create a new node and save its credentials",
		Description: `Register the node derived from the recovery phrase with the
scheduler and save its first credentials.

Registering a node that already exists fails; use "glalby recover"
instead.`,
		Usage:  "glalby register [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Register with an invite code, typing the phrase at a prompt",
				Command:     "glalby register --invite-code 7f3a-1c2d",
			},
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("register takes no positional arguments, got %q", args[0])
			}
			return enroll(ctx, &params.connectionParams, "glalby register", func(env *environment, phrase string) (credential.Credentials, error) {
				return client.Register(env.exec, env.establisher, phrase, params.InviteCode)
			})
		},
	}
}

// enroll obtains credentials with obtain, saves them, and reports the
// node they belong to.
func enroll(ctx context.Context, params *connectionParams, command string, obtain func(*environment, string) (credential.Credentials, error)) error {
	env, err := params.open(ctx, command)
	if err != nil {
		return err
	}
	defer env.Close()

	phrase, err := params.readPhrase()
	if err != nil {
		return err
	}
	defer phrase.Close()

	credentials, err := obtain(env, phrase.String())
	if err != nil {
		return err
	}
	node, err := identity.FromPhrase(phrase.String(), env.network)
	if err != nil {
		return fmt.Errorf("deriving node identity: %w", err)
	}
	nodeID := node.NodeIDHex()
	node.Close()

	if err := env.saveCredentials(credentials); err != nil {
		return err
	}
	return cli.WriteJSON(enrollResult{
		NodeID:      nodeID,
		Network:     env.network.String(),
		Credentials: credentials.Fingerprint(),
		Path:        env.config.Credentials.Path,
	})
}
