// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/glalby/glalby/cmd/glalby/cli"
	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/lib/config"
	"github.com/glalby/glalby/lib/sealed"
)

func sealCommand() *cli.Command {
	return &cli.Command{
		Name:    "seal",
		Summary: "Encrypt stored credentials with age",
		Description: `Manage age encryption of the credentials file.

A sealed credentials file is an armored age message. Commands open it
with credentials.identity_file from the config; set
credentials.seal_recipients to have recover and register seal new
credentials automatically.`,
		Subcommands: []*cli.Command{
			sealKeygenCommand(),
			sealCredentialsCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Create a keypair, then seal the existing credentials to it",
				Command:     "glalby seal keygen --out ~/.glalby/age.key && glalby seal credentials --recipient age1...",
			},
		},
	}
}

type keygenParams struct {
	Out string `json:"out" flag:"out" desc:"file to write the private key to (required)"`
}

type keygenResult struct {
	PublicKey    string `json:"public_key"`
	IdentityFile string `json:"identity_file"`
}

func sealKeygenCommand() *cli.Command {
	var params keygenParams
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age keypair for sealing credentials",
		Usage:   "glalby seal keygen --out <path>",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := positional("seal keygen", args); err != nil {
				return err
			}
			if params.Out == "" {
				return fmt.Errorf("--out is required")
			}
			result, err := generateIdentity(params.Out)
			if err != nil {
				return err
			}
			logger.Info("age identity written", "path", result.IdentityFile)
			return cli.WriteJSON(result)
		},
	}
}

// generateIdentity writes a fresh private key to path, refusing to
// replace an existing file.
func generateIdentity(path string) (*keygenResult, error) {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	defer keypair.Close()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%s already exists; refusing to overwrite a private key", path)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := file.Write(append(keypair.PrivateKey.Bytes(), '\n')); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", path, err)
	}
	return &keygenResult{PublicKey: keypair.PublicKey, IdentityFile: path}, nil
}

type sealCredentialsParams struct {
	ConfigPath      string   `json:"config"        flag:"config"        desc:"path to glalby.yaml"`
	CredentialsPath string   `json:"credentials"   flag:"credentials"   desc:"credentials file (default: credentials.path from config)"`
	IdentityFile    string   `json:"identity_file" flag:"identity-file" desc:"age identity that opens an already sealed file"`
	Recipients      []string `json:"recipients"    flag:"recipient"     desc:"age recipient to seal to (repeatable; default: credentials.seal_recipients)"`
}

type sealResult struct {
	Path        string   `json:"path"`
	Credentials string   `json:"credentials"`
	Recipients  []string `json:"recipients"`
}

func sealCredentialsCommand() *cli.Command {
	var params sealCredentialsParams
	return &cli.Command{
		Name:    "credentials",
		Summary: "Seal (or re-seal) the credentials file",
		Usage:   "glalby seal credentials [--recipient age1...]... [flags]",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := positional("seal credentials", args); err != nil {
				return err
			}
			cfg, err := config.Resolve(params.ConfigPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			result, err := sealCredentials(cfg, params)
			if err != nil {
				return err
			}
			logger.Info("credentials sealed",
				"path", result.Path,
				"credentials", result.Credentials,
				"recipients", len(result.Recipients),
			)
			return cli.WriteJSON(result)
		},
	}
}

func sealCredentials(cfg *config.Config, params sealCredentialsParams) (*sealResult, error) {
	path := cfg.Credentials.Path
	if params.CredentialsPath != "" {
		path = params.CredentialsPath
	}
	identityFile := cfg.Credentials.IdentityFile
	if params.IdentityFile != "" {
		identityFile = params.IdentityFile
	}
	recipients := params.Recipients
	if len(recipients) == 0 {
		recipients = cfg.Credentials.SealRecipients
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients: pass --recipient or set credentials.seal_recipients")
	}
	for _, recipient := range recipients {
		if err := sealed.ValidateRecipient(recipient); err != nil {
			return nil, err
		}
	}

	credentials, err := credential.Load(path, identityFile)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if err := credential.Save(path, credentials, recipients); err != nil {
		return nil, err
	}
	return &sealResult{
		Path:        path,
		Credentials: credentials.Fingerprint(),
		Recipients:  recipients,
	}, nil
}
