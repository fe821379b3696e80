// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glalby/glalby/client"
	"github.com/glalby/glalby/cmd/glalby/cli"
	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/config"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/lib/sealed"
	"github.com/glalby/glalby/lib/testutil"
)

func TestRoot_CommandTree(t *testing.T) {
	root := Root()
	seen := make(map[string]bool)
	var walk func(prefix string, command *cli.Command)
	walk = func(prefix string, command *cli.Command) {
		for _, sub := range command.Subcommands {
			name := prefix + sub.Name
			if seen[name] {
				t.Errorf("duplicate command %q", name)
			}
			seen[name] = true
			if sub.Run == nil && len(sub.Subcommands) == 0 {
				t.Errorf("command %q has neither Run nor subcommands", name)
			}
			if sub.Summary == "" {
				t.Errorf("command %q has no summary", name)
			}
			if sub.Params != nil {
				// Panics on an unsupported field type.
				cli.FlagsFromParams(sub.Name, sub.Params())
			}
			walk(name+" ", sub)
		}
	}
	walk("", root)

	for _, want := range []string{
		"recover", "register", "info", "invoice", "pay", "keysend", "funds",
		"connect", "fund-channel", "new-address", "invoices", "payments",
		"sign-message", "withdraw", "close", "seal", "seal keygen",
		"seal credentials", "version",
	} {
		if !seen[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestPositional(t *testing.T) {
	if err := positional("info", nil); err != nil {
		t.Errorf("info with no args: %v", err)
	}
	if err := positional("info", []string{"x"}); err == nil || !strings.Contains(err.Error(), "no positional arguments") {
		t.Errorf("info with an arg = %v", err)
	}
	if err := positional("pay", []string{"lnbc1"}, "bolt11"); err != nil {
		t.Errorf("pay with bolt11: %v", err)
	}
	if err := positional("pay", nil, "bolt11"); err == nil {
		t.Error("pay without bolt11 succeeded")
	}
}

func TestOptional(t *testing.T) {
	if optional(uint64(0)) != nil || optional("") != nil || optional(false) != nil {
		t.Error("optional of a zero value is not nil")
	}
	if got := optional(uint32(6)); got == nil || *got != 6 {
		t.Errorf("optional(6) = %v", got)
	}
}

func TestShutdownPolicy_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Shutdown.PollInterval = "250ms"
	cfg.Shutdown.PollAttempts = 8
	cfg.Shutdown.CancelDelay = "2s"

	policy, err := shutdownPolicy(cfg)
	if err != nil {
		t.Fatalf("shutdownPolicy: %v", err)
	}
	if policy.PollInterval != 250*time.Millisecond || policy.PollAttempts != 8 || policy.CancelDelay != 2*time.Second {
		t.Errorf("policy = %+v", policy)
	}

	cfg.Shutdown.CancelDelay = "soon"
	if _, err := shutdownPolicy(cfg); err == nil {
		t.Error("shutdownPolicy accepted cancel_delay soon")
	}
}

func writeConfig(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(root, "glalby.yaml")
	contents := "root: " + root + "\n" +
		"network: regtest\n" +
		"scheduler:\n  address: 127.0.0.1:1\n" +
		"log:\n  level: error\n  format: json\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen_AppliesConfigAndOverrides(t *testing.T) {
	root := t.TempDir()
	credentialsPath := filepath.Join(root, "creds", "node.bin")
	params := connectionParams{
		ConfigPath:      writeConfig(t, root),
		CredentialsPath: credentialsPath,
	}

	env, err := params.open(context.Background(), "glalby test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()

	if env.network != bitcoin.Regtest {
		t.Errorf("network = %q, want regtest", env.network)
	}
	if env.config.Credentials.Path != credentialsPath {
		t.Errorf("credentials path = %q, want override", env.config.Credentials.Path)
	}

	if err := env.saveCredentials(credential.Credentials{Blob: []byte("blob")}); err != nil {
		t.Fatalf("saveCredentials: %v", err)
	}
	loaded, err := credential.Load(credentialsPath, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(loaded.Blob) != "blob" {
		t.Errorf("saved blob = %q", loaded.Blob)
	}
}

func TestOpen_CancelAbandonsCalls(t *testing.T) {
	root := t.TempDir()
	params := connectionParams{ConfigPath: writeConfig(t, root)}
	ctx, cancel := context.WithCancel(context.Background())

	env, err := params.open(ctx, "glalby test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()

	cancel()
	testutil.Eventually(t, func() bool {
		return errors.Is(env.exec.Run(func(context.Context) error { return nil }), client.ErrClosed)
	}, 5*time.Second, "execution context still accepts work after cancellation")
}

func TestOpen_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "glalby.yaml")
	if err := os.WriteFile(path, []byte("network: moonnet\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	params := connectionParams{ConfigPath: path}
	if _, err := params.open(context.Background(), "glalby test"); err == nil || !strings.Contains(err.Error(), "moonnet") {
		t.Errorf("open = %v, want a network error", err)
	}
}

func TestWithNode_MissingCredentials(t *testing.T) {
	root := t.TempDir()
	phrasePath := filepath.Join(root, "phrase")
	if err := os.WriteFile(phrasePath, []byte("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	params := connectionParams{ConfigPath: writeConfig(t, root), PhraseFile: phrasePath}

	err := withNode(context.Background(), &params, "glalby info", func(*client.BlockingClient) (any, error) {
		t.Error("operation ran without credentials")
		return nil, nil
	})
	if err == nil || !strings.Contains(err.Error(), "glalby recover") {
		t.Errorf("withNode = %v, want a hint to recover", err)
	}
}

func TestGenerateIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "age.key")
	result, err := generateIdentity(path)
	if err != nil {
		t.Fatalf("generateIdentity: %v", err)
	}
	if !strings.HasPrefix(result.PublicKey, "age1") {
		t.Errorf("public key = %q", result.PublicKey)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("identity mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := generateIdentity(path); err == nil || !strings.Contains(err.Error(), "refusing to overwrite") {
		t.Errorf("second generateIdentity = %v, want refusal", err)
	}
}

func TestSealCredentials(t *testing.T) {
	root := t.TempDir()
	credentialsPath := filepath.Join(root, "credentials")
	if err := credential.Save(credentialsPath, credential.Credentials{Blob: []byte("device-blob")}, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	identityPath := filepath.Join(root, "age.key")
	keys, err := generateIdentity(identityPath)
	if err != nil {
		t.Fatalf("generateIdentity: %v", err)
	}

	cfg := config.Default()
	cfg.Credentials.Path = credentialsPath
	if _, err := sealCredentials(cfg, sealCredentialsParams{}); err == nil {
		t.Error("sealCredentials without recipients succeeded")
	}
	if _, err := sealCredentials(cfg, sealCredentialsParams{Recipients: []string{"age1bogus"}}); err == nil {
		t.Error("sealCredentials accepted a bogus recipient")
	}

	result, err := sealCredentials(cfg, sealCredentialsParams{Recipients: []string{keys.PublicKey}})
	if err != nil {
		t.Fatalf("sealCredentials: %v", err)
	}
	if result.Credentials != (credential.Credentials{Blob: []byte("device-blob")}).Fingerprint() {
		t.Errorf("fingerprint = %q", result.Credentials)
	}
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		t.Fatal(err)
	}
	if !sealed.IsSealed(data) {
		t.Fatal("credentials file is not sealed")
	}
	opened, err := credential.Load(credentialsPath, identityPath)
	if err != nil {
		t.Fatalf("Load sealed: %v", err)
	}
	if string(opened.Blob) != "device-blob" {
		t.Errorf("opened blob = %q", opened.Blob)
	}
}

func TestRoot_InvalidEnumIsInvalidArgument(t *testing.T) {
	root := t.TempDir()
	err := Root().Execute(context.Background(),
		[]string{"payments", "--config", writeConfig(t, root), "--status", "lost"},
		slog.New(slog.DiscardHandler))
	if !sdkerr.IsInvalidArgument(err) {
		t.Errorf("payments --status lost = %v, want invalid argument", err)
	}
	if cli.ExitCodeFor(err) != cli.ExitInvalidArgument {
		t.Errorf("exit code = %d", cli.ExitCodeFor(err))
	}
}
