// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/glalby/glalby/client"
	"github.com/glalby/glalby/cmd/glalby/cli"
	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/config"
	"github.com/glalby/glalby/lib/secret"
	"github.com/glalby/glalby/scheduler"
	"github.com/glalby/glalby/session"
	"github.com/glalby/glalby/transport"
)

// drainTimeout bounds how long a command waits for in-flight calls
// when it exits.
const drainTimeout = 10 * time.Second

// connectionParams are the flags every command that talks to the
// scheduler shares.
type connectionParams struct {
	ConfigPath      string `json:"config"      flag:"config"      desc:"path to glalby.yaml (default: $GLALBY_CONFIG, else built-in defaults)"`
	PhraseFile      string `json:"phrase_file" flag:"phrase-file" desc:"file holding the recovery phrase, or - for stdin (default: prompt)"`
	CredentialsPath string `json:"credentials" flag:"credentials" desc:"credentials file (default: credentials.path from config)"`
}

// environment is everything a command needs to reach its node.
type environment struct {
	config      *config.Config
	logger      *slog.Logger
	network     bitcoin.Network
	gateway     *scheduler.GRPCGateway
	establisher *session.Establisher
	exec        *client.ExecutionContext
	stopCancel  func() bool
}

// open resolves configuration and dials the scheduler. command scopes
// the logger built from the config's log section. Cancelling ctx
// abandons in-flight calls. The caller must Close the environment.
func (p *connectionParams) open(ctx context.Context, command string) (*environment, error) {
	cfg, err := config.Resolve(p.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if p.CredentialsPath != "" {
		cfg.Credentials.Path = p.CredentialsPath
	}

	logger, err := cli.NewCommandLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logger = logger.With("command", command)

	network, err := bitcoin.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	policy, err := shutdownPolicy(cfg)
	if err != nil {
		return nil, err
	}

	var roots *x509.CertPool
	if cfg.Scheduler.CAFile != "" {
		bundle, err := os.ReadFile(cfg.Scheduler.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading scheduler CA: %w", err)
		}
		if roots, err = transport.LoadRootCAs(bundle); err != nil {
			return nil, fmt.Errorf("scheduler CA %s: %w", cfg.Scheduler.CAFile, err)
		}
	}

	gateway, err := scheduler.Dial(scheduler.Config{
		Address: cfg.Scheduler.Address,
		TLS:     transport.ServerAuthConfig(roots, cfg.Scheduler.ServerName),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	exec := client.NewExecutionContext(cfg.Executor.MaxConcurrentCalls)
	stopCancel := context.AfterFunc(ctx, func() {
		abandoned, cancel := context.WithCancel(context.Background())
		cancel()
		exec.Close(abandoned)
	})

	logger.Debug("environment ready",
		"network", network,
		"scheduler", cfg.Scheduler.Address,
		"credentials", cfg.Credentials.Path,
	)
	return &environment{
		config:  cfg,
		logger:  logger,
		network: network,
		gateway: gateway,
		establisher: session.NewEstablisher(session.Config{
			Gateway: gateway,
			Network: network,
			Policy:  policy,
			Logger:  logger,
		}),
		exec:       exec,
		stopCancel: stopCancel,
	}, nil
}

func shutdownPolicy(cfg *config.Config) (session.ShutdownPolicy, error) {
	pollInterval, err := cfg.PollInterval()
	if err != nil {
		return session.ShutdownPolicy{}, err
	}
	cancelDelay, err := cfg.CancelDelay()
	if err != nil {
		return session.ShutdownPolicy{}, err
	}
	return session.ShutdownPolicy{
		PollInterval: pollInterval,
		PollAttempts: cfg.Shutdown.PollAttempts,
		CancelDelay:  cancelDelay,
	}, nil
}

// Close drains the execution context and releases the scheduler
// channel.
func (e *environment) Close() error {
	e.stopCancel()
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := e.exec.Close(ctx); err != nil {
		e.logger.Warn("abandoning in-flight calls", "error", err)
	}
	return e.gateway.Close()
}

// readPhrase reads the recovery phrase per --phrase-file.
func (p *connectionParams) readPhrase() (*secret.Buffer, error) {
	return cli.ReadPhrase(p.PhraseFile)
}

// saveCredentials persists credentials where later commands find
// them, sealed when the config names recipients.
func (e *environment) saveCredentials(credentials credential.Credentials) error {
	if err := e.config.EnsureRoot(); err != nil {
		return err
	}
	if err := credential.Save(e.config.Credentials.Path, credentials, e.config.Credentials.SealRecipients); err != nil {
		return err
	}
	e.logger.Info("credentials saved",
		"path", e.config.Credentials.Path,
		"credentials", credentials.Fingerprint(),
		"sealed", len(e.config.Credentials.SealRecipients) > 0,
	)
	return nil
}

// connect loads the saved credentials and establishes a session. The
// caller must Shutdown the returned client.
func (e *environment) connect(phrase *secret.Buffer) (*client.BlockingClient, error) {
	credentials, err := credential.Load(e.config.Credentials.Path, e.config.Credentials.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("loading credentials (run 'glalby recover' or 'glalby register' first): %w", err)
	}
	return client.Connect(e.exec, e.establisher, phrase.String(), credentials)
}

// withNode runs operation against a fresh session and writes its
// result as JSON. The session is shut down before returning.
func withNode[T any](ctx context.Context, params *connectionParams, command string, operation func(*client.BlockingClient) (T, error)) error {
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

	blocking, err := env.connect(phrase)
	if err != nil {
		return err
	}
	result, callErr := operation(blocking)
	shutdown := blocking.Shutdown()
	env.logger.Debug("session shut down",
		"session_id", blocking.Session().ID(),
		"graceful", shutdown.Graceful,
		"elapsed", shutdown.Elapsed,
	)
	if callErr != nil {
		return callErr
	}
	return cli.WriteJSON(result)
}
