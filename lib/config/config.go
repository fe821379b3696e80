// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable that points at the config
// file.
const EnvVar = "GLALBY_CONFIG"

// Environment selects which override section applies.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Networks lists the accepted network names.
var Networks = []string{"bitcoin", "testnet", "signet", "regtest"}

// Config is the complete client configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Root is the base directory for client state. Other paths may
	// reference it as ${GLALBY_ROOT}.
	Root string `yaml:"root"`

	// Network is the Bitcoin network the node runs on.
	Network string `yaml:"network"`

	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Shutdown    ShutdownConfig    `yaml:"shutdown"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Log         LogConfig         `yaml:"log"`
	Credentials CredentialsConfig `yaml:"credentials"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the per-environment fields. Empty fields leave the
// base value alone.
type Overrides struct {
	Network   string           `yaml:"network,omitempty"`
	Scheduler *SchedulerConfig `yaml:"scheduler,omitempty"`
	Log       *LogConfig       `yaml:"log,omitempty"`
}

// SchedulerConfig locates the scheduling service.
type SchedulerConfig struct {
	// Address is the gRPC target, host:port.
	Address string `yaml:"address"`

	// CAFile is a PEM bundle used to verify the scheduler. Empty means
	// the system roots.
	CAFile string `yaml:"ca_file"`

	// ServerName overrides the TLS server name. Empty means the host
	// part of Address.
	ServerName string `yaml:"server_name"`
}

// ShutdownConfig bounds the graceful-shutdown grace window.
type ShutdownConfig struct {
	PollInterval string `yaml:"poll_interval"`
	PollAttempts int    `yaml:"poll_attempts"`
	CancelDelay  string `yaml:"cancel_delay"`
}

// ExecutorConfig sizes the blocking-call executor.
type ExecutorConfig struct {
	MaxConcurrentCalls int64 `yaml:"max_concurrent_calls"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is auto, text, or json. Auto picks text on a terminal.
	Format string `yaml:"format"`
}

// CredentialsConfig says where the CLI keeps the credential blob.
type CredentialsConfig struct {
	Path string `yaml:"path"`

	// SealRecipients, when set, makes the CLI write the blob as an
	// age message to these recipients.
	SealRecipients []string `yaml:"seal_recipients"`

	// IdentityFile holds the age private key used to open a sealed
	// blob.
	IdentityFile string `yaml:"identity_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment: Production,
		Root:        "${HOME}/.glalby",
		Network:     "bitcoin",
		Scheduler: SchedulerConfig{
			Address: "scheduler.gl.blckstrm.com:2601",
		},
		Shutdown: ShutdownConfig{
			PollInterval: "1s",
			PollAttempts: 5,
			CancelDelay:  "1s",
		},
		Executor: ExecutorConfig{
			MaxConcurrentCalls: 64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Credentials: CredentialsConfig{
			Path: "${GLALBY_ROOT}/credentials",
		},
	}
}

// Load reads the file named by GLALBY_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your glalby.yaml or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile reads path over Default, applies the environment section,
// and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// Resolve loads explicitPath when set, else GLALBY_CONFIG when set,
// else Default with variables expanded.
func Resolve(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return LoadFile(explicitPath)
	}
	if os.Getenv(EnvVar) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Network != "" {
		c.Network = overrides.Network
	}
	if scheduler := overrides.Scheduler; scheduler != nil {
		if scheduler.Address != "" {
			c.Scheduler.Address = scheduler.Address
		}
		if scheduler.CAFile != "" {
			c.Scheduler.CAFile = scheduler.CAFile
		}
		if scheduler.ServerName != "" {
			c.Scheduler.ServerName = scheduler.ServerName
		}
	}
	if log := overrides.Log; log != nil {
		if log.Level != "" {
			c.Log.Level = log.Level
		}
		if log.Format != "" {
			c.Log.Format = log.Format
		}
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
	vars["GLALBY_ROOT"] = c.Root

	c.Scheduler.CAFile = expandVars(c.Scheduler.CAFile, vars)
	c.Credentials.Path = expandVars(c.Credentials.Path, vars)
	c.Credentials.IdentityFile = expandVars(c.Credentials.IdentityFile, vars)
}

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// PollInterval parses shutdown.poll_interval.
func (c *Config) PollInterval() (time.Duration, error) {
	return parsePositive("shutdown.poll_interval", c.Shutdown.PollInterval)
}

// CancelDelay parses shutdown.cancel_delay.
func (c *Config) CancelDelay() (time.Duration, error) {
	return parsePositive("shutdown.cancel_delay", c.Shutdown.CancelDelay)
}

func parsePositive(field, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return duration, nil
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if !slices.Contains(Networks, c.Network) {
		errs = append(errs, fmt.Errorf("network must be one of %v, got %q", Networks, c.Network))
	}
	if c.Scheduler.Address == "" {
		errs = append(errs, fmt.Errorf("scheduler.address is required"))
	}
	if _, err := c.PollInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.CancelDelay(); err != nil {
		errs = append(errs, err)
	}
	if c.Shutdown.PollAttempts < 1 {
		errs = append(errs, fmt.Errorf("shutdown.poll_attempts must be at least 1, got %d", c.Shutdown.PollAttempts))
	}
	if c.Executor.MaxConcurrentCalls < 1 {
		errs = append(errs, fmt.Errorf("executor.max_concurrent_calls must be at least 1, got %d", c.Executor.MaxConcurrentCalls))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level))
	}
	if !slices.Contains([]string{"auto", "text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be auto, text, or json, got %q", c.Log.Format))
	}
	if c.Credentials.Path == "" {
		errs = append(errs, fmt.Errorf("credentials.path is required"))
	}
	if len(c.Credentials.SealRecipients) > 0 && c.Credentials.IdentityFile == "" {
		errs = append(errs, fmt.Errorf("credentials.identity_file is required when seal_recipients is set"))
	}

	return errors.Join(errs...)
}

// EnsureRoot creates the state directory with owner-only permissions.
func (c *Config) EnsureRoot() error {
	for _, dir := range []string{c.Root, filepath.Dir(c.Credentials.Path)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
