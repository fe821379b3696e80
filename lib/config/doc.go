// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the glalby client configuration.
//
// Configuration comes from exactly one YAML file, named by the
// GLALBY_CONFIG environment variable or the --config flag. There is no
// discovery and no environment-variable override of individual keys:
// what the file says is what runs. A missing file is not an error for
// the CLI, which then runs on [Default].
//
// The file may carry development and production sections whose
// non-empty fields override the base values when the top-level
// environment matches. Path fields expand ${HOME}, ${GLALBY_ROOT}, and
// ${VAR:-default}.
//
// Sections:
//
//	network: bitcoin
//	scheduler:    {address, ca_file, server_name}
//	shutdown:     {poll_interval, poll_attempts, cancel_delay}
//	executor:     {max_concurrent_calls}
//	log:          {level, format}
//	credentials:  {path, seal_recipients, identity_file}
package config
