// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glalby/glalby/lib/sealed"
	"github.com/glalby/glalby/lib/secret"
)

// Save writes credentials to path with owner-only permissions. With
// recipients, the file is an armored age message to them. The write
// goes through a temporary file and a rename so a crash never leaves a
// truncated blob.
func Save(path string, credentials Credentials, recipients []string) error {
	if credentials.IsZero() {
		return fmt.Errorf("refusing to save empty credentials")
	}

	data := credentials.Blob
	if len(recipients) > 0 {
		sealedData, err := sealed.Seal(credentials.Blob, recipients)
		if err != nil {
			return fmt.Errorf("sealing credentials: %w", err)
		}
		data = sealedData
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(temporary.Name())

	if err := temporary.Chmod(0o600); err != nil {
		temporary.Close()
		return fmt.Errorf("restricting permissions: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("syncing credentials: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing credentials: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("installing credentials: %w", err)
	}
	return nil
}

// Load reads credentials saved by Save. A sealed file is opened with
// the age identity in identityPath; identityPath is ignored for an
// unsealed file.
func Load(path, identityPath string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, err
	}
	if !sealed.IsSealed(data) {
		return Credentials{Blob: data}, nil
	}

	if identityPath == "" {
		return Credentials{}, fmt.Errorf("%s is sealed but no age identity file is configured", path)
	}
	identity, err := secret.ReadFromPath(identityPath)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading age identity: %w", err)
	}
	defer identity.Close()

	opened, err := sealed.Open(data, identity)
	if err != nil {
		return Credentials{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer opened.Close()

	return Credentials{Blob: append([]byte(nil), opened.Bytes()...)}, nil
}
