// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// maxSecretSize bounds how much ReadFrom will buffer. A 24-word
// mnemonic is under 256 bytes.
const maxSecretSize = 64 * 1024

// ReadFromPath reads a secret from path, or from stdin when path is
// "-". Surrounding whitespace is trimmed. The caller owns the returned
// Buffer.
func ReadFromPath(path string) (*Buffer, error) {
	if path == "-" {
		return ReadFrom(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadFrom(file)
}

// ReadFrom reads reader to EOF and returns the trimmed contents in a
// Buffer. Every heap copy made along the way is zeroed.
func ReadFrom(reader io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxSecretSize+1))
	defer Zero(data)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	if len(data) > maxSecretSize {
		return nil, fmt.Errorf("secret exceeds %d bytes", maxSecretSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret is empty")
	}
	return NewFromBytes(trimmed)
}
