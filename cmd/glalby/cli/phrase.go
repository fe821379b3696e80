// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/glalby/glalby/lib/secret"
)

// ErrNoPhrase is returned when no phrase file is given and stdin is
// not a terminal to prompt on.
var ErrNoPhrase = errors.New("no recovery phrase: pass --phrase-file, or run on a terminal to be prompted")

// ReadPhrase obtains the recovery phrase. A path reads that file ("-"
// reads stdin); an empty path prompts on the terminal without echo.
// The caller owns the returned Buffer.
func ReadPhrase(path string) (*secret.Buffer, error) {
	return readPhrase(path, os.Stdin, os.Stderr)
}

func readPhrase(path string, stdin *os.File, prompt io.Writer) (*secret.Buffer, error) {
	if path != "" {
		phrase, err := secret.ReadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("reading phrase: %w", err)
		}
		return phrase, nil
	}

	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNoPhrase
	}
	fmt.Fprint(prompt, "Recovery phrase: ")
	entered, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	defer secret.Zero(entered)
	if err != nil {
		return nil, fmt.Errorf("reading phrase from terminal: %w", err)
	}

	trimmed := bytes.TrimSpace(entered)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("recovery phrase is empty")
	}
	return secret.NewFromBytes(trimmed)
}
