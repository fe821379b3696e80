// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glalby/glalby/lib/sdkerr"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"pay", "", 3},
		{"invoice", "invoice", 0},
		{"invoce", "invoice", 1},
		{"keysned", "keysend", 2},
		{"funds", "fund-channel", 8},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"exit error", fmt.Errorf("wrapped: %w", &ExitError{Code: 7}), 7},
		{"invalid argument", sdkerr.InvalidArgument("pay", "bolt11 is required"), ExitInvalidArgument},
		{"remote", sdkerr.RemoteAPI("pay", errors.New("no route")), ExitRemote},
		{"other", errors.New("disk full"), ExitFailure},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ExitCodeFor(test.err); got != test.want {
				t.Errorf("ExitCodeFor = %d, want %d", got, test.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := newLogger(&buffer, false, "warn", "auto")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "node_id", "02ab")
	output := buffer.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info record passed a warn logger: %s", output)
	}
	if !strings.HasPrefix(output, "{") || !strings.Contains(output, `"node_id":"02ab"`) {
		t.Errorf("auto format off a terminal should be JSON, got %s", output)
	}

	buffer.Reset()
	logger, err = newLogger(&buffer, true, "info", "auto")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("shown")
	if !strings.Contains(buffer.String(), "msg=shown") {
		t.Errorf("auto format on a terminal should be text, got %s", buffer.String())
	}

	if _, err := newLogger(&buffer, false, "loud", "auto"); err == nil {
		t.Error("newLogger accepted level loud")
	}
	if _, err := newLogger(&buffer, false, "info", "xml"); err == nil {
		t.Error("newLogger accepted format xml")
	}
}

func TestReadPhrase_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrase")
	if err := os.WriteFile(path, []byte("  abandon about \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	phrase, err := ReadPhrase(path)
	if err != nil {
		t.Fatalf("ReadPhrase: %v", err)
	}
	defer phrase.Close()
	if phrase.String() != "abandon about" {
		t.Errorf("phrase = %q, want trimmed contents", phrase.String())
	}
}

func TestReadPhrase_NoTerminal(t *testing.T) {
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	defer writer.Close()

	var prompt bytes.Buffer
	if _, err := readPhrase("", reader, &prompt); !errors.Is(err, ErrNoPhrase) {
		t.Errorf("readPhrase = %v, want ErrNoPhrase", err)
	}
	if prompt.Len() != 0 {
		t.Errorf("prompted on a pipe: %q", prompt.String())
	}
}
