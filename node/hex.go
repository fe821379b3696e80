// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/glalby/glalby/lib/sdkerr"
)

// Identifier lengths in bytes.
const (
	NodeIDSize = 33
	HashSize   = 32
)

// ParseHex decodes hex in either case. size is the required decoded
// length, or zero for any length.
func ParseHex(value string, size int) ([]byte, error) {
	decoded, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return nil, fmt.Errorf("not hex: %w", err)
	}
	if size > 0 && len(decoded) != size {
		return nil, fmt.Errorf("decodes to %d bytes, want %d", len(decoded), size)
	}
	return decoded, nil
}

// FormatHex encodes bytes as lowercase hex.
func FormatHex(value []byte) string {
	return hex.EncodeToString(value)
}

// decodeField parses a required hex field and classifies failure as an
// invalid argument of op.
func decodeField(op, field, value string, size int) ([]byte, error) {
	if value == "" {
		return nil, sdkerr.InvalidArgument(op, "%s is required", field)
	}
	decoded, err := ParseHex(value, size)
	if err != nil {
		return nil, sdkerr.InvalidArgument(op, "%s: %w", field, err)
	}
	return decoded, nil
}

// decodeOptional parses an optional hex field.
func decodeOptional(op, field string, value *string, size int) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return decodeField(op, field, *value, size)
}

// formatOptional returns nil for an absent value.
func formatOptional(value []byte) *string {
	if len(value) == 0 {
		return nil
	}
	formatted := FormatHex(value)
	return &formatted
}
