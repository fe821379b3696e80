// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package sdkerr

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestInvalidArgument(t *testing.T) {
	err := fmt.Errorf("establishing: %w", InvalidArgument("establish", "phrase has %d words", 11))

	if !IsInvalidArgument(err) {
		t.Fatal("IsInvalidArgument = false through a wrap")
	}
	if IsRemoteAPI(err) {
		t.Fatal("IsRemoteAPI = true for an invalid argument")
	}
	if !strings.Contains(err.Error(), "phrase has 11 words") {
		t.Errorf("Error() = %q, missing cause", err)
	}
}

func TestRemoteAPI_RendersChain(t *testing.T) {
	root := status.Error(codes.PermissionDenied, "invite code already used")
	err := RemoteAPI("register", fmt.Errorf("calling scheduler: %w", root))

	if !IsRemoteAPI(err) {
		t.Fatal("IsRemoteAPI = false")
	}
	message := err.Error()
	for _, want := range []string{"register", "calling scheduler", "invite code already used"} {
		if !strings.Contains(message, want) {
			t.Errorf("Error() = %q, missing %q", message, want)
		}
	}
	var classified *Error
	if !errors.As(err, &classified) || classified.Kind != KindRemoteAPI {
		t.Fatalf("errors.As did not find a RemoteAPI *Error in %v", err)
	}
}

func TestRemoteAPI_KeepsExistingClassification(t *testing.T) {
	inner := InvalidArgument("pay", "bolt11 is empty")
	err := RemoteAPI("pay", inner)

	if !IsInvalidArgument(err) {
		t.Fatal("RemoteAPI relabelled an InvalidArgument")
	}
	if RemoteAPI("pay", nil) != nil {
		t.Fatal("RemoteAPI(nil) != nil")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", RemoteAPI("getinfo", status.Error(codes.Unavailable, "node restarting")), true},
		{"deadline", RemoteAPI("getinfo", status.Error(codes.DeadlineExceeded, "slow")), true},
		{"permission", RemoteAPI("getinfo", status.Error(codes.PermissionDenied, "no")), false},
		{"no status", RemoteAPI("getinfo", io.EOF), false},
		{"invalid argument", InvalidArgument("getinfo", "bad"), false},
		{"nil", nil, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Retryable(test.err); got != test.want {
				t.Errorf("Retryable() = %v, want %v", got, test.want)
			}
		})
	}
}
