// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package sdkerr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies an Error.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindRemoteAPI
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindRemoteAPI:
		return "greenlight api"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRemoteAPI       = errors.New("greenlight api error")
)

// Error is a classified failure of operation Op.
//
//	var sdkErr *sdkerr.Error
//	if errors.As(err, &sdkErr) && sdkErr.Kind == sdkerr.KindRemoteAPI { ... }
type Error struct {
	Kind Kind

	// Op names the failing operation ("establish", "pay", ...).
	Op string

	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrRemoteAPI:
		return e.Kind == KindRemoteAPI
	}
	return false
}

// InvalidArgument returns an Error of KindInvalidArgument with a
// formatted cause. %w verbs in format are honored.
func InvalidArgument(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

// RemoteAPI classifies err as a remote failure of op. If err already
// carries a classification it is returned unchanged, so layers can
// wrap without re-labelling an InvalidArgument raised further down.
func RemoteAPI(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: KindRemoteAPI, Op: op, Err: err}
}

// IsInvalidArgument reports whether err is classified InvalidArgument.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsRemoteAPI reports whether err is classified RemoteAPI.
func IsRemoteAPI(err error) bool {
	return errors.Is(err, ErrRemoteAPI)
}

// Retryable reports whether err is a remote failure whose gRPC status
// suggests the same call may succeed later.
func Retryable(err error) bool {
	if !IsRemoteAPI(err) {
		return false
	}
	var withStatus interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &withStatus) {
		return false
	}
	switch withStatus.GRPCStatus().Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}
