// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/glalby/glalby/lib/clock"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/node"
	"github.com/glalby/glalby/signer"
)

// Compile-time interface check.
var _ node.Client = (*Session)(nil)

// Session is a live node session. Node calls may be made from any
// number of goroutines until Shutdown.
type Session struct {
	id     string
	handle node.Handle
	signal *signer.ShutdownSignal
	task   *signer.Task
	policy ShutdownPolicy
	clock  clock.Clock
	logger *slog.Logger

	mu sync.Mutex
	// closing is set by Shutdown; new calls are refused from then on.
	closing bool
	// drained is set once Shutdown has finished waiting for the
	// signer; the handle closes when it is set and inFlight is zero.
	drained  bool
	inFlight int

	closeOnce sync.Once

	// shutdownResult is the first Shutdown's outcome, written once
	// under shutdownOnce.
	shutdownOnce   sync.Once
	shutdownResult ShutdownResult
}

func newSession(handle node.Handle, signal *signer.ShutdownSignal, policy ShutdownPolicy, clk clock.Clock, logger *slog.Logger) *Session {
	id := ulid.Make().String()
	return &Session{
		id:     id,
		handle: handle,
		signal: signal,
		policy: policy,
		clock:  clk,
		logger: logger.With("session", id),
	}
}

// ID is a unique, time-ordered session identifier for logs.
func (s *Session) ID() string {
	return s.id
}

// SignerState reports the signer task's lifecycle state.
func (s *Session) SignerState() signer.State {
	return s.task.State()
}

// acquire registers an in-flight call of op, or fails once the
// session is shutting down.
func (s *Session) acquire(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return sdkerr.InvalidArgument(op, "session is shut down")
	}
	s.inFlight++
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.inFlight--
	closeNow := s.drained && s.inFlight == 0
	s.mu.Unlock()
	if closeNow {
		s.closeHandle()
	}
}

func (s *Session) closeHandle() {
	s.closeOnce.Do(func() {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn("closing node handle", "error", err)
			return
		}
		s.logger.Debug("node handle closed")
	})
}

// guard runs call as an in-flight call of op and classifies its
// failure.
func guard[Response any](s *Session, op string, call func() (*Response, error)) (*Response, error) {
	if err := s.acquire(op); err != nil {
		return nil, err
	}
	defer s.release()
	response, err := call()
	if err != nil {
		return nil, sdkerr.RemoteAPI(op, err)
	}
	return response, nil
}

func (s *Session) GetInfo(ctx context.Context) (*node.GetInfoResponse, error) {
	return guard(s, "get_info", func() (*node.GetInfoResponse, error) {
		return s.handle.GetInfo(ctx)
	})
}

func (s *Session) MakeInvoice(ctx context.Context, request node.MakeInvoiceRequest) (*node.MakeInvoiceResponse, error) {
	return guard(s, "make_invoice", func() (*node.MakeInvoiceResponse, error) {
		return s.handle.MakeInvoice(ctx, request)
	})
}

func (s *Session) Pay(ctx context.Context, request node.PayRequest) (*node.PayResponse, error) {
	return guard(s, "pay", func() (*node.PayResponse, error) {
		return s.handle.Pay(ctx, request)
	})
}

func (s *Session) KeySend(ctx context.Context, request node.KeySendRequest) (*node.KeySendResponse, error) {
	return guard(s, "keysend", func() (*node.KeySendResponse, error) {
		return s.handle.KeySend(ctx, request)
	})
}

func (s *Session) ListFunds(ctx context.Context, request node.ListFundsRequest) (*node.ListFundsResponse, error) {
	return guard(s, "list_funds", func() (*node.ListFundsResponse, error) {
		return s.handle.ListFunds(ctx, request)
	})
}

func (s *Session) ConnectPeer(ctx context.Context, request node.ConnectPeerRequest) (*node.ConnectPeerResponse, error) {
	return guard(s, "connect_peer", func() (*node.ConnectPeerResponse, error) {
		return s.handle.ConnectPeer(ctx, request)
	})
}

func (s *Session) FundChannel(ctx context.Context, request node.FundChannelRequest) (*node.FundChannelResponse, error) {
	return guard(s, "fund_channel", func() (*node.FundChannelResponse, error) {
		return s.handle.FundChannel(ctx, request)
	})
}

func (s *Session) NewAddress(ctx context.Context, request node.NewAddressRequest) (*node.NewAddressResponse, error) {
	return guard(s, "new_address", func() (*node.NewAddressResponse, error) {
		return s.handle.NewAddress(ctx, request)
	})
}

func (s *Session) ListInvoices(ctx context.Context, request node.ListInvoicesRequest) (*node.ListInvoicesResponse, error) {
	return guard(s, "list_invoices", func() (*node.ListInvoicesResponse, error) {
		return s.handle.ListInvoices(ctx, request)
	})
}

func (s *Session) ListPayments(ctx context.Context, request node.ListPaymentsRequest) (*node.ListPaymentsResponse, error) {
	return guard(s, "list_payments", func() (*node.ListPaymentsResponse, error) {
		return s.handle.ListPayments(ctx, request)
	})
}

func (s *Session) SignMessage(ctx context.Context, request node.SignMessageRequest) (*node.SignMessageResponse, error) {
	return guard(s, "sign_message", func() (*node.SignMessageResponse, error) {
		return s.handle.SignMessage(ctx, request)
	})
}

func (s *Session) Withdraw(ctx context.Context, request node.WithdrawRequest) (*node.WithdrawResponse, error) {
	return guard(s, "withdraw", func() (*node.WithdrawResponse, error) {
		return s.handle.Withdraw(ctx, request)
	})
}

func (s *Session) CloseChannel(ctx context.Context, request node.CloseChannelRequest) (*node.CloseChannelResponse, error) {
	return guard(s, "close_channel", func() (*node.CloseChannelResponse, error) {
		return s.handle.CloseChannel(ctx, request)
	})
}
