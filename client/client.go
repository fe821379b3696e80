// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"

	"github.com/glalby/glalby/credential"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/node"
	"github.com/glalby/glalby/session"
)

// run executes work on exec, reporting a closed execution context as
// an invalid argument of op.
func run[T any](exec *ExecutionContext, op string, work func(ctx context.Context) (T, error)) (T, error) {
	value, err := call(exec, work)
	if errors.Is(err, ErrClosed) {
		return value, sdkerr.InvalidArgument(op, "%w", err)
	}
	return value, err
}

// Recover obtains fresh credentials for the node phrase derives.
func Recover(exec *ExecutionContext, establisher *session.Establisher, phrase string) (credential.Credentials, error) {
	return run(exec, "recover", func(ctx context.Context) (credential.Credentials, error) {
		return establisher.Recover(ctx, phrase)
	})
}

// Register creates the node phrase derives.
func Register(exec *ExecutionContext, establisher *session.Establisher, phrase, inviteCode string) (credential.Credentials, error) {
	return run(exec, "register", func(ctx context.Context) (credential.Credentials, error) {
		return establisher.Register(ctx, phrase, inviteCode)
	})
}

// Connect establishes a session and wraps it in a BlockingClient.
func Connect(exec *ExecutionContext, establisher *session.Establisher, phrase string, credentials credential.Credentials) (*BlockingClient, error) {
	established, err := run(exec, "establish", func(ctx context.Context) (*session.Session, error) {
		return establisher.Establish(ctx, phrase, credentials)
	})
	if err != nil {
		return nil, err
	}
	return &BlockingClient{session: established, exec: exec}, nil
}

// BlockingClient makes node calls on a session from any goroutine.
// Every method blocks until the call completes.
type BlockingClient struct {
	session *session.Session
	exec    *ExecutionContext
}

// Session returns the underlying session.
func (c *BlockingClient) Session() *session.Session {
	return c.session
}

func (c *BlockingClient) GetInfo() (*node.GetInfoResponse, error) {
	return run(c.exec, "get_info", func(ctx context.Context) (*node.GetInfoResponse, error) {
		return c.session.GetInfo(ctx)
	})
}

func (c *BlockingClient) MakeInvoice(request node.MakeInvoiceRequest) (*node.MakeInvoiceResponse, error) {
	return run(c.exec, "make_invoice", func(ctx context.Context) (*node.MakeInvoiceResponse, error) {
		return c.session.MakeInvoice(ctx, request)
	})
}

func (c *BlockingClient) Pay(request node.PayRequest) (*node.PayResponse, error) {
	return run(c.exec, "pay", func(ctx context.Context) (*node.PayResponse, error) {
		return c.session.Pay(ctx, request)
	})
}

func (c *BlockingClient) KeySend(request node.KeySendRequest) (*node.KeySendResponse, error) {
	return run(c.exec, "keysend", func(ctx context.Context) (*node.KeySendResponse, error) {
		return c.session.KeySend(ctx, request)
	})
}

func (c *BlockingClient) ListFunds(request node.ListFundsRequest) (*node.ListFundsResponse, error) {
	return run(c.exec, "list_funds", func(ctx context.Context) (*node.ListFundsResponse, error) {
		return c.session.ListFunds(ctx, request)
	})
}

func (c *BlockingClient) ConnectPeer(request node.ConnectPeerRequest) (*node.ConnectPeerResponse, error) {
	return run(c.exec, "connect_peer", func(ctx context.Context) (*node.ConnectPeerResponse, error) {
		return c.session.ConnectPeer(ctx, request)
	})
}

func (c *BlockingClient) FundChannel(request node.FundChannelRequest) (*node.FundChannelResponse, error) {
	return run(c.exec, "fund_channel", func(ctx context.Context) (*node.FundChannelResponse, error) {
		return c.session.FundChannel(ctx, request)
	})
}

func (c *BlockingClient) NewAddress(request node.NewAddressRequest) (*node.NewAddressResponse, error) {
	return run(c.exec, "new_address", func(ctx context.Context) (*node.NewAddressResponse, error) {
		return c.session.NewAddress(ctx, request)
	})
}

func (c *BlockingClient) ListInvoices(request node.ListInvoicesRequest) (*node.ListInvoicesResponse, error) {
	return run(c.exec, "list_invoices", func(ctx context.Context) (*node.ListInvoicesResponse, error) {
		return c.session.ListInvoices(ctx, request)
	})
}

func (c *BlockingClient) ListPayments(request node.ListPaymentsRequest) (*node.ListPaymentsResponse, error) {
	return run(c.exec, "list_payments", func(ctx context.Context) (*node.ListPaymentsResponse, error) {
		return c.session.ListPayments(ctx, request)
	})
}

func (c *BlockingClient) SignMessage(request node.SignMessageRequest) (*node.SignMessageResponse, error) {
	return run(c.exec, "sign_message", func(ctx context.Context) (*node.SignMessageResponse, error) {
		return c.session.SignMessage(ctx, request)
	})
}

func (c *BlockingClient) Withdraw(request node.WithdrawRequest) (*node.WithdrawResponse, error) {
	return run(c.exec, "withdraw", func(ctx context.Context) (*node.WithdrawResponse, error) {
		return c.session.Withdraw(ctx, request)
	})
}

// CloseChannel closes a channel. It does not close the client; see
// Shutdown.
func (c *BlockingClient) CloseChannel(request node.CloseChannelRequest) (*node.CloseChannelResponse, error) {
	return run(c.exec, "close_channel", func(ctx context.Context) (*node.CloseChannelResponse, error) {
		return c.session.CloseChannel(ctx, request)
	})
}

// Shutdown ends the session. It runs on the calling goroutine so that
// it works even after the execution context is closed.
func (c *BlockingClient) Shutdown() session.ShutdownResult {
	return c.session.Shutdown()
}
