// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"errors"

	"github.com/glalby/glalby/signer"
)

// ErrClosed is returned by calls on a closed handle.
var ErrClosed = errors.New("node handle is closed")

// Client is the node operation surface.
type Client interface {
	GetInfo(ctx context.Context) (*GetInfoResponse, error)
	MakeInvoice(ctx context.Context, request MakeInvoiceRequest) (*MakeInvoiceResponse, error)
	Pay(ctx context.Context, request PayRequest) (*PayResponse, error)
	KeySend(ctx context.Context, request KeySendRequest) (*KeySendResponse, error)
	ListFunds(ctx context.Context, request ListFundsRequest) (*ListFundsResponse, error)
	ConnectPeer(ctx context.Context, request ConnectPeerRequest) (*ConnectPeerResponse, error)
	FundChannel(ctx context.Context, request FundChannelRequest) (*FundChannelResponse, error)
	NewAddress(ctx context.Context, request NewAddressRequest) (*NewAddressResponse, error)
	ListInvoices(ctx context.Context, request ListInvoicesRequest) (*ListInvoicesResponse, error)
	ListPayments(ctx context.Context, request ListPaymentsRequest) (*ListPaymentsResponse, error)
	SignMessage(ctx context.Context, request SignMessageRequest) (*SignMessageResponse, error)
	Withdraw(ctx context.Context, request WithdrawRequest) (*WithdrawResponse, error)
	CloseChannel(ctx context.Context, request CloseChannelRequest) (*CloseChannelResponse, error)
}

// Handle is a live connection to one node. It is safe for concurrent
// use. SignerStream opens the node's challenge stream; the session
// opens it once and gives it to the signer task. Close releases the
// connection; calls after Close fail with ErrClosed.
type Handle interface {
	Client
	SignerStream(ctx context.Context) (signer.Stream, error)
	Close() error
}
