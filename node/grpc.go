// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"

	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/signer"
	"github.com/glalby/glalby/transport"
)

// Full method names of the node services.
const (
	MethodGetInfo      = "/cln.Node/Getinfo"
	MethodInvoice      = "/cln.Node/Invoice"
	MethodPay          = "/cln.Node/Pay"
	MethodKeySend      = "/cln.Node/KeySend"
	MethodListFunds    = "/cln.Node/ListFunds"
	MethodConnectPeer  = "/cln.Node/ConnectPeer"
	MethodFundChannel  = "/cln.Node/FundChannel"
	MethodNewAddr      = "/cln.Node/NewAddr"
	MethodListInvoices = "/cln.Node/ListInvoices"
	MethodListPays     = "/cln.Node/ListPays"
	MethodSignMessage  = "/cln.Node/SignMessage"
	MethodWithdraw     = "/cln.Node/Withdraw"
	MethodClose        = "/cln.Node/Close"

	MethodStreamHsmRequests = "/greenlight.Node/StreamHsmRequests"
	MethodRespondHsmRequest = "/greenlight.Node/RespondHsmRequest"
)

// Compile-time interface check.
var _ Handle = (*GRPCHandle)(nil)

// DialConfig describes the connection to a scheduled node.
type DialConfig struct {
	// URI is the node address returned by the scheduler.
	URI string

	Identity *transport.Identity

	// Dialer defaults to TCP.
	Dialer transport.Dialer

	// Rune authorizes node calls.
	Rune string

	// Network validates on-chain destinations before they are sent.
	Network bitcoin.Network

	Logger *slog.Logger
}

// GRPCHandle is a Handle over a mutual-TLS gRPC channel.
type GRPCHandle struct {
	conn    *grpc.ClientConn
	network bitcoin.Network
	logger  *slog.Logger
	closed  atomic.Bool
}

// Dial connects to the node at config.URI. The channel connects
// lazily; an unreachable node surfaces on the first call.
func Dial(config DialConfig) (*GRPCHandle, error) {
	if config.Identity == nil {
		return nil, fmt.Errorf("dialing node: no transport identity")
	}
	target, err := transport.TargetFromURI(config.URI)
	if err != nil {
		return nil, err
	}
	conn, err := transport.Dial(transport.DialConfig{
		Target: transport.Passthrough(target),
		TLS:    config.Identity.TLSConfig(),
		Dialer: config.Dialer,
		Rune:   config.Rune,
	})
	if err != nil {
		return nil, err
	}
	return NewGRPCHandle(conn, config.Network, config.Logger), nil
}

// NewGRPCHandle wraps an existing channel. The handle owns conn and
// closes it on Close.
func NewGRPCHandle(conn *grpc.ClientConn, network bitcoin.Network, logger *slog.Logger) *GRPCHandle {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandle{conn: conn, network: network, logger: logger}
}

// invoke performs one unary call and classifies failure as a remote
// error of op.
func invoke[Response any](ctx context.Context, h *GRPCHandle, op, method string, request any) (*Response, error) {
	if h.closed.Load() {
		return nil, sdkerr.InvalidArgument(op, "%w", ErrClosed)
	}
	var response Response
	if err := h.conn.Invoke(ctx, method, request, &response); err != nil {
		return nil, sdkerr.RemoteAPI(op, err)
	}
	return &response, nil
}

func (h *GRPCHandle) GetInfo(ctx context.Context) (*GetInfoResponse, error) {
	response, err := invoke[wireGetInfoResponse](ctx, h, "get_info", MethodGetInfo, &wireEmpty{})
	if err != nil {
		return nil, err
	}
	return response.toResponse(), nil
}

func (h *GRPCHandle) MakeInvoice(ctx context.Context, request MakeInvoiceRequest) (*MakeInvoiceResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireInvoiceResponse](ctx, h, "make_invoice", MethodInvoice, wire)
	if err != nil {
		return nil, err
	}
	return response.toResponse(wire.Label), nil
}

func (h *GRPCHandle) Pay(ctx context.Context, request PayRequest) (*PayResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wirePreimageResponse](ctx, h, "pay", MethodPay, wire)
	if err != nil {
		return nil, err
	}
	return &PayResponse{Preimage: FormatHex(response.PaymentPreimage)}, nil
}

func (h *GRPCHandle) KeySend(ctx context.Context, request KeySendRequest) (*KeySendResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wirePreimageResponse](ctx, h, "keysend", MethodKeySend, wire)
	if err != nil {
		return nil, err
	}
	return &KeySendResponse{PaymentPreimage: FormatHex(response.PaymentPreimage)}, nil
}

func (h *GRPCHandle) ListFunds(ctx context.Context, request ListFundsRequest) (*ListFundsResponse, error) {
	response, err := invoke[wireListFundsResponse](ctx, h, "list_funds", MethodListFunds, &wireListFundsRequest{Spent: request.Spent})
	if err != nil {
		return nil, err
	}
	return response.toResponse(), nil
}

func (h *GRPCHandle) ConnectPeer(ctx context.Context, request ConnectPeerRequest) (*ConnectPeerResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireConnectResponse](ctx, h, "connect_peer", MethodConnectPeer, wire)
	if err != nil {
		return nil, err
	}
	return &ConnectPeerResponse{ID: FormatHex(response.ID)}, nil
}

func (h *GRPCHandle) FundChannel(ctx context.Context, request FundChannelRequest) (*FundChannelResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireFundChannelResponse](ctx, h, "fund_channel", MethodFundChannel, wire)
	if err != nil {
		return nil, err
	}
	return &FundChannelResponse{Txid: FormatHex(response.Txid), ChannelID: FormatHex(response.ChannelID)}, nil
}

func (h *GRPCHandle) NewAddress(ctx context.Context, request NewAddressRequest) (*NewAddressResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireNewAddrResponse](ctx, h, "new_address", MethodNewAddr, wire)
	if err != nil {
		return nil, err
	}
	return &NewAddressResponse{P2TR: response.P2TR, Bech32: response.Bech32, P2SHSegwit: response.P2SHSegwit}, nil
}

func (h *GRPCHandle) ListInvoices(ctx context.Context, request ListInvoicesRequest) (*ListInvoicesResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireListInvoicesResponse](ctx, h, "list_invoices", MethodListInvoices, wire)
	if err != nil {
		return nil, err
	}
	return response.toResponse(), nil
}

func (h *GRPCHandle) ListPayments(ctx context.Context, request ListPaymentsRequest) (*ListPaymentsResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireListPaysResponse](ctx, h, "list_payments", MethodListPays, wire)
	if err != nil {
		return nil, err
	}
	return response.toResponse(), nil
}

func (h *GRPCHandle) SignMessage(ctx context.Context, request SignMessageRequest) (*SignMessageResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireSignMessageResponse](ctx, h, "sign_message", MethodSignMessage, wire)
	if err != nil {
		return nil, err
	}
	return &SignMessageResponse{Signature: FormatHex(response.Signature)}, nil
}

func (h *GRPCHandle) Withdraw(ctx context.Context, request WithdrawRequest) (*WithdrawResponse, error) {
	wire, err := request.toWire(h.network)
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireWithdrawResponse](ctx, h, "withdraw", MethodWithdraw, wire)
	if err != nil {
		return nil, err
	}
	return &WithdrawResponse{Txid: FormatHex(response.Txid), Tx: FormatHex(response.Tx)}, nil
}

func (h *GRPCHandle) CloseChannel(ctx context.Context, request CloseChannelRequest) (*CloseChannelResponse, error) {
	wire, err := request.toWire(h.network)
	if err != nil {
		return nil, err
	}
	response, err := invoke[wireCloseResponse](ctx, h, "close_channel", MethodClose, wire)
	if err != nil {
		return nil, err
	}
	return &CloseChannelResponse{Type: response.Type, Txid: formatOptional(response.Txid)}, nil
}

// SignerStream returns the node's challenge stream. The underlying
// gRPC stream opens on the first Recv and reopens after a failure.
func (h *GRPCHandle) SignerStream(ctx context.Context) (signer.Stream, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &grpcSignerStream{conn: h.conn, logger: h.logger}, nil
}

// Close closes the channel. Later calls fail with ErrClosed.
func (h *GRPCHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := h.conn.Close(); err != nil {
		return fmt.Errorf("closing node channel: %w", err)
	}
	return nil
}

var hsmStreamDesc = &grpc.StreamDesc{
	StreamName:    "StreamHsmRequests",
	ServerStreams: true,
}

// grpcSignerStream adapts the server-streamed challenges and the unary
// response method to signer.Stream.
type grpcSignerStream struct {
	conn   *grpc.ClientConn
	logger *slog.Logger

	mu     sync.Mutex
	stream grpc.ClientStream
	cancel context.CancelFunc
	closed bool
}

// current returns the open stream, opening one if needed. The stream
// lives on its own context so that one Recv's deadline does not end
// the subscription for the next.
func (s *grpcSignerStream) current() (grpc.ClientStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.stream != nil {
		return s.stream, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := s.conn.NewStream(ctx, hsmStreamDesc, MethodStreamHsmRequests)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := stream.SendMsg(&wireEmpty{}); err != nil {
		cancel()
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, err
	}
	s.stream = stream
	s.cancel = cancel
	s.logger.Debug("signer stream opened")
	return stream, nil
}

// reset discards stream if it is still the current one.
func (s *grpcSignerStream) reset(stream grpc.ClientStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != stream {
		return
	}
	s.cancel()
	s.stream = nil
	s.cancel = nil
}

func (s *grpcSignerStream) Recv(ctx context.Context) (signer.Challenge, error) {
	stream, err := s.current()
	if err != nil {
		return signer.Challenge{}, fmt.Errorf("opening signer stream: %w", err)
	}

	// RecvMsg has no context of its own; abandon the stream if the
	// caller gives up.
	stop := context.AfterFunc(ctx, func() { s.reset(stream) })
	defer stop()

	var wire wireChallenge
	if err := stream.RecvMsg(&wire); err != nil {
		s.reset(stream)
		if ctx.Err() != nil {
			return signer.Challenge{}, ctx.Err()
		}
		return signer.Challenge{}, fmt.Errorf("receiving signer challenge: %w", err)
	}
	return signer.Challenge{ID: wire.RequestID, Kind: signer.Kind(wire.Kind), Payload: wire.Payload}, nil
}

func (s *grpcSignerStream) Send(ctx context.Context, response signer.Response) error {
	wire := &wireChallengeResponse{
		RequestID: response.ID,
		Signature: response.Signature,
		Error:     response.Error,
	}
	if err := s.conn.Invoke(ctx, MethodRespondHsmRequest, wire, &wireEmpty{}); err != nil {
		return fmt.Errorf("responding to challenge %d: %w", response.ID, err)
	}
	return nil
}

// Close ends the subscription. The channel itself belongs to the
// handle.
func (s *grpcSignerStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.stream = nil
		s.cancel = nil
	}
	return nil
}
