// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/signer"
)

// Compile-time interface check.
var _ Handle = (*MemoryHandle)(nil)

// MemoryHandle is an in-process node. It keeps invoices, payments,
// peers and channels in memory, and routes every operation that needs
// the node key through its signer stream, so a session built on it
// exercises the real signer task. Used by tests and local demos.
type MemoryHandle struct {
	// OnCall, when set before first use, observes every operation
	// name as it starts.
	OnCall func(op string)

	info    GetInfoResponse
	network bitcoin.Network
	stream  *signer.MemoryStream

	// signMu serializes challenges so responses pair with requests.
	signMu        sync.Mutex
	nextChallenge uint64

	mu         sync.Mutex
	closed     bool
	closeCount int
	calls      map[string]int
	invoices   []ListInvoicesInvoice
	preimages  map[string][]byte
	payments   []ListPaymentsPayment
	peers      map[string]bool
	channels   []ListFundsChannel
	outputs    []ListFundsOutput
	clock      uint64
}

// NewMemoryHandle returns a node that reports info from GetInfo.
func NewMemoryHandle(info GetInfoResponse, network bitcoin.Network) *MemoryHandle {
	return &MemoryHandle{
		info:      info,
		network:   network,
		stream:    signer.NewMemoryStream(1),
		calls:     make(map[string]int),
		preimages: make(map[string][]byte),
		peers:     make(map[string]bool),
	}
}

// Deposit adds a confirmed on-chain output of amountMsat.
func (h *MemoryHandle) Deposit(amountMsat uint64) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	txid := randomBytes(HashSize)
	h.outputs = append(h.outputs, ListFundsOutput{
		Txid:         FormatHex(txid),
		AmountMsat:   &amountMsat,
		Scriptpubkey: FormatHex(randomBytes(22)),
		Status:       OutputConfirmed,
	})
	return FormatHex(txid)
}

// Calls returns how many times op has started.
func (h *MemoryHandle) Calls(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[op]
}

// CloseCount returns how many times Close has been called.
func (h *MemoryHandle) CloseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeCount
}

// Stream is the node side of the signer stream.
func (h *MemoryHandle) Stream() *signer.MemoryStream {
	return h.stream
}

// begin records op and fails if the handle is closed.
func (h *MemoryHandle) begin(op string) error {
	if h.OnCall != nil {
		h.OnCall(op)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[op]++
	if h.closed {
		return sdkerr.InvalidArgument(op, "%w", ErrClosed)
	}
	h.clock++
	return nil
}

// challenge asks the signer to sign payload and waits for its answer.
func (h *MemoryHandle) challenge(ctx context.Context, op string, kind signer.Kind, payload []byte) ([]byte, error) {
	h.signMu.Lock()
	defer h.signMu.Unlock()

	h.nextChallenge++
	id := h.nextChallenge
	if err := h.stream.Push(ctx, signer.Challenge{ID: id, Kind: kind, Payload: payload}); err != nil {
		return nil, sdkerr.RemoteAPI(op, fmt.Errorf("sending challenge to signer: %w", err))
	}
	for {
		select {
		case response := <-h.stream.Responses():
			if response.ID != id {
				continue
			}
			if response.Error != "" {
				return nil, sdkerr.RemoteAPI(op, fmt.Errorf("signer refused: %s", response.Error))
			}
			return response.Signature, nil
		case <-ctx.Done():
			return nil, sdkerr.RemoteAPI(op, ctx.Err())
		case <-h.stream.Closed():
			return nil, sdkerr.RemoteAPI(op, signer.ErrStreamClosed)
		}
	}
}

func (h *MemoryHandle) GetInfo(ctx context.Context) (*GetInfoResponse, error) {
	if err := h.begin("get_info"); err != nil {
		return nil, err
	}
	info := h.info
	return &info, nil
}

func (h *MemoryHandle) MakeInvoice(ctx context.Context, request MakeInvoiceRequest) (*MakeInvoiceResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("make_invoice"); err != nil {
		return nil, err
	}

	preimage := randomBytes(HashSize)
	hash := sha256.Sum256(preimage)
	paymentHash := FormatHex(hash[:])
	bolt11 := "lnmem1" + paymentHash

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, invoice := range h.invoices {
		if invoice.Label == wire.Label {
			return nil, sdkerr.RemoteAPI("make_invoice", fmt.Errorf("duplicate label %q", wire.Label))
		}
	}
	created := uint64(len(h.invoices) + 1)
	description := wire.Description
	amount := wire.AmountMsat
	h.invoices = append(h.invoices, ListInvoicesInvoice{
		Label:        wire.Label,
		Description:  &description,
		PaymentHash:  paymentHash,
		Status:       InvoiceUnpaid,
		ExpiresAt:    h.clock + 3600,
		AmountMsat:   &amount,
		Bolt11:       &bolt11,
		CreatedIndex: &created,
	})
	h.preimages[paymentHash] = preimage
	return &MakeInvoiceResponse{Bolt11: bolt11, PaymentHash: paymentHash, Label: wire.Label}, nil
}

func (h *MemoryHandle) Pay(ctx context.Context, request PayRequest) (*PayResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("pay"); err != nil {
		return nil, err
	}

	h.mu.Lock()
	var invoice *ListInvoicesInvoice
	for index := range h.invoices {
		if h.invoices[index].Bolt11 != nil && *h.invoices[index].Bolt11 == wire.Bolt11 {
			invoice = &h.invoices[index]
			break
		}
	}
	if invoice == nil {
		h.mu.Unlock()
		return nil, sdkerr.RemoteAPI("pay", fmt.Errorf("unknown invoice"))
	}
	if invoice.Status == InvoicePaid {
		h.mu.Unlock()
		return nil, sdkerr.RemoteAPI("pay", fmt.Errorf("invoice already paid"))
	}
	paymentHash := invoice.PaymentHash
	amount := wire.AmountMsat
	if amount == nil {
		amount = invoice.AmountMsat
	}
	h.mu.Unlock()

	hash, _ := ParseHex(paymentHash, HashSize)
	if _, err := h.challenge(ctx, "pay", signer.KindDigest, hash); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	preimage := h.preimages[paymentHash]
	for index := range h.invoices {
		if h.invoices[index].PaymentHash == paymentHash {
			paidAt := h.clock
			h.invoices[index].Status = InvoicePaid
			h.invoices[index].PaidAt = &paidAt
			h.invoices[index].AmountReceivedMsat = amount
			h.invoices[index].PaymentPreimage = formatOptional(preimage)
		}
	}
	h.recordPaymentLocked(paymentHash, nil, &wire.Bolt11, amount, preimage)
	return &PayResponse{Preimage: FormatHex(preimage)}, nil
}

func (h *MemoryHandle) KeySend(ctx context.Context, request KeySendRequest) (*KeySendResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("keysend"); err != nil {
		return nil, err
	}

	preimage := randomBytes(HashSize)
	hash := sha256.Sum256(preimage)
	if _, err := h.challenge(ctx, "keysend", signer.KindDigest, hash[:]); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	destination := FormatHex(wire.Destination)
	h.recordPaymentLocked(FormatHex(hash[:]), &destination, nil, wire.AmountMsat, preimage)
	if wire.Label != nil {
		h.payments[len(h.payments)-1].Label = wire.Label
	}
	return &KeySendResponse{PaymentPreimage: FormatHex(preimage)}, nil
}

func (h *MemoryHandle) recordPaymentLocked(paymentHash string, destination, bolt11 *string, amount *uint64, preimage []byte) {
	completed := h.clock
	h.payments = append(h.payments, ListPaymentsPayment{
		PaymentHash:    paymentHash,
		Status:         int32(PaymentComplete),
		Destination:    destination,
		CreatedAt:      h.clock,
		CompletedAt:    &completed,
		Bolt11:         bolt11,
		AmountMsat:     amount,
		AmountSentMsat: amount,
		Preimage:       formatOptional(preimage),
	})
}

func (h *MemoryHandle) ListFunds(ctx context.Context, request ListFundsRequest) (*ListFundsResponse, error) {
	if err := h.begin("list_funds"); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	response := &ListFundsResponse{
		Outputs:  make([]ListFundsOutput, 0, len(h.outputs)),
		Channels: append([]ListFundsChannel(nil), h.channels...),
	}
	includeSpent := request.Spent != nil && *request.Spent
	for _, output := range h.outputs {
		if output.Status == OutputSpent && !includeSpent {
			continue
		}
		response.Outputs = append(response.Outputs, output)
	}
	if response.Channels == nil {
		response.Channels = []ListFundsChannel{}
	}
	return response, nil
}

func (h *MemoryHandle) ConnectPeer(ctx context.Context, request ConnectPeerRequest) (*ConnectPeerResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("connect_peer"); err != nil {
		return nil, err
	}
	id := FormatHex(wire.ID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[id] = true
	return &ConnectPeerResponse{ID: id}, nil
}

func (h *MemoryHandle) FundChannel(ctx context.Context, request FundChannelRequest) (*FundChannelResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("fund_channel"); err != nil {
		return nil, err
	}
	id := FormatHex(wire.ID)

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.peers[id] {
		return nil, sdkerr.RemoteAPI("fund_channel", fmt.Errorf("peer %s is not connected", id))
	}
	txid := FormatHex(randomBytes(HashSize))
	channelID := FormatHex(randomBytes(HashSize))
	h.channels = append(h.channels, ListFundsChannel{
		PeerID:        id,
		OurAmountMsat: wire.AmountMsat,
		AmountMsat:    wire.AmountMsat,
		FundingTxid:   txid,
		Connected:     true,
		State:         ChannelAwaitingLockin,
		ChannelID:     &channelID,
	})
	return &FundChannelResponse{Txid: txid, ChannelID: channelID}, nil
}

func (h *MemoryHandle) NewAddress(ctx context.Context, request NewAddressRequest) (*NewAddressResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("new_address"); err != nil {
		return nil, err
	}

	params := h.network.Params()
	response := &NewAddressResponse{}
	addressType := AddressBech32
	if wire.AddressType != nil {
		addressType = NewAddressType(*wire.AddressType)
	}
	if addressType == AddressBech32 || addressType == AddressAll {
		address, err := btcutil.NewAddressWitnessPubKeyHash(randomBytes(20), params)
		if err != nil {
			return nil, sdkerr.RemoteAPI("new_address", err)
		}
		encoded := address.EncodeAddress()
		response.Bech32 = &encoded
	}
	if addressType == AddressP2TR || addressType == AddressAll {
		address, err := btcutil.NewAddressTaproot(randomBytes(32), params)
		if err != nil {
			return nil, sdkerr.RemoteAPI("new_address", err)
		}
		encoded := address.EncodeAddress()
		response.P2TR = &encoded
	}
	return response, nil
}

func (h *MemoryHandle) ListInvoices(ctx context.Context, request ListInvoicesRequest) (*ListInvoicesResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("list_invoices"); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	response := &ListInvoicesResponse{Invoices: []ListInvoicesInvoice{}}
	for _, invoice := range h.invoices {
		if wire.Label != nil && invoice.Label != *wire.Label {
			continue
		}
		if wire.PaymentHash != nil && invoice.PaymentHash != FormatHex(wire.PaymentHash) {
			continue
		}
		if wire.Invstring != nil && (invoice.Bolt11 == nil || *invoice.Bolt11 != *wire.Invstring) {
			continue
		}
		if wire.Start != nil && invoice.CreatedIndex != nil && *invoice.CreatedIndex < *wire.Start {
			continue
		}
		response.Invoices = append(response.Invoices, invoice)
		if wire.Limit != nil && uint32(len(response.Invoices)) >= *wire.Limit {
			break
		}
	}
	return response, nil
}

func (h *MemoryHandle) ListPayments(ctx context.Context, request ListPaymentsRequest) (*ListPaymentsResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("list_payments"); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	response := &ListPaymentsResponse{Payments: []ListPaymentsPayment{}}
	for _, payment := range h.payments {
		if wire.PaymentHash != nil && payment.PaymentHash != FormatHex(wire.PaymentHash) {
			continue
		}
		if wire.Status != nil && payment.Status != *wire.Status {
			continue
		}
		if wire.Bolt11 != nil && (payment.Bolt11 == nil || *payment.Bolt11 != *wire.Bolt11) {
			continue
		}
		response.Payments = append(response.Payments, payment)
	}
	return response, nil
}

func (h *MemoryHandle) SignMessage(ctx context.Context, request SignMessageRequest) (*SignMessageResponse, error) {
	wire, err := request.toWire()
	if err != nil {
		return nil, err
	}
	if err := h.begin("sign_message"); err != nil {
		return nil, err
	}
	signature, err := h.challenge(ctx, "sign_message", signer.KindMessage, []byte(wire.Message))
	if err != nil {
		return nil, err
	}
	return &SignMessageResponse{Signature: FormatHex(signature)}, nil
}

func (h *MemoryHandle) Withdraw(ctx context.Context, request WithdrawRequest) (*WithdrawResponse, error) {
	wire, err := request.toWire(h.network)
	if err != nil {
		return nil, err
	}
	if err := h.begin("withdraw"); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var available uint64
	for _, output := range h.outputs {
		if output.Status == OutputConfirmed && output.AmountMsat != nil {
			available += *output.AmountMsat
		}
	}
	wanted := available
	if wire.AmountSat != nil {
		wanted = *wire.AmountSat * 1000
	}
	if available == 0 || wanted > available {
		return nil, sdkerr.RemoteAPI("withdraw", fmt.Errorf("insufficient funds: have %d msat, want %d msat", available, wanted))
	}
	for index := range h.outputs {
		if h.outputs[index].Status == OutputConfirmed {
			h.outputs[index].Status = OutputSpent
		}
	}
	if change := available - wanted; change > 0 {
		h.outputs = append(h.outputs, ListFundsOutput{
			Txid:         FormatHex(randomBytes(HashSize)),
			AmountMsat:   &change,
			Scriptpubkey: FormatHex(randomBytes(22)),
			Status:       OutputUnconfirmed,
		})
	}
	return &WithdrawResponse{Txid: FormatHex(randomBytes(HashSize)), Tx: FormatHex(randomBytes(64))}, nil
}

func (h *MemoryHandle) CloseChannel(ctx context.Context, request CloseChannelRequest) (*CloseChannelResponse, error) {
	wire, err := request.toWire(h.network)
	if err != nil {
		return nil, err
	}
	if err := h.begin("close_channel"); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for index := range h.channels {
		channel := &h.channels[index]
		matches := channel.PeerID == wire.ID ||
			(channel.ChannelID != nil && *channel.ChannelID == wire.ID) ||
			(channel.ShortChannelID != nil && *channel.ShortChannelID == wire.ID)
		if !matches || channel.State == ChannelClosingdDone {
			continue
		}
		channel.State = ChannelClosingdDone
		txid := FormatHex(randomBytes(HashSize))
		closeType := CloseMutual
		if !channel.Connected {
			closeType = CloseUnilateral
		}
		return &CloseChannelResponse{Type: closeType, Txid: &txid}, nil
	}
	return nil, sdkerr.RemoteAPI("close_channel", fmt.Errorf("no open channel matches %q", wire.ID))
}

// SignerStream returns the node side's paired stream. Every call
// returns the same stream.
func (h *MemoryHandle) SignerStream(ctx context.Context) (signer.Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	return h.stream, nil
}

// Close marks the handle closed and closes the signer stream. Calls
// after Close fail; CloseCount records every call.
func (h *MemoryHandle) Close() error {
	h.mu.Lock()
	h.closeCount++
	alreadyClosed := h.closed
	h.closed = true
	h.mu.Unlock()
	if alreadyClosed {
		return errors.New("memory node handle closed twice")
	}
	return h.stream.Close()
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return b
}
