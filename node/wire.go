// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"github.com/oklog/ulid/v2"

	"github.com/glalby/glalby/lib/bitcoin"
	"github.com/glalby/glalby/lib/sdkerr"
)

// Wire messages carry binary identifiers as bytes. Conversion from a
// request type validates and decodes every hex field, so a request
// that converts cleanly is safe to send.

type wireEmpty struct{}

type wireGetInfoResponse struct {
	ID          []byte `cbor:"id"`
	Alias       string `cbor:"alias"`
	Color       []byte `cbor:"color"`
	Network     string `cbor:"network"`
	BlockHeight uint32 `cbor:"blockheight"`
}

func (w *wireGetInfoResponse) toResponse() *GetInfoResponse {
	return &GetInfoResponse{
		Pubkey:      FormatHex(w.ID),
		Alias:       w.Alias,
		Color:       FormatHex(w.Color),
		Network:     w.Network,
		BlockHeight: w.BlockHeight,
	}
}

type wireInvoiceRequest struct {
	AmountMsat  uint64 `cbor:"amount_msat"`
	Description string `cbor:"description"`
	Label       string `cbor:"label"`
}

// NewLabel returns a unique, time-ordered invoice label.
func NewLabel() string {
	return "glalby-" + ulid.Make().String()
}

func (r MakeInvoiceRequest) toWire() (*wireInvoiceRequest, error) {
	if r.AmountMsat == 0 {
		return nil, sdkerr.InvalidArgument("make_invoice", "amount_msat must be positive")
	}
	label := r.Label
	if label == "" {
		label = NewLabel()
	}
	return &wireInvoiceRequest{AmountMsat: r.AmountMsat, Description: r.Description, Label: label}, nil
}

type wireInvoiceResponse struct {
	Bolt11      string `cbor:"bolt11"`
	PaymentHash []byte `cbor:"payment_hash"`
}

func (w *wireInvoiceResponse) toResponse(label string) *MakeInvoiceResponse {
	return &MakeInvoiceResponse{Bolt11: w.Bolt11, PaymentHash: FormatHex(w.PaymentHash), Label: label}
}

type wirePayRequest struct {
	Bolt11     string  `cbor:"bolt11"`
	AmountMsat *uint64 `cbor:"amount_msat,omitempty"`
}

func (r PayRequest) toWire() (*wirePayRequest, error) {
	if r.Bolt11 == "" {
		return nil, sdkerr.InvalidArgument("pay", "bolt11 is required")
	}
	return &wirePayRequest{Bolt11: r.Bolt11, AmountMsat: r.AmountMsat}, nil
}

type wirePreimageResponse struct {
	PaymentPreimage []byte `cbor:"payment_preimage"`
}

type wireKeySendRequest struct {
	Destination []byte  `cbor:"destination"`
	AmountMsat  *uint64 `cbor:"amount_msat,omitempty"`
	Label       *string `cbor:"label,omitempty"`
}

func (r KeySendRequest) toWire() (*wireKeySendRequest, error) {
	destination, err := decodeField("keysend", "destination", r.Destination, NodeIDSize)
	if err != nil {
		return nil, err
	}
	return &wireKeySendRequest{Destination: destination, AmountMsat: r.AmountMsat, Label: r.Label}, nil
}

type wireListFundsRequest struct {
	Spent *bool `cbor:"spent,omitempty"`
}

type wireFundsOutput struct {
	Txid         []byte  `cbor:"txid"`
	Output       uint32  `cbor:"output"`
	AmountMsat   *uint64 `cbor:"amount_msat,omitempty"`
	Scriptpubkey []byte  `cbor:"scriptpubkey"`
	Address      *string `cbor:"address,omitempty"`
	Redeemscript []byte  `cbor:"redeemscript,omitempty"`
	Status       int32   `cbor:"status"`
	Reserved     bool    `cbor:"reserved"`
	Blockheight  *uint32 `cbor:"blockheight,omitempty"`
}

type wireFundsChannel struct {
	PeerID         []byte  `cbor:"peer_id"`
	OurAmountMsat  *uint64 `cbor:"our_amount_msat,omitempty"`
	AmountMsat     *uint64 `cbor:"amount_msat,omitempty"`
	FundingTxid    []byte  `cbor:"funding_txid"`
	FundingOutput  uint32  `cbor:"funding_output"`
	Connected      bool    `cbor:"connected"`
	State          int32   `cbor:"state"`
	ChannelID      []byte  `cbor:"channel_id,omitempty"`
	ShortChannelID *string `cbor:"short_channel_id,omitempty"`
}

type wireListFundsResponse struct {
	Outputs  []wireFundsOutput  `cbor:"outputs"`
	Channels []wireFundsChannel `cbor:"channels"`
}

func (w *wireListFundsResponse) toResponse() *ListFundsResponse {
	response := &ListFundsResponse{
		Outputs:  make([]ListFundsOutput, 0, len(w.Outputs)),
		Channels: make([]ListFundsChannel, 0, len(w.Channels)),
	}
	for _, output := range w.Outputs {
		response.Outputs = append(response.Outputs, ListFundsOutput{
			Txid:         FormatHex(output.Txid),
			Output:       output.Output,
			AmountMsat:   output.AmountMsat,
			Scriptpubkey: FormatHex(output.Scriptpubkey),
			Address:      output.Address,
			Redeemscript: formatOptional(output.Redeemscript),
			Status:       output.Status,
			Reserved:     output.Reserved,
			Blockheight:  output.Blockheight,
		})
	}
	for _, channel := range w.Channels {
		response.Channels = append(response.Channels, ListFundsChannel{
			PeerID:         FormatHex(channel.PeerID),
			OurAmountMsat:  channel.OurAmountMsat,
			AmountMsat:     channel.AmountMsat,
			FundingTxid:    FormatHex(channel.FundingTxid),
			FundingOutput:  channel.FundingOutput,
			Connected:      channel.Connected,
			State:          channel.State,
			ChannelID:      formatOptional(channel.ChannelID),
			ShortChannelID: channel.ShortChannelID,
		})
	}
	return response
}

type wireConnectRequest struct {
	ID   []byte  `cbor:"id"`
	Host *string `cbor:"host,omitempty"`
	Port *uint16 `cbor:"port,omitempty"`
}

func (r ConnectPeerRequest) toWire() (*wireConnectRequest, error) {
	id, err := decodeField("connect_peer", "id", r.ID, NodeIDSize)
	if err != nil {
		return nil, err
	}
	if r.Port != nil && r.Host == nil {
		return nil, sdkerr.InvalidArgument("connect_peer", "port given without host")
	}
	return &wireConnectRequest{ID: id, Host: r.Host, Port: r.Port}, nil
}

type wireConnectResponse struct {
	ID []byte `cbor:"id"`
}

type wireFundChannelRequest struct {
	ID         []byte  `cbor:"id"`
	AmountMsat *uint64 `cbor:"amount_msat,omitempty"`
	Announce   *bool   `cbor:"announce,omitempty"`
	Minconf    *uint32 `cbor:"minconf,omitempty"`
}

func (r FundChannelRequest) toWire() (*wireFundChannelRequest, error) {
	id, err := decodeField("fund_channel", "id", r.ID, NodeIDSize)
	if err != nil {
		return nil, err
	}
	return &wireFundChannelRequest{ID: id, AmountMsat: r.AmountMsat, Announce: r.Announce, Minconf: r.Minconf}, nil
}

type wireFundChannelResponse struct {
	Txid      []byte `cbor:"txid"`
	ChannelID []byte `cbor:"channel_id"`
}

type wireNewAddrRequest struct {
	AddressType *int32 `cbor:"addresstype,omitempty"`
}

func (r NewAddressRequest) toWire() (*wireNewAddrRequest, error) {
	if r.AddressType == nil {
		return &wireNewAddrRequest{}, nil
	}
	switch *r.AddressType {
	case AddressBech32, AddressP2TR, AddressAll:
	default:
		return nil, sdkerr.InvalidArgument("new_address", "unknown address type %d", *r.AddressType)
	}
	addressType := int32(*r.AddressType)
	return &wireNewAddrRequest{AddressType: &addressType}, nil
}

type wireNewAddrResponse struct {
	P2TR       *string `cbor:"p2tr,omitempty"`
	Bech32     *string `cbor:"bech32,omitempty"`
	P2SHSegwit *string `cbor:"p2sh_segwit,omitempty"`
}

type wireListInvoicesRequest struct {
	Label       *string `cbor:"label,omitempty"`
	Invstring   *string `cbor:"invstring,omitempty"`
	PaymentHash []byte  `cbor:"payment_hash,omitempty"`
	OfferID     *string `cbor:"offer_id,omitempty"`
	Index       *int32  `cbor:"index,omitempty"`
	Start       *uint64 `cbor:"start,omitempty"`
	Limit       *uint32 `cbor:"limit,omitempty"`
}

func (r ListInvoicesRequest) toWire() (*wireListInvoicesRequest, error) {
	paymentHash, err := decodeOptional("list_invoices", "payment_hash", r.PaymentHash, HashSize)
	if err != nil {
		return nil, err
	}
	wire := &wireListInvoicesRequest{
		Label:       r.Label,
		Invstring:   r.Invstring,
		PaymentHash: paymentHash,
		OfferID:     r.OfferID,
		Start:       r.Start,
		Limit:       r.Limit,
	}
	if r.Index != nil {
		if *r.Index != IndexCreated && *r.Index != IndexUpdated {
			return nil, sdkerr.InvalidArgument("list_invoices", "unknown index %d", *r.Index)
		}
		index := int32(*r.Index)
		wire.Index = &index
	}
	if (r.Start != nil || r.Limit != nil) && r.Index == nil {
		return nil, sdkerr.InvalidArgument("list_invoices", "start and limit require index")
	}
	return wire, nil
}

type wireOutpoint struct {
	Txid   []byte  `cbor:"txid,omitempty"`
	Outnum *uint32 `cbor:"outnum,omitempty"`
}

type wireInvoice struct {
	Label              string        `cbor:"label"`
	Description        *string       `cbor:"description,omitempty"`
	PaymentHash        []byte        `cbor:"payment_hash"`
	Status             int32         `cbor:"status"`
	ExpiresAt          uint64        `cbor:"expires_at"`
	AmountMsat         *uint64       `cbor:"amount_msat,omitempty"`
	Bolt11             *string       `cbor:"bolt11,omitempty"`
	Bolt12             *string       `cbor:"bolt12,omitempty"`
	LocalOfferID       []byte        `cbor:"local_offer_id,omitempty"`
	InvreqPayerNote    *string       `cbor:"invreq_payer_note,omitempty"`
	CreatedIndex       *uint64       `cbor:"created_index,omitempty"`
	UpdatedIndex       *uint64       `cbor:"updated_index,omitempty"`
	PayIndex           *uint64       `cbor:"pay_index,omitempty"`
	AmountReceivedMsat *uint64       `cbor:"amount_received_msat,omitempty"`
	PaidAt             *uint64       `cbor:"paid_at,omitempty"`
	PaidOutpoint       *wireOutpoint `cbor:"paid_outpoint,omitempty"`
	PaymentPreimage    []byte        `cbor:"payment_preimage,omitempty"`
}

type wireListInvoicesResponse struct {
	Invoices []wireInvoice `cbor:"invoices"`
}

func (w *wireListInvoicesResponse) toResponse() *ListInvoicesResponse {
	response := &ListInvoicesResponse{Invoices: make([]ListInvoicesInvoice, 0, len(w.Invoices))}
	for _, invoice := range w.Invoices {
		converted := ListInvoicesInvoice{
			Label:              invoice.Label,
			Description:        invoice.Description,
			PaymentHash:        FormatHex(invoice.PaymentHash),
			Status:             invoice.Status,
			ExpiresAt:          invoice.ExpiresAt,
			AmountMsat:         invoice.AmountMsat,
			Bolt11:             invoice.Bolt11,
			Bolt12:             invoice.Bolt12,
			LocalOfferID:       formatOptional(invoice.LocalOfferID),
			InvreqPayerNote:    invoice.InvreqPayerNote,
			CreatedIndex:       invoice.CreatedIndex,
			UpdatedIndex:       invoice.UpdatedIndex,
			PayIndex:           invoice.PayIndex,
			AmountReceivedMsat: invoice.AmountReceivedMsat,
			PaidAt:             invoice.PaidAt,
			PaymentPreimage:    formatOptional(invoice.PaymentPreimage),
		}
		if invoice.PaidOutpoint != nil {
			converted.PaidOutpoint = &PaidOutpoint{
				Txid:   formatOptional(invoice.PaidOutpoint.Txid),
				Outnum: invoice.PaidOutpoint.Outnum,
			}
		}
		response.Invoices = append(response.Invoices, converted)
	}
	return response
}

type wireListPaysRequest struct {
	Bolt11      *string `cbor:"bolt11,omitempty"`
	PaymentHash []byte  `cbor:"payment_hash,omitempty"`
	Status      *int32  `cbor:"status,omitempty"`
}

func (r ListPaymentsRequest) toWire() (*wireListPaysRequest, error) {
	paymentHash, err := decodeOptional("list_payments", "payment_hash", r.PaymentHash, HashSize)
	if err != nil {
		return nil, err
	}
	wire := &wireListPaysRequest{Bolt11: r.Bolt11, PaymentHash: paymentHash}
	if r.Status != nil {
		switch *r.Status {
		case PaymentPending, PaymentComplete, PaymentFailed:
		default:
			return nil, sdkerr.InvalidArgument("list_payments", "unknown status %d", *r.Status)
		}
		status := int32(*r.Status)
		wire.Status = &status
	}
	return wire, nil
}

type wirePayment struct {
	PaymentHash    []byte  `cbor:"payment_hash"`
	Status         int32   `cbor:"status"`
	Destination    []byte  `cbor:"destination,omitempty"`
	CreatedAt      uint64  `cbor:"created_at"`
	CompletedAt    *uint64 `cbor:"completed_at,omitempty"`
	Label          *string `cbor:"label,omitempty"`
	Bolt11         *string `cbor:"bolt11,omitempty"`
	Description    *string `cbor:"description,omitempty"`
	Bolt12         *string `cbor:"bolt12,omitempty"`
	AmountMsat     *uint64 `cbor:"amount_msat,omitempty"`
	AmountSentMsat *uint64 `cbor:"amount_sent_msat,omitempty"`
	Preimage       []byte  `cbor:"preimage,omitempty"`
	NumberOfParts  *uint64 `cbor:"number_of_parts,omitempty"`
	Erroronion     []byte  `cbor:"erroronion,omitempty"`
}

type wireListPaysResponse struct {
	Pays []wirePayment `cbor:"pays"`
}

func (w *wireListPaysResponse) toResponse() *ListPaymentsResponse {
	response := &ListPaymentsResponse{Payments: make([]ListPaymentsPayment, 0, len(w.Pays))}
	for _, payment := range w.Pays {
		response.Payments = append(response.Payments, ListPaymentsPayment{
			PaymentHash:    FormatHex(payment.PaymentHash),
			Status:         payment.Status,
			Destination:    formatOptional(payment.Destination),
			CreatedAt:      payment.CreatedAt,
			CompletedAt:    payment.CompletedAt,
			Label:          payment.Label,
			Bolt11:         payment.Bolt11,
			Description:    payment.Description,
			Bolt12:         payment.Bolt12,
			AmountMsat:     payment.AmountMsat,
			AmountSentMsat: payment.AmountSentMsat,
			Preimage:       formatOptional(payment.Preimage),
			NumberOfParts:  payment.NumberOfParts,
			Erroronion:     formatOptional(payment.Erroronion),
		})
	}
	return response
}

type wireSignMessageRequest struct {
	Message string `cbor:"message"`
}

func (r SignMessageRequest) toWire() (*wireSignMessageRequest, error) {
	if r.Message == "" {
		return nil, sdkerr.InvalidArgument("sign_message", "message is required")
	}
	return &wireSignMessageRequest{Message: r.Message}, nil
}

type wireSignMessageResponse struct {
	Signature []byte `cbor:"signature"`
}

type wireWithdrawRequest struct {
	Destination string  `cbor:"destination"`
	AmountSat   *uint64 `cbor:"satoshi,omitempty"`
	Minconf     *uint32 `cbor:"minconf,omitempty"`
}

func (r WithdrawRequest) toWire(network bitcoin.Network) (*wireWithdrawRequest, error) {
	if r.Destination == "" {
		return nil, sdkerr.InvalidArgument("withdraw", "destination is required")
	}
	if err := network.ValidateAddress(r.Destination); err != nil {
		return nil, sdkerr.InvalidArgument("withdraw", "%w", err)
	}
	if r.AmountSat != nil && *r.AmountSat == 0 {
		return nil, sdkerr.InvalidArgument("withdraw", "amount_sat must be positive when set")
	}
	return &wireWithdrawRequest{Destination: r.Destination, AmountSat: r.AmountSat, Minconf: r.Minconf}, nil
}

type wireWithdrawResponse struct {
	Txid []byte `cbor:"txid"`
	Tx   []byte `cbor:"tx"`
}

type wireCloseRequest struct {
	ID                string  `cbor:"id"`
	UnilateralTimeout *uint32 `cbor:"unilateraltimeout,omitempty"`
	Destination       *string `cbor:"destination,omitempty"`
}

func (r CloseChannelRequest) toWire(network bitcoin.Network) (*wireCloseRequest, error) {
	if r.ID == "" {
		return nil, sdkerr.InvalidArgument("close_channel", "id is required")
	}
	if r.Destination != nil {
		if err := network.ValidateAddress(*r.Destination); err != nil {
			return nil, sdkerr.InvalidArgument("close_channel", "%w", err)
		}
	}
	return &wireCloseRequest{ID: r.ID, UnilateralTimeout: r.UnilateralTimeout, Destination: r.Destination}, nil
}

type wireCloseResponse struct {
	Type string `cbor:"item_type"`
	Txid []byte `cbor:"txid,omitempty"`
}

type wireChallenge struct {
	RequestID uint64 `cbor:"request_id"`
	Kind      int    `cbor:"kind"`
	Payload   []byte `cbor:"raw"`
}

type wireChallengeResponse struct {
	RequestID uint64 `cbor:"request_id"`
	Signature []byte `cbor:"signature,omitempty"`
	Error     string `cbor:"error,omitempty"`
}
