// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package node

// GetInfoResponse describes the node.
type GetInfoResponse struct {
	Pubkey      string `json:"pubkey"`
	Alias       string `json:"alias"`
	Color       string `json:"color"`
	Network     string `json:"network"`
	BlockHeight uint32 `json:"block_height"`
}

// MakeInvoiceRequest creates a BOLT11 invoice. An empty Label is
// replaced with a generated unique label.
type MakeInvoiceRequest struct {
	AmountMsat  uint64 `json:"amount_msat"`
	Description string `json:"description"`
	Label       string `json:"label"`
}

type MakeInvoiceResponse struct {
	Bolt11      string `json:"bolt11"`
	PaymentHash string `json:"payment_hash"`
	Label       string `json:"label"`
}

// PayRequest pays a BOLT11 invoice.
type PayRequest struct {
	Bolt11     string  `json:"bolt11"`
	AmountMsat *uint64 `json:"amount_msat,omitempty"`
}

type PayResponse struct {
	Preimage string `json:"preimage"`
}

// KeySendRequest pays a node directly without an invoice.
type KeySendRequest struct {
	Destination string  `json:"destination"`
	AmountMsat  *uint64 `json:"amount_msat,omitempty"`
	Label       *string `json:"label,omitempty"`
}

type KeySendResponse struct {
	PaymentPreimage string `json:"payment_preimage"`
}

// ListFundsRequest lists on-chain outputs and channels. Spent
// includes spent outputs.
type ListFundsRequest struct {
	Spent *bool `json:"spent,omitempty"`
}

type ListFundsResponse struct {
	Outputs  []ListFundsOutput  `json:"outputs"`
	Channels []ListFundsChannel `json:"channels"`
}

// Output status values.
const (
	OutputUnconfirmed int32 = 0
	OutputConfirmed   int32 = 1
	OutputSpent       int32 = 2
	OutputImmature    int32 = 3
)

type ListFundsOutput struct {
	Txid         string  `json:"txid"`
	Output       uint32  `json:"output"`
	AmountMsat   *uint64 `json:"amount_msat,omitempty"`
	Scriptpubkey string  `json:"scriptpubkey"`
	Address      *string `json:"address,omitempty"`
	Redeemscript *string `json:"redeemscript,omitempty"`
	Status       int32   `json:"status"`
	Reserved     bool    `json:"reserved"`
	Blockheight  *uint32 `json:"blockheight,omitempty"`
}

// Channel state values, as the node numbers them.
const (
	ChannelOpeningd       int32 = 0
	ChannelAwaitingLockin int32 = 1
	ChannelNormal         int32 = 2
	ChannelShuttingDown   int32 = 3
	ChannelClosingSigExch int32 = 4
	ChannelClosingdDone   int32 = 5
	ChannelOnchain        int32 = 8
)

type ListFundsChannel struct {
	PeerID         string  `json:"peer_id"`
	OurAmountMsat  *uint64 `json:"our_amount_msat,omitempty"`
	AmountMsat     *uint64 `json:"amount_msat,omitempty"`
	FundingTxid    string  `json:"funding_txid"`
	FundingOutput  uint32  `json:"funding_output"`
	Connected      bool    `json:"connected"`
	State          int32   `json:"state"`
	ChannelID      *string `json:"channel_id,omitempty"`
	ShortChannelID *string `json:"short_channel_id,omitempty"`
}

// ConnectPeerRequest connects to a peer. Id is the peer's node id;
// Host and Port are optional when the node can find the peer itself.
type ConnectPeerRequest struct {
	ID   string  `json:"id"`
	Host *string `json:"host,omitempty"`
	Port *uint16 `json:"port,omitempty"`
}

type ConnectPeerResponse struct {
	ID string `json:"id"`
}

// FundChannelRequest opens a channel with a connected peer.
type FundChannelRequest struct {
	ID         string  `json:"id"`
	AmountMsat *uint64 `json:"amount_msat,omitempty"`
	Announce   *bool   `json:"announce,omitempty"`
	Minconf    *uint32 `json:"minconf,omitempty"`
}

type FundChannelResponse struct {
	Txid      string `json:"txid"`
	ChannelID string `json:"channel_id"`
}

// NewAddressType selects the address kind for NewAddress.
type NewAddressType int32

const (
	AddressBech32 NewAddressType = 1
	AddressP2TR   NewAddressType = 2
	AddressAll    NewAddressType = 3
)

type NewAddressRequest struct {
	AddressType *NewAddressType `json:"address_type,omitempty"`
}

type NewAddressResponse struct {
	P2TR       *string `json:"p2tr,omitempty"`
	Bech32     *string `json:"bech32,omitempty"`
	P2SHSegwit *string `json:"p2sh_segwit,omitempty"`
}

// ListInvoicesIndex selects the index Start and Limit page through.
type ListInvoicesIndex int32

const (
	IndexCreated ListInvoicesIndex = 1
	IndexUpdated ListInvoicesIndex = 2
)

type ListInvoicesRequest struct {
	Label       *string            `json:"label,omitempty"`
	Invstring   *string            `json:"invstring,omitempty"`
	PaymentHash *string            `json:"payment_hash,omitempty"`
	OfferID     *string            `json:"offer_id,omitempty"`
	Index       *ListInvoicesIndex `json:"index,omitempty"`
	Start       *uint64            `json:"start,omitempty"`
	Limit       *uint32            `json:"limit,omitempty"`
}

type ListInvoicesResponse struct {
	Invoices []ListInvoicesInvoice `json:"invoices"`
}

// Invoice status values.
const (
	InvoiceUnpaid  int32 = 0
	InvoicePaid    int32 = 1
	InvoiceExpired int32 = 2
)

type ListInvoicesInvoice struct {
	Label              string        `json:"label"`
	Description        *string       `json:"description,omitempty"`
	PaymentHash        string        `json:"payment_hash"`
	Status             int32         `json:"status"`
	ExpiresAt          uint64        `json:"expires_at"`
	AmountMsat         *uint64       `json:"amount_msat,omitempty"`
	Bolt11             *string       `json:"bolt11,omitempty"`
	Bolt12             *string       `json:"bolt12,omitempty"`
	LocalOfferID       *string       `json:"local_offer_id,omitempty"`
	InvreqPayerNote    *string       `json:"invreq_payer_note,omitempty"`
	CreatedIndex       *uint64       `json:"created_index,omitempty"`
	UpdatedIndex       *uint64       `json:"updated_index,omitempty"`
	PayIndex           *uint64       `json:"pay_index,omitempty"`
	AmountReceivedMsat *uint64       `json:"amount_received_msat,omitempty"`
	PaidAt             *uint64       `json:"paid_at,omitempty"`
	PaidOutpoint       *PaidOutpoint `json:"paid_outpoint,omitempty"`
	PaymentPreimage    *string       `json:"payment_preimage,omitempty"`
}

type PaidOutpoint struct {
	Txid   *string `json:"txid,omitempty"`
	Outnum *uint32 `json:"outnum,omitempty"`
}

// ListPaymentsStatus filters payments by outcome.
type ListPaymentsStatus int32

const (
	PaymentPending  ListPaymentsStatus = 1
	PaymentComplete ListPaymentsStatus = 2
	PaymentFailed   ListPaymentsStatus = 3
)

type ListPaymentsRequest struct {
	Bolt11      *string             `json:"bolt11,omitempty"`
	PaymentHash *string             `json:"payment_hash,omitempty"`
	Status      *ListPaymentsStatus `json:"status,omitempty"`
}

type ListPaymentsResponse struct {
	Payments []ListPaymentsPayment `json:"payments"`
}

type ListPaymentsPayment struct {
	PaymentHash    string  `json:"payment_hash"`
	Status         int32   `json:"status"`
	Destination    *string `json:"destination,omitempty"`
	CreatedAt      uint64  `json:"created_at"`
	CompletedAt    *uint64 `json:"completed_at,omitempty"`
	Label          *string `json:"label,omitempty"`
	Bolt11         *string `json:"bolt11,omitempty"`
	Description    *string `json:"description,omitempty"`
	Bolt12         *string `json:"bolt12,omitempty"`
	AmountMsat     *uint64 `json:"amount_msat,omitempty"`
	AmountSentMsat *uint64 `json:"amount_sent_msat,omitempty"`
	Preimage       *string `json:"preimage,omitempty"`
	NumberOfParts  *uint64 `json:"number_of_parts,omitempty"`
	Erroronion     *string `json:"erroronion,omitempty"`
}

// SignMessageRequest signs Message with the node key, Lightning
// signed-message style.
type SignMessageRequest struct {
	Message string `json:"message"`
}

type SignMessageResponse struct {
	Signature string `json:"signature"`
}

// WithdrawRequest sends on-chain funds. A nil AmountSat sends
// everything.
type WithdrawRequest struct {
	Destination string  `json:"destination"`
	AmountSat   *uint64 `json:"amount_sat,omitempty"`
	Minconf     *uint32 `json:"minconf,omitempty"`
}

type WithdrawResponse struct {
	Txid string `json:"txid"`
	Tx   string `json:"tx"`
}

// CloseChannelRequest closes the channel with peer or channel ID.
type CloseChannelRequest struct {
	ID                string  `json:"id"`
	UnilateralTimeout *uint32 `json:"unilateral_timeout,omitempty"`
	Destination       *string `json:"destination,omitempty"`
}

// Close types.
const (
	CloseMutual     = "mutual"
	CloseUnilateral = "unilateral"
	CloseUnopened   = "unopened"
)

type CloseChannelResponse struct {
	Type string  `json:"type"`
	Txid *string `json:"txid,omitempty"`
}
