// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/glalby/glalby/client"
	"github.com/glalby/glalby/cmd/glalby/cli"
	"github.com/glalby/glalby/lib/sdkerr"
	"github.com/glalby/glalby/node"
)

// optional returns nil for the zero value so unset flags stay unset
// on the wire.
func optional[T comparable](value T) *T {
	var zero T
	if value == zero {
		return nil
	}
	return &value
}

// positional checks that exactly want positional args were given.
func positional(command string, args []string, want ...string) error {
	if len(want) == 0 && len(args) > 0 {
		return fmt.Errorf("%s takes no positional arguments, got %q", command, args[0])
	}
	if len(args) != len(want) {
		return fmt.Errorf("%s takes %d argument(s) (%v), got %d", command, len(want), want, len(args))
	}
	return nil
}

func infoCommand() *cli.Command {
	var params connectionParams
	return &cli.Command{
		Name:    "info",
		Summary: "Show the node's id, alias, network and block height",
		Usage:   "glalby info [flags]",
		Params:  func() any { return &params },
		Examples: []cli.Example{
			{Description: "Print node info", Command: "glalby info --phrase-file phrase.txt"},
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("info", args); err != nil {
				return err
			}
			return withNode(ctx, &params, "glalby info", func(c *client.BlockingClient) (*node.GetInfoResponse, error) {
				return c.GetInfo()
			})
		},
	}
}

type invoiceParams struct {
	connectionParams
	AmountMsat  uint64 `json:"amount_msat" flag:"amount-msat" desc:"invoice amount in millisatoshis (required)"`
	Description string `json:"description" flag:"description" desc:"description encoded in the invoice"`
	Label       string `json:"label"       flag:"label"       desc:"unique label (default: generated)"`
}

func invoiceCommand() *cli.Command {
	var params invoiceParams
	return &cli.Command{
		Name:    "invoice",
		Summary: "Create a BOLT11 invoice",
		Usage:   "glalby invoice --amount-msat N [flags]",
		Params:  func() any { return &params },
		Examples: []cli.Example{
			{Description: "Invoice for 21 sats", Command: "glalby invoice --amount-msat 21000 --description coffee"},
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("invoice", args); err != nil {
				return err
			}
			return withNode(ctx, &params.connectionParams, "glalby invoice", func(c *client.BlockingClient) (*node.MakeInvoiceResponse, error) {
				return c.MakeInvoice(node.MakeInvoiceRequest{
					AmountMsat:  params.AmountMsat,
					Description: params.Description,
					Label:       params.Label,
				})
			})
		},
	}
}

type payParams struct {
	connectionParams
	AmountMsat uint64 `json:"amount_msat" flag:"amount-msat" desc:"amount for invoices that leave it open"`
}

func payCommand() *cli.Command {
	var params payParams
	return &cli.Command{
		Name:    "pay",
		Summary: "Pay a BOLT11 invoice",
		Usage:   "glalby pay [flags] <bolt11>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("pay", args, "bolt11"); err != nil {
				return err
			}
			return withNode(ctx, &params.connectionParams, "glalby pay", func(c *client.BlockingClient) (*node.PayResponse, error) {
				return c.Pay(node.PayRequest{Bolt11: args[0], AmountMsat: optional(params.AmountMsat)})
			})
		},
	}
}

type keysendParams struct {
	connectionParams
	AmountMsat uint64 `json:"amount_msat" flag:"amount-msat" desc:"amount in millisatoshis"`
	Label      string `json:"label"       flag:"label"       desc:"payment label"`
}

func keysendCommand() *cli.Command {
	var params keysendParams
	return &cli.Command{
		Name:    "keysend",
		Summary: "Send a spontaneous payment to a node id",
		Usage:   "glalby keysend [flags] <node-id>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("keysend", args, "node-id"); err != nil {
				return err
			}
			return withNode(ctx, &params.connectionParams, "glalby keysend", func(c *client.BlockingClient) (*node.KeySendResponse, error) {
				return c.KeySend(node.KeySendRequest{
					Destination: args[0],
					AmountMsat:  optional(params.AmountMsat),
					Label:       optional(params.Label),
				})
			})
		},
	}
}

type fundsParams struct {
	connectionParams
	Spent bool `json:"spent" flag:"spent" desc:"include spent outputs"`
}

func fundsCommand() *cli.Command {
	var params fundsParams
	return &cli.Command{
		Name:    "funds",
		Summary: "List on-chain outputs and channels",
		Usage:   "glalby funds [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("funds", args); err != nil {
				return err
			}
			return withNode(ctx, &params.connectionParams, "glalby funds", func(c *client.BlockingClient) (*node.ListFundsResponse, error) {
				return c.ListFunds(node.ListFundsRequest{Spent: optional(params.Spent)})
			})
		},
	}
}

type connectParams struct {
	connectionParams
	Host string `json:"host" flag:"host" desc:"peer host"`
	Port uint32 `json:"port" flag:"port" desc:"peer port"`
}

func connectCommand() *cli.Command {
	var params connectParams
	return &cli.Command{
		Name:    "connect",
		Summary: "Connect to a Lightning peer",
		Usage:   "glalby connect [flags] <node-id>",
		Params:  func() any { return &params },
		Examples: []cli.Example{
			{Command: "glalby connect 02ab...ef --host 203.0.113.7 --port 9735"},
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("connect", args, "node-id"); err != nil {
				return err
			}
			if params.Port > math.MaxUint16 {
				return sdkerr.InvalidArgument("connect_peer", "port %d out of range", params.Port)
			}
			return withNode(ctx, &params.connectionParams, "glalby connect", func(c *client.BlockingClient) (*node.ConnectPeerResponse, error) {
				return c.ConnectPeer(node.ConnectPeerRequest{
					ID:   args[0],
					Host: optional(params.Host),
					Port: optional(uint16(params.Port)),
				})
			})
		},
	}
}

type fundChannelParams struct {
	connectionParams
	AmountMsat uint64 `json:"amount_msat" flag:"amount-msat" desc:"channel capacity in millisatoshis"`
	Private    bool   `json:"private"     flag:"private"     desc:"do not announce the channel"`
	Minconf    uint32 `json:"minconf"     flag:"minconf"     desc:"minimum confirmations of spent outputs"`
}

func fundChannelCommand() *cli.Command {
	var params fundChannelParams
	return &cli.Command{
		Name:    "fund-channel",
		Summary: "Open a channel with a connected peer",
		Usage:   "glalby fund-channel [flags] <node-id>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("fund-channel", args, "node-id"); err != nil {
				return err
			}
			announce := !params.Private
			return withNode(ctx, &params.connectionParams, "glalby fund-channel", func(c *client.BlockingClient) (*node.FundChannelResponse, error) {
				return c.FundChannel(node.FundChannelRequest{
					ID:         args[0],
					AmountMsat: optional(params.AmountMsat),
					Announce:   &announce,
					Minconf:    optional(params.Minconf),
				})
			})
		},
	}
}

var addressTypes = map[string]node.NewAddressType{
	"bech32": node.AddressBech32,
	"p2tr":   node.AddressP2TR,
	"all":    node.AddressAll,
}

type newAddressParams struct {
	connectionParams
	Type string `json:"type" flag:"type" default:"bech32" desc:"address type: bech32, p2tr or all"`
}

func newAddressCommand() *cli.Command {
	var params newAddressParams
	return &cli.Command{
		Name:    "new-address",
		Summary: "Generate an on-chain deposit address",
		Usage:   "glalby new-address [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("new-address", args); err != nil {
				return err
			}
			addressType, ok := addressTypes[params.Type]
			if !ok {
				return sdkerr.InvalidArgument("new_address", "unknown address type %q", params.Type)
			}
			return withNode(ctx, &params.connectionParams, "glalby new-address", func(c *client.BlockingClient) (*node.NewAddressResponse, error) {
				return c.NewAddress(node.NewAddressRequest{AddressType: &addressType})
			})
		},
	}
}

var invoiceIndexes = map[string]node.ListInvoicesIndex{
	"created": node.IndexCreated,
	"updated": node.IndexUpdated,
}

type invoicesParams struct {
	connectionParams
	Label       string `json:"label"        flag:"label"        desc:"only the invoice with this label"`
	Bolt11      string `json:"bolt11"       flag:"bolt11"       desc:"only this invoice string"`
	PaymentHash string `json:"payment_hash" flag:"payment-hash" desc:"only the invoice with this payment hash"`
	Index       string `json:"index"        flag:"index"        desc:"page by index: created or updated"`
	Start       uint64 `json:"start"        flag:"start"        desc:"first index to return (requires --index)"`
	Limit       uint32 `json:"limit"        flag:"limit"        desc:"maximum invoices to return (requires --index)"`
}

func invoicesCommand() *cli.Command {
	var params invoicesParams
	return &cli.Command{
		Name:    "invoices",
		Summary: "List invoices",
		Usage:   "glalby invoices [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("invoices", args); err != nil {
				return err
			}
			request := node.ListInvoicesRequest{
				Label:       optional(params.Label),
				Invstring:   optional(params.Bolt11),
				PaymentHash: optional(params.PaymentHash),
				Start:       optional(params.Start),
				Limit:       optional(params.Limit),
			}
			if params.Index != "" {
				index, ok := invoiceIndexes[params.Index]
				if !ok {
					return sdkerr.InvalidArgument("list_invoices", "unknown index %q", params.Index)
				}
				request.Index = &index
			}
			return withNode(ctx, &params.connectionParams, "glalby invoices", func(c *client.BlockingClient) (*node.ListInvoicesResponse, error) {
				return c.ListInvoices(request)
			})
		},
	}
}

var paymentStatuses = map[string]node.ListPaymentsStatus{
	"pending":  node.PaymentPending,
	"complete": node.PaymentComplete,
	"failed":   node.PaymentFailed,
}

type paymentsParams struct {
	connectionParams
	Bolt11      string `json:"bolt11"       flag:"bolt11"       desc:"only payments of this invoice"`
	PaymentHash string `json:"payment_hash" flag:"payment-hash" desc:"only payments with this hash"`
	Status      string `json:"status"       flag:"status"       desc:"only pending, complete or failed payments"`
}

func paymentsCommand() *cli.Command {
	var params paymentsParams
	return &cli.Command{
		Name:    "payments",
		Summary: "List outgoing payments",
		Usage:   "glalby payments [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("payments", args); err != nil {
				return err
			}
			request := node.ListPaymentsRequest{
				Bolt11:      optional(params.Bolt11),
				PaymentHash: optional(params.PaymentHash),
			}
			if params.Status != "" {
				status, ok := paymentStatuses[params.Status]
				if !ok {
					return sdkerr.InvalidArgument("list_payments", "unknown status %q", params.Status)
				}
				request.Status = &status
			}
			return withNode(ctx, &params.connectionParams, "glalby payments", func(c *client.BlockingClient) (*node.ListPaymentsResponse, error) {
				return c.ListPayments(request)
			})
		},
	}
}

func signMessageCommand() *cli.Command {
	var params connectionParams
	return &cli.Command{
		Name:    "sign-message",
		Summary: "Sign a message with the node key",
		Usage:   "glalby sign-message [flags] <message>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("sign-message", args, "message"); err != nil {
				return err
			}
			return withNode(ctx, &params, "glalby sign-message", func(c *client.BlockingClient) (*node.SignMessageResponse, error) {
				return c.SignMessage(node.SignMessageRequest{Message: args[0]})
			})
		},
	}
}

type withdrawParams struct {
	connectionParams
	AmountSat uint64 `json:"amount_sat" flag:"amount-sat" desc:"amount in satoshis (default: everything)"`
	Minconf   uint32 `json:"minconf"    flag:"minconf"    desc:"minimum confirmations of spent outputs"`
}

func withdrawCommand() *cli.Command {
	var params withdrawParams
	return &cli.Command{
		Name:    "withdraw",
		Summary: "Send on-chain funds to an address",
		Usage:   "glalby withdraw [flags] <address>",
		Params:  func() any { return &params },
		Examples: []cli.Example{
			{Description: "Sweep the on-chain wallet", Command: "glalby withdraw bc1q..."},
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("withdraw", args, "address"); err != nil {
				return err
			}
			return withNode(ctx, &params.connectionParams, "glalby withdraw", func(c *client.BlockingClient) (*node.WithdrawResponse, error) {
				return c.Withdraw(node.WithdrawRequest{
					Destination: args[0],
					AmountSat:   optional(params.AmountSat),
					Minconf:     optional(params.Minconf),
				})
			})
		},
	}
}

type closeParams struct {
	connectionParams
	UnilateralTimeout uint32 `json:"unilateral_timeout" flag:"unilateral-timeout" desc:"seconds before forcing a unilateral close"`
	Destination       string `json:"destination"        flag:"destination"        desc:"address for our funds"`
}

func closeCommand() *cli.Command {
	var params closeParams
	return &cli.Command{
		Name:    "close",
		Summary: "Close a channel",
		Usage:   "glalby close [flags] <peer-or-channel-id>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := positional("close", args, "peer-or-channel-id"); err != nil {
				return err
			}
			return withNode(ctx, &params.connectionParams, "glalby close", func(c *client.BlockingClient) (*node.CloseChannelResponse, error) {
				return c.CloseChannel(node.CloseChannelRequest{
					ID:                args[0],
					UnilateralTimeout: optional(params.UnilateralTimeout),
					Destination:       optional(params.Destination),
				})
			})
		},
	}
}
