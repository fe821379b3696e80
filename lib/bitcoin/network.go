// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package bitcoin

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Network is a Bitcoin network name as the scheduler spells it.
type Network string

const (
	Mainnet Network = "bitcoin"
	Testnet Network = "testnet"
	Signet  Network = "signet"
	Regtest Network = "regtest"
)

// ParseNetwork accepts the canonical names plus "mainnet".
func ParseNetwork(name string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bitcoin", "mainnet":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	case "signet":
		return Signet, nil
	case "regtest":
		return Regtest, nil
	}
	return "", fmt.Errorf("unknown network %q", name)
}

func (n Network) String() string { return string(n) }

// Params returns the chaincfg parameters for n, or nil for an unknown
// network.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams
	case Testnet:
		return &chaincfg.TestNet3Params
	case Signet:
		return &chaincfg.SigNetParams
	case Regtest:
		return &chaincfg.RegressionNetParams
	}
	return nil
}

// ValidateAddress decodes address and checks that it belongs to n.
func (n Network) ValidateAddress(address string) error {
	params := n.Params()
	if params == nil {
		return fmt.Errorf("unknown network %q", n)
	}
	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return fmt.Errorf("decoding address %q: %w", address, err)
	}
	if !decoded.IsForNet(params) {
		return fmt.Errorf("address %q is not a %s address", address, n)
	}
	return nil
}
