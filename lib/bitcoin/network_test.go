// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package bitcoin

import "testing"

func TestParseNetwork(t *testing.T) {
	tests := map[string]Network{
		"bitcoin": Mainnet,
		"Mainnet": Mainnet,
		"testnet": Testnet,
		" signet": Signet,
		"REGTEST": Regtest,
	}
	for input, want := range tests {
		got, err := ParseNetwork(input)
		if err != nil {
			t.Errorf("ParseNetwork(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseNetwork(%q) = %s, want %s", input, got, want)
		}
	}
	if _, err := ParseNetwork("liquid"); err == nil {
		t.Error("ParseNetwork accepted liquid")
	}
}

func TestValidateAddress(t *testing.T) {
	const mainnetP2WPKH = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	const testnetP2WPKH = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"

	tests := []struct {
		network Network
		address string
		valid   bool
	}{
		{Mainnet, mainnetP2WPKH, true},
		{Testnet, testnetP2WPKH, true},
		{Signet, testnetP2WPKH, true},
		{Mainnet, testnetP2WPKH, false},
		{Regtest, mainnetP2WPKH, false},
		{Mainnet, "not-an-address", false},
		{Network("liquid"), mainnetP2WPKH, false},
	}
	for _, test := range tests {
		err := test.network.ValidateAddress(test.address)
		if test.valid && err != nil {
			t.Errorf("%s.ValidateAddress(%s): %v", test.network, test.address, err)
		}
		if !test.valid && err == nil {
			t.Errorf("%s.ValidateAddress(%s) accepted an invalid address", test.network, test.address)
		}
	}
}
