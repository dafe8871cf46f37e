// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"
	"strings"

	btcchaincfg "github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ErrUnknownNet describes an error where the requested network name does not
// match any known Elements network.
var ErrUnknownNet = errors.New("unknown elements network")

// Params defines an Elements network by the parameters that affect how its
// addresses, assets and peg transactions are encoded.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Address encoding magics
	PubKeyHashAddrID byte // First byte of a P2PKH address
	ScriptHashAddrID byte // First byte of a P2SH address
	BlindedAddrID    byte // First byte of a confidential base58 address

	// Bech32HRP is the human-readable part of unconfidential segwit
	// addresses.
	Bech32HRP string

	// Blech32HRP is the human-readable part of confidential segwit
	// addresses.
	Blech32HRP string

	// PolicyAsset is the id of the asset used to pay fees.
	PolicyAsset chainhash.Hash

	// AssetLabels maps well-known asset ids to a short label.
	AssetLabels map[chainhash.Hash]string

	// ParentParams are the parameters of the chain that pegs into this
	// network.  Pegout outputs commit to its genesis hash and pay to one of
	// its scripts.
	ParentParams *btcchaincfg.Params
}

// newHashFromStr converts the passed big-endian hex string into a
// chainhash.Hash.  It only differs from the one available in chainhash in that
// it panics on an error since it will only (and must only) be called with
// hard-coded, and therefore known good, hashes.
func newHashFromStr(hexStr string) chainhash.Hash {
	hash, err := chainhash.NewHashFromStr(hexStr)
	if err != nil {
		panic(err)
	}
	return *hash
}

var (
	liquidBitcoinAsset  = newHashFromStr("6f0279e9ed041c3d710a9f57d0c02928416460c4b722ae3457a11eec381c526d")
	testBitcoinAsset    = newHashFromStr("144c654344aa716d6f3abcc1ca90e5641e4e2a7f633bc09fe3baf64585819a49")
	regtestBitcoinAsset = newHashFromStr("b2e15d0d7a0c94e4e2ce0fe6e8691b9e451377f6e46e8045a86f7c4b5d4f0f23")
)

// LiquidParams defines the network parameters for the Liquid network.
var LiquidParams = Params{
	Name:             "liquidv1",
	PubKeyHashAddrID: 57,
	ScriptHashAddrID: 39,
	BlindedAddrID:    12,
	Bech32HRP:        "ex",
	Blech32HRP:       "lq",
	PolicyAsset:      liquidBitcoinAsset,
	AssetLabels: map[chainhash.Hash]string{
		liquidBitcoinAsset: "liquid_bitcoin",
	},
	ParentParams: &btcchaincfg.MainNetParams,
}

// LiquidTestNetParams defines the network parameters for the public Liquid
// test network.
var LiquidTestNetParams = Params{
	Name:             "liquidtestnet",
	PubKeyHashAddrID: 36,
	ScriptHashAddrID: 19,
	BlindedAddrID:    23,
	Bech32HRP:        "tex",
	Blech32HRP:       "tlq",
	PolicyAsset:      testBitcoinAsset,
	AssetLabels: map[chainhash.Hash]string{
		testBitcoinAsset: "testnet_liquid_bitcoin",
	},
	ParentParams: &btcchaincfg.TestNet3Params,
}

// ElementsRegtestParams defines the network parameters for a default
// elementsregtest chain.
var ElementsRegtestParams = Params{
	Name:             "elementsregtest",
	PubKeyHashAddrID: 235,
	ScriptHashAddrID: 75,
	BlindedAddrID:    4,
	Bech32HRP:        "ert",
	Blech32HRP:       "el",
	PolicyAsset:      regtestBitcoinAsset,
	AssetLabels: map[chainhash.Hash]string{
		regtestBitcoinAsset: "regtest_bitcoin",
	},
	ParentParams: &btcchaincfg.RegressionNetParams,
}

// knownNets lists every network ParamsForName can return.
var knownNets = []*Params{
	&LiquidParams,
	&LiquidTestNetParams,
	&ElementsRegtestParams,
}

// ParamsForName returns the parameters of the network with the given name.
// The short aliases "liquid", "testnet" and "regtest" are accepted as well.
func ParamsForName(name string) (*Params, error) {
	switch strings.ToLower(name) {
	case "liquid":
		return &LiquidParams, nil
	case "testnet":
		return &LiquidTestNetParams, nil
	case "regtest", "elements":
		return &ElementsRegtestParams, nil
	}
	for _, params := range knownNets {
		if strings.EqualFold(params.Name, name) {
			return params, nil
		}
	}
	return nil, ErrUnknownNet
}

// ParamsForBech32HRP returns the network whose unconfidential or confidential
// segwit prefix matches hrp.  The second return value reports whether the
// prefix is the confidential one.
func ParamsForBech32HRP(hrp string) (*Params, bool, error) {
	hrp = strings.ToLower(hrp)
	for _, params := range knownNets {
		switch hrp {
		case params.Bech32HRP:
			return params, false, nil
		case params.Blech32HRP:
			return params, true, nil
		}
	}
	return nil, false, ErrUnknownNet
}

// ParamsForBase58Prefix returns the network that uses prefix as one of its
// base58 address prefixes.
func ParamsForBase58Prefix(prefix byte) (*Params, error) {
	for _, params := range knownNets {
		switch prefix {
		case params.PubKeyHashAddrID, params.ScriptHashAddrID,
			params.BlindedAddrID:

			return params, nil
		}
	}
	return nil, ErrUnknownNet
}

// AssetLabel returns the label of a well-known asset, or the empty string.
func (p *Params) AssetLabel(asset chainhash.Hash) string {
	return p.AssetLabels[asset]
}
