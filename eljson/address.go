// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"github.com/btcsuite/elementsutil/address"
)

// AddressInfo describes an address.  Exactly one of the hash or program
// fields is set, depending on the address type.
type AddressInfo struct {
	Network               string            `json:"network" yaml:"network"`
	Type                  string            `json:"type" yaml:"type"`
	ScriptPubKey          *OutputScriptInfo `json:"script_pub_key" yaml:"script_pub_key"`
	WitnessProgramVersion *byte             `json:"witness_program_version,omitempty" yaml:"witness_program_version,omitempty"`
	PubKeyHash            HexBytes          `json:"pubkey_hash,omitempty" yaml:"pubkey_hash,omitempty"`
	ScriptHash            HexBytes          `json:"script_hash,omitempty" yaml:"script_hash,omitempty"`
	WitnessPubKeyHash     HexBytes          `json:"witness_pubkey_hash,omitempty" yaml:"witness_pubkey_hash,omitempty"`
	WitnessScriptHash     HexBytes          `json:"witness_script_hash,omitempty" yaml:"witness_script_hash,omitempty"`
	WitnessProgram        HexBytes          `json:"witness_program,omitempty" yaml:"witness_program,omitempty"`
	BlindingPubKey        HexBytes          `json:"blinding_pubkey,omitempty" yaml:"blinding_pubkey,omitempty"`
	Unconfidential        string            `json:"unconfidential,omitempty" yaml:"unconfidential,omitempty"`
}

// NewAddressInfo returns the description of an address.  The script is
// rendered on the network of the address.
func NewAddressInfo(addr *address.Address) (*AddressInfo, error) {
	script, err := addr.PkScript()
	if err != nil {
		return nil, err
	}
	info := &AddressInfo{
		Network:      addr.Net().Name,
		Type:         addr.Type().String(),
		ScriptPubKey: NewOutputScriptInfo(script, addr.Net()),
	}
	// The script record carries the unconfidential address, which is
	// reported separately.
	info.ScriptPubKey.Address = ""

	program := HexBytes(addr.ScriptAddress())
	switch addr.Type() {
	case address.PubKeyHash:
		info.PubKeyHash = program
	case address.ScriptHash:
		info.ScriptHash = program
	case address.WitnessPubKeyHash:
		info.WitnessPubKeyHash = program
	case address.WitnessScriptHash:
		info.WitnessScriptHash = program
	default:
		info.WitnessProgram = program
	}
	if addr.IsWitness() {
		version := addr.WitnessVersion()
		info.WitnessProgramVersion = &version
	}
	if addr.IsConfidential() {
		info.BlindingPubKey = addr.BlindingKey().SerializeCompressed()
		info.Unconfidential = addr.Unconfidential().String()
	}
	return info, nil
}

// AddressesInfo lists the standard addresses of a key or a script.
type AddressesInfo struct {
	P2PKH    string `json:"p2pkh,omitempty" yaml:"p2pkh,omitempty"`
	P2WPKH   string `json:"p2wpkh,omitempty" yaml:"p2wpkh,omitempty"`
	P2SHWPKH string `json:"p2shwpkh,omitempty" yaml:"p2shwpkh,omitempty"`
	P2SH     string `json:"p2sh,omitempty" yaml:"p2sh,omitempty"`
	P2WSH    string `json:"p2wsh,omitempty" yaml:"p2wsh,omitempty"`
	P2SHWSH  string `json:"p2shwsh,omitempty" yaml:"p2shwsh,omitempty"`
}

// NewAddressesInfo returns the record of an address set.
func NewAddressesInfo(set *address.Addresses) *AddressesInfo {
	str := func(a *address.Address) string {
		if a == nil {
			return ""
		}
		return a.String()
	}
	return &AddressesInfo{
		P2PKH:    str(set.P2PKH),
		P2WPKH:   str(set.P2WPKH),
		P2SHWPKH: str(set.P2SHWPKH),
		P2SH:     str(set.P2SH),
		P2WSH:    str(set.P2WSH),
		P2SHWSH:  str(set.P2SHWSH),
	}
}
