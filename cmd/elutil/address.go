// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"

	"github.com/btcsuite/elementsutil/address"
	"github.com/btcsuite/elementsutil/descriptor"
	"github.com/btcsuite/elementsutil/eljson"
)

// addressInspectCmd defines the configuration options for the
// address-inspect command.
type addressInspectCmd struct {
	AnyNetwork bool `long:"anynet" description:"Take the network from the address instead of --network"`
}

var (
	// addressInspectCfg defines the configuration options for the command.
	addressInspectCfg = addressInspectCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *addressInspectCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("address-inspect requires exactly one address")
	}

	net := activeNetParams
	if cmd.AnyNetwork {
		net = nil
	}
	addr, err := address.Decode(args[0], net)
	if err != nil {
		return err
	}
	info, err := eljson.NewAddressInfo(addr)
	if err != nil {
		return err
	}
	return printRecord(info)
}

// Usage overrides the usage display for the command.
func (cmd *addressInspectCmd) Usage() string {
	return "<address>"
}

// addressCreateCmd defines the configuration options for the address-create
// command.
type addressCreateCmd struct {
	PubKey  string `long:"pubkey" description:"Hex encoded public key to create P2PKH, P2WPKH and P2SH-P2WPKH addresses for"`
	Script  string `long:"script" description:"Hex encoded script to create P2SH, P2WSH and P2SH-P2WSH addresses for"`
	Blinder string `long:"blinder" description:"Hex encoded blinding public key making the addresses confidential"`
}

var (
	// addressCreateCfg defines the configuration options for the command.
	addressCreateCfg = addressCreateCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *addressCreateCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if (cmd.PubKey == "") == (cmd.Script == "") {
		return errors.New("exactly one of --pubkey and --script is " +
			"required")
	}
	blinder, err := parsePubKey("blinder", cmd.Blinder)
	if err != nil {
		return err
	}

	var set *address.Addresses
	if cmd.PubKey != "" {
		key, err := parsePubKey("pubkey", cmd.PubKey)
		if err != nil {
			return err
		}
		set, err = address.ForPubKey(key, blinder, activeNetParams)
		if err != nil {
			return err
		}
	} else {
		script, err := parseHex("script", cmd.Script)
		if err != nil {
			return err
		}
		set, err = address.ForScript(script, blinder, activeNetParams)
		if err != nil {
			return err
		}
	}
	return printRecord(eljson.NewAddressesInfo(set))
}

// descriptorCmd defines the configuration options for the descriptor
// command.
type descriptorCmd struct {
	Blinder string `long:"blinder" description:"Hex encoded blinding public key making the address confidential"`
}

var (
	// descriptorCfg defines the configuration options for the command.
	descriptorCfg = descriptorCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *descriptorCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("descriptor requires exactly one descriptor")
	}
	blinder, err := parsePubKey("blinder", cmd.Blinder)
	if err != nil {
		return err
	}

	d, err := descriptor.Parse(args[0])
	if err != nil {
		return err
	}
	info, err := eljson.NewDescriptorInfo(d, activeNetParams, blinder)
	if err != nil {
		return err
	}
	return printRecord(info)
}

// Usage overrides the usage display for the command.
func (cmd *descriptorCmd) Usage() string {
	return "<descriptor>"
}
