// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/elementsutil/eljson"
	"github.com/btcsuite/elementsutil/pset"
	"github.com/btcsuite/elementsutil/wire"
)

// psetSource records how a PSET argument was given.
type psetSource int

const (
	psetBase64 psetSource = iota
	psetHex
	psetFile
)

// psetOutput holds the output options shared by the commands printing a
// PSET.
type psetOutput struct {
	Output    string `short:"o" long:"output" description:"File to write the resulting PSET to"`
	RawStdout bool   `short:"r" long:"raw-stdout" description:"Write the raw PSET bytes to stdout"`
}

// loadPset decodes a PSET given as hex, base64 or the path of a file holding
// the raw or base64 encoding.
func loadPset(arg string) (*pset.Packet, psetSource, error) {
	trimmed := strings.TrimSpace(arg)
	if raw, err := hex.DecodeString(trimmed); err == nil {
		p, err := pset.FromBytes(raw)
		return p, psetHex, err
	}
	if raw, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		p, err := pset.FromBytes(raw)
		return p, psetBase64, err
	}

	data, err := readInput(arg)
	if err != nil {
		return nil, 0, errors.New("PSET is not valid hex or base64 " +
			"and can not be read as a file")
	}
	if !bytes.HasPrefix(data, []byte("pset\xff")) {
		text := string(bytes.TrimSpace(data))
		if raw, err := base64.StdEncoding.DecodeString(text); err == nil {
			data = raw
		}
	}
	p, err := pset.FromBytes(data)
	return p, psetFile, err
}

// write prints or saves a PSET.  Without an explicit destination it is
// printed in the encoding of its source, and a PSET read from path is
// written back in place when path is not empty.
func (o *psetOutput) write(p *pset.Packet, source psetSource,
	path string) error {

	raw, err := p.Bytes()
	if err != nil {
		return err
	}

	switch {
	case o.Output != "":
		return os.WriteFile(o.Output, raw, 0644)
	case o.RawStdout:
		_, err = stdout.Write(raw)
		return err
	case source == psetHex:
		_, err = io.WriteString(stdout, hex.EncodeToString(raw)+"\n")
		return err
	case source == psetFile && path != "" && path != "-":
		mainLog.Debugf("Writing PSET back to %s", path)
		return os.WriteFile(path, raw, 0644)
	}
	_, err = io.WriteString(stdout,
		base64.StdEncoding.EncodeToString(raw)+"\n")
	return err
}

// psetCreateCmd defines the configuration options for the pset-create
// command.
type psetCreateCmd struct {
	psetOutput
}

var (
	// psetCreateCfg defines the configuration options for the command.
	psetCreateCfg = psetCreateCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *psetCreateCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("pset-create requires exactly one raw " +
			"transaction")
	}

	raw, err := parseHex("transaction", args[0])
	if err != nil {
		return err
	}
	var tx wire.MsgTx
	if err := tx.FromBytes(raw); err != nil {
		return err
	}
	p, err := pset.New(&tx)
	if err != nil {
		return err
	}
	return cmd.write(p, psetBase64, "")
}

// Usage overrides the usage display for the command.
func (cmd *psetCreateCmd) Usage() string {
	return "<raw tx hex>"
}

// psetDecodeCmd defines the configuration options for the pset-decode
// command.
type psetDecodeCmd struct{}

var (
	// psetDecodeCfg defines the configuration options for the command.
	psetDecodeCfg = psetDecodeCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *psetDecodeCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("pset-decode requires a PSET")
	}
	for _, arg := range args {
		p, _, err := loadPset(arg)
		if err != nil {
			return err
		}
		if err := printRecord(eljson.NewPsetInfo(p, activeNetParams)); err != nil {
			return err
		}
	}
	return nil
}

// Usage overrides the usage display for the command.
func (cmd *psetDecodeCmd) Usage() string {
	return "<pset>..."
}

// psetEditCmd defines the configuration options for the pset-edit command.
type psetEditCmd struct {
	psetOutput

	InputIdx  *int `long:"input-idx" description:"Index of the input to edit"`
	OutputIdx *int `long:"output-idx" description:"Index of the output to edit"`

	RedeemScript   string   `long:"redeem-script" description:"Redeem script in hex"`
	WitnessScript  string   `long:"witness-script" description:"Witness script in hex"`
	HDKeyPaths     string   `long:"hd-keypaths" description:"Replace the HD keypaths with <pubkey>:<master-fp>:<path>,..."`
	HDKeyPathsAdd  []string `long:"hd-keypaths-add" description:"Add an HD keypath <pubkey>:<master-fp>:<path>"`
	NonWitnessUtxo string   `long:"non-witness-utxo" description:"Transaction holding the spent output, in hex (input only)"`
	WitnessUtxo    string   `long:"witness-utxo" description:"Spent output in hex (input only)"`
	PartialSigs    string   `long:"partial-sigs" description:"Replace the partial signatures with <pubkey>:<signature>,... (input only)"`
	PartialSigsAdd []string `long:"partial-sigs-add" description:"Add a partial signature <pubkey>:<signature> (input only)"`
	SighashType    string   `long:"sighash-type" description:"Requested sighash type, e.g. ALL or SINGLE|ANYONECANPAY (input only)"`
	FinalScriptSig string   `long:"final-script-sig" description:"Final script signature in hex (input only)"`
	FinalWitness   string   `long:"final-script-witness" description:"Final witness as comma separated hex items (input only)"`
}

var (
	// psetEditCfg defines the configuration options for the command.
	psetEditCfg = psetEditCmd{}
)

// parsePubKeyBytes decodes and checks a hex public key.
func parsePubKeyBytes(name, s string) ([]byte, error) {
	key, err := parsePubKey(name, s)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("missing %s", name)
	}
	return parseHex(name, s)
}

// parsePartialSig parses a <pubkey>:<signature> pair.
func parsePartialSig(pair string) (*psbt.PartialSig, error) {
	parts := strings.SplitN(pair, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid partial signature %q: want "+
			"<pubkey>:<signature>", pair)
	}
	pubKey, err := parsePubKeyBytes("partial signature pubkey", parts[0])
	if err != nil {
		return nil, err
	}
	sig, err := parseHex("partial signature", parts[1])
	if err != nil {
		return nil, err
	}
	return &psbt.PartialSig{PubKey: pubKey, Signature: sig}, nil
}

// parseKeyPath parses a <pubkey>:<master-fp>:<path> triplet.  The
// fingerprint is stored little endian like the serialized PSET field.
func parseKeyPath(triplet string) (*psbt.Bip32Derivation, error) {
	parts := strings.SplitN(triplet, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid HD keypath %q: want "+
			"<pubkey>:<master-fp>:<path>", triplet)
	}
	pubKey, err := parsePubKeyBytes("HD keypath pubkey", parts[0])
	if err != nil {
		return nil, err
	}
	fp, err := parseHex("HD keypath fingerprint", parts[1])
	if err != nil {
		return nil, err
	}
	if len(fp) != 4 {
		return nil, fmt.Errorf("invalid HD keypath fingerprint size: "+
			"%d instead of 4", len(fp))
	}
	path, err := pset.ParsePath(parts[2])
	if err != nil {
		return nil, err
	}
	return &psbt.Bip32Derivation{
		PubKey: pubKey,
		MasterKeyFingerprint: uint32(fp[0]) | uint32(fp[1])<<8 |
			uint32(fp[2])<<16 | uint32(fp[3])<<24,
		Bip32Path: path,
	}, nil
}

// editKeyPaths applies the keypath options to derivations.
func (cmd *psetEditCmd) editKeyPaths(
	derivations []*psbt.Bip32Derivation) ([]*psbt.Bip32Derivation, error) {

	var triplets []string
	if cmd.HDKeyPaths != "" {
		derivations = nil
		triplets = strings.Split(cmd.HDKeyPaths, ",")
	}
	for _, triplet := range append(triplets, cmd.HDKeyPathsAdd...) {
		d, err := parseKeyPath(triplet)
		if err != nil {
			return nil, err
		}
		derivations = append(derivations, d)
	}
	return derivations, nil
}

// editScripts applies the redeem and witness script options.
func (cmd *psetEditCmd) editScripts(redeem, witness *[]byte) error {
	if cmd.RedeemScript != "" {
		script, err := parseHex("redeem script", cmd.RedeemScript)
		if err != nil {
			return err
		}
		*redeem = script
	}
	if cmd.WitnessScript != "" {
		script, err := parseHex("witness script", cmd.WitnessScript)
		if err != nil {
			return err
		}
		*witness = script
	}
	return nil
}

func (cmd *psetEditCmd) editInput(pi *pset.Input) error {
	if cmd.NonWitnessUtxo != "" {
		raw, err := parseHex("non-witness utxo", cmd.NonWitnessUtxo)
		if err != nil {
			return err
		}
		tx := &wire.MsgTx{}
		if err := tx.FromBytes(raw); err != nil {
			return fmt.Errorf("invalid non-witness utxo: %w", err)
		}
		pi.NonWitnessUtxo = tx
	}
	if cmd.WitnessUtxo != "" {
		raw, err := parseHex("witness utxo", cmd.WitnessUtxo)
		if err != nil {
			return err
		}
		txOut := &wire.TxOut{}
		if err := txOut.FromBytes(raw); err != nil {
			return fmt.Errorf("invalid witness utxo: %w", err)
		}
		pi.WitnessUtxo = txOut
	}

	var pairs []string
	if cmd.PartialSigs != "" {
		pi.PartialSigs = nil
		pairs = strings.Split(cmd.PartialSigs, ",")
	}
	for _, pair := range append(pairs, cmd.PartialSigsAdd...) {
		sig, err := parsePartialSig(pair)
		if err != nil {
			return err
		}
		pi.PartialSigs = append(pi.PartialSigs, sig)
	}

	if cmd.SighashType != "" {
		sigHash, err := pset.ParseSigHash(cmd.SighashType)
		if err != nil {
			return err
		}
		pi.SighashType = sigHash
	}
	if err := cmd.editScripts(&pi.RedeemScript, &pi.WitnessScript); err != nil {
		return err
	}
	derivations, err := cmd.editKeyPaths(pi.Bip32Derivation)
	if err != nil {
		return err
	}
	pi.Bip32Derivation = derivations

	if cmd.FinalScriptSig != "" {
		script, err := parseHex("final script sig", cmd.FinalScriptSig)
		if err != nil {
			return err
		}
		pi.FinalScriptSig = script
	}
	if cmd.FinalWitness != "" {
		var witness wire.TxWitness
		for _, item := range strings.Split(cmd.FinalWitness, ",") {
			b, err := parseHex("final script witness", item)
			if err != nil {
				return err
			}
			witness = append(witness, b)
		}
		pi.FinalScriptWitness = witness
	}
	return nil
}

func (cmd *psetEditCmd) editOutput(po *pset.Output) error {
	inputOnly := cmd.NonWitnessUtxo != "" || cmd.WitnessUtxo != "" ||
		cmd.PartialSigs != "" || len(cmd.PartialSigsAdd) != 0 ||
		cmd.SighashType != "" || cmd.FinalScriptSig != "" ||
		cmd.FinalWitness != ""
	if inputOnly {
		return errors.New("utxo, signature and final script options " +
			"only apply to inputs")
	}

	if err := cmd.editScripts(&po.RedeemScript, &po.WitnessScript); err != nil {
		return err
	}
	derivations, err := cmd.editKeyPaths(po.Bip32Derivation)
	if err != nil {
		return err
	}
	po.Bip32Derivation = derivations
	return nil
}

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *psetEditCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("pset-edit requires exactly one PSET")
	}
	p, source, err := loadPset(args[0])
	if err != nil {
		return err
	}

	switch {
	case cmd.InputIdx == nil && cmd.OutputIdx == nil:
		return errors.New("no input or output index provided")
	case cmd.InputIdx != nil && cmd.OutputIdx != nil:
		return errors.New("can only edit an input or an output at a time")

	case cmd.InputIdx != nil:
		i := *cmd.InputIdx
		if i < 0 || i >= len(p.Inputs) {
			return fmt.Errorf("input index %d out of range for %d "+
				"inputs", i, len(p.Inputs))
		}
		if err := cmd.editInput(p.Inputs[i]); err != nil {
			return err
		}

	default:
		i := *cmd.OutputIdx
		if i < 0 || i >= len(p.Outputs) {
			return fmt.Errorf("output index %d out of range for %d "+
				"outputs", i, len(p.Outputs))
		}
		if err := cmd.editOutput(p.Outputs[i]); err != nil {
			return err
		}
	}

	// Reject edits the packet can not carry, such as a utxo that does
	// not match the outpoint.
	if err := p.SanityCheck(); err != nil {
		return err
	}
	return cmd.write(p, source, args[0])
}

// Usage overrides the usage display for the command.
func (cmd *psetEditCmd) Usage() string {
	return "<pset>"
}

// psetMergeCmd defines the configuration options for the pset-merge command.
type psetMergeCmd struct {
	psetOutput
}

var (
	// psetMergeCfg defines the configuration options for the command.
	psetMergeCfg = psetMergeCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *psetMergeCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("pset-merge requires at least one PSET")
	}

	merged, _, err := loadPset(args[0])
	if err != nil {
		return err
	}
	for _, arg := range args[1:] {
		p, _, err := loadPset(arg)
		if err != nil {
			return err
		}
		if err := merged.Merge(p); err != nil {
			return err
		}
	}
	mainLog.Debugf("Merged %d PSETs", len(args))
	return cmd.write(merged, psetBase64, "")
}

// Usage overrides the usage display for the command.
func (cmd *psetMergeCmd) Usage() string {
	return "<pset>..."
}

// psetFinalizeCmd defines the configuration options for the pset-finalize
// command.
type psetFinalizeCmd struct {
	RawStdout bool `short:"r" long:"raw-stdout" description:"Write the raw transaction bytes instead of hex"`
}

var (
	// psetFinalizeCfg defines the configuration options for the command.
	psetFinalizeCfg = psetFinalizeCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *psetFinalizeCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("pset-finalize requires exactly one PSET")
	}
	p, _, err := loadPset(args[0])
	if err != nil {
		return err
	}
	if err := p.FinalizeAll(); err != nil {
		return err
	}
	tx, err := p.Extract()
	if err != nil {
		return err
	}
	raw, err := tx.Bytes()
	if err != nil {
		return err
	}

	if cmd.RawStdout {
		_, err = stdout.Write(raw)
		return err
	}
	_, err = io.WriteString(stdout, hex.EncodeToString(raw)+"\n")
	return err
}

// Usage overrides the usage display for the command.
func (cmd *psetFinalizeCmd) Usage() string {
	return "<pset>"
}
