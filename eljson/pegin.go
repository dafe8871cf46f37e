// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/wire"
)

// Positions of the items of a pegin witness.
const (
	peginValue = iota
	peginAsset
	peginGenesisHash
	peginClaimScript
	peginMainchainTx
	peginMerkleProof
	peginWitnessItems
)

// MainchainOutputInfo models an output of the parent chain transaction of a
// pegin.
type MainchainOutputInfo struct {
	Value        int64             `json:"value" yaml:"value"`
	ScriptPubKey *OutputScriptInfo `json:"script_pub_key" yaml:"script_pub_key"`
}

// MainchainTxInfo summarizes the parent chain transaction of a pegin.
type MainchainTxInfo struct {
	Txid     string                `json:"txid" yaml:"txid"`
	Version  int32                 `json:"version" yaml:"version"`
	LockTime uint32                `json:"locktime" yaml:"locktime"`
	Inputs   []string              `json:"inputs" yaml:"inputs"`
	Outputs  []MainchainOutputInfo `json:"outputs" yaml:"outputs"`
}

// PeginDataInfo models the claim of coins locked on the parent chain.
// MainchainTx and ReferencedBlock are decoded from the raw fields and ignored
// on creation.
type PeginDataInfo struct {
	Outpoint        string                 `json:"outpoint" yaml:"outpoint"`
	Value           *uint64                `json:"value" yaml:"value"`
	Asset           *ConfidentialAssetInfo `json:"asset" yaml:"asset"`
	GenesisHash     string                 `json:"genesis_hash" yaml:"genesis_hash"`
	ClaimScript     HexBytes               `json:"claim_script" yaml:"claim_script"`
	MainchainTxHex  HexBytes               `json:"mainchain_tx_hex" yaml:"mainchain_tx_hex"`
	MainchainTx     *MainchainTxInfo       `json:"mainchain_tx,omitempty" yaml:"mainchain_tx,omitempty"`
	MerkleProof     HexBytes               `json:"merkle_proof" yaml:"merkle_proof"`
	ReferencedBlock string                 `json:"referenced_block,omitempty" yaml:"referenced_block,omitempty"`
}

// newMainchainTxInfo decodes a parent chain transaction, or returns nil when
// it does not parse.
func newMainchainTxInfo(raw []byte, net *chaincfg.Params) *MainchainTxInfo {
	var tx btcwire.MsgTx
	r := bytes.NewReader(raw)
	if err := tx.Deserialize(r); err != nil || r.Len() != 0 {
		return nil
	}

	info := &MainchainTxInfo{
		Txid:     tx.TxHash().String(),
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Inputs:   make([]string, len(tx.TxIn)),
		Outputs:  make([]MainchainOutputInfo, len(tx.TxOut)),
	}
	for i, txIn := range tx.TxIn {
		info.Inputs[i] = txIn.PreviousOutPoint.String()
	}
	for i, txOut := range tx.TxOut {
		info.Outputs[i] = MainchainOutputInfo{
			Value:        txOut.Value,
			ScriptPubKey: newParentScriptInfo(txOut.PkScript, net),
		}
	}
	return info
}

// referencedBlock returns the hash of the block header opening a merkle
// proof.
func referencedBlock(proof []byte) string {
	var header btcwire.BlockHeader
	if err := header.Deserialize(bytes.NewReader(proof)); err != nil {
		return ""
	}
	return header.BlockHash().String()
}

// newPeginDataInfo decodes the pegin witness of an input.  It returns nil
// when the witness does not have the pegin layout.
func newPeginDataInfo(txIn *wire.TxIn, net *chaincfg.Params) *PeginDataInfo {
	w := txIn.PeginWitness
	if len(w) != peginWitnessItems || len(w[peginValue]) != 8 ||
		len(w[peginAsset]) != chainhash.HashSize ||
		len(w[peginGenesisHash]) != chainhash.HashSize {

		return nil
	}

	value := binary.LittleEndian.Uint64(w[peginValue])
	var assetID, genesis chainhash.Hash
	copy(assetID[:], w[peginAsset])
	copy(genesis[:], w[peginGenesisHash])
	asset := wire.NewExplicitAsset(assetID)

	return &PeginDataInfo{
		Outpoint:        txIn.PreviousOutPoint.String(),
		Value:           &value,
		Asset:           NewConfidentialAssetInfo(&asset, net),
		GenesisHash:     genesis.String(),
		ClaimScript:     append(HexBytes(nil), w[peginClaimScript]...),
		MainchainTxHex:  append(HexBytes(nil), w[peginMainchainTx]...),
		MainchainTx:     newMainchainTxInfo(w[peginMainchainTx], net),
		MerkleProof:     append(HexBytes(nil), w[peginMerkleProof]...),
		ReferencedBlock: referencedBlock(w[peginMerkleProof]),
	}
}

// witness synthesizes the pegin witness of an input spending prevout.
func (info *PeginDataInfo) witness(field string,
	prevout wire.OutPoint) (wire.TxWitness, error) {

	if info.Outpoint == "" {
		return nil, missingField(join(field, "outpoint"))
	}
	outpoint, err := parseOutPoint(join(field, "outpoint"), info.Outpoint)
	if err != nil {
		return nil, err
	}
	if outpoint != prevout {
		return nil, typeMismatch(join(field, "outpoint"), "pegin "+
			"outpoint %v does not match input prevout %v", outpoint,
			prevout)
	}

	if info.Value == nil {
		return nil, missingField(join(field, "value"))
	}
	if info.Asset == nil {
		return nil, missingField(join(field, "asset"))
	}
	asset, err := info.Asset.toAsset(join(field, "asset"))
	if err != nil {
		return nil, err
	}
	if !asset.IsExplicit() {
		return nil, typeMismatch(join(field, "asset"), "pegin asset must "+
			"be explicit")
	}
	if info.GenesisHash == "" {
		return nil, missingField(join(field, "genesis_hash"))
	}
	genesis, err := parseHash(join(field, "genesis_hash"), info.GenesisHash)
	if err != nil {
		return nil, err
	}

	for _, item := range []struct {
		name  string
		value HexBytes
	}{
		{"claim_script", info.ClaimScript},
		{"mainchain_tx_hex", info.MainchainTxHex},
		{"merkle_proof", info.MerkleProof},
	} {
		if item.value == nil {
			return nil, missingField(join(field, item.name))
		}
	}

	var value [8]byte
	binary.LittleEndian.PutUint64(value[:], *info.Value)
	return wire.TxWitness{
		value[:],
		append([]byte(nil), asset.ID[:]...),
		append([]byte(nil), genesis[:]...),
		append([]byte(nil), info.ClaimScript...),
		append([]byte(nil), info.MainchainTxHex...),
		append([]byte(nil), info.MerkleProof...),
	}, nil
}
