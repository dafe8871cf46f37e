// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/pset"
)

// HDPathInfo models the origin of a key in a wallet.
type HDPathInfo struct {
	MasterFingerprint string `json:"master_fingerprint" yaml:"master_fingerprint"`
	Path              string `json:"path" yaml:"path"`
}

func newHDPathInfo(fingerprint uint32, path []uint32) HDPathInfo {
	// Fingerprints are kept little endian, as read from the wire.
	fp := []byte{byte(fingerprint), byte(fingerprint >> 8),
		byte(fingerprint >> 16), byte(fingerprint >> 24)}
	return HDPathInfo{
		MasterFingerprint: hex.EncodeToString(fp),
		Path:              pset.FormatPath(path),
	}
}

func hdKeyPaths(derivations []*psbt.Bip32Derivation) map[string]HDPathInfo {
	if len(derivations) == 0 {
		return nil
	}
	paths := make(map[string]HDPathInfo, len(derivations))
	for _, d := range derivations {
		paths[hex.EncodeToString(d.PubKey)] = newHDPathInfo(
			d.MasterKeyFingerprint, d.Bip32Path)
	}
	return paths
}

// unknownMaps splits unknown entries into the proprietary ones and the rest.
// Both maps are keyed by the hex of the full key.
func unknownMaps(unknowns []*psbt.Unknown) (map[string]HexBytes,
	map[string]HexBytes) {

	var proprietary, unknown map[string]HexBytes
	for _, u := range unknowns {
		m := &unknown
		if len(u.Key) > 0 && u.Key[0] == byte(pset.ProprietaryGlobalType) {
			m = &proprietary
		}
		if *m == nil {
			*m = make(map[string]HexBytes)
		}
		(*m)[hex.EncodeToString(u.Key)] = append(HexBytes(nil), u.Value...)
	}
	return proprietary, unknown
}

func uint64Ptr(v uint64) *uint64 { return &v }

func uint8Ptr(v *uint8) *uint8 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// PsetGlobalInfo models the global map of a PSET.
type PsetGlobalInfo struct {
	Version              uint32                `json:"version" yaml:"version"`
	TxVersion            uint32                `json:"tx_version" yaml:"tx_version"`
	FallbackLockTime     *uint32               `json:"fallback_locktime,omitempty" yaml:"fallback_locktime,omitempty"`
	InputCount           int                   `json:"input_count" yaml:"input_count"`
	OutputCount          int                   `json:"output_count" yaml:"output_count"`
	TxModifiable         *uint8                `json:"tx_modifiable,omitempty" yaml:"tx_modifiable,omitempty"`
	ElementsTxModifiable *uint8                `json:"elements_tx_modifiable,omitempty" yaml:"elements_tx_modifiable,omitempty"`
	XPubs                map[string]HDPathInfo `json:"xpubs,omitempty" yaml:"xpubs,omitempty"`
	Scalars              []HexBytes            `json:"scalars,omitempty" yaml:"scalars,omitempty"`
	Proprietary          map[string]HexBytes   `json:"proprietary,omitempty" yaml:"proprietary,omitempty"`
	Unknown              map[string]HexBytes   `json:"unknown,omitempty" yaml:"unknown,omitempty"`
}

// PsetIssuanceInfo models the issuance fields of a PSET input.
type PsetIssuanceInfo struct {
	Value           *ConfidentialValueInfo `json:"value,omitempty" yaml:"value,omitempty"`
	ValueRangeProof HexBytes               `json:"value_rangeproof,omitempty" yaml:"value_rangeproof,omitempty"`
	InflationKeys   *ConfidentialValueInfo `json:"inflation_keys,omitempty" yaml:"inflation_keys,omitempty"`
	KeysRangeProof  HexBytes               `json:"keys_rangeproof,omitempty" yaml:"keys_rangeproof,omitempty"`
	BlindingNonce   HexBytes               `json:"blinding_nonce,omitempty" yaml:"blinding_nonce,omitempty"`
	AssetEntropy    HexBytes               `json:"asset_entropy,omitempty" yaml:"asset_entropy,omitempty"`
}

// PsetPeginInfo models the peg-in fields of a PSET input.
type PsetPeginInfo struct {
	Tx          *MainchainTxInfo `json:"tx,omitempty" yaml:"tx,omitempty"`
	TxHex       HexBytes         `json:"tx_hex,omitempty" yaml:"tx_hex,omitempty"`
	TxoutProof  HexBytes         `json:"txout_proof,omitempty" yaml:"txout_proof,omitempty"`
	GenesisHash string           `json:"genesis_hash,omitempty" yaml:"genesis_hash,omitempty"`
	ClaimScript HexBytes         `json:"claim_script,omitempty" yaml:"claim_script,omitempty"`
	Value       *uint64          `json:"value,omitempty" yaml:"value,omitempty"`
	Witness     []HexBytes       `json:"witness,omitempty" yaml:"witness,omitempty"`
}

// PsetInputInfo models an input map of a PSET.
type PsetInputInfo struct {
	PreviousTxid           string                `json:"previous_txid" yaml:"previous_txid"`
	PreviousOutputIndex    uint32                `json:"previous_output_index" yaml:"previous_output_index"`
	Sequence               uint32                `json:"sequence" yaml:"sequence"`
	NonWitnessUtxo         *TransactionInfo      `json:"non_witness_utxo,omitempty" yaml:"non_witness_utxo,omitempty"`
	WitnessUtxo            *OutputInfo           `json:"witness_utxo,omitempty" yaml:"witness_utxo,omitempty"`
	PartialSigs            map[string]HexBytes   `json:"partial_sigs,omitempty" yaml:"partial_sigs,omitempty"`
	SighashType            string                `json:"sighash_type,omitempty" yaml:"sighash_type,omitempty"`
	RedeemScript           *OutputScriptInfo     `json:"redeem_script,omitempty" yaml:"redeem_script,omitempty"`
	WitnessScript          *OutputScriptInfo     `json:"witness_script,omitempty" yaml:"witness_script,omitempty"`
	HDKeyPaths             map[string]HDPathInfo `json:"hd_keypaths,omitempty" yaml:"hd_keypaths,omitempty"`
	FinalScriptSig         *InputScriptInfo      `json:"final_script_sig,omitempty" yaml:"final_script_sig,omitempty"`
	FinalScriptWitness     []HexBytes            `json:"final_script_witness,omitempty" yaml:"final_script_witness,omitempty"`
	Preimages              map[string]HexBytes   `json:"preimages,omitempty" yaml:"preimages,omitempty"`
	RequiredTimeLockTime   *uint32               `json:"required_time_locktime,omitempty" yaml:"required_time_locktime,omitempty"`
	RequiredHeightLockTime *uint32               `json:"required_height_locktime,omitempty" yaml:"required_height_locktime,omitempty"`
	Issuance               *PsetIssuanceInfo     `json:"issuance,omitempty" yaml:"issuance,omitempty"`
	Pegin                  *PsetPeginInfo        `json:"pegin,omitempty" yaml:"pegin,omitempty"`
	Proprietary            map[string]HexBytes   `json:"proprietary,omitempty" yaml:"proprietary,omitempty"`
	Unknown                map[string]HexBytes   `json:"unknown,omitempty" yaml:"unknown,omitempty"`
}

// PsetOutputInfo models an output map of a PSET.
type PsetOutputInfo struct {
	ScriptPubKey         *OutputScriptInfo      `json:"script_pub_key" yaml:"script_pub_key"`
	Amount               *ConfidentialValueInfo `json:"amount,omitempty" yaml:"amount,omitempty"`
	Asset                *ConfidentialAssetInfo `json:"asset,omitempty" yaml:"asset,omitempty"`
	RedeemScript         *OutputScriptInfo      `json:"redeem_script,omitempty" yaml:"redeem_script,omitempty"`
	WitnessScript        *OutputScriptInfo      `json:"witness_script,omitempty" yaml:"witness_script,omitempty"`
	HDKeyPaths           map[string]HDPathInfo  `json:"hd_keypaths,omitempty" yaml:"hd_keypaths,omitempty"`
	ValueRangeProof      HexBytes               `json:"value_rangeproof,omitempty" yaml:"value_rangeproof,omitempty"`
	AssetSurjectionProof HexBytes               `json:"asset_surjection_proof,omitempty" yaml:"asset_surjection_proof,omitempty"`
	BlindValueProof      HexBytes               `json:"blind_value_proof,omitempty" yaml:"blind_value_proof,omitempty"`
	BlindAssetProof      HexBytes               `json:"blind_asset_proof,omitempty" yaml:"blind_asset_proof,omitempty"`
	BlindingKey          HexBytes               `json:"blinding_key,omitempty" yaml:"blinding_key,omitempty"`
	EcdhPubKey           HexBytes               `json:"ecdh_pubkey,omitempty" yaml:"ecdh_pubkey,omitempty"`
	BlinderIndex         *uint32                `json:"blinder_index,omitempty" yaml:"blinder_index,omitempty"`
	Proprietary          map[string]HexBytes    `json:"proprietary,omitempty" yaml:"proprietary,omitempty"`
	Unknown              map[string]HexBytes    `json:"unknown,omitempty" yaml:"unknown,omitempty"`
}

// PsetInfo models a partially signed Elements transaction.
type PsetInfo struct {
	Global  PsetGlobalInfo   `json:"global" yaml:"global"`
	Inputs  []PsetInputInfo  `json:"inputs" yaml:"inputs"`
	Outputs []PsetOutputInfo `json:"outputs" yaml:"outputs"`

	// Complete is set when every input holds its final scripts.
	Complete bool `json:"complete" yaml:"complete"`
}

// NewPsetInfo returns the record of a PSET on net.
func NewPsetInfo(p *pset.Packet, net *chaincfg.Params) *PsetInfo {
	info := &PsetInfo{
		Global: PsetGlobalInfo{
			Version:              pset.Version,
			TxVersion:            p.TxVersion,
			FallbackLockTime:     p.FallbackLockTime,
			InputCount:           len(p.Inputs),
			OutputCount:          len(p.Outputs),
			TxModifiable:         uint8Ptr(p.TxModifiable),
			ElementsTxModifiable: uint8Ptr(p.ElementsTxModifiable),
		},
		Inputs:   make([]PsetInputInfo, len(p.Inputs)),
		Outputs:  make([]PsetOutputInfo, len(p.Outputs)),
		Complete: p.IsComplete(),
	}

	global := &info.Global
	for _, x := range p.XPubs {
		if global.XPubs == nil {
			global.XPubs = make(map[string]HDPathInfo)
		}
		name := hex.EncodeToString(x.ExtendedKey)
		if key, err := x.Key(); err == nil {
			name = key.String()
		}
		global.XPubs[name] = newHDPathInfo(x.MasterKeyFingerprint,
			x.Bip32Path)
	}
	for _, scalar := range p.Scalars {
		global.Scalars = append(global.Scalars,
			append(HexBytes(nil), scalar[:]...))
	}
	global.Proprietary, global.Unknown = unknownMaps(p.Unknowns)

	for i, pi := range p.Inputs {
		info.Inputs[i] = newPsetInputInfo(pi, net)
	}
	for i, po := range p.Outputs {
		info.Outputs[i] = newPsetOutputInfo(po, net)
	}
	return info
}

func newPsetInputInfo(pi *pset.Input, net *chaincfg.Params) PsetInputInfo {
	outpoint := pi.OutPoint()
	info := PsetInputInfo{
		PreviousTxid:           outpoint.Hash.String(),
		PreviousOutputIndex:    outpoint.Index,
		Sequence:               pi.Sequence,
		HDKeyPaths:             hdKeyPaths(pi.Bip32Derivation),
		RequiredTimeLockTime:   pi.RequiredTimeLockTime,
		RequiredHeightLockTime: pi.RequiredHeightLockTime,
	}
	if pi.NonWitnessUtxo != nil {
		info.NonWitnessUtxo = NewTransactionInfo(pi.NonWitnessUtxo, net)
	}
	if pi.WitnessUtxo != nil {
		info.WitnessUtxo = NewOutputInfo(pi.WitnessUtxo, net)
	}
	for _, sig := range pi.PartialSigs {
		if info.PartialSigs == nil {
			info.PartialSigs = make(map[string]HexBytes)
		}
		info.PartialSigs[hex.EncodeToString(sig.PubKey)] =
			append(HexBytes(nil), sig.Signature...)
	}
	if pi.SighashType != 0 {
		info.SighashType = pset.SigHashString(pi.SighashType)
	}
	if pi.RedeemScript != nil {
		info.RedeemScript = NewOutputScriptInfo(pi.RedeemScript, net)
	}
	if pi.WitnessScript != nil {
		info.WitnessScript = NewOutputScriptInfo(pi.WitnessScript, net)
	}
	if pi.FinalScriptSig != nil {
		info.FinalScriptSig = NewInputScriptInfo(pi.FinalScriptSig)
	}
	info.FinalScriptWitness = hexList(pi.FinalScriptWitness)
	for _, p := range pi.Preimages {
		if info.Preimages == nil {
			info.Preimages = make(map[string]HexBytes)
		}
		key := p.Kind.String() + ":" + hex.EncodeToString(p.Hash)
		info.Preimages[key] = append(HexBytes(nil), p.Preimage...)
	}
	if pi.HasIssuance() {
		info.Issuance = newPsetIssuanceInfo(pi)
	}
	if pi.IsPegin() {
		info.Pegin = newPsetPeginInfo(pi, net)
	}
	info.Proprietary, info.Unknown = unknownMaps(pi.Unknowns)
	return info
}

// issuanceValueInfo returns the record of an issuance amount, preferring the
// commitment, or nil when neither form is set.
func issuanceValueInfo(explicit *uint64, commitment []byte) *ConfidentialValueInfo {
	switch {
	case commitment != nil:
		return &ConfidentialValueInfo{
			Type:       TypeConfidential,
			Commitment: append(HexBytes(nil), commitment...),
		}
	case explicit != nil:
		return &ConfidentialValueInfo{
			Type:  TypeExplicit,
			Value: uint64Ptr(*explicit),
		}
	}
	return nil
}

func newPsetIssuanceInfo(pi *pset.Input) *PsetIssuanceInfo {
	info := &PsetIssuanceInfo{
		Value: issuanceValueInfo(pi.IssuanceValue,
			pi.IssuanceValueCommitment),
		ValueRangeProof: append(HexBytes(nil),
			pi.IssuanceValueRangeProof...),
		InflationKeys: issuanceValueInfo(pi.IssuanceInflationKeys,
			pi.IssuanceInflationKeysCommitment),
		KeysRangeProof: append(HexBytes(nil),
			pi.IssuanceKeysRangeProof...),
	}
	if pi.IssuanceBlindingNonce != nil {
		info.BlindingNonce = append(HexBytes(nil),
			pi.IssuanceBlindingNonce[:]...)
	}
	if pi.IssuanceAssetEntropy != nil {
		info.AssetEntropy = append(HexBytes(nil),
			pi.IssuanceAssetEntropy[:]...)
	}
	return info
}

func newPsetPeginInfo(pi *pset.Input, net *chaincfg.Params) *PsetPeginInfo {
	info := &PsetPeginInfo{
		TxoutProof:  append(HexBytes(nil), pi.PeginTxoutProof...),
		ClaimScript: append(HexBytes(nil), pi.PeginClaimScript...),
		Value:       pi.PeginValue,
		Witness:     hexList(pi.PeginWitness),
	}
	if pi.PeginTx != nil {
		var buf bytes.Buffer
		if err := pi.PeginTx.Serialize(&buf); err == nil {
			info.TxHex = buf.Bytes()
			info.Tx = newMainchainTxInfo(buf.Bytes(), net)
		}
	}
	if pi.PeginGenesisHash != nil {
		info.GenesisHash = pi.PeginGenesisHash.String()
	}
	return info
}

func newPsetOutputInfo(po *pset.Output, net *chaincfg.Params) PsetOutputInfo {
	info := PsetOutputInfo{
		ScriptPubKey: NewOutputScriptInfo(po.Script, net),
		HDKeyPaths:   hdKeyPaths(po.Bip32Derivation),
		ValueRangeProof: append(HexBytes(nil),
			po.ValueRangeProof...),
		AssetSurjectionProof: append(HexBytes(nil),
			po.AssetSurjectionProof...),
		BlindValueProof: append(HexBytes(nil), po.BlindValueProof...),
		BlindAssetProof: append(HexBytes(nil), po.BlindAssetProof...),
		BlindingKey:     append(HexBytes(nil), po.BlindingPubKey...),
		EcdhPubKey:      append(HexBytes(nil), po.EcdhPubKey...),
		BlinderIndex:    po.BlinderIndex,
	}
	if value, err := po.Value(); err == nil {
		info.Amount = NewConfidentialValueInfo(&value)
	}
	if asset, err := po.AssetValue(); err == nil {
		info.Asset = NewConfidentialAssetInfo(&asset, net)
	}
	if po.RedeemScript != nil {
		info.RedeemScript = NewOutputScriptInfo(po.RedeemScript, net)
	}
	if po.WitnessScript != nil {
		info.WitnessScript = NewOutputScriptInfo(po.WitnessScript, net)
	}
	info.Proprietary, info.Unknown = unknownMaps(po.Unknowns)
	return info
}
