// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"strconv"
	"strings"

	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/txscript"
	"github.com/btcsuite/elementsutil/wire"
)

// AssetIssuanceInfo models the issuance or reissuance of an asset.
type AssetIssuanceInfo struct {
	AssetBlindingNonce HexBytes               `json:"asset_blinding_nonce" yaml:"asset_blinding_nonce"`
	AssetEntropy       HexBytes               `json:"asset_entropy" yaml:"asset_entropy"`
	Amount             *ConfidentialValueInfo `json:"amount" yaml:"amount"`
	InflationKeys      *ConfidentialValueInfo `json:"inflation_keys" yaml:"inflation_keys"`
	IsReissuance       bool                   `json:"is_reissuance" yaml:"is_reissuance"`
}

// InputWitnessInfo models the witness of an input.
type InputWitnessInfo struct {
	AmountRangeproof        HexBytes   `json:"amount_rangeproof,omitempty" yaml:"amount_rangeproof,omitempty"`
	InflationKeysRangeproof HexBytes   `json:"inflation_keys_rangeproof,omitempty" yaml:"inflation_keys_rangeproof,omitempty"`
	ScriptWitness           []HexBytes `json:"script_witness,omitempty" yaml:"script_witness,omitempty"`
	PeginWitness            []HexBytes `json:"pegin_witness,omitempty" yaml:"pegin_witness,omitempty"`
}

// InputInfo models a transaction input.  The previous output is given either
// as Prevout in "txid:vout" form or as Txid and Vout; both may be given when
// they agree.
type InputInfo struct {
	Prevout       string             `json:"prevout,omitempty" yaml:"prevout,omitempty"`
	Txid          string             `json:"txid,omitempty" yaml:"txid,omitempty"`
	Vout          *uint32            `json:"vout,omitempty" yaml:"vout,omitempty"`
	ScriptSig     *InputScriptInfo   `json:"script_sig,omitempty" yaml:"script_sig,omitempty"`
	Sequence      *uint32            `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	IsPegin       *bool              `json:"is_pegin,omitempty" yaml:"is_pegin,omitempty"`
	HasIssuance   *bool              `json:"has_issuance,omitempty" yaml:"has_issuance,omitempty"`
	AssetIssuance *AssetIssuanceInfo `json:"asset_issuance,omitempty" yaml:"asset_issuance,omitempty"`
	Witness       *InputWitnessInfo  `json:"witness,omitempty" yaml:"witness,omitempty"`
	PeginData     *PeginDataInfo     `json:"pegin_data,omitempty" yaml:"pegin_data,omitempty"`
}

// OutputWitnessInfo models the proofs of a confidential output.
type OutputWitnessInfo struct {
	SurjectionProof HexBytes `json:"surjection_proof,omitempty" yaml:"surjection_proof,omitempty"`
	Rangeproof      HexBytes `json:"rangeproof,omitempty" yaml:"rangeproof,omitempty"`
}

// OutputInfo models a transaction output.  An output without script is a
// fee output.
type OutputInfo struct {
	ScriptPubKey *OutputScriptInfo      `json:"script_pub_key,omitempty" yaml:"script_pub_key,omitempty"`
	Asset        *ConfidentialAssetInfo `json:"asset" yaml:"asset"`
	Value        *ConfidentialValueInfo `json:"value" yaml:"value"`
	Nonce        *ConfidentialNonceInfo `json:"nonce,omitempty" yaml:"nonce,omitempty"`
	Witness      *OutputWitnessInfo     `json:"witness,omitempty" yaml:"witness,omitempty"`
	IsFee        *bool                  `json:"is_fee,omitempty" yaml:"is_fee,omitempty"`
	PegoutData   *PegoutDataInfo        `json:"pegout_data,omitempty" yaml:"pegout_data,omitempty"`
}

// TransactionInfo models an Elements transaction.  Txid, Wtxid, Size, Weight,
// VSize and Fees are computed when decoding and ignored when creating.
type TransactionInfo struct {
	Txid     string            `json:"txid,omitempty" yaml:"txid,omitempty"`
	Wtxid    string            `json:"wtxid,omitempty" yaml:"wtxid,omitempty"`
	Size     *int              `json:"size,omitempty" yaml:"size,omitempty"`
	Weight   *int              `json:"weight,omitempty" yaml:"weight,omitempty"`
	VSize    *int              `json:"vsize,omitempty" yaml:"vsize,omitempty"`
	Version  *uint32           `json:"version" yaml:"version"`
	LockTime *uint32           `json:"locktime" yaml:"locktime"`
	Inputs   []InputInfo       `json:"inputs" yaml:"inputs"`
	Outputs  []OutputInfo      `json:"outputs" yaml:"outputs"`
	Fees     map[string]uint64 `json:"fees,omitempty" yaml:"fees,omitempty"`
}

func uint32Ptr(v uint32) *uint32 { return &v }
func boolPtr(v bool) *bool       { return &v }
func intPtr(v int) *int          { return &v }

// NewAssetIssuanceInfo returns the record of an issuance.
func NewAssetIssuanceInfo(issuance *wire.AssetIssuance) *AssetIssuanceInfo {
	return &AssetIssuanceInfo{
		AssetBlindingNonce: append(HexBytes(nil),
			issuance.AssetBlindingNonce[:]...),
		AssetEntropy:  append(HexBytes(nil), issuance.AssetEntropy[:]...),
		Amount:        NewConfidentialValueInfo(&issuance.Amount),
		InflationKeys: NewConfidentialValueInfo(&issuance.InflationKeys),
		IsReissuance:  issuance.IsReissuance(),
	}
}

// NewInputInfo returns the record of an input on net.
func NewInputInfo(txIn *wire.TxIn, net *chaincfg.Params) *InputInfo {
	prevout := txIn.PreviousOutPoint
	info := &InputInfo{
		Prevout:     prevout.String(),
		Txid:        prevout.Hash.String(),
		Vout:        uint32Ptr(prevout.Index),
		ScriptSig:   NewInputScriptInfo(txIn.SignatureScript),
		Sequence:    uint32Ptr(txIn.Sequence),
		IsPegin:     boolPtr(txIn.IsPegin),
		HasIssuance: boolPtr(txIn.Issuance != nil),
	}
	if txIn.Issuance != nil {
		info.AssetIssuance = NewAssetIssuanceInfo(txIn.Issuance)
	}
	if txIn.HasWitness() {
		info.Witness = &InputWitnessInfo{
			AmountRangeproof: append(HexBytes(nil),
				txIn.IssuanceRangeProof...),
			InflationKeysRangeproof: append(HexBytes(nil),
				txIn.InflationKeysRangeProof...),
			ScriptWitness: hexList(txIn.Witness),
			PeginWitness:  hexList(txIn.PeginWitness),
		}
	}
	if txIn.IsPegin {
		info.PeginData = newPeginDataInfo(txIn, net)
	}
	return info
}

// NewOutputInfo returns the record of an output on net.
func NewOutputInfo(txOut *wire.TxOut, net *chaincfg.Params) *OutputInfo {
	info := &OutputInfo{
		Asset: NewConfidentialAssetInfo(&txOut.Asset, net),
		Value: NewConfidentialValueInfo(&txOut.Value),
		Nonce: NewConfidentialNonceInfo(&txOut.Nonce),
		IsFee: boolPtr(txOut.IsFee()),
	}
	if len(txOut.PkScript) > 0 {
		info.ScriptPubKey = NewOutputScriptInfo(txOut.PkScript, net)
	}
	if txOut.HasWitness() {
		info.Witness = &OutputWitnessInfo{
			SurjectionProof: append(HexBytes(nil),
				txOut.SurjectionProof...),
			Rangeproof: append(HexBytes(nil), txOut.RangeProof...),
		}
	}
	if data, err := txscript.ExtractPegoutData(txOut.PkScript); err == nil {
		info.PegoutData = newPegoutDataInfo(data, &txOut.Value,
			&txOut.Asset, net)
	}
	return info
}

// NewTransactionInfo returns the record of a transaction on net.  Asset
// labels and addresses are only filled in when net is not nil.
func NewTransactionInfo(tx *wire.MsgTx, net *chaincfg.Params) *TransactionInfo {
	info := &TransactionInfo{
		Txid:     tx.TxHash().String(),
		Wtxid:    tx.WitnessHash().String(),
		Size:     intPtr(tx.SerializeSize()),
		Weight:   intPtr(tx.Weight()),
		VSize:    intPtr(tx.VirtualSize()),
		Version:  uint32Ptr(tx.Version),
		LockTime: uint32Ptr(tx.LockTime),
		Inputs:   make([]InputInfo, len(tx.TxIn)),
		Outputs:  make([]OutputInfo, len(tx.TxOut)),
	}
	for i, txIn := range tx.TxIn {
		info.Inputs[i] = *NewInputInfo(txIn, net)
	}
	for i, txOut := range tx.TxOut {
		info.Outputs[i] = *NewOutputInfo(txOut, net)
	}
	if fees := tx.Fees(); len(fees) > 0 {
		info.Fees = make(map[string]uint64, len(fees))
		for asset, amount := range fees {
			info.Fees[asset.String()] = amount
		}
	}

	log.Debugf("Built record of transaction %s with %d inputs and %d "+
		"outputs", info.Txid, len(info.Inputs), len(info.Outputs))
	return info
}

// parseOutPoint parses an outpoint in "txid:vout" form.
func parseOutPoint(field, s string) (wire.OutPoint, error) {
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 {
		return wire.OutPoint{}, typeMismatch(field, "outpoint %q is not "+
			"in txid:vout form", s)
	}
	hash, err := parseHash(field, s[:colon])
	if err != nil {
		return wire.OutPoint{}, err
	}
	index, err := strconv.ParseUint(s[colon+1:], 10, 32)
	if err != nil {
		return wire.OutPoint{}, typeMismatch(field, "invalid output "+
			"index %q", s[colon+1:])
	}
	return wire.OutPoint{Hash: hash, Index: uint32(index)}, nil
}

// outPoint returns the previous output of an input record from either of
// its two forms.
func (info *InputInfo) outPoint(field string) (wire.OutPoint, error) {
	var fromPrevout, fromTxid *wire.OutPoint
	if info.Prevout != "" {
		op, err := parseOutPoint(join(field, "prevout"), info.Prevout)
		if err != nil {
			return op, err
		}
		fromPrevout = &op
	}

	switch {
	case info.Txid != "" && info.Vout == nil:
		return wire.OutPoint{}, missingField(join(field, "vout"))
	case info.Txid == "" && info.Vout != nil:
		return wire.OutPoint{}, missingField(join(field, "txid"))
	case info.Txid != "":
		hash, err := parseHash(join(field, "txid"), info.Txid)
		if err != nil {
			return wire.OutPoint{}, err
		}
		fromTxid = &wire.OutPoint{Hash: hash, Index: *info.Vout}
	}

	switch {
	case fromPrevout != nil && fromTxid != nil:
		if *fromPrevout != *fromTxid {
			return wire.OutPoint{}, typeMismatch(join(field, "prevout"),
				"prevout %v conflicts with txid and vout %v",
				fromPrevout, fromTxid)
		}
		return *fromPrevout, nil
	case fromPrevout != nil:
		return *fromPrevout, nil
	case fromTxid != nil:
		return *fromTxid, nil
	}
	return wire.OutPoint{}, missingField(join(field, "prevout"))
}

// toIssuance converts an issuance record.
func (info *AssetIssuanceInfo) toIssuance(field string) (*wire.AssetIssuance, error) {
	if info.AssetBlindingNonce == nil {
		return nil, missingField(join(field, "asset_blinding_nonce"))
	}
	if info.AssetEntropy == nil {
		return nil, missingField(join(field, "asset_entropy"))
	}
	if info.Amount == nil {
		return nil, missingField(join(field, "amount"))
	}
	if info.InflationKeys == nil {
		return nil, missingField(join(field, "inflation_keys"))
	}

	nonce, err := fixed32(join(field, "asset_blinding_nonce"),
		info.AssetBlindingNonce)
	if err != nil {
		return nil, err
	}
	entropy, err := fixed32(join(field, "asset_entropy"), info.AssetEntropy)
	if err != nil {
		return nil, err
	}
	amount, err := info.Amount.toValue(join(field, "amount"))
	if err != nil {
		return nil, err
	}
	keys, err := info.InflationKeys.toValue(join(field, "inflation_keys"))
	if err != nil {
		return nil, err
	}
	return &wire.AssetIssuance{
		AssetBlindingNonce: nonce,
		AssetEntropy:       entropy,
		Amount:             amount,
		InflationKeys:      keys,
	}, nil
}

// toTxIn converts an input record.  The sequence defaults to the final
// sequence number.
func (info *InputInfo) toTxIn(field string) (*wire.TxIn, error) {
	prevout, err := info.outPoint(field)
	if err != nil {
		return nil, err
	}

	txIn := &wire.TxIn{
		PreviousOutPoint: prevout,
		Sequence:         wire.MaxTxInSequenceNum,
	}
	if info.Sequence != nil {
		txIn.Sequence = *info.Sequence
	}
	if info.ScriptSig != nil {
		txIn.SignatureScript, err = info.ScriptSig.toScript(
			join(field, "script_sig"))
		if err != nil {
			return nil, err
		}
	}

	hasIssuance := info.AssetIssuance != nil
	if info.HasIssuance != nil {
		hasIssuance = *info.HasIssuance
	}
	switch {
	case hasIssuance && info.AssetIssuance == nil:
		return nil, missingField(join(field, "asset_issuance"))
	case hasIssuance:
		txIn.Issuance, err = info.AssetIssuance.toIssuance(
			join(field, "asset_issuance"))
		if err != nil {
			return nil, err
		}
	case info.AssetIssuance != nil:
		log.Warnf("Field %q is ignored", join(field, "asset_issuance"))
	}

	txIn.IsPegin = info.PeginData != nil
	if info.IsPegin != nil {
		txIn.IsPegin = *info.IsPegin
	}

	if w := info.Witness; w != nil {
		txIn.IssuanceRangeProof = append([]byte(nil),
			w.AmountRangeproof...)
		txIn.InflationKeysRangeProof = append([]byte(nil),
			w.InflationKeysRangeproof...)
		txIn.Witness = byteList(w.ScriptWitness)
		txIn.PeginWitness = byteList(w.PeginWitness)
	}
	switch {
	case len(txIn.PeginWitness) > 0:
		if info.PeginData != nil {
			log.Warnf("Field %q is ignored", join(field, "pegin_data"))
		}
	case info.PeginData != nil:
		txIn.PeginWitness, err = info.PeginData.witness(
			join(field, "pegin_data"), prevout)
		if err != nil {
			return nil, err
		}
	}
	return txIn, nil
}

// ToTxOut converts an output record.  Addresses must belong to net.
func (info *OutputInfo) ToTxOut(net *chaincfg.Params) (*wire.TxOut, error) {
	return info.toTxOut("", defaultNet(net))
}

func (info *OutputInfo) toTxOut(field string, net *chaincfg.Params) (*wire.TxOut, error) {
	if info.Asset == nil {
		return nil, missingField(join(field, "asset"))
	}
	if info.Value == nil {
		return nil, missingField(join(field, "value"))
	}
	if info.IsFee != nil {
		log.Debugf("Field %q is ignored", join(field, "is_fee"))
	}

	txOut := &wire.TxOut{}
	var err error
	txOut.Asset, err = info.Asset.toAsset(join(field, "asset"))
	if err != nil {
		return nil, err
	}
	txOut.Value, err = info.Value.toValue(join(field, "value"))
	if err != nil {
		return nil, err
	}
	if info.Nonce != nil {
		txOut.Nonce, err = info.Nonce.toNonce(join(field, "nonce"))
		if err != nil {
			return nil, err
		}
	}

	switch {
	case info.ScriptPubKey != nil:
		if info.PegoutData != nil {
			log.Warnf("Field %q is ignored", join(field, "pegout_data"))
		}
		txOut.PkScript, err = info.ScriptPubKey.toScript(
			join(field, "script_pub_key"), net)
	case info.PegoutData != nil:
		txOut.PkScript, err = info.PegoutData.toScript(
			join(field, "pegout_data"), &txOut.Value, &txOut.Asset, net)
	}
	if err != nil {
		return nil, err
	}

	if w := info.Witness; w != nil {
		txOut.SurjectionProof = append([]byte(nil), w.SurjectionProof...)
		txOut.RangeProof = append([]byte(nil), w.Rangeproof...)
	}
	if err := txOut.CheckForm(); err != nil {
		return nil, typeMismatch(field, "%v", err)
	}
	return txOut, nil
}

// defaultNet returns net, or the Elements regtest network when it is nil.
func defaultNet(net *chaincfg.Params) *chaincfg.Params {
	if net == nil {
		return &chaincfg.ElementsRegtestParams
	}
	return net
}

// ToMsgTx builds the transaction described by the record.  Version, locktime,
// inputs and outputs are required.  Addresses must belong to net, which
// defaults to Elements regtest.
func (info *TransactionInfo) ToMsgTx(net *chaincfg.Params) (*wire.MsgTx, error) {
	net = defaultNet(net)
	for _, ignored := range []struct {
		name string
		set  bool
	}{
		{"txid", info.Txid != ""},
		{"wtxid", info.Wtxid != ""},
		{"size", info.Size != nil},
		{"weight", info.Weight != nil},
		{"vsize", info.VSize != nil},
		{"fees", info.Fees != nil},
	} {
		if ignored.set {
			log.Warnf("Field %q is ignored", ignored.name)
		}
	}

	switch {
	case info.Version == nil:
		return nil, missingField("version")
	case info.LockTime == nil:
		return nil, missingField("locktime")
	case info.Inputs == nil:
		return nil, missingField("inputs")
	case info.Outputs == nil:
		return nil, missingField("outputs")
	}

	tx := wire.NewMsgTx(*info.Version)
	tx.LockTime = *info.LockTime
	for i := range info.Inputs {
		txIn, err := info.Inputs[i].toTxIn(index("inputs", i))
		if err != nil {
			return nil, err
		}
		tx.AddTxIn(txIn)
	}
	for i := range info.Outputs {
		txOut, err := info.Outputs[i].toTxOut(index("outputs", i), net)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(txOut)
	}

	log.Debugf("Created transaction %v with %d inputs and %d outputs",
		newLogClosure(func() string {
			hash := tx.TxHash()
			return hash.String()
		}), len(tx.TxIn), len(tx.TxOut))
	return tx, nil
}
