// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/txscript"
	"github.com/btcsuite/elementsutil/wire"
)

// PegoutDataInfo models an output pegging coins out to the parent chain.
// ScriptPubKey is a parent chain script and its address is a parent chain
// address.
type PegoutDataInfo struct {
	Value        *uint64                `json:"value,omitempty" yaml:"value,omitempty"`
	Asset        *ConfidentialAssetInfo `json:"asset,omitempty" yaml:"asset,omitempty"`
	GenesisHash  string                 `json:"genesis_hash" yaml:"genesis_hash"`
	ScriptPubKey *OutputScriptInfo      `json:"script_pub_key" yaml:"script_pub_key"`
	ExtraData    []HexBytes             `json:"extra_data,omitempty" yaml:"extra_data,omitempty"`
}

// newParentScriptInfo returns the record of a parent chain script.
func newParentScriptInfo(script []byte, net *chaincfg.Params) *OutputScriptInfo {
	info := &OutputScriptInfo{
		Hex:  append(HexBytes(nil), script...),
		Asm:  disasm(script),
		Type: txscript.GetScriptClass(script).String(),
	}
	if net != nil && net.ParentParams != nil {
		addr, err := txscript.ExtractParentAddress(script,
			net.ParentParams)
		if err == nil {
			info.Address = addr.EncodeAddress()
		}
	}
	return info
}

// newPegoutDataInfo returns the record of a pegout.  Value and asset are
// those of the output and may be nil for a bare script.
func newPegoutDataInfo(data *txscript.PegoutData, value *wire.ConfidentialValue,
	asset *wire.ConfidentialAsset, net *chaincfg.Params) *PegoutDataInfo {

	info := &PegoutDataInfo{
		GenesisHash:  data.GenesisHash.String(),
		ScriptPubKey: newParentScriptInfo(data.ScriptPubKey, net),
		ExtraData:    hexList(data.ExtraData),
	}
	if value != nil && value.IsExplicit() {
		v := value.Value
		info.Value = &v
	}
	if asset != nil {
		info.Asset = NewConfidentialAssetInfo(asset, net)
	}
	return info
}

// parentScript returns the parent chain script of a pegout, from the hex or
// else from a parent chain address.
func (info *PegoutDataInfo) parentScript(field string,
	net *chaincfg.Params) ([]byte, error) {

	field = join(field, "script_pub_key")
	spk := info.ScriptPubKey
	switch {
	case spk == nil:
		return nil, missingField(field)

	case len(spk.Hex) > 0:
		if spk.Address != "" {
			log.Warnf("Field %q is ignored", join(field, "address"))
		}
		return append([]byte(nil), spk.Hex...), nil

	case spk.Asm != "":
		return nil, typeMismatch(join(field, "asm"), "decoding script "+
			"assembly is not supported")

	case spk.Address != "":
		addr, err := btcutil.DecodeAddress(spk.Address, net.ParentParams)
		if err != nil {
			return nil, typeMismatch(join(field, "address"), "%v", err)
		}
		if !addr.IsForNet(net.ParentParams) {
			return nil, typeMismatch(join(field, "address"), "address "+
				"is not for the %s network", net.ParentParams.Name)
		}
		script, err := txscript.PayToParentAddress(addr)
		if err != nil {
			return nil, typeMismatch(join(field, "address"), "%v", err)
		}
		return script, nil
	}
	return nil, missingField(join(field, "hex"))
}

// toScript builds the pegout output script.  The value and asset of the
// record must agree with those of the output.
func (info *PegoutDataInfo) toScript(field string, value *wire.ConfidentialValue,
	asset *wire.ConfidentialAsset, net *chaincfg.Params) ([]byte, error) {

	if !value.IsExplicit() {
		return nil, typeMismatch(join(field, "value"), "pegout requires "+
			"an explicit output value")
	}
	if info.Value == nil {
		return nil, missingField(join(field, "value"))
	}
	if *info.Value != value.Value {
		return nil, typeMismatch(join(field, "value"), "pegout value %d "+
			"does not match output value %d", *info.Value, value.Value)
	}

	if info.Asset == nil {
		return nil, missingField(join(field, "asset"))
	}
	pegoutAsset, err := info.Asset.toAsset(join(field, "asset"))
	if err != nil {
		return nil, err
	}
	if pegoutAsset != *asset {
		return nil, typeMismatch(join(field, "asset"), "pegout asset "+
			"does not match output asset")
	}

	if info.GenesisHash == "" {
		return nil, missingField(join(field, "genesis_hash"))
	}
	genesis, err := parseHash(join(field, "genesis_hash"), info.GenesisHash)
	if err != nil {
		return nil, err
	}

	parent, err := info.parentScript(field, net)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PegoutScript(&genesis, parent,
		byteList(info.ExtraData)...)
	if err != nil {
		return nil, typeMismatch(field, "%v", err)
	}
	return script, nil
}
