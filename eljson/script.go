// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"github.com/btcsuite/elementsutil/address"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/txscript"
)

// InputScriptInfo models the signature script of an input.
type InputScriptInfo struct {
	Hex HexBytes `json:"hex,omitempty" yaml:"hex,omitempty"`
	Asm string   `json:"asm,omitempty" yaml:"asm,omitempty"`
}

// disasm returns the disassembly of a script.  Scripts that fail to parse
// keep the partial disassembly ending in "[error]".
func disasm(script []byte) string {
	asm, _ := txscript.DisasmString(script)
	return asm
}

// NewInputScriptInfo returns the record of a signature script.
func NewInputScriptInfo(script []byte) *InputScriptInfo {
	return &InputScriptInfo{
		Hex: append(HexBytes(nil), script...),
		Asm: disasm(script),
	}
}

// toScript returns the script bytes.  Only hex is accepted, the assembly is
// informational.  A record without either is the empty script.
func (info *InputScriptInfo) toScript(field string) ([]byte, error) {
	switch {
	case len(info.Hex) > 0:
		if info.Asm != "" {
			log.Warnf("Field %q is ignored", join(field, "asm"))
		}
		return append([]byte(nil), info.Hex...), nil
	case info.Asm != "":
		return nil, typeMismatch(join(field, "asm"), "decoding script "+
			"assembly is not supported")
	}
	return nil, nil
}

// OutputScriptInfo models an output script.  Address is the unconfidential
// address of the script, when it has one.
type OutputScriptInfo struct {
	Hex     HexBytes `json:"hex,omitempty" yaml:"hex,omitempty"`
	Asm     string   `json:"asm,omitempty" yaml:"asm,omitempty"`
	Type    string   `json:"type,omitempty" yaml:"type,omitempty"`
	Address string   `json:"address,omitempty" yaml:"address,omitempty"`
}

// NewOutputScriptInfo returns the record of an output script on net.
func NewOutputScriptInfo(script []byte, net *chaincfg.Params) *OutputScriptInfo {
	info := &OutputScriptInfo{
		Hex:  append(HexBytes(nil), script...),
		Asm:  disasm(script),
		Type: txscript.GetScriptClass(script).String(),
	}
	if net != nil {
		if addr, err := address.FromPkScript(script, net); err == nil {
			info.Address = addr.String()
		}
	}
	return info
}

// toScript returns the script bytes, from the hex or else from the address,
// which must belong to net.  A record without either is the empty script of
// a fee output.
func (info *OutputScriptInfo) toScript(field string,
	net *chaincfg.Params) ([]byte, error) {

	if info.Type != "" {
		log.Warnf("Field %q is ignored", join(field, "type"))
	}

	switch {
	case len(info.Hex) > 0:
		if info.Asm != "" {
			log.Warnf("Field %q is ignored", join(field, "asm"))
		}
		if info.Address != "" {
			log.Warnf("Field %q is ignored", join(field, "address"))
		}
		return append([]byte(nil), info.Hex...), nil

	case info.Asm != "":
		return nil, typeMismatch(join(field, "asm"), "decoding script "+
			"assembly is not supported")

	case info.Address != "":
		addr, err := address.Decode(info.Address, net)
		if err != nil {
			return nil, typeMismatch(join(field, "address"), "%v", err)
		}
		script, err := addr.PkScript()
		if err != nil {
			return nil, typeMismatch(join(field, "address"), "%v", err)
		}
		return script, nil
	}
	return nil, nil
}

// ScriptInfo models a standalone script.
type ScriptInfo struct {
	Hex     HexBytes `json:"hex" yaml:"hex"`
	Asm     string   `json:"asm" yaml:"asm"`
	Type    string   `json:"type" yaml:"type"`
	Address string   `json:"address,omitempty" yaml:"address,omitempty"`

	// P2SH and P2WSH are the addresses paying to the script itself.
	P2SH  string `json:"p2sh,omitempty" yaml:"p2sh,omitempty"`
	P2WSH string `json:"p2wsh,omitempty" yaml:"p2wsh,omitempty"`

	Pegout *PegoutDataInfo `json:"pegout_data,omitempty" yaml:"pegout_data,omitempty"`

	// Miniscript is filled by callers that analyze the script.
	Miniscript *MiniscriptInfo `json:"miniscript,omitempty" yaml:"miniscript,omitempty"`
}

// NewScriptInfo returns the record of a script on net.  An empty script is
// reported as a fee script.
func NewScriptInfo(script []byte, net *chaincfg.Params) *ScriptInfo {
	out := NewOutputScriptInfo(script, net)
	info := &ScriptInfo{
		Hex:     out.Hex,
		Asm:     out.Asm,
		Type:    out.Type,
		Address: out.Address,
	}
	if net == nil {
		return info
	}

	if len(script) > 0 {
		if set, err := address.ForScript(script, nil, net); err == nil {
			info.P2SH = set.P2SH.String()
			info.P2WSH = set.P2WSH.String()
		}
	}
	if data, err := txscript.ExtractPegoutData(script); err == nil {
		info.Pegout = newPegoutDataInfo(data, nil, nil, net)
	}
	return info
}

// ToScript returns the script bytes of the record.
func (info *ScriptInfo) ToScript() ([]byte, error) {
	if info.Hex == nil {
		return nil, missingField("hex")
	}
	return append([]byte(nil), info.Hex...), nil
}
