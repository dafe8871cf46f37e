// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// ScriptClass is an enumeration for the list of standard types of script.
type ScriptClass byte

// Classes of script payment known about on an Elements chain.
const (
	NonStandardTy         ScriptClass = iota // None of the recognized forms.
	PubKeyTy                                 // Pay pubkey.
	PubKeyHashTy                             // Pay pubkey hash.
	WitnessV0PubKeyHashTy                    // Pay witness pubkey hash.
	ScriptHashTy                             // Pay to script hash.
	WitnessV0ScriptHashTy                    // Pay to witness script hash.
	MultiSigTy                               // Multi signature.
	NullDataTy                               // Provably unspendable.
	WitnessV1TaprootTy                       // Taproot output.
	WitnessUnknownTy                         // Witness unknown.
	PegoutTy                                 // Peg out to the parent chain.
	FeeTy                                    // Explicit fee, empty script.
)

// scriptClassToName houses the human-readable strings which describe each
// script class.
var scriptClassToName = []string{
	NonStandardTy:         "nonstandard",
	PubKeyTy:              "pubkey",
	PubKeyHashTy:          "pubkeyhash",
	WitnessV0PubKeyHashTy: "witness_v0_keyhash",
	ScriptHashTy:          "scripthash",
	WitnessV0ScriptHashTy: "witness_v0_scripthash",
	MultiSigTy:            "multisig",
	NullDataTy:            "nulldata",
	WitnessV1TaprootTy:    "witness_v1_taproot",
	WitnessUnknownTy:      "witness_unknown",
	PegoutTy:              "pegout",
	FeeTy:                 "fee",
}

// String implements the Stringer interface by returning the name of
// the enum script class. If the enum is invalid then "Invalid" will be
// returned.
func (t ScriptClass) String() string {
	if int(t) >= len(scriptClassToName) {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// bitcoinClasses maps the classes shared with Bitcoin to their Elements
// counterpart.
var bitcoinClasses = map[txscript.ScriptClass]ScriptClass{
	txscript.NonStandardTy:         NonStandardTy,
	txscript.PubKeyTy:              PubKeyTy,
	txscript.PubKeyHashTy:          PubKeyHashTy,
	txscript.WitnessV0PubKeyHashTy: WitnessV0PubKeyHashTy,
	txscript.ScriptHashTy:          ScriptHashTy,
	txscript.WitnessV0ScriptHashTy: WitnessV0ScriptHashTy,
	txscript.MultiSigTy:            MultiSigTy,
	txscript.NullDataTy:            NullDataTy,
	txscript.WitnessV1TaprootTy:    WitnessV1TaprootTy,
	txscript.WitnessUnknownTy:      WitnessUnknownTy,
}

// GetScriptClass returns the class of the script passed.
//
// An empty script is an explicit fee output.  OP_RETURN scripts are pegouts
// when they follow the pegout template and null data otherwise, whatever
// number of pushes follow.  NonStandardTy will be returned when the script
// does not parse.
func GetScriptClass(script []byte) ScriptClass {
	switch {
	case len(script) == 0:
		return FeeTy

	case IsPegoutScript(script):
		return PegoutTy

	case script[0] == txscript.OP_RETURN:
		// Bitcoin only accepts a single push after OP_RETURN, every
		// OP_RETURN output is unspendable on Elements.
		if !txscript.IsPushOnlyScript(script[1:]) {
			return NonStandardTy
		}
		return NullDataTy
	}

	class, ok := bitcoinClasses[txscript.GetScriptClass(script)]
	if !ok {
		return NonStandardTy
	}
	return class
}

// DisasmString formats a disassembled script for one line printing.  When
// the script fails to parse, the returned string will contain the
// disassembled script up to the point the failure occurred along with the
// string '[error]' appended.  In addition, the reason the script failed to
// parse is returned if the caller wants more information about the failure.
func DisasmString(script []byte) (string, error) {
	disasm, err := txscript.DisasmString(script)
	if err != nil {
		return disasm, scriptError(ErrMalformedScript, err.Error())
	}
	return disasm, nil
}

// PushedData returns an array of byte slices containing all of the data that
// was pushed to the stack by the script.  Only push-only scripts are
// accepted.
func PushedData(script []byte) ([][]byte, error) {
	if !txscript.IsPushOnlyScript(script) {
		return nil, scriptError(ErrMalformedScript,
			"script contains non-push opcodes")
	}
	data, err := txscript.PushedData(script)
	if err != nil {
		return nil, scriptError(ErrMalformedScript, err.Error())
	}
	return data, nil
}

// PayToPubKeyHashScript creates a new script to pay a transaction
// output to a 20-byte pubkey hash.
func PayToPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		str := fmt.Sprintf("pubkey hash must be 20 bytes, got %d",
			len(pubKeyHash))
		return nil, scriptError(ErrInvalidProgram, str)
	}
	return txscript.NewScriptBuilder().AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
		Script()
}

// PayToScriptHashScript creates a new script to pay a transaction output to a
// script hash.
func PayToScriptHashScript(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 20 {
		str := fmt.Sprintf("script hash must be 20 bytes, got %d",
			len(scriptHash))
		return nil, scriptError(ErrInvalidProgram, str)
	}
	return txscript.NewScriptBuilder().AddOp(txscript.OP_HASH160).
		AddData(scriptHash).AddOp(txscript.OP_EQUAL).Script()
}

// PayToWitnessScript creates a new script paying to a witness program of the
// given version.  Version 0 programs must be 20 or 32 bytes, later versions
// between 2 and 40 bytes.
func PayToWitnessScript(version byte, program []byte) ([]byte, error) {
	switch {
	case version > 16:
		str := fmt.Sprintf("witness version %d exceeds 16", version)
		return nil, scriptError(ErrInvalidProgram, str)

	case version == 0 && len(program) != 20 && len(program) != 32:
		str := fmt.Sprintf("version 0 program must be 20 or 32 bytes, "+
			"got %d", len(program))
		return nil, scriptError(ErrInvalidProgram, str)

	case len(program) < 2 || len(program) > 40:
		str := fmt.Sprintf("witness program must be 2 to 40 bytes, "+
			"got %d", len(program))
		return nil, scriptError(ErrInvalidProgram, str)
	}

	versionOp := byte(txscript.OP_0)
	if version > 0 {
		versionOp = txscript.OP_1 + version - 1
	}
	return txscript.NewScriptBuilder().AddOp(versionOp).
		AddData(program).Script()
}

// ExtractWitnessProgram returns the version and program of a witness output
// script.
func ExtractWitnessProgram(script []byte) (int, []byte, error) {
	version, program, err := txscript.ExtractWitnessProgramInfo(script)
	if err != nil {
		return 0, nil, scriptError(ErrInvalidProgram, err.Error())
	}
	return version, program, nil
}
