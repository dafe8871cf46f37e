// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	btcchaincfg "github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

// hexToBytes converts the passed hex string into bytes and will panic if
// there is an error.  This is only provided for the hard-coded constants so
// errors in the source code can be detected. It will only (and must only) be
// called with hard-coded values.
func hexToBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("invalid hex in source file: " + s)
	}
	return b
}

const testPubKeyHex = "02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"

// TestGetScriptClass ensures the classes of the standard templates and the
// Elements specific outputs are recognized.
func TestGetScriptClass(t *testing.T) {
	t.Parallel()

	hash20 := bytes.Repeat([]byte{0x11}, 20)
	hash32 := bytes.Repeat([]byte{0x22}, 32)

	p2pkh, err := PayToPubKeyHashScript(hash20)
	require.NoError(t, err)
	p2sh, err := PayToScriptHashScript(hash20)
	require.NoError(t, err)
	p2wpkh, err := PayToWitnessScript(0, hash20)
	require.NoError(t, err)
	p2wsh, err := PayToWitnessScript(0, hash32)
	require.NoError(t, err)
	p2tr, err := PayToWitnessScript(1, hash32)
	require.NoError(t, err)
	pegout, err := PegoutScript(btcchaincfg.MainNetParams.GenesisHash, p2pkh)
	require.NoError(t, err)
	p2pk, err := txscript.NewScriptBuilder().
		AddData(hexToBytes(testPubKeyHex)).
		AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	tests := []struct {
		name   string
		script []byte
		class  ScriptClass
	}{
		{"fee", nil, FeeTy},
		{"pubkey", p2pk, PubKeyTy},
		{"pubkeyhash", p2pkh, PubKeyHashTy},
		{"scripthash", p2sh, ScriptHashTy},
		{"witness_v0_keyhash", p2wpkh, WitnessV0PubKeyHashTy},
		{"witness_v0_scripthash", p2wsh, WitnessV0ScriptHashTy},
		{"witness_v1_taproot", p2tr, WitnessV1TaprootTy},
		{"pegout", pegout, PegoutTy},
		{"nulldata", []byte{txscript.OP_RETURN}, NullDataTy},
		{"nulldata with two pushes", []byte{
			txscript.OP_RETURN, txscript.OP_DATA_1, 0x01,
			txscript.OP_DATA_1, 0x02,
		}, NullDataTy},
		{"nonstandard", []byte{txscript.OP_RETURN, txscript.OP_ADD},
			NonStandardTy},
		{"truncated", []byte{txscript.OP_DATA_20, 0x01}, NonStandardTy},
	}

	for _, test := range tests {
		class := GetScriptClass(test.script)
		require.Equal(t, test.class, class, test.name)
	}
	require.Equal(t, "witness_v0_scripthash", WitnessV0ScriptHashTy.String())
	require.Equal(t, "pegout", PegoutTy.String())
	require.Equal(t, "Invalid", ScriptClass(200).String())
}

// TestPegoutScript ensures pegout scripts round trip and pay to the parent
// chain address.
func TestPegoutScript(t *testing.T) {
	t.Parallel()

	params := &btcchaincfg.MainNetParams
	hash20 := bytes.Repeat([]byte{0x11}, 20)
	p2pkh, err := PayToPubKeyHashScript(hash20)
	require.NoError(t, err)

	extra := [][]byte{{0xaa, 0xbb}, hexToBytes(testPubKeyHex)}
	script, err := PegoutScript(params.GenesisHash, p2pkh, extra...)
	require.NoError(t, err)
	require.Equal(t, byte(txscript.OP_RETURN), script[0])

	data, err := ExtractPegoutData(script)
	require.NoError(t, err)
	require.Equal(t, *params.GenesisHash, data.GenesisHash)
	require.Equal(t, p2pkh, data.ScriptPubKey)
	require.Equal(t, extra, data.ExtraData)

	addr, err := data.ParentAddress(params)
	require.NoError(t, err)
	require.Equal(t, hash20, addr.ScriptAddress())

	disasm, err := DisasmString(script)
	require.NoError(t, err)
	require.Contains(t, disasm, "OP_RETURN")

	// Pegouts without extra data.
	script, err = PegoutScript(params.GenesisHash, p2pkh)
	require.NoError(t, err)
	data, err = ExtractPegoutData(script)
	require.NoError(t, err)
	require.Nil(t, data.ExtraData)

	_, err = PegoutScript(params.GenesisHash, nil)
	require.True(t, errors.Is(err, ErrUnsupportedScript))
}

// TestExtractPegoutDataErrors ensures scripts off the template are rejected
// with the expected error code.
func TestExtractPegoutDataErrors(t *testing.T) {
	t.Parallel()

	genesis := bytes.Repeat([]byte{0x01}, 32)
	push := func(b []byte) []byte {
		return append([]byte{byte(len(b))}, b...)
	}
	concat := func(parts ...[]byte) []byte {
		var script []byte
		for _, part := range parts {
			script = append(script, part...)
		}
		return script
	}

	tests := []struct {
		name   string
		script []byte
		code   ErrorCode
	}{
		{"empty", nil, ErrNotPegout},
		{"no OP_RETURN", concat(push(genesis), push([]byte{0x51})),
			ErrNotPegout},
		{"single push", concat([]byte{txscript.OP_RETURN}, push(genesis)),
			ErrNotPegout},
		{"short genesis hash", concat([]byte{txscript.OP_RETURN},
			push(genesis[:31]), push([]byte{0x51})), ErrNotPegout},
		{"non-push opcode", concat([]byte{txscript.OP_RETURN},
			push(genesis), []byte{txscript.OP_1}), ErrNotPegout},
		{"truncated push", concat([]byte{txscript.OP_RETURN},
			push(genesis), []byte{txscript.OP_DATA_5, 0x01}),
			ErrMalformedScript},
	}

	for _, test := range tests {
		_, err := ExtractPegoutData(test.script)
		require.Error(t, err, test.name)
		require.True(t, errors.Is(err, test.code), "%s: %v", test.name,
			err)
		require.False(t, IsPegoutScript(test.script), test.name)
	}
}

// TestPayToWitnessScript ensures witness programs are length checked.
func TestPayToWitnessScript(t *testing.T) {
	t.Parallel()

	_, err := PayToWitnessScript(0, make([]byte, 21))
	require.True(t, errors.Is(err, ErrInvalidProgram))
	_, err = PayToWitnessScript(17, make([]byte, 32))
	require.True(t, errors.Is(err, ErrInvalidProgram))
	_, err = PayToWitnessScript(2, make([]byte, 41))
	require.True(t, errors.Is(err, ErrInvalidProgram))

	script, err := PayToWitnessScript(16, make([]byte, 2))
	require.NoError(t, err)
	require.Equal(t, byte(txscript.OP_16), script[0])

	version, program, err := ExtractWitnessProgram(script)
	require.NoError(t, err)
	require.Equal(t, 16, version)
	require.Equal(t, make([]byte, 2), program)

	_, _, err = ExtractWitnessProgram([]byte{txscript.OP_RETURN})
	require.True(t, errors.Is(err, ErrInvalidProgram))

	_, err = PayToPubKeyHashScript(make([]byte, 19))
	require.True(t, errors.Is(err, ErrInvalidProgram))
	_, err = PayToScriptHashScript(make([]byte, 21))
	require.True(t, errors.Is(err, ErrInvalidProgram))
}

// TestErrorCodeStringer tests the stringized output for the ErrorCode type.
func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	require.Len(t, errorCodeStrings, int(numErrorCodes))
	for code := ErrorCode(0); code < numErrorCodes; code++ {
		require.Equal(t, errorCodeStrings[code], code.String())
	}
	require.Equal(t, "Unknown ErrorCode (65535)", ErrorCode(0xffff).String())

	data, err := PushedData([]byte{
		txscript.OP_DATA_1, 0x07, txscript.OP_DATA_2, 0x08, 0x09,
	})
	require.NoError(t, err)
	require.Len(t, data, 2)
	_, err = PushedData([]byte{txscript.OP_ADD})
	require.True(t, errors.Is(err, ErrMalformedScript))
}
