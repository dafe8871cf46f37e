// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/primitives"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
	"github.com/btcsuite/elementsutil/wire"
	"github.com/stretchr/testify/require"
)

// testPubKey returns the compressed public key of a fixed private key.
func testPubKey(seed byte) []byte {
	_, pub := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return pub.SerializeCompressed()
}

// testSig is a placeholder signature carrying a SIGHASH_ALL byte.  The
// package never verifies signatures.
func testSig(seed byte) []byte {
	return append(bytes.Repeat([]byte{0x30, seed}, 35), 0x01)
}

var testAsset = chainhash.Hash{0x6f, 0x02, 0x79}

// testTx returns an unsigned transaction with one input and a payment and
// fee output.
func testTx() *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0xaa}, Index: 1},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(testAsset, 99_000, append([]byte{0x00, 0x14},
		bytes.Repeat([]byte{0x11}, 20)...)))
	tx.AddTxOut(wire.NewTxOut(testAsset, 1_000, nil))
	return tx
}

// roundTrip serializes p, decodes it again and checks the encoding is
// stable.
func roundTrip(t *testing.T, p *Packet) *Packet {
	t.Helper()

	raw, err := p.Bytes()
	require.NoError(t, err)
	decoded, err := FromBytes(raw)
	require.NoError(t, err)
	again, err := decoded.Bytes()
	require.NoError(t, err)
	require.Equal(t, raw, again)

	b64, err := p.B64Encode()
	require.NoError(t, err)
	fromB64, err := NewFromRawBytes(bytes.NewReader([]byte(b64)), true)
	require.NoError(t, err)
	again, err = fromB64.Bytes()
	require.NoError(t, err)
	require.Equal(t, raw, again)
	return decoded
}

func TestNewRoundTrip(t *testing.T) {
	tx := testTx()
	p, err := New(tx)
	require.NoError(t, err)
	require.Len(t, p.Inputs, 1)
	require.Len(t, p.Outputs, 2)
	require.Equal(t, uint64(99_000), *p.Outputs[0].Amount)
	require.Equal(t, testAsset, *p.Outputs[0].Asset)
	require.Empty(t, p.Outputs[1].Script)

	decoded := roundTrip(t, p)
	require.Equal(t, uint32(2), decoded.TxVersion)
	require.Equal(t, wire.OutPoint{Hash: chainhash.Hash{0xaa}, Index: 1},
		decoded.Inputs[0].OutPoint())
	require.Equal(t, wire.MaxTxInSequenceNum, decoded.Inputs[0].Sequence)

	// Without final scripts the PSET still describes the transaction.
	unsigned, err := decoded.Tx()
	require.NoError(t, err)
	require.Equal(t, tx.TxHash(), unsigned.TxHash())
}

func TestNewIssuanceAndPegin(t *testing.T) {
	tx := testTx()
	tx.TxIn[0].Issuance = &wire.AssetIssuance{
		AssetEntropy:  [32]byte{0x42},
		Amount:        wire.NewExplicitValue(500),
		InflationKeys: wire.NewExplicitValue(1),
	}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0xbb}},
		IsPegin:          true,
		Sequence:         0xfffffffd,
		PeginWitness:     wire.TxWitness{{0x01}, {0x02, 0x03}},
	})
	tx.LockTime = 100

	p, err := New(tx)
	require.NoError(t, err)
	require.True(t, p.Inputs[0].HasIssuance())
	require.False(t, p.Inputs[0].IsPegin())
	require.Equal(t, uint64(500), *p.Inputs[0].IssuanceValue)
	require.True(t, p.Inputs[1].IsPegin())
	require.Equal(t, uint32(0), p.Inputs[1].OutPoint().Index)

	decoded := roundTrip(t, p)
	require.Equal(t, wire.TxWitness{{0x01}, {0x02, 0x03}},
		decoded.Inputs[1].PeginWitness)

	rebuilt, err := decoded.Tx()
	require.NoError(t, err)
	want, err := tx.Bytes()
	require.NoError(t, err)
	got, err := rebuilt.Bytes()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestNewRejectsSigned(t *testing.T) {
	tx := testTx()
	tx.TxIn[0].SignatureScript = []byte{0x51}
	_, err := New(tx)
	require.ErrorIs(t, err, ErrInvalidRawTxSigned)

	tx = testTx()
	tx.TxIn[0].Witness = wire.TxWitness{{0x01}}
	_, err = New(tx)
	require.ErrorIs(t, err, ErrInvalidRawTxSigned)
}

func TestRoundTripAllFields(t *testing.T) {
	p, err := New(testTx())
	require.NoError(t, err)

	fallback, modifiable, elementsModifiable := uint32(7), uint8(3), uint8(1)
	p.FallbackLockTime = &fallback
	p.TxModifiable = &modifiable
	p.ElementsTxModifiable = &elementsModifiable
	p.Scalars = [][32]byte{{0x02}, {0x01}}
	p.Unknowns = []*psbt.Unknown{{Key: []byte{0x99, 0x01}, Value: []byte{0x02}}}

	pubKey := testPubKey(1)
	height, genesis, pegValue := uint32(500), chainhash.Hash{0x0f}, uint64(10)
	in := p.Inputs[0]
	in.WitnessUtxo = wire.NewTxOut(testAsset, 100_000,
		append([]byte{0x00, 0x14}, btcutil.Hash160(pubKey)...))
	in.PartialSigs = []*psbt.PartialSig{{PubKey: pubKey, Signature: testSig(1)}}
	in.SighashType = 1
	in.Bip32Derivation = []*psbt.Bip32Derivation{{
		PubKey:               pubKey,
		MasterKeyFingerprint: 0xdeadbeef,
		Bip32Path:            []uint32{0x80000054, 1},
	}}
	secret := bytes.Repeat([]byte{0x07}, 32)
	digest := sha256.Sum256(secret)
	in.Preimages = []*Preimage{{Kind: primitives.SHA256, Hash: digest[:], Preimage: secret}}
	in.Sequence = 0xfffffffe
	in.RequiredHeightLockTime = &height
	in.PeginGenesisHash = &genesis
	in.PeginValue = &pegValue
	in.PeginClaimScript = []byte{0x00, 0x14}
	in.Unknowns = []*psbt.Unknown{{
		Key:   append([]byte{0xfc}, proprietaryKey(0x7f, nil)...),
		Value: []byte{0x01},
	}}

	blinderIndex := uint32(0)
	out := p.Outputs[0]
	out.BlindingPubKey = testPubKey(2)
	out.BlinderIndex = &blinderIndex
	out.ValueRangeProof = []byte{0x60, 0x33}

	decoded := roundTrip(t, p)
	require.Equal(t, [][32]byte{{0x01}, {0x02}}, decoded.Scalars)
	require.Equal(t, uint8(1), *decoded.ElementsTxModifiable)
	require.Len(t, decoded.Unknowns, 1)

	dIn := decoded.Inputs[0]
	require.Equal(t, in.WitnessUtxo, dIn.WitnessUtxo)
	require.Equal(t, in.PartialSigs, dIn.PartialSigs)
	require.Equal(t, in.Bip32Derivation, dIn.Bip32Derivation)
	require.Equal(t, secret, dIn.Preimages[0].Preimage)
	require.Equal(t, uint32(0xfffffffe), dIn.Sequence)
	require.Equal(t, height, *dIn.RequiredHeightLockTime)
	require.Equal(t, genesis, *dIn.PeginGenesisHash)
	require.Equal(t, pegValue, *dIn.PeginValue)
	require.Len(t, dIn.Unknowns, 1)

	dOut := decoded.Outputs[0]
	require.Equal(t, out.BlindingPubKey, dOut.BlindingPubKey)
	require.True(t, dOut.IsBlinded())
	require.Equal(t, blinderIndex, *dOut.BlinderIndex)
	require.Equal(t, out.ValueRangeProof, dOut.ValueRangeProof)
}

// rawPacket serializes a PSET from hand written maps.  Each entry is a key
// and a value in hex.
func rawPacket(t *testing.T, maps ...[][2]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(psetMagic[:])
	for _, m := range maps {
		for _, kv := range m {
			key, err := hex.DecodeString(kv[0])
			require.NoError(t, err)
			value, err := hex.DecodeString(kv[1])
			require.NoError(t, err)
			require.NoError(t, serializeKVpair(&buf, key, value))
		}
		buf.WriteByte(0x00)
	}
	return buf.Bytes()
}

func TestDecodeErrors(t *testing.T) {
	global := [][2]string{
		{"02", "02000000"},
		{"04", "01"},
		{"05", "00"},
		{"fb", "02000000"},
	}
	input := [][2]string{
		{"0e", hex.EncodeToString(make([]byte, 32))},
		{"0f", "00000000"},
	}
	with := func(m [][2]string, kv ...[2]string) [][2]string {
		return append(append([][2]string{}, m...), kv...)
	}

	tests := []struct {
		name string
		raw  []byte
		code ErrorCode
	}{{
		name: "bad magic",
		raw:  []byte("psbt\xff\x00"),
		code: ErrInvalidMagic,
	}, {
		name: "empty",
		raw:  nil,
		code: ErrInvalidMagic,
	}, {
		name: "missing version",
		raw: rawPacket(t, [][2]string{
			{"02", "02000000"}, {"04", "00"}, {"05", "00"},
		}),
		code: ErrMissingField,
	}, {
		name: "unsupported version",
		raw: rawPacket(t, [][2]string{
			{"02", "02000000"}, {"04", "00"}, {"05", "00"},
			{"fb", "03000000"},
		}),
		code: ErrUnsupportedVersion,
	}, {
		name: "unsigned tx key",
		raw:  rawPacket(t, with(global, [2]string{"00", "00"})),
		code: ErrInvalidFormat,
	}, {
		name: "duplicate key",
		raw:  rawPacket(t, with(global, [2]string{"02", "02000000"})),
		code: ErrDuplicateKey,
	}, {
		name: "missing input map",
		raw:  rawPacket(t, global),
		code: ErrInvalidFormat,
	}, {
		name: "input without txid",
		raw:  rawPacket(t, global, [][2]string{{"0f", "00000000"}}),
		code: ErrMissingField,
	}, {
		name: "bad partial sig key",
		raw: rawPacket(t, global, with(input,
			[2]string{"0204", "3001"})),
		code: ErrInvalidKeyData,
	}, {
		name: "preimage mismatch",
		raw: rawPacket(t, global, with(input, [2]string{
			"0b" + hex.EncodeToString(make([]byte, 32)), "00",
		})),
		code: ErrInvalidFormat,
	}, {
		name: "time lock below threshold",
		raw: rawPacket(t, global, with(input,
			[2]string{"11", "10000000"})),
		code: ErrInvalidFormat,
	}, {
		name: "short sequence",
		raw:  rawPacket(t, global, with(input, [2]string{"10", "0000"})),
		code: ErrInvalidFormat,
	}}

	for _, test := range tests {
		_, err := FromBytes(test.raw)
		require.ErrorIs(t, err, test.code, test.name)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	p, err := New(testTx())
	require.NoError(t, err)
	raw, err := p.Bytes()
	require.NoError(t, err)

	_, err = FromBytes(append(raw, 0x00))
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestLockTime(t *testing.T) {
	u32 := func(v uint32) *uint32 { return &v }

	tests := []struct {
		name     string
		fallback *uint32
		required [][2]*uint32 // time, height
		want     uint32
		err      error
	}{{
		name: "no fallback",
		want: 0,
	}, {
		name:     "fallback",
		fallback: u32(42),
		required: [][2]*uint32{{nil, nil}},
		want:     42,
	}, {
		name:     "largest height",
		fallback: u32(42),
		required: [][2]*uint32{{nil, u32(100)}, {nil, u32(200)}},
		want:     200,
	}, {
		name: "height preferred",
		required: [][2]*uint32{
			{u32(600_000_000), u32(100)},
			{u32(600_000_001), u32(50)},
		},
		want: 100,
	}, {
		name: "time only",
		required: [][2]*uint32{
			{u32(600_000_000), u32(100)},
			{u32(600_000_001), nil},
		},
		want: 600_000_001,
	}, {
		name: "conflict",
		required: [][2]*uint32{
			{u32(600_000_000), nil},
			{nil, u32(100)},
		},
		err: ErrLockTimeConflict,
	}}

	for _, test := range tests {
		p := &Packet{FallbackLockTime: test.fallback}
		for _, r := range test.required {
			p.Inputs = append(p.Inputs, &Input{
				RequiredTimeLockTime:   r[0],
				RequiredHeightLockTime: r[1],
			})
		}
		got, err := p.LockTime()
		if test.err != nil {
			require.ErrorIs(t, err, test.err, test.name)
			continue
		}
		require.NoError(t, err, test.name)
		require.Equal(t, test.want, got, test.name)
	}
}

// witnessScript compiles a miniscript whose keys are given in hex.
func witnessScript(t *testing.T, expr string) []byte {
	t.Helper()

	node, err := miniscript.Parse(expr)
	require.NoError(t, err)
	require.NoError(t, node.ApplyVars(func(string) ([]byte, error) {
		return nil, nil
	}))
	script, err := node.Script()
	require.NoError(t, err)
	return script
}

func p2wsh(script []byte) []byte {
	hash := sha256.Sum256(script)
	return append([]byte{0x00, 0x20}, hash[:]...)
}

func TestFinalizeP2WPKH(t *testing.T) {
	p, err := New(testTx())
	require.NoError(t, err)

	pubKey := testPubKey(1)
	in := p.Inputs[0]
	in.WitnessUtxo = wire.NewTxOut(testAsset, 100_000,
		append([]byte{0x00, 0x14}, btcutil.Hash160(pubKey)...))

	// No signature yet.
	require.ErrorIs(t, p.Finalize(0), ErrNotFinalizable)
	_, err = p.Extract()
	require.ErrorIs(t, err, ErrNotFinalized)

	in.PartialSigs = []*psbt.PartialSig{{PubKey: pubKey, Signature: testSig(1)}}
	require.NoError(t, p.FinalizeAll())
	require.True(t, p.IsComplete())
	require.Nil(t, in.PartialSigs)
	require.Nil(t, in.FinalScriptSig)
	require.Equal(t, wire.TxWitness{testSig(1), pubKey},
		in.FinalScriptWitness)

	decoded := roundTrip(t, p)
	tx, err := decoded.Extract()
	require.NoError(t, err)
	require.Equal(t, wire.TxWitness{testSig(1), pubKey}, tx.TxIn[0].Witness)
	require.Empty(t, tx.TxIn[0].SignatureScript)
}

func TestFinalizeNestedP2WPKH(t *testing.T) {
	p, err := New(testTx())
	require.NoError(t, err)

	pubKey := testPubKey(1)
	redeem := append([]byte{0x00, 0x14}, btcutil.Hash160(pubKey)...)
	p2sh := append(append([]byte{0xa9, 0x14}, btcutil.Hash160(redeem)...),
		0x87)

	in := p.Inputs[0]
	in.WitnessUtxo = wire.NewTxOut(testAsset, 100_000, p2sh)
	in.RedeemScript = redeem
	in.PartialSigs = []*psbt.PartialSig{{PubKey: pubKey, Signature: testSig(1)}}
	require.NoError(t, p.Finalize(0))

	require.Equal(t, append([]byte{byte(len(redeem))}, redeem...),
		in.FinalScriptSig)
	require.Equal(t, wire.TxWitness{testSig(1), pubKey},
		in.FinalScriptWitness)
	require.Nil(t, in.RedeemScript)
}

func TestFinalizeP2PKH(t *testing.T) {
	p, err := New(testTx())
	require.NoError(t, err)

	pubKey := testPubKey(3)
	pkScript := append(append([]byte{0x76, 0xa9, 0x14},
		btcutil.Hash160(pubKey)...), 0x88, 0xac)

	prev := wire.NewMsgTx(2)
	prev.AddTxOut(wire.NewTxOut(testAsset, 1, nil))
	prev.AddTxOut(wire.NewTxOut(testAsset, 100_000, pkScript))
	in := p.Inputs[0]
	in.PreviousTxid = prev.TxHash()
	in.NonWitnessUtxo = prev
	in.PartialSigs = []*psbt.PartialSig{{PubKey: pubKey, Signature: testSig(3)}}
	require.NoError(t, p.Finalize(0))

	sig := testSig(3)
	want := append(append([]byte{byte(len(sig))}, sig...),
		byte(len(pubKey)))
	require.Equal(t, append(want, pubKey...), in.FinalScriptSig)
	require.Nil(t, in.FinalScriptWitness)
	roundTrip(t, p)
}

func TestFinalizeMiniscript(t *testing.T) {
	keyA, keyB := testPubKey(1), testPubKey(2)
	expr := fmt.Sprintf("or_d(pk(%x),and_v(v:pk(%x),older(10)))", keyA,
		keyB)
	script := witnessScript(t, expr)

	newPacket := func(sequence uint32) *Packet {
		p, err := New(testTx())
		require.NoError(t, err)
		in := p.Inputs[0]
		in.Sequence = sequence
		in.WitnessUtxo = wire.NewTxOut(testAsset, 100_000, p2wsh(script))
		in.WitnessScript = script
		return p
	}

	// The key path needs no time lock.
	p := newPacket(wire.MaxTxInSequenceNum)
	p.Inputs[0].PartialSigs = []*psbt.PartialSig{
		{PubKey: keyA, Signature: testSig(1)},
	}
	require.NoError(t, p.Finalize(0))
	require.Equal(t, wire.TxWitness{testSig(1), script},
		p.Inputs[0].FinalScriptWitness)

	// The recovery path waits for the relative lock.
	p = newPacket(9)
	p.Inputs[0].PartialSigs = []*psbt.PartialSig{
		{PubKey: keyB, Signature: testSig(2)},
	}
	require.ErrorIs(t, p.Finalize(0), ErrNotFinalizable)

	p = newPacket(10)
	p.Inputs[0].PartialSigs = []*psbt.PartialSig{
		{PubKey: keyB, Signature: testSig(2)},
	}
	require.NoError(t, p.Finalize(0))
	require.Equal(t, wire.TxWitness{testSig(2), {}, script},
		p.Inputs[0].FinalScriptWitness)
}

func TestFinalizeErrors(t *testing.T) {
	pubKey := testPubKey(1)
	script := witnessScript(t, fmt.Sprintf("pk(%x)", pubKey))

	p, err := New(testTx())
	require.NoError(t, err)
	require.ErrorIs(t, p.Finalize(1), ErrIndexOutOfRange)

	// No utxo.
	require.ErrorIs(t, p.Finalize(0), ErrNotFinalizable)

	in := p.Inputs[0]
	in.WitnessUtxo = wire.NewTxOut(testAsset, 100_000, p2wsh(script))
	in.PartialSigs = []*psbt.PartialSig{{PubKey: pubKey, Signature: testSig(1)}}

	// Missing witness script.
	require.ErrorIs(t, p.Finalize(0), ErrNotFinalizable)

	// Witness script of another output.
	in.WitnessScript = append([]byte{0x51}, script...)
	require.ErrorIs(t, p.Finalize(0), ErrNotFinalizable)

	// Signature committing to another sighash type.
	in.WitnessScript = script
	in.SighashType = 0x83
	require.ErrorIs(t, p.Finalize(0), ErrNotFinalizable)

	in.SighashType = 0
	require.NoError(t, p.Finalize(0))
}

func TestMerge(t *testing.T) {
	keyA, keyB := testPubKey(1), testPubKey(2)
	script := witnessScript(t, fmt.Sprintf("multi(2,%x,%x)", keyA, keyB))

	newPacket := func(key []byte, seed byte) *Packet {
		p, err := New(testTx())
		require.NoError(t, err)
		in := p.Inputs[0]
		in.WitnessUtxo = wire.NewTxOut(testAsset, 100_000, p2wsh(script))
		in.WitnessScript = script
		in.PartialSigs = []*psbt.PartialSig{
			{PubKey: key, Signature: testSig(seed)},
		}
		return p
	}

	signerA, signerB := newPacket(keyA, 1), newPacket(keyB, 2)
	require.ErrorIs(t, signerA.Finalize(0), ErrNotFinalizable)

	require.NoError(t, signerA.Merge(signerB))
	require.Len(t, signerA.Inputs[0].PartialSigs, 2)

	// Merging again adds nothing.
	require.NoError(t, signerA.Merge(signerB))
	require.Len(t, signerA.Inputs[0].PartialSigs, 2)

	require.NoError(t, signerA.Finalize(0))
	require.Equal(t, wire.TxWitness{{}, testSig(1), testSig(2), script},
		signerA.Inputs[0].FinalScriptWitness)
}

func TestMergeConflicts(t *testing.T) {
	base, err := New(testTx())
	require.NoError(t, err)

	tx := testTx()
	tx.Version = 1
	otherVersion, err := New(tx)
	require.NoError(t, err)
	require.ErrorIs(t, base.Merge(otherVersion), ErrMergeConflict)

	tx = testTx()
	tx.TxIn[0].PreviousOutPoint.Index = 2
	otherInput, err := New(tx)
	require.NoError(t, err)
	require.ErrorIs(t, base.Merge(otherInput), ErrMergeConflict)

	tx = testTx()
	tx.TxOut[0].PkScript = []byte{0x51}
	otherOutput, err := New(tx)
	require.NoError(t, err)
	require.ErrorIs(t, base.Merge(otherOutput), ErrMergeConflict)

	tx = testTx()
	tx.AddTxOut(wire.NewTxOut(testAsset, 5, []byte{0x51}))
	moreOutputs, err := New(tx)
	require.NoError(t, err)
	require.ErrorIs(t, base.Merge(moreOutputs), ErrMergeConflict)
}

func TestErrorCodeStringer(t *testing.T) {
	for c := ErrorCode(0); c < numErrorCodes; c++ {
		require.NotContains(t, c.String(), "Unknown", "code %d", c)
	}
	require.Equal(t, "Unknown ErrorCode (999)", ErrorCode(999).String())
}
