// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

// unblindedP2PKHTx is a version 2 transaction spending one legacy P2PKH
// output into one explicit output of 1 L-BTC.
const unblindedP2PKHTx = "02000000000101" +
	"02030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20" +
	"00000000" +
	"6a47304411111111111111111111111111111111111111111111111111111111" +
	"1111111111111111111111111111111111111111111111111111111111111111" +
	"11111111111111110121022222222222222222222222222222222222222222" +
	"222222222222222222222222" +
	"ffffffff" +
	"01" +
	"016d521c38ec1ea15734ae22b7c46064412829c0d0579f0a713d1c04ede979026f" +
	"010000000005f5e100" +
	"00" +
	"1976a914333333333333333333333333333333333333333388ac" +
	"00000000"

// confidentialTx is a version 2 transaction with one segwit input, one
// blinded output carrying proofs and one explicit fee output.
const confidentialTx = "020000000101" +
	"0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20" +
	"01000000" +
	"00" +
	"fdffffff" +
	"02" +
	"0a4444444444444444444444444444444444444444444444444444444444444444" +
	"095555555555555555555555555555555555555555555555555555555555555555" +
	"036666666666666666666666666666666666666666666666666666666666666666" +
	"1600147777777777777777777777777777777777777777" +
	"016d521c38ec1ea15734ae22b7c46064412829c0d0579f0a713d1c04ede979026f" +
	"0100000000000001f4" +
	"00" +
	"00" +
	"00000000" +
	"0000" +
	"0247304411111111111111111111111111111111111111111111111111111111" +
	"1111111111111111111111111111111111111111111111111111111111111111" +
	"11111111111111110121022222222222222222222222222222222222222222" +
	"222222222222222222222222" +
	"00" +
	"0a88888888888888888888" +
	"149999999999999999999999999999999999999999" +
	"0000"

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// requireDecodeError asserts err is a DecodeError of the given code, field
// and offset.
func requireDecodeError(t *testing.T, err error, code ErrorCode,
	field string, offset int) {

	t.Helper()
	require.ErrorIs(t, err, code)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr), spew.Sdump(err))
	require.Equal(t, field, decodeErr.Field)
	require.Equal(t, offset, decodeErr.Offset)
}

// TestUnblindedP2PKHTx decodes a transaction with a legacy scriptSig and
// ensures the output is explicit and the bytes round trip.
func TestUnblindedP2PKHTx(t *testing.T) {
	t.Parallel()

	raw := mustDecodeHex(t, unblindedP2PKHTx)
	var tx MsgTx
	require.NoError(t, tx.FromBytes(raw))

	require.EqualValues(t, 2, tx.Version)
	require.False(t, tx.HasWitness())
	require.False(t, tx.IsCoinBase())
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxOut, 1)

	txIn := tx.TxIn[0]
	require.EqualValues(t, 0, txIn.PreviousOutPoint.Index)
	require.Nil(t, txIn.Issuance)
	require.False(t, txIn.IsPegin)
	require.Len(t, txIn.SignatureScript, 106)
	require.Equal(t, MaxTxInSequenceNum, txIn.Sequence)

	txOut := tx.TxOut[0]
	require.True(t, txOut.IsExplicit(), spew.Sdump(txOut))
	require.False(t, txOut.IsConfidential())
	require.Equal(t, ConfidentialNull, txOut.Nonce.Type)
	require.EqualValues(t, 100000000, txOut.Value.Value)
	require.Equal(t, [33]byte{}, txOut.Value.Commitment)
	require.Equal(t, [33]byte{}, txOut.Asset.Commitment)
	require.Equal(t,
		"6f0279e9ed041c3d710a9f57d0c02928416460c4b722ae3457a11eec381c526d",
		txOut.Asset.ID.String())

	got, err := tx.Bytes()
	require.NoError(t, err)
	require.Equal(t, raw, got)

	require.Equal(t,
		"cc52ba2785ca84bff148dcca447261ced5582f12dc409b222bdedbb283299b08",
		tx.TxHash().String())
	require.Equal(t, tx.TxHash(), tx.WitnessHash())
	require.Equal(t, len(raw), tx.SerializeSize())
	require.Equal(t, len(raw), tx.SerializeSizeStripped())
	require.Equal(t, 4*len(raw), tx.Weight())
	require.Equal(t, len(raw), tx.VirtualSize())
	require.Empty(t, tx.Fees())
}

// TestConfidentialTx decodes a transaction with a blinded output and a
// witness section.
func TestConfidentialTx(t *testing.T) {
	t.Parallel()

	raw := mustDecodeHex(t, confidentialTx)
	var tx MsgTx
	require.NoError(t, tx.FromBytes(raw))
	require.True(t, tx.HasWitness())

	txIn := tx.TxIn[0]
	require.EqualValues(t, 1, txIn.PreviousOutPoint.Index)
	require.EqualValues(t, 0xfffffffd, txIn.Sequence)
	require.Empty(t, txIn.SignatureScript)
	require.Len(t, txIn.Witness, 2)
	require.Empty(t, txIn.PeginWitness)

	blinded := tx.TxOut[0]
	require.True(t, blinded.IsConfidential())
	require.Equal(t, byte(0x0a), blinded.Asset.Commitment[0])
	require.Equal(t, byte(0x09), blinded.Value.Commitment[0])
	require.Equal(t, ConfidentialCommitment, blinded.Nonce.Type)
	require.Len(t, blinded.SurjectionProof, 10)
	require.Len(t, blinded.RangeProof, 20)

	fee := tx.TxOut[1]
	require.True(t, fee.IsFee())
	fees := tx.Fees()
	require.Len(t, fees, 1)
	require.EqualValues(t, 500, fees[fee.Asset.ID])

	got, err := tx.Bytes()
	require.NoError(t, err)
	require.Equal(t, raw, got)

	require.Equal(t, 362, tx.SerializeSize())
	require.Equal(t, 218, tx.SerializeSizeStripped())
	require.Equal(t, 1016, tx.Weight())
	require.Equal(t, 254, tx.VirtualSize())
	require.Equal(t,
		"ce94a593a521b34ae3a5dafb29087ea5b9bdadef0d49b345e9407ea9e831872e",
		tx.TxHash().String())
	require.Equal(t,
		"0e0610fcafa1bf2ffc4f7c5b30f03aaca01959d614c804817e2c6e6adf676b68",
		tx.WitnessHash().String())
}

// TestTxRoundTrip builds transactions exercising issuance, pegin and coinbase
// inputs and ensures they survive a serialize and decode cycle.
func TestTxRoundTrip(t *testing.T) {
	t.Parallel()

	asset := chainhash.Hash{0x6d, 0x52}
	prevHash := chainhash.Hash{0x01, 0x02, 0x03}

	issuance := NewMsgTx(TxVersion)
	issueIn := NewTxIn(NewOutPoint(&prevHash, 3), nil, TxWitness{{0x01}})
	issueIn.Issuance = &AssetIssuance{
		AssetEntropy:  [32]byte{0xee},
		Amount:        NewExplicitValue(21_000_000),
		InflationKeys: NewExplicitValue(1),
	}
	issueIn.IssuanceRangeProof = []byte{0xaa, 0xbb}
	issuance.AddTxIn(issueIn)
	issuance.AddTxOut(NewTxOut(asset, 1000, []byte{0x51}))

	reissuance := issuance.Copy()
	reissuance.TxIn[0].Issuance.AssetBlindingNonce = [32]byte{0x01}
	reissuance.TxIn[0].Issuance.InflationKeys = ConfidentialValue{}

	pegin := NewMsgTx(TxVersion)
	peginIn := NewTxIn(NewOutPoint(&prevHash, 0), nil, nil)
	peginIn.IsPegin = true
	peginIn.PeginWitness = TxWitness{{0x01}, {0x02, 0x03}, {}, {0x04}}
	pegin.AddTxIn(peginIn)
	pegin.AddTxOut(NewTxOut(asset, 999, []byte{0x00, 0x14}))
	pegin.AddTxOut(NewTxOut(asset, 1, nil))

	coinbase := NewMsgTx(TxVersion)
	coinbase.AddTxIn(NewTxIn(NewOutPoint(&chainhash.Hash{}, MaxPrevOutIndex),
		[]byte{0x03, 0x01, 0x02, 0x03}, nil))
	coinbase.AddTxOut(NewTxOut(asset, 0, []byte{0x6a}))
	coinbase.LockTime = 500

	tests := []struct {
		name string
		tx   *MsgTx
	}{
		{"issuance", issuance},
		{"reissuance", reissuance},
		{"pegin", pegin},
		{"coinbase", coinbase},
	}
	for _, test := range tests {
		raw, err := test.tx.Bytes()
		require.NoError(t, err, test.name)
		require.Equal(t, len(raw), test.tx.SerializeSize(), test.name)

		var got MsgTx
		require.NoError(t, got.FromBytes(raw), test.name)
		require.Equal(t, test.tx.TxHash(), got.TxHash(), test.name)

		again, err := got.Bytes()
		require.NoError(t, err, test.name)
		require.Equal(t, raw, again, test.name)
	}

	require.True(t, coinbase.IsCoinBase())
	require.False(t, issuance.TxIn[0].Issuance.IsReissuance())
	require.True(t, reissuance.TxIn[0].Issuance.IsReissuance())

	// The copy must not share the issuance with the original.
	require.False(t, issuance.TxIn[0].Issuance.IsReissuance())

	// The flags live in the serialized index.
	raw, err := pegin.Bytes()
	require.NoError(t, err)
	index := littleEndian.Uint32(raw[5+1+32:])
	require.Equal(t, OutPointPeginFlag, index)
}

// TestTxEncodeErrors ensures flags that can not be represented are refused.
func TestTxEncodeErrors(t *testing.T) {
	t.Parallel()

	tx := NewMsgTx(TxVersion)
	txIn := NewTxIn(NewOutPoint(&chainhash.Hash{}, MaxPrevOutIndex), nil, nil)
	txIn.IsPegin = true
	tx.AddTxIn(txIn)
	_, err := tx.Bytes()
	require.Error(t, err)

	txIn.IsPegin = false
	txIn.PreviousOutPoint.Index = OutPointIndexMask + 1
	_, err = tx.Bytes()
	require.Error(t, err)
}

// TestTxDecodeErrors performs negative tests against decoding transactions.
func TestTxDecodeErrors(t *testing.T) {
	t.Parallel()

	simple := mustDecodeHex(t, unblindedP2PKHTx)
	conf := mustDecodeHex(t, confidentialTx)

	// Output of the simple transaction starts after version, flag, input
	// count and the 146 byte input.
	const simpleOutput = 4 + 1 + 1 + 32 + 4 + 1 + 106 + 4 + 1

	withByte := func(b []byte, i int, v byte) []byte {
		c := append([]byte(nil), b...)
		c[i] = v
		return c
	}

	// Flag 1 followed by all empty witnesses.
	emptyWitness := append(withByte(simple, 4, 1), 0, 0, 0, 0, 0, 0)

	// A blinded value next to an explicit asset.
	mixed := append([]byte(nil), simple[:simpleOutput+33]...)
	mixed = append(mixed, 0x08)
	mixed = append(mixed, bytes.Repeat([]byte{0x01}, 32)...)
	mixed = append(mixed, simple[simpleOutput+33+9:]...)

	// The fee output of the confidential transaction with a range proof.
	feeProof := append([]byte(nil), conf[:len(conf)-1]...)
	feeProof = append(feeProof, 0x01, 0xff)

	tests := []struct {
		name   string
		raw    []byte
		code   ErrorCode
		field  string
		offset int
	}{
		{"empty", nil, ErrTruncatedInput, "version", 0},
		{"truncated locktime", simple[:len(simple)-1], ErrTruncatedInput,
			"locktime", len(simple) - 4},
		{"trailing byte", append(append([]byte(nil), simple...), 0x00),
			ErrTrailingBytes, "tx", len(simple)},
		{"bad flag", withByte(simple, 4, 2), ErrMalformedField, "flag", 4},
		{"empty witness", emptyWitness, ErrMalformedField, "flag", 4},
		{"non-canonical count", append(append([]byte(nil), simple[:5]...),
			0xfd, 0x01, 0x00), ErrMalformedField, "input count", 5},
		{"unknown asset prefix", withByte(simple, simpleOutput, 0x05),
			ErrMalformedField, "output[0].asset", simpleOutput},
		{"null value", withByte(simple, simpleOutput+33, 0x00),
			ErrMalformedField, "output[0]", simpleOutput},
		{"mixed output", mixed, ErrMalformedField, "output[0]",
			simpleOutput},
		{"explicit output proof", feeProof, ErrMalformedField,
			"output[1]", 170},
	}
	for _, test := range tests {
		var tx MsgTx
		err := tx.FromBytes(test.raw)
		require.Error(t, err, test.name)
		requireDecodeError(t, err, test.code, test.field, test.offset)
	}
}

// TestTxDecodeHugeCounts ensures counts and lengths larger than the rest of
// the input can hold fail as truncated input before anything is allocated.
func TestTxDecodeHugeCounts(t *testing.T) {
	t.Parallel()

	simple := mustDecodeHex(t, unblindedP2PKHTx)
	const (
		scriptSigStart = 4 + 1 + 1 + 32 + 4
		outputCount    = scriptSigStart + 1 + 106 + 4
	)

	prefix := func(n int, tail ...byte) []byte {
		b := append([]byte(nil), simple[:n]...)
		return append(b, tail...)
	}

	// Input count of 815104 with nothing behind it.
	hugeInputs := mustDecodeHex(t, "0200000000fe00700c00")

	// 1000 outputs backed by 100 bytes.
	hugeOutputs := prefix(outputCount, 0xfd, 0xe8, 0x03)
	hugeOutputs = append(hugeOutputs, make([]byte, 100)...)

	// A 255 byte script_sig backed by 10 bytes.
	hugeScript := prefix(scriptSigStart, 0xfd, 0xff, 0x00)
	hugeScript = append(hugeScript, make([]byte, 10)...)

	// A witness stack of 1000 items with flag set and no issuance proofs.
	hugeWitness := append([]byte(nil), simple...)
	hugeWitness[4] = 1
	hugeWitness = append(hugeWitness, 0x00, 0x00, 0xfd, 0xe8, 0x03, 0x00)

	tests := []struct {
		name   string
		raw    []byte
		field  string
		offset int
	}{
		{"inputs", hugeInputs, "input count", 5},
		{"no inputs", []byte{2, 0, 0, 0, 0, 2}, "input count", 5},
		{"outputs", hugeOutputs, "output count", outputCount},
		{"script_sig", hugeScript, "input[0].script_sig",
			scriptSigStart},
		{"witness", hugeWitness, "input[0].witness.script_witness",
			len(simple) + 2},
	}
	for _, test := range tests {
		var tx MsgTx
		err := tx.FromBytes(test.raw)
		require.Error(t, err, test.name)
		requireDecodeError(t, err, ErrTruncatedInput, test.field,
			test.offset)
	}
}

// TestTxOutTruncatedCommitment ensures an output whose value commitment is
// one byte short fails as truncated input.
func TestTxOutTruncatedCommitment(t *testing.T) {
	t.Parallel()

	raw := []byte{0x0a}
	raw = append(raw, bytes.Repeat([]byte{0x44}, 32)...)
	raw = append(raw, 0x08)
	raw = append(raw, bytes.Repeat([]byte{0x55}, 31)...)

	var txOut TxOut
	err := txOut.FromBytes(raw)
	requireDecodeError(t, err, ErrTruncatedInput, "value", 34)

	// The same output inside a transaction reports its position.
	tx := mustDecodeHex(t, confidentialTx)
	const outputStart = 4 + 1 + 1 + 32 + 4 + 1 + 4 + 1
	truncated := append([]byte(nil), tx[:outputStart+33+32]...)
	var msg MsgTx
	err = msg.FromBytes(truncated)
	requireDecodeError(t, err, ErrTruncatedInput, "output[0].value",
		outputStart+34)
}

// TestTxOutBytes ensures a single output round trips without its proofs.
func TestTxOutBytes(t *testing.T) {
	t.Parallel()

	txOut := NewTxOut(chainhash.Hash{0x01}, 5000, []byte{0x51})
	var buf bytes.Buffer
	require.NoError(t, txOut.Serialize(&buf))
	require.Equal(t, txOut.SerializeSize(), buf.Len())

	var got TxOut
	require.NoError(t, got.FromBytes(buf.Bytes()))
	require.Equal(t, txOut, &got)
	require.NoError(t, got.CheckForm())

	got.RangeProof = []byte{0x01}
	require.Error(t, got.CheckForm())
}

// TestVarIntCanonical ensures the varint reader refuses encodings that could
// be shorter.
func TestVarIntCanonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw   []byte
		value uint64
		valid bool
	}{
		{[]byte{0xfc}, 0xfc, true},
		{[]byte{0xfd, 0xfd, 0x00}, 0xfd, true},
		{[]byte{0xfd, 0xfc, 0x00}, 0, false},
		{[]byte{0xfe, 0xff, 0xff, 0x00, 0x00}, 0, false},
		{[]byte{0xfe, 0x00, 0x00, 0x01, 0x00}, 0x10000, true},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00}, 0, false},
	}
	for _, test := range tests {
		v, err := ReadVarInt(bytes.NewReader(test.raw))
		if !test.valid {
			require.ErrorIs(t, err, ErrMalformedField, spew.Sdump(test.raw))
			continue
		}
		require.NoError(t, err)
		require.Equal(t, test.value, v)

		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		require.Equal(t, test.raw, buf.Bytes())
		require.Equal(t, len(test.raw), VarIntSerializeSize(v))
	}
}

// TestOutPointString checks the txid:vout rendering.
func TestOutPointString(t *testing.T) {
	t.Parallel()

	hash := chainhash.Hash{0x01}
	op := NewOutPoint(&hash, 7)
	require.Equal(t, hash.String()+":7", op.String())
}
