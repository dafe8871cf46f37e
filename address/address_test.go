// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-elements/blech32"
)

var (
	testKey = func() *btcec.PublicKey {
		priv, _ := btcec.PrivKeyFromBytes(chainhash.HashB([]byte("key")))
		return priv.PubKey()
	}()
	testBlinder = func() *btcec.PublicKey {
		priv, _ := btcec.PrivKeyFromBytes(chainhash.HashB([]byte("blind")))
		return priv.PubKey()
	}()

	testNets = []*chaincfg.Params{
		&chaincfg.LiquidParams,
		&chaincfg.LiquidTestNetParams,
		&chaincfg.ElementsRegtestParams,
	}
)

// testAddresses returns one address of every type on net.
func testAddresses(t *testing.T, net *chaincfg.Params) []*Address {
	t.Helper()

	hash := btcutil.Hash160(testKey.SerializeCompressed())
	wsh := sha256.Sum256([]byte{0x51})

	p2pkh, err := NewPubKeyHash(hash, net)
	require.NoError(t, err)
	p2sh, err := NewScriptHash([]byte{0x51}, net)
	require.NoError(t, err)
	p2wpkh, err := NewWitness(0, hash, net)
	require.NoError(t, err)
	p2wsh, err := NewWitness(0, wsh[:], net)
	require.NoError(t, err)
	p2tr, err := NewWitness(1, testKey.SerializeCompressed()[1:], net)
	require.NoError(t, err)
	unknown, err := NewWitness(2, []byte{0xab, 0xcd}, net)
	require.NoError(t, err)

	return []*Address{p2pkh, p2sh, p2wpkh, p2wsh, p2tr, unknown}
}

// TestRoundTrip checks that every address type encodes and decodes back, both
// plain and confidential.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	wantTypes := []Type{
		PubKeyHash, ScriptHash, WitnessPubKeyHash, WitnessScriptHash,
		Taproot, WitnessUnknown,
	}
	for _, net := range testNets {
		for i, plain := range testAddresses(t, net) {
			require.Equal(t, wantTypes[i], plain.Type())

			for _, a := range []*Address{plain, plain.Confidential(testBlinder)} {
				encoded := a.EncodeAddress()
				require.NotEmpty(t, encoded)
				require.Equal(t, encoded, a.String())

				decoded, err := Decode(encoded, net)
				require.NoError(t, err, encoded)
				require.Equal(t, a.Type(), decoded.Type(), encoded)
				require.Equal(t, a.ScriptAddress(),
					decoded.ScriptAddress(), encoded)
				require.Equal(t, a.WitnessVersion(),
					decoded.WitnessVersion(), encoded)
				require.Equal(t, a.IsConfidential(),
					decoded.IsConfidential(), encoded)
				require.Equal(t, encoded, decoded.EncodeAddress())
				require.Same(t, net, decoded.Net())

				// Without a network the prefix picks one.
				decoded, err = Decode(encoded, nil)
				require.NoError(t, err, encoded)
				require.Same(t, net, decoded.Net())

				if a.IsConfidential() {
					require.Equal(t,
						testBlinder.SerializeCompressed(),
						decoded.BlindingKey().SerializeCompressed())
					require.Equal(t, plain.EncodeAddress(),
						decoded.Unconfidential().EncodeAddress())
				} else {
					require.Nil(t, decoded.BlindingKey())
				}
			}
		}
	}
}

// TestPrefixes checks the human readable parts of segwit addresses.
func TestPrefixes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		net     *chaincfg.Params
		plain   string
		blinded string
	}{
		{&chaincfg.LiquidParams, "ex1", "lq1"},
		{&chaincfg.LiquidTestNetParams, "tex1", "tlq1"},
		{&chaincfg.ElementsRegtestParams, "ert1", "el1"},
	}
	for _, test := range tests {
		addrs := testAddresses(t, test.net)
		p2wpkh, p2tr := addrs[2], addrs[4]

		require.True(t, strings.HasPrefix(p2wpkh.String(),
			test.plain+"q"), p2wpkh.String())
		require.True(t, strings.HasPrefix(p2tr.String(),
			test.plain+"p"), p2tr.String())

		blinded := p2wpkh.Confidential(testBlinder).String()
		require.True(t, strings.HasPrefix(blinded, test.blinded+"q"),
			blinded)

		// Uppercase segwit addresses are accepted.
		decoded, err := Decode(strings.ToUpper(blinded), test.net)
		require.NoError(t, err)
		require.Equal(t, blinded, decoded.String())
	}
}

// TestPkScript checks that output scripts map to addresses and back.
func TestPkScript(t *testing.T) {
	t.Parallel()

	for _, a := range testAddresses(t, &chaincfg.LiquidParams) {
		pkScript, err := a.PkScript()
		require.NoError(t, err)

		fromScript, err := FromPkScript(pkScript, &chaincfg.LiquidParams)
		require.NoError(t, err, a.Type())
		require.Equal(t, a.String(), fromScript.String())
	}

	// Bare multisig and data carriers have no address.
	_, err := FromPkScript([]byte{0x6a, 0x01, 0x01}, &chaincfg.LiquidParams)
	require.True(t, errors.Is(err, ErrUnsupportedScript))
	_, err = FromPkScript(nil, &chaincfg.LiquidParams)
	require.True(t, errors.Is(err, ErrUnsupportedScript))
}

// TestDecodeErrors checks that malformed addresses are rejected.
func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	liquid := &chaincfg.LiquidParams
	addrs := testAddresses(t, liquid)
	hash := addrs[0].ScriptAddress()

	corrupt := func(s string) string {
		last := s[len(s)-1]
		repl := byte('q')
		if last == 'q' {
			repl = 'p'
		}
		return s[:len(s)-1] + string(repl)
	}

	data, err := bech32.ConvertBits(hash, 8, 5, true)
	require.NoError(t, err)
	wrongVariant, err := bech32.EncodeM(liquid.Bech32HRP,
		append([]byte{0}, data...))
	require.NoError(t, err)

	badKey := append(bytes.Repeat([]byte{0x05}, 33), hash...)
	data, err = bech32.ConvertBits(badKey, 8, 5, true)
	require.NoError(t, err)
	badBlinder, err := blech32.Encode(liquid.Blech32HRP,
		append([]byte{0}, data...), blech32.BLECH32)
	require.NoError(t, err)

	// A confidential version 0 program under the blech32m checksum.
	blinded := append(testBlinder.SerializeCompressed(), hash...)
	data, err = bech32.ConvertBits(blinded, 8, 5, true)
	require.NoError(t, err)
	wrongBlechVariant, err := blech32.Encode(liquid.Blech32HRP,
		append([]byte{0}, data...), blech32.BLECH32M)
	require.NoError(t, err)

	data, err = bech32.ConvertBits(hash[:10], 8, 5, true)
	require.NoError(t, err)
	shortBlinded, err := blech32.Encode(liquid.Blech32HRP,
		append([]byte{0}, data...), blech32.BLECH32)
	require.NoError(t, err)

	tests := []struct {
		name string
		addr string
		net  *chaincfg.Params
		code ErrorCode
	}{
		{"empty", "", nil, ErrInvalidAddress},
		{"garbage", "not an address", nil, ErrInvalidAddress},
		{"base58 checksum", corrupt(addrs[0].String()), nil,
			ErrInvalidAddress},
		{"bech32 checksum", corrupt(addrs[2].String()), nil,
			ErrInvalidAddress},
		{"blech32 checksum",
			corrupt(addrs[2].Confidential(testBlinder).String()), nil,
			ErrInvalidAddress},
		{"wrong checksum variant", wrongVariant, nil, ErrInvalidAddress},
		{"wrong blech32 variant", wrongBlechVariant, nil,
			ErrInvalidAddress},
		{"invalid blinding key", badBlinder, nil, ErrInvalidBlindingKey},
		{"short confidential payload", shortBlinded, nil,
			ErrInvalidAddress},
		{"wrong network", addrs[2].String(),
			&chaincfg.LiquidTestNetParams, ErrWrongNetwork},
		{"wrong network base58",
			addrs[1].Confidential(testBlinder).String(),
			&chaincfg.ElementsRegtestParams, ErrWrongNetwork},
	}

	for _, test := range tests {
		_, err := Decode(test.addr, test.net)
		require.Error(t, err, test.name)
		require.True(t, errors.Is(err, test.code), "%s: %v", test.name,
			err)

		var aerr Error
		require.True(t, errors.As(err, &aerr), test.name)
	}
}

// TestNewErrors checks the validation of address payloads.
func TestNewErrors(t *testing.T) {
	t.Parallel()

	net := &chaincfg.LiquidParams
	_, err := NewPubKeyHash(make([]byte, 19), net)
	require.True(t, errors.Is(err, ErrInvalidAddress))
	_, err = NewScriptHashFromHash(make([]byte, 32), net)
	require.True(t, errors.Is(err, ErrInvalidAddress))
	_, err = NewWitness(17, make([]byte, 32), net)
	require.True(t, errors.Is(err, ErrInvalidAddress))
	_, err = NewWitness(0, make([]byte, 21), net)
	require.True(t, errors.Is(err, ErrInvalidAddress))
	_, err = NewWitness(1, make([]byte, 41), net)
	require.True(t, errors.Is(err, ErrInvalidAddress))
	_, err = NewWitness(1, make([]byte, 1), net)
	require.True(t, errors.Is(err, ErrInvalidAddress))
}

// TestAddressSets checks the addresses derived from a key and a script.
func TestAddressSets(t *testing.T) {
	t.Parallel()

	net := &chaincfg.ElementsRegtestParams
	set, err := ForPubKey(testKey, nil, net)
	require.NoError(t, err)
	require.Equal(t, PubKeyHash, set.P2PKH.Type())
	require.Equal(t, WitnessPubKeyHash, set.P2WPKH.Type())
	require.Equal(t, ScriptHash, set.P2SHWPKH.Type())
	require.Nil(t, set.P2WSH)
	require.Equal(t, set.P2PKH.ScriptAddress(), set.P2WPKH.ScriptAddress())

	// The nested address hashes the witness program script.
	program, err := set.P2WPKH.PkScript()
	require.NoError(t, err)
	require.Equal(t, btcutil.Hash160(program),
		set.P2SHWPKH.ScriptAddress())

	script := []byte{0x51}
	set, err = ForScript(script, testBlinder, net)
	require.NoError(t, err)
	require.Nil(t, set.P2PKH)
	for _, a := range []*Address{set.P2SH, set.P2WSH, set.P2SHWSH} {
		require.True(t, a.IsConfidential())
	}
	require.Equal(t, btcutil.Hash160(script), set.P2SH.ScriptAddress())
	witnessHash := sha256.Sum256(script)
	require.Equal(t, witnessHash[:], set.P2WSH.ScriptAddress())
}

// TestTypeStringer tests the stringized output for the Type type.
func TestTypeStringer(t *testing.T) {
	t.Parallel()

	require.Equal(t, "p2pkh", PubKeyHash.String())
	require.Equal(t, "p2tr", Taproot.String())
	require.Equal(t, "Invalid", Type(200).String())
}

// TestErrorCodeStringer tests the stringized output for the ErrorCode type.
func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	require.Len(t, errorCodeStrings, int(numErrorCodes))
	for c := ErrorCode(0); c < numErrorCodes; c++ {
		require.Equal(t, errorCodeStrings[c], c.String())
	}
	require.Equal(t, "Unknown ErrorCode (65535)", ErrorCode(0xffff).String())
}
