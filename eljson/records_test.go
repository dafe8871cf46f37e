// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/address"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/descriptor"
	"github.com/btcsuite/elementsutil/policy"
	"github.com/btcsuite/elementsutil/txscript"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
	"github.com/btcsuite/elementsutil/wire"
	"github.com/stretchr/testify/require"
)

func testKeyHex(name string) string {
	return fmt.Sprintf("%x", testPubKey(name).SerializeCompressed())
}

// TestConfidentialRecords converts single confidential fields.
func TestConfidentialRecords(t *testing.T) {
	t.Parallel()

	value := NewConfidentialValueInfo(&wire.ConfidentialValue{
		Type: wire.ConfidentialNull,
	})
	require.Equal(t, TypeNull, value.Type)
	v, err := value.ToValue()
	require.NoError(t, err)
	require.Equal(t, wire.ConfidentialNull, v.Type)

	explicit := wire.NewExplicitValue(42)
	v, err = NewConfidentialValueInfo(&explicit).ToValue()
	require.NoError(t, err)
	require.Equal(t, explicit, v)

	_, err = (&ConfidentialValueInfo{}).ToValue()
	requireFieldError(t, err, ErrMissingField, "type")
	_, err = (&ConfidentialValueInfo{
		Type:       TypeNull,
		Commitment: HexBytes{0x08},
	}).ToValue()
	requireFieldError(t, err, ErrTypeMismatch, "")

	asset := wire.NewExplicitAsset(chaincfg.LiquidParams.PolicyAsset)
	info := NewConfidentialAssetInfo(&asset, &chaincfg.LiquidParams)
	require.Equal(t, "liquid_bitcoin", info.Label)
	a, err := info.ToAsset()
	require.NoError(t, err)
	require.Equal(t, asset, a)

	_, err = (&ConfidentialAssetInfo{
		Type:       TypeConfidential,
		Asset:      chaincfg.LiquidParams.PolicyAsset.String(),
		Commitment: append(HexBytes{0x0a}, make([]byte, 32)...),
	}).ToAsset()
	requireFieldError(t, err, ErrTypeMismatch, "asset")

	nonce := wire.ConfidentialNonce{
		Type:     wire.ConfidentialExplicit,
		Explicit: chainhash.Hash{0x07},
	}
	n, err := NewConfidentialNonceInfo(&nonce).ToNonce()
	require.NoError(t, err)
	require.Equal(t, nonce, n)

	_, err = (&ConfidentialNonceInfo{Type: TypeConfidential}).ToNonce()
	requireFieldError(t, err, ErrMissingField, "commitment")
}

// TestScriptInfo checks the description of standalone scripts.
func TestScriptInfo(t *testing.T) {
	t.Parallel()

	net := &chaincfg.LiquidParams
	script := append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0x11}, 20)...)
	info := NewScriptInfo(script, net)
	require.Equal(t, "witness_v0_keyhash", info.Type)
	require.Contains(t, info.Address, "ex1")
	require.NotEmpty(t, info.P2SH)
	require.Contains(t, info.P2WSH, "ex1")
	require.Nil(t, info.Pegout)

	set, err := address.ForScript(script, nil, net)
	require.NoError(t, err)
	require.Equal(t, set.P2WSH.String(), info.P2WSH)

	parent := append([]byte{0x76, 0xa9, 0x14},
		append(bytes.Repeat([]byte{0x22}, 20), 0x88, 0xac)...)
	pegout, err := txscript.PegoutScript(net.ParentParams.GenesisHash,
		parent, []byte{0x01, 0x02})
	require.NoError(t, err)
	info = NewScriptInfo(pegout, net)
	require.Equal(t, "pegout", info.Type)
	require.NotNil(t, info.Pegout)
	require.Nil(t, info.Pegout.Value)
	require.Equal(t, net.ParentParams.GenesisHash.String(),
		info.Pegout.GenesisHash)
	require.Equal(t, []HexBytes{{0x01, 0x02}}, info.Pegout.ExtraData)

	parentAddr, err := btcutil.NewAddressPubKeyHash(
		bytes.Repeat([]byte{0x22}, 20), net.ParentParams)
	require.NoError(t, err)
	require.Equal(t, parentAddr.EncodeAddress(),
		info.Pegout.ScriptPubKey.Address)

	got, err := info.ToScript()
	require.NoError(t, err)
	require.Equal(t, pegout, got)

	_, err = (&ScriptInfo{}).ToScript()
	requireFieldError(t, err, ErrMissingField, "hex")
}

// TestAddressInfo checks the description of plain and confidential
// addresses.
func TestAddressInfo(t *testing.T) {
	t.Parallel()

	net := &chaincfg.LiquidParams
	hash := btcutil.Hash160(testPubKey("alice").SerializeCompressed())
	plain, err := address.NewWitness(0, hash, net)
	require.NoError(t, err)

	info, err := NewAddressInfo(plain)
	require.NoError(t, err)
	require.Equal(t, "liquidv1", info.Network)
	require.Equal(t, "p2wpkh", info.Type)
	require.Equal(t, HexBytes(hash), info.WitnessPubKeyHash)
	require.EqualValues(t, 0, *info.WitnessProgramVersion)
	require.Equal(t, "witness_v0_keyhash", info.ScriptPubKey.Type)
	require.Empty(t, info.BlindingPubKey)
	require.Empty(t, info.Unconfidential)

	blinder := testPubKey("blinder")
	info, err = NewAddressInfo(plain.Confidential(blinder))
	require.NoError(t, err)
	require.Equal(t, HexBytes(blinder.SerializeCompressed()),
		info.BlindingPubKey)
	require.Equal(t, plain.String(), info.Unconfidential)

	legacy, err := address.NewPubKeyHash(hash, net)
	require.NoError(t, err)
	info, err = NewAddressInfo(legacy)
	require.NoError(t, err)
	require.Equal(t, "p2pkh", info.Type)
	require.Equal(t, HexBytes(hash), info.PubKeyHash)
	require.Nil(t, info.WitnessProgramVersion)

	set, err := address.ForPubKey(testPubKey("alice"), nil, net)
	require.NoError(t, err)
	addrs := NewAddressesInfo(set)
	require.Equal(t, legacy.String(), addrs.P2PKH)
	require.Equal(t, plain.String(), addrs.P2WPKH)
	require.NotEmpty(t, addrs.P2SHWPKH)
	require.Empty(t, addrs.P2WSH)
}

// TestMiniscriptInfo checks the analysis record of a fragment tree.
func TestMiniscriptInfo(t *testing.T) {
	t.Parallel()

	text := fmt.Sprintf("and_v(v:pk(%s),older(144))", testKeyHex("alice"))
	ast, err := miniscript.Parse(text)
	require.NoError(t, err)

	info, err := NewMiniscriptInfo(ast, nil)
	require.NoError(t, err)
	require.Equal(t, text, info.Miniscript)
	require.Equal(t, "segwitv0", info.Context)
	require.True(t, info.Sane, info.Insane)
	require.True(t, info.NonMalleable)
	require.True(t, info.NeedsSignature)
	require.Equal(t, len(info.Script.Hex), info.ScriptSize)
	require.NotNil(t, info.MaxSatisfactionSize)
	require.Equal(t, []HexBytes{testPubKey("alice").SerializeCompressed()},
		info.Keys)
	require.Equal(t, fmt.Sprintf("thresh(2,older(144),pk(%s))",
		testKeyHex("alice")), info.Policy)

	// Keys are collected from the whole tree, not just the root.
	text = fmt.Sprintf("or_d(pk(%s),and_v(v:pk(%s),older(144)))",
		testKeyHex("alice"), testKeyHex("bob"))
	ast, err = miniscript.Parse(text)
	require.NoError(t, err)
	info, err = NewMiniscriptInfo(ast, nil)
	require.NoError(t, err)
	require.Equal(t, []HexBytes{
		testPubKey("alice").SerializeCompressed(),
		testPubKey("bob").SerializeCompressed(),
	}, info.Keys)

	// A bare time lock needs no signature and is not sane.
	ast, err = miniscript.Parse("older(144)")
	require.NoError(t, err)
	info, err = NewMiniscriptInfo(ast, miniscript.Legacy)
	require.NoError(t, err)
	require.False(t, info.Sane)
	require.NotEmpty(t, info.Insane)
	require.False(t, info.NeedsSignature)
}

// TestPolicyInfo checks the compilation record and its satisfaction plan.
func TestPolicyInfo(t *testing.T) {
	t.Parallel()

	preimage := []byte("preimage")
	hash := sha256.Sum256(preimage)
	text := fmt.Sprintf("and(pk(%s),sha256(%x))", testKeyHex("alice"),
		hash[:])
	p, err := policy.Parse(text)
	require.NoError(t, err)
	result, err := policy.Compile(p, nil)
	require.NoError(t, err)

	net := &chaincfg.ElementsRegtestParams
	info, err := NewPolicyInfo(p, result, nil, net)
	require.NoError(t, err)
	require.Equal(t, p.String(), info.Policy)
	require.Equal(t, p.Semantic().String(), info.Semantic)
	require.Equal(t, result.Fragment.String(), info.Miniscript.Miniscript)
	require.Equal(t, result.SatisfactionCost, info.SatisfactionCost)

	set, err := address.ForScript(result.Script, nil, net)
	require.NoError(t, err)
	require.Equal(t, set.P2WSH.String(), info.P2WSH)
	require.Equal(t, set.P2SHWSH.String(), info.P2SHWSH)

	require.ElementsMatch(t, []string{
		fmt.Sprintf("<sig(%s)>", testKeyHex("alice")),
		fmt.Sprintf("<sha256_preimage(%x)>", hash[:]),
	}, info.Satisfaction)

	info, err = NewPolicyInfo(p, result, nil, nil)
	require.NoError(t, err)
	require.Empty(t, info.P2WSH)
}

// TestDescriptorInfo checks the record of key and script descriptors.
func TestDescriptorInfo(t *testing.T) {
	t.Parallel()

	net := &chaincfg.LiquidTestNetParams
	d, err := descriptor.Parse(fmt.Sprintf("wpkh(%s)", testKeyHex("alice")))
	require.NoError(t, err)
	info, err := NewDescriptorInfo(d, net, nil)
	require.NoError(t, err)
	require.Equal(t, "wpkh", info.Type)
	require.Equal(t, d.String(), info.Descriptor)
	require.Equal(t, info.ScriptPubKey.Address, info.Address)
	require.Nil(t, info.WitnessScript)
	require.Nil(t, info.RedeemScript)
	require.Nil(t, info.Miniscript)

	d, err = descriptor.Parse(fmt.Sprintf("sh(wsh(pk(%s)))",
		testKeyHex("alice")))
	require.NoError(t, err)
	blinder := testPubKey("blinder")
	info, err = NewDescriptorInfo(d, net, blinder)
	require.NoError(t, err)
	require.Equal(t, "sh(wsh)", info.Type)
	require.NotNil(t, info.WitnessScript)
	require.NotNil(t, info.RedeemScript)
	require.NotNil(t, info.Miniscript)

	addr, err := address.Decode(info.Address, net)
	require.NoError(t, err)
	require.True(t, addr.IsConfidential())
	require.Equal(t, address.ScriptHash, addr.Type())
	require.Equal(t, info.ScriptPubKey.Address, addr.Unconfidential().String())
}
