// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParamsForName ensures every network is reachable by its name and
// aliases.
func TestParamsForName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want *Params
	}{
		{"liquidv1", &LiquidParams},
		{"liquid", &LiquidParams},
		{"LiquidTestnet", &LiquidTestNetParams},
		{"testnet", &LiquidTestNetParams},
		{"elementsregtest", &ElementsRegtestParams},
		{"regtest", &ElementsRegtestParams},
	}
	for _, test := range tests {
		got, err := ParamsForName(test.name)
		require.NoError(t, err, test.name)
		require.Same(t, test.want, got, test.name)
	}

	_, err := ParamsForName("bitcoin")
	require.ErrorIs(t, err, ErrUnknownNet)
}

// TestPrefixLookups checks the reverse lookups used by address decoding.
func TestPrefixLookups(t *testing.T) {
	t.Parallel()

	params, blinded, err := ParamsForBech32HRP("LQ")
	require.NoError(t, err)
	require.True(t, blinded)
	require.Same(t, &LiquidParams, params)

	params, blinded, err = ParamsForBech32HRP("ert")
	require.NoError(t, err)
	require.False(t, blinded)
	require.Same(t, &ElementsRegtestParams, params)

	params, err = ParamsForBase58Prefix(39)
	require.NoError(t, err)
	require.Same(t, &LiquidParams, params)

	_, err = ParamsForBase58Prefix(0)
	require.ErrorIs(t, err, ErrUnknownNet)
}

// TestAssetLabel checks that the policy asset is labeled.
func TestAssetLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "liquid_bitcoin",
		LiquidParams.AssetLabel(LiquidParams.PolicyAsset))
	require.Equal(t, "6f0279e9ed041c3d710a9f57d0c02928416460c4b722ae3457a11eec381c526d",
		LiquidParams.PolicyAsset.String())
	require.Empty(t, LiquidParams.AssetLabel(ElementsRegtestParams.PolicyAsset))
}
