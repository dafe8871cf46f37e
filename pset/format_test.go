// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"testing"

	btctxscript "github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func TestSigHashNames(t *testing.T) {
	for _, s := range sigHashNames {
		require.Equal(t, s.name, SigHashString(s.sigHash))
		got, err := ParseSigHash(s.name)
		require.NoError(t, err)
		require.Equal(t, s.sigHash, got)
	}

	got, err := ParseSigHash("single|anyonecanpay")
	require.NoError(t, err)
	require.Equal(t, btctxscript.SigHashSingle|btctxscript.SigHashAnyOneCanPay,
		got)

	require.Equal(t, "0x4", SigHashString(4))
	_, err = ParseSigHash("DEFAULT")
	require.Error(t, err)
}

func TestPaths(t *testing.T) {
	tests := []struct {
		in   string
		want []uint32
		str  string
	}{
		{"m", []uint32{}, "m"},
		{"m/84'/1'/0'/0/5", []uint32{0x80000054, 0x80000001, 0x80000000, 0, 5},
			"m/84'/1'/0'/0/5"},
		{"0h/7", []uint32{0x80000000, 7}, "m/0'/7"},
	}
	for _, test := range tests {
		path, err := ParsePath(test.in)
		require.NoError(t, err, test.in)
		require.Equal(t, test.want, path, test.in)
		require.Equal(t, test.str, FormatPath(path), test.in)
	}

	for _, bad := range []string{"m/", "m/x", "m/2147483648", "m/1''"} {
		_, err := ParsePath(bad)
		require.Error(t, err, bad)
	}
}
