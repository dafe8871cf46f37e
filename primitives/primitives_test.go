// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package primitives

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

// TestHash checks the adapter hash functions against known digests of the
// empty string.
func TestHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind HashKind
		want string
	}{
		{SHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{HASH256, "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456"},
		{RIPEMD160, "9c1185a5c5e9fc54612808977ee8f548b2258d31"},
		{HASH160, "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb"},
	}

	for _, test := range tests {
		got := Default.Hash(test.kind, nil)
		require.Equal(t, test.want, hex.EncodeToString(got),
			test.kind.String())
		require.Len(t, got, test.kind.DigestLen())
	}
}

// TestHashKindFromString ensures every kind round trips through its name.
func TestHashKindFromString(t *testing.T) {
	t.Parallel()

	for _, kind := range []HashKind{SHA256, HASH256, RIPEMD160, HASH160} {
		got, ok := HashKindFromString(kind.String())
		require.True(t, ok)
		require.Equal(t, kind, got)
	}
	_, ok := HashKindFromString("sha512")
	require.False(t, ok)
}

// TestVerifyKeyBytes exercises compressed key parsing.
func TestVerifyKeyBytes(t *testing.T) {
	t.Parallel()

	_, pub := btcec.PrivKeyFromBytes([]byte{0x01})
	compressed := pub.SerializeCompressed()

	key, err := Default.VerifyKeyBytes(compressed)
	require.NoError(t, err)
	require.True(t, key.IsEqual(pub))

	_, err = Default.VerifyKeyBytes(pub.SerializeUncompressed())
	require.True(t, errors.Is(err, ErrInvalidKey))

	bad := append([]byte{0x08}, compressed[1:]...)
	_, err = Default.VerifyKeyBytes(bad)
	require.True(t, errors.Is(err, ErrInvalidKey))

	require.NoError(t, VerifyNonceCommitment(compressed))
	require.Error(t, VerifyNonceCommitment(compressed[:32]))
}

// TestCommitmentLen checks the fixed commitment size.
func TestCommitmentLen(t *testing.T) {
	t.Parallel()

	for _, kind := range []CommitmentKind{
		ValueCommitment, AssetCommitment, NonceCommitment,
	} {
		require.Equal(t, 33, Default.CommitmentLen(kind))
	}
}
