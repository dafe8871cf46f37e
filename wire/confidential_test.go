// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// TestConfidentialFromBytes decodes standalone confidential fields and
// ensures they must span their input exactly.
func TestConfidentialFromBytes(t *testing.T) {
	t.Parallel()

	var value ConfidentialValue
	require.NoError(t, value.FromBytes([]byte{0x00}))
	require.Equal(t, ConfidentialNull, value.Type)

	explicit := NewExplicitValue(100_000_000)
	var buf bytes.Buffer
	require.NoError(t, explicit.Serialize(&buf))
	require.Equal(t, explicitValueSize, buf.Len())
	require.NoError(t, value.FromBytes(buf.Bytes()))
	require.Equal(t, explicit, value)

	err := value.FromBytes(append(buf.Bytes(), 0x00))
	requireDecodeError(t, err, ErrTrailingBytes, "value", explicitValueSize)

	commitment := append([]byte{0x08}, bytes.Repeat([]byte{0x55}, 31)...)
	err = value.FromBytes(commitment)
	requireDecodeError(t, err, ErrTruncatedInput, "value", 1)

	err = value.FromBytes([]byte{0x0a})
	requireDecodeError(t, err, ErrMalformedField, "value", 0)

	var asset ConfidentialAsset
	id := chainhash.Hash{0x6d, 0x52}
	buf.Reset()
	want := NewExplicitAsset(id)
	require.NoError(t, want.Serialize(&buf))
	require.NoError(t, asset.FromBytes(buf.Bytes()))
	require.Equal(t, want, asset)

	var nonce ConfidentialNonce
	key := append([]byte{0x02}, bytes.Repeat([]byte{0x11}, 32)...)
	require.NoError(t, nonce.FromBytes(key))
	require.Equal(t, ConfidentialCommitment, nonce.Type)
	require.Equal(t, key, nonce.Commitment[:])
}
