// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package primitives

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/ripemd160"
)

// HashKind identifies one of the hash functions that can appear in a script
// hash lock.
type HashKind uint8

const (
	// SHA256 is a single round of SHA-256.
	SHA256 HashKind = iota

	// HASH256 is SHA-256 applied twice.
	HASH256

	// RIPEMD160 is a single round of RIPEMD-160.
	RIPEMD160

	// HASH160 is RIPEMD-160 applied to the SHA-256 of the input.
	HASH160
)

// hashKindStrings maps hash kinds to the names used in miniscript and policy
// expressions.
var hashKindStrings = map[HashKind]string{
	SHA256:    "sha256",
	HASH256:   "hash256",
	RIPEMD160: "ripemd160",
	HASH160:   "hash160",
}

// String returns the HashKind as the lower-case fragment name.
func (k HashKind) String() string {
	if s, ok := hashKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown HashKind (%d)", uint8(k))
}

// DigestLen returns the size in bytes of the digest produced by the hash.
func (k HashKind) DigestLen() int {
	switch k {
	case SHA256, HASH256:
		return 32
	default:
		return 20
	}
}

// HashKindFromString returns the hash kind for a fragment name such as
// "sha256".
func HashKindFromString(name string) (HashKind, bool) {
	for k, s := range hashKindStrings {
		if s == name {
			return k, true
		}
	}
	return 0, false
}

// CommitmentKind identifies the kind of confidential field a 33-byte
// commitment belongs to.
type CommitmentKind uint8

const (
	// ValueCommitment is a Pedersen commitment to an amount.
	ValueCommitment CommitmentKind = iota

	// AssetCommitment is a blinded asset generator.
	AssetCommitment

	// NonceCommitment is the sender's ECDH public key.
	NonceCommitment
)

// CommitmentSize is the serialized size of every confidential commitment,
// prefix byte included.
const CommitmentSize = 33

// ErrInvalidKey is returned when bytes do not describe a valid compressed
// public key.
var ErrInvalidKey = errors.New("invalid public key")

// Adapter is the narrow set of cryptographic operations the codec, analyzer
// and compiler rely on.  Implementations must be stateless and safe for
// concurrent use.
type Adapter interface {
	// VerifyKeyBytes parses a serialized compressed public key.
	VerifyKeyBytes(b []byte) (*btcec.PublicKey, error)

	// Hash returns the digest of preimage under the given hash kind.
	Hash(kind HashKind, preimage []byte) []byte

	// CommitmentLen returns the serialized length of a commitment of the
	// given kind.
	CommitmentLen(kind CommitmentKind) int
}

// Secp256k1 is the default Adapter backed by btcec and the standard hash
// functions.
type Secp256k1 struct{}

// Default is the adapter used when callers do not supply their own.
var Default Adapter = Secp256k1{}

// A compile-time assertion that Secp256k1 implements Adapter.
var _ Adapter = Secp256k1{}

// VerifyKeyBytes parses b as a 33-byte compressed secp256k1 public key.
// Uncompressed keys are rejected since they are not allowed in witness
// scripts.
func (Secp256k1) VerifyKeyBytes(b []byte) (*btcec.PublicKey, error) {
	if len(b) != btcec.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidKey,
			len(b), btcec.PubKeyBytesLenCompressed)
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return nil, fmt.Errorf("%w: prefix 0x%02x is not a compressed "+
			"key prefix", ErrInvalidKey, b[0])
	}
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// Hash returns the digest of preimage.
func (Secp256k1) Hash(kind HashKind, preimage []byte) []byte {
	switch kind {
	case SHA256:
		h := sha256.Sum256(preimage)
		return h[:]

	case HASH256:
		return chainhash.DoubleHashB(preimage)

	case RIPEMD160:
		h := ripemd160.New()
		h.Write(preimage)
		return h.Sum(nil)

	default:
		return btcutil.Hash160(preimage)
	}
}

// CommitmentLen returns the length of a confidential commitment.  All three
// kinds share the 33-byte prefixed point encoding.
func (Secp256k1) CommitmentLen(CommitmentKind) int {
	return CommitmentSize
}

// VerifyNonceCommitment checks that a confidential nonce carries a point on
// the curve.  Unlike value and asset commitments, which use their own prefix
// bytes, nonces are ordinary compressed public keys.
func VerifyNonceCommitment(b []byte) error {
	if len(b) != CommitmentSize {
		return fmt.Errorf("%w: nonce length %d", ErrInvalidKey, len(b))
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return nil
}
