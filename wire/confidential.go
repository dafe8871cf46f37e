// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/primitives"
)

// ConfidentialType describes which of the three encodings a confidential
// field uses.
type ConfidentialType uint8

const (
	// ConfidentialNull is the single zero byte encoding.
	ConfidentialNull ConfidentialType = iota

	// ConfidentialExplicit is the unblinded, plaintext encoding.
	ConfidentialExplicit

	// ConfidentialCommitment is the blinded 33-byte commitment encoding.
	ConfidentialCommitment
)

// Map of ConfidentialType values back to their names for pretty printing.
var confidentialTypeStrings = map[ConfidentialType]string{
	ConfidentialNull:       "null",
	ConfidentialExplicit:   "explicit",
	ConfidentialCommitment: "confidential",
}

// String returns the ConfidentialType as a human-readable name.
func (t ConfidentialType) String() string {
	if s, ok := confidentialTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ConfidentialType (%d)", uint8(t))
}

const (
	// prefixNull marks a null confidential field.
	prefixNull = 0x00

	// prefixExplicit marks an explicit confidential field.
	prefixExplicit = 0x01

	// explicitValueSize is the serialized size of an explicit value: the
	// prefix followed by a big endian uint64.
	explicitValueSize = 9

	// explicitAssetSize is the serialized size of an explicit asset id or
	// nonce: the prefix followed by 32 bytes.
	explicitAssetSize = 33
)

// ConfidentialValue is an amount that is either null, explicit or blinded
// behind a Pedersen commitment.
type ConfidentialValue struct {
	Type ConfidentialType

	// Value is the plaintext amount when Type is ConfidentialExplicit.
	Value uint64

	// Commitment holds the 33-byte commitment, prefix included, when Type
	// is ConfidentialCommitment.
	Commitment [primitives.CommitmentSize]byte
}

// NewExplicitValue returns an unblinded value.
func NewExplicitValue(value uint64) ConfidentialValue {
	return ConfidentialValue{Type: ConfidentialExplicit, Value: value}
}

// NewValueCommitment returns a blinded value from its serialized commitment.
func NewValueCommitment(b []byte) (ConfidentialValue, error) {
	v := ConfidentialValue{Type: ConfidentialCommitment}
	if err := checkCommitment(b, isValueCommitmentPrefix); err != nil {
		return v, err
	}
	copy(v.Commitment[:], b)
	return v, nil
}

// IsExplicit returns whether the value is unblinded.
func (v *ConfidentialValue) IsExplicit() bool {
	return v.Type == ConfidentialExplicit
}

// SerializeSize returns the number of bytes it would take to serialize the
// value.
func (v *ConfidentialValue) SerializeSize() int {
	switch v.Type {
	case ConfidentialExplicit:
		return explicitValueSize
	case ConfidentialCommitment:
		return primitives.CommitmentSize
	default:
		return 1
	}
}

// Serialize encodes the value to w.
func (v *ConfidentialValue) Serialize(w io.Writer) error {
	switch v.Type {
	case ConfidentialExplicit:
		var b [explicitValueSize]byte
		b[0] = prefixExplicit
		bigEndian.PutUint64(b[1:], v.Value)
		_, err := w.Write(b[:])
		return err

	case ConfidentialCommitment:
		_, err := w.Write(v.Commitment[:])
		return err

	default:
		_, err := w.Write([]byte{prefixNull})
		return err
	}
}

// Deserialize decodes a value from r.
func (v *ConfidentialValue) Deserialize(r io.Reader) error {
	return readConfidentialValue(newOffsetReader(r), "value", v)
}

// FromBytes decodes a value that must span all of b.
func (v *ConfidentialValue) FromBytes(b []byte) error {
	return decodeExact(b, "value", v.Deserialize)
}

// ConfidentialAsset is an asset id that is either null, explicit or blinded
// behind a generator commitment.
type ConfidentialAsset struct {
	Type ConfidentialType

	// ID is the asset id when Type is ConfidentialExplicit.
	ID chainhash.Hash

	// Commitment holds the 33-byte generator, prefix included, when Type
	// is ConfidentialCommitment.
	Commitment [primitives.CommitmentSize]byte
}

// NewExplicitAsset returns an unblinded asset.
func NewExplicitAsset(id chainhash.Hash) ConfidentialAsset {
	return ConfidentialAsset{Type: ConfidentialExplicit, ID: id}
}

// NewAssetCommitment returns a blinded asset from its serialized generator.
func NewAssetCommitment(b []byte) (ConfidentialAsset, error) {
	a := ConfidentialAsset{Type: ConfidentialCommitment}
	if err := checkCommitment(b, isAssetCommitmentPrefix); err != nil {
		return a, err
	}
	copy(a.Commitment[:], b)
	return a, nil
}

// IsExplicit returns whether the asset is unblinded.
func (a *ConfidentialAsset) IsExplicit() bool {
	return a.Type == ConfidentialExplicit
}

// SerializeSize returns the number of bytes it would take to serialize the
// asset.
func (a *ConfidentialAsset) SerializeSize() int {
	switch a.Type {
	case ConfidentialExplicit:
		return explicitAssetSize
	case ConfidentialCommitment:
		return primitives.CommitmentSize
	default:
		return 1
	}
}

// Serialize encodes the asset to w.
func (a *ConfidentialAsset) Serialize(w io.Writer) error {
	switch a.Type {
	case ConfidentialExplicit:
		if _, err := w.Write([]byte{prefixExplicit}); err != nil {
			return err
		}
		_, err := w.Write(a.ID[:])
		return err

	case ConfidentialCommitment:
		_, err := w.Write(a.Commitment[:])
		return err

	default:
		_, err := w.Write([]byte{prefixNull})
		return err
	}
}

// Deserialize decodes an asset from r.
func (a *ConfidentialAsset) Deserialize(r io.Reader) error {
	return readConfidentialAsset(newOffsetReader(r), "asset", a)
}

// FromBytes decodes a asset that must span all of b.
func (a *ConfidentialAsset) FromBytes(b []byte) error {
	return decodeExact(b, "asset", a.Deserialize)
}

// ConfidentialNonce is either null, an explicit 32-byte nonce or the
// sender's ECDH public key used to rewind the range proof.
type ConfidentialNonce struct {
	Type ConfidentialType

	// Explicit is the nonce when Type is ConfidentialExplicit.
	Explicit [32]byte

	// Commitment holds the compressed public key when Type is
	// ConfidentialCommitment.
	Commitment [primitives.CommitmentSize]byte
}

// NewNonceCommitment returns a nonce carrying an ECDH public key.
func NewNonceCommitment(b []byte) (ConfidentialNonce, error) {
	n := ConfidentialNonce{Type: ConfidentialCommitment}
	if err := checkCommitment(b, isNonceCommitmentPrefix); err != nil {
		return n, err
	}
	copy(n.Commitment[:], b)
	return n, nil
}

// SerializeSize returns the number of bytes it would take to serialize the
// nonce.
func (n *ConfidentialNonce) SerializeSize() int {
	switch n.Type {
	case ConfidentialExplicit:
		return explicitAssetSize
	case ConfidentialCommitment:
		return primitives.CommitmentSize
	default:
		return 1
	}
}

// Serialize encodes the nonce to w.
func (n *ConfidentialNonce) Serialize(w io.Writer) error {
	switch n.Type {
	case ConfidentialExplicit:
		if _, err := w.Write([]byte{prefixExplicit}); err != nil {
			return err
		}
		_, err := w.Write(n.Explicit[:])
		return err

	case ConfidentialCommitment:
		_, err := w.Write(n.Commitment[:])
		return err

	default:
		_, err := w.Write([]byte{prefixNull})
		return err
	}
}

// Deserialize decodes a nonce from r.
func (n *ConfidentialNonce) Deserialize(r io.Reader) error {
	return readConfidentialNonce(newOffsetReader(r), "nonce", n)
}

// FromBytes decodes a nonce that must span all of b.
func (n *ConfidentialNonce) FromBytes(b []byte) error {
	return decodeExact(b, "nonce", n.Deserialize)
}

func isValueCommitmentPrefix(b byte) bool { return b == 0x08 || b == 0x09 }
func isAssetCommitmentPrefix(b byte) bool { return b == 0x0a || b == 0x0b }
func isNonceCommitmentPrefix(b byte) bool { return b == 0x02 || b == 0x03 }

// checkCommitment validates the length and prefix byte of a commitment.
func checkCommitment(b []byte, validPrefix func(byte) bool) error {
	if len(b) != primitives.CommitmentSize {
		return fmt.Errorf("commitment must be %d bytes, got %d",
			primitives.CommitmentSize, len(b))
	}
	if !validPrefix(b[0]) {
		return fmt.Errorf("invalid commitment prefix 0x%02x", b[0])
	}
	return nil
}

// readCommitment reads the 32 bytes following an already consumed commitment
// prefix.
func readCommitment(r *offsetReader, field string, prefix byte,
	dst *[primitives.CommitmentSize]byte) error {

	dst[0] = prefix
	return readFull(r, field, dst[1:])
}

// unknownPrefix returns the error for an unrecognized confidential prefix.
func unknownPrefix(offset int, field string, prefix byte) error {
	str := fmt.Sprintf("unknown prefix 0x%02x", prefix)
	return decodeError(ErrMalformedField, offset, field, str)
}

func readConfidentialValue(r *offsetReader, field string, v *ConfidentialValue) error {
	start := r.offset
	prefix, err := readUint8(r, field)
	if err != nil {
		return err
	}

	switch {
	case prefix == prefixNull:
		*v = ConfidentialValue{Type: ConfidentialNull}

	case prefix == prefixExplicit:
		var b [8]byte
		if err := readFull(r, field, b[:]); err != nil {
			return err
		}
		*v = NewExplicitValue(bigEndian.Uint64(b[:]))

	case isValueCommitmentPrefix(prefix):
		*v = ConfidentialValue{Type: ConfidentialCommitment}
		return readCommitment(r, field, prefix, &v.Commitment)

	default:
		return unknownPrefix(start, field, prefix)
	}
	return nil
}

func readConfidentialAsset(r *offsetReader, field string, a *ConfidentialAsset) error {
	start := r.offset
	prefix, err := readUint8(r, field)
	if err != nil {
		return err
	}

	switch {
	case prefix == prefixNull:
		*a = ConfidentialAsset{Type: ConfidentialNull}

	case prefix == prefixExplicit:
		*a = ConfidentialAsset{Type: ConfidentialExplicit}
		return readHash(r, field, &a.ID)

	case isAssetCommitmentPrefix(prefix):
		*a = ConfidentialAsset{Type: ConfidentialCommitment}
		return readCommitment(r, field, prefix, &a.Commitment)

	default:
		return unknownPrefix(start, field, prefix)
	}
	return nil
}

func readConfidentialNonce(r *offsetReader, field string, n *ConfidentialNonce) error {
	start := r.offset
	prefix, err := readUint8(r, field)
	if err != nil {
		return err
	}

	switch {
	case prefix == prefixNull:
		*n = ConfidentialNonce{Type: ConfidentialNull}

	case prefix == prefixExplicit:
		*n = ConfidentialNonce{Type: ConfidentialExplicit}
		return readFull(r, field, n.Explicit[:])

	case isNonceCommitmentPrefix(prefix):
		*n = ConfidentialNonce{Type: ConfidentialCommitment}
		return readCommitment(r, field, prefix, &n.Commitment)

	default:
		return unknownPrefix(start, field, prefix)
	}
	return nil
}
