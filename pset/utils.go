// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcutil/psbt"
	btctxscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/elementsutil/primitives"
	"github.com/btcsuite/elementsutil/wire"
)

// proprietaryPrefix identifies the Elements proprietary keys.
var proprietaryPrefix = []byte("pset")

// serializeKVpair writes out a kv pair using a varbyte prefix for each.
func serializeKVpair(w io.Writer, key []byte, value []byte) error {
	if err := wire.WriteVarBytes(w, key); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, value)
}

// serializeKVPairWithType writes out to the passed writer a type coupled with
// a key.
func serializeKVPairWithType(w io.Writer, kt uint8, keydata []byte,
	value []byte) error {

	// The final key to be written is: {type} || {keyData}
	serializedKey := append([]byte{kt}, keydata...)
	return serializeKVpair(w, serializedKey, value)
}

// serializeProprietary writes an Elements proprietary entry of the given
// subtype.
func serializeProprietary(w io.Writer, subtype byte, keydata []byte,
	value []byte) error {

	return serializeKVPairWithType(w, proprietaryType,
		proprietaryKey(subtype, keydata), value)
}

// proprietaryKey returns the key data following the proprietary key type:
// the length-prefixed "pset" identifier, the subtype and any key data.
func proprietaryKey(subtype byte, keydata []byte) []byte {
	key := make([]byte, 0, len(proprietaryPrefix)+2+len(keydata))
	key = append(key, byte(len(proprietaryPrefix)))
	key = append(key, proprietaryPrefix...)
	key = append(key, subtype)
	return append(key, keydata...)
}

// parseProprietary splits the key data of a proprietary key.  ok is false
// for keys of other proprietary namespaces, which are kept as unknowns.
func parseProprietary(keyData []byte) (subtype byte, rest []byte, ok bool) {
	n := len(proprietaryPrefix)
	if len(keyData) < n+2 || int(keyData[0]) != n ||
		!bytes.Equal(keyData[1:n+1], proprietaryPrefix) {

		return 0, nil, false
	}
	// Subtypes are compact sizes; the ones defined fit a single byte.
	if keyData[n+1] >= 0xfd {
		return 0, nil, false
	}
	return keyData[n+1], keyData[n+2:], true
}

// getKey retrieves a single key - both the key type and the keydata (if
// present) from the stream and returns the key type as an integer, or -1 if
// the key was of zero length, which marks the end of a map.
func getKey(r io.Reader) (int, []byte, error) {
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return -1, nil, psetError(ErrInvalidFormat, "reading key "+
			"length: %v", err)
	}
	if count == 0 {
		return -1, nil, nil
	}
	if count > psbt.MaxPsbtKeyLength {
		return -1, nil, psetError(ErrInvalidKeyData, "key length %d "+
			"exceeds the maximum of %d", count, psbt.MaxPsbtKeyLength)
	}

	keyTypeAndData := make([]byte, count)
	if _, err := io.ReadFull(r, keyTypeAndData); err != nil {
		return -1, nil, psetError(ErrInvalidFormat, "reading key: %v",
			err)
	}

	keyType := int(keyTypeAndData[0])
	if len(keyTypeAndData) == 1 {
		return keyType, nil, nil
	}
	return keyType, keyTypeAndData[1:], nil
}

// readValue reads the value following a key.
func readValue(r io.Reader) ([]byte, error) {
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, psetError(ErrInvalidFormat, "reading value "+
			"length: %v", err)
	}
	if count > psbt.MaxPsbtValueLength {
		return nil, psetError(ErrInvalidFormat, "value length %d "+
			"exceeds the maximum of %d", count,
			psbt.MaxPsbtValueLength)
	}
	value := make([]byte, count)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, psetError(ErrInvalidFormat, "reading value: %v",
			err)
	}
	return value, nil
}

// keyTracker rejects a key that appears twice in the same map.
type keyTracker map[string]struct{}

func (k keyTracker) add(keyType int, keyData []byte) error {
	key := string(append([]byte{byte(keyType)}, keyData...))
	if _, ok := k[key]; ok {
		return psetError(ErrDuplicateKey, "duplicate key %x",
			[]byte(key))
	}
	k[key] = struct{}{}
	return nil
}

// noKeyData fails when a key type that takes no key data carries some.
func noKeyData(field string, keyData []byte) error {
	if keyData != nil {
		return psetError(ErrInvalidKeyData, "%s key carries %d bytes "+
			"of key data", field, len(keyData))
	}
	return nil
}

// fixedValue fails unless value has exactly size bytes.
func fixedValue(field string, value []byte, size int) error {
	if len(value) != size {
		return psetError(ErrInvalidFormat, "%s has %d bytes, want %d",
			field, len(value), size)
	}
	return nil
}

func readUint32(field string, value []byte) (uint32, error) {
	if err := fixedValue(field, value, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(value), nil
}

func readUint64(field string, value []byte) (uint64, error) {
	if err := fixedValue(field, value, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(value), nil
}

func read32(field string, value []byte) (*[32]byte, error) {
	if err := fixedValue(field, value, 32); err != nil {
		return nil, err
	}
	var b [32]byte
	copy(b[:], value)
	return &b, nil
}

func uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// readCompactSize reads a value holding a single compact size integer.
func readCompactSize(field string, value []byte) (uint64, error) {
	r := bytes.NewReader(value)
	n, err := wire.ReadVarInt(r)
	if err != nil || r.Len() != 0 {
		return 0, psetError(ErrInvalidFormat, "%s is not a compact "+
			"size integer", field)
	}
	return n, nil
}

func compactSizeBytes(v uint64) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, v)
	return buf.Bytes()
}

// checkPubKey fails unless key is a valid compressed public key.
func checkPubKey(field string, key []byte) error {
	if _, err := primitives.Default.VerifyKeyBytes(key); err != nil {
		return psetError(ErrInvalidKeyData, "%s: %v", field, err)
	}
	return nil
}

// checkSigHashFlags checks that the sighash byte of sig matches the one
// requested by the input.  If no SighashType field exists, it is assumed to
// be SIGHASH_ALL.
func checkSigHashFlags(sig []byte, input *Input) bool {
	expected := btctxscript.SigHashAll
	if input.SighashType != 0 {
		expected = input.SighashType
	}
	return len(sig) > 0 &&
		expected == btctxscript.SigHashType(sig[len(sig)-1])
}

// serializeWitness encodes a witness stack as a count followed by the
// length-prefixed items.
func serializeWitness(witness wire.TxWitness) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, uint64(len(witness)))
	for _, item := range witness {
		_ = wire.WriteVarBytes(&buf, item)
	}
	return buf.Bytes()
}

// parseWitness decodes a witness stack that must span all of value.
func parseWitness(field string, value []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(value)
	count, err := wire.ReadVarInt(r)
	if err != nil || count > uint64(r.Len()) {
		return nil, psetError(ErrInvalidFormat, "%s has an invalid "+
			"item count", field)
	}
	witness := make(wire.TxWitness, 0, count)
	for i := uint64(0); i < count; i++ {
		size, err := wire.ReadVarInt(r)
		if err != nil || size > uint64(r.Len()) {
			return nil, psetError(ErrInvalidFormat, "%s item %d "+
				"is truncated", field, i)
		}
		item := make([]byte, size)
		_, _ = io.ReadFull(r, item)
		witness = append(witness, item)
	}
	if r.Len() != 0 {
		return nil, psetError(ErrInvalidFormat, "%d unexpected bytes "+
			"after %s", r.Len(), field)
	}
	return witness, nil
}

// sortUnknowns orders unknown entries by key so serialization is stable.
func sortUnknowns(unknowns []*psbt.Unknown) {
	sort.Slice(unknowns, func(i, j int) bool {
		return bytes.Compare(unknowns[i].Key, unknowns[j].Key) < 0
	})
}

// serializeUnknowns writes entries whose key already holds the key type.
func serializeUnknowns(w io.Writer, unknowns []*psbt.Unknown) error {
	sortUnknowns(unknowns)
	for _, kv := range unknowns {
		if err := serializeKVpair(w, kv.Key, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

// newUnknown keeps an entry the package does not interpret.
func newUnknown(keyType int, keyData, value []byte) *psbt.Unknown {
	return &psbt.Unknown{
		Key:   append([]byte{byte(keyType)}, keyData...),
		Value: value,
	}
}
