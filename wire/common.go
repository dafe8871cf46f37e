// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// MaxVarIntPayload is the maximum payload size for a variable length
	// integer.
	MaxVarIntPayload = 9

	// MaxMessagePayload is the maximum number of bytes any single decoded
	// structure may claim.  It bounds length prefixes so corrupt input can
	// not force huge allocations.
	MaxMessagePayload = 1024 * 1024 * 32 // 32MB
)

// littleEndian is a convenience variable since binary.LittleEndian is quite
// long.
var littleEndian = binary.LittleEndian

// bigEndian is a convenience variable since binary.BigEndian is quite long.
var bigEndian = binary.BigEndian

// offsetReader wraps an io.Reader and keeps track of how many bytes were
// consumed so errors can report the position of the offending field.
type offsetReader struct {
	r      io.Reader
	offset int

	// size is the total length of the input, or -1 when the reader does
	// not know it.
	size int
}

// Read reads from the underlying reader and advances the offset.
func (o *offsetReader) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	o.offset += n
	return n, err
}

// newOffsetReader returns r as an offsetReader, reusing it when it already is
// one so nested structures keep reporting absolute offsets.
func newOffsetReader(r io.Reader) *offsetReader {
	if or, ok := r.(*offsetReader); ok {
		return or
	}
	size := -1
	if l, ok := r.(interface{ Len() int }); ok {
		size = l.Len()
	}
	return &offsetReader{r: r, size: size}
}

// remaining returns the number of unread bytes when the input size is known.
func (o *offsetReader) remaining() (int, bool) {
	if o.size < 0 {
		return 0, false
	}
	return o.size - o.offset, true
}

// checkCount reports ErrTruncatedInput when count elements of at least
// minSize bytes each can not fit in the rest of the input.  start is the
// offset of the count.
func checkCount(r *offsetReader, start int, count uint64, minSize int,
	field string) error {

	left, ok := r.remaining()
	if !ok || count <= uint64(left/minSize) {
		return nil
	}
	str := fmt.Sprintf("%d elements of at least %d bytes do not fit in "+
		"the %d remaining bytes", count, minSize, left)
	return decodeError(ErrTruncatedInput, start, field, str)
}

// readFull reads exactly len(b) bytes for the named field.  Running out of
// input is reported as ErrTruncatedInput at the offset where the field
// starts.
func readFull(r *offsetReader, field string, b []byte) error {
	start := r.offset
	_, err := io.ReadFull(r, b)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		str := fmt.Sprintf("need %d bytes, have %d", len(b),
			r.offset-start)
		return decodeError(ErrTruncatedInput, start, field, str)
	}
	return err
}

// readUint8 reads a single byte for the named field.
func readUint8(r *offsetReader, field string) (uint8, error) {
	var b [1]byte
	if err := readFull(r, field, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// readUint32 reads a little endian uint32 for the named field.
func readUint32(r *offsetReader, field string) (uint32, error) {
	var b [4]byte
	if err := readFull(r, field, b[:]); err != nil {
		return 0, err
	}
	return littleEndian.Uint32(b[:]), nil
}

// readHash reads a 32-byte hash for the named field.
func readHash(r *offsetReader, field string, h *chainhash.Hash) error {
	return readFull(r, field, h[:])
}

// readVarInt reads a variable length integer for the named field and
// rejects encodings that are not minimal.
func readVarInt(r *offsetReader, field string) (uint64, error) {
	start := r.offset
	discriminant, err := readUint8(r, field)
	if err != nil {
		return 0, err
	}

	var rv, min uint64
	switch discriminant {
	case 0xff:
		var b [8]byte
		if err := readFull(r, field, b[:]); err != nil {
			return 0, err
		}
		rv = littleEndian.Uint64(b[:])
		min = 0x100000000

	case 0xfe:
		var b [4]byte
		if err := readFull(r, field, b[:]); err != nil {
			return 0, err
		}
		rv = uint64(littleEndian.Uint32(b[:]))
		min = 0x10000

	case 0xfd:
		var b [2]byte
		if err := readFull(r, field, b[:]); err != nil {
			return 0, err
		}
		rv = uint64(littleEndian.Uint16(b[:]))
		min = 0xfd

	default:
		return uint64(discriminant), nil
	}

	// The encoding is not canonical if the value could have been
	// encoded using fewer bytes.
	if rv < min {
		str := fmt.Sprintf("non-canonical varint %x - discriminant "+
			"%x must encode a value greater than %x", rv,
			discriminant, min)
		return 0, decodeError(ErrMalformedField, start, field, str)
	}
	return rv, nil
}

// readVarBytes reads a length-prefixed byte slice for the named field.  The
// length may not exceed maxAllowed.
func readVarBytes(r *offsetReader, maxAllowed uint32, field string) ([]byte, error) {
	start := r.offset
	count, err := readVarInt(r, field)
	if err != nil {
		return nil, err
	}

	// Prevent byte array larger than the max message size.  It would
	// be possible to cause memory exhaustion and panics without a sane
	// upper bound on this count.
	if count > uint64(maxAllowed) {
		str := fmt.Sprintf("%s is larger than the max allowed size "+
			"[count %d, max %d]", field, count, maxAllowed)
		return nil, decodeError(ErrMalformedField, start, field, str)
	}
	if err := checkCount(r, start, count, 1, field); err != nil {
		return nil, err
	}

	b := make([]byte, count)
	if err := readFull(r, field, b); err != nil {
		return nil, err
	}
	return b, nil
}

// readWitnessStack reads a count-prefixed list of witness items.
func readWitnessStack(r *offsetReader, field string) (TxWitness, error) {
	start := r.offset
	count, err := readVarInt(r, field)
	if err != nil {
		return nil, err
	}
	if count > maxWitnessItemsPerInput {
		str := fmt.Sprintf("too many witness items to fit into max "+
			"message size [count %d, max %d]", count,
			maxWitnessItemsPerInput)
		return nil, decodeError(ErrMalformedField, start, field, str)
	}
	if count == 0 {
		return nil, nil
	}
	if err := checkCount(r, start, count, 1, field); err != nil {
		return nil, err
	}

	witness := make(TxWitness, count)
	for i := range witness {
		item, err := readVarBytes(r, MaxMessagePayload, field)
		if err != nil {
			return nil, err
		}
		witness[i] = item
	}
	return witness, nil
}

// ReadVarInt reads a variable length integer from r and returns it as a
// uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	return readVarInt(newOffsetReader(r), "varint")
}

// WriteVarInt serializes val to w using a variable number of bytes depending
// on its value.
func WriteVarInt(w io.Writer, val uint64) error {
	var b [MaxVarIntPayload]byte
	var n int
	switch {
	case val < 0xfd:
		b[0] = uint8(val)
		n = 1

	case val <= 0xffff:
		b[0] = 0xfd
		littleEndian.PutUint16(b[1:], uint16(val))
		n = 3

	case val <= 0xffffffff:
		b[0] = 0xfe
		littleEndian.PutUint32(b[1:], uint32(val))
		n = 5

	default:
		b[0] = 0xff
		littleEndian.PutUint64(b[1:], val)
		n = 9
	}
	_, err := w.Write(b[:n])
	return err
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	// The value is small enough to be represented by itself, so it's
	// just 1 byte.
	if val < 0xfd {
		return 1
	}

	// Discriminant 1 byte plus 2 bytes for the uint16.
	if val <= 0xffff {
		return 3
	}

	// Discriminant 1 byte plus 4 bytes for the uint32.
	if val <= 0xffffffff {
		return 5
	}

	// Discriminant 1 byte plus 8 bytes for the uint64.
	return 9
}

// WriteVarBytes serializes a variable length byte array to w as a varInt
// containing the number of bytes, followed by the bytes themselves.
func WriteVarBytes(w io.Writer, bytes []byte) error {
	slen := uint64(len(bytes))
	if err := WriteVarInt(w, slen); err != nil {
		return err
	}
	_, err := w.Write(bytes)
	return err
}

// varBytesSerializeSize returns the serialized size of a length-prefixed
// byte slice.
func varBytesSerializeSize(b []byte) int {
	return VarIntSerializeSize(uint64(len(b))) + len(b)
}

// writeUint32 writes a little endian uint32.
func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	littleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}
