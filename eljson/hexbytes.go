// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"encoding/hex"
	"encoding/json"
	"reflect"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"gopkg.in/yaml.v3"
)

// HexBytes is a byte slice that is written as a hex string in JSON and YAML.
type HexBytes []byte

// String returns the hex encoding of the bytes.
func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}

// MarshalJSON writes the bytes as a hex string.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON reads a hex string.  Malformed input is reported as a type
// error so that the decoder fills in the field name.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &json.UnmarshalTypeError{
			Value: string(data),
			Type:  reflect.TypeOf(*h),
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return &json.UnmarshalTypeError{
			Value: "string " + s,
			Type:  reflect.TypeOf(*h),
		}
	}
	*h = b
	return nil
}

// MarshalYAML writes the bytes as a hex string.
func (h HexBytes) MarshalYAML() (interface{}, error) {
	return hex.EncodeToString(h), nil
}

// UnmarshalYAML reads a hex string.
func (h *HexBytes) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return typeMismatch("", "line %d: %v", value.Line, err)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return typeMismatch("", "line %d: invalid hex %q", value.Line, s)
	}
	*h = b
	return nil
}

// parseHash parses a hash written in the usual reversed hex form.  Unlike
// chainhash.NewHashFromStr, short strings are rejected.
func parseHash(field, s string) (chainhash.Hash, error) {
	if len(s) != 2*chainhash.HashSize {
		return chainhash.Hash{}, typeMismatch(field, "hash must be %d "+
			"hex characters, got %d", 2*chainhash.HashSize, len(s))
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, typeMismatch(field, "invalid hash %q: %v",
			s, err)
	}
	return *h, nil
}

// fixed32 checks that b holds exactly 32 bytes.
func fixed32(field string, b HexBytes) ([32]byte, error) {
	var out [32]byte
	if len(b) != 32 {
		return out, typeMismatch(field, "must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// hexList converts a witness stack to its record form.
func hexList(items [][]byte) []HexBytes {
	if len(items) == 0 {
		return nil
	}
	list := make([]HexBytes, len(items))
	for i, item := range items {
		list[i] = append(HexBytes(nil), item...)
	}
	return list
}

// byteList converts a record witness stack back to raw items.
func byteList(items []HexBytes) [][]byte {
	if len(items) == 0 {
		return nil
	}
	list := make([][]byte, len(items))
	for i, item := range items {
		list[i] = append([]byte(nil), item...)
	}
	return list
}
