// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/primitives"
	"github.com/btcsuite/elementsutil/txscript"
	"github.com/vulpemventures/go-elements/blech32"
)

// Type is the kind of output an address pays to.
type Type uint8

const (
	PubKeyHash Type = iota
	ScriptHash
	WitnessPubKeyHash
	WitnessScriptHash
	Taproot
	WitnessUnknown
)

var typeStrings = []string{
	PubKeyHash:        "p2pkh",
	ScriptHash:        "p2sh",
	WitnessPubKeyHash: "p2wpkh",
	WitnessScriptHash: "p2wsh",
	Taproot:           "p2tr",
	WitnessUnknown:    "unknown-witness-program-version",
}

// String returns the short name of the address type, e.g. "p2wpkh".
func (t Type) String() string {
	if int(t) >= len(typeStrings) {
		return "Invalid"
	}
	return typeStrings[t]
}

const (
	hashLen   = 20
	keyLen    = btcec.PubKeyBytesLenCompressed
	base58Len = 1 + keyLen + hashLen
)

// Address is an Elements address: a payload identifying an output script,
// optionally with the blinding key outputs to the address are blinded to.
type Address struct {
	net            *chaincfg.Params
	typ            Type
	witnessVersion byte

	// program is the hash of a base58 address or the witness program of
	// a segwit address.
	program     []byte
	blindingKey *btcec.PublicKey
}

// NewPubKeyHash returns a P2PKH address for a 20 byte key hash.
func NewPubKeyHash(hash []byte, net *chaincfg.Params) (*Address, error) {
	if len(hash) != hashLen {
		return nil, addressError(ErrInvalidAddress, "pubkey hash must "+
			"be %d bytes, got %d", hashLen, len(hash))
	}
	return &Address{net: net, typ: PubKeyHash, program: clone(hash)}, nil
}

// NewScriptHash returns a P2SH address paying to a redeem script.
func NewScriptHash(script []byte, net *chaincfg.Params) (*Address, error) {
	return NewScriptHashFromHash(btcutil.Hash160(script), net)
}

// NewScriptHashFromHash returns a P2SH address for a 20 byte script hash.
func NewScriptHashFromHash(hash []byte, net *chaincfg.Params) (*Address,
	error) {

	if len(hash) != hashLen {
		return nil, addressError(ErrInvalidAddress, "script hash must "+
			"be %d bytes, got %d", hashLen, len(hash))
	}
	return &Address{net: net, typ: ScriptHash, program: clone(hash)}, nil
}

// NewWitness returns a segwit address for a witness program.  Version 0
// programs must be 20 or 32 bytes, later versions 2 to 40 bytes.
func NewWitness(version byte, program []byte, net *chaincfg.Params) (*Address,
	error) {

	switch {
	case version > 16:
		return nil, addressError(ErrInvalidAddress, "witness version "+
			"%d exceeds 16", version)
	case version == 0 && len(program) != 20 && len(program) != 32:
		return nil, addressError(ErrInvalidAddress, "version 0 "+
			"program must be 20 or 32 bytes, got %d", len(program))
	case len(program) < 2 || len(program) > 40:
		return nil, addressError(ErrInvalidAddress, "witness program "+
			"must be 2 to 40 bytes, got %d", len(program))
	}

	typ := WitnessUnknown
	switch {
	case version == 0 && len(program) == 20:
		typ = WitnessPubKeyHash
	case version == 0:
		typ = WitnessScriptHash
	case version == 1 && len(program) == 32:
		typ = Taproot
	}
	return &Address{
		net:            net,
		typ:            typ,
		witnessVersion: version,
		program:        clone(program),
	}, nil
}

// FromPkScript returns the address an output script pays to.
func FromPkScript(pkScript []byte, net *chaincfg.Params) (*Address, error) {
	class := txscript.GetScriptClass(pkScript)
	switch class {
	case txscript.PubKeyHashTy:
		return NewPubKeyHash(pkScript[3:23], net)

	case txscript.ScriptHashTy:
		return NewScriptHashFromHash(pkScript[2:22], net)
	}

	// Witness programs of unknown versions are not always classified, so
	// anything that parses as one has an address.
	version, program, err := txscript.ExtractWitnessProgram(pkScript)
	if err != nil {
		return nil, addressError(ErrUnsupportedScript, "no address for "+
			"%s script", class)
	}
	return NewWitness(byte(version), program, net)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// Confidential returns a copy of the address blinded to key.
func (a *Address) Confidential(key *btcec.PublicKey) *Address {
	c := *a
	c.blindingKey = key
	return &c
}

// Unconfidential returns a copy of the address without its blinding key.
func (a *Address) Unconfidential() *Address {
	c := *a
	c.blindingKey = nil
	return &c
}

// IsConfidential returns whether the address carries a blinding key.
func (a *Address) IsConfidential() bool {
	return a.blindingKey != nil
}

// BlindingKey returns the blinding key of a confidential address, or nil.
func (a *Address) BlindingKey() *btcec.PublicKey {
	return a.blindingKey
}

// Net returns the network of the address.
func (a *Address) Net() *chaincfg.Params {
	return a.net
}

// Type returns the kind of output the address pays to.
func (a *Address) Type() Type {
	return a.typ
}

// IsWitness returns whether the address is a segwit address.
func (a *Address) IsWitness() bool {
	return a.typ != PubKeyHash && a.typ != ScriptHash
}

// WitnessVersion returns the witness version of a segwit address.
func (a *Address) WitnessVersion() byte {
	return a.witnessVersion
}

// ScriptAddress returns the key hash, script hash or witness program of the
// address.
func (a *Address) ScriptAddress() []byte {
	return clone(a.program)
}

// PkScript returns the output script paying to the address.
func (a *Address) PkScript() ([]byte, error) {
	switch a.typ {
	case PubKeyHash:
		return txscript.PayToPubKeyHashScript(a.program)
	case ScriptHash:
		return txscript.PayToScriptHashScript(a.program)
	}
	return txscript.PayToWitnessScript(a.witnessVersion, a.program)
}

// EncodeAddress returns the string encoding of the address: base58 check for
// P2PKH and P2SH, bech32 for segwit and blech32 for confidential segwit
// addresses.
func (a *Address) EncodeAddress() string {
	if a.IsWitness() {
		return a.encodeSegwit()
	}

	prefix := a.net.PubKeyHashAddrID
	if a.typ == ScriptHash {
		prefix = a.net.ScriptHashAddrID
	}
	if a.blindingKey == nil {
		return base58.CheckEncode(a.program, prefix)
	}

	payload := make([]byte, 0, base58Len)
	payload = append(payload, prefix)
	payload = append(payload, a.blindingKey.SerializeCompressed()...)
	payload = append(payload, a.program...)
	return base58.CheckEncode(payload, a.net.BlindedAddrID)
}

func (a *Address) encodeSegwit() string {
	payload := a.program
	if a.blindingKey != nil {
		payload = append(a.blindingKey.SerializeCompressed(), a.program...)
	}
	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return ""
	}
	data := append([]byte{a.witnessVersion}, converted...)

	var encoded string
	switch {
	case a.blindingKey != nil && a.witnessVersion == 0:
		encoded, err = blech32.Encode(a.net.Blech32HRP, data,
			blech32.BLECH32)
	case a.blindingKey != nil:
		encoded, err = blech32.Encode(a.net.Blech32HRP, data,
			blech32.BLECH32M)
	case a.witnessVersion == 0:
		encoded, err = bech32.Encode(a.net.Bech32HRP, data)
	default:
		encoded, err = bech32.EncodeM(a.net.Bech32HRP, data)
	}
	if err != nil {
		return ""
	}
	return encoded
}

// String returns the encoded address.
func (a *Address) String() string {
	return a.EncodeAddress()
}

// Decode decodes an address.  When net is not nil the address must belong to
// it, otherwise the network is taken from the address prefix.
func Decode(addr string, net *chaincfg.Params) (*Address, error) {
	var (
		decoded *Address
		err     error
	)
	one := strings.LastIndexByte(addr, '1')
	hrpNet, confidential, hrpErr := chaincfg.ParamsForBech32HRP(
		addr[:max(one, 0)])
	if one > 0 && hrpErr == nil {
		decoded, err = decodeSegwit(addr, hrpNet, confidential)
	} else {
		decoded, err = decodeBase58(addr)
	}
	if err != nil {
		return nil, err
	}

	if net != nil && decoded.net != net {
		return nil, addressError(ErrWrongNetwork, "address %s is for "+
			"network %s, not %s", addr, decoded.net.Name, net.Name)
	}
	log.Tracef("Decoded %s address %s on %s", decoded.typ, addr,
		decoded.net.Name)
	return decoded, nil
}

func decodeSegwit(addr string, net *chaincfg.Params,
	confidential bool) (*Address, error) {

	var (
		data      []byte
		isBech32m bool
	)
	if confidential {
		_, d, enc, err := blech32.DecodeGeneric(addr)
		if err != nil {
			return nil, addressError(ErrInvalidAddress, "%v", err)
		}
		data, isBech32m = d, enc == blech32.BLECH32M
	} else {
		_, d, version, err := bech32.DecodeGeneric(addr)
		if err != nil {
			return nil, addressError(ErrInvalidAddress, "%v", err)
		}
		data, isBech32m = d, version == bech32.VersionM
	}
	if len(data) < 1 {
		return nil, addressError(ErrInvalidAddress, "empty data section")
	}

	witnessVersion := data[0]
	if (witnessVersion == 0) == isBech32m {
		return nil, addressError(ErrInvalidAddress, "wrong checksum "+
			"variant for witness version %d", witnessVersion)
	}
	payload, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, addressError(ErrInvalidAddress, "%v", err)
	}

	var blindingKey *btcec.PublicKey
	if confidential {
		if len(payload) < keyLen {
			return nil, addressError(ErrInvalidAddress, "confidential "+
				"payload of %d bytes", len(payload))
		}
		blindingKey, err = primitives.Default.VerifyKeyBytes(
			payload[:keyLen])
		if err != nil {
			return nil, addressError(ErrInvalidBlindingKey, "%v", err)
		}
		payload = payload[keyLen:]
	}

	a, err := NewWitness(witnessVersion, payload, net)
	if err != nil {
		return nil, err
	}
	a.blindingKey = blindingKey
	return a, nil
}

func decodeBase58(addr string) (*Address, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, addressError(ErrInvalidAddress, "%v", err)
	}
	net, err := chaincfg.ParamsForBase58Prefix(version)
	if err != nil {
		return nil, addressError(ErrInvalidAddress, "unknown address "+
			"prefix %d", version)
	}

	var blindingKey *btcec.PublicKey
	if version == net.BlindedAddrID {
		if len(payload) != base58Len {
			return nil, addressError(ErrInvalidAddress, "confidential "+
				"payload of %d bytes, want %d", len(payload),
				base58Len)
		}
		blindingKey, err = primitives.Default.VerifyKeyBytes(
			payload[1 : 1+keyLen])
		if err != nil {
			return nil, addressError(ErrInvalidBlindingKey, "%v", err)
		}
		version, payload = payload[0], payload[1+keyLen:]
	}

	var a *Address
	switch version {
	case net.PubKeyHashAddrID:
		a, err = NewPubKeyHash(payload, net)
	case net.ScriptHashAddrID:
		a, err = NewScriptHashFromHash(payload, net)
	default:
		return nil, addressError(ErrInvalidAddress, "unknown inner "+
			"address prefix %d", version)
	}
	if err != nil {
		return nil, err
	}
	a.blindingKey = blindingKey
	return a, nil
}
