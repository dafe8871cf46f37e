// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/wire"
)

// psetMagicLength is the length of the magic bytes used to signal the start
// of a serialized PSET packet.
const psetMagicLength = 5

// psetMagic is the separator.
var psetMagic = [psetMagicLength]byte{0x70,
	0x73, 0x65, 0x74, 0xff, // = "pset" + 0xff sep
}

// Version is the only PSET version this package reads and writes.
const Version = 2

// unsignedTxType is the BIP174 global key for the unsigned transaction,
// which version 2 replaces with per-field entries.
const unsignedTxType = 0x00

// xpubKeyLength is the length of a serialized extended key without its
// checksum.
const xpubKeyLength = 78

// XPub is an extended public key together with the origin of its
// derivation.
type XPub struct {
	ExtendedKey          []byte
	MasterKeyFingerprint uint32
	Bip32Path            []uint32
}

// Key returns the decoded extended key.
func (x *XPub) Key() (*hdkeychain.ExtendedKey, error) {
	checksum := chainhash.DoubleHashB(x.ExtendedKey)[:4]
	encoded := append(append([]byte{}, x.ExtendedKey...), checksum...)
	return hdkeychain.NewKeyFromString(base58.Encode(encoded))
}

// readXPub decodes a global xpub entry.  The path must hold one element per
// level of depth.
func readXPub(keyData, value []byte) (*XPub, error) {
	x := &XPub{ExtendedKey: keyData}
	if len(keyData) != xpubKeyLength {
		return nil, psetError(ErrInvalidKeyData, "xpub key has %d "+
			"bytes, want %d", len(keyData), xpubKeyLength)
	}
	key, err := x.Key()
	if err != nil {
		return nil, psetError(ErrInvalidKeyData, "xpub: %v", err)
	}
	if len(value) != 4*(int(key.Depth())+1) {
		return nil, psetError(ErrInvalidFormat, "xpub path has %d "+
			"bytes for depth %d", len(value), key.Depth())
	}
	x.MasterKeyFingerprint, x.Bip32Path, err = psbt.ReadBip32Derivation(
		value)
	if err != nil {
		return nil, psetError(ErrInvalidFormat, "xpub path: %v", err)
	}
	return x, nil
}

// Packet is the actual PSET representation.  It is a set of key-value maps:
// one global map describing the transaction, one per input and one per
// output.
type Packet struct {
	TxVersion uint32

	// FallbackLockTime is used when no input requires a lock time.
	FallbackLockTime *uint32

	// TxModifiable and ElementsTxModifiable hold the BIP370 and Elements
	// modifiable flags.
	TxModifiable         *uint8
	ElementsTxModifiable *uint8

	XPubs []*XPub

	// Scalars are the blinding scalar offsets of the transaction.
	Scalars [][32]byte

	Inputs  []*Input
	Outputs []*Output

	// Unknowns are the global entries the package does not interpret.
	Unknowns []*psbt.Unknown
}

// New creates a PSET describing an unsigned transaction.  The inputs must
// carry neither signature scripts nor script witnesses.  Proofs and pegin
// witnesses move into their PSET fields.
func New(tx *wire.MsgTx) (*Packet, error) {
	lockTime := tx.LockTime
	p := &Packet{
		TxVersion:        tx.Version,
		FallbackLockTime: &lockTime,
		Inputs:           make([]*Input, 0, len(tx.TxIn)),
		Outputs:          make([]*Output, 0, len(tx.TxOut)),
	}

	for i, txIn := range tx.TxIn {
		if len(txIn.SignatureScript) != 0 || len(txIn.Witness) != 0 {
			return nil, psetError(ErrInvalidRawTxSigned, "input %d "+
				"is signed", i)
		}
		p.Inputs = append(p.Inputs, newInput(txIn))
	}
	for _, txOut := range tx.TxOut {
		p.Outputs = append(p.Outputs, newOutput(txOut))
	}

	log.Debugf("Created PSET with %d inputs and %d outputs",
		len(p.Inputs), len(p.Outputs))
	return p, nil
}

// newInput describes an unsigned transaction input.
func newInput(txIn *wire.TxIn) *Input {
	pi := &Input{
		PreviousTxid:        txIn.PreviousOutPoint.Hash,
		PreviousOutputIndex: txIn.PreviousOutPoint.Index,
		Sequence:            txIn.Sequence,
		PeginWitness:        txIn.PeginWitness,
	}
	if txIn.IsPegin {
		pi.PreviousOutputIndex |= wire.OutPointPeginFlag
	}

	issuance := txIn.Issuance
	if issuance == nil {
		return pi
	}
	pi.PreviousOutputIndex |= wire.OutPointIssuanceFlag
	nonce, entropy := issuance.AssetBlindingNonce, issuance.AssetEntropy
	pi.IssuanceBlindingNonce = &nonce
	pi.IssuanceAssetEntropy = &entropy
	pi.IssuanceValue, pi.IssuanceValueCommitment =
		splitValue(issuance.Amount)
	pi.IssuanceInflationKeys, pi.IssuanceInflationKeysCommitment =
		splitValue(issuance.InflationKeys)
	pi.IssuanceValueRangeProof = txIn.IssuanceRangeProof
	pi.IssuanceKeysRangeProof = txIn.InflationKeysRangeProof
	return pi
}

// splitValue returns the explicit amount or the commitment of a value.
func splitValue(v wire.ConfidentialValue) (*uint64, []byte) {
	switch v.Type {
	case wire.ConfidentialExplicit:
		amount := v.Value
		return &amount, nil
	case wire.ConfidentialCommitment:
		return nil, append([]byte{}, v.Commitment[:]...)
	default:
		return nil, nil
	}
}

// newOutput describes a transaction output.
func newOutput(txOut *wire.TxOut) *Output {
	po := &Output{
		Script:               txOut.PkScript,
		ValueRangeProof:      txOut.RangeProof,
		AssetSurjectionProof: txOut.SurjectionProof,
	}
	po.Amount, po.ValueCommitment = splitValue(txOut.Value)
	switch txOut.Asset.Type {
	case wire.ConfidentialExplicit:
		asset := txOut.Asset.ID
		po.Asset = &asset
	case wire.ConfidentialCommitment:
		po.AssetCommitment = append([]byte{}, txOut.Asset.Commitment[:]...)
	}
	if txOut.Nonce.Type == wire.ConfidentialCommitment {
		po.EcdhPubKey = append([]byte{}, txOut.Nonce.Commitment[:]...)
	}
	return po
}

// NewFromRawBytes returns a new instance of a Packet struct created by
// reading from a byte slice.  If the format is invalid, an error is
// returned.  If the argument b64 is true, the passed byte slice is decoded
// from base64 encoding before processing.
func NewFromRawBytes(r io.Reader, b64 bool) (*Packet, error) {
	if b64 {
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	var magic [psetMagicLength]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil ||
		magic != psetMagic {

		return nil, psetError(ErrInvalidMagic, "data does not start "+
			"with the PSET magic")
	}

	p := &Packet{}
	inputCount, outputCount, err := p.deserializeGlobal(r)
	if err != nil {
		return nil, err
	}

	for i := uint64(0); i < inputCount; i++ {
		input := &Input{}
		if err := input.deserialize(r); err != nil {
			return nil, psetError(errorCode(err), "input %d: %v", i,
				err)
		}
		p.Inputs = append(p.Inputs, input)
	}
	for i := uint64(0); i < outputCount; i++ {
		output := &Output{}
		if err := output.deserialize(r); err != nil {
			return nil, psetError(errorCode(err), "output %d: %v", i,
				err)
		}
		p.Outputs = append(p.Outputs, output)
	}

	if err := p.SanityCheck(); err != nil {
		return nil, err
	}
	log.Tracef("Decoded PSET with %d inputs and %d outputs",
		len(p.Inputs), len(p.Outputs))
	return p, nil
}

// FromBytes decodes a raw PSET that must span all of b.
func FromBytes(b []byte) (*Packet, error) {
	r := bytes.NewReader(b)
	p, err := NewFromRawBytes(r, false)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, psetError(ErrInvalidFormat, "%d unexpected bytes "+
			"after the PSET", r.Len())
	}
	return p, nil
}

// errorCode returns the code of a PSET error, or ErrInvalidFormat.
func errorCode(err error) ErrorCode {
	if e, ok := err.(Error); ok {
		return e.ErrorCode
	}
	return ErrInvalidFormat
}

// deserializeGlobal reads the global map and returns the number of input
// and output maps that follow it.
func (p *Packet) deserializeGlobal(r io.Reader) (uint64, uint64, error) {
	var (
		hasTxVersion, hasVersion         bool
		hasInputCount, hasOutputCount    bool
		inputCount, outputCount, version uint64
	)

	seen := make(keyTracker)
	for {
		keyCode, keyData, err := getKey(r)
		if err != nil {
			return 0, 0, err
		}
		if keyCode == -1 {
			break
		}
		if err := seen.add(keyCode, keyData); err != nil {
			return 0, 0, err
		}
		value, err := readValue(r)
		if err != nil {
			return 0, 0, err
		}

		switch GlobalType(keyCode) {
		case unsignedTxType:
			return 0, 0, psetError(ErrInvalidFormat, "version 2 "+
				"PSETs can not carry an unsigned transaction")

		case XPubType:
			xpub, err := readXPub(keyData, value)
			if err != nil {
				return 0, 0, err
			}
			p.XPubs = append(p.XPubs, xpub)

		case TxVersionType:
			if err := noKeyData("tx version", keyData); err != nil {
				return 0, 0, err
			}
			p.TxVersion, err = readUint32("tx version", value)
			if err != nil {
				return 0, 0, err
			}
			hasTxVersion = true

		case FallbackLockTimeType:
			if err := noKeyData("fallback lock time", keyData); err != nil {
				return 0, 0, err
			}
			lockTime, err := readUint32("fallback lock time", value)
			if err != nil {
				return 0, 0, err
			}
			p.FallbackLockTime = &lockTime

		case InputCountType:
			if err := noKeyData("input count", keyData); err != nil {
				return 0, 0, err
			}
			inputCount, err = readCompactSize("input count", value)
			if err != nil {
				return 0, 0, err
			}
			hasInputCount = true

		case OutputCountType:
			if err := noKeyData("output count", keyData); err != nil {
				return 0, 0, err
			}
			outputCount, err = readCompactSize("output count", value)
			if err != nil {
				return 0, 0, err
			}
			hasOutputCount = true

		case TxModifiableType:
			if err := noKeyData("tx modifiable", keyData); err != nil {
				return 0, 0, err
			}
			if err := fixedValue("tx modifiable", value, 1); err != nil {
				return 0, 0, err
			}
			flags := value[0]
			p.TxModifiable = &flags

		case VersionType:
			if err := noKeyData("version", keyData); err != nil {
				return 0, 0, err
			}
			v, err := readUint32("version", value)
			if err != nil {
				return 0, 0, err
			}
			version = uint64(v)
			hasVersion = true

		case ProprietaryGlobalType:
			subtype, rest, ok := parseProprietary(keyData)
			switch {
			case ok && subtype == globalScalar:
				if len(value) != 0 {
					return 0, 0, psetError(ErrInvalidFormat,
						"scalar entries carry no value")
				}
				scalar, err := read32("scalar", rest)
				if err != nil {
					return 0, 0, err
				}
				p.Scalars = append(p.Scalars, *scalar)

			case ok && subtype == globalElementsTxModifiable &&
				len(rest) == 0:

				if err := fixedValue("elements tx modifiable",
					value, 1); err != nil {

					return 0, 0, err
				}
				flags := value[0]
				p.ElementsTxModifiable = &flags

			default:
				p.Unknowns = append(p.Unknowns,
					newUnknown(keyCode, keyData, value))
			}

		default:
			p.Unknowns = append(p.Unknowns,
				newUnknown(keyCode, keyData, value))
		}
	}

	switch {
	case !hasVersion:
		return 0, 0, psetError(ErrMissingField, "global map is "+
			"missing the PSET version")
	case version != Version:
		return 0, 0, psetError(ErrUnsupportedVersion, "PSET version "+
			"%d is not supported", version)
	case !hasTxVersion || !hasInputCount || !hasOutputCount:
		return 0, 0, psetError(ErrMissingField, "global map is "+
			"missing the tx version or the input or output count")
	}
	return inputCount, outputCount, nil
}

// Serialize creates a binary serialization of the referenced Packet struct
// with lexicographical ordering (by key) of the subsections.
func (p *Packet) Serialize(w io.Writer) error {
	if _, err := w.Write(psetMagic[:]); err != nil {
		return err
	}
	if err := p.serializeGlobal(w); err != nil {
		return err
	}
	if _, err := w.Write([]byte{0x00}); err != nil {
		return err
	}

	for _, pInput := range p.Inputs {
		if err := pInput.serialize(w); err != nil {
			return err
		}
		if _, err := w.Write([]byte{0x00}); err != nil {
			return err
		}
	}
	for _, pOutput := range p.Outputs {
		if err := pOutput.serialize(w); err != nil {
			return err
		}
		if _, err := w.Write([]byte{0x00}); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the binary serialization of the packet.
func (p *Packet) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// B64Encode returns the base64 encoding of the serialization of the current
// PSET, or an error if the encoding fails.
func (p *Packet) B64Encode() (string, error) {
	b, err := p.Bytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (p *Packet) serializeGlobal(w io.Writer) error {
	sort.Slice(p.XPubs, func(i, j int) bool {
		return bytes.Compare(p.XPubs[i].ExtendedKey,
			p.XPubs[j].ExtendedKey) < 0
	})
	for _, xpub := range p.XPubs {
		err := serializeKVPairWithType(w, uint8(XPubType),
			xpub.ExtendedKey, psbt.SerializeBIP32Derivation(
				xpub.MasterKeyFingerprint, xpub.Bip32Path))
		if err != nil {
			return err
		}
	}

	err := serializeKVPairWithType(w, uint8(TxVersionType), nil,
		uint32Bytes(p.TxVersion))
	if err != nil {
		return err
	}
	if p.FallbackLockTime != nil {
		err := serializeKVPairWithType(w, uint8(FallbackLockTimeType),
			nil, uint32Bytes(*p.FallbackLockTime))
		if err != nil {
			return err
		}
	}
	err = serializeKVPairWithType(w, uint8(InputCountType), nil,
		compactSizeBytes(uint64(len(p.Inputs))))
	if err != nil {
		return err
	}
	err = serializeKVPairWithType(w, uint8(OutputCountType), nil,
		compactSizeBytes(uint64(len(p.Outputs))))
	if err != nil {
		return err
	}
	if p.TxModifiable != nil {
		err := serializeKVPairWithType(w, uint8(TxModifiableType), nil,
			[]byte{*p.TxModifiable})
		if err != nil {
			return err
		}
	}
	var version [4]byte
	binary.LittleEndian.PutUint32(version[:], Version)
	err = serializeKVPairWithType(w, uint8(VersionType), nil, version[:])
	if err != nil {
		return err
	}

	sort.Slice(p.Scalars, func(i, j int) bool {
		return bytes.Compare(p.Scalars[i][:], p.Scalars[j][:]) < 0
	})
	for _, scalar := range p.Scalars {
		err := serializeProprietary(w, globalScalar, scalar[:], []byte{})
		if err != nil {
			return err
		}
	}
	if p.ElementsTxModifiable != nil {
		err := serializeProprietary(w, globalElementsTxModifiable, nil,
			[]byte{*p.ElementsTxModifiable})
		if err != nil {
			return err
		}
	}

	return serializeUnknowns(w, p.Unknowns)
}

// SanityCheck checks conditions on a PSET that decoding alone does not
// enforce.
func (p *Packet) SanityCheck() error {
	for i, pInput := range p.Inputs {
		if pInput.HasIssuance() && pInput.IssuanceValue == nil &&
			pInput.IssuanceValueCommitment == nil &&
			pInput.IssuanceInflationKeys == nil &&
			pInput.IssuanceInflationKeysCommitment == nil {

			return psetError(ErrMissingField, "input %d is flagged "+
				"with an issuance that issues nothing", i)
		}
		utxo := pInput.NonWitnessUtxo
		if utxo != nil && utxo.TxHash() != pInput.PreviousTxid {
			return psetError(ErrInvalidFormat, "input %d: "+
				"non-witness utxo %v is not the spent "+
				"transaction %v", i, utxo.TxHash(),
				pInput.PreviousTxid)
		}
	}
	return nil
}
