// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"io"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/wire"
)

// Output is a struct encapsulating all the data that can be attached to any
// specific output of the PSET.
type Output struct {
	RedeemScript    []byte
	WitnessScript   []byte
	Bip32Derivation []*psbt.Bip32Derivation

	// Amount is the explicit value.  A blinded output may carry only
	// ValueCommitment.
	Amount *uint64

	// Script is the output script.  It is empty for a fee output.
	Script []byte

	ValueCommitment      []byte
	Asset                *chainhash.Hash
	AssetCommitment      []byte
	ValueRangeProof      []byte
	AssetSurjectionProof []byte
	BlindingPubKey       []byte
	EcdhPubKey           []byte
	BlinderIndex         *uint32
	BlindValueProof      []byte
	BlindAssetProof      []byte

	Unknowns []*psbt.Unknown
}

// Value returns the value the output commits to in the transaction.
func (po *Output) Value() (wire.ConfidentialValue, error) {
	switch {
	case po.ValueCommitment != nil:
		return wire.NewValueCommitment(po.ValueCommitment)
	case po.Amount != nil:
		return wire.NewExplicitValue(*po.Amount), nil
	default:
		return wire.ConfidentialValue{}, psetError(ErrMissingField,
			"output has neither an amount nor a value commitment")
	}
}

// AssetValue returns the asset the output commits to in the transaction.
func (po *Output) AssetValue() (wire.ConfidentialAsset, error) {
	switch {
	case po.AssetCommitment != nil:
		return wire.NewAssetCommitment(po.AssetCommitment)
	case po.Asset != nil:
		return wire.NewExplicitAsset(*po.Asset), nil
	default:
		return wire.ConfidentialAsset{}, psetError(ErrMissingField,
			"output has neither an asset nor an asset commitment")
	}
}

// IsBlinded returns whether the output is to be blinded, which is marked by
// a blinding public key.
func (po *Output) IsBlinded() bool {
	return po.BlindingPubKey != nil
}

// TxOut builds the transaction output the PSET output describes.
func (po *Output) TxOut() (*wire.TxOut, error) {
	value, err := po.Value()
	if err != nil {
		return nil, err
	}
	asset, err := po.AssetValue()
	if err != nil {
		return nil, err
	}
	txOut := &wire.TxOut{
		Asset:           asset,
		Value:           value,
		PkScript:        po.Script,
		SurjectionProof: po.AssetSurjectionProof,
		RangeProof:      po.ValueRangeProof,
	}
	if po.EcdhPubKey != nil {
		txOut.Nonce, err = wire.NewNonceCommitment(po.EcdhPubKey)
		if err != nil {
			return nil, psetError(ErrInvalidFormat, "ecdh pubkey: %v",
				err)
		}
	}
	if err := txOut.CheckForm(); err != nil {
		return nil, psetError(ErrInvalidFormat, "%v", err)
	}
	return txOut, nil
}

// deserialize attempts to deserialize a new Output from the passed
// io.Reader.
func (po *Output) deserialize(r io.Reader) error {
	var hasScript bool

	seen := make(keyTracker)
	for {
		keyCode, keyData, err := getKey(r)
		if err != nil {
			return err
		}
		if keyCode == -1 {
			break
		}
		if err := seen.add(keyCode, keyData); err != nil {
			return err
		}
		value, err := readValue(r)
		if err != nil {
			return err
		}

		switch OutputType(keyCode) {
		case RedeemScriptOutputType:
			if err := noKeyData("redeem script", keyData); err != nil {
				return err
			}
			po.RedeemScript = value

		case WitnessScriptOutputType:
			if err := noKeyData("witness script", keyData); err != nil {
				return err
			}
			po.WitnessScript = value

		case Bip32DerivationOutputType:
			derivation, err := readBip32Derivation(keyData, value)
			if err != nil {
				return err
			}
			po.Bip32Derivation = append(po.Bip32Derivation, derivation)

		case AmountType:
			if err := noKeyData("amount", keyData); err != nil {
				return err
			}
			amount, err := readUint64("amount", value)
			if err != nil {
				return err
			}
			po.Amount = &amount

		case ScriptType:
			if err := noKeyData("script", keyData); err != nil {
				return err
			}
			po.Script = value
			hasScript = true

		case ProprietaryOutputType:
			subtype, rest, ok := parseProprietary(keyData)
			known := false
			if ok && len(rest) == 0 {
				known, err = po.deserializeProprietary(subtype, value)
				if err != nil {
					return err
				}
			}
			if !known {
				po.Unknowns = append(po.Unknowns,
					newUnknown(keyCode, keyData, value))
			}

		default:
			po.Unknowns = append(po.Unknowns,
				newUnknown(keyCode, keyData, value))
		}
	}

	if !hasScript {
		return psetError(ErrMissingField, "output is missing its script")
	}
	return nil
}

// deserializeProprietary decodes an Elements proprietary entry.  known is
// false for subtypes the package does not interpret.
func (po *Output) deserializeProprietary(subtype byte,
	value []byte) (known bool, err error) {

	switch subtype {
	case outValueCommitment:
		if _, err := wire.NewValueCommitment(value); err != nil {
			return true, psetError(ErrInvalidFormat, "value "+
				"commitment: %v", err)
		}
		po.ValueCommitment = value

	case outAsset:
		if err := fixedValue("asset", value, chainhash.HashSize); err != nil {
			return true, err
		}
		po.Asset, _ = chainhash.NewHash(value)

	case outAssetCommitment:
		if _, err := wire.NewAssetCommitment(value); err != nil {
			return true, psetError(ErrInvalidFormat, "asset "+
				"commitment: %v", err)
		}
		po.AssetCommitment = value

	case outValueRangeProof:
		po.ValueRangeProof = value

	case outAssetSurjectionProof:
		po.AssetSurjectionProof = value

	case outBlindingPubKey:
		if err := checkPubKey("blinding pubkey", value); err != nil {
			return true, err
		}
		po.BlindingPubKey = value

	case outEcdhPubKey:
		if err := checkPubKey("ecdh pubkey", value); err != nil {
			return true, err
		}
		po.EcdhPubKey = value

	case outBlinderIndex:
		index, err := readUint32("blinder index", value)
		if err != nil {
			return true, err
		}
		po.BlinderIndex = &index

	case outBlindValueProof:
		po.BlindValueProof = value

	case outBlindAssetProof:
		po.BlindAssetProof = value

	default:
		return false, nil
	}
	return true, nil
}

// serialize attempts to serialize the target Output into the passed
// io.Writer.
func (po *Output) serialize(w io.Writer) error {
	if po.RedeemScript != nil {
		err := serializeKVPairWithType(w, uint8(RedeemScriptOutputType),
			nil, po.RedeemScript)
		if err != nil {
			return err
		}
	}
	if po.WitnessScript != nil {
		err := serializeKVPairWithType(w, uint8(WitnessScriptOutputType),
			nil, po.WitnessScript)
		if err != nil {
			return err
		}
	}
	err := serializeBip32Derivations(w, uint8(Bip32DerivationOutputType),
		po.Bip32Derivation)
	if err != nil {
		return err
	}
	if po.Amount != nil {
		err := serializeKVPairWithType(w, uint8(AmountType), nil,
			uint64Bytes(*po.Amount))
		if err != nil {
			return err
		}
	}
	script := po.Script
	if script == nil {
		script = []byte{}
	}
	err = serializeKVPairWithType(w, uint8(ScriptType), nil, script)
	if err != nil {
		return err
	}

	var asset []byte
	if po.Asset != nil {
		asset = po.Asset[:]
	}
	var blinderIndex []byte
	if po.BlinderIndex != nil {
		blinderIndex = uint32Bytes(*po.BlinderIndex)
	}
	entries := []struct {
		subtype byte
		value   []byte
	}{
		{outValueCommitment, po.ValueCommitment},
		{outAsset, asset},
		{outAssetCommitment, po.AssetCommitment},
		{outValueRangeProof, po.ValueRangeProof},
		{outAssetSurjectionProof, po.AssetSurjectionProof},
		{outBlindingPubKey, po.BlindingPubKey},
		{outEcdhPubKey, po.EcdhPubKey},
		{outBlinderIndex, blinderIndex},
		{outBlindValueProof, po.BlindValueProof},
		{outBlindAssetProof, po.BlindAssetProof},
	}
	for _, e := range entries {
		if e.value == nil {
			continue
		}
		if err := serializeProprietary(w, e.subtype, nil, e.value); err != nil {
			return err
		}
	}

	return serializeUnknowns(w, po.Unknowns)
}
