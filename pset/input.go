// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"bytes"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btctxscript "github.com/btcsuite/btcd/txscript"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/elementsutil/primitives"
	"github.com/btcsuite/elementsutil/wire"
)

// Preimage is a hash lock secret carried by an input.
type Preimage struct {
	Kind     primitives.HashKind
	Hash     []byte
	Preimage []byte
}

// preimageTypes maps the preimage key types to their hash.
var preimageTypes = map[InputType]primitives.HashKind{
	Ripemd160PreimageType: primitives.RIPEMD160,
	Sha256PreimageType:    primitives.SHA256,
	Hash160PreimageType:   primitives.HASH160,
	Hash256PreimageType:   primitives.HASH256,
}

// preimageKeyType is the reverse of preimageTypes.
func preimageKeyType(kind primitives.HashKind) InputType {
	for keyType, k := range preimageTypes {
		if k == kind {
			return keyType
		}
	}
	return Sha256PreimageType
}

// Input is a struct encapsulating all the data that can be attached to any
// specific input of the PSET.
type Input struct {
	NonWitnessUtxo     *wire.MsgTx
	WitnessUtxo        *wire.TxOut
	PartialSigs        []*psbt.PartialSig
	SighashType        btctxscript.SigHashType
	RedeemScript       []byte
	WitnessScript      []byte
	Bip32Derivation    []*psbt.Bip32Derivation
	FinalScriptSig     []byte
	FinalScriptWitness wire.TxWitness
	Preimages          []*Preimage

	PreviousTxid chainhash.Hash

	// PreviousOutputIndex carries the issuance and pegin flags of the
	// serialized outpoint next to the output index.
	PreviousOutputIndex uint32

	// Sequence is MaxTxInSequenceNum when the PSET does not set it.
	Sequence uint32

	RequiredTimeLockTime   *uint32
	RequiredHeightLockTime *uint32

	IssuanceValue                   *uint64
	IssuanceValueCommitment         []byte
	IssuanceValueRangeProof         []byte
	IssuanceKeysRangeProof          []byte
	IssuanceInflationKeys           *uint64
	IssuanceInflationKeysCommitment []byte
	IssuanceBlindingNonce           *[32]byte
	IssuanceAssetEntropy            *[32]byte

	PeginTx          *btcwire.MsgTx
	PeginTxoutProof  []byte
	PeginGenesisHash *chainhash.Hash
	PeginClaimScript []byte
	PeginValue       *uint64
	PeginWitness     wire.TxWitness

	Unknowns []*psbt.Unknown

	// sequenceSet records whether the map carried a sequence entry.
	sequenceSet bool
}

// OutPoint returns the previous output the input spends, without flags.
func (pi *Input) OutPoint() wire.OutPoint {
	return wire.OutPoint{
		Hash:  pi.PreviousTxid,
		Index: pi.PreviousOutputIndex & wire.OutPointIndexMask,
	}
}

// IsPegin returns whether the input claims a peg-in.
func (pi *Input) IsPegin() bool {
	return pi.PreviousOutputIndex&wire.OutPointPeginFlag != 0
}

// HasIssuance returns whether the input carries an asset issuance.
func (pi *Input) HasIssuance() bool {
	return pi.PreviousOutputIndex&wire.OutPointIssuanceFlag != 0
}

// IsFinal returns whether the input holds its final scripts.
func (pi *Input) IsFinal() bool {
	return pi.FinalScriptSig != nil || pi.FinalScriptWitness != nil
}

// PrevOut returns the output spent by the input from the UTXO fields, or
// nil if neither is set.
func (pi *Input) PrevOut() *wire.TxOut {
	if pi.WitnessUtxo != nil {
		return pi.WitnessUtxo
	}
	if pi.NonWitnessUtxo == nil {
		return nil
	}
	index := pi.OutPoint().Index
	if int(index) >= len(pi.NonWitnessUtxo.TxOut) {
		return nil
	}
	return pi.NonWitnessUtxo.TxOut[index]
}

// Preimage returns the preimage of hash for the given kind.
func (pi *Input) Preimage(kind primitives.HashKind, hash []byte) ([]byte,
	bool) {

	for _, p := range pi.Preimages {
		if p.Kind == kind && bytes.Equal(p.Hash, hash) {
			return p.Preimage, true
		}
	}
	return nil, false
}

// issuance builds the issuance of the input from its issuance fields.
func (pi *Input) issuance() (*wire.AssetIssuance, error) {
	issuance := &wire.AssetIssuance{}
	if pi.IssuanceBlindingNonce != nil {
		issuance.AssetBlindingNonce = *pi.IssuanceBlindingNonce
	}
	if pi.IssuanceAssetEntropy != nil {
		issuance.AssetEntropy = *pi.IssuanceAssetEntropy
	}

	var err error
	issuance.Amount, err = issuanceValue(pi.IssuanceValue,
		pi.IssuanceValueCommitment)
	if err != nil {
		return nil, err
	}
	issuance.InflationKeys, err = issuanceValue(pi.IssuanceInflationKeys,
		pi.IssuanceInflationKeysCommitment)
	if err != nil {
		return nil, err
	}
	return issuance, nil
}

// issuanceValue prefers the commitment over the explicit amount.  An
// issuance with neither issues nothing.
func issuanceValue(explicit *uint64,
	commitment []byte) (wire.ConfidentialValue, error) {

	switch {
	case commitment != nil:
		return wire.NewValueCommitment(commitment)
	case explicit != nil:
		return wire.NewExplicitValue(*explicit), nil
	default:
		return wire.ConfidentialValue{}, nil
	}
}

// deserialize attempts to deserialize a new Input from the passed io.Reader.
func (pi *Input) deserialize(r io.Reader) error {
	pi.Sequence = wire.MaxTxInSequenceNum
	var hasTxid, hasIndex bool

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

		switch InputType(keyCode) {
		case NonWitnessUtxoType:
			if err := noKeyData("non-witness utxo", keyData); err != nil {
				return err
			}
			tx := &wire.MsgTx{}
			if err := tx.FromBytes(value); err != nil {
				return psetError(ErrInvalidFormat, "non-witness "+
					"utxo: %v", err)
			}
			pi.NonWitnessUtxo = tx

		case WitnessUtxoType:
			if err := noKeyData("witness utxo", keyData); err != nil {
				return err
			}
			txOut := &wire.TxOut{}
			if err := txOut.FromBytes(value); err != nil {
				return psetError(ErrInvalidFormat, "witness utxo: %v",
					err)
			}
			pi.WitnessUtxo = txOut

		case PartialSigType:
			if err := checkPubKey("partial sig", keyData); err != nil {
				return err
			}
			pi.PartialSigs = append(pi.PartialSigs, &psbt.PartialSig{
				PubKey:    keyData,
				Signature: value,
			})

		case SighashType:
			if err := noKeyData("sighash type", keyData); err != nil {
				return err
			}
			sighash, err := readUint32("sighash type", value)
			if err != nil {
				return err
			}
			pi.SighashType = btctxscript.SigHashType(sighash)

		case RedeemScriptInputType:
			if err := noKeyData("redeem script", keyData); err != nil {
				return err
			}
			pi.RedeemScript = value

		case WitnessScriptInputType:
			if err := noKeyData("witness script", keyData); err != nil {
				return err
			}
			pi.WitnessScript = value

		case Bip32DerivationInputType:
			derivation, err := readBip32Derivation(keyData, value)
			if err != nil {
				return err
			}
			pi.Bip32Derivation = append(pi.Bip32Derivation, derivation)

		case FinalScriptSigType:
			if err := noKeyData("final script sig", keyData); err != nil {
				return err
			}
			pi.FinalScriptSig = value

		case FinalScriptWitnessType:
			if err := noKeyData("final script witness", keyData); err != nil {
				return err
			}
			witness, err := parseWitness("final script witness", value)
			if err != nil {
				return err
			}
			pi.FinalScriptWitness = witness

		case Ripemd160PreimageType, Sha256PreimageType,
			Hash160PreimageType, Hash256PreimageType:

			kind := preimageTypes[InputType(keyCode)]
			if len(keyData) != kind.DigestLen() {
				return psetError(ErrInvalidKeyData, "%s preimage "+
					"key has %d bytes, want %d", kind,
					len(keyData), kind.DigestLen())
			}
			if !bytes.Equal(primitives.Default.Hash(kind, value), keyData) {
				return psetError(ErrInvalidFormat, "%s preimage "+
					"does not hash to %x", kind, keyData)
			}
			pi.Preimages = append(pi.Preimages, &Preimage{
				Kind:     kind,
				Hash:     keyData,
				Preimage: value,
			})

		case PreviousTxidType:
			if err := noKeyData("previous txid", keyData); err != nil {
				return err
			}
			if err := fixedValue("previous txid", value, 32); err != nil {
				return err
			}
			copy(pi.PreviousTxid[:], value)
			hasTxid = true

		case OutputIndexType:
			if err := noKeyData("output index", keyData); err != nil {
				return err
			}
			pi.PreviousOutputIndex, err = readUint32("output index", value)
			if err != nil {
				return err
			}
			hasIndex = true

		case SequenceType:
			if err := noKeyData("sequence", keyData); err != nil {
				return err
			}
			pi.Sequence, err = readUint32("sequence", value)
			if err != nil {
				return err
			}
			pi.sequenceSet = true

		case RequiredTimeLockTimeType, RequiredHeightLockTimeType:
			if err := noKeyData("required lock time", keyData); err != nil {
				return err
			}
			lockTime, err := readUint32("required lock time", value)
			if err != nil {
				return err
			}
			if err := pi.setRequiredLockTime(InputType(keyCode),
				lockTime); err != nil {

				return err
			}

		case ProprietaryInputType:
			subtype, rest, ok := parseProprietary(keyData)
			if !ok {
				pi.Unknowns = append(pi.Unknowns,
					newUnknown(keyCode, keyData, value))
				continue
			}
			known, err := pi.deserializeProprietary(subtype, rest, value)
			if err != nil {
				return err
			}
			if !known {
				pi.Unknowns = append(pi.Unknowns,
					newUnknown(keyCode, keyData, value))
			}

		default:
			pi.Unknowns = append(pi.Unknowns,
				newUnknown(keyCode, keyData, value))
		}
	}

	if !hasTxid || !hasIndex {
		return psetError(ErrMissingField, "input is missing its "+
			"previous txid or output index")
	}
	return nil
}

// setRequiredLockTime checks a required lock time falls on the side of the
// threshold its key type names.
func (pi *Input) setRequiredLockTime(keyType InputType, lockTime uint32) error {
	isTime := lockTime >= btctxscript.LockTimeThreshold
	if keyType == RequiredTimeLockTimeType {
		if !isTime {
			return psetError(ErrInvalidFormat, "required time lock "+
				"time %d is a height", lockTime)
		}
		pi.RequiredTimeLockTime = &lockTime
		return nil
	}
	if isTime || lockTime == 0 {
		return psetError(ErrInvalidFormat, "required height lock "+
			"time %d is not a height", lockTime)
	}
	pi.RequiredHeightLockTime = &lockTime
	return nil
}

// deserializeProprietary decodes an Elements proprietary entry.  known is
// false for subtypes the package does not interpret.
func (pi *Input) deserializeProprietary(subtype byte, keyData,
	value []byte) (known bool, err error) {

	if len(keyData) != 0 {
		return false, nil
	}

	switch subtype {
	case inIssuanceValue:
		v, err := readUint64("issuance value", value)
		if err != nil {
			return true, err
		}
		pi.IssuanceValue = &v

	case inIssuanceValueCommitment:
		if _, err := wire.NewValueCommitment(value); err != nil {
			return true, psetError(ErrInvalidFormat, "issuance "+
				"value commitment: %v", err)
		}
		pi.IssuanceValueCommitment = value

	case inIssuanceValueRangeProof:
		pi.IssuanceValueRangeProof = value

	case inIssuanceKeysRangeProof:
		pi.IssuanceKeysRangeProof = value

	case inPeginTx:
		tx := &btcwire.MsgTx{}
		if err := tx.Deserialize(bytes.NewReader(value)); err != nil {
			return true, psetError(ErrInvalidFormat, "pegin tx: %v",
				err)
		}
		pi.PeginTx = tx

	case inPeginTxoutProof:
		pi.PeginTxoutProof = value

	case inPeginGenesis:
		if err := fixedValue("pegin genesis hash", value, 32); err != nil {
			return true, err
		}
		hash, _ := chainhash.NewHash(value)
		pi.PeginGenesisHash = hash

	case inPeginClaimScript:
		pi.PeginClaimScript = value

	case inPeginValue:
		v, err := readUint64("pegin value", value)
		if err != nil {
			return true, err
		}
		pi.PeginValue = &v

	case inPeginWitness:
		witness, err := parseWitness("pegin witness", value)
		if err != nil {
			return true, err
		}
		pi.PeginWitness = witness

	case inIssuanceInflationKeys:
		v, err := readUint64("issuance inflation keys", value)
		if err != nil {
			return true, err
		}
		pi.IssuanceInflationKeys = &v

	case inIssuanceInflationKeysCommitment:
		if _, err := wire.NewValueCommitment(value); err != nil {
			return true, psetError(ErrInvalidFormat, "issuance "+
				"inflation keys commitment: %v", err)
		}
		pi.IssuanceInflationKeysCommitment = value

	case inIssuanceBlindingNonce:
		pi.IssuanceBlindingNonce, err = read32("issuance blinding nonce",
			value)
		return true, err

	case inIssuanceAssetEntropy:
		pi.IssuanceAssetEntropy, err = read32("issuance asset entropy",
			value)
		return true, err

	default:
		return false, nil
	}
	return true, nil
}

// serialize attempts to serialize the target Input into the passed
// io.Writer.
func (pi *Input) serialize(w io.Writer) error {
	if pi.NonWitnessUtxo != nil {
		var buf bytes.Buffer
		if err := pi.NonWitnessUtxo.Serialize(&buf); err != nil {
			return err
		}
		err := serializeKVPairWithType(w, uint8(NonWitnessUtxoType), nil,
			buf.Bytes())
		if err != nil {
			return err
		}
	}
	if pi.WitnessUtxo != nil {
		var buf bytes.Buffer
		if err := pi.WitnessUtxo.Serialize(&buf); err != nil {
			return err
		}
		err := serializeKVPairWithType(w, uint8(WitnessUtxoType), nil,
			buf.Bytes())
		if err != nil {
			return err
		}
	}

	// Signing data is dropped once the input is final.
	if !pi.IsFinal() {
		sort.Sort(psbt.PartialSigSorter(pi.PartialSigs))
		for _, ps := range pi.PartialSigs {
			err := serializeKVPairWithType(w, uint8(PartialSigType),
				ps.PubKey, ps.Signature)
			if err != nil {
				return err
			}
		}

		if pi.SighashType != 0 {
			err := serializeKVPairWithType(w, uint8(SighashType), nil,
				uint32Bytes(uint32(pi.SighashType)))
			if err != nil {
				return err
			}
		}
		if pi.RedeemScript != nil {
			err := serializeKVPairWithType(w,
				uint8(RedeemScriptInputType), nil, pi.RedeemScript)
			if err != nil {
				return err
			}
		}
		if pi.WitnessScript != nil {
			err := serializeKVPairWithType(w,
				uint8(WitnessScriptInputType), nil, pi.WitnessScript)
			if err != nil {
				return err
			}
		}
		err := serializeBip32Derivations(w,
			uint8(Bip32DerivationInputType), pi.Bip32Derivation)
		if err != nil {
			return err
		}
	}

	if pi.FinalScriptSig != nil {
		err := serializeKVPairWithType(w, uint8(FinalScriptSigType), nil,
			pi.FinalScriptSig)
		if err != nil {
			return err
		}
	}
	if pi.FinalScriptWitness != nil {
		err := serializeKVPairWithType(w, uint8(FinalScriptWitnessType),
			nil, serializeWitness(pi.FinalScriptWitness))
		if err != nil {
			return err
		}
	}

	if !pi.IsFinal() {
		sort.Slice(pi.Preimages, func(i, j int) bool {
			a, b := pi.Preimages[i], pi.Preimages[j]
			if a.Kind != b.Kind {
				return preimageKeyType(a.Kind) <
					preimageKeyType(b.Kind)
			}
			return bytes.Compare(a.Hash, b.Hash) < 0
		})
		for _, p := range pi.Preimages {
			err := serializeKVPairWithType(w,
				uint8(preimageKeyType(p.Kind)), p.Hash, p.Preimage)
			if err != nil {
				return err
			}
		}
	}

	err := serializeKVPairWithType(w, uint8(PreviousTxidType), nil,
		pi.PreviousTxid[:])
	if err != nil {
		return err
	}
	err = serializeKVPairWithType(w, uint8(OutputIndexType), nil,
		uint32Bytes(pi.PreviousOutputIndex))
	if err != nil {
		return err
	}
	if pi.sequenceSet || pi.Sequence != wire.MaxTxInSequenceNum {
		err := serializeKVPairWithType(w, uint8(SequenceType), nil,
			uint32Bytes(pi.Sequence))
		if err != nil {
			return err
		}
	}
	if pi.RequiredTimeLockTime != nil {
		err := serializeKVPairWithType(w, uint8(RequiredTimeLockTimeType),
			nil, uint32Bytes(*pi.RequiredTimeLockTime))
		if err != nil {
			return err
		}
	}
	if pi.RequiredHeightLockTime != nil {
		err := serializeKVPairWithType(w,
			uint8(RequiredHeightLockTimeType), nil,
			uint32Bytes(*pi.RequiredHeightLockTime))
		if err != nil {
			return err
		}
	}

	if err := pi.serializeProprietary(w); err != nil {
		return err
	}
	return serializeUnknowns(w, pi.Unknowns)
}

// serializeProprietary writes the Elements fields in subtype order.
func (pi *Input) serializeProprietary(w io.Writer) error {
	type entry struct {
		subtype byte
		value   []byte
	}
	var entries []entry
	add := func(subtype byte, value []byte) {
		if value != nil {
			entries = append(entries, entry{subtype, value})
		}
	}

	if pi.IssuanceValue != nil {
		add(inIssuanceValue, uint64Bytes(*pi.IssuanceValue))
	}
	add(inIssuanceValueCommitment, pi.IssuanceValueCommitment)
	add(inIssuanceValueRangeProof, pi.IssuanceValueRangeProof)
	add(inIssuanceKeysRangeProof, pi.IssuanceKeysRangeProof)
	if pi.PeginTx != nil {
		var buf bytes.Buffer
		if err := pi.PeginTx.Serialize(&buf); err != nil {
			return err
		}
		add(inPeginTx, buf.Bytes())
	}
	add(inPeginTxoutProof, pi.PeginTxoutProof)
	if pi.PeginGenesisHash != nil {
		add(inPeginGenesis, pi.PeginGenesisHash[:])
	}
	add(inPeginClaimScript, pi.PeginClaimScript)
	if pi.PeginValue != nil {
		add(inPeginValue, uint64Bytes(*pi.PeginValue))
	}
	if pi.PeginWitness != nil {
		add(inPeginWitness, serializeWitness(pi.PeginWitness))
	}
	if pi.IssuanceInflationKeys != nil {
		add(inIssuanceInflationKeys,
			uint64Bytes(*pi.IssuanceInflationKeys))
	}
	add(inIssuanceInflationKeysCommitment,
		pi.IssuanceInflationKeysCommitment)
	if pi.IssuanceBlindingNonce != nil {
		add(inIssuanceBlindingNonce, pi.IssuanceBlindingNonce[:])
	}
	if pi.IssuanceAssetEntropy != nil {
		add(inIssuanceAssetEntropy, pi.IssuanceAssetEntropy[:])
	}

	for _, e := range entries {
		if err := serializeProprietary(w, e.subtype, nil, e.value); err != nil {
			return err
		}
	}
	return nil
}

// readBip32Derivation decodes a BIP32 derivation entry keyed by its public
// key.
func readBip32Derivation(keyData, value []byte) (*psbt.Bip32Derivation,
	error) {

	if err := checkPubKey("bip32 derivation", keyData); err != nil {
		return nil, err
	}
	fingerprint, path, err := psbt.ReadBip32Derivation(value)
	if err != nil {
		return nil, psetError(ErrInvalidFormat, "bip32 derivation: %v",
			err)
	}
	return &psbt.Bip32Derivation{
		PubKey:               keyData,
		MasterKeyFingerprint: fingerprint,
		Bip32Path:            path,
	}, nil
}

// serializeBip32Derivations writes derivations sorted by public key.
func serializeBip32Derivations(w io.Writer, keyType uint8,
	derivations []*psbt.Bip32Derivation) error {

	sort.Sort(psbt.Bip32Sorter(derivations))
	for _, kd := range derivations {
		err := serializeKVPairWithType(w, keyType, kd.PubKey,
			psbt.SerializeBIP32Derivation(kd.MasterKeyFingerprint,
				kd.Bip32Path))
		if err != nil {
			return err
		}
	}
	return nil
}
