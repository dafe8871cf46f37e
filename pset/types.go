// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

// GlobalType is the key type of an entry in the global map.
type GlobalType uint8

const (
	// XPubType carries an extended public key with its origin.
	XPubType GlobalType = 0x01

	// TxVersionType is the version of the transaction.
	TxVersionType GlobalType = 0x02

	// FallbackLockTimeType is the lock time used when no input requires
	// one.
	FallbackLockTimeType GlobalType = 0x03

	// InputCountType is the number of input maps.
	InputCountType GlobalType = 0x04

	// OutputCountType is the number of output maps.
	OutputCountType GlobalType = 0x05

	// TxModifiableType holds the flags telling which parts of the
	// transaction may still change.
	TxModifiableType GlobalType = 0x06

	// VersionType is the version of the PSET format.
	VersionType GlobalType = 0xfb

	// ProprietaryGlobalType prefixes proprietary entries.
	ProprietaryGlobalType GlobalType = 0xfc
)

// Proprietary subtypes of the global map under the "pset" prefix.
const (
	globalScalar                    = 0x00
	globalElementsTxModifiable      = 0x01
	proprietaryType            byte = 0xfc
)

// InputType is the key type of an entry in an input map.
type InputType uint8

const (
	NonWitnessUtxoType         InputType = 0x00
	WitnessUtxoType            InputType = 0x01
	PartialSigType             InputType = 0x02
	SighashType                InputType = 0x03
	RedeemScriptInputType      InputType = 0x04
	WitnessScriptInputType     InputType = 0x05
	Bip32DerivationInputType   InputType = 0x06
	FinalScriptSigType         InputType = 0x07
	FinalScriptWitnessType     InputType = 0x08
	Ripemd160PreimageType      InputType = 0x0a
	Sha256PreimageType         InputType = 0x0b
	Hash160PreimageType        InputType = 0x0c
	Hash256PreimageType        InputType = 0x0d
	PreviousTxidType           InputType = 0x0e
	OutputIndexType            InputType = 0x0f
	SequenceType               InputType = 0x10
	RequiredTimeLockTimeType   InputType = 0x11
	RequiredHeightLockTimeType InputType = 0x12
	ProprietaryInputType       InputType = 0xfc
)

// Proprietary subtypes of input maps under the "pset" prefix.
const (
	inIssuanceValue                   = 0x00
	inIssuanceValueCommitment         = 0x01
	inIssuanceValueRangeProof         = 0x02
	inIssuanceKeysRangeProof          = 0x03
	inPeginTx                         = 0x04
	inPeginTxoutProof                 = 0x05
	inPeginGenesis                    = 0x06
	inPeginClaimScript                = 0x07
	inPeginValue                      = 0x08
	inPeginWitness                    = 0x09
	inIssuanceInflationKeys           = 0x0a
	inIssuanceInflationKeysCommitment = 0x0b
	inIssuanceBlindingNonce           = 0x0c
	inIssuanceAssetEntropy            = 0x0d
)

// OutputType is the key type of an entry in an output map.
type OutputType uint8

const (
	RedeemScriptOutputType    OutputType = 0x00
	WitnessScriptOutputType   OutputType = 0x01
	Bip32DerivationOutputType OutputType = 0x02
	AmountType                OutputType = 0x03
	ScriptType                OutputType = 0x04
	ProprietaryOutputType     OutputType = 0xfc
)

// Proprietary subtypes of output maps under the "pset" prefix.
const (
	outValueCommitment      = 0x01
	outAsset                = 0x02
	outAssetCommitment      = 0x03
	outValueRangeProof      = 0x04
	outAssetSurjectionProof = 0x05
	outBlindingPubKey       = 0x06
	outEcdhPubKey           = 0x07
	outBlinderIndex         = 0x08
	outBlindValueProof      = 0x09
	outBlindAssetProof      = 0x0a
)
