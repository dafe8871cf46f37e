// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/elementsutil/wire"
)

// Merge combines the data of other into p.  Both must describe the same
// transaction: the same version, the same spent outputs and the same output
// scripts.  Keyed entries such as partial signatures are united; a field set
// in both keeps the value of p.
func (p *Packet) Merge(other *Packet) error {
	if err := p.checkMergeable(other); err != nil {
		return err
	}

	fillPtr(&p.FallbackLockTime, other.FallbackLockTime)
	fillPtr(&p.TxModifiable, other.TxModifiable)
	fillPtr(&p.ElementsTxModifiable, other.ElementsTxModifiable)
	for _, xpub := range other.XPubs {
		if !p.hasXPub(xpub.ExtendedKey) {
			p.XPubs = append(p.XPubs, xpub)
		}
	}
	for _, scalar := range other.Scalars {
		if !p.hasScalar(scalar) {
			p.Scalars = append(p.Scalars, scalar)
		}
	}
	p.Unknowns = mergeUnknowns(p.Unknowns, other.Unknowns)

	for i, pInput := range p.Inputs {
		pInput.merge(other.Inputs[i])
	}
	for i, pOutput := range p.Outputs {
		pOutput.merge(other.Outputs[i])
	}

	log.Debugf("Merged PSET with %d inputs and %d outputs",
		len(p.Inputs), len(p.Outputs))
	return nil
}

func (p *Packet) checkMergeable(other *Packet) error {
	switch {
	case p.TxVersion != other.TxVersion:
		return psetError(ErrMergeConflict, "transaction versions %d "+
			"and %d differ", p.TxVersion, other.TxVersion)

	case len(p.Inputs) != len(other.Inputs):
		return psetError(ErrMergeConflict, "input counts %d and %d "+
			"differ", len(p.Inputs), len(other.Inputs))

	case len(p.Outputs) != len(other.Outputs):
		return psetError(ErrMergeConflict, "output counts %d and %d "+
			"differ", len(p.Outputs), len(other.Outputs))
	}

	for i, pInput := range p.Inputs {
		theirs := other.Inputs[i]
		if pInput.PreviousTxid != theirs.PreviousTxid ||
			pInput.PreviousOutputIndex != theirs.PreviousOutputIndex {

			return psetError(ErrMergeConflict, "input %d spends %v "+
				"in one PSET and %v in the other", i,
				pInput.OutPoint(), theirs.OutPoint())
		}
	}
	for i, pOutput := range p.Outputs {
		if !bytes.Equal(pOutput.Script, other.Outputs[i].Script) {
			return psetError(ErrMergeConflict, "output %d pays "+
				"different scripts", i)
		}
	}
	return nil
}

func (p *Packet) hasXPub(key []byte) bool {
	for _, xpub := range p.XPubs {
		if bytes.Equal(xpub.ExtendedKey, key) {
			return true
		}
	}
	return false
}

func (p *Packet) hasScalar(scalar [32]byte) bool {
	for _, s := range p.Scalars {
		if s == scalar {
			return true
		}
	}
	return false
}

func (pi *Input) merge(other *Input) {
	fillPtr(&pi.NonWitnessUtxo, other.NonWitnessUtxo)
	fillPtr(&pi.WitnessUtxo, other.WitnessUtxo)
	if pi.SighashType == 0 {
		pi.SighashType = other.SighashType
	}
	fillBytes(&pi.RedeemScript, other.RedeemScript)
	fillBytes(&pi.WitnessScript, other.WitnessScript)
	fillBytes(&pi.FinalScriptSig, other.FinalScriptSig)
	if pi.FinalScriptWitness == nil {
		pi.FinalScriptWitness = other.FinalScriptWitness
	}

	for _, sig := range other.PartialSigs {
		if pi.partialSig(sig.PubKey) == nil {
			pi.PartialSigs = append(pi.PartialSigs, sig)
		}
	}
	pi.Bip32Derivation = mergeDerivations(pi.Bip32Derivation,
		other.Bip32Derivation)
	for _, p := range other.Preimages {
		if _, ok := pi.Preimage(p.Kind, p.Hash); !ok {
			pi.Preimages = append(pi.Preimages, p)
		}
	}

	if !pi.sequenceSet && pi.Sequence == wire.MaxTxInSequenceNum {
		pi.Sequence, pi.sequenceSet = other.Sequence, other.sequenceSet
	}
	fillPtr(&pi.RequiredTimeLockTime, other.RequiredTimeLockTime)
	fillPtr(&pi.RequiredHeightLockTime, other.RequiredHeightLockTime)

	fillPtr(&pi.IssuanceValue, other.IssuanceValue)
	fillBytes(&pi.IssuanceValueCommitment, other.IssuanceValueCommitment)
	fillBytes(&pi.IssuanceValueRangeProof, other.IssuanceValueRangeProof)
	fillBytes(&pi.IssuanceKeysRangeProof, other.IssuanceKeysRangeProof)
	fillPtr(&pi.IssuanceInflationKeys, other.IssuanceInflationKeys)
	fillBytes(&pi.IssuanceInflationKeysCommitment,
		other.IssuanceInflationKeysCommitment)
	fillPtr(&pi.IssuanceBlindingNonce, other.IssuanceBlindingNonce)
	fillPtr(&pi.IssuanceAssetEntropy, other.IssuanceAssetEntropy)

	fillPtr(&pi.PeginTx, other.PeginTx)
	fillBytes(&pi.PeginTxoutProof, other.PeginTxoutProof)
	fillPtr(&pi.PeginGenesisHash, other.PeginGenesisHash)
	fillBytes(&pi.PeginClaimScript, other.PeginClaimScript)
	fillPtr(&pi.PeginValue, other.PeginValue)
	if pi.PeginWitness == nil {
		pi.PeginWitness = other.PeginWitness
	}

	pi.Unknowns = mergeUnknowns(pi.Unknowns, other.Unknowns)
}

func (po *Output) merge(other *Output) {
	fillBytes(&po.RedeemScript, other.RedeemScript)
	fillBytes(&po.WitnessScript, other.WitnessScript)
	po.Bip32Derivation = mergeDerivations(po.Bip32Derivation,
		other.Bip32Derivation)
	fillPtr(&po.Amount, other.Amount)
	fillBytes(&po.ValueCommitment, other.ValueCommitment)
	fillPtr(&po.Asset, other.Asset)
	fillBytes(&po.AssetCommitment, other.AssetCommitment)
	fillBytes(&po.ValueRangeProof, other.ValueRangeProof)
	fillBytes(&po.AssetSurjectionProof, other.AssetSurjectionProof)
	fillBytes(&po.BlindingPubKey, other.BlindingPubKey)
	fillBytes(&po.EcdhPubKey, other.EcdhPubKey)
	fillPtr(&po.BlinderIndex, other.BlinderIndex)
	fillBytes(&po.BlindValueProof, other.BlindValueProof)
	fillBytes(&po.BlindAssetProof, other.BlindAssetProof)
	po.Unknowns = mergeUnknowns(po.Unknowns, other.Unknowns)
}

// fillPtr sets *dst to src when dst is unset.
func fillPtr[T any](dst **T, src *T) {
	if *dst == nil {
		*dst = src
	}
}

func fillBytes(dst *[]byte, src []byte) {
	if *dst == nil {
		*dst = src
	}
}

func mergeDerivations(ours,
	theirs []*psbt.Bip32Derivation) []*psbt.Bip32Derivation {

next:
	for _, d := range theirs {
		for _, have := range ours {
			if bytes.Equal(have.PubKey, d.PubKey) {
				continue next
			}
		}
		ours = append(ours, d)
	}
	return ours
}

func mergeUnknowns(ours, theirs []*psbt.Unknown) []*psbt.Unknown {
next:
	for _, u := range theirs {
		for _, have := range ours {
			if bytes.Equal(have.Key, u.Key) {
				continue next
			}
		}
		ours = append(ours, u)
	}
	return ours
}
