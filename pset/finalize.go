// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	btctxscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/elementsutil/primitives"
	"github.com/btcsuite/elementsutil/txscript"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
	"github.com/btcsuite/elementsutil/wire"
)

// partialSig returns the partial signature of a public key, or nil.
func (pi *Input) partialSig(pubKey []byte) *psbt.PartialSig {
	for _, sig := range pi.PartialSigs {
		if bytes.Equal(sig.PubKey, pubKey) {
			return sig
		}
	}
	return nil
}

// lookupKey returns the public key hashing to keyHash among the keys the
// input knows of.
func (pi *Input) lookupKey(keyHash []byte) ([]byte, bool) {
	keys := make([][]byte, 0, len(pi.PartialSigs)+len(pi.Bip32Derivation))
	for _, sig := range pi.PartialSigs {
		keys = append(keys, sig.PubKey)
	}
	for _, d := range pi.Bip32Derivation {
		keys = append(keys, d.PubKey)
	}
	for _, key := range keys {
		if bytes.Equal(btcutil.Hash160(key), keyHash) {
			return key, true
		}
	}
	return nil, false
}

// LockTime returns the lock time of the transaction.  When no input
// requires one the fallback lock time is used.  Otherwise the lock time is
// the largest requirement of the kind every constrained input accepts,
// heights first.
func (p *Packet) LockTime() (uint32, error) {
	var (
		constrained        bool
		timeOK, heightOK   = true, true
		maxTime, maxHeight uint32
	)
	for _, pi := range p.Inputs {
		t, h := pi.RequiredTimeLockTime, pi.RequiredHeightLockTime
		if t == nil && h == nil {
			continue
		}
		constrained = true
		if t == nil {
			timeOK = false
		} else if *t > maxTime {
			maxTime = *t
		}
		if h == nil {
			heightOK = false
		} else if *h > maxHeight {
			maxHeight = *h
		}
	}

	switch {
	case !constrained:
		if p.FallbackLockTime != nil {
			return *p.FallbackLockTime, nil
		}
		return 0, nil
	case heightOK:
		return maxHeight, nil
	case timeOK:
		return maxTime, nil
	default:
		return 0, psetError(ErrLockTimeConflict, "inputs require both "+
			"a height and a time lock")
	}
}

// satisfier returns the miniscript satisfier drawing on the signatures,
// preimages and lock times of input i.
func (p *Packet) satisfier(i int) *miniscript.Satisfier {
	pi := p.Inputs[i]
	return &miniscript.Satisfier{
		Sign: func(pubKey []byte) ([]byte, bool) {
			sig := pi.partialSig(pubKey)
			if sig == nil {
				return nil, false
			}
			return sig.Signature, true
		},
		Preimage: func(hashFunc string, hash []byte) ([]byte, bool) {
			kind, ok := primitives.HashKindFromString(hashFunc)
			if !ok {
				return nil, false
			}
			return pi.Preimage(kind, hash)
		},
		LookupKey: pi.lookupKey,
		CheckOlder: func(lockTime uint32) (bool, error) {
			return miniscript.CheckOlder(lockTime, p.TxVersion,
				pi.Sequence), nil
		},
		CheckAfter: func(lockTime uint32) (bool, error) {
			txLockTime, err := p.LockTime()
			if err != nil {
				return false, err
			}
			return miniscript.CheckAfter(lockTime, txLockTime,
				pi.Sequence), nil
		},
	}
}

// satisfyScript builds the witness stack satisfying a miniscript script.
func (p *Packet) satisfyScript(i int, script []byte,
	ctx *miniscript.Context) (wire.TxWitness, error) {

	ast, err := miniscript.Analyze(script, ctx)
	if err != nil {
		return nil, psetError(ErrNotFinalizable, "input %d: script is "+
			"not miniscript: %v", i, err)
	}
	stack, err := ast.Satisfy(p.satisfier(i))
	if err != nil {
		return nil, psetError(ErrNotFinalizable, "input %d: %v", i, err)
	}
	return stack, nil
}

// keyHashSpend returns the signature and public key spending a pay to
// pubkey hash output.
func (p *Packet) keyHashSpend(i int, keyHash []byte) ([]byte, []byte, error) {
	pi := p.Inputs[i]
	for _, sig := range pi.PartialSigs {
		if bytes.Equal(btcutil.Hash160(sig.PubKey), keyHash) {
			return sig.Signature, sig.PubKey, nil
		}
	}
	return nil, nil, psetError(ErrNotFinalizable, "input %d has no "+
		"signature for key hash %x", i, keyHash)
}

// pushes returns a script pushing each item.
func pushes(items ...[]byte) ([]byte, error) {
	builder := btctxscript.NewScriptBuilder()
	for _, item := range items {
		builder.AddData(item)
	}
	return builder.Script()
}

// Finalize builds the final script signature and witness of input i from
// its partial signatures, preimages and scripts, and drops the data only
// signers need.  Pay to pubkey hash, pay to witness pubkey hash, pay to
// witness script hash and pay to script hash spends, nested segwit
// included, are supported.  Script spends must be miniscript.
func (p *Packet) Finalize(i int) error {
	if i < 0 || i >= len(p.Inputs) {
		return psetError(ErrIndexOutOfRange, "input %d out of range "+
			"for %d inputs", i, len(p.Inputs))
	}
	pi := p.Inputs[i]
	if pi.IsFinal() {
		return nil
	}

	prevOut := pi.PrevOut()
	if prevOut == nil {
		return psetError(ErrNotFinalizable, "input %d has no utxo", i)
	}
	for _, sig := range pi.PartialSigs {
		if !checkSigHashFlags(sig.Signature, pi) {
			return psetError(ErrNotFinalizable, "input %d: signature "+
				"of %x does not use the requested sighash type",
				i, sig.PubKey)
		}
	}

	var (
		scriptSig []byte
		witness   wire.TxWitness
		nested    bool
		err       error
	)
	script := prevOut.PkScript
	class := txscript.GetScriptClass(script)
	if class == txscript.ScriptHashTy {
		if pi.RedeemScript == nil {
			return psetError(ErrNotFinalizable, "input %d is missing "+
				"its redeem script", i)
		}
		if !bytes.Equal(btcutil.Hash160(pi.RedeemScript), script[2:22]) {
			return psetError(ErrNotFinalizable, "input %d: redeem "+
				"script does not match the script hash", i)
		}
		script, nested = pi.RedeemScript, true
		class = txscript.GetScriptClass(script)
	}

	switch class {
	case txscript.WitnessV0PubKeyHashTy:
		sig, pubKey, err := p.keyHashSpend(i, script[2:])
		if err != nil {
			return err
		}
		witness = wire.TxWitness{sig, pubKey}

	case txscript.WitnessV0ScriptHashTy:
		if pi.WitnessScript == nil {
			return psetError(ErrNotFinalizable, "input %d is missing "+
				"its witness script", i)
		}
		scriptHash := sha256.Sum256(pi.WitnessScript)
		if !bytes.Equal(scriptHash[:], script[2:]) {
			return psetError(ErrNotFinalizable, "input %d: witness "+
				"script does not match the script hash", i)
		}
		witness, err = p.satisfyScript(i, pi.WitnessScript,
			miniscript.SegwitV0)
		if err != nil {
			return err
		}
		witness = append(witness, pi.WitnessScript)

	case txscript.PubKeyHashTy:
		sig, pubKey, err := p.keyHashSpend(i, script[3:23])
		if err != nil {
			return err
		}
		scriptSig, err = pushes(sig, pubKey)
		if err != nil {
			return err
		}

	default:
		stack, err := p.satisfyScript(i, script, miniscript.Legacy)
		if err != nil {
			return err
		}
		scriptSig, err = pushes(stack...)
		if err != nil {
			return err
		}
	}

	// The redeem script closes the script signature of a P2SH spend.
	if nested {
		redeemPush, err := pushes(pi.RedeemScript)
		if err != nil {
			return err
		}
		scriptSig = append(scriptSig, redeemPush...)
	}

	pi.FinalScriptSig = nil
	if len(scriptSig) > 0 {
		pi.FinalScriptSig = scriptSig
	}
	pi.FinalScriptWitness = witness
	pi.PartialSigs = nil
	pi.SighashType = 0
	pi.RedeemScript = nil
	pi.WitnessScript = nil
	pi.Bip32Derivation = nil
	pi.Preimages = nil

	log.Debugf("Finalized input %d (%v spend)", i, class)
	return nil
}

// FinalizeAll finalizes every input.
func (p *Packet) FinalizeAll() error {
	for i := range p.Inputs {
		if err := p.Finalize(i); err != nil {
			return err
		}
	}
	return nil
}

// IsComplete returns whether every input is final.
func (p *Packet) IsComplete() bool {
	for _, pi := range p.Inputs {
		if !pi.IsFinal() {
			return false
		}
	}
	return true
}

// Tx builds the transaction the PSET describes, with the final scripts of
// the inputs that have them.
func (p *Packet) Tx() (*wire.MsgTx, error) {
	lockTime, err := p.LockTime()
	if err != nil {
		return nil, err
	}
	tx := wire.NewMsgTx(p.TxVersion)
	tx.LockTime = lockTime

	for i, pi := range p.Inputs {
		txIn := &wire.TxIn{
			PreviousOutPoint: pi.OutPoint(),
			IsPegin:          pi.IsPegin(),
			SignatureScript:  pi.FinalScriptSig,
			Sequence:         pi.Sequence,
			Witness:          pi.FinalScriptWitness,
			PeginWitness:     pi.PeginWitness,
		}
		if pi.HasIssuance() {
			txIn.Issuance, err = pi.issuance()
			if err != nil {
				return nil, psetError(ErrInvalidFormat, "input "+
					"%d: %v", i, err)
			}
			txIn.IssuanceRangeProof = pi.IssuanceValueRangeProof
			txIn.InflationKeysRangeProof = pi.IssuanceKeysRangeProof
		}
		tx.AddTxIn(txIn)
	}
	for i, po := range p.Outputs {
		txOut, err := po.TxOut()
		if err != nil {
			return nil, psetError(errorCode(err), "output %d: %v", i,
				err)
		}
		tx.AddTxOut(txOut)
	}
	return tx, nil
}

// Extract returns the signed transaction of a PSET whose inputs are all
// final.
func (p *Packet) Extract() (*wire.MsgTx, error) {
	for i, pi := range p.Inputs {
		if !pi.IsFinal() {
			return nil, psetError(ErrNotFinalized, "input %d is not "+
				"finalized", i)
		}
	}
	return p.Tx()
}
