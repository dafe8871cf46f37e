// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/txscript"
)

// Addresses are the standard addresses paying to one public key or one
// script.  Only the fields matching the source are set.
type Addresses struct {
	P2PKH    *Address
	P2WPKH   *Address
	P2SHWPKH *Address

	P2SH    *Address
	P2WSH   *Address
	P2SHWSH *Address
}

// blind makes every address of the set confidential.
func (s *Addresses) blind(key *btcec.PublicKey) {
	for _, a := range []**Address{
		&s.P2PKH, &s.P2WPKH, &s.P2SHWPKH, &s.P2SH, &s.P2WSH, &s.P2SHWSH,
	} {
		if *a != nil {
			*a = (*a).Confidential(key)
		}
	}
}

// ForPubKey returns the P2PKH, P2WPKH and P2SH-P2WPKH addresses of a key.  A
// non-nil blinder makes them confidential.
func ForPubKey(key, blinder *btcec.PublicKey,
	net *chaincfg.Params) (*Addresses, error) {

	hash := btcutil.Hash160(key.SerializeCompressed())
	p2pkh, err := NewPubKeyHash(hash, net)
	if err != nil {
		return nil, err
	}
	p2wpkh, err := NewWitness(0, hash, net)
	if err != nil {
		return nil, err
	}
	redeem, err := txscript.PayToWitnessScript(0, hash)
	if err != nil {
		return nil, err
	}
	p2shwpkh, err := NewScriptHash(redeem, net)
	if err != nil {
		return nil, err
	}

	set := &Addresses{P2PKH: p2pkh, P2WPKH: p2wpkh, P2SHWPKH: p2shwpkh}
	if blinder != nil {
		set.blind(blinder)
	}
	return set, nil
}

// ForScript returns the P2SH, P2WSH and P2SH-P2WSH addresses of a script.  A
// non-nil blinder makes them confidential.
func ForScript(script []byte, blinder *btcec.PublicKey,
	net *chaincfg.Params) (*Addresses, error) {

	p2sh, err := NewScriptHash(script, net)
	if err != nil {
		return nil, err
	}
	witnessHash := sha256.Sum256(script)
	p2wsh, err := NewWitness(0, witnessHash[:], net)
	if err != nil {
		return nil, err
	}
	redeem, err := txscript.PayToWitnessScript(0, witnessHash[:])
	if err != nil {
		return nil, err
	}
	p2shwsh, err := NewScriptHash(redeem, net)
	if err != nil {
		return nil, err
	}

	set := &Addresses{P2SH: p2sh, P2WSH: p2wsh, P2SHWSH: p2shwsh}
	if blinder != nil {
		set.blind(blinder)
	}
	return set, nil
}
