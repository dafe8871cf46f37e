// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	btcchaincfg "github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// PegoutData is the content of a pegout output script: the genesis hash of
// the parent chain, the parent chain script receiving the coins and any extra
// pushes that follow.
type PegoutData struct {
	GenesisHash  chainhash.Hash
	ScriptPubKey []byte
	ExtraData    [][]byte
}

// pegoutPushes returns the pushes following the OP_RETURN of a pegout
// script, or an error when the script does not follow the template.
func pegoutPushes(script []byte) ([][]byte, error) {
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return nil, scriptError(ErrNotPegout,
			"pegout script must start with OP_RETURN")
	}

	var pushes [][]byte
	tokenizer := txscript.MakeScriptTokenizer(0, script[1:])
	for tokenizer.Next() {
		if tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
			str := fmt.Sprintf("pegout script contains non-push "+
				"opcode at offset %d", tokenizer.ByteIndex())
			return nil, scriptError(ErrNotPegout, str)
		}
		pushes = append(pushes, tokenizer.Data())
	}
	if err := tokenizer.Err(); err != nil {
		return nil, scriptError(ErrMalformedScript, err.Error())
	}

	if len(pushes) < 2 {
		return nil, scriptError(ErrNotPegout,
			"pegout script must push a genesis hash and a script")
	}
	if len(pushes[0]) != chainhash.HashSize {
		str := fmt.Sprintf("pegout genesis hash must be %d bytes, got "+
			"%d", chainhash.HashSize, len(pushes[0]))
		return nil, scriptError(ErrNotPegout, str)
	}
	return pushes, nil
}

// IsPegoutScript returns whether the script follows the pegout template.
func IsPegoutScript(script []byte) bool {
	_, err := pegoutPushes(script)
	return err == nil
}

// ExtractPegoutData parses a pegout output script.
func ExtractPegoutData(script []byte) (*PegoutData, error) {
	pushes, err := pegoutPushes(script)
	if err != nil {
		return nil, err
	}

	data := &PegoutData{ScriptPubKey: pushes[1]}
	copy(data.GenesisHash[:], pushes[0])
	if len(pushes) > 2 {
		data.ExtraData = pushes[2:]
	}
	return data, nil
}

// PegoutScript builds the output script that pegs coins out to scriptPubKey
// on the parent chain identified by genesisHash.
func PegoutScript(genesisHash *chainhash.Hash, scriptPubKey []byte,
	extraData ...[]byte) ([]byte, error) {

	if len(scriptPubKey) == 0 {
		return nil, scriptError(ErrUnsupportedScript,
			"pegout requires a parent chain script")
	}

	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).
		AddData(genesisHash[:]).AddData(scriptPubKey)
	for _, data := range extraData {
		builder.AddData(data)
	}
	script, err := builder.Script()
	if err != nil {
		return nil, scriptError(ErrUnsupportedScript, err.Error())
	}
	log.Tracef("Built pegout script to genesis %v", genesisHash)
	return script, nil
}

// ParentAddress returns the parent chain address receiving the coins of a
// pegout.
func (p *PegoutData) ParentAddress(params *btcchaincfg.Params) (btcutil.Address, error) {
	return ExtractParentAddress(p.ScriptPubKey, params)
}

// ExtractParentAddress returns the single parent chain address a parent chain
// output script pays to.
func ExtractParentAddress(script []byte,
	params *btcchaincfg.Params) (btcutil.Address, error) {

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return nil, scriptError(ErrUnsupportedScript, err.Error())
	}
	if len(addrs) != 1 {
		str := fmt.Sprintf("parent chain script pays to %d addresses",
			len(addrs))
		return nil, scriptError(ErrUnsupportedScript, str)
	}
	return addrs[0], nil
}

// PayToParentAddress returns the parent chain script paying to addr, for use
// as the destination of a pegout.
func PayToParentAddress(addr btcutil.Address) ([]byte, error) {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, scriptError(ErrUnsupportedScript, err.Error())
	}
	return script, nil
}
