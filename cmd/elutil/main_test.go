// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// unblindedTx is a version 2 transaction spending one legacy P2PKH output
// into one explicit output of 1 L-BTC.
const unblindedTx = "02000000000101" +
	"02030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20" +
	"00000000" +
	"6a47304411111111111111111111111111111111111111111111111111111111" +
	"1111111111111111111111111111111111111111111111111111111111111111" +
	"11111111111111110121022222222222222222222222222222222222222222" +
	"222222222222222222222222" +
	"ffffffff" +
	"01" +
	"016d521c38ec1ea15734ae22b7c46064412829c0d0579f0a713d1c04ede979026f" +
	"010000000005f5e100" +
	"00" +
	"1976a914333333333333333333333333333333333333333388ac" +
	"00000000"

func testPubKeyHex(name string) string {
	privKey, _ := btcec.PrivKeyFromBytes(chainhash.HashB([]byte(name)))
	return hex.EncodeToString(privKey.PubKey().SerializeCompressed())
}

// runCommand executes a command against the regtest network with the given
// stdin and returns what it printed.
func runCommand(t *testing.T, input string, asYAML bool,
	execute func([]string) error, args ...string) (string, error) {

	t.Helper()

	var out bytes.Buffer
	stdout, stdin = &out, strings.NewReader(input)
	*cfg = config{
		Network:    "elementsregtest",
		DebugLevel: defaultLogLevel,
		YAML:       asYAML,
	}
	err := execute(args)
	return out.String(), err
}

// decodeJSON splits a stream of JSON documents.
func decodeJSON(t *testing.T, out string) []map[string]interface{} {
	t.Helper()

	var docs []map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var doc map[string]interface{}
		require.NoError(t, dec.Decode(&doc))
		docs = append(docs, doc)
	}
	return docs
}

func TestTxDecodeCreate(t *testing.T) {
	cmd := &txDecodeCmd{Dedupe: true, CacheSize: 10}
	out, err := runCommand(t, "", false, cmd.Execute, unblindedTx,
		unblindedTx)
	require.NoError(t, err)
	docs := decodeJSON(t, out)
	require.Len(t, docs, 1)
	require.Contains(t, docs[0], "txid")

	// Without deduplication every line of stdin is printed.
	cmd = &txDecodeCmd{}
	out, err = runCommand(t, unblindedTx+"\n\n"+unblindedTx+"\n", false,
		cmd.Execute)
	require.NoError(t, err)
	require.Len(t, decodeJSON(t, out), 2)

	// The decoded record builds the same transaction.
	record := out[:strings.Index(out, "}\n{")+2]
	create := &txCreateCmd{}
	out, err = runCommand(t, record, false, create.Execute, "-")
	require.NoError(t, err)
	require.Equal(t, unblindedTx+"\n", out)

	create.RawStdout = true
	out, err = runCommand(t, record, false, create.Execute, "-")
	require.NoError(t, err)
	require.Equal(t, unblindedTx, hex.EncodeToString([]byte(out)))

	_, err = runCommand(t, "", false, (&txDecodeCmd{}).Execute, "zz")
	require.Error(t, err)
	_, err = runCommand(t, "", false, create.Execute)
	require.Error(t, err)
}

func TestScriptPolicy(t *testing.T) {
	keyA, keyB := testPubKeyHex("A"), testPubKeyHex("B")

	policyCmd := &policyCompileCmd{Keys: map[string]string{
		"alice": keyA,
		"bob":   keyB,
	}}
	out, err := runCommand(t, "", false, policyCmd.Execute,
		"or(pk(alice),", "and(pk(bob),older(144)))")
	require.NoError(t, err)
	docs := decodeJSON(t, out)
	require.Len(t, docs, 1)
	compiled := docs[0]["miniscript"].(map[string]interface{})
	script := compiled["script"].(map[string]interface{})["hex"].(string)
	require.NotEmpty(t, docs[0]["p2wsh"])

	// The compiled script analyzes back to a sane miniscript.
	scriptCmd := &scriptDecodeCmd{}
	out, err = runCommand(t, "", false, scriptCmd.Execute, script)
	require.NoError(t, err)
	docs = decodeJSON(t, out)
	require.Equal(t, script, docs[0]["hex"])
	analyzed := docs[0]["miniscript"].(map[string]interface{})
	require.Equal(t, true, analyzed["sane"])
	require.Equal(t, compiled["type"], analyzed["type"])

	// Non miniscript is still described.
	out, err = runCommand(t, "", false, scriptCmd.Execute, "6a")
	require.NoError(t, err)
	docs = decodeJSON(t, out)
	require.NotContains(t, docs[0], "miniscript")

	legacy := &scriptDecodeCmd{Context: "legacy"}
	_, err = runCommand(t, "", false, legacy.Execute, script)
	require.NoError(t, err)

	_, err = runCommand(t, "", false, (&policyCompileCmd{}).Execute,
		"pk(")
	require.Error(t, err)
	_, err = runCommand(t, "", false,
		(&policyCompileCmd{Context: "tapscript"}).Execute, "pk(x)")
	require.Error(t, err)
}

func TestAddressDescriptor(t *testing.T) {
	key, blinder := testPubKeyHex("key"), testPubKeyHex("blinder")

	create := &addressCreateCmd{PubKey: key, Blinder: blinder}
	out, err := runCommand(t, "", true, create.Execute)
	require.NoError(t, err)
	var set map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &set))
	require.NotEmpty(t, set["p2wpkh"])

	inspect := &addressInspectCmd{}
	out, err = runCommand(t, "", false, inspect.Execute, set["p2wpkh"])
	require.NoError(t, err)
	info := decodeJSON(t, out)[0]
	require.Equal(t, blinder, info["blinding_pubkey"])
	require.Equal(t, "elementsregtest", info["network"])

	desc := &descriptorCmd{Blinder: blinder}
	out, err = runCommand(t, "", false, desc.Execute,
		fmt.Sprintf("wpkh(%s)", key))
	require.NoError(t, err)
	require.Equal(t, set["p2wpkh"], decodeJSON(t, out)[0]["address"])

	script := &addressCreateCmd{Script: "51"}
	_, err = runCommand(t, "", false, script.Execute)
	require.NoError(t, err)

	both := &addressCreateCmd{PubKey: key, Script: "51"}
	_, err = runCommand(t, "", false, both.Execute)
	require.Error(t, err)
	_, err = runCommand(t, "", false, (&addressCreateCmd{}).Execute)
	require.Error(t, err)
	bad := &addressCreateCmd{PubKey: key, Blinder: "02"}
	_, err = runCommand(t, "", false, bad.Execute)
	require.Error(t, err)
}

func TestContextForName(t *testing.T) {
	for name, want := range map[string]*miniscript.Context{
		"":         miniscript.SegwitV0,
		"segwitv0": miniscript.SegwitV0,
		"WSH":      miniscript.SegwitV0,
		"legacy":   miniscript.Legacy,
	} {
		ctx, err := contextForName(name)
		require.NoError(t, err)
		require.Equal(t, want, ctx, name)
	}
	_, err := contextForName("p2tr")
	require.Error(t, err)
}

func TestParser(t *testing.T) {
	parser := newParser("elutil")
	for _, name := range []string{"tx-decode", "tx-create",
		"script-decode", "policy-compile", "address-inspect",
		"address-create", "descriptor", "pset-create", "pset-decode",
		"pset-edit", "pset-merge", "pset-finalize"} {

		require.NotNil(t, parser.Find(name), name)
	}
}
