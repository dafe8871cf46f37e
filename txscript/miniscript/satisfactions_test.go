package miniscript

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// testRedeem spends a p2wsh(<script of node>) output with a satisfaction
// generated for the node and runs the spend through the script engine.
func testRedeem(t *testing.T, node *AST, sequence uint32,
	signers map[string]bool, hasPreimage bool) error {

	witnessScript, err := node.Script()
	if err != nil {
		return err
	}

	addr, err := btcutil.NewAddressWitnessScriptHash(
		chainhash.HashB(witnessScript), &chaincfg.TestNet3Params,
	)
	if err != nil {
		return err
	}
	utxoAmount := int64(999799)
	utxoPkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return err
	}

	// The spend burns the output with an OP_RETURN.
	burnPkScript, err := txscript.NullDataScript(nil)
	if err != nil {
		return err
	}
	txInput := btcdwire.NewTxIn(&btcdwire.OutPoint{}, nil, nil)
	txInput.Sequence = sequence

	transaction := btcdwire.MsgTx{
		Version: 2,
		TxIn:    []*btcdwire.TxIn{txInput},
		TxOut: []*btcdwire.TxOut{{
			Value:    utxoAmount - 200,
			PkScript: burnPkScript,
		}},
	}
	inputIndex := 0

	previousOutputs := txscript.NewCannedPrevOutputFetcher(
		utxoPkScript, utxoAmount,
	)
	sigHashes := txscript.NewTxSigHashes(&transaction, previousOutputs)
	signatureHash, err := txscript.CalcWitnessSigHash(
		witnessScript, sigHashes, txscript.SigHashAll, &transaction,
		inputIndex, utxoAmount,
	)
	if err != nil {
		return err
	}

	keys := make(map[string]string)
	for name := range signers {
		keys[string(testPubKey(name))] = name
	}

	witness, err := node.Satisfy(&Satisfier{
		CheckOlder: func(lockTime uint32) (bool, error) {
			return CheckOlder(
				lockTime, uint32(transaction.Version),
				transaction.TxIn[inputIndex].Sequence,
			), nil
		},
		CheckAfter: func(lockTime uint32) (bool, error) {
			return CheckAfter(
				lockTime, transaction.LockTime,
				transaction.TxIn[inputIndex].Sequence,
			), nil
		},
		Sign: func(pubKey []byte) ([]byte, bool) {
			name, ok := keys[string(pubKey)]
			if !ok || !signers[name] {
				return nil, false
			}
			signature := ecdsa.Sign(
				testPrivKey(name), signatureHash,
			).Serialize()
			return append(signature, byte(txscript.SigHashAll)), true
		},
		Preimage: func(hashFunc string, hash []byte) ([]byte, bool) {
			if !hasPreimage {
				return nil, false
			}
			switch hashFunc {
			case "sha256":
				return testPreimage, bytes.Equal(
					hash, chainhash.HashB(testPreimage),
				)
			case "hash256":
				return testPreimage, bytes.Equal(
					hash, chainhash.DoubleHashB(testPreimage),
				)
			case "hash160":
				return testPreimage, bytes.Equal(
					hash, btcutil.Hash160(testPreimage),
				)
			}
			return nil, false
		},
		LookupKey: func(keyHash []byte) ([]byte, bool) {
			for name := range signers {
				key := testPubKey(name)
				if bytes.Equal(btcutil.Hash160(key), keyHash) {
					return key, true
				}
			}
			return nil, false
		},
	})
	if err != nil {
		return err
	}

	transaction.TxIn[inputIndex].Witness = btcdwire.TxWitness(
		append(witness, witnessScript),
	)
	engine, err := txscript.NewEngine(
		utxoPkScript, &transaction, inputIndex,
		txscript.StandardVerifyFlags, nil, sigHashes, utxoAmount,
		previousOutputs,
	)
	if err != nil {
		return err
	}
	if err := engine.Execute(); err != nil {
		return err
	}

	// The witness never exceeds the computed maximum.
	size, ok := node.MaxSatisfactionSize()
	require.True(t, ok)
	require.LessOrEqual(t, witness.SerializeSize()-1, size)
	items, ok := node.MaxStackItems()
	require.True(t, ok)
	require.LessOrEqual(t, len(witness), items)

	return nil
}

// TestRedeem tests that the script generated from a miniscript can be spent
// successfully.
func TestRedeem(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		miniscript  string
		comment     string
		valid       bool
		sequence    uint32
		signers     []string
		hasPreimage bool
	}{{
		miniscript: "pk(key1)",
		comment:    "single key",
		valid:      true,
		signers:    []string{"key1"},
	}, {
		miniscript: "pk(key1)",
		comment:    "single key, no signer",
		valid:      false,
	}, {
		miniscript: "pkh(key1)",
		comment:    "key hash",
		valid:      true,
		signers:    []string{"key1"},
	}, {
		miniscript: "and_v(v:pk(key1),older(10))",
		comment:    "key and relative time lock",
		valid:      true,
		sequence:   10,
		signers:    []string{"key1"},
	}, {
		miniscript: "and_v(v:pk(key1),older(10))",
		comment:    "time lock not reached",
		valid:      false,
		sequence:   9,
		signers:    []string{"key1"},
	}, {
		miniscript: "or_d(pk(key1),and_v(v:pk(key2),older(10)))",
		comment:    "recovery key after time lock",
		valid:      true,
		sequence:   10,
		signers:    []string{"key2"},
	}, {
		miniscript: "or_d(pk(key1),and_v(v:pk(key2),older(10)))",
		comment:    "primary key",
		valid:      true,
		signers:    []string{"key1"},
	}, {
		miniscript: "multi(2,key1,key2,key3)",
		comment:    "2-of-3 multisig",
		valid:      true,
		signers:    []string{"key1", "key3"},
	}, {
		miniscript: "multi(2,key1,key2,key3)",
		comment:    "2-of-3 multisig with one signer",
		valid:      false,
		signers:    []string{"key2"},
	}, {
		miniscript: "thresh(2,pk(key1),s:pk(key2),s:pk(key3))",
		comment:    "2-of-3 threshold",
		valid:      true,
		signers:    []string{"key2", "key3"},
	}, {
		miniscript: "thresh(2,pk(key1),s:pk(key2),sln:older(10))",
		comment:    "threshold with time lock",
		valid:      true,
		sequence:   10,
		signers:    []string{"key1"},
	}, {
		miniscript: "thresh(2,pk(key1),s:pk(key2),sln:older(10))",
		comment:    "threshold with time lock not reached",
		valid:      false,
		sequence:   1,
		signers:    []string{"key1"},
	}, {
		miniscript:  "and_v(v:pk(key1),sha256(H))",
		comment:     "key and sha256 preimage",
		valid:       true,
		signers:     []string{"key1"},
		hasPreimage: true,
	}, {
		miniscript: "and_v(v:pk(key1),sha256(H))",
		comment:    "missing preimage",
		valid:      false,
		signers:    []string{"key1"},
	}, {
		miniscript:  "and_v(v:pk(key1),hash160(H20))",
		comment:     "key and hash160 preimage",
		valid:       true,
		signers:     []string{"key1"},
		hasPreimage: true,
	}, {
		miniscript: "andor(pk(key1),older(10),pk(key2))",
		comment:    "andor else branch",
		valid:      true,
		signers:    []string{"key2"},
	}, {
		miniscript: "andor(pk(key1),older(10),pk(key2))",
		comment:    "andor then branch",
		valid:      true,
		sequence:   10,
		signers:    []string{"key1"},
	}, {
		miniscript: "or_i(and_v(v:pk(key1),older(10)),pk(key2))",
		comment:    "or_i second branch",
		valid:      true,
		signers:    []string{"key2"},
	}, {
		miniscript: "and_b(pk(key1),a:pk(key2))",
		comment:    "and_b with both keys",
		valid:      true,
		signers:    []string{"key1", "key2"},
	}, {
		miniscript: "or_b(pk(key1),s:pk(key2))",
		comment:    "or_b with the second key",
		valid:      true,
		signers:    []string{"key2"},
	}, {
		miniscript: "t:or_c(pk(key1),v:pk(key2))",
		comment:    "or_c with the second key",
		valid:      true,
		signers:    []string{"key2"},
	}}

	for _, tc := range testCases {
		node := mustParse(t, tc.miniscript)
		require.NoError(t, node.IsSane(), tc.miniscript)

		signers := make(map[string]bool)
		for _, name := range tc.signers {
			signers[name] = true
		}
		err := testRedeem(
			t, node, tc.sequence, signers, tc.hasPreimage,
		)
		if !tc.valid {
			require.Errorf(t, err, "comment: %s, miniscript: %s",
				tc.comment, tc.miniscript)
			continue
		}
		require.NoErrorf(t, err, "comment: %s, miniscript: %s",
			tc.comment, tc.miniscript)
	}
}

// TestRedeemDecoded spends scripts recovered by Analyze, where pk_h only
// carries the key hash.
func TestRedeemDecoded(t *testing.T) {
	t.Parallel()

	for _, miniscript := range []string{
		"pkh(key1)",
		"or_d(pkh(key1),and_v(v:pk(key2),older(10)))",
	} {
		script, err := mustParse(t, miniscript).Script()
		require.NoError(t, err)

		node, err := Analyze(script, SegwitV0)
		require.NoError(t, err)

		err = testRedeem(t, node, 0, map[string]bool{"key1": true},
			false)
		require.NoError(t, err, miniscript)
	}
}

// TestCheckLockTimes checks the time lock helpers.
func TestCheckLockTimes(t *testing.T) {
	require.True(t, CheckOlder(10, 2, 10))
	require.True(t, CheckOlder(10, 2, 11))
	require.False(t, CheckOlder(10, 2, 9))
	require.False(t, CheckOlder(10, 1, 10))
	require.False(t, CheckOlder(10, 2, 10|1<<31))

	// Blocks and seconds do not mix.
	require.False(t, CheckOlder(10|1<<22, 2, 10))

	require.True(t, CheckAfter(100, 100, 0))
	require.False(t, CheckAfter(100, 99, 0))
	require.False(t, CheckAfter(100, 100, 0xffffffff))
	require.False(t, CheckAfter(500000001, 100, 0))
}

// TestMultiSignerOrder checks multi picks available signers in key order.
func TestMultiSignerOrder(t *testing.T) {
	t.Parallel()

	node := mustParse(t, "multi(2,key1,key2,key3)")
	signers := map[string]bool{
		string(testPubKey("key1")): true,
		string(testPubKey("key3")): true,
	}
	sign := func(key []byte) ([]byte, bool) {
		if !signers[string(key)] {
			return nil, false
		}
		return append([]byte("sig"), key...), true
	}

	witness, err := node.Satisfy(&Satisfier{Sign: sign})
	require.NoError(t, err)
	require.Equal(t, btcdwire.TxWitness{
		{},
		append([]byte("sig"), testPubKey("key1")...),
		append([]byte("sig"), testPubKey("key3")...),
	}, btcdwire.TxWitness(witness))

	delete(signers, string(testPubKey("key3")))
	_, err = node.Satisfy(&Satisfier{Sign: sign})
	require.Error(t, err)
}

// TestChooseLeavesOperands ensures picking between two unsigned witnesses
// marks only the result as malleable.
func TestChooseLeavesOperands(t *testing.T) {
	t.Parallel()

	small := push([]byte{1})
	large := push([]byte{1, 2, 3})
	got := choose(large, small)
	require.True(t, got.malleable)
	require.Equal(t, small.stack, got.stack)
	require.False(t, small.malleable)
	require.False(t, large.malleable)

	// Two unsigned branches leave only a malleable satisfaction.
	node := mustParse(t, "and_v(v:pk(key1),or_i(older(10),older(20)))")
	satisfier := &Satisfier{
		CheckOlder: func(uint32) (bool, error) { return true, nil },
		Sign: func(key []byte) ([]byte, bool) {
			return append([]byte("sig"), key...), true
		},
	}
	_, err := node.Satisfy(satisfier)
	require.Error(t, err)

	pair, err := satisfier.produce(node.args[1])
	require.NoError(t, err)
	require.True(t, pair.sat.ok)
	require.True(t, pair.sat.malleable)
	require.False(t, pair.sat.signed)
}
