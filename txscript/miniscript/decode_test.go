package miniscript

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

// TestAnalyzeRoundTrip checks that the script of an expression analyzes back
// into an equivalent tree that reproduces the script.
func TestAnalyzeRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []string{
		"pk(key1)",
		"pkh(key1)",
		"older(144)",
		"after(500000001)",
		"sha256(H)",
		"hash256(H256)",
		"hash160(H20)",
		"multi(2,key1,key2,key3)",
		"and_v(v:pk(key1),older(144))",
		"and_v(v:sha256(H),pk(key1))",
		"and_v(v:hash160(H20),pk(key1))",
		"or_b(pk(key1),s:pk(key2))",
		"or_d(pk(key1),older(1))",
		"or_d(pk(key1),and_v(v:pk(key2),older(144)))",
		"andor(pk(key1),older(1),pk(key2))",
		"and_n(pk(key1),older(1))",
		"thresh(2,pk(key1),s:pk(key2),s:pk(key3))",
		"thresh(2,pk(key1),s:pk(key2),sln:older(10))",
		"thresh(1,pk(key1),a:pk(key2))",
		"or_i(pk(key1),pk(key2))",
		"and_b(pk(key1),a:pk(key2))",
		"t:or_c(pk(key1),v:pk(key2))",
		"dv:older(1)",
		"j:pk(key1)",
		"l:pk(key1)",
		"u:pk(key1)",
		"and_v(v:multi(1,key1,key2),pk(key3))",
		"and_v(v:thresh(1,pk(key1),s:pk(key2)),older(2))",
		"and_v(v:pk(key1),and_v(v:pk(key2),pk(key3)))",
		"and_v(v:pk(key1),and_v(v:pk(key2),and_v(v:older(10),pk(key3))))",
		"and_v(v:sha256(H),and_v(v:pk(key1),older(144)))",
		"and_b(and_v(v:pk(key1),pk(key2)),a:pk(key3))",
		"c:and_v(v:pk(key1),pk_k(key2))",
		"and_b(pk(key1),s:and_v(v:older(1),pk(key2)))",
	}
	for _, miniscript := range testCases {
		node := mustParse(t, miniscript)
		script, err := node.Script()
		require.NoError(t, err)

		decoded, err := Analyze(script, SegwitV0)
		require.NoError(t, err, miniscript)
		require.True(t, node.Equivalent(decoded), "%s decoded as %s",
			miniscript, decoded)

		reencoded, err := decoded.Script()
		require.NoError(t, err)
		require.Equal(t, script, reencoded)
	}
}

// TestAnalyzeAndVChain checks that and_v chains of any length reduce to
// one right associative tree.
func TestAnalyzeAndVChain(t *testing.T) {
	t.Parallel()

	want := "and_v(v:pk(key1),and_v(v:pk(key2),and_v(v:pk(key3)," +
		"older(10))))"
	script, err := mustParse(t, want).Script()
	require.NoError(t, err)

	decoded, err := Analyze(script, nil)
	require.NoError(t, err)
	require.Equal(t, FragAndV, decoded.Fragment())
	require.Equal(t, FragAndV, decoded.Args()[1].Fragment())
	require.Equal(t, FragAndV, decoded.Args()[1].Args()[1].Fragment())
	require.Equal(t, FragOlder,
		decoded.Args()[1].Args()[1].Args()[1].Fragment())
	require.True(t, mustParse(t, want).Equivalent(decoded))
}

// TestTokenize checks the splitting of VERIFY opcodes and number decoding.
func TestTokenize(t *testing.T) {
	key := testPubKey("key1")
	script, err := txscript.NewScriptBuilder().
		AddData(key).
		AddOp(txscript.OP_CHECKSIGVERIFY).
		AddInt64(1000).
		AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		Script()
	require.NoError(t, err)

	tokens, err := Tokenize(script)
	require.NoError(t, err)
	require.Len(t, tokens, 5)

	require.Equal(t, TokenBytes33, tokens[0].Kind)
	require.Equal(t, key, tokens[0].Data)
	require.Equal(t, Token{Kind: TokenOp, Op: txscript.OP_CHECKSIG,
		Offset: 34}, tokens[1])
	require.Equal(t, Token{Kind: TokenOp, Op: txscript.OP_VERIFY,
		Offset: 34}, tokens[2])
	require.Equal(t, TokenNum, tokens[3].Kind)
	require.Equal(t, int64(1000), tokens[3].Num)
	require.Equal(t, 35, tokens[3].Offset)
	require.Equal(t, 38, tokens[4].Offset)

	require.Equal(t, int64(-1), parseScriptNum([]byte{0x81}))
	require.Equal(t, int64(0x7fffffff),
		parseScriptNum([]byte{0xff, 0xff, 0xff, 0x7f}))
	require.Equal(t, int64(128), parseScriptNum([]byte{0x80, 0x00}))
}

// TestAnalyzeErrors checks the offset reported for scripts that are not
// miniscript.
func TestAnalyzeErrors(t *testing.T) {
	t.Parallel()

	key := testPubKey("key1")
	keyPush := append([]byte{txscript.OP_DATA_33}, key...)
	concat := func(parts ...[]byte) []byte {
		var script []byte
		for _, part := range parts {
			script = append(script, part...)
		}
		return script
	}

	multiKeys := txscript.NewScriptBuilder().AddInt64(1)
	for i := 0; i < 21; i++ {
		multiKeys.AddData(testPubKey(fmt.Sprintf("key%d", i)))
	}
	multiKeys.AddInt64(21).AddOp(txscript.OP_CHECKMULTISIG)
	multiScript, err := multiKeys.Script()
	require.NoError(t, err)

	testCases := []struct {
		name   string
		script []byte
		offset int
		opcode byte
	}{{
		name: "non-minimal key push",
		script: concat([]byte{txscript.OP_PUSHDATA1, 33}, key,
			[]byte{txscript.OP_CHECKSIG}),
		offset: 0,
		opcode: txscript.OP_PUSHDATA1,
	}, {
		name: "separate VERIFY after CHECKSIG",
		script: concat(keyPush, []byte{
			txscript.OP_CHECKSIG, txscript.OP_VERIFY, txscript.OP_1,
		}),
		offset: 35,
		opcode: txscript.OP_VERIFY,
	}, {
		name:   "unsupported opcode",
		script: concat(keyPush, []byte{txscript.OP_CHECKSIG, txscript.OP_NOP}),
		offset: 35,
		opcode: txscript.OP_NOP,
	}, {
		name: "non-minimal number",
		script: []byte{
			txscript.OP_DATA_1, 5, txscript.OP_CHECKSEQUENCEVERIFY,
		},
		offset: 0,
		opcode: txscript.OP_DATA_1,
	}, {
		name:   "negative one",
		script: []byte{txscript.OP_1NEGATE},
		offset: 0,
		opcode: txscript.OP_1NEGATE,
	}, {
		name:   "and_v of two B",
		script: []byte{txscript.OP_1, txscript.OP_1},
		offset: 0,
		opcode: txscript.OP_1,
	}, {
		name:   "missing branch",
		script: []byte{txscript.OP_ENDIF},
		offset: 0,
		opcode: txscript.OP_ENDIF,
	}, {
		name: "missing OP_NOTIF",
		script: concat(keyPush, []byte{
			txscript.OP_CHECKSIG, txscript.OP_SWAP, txscript.OP_1,
			txscript.OP_ENDIF,
		}),
		offset: 35,
		opcode: txscript.OP_SWAP,
	}, {
		name:   "top level is not B",
		script: keyPush,
		offset: 0,
		opcode: txscript.OP_DATA_33,
	}, {
		name:   "too many multisig keys",
		script: multiScript,
		offset: 0,
		opcode: txscript.OP_1,
	}, {
		name:   "truncated push",
		script: keyPush[:20],
		offset: 0,
		opcode: txscript.OP_DATA_33,
	}}

	for _, tc := range testCases {
		_, err := Analyze(tc.script, SegwitV0)
		require.Error(t, err, tc.name)
		require.ErrorIs(t, err, ErrUnrecognizedPattern, tc.name)

		var analysisErr *AnalysisError
		require.True(t, errors.As(err, &analysisErr), tc.name)
		require.Equal(t, tc.offset, analysisErr.Offset, tc.name)
		require.Equal(t, tc.opcode, analysisErr.Opcode, tc.name)
	}

	_, err = Analyze(nil, SegwitV0)
	require.ErrorIs(t, err, ErrUnrecognizedPattern)
}

// TestAnalyzeCustomTerminals checks that the rule table of the context is used
// to recognize leaves.
func TestAnalyzeCustomTerminals(t *testing.T) {
	t.Parallel()

	rules := DefaultTerminals()
	require.Equal(t, FragPkK, rules[0].Fragment)

	// Changing the copy leaves the default table alone.
	rules[0].Pattern[0].Kind = TokenHash20
	require.Equal(t, TokenBytes33, DefaultTerminals()[0].Pattern[0].Kind)

	var keysOnly []TerminalRule
	for _, rule := range DefaultTerminals() {
		if rule.Fragment == FragPkK || rule.Fragment == FragPkH {
			keysOnly = append(keysOnly, rule)
		}
	}
	ctx := &Context{
		Name:      "keys-only",
		Limits:    SegwitV0.Limits,
		Terminals: keysOnly,
	}

	script, err := mustParse(t, "pk(key1)").Script()
	require.NoError(t, err)
	_, err = Analyze(script, ctx)
	require.NoError(t, err)

	script, err = mustParse(t, "and_v(v:pk(key1),older(144))").Script()
	require.NoError(t, err)
	_, err = Analyze(script, SegwitV0)
	require.NoError(t, err)
	_, err = Analyze(script, ctx)
	require.ErrorIs(t, err, ErrUnrecognizedPattern)
	require.True(t, strings.Contains(err.Error(), "offset 38"), err.Error())
}
