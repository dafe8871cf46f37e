package miniscript

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

// pkText returns the semantic text of the key of a variable name.
func pkText(name string) string {
	return fmt.Sprintf("pk(%x)", testPubKey(name))
}

// sortedText joins the texts in sorted order.
func sortedText(texts ...string) string {
	sort.Strings(texts)
	return strings.Join(texts, ",")
}

func mustLift(t *testing.T, miniscript string) *Semantic {
	t.Helper()

	semantic, err := Lift(mustParse(t, miniscript))
	require.NoError(t, err, miniscript)
	return semantic
}

// TestLift checks the semantic policy of fragment trees.
func TestLift(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		miniscript string
		expected   string
	}{{
		miniscript: "pk(key1)",
		expected:   pkText("key1"),
	}, {
		miniscript: "0",
		expected:   "UNSATISFIABLE",
	}, {
		miniscript: "1",
		expected:   "TRIVIAL",
	}, {
		miniscript: "and_v(v:pk(key1),older(144))",
		expected:   "thresh(2,older(144)," + pkText("key1") + ")",
	}, {
		miniscript: "and_n(pk(key1),older(1))",
		expected:   "thresh(2,older(1)," + pkText("key1") + ")",
	}, {
		miniscript: "and_v(v:pk(key1),0)",
		expected:   "UNSATISFIABLE",
	}, {
		miniscript: "or_b(pk(key1),s:pk(key2))",
		expected: "thresh(1," + sortedText(
			pkText("key1"), pkText("key2"),
		) + ")",
	}, {
		// t: adds a trivial branch that disappears.
		miniscript: "t:or_c(pk(key1),v:pk(key2))",
		expected: "thresh(1," + sortedText(
			pkText("key1"), pkText("key2"),
		) + ")",
	}, {
		miniscript: "multi(2,key3,key1,key2)",
		expected: "thresh(2," + sortedText(
			pkText("key1"), pkText("key2"), pkText("key3"),
		) + ")",
	}, {
		miniscript: "and_v(v:pk(key1),and_v(v:pk(key2),pk(key3)))",
		expected: "thresh(3," + sortedText(
			pkText("key1"), pkText("key2"), pkText("key3"),
		) + ")",
	}, {
		miniscript: "or_d(pk(key1),or_d(pk(key2),pk(key3)))",
		expected: "thresh(1," + sortedText(
			pkText("key1"), pkText("key2"), pkText("key3"),
		) + ")",
	}, {
		// The or_i(0,..) hidden in l: only leaves the time lock.
		miniscript: "thresh(2,pk(key1),s:pk(key2),sln:older(10))",
		expected: "thresh(2,older(10)," + sortedText(
			pkText("key1"), pkText("key2"),
		) + ")",
	}, {
		miniscript: "andor(pk(key1),sha256(H),pk(key2))",
		expected: "thresh(1," + sortedText(
			pkText("key2"),
			fmt.Sprintf("thresh(2,%s,sha256(%x))", pkText("key1"),
				mustParse(t, "sha256(H)").Hash()),
		) + ")",
	}}

	for _, tc := range testCases {
		semantic := mustLift(t, tc.miniscript)
		require.Equal(t, tc.expected, semantic.String(), tc.miniscript)
	}
}

// TestLiftEquivalentScripts checks that different scripts for the same
// condition lift to the same policy.
func TestLiftEquivalentScripts(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"or_b(pk(key1),s:pk(key2))", "or_i(pk(key2),pk(key1))"},
		{"multi(2,key1,key2,key3)", "thresh(2,pk(key3),s:pk(key2),s:pk(key1))"},
		{"and_v(v:pk(key1),pk(key2))", "and_b(pk(key2),a:pk(key1))"},
		{"t:or_c(pk(key1),v:pk(key2))", "or_d(pk(key2),pk(key1))"},
	}
	for _, pair := range pairs {
		require.Equal(t, mustLift(t, pair[0]).String(),
			mustLift(t, pair[1]).String(), "%s vs %s", pair[0], pair[1])
	}
}

// TestLiftDecoded checks that a key hash recovered from a script lifts to a
// pkh condition.
func TestLiftDecoded(t *testing.T) {
	t.Parallel()

	script, err := mustParse(t, "pkh(key1)").Script()
	require.NoError(t, err)
	node, err := Analyze(script, SegwitV0)
	require.NoError(t, err)

	semantic, err := Lift(node)
	require.NoError(t, err)
	require.Equal(t, SemanticKeyHash, semantic.Kind)
	require.Equal(t, btcutil.Hash160(testPubKey("key1")), semantic.KeyHash)
	require.Equal(t, fmt.Sprintf("pkh(%x)",
		btcutil.Hash160(testPubKey("key1"))), semantic.String())
}

// TestLiftUnassigned checks that variables must be assigned before lifting.
func TestLiftUnassigned(t *testing.T) {
	t.Parallel()

	node, err := Parse("and_v(v:pk(key1),older(10))")
	require.NoError(t, err)

	_, err = Lift(node)
	require.Error(t, err)
	require.Contains(t, err.Error(), "key1")
}
