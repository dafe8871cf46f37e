// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package policy

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
	"github.com/stretchr/testify/require"
)

// mustCompile parses and compiles a policy for segwit v0.
func mustCompile(t *testing.T, text string) *CompilationResult {
	t.Helper()

	result, err := Compile(mustParse(t, text), nil)
	require.NoError(t, err, text)
	return result
}

// keyChain returns a policy and()-ing n distinct keys.
func keyChain(n int) string {
	text := fmt.Sprintf("pk(%x)", testPubKey(fmt.Sprintf("chain%d", n-1)))
	for i := n - 2; i >= 0; i-- {
		key := testPubKey(fmt.Sprintf("chain%d", i))
		text = fmt.Sprintf("and(pk(%x),%s)", key, text)
	}
	return text
}

// TestCompileSound checks that compiled scripts analyze back to the compiled
// tree, and that the tree has the semantics of the policy.
func TestCompileSound(t *testing.T) {
	t.Parallel()

	tests := []string{
		"pk(A)",
		"older(144)",
		"sha256(H)",
		"and(pk(A),older(144))",
		"and(pk(A),sha256(H))",
		"and(pk(A),TRIVIAL)",
		"or(pk(A),pk(B))",
		"or(pk(A),UNSATISFIABLE)",
		"or(pk(A),older(1000))",
		"or(99@pk(A),1@pk(B))",
		"or(9@pk(A),and(pk(B),older(1000)))",
		"or(and(pk(A),pk(B)),and(pk(C),older(100)))",
		"and(pk(A),or(pk(B),after(500000)))",
		"and(or(pk(A),pk(B)),or(pk(C),hash160(H20)))",
		"thresh(2,pk(A),pk(B),pk(C))",
		"thresh(2,pk(A),sha256(H),older(10))",
		"thresh(1,pk(A),older(10),hash160(H20))",
		"thresh(3,pk(A),pk(B),older(5))",
		"thresh(3,pk(A),pk(B),pk(C),pk(D),and(pk(E),older(10)))",
		"thresh(2,pk(A),sha256(H),pk(B))",
		"thresh(2,sha256(H),hash160(H20),pk(A))",
		"and(pk(A),and(pk(B),pk(C)))",
		"and(pk(A),and(pk(B),older(10)))",
		keyChain(5),
	}

	for _, text := range tests {
		p := mustParse(t, text)
		result, err := Compile(p, nil)
		require.NoError(t, err, text)

		frag := result.Fragment
		require.Equal(t, "B", frag.BasicType(), text)
		require.True(t, frag.IsNonMalleable(), text)
		require.NoError(t, frag.IsValidTopLevel(), text)

		script, err := frag.Script()
		require.NoError(t, err)
		require.Equal(t, script, result.Script, text)

		decoded, err := miniscript.Analyze(result.Script,
			miniscript.SegwitV0)
		require.NoError(t, err, "%s compiled to %s", text, frag)
		require.True(t, frag.Equivalent(decoded), "%s compiled to %s, "+
			"analyzed as %s", text, frag, decoded)

		lifted, err := miniscript.Lift(frag)
		require.NoError(t, err)
		require.Equal(t, p.Semantic().String(), lifted.String(),
			"%s compiled to %s", text, frag)

		worst, ok := frag.MaxSatisfactionSize()
		require.True(t, ok)
		require.Equal(t, worst, result.SatisfactionCost, text)
		require.False(t, math.IsInf(result.ExpectedCost, 0), text)
	}
}

// TestCompileShapes checks the fragments chosen for simple policies.
func TestCompileShapes(t *testing.T) {
	t.Parallel()

	// A single key is checked with OP_CHECKSIG.
	result := mustCompile(t, "pk(A)")
	require.Equal(t, miniscript.FragWrapC, result.Fragment.Fragment())
	require.Equal(t, miniscript.FragPkK,
		result.Fragment.Args()[0].Fragment())
	require.Equal(t, 73, result.SatisfactionCost)

	// A key and a time lock is a verified key followed by the lock.
	result = mustCompile(t, "and(pk(A),older(144))")
	require.Equal(t, miniscript.FragAndV, result.Fragment.Fragment())
	disasm, err := txscript.DisasmString(result.Script)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(disasm,
		"OP_CHECKSIGVERIFY 9000 OP_CHECKSEQUENCEVERIFY"), disasm)

	// A threshold of keys is a multisig.
	result = mustCompile(t, "thresh(2,pk(A),pk(B),pk(C))")
	require.Equal(t, miniscript.FragMulti, result.Fragment.Fragment())
	require.Equal(t, uint64(2), result.Fragment.K())
	require.Equal(t, byte(txscript.OP_CHECKMULTISIG),
		result.Script[len(result.Script)-1])

	// A zero threshold is always satisfied.
	result = mustCompile(t, "thresh(0,pk(A),pk(B))")
	require.Equal(t, miniscript.FragTrue, result.Fragment.Fragment())
	require.Equal(t, []byte{txscript.OP_1}, result.Script)

	result = mustCompile(t, "TRIVIAL")
	require.Equal(t, []byte{txscript.OP_1}, result.Script)
}

// TestCompileIdempotent checks that compiling a policy twice, or compiling
// its canonical text, gives the same script.
func TestCompileIdempotent(t *testing.T) {
	t.Parallel()

	tests := []string{
		"or(pk(A),pk(B))",
		"or(and(pk(A),pk(B)),and(pk(C),older(100)))",
		"thresh(2,pk(A),sha256(H),older(10))",
		"thresh(2,pk(A),sha256(H),pk(B))",
		"and(pk(A),and(pk(B),pk(C)))",
	}
	for _, text := range tests {
		first := mustCompile(t, text)
		second := mustCompile(t, text)
		require.Equal(t, first.Script, second.Script, text)
		require.Equal(t, first.Fragment.String(),
			second.Fragment.String(), text)

		p := mustParse(t, text)
		again, err := Compile(mustParse(t, p.String()), nil)
		require.NoError(t, err)
		require.Equal(t, first.Script, again.Script, text)
	}
}

// TestCompileWeights checks that expected costs follow the branch weights.
func TestCompileWeights(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"or(99@pk(A),1@and(pk(B),older(10)))",
		"or(1@pk(A),99@and(pk(B),older(10)))",
	} {
		result := mustCompile(t, text)
		require.Greater(t, result.ExpectedCost, 0.0, text)
		require.LessOrEqual(t, result.ExpectedCost,
			float64(result.SatisfactionCost), text)
	}
}

// TestCompileErrors checks the failures of the compiler.
func TestCompileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		kind ErrorKind
	}{
		{"unsatisfiable root", "UNSATISFIABLE", ErrUnsatisfiable},
		{"threshold above n", "thresh(3,pk(A),pk(B))", ErrUnsatisfiable},
		{"unsatisfiable and", "and(pk(A),UNSATISFIABLE)",
			ErrUnsatisfiable},
		{"duplicate key", "or(pk(A),and(pk(B),pk(A)))",
			ErrUnsatisfiable},
		{"deep key chain", keyChain(110), ErrPolicyTooComplex},
	}

	for _, test := range tests {
		_, err := Compile(mustParse(t, test.text), nil)
		require.Error(t, err, test.name)
		require.True(t, errors.Is(err, test.kind), "%s: %v", test.name,
			err)

		var perr *Error
		require.True(t, errors.As(err, &perr), test.name)
	}
}

// TestCompileContext checks that the limits of the context are applied.
func TestCompileContext(t *testing.T) {
	t.Parallel()

	opts := &CompileOptions{Context: miniscript.Legacy}
	p := mustParse(t, keyChain(25))
	_, err := Compile(p, opts)
	require.True(t, errors.Is(err, ErrPolicyTooComplex), "%v", err)

	// The same chain fits a witness script.
	result, err := Compile(p, nil)
	require.NoError(t, err)
	require.LessOrEqual(t, len(result.Script),
		miniscript.SegwitV0.Limits.MaxScriptSize)

	result, err = Compile(mustParse(t, "thresh(2,pk(A),pk(B),pk(C))"),
		opts)
	require.NoError(t, err)
	require.NoError(t, result.Fragment.IsValidTopLevelIn(miniscript.Legacy))
}
