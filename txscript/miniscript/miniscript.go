package miniscript

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/elementsutil/primitives"
)

const (
	// pubKeyLen is the length of a public key inside P2WSH, which are 33
	// byte compressed public keys.
	pubKeyLen = 33

	// pubKeyDataPushLen is the length of a public key data push in P2WSH,
	// which is 1+33 (1 byte for the VarInt encoding of 33).
	pubKeyDataPushLen = 34

	// keyHashLen is the length of the key hash pushed by pk_h.
	keyHashLen = 20
)

const (
	// All fragment identifiers.

	f_0         = "0"         // 0
	f_1         = "1"         // 1
	f_pk_k      = "pk_k"      // pk_k(key)
	f_pk_h      = "pk_h"      // pk_h(key)
	f_pk        = "pk"        // pk(key) = c:pk_k(key)
	f_pkh       = "pkh"       // pkh(key) = c:pk_h(key)
	f_sha256    = "sha256"    // sha256(h)
	f_ripemd160 = "ripemd160" // ripemd160(h)
	f_hash256   = "hash256"   // hash256(h)
	f_hash160   = "hash160"   // hash160(h)
	f_older     = "older"     // older(n)
	f_after     = "after"     // after(n)
	f_andor     = "andor"     // andor(X,Y,Z)
	f_and_v     = "and_v"     // and_v(X,Y)
	f_and_b     = "and_b"     // and_b(X,Y)
	f_and_n     = "and_n"     // and_n(X,Y) = andor(X,Y,0)
	f_or_b      = "or_b"      // or_b(X,Z)
	f_or_c      = "or_c"      // or_c(X,Z)
	f_or_d      = "or_d"      // or_d(X,Z)
	f_or_i      = "or_i"      // or_i(X,Z)
	f_thresh    = "thresh"    // thresh(k,X1,...,Xn)
	f_multi     = "multi"     // multi(k,key1,...,keyn)
	f_wrap_a    = "a"         // a:X
	f_wrap_s    = "s"         // s:X
	f_wrap_c    = "c"         // c:X
	f_wrap_d    = "d"         // d:X
	f_wrap_v    = "v"         // v:X
	f_wrap_j    = "j"         // j:X
	f_wrap_n    = "n"         // n:X
	f_wrap_t    = "t"         // t:X = and_v(X,1)
	f_wrap_l    = "l"         // l:X = or_i(0,X)
	f_wrap_u    = "u"         // u:X = or_i(X,0)
)

// Fragment is the kind of a node of a miniscript fragment tree.  Syntactic
// sugar has no fragment of its own; it is expanded when parsing.
type Fragment uint8

const (
	FragFalse Fragment = iota
	FragTrue
	FragPkK
	FragPkH
	FragOlder
	FragAfter
	FragSha256
	FragHash256
	FragRipemd160
	FragHash160
	FragAndOr
	FragAndV
	FragAndB
	FragOrB
	FragOrC
	FragOrD
	FragOrI
	FragThresh
	FragMulti
	FragWrapA
	FragWrapS
	FragWrapC
	FragWrapD
	FragWrapV
	FragWrapJ
	FragWrapN

	numFragments
)

// fragmentNames maps each fragment to its identifier in miniscript text.
var fragmentNames = [numFragments]string{
	FragFalse:     f_0,
	FragTrue:      f_1,
	FragPkK:       f_pk_k,
	FragPkH:       f_pk_h,
	FragOlder:     f_older,
	FragAfter:     f_after,
	FragSha256:    f_sha256,
	FragHash256:   f_hash256,
	FragRipemd160: f_ripemd160,
	FragHash160:   f_hash160,
	FragAndOr:     f_andor,
	FragAndV:      f_and_v,
	FragAndB:      f_and_b,
	FragOrB:       f_or_b,
	FragOrC:       f_or_c,
	FragOrD:       f_or_d,
	FragOrI:       f_or_i,
	FragThresh:    f_thresh,
	FragMulti:     f_multi,
	FragWrapA:     f_wrap_a,
	FragWrapS:     f_wrap_s,
	FragWrapC:     f_wrap_c,
	FragWrapD:     f_wrap_d,
	FragWrapV:     f_wrap_v,
	FragWrapJ:     f_wrap_j,
	FragWrapN:     f_wrap_n,
}

// fragmentByName is the reverse of fragmentNames.
var fragmentByName = func() map[string]Fragment {
	m := make(map[string]Fragment, numFragments)
	for f, name := range fragmentNames {
		m[name] = Fragment(f)
	}
	return m
}()

// String returns the miniscript identifier of the fragment.
func (f Fragment) String() string {
	if f < numFragments {
		return fragmentNames[f]
	}
	return fmt.Sprintf("Unknown Fragment (%d)", uint8(f))
}

// IsWrapper returns whether the fragment is one of the single letter
// wrappers a, s, c, d, v, j and n.
func (f Fragment) IsWrapper() bool {
	return f >= FragWrapA && f <= FragWrapN
}

// IsHashLock returns whether the fragment is one of the four hash locks.
func (f Fragment) IsHashLock() bool {
	return f >= FragSha256 && f <= FragHash160
}

// HashKind returns the hash function of a hash lock fragment.
func (f Fragment) HashKind() (primitives.HashKind, bool) {
	switch f {
	case FragSha256:
		return primitives.SHA256, true
	case FragHash256:
		return primitives.HASH256, true
	case FragRipemd160:
		return primitives.RIPEMD160, true
	case FragHash160:
		return primitives.HASH160, true
	}
	return 0, false
}

// hashLockFragment returns the hash lock fragment for a hash function.
func hashLockFragment(kind primitives.HashKind) Fragment {
	switch kind {
	case primitives.SHA256:
		return FragSha256
	case primitives.HASH256:
		return FragHash256
	case primitives.RIPEMD160:
		return FragRipemd160
	default:
		return FragHash160
	}
}

type basicType string

const (
	typeB basicType = "B"
	typeV basicType = "V"
	typeK basicType = "K"
	typeW basicType = "W"
)

type properties struct {
	// Basic type properties.
	z, o, n, d, u bool

	// Malleability properties.
	// If `m`, a non-malleable satisfaction is guaranteed to exist.
	// The purpose of s/f/e is only to compute `m` and can be disregarded
	// afterward.
	m, s, f, e bool

	// canCollapseVerify enables checking if the rightmost script byte
	// produced by this node is OP_EQUAL, OP_CHECKSIG or OP_CHECKMULTISIG.
	//
	// If so, it can be converted into the VERIFY version if an ancestor is
	// the verify wrapper `v`, i.e. OP_EQUALVERIFY, OP_CHECKSIGVERIFY and
	// OP_CHECKMULTISIGVERIFY instead of using two opcodes, e.g.
	// `OP_EQUAL OP_VERIFY`.
	canCollapseVerify bool
}

func (p properties) String() string {
	s := strings.Builder{}
	if p.z {
		s.WriteRune('z')
	}
	if p.o {
		s.WriteRune('o')
	}
	if p.n {
		s.WriteRune('n')
	}
	if p.d {
		s.WriteRune('d')
	}
	if p.u {
		s.WriteRune('u')
	}
	if p.m {
		s.WriteRune('m')
	}
	if p.s {
		s.WriteRune('s')
	}
	if p.f {
		s.WriteRune('f')
	}
	if p.e {
		s.WriteRune('e')
	}
	return s.String()
}

// AST is the abstract syntax tree representing a miniscript expression.  All
// static information about a node (type, script length, op count and witness
// sizes) is computed when the node is created and never changes afterwards.
type AST struct {
	fragment  Fragment
	basicType basicType
	props     properties

	// k is the threshold of thresh and multi, and the lock time value of
	// older and after.
	k uint64

	// names are the key or hash identifiers as written in the
	// expression, one per entry of values.
	names []string

	// values holds the 33 byte keys of pk_k, pk_h and multi, or the 20
	// byte key hash of a pk_h decoded from a script, or the hash of a hash
	// lock.  A nil entry is a variable that was not assigned yet.
	values [][]byte

	args      []*AST
	scriptLen int
	opCount   ops

	// witness holds the maximum witness size in bytes and stack holds
	// the maximum number of witness elements, both for the satisfaction
	// and the dissatisfaction.
	witness witnessSize
	stack   witnessSize
}

// parseNode is a node of the expression tree of miniscript text before it is
// resolved into an AST.
type parseNode struct {
	wrappers   string
	identifier string
	args       []*parseNode

	// num is the parsed integer for when identifier is expected to be a
	// number, i.e. the first argument of older/after/multi/thresh. This is
	// not used otherwise.
	num uint64
}

// Parse a miniscript expression.  Key and hash arguments that are valid hex of
// the right length are assigned right away; all others are variables that
// must be assigned with ApplyVars before calling Script or Satisfy.
//
// The following transformations are applied to the expression in order:
//  1. argCheck: Checks that the nodes have the correct number of arguments.
//  2. expandWrappers: Unwraps the letters before the colon, for example:
//     dv:older(144) is d(v(older(144)))
//  3. deSugar: Miniscript defines six instances of syntactic sugar. We replace
//     these with fixed equations.
//
// The resolved tree is then built bottom up, running finalize on every node.
func Parse(miniscript string) (*AST, error) {
	node, err := createAST(miniscript)
	if err != nil {
		return nil, err
	}

	transformers := []func(*parseNode) (*parseNode, error){
		argCheck,
		expandWrappers,
		deSugar,
	}
	for _, transform := range transformers {
		node, err = node.apply(transform)
		if err != nil {
			return nil, err
		}
	}

	ast, err := resolve(node)
	if err != nil {
		return nil, err
	}
	log.Tracef("Parsed miniscript %v", newLogClosure(ast.DrawTree))
	return ast, nil
}

// finalize computes all static information of a node whose children are
// already final.
//
//  1. typeCheck: Not all fragments compose with each other to produce a valid
//     Bitcoin Script and valid witness. This function checks that and sets the
//     types of the Miniscript fragments. Only if the top level basic type is of
//     type B the miniscript is valid.
//  2. canCollapseVerify: If the rightmost script byte of a node is OP_EQUAL,
//     OP_CHECKSIG or OP_CHECKMULTISIG. We can convert it to the VERIFY version
//     of the opcode, e.g. OP_EQUALVERIFY.
//  3. malleabilityCheck: Checks each node if it is malleable (checking that the
//     transaction hash can not be changes without altering the content).
//  4. computeScriptLen: Simply computes the script length.
//  5. computeOpCount: Counts the amount of opcodes the script contains.
//  6. computeWitnessSize: The maximum witness sizes and element counts.
func finalize(node *AST) (*AST, error) {
	transformers := []func(*AST) (*AST, error){
		typeCheck,
		canCollapseVerify,
		malleabilityCheck,
		computeScriptLen,
		computeOpCount,
		computeWitnessSize,
	}
	var err error
	for _, transform := range transformers {
		node, err = transform(node)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// resolve converts a checked and desugared expression tree into an AST.
func resolve(p *parseNode) (*AST, error) {
	frag, ok := fragmentByName[p.identifier]
	if !ok {
		return nil, fmt.Errorf("unrecognized identifier: %s",
			p.identifier)
	}

	node := &AST{fragment: frag}
	switch frag {
	case FragPkK, FragPkH, FragSha256, FragHash256, FragRipemd160,
		FragHash160:

		ident := p.args[0].identifier
		node.names = []string{ident}
		node.values = [][]byte{literalValue(frag, ident)}

	case FragOlder, FragAfter:
		node.k = p.args[0].num

	case FragMulti:
		node.k = p.args[0].num
		for _, arg := range p.args[1:] {
			node.names = append(node.names, arg.identifier)
			node.values = append(
				node.values, literalValue(frag, arg.identifier),
			)
		}

	case FragThresh:
		node.k = p.args[0].num
		for _, arg := range p.args[1:] {
			sub, err := resolve(arg)
			if err != nil {
				return nil, err
			}
			node.args = append(node.args, sub)
		}

	default:
		for _, arg := range p.args {
			sub, err := resolve(arg)
			if err != nil {
				return nil, err
			}
			node.args = append(node.args, sub)
		}
	}
	return finalize(node)
}

// literalValue returns the bytes of a key or hash argument written as hex, or
// nil if the identifier is a variable name.
func literalValue(frag Fragment, ident string) []byte {
	b, err := hex.DecodeString(ident)
	if err != nil || !validValueLen(frag, len(b)) {
		return nil
	}
	return b
}

// validValueLen returns whether a key or hash of the given length may be
// assigned to an argument of the fragment.
func validValueLen(frag Fragment, n int) bool {
	switch frag {
	case FragPkK, FragMulti:
		return n == pubKeyLen
	case FragPkH:
		return n == pubKeyLen || n == keyHashLen
	case FragSha256, FragHash256:
		return n == 32
	case FragRipemd160, FragHash160:
		return n == 20
	}
	return false
}

// Fragment returns the kind of the node.
func (a *AST) Fragment() Fragment {
	return a.fragment
}

// Args returns the sub-expressions of the node.
func (a *AST) Args() []*AST {
	return a.args
}

// K returns the threshold of thresh and multi nodes, or the lock time value
// of older and after nodes.
func (a *AST) K() uint64 {
	return a.k
}

// Keys returns the keys of pk_k, pk_h and multi nodes.  A pk_h node decoded
// from a script holds the 20 byte key hash instead of the key.
func (a *AST) Keys() [][]byte {
	switch a.fragment {
	case FragPkK, FragPkH, FragMulti:
		return a.values
	}
	return nil
}

// AllKeys returns the keys of every node in the tree in pre-order.  Keys
// used more than once are repeated.
func (a *AST) AllKeys() [][]byte {
	var keys [][]byte
	a.walk(func(node *AST) bool {
		keys = append(keys, node.Keys()...)
		return true
	})
	return keys
}

// Hash returns the hash of a hash lock node.
func (a *AST) Hash() []byte {
	if a.fragment.IsHashLock() {
		return a.values[0]
	}
	return nil
}

// Type returns the basic type (B, V, K or W) followed by all type
// properties, e.g. "Bondu" or "Wdu".
func (a *AST) Type() string {
	return a.formattedType()
}

// BasicType returns the basic type B, V, K or W.
func (a *AST) BasicType() string {
	return string(a.basicType)
}

// CanCollapseVerify returns whether a v: wrapper around this node merges
// into its last opcode instead of adding OP_VERIFY.
func (a *AST) CanCollapseVerify() bool {
	return a.props.canCollapseVerify
}

// IsNonMalleable returns whether a non-malleable satisfaction is guaranteed
// to exist.
func (a *AST) IsNonMalleable() bool {
	return a.props.m
}

// NeedsSignature returns whether every satisfaction requires a signature.
func (a *AST) NeedsSignature() bool {
	return a.props.s
}

// ScriptLen returns the length of the script in bytes.
func (a *AST) ScriptLen() int {
	return a.scriptLen
}

// formattedType returns the basic type (B, V, K or W) followed by all type
// properties.
func (a *AST) formattedType() string {
	return fmt.Sprintf("%s%s", a.basicType, a.props)
}

// IsValidTopLevel checks whether this node is valid as a P2WSH script on its
// own.
func (a *AST) IsValidTopLevel() error {
	return a.IsValidTopLevelIn(SegwitV0)
}

// IsValidTopLevelIn checks whether this node is valid as a script on its own
// in the given context.
func (a *AST) IsValidTopLevelIn(ctx *Context) error {
	if err := ctx.CheckLimits(a); err != nil {
		return err
	}

	// Top-level expression must be of type "B".
	return a.expectBasicType(typeB)
}

// isSaneSubexpression checks whether the apparent policy of this node matches
// its script semantics. Doesn't guarantee it is a safe script on its own.
func (a *AST) isSaneSubexpression(ctx *Context) error {
	if err := ctx.CheckLimits(a); err != nil {
		return err
	}
	if !a.props.m {
		return errors.New("malleable")
	}
	if a.hasRepeatedKeys() {
		return errors.New("contains duplicate keys")
	}
	return nil
}

// IsSane checks whether this node is safe as a P2WSH script on its own.
func (a *AST) IsSane() error {
	if err := a.IsValidTopLevel(); err != nil {
		return err
	}
	if err := a.isSaneSubexpression(SegwitV0); err != nil {
		return err
	}
	if !a.props.s {
		return errors.New("does not need signature")
	}
	return nil
}

// hasRepeatedKeys returns whether the same key name is used more than once.
func (a *AST) hasRepeatedKeys() bool {
	seen := map[string]struct{}{}
	repeated := false
	a.walk(func(node *AST) bool {
		for _, key := range node.Keys() {
			if key == nil {
				continue
			}
			name := hex.EncodeToString(key)
			if _, ok := seen[name]; ok {
				repeated = true
				return false
			}
			seen[name] = struct{}{}
		}
		return true
	})
	return repeated
}

// walk calls f for the node and all its descendants in pre-order until f
// returns false.
func (a *AST) walk(f func(*AST) bool) bool {
	if !f(a) {
		return false
	}
	for _, arg := range a.args {
		if !arg.walk(f) {
			return false
		}
	}
	return true
}

func (p *parseNode) apply(f func(*parseNode) (*parseNode, error)) (*parseNode,
	error) {

	for i, arg := range p.args {
		// We don't recurse into arguments which are not miniscript
		// subexpressions themselves:
		// key/hash variables and the numeric arguments of
		// older/after/multi/thresh.
		switch p.identifier {
		case f_pk_k, f_pk_h, f_pk, f_pkh,
			f_sha256, f_hash256, f_ripemd160, f_hash160,
			f_older, f_after, f_multi:

			// None of the arguments of these functions are
			// miniscript subexpressions - they are
			// variables (or concrete assignments) or numbers.
			continue

		case f_thresh:
			// First argument is a number. The other arguments are
			// subexpressions, which we want to visit, so only skip
			// the first argument.
			if i == 0 {
				continue
			}
		}

		newArg, err := arg.apply(f)
		if err != nil {
			return nil, err
		}
		p.args[i] = newArg
	}
	return f(p)
}

// ApplyVars replaces key and hash values in the miniscript. It must be called
// before running Script() or Satisfy() if the expression uses variables.
//
// The callback should return `nil, nil` if the variable is unknown. In this
// case, the identifier itself will be parsed as the value (hex-encoded pubkey,
// hex-encoded hash value).
func (a *AST) ApplyVars(lookupVar func(identifier string) ([]byte, error)) error {
	// Set of all pubkeys to check for duplicates
	allPubKeys := map[string]struct{}{}

	var err error
	a.walk(func(node *AST) bool {
		for i, ident := range node.names {
			var value []byte
			value, err = lookupVar(ident)
			if err != nil {
				return false
			}
			if value == nil {
				// If the value was not a variable, assume it's
				// the value directly encoded as hex.
				value, err = hex.DecodeString(ident)
				if err != nil {
					return false
				}
			}
			if !validValueLen(node.fragment, len(value)) {
				err = fmt.Errorf("argument %s of %s has "+
					"invalid length %d", ident,
					node.fragment, len(value))
				return false
			}

			if node.Keys() != nil {
				keyHex := hex.EncodeToString(value)
				if _, ok := allPubKeys[keyHex]; ok {
					err = fmt.Errorf("duplicate key found "+
						"at %s (key=%s, arg "+
						"identifier=%s)",
						node.fragment, keyHex, ident)
					return false
				}
				allPubKeys[keyHex] = struct{}{}
			}
			node.values[i] = value
		}
		return true
	})
	return err
}

// expectBasicType is a helper function to check that this node has a specific
// type.
func (a *AST) expectBasicType(typ basicType) error {
	if a.basicType != typ {
		return fmt.Errorf("expression `%s` expected to have type %s, "+
			"but is type %s", a.fragment, typ, a.basicType)
	}
	return nil
}

type stack struct {
	elements []*parseNode
}

func (s *stack) push(element *parseNode) {
	s.elements = append(s.elements, element)
}

func (s *stack) pop() *parseNode {
	if len(s.elements) == 0 {
		return nil
	}
	top := s.elements[len(s.elements)-1]
	s.elements = s.elements[:len(s.elements)-1]
	return top
}

func (s *stack) top() *parseNode {
	if len(s.elements) == 0 {
		return nil
	}
	return s.elements[len(s.elements)-1]
}

func (s *stack) size() int {
	return len(s.elements)
}

// splitString keeps separators as individual slice elements and splits a string
// into a slice of strings based on multiple separators. It removes any empty
// elements from the output slice.
func splitString(s string, isSeparator func(c rune) bool) []string {
	substrings := make([]string, 0)

	i := 0
	for i < len(s) {
		j := strings.IndexFunc(s[i:], isSeparator)
		if j == -1 {
			substrings = append(substrings, s[i:])
			return substrings
		}
		j += i

		if j > i {
			substrings = append(substrings, s[i:j])
		}

		// Append the separator as a separate element.
		substrings = append(substrings, s[j:j+1])
		i = j + 1
	}
	return substrings
}

func createAST(miniscript string) (*parseNode, error) {
	tokens := splitString(miniscript, func(c rune) bool {
		return c == '(' || c == ')' || c == ','
	})

	if len(tokens) > 0 {
		first, last := tokens[0], tokens[len(tokens)-1]
		if first == "(" || first == ")" || first == "," ||
			last == "(" || last == "," {

			return nil, errors.New("invalid first or last " +
				"character")
		}
	}

	// Build abstract syntax tree.
	var stack stack
	for i, token := range tokens {
		switch token {
		case "(":
			// Exclude invalid sequences, which cannot appear in
			// valid miniscripts: "((", ")(", ",(".
			if i > 0 && (tokens[i-1] == "(" || tokens[i-1] == ")" ||
				tokens[i-1] == ",") {

				return nil, fmt.Errorf("the sequence %s%s is "+
					"invalid", tokens[i-1], token)
			}

		case ",", ")":
			// End of a function argument - take the argument and
			// add it to the parent's argument list. If there is no
			// parent, the expression is unbalanced, e.g. `f(X))``.
			//
			// Exclude invalid sequences, which cannot appear in
			// valid miniscripts: "(,", "()", ",,", ",)".
			if i > 0 && (tokens[i-1] == "(" || tokens[i-1] == ",") {
				return nil, fmt.Errorf("the sequence %s%s is "+
					"invalid", tokens[i-1], token)
			}

			arg := stack.pop()
			parent := stack.top()
			if arg == nil || parent == nil {
				return nil, errors.New("unbalanced")
			}
			parent.args = append(parent.args, arg)

		default:
			if i > 0 && tokens[i-1] == ")" {
				return nil, fmt.Errorf("the sequence %s%s is "+
					"invalid", tokens[i-1], token)
			}

			// Split wrappers from identifier if they exist, e.g. in
			// "dv:older", "dv" are wrappers and "older" is the
			// identifier.
			var (
				parts                = strings.Split(token, ":")
				wrappers, identifier string
			)
			if len(parts) == 1 {
				identifier = parts[0]
			} else if len(parts) == 2 {
				wrappers, identifier = parts[0], parts[1]

				if wrappers == "" {
					return nil, fmt.Errorf("no wrappers "+
						"found before colon before "+
						"identifier: %s", identifier)
				} else if identifier == "" {
					return nil, fmt.Errorf("no identifier "+
						"found after colon after "+
						"wrappers: %s", wrappers)
				}
			} else {
				return nil, fmt.Errorf("invalid number of "+
					"colons in token: %s", token)
			}

			stack.push(&parseNode{
				wrappers:   wrappers,
				identifier: identifier,
			})
		}
	}

	if stack.size() != 1 {
		return nil, errors.New("unbalanced")
	}

	return stack.top(), nil
}

// argCheck checks that each identifier is a known miniscript identifier and
// that it has the correct number of arguments, e.g. `andor(X,Y,Z)` must have
// three arguments, etc.
func argCheck(node *parseNode) (*parseNode, error) {
	expectArgs := func(num int) error {
		if len(node.args) != num {
			return fmt.Errorf("%s expects %d arguments, got %d",
				node.identifier, num, len(node.args))
		}
		return nil
	}
	switch node.identifier {
	case f_0, f_1:
		if err := expectArgs(0); err != nil {
			return nil, err
		}

	case f_pk_k, f_pk_h, f_pk, f_pkh, f_sha256, f_ripemd160, f_hash256,
		f_hash160:

		if err := expectArgs(1); err != nil {
			return nil, err
		}
		if len(node.args[0].args) > 0 {
			return nil, fmt.Errorf("argument of %s must not "+
				"contain subexpressions", node.identifier)
		}

	case f_older, f_after:
		if err := expectArgs(1); err != nil {
			return nil, err
		}
		_n := node.args[0]
		if len(_n.args) > 0 {
			return nil, fmt.Errorf("argument of %s must not "+
				"contain subexpressions", node.identifier)
		}
		n, err := strconv.ParseUint(_n.identifier, 10, 64)
		if err != nil {
			return nil, fmt.Errorf(
				"%s(k) => k must be an unsigned integer, but "+
					"got: %s", node.identifier,
				_n.identifier)
		}
		_n.num = n
		if n < 1 || n >= (1<<31) {
			return nil, fmt.Errorf("%s(n) -> n must 1 ≤ n < 2^31, "+
				"but got: %s", node.identifier, _n.identifier)
		}

	case f_andor:
		if err := expectArgs(3); err != nil {
			return nil, err
		}

	case f_and_v, f_and_b, f_and_n, f_or_b, f_or_c, f_or_d, f_or_i:
		if err := expectArgs(2); err != nil {
			return nil, err
		}

	case f_thresh, f_multi:
		if len(node.args) < 2 {
			return nil, fmt.Errorf("%s must have at least two "+
				"arguments", node.identifier)
		}
		_k := node.args[0]
		if len(_k.args) > 0 {
			return nil, fmt.Errorf("argument of %s must not "+
				"contain subexpressions", node.identifier)
		}
		k, err := strconv.ParseUint(_k.identifier, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s(k, ...) => k must be an "+
				"integer, but got: %s", node.identifier,
				_k.identifier)
		}
		_k.num = k
		numSubs := len(node.args) - 1
		if k < 1 || k > uint64(numSubs) {
			return nil, fmt.Errorf("%s(k) -> k must 1 ≤ k ≤ n, "+
				"but got: %s", node.identifier, _k.identifier)
		}
		if node.identifier == f_multi {
			// Multisig keys are variables, they can't have
			// subexpressions.
			for _, arg := range node.args {
				if len(arg.args) > 0 {
					return nil, fmt.Errorf("arguments of "+
						"%s must not contain "+
						"subexpressions",
						node.identifier)
				}
			}
		}

	default:
		return nil, fmt.Errorf("unrecognized identifier: %s",
			node.identifier)
	}
	return node, nil
}

// expandWrappers applies wrappers (the characters before a colon), e.g.
// `ascd:X` => `a(s(c(d(X))))`.
func expandWrappers(node *parseNode) (*parseNode, error) {
	const allWrappers = "asctdvjnlu"

	wrappers := []rune(node.wrappers)
	node.wrappers = ""
	for i := len(wrappers) - 1; i >= 0; i-- {
		wrapper := wrappers[i]
		if !strings.ContainsRune(allWrappers, wrapper) {
			return nil, fmt.Errorf("unknown wrapper: %s",
				string(wrapper))
		}
		node = &parseNode{
			identifier: string(wrapper),
			args:       []*parseNode{node},
		}
	}
	return node, nil
}

// deSugar replaces syntactic sugar with the final form.
func deSugar(node *parseNode) (*parseNode, error) {
	wrap := func(identifier string, args ...*parseNode) *parseNode {
		return &parseNode{identifier: identifier, args: args}
	}

	switch node.identifier {
	case f_pk: // pk(key) = c:pk_k(key)
		return wrap(f_wrap_c, wrap(f_pk_k, node.args...)), nil

	case f_pkh: // pkh(key) = c:pk_h(key)
		return wrap(f_wrap_c, wrap(f_pk_h, node.args...)), nil

	case f_and_n: // and_n(X,Y) = andor(X,Y,0)
		return wrap(f_andor, node.args[0], node.args[1], wrap(f_0)), nil

	case f_wrap_t: // t:X = and_v(X,1)
		return wrap(f_and_v, node.args[0], wrap(f_1)), nil

	case f_wrap_l: // l:X = or_i(0,X)
		return wrap(f_or_i, wrap(f_0), node.args[0]), nil

	case f_wrap_u: // u:X = or_i(X,0)
		return wrap(f_or_i, node.args[0], wrap(f_0)), nil
	}

	return node, nil
}

func typeCheck(node *AST) (*AST, error) {
	switch node.fragment {
	case FragFalse:
		node.basicType = typeB
		node.props.z = true
		node.props.u = true
		node.props.d = true

	case FragTrue:
		node.basicType = typeB
		node.props.z = true
		node.props.u = true

	case FragPkK:
		node.basicType = typeK
		node.props.o = true
		node.props.n = true
		node.props.d = true
		node.props.u = true

	case FragPkH:
		node.basicType = typeK
		node.props.n = true
		node.props.d = true
		node.props.u = true

	case FragOlder, FragAfter:
		node.basicType = typeB
		node.props.z = true

	case FragSha256, FragRipemd160, FragHash256, FragHash160:
		node.basicType = typeB
		node.props.o = true
		node.props.n = true
		node.props.d = true
		node.props.u = true

	case FragAndOr:
		_x, _y, _z := node.args[0], node.args[1], node.args[2]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		if !_x.props.d || !_x.props.u {
			return nil, fmt.Errorf("wrong properties on `%s` in "+
				"the first argument of `%s`", _x.fragment,
				node.fragment)
		}
		if _y.basicType != typeB && _y.basicType != typeK &&
			_y.basicType != typeV {

			return nil, fmt.Errorf("in `%s`, the second argument "+
				"type is not B, K or V, but: %s",
				node.fragment, _y.basicType)
		}
		if _z.basicType != _y.basicType {
			return nil, fmt.Errorf("in `%s`, the third of the "+
				"argument is not the same as the type of the "+
				"second argument, which is: %s",
				node.fragment, _y.basicType)
		}
		node.basicType = _y.basicType
		node.props.z = _x.props.z && _y.props.z && _z.props.z
		node.props.o = (_x.props.z && _y.props.o && _z.props.o) ||
			(_x.props.o && _y.props.z && _z.props.z)
		node.props.u = _y.props.u && _z.props.u
		node.props.d = _z.props.d

	case FragAndV:
		_x, _y := node.args[0], node.args[1]
		if err := _x.expectBasicType(typeV); err != nil {
			return nil, err
		}
		if _y.basicType != typeB && _y.basicType != typeK &&
			_y.basicType != typeV {

			return nil, fmt.Errorf("in `%s`, the second argument "+
				"type is not B, K or V, but: %s",
				node.fragment, _y.basicType)
		}
		node.basicType = _y.basicType
		node.props.z = _x.props.z && _y.props.z
		node.props.o = (_x.props.z && _y.props.o) ||
			(_y.props.z && _x.props.o)
		node.props.n = _x.props.n || (_x.props.z && _y.props.n)
		node.props.u = _y.props.u

	case FragAndB:
		_x, _y := node.args[0], node.args[1]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		if err := _y.expectBasicType(typeW); err != nil {
			return nil, err
		}
		node.basicType = typeB
		node.props.z = _x.props.z && _y.props.z
		node.props.o = (_x.props.z && _y.props.o) ||
			(_y.props.z && _x.props.o)
		node.props.n = _x.props.n || (_x.props.z && _y.props.n)
		node.props.d = _x.props.d && _y.props.d
		node.props.u = true

	case FragOrB:
		_x, _z := node.args[0], node.args[1]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		if !_x.props.d {
			return nil, fmt.Errorf("wrong properties on `%s`, the "+
				"first argument of `%s`", _x.fragment,
				node.fragment)
		}
		if err := _z.expectBasicType(typeW); err != nil {
			return nil, err
		}
		if !_z.props.d {
			return nil, fmt.Errorf(
				"wrong properties on `%s`, the second "+
					"argument of `%s`", _z.fragment,
				node.fragment)
		}
		node.basicType = typeB
		node.props.z = _x.props.z && _z.props.z
		node.props.o = (_x.props.z && _z.props.o) ||
			(_z.props.z && _x.props.o)
		node.props.d = true
		node.props.u = true

	case FragOrC:
		_x, _z := node.args[0], node.args[1]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		if !_x.props.d || !_x.props.u {
			return nil, fmt.Errorf("wrong properties on `%s`, the "+
				"first argument of `%s`", _x.fragment,
				node.fragment)
		}
		if err := _z.expectBasicType(typeV); err != nil {
			return nil, err
		}
		node.basicType = typeV
		node.props.z = _x.props.z && _z.props.z
		node.props.o = _x.props.o && _z.props.z

	case FragOrD:
		_x, _z := node.args[0], node.args[1]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		if !_x.props.d || !_x.props.u {
			return nil, fmt.Errorf(
				"wrong properties on `%s`, the first argument "+
					"of `%s`", _x.fragment,
				node.fragment)
		}
		if err := _z.expectBasicType(typeB); err != nil {
			return nil, err
		}
		node.basicType = typeB
		node.props.z = _x.props.z && _z.props.z
		node.props.o = _x.props.o && _z.props.z
		node.props.d = _z.props.d
		node.props.u = _z.props.u

	case FragOrI:
		_x, _z := node.args[0], node.args[1]
		if _x.basicType != typeB && _x.basicType != typeK &&
			_x.basicType != typeV {

			return nil, errors.New("or_i: wrong type of first " +
				"argument")
		}
		if _z.basicType != _x.basicType {
			return nil, errors.New("or_i: wrong type of second " +
				"argument")
		}
		node.basicType = _x.basicType
		node.props.o = _x.props.z && _z.props.z
		node.props.u = _x.props.u && _z.props.u
		node.props.d = _x.props.d || _z.props.d

	case FragThresh:
		if len(node.args) == 0 || node.k < 1 ||
			node.k > uint64(len(node.args)) {

			return nil, fmt.Errorf("thresh(k) -> k must 1 ≤ k ≤ n, "+
				"but got k=%d, n=%d", node.k, len(node.args))
		}

		//  X1 is Bdu; others are Wdu
		if err := node.args[0].expectBasicType(typeB); err != nil {
			return nil, err
		}
		if !node.args[0].props.d || !node.args[0].props.u {
			return nil, fmt.Errorf("wrong properties on `%s`, the "+
				"first sub-expression of `%s`",
				node.args[0].fragment, node.fragment)
		}
		for i := 1; i < len(node.args); i++ {
			arg := node.args[i]
			if err := arg.expectBasicType(typeW); err != nil {
				return nil, err
			}
			if !arg.props.d || !arg.props.u {
				return nil, fmt.Errorf("wrong properties on "+
					"`%s`, sub-expression #%d of `%s`",
					arg.fragment, i+1, node.fragment)
			}
		}

		node.basicType = typeB
		// z=all are z; o=all are z except one is o; d; u
		zCount, oCount := 0, 0
		for _, arg := range node.args {
			if arg.props.z {
				zCount++
			} else if arg.props.o {
				oCount++
			}
		}
		node.props.z = zCount == len(node.args)
		node.props.o = zCount == len(node.args)-1 && oCount == 1
		node.props.d = true
		node.props.u = true

	case FragMulti:
		if len(node.values) == 0 || node.k < 1 ||
			node.k > uint64(len(node.values)) {

			return nil, fmt.Errorf("multi(k) -> k must 1 ≤ k ≤ n, "+
				"but got k=%d, n=%d", node.k, len(node.values))
		}
		node.basicType = typeB
		node.props.n = true
		node.props.d = true
		node.props.u = true

	case FragWrapA:
		_x := node.args[0]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		node.basicType = typeW
		node.props.d = _x.props.d
		node.props.u = _x.props.u

	case FragWrapS:
		_x := node.args[0]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		if !_x.props.o {
			return nil, fmt.Errorf("wrong properties on `%s`, the "+
				"first argument of `%s`", _x.fragment,
				node.fragment)
		}
		node.basicType = typeW
		node.props.d = _x.props.d
		node.props.u = _x.props.u

	case FragWrapC:
		_x := node.args[0]
		if err := _x.expectBasicType(typeK); err != nil {
			return nil, err
		}
		node.basicType = typeB
		node.props.o = _x.props.o
		node.props.n = _x.props.n
		node.props.d = _x.props.d
		node.props.u = true

	case FragWrapD:
		_x := node.args[0]
		if err := _x.expectBasicType(typeV); err != nil {
			return nil, err
		}
		if !_x.props.z {
			return nil, fmt.Errorf("wrong property of `%s`, the "+
				"first argument of `%s`", _x.fragment,
				node.fragment)
		}
		node.basicType = typeB
		node.props.o = true
		node.props.n = true
		node.props.d = true

	case FragWrapV:
		_x := node.args[0]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		node.basicType = typeV
		node.props.z = _x.props.z
		node.props.o = _x.props.o
		node.props.n = _x.props.n

	case FragWrapJ:
		_x := node.args[0]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		if !_x.props.n {
			return nil, fmt.Errorf("wrong property of `%s`, the "+
				"first argument of `%s`", _x.fragment,
				node.fragment)
		}
		node.basicType = typeB
		node.props.o = _x.props.o
		node.props.n = true
		node.props.d = true
		node.props.u = _x.props.u

	case FragWrapN:
		_x := node.args[0]
		if err := _x.expectBasicType(typeB); err != nil {
			return nil, err
		}
		node.basicType = typeB
		node.props.z = _x.props.z
		node.props.o = _x.props.o
		node.props.n = _x.props.n
		node.props.d = _x.props.d
		node.props.u = true

	default:
		return nil, fmt.Errorf("unknown fragment: %s", node.fragment)
	}
	return node, nil
}

func canCollapseVerify(node *AST) (*AST, error) {
	switch node.fragment {
	case FragSha256, FragRipemd160, FragHash256, FragHash160, FragThresh,
		FragMulti, FragWrapC:

		node.props.canCollapseVerify = true

	case FragAndV:
		otherProps := node.args[1].props
		node.props.canCollapseVerify = otherProps.canCollapseVerify

	case FragWrapS:
		otherProps := node.args[0].props
		node.props.canCollapseVerify = otherProps.canCollapseVerify
	}

	return node, nil
}

func malleabilityCheck(node *AST) (*AST, error) {
	switch node.fragment {
	case FragFalse:
		node.props.m = true
		node.props.s = true
		node.props.e = true

	case FragTrue:
		node.props.m = true
		node.props.f = true

	case FragPkK, FragPkH:
		node.props.m = true
		node.props.s = true
		node.props.e = true

	case FragOlder, FragAfter:
		node.props.m = true
		node.props.f = true

	case FragSha256, FragRipemd160, FragHash256, FragHash160:
		node.props.m = true

	case FragAndOr:
		_x, _y := node.args[0].props, node.args[1].props
		_z := node.args[2].props
		node.props.m = _x.m && _y.m && _z.m &&
			(_x.e && (_x.s || _y.s || _z.s))
		node.props.s = _z.s && (_x.s || _y.s)
		node.props.f = _z.f && (_x.s || _y.f)
		node.props.e = _z.e && (_x.s || _y.f)

	case FragAndV:
		_x, _y := node.args[0].props, node.args[1].props
		node.props.m = _x.m && _y.m
		node.props.s = _x.s || _y.s
		node.props.f = _x.s || _y.f

	case FragAndB:
		_x, _y := node.args[0].props, node.args[1].props
		node.props.m = _x.m && _y.m
		node.props.s = _x.s || _y.s
		node.props.f = _x.f && _y.f || _x.s && _x.f || _y.s && _y.f
		node.props.e = _x.e && _y.e && _x.s && _y.s

	case FragOrB:
		_x, _z := node.args[0].props, node.args[1].props
		node.props.m = _x.m && _z.m && (_x.e && _z.e && (_x.s || _z.s))
		node.props.s = _x.s && _z.s
		node.props.e = true

	case FragOrC:
		_x, _z := node.args[0].props, node.args[1].props
		node.props.m = _x.m && _z.m && (_x.e && (_x.s || _z.s))
		node.props.s = _x.s && _z.s
		node.props.f = true

	case FragOrD:
		_x, _z := node.args[0].props, node.args[1].props
		node.props.m = _x.m && _z.m && (_x.e && (_x.s || _z.s))
		node.props.s = _x.s && _z.s
		node.props.f = _z.f

		// The C++ implementation uses `e=e_x*e_z` while the
		// miniscript specification and rust-miniscript both use
		// `e=e_z`. The difference only shows when m is false, in
		// which case e is irrelevant.
		node.props.e = _z.e

	case FragOrI:
		_x, _z := node.args[0].props, node.args[1].props
		node.props.m = _x.m && _z.m && (_x.s || _z.s)
		node.props.s = _x.s && _z.s
		node.props.f = _x.f && _z.f
		node.props.e = _x.e && _z.f || _z.e && _x.f

	case FragThresh:
		k := node.k
		notSCount := 0
		node.props.m = true
		for _, arg := range node.args {
			node.props.m = node.props.m && arg.props.m && arg.props.e
			if !arg.props.s {
				notSCount++
			}
		}
		node.props.m = node.props.m && uint64(notSCount) <= k
		node.props.s = uint64(notSCount) <= k-1
		node.props.e = true
		for _, arg := range node.args {
			node.props.e = node.props.e && arg.props.e && arg.props.s
		}

	case FragMulti:
		node.props.m = true
		node.props.s = true
		node.props.e = true

	case FragWrapA, FragWrapS:
		_x := node.args[0].props
		node.props.m = _x.m
		node.props.s = _x.s
		node.props.f = _x.f
		node.props.e = _x.e

	case FragWrapC:
		_x := node.args[0].props
		node.props.m = _x.m
		node.props.s = true
		node.props.f = _x.f
		node.props.e = _x.e

	case FragWrapD:
		_x := node.args[0].props
		node.props.m = _x.m
		node.props.s = _x.s
		node.props.e = true

	case FragWrapV:
		_x := node.args[0].props
		node.props.m = _x.m
		node.props.s = _x.s
		node.props.f = true

	case FragWrapJ:
		_x := node.args[0].props
		node.props.m = _x.m
		node.props.s = _x.s
		node.props.e = _x.f

	case FragWrapN:
		_x := node.args[0].props
		node.props.m = _x.m
		node.props.s = _x.s
		node.props.f = _x.f
		node.props.e = _x.e

	default:
		return nil, fmt.Errorf("unknown fragment: %s", node.fragment)
	}

	return node, nil
}
