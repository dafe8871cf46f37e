package miniscript

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// opName returns the disassembly of a single opcode.
func opName(op byte) string {
	disasm, err := txscript.DisasmString([]byte{op})
	if err != nil {
		return fmt.Sprintf("opcode 0x%02x", op)
	}
	return disasm
}

// TokenKind is the class of a lexed script element.
type TokenKind uint8

const (
	// TokenOp is a non-push opcode.
	TokenOp TokenKind = iota

	// TokenNum is a minimally encoded script number, including OP_0 and
	// OP_1 through OP_16.
	TokenNum

	// TokenHash20 is a 20 byte push.
	TokenHash20

	// TokenBytes32 is a 32 byte push.
	TokenBytes32

	// TokenBytes33 is a 33 byte push.
	TokenBytes33
)

// Token is one element of a lexed script.  The VERIFY variants of EQUAL,
// CHECKSIG and CHECKMULTISIG are split into two tokens sharing the offset of
// the original opcode.
type Token struct {
	Kind   TokenKind
	Op     byte
	Num    int64
	Data   []byte
	Offset int
}

// maxScriptNumLen is the longest number push accepted in a script.  Lock
// times need up to five bytes.
const maxScriptNumLen = 5

// parseScriptNum decodes a little endian sign-magnitude script number.
func parseScriptNum(data []byte) int64 {
	var n int64
	for i, b := range data {
		n |= int64(b) << uint(8*i)
	}
	if len(data) > 0 && data[len(data)-1]&0x80 != 0 {
		n &= ^(int64(0x80) << uint(8*(len(data)-1)))
		n = -n
	}
	return n
}

// miniscriptOps is the set of non-push opcodes a miniscript can contain.
var miniscriptOps = map[byte]struct{}{
	txscript.OP_CHECKSIG:            {},
	txscript.OP_CHECKMULTISIG:       {},
	txscript.OP_VERIFY:              {},
	txscript.OP_EQUAL:               {},
	txscript.OP_SIZE:                {},
	txscript.OP_SHA256:              {},
	txscript.OP_HASH256:             {},
	txscript.OP_RIPEMD160:           {},
	txscript.OP_HASH160:             {},
	txscript.OP_DUP:                 {},
	txscript.OP_IF:                  {},
	txscript.OP_NOTIF:               {},
	txscript.OP_ELSE:                {},
	txscript.OP_ENDIF:               {},
	txscript.OP_IFDUP:               {},
	txscript.OP_TOALTSTACK:          {},
	txscript.OP_FROMALTSTACK:        {},
	txscript.OP_SWAP:                {},
	txscript.OP_BOOLAND:             {},
	txscript.OP_BOOLOR:              {},
	txscript.OP_ADD:                 {},
	txscript.OP_0NOTEQUAL:           {},
	txscript.OP_CHECKSEQUENCEVERIFY: {},
	txscript.OP_CHECKLOCKTIMEVERIFY: {},
}

// Tokenize lexes a script into miniscript tokens.
func Tokenize(script []byte) ([]Token, error) {
	var (
		tokens []Token
		prevOp = -1
		start  int
	)
	errAt := func(desc string) error {
		return &AnalysisError{
			Offset:      start,
			Opcode:      script[start],
			Description: desc,
		}
	}

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		data := tokenizer.Data()
		end := int(tokenizer.ByteIndex())
		raw := script[start:end]

		switch {
		case op == txscript.OP_0:
			tokens = append(tokens, Token{Kind: TokenNum, Offset: start})

		case op >= txscript.OP_DATA_1 && op <= txscript.OP_PUSHDATA4:
			kind := TokenNum
			switch len(data) {
			case 20:
				kind = TokenHash20
			case 32:
				kind = TokenBytes32
			case 33:
				kind = TokenBytes33
			}
			if kind != TokenNum {
				if int(op) != len(data) {
					return nil, errAt("non-minimal data push")
				}
				tokens = append(tokens, Token{
					Kind:   kind,
					Op:     op,
					Data:   data,
					Offset: start,
				})
				break
			}
			if len(data) > maxScriptNumLen {
				return nil, errAt(fmt.Sprintf("unexpected push of "+
					"%d bytes", len(data)))
			}
			n := parseScriptNum(data)
			minimal, _ := txscript.NewScriptBuilder().AddInt64(n).Script()
			if !bytes.Equal(minimal, raw) {
				return nil, errAt("non-minimal number push")
			}
			tokens = append(tokens, Token{
				Kind:   TokenNum,
				Op:     op,
				Num:    n,
				Offset: start,
			})

		case op >= txscript.OP_1 && op <= txscript.OP_16:
			tokens = append(tokens, Token{
				Kind:   TokenNum,
				Op:     op,
				Num:    int64(op - (txscript.OP_1 - 1)),
				Offset: start,
			})

		case op == txscript.OP_EQUALVERIFY,
			op == txscript.OP_CHECKSIGVERIFY,
			op == txscript.OP_CHECKMULTISIGVERIFY:

			base := byte(txscript.OP_EQUAL)
			switch op {
			case txscript.OP_CHECKSIGVERIFY:
				base = txscript.OP_CHECKSIG
			case txscript.OP_CHECKMULTISIGVERIFY:
				base = txscript.OP_CHECKMULTISIG
			}
			tokens = append(tokens,
				Token{Kind: TokenOp, Op: base, Offset: start},
				Token{Kind: TokenOp, Op: txscript.OP_VERIFY,
					Offset: start},
			)

		case op == txscript.OP_VERIFY && (prevOp == txscript.OP_EQUAL ||
			prevOp == txscript.OP_CHECKSIG ||
			prevOp == txscript.OP_CHECKMULTISIG):

			return nil, errAt("non-minimal VERIFY")

		default:
			if _, ok := miniscriptOps[op]; !ok {
				return nil, errAt(fmt.Sprintf("unexpected opcode %s",
					opName(op)))
			}
			tokens = append(tokens, Token{
				Kind:   TokenOp,
				Op:     op,
				Offset: start,
			})
		}

		prevOp = int(op)
		start = end
	}
	if err := tokenizer.Err(); err != nil {
		return nil, errAt(err.Error())
	}
	return tokens, nil
}

// PatternItem matches one token of a terminal pattern.  Items of kind
// TokenOp match the opcode Op, items of kind TokenNum match the number Num
// unless AnyNum is set.  The push kinds match any push of their length.
type PatternItem struct {
	Kind   TokenKind
	Op     byte
	Num    int64
	AnyNum bool
}

// matches returns whether the token matches the item.
func (p PatternItem) matches(t Token) bool {
	if p.Kind != t.Kind {
		return false
	}
	switch p.Kind {
	case TokenOp:
		return p.Op == t.Op
	case TokenNum:
		return p.AnyNum || p.Num == t.Num
	}
	return true
}

// TerminalRule recognizes a leaf fragment from a fixed token sequence, listed
// in script order.  The number captured by an AnyNum item is the lock time
// of older and after, the push captured by a push item the key or hash.  If
// Verify is set the leaf is wrapped in v:.
type TerminalRule struct {
	Fragment Fragment
	Verify   bool
	Pattern  []PatternItem
}

func opItem(op byte) PatternItem {
	return PatternItem{Kind: TokenOp, Op: op}
}

func numItem(n int64) PatternItem {
	return PatternItem{Kind: TokenNum, Num: n}
}

// hashLockRule returns the pattern of a hash lock, optionally followed by the
// VERIFY of a v: wrapper.
func hashLockRule(frag Fragment, verify bool) TerminalRule {
	hashKind := TokenBytes32
	if frag == FragRipemd160 || frag == FragHash160 {
		hashKind = TokenHash20
	}
	pattern := []PatternItem{
		opItem(txscript.OP_SIZE),
		numItem(32),
		opItem(txscript.OP_EQUAL),
		opItem(txscript.OP_VERIFY),
		opItem(hashLockOp(frag)),
		{Kind: hashKind},
		opItem(txscript.OP_EQUAL),
	}
	if verify {
		pattern = append(pattern, opItem(txscript.OP_VERIFY))
	}
	return TerminalRule{Fragment: frag, Verify: verify, Pattern: pattern}
}

var defaultTerminals = func() []TerminalRule {
	rules := []TerminalRule{{
		Fragment: FragPkK,
		Pattern:  []PatternItem{{Kind: TokenBytes33}},
	}, {
		Fragment: FragPkH,
		Pattern: []PatternItem{
			opItem(txscript.OP_DUP),
			opItem(txscript.OP_HASH160),
			{Kind: TokenHash20},
			opItem(txscript.OP_EQUAL),
			opItem(txscript.OP_VERIFY),
		},
	}}
	hashLocks := []Fragment{
		FragSha256, FragHash256, FragRipemd160, FragHash160,
	}
	for _, verify := range []bool{true, false} {
		for _, frag := range hashLocks {
			rules = append(rules, hashLockRule(frag, verify))
		}
	}
	return append(rules, TerminalRule{
		Fragment: FragOlder,
		Pattern: []PatternItem{
			{Kind: TokenNum, AnyNum: true},
			opItem(txscript.OP_CHECKSEQUENCEVERIFY),
		},
	}, TerminalRule{
		Fragment: FragAfter,
		Pattern: []PatternItem{
			{Kind: TokenNum, AnyNum: true},
			opItem(txscript.OP_CHECKLOCKTIMEVERIFY),
		},
	}, TerminalRule{
		Fragment: FragFalse,
		Pattern:  []PatternItem{numItem(0)},
	}, TerminalRule{
		Fragment: FragTrue,
		Pattern:  []PatternItem{numItem(1)},
	})
}()

// DefaultTerminals returns a copy of the rule table used when a Context does
// not provide one.
func DefaultTerminals() []TerminalRule {
	rules := make([]TerminalRule, len(defaultTerminals))
	for i, rule := range defaultTerminals {
		rule.Pattern = append([]PatternItem(nil), rule.Pattern...)
		rules[i] = rule
	}
	return rules
}

// build creates the leaf of the rule from the captured number and push.
func (r *TerminalRule) build(num int64, push []byte) (*AST, error) {
	switch r.Fragment {
	case FragFalse:
		return NewFalse(), nil
	case FragTrue:
		return NewTrue(), nil
	case FragOlder, FragAfter:
		if num < 0 {
			return nil, fmt.Errorf("%s: negative lock time %d",
				r.Fragment, num)
		}
		if err := checkLockTime(r.Fragment, uint64(num)); err != nil {
			return nil, err
		}
		return newLeaf(r.Fragment, uint64(num))
	}
	return newLeaf(r.Fragment, 0, push)
}

// decodeState is a non-terminal of the analyzer, the expected shape of the
// tokens that come next (reading backwards).
type decodeState uint8

const (
	stateExpression decodeState = iota
	stateWExpression
	stateMaybeSwap
	stateMaybeAndV
	stateAlt
	stateCheck
	stateDupIf
	stateVerify
	stateNonZero
	stateZeroNotEqual
	stateAndV
	stateAndB
	stateOrB
	stateOrC
	stateOrD
	stateTern
	stateThreshW
	stateThreshE
	stateEndIf
	stateEndIfNotIf
	stateEndIfElse
)

type workItem struct {
	state decodeState

	// k and n are the threshold and the number of sub-expressions seen so
	// far of a thresh.
	k int64
	n int
}

// analyzer is the shift-reduce parser state.  Tokens are consumed from the
// end of the script.
type analyzer struct {
	script []byte
	rules  []TerminalRule
	tokens []Token
	work   []workItem
	terms  []*AST

	// lastOffset is the offset of the most recently consumed token.
	lastOffset int
}

func (a *analyzer) errAt(offset int, format string,
	args ...interface{}) *AnalysisError {

	var opcode byte
	if offset < len(a.script) {
		opcode = a.script[offset]
	}
	return &AnalysisError{
		Offset:      offset,
		Opcode:      opcode,
		Description: fmt.Sprintf(format, args...),
	}
}

// errNext reports an error at the next unconsumed token, or at the start of
// the script if all tokens are consumed.
func (a *analyzer) errNext(format string, args ...interface{}) *AnalysisError {
	offset := 0
	if t, ok := a.peek(); ok {
		offset = t.Offset
	}
	return a.errAt(offset, format, args...)
}

func (a *analyzer) peek() (Token, bool) {
	if len(a.tokens) == 0 {
		return Token{}, false
	}
	return a.tokens[len(a.tokens)-1], true
}

func (a *analyzer) next() (Token, bool) {
	t, ok := a.peek()
	if ok {
		a.tokens = a.tokens[:len(a.tokens)-1]
		a.lastOffset = t.Offset
	}
	return t, ok
}

// nextIsOp consumes the next token if it is the opcode op.
func (a *analyzer) nextIsOp(op byte) bool {
	t, ok := a.peek()
	if !ok || t.Kind != TokenOp || t.Op != op {
		return false
	}
	a.next()
	return true
}

func (a *analyzer) expectOp(op byte) error {
	if !a.nextIsOp(op) {
		return a.errNext("expected %s", opName(op))
	}
	return nil
}

func (a *analyzer) expectNum() (int64, error) {
	t, ok := a.peek()
	if !ok || t.Kind != TokenNum {
		return 0, a.errNext("expected a number")
	}
	a.next()
	return t.Num, nil
}

func (a *analyzer) push(states ...decodeState) {
	for _, s := range states {
		a.work = append(a.work, workItem{state: s})
	}
}

func (a *analyzer) popTerm() (*AST, error) {
	if len(a.terms) == 0 {
		return nil, a.errAt(a.lastOffset, "missing sub-expression")
	}
	t := a.terms[len(a.terms)-1]
	a.terms = a.terms[:len(a.terms)-1]
	return t, nil
}

// reduce pushes a finished node, turning construction and type errors into
// an error at the last consumed token.
func (a *analyzer) reduce(node *AST, err error) error {
	if err != nil {
		return a.errAt(a.lastOffset, "%v", err)
	}
	a.terms = append(a.terms, node)
	return nil
}

func (a *analyzer) reduceWrapper(frag Fragment) error {
	sub, err := a.popTerm()
	if err != nil {
		return err
	}
	return a.reduce(NewWrapper(frag, sub))
}

func (a *analyzer) reduceCombinator(frag Fragment) error {
	left, err := a.popTerm()
	if err != nil {
		return err
	}
	right, err := a.popTerm()
	if err != nil {
		return err
	}
	return a.reduce(NewCombinator(frag, left, right))
}

// isAndV returns whether the next tokens continue an and_v chain.
func (a *analyzer) isAndV() bool {
	t, ok := a.peek()
	if !ok {
		return false
	}
	if t.Kind != TokenOp {
		return true
	}
	switch t.Op {
	case txscript.OP_IF, txscript.OP_NOTIF, txscript.OP_ELSE,
		txscript.OP_TOALTSTACK, txscript.OP_SWAP:
		return false
	}
	return true
}

// matchTerminal tries the terminal rules in order against the end of the
// remaining tokens.  It returns false if no rule matches.
func (a *analyzer) matchTerminal() (bool, error) {
rules:
	for i := range a.rules {
		rule := &a.rules[i]
		if len(rule.Pattern) == 0 || len(rule.Pattern) > len(a.tokens) {
			continue
		}
		tail := a.tokens[len(a.tokens)-len(rule.Pattern):]
		var (
			num  int64
			push []byte
		)
		for j, item := range rule.Pattern {
			if !item.matches(tail[j]) {
				continue rules
			}
			switch {
			case item.Kind == TokenNum && item.AnyNum:
				num = tail[j].Num
			case item.Kind != TokenOp && item.Kind != TokenNum:
				push = tail[j].Data
			}
		}

		a.tokens = a.tokens[:len(a.tokens)-len(tail)]
		a.lastOffset = tail[0].Offset
		if rule.Verify {
			a.push(stateVerify)
		}
		return true, a.reduce(rule.build(num, push))
	}
	return false, nil
}

// expression consumes one expression ending at the current position.
func (a *analyzer) expression() error {
	matched, err := a.matchTerminal()
	if matched || err != nil {
		return err
	}

	t, ok := a.next()
	if !ok {
		return a.errAt(0, "unexpected end of script")
	}
	if t.Kind != TokenOp {
		return a.errAt(t.Offset, "unexpected push")
	}

	switch t.Op {
	case txscript.OP_CHECKSIG:
		a.push(stateCheck, stateExpression)

	case txscript.OP_VERIFY:
		a.push(stateVerify, stateExpression)

	case txscript.OP_0NOTEQUAL:
		a.push(stateZeroNotEqual, stateExpression)

	case txscript.OP_EQUAL:
		k, err := a.expectNum()
		if err != nil {
			return err
		}
		a.work = append(a.work, workItem{state: stateThreshW, k: k})

	case txscript.OP_ENDIF:
		a.push(stateEndIf, stateMaybeAndV, stateExpression)

	case txscript.OP_BOOLAND:
		a.push(stateAndB, stateExpression, stateWExpression)

	case txscript.OP_BOOLOR:
		a.push(stateOrB, stateExpression, stateWExpression)

	case txscript.OP_CHECKMULTISIG:
		n, err := a.expectNum()
		if err != nil {
			return err
		}
		if n < 1 {
			return a.errAt(a.lastOffset, "multi: invalid key count "+
				"%d", n)
		}
		var keys [][]byte
		for i := int64(0); i < n; i++ {
			key, ok := a.peek()
			if !ok || key.Kind != TokenBytes33 {
				return a.errNext("multi: expected key %d of %d",
					n-i, n)
			}
			a.next()
			keys = append(keys, key.Data)
		}
		k, err := a.expectNum()
		if err != nil {
			return err
		}
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
		return a.reduce(NewMulti(int(k), keys))

	default:
		return a.errAt(t.Offset, "unexpected opcode %s", opName(t.Op))
	}
	return nil
}

// step processes one work item.
func (a *analyzer) step(item workItem) error {
	switch item.state {
	case stateExpression:
		return a.expression()

	case stateWExpression:
		if a.nextIsOp(txscript.OP_FROMALTSTACK) {
			a.push(stateAlt, stateMaybeAndV, stateExpression)
		} else {
			a.push(stateMaybeSwap, stateMaybeAndV, stateExpression)
		}

	case stateMaybeSwap:
		if a.nextIsOp(txscript.OP_SWAP) {
			return a.reduceWrapper(FragWrapS)
		}

	case stateMaybeAndV:
		if a.isAndV() {
			a.push(stateAndV, stateExpression)
		}

	case stateAlt:
		if err := a.expectOp(txscript.OP_TOALTSTACK); err != nil {
			return err
		}
		return a.reduceWrapper(FragWrapA)

	case stateCheck:
		return a.reduceWrapper(FragWrapC)

	case stateDupIf:
		return a.reduceWrapper(FragWrapD)

	case stateVerify:
		return a.reduceWrapper(FragWrapV)

	case stateNonZero:
		return a.reduceWrapper(FragWrapJ)

	case stateZeroNotEqual:
		return a.reduceWrapper(FragWrapN)

	case stateAndV:
		// Chains are right associative: the element just parsed joins
		// the rest of the chain before the previous element is read.
		if err := a.reduceCombinator(FragAndV); err != nil {
			return err
		}
		if a.isAndV() {
			a.push(stateAndV, stateExpression)
		}

	case stateAndB:
		return a.reduceCombinator(FragAndB)

	case stateOrB:
		return a.reduceCombinator(FragOrB)

	case stateOrC:
		return a.reduceCombinator(FragOrC)

	case stateOrD:
		return a.reduceCombinator(FragOrD)

	case stateTern:
		x, err := a.popTerm()
		if err != nil {
			return err
		}
		z, err := a.popTerm()
		if err != nil {
			return err
		}
		y, err := a.popTerm()
		if err != nil {
			return err
		}
		return a.reduce(NewCombinator(FragAndOr, x, y, z))

	case stateThreshW:
		if a.nextIsOp(txscript.OP_ADD) {
			a.work = append(a.work,
				workItem{state: stateThreshW, k: item.k,
					n: item.n + 1},
				workItem{state: stateWExpression},
			)
		} else {
			a.work = append(a.work,
				workItem{state: stateThreshE, k: item.k,
					n: item.n + 1},
				workItem{state: stateExpression},
			)
		}

	case stateThreshE:
		subs := make([]*AST, item.n)
		for i := range subs {
			sub, err := a.popTerm()
			if err != nil {
				return err
			}
			subs[i] = sub
		}
		return a.reduce(NewThresh(int(item.k), subs))

	case stateEndIf:
		switch {
		case a.nextIsOp(txscript.OP_ELSE):
			a.push(stateEndIfElse, stateMaybeAndV, stateExpression)

		case a.nextIsOp(txscript.OP_IF):
			switch {
			case a.nextIsOp(txscript.OP_DUP):
				a.push(stateDupIf)

			case a.nextIsOp(txscript.OP_0NOTEQUAL):
				if err := a.expectOp(txscript.OP_SIZE); err != nil {
					return err
				}
				a.push(stateNonZero)

			default:
				return a.errNext("expected OP_DUP or OP_0NOTEQUAL " +
					"before OP_IF")
			}

		case a.nextIsOp(txscript.OP_NOTIF):
			a.push(stateEndIfNotIf)

		default:
			return a.errNext("expected OP_ELSE, OP_IF or OP_NOTIF")
		}

	case stateEndIfNotIf:
		if a.nextIsOp(txscript.OP_IFDUP) {
			a.push(stateOrD)
		} else {
			a.push(stateOrC)
		}
		a.push(stateExpression)

	case stateEndIfElse:
		switch {
		case a.nextIsOp(txscript.OP_IF):
			return a.reduceCombinator(FragOrI)

		case a.nextIsOp(txscript.OP_NOTIF):
			a.push(stateTern, stateExpression)

		default:
			return a.errNext("expected OP_IF or OP_NOTIF")
		}
	}
	return nil
}

// Analyze recovers the miniscript fragment tree of a script.  The tokens are
// parsed with an explicit shift-reduce state machine reading the script
// backwards; there is at most one tree for a script, so no alternatives are
// tried.  The tree is type checked, checked against the limits of ctx and
// linearized again, and must reproduce the script exactly.
//
// All errors are *AnalysisError values wrapping ErrUnrecognizedPattern.
func Analyze(script []byte, ctx *Context) (*AST, error) {
	if ctx == nil {
		ctx = SegwitV0
	}
	if len(script) == 0 {
		return nil, &AnalysisError{Description: "empty script"}
	}

	tokens, err := Tokenize(script)
	if err != nil {
		return nil, err
	}

	a := &analyzer{
		script:     script,
		rules:      ctx.terminals(),
		tokens:     tokens,
		lastOffset: len(script),
	}
	a.push(stateMaybeAndV, stateMaybeSwap, stateExpression)
	for len(a.work) > 0 {
		item := a.work[len(a.work)-1]
		a.work = a.work[:len(a.work)-1]
		if err := a.step(item); err != nil {
			return nil, err
		}
	}

	if t, ok := a.peek(); ok {
		return nil, a.errAt(t.Offset, "trailing opcodes")
	}
	if len(a.terms) != 1 {
		return nil, a.errAt(0, "script is not a single expression")
	}
	root := a.terms[0]
	if err := root.expectBasicType(typeB); err != nil {
		return nil, a.errAt(0, "%v", err)
	}
	if err := ctx.CheckLimits(root); err != nil {
		return nil, a.errAt(0, "%v", err)
	}

	linearized, err := root.Script()
	if err != nil {
		return nil, a.errAt(0, "%v", err)
	}
	if !bytes.Equal(linearized, script) {
		offset := 0
		for offset < len(script) && offset < len(linearized) &&
			script[offset] == linearized[offset] {

			offset++
		}
		if offset >= len(script) {
			offset = len(script) - 1
		}
		return nil, a.errAt(offset, "script does not match the "+
			"encoding of %v", root)
	}

	log.Debugf("Analyzed %d byte script as %v", len(script), root)
	return root, nil
}
