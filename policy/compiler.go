// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package policy

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/btcsuite/elementsutil/txscript/miniscript"
)

const (
	// frontierBound is the maximum number of candidates kept per type.
	frontierBound = 4

	// maxWrapRounds bounds the number of wrappers stacked on a candidate
	// while closing a frontier.
	maxWrapRounds = 8

	// Witness sizes, length prefix included, of the empty element and of
	// the element 0x01 used to select branches.
	zeroBytes = 1
	oneBytes  = 2
)

// CompileOptions tunes a compilation.  A nil Context selects
// miniscript.SegwitV0.
type CompileOptions struct {
	Context *miniscript.Context
}

// CompilationResult is the winning fragment tree of a compilation and its
// costs.
type CompilationResult struct {
	Fragment *miniscript.AST
	Script   []byte

	// SatisfactionCost is the worst case size of the satisfying witness
	// in bytes.
	SatisfactionCost int

	// ExpectedCost is the satisfaction size in bytes expected under the
	// branch weights of the policy.
	ExpectedCost float64
}

// candidate is one compilation of a sub-policy.  sat and dsat are the
// expected sizes of the witness satisfying and dissatisfying the fragment,
// +Inf when there is none.
type candidate struct {
	ast       *miniscript.AST
	key       string
	scriptLen int
	sat       float64
	dsat      float64
	worstSat  int
	text      string
}

func newCandidate(ast *miniscript.AST, sat, dsat float64) *candidate {
	worst, ok := ast.MaxSatisfactionSize()
	if !ok {
		worst = math.MaxInt32
	}
	key := ast.Type()
	if ast.CanCollapseVerify() {
		key += "/v"
	}
	return &candidate{
		ast:       ast,
		key:       key,
		scriptLen: ast.ScriptLen(),
		sat:       sat,
		dsat:      dsat,
		worstSat:  worst,
	}
}

// leafCandidate uses the exact witness sizes of a leaf as its expected
// sizes.
func leafCandidate(ast *miniscript.AST) *candidate {
	sat, dsat := math.Inf(1), math.Inf(1)
	if n, ok := ast.MaxSatisfactionSize(); ok {
		sat = float64(n)
	}
	if n, ok := ast.MaxDissatisfactionSize(); ok {
		dsat = float64(n)
	}
	return newCandidate(ast, sat, dsat)
}

func (c *candidate) String() string {
	if c.text == "" {
		c.text = c.ast.String()
	}
	return c.text
}

// cost is the measure minimized at the root.
func (c *candidate) cost() float64 {
	return float64(c.scriptLen) + c.sat
}

// dominates returns whether c is no worse than o on every measure.
func (c *candidate) dominates(o *candidate) bool {
	return c.scriptLen <= o.scriptLen && c.sat <= o.sat &&
		c.dsat <= o.dsat && c.worstSat <= o.worstSat
}

// hasProps returns whether the candidate has the basic type and all of the
// given type properties.
func (c *candidate) hasProps(basic byte, props string) bool {
	if c.key[0] != basic {
		return false
	}
	typ := strings.SplitN(c.key, "/", 2)[0]
	for _, p := range props {
		if !strings.ContainsRune(typ[1:], p) {
			return false
		}
	}
	return true
}

// lessBy returns an ordering over candidates ranking first by the given
// measures and then by fragment text.
func lessBy(measures ...func(*candidate) float64) func(a, b *candidate) bool {
	return func(a, b *candidate) bool {
		for _, m := range measures {
			if x, y := m(a), m(b); x != y {
				return x < y
			}
		}
		return a.String() < b.String()
	}
}

func byScriptLen(c *candidate) float64 { return float64(c.scriptLen) }
func bySat(c *candidate) float64       { return c.sat }
func byWorstSat(c *candidate) float64  { return float64(c.worstSat) }
func byCost(c *candidate) float64      { return c.cost() }

// frontier is the Pareto frontier of the compilations of a sub-policy, keyed
// by fragment type.
type frontier struct {
	types map[string][]*candidate

	// tooLarge is set once a candidate was dropped because its script
	// exceeds the size limit.
	tooLarge bool
}

func newFrontier() *frontier {
	return &frontier{types: make(map[string][]*candidate)}
}

// keys returns the type keys of the frontier in sorted order.
func (f *frontier) keys() []string {
	keys := make([]string, 0, len(f.types))
	for key := range f.types {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// all returns every candidate of the frontier in a deterministic order.
func (f *frontier) all() []*candidate {
	var all []*candidate
	for _, key := range f.keys() {
		all = append(all, f.types[key]...)
	}
	return all
}

// insert adds c to the frontier unless it is malleable, too large or
// dominated by a candidate of the same type.  Candidates c dominates are
// removed.  The return value reports whether c was kept.
func (f *frontier) insert(c *candidate, limits *miniscript.Limits) bool {
	if !c.ast.IsNonMalleable() {
		return false
	}
	if c.scriptLen > limits.MaxScriptSize {
		f.tooLarge = true
		return false
	}

	list := f.types[c.key]
	for _, e := range list {
		if e.dominates(c) {
			return false
		}
	}
	kept := make([]*candidate, 0, len(list)+1)
	for _, e := range list {
		if !c.dominates(e) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, c)
	if len(kept) > frontierBound {
		kept = prune(kept)
	}
	f.types[c.key] = kept

	for _, e := range kept {
		if e == c {
			return true
		}
	}
	return false
}

// prune keeps frontierBound candidates, taking in turn the best remaining
// candidate of the script size regime and of the satisfaction size regime.
func prune(list []*candidate) []*candidate {
	bySize := append([]*candidate(nil), list...)
	sort.Slice(bySize, func(i, j int) bool {
		return lessBy(byScriptLen, bySat, byWorstSat)(bySize[i],
			bySize[j])
	})
	bySatisfaction := append([]*candidate(nil), list...)
	sort.Slice(bySatisfaction, func(i, j int) bool {
		return lessBy(bySat, byScriptLen, byWorstSat)(
			bySatisfaction[i], bySatisfaction[j])
	})

	picked := make(map[*candidate]bool, frontierBound)
	for i := 0; len(picked) < frontierBound && i < len(list); i++ {
		picked[bySize[i]] = true
		if len(picked) < frontierBound {
			picked[bySatisfaction[i]] = true
		}
	}

	kept := make([]*candidate, 0, frontierBound)
	for _, c := range bySize {
		if picked[c] {
			kept = append(kept, c)
		}
	}
	return kept
}

// wrapRule is a wrapper, or a sugar form acting as one, together with the
// effect it has on the expected witness sizes.
type wrapRule struct {
	build func(*miniscript.AST) (*miniscript.AST, error)
	sizes func(sat, dsat float64) (float64, float64)
}

func wrapper(frag miniscript.Fragment) func(*miniscript.AST) (*miniscript.AST,
	error) {

	return func(sub *miniscript.AST) (*miniscript.AST, error) {
		return miniscript.NewWrapper(frag, sub)
	}
}

func unchanged(sat, dsat float64) (float64, float64) {
	return sat, dsat
}

var wrapRules = []wrapRule{
	{wrapper(miniscript.FragWrapA), unchanged},
	{wrapper(miniscript.FragWrapS), unchanged},
	{wrapper(miniscript.FragWrapC), unchanged},
	{wrapper(miniscript.FragWrapN), unchanged},
	{wrapper(miniscript.FragWrapD), func(sat, _ float64) (float64, float64) {
		return sat + oneBytes, zeroBytes
	}},
	{wrapper(miniscript.FragWrapV), func(sat, _ float64) (float64, float64) {
		return sat, math.Inf(1)
	}},
	{wrapper(miniscript.FragWrapJ), func(sat, _ float64) (float64, float64) {
		return sat, zeroBytes
	}},

	// t:X = and_v(X,1)
	{func(sub *miniscript.AST) (*miniscript.AST, error) {
		return miniscript.NewCombinator(miniscript.FragAndV, sub,
			miniscript.NewTrue())
	}, func(sat, _ float64) (float64, float64) {
		return sat, math.Inf(1)
	}},

	// l:X = or_i(0,X)
	{func(sub *miniscript.AST) (*miniscript.AST, error) {
		return miniscript.NewCombinator(miniscript.FragOrI,
			miniscript.NewFalse(), sub)
	}, func(sat, dsat float64) (float64, float64) {
		return sat + zeroBytes, math.Min(oneBytes, dsat+zeroBytes)
	}},

	// u:X = or_i(X,0)
	{func(sub *miniscript.AST) (*miniscript.AST, error) {
		return miniscript.NewCombinator(miniscript.FragOrI, sub,
			miniscript.NewFalse())
	}, func(sat, _ float64) (float64, float64) {
		return sat + oneBytes, zeroBytes
	}},
}

// mix returns the expected size of a choice between two satisfaction paths
// taken with probability p and 1-p.  An impossible path is never taken.
func mix(p, x, y float64) float64 {
	switch {
	case math.IsInf(x, 1):
		return y
	case math.IsInf(y, 1):
		return x
	}
	return p*x + (1-p)*y
}

// sizeRule computes the expected satisfaction and dissatisfaction sizes of a
// combinator from those of its arguments.
type sizeRule func(args []*candidate) (sat, dsat float64)

func andSizes(frag miniscript.Fragment) sizeRule {
	return func(args []*candidate) (float64, float64) {
		x, y := args[0], args[1]
		sat := x.sat + y.sat
		if frag == miniscript.FragAndB {
			return sat, x.dsat + y.dsat
		}
		return sat, math.Inf(1)
	}
}

func orSizes(frag miniscript.Fragment, p float64) sizeRule {
	return func(args []*candidate) (float64, float64) {
		x, z := args[0], args[1]
		switch frag {
		case miniscript.FragOrB:
			return mix(p, x.sat+z.dsat, x.dsat+z.sat), x.dsat + z.dsat
		case miniscript.FragOrD:
			return mix(p, x.sat, x.dsat+z.sat), x.dsat + z.dsat
		case miniscript.FragOrC:
			return mix(p, x.sat, x.dsat+z.sat), math.Inf(1)
		}

		// or_i
		return mix(p, x.sat+oneBytes, z.sat+zeroBytes),
			math.Min(x.dsat+oneBytes, z.dsat+zeroBytes)
	}
}

// andOrSizes is andor(X,Y,Z) where X and Y are satisfied together with
// probability p.
func andOrSizes(p float64) sizeRule {
	return func(args []*candidate) (float64, float64) {
		x, y, z := args[0], args[1], args[2]
		return mix(p, x.sat+y.sat, x.dsat+z.sat), x.dsat + z.dsat
	}
}

// threshSizes assumes every sub-policy is equally likely to be among the k
// satisfied ones, and picks the k cheapest to satisfy.
func threshSizes(k int, args []*candidate) (float64, float64) {
	var dsat float64
	extra := make([]float64, len(args))
	for i, arg := range args {
		dsat += arg.dsat
		extra[i] = arg.sat - arg.dsat
	}
	sort.Float64s(extra)
	sat := dsat
	for _, e := range extra[:k] {
		sat += e
	}
	return sat, dsat
}

// compiler holds the memoized frontiers of one compilation.
type compiler struct {
	ctx    *miniscript.Context
	limits *miniscript.Limits
	memo   map[*Policy]*frontier

	// falseFrontier holds the single fragment 0, used as the third
	// argument of and_n.
	falseFrontier *frontier
}

func newCompiler(ctx *miniscript.Context) *compiler {
	c := &compiler{
		ctx:           ctx,
		limits:        &ctx.Limits,
		memo:          make(map[*Policy]*frontier),
		falseFrontier: newFrontier(),
	}
	c.falseFrontier.insert(leafCandidate(miniscript.NewFalse()), c.limits)
	return c
}

// closeWrappers applies wrappers to the candidates of the frontier until no
// new candidate is kept.
func (c *compiler) closeWrappers(f *frontier) {
	queue := f.all()
	for round := 0; len(queue) > 0 && round < maxWrapRounds; round++ {
		var next []*candidate
		for _, cand := range queue {
			for _, rule := range wrapRules {
				ast, err := rule.build(cand.ast)
				if err != nil {
					continue
				}
				sat, dsat := rule.sizes(cand.sat, cand.dsat)
				wrapped := newCandidate(ast, sat, dsat)
				if f.insert(wrapped, c.limits) {
					next = append(next, wrapped)
				}
			}
		}
		queue = next
	}
}

// combine inserts into dst every valid combination of frag over one
// candidate of each source frontier.
func (c *compiler) combine(dst *frontier, frag miniscript.Fragment,
	sizes sizeRule, srcs ...*frontier) {

	keys := make([][]string, len(srcs))
	for i, src := range srcs {
		keys[i] = src.keys()
	}

	picks := make([][]*candidate, len(srcs))
	var walk func(i int)
	walk = func(i int) {
		if i < len(srcs) {
			for _, key := range keys[i] {
				picks[i] = srcs[i].types[key]
				walk(i + 1)
			}
			return
		}
		c.combineTypes(dst, frag, sizes, picks)
	}
	walk(0)
}

// combineTypes combines the candidates of one tuple of argument types.
// Whether a combinator accepts its arguments only depends on their types,
// so a single failed attempt rules out the whole tuple.
func (c *compiler) combineTypes(dst *frontier, frag miniscript.Fragment,
	sizes sizeRule, lists [][]*candidate) {

	args := make([]*candidate, len(lists))
	asts := make([]*miniscript.AST, len(lists))
	for i, list := range lists {
		asts[i] = list[0].ast
	}
	if _, err := miniscript.NewCombinator(frag, asts...); err != nil {
		return
	}

	var walk func(i int)
	walk = func(i int) {
		if i < len(lists) {
			for _, cand := range lists[i] {
				args[i] = cand
				asts[i] = cand.ast
				walk(i + 1)
			}
			return
		}
		ast, err := miniscript.NewCombinator(frag, asts...)
		if err != nil {
			return
		}
		sat, dsat := sizes(args)
		dst.insert(newCandidate(ast, sat, dsat), c.limits)
	}
	walk(0)
}

// compile returns the closed frontier of a sub-policy.
func (c *compiler) compile(p *Policy) (*frontier, error) {
	if f, ok := c.memo[p]; ok {
		return f, nil
	}

	f := newFrontier()
	leaf := func(ast *miniscript.AST, err error) error {
		if err != nil {
			return policyError(ErrInvalidPolicy, p, err.Error())
		}
		f.insert(leafCandidate(ast), c.limits)
		return nil
	}

	var err error
	switch p.Kind {
	case KindUnsatisfiable:
		err = leaf(miniscript.NewFalse(), nil)

	case KindTrivial:
		err = leaf(miniscript.NewTrue(), nil)

	case KindKey:
		if err = leaf(miniscript.NewPkK(p.Key)); err == nil {
			err = leaf(miniscript.NewPkH(p.Key))
		}

	case KindAfter:
		err = leaf(miniscript.NewAfter(p.Value))

	case KindOlder:
		err = leaf(miniscript.NewOlder(p.Value))

	case KindHash:
		err = leaf(miniscript.NewHashLock(p.HashKind, p.Hash))

	case KindAnd:
		err = c.compileAnd(f, p)

	case KindOr:
		err = c.compileOr(f, p)

	case KindThresh:
		err = c.compileThresh(f, p)

	default:
		err = policyError(ErrInvalidPolicy, nil,
			fmt.Sprintf("unknown policy kind %d", p.Kind))
	}
	if err != nil {
		return nil, err
	}

	c.closeWrappers(f)

	if len(f.types) == 0 {
		if f.tooLarge {
			return nil, policyError(ErrPolicyTooComplex, p,
				fmt.Sprintf("every compilation exceeds the %s "+
					"script size limit of %d bytes",
					c.ctx.Name, c.limits.MaxScriptSize))
		}
		return nil, policyError(ErrImpossibleNonMalleable, p,
			"no non-malleable compilation")
	}

	c.memo[p] = f
	return f, nil
}

func (c *compiler) compileAnd(f *frontier, p *Policy) error {
	left, err := c.compile(p.Subs[0])
	if err != nil {
		return err
	}
	right, err := c.compile(p.Subs[1])
	if err != nil {
		return err
	}

	for _, pair := range [][2]*frontier{{left, right}, {right, left}} {
		x, y := pair[0], pair[1]
		c.combine(f, miniscript.FragAndV, andSizes(miniscript.FragAndV),
			x, y)
		c.combine(f, miniscript.FragAndB, andSizes(miniscript.FragAndB),
			x, y)

		// and_n(X,Y) = andor(X,Y,0)
		c.combine(f, miniscript.FragAndOr, andOrSizes(1), x, y,
			c.falseFrontier)
	}
	return nil
}

func (c *compiler) compileOr(f *frontier, p *Policy) error {
	left, err := c.compile(p.Subs[0])
	if err != nil {
		return err
	}
	right, err := c.compile(p.Subs[1])
	if err != nil {
		return err
	}

	w := p.weights()
	prob := float64(w[0]) / float64(w[0]+w[1])

	type branch struct {
		policy *Policy
		front  *frontier
		p      float64
	}
	orders := [][2]branch{
		{{p.Subs[0], left, prob}, {p.Subs[1], right, 1 - prob}},
		{{p.Subs[1], right, 1 - prob}, {p.Subs[0], left, prob}},
	}
	frags := []miniscript.Fragment{
		miniscript.FragOrB, miniscript.FragOrC, miniscript.FragOrD,
		miniscript.FragOrI,
	}
	for _, order := range orders {
		x, z := order[0], order[1]
		for _, frag := range frags {
			c.combine(f, frag, orSizes(frag, x.p), x.front, z.front)
		}

		// andor(X,Y,Z) when the first branch is and(X,Y).
		if x.policy.Kind != KindAnd {
			continue
		}
		a, err := c.compile(x.policy.Subs[0])
		if err != nil {
			return err
		}
		b, err := c.compile(x.policy.Subs[1])
		if err != nil {
			return err
		}
		c.combine(f, miniscript.FragAndOr, andOrSizes(x.p), a, b,
			z.front)
		c.combine(f, miniscript.FragAndOr, andOrSizes(x.p), b, a,
			z.front)
	}
	return nil
}

func (c *compiler) compileThresh(f *frontier, p *Policy) error {
	k, n := p.K, len(p.Subs)
	switch {
	case k == 0:
		f.insert(leafCandidate(miniscript.NewTrue()), c.limits)
		return nil

	case k > n:
		return policyError(ErrUnsatisfiable, p, fmt.Sprintf("threshold "+
			"%d is larger than the %d sub-policies", k, n))
	}

	// A threshold over bare keys is a multisig.
	keys := make([][]byte, 0, n)
	for _, sub := range p.Subs {
		if sub.Kind == KindKey {
			keys = append(keys, sub.Key)
		}
	}
	if len(keys) == n && n <= c.limits.MaxMultisigKeys {
		ast, err := miniscript.NewMulti(k, keys)
		if err != nil {
			return policyError(ErrInvalidPolicy, p, err.Error())
		}
		f.insert(leafCandidate(ast), c.limits)
		return nil
	}

	// The first argument of thresh must be Bdu and the others Wdu.  A
	// thresh is only non-malleable when every argument is also e, so only
	// such candidates are used.  Each sub-policy contributes its best
	// candidate of either type, and every sub-policy is tried in the first
	// position.
	bestB := make([]*candidate, n)
	bestW := make([]*candidate, n)
	for i, sub := range p.Subs {
		front, err := c.compile(sub)
		if err != nil {
			return err
		}
		bestB[i] = best(front, 'B', "due")
		bestW[i] = best(front, 'W', "due")
	}
	for first := 0; first < n; first++ {
		args := make([]*candidate, 0, n)
		args = append(args, bestB[first])
		for i := range p.Subs {
			if i != first {
				args = append(args, bestW[i])
			}
		}
		c.insertThresh(f, k, args)
	}

	// thresh(n,...) is also an and chain, thresh(1,...) an or chain.
	if n < 2 {
		return nil
	}
	var chain *Policy
	switch k {
	case n:
		chain = foldPolicies(KindAnd, p.Subs)
	case 1:
		chain = foldPolicies(KindOr, p.Subs)
	default:
		return nil
	}
	front, err := c.compile(chain)
	if err != nil {
		return err
	}
	for _, cand := range front.all() {
		f.insert(cand, c.limits)
	}
	return nil
}

// insertThresh inserts thresh(k,args...) when every argument is available.
func (c *compiler) insertThresh(f *frontier, k int, args []*candidate) {
	asts := make([]*miniscript.AST, len(args))
	for i, arg := range args {
		if arg == nil {
			return
		}
		asts[i] = arg.ast
	}
	ast, err := miniscript.NewThresh(k, asts)
	if err != nil {
		return
	}
	sat, dsat := threshSizes(k, args)
	f.insert(newCandidate(ast, sat, dsat), c.limits)
}

// best returns the candidate of the given type and properties with the lowest
// script size plus expected witness sizes, or nil.
func best(f *frontier, basic byte, props string) *candidate {
	var result *candidate
	less := lessBy(func(c *candidate) float64 {
		return c.cost() + c.dsat
	})
	for _, cand := range f.all() {
		if !cand.hasProps(basic, props) || math.IsInf(cand.dsat, 1) {
			continue
		}
		if result == nil || less(cand, result) {
			result = cand
		}
	}
	return result
}

// foldPolicies right folds subs into a chain of two-way and or or nodes.  Or
// weights keep every sub-policy equally likely.
func foldPolicies(kind Kind, subs []*Policy) *Policy {
	if len(subs) == 1 {
		return subs[0]
	}
	node := &Policy{
		Kind: kind,
		Subs: []*Policy{subs[0], foldPolicies(kind, subs[1:])},
	}
	if kind == KindOr {
		node.Weights = []int{1, len(subs) - 1}
	}
	return node
}

// satisfiable returns whether some assignment of keys, preimages and time
// locks satisfies the policy.
func satisfiable(p *Policy) bool {
	switch p.Kind {
	case KindUnsatisfiable:
		return false
	case KindAnd:
		return satisfiable(p.Subs[0]) && satisfiable(p.Subs[1])
	case KindOr:
		return satisfiable(p.Subs[0]) || satisfiable(p.Subs[1])
	case KindThresh:
		count := 0
		for _, sub := range p.Subs {
			if satisfiable(sub) {
				count++
			}
		}
		return count >= p.K
	}
	return true
}

// Compile compiles a policy into the fragment tree with the lowest sum of
// script size and expected satisfaction size.  The tree is of type B,
// non-malleable and respects the limits of the context.
func Compile(p *Policy, opts *CompileOptions) (*CompilationResult, error) {
	ctx := miniscript.SegwitV0
	if opts != nil && opts.Context != nil {
		ctx = opts.Context
	}

	keys := p.Keys()
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if bytes.Equal(keys[i], keys[j]) {
				return nil, policyError(ErrUnsatisfiable, nil,
					fmt.Sprintf("duplicate key %x", keys[i]))
			}
		}
	}
	if !satisfiable(p) {
		return nil, policyError(ErrUnsatisfiable, p,
			"policy can never be satisfied")
	}

	c := newCompiler(ctx)
	f, err := c.compile(p)
	if err != nil {
		return nil, err
	}

	var (
		winner   *candidate
		limitErr error
	)
	less := lessBy(byCost, byWorstSat)
	for _, cand := range f.all() {
		if cand.ast.BasicType() != "B" || math.IsInf(cand.sat, 1) {
			continue
		}
		if err := ctx.CheckLimits(cand.ast); err != nil {
			limitErr = err
			continue
		}
		if winner == nil || less(cand, winner) {
			winner = cand
		}
	}
	switch {
	case winner == nil && limitErr != nil:
		return nil, policyError(ErrPolicyTooComplex, p, limitErr.Error())
	case winner == nil:
		return nil, policyError(ErrImpossibleNonMalleable, p,
			"no non-malleable compilation of type B")
	}

	frag := winner.ast.Clone()
	script, err := frag.Script()
	if err != nil {
		return nil, err
	}
	log.Debugf("Compiled %v to %v", newLogClosure(p.String),
		newLogClosure(frag.String))

	return &CompilationResult{
		Fragment:         frag,
		Script:           script,
		SatisfactionCost: winner.worstSat,
		ExpectedCost:     winner.sat,
	}, nil
}
