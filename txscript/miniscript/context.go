package miniscript

// Limits are the resource limits a fragment tree must respect to be usable
// as a script in some context.
type Limits struct {
	// MaxScriptSize is the maximum size of the script in bytes.
	MaxScriptSize int

	// MaxOps is the maximum number of non-push opcodes executed by a
	// satisfaction, counting the keys of executed CHECKMULTISIGs.
	MaxOps int

	// MaxStackItems is the maximum number of witness elements of a
	// satisfaction.
	MaxStackItems int

	// MaxMultisigKeys is the maximum number of keys of a single multi
	// fragment.
	MaxMultisigKeys int
}

// Context describes where a script is executed.  It carries the resource
// limits and the ordered table of leaf patterns used by Analyze.
type Context struct {
	Name   string
	Limits Limits

	// Terminals is the ordered rule table used to recognize leaf
	// fragments.  A nil table selects DefaultTerminals.
	Terminals []TerminalRule
}

var (
	// SegwitV0 is the context of a P2WSH witness script.
	SegwitV0 = &Context{
		Name: "segwitv0",
		Limits: Limits{
			MaxScriptSize:   3600,
			MaxOps:          201,
			MaxStackItems:   100,
			MaxMultisigKeys: 20,
		},
	}

	// Legacy is the context of a P2SH redeem script.
	Legacy = &Context{
		Name: "legacy",
		Limits: Limits{
			MaxScriptSize:   520,
			MaxOps:          201,
			MaxStackItems:   1000,
			MaxMultisigKeys: 20,
		},
	}
)

// terminals returns the rule table of the context.
func (c *Context) terminals() []TerminalRule {
	if c.Terminals == nil {
		return defaultTerminals
	}
	return c.Terminals
}

// CheckLimits checks the fragment tree against the limits of the context.
// The returned error wraps ErrLimitExceeded.
func (c *Context) CheckLimits(a *AST) error {
	l := c.Limits
	if a.scriptLen > l.MaxScriptSize {
		return limitError("the script size is %d, which is larger than "+
			"the maximum %s script size of %d", a.scriptLen, c.Name,
			l.MaxScriptSize)
	}
	if ops := a.MaxOpCount(); ops > l.MaxOps {
		return limitError("the script requires a maximum number of %d "+
			"ops, which is larger than the limit of %d", ops,
			l.MaxOps)
	}
	if items, ok := a.MaxStackItems(); ok && items > l.MaxStackItems {
		return limitError("a satisfaction requires up to %d stack "+
			"items, which is larger than the limit of %d", items,
			l.MaxStackItems)
	}

	var err error
	a.walk(func(node *AST) bool {
		if node.fragment == FragMulti &&
			len(node.values) > l.MaxMultisigKeys {

			err = limitError("number of multisig keys %d exceeds "+
				"the limit of %d", len(node.values),
				l.MaxMultisigKeys)
			return false
		}
		return true
	})
	return err
}
