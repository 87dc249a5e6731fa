// Package classify recognizes compiler-generated helper functions and
// derives descriptive names for them.
package classify

import (
	"strings"

	"sessionstarter/internal/engine"
)

// Kind names a helper-function shape.
type Kind string

const (
	KindImportJump   Kind = "import-jump"
	KindWrapper      Kind = "wrapper"
	KindGlobalAssign Kind = "global-assign"
)

// Context carries per-session facts the rules consult.
type Context struct {
	Arch    string
	Bits    int
	Imports map[uint64]string // PLT/IAT slot -> imported symbol
}

// NewContext indexes imports by the address their stubs jump through.
func NewContext(info engine.Info, imports []engine.Import) Context {
	ctx := Context{Arch: info.Arch, Bits: info.Bits, Imports: make(map[uint64]string, len(imports))}
	for _, imp := range imports {
		if imp.PLT != 0 && imp.Name != "" {
			ctx.Imports[imp.PLT] = imp.Name
		}
	}
	return ctx
}

// Rule pairs a shape predicate with the prefix applied on a match. Match
// returns the name component that follows the prefix and the target the
// function forwards to (empty when there is none).
type Rule struct {
	Kind   Kind
	Prefix string
	Match  func(fn engine.Function, ctx Context) (component, target string, ok bool)
}

// Match is the outcome of classifying one function.
type Match struct {
	Kind    Kind
	NewName string
	Target  string
}

// Prefixes are the name prefixes for each rule.
type Prefixes struct {
	ImportJump   string
	Wrapper      string
	GlobalAssign string
}

// DefaultPrefixes are the prefixes used when no config overrides them.
var DefaultPrefixes = Prefixes{
	ImportJump:   "jmp_",
	Wrapper:      "wrapper_",
	GlobalAssign: "globalassign_",
}

// Classifier evaluates an ordered rule table; the first matching rule wins.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier with the import-jump, wrapper and global-assign
// rules, in that priority order.
func New(p Prefixes) *Classifier {
	return NewWithRules([]Rule{
		{Kind: KindImportJump, Prefix: p.ImportJump, Match: matchImportJump},
		{Kind: KindWrapper, Prefix: p.Wrapper, Match: matchWrapper},
		{Kind: KindGlobalAssign, Prefix: p.GlobalAssign, Match: matchGlobalAssign},
	})
}

// NewWithRules returns a Classifier over a caller-supplied rule table.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Rules returns the rule table in priority order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify returns the first rule fn matches. Functions already carrying
// one of the rule prefixes are left alone so that repeated passes converge.
func (c *Classifier) Classify(fn engine.Function, ctx Context) (Match, bool) {
	if c.alreadyNamed(fn.Name) {
		return Match{}, false
	}
	for _, r := range c.rules {
		component, target, ok := r.Match(fn, ctx)
		if !ok {
			continue
		}
		return Match{Kind: r.Kind, NewName: r.Prefix + component, Target: target}, true
	}
	return Match{}, false
}

func (c *Classifier) alreadyNamed(name string) bool {
	for _, r := range c.rules {
		if r.Prefix != "" && strings.HasPrefix(name, r.Prefix) {
			return true
		}
	}
	return false
}
