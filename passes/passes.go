// Package passes holds the postprocessing passes that restore source
// idioms on a structured method tree.
//
// The passes run in a fixed order of named slots. Disabling a pass skips
// its slot without moving the others, so new passes can take a placeholder
// slot later without renumbering. Every pass leaves a tree it has nothing
// to do for unchanged.
package passes

import (
	"github.com/wippyai/decompiler/domain"
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/typeinfer"
	"github.com/wippyai/decompiler/types"
)

// Pass names, in slot order.
const (
	LoopIterators    = "restore-loop-iterators"
	Booleans         = "restore-booleans"
	TypeIs           = "restore-type-is"
	SimplifyBooleans = "simplify-booleans"
	Enums            = "restore-enums"
	Usings           = "restore-usings"
	GotoLoops        = "restore-goto-loops"
)

// Context is the state a pass may consult besides the tree.
type Context struct {
	Domain *domain.Domain
	// Returns is the declared result type of the method.
	Returns types.Type
}

// Func rewrites root in place.
type Func func(c *Context, root *hir.Block) error

// Pass is one slot of the pipeline.
type Pass struct {
	Name string
	Run  Func
	// Placeholder marks a slot that does not transform anything yet.
	Placeholder bool
}

var all = []Pass{
	{Name: LoopIterators, Run: restoreLoopIterators},
	{Name: Booleans, Run: restoreBooleans},
	{Name: TypeIs, Run: restoreTypeIs},
	{Name: SimplifyBooleans, Run: simplifyBooleans},
	{Name: Enums, Run: identity, Placeholder: true},
	{Name: Usings, Run: identity, Placeholder: true},
	{Name: GotoLoops, Run: identity, Placeholder: true},
}

// All returns the passes in slot order.
func All() []Pass { return append([]Pass(nil), all...) }

// Names returns the pass names in slot order.
func Names() []string {
	out := make([]string, len(all))
	for i, p := range all {
		out[i] = p.Name
	}
	return out
}

// Slot returns the position of the named pass, or -1.
func Slot(name string) int {
	for i, p := range all {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Lookup returns the named pass.
func Lookup(name string) (Pass, bool) {
	if i := Slot(name); i >= 0 {
		return all[i], true
	}
	return Pass{}, false
}

// Runner applies the passes in slot order.
type Runner struct {
	// Disabled names passes to skip.
	Disabled map[string]bool
	// OnPass is called after each pass that ran.
	OnPass func(name string, root *hir.Block)
}

// NewRunner returns a runner skipping the named passes. Unknown names are
// an error.
func NewRunner(disable ...string) (*Runner, error) {
	r := &Runner{Disabled: make(map[string]bool)}
	for _, name := range disable {
		if Slot(name) < 0 {
			return nil, errors.NotFound(errors.PhaseConfig, "pass", name)
		}
		r.Disabled[name] = true
	}
	return r, nil
}

// Run applies every enabled pass to root. The domain's cached facts for
// the tree are dropped after each pass that may have changed it.
func (r *Runner) Run(c *Context, root *hir.Block) error {
	if c == nil {
		c = &Context{}
	}
	for _, p := range all {
		if r != nil && r.Disabled[p.Name] {
			continue
		}
		if err := p.Run(c, root); err != nil {
			var e *errors.Error
			if errors.As(err, &e) {
				return err
			}
			return errors.Wrap(errors.PhasePass, errors.KindTraversal, err, "pass "+p.Name)
		}
		if c.Domain != nil && !p.Placeholder {
			c.Domain.Forget(root)
		}
		if r != nil && r.OnPass != nil {
			r.OnPass(p.Name, root)
		}
	}
	return nil
}

// Run applies every pass with the default runner.
func Run(c *Context, root *hir.Block) error {
	var r *Runner
	return r.Run(c, root)
}

func identity(*Context, *hir.Block) error { return nil }

// typeOf infers the type of n, reporting false when inference fails.
func (c *Context) typeOf(n hir.Node) (types.Type, bool) {
	t, err := typeinfer.TypeOf(c.Domain, n)
	if err != nil {
		return nil, false
	}
	return t, true
}

// changed drops the cached facts that depend on n.
func (c *Context) changed(n hir.Node) {
	if c.Domain != nil {
		c.Domain.Evict(n)
	}
}

// rewrap puts mk(n) in the place n occupies; mk receives n detached.
func rewrap(n hir.Node, mk func(hir.Node) hir.Node) hir.Node {
	p := n.Parent()
	i := hir.IndexInParent(n)
	p.SetChild(i, nil)
	nw := mk(n)
	p.SetChild(i, nw)
	return nw
}

func boolConst(n hir.Node) (value, ok bool) {
	c, isConst := n.(*hir.Const)
	if !isConst {
		return false, false
	}
	v, ok := c.Value.(bool)
	return v, ok
}

// intConst returns the value of an integral constant.
func intConst(n hir.Node) (int64, bool) {
	c, ok := n.(*hir.Const)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case int8:
		return int64(v), true
	case uint8:
		return int64(v), true
	case int16:
		return int64(v), true
	case uint16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case int:
		return int64(v), true
	}
	return 0, false
}

func operatorOf(n hir.Node) (*hir.Operator, hir.OpType, bool) {
	x, ok := n.(*hir.Operator)
	if !ok {
		return nil, 0, false
	}
	return x, x.Op, true
}
