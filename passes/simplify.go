package passes

import (
	"github.com/wippyai/decompiler/cfg"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/types"
)

// simplifyBooleans applies boolean algebra until the tree stops changing.
func simplifyBooleans(c *Context, root *hir.Block) error {
	for {
		changed := false
		_, err := hir.Transform(root, func(n hir.Node) (hir.Node, error) {
			x, _, ok := operatorOf(n)
			if !ok {
				return n, nil
			}
			r := c.simplify(x)
			if r != hir.Node(x) {
				changed = true
				c.changed(x)
			}
			return r, nil
		})
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
}

// simplify returns the replacement for x, or x itself. Children of x that
// end up in the replacement are detached first.
func (c *Context) simplify(x *hir.Operator) hir.Node {
	switch x.Op {
	case hir.OpEqual, hir.OpNotEqual:
		for i := 0; i < 2; i++ {
			v, ok := boolConst(x.Arg(i))
			if !ok {
				continue
			}
			other := take(x.Arg(1 - i))
			if v == (x.Op == hir.OpEqual) {
				return other
			}
			return not(other)
		}
	case hir.OpNot:
		a := x.Arg(0)
		if _, ok := boolConst(a); ok {
			return not(take(a))
		}
		if y, ok := a.(*hir.Operator); ok && negates(y.Op) {
			return not(take(a))
		}
	case hir.OpConditional:
		return c.conditional(x)
	case hir.OpAndAlso, hir.OpOrElse:
		// x || false and x && true are x.
		unit := x.Op == hir.OpAndAlso
		for i := 0; i < 2; i++ {
			if v, ok := boolConst(x.Arg(i)); ok && v == unit {
				return take(x.Arg(1 - i))
			}
		}
	}
	return x
}

// conditional folds a conditional with a bool constant branch, or with a
// branch repeating its test, into a logical operator.
func (c *Context) conditional(x *hir.Operator) hir.Node {
	test, t, f := x.Arg(0), x.Arg(1), x.Arg(2)
	if v, ok := boolConst(t); ok {
		test, f := take(test), take(f)
		if v {
			return hir.Binary(hir.OpOrElse, test, f)
		}
		return hir.Binary(hir.OpAndAlso, not(test), f)
	}
	if v, ok := boolConst(f); ok {
		test, t := take(test), take(t)
		if v {
			return hir.Binary(hir.OpOrElse, not(test), t)
		}
		return hir.Binary(hir.OpAndAlso, test, t)
	}
	if !cfg.Pure(test) {
		return x
	}
	if tt, ok := c.typeOf(test); !ok || !types.IsBoolean(tt) {
		return x
	}
	switch {
	case hir.Equiv(test, t):
		test, f := take(test), take(f)
		return hir.Binary(hir.OpOrElse, test, f)
	case hir.Equiv(test, f):
		test, t := take(test), take(t)
		return hir.Binary(hir.OpAndAlso, test, t)
	}
	return x
}

// negates reports whether a negation of op can be pushed into it.
func negates(op hir.OpType) bool {
	if _, ok := op.Inverse(); ok {
		return true
	}
	switch op {
	case hir.OpNot, hir.OpAndAlso, hir.OpOrElse, hir.OpXor:
		return true
	}
	return false
}

// not returns the simplified negation of the detached expression n.
func not(n hir.Node) hir.Node {
	if v, ok := boolConst(n); ok {
		return hir.NewBool(!v)
	}
	x, ok := n.(*hir.Operator)
	if !ok {
		return hir.Unary(hir.OpNot, n)
	}
	if inv, ok := x.Op.Inverse(); ok {
		x.Op = inv
		return x
	}
	switch x.Op {
	case hir.OpNot:
		return take(x.Arg(0))
	case hir.OpAndAlso, hir.OpOrElse:
		if x.Op == hir.OpAndAlso {
			x.Op = hir.OpOrElse
		} else {
			x.Op = hir.OpAndAlso
		}
		for i := 0; i < 2; i++ {
			a := x.Arg(i)
			x.SetChild(i, nil)
			x.SetChild(i, not(a))
		}
		return x
	case hir.OpXor:
		x.Op = hir.OpEqual
		return x
	}
	return hir.Unary(hir.OpNot, n)
}

func take(n hir.Node) hir.Node {
	if n.Parent() == nil {
		return n
	}
	p := n.Parent()
	p.SetChild(hir.IndexInParent(n), nil)
	return n
}
