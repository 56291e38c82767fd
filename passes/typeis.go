package passes

import "github.com/wippyai/decompiler/hir"

// restoreTypeIs rewrites null tests of an as-cast into type tests:
//
//	(x as T) != null   =>   x is T
//	(x as T) == null   =>   !(x is T)
//
// The unsigned compare forms compilers emit, (x as T) > null and
// (x as T) <= null, are matched as well.
func restoreTypeIs(c *Context, root *hir.Block) error {
	_, err := hir.Transform(root, func(n hir.Node) (hir.Node, error) {
		x, o, ok := operatorOf(n)
		if !ok {
			return n, nil
		}
		var as *hir.TypeAs
		var positive bool
		switch o {
		case hir.OpNotEqual, hir.OpEqual:
			as = asCast(x.Arg(0), x.Arg(1))
			if as == nil {
				as = asCast(x.Arg(1), x.Arg(0))
			}
			positive = o == hir.OpNotEqual
		case hir.OpGreaterThan, hir.OpLessThanOrEqual:
			as = asCast(x.Arg(0), x.Arg(1))
			positive = o == hir.OpGreaterThan
		}
		if as == nil {
			return n, nil
		}
		var nw hir.Node = hir.NewTypeIs(hir.Detach(as.Target()), as.Type)
		if !positive {
			nw = hir.Unary(hir.OpNot, nw)
		}
		c.changed(x)
		return nw, nil
	})
	return err
}

func asCast(x, other hir.Node) *hir.TypeAs {
	as, ok := x.(*hir.TypeAs)
	if !ok || !hir.IsNullLiteral(other) {
		return nil
	}
	return as
}
