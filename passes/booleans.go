package passes

import (
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/types"
)

// restoreBooleans makes every value used as a condition bool typed.
// Integral 0 and 1 constants become false and true; other integral values,
// constants included, are compared against zero and references against null. Constants flowing
// into bool locations (stores, returns, arguments, the other branch of a
// bool conditional, comparisons with a bool) are converted the same way.
func restoreBooleans(c *Context, root *hir.Block) error {
	var sites []hir.Node
	hir.Walk(root, func(n hir.Node) bool {
		switch x := n.(type) {
		case *hir.If:
			sites = append(sites, x.Test())
		case *hir.Loop:
			if x.Test() != nil {
				sites = append(sites, x.Test())
			}
		case *hir.Catch:
			if x.Filter() != nil {
				sites = append(sites, x.Filter())
			}
		case *hir.Operator:
			switch {
			case x.Op.IsLogical():
				sites = append(sites, x.Args()...)
			case x.Op == hir.OpConditional:
				sites = append(sites, x.Arg(0))
			}
		}
		return true
	})
	// Inner sites first, so an outer condition sees its operands fixed.
	for i := len(sites) - 1; i >= 0; i-- {
		c.toBool(sites[i])
	}
	c.boolStores(root)
	return nil
}

// toBool rewrites n, a value used as a condition, into a bool expression.
func (c *Context) toBool(n hir.Node) {
	if v, ok := intConst(n); ok && (v == 0 || v == 1) {
		nw := hir.NewBool(v == 1)
		hir.Replace(n, nw)
		c.changed(nw)
		return
	}
	if x, o, ok := operatorOf(n); ok && o == hir.OpConditional {
		c.toBool(x.Arg(1))
		c.toBool(x.Arg(2))
		return
	}
	t, ok := c.typeOf(n)
	if !ok || t == nil || types.IsBoolean(t) {
		return
	}
	var zero hir.Node
	switch {
	case types.IsInteger(t), types.IsFloat(t):
		zero = hir.NewConst(zeroOf(t), t)
	case types.IsReference(t), types.IsPointer(t):
		zero = hir.NewNullConst()
	default:
		return
	}
	nw := rewrap(n, func(x hir.Node) hir.Node { return hir.Binary(hir.OpNotEqual, x, zero) })
	c.changed(nw)
}

func zeroOf(t types.Type) any {
	b, ok := t.(*types.Basic)
	if !ok {
		if cl, isClass := t.(*types.Class); isClass && cl.Underlying != nil {
			b = cl.Underlying
		} else {
			return int32(0)
		}
	}
	switch b.Kind() {
	case types.Int8:
		return int8(0)
	case types.UInt8:
		return uint8(0)
	case types.Int16:
		return int16(0)
	case types.UInt16, types.Char:
		return uint16(0)
	case types.UInt32:
		return uint32(0)
	case types.Int64:
		return int64(0)
	case types.UInt64:
		return uint64(0)
	case types.Float32:
		return float32(0)
	case types.Float64:
		return float64(0)
	}
	return int32(0)
}

// boolStores converts integral constants written to bool locations.
func (c *Context) boolStores(root *hir.Block) {
	isBool := func(n hir.Node) bool {
		t, ok := c.typeOf(n)
		return ok && types.IsBoolean(t)
	}
	var fix []hir.Node
	hir.Walk(root, func(n hir.Node) bool {
		switch x := n.(type) {
		case *hir.Assign:
			if isBool(x.Lhs()) {
				fix = append(fix, x.Rhs())
			}
		case *hir.Return:
			if x.Value() != nil && types.IsBoolean(c.Returns) {
				fix = append(fix, x.Value())
			}
		case *hir.Apply:
			fix = append(fix, boolArgs(x)...)
		case *hir.Operator:
			switch {
			case x.Op == hir.OpConditional:
				if isBool(x.Arg(1)) {
					fix = append(fix, x.Arg(2))
				} else if isBool(x.Arg(2)) {
					fix = append(fix, x.Arg(1))
				}
			case x.Op == hir.OpEqual || x.Op == hir.OpNotEqual:
				if isBool(x.Arg(0)) {
					fix = append(fix, x.Arg(1))
				} else if isBool(x.Arg(1)) {
					fix = append(fix, x.Arg(0))
				}
			}
		}
		return true
	})
	for _, n := range fix {
		c.constToBool(n)
	}
}

// constToBool converts n when it is an integral constant or a conditional
// whose branches are. Constants other than 0 and 1 are compared with zero.
func (c *Context) constToBool(n hir.Node) {
	if v, ok := intConst(n); ok {
		if v != 0 && v != 1 {
			c.toBool(n)
			return
		}
		nw := hir.NewBool(v == 1)
		hir.Replace(n, nw)
		c.changed(nw)
		return
	}
	if x, o, ok := operatorOf(n); ok && o == hir.OpConditional {
		c.constToBool(x.Arg(1))
		c.constToBool(x.Arg(2))
	}
}

func boolArgs(x *hir.Apply) []hir.Node {
	callee, ok := x.Callee().(*hir.Lambda)
	if !ok || callee.Sig == nil {
		return nil
	}
	params := callee.Sig.Params
	var out []hir.Node
	for i, a := range x.Args() {
		if i < len(params) && types.IsBoolean(params[i]) {
			out = append(out, a)
		}
	}
	return out
}
