// Package typeinfer annotates HIR trees with inferred types in a single
// bottom-up pass.
//
// Statements and other nodes that produce no value have a nil type.
// Results are memoized in the domain's type cache; a traversal that fails
// leaves the cache untouched.
package typeinfer

import (
	"fmt"

	"github.com/wippyai/decompiler/domain"
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/types"
)

type inferrer struct {
	d     *domain.Domain
	local map[hir.Node]types.Type
}

// Infer types every node under root and returns the type of root. On
// success the results are committed to d's cache.
func Infer(d *domain.Domain, root hir.Node) (types.Type, error) {
	in := &inferrer{d: d, local: make(map[hir.Node]types.Type)}
	t, err := in.visit(root)
	if err != nil {
		return nil, err
	}
	if d != nil {
		d.StoreTypes(in.local)
	}
	return t, nil
}

// TypeOf returns the type of n, answering from the cache when possible.
func TypeOf(d *domain.Domain, n hir.Node) (types.Type, error) {
	if d != nil {
		if t, ok := d.Type(n); ok {
			return t, nil
		}
	}
	return Infer(d, n)
}

// Of infers the type of n without a domain.
func Of(n hir.Node) (types.Type, error) {
	return Infer(nil, n)
}

// RequireBool fails with an unexpected-node error unless n is bool typed.
func RequireBool(d *domain.Domain, n hir.Node) error {
	t, err := TypeOf(d, n)
	if err != nil {
		return err
	}
	if !types.IsBoolean(t) {
		return errors.UnexpectedNode(errors.PhaseTypeInfer, hir.Dump(n, hir.CSharp), n.Kind().String(), "bool")
	}
	return nil
}

func (in *inferrer) visit(n hir.Node) (types.Type, error) {
	if n == nil {
		return nil, nil
	}
	kids := make([]types.Type, n.NumChildren())
	for i, c := range n.Children() {
		if c == nil {
			continue
		}
		t, err := in.visit(c)
		if err != nil {
			return nil, err
		}
		kids[i] = t
	}
	if in.d != nil {
		if t, ok := in.d.Type(n); ok {
			return t, nil
		}
	}
	t, err := in.rule(n, kids)
	if err != nil {
		return nil, err
	}
	in.local[n] = t
	return t, nil
}

func mismatch(n hir.Node, format string, args ...any) error {
	return errors.New(errors.PhaseTypeInfer, errors.KindTypeMismatch).
		Node(hir.Dump(n, hir.CSharp), n.Kind().String()).
		Detail(format, args...).
		Build()
}

func (in *inferrer) rule(n hir.Node, kids []types.Type) (types.Type, error) {
	switch x := n.(type) {
	case *hir.Const:
		if x.Value == nil {
			return types.Typ[types.Null], nil
		}
		return x.Type, nil
	case *hir.Ref:
		return x.Sym.Type(), nil
	case *hir.Fld:
		return x.Field.Type, nil
	case *hir.Prop:
		return x.Property.Type, nil
	case *hir.Loophole:
		return x.Type, nil
	case *hir.Operator:
		return operator(x, kids)
	case *hir.Convert:
		return x.Type, nil
	case *hir.TypeAs:
		return x.Type, nil
	case *hir.Default:
		return x.Type, nil
	case *hir.TypeIs:
		return types.Typ[types.Bool], nil
	case *hir.SizeOf:
		return types.Typ[types.Int32], nil
	case *hir.Assign:
		return kids[0], nil
	case *hir.Apply:
		return apply(x, kids)
	case *hir.CollectionInit, *hir.ObjectInit:
		return kids[0], nil
	case *hir.Addr:
		if kids[0] == nil {
			return nil, nil
		}
		return &types.Pointer{Elem: kids[0], Managed: true}, nil
	case *hir.Deref:
		if p, ok := kids[0].(*types.Pointer); ok {
			return p.Elem, nil
		}
		return nil, nil
	case *hir.Lambda:
		if x.Sig == nil {
			return nil, nil
		}
		return x.Sig, nil
	}
	return nil, nil
}

func apply(x *hir.Apply, kids []types.Type) (types.Type, error) {
	nargs := len(kids) - 1
	if p, ok := x.Callee().(*hir.Prop); ok && p.Property.IsIndexer() {
		return p.Property.Type, nil
	}
	switch ct := kids[0].(type) {
	case *types.Func:
		return ct.Strip(nargs), nil
	case *types.Array:
		return ct.Elem, nil
	case *types.Basic:
		if ct.Kind() == types.String {
			return types.Typ[types.Char], nil
		}
	}
	return nil, errors.UnexpectedNode(errors.PhaseTypeInfer,
		hir.Dump(x.Callee(), hir.CSharp), x.Callee().Kind().String(), "callable or indexable")
}

func operator(x *hir.Operator, kids []types.Type) (types.Type, error) {
	op := x.Op
	switch {
	case op.IsRelational(), op.IsLogical():
		return types.Typ[types.Bool], nil
	case op == hir.OpConditional:
		return conditional(x, kids[1], kids[2])
	case op == hir.OpCoalesce:
		if kids[0] == nil || isNullType(kids[0]) {
			return kids[1], nil
		}
		return kids[0], nil
	case op.IsAssignment():
		return kids[0], nil
	case op == hir.OpNegate || op == hir.OpComplement:
		return kids[0], nil
	case op == hir.OpLeftShift || op == hir.OpRightShift:
		return kids[0], nil
	}
	return Binary(kids[0], kids[1], op, x)
}

func isNullType(t types.Type) bool {
	b, ok := t.(*types.Basic)
	return ok && b.Kind() == types.Null
}

func conditional(x hir.Node, a, b types.Type) (types.Type, error) {
	switch {
	case a == nil && b == nil:
		return nil, nil
	case a != nil && b != nil && types.Identical(a, b):
		return a, nil
	case a != nil && isNullType(b) && types.IsReference(a):
		return a, nil
	case b != nil && isNullType(a) && types.IsReference(b):
		return b, nil
	}
	return nil, mismatch(x, "conditional branches have types %s and %s", name(a), name(b))
}

func name(t types.Type) string {
	if t == nil {
		return "untyped"
	}
	return t.String()
}

// Binary returns the result type of an arithmetic or bitwise operator
// applied to operands of types a and b. n is used for error context and
// may be nil.
func Binary(a, b types.Type, op hir.OpType, n hir.Node) (types.Type, error) {
	switch {
	case a == nil || b == nil:
		if a != nil {
			return a, nil
		}
		return b, nil
	case types.IsBoolean(a) && types.IsBoolean(b) && (op == hir.OpAnd || op == hir.OpOr || op == hir.OpXor):
		return types.Typ[types.Bool], nil
	case types.IsInteger(a) && types.IsInteger(b):
		return Promote(a, b), nil
	case types.IsFloat(a) && types.IsFloat(b):
		if types.Width(a) == 64 || types.Width(b) == 64 {
			return types.Typ[types.Float64], nil
		}
		return types.Typ[types.Float32], nil
	case types.IsFloat(a) && types.IsInteger(b):
		return a, nil
	case types.IsInteger(a) && types.IsFloat(b):
		return b, nil
	case types.IsPointer(a) && types.IsInteger(b):
		return a, nil
	case types.IsInteger(a) && types.IsPointer(b):
		return b, nil
	case op == hir.OpAdd && (isString(a) || isString(b)):
		return types.Typ[types.String], nil
	case types.Identical(a, b):
		return a, nil
	}
	if n == nil {
		return nil, errors.New(errors.PhaseTypeInfer, errors.KindTypeMismatch).
			Detail("%s applied to %s and %s", op, a, b).Build()
	}
	return nil, mismatch(n, "%s applied to %s and %s", op, a, b)
}

func isString(t types.Type) bool {
	b, ok := t.(*types.Basic)
	return ok && b.Kind() == types.String
}

// Promote applies the integer promotion rule: the result is as wide as
// the wider operand and unsigned unless both operands are signed or the
// wider one is signed and strictly wider.
func Promote(a, b types.Type) types.Type {
	wa, wb := types.Width(a), types.Width(b)
	sa, sb := types.IsSigned(a), types.IsSigned(b)
	width := max(wa, wb)
	signed := sa && sb
	switch {
	case wa > wb && sa:
		signed = true
	case wb > wa && sb:
		signed = true
	}
	if t := types.IntegerOfWidth(width, signed); t != nil {
		return t
	}
	panic(fmt.Sprintf("no integer type of width %d", width))
}
