package hir

import (
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/types"
)

// Equiv reports whether a and b are structurally equivalent: same kinds,
// same payloads and equivalent children, ignoring node identity. Symbols
// compare with SymbolsEqual, so a clone is equivalent to its original.
func Equiv(a, b Node) bool {
	an, bn := isNil(a), isNil(b)
	if an || bn {
		return an == bn
	}
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() || a.NumChildren() != b.NumChildren() {
		return false
	}
	if !samePayload(a, b) {
		return false
	}
	for i := 0; i < a.NumChildren(); i++ {
		if !Equiv(a.Child(i), b.Child(i)) {
			return false
		}
	}
	return true
}

func sameType(x, y types.Type) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return types.Identical(x, y)
}

func sameLocal(x, y *Local) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return SymbolsEqual(x, y)
}

func sameLocals(xs, ys []*Local) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if !sameLocal(xs[i], ys[i]) {
			return false
		}
	}
	return true
}

func samePayload(a, b Node) bool {
	switch x := a.(type) {
	case *Const:
		y := b.(*Const)
		return x.Value == y.Value && sameType(x.Type, y.Type)
	case *Ref:
		return SymbolsEqual(x.Sym, b.(*Ref).Sym)
	case *Fld:
		return x.Field == b.(*Fld).Field
	case *Prop:
		return x.Property == b.(*Prop).Property
	case *Operator:
		return x.Op == b.(*Operator).Op
	case *Convert:
		y := b.(*Convert)
		return x.Checked == y.Checked && sameType(x.Type, y.Type)
	case *Block:
		return sameLocals(x.locals, b.(*Block).locals)
	case *Loop:
		y := b.(*Loop)
		return x.IsDoWhile == y.IsDoWhile && sameLocals(x.locals, y.locals)
	case *Catch:
		y := b.(*Catch)
		return sameType(x.ExceptionType, y.ExceptionType) && sameLocal(x.Var, y.Var)
	case *Label:
		return x.Name == b.(*Label).Name
	case *Goto:
		return x.Label == b.(*Goto).Label
	case *Using:
		return sameLocal(x.Resource, b.(*Using).Resource)
	case *Iter:
		return sameLocal(x.Element, b.(*Iter).Element)
	case *TypeIs:
		return sameType(x.Type, b.(*TypeIs).Type)
	case *TypeAs:
		return sameType(x.Type, b.(*TypeAs).Type)
	case *SizeOf:
		return sameType(x.Type, b.(*SizeOf).Type)
	case *Default:
		return sameType(x.Type, b.(*Default).Type)
	case *Loophole:
		y := b.(*Loophole)
		return x.Slot == y.Slot && sameType(x.Type, y.Type)
	case *Lambda:
		y := b.(*Lambda)
		if x.Name != y.Name || x.Method != y.Method || x.Virtual != y.Virtual || len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if !SymbolsEqual(x.Params[i], y.Params[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// Clone returns an unowned deep copy of n. Locals declared inside n are
// cloned too and references to them are remapped; references to outer
// symbols are kept.
func Clone(n Node) Node {
	if isNil(n) {
		return nil
	}
	remap := make(map[*Local]*Local)
	for _, l := range AllLocals(n) {
		if _, ok := remap[l]; !ok {
			remap[l] = l.Clone()
		}
	}
	return clone(n, remap)
}

// CloneBlock is Clone for blocks.
func CloneBlock(b *Block) *Block {
	if b == nil {
		return nil
	}
	return Clone(b).(*Block)
}

func mapLocal(remap map[*Local]*Local, l *Local) *Local {
	if c, ok := remap[l]; ok {
		return c
	}
	return l
}

func mapLocals(remap map[*Local]*Local, ls []*Local) []*Local {
	if ls == nil {
		return nil
	}
	out := make([]*Local, len(ls))
	for i, l := range ls {
		out[i] = mapLocal(remap, l)
	}
	return out
}

func clone(n Node, remap map[*Local]*Local) Node {
	kids := make([]Node, n.NumChildren())
	for i, c := range n.Children() {
		if c != nil {
			kids[i] = clone(c, remap)
		}
	}
	var out Node
	switch x := n.(type) {
	case *Null:
		out = &Null{}
	case *Const:
		out = &Const{Value: x.Value, Type: x.Type}
	case *Ref:
		sym := x.Sym
		if l, ok := sym.(*Local); ok {
			sym = mapLocal(remap, l)
		}
		out = &Ref{Sym: sym}
	case *Fld:
		out = &Fld{Field: x.Field}
	case *Prop:
		out = &Prop{Property: x.Property}
	case *Operator:
		out = &Operator{Op: x.Op}
	case *Convert:
		out = &Convert{Type: x.Type, Checked: x.Checked}
	case *Assign:
		out = &Assign{}
	case *Apply:
		out = &Apply{}
	case *Eval:
		out = &Eval{}
	case *Block:
		out = &Block{locals: mapLocals(remap, x.locals)}
	case *If:
		out = &If{}
	case *Loop:
		out = &Loop{IsDoWhile: x.IsDoWhile, locals: mapLocals(remap, x.locals)}
	case *Try:
		out = &Try{}
	case *Catch:
		out = &Catch{ExceptionType: x.ExceptionType, Var: mapLocal(remap, x.Var)}
	case *Label:
		out = &Label{Name: x.Name}
	case *Goto:
		out = &Goto{Label: x.Label}
	case *Break:
		out = &Break{}
	case *Continue:
		out = &Continue{}
	case *Return:
		out = &Return{}
	case *Throw:
		out = &Throw{}
	case *Using:
		out = &Using{Resource: mapLocal(remap, x.Resource)}
	case *Iter:
		out = &Iter{Element: mapLocal(remap, x.Element)}
	case *CollectionInit:
		out = &CollectionInit{}
	case *ObjectInit:
		out = &ObjectInit{}
	case *Addr:
		out = &Addr{}
	case *Deref:
		out = &Deref{}
	case *TypeIs:
		out = &TypeIs{Type: x.Type}
	case *TypeAs:
		out = &TypeAs{Type: x.Type}
	case *SizeOf:
		out = &SizeOf{Type: x.Type}
	case *Default:
		out = &Default{Type: x.Type}
	case *Lambda:
		out = &Lambda{Name: x.Name, Sig: x.Sig, Method: x.Method, Params: x.Params, Virtual: x.Virtual}
	case *Loophole:
		out = &Loophole{Slot: x.Slot, Type: x.Type}
	default:
		panic(errors.UnsupportedNode(errors.PhaseTraverse, Dump(n, CSharp), n.Kind().String()))
	}
	out.base().init(out, kids...)
	return out
}

// ReplaceEquiv replaces every subtree of root equivalent to pattern with
// the node built by mk, scanning once bottom-up. It returns the new root
// and the number of replacements.
func ReplaceEquiv(root, pattern Node, mk func(match Node) Node) (Node, int) {
	count := 0
	out, _ := Transform(root, func(n Node) (Node, error) {
		if !Equiv(n, pattern) {
			return n, nil
		}
		count++
		return mk(n), nil
	})
	return out, count
}
