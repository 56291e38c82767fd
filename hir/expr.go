package hir

import "github.com/wippyai/decompiler/types"

// Null is an empty node: a no-op statement or an absent value.
type Null struct{ node }

func NewNull() *Null {
	n := &Null{}
	n.init(n)
	return n
}

func (*Null) Kind() NodeKind { return KindNull }

// Const is a literal. Value is nil for the null reference.
type Const struct {
	node
	Value any
	Type  types.Type
}

func NewConst(v any, t types.Type) *Const {
	n := &Const{Value: v, Type: t}
	n.init(n)
	return n
}

// NewBool returns a bool literal.
func NewBool(v bool) *Const { return NewConst(v, types.Typ[types.Bool]) }

// NewNullConst returns the null reference literal.
func NewNullConst() *Const { return NewConst(nil, types.Typ[types.Null]) }

func (*Const) Kind() NodeKind { return KindConst }

// IsNullLiteral reports whether n is the null reference literal.
func IsNullLiteral(n Node) bool {
	c, ok := n.(*Const)
	return ok && c.Value == nil
}

// Ref reads or writes a local or parameter.
type Ref struct {
	node
	Sym Symbol
}

func NewRef(s Symbol) *Ref {
	n := &Ref{Sym: s}
	n.init(n)
	return n
}

func (*Ref) Kind() NodeKind { return KindRef }

// Fld accesses a field. This is nil for static fields.
type Fld struct {
	node
	Field *types.Field
}

func NewFld(f *types.Field, this Node) *Fld {
	n := &Fld{Field: f}
	n.init(n, this)
	return n
}

func (*Fld) Kind() NodeKind { return KindFld }
func (n *Fld) This() Node   { return n.kids[0] }

// Prop accesses a property. Indexers are applied through Apply.
type Prop struct {
	node
	Property *types.Property
}

func NewProp(p *types.Property, this Node) *Prop {
	n := &Prop{Property: p}
	n.init(n, this)
	return n
}

func (*Prop) Kind() NodeKind { return KindProp }
func (n *Prop) This() Node   { return n.kids[0] }

// Operator applies an OpType to its arguments. Conditional takes
// (test, ifTrue, ifFalse).
type Operator struct {
	node
	Op OpType
}

func NewOperator(op OpType, args ...Node) *Operator {
	n := &Operator{Op: op}
	n.init(n, args...)
	return n
}

// Unary, Binary and Cond are shorthands for NewOperator.
func Unary(op OpType, x Node) *Operator     { return NewOperator(op, x) }
func Binary(op OpType, x, y Node) *Operator { return NewOperator(op, x, y) }
func Cond(test, t, f Node) *Operator        { return NewOperator(OpConditional, test, t, f) }

func (*Operator) Kind() NodeKind { return KindOperator }
func (n *Operator) Args() []Node { return n.Children() }
func (n *Operator) Arg(i int) Node {
	return n.kids[i]
}

// Convert casts Source to Type.
type Convert struct {
	node
	Type types.Type
	// Checked marks conversions that throw on failure (castclass, unbox).
	Checked bool
}

func NewConvert(t types.Type, src Node) *Convert {
	n := &Convert{Type: t}
	n.init(n, src)
	return n
}

func (*Convert) Kind() NodeKind { return KindConvert }
func (n *Convert) Source() Node { return n.kids[0] }

// Assign stores Rhs into Lhs. Used as a statement or an expression.
type Assign struct{ node }

func NewAssign(lhs, rhs Node) *Assign {
	n := &Assign{}
	n.init(n, lhs, rhs)
	return n
}

func (*Assign) Kind() NodeKind { return KindAssign }
func (n *Assign) Lhs() Node    { return n.kids[0] }
func (n *Assign) Rhs() Node    { return n.kids[1] }

// Apply invokes Callee with Args. Instance calls pass the receiver as the
// first argument.
type Apply struct{ node }

func NewApply(callee Node, args ...Node) *Apply {
	n := &Apply{}
	n.init(n, append([]Node{callee}, args...)...)
	return n
}

func (*Apply) Kind() NodeKind { return KindApply }
func (n *Apply) Callee() Node { return n.kids[0] }
func (n *Apply) Args() []Node { return n.Children()[1:] }

// Eval evaluates an expression for its side effects.
type Eval struct{ node }

func NewEval(x Node) *Eval {
	n := &Eval{}
	n.init(n, x)
	return n
}

func (*Eval) Kind() NodeKind { return KindEval }
func (n *Eval) Expr() Node   { return n.kids[0] }

// CollectionInit is a constructor call followed by element initializers.
type CollectionInit struct{ node }

func NewCollectionInit(ctor Node, elems ...Node) *CollectionInit {
	n := &CollectionInit{}
	n.init(n, append([]Node{ctor}, elems...)...)
	return n
}

func (*CollectionInit) Kind() NodeKind  { return KindCollectionInit }
func (n *CollectionInit) Ctor() Node    { return n.kids[0] }
func (n *CollectionInit) Elems() []Node { return n.Children()[1:] }

// ObjectInit is a constructor call followed by member assignments whose
// left-hand sides are receiver-less Fld or Prop nodes.
type ObjectInit struct{ node }

func NewObjectInit(ctor Node, members ...Node) *ObjectInit {
	n := &ObjectInit{}
	n.init(n, append([]Node{ctor}, members...)...)
	return n
}

func (*ObjectInit) Kind() NodeKind { return KindObjectInit }
func (n *ObjectInit) Ctor() Node   { return n.kids[0] }
func (n *ObjectInit) Members() []Node {
	return n.Children()[1:]
}

// Addr takes the address of an lvalue.
type Addr struct{ node }

func NewAddr(x Node) *Addr {
	n := &Addr{}
	n.init(n, x)
	return n
}

func (*Addr) Kind() NodeKind { return KindAddr }
func (n *Addr) Target() Node { return n.kids[0] }

// Deref reads through a pointer.
type Deref struct{ node }

func NewDeref(x Node) *Deref {
	n := &Deref{}
	n.init(n, x)
	return n
}

func (*Deref) Kind() NodeKind { return KindDeref }
func (n *Deref) Target() Node { return n.kids[0] }

// TypeIs tests whether Target is an instance of Type.
type TypeIs struct {
	node
	Type types.Type
}

func NewTypeIs(x Node, t types.Type) *TypeIs {
	n := &TypeIs{Type: t}
	n.init(n, x)
	return n
}

func (*TypeIs) Kind() NodeKind { return KindTypeIs }
func (n *TypeIs) Target() Node { return n.kids[0] }

// TypeAs casts Target to Type, yielding null on failure.
type TypeAs struct {
	node
	Type types.Type
}

func NewTypeAs(x Node, t types.Type) *TypeAs {
	n := &TypeAs{Type: t}
	n.init(n, x)
	return n
}

func (*TypeAs) Kind() NodeKind { return KindTypeAs }
func (n *TypeAs) Target() Node { return n.kids[0] }

// SizeOf yields the storage size of Type.
type SizeOf struct {
	node
	Type types.Type
}

func NewSizeOf(t types.Type) *SizeOf {
	n := &SizeOf{Type: t}
	n.init(n)
	return n
}

func (*SizeOf) Kind() NodeKind { return KindSizeOf }

// Default yields the zero value of Type.
type Default struct {
	node
	Type types.Type
}

func NewDefault(t types.Type) *Default {
	n := &Default{Type: t}
	n.init(n)
	return n
}

func (*Default) Kind() NodeKind { return KindDefault }

// Loophole stands for a value that flows into a basic block on the
// evaluation stack. Slot is the stack position, bottom first.
type Loophole struct {
	node
	Type types.Type
	Slot int
}

func NewLoophole(slot int, t types.Type) *Loophole {
	n := &Loophole{Slot: slot, Type: t}
	n.init(n)
	return n
}

func (*Loophole) Kind() NodeKind { return KindLoophole }
