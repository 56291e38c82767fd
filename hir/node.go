package hir

import (
	"fmt"
	"reflect"

	"github.com/wippyai/decompiler/errors"
)

// NodeKind is the closed set of node kinds.
type NodeKind uint8

const (
	KindNull NodeKind = iota
	KindConst
	KindRef
	KindFld
	KindProp
	KindOperator
	KindConvert
	KindAssign
	KindApply
	KindEval
	KindBlock
	KindIf
	KindLoop
	KindTry
	KindCatch
	KindLabel
	KindGoto
	KindBreak
	KindContinue
	KindReturn
	KindThrow
	KindUsing
	KindIter
	KindCollectionInit
	KindObjectInit
	KindAddr
	KindDeref
	KindTypeIs
	KindTypeAs
	KindSizeOf
	KindDefault
	KindLambda
	KindLoophole
)

var kindNames = [...]string{
	KindNull:           "Null",
	KindConst:          "Const",
	KindRef:            "Ref",
	KindFld:            "Fld",
	KindProp:           "Prop",
	KindOperator:       "Operator",
	KindConvert:        "Convert",
	KindAssign:         "Assign",
	KindApply:          "Apply",
	KindEval:           "Eval",
	KindBlock:          "Block",
	KindIf:             "If",
	KindLoop:           "Loop",
	KindTry:            "Try",
	KindCatch:          "Catch",
	KindLabel:          "Label",
	KindGoto:           "Goto",
	KindBreak:          "Break",
	KindContinue:       "Continue",
	KindReturn:         "Return",
	KindThrow:          "Throw",
	KindUsing:          "Using",
	KindIter:           "Iter",
	KindCollectionInit: "CollectionInit",
	KindObjectInit:     "ObjectInit",
	KindAddr:           "Addr",
	KindDeref:          "Deref",
	KindTypeIs:         "TypeIs",
	KindTypeAs:         "TypeAs",
	KindSizeOf:         "SizeOf",
	KindDefault:        "Default",
	KindLambda:         "Lambda",
	KindLoophole:       "Loophole",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", k)
}

// Node is implemented by every HIR node.
//
// Children are stored in one ordered list whose layout is fixed per kind
// (If is Test, IfTrue, IfFalse; Operator is its arguments; and so on).
// Absent optional slots hold nil. A node has at most one parent; attaching
// a node that is already owned panics, so reuse requires Clone.
type Node interface {
	Kind() NodeKind
	Parent() Node
	// Children returns a snapshot of the child slots.
	Children() []Node
	Child(i int) Node
	NumChildren() int
	// SetChild replaces slot i, detaching the previous occupant.
	SetChild(i int, c Node)
	String() string
	base() *node
}

type node struct {
	self   Node
	parent Node
	kids   []Node
}

func (n *node) init(self Node, kids ...Node) {
	n.self = self
	n.kids = make([]Node, len(kids))
	for i, k := range kids {
		if isNil(k) {
			continue
		}
		n.adopt(k)
		n.kids[i] = k
	}
}

func (n *node) base() *node { return n }

func (n *node) Parent() Node { return n.parent }

func (n *node) Children() []Node {
	out := make([]Node, len(n.kids))
	copy(out, n.kids)
	return out
}

func (n *node) Child(i int) Node { return n.kids[i] }

func (n *node) NumChildren() int { return len(n.kids) }

func (n *node) String() string { return Dump(n.self, CSharp) }

func (n *node) SetChild(i int, c Node) {
	if isNil(c) {
		c = nil
	}
	old := n.kids[i]
	if old == c {
		return
	}
	if c != nil {
		n.adopt(c)
	}
	if old != nil {
		old.base().parent = nil
	}
	n.kids[i] = c
}

func (n *node) insertChild(i int, c Node) {
	n.adopt(c)
	n.kids = append(n.kids, nil)
	copy(n.kids[i+1:], n.kids[i:])
	n.kids[i] = c
}

func (n *node) removeChild(i int) Node {
	c := n.kids[i]
	n.kids = append(n.kids[:i], n.kids[i+1:]...)
	if c != nil {
		c.base().parent = nil
	}
	return c
}

func (n *node) adopt(c Node) {
	b := c.base()
	if b.parent != nil {
		panic(errors.Assertion(errors.PhaseTraverse,
			"%s `%s` already belongs to a %s; clone it before reuse", c.Kind(), Dump(c, CSharp), b.parent.Kind()))
	}
	if c == n.self {
		panic(errors.Assertion(errors.PhaseTraverse, "%s cannot own itself", c.Kind()))
	}
	b.parent = n.self
}

func (n *node) indexOf(c Node) int {
	for i, k := range n.kids {
		if k == c {
			return i
		}
	}
	return -1
}

// isNil catches typed nil pointers stored in the Node interface.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// IndexInParent returns the slot n occupies in its parent, or -1.
func IndexInParent(n Node) int {
	p := n.Parent()
	if p == nil {
		return -1
	}
	return p.base().indexOf(n)
}

// Replace puts nw into the slot old occupies and detaches old. nw must
// not be owned by another node.
func Replace(old, nw Node) {
	p := old.Parent()
	if p == nil {
		panic(errors.Assertion(errors.PhaseTraverse, "cannot replace detached %s", old.Kind()))
	}
	p.SetChild(p.base().indexOf(old), nw)
}

// Detach removes n from its parent. Statements are removed from their
// block; any other slot is left empty, which is only valid when the
// parent is about to be discarded or refilled. Returns n for chaining.
func Detach(n Node) Node {
	p := n.Parent()
	if p == nil {
		return n
	}
	i := p.base().indexOf(n)
	if b, ok := p.(*Block); ok {
		b.removeChild(i)
		return n
	}
	p.SetChild(i, nil)
	return n
}

// Ancestors returns the chain of parents of n, nearest first.
func Ancestors(n Node) []Node {
	var out []Node
	for p := n.Parent(); p != nil; p = p.Parent() {
		out = append(out, p)
	}
	return out
}

// IsAncestor reports whether a is a proper ancestor of n.
func IsAncestor(a, n Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p == a {
			return true
		}
	}
	return false
}

// Root returns the topmost ancestor of n.
func Root(n Node) Node {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return n
}

// Statement returns the ancestor of n (or n itself) that sits directly in
// a Block, or nil when n is not inside a block.
func Statement(n Node) Node {
	for cur := n; cur != nil; cur = cur.Parent() {
		if p := cur.Parent(); p != nil && p.Kind() == KindBlock {
			return cur
		}
	}
	return nil
}
