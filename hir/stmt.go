package hir

import (
	"github.com/wippyai/decompiler/types"
)

// Block is a statement sequence and the scope of the locals it declares.
type Block struct {
	node
	locals []*Local
}

func NewBlock(stmts ...Node) *Block {
	n := &Block{}
	n.init(n, stmts...)
	n.kids = compact(n.kids)
	return n
}

func compact(ns []Node) []Node {
	out := ns[:0]
	for _, k := range ns {
		if k != nil {
			out = append(out, k)
		}
	}
	return out
}

func (*Block) Kind() NodeKind     { return KindBlock }
func (n *Block) Stmts() []Node    { return n.Children() }
func (n *Block) Len() int         { return len(n.kids) }
func (n *Block) Locals() []*Local { return append([]*Local(nil), n.locals...) }

// Add appends statements. A nested Block is added as one statement.
func (n *Block) Add(stmts ...Node) {
	for _, s := range stmts {
		if !isNil(s) {
			n.insertChild(len(n.kids), s)
		}
	}
}

// Insert places s before the statement at index i.
func (n *Block) Insert(i int, s Node) { n.insertChild(i, s) }

// RemoveAt detaches and returns the statement at index i.
func (n *Block) RemoveAt(i int) Node { return n.removeChild(i) }

// Declare adds l to the locals of the block. Redeclaring is a no-op.
func (n *Block) Declare(l *Local) { n.locals = declare(n.locals, l) }

// Undeclare drops l from the locals of the block.
func (n *Block) Undeclare(l *Local) { n.locals = undeclare(n.locals, l) }

func declare(ls []*Local, l *Local) []*Local {
	for _, x := range ls {
		if x == l {
			return ls
		}
	}
	return append(ls, l)
}

func undeclare(ls []*Local, l *Local) []*Local {
	for i, x := range ls {
		if x == l {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}

// If is a two-way branch. IfFalse may be nil.
type If struct{ node }

func NewIf(test Node, ifTrue, ifFalse *Block) *If {
	n := &If{}
	n.init(n, test, blockOrNil(ifTrue), blockOrNil(ifFalse))
	return n
}

func blockOrNil(b *Block) Node {
	if b == nil {
		return nil
	}
	return b
}

func asBlock(n Node) *Block {
	b, _ := n.(*Block)
	return b
}

func (*If) Kind() NodeKind    { return KindIf }
func (n *If) Test() Node      { return n.kids[0] }
func (n *If) IfTrue() *Block  { return asBlock(n.kids[1]) }
func (n *If) IfFalse() *Block { return asBlock(n.kids[2]) }
func (n *If) SetTest(t Node)  { n.SetChild(0, t) }
func (n *If) SetIfFalse(b *Block) {
	n.SetChild(2, blockOrNil(b))
}

// Loop is a pretest loop `for (Init; Test; Iter) Body`, or a post-test
// loop when IsDoWhile is set. A nil Test loops forever. The loop is the
// scope of locals introduced by Init.
type Loop struct {
	node
	locals    []*Local
	IsDoWhile bool
}

func NewLoop(init *Block, test Node, body *Block, iter *Block) *Loop {
	n := &Loop{}
	if init == nil {
		init = NewBlock()
	}
	if iter == nil {
		iter = NewBlock()
	}
	if body == nil {
		body = NewBlock()
	}
	n.init(n, init, test, body, iter)
	return n
}

func (*Loop) Kind() NodeKind       { return KindLoop }
func (n *Loop) Init() *Block       { return asBlock(n.kids[0]) }
func (n *Loop) Test() Node         { return n.kids[1] }
func (n *Loop) Body() *Block       { return asBlock(n.kids[2]) }
func (n *Loop) Iter() *Block       { return asBlock(n.kids[3]) }
func (n *Loop) SetTest(t Node)     { n.SetChild(1, t) }
func (n *Loop) Locals() []*Local   { return append([]*Local(nil), n.locals...) }
func (n *Loop) Declare(l *Local)   { n.locals = declare(n.locals, l) }
func (n *Loop) Undeclare(l *Local) { n.locals = undeclare(n.locals, l) }

// Try is a protected block with its handlers. Catches follow the fixed
// Body, Finally and Fault slots.
type Try struct{ node }

func NewTry(body *Block, catches []*Catch, finally, fault *Block) *Try {
	n := &Try{}
	kids := []Node{body, blockOrNil(finally), blockOrNil(fault)}
	for _, c := range catches {
		kids = append(kids, c)
	}
	n.init(n, kids...)
	return n
}

func (*Try) Kind() NodeKind    { return KindTry }
func (n *Try) Body() *Block    { return asBlock(n.kids[0]) }
func (n *Try) Finally() *Block { return asBlock(n.kids[1]) }
func (n *Try) Fault() *Block   { return asBlock(n.kids[2]) }
func (n *Try) Catches() []*Catch {
	out := make([]*Catch, 0, len(n.kids)-3)
	for _, k := range n.kids[3:] {
		out = append(out, k.(*Catch))
	}
	return out
}

// AddCatch appends a handler clause.
func (n *Try) AddCatch(c *Catch) { n.insertChild(len(n.kids), c) }

// SetFinally fills the finally slot.
func (n *Try) SetFinally(b *Block) { n.SetChild(1, blockOrNil(b)) }

// SetFault fills the fault slot.
func (n *Try) SetFault(b *Block) { n.SetChild(2, blockOrNil(b)) }

// Catch handles exceptions of ExceptionType, optionally gated by Filter.
// Var is nil when the handler ignores the exception object.
type Catch struct {
	node
	ExceptionType types.Type
	Var           *Local
}

func NewCatch(t types.Type, v *Local, filter Node, body *Block) *Catch {
	n := &Catch{ExceptionType: t, Var: v}
	n.init(n, filter, body)
	return n
}

func (*Catch) Kind() NodeKind { return KindCatch }
func (n *Catch) Filter() Node { return n.kids[0] }
func (n *Catch) Body() *Block { return asBlock(n.kids[1]) }

// Locals returns the catch variable as the clause's only local.
func (n *Catch) Locals() []*Local {
	if n.Var == nil {
		return nil
	}
	return []*Local{n.Var}
}

// Label marks a goto target.
type Label struct {
	node
	Name string
}

func NewLabel(name string) *Label {
	n := &Label{Name: name}
	n.init(n)
	return n
}

func (*Label) Kind() NodeKind { return KindLabel }

// Goto jumps to the Label with the same name.
type Goto struct {
	node
	Label string
}

func NewGoto(label string) *Goto {
	n := &Goto{Label: label}
	n.init(n)
	return n
}

func (*Goto) Kind() NodeKind { return KindGoto }

// Break leaves the innermost loop.
type Break struct{ node }

func NewBreak() *Break {
	n := &Break{}
	n.init(n)
	return n
}

func (*Break) Kind() NodeKind { return KindBreak }

// Continue jumps to the next iteration of the innermost loop.
type Continue struct{ node }

func NewContinue() *Continue {
	n := &Continue{}
	n.init(n)
	return n
}

func (*Continue) Kind() NodeKind { return KindContinue }

// Return leaves the method. Value is nil for void methods.
type Return struct{ node }

func NewReturn(v Node) *Return {
	n := &Return{}
	n.init(n, v)
	return n
}

func (*Return) Kind() NodeKind { return KindReturn }
func (n *Return) Value() Node  { return n.kids[0] }

// Throw raises Exception, or rethrows the current one when it is nil.
type Throw struct{ node }

func NewThrow(x Node) *Throw {
	n := &Throw{}
	n.init(n, x)
	return n
}

func (*Throw) Kind() NodeKind    { return KindThrow }
func (n *Throw) Exception() Node { return n.kids[0] }
func (n *Throw) IsRethrow() bool { return n.kids[0] == nil }

// Using disposes Resource after Body.
type Using struct {
	node
	Resource *Local
}

func NewUsing(res *Local, init Node, body *Block) *Using {
	n := &Using{Resource: res}
	n.init(n, init, body)
	return n
}

func (*Using) Kind() NodeKind { return KindUsing }
func (n *Using) Init() Node   { return n.kids[0] }
func (n *Using) Body() *Block { return asBlock(n.kids[1]) }
func (n *Using) Locals() []*Local {
	if n.Resource == nil {
		return nil
	}
	return []*Local{n.Resource}
}

// Iter runs Body once per element of Seq.
type Iter struct {
	node
	Element *Local
}

func NewIter(elem *Local, seq Node, body *Block) *Iter {
	n := &Iter{Element: elem}
	n.init(n, seq, body)
	return n
}

func (*Iter) Kind() NodeKind { return KindIter }
func (n *Iter) Seq() Node    { return n.kids[0] }
func (n *Iter) Body() *Block { return asBlock(n.kids[1]) }
func (n *Iter) Locals() []*Local {
	return []*Local{n.Element}
}

// Lambda is a callable: the decompiled method itself, or a method
// reference (Body nil) produced by loading a function pointer.
type Lambda struct {
	node
	Sig     *types.Func
	Method  *types.Method
	Name    string
	Params  []*Param
	Virtual bool
}

func NewLambda(name string, sig *types.Func, params []*Param, body *Block) *Lambda {
	n := &Lambda{Name: name, Sig: sig, Params: params}
	n.init(n, blockOrNil(body))
	return n
}

// NewMethodRef wraps a method as a body-less Lambda.
func NewMethodRef(m *types.Method, virtual bool) *Lambda {
	n := &Lambda{Name: m.Name, Sig: m.Signature(), Method: m, Virtual: virtual}
	n.init(n, nil)
	return n
}

func (*Lambda) Kind() NodeKind { return KindLambda }
func (n *Lambda) Body() *Block { return asBlock(n.kids[0]) }
