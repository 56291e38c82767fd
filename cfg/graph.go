package cfg

import (
	"fmt"
	"sort"

	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/reconstruct"
	"github.com/wippyai/decompiler/types"
)

// EdgeKind classifies a control transfer between blocks.
type EdgeKind uint8

const (
	EdgeNext    EdgeKind = iota // fall-through, br or leave
	EdgeTrue                    // taken when the block condition holds
	EdgeFalse                   // taken when it does not
	EdgeCase                    // switch arm, see Edge.Case
	EdgeDefault                 // switch fall-through
	EdgeHandler                 // exception handler entry
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeNext:
		return "next"
	case EdgeTrue:
		return "true"
	case EdgeFalse:
		return "false"
	case EdgeCase:
		return "case"
	case EdgeDefault:
		return "default"
	case EdgeHandler:
		return "handler"
	}
	return fmt.Sprintf("edge(%d)", k)
}

// Edge connects two blocks.
type Edge struct {
	From *Block
	To   *Block
	Kind EdgeKind
	// Case is the switch arm index for EdgeCase.
	Case int
}

// Normal reports whether the edge is ordinary control flow.
func (e *Edge) Normal() bool { return e.Kind != EdgeHandler }

// Block is a basic block: a straight run of complete statements, the
// values left on the evaluation stack, and the terminator.
//
// Statements live in three hir blocks so that every expression in the
// graph has a statement ancestor: Code holds complete statements, the
// residue holds one Eval per leftover stack value, and the tail holds the
// Eval of the branch condition, switch selector or filter result.
type Block struct {
	// Entry holds the placeholders for the stack values present on entry.
	Entry []*hir.Loophole
	Code  *hir.Block
	stack *hir.Block
	tail  *hir.Block

	Succs []*Edge
	Preds []*Edge

	// Region is the innermost try body or handler containing the block.
	Region *Region

	// Dominator data, filled by Analyze.
	Idom     *Block
	Ipdom    *Block
	Dominees []*Block

	ID int
	// Start and End delimit the instruction offsets of the block; End is
	// exclusive. Synthetic blocks reuse the offsets of their origin.
	Start int
	End   int
	Flow  il.Flow
	// TermOffset is the offset of the terminating instruction.
	TermOffset int
	order      int

	first, last int
	targets     []int
	synthetic   bool
}

func newBlock(id int) *Block {
	return &Block{
		ID:    id,
		Code:  hir.NewBlock(),
		stack: hir.NewBlock(),
		tail:  hir.NewBlock(),
		order: -1,
	}
}

func (b *Block) String() string { return fmt.Sprintf("B%d@IL_%04x", b.ID, b.Start) }

// Synthetic reports whether the block was created by a graph rewrite
// rather than found in the instruction stream.
func (b *Block) Synthetic() bool { return b.synthetic }

// Label is the goto label name for the block.
func (b *Block) Label() string {
	if b.synthetic {
		return fmt.Sprintf("IL_%04x_%d", b.Start, b.ID)
	}
	return fmt.Sprintf("IL_%04x", b.Start)
}

// Residue returns the stack values left at the end of the block, bottom
// first.
func (b *Block) Residue() []hir.Node {
	out := make([]hir.Node, 0, b.stack.Len())
	for _, s := range b.stack.Stmts() {
		out = append(out, s.(*hir.Eval).Expr())
	}
	return out
}

// SetResidue replaces the stack values. The nodes must be unowned.
func (b *Block) SetResidue(vals ...hir.Node) {
	for b.stack.Len() > 0 {
		b.stack.RemoveAt(b.stack.Len() - 1)
	}
	for _, v := range vals {
		b.stack.Add(hir.NewEval(v))
	}
}

// TakeResidue detaches and returns the stack values, leaving none.
func (b *Block) TakeResidue() []hir.Node {
	var out []hir.Node
	for b.stack.Len() > 0 {
		ev := b.stack.RemoveAt(0).(*hir.Eval)
		x := ev.Expr()
		hir.Detach(x)
		out = append(out, x)
	}
	return out
}

// ResidueHolders returns the Eval statements that carry the stack values.
func (b *Block) ResidueHolders() []hir.Node { return b.stack.Stmts() }

// Cond is the branch condition of a FlowCondBranch block: when it holds,
// control goes to the EdgeTrue successor.
func (b *Block) Cond() hir.Node {
	if b.Flow != il.FlowCondBranch {
		return nil
	}
	return b.tailExpr()
}

// Value is the switch selector or the endfilter result.
func (b *Block) Value() hir.Node {
	if b.Flow != il.FlowSwitch && b.Flow != il.FlowEndHandler {
		return nil
	}
	return b.tailExpr()
}

func (b *Block) tailExpr() hir.Node {
	if b.tail.Len() == 0 {
		return nil
	}
	return b.tail.Child(0).(*hir.Eval).Expr()
}

// SetTail replaces the condition or selector with x, which must be unowned.
// A nil x clears it.
func (b *Block) SetTail(x hir.Node) {
	for b.tail.Len() > 0 {
		b.tail.RemoveAt(0)
	}
	if x != nil {
		b.tail.Add(hir.NewEval(x))
	}
}

// TakeTail detaches and returns the condition or selector.
func (b *Block) TakeTail() hir.Node {
	x := b.tailExpr()
	if x != nil {
		hir.Detach(x)
		b.tail.RemoveAt(0)
	}
	return x
}

// Containers returns the statement lists of the block in evaluation order.
func (b *Block) Containers() []*hir.Block { return []*hir.Block{b.Code, b.stack, b.tail} }

// Statements returns every statement of the block in evaluation order,
// including residue and tail holders.
func (b *Block) Statements() []hir.Node {
	var out []hir.Node
	for _, c := range b.Containers() {
		out = append(out, c.Stmts()...)
	}
	return out
}

// Empty reports whether the block has no statements and passes its entry
// stack through unchanged.
func (b *Block) Empty() bool {
	if b.Code.Len() > 0 {
		return false
	}
	res := b.Residue()
	if len(res) != len(b.Entry) {
		return false
	}
	for i, r := range res {
		if r != hir.Node(b.Entry[i]) {
			return false
		}
	}
	return true
}

// Succ returns the successor reached by the first edge of kind k.
func (b *Block) Succ(k EdgeKind) *Block {
	for _, e := range b.Succs {
		if e.Kind == k {
			return e.To
		}
	}
	return nil
}

// NormalSuccs returns the successors along non-handler edges.
func (b *Block) NormalSuccs() []*Block {
	var out []*Block
	for _, e := range b.Succs {
		if e.Normal() {
			out = append(out, e.To)
		}
	}
	return out
}

// NormalPreds returns the predecessors along non-handler edges.
func (b *Block) NormalPreds() []*Block {
	var out []*Block
	for _, e := range b.Preds {
		if e.Normal() {
			out = append(out, e.From)
		}
	}
	return out
}

// Order is the reverse post-order number assigned by Analyze, or -1 for a
// block that was not reached.
func (b *Block) Order() int { return b.order }

// RegionKind distinguishes protected bodies from handler bodies.
type RegionKind uint8

const (
	RegionMethod RegionKind = iota
	RegionTry
	RegionCatch
	RegionFilter
	RegionFinally
	RegionFault
)

var regionKindNames = [...]string{"method", "try", "catch", "filter", "finally", "fault"}

func (k RegionKind) String() string {
	if int(k) < len(regionKindNames) {
		return regionKindNames[k]
	}
	return fmt.Sprintf("region(%d)", k)
}

// Region is a half-open offset range with a role in exception handling.
type Region struct {
	Parent  *Region
	Guard   *Guard
	Handler *Handler
	Kind    RegionKind
	Start   int
	End     int
}

// Contains reports whether offset falls inside r.
func (r *Region) Contains(offset int) bool { return offset >= r.Start && offset < r.End }

// Encloses reports whether r is o or one of its ancestors.
func (r *Region) Encloses(o *Region) bool {
	for x := o; x != nil; x = x.Parent {
		if x == r {
			return true
		}
	}
	return false
}

func (r *Region) String() string {
	return fmt.Sprintf("%s[IL_%04x, IL_%04x)", r.Kind, r.Start, r.End)
}

// Guard is a protected body with its handlers. Regions of the input that
// share a protected range form one guard.
type Guard struct {
	Try      *Region
	Handlers []*Handler
	// Entry is the first block of the protected body.
	Entry *Block
}

// Handler is one catch, filter, finally or fault clause of a guard.
type Handler struct {
	CatchType types.Type
	Body      *Region
	// Filter is the filter code region for filtered catches.
	Filter      *Region
	Entry       *Block
	FilterEntry *Block
	Kind        il.RegionKind
}

// Loop is a natural loop: a header plus every block that reaches one of
// its back-edge sources without passing through the header.
type Loop struct {
	Header  *Block
	Latches []*Block
	Body    *BlockSet
	Parent  *Loop
}

// Contains reports whether b belongs to the loop body.
func (l *Loop) Contains(b *Block) bool { return l.Body.Contains(b) }

// Graph is the control-flow graph of one method.
type Graph struct {
	Method  *il.Method
	Symbols *reconstruct.Symbols
	Entry   *Block
	// Blocks are kept in offset order.
	Blocks []*Block
	Guards []*Guard
	Root   *Region
	Loops  []*Loop

	regions []*Region
	index   *Index
	nextID  int
	slots   []*hir.Local
}

// Len returns the number of blocks.
func (g *Graph) Len() int { return len(g.Blocks) }

// Block returns the block starting at offset, or nil.
func (g *Graph) Block(offset int) *Block {
	for _, b := range g.Blocks {
		if b.Start == offset && b.first < b.last {
			return b
		}
	}
	return nil
}

// BlockByID returns the block with the given ID, or nil.
func (g *Graph) BlockByID(id int) *Block {
	for _, b := range g.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// MaxID is the largest ID handed out so far.
func (g *Graph) MaxID() int { return g.nextID - 1 }

// BlockOf returns the block whose containers hold the statement of n.
func (g *Graph) BlockOf(n hir.Node) *Block {
	s := hir.Statement(n)
	if s == nil {
		return nil
	}
	p := s.Parent()
	for _, b := range g.Blocks {
		for _, c := range b.Containers() {
			if hir.Node(c) == p {
				return b
			}
		}
	}
	return nil
}

// Regions returns the exception regions, outermost first.
func (g *Graph) Regions() []*Region { return append([]*Region(nil), g.regions...) }

// LoopOf returns the innermost loop containing b, or nil.
func (g *Graph) LoopOf(b *Block) *Loop {
	var best *Loop
	for _, l := range g.Loops {
		if l.Contains(b) && (best == nil || best.Body.Len() > l.Body.Len()) {
			best = l
		}
	}
	return best
}

// LoopAt returns the loop headed by b, or nil.
func (g *Graph) LoopAt(b *Block) *Loop {
	for _, l := range g.Loops {
		if l.Header == b {
			return l
		}
	}
	return nil
}

// StackSlot returns the shared local used to carry stack slot i across
// block boundaries.
func (g *Graph) StackSlot(i int, t types.Type) *hir.Local {
	for len(g.slots) <= i {
		g.slots = append(g.slots, nil)
	}
	if g.slots[i] == nil {
		if t == nil {
			t = types.Typ[types.Object]
		}
		g.slots[i] = hir.NewTemp(fmt.Sprintf("$stack%d", i), t)
	}
	return g.slots[i]
}

// StackSlots returns the stack slot locals created so far.
func (g *Graph) StackSlots() []*hir.Local {
	var out []*hir.Local
	for _, l := range g.slots {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (g *Graph) sortBlocks() {
	sort.SliceStable(g.Blocks, func(i, j int) bool {
		if g.Blocks[i].Start != g.Blocks[j].Start {
			return g.Blocks[i].Start < g.Blocks[j].Start
		}
		return g.Blocks[i].ID < g.Blocks[j].ID
	})
}
