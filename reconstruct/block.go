package reconstruct

import (
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/types"
)

// Result is the reconstruction of one basic block.
type Result struct {
	// Entry holds one placeholder per value on the stack when the block
	// starts, bottom first.
	Entry []*hir.Loophole
	// Code is the list of complete statements.
	Code []hir.Node
	// Residue is what is left on the stack at the end of the block, bottom
	// first, not counting operands consumed by the terminator.
	Residue []hir.Node
	Term    Terminator
}

// Reconstructor interprets the instructions of one method.
type Reconstructor struct {
	Method   *il.Method
	Symbols  *Symbols
	Registry *Registry
}

// New creates a Reconstructor. A nil registry selects the default one.
func New(m *il.Method, syms *Symbols, reg *Registry) *Reconstructor {
	if reg == nil {
		reg = defaultRegistry
	}
	return &Reconstructor{Method: m, Symbols: syms, Registry: reg}
}

// Block reconstructs the instructions with indices [from, to). entry gives
// the types of the values on the stack at block entry; a nil element is
// an unknown type.
func (r *Reconstructor) Block(from, to int, entry []types.Type) (*Result, error) {
	ctx := &Context{Method: r.Method, Symbols: r.Symbols}
	res := &Result{}
	for slot, t := range entry {
		lh := hir.NewLoophole(slot, t)
		res.Entry = append(res.Entry, lh)
		ctx.Push(lh)
	}

	term := false
	for i := from; i < to; i++ {
		in := r.Method.Body[i]
		ctx.Offset = in.Offset
		h := r.Registry.Get(in.Op)
		if h == nil {
			return nil, unsupportedOpcode(in)
		}
		if err := h.Handle(ctx, in); err != nil {
			return nil, err
		}
		if ctx.Term.Flow != il.FlowNext {
			term = true
			break
		}
	}
	if !term {
		next := r.Method.Body[to-1].Offset + 1
		if to < len(r.Method.Body) {
			next = r.Method.Body[to].Offset
		}
		ctx.Term = Terminator{Flow: il.FlowNext, Targets: []int{next}, Offset: r.Method.Body[to-1].Offset}
	}

	res.Code = ctx.code
	res.Residue = ctx.stack
	res.Term = ctx.Term
	return res, nil
}

// Straight reconstructs a whole method that contains no branches. It is a
// convenience for callers that need the statement list of a single block.
func Straight(m *il.Method, debug bool) (*Result, *Symbols, error) {
	syms := NewSymbols(m, debug)
	res, err := New(m, syms, nil).Block(0, len(m.Body), nil)
	return res, syms, err
}
