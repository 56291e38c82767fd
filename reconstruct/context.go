package reconstruct

import (
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/typeinfer"
	"github.com/wippyai/decompiler/types"
)

// Terminator is the control transfer that ends a block.
type Terminator struct {
	// Cond is the condition under which a FlowCondBranch jumps to
	// Targets[0]; otherwise control falls through.
	Cond hir.Node
	// Value is the switch selector or the endfilter result.
	Value   hir.Node
	Targets []int
	Flow    il.Flow
	Offset  int
}

// Context is the mutable state of one block reconstruction.
type Context struct {
	Method  *il.Method
	Symbols *Symbols
	stack   []hir.Node
	code    []hir.Node
	Term    Terminator
	// Offset is the offset of the instruction being handled.
	Offset int
}

// Depth returns the number of values on the simulated stack.
func (c *Context) Depth() int { return len(c.stack) }

// Push places an expression on the stack.
func (c *Context) Push(n hir.Node) {
	c.stack = append(c.stack, n)
}

// Pop removes the top of the stack.
func (c *Context) Pop() (hir.Node, error) {
	if len(c.stack) == 0 {
		return nil, errors.StackUnderflow(c.Offset, c.op(), 1, 0)
	}
	n := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return n, nil
}

// PopN removes the top n values and returns them bottom first, i.e. in
// argument order.
func (c *Context) PopN(n int) ([]hir.Node, error) {
	if len(c.stack) < n {
		return nil, errors.StackUnderflow(c.Offset, c.op(), n, len(c.stack))
	}
	out := make([]hir.Node, n)
	copy(out, c.stack[len(c.stack)-n:])
	c.stack = c.stack[:len(c.stack)-n]
	return out, nil
}

// Peek returns the top of the stack without removing it.
func (c *Context) Peek() (hir.Node, error) {
	if len(c.stack) == 0 {
		return nil, errors.StackUnderflow(c.Offset, c.op(), 1, 0)
	}
	return c.stack[len(c.stack)-1], nil
}

func (c *Context) op() string {
	if i := c.Method.At(c.Offset); i >= 0 {
		return c.Method.Body[i].Op.String()
	}
	return "instruction"
}

// Emit appends a complete statement. Pending stack values that read
// memory the statement may change are spilled to temps first so that
// evaluation order is kept.
func (c *Context) Emit(stmt hir.Node) {
	for i, e := range c.stack {
		if !isPure(e) {
			c.stack[i] = c.spill(e)
		}
	}
	c.code = append(c.code, stmt)
}

// Store emits lhs = rhs. Pending values that read lhs are spilled before
// the store; other pending values are left alone when lhs is a local.
func (c *Context) Store(lhs, rhs hir.Node) {
	for i, e := range c.stack {
		if reads(e, lhs) {
			c.stack[i] = c.spill(e)
		}
	}
	if _, ok := lhs.(*hir.Ref); ok {
		c.code = append(c.code, hir.NewAssign(lhs, rhs))
		return
	}
	c.Emit(hir.NewAssign(lhs, rhs))
}

// Spill stores e into a fresh temp and returns a reference to it.
func (c *Context) spill(e hir.Node) hir.Node {
	t, _ := typeinfer.Of(e)
	if t == nil {
		t = types.Typ[types.Object]
	}
	tmp := c.Symbols.Temp(t)
	c.code = append(c.code, hir.NewAssign(hir.NewRef(tmp), e))
	return hir.NewRef(tmp)
}

// Dup duplicates the top of the stack. Atoms are cloned; anything else is
// spilled once and referenced twice.
func (c *Context) Dup() error {
	top, err := c.Pop()
	if err != nil {
		return err
	}
	switch top.(type) {
	case *hir.Const, *hir.Ref, *hir.Loophole:
		c.Push(top)
		c.Push(hir.Clone(top))
		return nil
	}
	ref := c.spill(top)
	c.Push(ref)
	c.Push(hir.Clone(ref))
	return nil
}

// isPure reports whether evaluating n only reads locals, parameters and
// constants, so moving it past a statement cannot change its value unless
// the statement stores to one of them.
func isPure(n hir.Node) bool {
	pure := true
	hir.Walk(n, func(x hir.Node) bool {
		switch x.Kind() {
		case hir.KindConst, hir.KindRef, hir.KindLoophole, hir.KindOperator,
			hir.KindConvert, hir.KindTypeIs, hir.KindTypeAs, hir.KindSizeOf,
			hir.KindDefault, hir.KindLambda:
			if op, ok := x.(*hir.Operator); ok && op.Op.IsAssignment() {
				pure = false
			}
		case hir.KindAddr:
		default:
			pure = false
		}
		return pure
	})
	return pure
}

// reads reports whether evaluating n may observe the location lhs.
func reads(n, lhs hir.Node) bool {
	found := false
	hir.Walk(n, func(x hir.Node) bool {
		if found {
			return false
		}
		switch l := lhs.(type) {
		case *hir.Ref:
			if r, ok := x.(*hir.Ref); ok && hir.SymbolsEqual(r.Sym, l.Sym) {
				found = true
			}
		case *hir.Fld:
			if f, ok := x.(*hir.Fld); ok && f.Field == l.Field {
				found = true
			}
		default:
			if !isPure(x) {
				found = true
			}
		}
		return !found
	})
	return found
}
