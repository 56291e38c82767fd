package reconstruct

import (
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/types"
)

// BinaryOpHandler pops two operands and pushes an Operator node.
type BinaryOpHandler struct {
	Op hir.OpType
}

func (h BinaryOpHandler) Handle(ctx *Context, in il.Instruction) error {
	args, err := ctx.PopN(2)
	if err != nil {
		return err
	}
	ctx.Push(hir.Binary(h.Op, args[0], args[1]))
	return nil
}

// StackEffect implements StackEffecter.
func (h BinaryOpHandler) StackEffect() StackEffect { return StackEffect{Pops: 2, Pushes: 1} }

// UnaryOpHandler pops one operand and pushes an Operator node.
type UnaryOpHandler struct {
	Op hir.OpType
}

func (h UnaryOpHandler) Handle(ctx *Context, in il.Instruction) error {
	x, err := ctx.Pop()
	if err != nil {
		return err
	}
	ctx.Push(hir.Unary(h.Op, x))
	return nil
}

// StackEffect implements StackEffecter.
func (h UnaryOpHandler) StackEffect() StackEffect { return StackEffect{Pops: 1, Pushes: 1} }

// CondBranchHandler ends a block with a two-way branch. Compare branches
// pop two operands and jump when Op holds; brtrue and brfalse pop one and
// jump when it is non-zero or zero.
type CondBranchHandler struct {
	Op hir.OpType
	// Unary selects the one-operand form; Negate jumps on zero.
	Unary  bool
	Negate bool
}

func (h CondBranchHandler) Handle(ctx *Context, in il.Instruction) error {
	var cond hir.Node
	if h.Unary {
		x, err := ctx.Pop()
		if err != nil {
			return err
		}
		cond = x
		if h.Negate {
			cond = hir.Unary(hir.OpNot, x)
		}
	} else {
		args, err := ctx.PopN(2)
		if err != nil {
			return err
		}
		cond = hir.Binary(h.Op, args[0], args[1])
	}
	ctx.Term = Terminator{Flow: il.FlowCondBranch, Cond: cond, Targets: in.Targets(), Offset: in.Offset}
	return nil
}

// StoreHandler pops a value and stores it into a local or parameter.
type StoreHandler struct{}

func (StoreHandler) Handle(ctx *Context, in il.Instruction) error {
	v, err := ctx.Pop()
	if err != nil {
		return err
	}
	target, err := slotRef(ctx, in)
	if err != nil {
		return err
	}
	ctx.Store(target, v)
	return nil
}

// StackEffect implements StackEffecter.
func (StoreHandler) StackEffect() StackEffect { return StackEffect{Pops: 1} }

// LoadHandler pushes a local or parameter, or its address.
type LoadHandler struct {
	Address bool
}

func (h LoadHandler) Handle(ctx *Context, in il.Instruction) error {
	ref, err := slotRef(ctx, in)
	if err != nil {
		return err
	}
	if h.Address {
		ctx.Push(hir.NewAddr(ref))
	} else {
		ctx.Push(ref)
	}
	return nil
}

// StackEffect implements StackEffecter.
func (LoadHandler) StackEffect() StackEffect { return StackEffect{Pushes: 1} }

func slotRef(ctx *Context, in il.Instruction) (*hir.Ref, error) {
	switch v := in.Operand.(type) {
	case il.LocalIndex:
		if l, ok := ctx.Symbols.Local(int(v)); ok {
			return hir.NewRef(l), nil
		}
	case il.ParamIndex:
		if p, ok := ctx.Symbols.Param(int(v)); ok {
			return hir.NewRef(p), nil
		}
	}
	return nil, badOperand(in, "slot index")
}

func badOperand(in il.Instruction, want string) error {
	return errors.New(errors.PhaseReconstruct, errors.KindInvalidInput).
		Offset(in.Offset).
		Expected(want).
		Detail("%s has operand %T", in.Op, in.Operand).
		Build()
}

// receiver strips the address-of a value-type receiver so that member
// accesses read as s.f instead of (&s).f.
func receiver(n hir.Node) hir.Node {
	if a, ok := n.(*hir.Addr); ok {
		t := a.Target()
		hir.Detach(t)
		return t
	}
	return n
}

// deref turns a pointer expression into the location it designates.
func deref(n hir.Node) hir.Node {
	if a, ok := n.(*hir.Addr); ok {
		t := a.Target()
		hir.Detach(t)
		return t
	}
	return hir.NewDeref(n)
}

func field(in il.Instruction) (*types.Field, error) {
	f, ok := in.Operand.(*types.Field)
	if !ok {
		return nil, badOperand(in, "field")
	}
	return f, nil
}

func methodOperand(in il.Instruction) (*types.Method, error) {
	m, ok := in.Operand.(*types.Method)
	if !ok {
		return nil, badOperand(in, "method")
	}
	return m, nil
}

func typeOperand(in il.Instruction) (types.Type, error) {
	t, ok := in.Operand.(types.Type)
	if !ok {
		return nil, badOperand(in, "type")
	}
	return t, nil
}

func loadField(ctx *Context, in il.Instruction) error {
	f, err := field(in)
	if err != nil {
		return err
	}
	var this hir.Node
	if in.Op == il.OpLdfld || in.Op == il.OpLdflda {
		obj, err := ctx.Pop()
		if err != nil {
			return err
		}
		if !f.Static {
			this = receiver(obj)
		}
	}
	var n hir.Node = hir.NewFld(f, this)
	if in.Op == il.OpLdflda {
		n = hir.NewAddr(n)
	}
	ctx.Push(n)
	return nil
}

func storeField(ctx *Context, in il.Instruction) error {
	f, err := field(in)
	if err != nil {
		return err
	}
	v, err := ctx.Pop()
	if err != nil {
		return err
	}
	var this hir.Node
	if in.Op == il.OpStfld {
		obj, err := ctx.Pop()
		if err != nil {
			return err
		}
		if !f.Static {
			this = receiver(obj)
		}
	}
	ctx.Store(hir.NewFld(f, this), v)
	return nil
}

// callHandler builds Apply nodes for call and callvirt. Accessors are
// folded back into property reads and writes.
func callHandler(ctx *Context, in il.Instruction) error {
	m, err := methodOperand(in)
	if err != nil {
		return err
	}
	args, err := ctx.PopN(m.Arity())
	if err != nil {
		return err
	}
	if p := m.Property; p != nil {
		return accessor(ctx, m, p, args)
	}
	if !m.Static && len(args) > 0 {
		args[0] = receiver(args[0])
	}
	call := hir.NewApply(hir.NewMethodRef(m, in.Op == il.OpCallvirt), args...)
	if types.IsVoid(m.Result) {
		ctx.Emit(hir.NewEval(call))
	} else {
		ctx.Push(call)
	}
	return nil
}

func accessor(ctx *Context, m *types.Method, p *types.Property, args []hir.Node) error {
	var this hir.Node
	if !p.Static && len(args) > 0 {
		this = receiver(args[0])
		args = args[1:]
	}
	prop := hir.NewProp(p, this)
	if m == p.Setter {
		if len(args) == 0 {
			return errors.StackUnderflow(ctx.Offset, "call", 1, 0)
		}
		val := args[len(args)-1]
		var target hir.Node = prop
		if p.IsIndexer() {
			target = hir.NewApply(prop, args[:len(args)-1]...)
		}
		ctx.Store(target, val)
		return nil
	}
	if p.IsIndexer() {
		ctx.Push(hir.NewApply(prop, args...))
	} else {
		ctx.Push(prop)
	}
	return nil
}

func newobjHandler(ctx *Context, in il.Instruction) error {
	m, err := methodOperand(in)
	if err != nil {
		return err
	}
	args, err := ctx.PopN(len(m.Params))
	if err != nil {
		return err
	}
	ctx.Push(hir.NewApply(hir.NewMethodRef(m, false), args...))
	return nil
}

// ConvertHandler pops a value and pushes a conversion to the operand type.
type ConvertHandler struct {
	// To overrides the operand type, e.g. object for box.
	To      types.Type
	Checked bool
	// As produces a TypeAs instead of a cast.
	As bool
}

func (h ConvertHandler) Handle(ctx *Context, in il.Instruction) error {
	t := h.To
	if t == nil {
		var err error
		if t, err = typeOperand(in); err != nil {
			return err
		}
	}
	x, err := ctx.Pop()
	if err != nil {
		return err
	}
	if h.As {
		ctx.Push(hir.NewTypeAs(x, t))
		return nil
	}
	c := hir.NewConvert(t, x)
	c.Checked = h.Checked
	ctx.Push(c)
	return nil
}

// StackEffect implements StackEffecter.
func (ConvertHandler) StackEffect() StackEffect { return StackEffect{Pops: 1, Pushes: 1} }

func constHandler(ctx *Context, in il.Instruction) error {
	switch v := in.Operand.(type) {
	case il.Const:
		ctx.Push(hir.NewConst(v.Value, v.Type))
	case string:
		ctx.Push(hir.NewConst(v, types.Typ[types.String]))
	default:
		return badOperand(in, "constant")
	}
	return nil
}

func popHandler(ctx *Context, in il.Instruction) error {
	x, err := ctx.Pop()
	if err != nil {
		return err
	}
	if !isPure(x) {
		ctx.Emit(hir.NewEval(x))
	}
	return nil
}

func retHandler(ctx *Context, in il.Instruction) error {
	var v hir.Node
	if in.Pops(ctx.Method) > 0 {
		var err error
		if v, err = ctx.Pop(); err != nil {
			return err
		}
	}
	ctx.Emit(hir.NewReturn(v))
	ctx.Term = Terminator{Flow: il.FlowReturn, Offset: in.Offset}
	return nil
}

func throwHandler(ctx *Context, in il.Instruction) error {
	var x hir.Node
	if in.Op == il.OpThrow {
		var err error
		if x, err = ctx.Pop(); err != nil {
			return err
		}
	}
	ctx.Emit(hir.NewThrow(x))
	ctx.Term = Terminator{Flow: il.FlowThrow, Offset: in.Offset}
	return nil
}

func jumpHandler(ctx *Context, in il.Instruction) error {
	flow := il.FlowBranch
	if in.Op == il.OpLeave {
		flow = il.FlowLeave
		// leave empties the evaluation stack.
		for _, x := range ctx.stack {
			if !isPure(x) {
				ctx.code = append(ctx.code, hir.NewEval(x))
			}
		}
		ctx.stack = ctx.stack[:0]
	}
	ctx.Term = Terminator{Flow: flow, Targets: in.Targets(), Offset: in.Offset}
	return nil
}

func switchHandler(ctx *Context, in il.Instruction) error {
	sel, err := ctx.Pop()
	if err != nil {
		return err
	}
	ctx.Term = Terminator{Flow: il.FlowSwitch, Value: sel, Targets: in.Targets(), Offset: in.Offset}
	return nil
}

func endHandler(ctx *Context, in il.Instruction) error {
	var v hir.Node
	if in.Op == il.OpEndfilter {
		var err error
		if v, err = ctx.Pop(); err != nil {
			return err
		}
	}
	ctx.Term = Terminator{Flow: il.FlowEndHandler, Value: v, Offset: in.Offset}
	return nil
}

func ldindHandler(ctx *Context, in il.Instruction) error {
	p, err := ctx.Pop()
	if err != nil {
		return err
	}
	ctx.Push(deref(p))
	return nil
}

func stindHandler(ctx *Context, in il.Instruction) error {
	args, err := ctx.PopN(2)
	if err != nil {
		return err
	}
	ctx.Store(deref(args[0]), args[1])
	return nil
}

func initobjHandler(ctx *Context, in il.Instruction) error {
	t, err := typeOperand(in)
	if err != nil {
		return err
	}
	p, err := ctx.Pop()
	if err != nil {
		return err
	}
	ctx.Store(deref(p), hir.NewDefault(t))
	return nil
}

func sizeofHandler(ctx *Context, in il.Instruction) error {
	t, err := typeOperand(in)
	if err != nil {
		return err
	}
	ctx.Push(hir.NewSizeOf(t))
	return nil
}

func newarrHandler(ctx *Context, in il.Instruction) error {
	t, err := typeOperand(in)
	if err != nil {
		return err
	}
	n, err := ctx.Pop()
	if err != nil {
		return err
	}
	ctx.Push(hir.NewApply(hir.NewMethodRef(types.ArrayCtor(t), false), n))
	return nil
}

func ldelemHandler(ctx *Context, in il.Instruction) error {
	args, err := ctx.PopN(2)
	if err != nil {
		return err
	}
	ctx.Push(hir.NewApply(args[0], args[1]))
	return nil
}

func stelemHandler(ctx *Context, in il.Instruction) error {
	args, err := ctx.PopN(3)
	if err != nil {
		return err
	}
	ctx.Store(hir.NewApply(args[0], args[1]), args[2])
	return nil
}

func ldlenHandler(ctx *Context, in il.Instruction) error {
	arr, err := ctx.Pop()
	if err != nil {
		return err
	}
	ctx.Push(hir.NewProp(types.Length, arr))
	return nil
}

func ldftnHandler(ctx *Context, in il.Instruction) error {
	m, err := methodOperand(in)
	if err != nil {
		return err
	}
	ctx.Push(hir.NewMethodRef(m, false))
	return nil
}

// DefaultRegistry returns a registry covering every opcode of il.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterFunc(il.OpNop, func(*Context, il.Instruction) error { return nil }, "nop")
	r.RegisterFunc(il.OpLdc, constHandler, "ldc")
	r.RegisterFunc(il.OpLdnull, func(ctx *Context, _ il.Instruction) error {
		ctx.Push(hir.NewNullConst())
		return nil
	}, "ldnull")

	r.RegisterBulk([]il.Opcode{il.OpLdloc, il.OpLdarg}, LoadHandler{}, "load")
	r.RegisterBulk([]il.Opcode{il.OpLdloca, il.OpLdarga}, LoadHandler{Address: true}, "load-address")
	r.RegisterBulk([]il.Opcode{il.OpStloc, il.OpStarg}, StoreHandler{}, "store")

	r.RegisterBulk([]il.Opcode{il.OpLdfld, il.OpLdsfld, il.OpLdflda}, Func(loadField), "load-field")
	r.RegisterBulk([]il.Opcode{il.OpStfld, il.OpStsfld}, Func(storeField), "store-field")

	r.RegisterBulk([]il.Opcode{il.OpCall, il.OpCallvirt}, Func(callHandler), "call")
	r.RegisterFunc(il.OpNewobj, newobjHandler, "newobj")

	for op, hop := range map[il.Opcode]hir.OpType{
		il.OpAdd: hir.OpAdd, il.OpSub: hir.OpSubtract, il.OpMul: hir.OpMultiply,
		il.OpDiv: hir.OpDivide, il.OpRem: hir.OpModulo, il.OpAnd: hir.OpAnd,
		il.OpOr: hir.OpOr, il.OpXor: hir.OpXor, il.OpShl: hir.OpLeftShift,
		il.OpShr: hir.OpRightShift, il.OpCeq: hir.OpEqual, il.OpCgt: hir.OpGreaterThan,
		il.OpClt: hir.OpLessThan,
	} {
		r.Register(op, BinaryOpHandler{Op: hop}, op.String())
	}
	r.Register(il.OpNeg, UnaryOpHandler{Op: hir.OpNegate}, "neg")
	r.Register(il.OpNot, UnaryOpHandler{Op: hir.OpComplement}, "not")

	r.Register(il.OpConv, ConvertHandler{}, "conv")
	r.Register(il.OpIsinst, ConvertHandler{As: true}, "isinst")
	r.Register(il.OpCastclass, ConvertHandler{Checked: true}, "castclass")
	r.Register(il.OpBox, ConvertHandler{To: types.Typ[types.Object]}, "box")
	r.Register(il.OpUnbox, ConvertHandler{Checked: true}, "unbox")

	r.RegisterFunc(il.OpDup, func(ctx *Context, _ il.Instruction) error { return ctx.Dup() }, "dup")
	r.RegisterFunc(il.OpPop, popHandler, "pop")

	r.RegisterFunc(il.OpRet, retHandler, "ret")
	r.RegisterBulk([]il.Opcode{il.OpThrow, il.OpRethrow}, Func(throwHandler), "throw")
	r.RegisterBulk([]il.Opcode{il.OpBr, il.OpLeave}, Func(jumpHandler), "jump")
	r.Register(il.OpBrtrue, CondBranchHandler{Unary: true}, "brtrue")
	r.Register(il.OpBrfalse, CondBranchHandler{Unary: true, Negate: true}, "brfalse")
	for op, hop := range map[il.Opcode]hir.OpType{
		il.OpBeq: hir.OpEqual, il.OpBne: hir.OpNotEqual, il.OpBgt: hir.OpGreaterThan,
		il.OpBge: hir.OpGreaterThanOrEqual, il.OpBlt: hir.OpLessThan, il.OpBle: hir.OpLessThanOrEqual,
	} {
		r.Register(op, CondBranchHandler{Op: hop}, op.String())
	}
	r.RegisterFunc(il.OpSwitch, switchHandler, "switch")
	r.RegisterBulk([]il.Opcode{il.OpEndfinally, il.OpEndfilter}, Func(endHandler), "end-handler")

	r.RegisterFunc(il.OpLdind, ldindHandler, "ldind")
	r.RegisterFunc(il.OpStind, stindHandler, "stind")
	r.RegisterFunc(il.OpSizeof, sizeofHandler, "sizeof")
	r.RegisterFunc(il.OpInitobj, initobjHandler, "initobj")
	r.RegisterFunc(il.OpNewarr, newarrHandler, "newarr")
	r.RegisterFunc(il.OpLdelem, ldelemHandler, "ldelem")
	r.RegisterFunc(il.OpStelem, stelemHandler, "stelem")
	r.RegisterFunc(il.OpLdlen, ldlenHandler, "ldlen")
	r.RegisterFunc(il.OpLdftn, ldftnHandler, "ldftn")
	return r
}

var defaultRegistry = DefaultRegistry()

func unsupportedOpcode(in il.Instruction) error {
	return errors.New(errors.PhaseReconstruct, errors.KindUnsupported).
		Offset(in.Offset).
		Detail("no handler for opcode %s", in.Op).
		Build()
}
