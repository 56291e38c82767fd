// Package il models the decoded input of the decompiler: a linear stream of
// stack-machine instructions with resolved operands, the exception regions
// that guard ranges of it, and an optional debug side table.
//
// Decoding raw bytes into this form is the job of an external front end.
package il

import (
	"fmt"

	"github.com/wippyai/decompiler/types"
)

// Instruction is a single decoded operation.
type Instruction struct {
	// Operand is one of Const, LocalIndex, ParamIndex, *types.Field,
	// *types.Method, types.Type, Target or []Target depending on Op.
	Operand any
	Offset  int
	Op      Opcode
}

// Const is a literal operand. Value is nil for null.
type Const struct {
	Value any
	Type  types.Type
}

// LocalIndex addresses a local variable slot.
type LocalIndex int

// ParamIndex addresses an argument slot. Slot 0 is the receiver for
// instance methods.
type ParamIndex int

// Target is the offset of a branch destination.
type Target int

// String renders the instruction in listing form.
func (in Instruction) String() string {
	if in.Operand == nil {
		return fmt.Sprintf("IL_%04x: %s", in.Offset, in.Op)
	}
	switch v := in.Operand.(type) {
	case Target:
		return fmt.Sprintf("IL_%04x: %s IL_%04x", in.Offset, in.Op, int(v))
	case Const:
		return fmt.Sprintf("IL_%04x: %s %v", in.Offset, in.Op, v.Value)
	}
	return fmt.Sprintf("IL_%04x: %s %v", in.Offset, in.Op, in.Operand)
}

// Targets returns the branch destinations of the instruction.
func (in Instruction) Targets() []int {
	switch v := in.Operand.(type) {
	case Target:
		return []int{int(v)}
	case []Target:
		out := make([]int, len(v))
		for i, t := range v {
			out[i] = int(t)
		}
		return out
	}
	return nil
}

// Pops returns how many stack operands the instruction consumes in the
// context of method m.
func (in Instruction) Pops(m *Method) int {
	info := Info(in.Op)
	if info.Pops != VarCount {
		return info.Pops
	}
	switch in.Op {
	case OpCall, OpCallvirt:
		if callee, ok := in.Operand.(*types.Method); ok {
			return callee.Arity()
		}
	case OpNewobj:
		if callee, ok := in.Operand.(*types.Method); ok {
			return len(callee.Params)
		}
	case OpRet:
		if m != nil && !types.IsVoid(m.Returns) {
			return 1
		}
	}
	return 0
}

// Pushes returns how many values the instruction leaves on the stack.
func (in Instruction) Pushes() int {
	info := Info(in.Op)
	if info.Pushes != VarCount {
		return info.Pushes
	}
	if callee, ok := in.Operand.(*types.Method); ok && !types.IsVoid(callee.Result) {
		return 1
	}
	return 0
}
