package il

import "fmt"

// Opcode identifies a stack-machine operation.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpLdc
	OpLdnull
	OpLdloc
	OpStloc
	OpLdloca
	OpLdarg
	OpStarg
	OpLdarga
	OpLdfld
	OpStfld
	OpLdsfld
	OpStsfld
	OpLdflda
	OpCall
	OpCallvirt
	OpNewobj
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpNeg
	OpNot
	OpCeq
	OpCgt
	OpClt
	OpConv
	OpIsinst
	OpCastclass
	OpBox
	OpUnbox
	OpDup
	OpPop
	OpRet
	OpThrow
	OpRethrow
	OpBr
	OpBrtrue
	OpBrfalse
	OpBeq
	OpBne
	OpBgt
	OpBge
	OpBlt
	OpBle
	OpSwitch
	OpLeave
	OpEndfinally
	OpEndfilter
	OpLdind
	OpStind
	OpSizeof
	OpInitobj
	OpNewarr
	OpLdelem
	OpStelem
	OpLdlen
	OpLdftn

	numOpcodes
)

// Flow classifies how an instruction transfers control.
type Flow uint8

const (
	FlowNext       Flow = iota // falls through to the next instruction
	FlowBranch                 // unconditional jump
	FlowCondBranch             // two-way conditional jump
	FlowSwitch                 // multi-way jump, falls through on default
	FlowReturn                 // leaves the method
	FlowThrow                  // raises an exception
	FlowLeave                  // exits a protected region
	FlowEndHandler             // ends a finally, fault or filter handler
)

// VarCount marks a stack count that depends on the operand.
const VarCount = -1

// OpInfo describes the static shape of an opcode.
type OpInfo struct {
	Name   string
	Pops   int
	Pushes int
	Flow   Flow
}

var opInfos = [numOpcodes]OpInfo{
	OpNop:        {"nop", 0, 0, FlowNext},
	OpLdc:        {"ldc", 0, 1, FlowNext},
	OpLdnull:     {"ldnull", 0, 1, FlowNext},
	OpLdloc:      {"ldloc", 0, 1, FlowNext},
	OpStloc:      {"stloc", 1, 0, FlowNext},
	OpLdloca:     {"ldloca", 0, 1, FlowNext},
	OpLdarg:      {"ldarg", 0, 1, FlowNext},
	OpStarg:      {"starg", 1, 0, FlowNext},
	OpLdarga:     {"ldarga", 0, 1, FlowNext},
	OpLdfld:      {"ldfld", 1, 1, FlowNext},
	OpStfld:      {"stfld", 2, 0, FlowNext},
	OpLdsfld:     {"ldsfld", 0, 1, FlowNext},
	OpStsfld:     {"stsfld", 1, 0, FlowNext},
	OpLdflda:     {"ldflda", 1, 1, FlowNext},
	OpCall:       {"call", VarCount, VarCount, FlowNext},
	OpCallvirt:   {"callvirt", VarCount, VarCount, FlowNext},
	OpNewobj:     {"newobj", VarCount, 1, FlowNext},
	OpAdd:        {"add", 2, 1, FlowNext},
	OpSub:        {"sub", 2, 1, FlowNext},
	OpMul:        {"mul", 2, 1, FlowNext},
	OpDiv:        {"div", 2, 1, FlowNext},
	OpRem:        {"rem", 2, 1, FlowNext},
	OpAnd:        {"and", 2, 1, FlowNext},
	OpOr:         {"or", 2, 1, FlowNext},
	OpXor:        {"xor", 2, 1, FlowNext},
	OpShl:        {"shl", 2, 1, FlowNext},
	OpShr:        {"shr", 2, 1, FlowNext},
	OpNeg:        {"neg", 1, 1, FlowNext},
	OpNot:        {"not", 1, 1, FlowNext},
	OpCeq:        {"ceq", 2, 1, FlowNext},
	OpCgt:        {"cgt", 2, 1, FlowNext},
	OpClt:        {"clt", 2, 1, FlowNext},
	OpConv:       {"conv", 1, 1, FlowNext},
	OpIsinst:     {"isinst", 1, 1, FlowNext},
	OpCastclass:  {"castclass", 1, 1, FlowNext},
	OpBox:        {"box", 1, 1, FlowNext},
	OpUnbox:      {"unbox", 1, 1, FlowNext},
	OpDup:        {"dup", 1, 2, FlowNext},
	OpPop:        {"pop", 1, 0, FlowNext},
	OpRet:        {"ret", VarCount, 0, FlowReturn},
	OpThrow:      {"throw", 1, 0, FlowThrow},
	OpRethrow:    {"rethrow", 0, 0, FlowThrow},
	OpBr:         {"br", 0, 0, FlowBranch},
	OpBrtrue:     {"brtrue", 1, 0, FlowCondBranch},
	OpBrfalse:    {"brfalse", 1, 0, FlowCondBranch},
	OpBeq:        {"beq", 2, 0, FlowCondBranch},
	OpBne:        {"bne", 2, 0, FlowCondBranch},
	OpBgt:        {"bgt", 2, 0, FlowCondBranch},
	OpBge:        {"bge", 2, 0, FlowCondBranch},
	OpBlt:        {"blt", 2, 0, FlowCondBranch},
	OpBle:        {"ble", 2, 0, FlowCondBranch},
	OpSwitch:     {"switch", 1, 0, FlowSwitch},
	OpLeave:      {"leave", 0, 0, FlowLeave},
	OpEndfinally: {"endfinally", 0, 0, FlowEndHandler},
	OpEndfilter:  {"endfilter", 1, 0, FlowEndHandler},
	OpLdind:      {"ldind", 1, 1, FlowNext},
	OpStind:      {"stind", 2, 0, FlowNext},
	OpSizeof:     {"sizeof", 0, 1, FlowNext},
	OpInitobj:    {"initobj", 1, 0, FlowNext},
	OpNewarr:     {"newarr", 1, 1, FlowNext},
	OpLdelem:     {"ldelem", 2, 1, FlowNext},
	OpStelem:     {"stelem", 3, 0, FlowNext},
	OpLdlen:      {"ldlen", 1, 1, FlowNext},
	OpLdftn:      {"ldftn", 0, 1, FlowNext},
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := Opcode(0); op < numOpcodes; op++ {
		m[opInfos[op].Name] = op
	}
	return m
}()

// Info returns the static description of op.
func Info(op Opcode) OpInfo {
	if op >= numOpcodes {
		return OpInfo{Name: fmt.Sprintf("op(%d)", op), Flow: FlowNext}
	}
	return opInfos[op]
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	return Info(op).Name
}

// Lookup resolves a mnemonic to its opcode.
func Lookup(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}

// Opcodes returns every defined opcode in numeric order.
func Opcodes() []Opcode {
	ops := make([]Opcode, numOpcodes)
	for i := range ops {
		ops[i] = Opcode(i)
	}
	return ops
}
