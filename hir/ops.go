package hir

import "fmt"

// OpType is the operator carried by an Operator node.
type OpType uint8

const (
	OpAdd OpType = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpLeftShift
	OpRightShift
	OpAnd
	OpOr
	OpXor
	OpNegate
	OpComplement
	OpAndAlso
	OpOrElse
	OpNot
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpConditional
	OpCoalesce
	OpAddAssign
	OpSubtractAssign
	OpMultiplyAssign
	OpDivideAssign
	OpModuloAssign
	OpAndAssign
	OpOrAssign
	OpXorAssign
	OpLeftShiftAssign
	OpRightShiftAssign
	OpPreIncrement
	OpPreDecrement
	OpPostIncrement
	OpPostDecrement

	numOps
)

type opInfo struct {
	name  string
	cs    string
	vb    string
	arity int
	prec  int
}

// Precedence levels, higher binds tighter.
const (
	precAssign = iota + 1
	precConditional
	precCoalesce
	precOrElse
	precAndAlso
	precOr
	precXor
	precAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
	precPrimary
)

var ops = [numOps]opInfo{
	OpAdd:                {"Add", "+", "+", 2, precAdditive},
	OpSubtract:           {"Subtract", "-", "-", 2, precAdditive},
	OpMultiply:           {"Multiply", "*", "*", 2, precMultiplicative},
	OpDivide:             {"Divide", "/", "/", 2, precMultiplicative},
	OpModulo:             {"Modulo", "%", "Mod", 2, precMultiplicative},
	OpLeftShift:          {"LeftShift", "<<", "<<", 2, precShift},
	OpRightShift:         {"RightShift", ">>", ">>", 2, precShift},
	OpAnd:                {"And", "&", "And", 2, precAnd},
	OpOr:                 {"Or", "|", "Or", 2, precOr},
	OpXor:                {"Xor", "^", "Xor", 2, precXor},
	OpNegate:             {"Negate", "-", "-", 1, precUnary},
	OpComplement:         {"Complement", "~", "Not ", 1, precUnary},
	OpAndAlso:            {"AndAlso", "&&", "AndAlso", 2, precAndAlso},
	OpOrElse:             {"OrElse", "||", "OrElse", 2, precOrElse},
	OpNot:                {"Not", "!", "Not ", 1, precUnary},
	OpEqual:              {"Equal", "==", "=", 2, precEquality},
	OpNotEqual:           {"NotEqual", "!=", "<>", 2, precEquality},
	OpGreaterThan:        {"GreaterThan", ">", ">", 2, precRelational},
	OpGreaterThanOrEqual: {"GreaterThanOrEqual", ">=", ">=", 2, precRelational},
	OpLessThan:           {"LessThan", "<", "<", 2, precRelational},
	OpLessThanOrEqual:    {"LessThanOrEqual", "<=", "<=", 2, precRelational},
	OpConditional:        {"Conditional", "?:", "If", 3, precConditional},
	OpCoalesce:           {"Coalesce", "??", "If", 2, precCoalesce},
	OpAddAssign:          {"AddAssign", "+=", "+=", 2, precAssign},
	OpSubtractAssign:     {"SubtractAssign", "-=", "-=", 2, precAssign},
	OpMultiplyAssign:     {"MultiplyAssign", "*=", "*=", 2, precAssign},
	OpDivideAssign:       {"DivideAssign", "/=", "/=", 2, precAssign},
	OpModuloAssign:       {"ModuloAssign", "%=", "Mod=", 2, precAssign},
	OpAndAssign:          {"AndAssign", "&=", "And=", 2, precAssign},
	OpOrAssign:           {"OrAssign", "|=", "Or=", 2, precAssign},
	OpXorAssign:          {"XorAssign", "^=", "Xor=", 2, precAssign},
	OpLeftShiftAssign:    {"LeftShiftAssign", "<<=", "<<=", 2, precAssign},
	OpRightShiftAssign:   {"RightShiftAssign", ">>=", ">>=", 2, precAssign},
	OpPreIncrement:       {"PreIncrement", "++", "++", 1, precUnary},
	OpPreDecrement:       {"PreDecrement", "--", "--", 1, precUnary},
	OpPostIncrement:      {"PostIncrement", "++", "++", 1, precPostfix},
	OpPostDecrement:      {"PostDecrement", "--", "--", 1, precPostfix},
}

func (op OpType) String() string {
	if op < numOps {
		return ops[op].name
	}
	return fmt.Sprintf("OpType(%d)", op)
}

// Arity returns the number of arguments the operator takes.
func (op OpType) Arity() int { return ops[op].arity }

// IsRelational reports whether op compares two values.
func (op OpType) IsRelational() bool {
	return op >= OpEqual && op <= OpLessThanOrEqual
}

// IsLogical reports whether op is a boolean connective.
func (op OpType) IsLogical() bool {
	return op == OpAndAlso || op == OpOrElse || op == OpNot
}

// IsAssignment reports whether op stores into its first argument.
func (op OpType) IsAssignment() bool {
	return op >= OpAddAssign && op <= OpPostDecrement
}

// IsIncrement reports whether op is one of the ++/-- forms.
func (op OpType) IsIncrement() bool {
	return op >= OpPreIncrement && op <= OpPostDecrement
}

// IsArithmetic reports whether op is a numeric or bitwise binary operator.
func (op OpType) IsArithmetic() bool {
	return op <= OpXor
}

var compound = map[OpType]OpType{
	OpAdd:        OpAddAssign,
	OpSubtract:   OpSubtractAssign,
	OpMultiply:   OpMultiplyAssign,
	OpDivide:     OpDivideAssign,
	OpModulo:     OpModuloAssign,
	OpAnd:        OpAndAssign,
	OpOr:         OpOrAssign,
	OpXor:        OpXorAssign,
	OpLeftShift:  OpLeftShiftAssign,
	OpRightShift: OpRightShiftAssign,
}

// CompoundOf returns the compound-assignment form of a binary operator.
func CompoundOf(op OpType) (OpType, bool) {
	c, ok := compound[op]
	return c, ok
}

// Inverse returns the relational operator that is true exactly when op is
// false, e.g. > becomes <=.
func (op OpType) Inverse() (OpType, bool) {
	switch op {
	case OpEqual:
		return OpNotEqual, true
	case OpNotEqual:
		return OpEqual, true
	case OpGreaterThan:
		return OpLessThanOrEqual, true
	case OpGreaterThanOrEqual:
		return OpLessThan, true
	case OpLessThan:
		return OpGreaterThanOrEqual, true
	case OpLessThanOrEqual:
		return OpGreaterThan, true
	}
	return op, false
}
