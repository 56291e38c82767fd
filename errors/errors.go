package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage produced the error
type Phase string

const (
	PhaseReconstruct Phase = "reconstruct" // stack simulation
	PhaseCFG         Phase = "cfg"         // graph construction
	PhaseStructure   Phase = "structure"   // CFG to tree
	PhasePass        Phase = "pass"        // postprocessing
	PhaseTypeInfer   Phase = "typeinfer"   // type annotation
	PhaseTraverse    Phase = "traverse"    // generic tree traversal
	PhaseLoad        Phase = "load"        // listing decoding
	PhaseConfig      Phase = "config"      // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupported    Kind = "unsupported"
	KindUnexpectedNode Kind = "unexpected_node"
	KindTraversal      Kind = "traversal"
	KindAssertion      Kind = "assertion"
	KindStackUnderflow Kind = "stack_underflow"
	KindStackMismatch  Kind = "stack_mismatch"
	KindTypeMismatch   Kind = "type_mismatch"
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
)

// NoOffset marks errors that are not tied to an instruction.
const NoOffset = -1

// Error is the structured error type used throughout the decompiler
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Node     string
	NodeKind string
	Expected string
	Detail   string
	Offset   int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at IL_%04x", e.Offset)
	}

	if e.NodeKind != "" {
		b.WriteString(" in ")
		b.WriteString(e.NodeKind)
		if e.Node != "" {
			b.WriteString(" `")
			b.WriteString(e.Node)
			b.WriteByte('`')
		}
	}

	if e.Expected != "" {
		b.WriteString(" (expected ")
		b.WriteString(e.Expected)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: NoOffset,
		},
	}
}

// Node sets the offending node dump and kind name
func (b *Builder) Node(dump, kind string) *Builder {
	b.err.Node = dump
	b.err.NodeKind = kind
	return b
}

// Offset sets the instruction offset
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Expected sets the expected type or shape
func (b *Builder) Expected(what string) *Builder {
	b.err.Expected = what
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Unsupported creates an unsupported-construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
		Offset: NoOffset,
	}
}

// UnsupportedNode reports a node kind the active operation never handled
func UnsupportedNode(phase Phase, dump, kind string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindUnsupported,
		Node:     dump,
		NodeKind: kind,
		Detail:   "node kind not handled by this operation",
		Offset:   NoOffset,
	}
}

// UnexpectedNode reports a node whose shape does not satisfy a stricter consumer
func UnexpectedNode(phase Phase, dump, kind, expected string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindUnexpectedNode,
		Node:     dump,
		NodeKind: kind,
		Expected: expected,
		Offset:   NoOffset,
	}
}

// Assertion creates an invariant-violation error
func Assertion(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAssertion,
		Detail: fmt.Sprintf(format, args...),
		Offset: NoOffset,
	}
}

// StackUnderflow creates an error for an instruction whose operands are missing
func StackUnderflow(offset int, op string, want, have int) *Error {
	return &Error{
		Phase:  PhaseReconstruct,
		Kind:   KindStackUnderflow,
		Offset: offset,
		Detail: fmt.Sprintf("%s needs %d operand(s), stack holds %d", op, want, have),
	}
}

// StackMismatch creates an error for a join reached with different stack depths
func StackMismatch(offset, depth, other int) *Error {
	return &Error{
		Phase:  PhaseCFG,
		Kind:   KindStackMismatch,
		Offset: offset,
		Detail: fmt.Sprintf("block entered with stack depth %d and %d", depth, other),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
		Offset: NoOffset,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Offset: NoOffset,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
		Offset: NoOffset,
	}
}

// Traversal wraps a foreign error raised inside a traversal with the node
// context. Errors that are already structured pass through unchanged.
func Traversal(cause error, dump, kind string) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if stderrors.As(cause, &e) {
		return cause
	}
	return &Error{
		Phase:    PhaseTraverse,
		Kind:     KindTraversal,
		Node:     dump,
		NodeKind: kind,
		Cause:    cause,
		Offset:   NoOffset,
	}
}

// As is a re-export of the standard errors.As for callers that import this
// package under the name errors.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
