package reconstruct

import (
	"github.com/wippyai/decompiler/il"
)

// Handler turns one instruction into stack and statement effects.
//
// Handlers are stateless and shared across methods. All mutable state
// lives in the Context: handlers pop operands, push expression trees,
// emit complete statements and set the block terminator.
type Handler interface {
	Handle(ctx *Context, in il.Instruction) error
}

// StackEffect describes the static stack signature of a handler.
type StackEffect struct {
	Pops   int
	Pushes int
}

// StackEffecter is implemented by handlers whose stack effect does not
// depend on the operand.
type StackEffecter interface {
	StackEffect() StackEffect
}

// Func is an adapter to use ordinary functions as Handlers.
type Func func(ctx *Context, in il.Instruction) error

// Handle implements Handler.
func (f Func) Handle(ctx *Context, in il.Instruction) error {
	return f(ctx, in)
}

// Registry maps opcodes to their handlers.
type Registry struct {
	handlers [256]Handler
	names    [256]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler for a single opcode, replacing any previous one.
// The name is used in error messages.
func (r *Registry) Register(op il.Opcode, h Handler, name string) {
	r.handlers[op] = h
	r.names[op] = name
}

// RegisterFunc registers a function as a handler for an opcode.
func (r *Registry) RegisterFunc(op il.Opcode, fn func(*Context, il.Instruction) error, name string) {
	r.Register(op, Func(fn), name)
}

// RegisterBulk registers the same handler for multiple opcodes.
func (r *Registry) RegisterBulk(ops []il.Opcode, h Handler, name string) {
	for _, op := range ops {
		r.Register(op, h, name)
	}
}

// Get returns the handler for an opcode, or nil if not registered.
func (r *Registry) Get(op il.Opcode) Handler {
	return r.handlers[op]
}

// Has returns true if a handler is registered for the opcode.
func (r *Registry) Has(op il.Opcode) bool {
	return r.handlers[op] != nil
}

// Name returns the name of the handler for an opcode.
func (r *Registry) Name(op il.Opcode) string {
	return r.names[op]
}

// MissingHandlers returns the opcodes among ops with no handler.
func (r *Registry) MissingHandlers(ops []il.Opcode) []il.Opcode {
	var missing []il.Opcode
	for _, op := range ops {
		if r.handlers[op] == nil {
			missing = append(missing, op)
		}
	}
	return missing
}
