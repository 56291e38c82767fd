package hir

import (
	"sync/atomic"

	"github.com/wippyai/decompiler/types"
)

var protoSeq atomic.Uint64

func nextProto() uint64 { return protoSeq.Add(1) }

// Symbol is a named, typed reference target. Symbols are immutable once
// constructed; Ref nodes point at them by identity.
type Symbol interface {
	Name() string
	Type() types.Type
	// ProtoID is shared by a symbol and every clone derived from it.
	ProtoID() uint64
	String() string
	symbol()
}

// Local is a method-local variable declared by a scope.
type Local struct {
	typ       types.Type
	name      string
	proto     uint64
	synthetic bool
}

// NewLocal creates a local with a fresh prototype id.
func NewLocal(name string, t types.Type) *Local {
	return &Local{name: name, typ: t, proto: nextProto()}
}

// NewTemp creates a decompiler-synthesized local, e.g. a stack spill.
func NewTemp(name string, t types.Type) *Local {
	l := NewLocal(name, t)
	l.synthetic = true
	return l
}

func (l *Local) Name() string     { return l.name }
func (l *Local) Type() types.Type { return l.typ }
func (l *Local) ProtoID() uint64  { return l.proto }
func (l *Local) String() string   { return l.name }
func (l *Local) Synthetic() bool  { return l.synthetic }
func (*Local) symbol()            {}

// Clone returns a copy sharing l's prototype id.
func (l *Local) Clone() *Local {
	c := *l
	return &c
}

// WithType returns a clone of l carrying type t.
func (l *Local) WithType(t types.Type) *Local {
	c := *l
	c.typ = t
	return &c
}

// Param is a method parameter, scoped to the enclosing Lambda.
type Param struct {
	typ   types.Type
	name  string
	index int
	proto uint64
}

// NewParam creates a parameter at slot index.
func NewParam(name string, t types.Type, index int) *Param {
	return &Param{name: name, typ: t, index: index, proto: nextProto()}
}

func (p *Param) Name() string     { return p.name }
func (p *Param) Type() types.Type { return p.typ }
func (p *Param) ProtoID() uint64  { return p.proto }
func (p *Param) String() string   { return p.name }
func (p *Param) Index() int       { return p.index }
func (*Param) symbol()            {}

// Clone returns a copy sharing p's prototype id.
func (p *Param) Clone() *Param {
	c := *p
	return &c
}

// SameOrigin reports whether a and b descend from the same symbol.
func SameOrigin(a, b Symbol) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ProtoID() == b.ProtoID()
}

// SymbolsEqual is full symbol equality: same origin, name and type.
func SymbolsEqual(a, b Symbol) bool {
	if a == b {
		return true
	}
	if !SameOrigin(a, b) {
		return false
	}
	return a.Name() == b.Name() && types.Identical(a.Type(), b.Type())
}
