// Package types is the type model shared by every decompiler stage: basic
// value kinds, classes, arrays, pointers and function signatures, plus the
// member descriptors (fields, properties, methods) that instructions and
// HIR nodes refer to.
package types

import "strings"

// Type is implemented by every type in the model.
type Type interface {
	String() string
	isType()
}

type typ struct{}

func (typ) isType() {}

// BasicKind describes the kind of a basic type.
type BasicKind int

const (
	Invalid BasicKind = iota
	Void
	Bool
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Char
	Float32
	Float64
	String
	Object
	Null
)

// BasicInfo describes properties of a basic type.
type BasicInfo int

const (
	InfoBoolean BasicInfo = 1 << iota
	InfoInteger
	InfoUnsigned
	InfoFloat
	InfoReference
	InfoNumeric = InfoInteger | InfoFloat
)

// Basic represents a predeclared type.
type Basic struct {
	typ
	name string
	kind BasicKind
	info BasicInfo
	bits int
}

// Kind returns the kind of the basic type.
func (b *Basic) Kind() BasicKind { return b.kind }

// Info returns information about the basic type.
func (b *Basic) Info() BasicInfo { return b.info }

// Bits returns the storage width in bits, 0 for non-numeric kinds.
func (b *Basic) Bits() int { return b.bits }

// String implements Type.
func (b *Basic) String() string { return b.name }

// Typ holds the predeclared basic types, indexed by BasicKind.
var Typ = []*Basic{
	Invalid: nil,
	Void:    {kind: Void, name: "void"},
	Bool:    {kind: Bool, info: InfoBoolean, name: "bool", bits: 8},
	Int8:    {kind: Int8, info: InfoInteger, name: "int8", bits: 8},
	UInt8:   {kind: UInt8, info: InfoInteger | InfoUnsigned, name: "uint8", bits: 8},
	Int16:   {kind: Int16, info: InfoInteger, name: "int16", bits: 16},
	UInt16:  {kind: UInt16, info: InfoInteger | InfoUnsigned, name: "uint16", bits: 16},
	Int32:   {kind: Int32, info: InfoInteger, name: "int32", bits: 32},
	UInt32:  {kind: UInt32, info: InfoInteger | InfoUnsigned, name: "uint32", bits: 32},
	Int64:   {kind: Int64, info: InfoInteger, name: "int64", bits: 64},
	UInt64:  {kind: UInt64, info: InfoInteger | InfoUnsigned, name: "uint64", bits: 64},
	Char:    {kind: Char, info: InfoInteger | InfoUnsigned, name: "char", bits: 16},
	Float32: {kind: Float32, info: InfoFloat, name: "float32", bits: 32},
	Float64: {kind: Float64, info: InfoFloat, name: "float64", bits: 64},
	String:  {kind: String, info: InfoReference, name: "string"},
	Object:  {kind: Object, info: InfoReference, name: "object"},
	Null:    {kind: Null, info: InfoReference, name: "null"},
}

// IntegerOfWidth returns the integer basic type with the given width and
// signedness, or nil when no such type exists.
func IntegerOfWidth(bits int, signed bool) *Basic {
	switch {
	case bits == 8 && signed:
		return Typ[Int8]
	case bits == 8:
		return Typ[UInt8]
	case bits == 16 && signed:
		return Typ[Int16]
	case bits == 16:
		return Typ[UInt16]
	case bits == 32 && signed:
		return Typ[Int32]
	case bits == 32:
		return Typ[UInt32]
	case bits == 64 && signed:
		return Typ[Int64]
	case bits == 64:
		return Typ[UInt64]
	}
	return nil
}

// Class is a named nominal type. Value types are classes with ValueType set.
type Class struct {
	typ
	Base      *Class
	Name      string
	ValueType bool
	Interface bool
	// Underlying is set for enums: the integral type the enum is stored as.
	Underlying *Basic
}

// String implements Type.
func (c *Class) String() string { return c.Name }

// Array is a single-dimension array type.
type Array struct {
	typ
	Elem Type
}

// String implements Type.
func (a *Array) String() string { return a.Elem.String() + "[]" }

// Pointer is a managed (ByRef) or unmanaged pointer.
type Pointer struct {
	typ
	Elem    Type
	Managed bool
}

// String implements Type.
func (p *Pointer) String() string {
	if p.Managed {
		return "&" + p.Elem.String()
	}
	return p.Elem.String() + "*"
}

// Func is a callable signature. Instance methods carry the receiver as the
// first parameter.
type Func struct {
	typ
	Result Type
	Params []Type
}

// String implements Type.
func (f *Func) String() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") ")
	if f.Result == nil {
		b.WriteString("void")
	} else {
		b.WriteString(f.Result.String())
	}
	return b.String()
}

// Strip returns the type left after applying n arguments to f: the result
// when every parameter is supplied, a narrower signature otherwise.
func (f *Func) Strip(n int) Type {
	if n >= len(f.Params) {
		return f.Result
	}
	return &Func{Params: f.Params[n:], Result: f.Result}
}
