package types

// Identical reports whether x and y are identical types.
func Identical(x, y Type) bool {
	if x == y {
		return true
	}
	if x == nil || y == nil {
		return false
	}

	switch x := x.(type) {
	case *Basic:
		if y, ok := y.(*Basic); ok {
			return x.kind == y.kind
		}
	case *Class:
		// Classes are nominal; distinct descriptors with the same name
		// come from independent resolutions of the same metadata token.
		if y, ok := y.(*Class); ok {
			return x.Name == y.Name && x.ValueType == y.ValueType
		}
	case *Array:
		if y, ok := y.(*Array); ok {
			return Identical(x.Elem, y.Elem)
		}
	case *Pointer:
		if y, ok := y.(*Pointer); ok {
			return x.Managed == y.Managed && Identical(x.Elem, y.Elem)
		}
	case *Func:
		if y, ok := y.(*Func); ok {
			if len(x.Params) != len(y.Params) || !Identical(x.Result, y.Result) {
				return false
			}
			for i := range x.Params {
				if !Identical(x.Params[i], y.Params[i]) {
					return false
				}
			}
			return true
		}
	}
	return false
}

func basic(t Type) (*Basic, bool) {
	if c, ok := t.(*Class); ok && c.Underlying != nil {
		return c.Underlying, true
	}
	b, ok := t.(*Basic)
	return b, ok
}

// IsVoid reports whether t is absent or void.
func IsVoid(t Type) bool {
	if t == nil {
		return true
	}
	b, ok := t.(*Basic)
	return ok && b.kind == Void
}

// IsBoolean reports whether t is bool.
func IsBoolean(t Type) bool {
	b, ok := t.(*Basic)
	return ok && b.info&InfoBoolean != 0
}

// IsInteger reports whether t is an integral type. Enums count through
// their underlying type.
func IsInteger(t Type) bool {
	b, ok := basic(t)
	return ok && b.info&InfoInteger != 0
}

// IsFloat reports whether t is float32 or float64.
func IsFloat(t Type) bool {
	b, ok := t.(*Basic)
	return ok && b.info&InfoFloat != 0
}

// IsNumeric reports whether t is integral or floating point.
func IsNumeric(t Type) bool {
	return IsInteger(t) || IsFloat(t)
}

// IsSigned reports whether t is a signed integral type.
func IsSigned(t Type) bool {
	b, ok := basic(t)
	return ok && b.info&InfoInteger != 0 && b.info&InfoUnsigned == 0
}

// Width returns the storage width of a basic type in bits.
func Width(t Type) int {
	if b, ok := basic(t); ok {
		return b.bits
	}
	return 0
}

// IsReference reports whether values of t are object references that can
// be compared against null.
func IsReference(t Type) bool {
	switch t := t.(type) {
	case *Basic:
		return t.info&InfoReference != 0
	case *Class:
		return !t.ValueType
	case *Array, *Func:
		return true
	}
	return false
}

// IsPointer reports whether t is a managed or unmanaged pointer.
func IsPointer(t Type) bool {
	_, ok := t.(*Pointer)
	return ok
}
