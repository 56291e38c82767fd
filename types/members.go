package types

// Field describes a resolved field reference.
type Field struct {
	Declaring *Class
	Type      Type
	Name      string
	Static    bool
}

// String returns Declaring.Name.
func (f *Field) String() string {
	if f.Declaring == nil {
		return f.Name
	}
	return f.Declaring.Name + "." + f.Name
}

// Property describes a resolved property. Indexers have IndexParams.
type Property struct {
	Declaring   *Class
	Type        Type
	Getter      *Method
	Setter      *Method
	Name        string
	IndexParams []Type
	Static      bool
}

// String returns Declaring.Name.
func (p *Property) String() string {
	if p.Declaring == nil {
		return p.Name
	}
	return p.Declaring.Name + "." + p.Name
}

// IsIndexer reports whether the property takes index arguments.
func (p *Property) IsIndexer() bool { return len(p.IndexParams) > 0 }

// Method describes a resolved method reference.
type Method struct {
	Declaring *Class
	Result    Type
	// Property is set when the method is an accessor.
	Property *Property
	Name     string
	Params   []Type
	Static   bool
	Ctor     bool
	Virtual  bool
}

// String returns Declaring.Name.
func (m *Method) String() string {
	if m.Declaring == nil {
		return m.Name
	}
	return m.Declaring.Name + "." + m.Name
}

// Arity returns the number of stack operands a call consumes, including
// the receiver for instance methods that are not constructors.
func (m *Method) Arity() int {
	n := len(m.Params)
	if !m.Static && !m.Ctor {
		n++
	}
	return n
}

// Signature returns the callable type of the method. Instance methods get
// the receiver prepended so that application strips it like any argument.
func (m *Method) Signature() *Func {
	var params []Type
	if !m.Static && !m.Ctor && m.Declaring != nil {
		params = append(params, Receiver(m.Declaring))
	}
	params = append(params, m.Params...)
	res := m.Result
	if m.Ctor && m.Declaring != nil {
		res = m.Declaring
	}
	if IsVoid(res) {
		res = nil
	}
	return &Func{Params: params, Result: res}
}

// Receiver returns the receiver type for instance members of c: a managed
// pointer for value types, c itself otherwise.
func Receiver(c *Class) Type {
	if c.ValueType {
		return &Pointer{Elem: c, Managed: true}
	}
	return c
}

// Length is the element count of an array, read with ldlen.
var Length = &Property{Name: "Length", Type: Typ[Int32]}

// ArrayCtor returns the constructor newarr invokes for arrays of elem.
func ArrayCtor(elem Type) *Method {
	return &Method{Name: ".ctor", Ctor: true, Params: []Type{Typ[Int32]}, Result: &Array{Elem: elem}}
}

// IsArrayCtor reports whether m was produced by ArrayCtor.
func IsArrayCtor(m *Method) bool {
	if m == nil || !m.Ctor || m.Declaring != nil {
		return false
	}
	_, ok := m.Result.(*Array)
	return ok
}
