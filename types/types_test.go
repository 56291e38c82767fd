package types

import "testing"

func TestIntegerOfWidth(t *testing.T) {
	tests := []struct {
		bits   int
		signed bool
		want   *Basic
	}{
		{8, true, Typ[Int8]},
		{8, false, Typ[UInt8]},
		{16, true, Typ[Int16]},
		{32, false, Typ[UInt32]},
		{64, true, Typ[Int64]},
		{12, true, nil},
	}
	for _, tt := range tests {
		if got := IntegerOfWidth(tt.bits, tt.signed); got != tt.want {
			t.Errorf("IntegerOfWidth(%d, %v) = %v, want %v", tt.bits, tt.signed, got, tt.want)
		}
	}
}

func TestPredicates(t *testing.T) {
	point := &Class{Name: "Point", ValueType: true}
	color := &Class{Name: "Color", ValueType: true, Underlying: Typ[UInt8]}
	node := &Class{Name: "Node"}

	if !IsSigned(Typ[Int32]) || IsSigned(Typ[UInt32]) || IsSigned(Typ[Char]) {
		t.Error("IsSigned misclassifies basic integers")
	}
	if !IsInteger(color) || Width(color) != 8 || IsSigned(color) {
		t.Error("enum should behave like its underlying type")
	}
	if IsReference(point) || !IsReference(node) || !IsReference(Typ[String]) || !IsReference(&Array{Elem: Typ[Int32]}) {
		t.Error("IsReference misclassifies")
	}
	if !IsVoid(nil) || !IsVoid(Typ[Void]) || IsVoid(Typ[Bool]) {
		t.Error("IsVoid misclassifies")
	}
	if !IsBoolean(Typ[Bool]) || IsBoolean(Typ[Int32]) {
		t.Error("IsBoolean misclassifies")
	}
}

func TestIdentical(t *testing.T) {
	a := &Class{Name: "Foo"}
	b := &Class{Name: "Foo"}
	if !Identical(a, b) {
		t.Error("same-named classes should be identical")
	}
	if Identical(&Array{Elem: a}, &Array{Elem: Typ[Int32]}) {
		t.Error("arrays of different element types are not identical")
	}
	f1 := &Func{Params: []Type{Typ[Int32]}, Result: Typ[Bool]}
	f2 := &Func{Params: []Type{Typ[Int32]}, Result: Typ[Bool]}
	if !Identical(f1, f2) {
		t.Error("structurally equal signatures should be identical")
	}
	if Identical(Typ[Int32], nil) {
		t.Error("nil is only identical to nil")
	}
}

func TestMethodSignature(t *testing.T) {
	list := &Class{Name: "List"}
	add := &Method{Declaring: list, Name: "Add", Params: []Type{Typ[Int32]}, Result: Typ[Void]}

	sig := add.Signature()
	if len(sig.Params) != 2 || sig.Params[0] != Type(list) || sig.Result != nil {
		t.Fatalf("signature = %s", sig)
	}
	if add.Arity() != 2 {
		t.Errorf("arity = %d", add.Arity())
	}

	partial := sig.Strip(1)
	if f, ok := partial.(*Func); !ok || len(f.Params) != 1 {
		t.Errorf("Strip(1) = %v", partial)
	}
	if sig.Strip(2) != nil {
		t.Errorf("Strip(2) = %v, want void result", sig.Strip(2))
	}

	ctor := &Method{Declaring: list, Name: ".ctor", Ctor: true}
	if ctor.Arity() != 0 || ctor.Signature().Result != Type(list) {
		t.Errorf("ctor signature = %s", ctor.Signature())
	}

	pt := &Class{Name: "Point", ValueType: true}
	get := &Method{Declaring: pt, Name: "get_X", Result: Typ[Int32]}
	recv, ok := get.Signature().Params[0].(*Pointer)
	if !ok || !recv.Managed {
		t.Errorf("value type receiver = %v", get.Signature().Params[0])
	}
}
