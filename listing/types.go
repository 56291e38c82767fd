package listing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/types"
)

var basicByName = func() map[string]*types.Basic {
	m := make(map[string]*types.Basic)
	for _, b := range types.Typ {
		if b == nil || b.Kind() == types.Null {
			continue
		}
		m[b.String()] = b
	}
	return m
}()

// Resolver interns the classes, fields and methods a listing names so that
// every mention of the same member yields the same descriptor.
type Resolver struct {
	classes map[string]*types.Class
	fields  map[string]*types.Field
	methods map[string]*types.Method
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		classes: make(map[string]*types.Class),
		fields:  make(map[string]*types.Field),
		methods: make(map[string]*types.Method),
	}
}

// Class returns the class with the given name, creating it on first use.
func (r *Resolver) Class(name string, valueType bool) *types.Class {
	if c, ok := r.classes[name]; ok {
		if valueType {
			c.ValueType = true
		}
		return c
	}
	c := &types.Class{Name: name, ValueType: valueType}
	r.classes[name] = c
	return c
}

// Type parses a type string:
//
//	void bool int8 ... float64 string object
//	T[]   array of T
//	T*    unmanaged pointer to T
//	&T    managed pointer to T
//	vt:N  value type N
//	N     class N
//
// The empty string is void.
func (r *Resolver) Type(s string) (types.Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return types.Typ[types.Void], nil
	case strings.HasSuffix(s, "[]"):
		elem, err := r.Type(s[:len(s)-2])
		if err != nil {
			return nil, err
		}
		return &types.Array{Elem: elem}, nil
	case strings.HasPrefix(s, "&"):
		elem, err := r.Type(s[1:])
		if err != nil {
			return nil, err
		}
		return &types.Pointer{Elem: elem, Managed: true}, nil
	case strings.HasSuffix(s, "*"):
		elem, err := r.Type(s[:len(s)-1])
		if err != nil {
			return nil, err
		}
		return &types.Pointer{Elem: elem}, nil
	}
	if b, ok := basicByName[s]; ok {
		return b, nil
	}
	name, vt := strings.CutPrefix(s, "vt:")
	if !validName(name) {
		return nil, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("bad type %q", s))
	}
	return r.Class(name, vt), nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c == '.' || c == '_' || c == '`' || c == '+' || c == '<' || c == '>' || c == ',':
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// TypeString is the inverse of Resolver.Type.
func TypeString(t types.Type) (string, error) {
	switch t := t.(type) {
	case nil:
		return "", nil
	case *types.Basic:
		if t.Kind() == types.Void {
			return "", nil
		}
		return t.String(), nil
	case *types.Class:
		if t.ValueType {
			return "vt:" + t.Name, nil
		}
		return t.Name, nil
	case *types.Array:
		elem, err := TypeString(t.Elem)
		return elem + "[]", err
	case *types.Pointer:
		elem, err := TypeString(t.Elem)
		if t.Managed {
			return "&" + elem, err
		}
		return elem + "*", err
	}
	return "", errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("type %s has no listing form", t))
}

// parseConst converts the text of a constant to the Go value the
// reconstructor expects for t.
func parseConst(s string, t types.Type) (any, error) {
	b, ok := t.(*types.Basic)
	if !ok {
		if c, isClass := t.(*types.Class); isClass && c.Underlying != nil {
			b = c.Underlying
		} else {
			return nil, fmt.Errorf("constant of type %s", t)
		}
	}
	switch b.Kind() {
	case types.Bool:
		return strconv.ParseBool(s)
	case types.String:
		return s, nil
	case types.Float32:
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	case types.Float64:
		return strconv.ParseFloat(s, 64)
	case types.Int8, types.Int16, types.Int32, types.Int64:
		v, err := strconv.ParseInt(s, 0, b.Bits())
		if err != nil {
			return nil, err
		}
		switch b.Kind() {
		case types.Int8:
			return int8(v), nil
		case types.Int16:
			return int16(v), nil
		case types.Int32:
			return int32(v), nil
		}
		return v, nil
	case types.UInt8, types.UInt16, types.Char, types.UInt32, types.UInt64:
		v, err := strconv.ParseUint(s, 0, b.Bits())
		if err != nil {
			return nil, err
		}
		switch b.Kind() {
		case types.UInt8:
			return uint8(v), nil
		case types.UInt16, types.Char:
			return uint16(v), nil
		case types.UInt32:
			return uint32(v), nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("constant of type %s", t)
}

func formatConst(v any) string {
	switch v := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
