// Package listing is the interchange format for decoded method bodies: a
// YAML document for fixtures and hand-written input, and the canonical
// CBOR encoding of the same document for compact storage.
//
// A listing names types by string (see Resolver.Type) and members by
// declaring type and name, so it can be read without any metadata.
package listing

import (
	"fmt"
	"sort"

	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/types"
)

// Document is one method.
type Document struct {
	Name          string   `yaml:"name" cbor:"name"`
	DeclaringType string   `yaml:"declaring_type,omitempty" cbor:"declaring_type,omitempty"`
	Static        bool     `yaml:"static,omitempty" cbor:"static,omitempty"`
	Returns       string   `yaml:"returns,omitempty" cbor:"returns,omitempty"`
	Params        []Var    `yaml:"params,omitempty" cbor:"params,omitempty"`
	Locals        []Var    `yaml:"locals,omitempty" cbor:"locals,omitempty"`
	Body          []Instr  `yaml:"body" cbor:"body"`
	Regions       []Region `yaml:"regions,omitempty" cbor:"regions,omitempty"`
	Debug         *Debug   `yaml:"debug,omitempty" cbor:"debug,omitempty"`
}

// Var is a parameter or local slot.
type Var struct {
	Name string `yaml:"name,omitempty" cbor:"name,omitempty"`
	Type string `yaml:"type" cbor:"type"`
}

// Instr is one instruction. At most one operand field is set; ldc uses
// Value with Type, type operands use Type alone.
type Instr struct {
	Offset  int        `yaml:"offset" cbor:"offset"`
	Op      string     `yaml:"op" cbor:"op"`
	Value   *string    `yaml:"value,omitempty" cbor:"value,omitempty"`
	Type    string     `yaml:"type,omitempty" cbor:"type,omitempty"`
	Local   *int       `yaml:"local,omitempty" cbor:"local,omitempty"`
	Arg     *int       `yaml:"arg,omitempty" cbor:"arg,omitempty"`
	Target  *int       `yaml:"target,omitempty" cbor:"target,omitempty"`
	Targets []int      `yaml:"targets,omitempty" cbor:"targets,omitempty"`
	Field   *FieldRef  `yaml:"field,omitempty" cbor:"field,omitempty"`
	Method  *MethodRef `yaml:"method,omitempty" cbor:"method,omitempty"`
}

// FieldRef names a field.
type FieldRef struct {
	Declaring string `yaml:"declaring,omitempty" cbor:"declaring,omitempty"`
	Name      string `yaml:"name" cbor:"name"`
	Type      string `yaml:"type" cbor:"type"`
	Static    bool   `yaml:"static,omitempty" cbor:"static,omitempty"`
}

// MethodRef names a callee.
type MethodRef struct {
	Declaring string   `yaml:"declaring,omitempty" cbor:"declaring,omitempty"`
	Name      string   `yaml:"name" cbor:"name"`
	Params    []string `yaml:"params,omitempty" cbor:"params,omitempty"`
	Returns   string   `yaml:"returns,omitempty" cbor:"returns,omitempty"`
	Static    bool     `yaml:"static,omitempty" cbor:"static,omitempty"`
	Ctor      bool     `yaml:"ctor,omitempty" cbor:"ctor,omitempty"`
	Virtual   bool     `yaml:"virtual,omitempty" cbor:"virtual,omitempty"`
}

// Region is an exception region.
type Region struct {
	Kind         string `yaml:"kind" cbor:"kind"`
	TryStart     int    `yaml:"try_start" cbor:"try_start"`
	TryEnd       int    `yaml:"try_end" cbor:"try_end"`
	HandlerStart int    `yaml:"handler_start" cbor:"handler_start"`
	HandlerEnd   int    `yaml:"handler_end" cbor:"handler_end"`
	FilterStart  int    `yaml:"filter_start,omitempty" cbor:"filter_start,omitempty"`
	CatchType    string `yaml:"catch_type,omitempty" cbor:"catch_type,omitempty"`
}

// Debug is the debug side table.
type Debug struct {
	Locals []DebugLocal `yaml:"locals,omitempty" cbor:"locals,omitempty"`
	Spans  []DebugSpan  `yaml:"spans,omitempty" cbor:"spans,omitempty"`
}

// DebugLocal names a local slot over [Start, End); End 0 is the whole body.
type DebugLocal struct {
	Name  string `yaml:"name" cbor:"name"`
	Slot  int    `yaml:"slot" cbor:"slot"`
	Start int    `yaml:"start,omitempty" cbor:"start,omitempty"`
	End   int    `yaml:"end,omitempty" cbor:"end,omitempty"`
}

// DebugSpan is the sequence point at Offset.
type DebugSpan struct {
	Offset    int    `yaml:"offset" cbor:"offset"`
	File      string `yaml:"file,omitempty" cbor:"file,omitempty"`
	StartLine int    `yaml:"start_line" cbor:"start_line"`
	EndLine   int    `yaml:"end_line,omitempty" cbor:"end_line,omitempty"`
	StartCol  int    `yaml:"start_col,omitempty" cbor:"start_col,omitempty"`
	EndCol    int    `yaml:"end_col,omitempty" cbor:"end_col,omitempty"`
}

var regionKinds = map[string]il.RegionKind{
	"catch":   il.RegionCatch,
	"filter":  il.RegionFilter,
	"finally": il.RegionFinally,
	"fault":   il.RegionFault,
}

// Method resolves the document into a method body. Types and members are
// interned in r, which may be shared between documents; nil uses a fresh
// resolver.
func (d *Document) Method(r *Resolver) (*il.Method, error) {
	if r == nil {
		r = NewResolver()
	}
	m := &il.Method{Name: d.Name, Static: d.Static}
	if d.DeclaringType != "" {
		t, err := r.Type(d.DeclaringType)
		if err != nil {
			return nil, err
		}
		c, ok := t.(*types.Class)
		if !ok {
			return nil, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("declaring type %s is not a class", t))
		}
		m.DeclaringType = c
	}
	var err error
	if m.Returns, err = r.Type(d.Returns); err != nil {
		return nil, err
	}
	if m.Params, err = vars(r, d.Params); err != nil {
		return nil, err
	}
	if m.Locals, err = vars(r, d.Locals); err != nil {
		return nil, err
	}
	m.Body = make([]il.Instruction, len(d.Body))
	for i := range d.Body {
		if m.Body[i], err = d.Body[i].instruction(r); err != nil {
			return nil, err
		}
	}
	for _, x := range d.Regions {
		kind, ok := regionKinds[x.Kind]
		if !ok {
			return nil, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("unknown region kind %q", x.Kind))
		}
		reg := il.ExceptionRegion{
			Kind:         kind,
			TryStart:     x.TryStart,
			TryEnd:       x.TryEnd,
			HandlerStart: x.HandlerStart,
			HandlerEnd:   x.HandlerEnd,
			FilterStart:  x.FilterStart,
		}
		if x.CatchType != "" {
			if reg.CatchType, err = r.Type(x.CatchType); err != nil {
				return nil, err
			}
		}
		m.Regions = append(m.Regions, reg)
	}
	if d.Debug != nil {
		m.Debug = d.Debug.info()
	}
	return m, nil
}

func vars(r *Resolver, vs []Var) ([]il.Variable, error) {
	out := make([]il.Variable, len(vs))
	for i, v := range vs {
		t, err := r.Type(v.Type)
		if err != nil {
			return nil, err
		}
		out[i] = il.Variable{Name: v.Name, Type: t}
	}
	return out, nil
}

func (x *Instr) instruction(r *Resolver) (il.Instruction, error) {
	op, ok := il.Lookup(x.Op)
	if !ok {
		return il.Instruction{}, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Offset(x.Offset).
			Detail("unknown opcode %q", x.Op).
			Build()
	}
	in := il.Instruction{Offset: x.Offset, Op: op}
	operand, err := x.operand(r)
	if err != nil {
		return il.Instruction{}, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Offset(x.Offset).
			Detail("%s operand", x.Op).
			Cause(err).
			Build()
	}
	in.Operand = operand
	return in, nil
}

func (x *Instr) operand(r *Resolver) (any, error) {
	switch {
	case x.Value != nil:
		if x.Type == "" {
			return nil, fmt.Errorf("constant %q has no type", *x.Value)
		}
		t, err := r.Type(x.Type)
		if err != nil {
			return nil, err
		}
		v, err := parseConst(*x.Value, t)
		if err != nil {
			return nil, err
		}
		return il.Const{Value: v, Type: t}, nil
	case x.Local != nil:
		return il.LocalIndex(*x.Local), nil
	case x.Arg != nil:
		return il.ParamIndex(*x.Arg), nil
	case x.Target != nil:
		return il.Target(*x.Target), nil
	case x.Targets != nil:
		ts := make([]il.Target, len(x.Targets))
		for i, t := range x.Targets {
			ts[i] = il.Target(t)
		}
		return ts, nil
	case x.Field != nil:
		return r.field(x.Field)
	case x.Method != nil:
		return r.method(x.Method)
	case x.Type != "":
		return r.Type(x.Type)
	}
	return nil, nil
}

func (r *Resolver) declaring(name string) (*types.Class, error) {
	if name == "" {
		return nil, nil
	}
	t, err := r.Type(name)
	if err != nil {
		return nil, err
	}
	c, ok := t.(*types.Class)
	if !ok {
		return nil, fmt.Errorf("declaring type %s is not a class", t)
	}
	return c, nil
}

func (r *Resolver) field(f *FieldRef) (*types.Field, error) {
	key := f.Declaring + "::" + f.Name
	if x, ok := r.fields[key]; ok {
		return x, nil
	}
	decl, err := r.declaring(f.Declaring)
	if err != nil {
		return nil, err
	}
	t, err := r.Type(f.Type)
	if err != nil {
		return nil, err
	}
	x := &types.Field{Declaring: decl, Name: f.Name, Type: t, Static: f.Static}
	r.fields[key] = x
	return x, nil
}

func (r *Resolver) method(m *MethodRef) (*types.Method, error) {
	key := fmt.Sprintf("%s::%s(%v)%s", m.Declaring, m.Name, m.Params, m.Returns)
	if x, ok := r.methods[key]; ok {
		return x, nil
	}
	decl, err := r.declaring(m.Declaring)
	if err != nil {
		return nil, err
	}
	x := &types.Method{Declaring: decl, Name: m.Name, Static: m.Static, Ctor: m.Ctor, Virtual: m.Virtual}
	for _, p := range m.Params {
		t, err := r.Type(p)
		if err != nil {
			return nil, err
		}
		x.Params = append(x.Params, t)
	}
	if x.Result, err = r.Type(m.Returns); err != nil {
		return nil, err
	}
	r.methods[key] = x
	return x, nil
}

func (d *Debug) info() *il.MapDebugInfo {
	info := &il.MapDebugInfo{Spans: make(map[int]il.Span, len(d.Spans))}
	for _, l := range d.Locals {
		info.Locals = append(info.Locals, il.LocalScope{Name: l.Name, Slot: l.Slot, Start: l.Start, End: l.End})
	}
	for _, s := range d.Spans {
		info.Spans[s.Offset] = il.Span{
			File:      s.File,
			StartLine: s.StartLine,
			EndLine:   s.EndLine,
			StartCol:  s.StartCol,
			EndCol:    s.EndCol,
		}
	}
	return info
}

// FromMethod builds the document for m. Debug info is kept only when it
// is a *il.MapDebugInfo.
func FromMethod(m *il.Method) (*Document, error) {
	d := &Document{Name: m.Name, Static: m.Static}
	var err error
	if m.DeclaringType != nil {
		if d.DeclaringType, err = TypeString(m.DeclaringType); err != nil {
			return nil, err
		}
	}
	if d.Returns, err = TypeString(m.Returns); err != nil {
		return nil, err
	}
	if d.Params, err = docVars(m.Params); err != nil {
		return nil, err
	}
	if d.Locals, err = docVars(m.Locals); err != nil {
		return nil, err
	}
	d.Body = make([]Instr, len(m.Body))
	for i, in := range m.Body {
		if d.Body[i], err = docInstr(in); err != nil {
			return nil, err
		}
	}
	for _, reg := range m.Regions {
		x := Region{
			Kind:         reg.Kind.String(),
			TryStart:     reg.TryStart,
			TryEnd:       reg.TryEnd,
			HandlerStart: reg.HandlerStart,
			HandlerEnd:   reg.HandlerEnd,
			FilterStart:  reg.FilterStart,
		}
		if reg.CatchType != nil {
			if x.CatchType, err = TypeString(reg.CatchType); err != nil {
				return nil, err
			}
		}
		d.Regions = append(d.Regions, x)
	}
	if info, ok := m.Debug.(*il.MapDebugInfo); ok && info != nil {
		d.Debug = docDebug(info)
	}
	return d, nil
}

func docVars(vs []il.Variable) ([]Var, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]Var, len(vs))
	for i, v := range vs {
		t, err := TypeString(v.Type)
		if err != nil {
			return nil, err
		}
		out[i] = Var{Name: v.Name, Type: t}
	}
	return out, nil
}

func docInstr(in il.Instruction) (Instr, error) {
	x := Instr{Offset: in.Offset, Op: in.Op.String()}
	var err error
	switch v := in.Operand.(type) {
	case nil:
	case il.Const:
		s := formatConst(v.Value)
		x.Value = &s
		x.Type, err = TypeString(v.Type)
	case string:
		x.Value = &v
		x.Type = "string"
	case il.LocalIndex:
		i := int(v)
		x.Local = &i
	case il.ParamIndex:
		i := int(v)
		x.Arg = &i
	case il.Target:
		i := int(v)
		x.Target = &i
	case []il.Target:
		x.Targets = make([]int, len(v))
		for i, t := range v {
			x.Targets[i] = int(t)
		}
	case *types.Field:
		f := &FieldRef{Name: v.Name, Static: v.Static}
		if v.Declaring != nil {
			f.Declaring, err = TypeString(v.Declaring)
		}
		if err == nil {
			f.Type, err = TypeString(v.Type)
		}
		x.Field = f
	case *types.Method:
		x.Method, err = docMethod(v)
	case types.Type:
		x.Type, err = TypeString(v)
	default:
		err = fmt.Errorf("operand %T", v)
	}
	if err != nil {
		return Instr{}, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Offset(in.Offset).
			Detail("%s operand", in.Op).
			Cause(err).
			Build()
	}
	return x, nil
}

func docMethod(m *types.Method) (*MethodRef, error) {
	x := &MethodRef{Name: m.Name, Static: m.Static, Ctor: m.Ctor, Virtual: m.Virtual}
	var err error
	if m.Declaring != nil {
		if x.Declaring, err = TypeString(m.Declaring); err != nil {
			return nil, err
		}
	}
	for _, p := range m.Params {
		s, err := TypeString(p)
		if err != nil {
			return nil, err
		}
		x.Params = append(x.Params, s)
	}
	if x.Returns, err = TypeString(m.Result); err != nil {
		return nil, err
	}
	return x, nil
}

func docDebug(info *il.MapDebugInfo) *Debug {
	d := &Debug{}
	for _, l := range info.Locals {
		d.Locals = append(d.Locals, DebugLocal{Name: l.Name, Slot: l.Slot, Start: l.Start, End: l.End})
	}
	offsets := make([]int, 0, len(info.Spans))
	for off := range info.Spans {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	for _, off := range offsets {
		s := info.Spans[off]
		d.Spans = append(d.Spans, DebugSpan{
			Offset:    off,
			File:      s.File,
			StartLine: s.StartLine,
			EndLine:   s.EndLine,
			StartCol:  s.StartCol,
			EndCol:    s.EndCol,
		})
	}
	return d
}
