package reconstruct

import (
	"fmt"

	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/types"
)

// Symbols holds the parameter and local symbols of one method, shared by
// every block reconstructed from it.
type Symbols struct {
	// Params includes the receiver at index 0 for instance methods.
	Params []*hir.Param
	Locals []*hir.Local
	// Temps are the locals synthesized for spills, in creation order.
	Temps []*hir.Local
}

// NewSymbols names the slots of m. With debug set, names come from the
// method's debug table where available; otherwise they are synthesized.
func NewSymbols(m *il.Method, debug bool) *Symbols {
	s := &Symbols{}
	idx := 0
	if !m.Static {
		var recv types.Type = types.Typ[types.Object]
		if m.DeclaringType != nil {
			recv = types.Receiver(m.DeclaringType)
		}
		s.Params = append(s.Params, hir.NewParam("this", recv, 0))
		idx++
	}
	for i, p := range m.Params {
		name := p.Name
		if name == "" || !debug {
			name = fmt.Sprintf("arg%d", i+idx)
		}
		s.Params = append(s.Params, hir.NewParam(name, p.Type, i+idx))
	}
	for i, l := range m.Locals {
		name := ""
		if debug {
			name = localName(m, i, l.Name)
		}
		if name == "" {
			name = fmt.Sprintf("loc%d", i)
		}
		s.Locals = append(s.Locals, hir.NewLocal(name, l.Type))
	}
	return s
}

func localName(m *il.Method, slot int, declared string) string {
	if m.Debug != nil {
		for _, in := range m.Body {
			if name, ok := m.Debug.LocalName(slot, in.Offset); ok {
				return name
			}
		}
	}
	return declared
}

// Param returns the parameter at slot i.
func (s *Symbols) Param(i int) (*hir.Param, bool) {
	if i < 0 || i >= len(s.Params) {
		return nil, false
	}
	return s.Params[i], true
}

// Local returns the local at slot i.
func (s *Symbols) Local(i int) (*hir.Local, bool) {
	if i < 0 || i >= len(s.Locals) {
		return nil, false
	}
	return s.Locals[i], true
}

// Temp creates a synthesized local.
func (s *Symbols) Temp(t types.Type) *hir.Local {
	l := hir.NewTemp(fmt.Sprintf("$t%d", len(s.Temps)), t)
	s.Temps = append(s.Temps, l)
	return l
}
