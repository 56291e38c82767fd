package il

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wippyai/decompiler/types"
)

// RegionKind identifies the handler attached to a protected range.
type RegionKind uint8

const (
	RegionCatch RegionKind = iota
	RegionFilter
	RegionFinally
	RegionFault
)

func (k RegionKind) String() string {
	switch k {
	case RegionCatch:
		return "catch"
	case RegionFilter:
		return "filter"
	case RegionFinally:
		return "finally"
	case RegionFault:
		return "fault"
	}
	return fmt.Sprintf("region(%d)", k)
}

// ExceptionRegion is one protected-range/handler pair. Ranges are half-open
// offset intervals.
type ExceptionRegion struct {
	CatchType    types.Type
	Kind         RegionKind
	TryStart     int
	TryEnd       int
	HandlerStart int
	HandlerEnd   int
	// FilterStart is the first offset of the filter block for RegionFilter.
	FilterStart int
}

// Variable describes a parameter or local slot.
type Variable struct {
	Type types.Type
	Name string
}

// Method is a decoded method body together with its signature.
type Method struct {
	Debug         DebugInfo
	DeclaringType *types.Class
	Returns       types.Type
	Name          string
	Params        []Variable
	Locals        []Variable
	Body          []Instruction
	Regions       []ExceptionRegion
	Static        bool
}

// Key identifies the method in caches.
func (m *Method) Key() string {
	var b strings.Builder
	if m.DeclaringType != nil {
		b.WriteString(m.DeclaringType.Name)
		b.WriteByte('.')
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		if p.Type != nil {
			b.WriteString(p.Type.String())
		}
	}
	b.WriteByte(')')
	return b.String()
}

// At returns the index of the instruction at offset, or -1.
func (m *Method) At(offset int) int {
	i := sort.Search(len(m.Body), func(i int) bool { return m.Body[i].Offset >= offset })
	if i < len(m.Body) && m.Body[i].Offset == offset {
		return i
	}
	return -1
}

// Validate checks that offsets increase and that every branch and region
// boundary lands on an instruction.
func (m *Method) Validate() error {
	if len(m.Body) == 0 {
		return fmt.Errorf("method %s has an empty body", m.Name)
	}
	for i := 1; i < len(m.Body); i++ {
		if m.Body[i].Offset <= m.Body[i-1].Offset {
			return fmt.Errorf("offset IL_%04x does not increase", m.Body[i].Offset)
		}
	}
	end := m.Body[len(m.Body)-1].Offset + 1
	valid := func(off int) bool { return off == end || m.At(off) >= 0 }
	for _, in := range m.Body {
		for _, t := range in.Targets() {
			if m.At(t) < 0 {
				return fmt.Errorf("IL_%04x: branch target IL_%04x is not an instruction", in.Offset, t)
			}
		}
	}
	for _, r := range m.Regions {
		for _, off := range []int{r.TryStart, r.TryEnd, r.HandlerStart, r.HandlerEnd} {
			if !valid(off) {
				return fmt.Errorf("%s region boundary IL_%04x is not an instruction", r.Kind, off)
			}
		}
		if r.Kind == RegionFilter && m.At(r.FilterStart) < 0 {
			return fmt.Errorf("filter start IL_%04x is not an instruction", r.FilterStart)
		}
	}
	return nil
}
