package il

// Span locates an instruction in source.
type Span struct {
	File      string
	StartLine int
	EndLine   int
	StartCol  int
	EndCol    int
}

// DebugInfo is the optional side table produced by a symbol reader.
type DebugInfo interface {
	// Span returns the source range of the sequence point at offset.
	Span(offset int) (Span, bool)
	// LocalName returns the declared name of a local slot live at offset.
	LocalName(slot, offset int) (string, bool)
}

// LocalScope names a local slot within an offset range.
type LocalScope struct {
	Name  string
	Slot  int
	Start int
	End   int
}

// MapDebugInfo is a DebugInfo backed by plain tables.
type MapDebugInfo struct {
	Spans  map[int]Span
	Locals []LocalScope
}

// Span implements DebugInfo.
func (d *MapDebugInfo) Span(offset int) (Span, bool) {
	if d == nil {
		return Span{}, false
	}
	s, ok := d.Spans[offset]
	return s, ok
}

// LocalName implements DebugInfo. A scope with End == 0 covers the whole
// method.
func (d *MapDebugInfo) LocalName(slot, offset int) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, l := range d.Locals {
		if l.Slot != slot {
			continue
		}
		if l.End == 0 || (offset >= l.Start && offset < l.End) {
			return l.Name, true
		}
	}
	return "", false
}
