package hir

// UsedSymbols returns the distinct symbols referenced under n in order of
// first appearance.
func UsedSymbols(n Node) []Symbol {
	var out []Symbol
	seen := make(map[Symbol]bool)
	Walk(n, func(x Node) bool {
		if r, ok := x.(*Ref); ok && !seen[r.Sym] {
			seen[r.Sym] = true
			out = append(out, r.Sym)
		}
		return true
	})
	return out
}

// Usages returns every Ref under root that refers to sym.
func Usages(root Node, sym Symbol) []*Ref {
	var out []*Ref
	Walk(root, func(x Node) bool {
		if r, ok := x.(*Ref); ok && SymbolsEqual(r.Sym, sym) {
			out = append(out, r)
		}
		return true
	})
	return out
}

// IsWrite reports whether n is the target of a store: the left side of an
// Assign, the operand of a compound assignment or increment, or a node
// whose address is taken.
func IsWrite(n Node) bool {
	switch p := n.Parent().(type) {
	case *Assign:
		return p.Lhs() == n
	case *Operator:
		return p.Op.IsAssignment() && p.Arg(0) == n
	case *Addr:
		return true
	}
	return false
}

// IsRead reports whether evaluating n reads its value. Compound
// assignments and increments both read and write.
func IsRead(n Node) bool {
	switch p := n.Parent().(type) {
	case *Assign:
		return p.Lhs() != n
	case *Addr:
		return false
	}
	return true
}
