package hir

// Scope is a node that owns locals.
type Scope interface {
	Node
	Locals() []*Local
}

// ScopeOf returns the innermost scope enclosing n, excluding n itself.
func ScopeOf(n Node) Scope {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if s, ok := p.(Scope); ok {
			return s
		}
	}
	return nil
}

// VisibleLocals returns every local declared by a scope enclosing n,
// innermost scope first.
func VisibleLocals(n Node) []*Local {
	var out []*Local
	for s := ScopeOf(n); s != nil; s = ScopeOf(s) {
		out = append(out, s.Locals()...)
	}
	return out
}

// AllLocals returns every local declared by n or any scope beneath it, in
// pre-order.
func AllLocals(n Node) []*Local {
	var out []*Local
	Walk(n, func(x Node) bool {
		if s, ok := x.(Scope); ok {
			out = append(out, s.Locals()...)
		}
		return true
	})
	return out
}

// DeclaringScope returns the scope enclosing n that declares l.
func DeclaringScope(n Node, l *Local) Scope {
	for s := ScopeOf(n); s != nil; s = ScopeOf(s) {
		for _, x := range s.Locals() {
			if x == l {
				return s
			}
		}
	}
	return nil
}

// Params returns the parameters of the lambda enclosing n.
func Params(n Node) []*Param {
	for cur := n; cur != nil; cur = cur.Parent() {
		if l, ok := cur.(*Lambda); ok {
			return l.Params
		}
	}
	return nil
}
