package hir

import "github.com/wippyai/decompiler/errors"

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if isNil(n) || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		if c != nil {
			Walk(c, fn)
		}
	}
}

// Inspect is Walk with the chain of ancestors between n and the visited
// node, outermost first. The slice is reused between calls.
func Inspect(n Node, fn func(x Node, stack []Node) bool) {
	var stack []Node
	var visit func(x Node)
	visit = func(x Node) {
		if !fn(x, stack) {
			return
		}
		stack = append(stack, x)
		for _, c := range x.Children() {
			if c != nil {
				visit(c)
			}
		}
		stack = stack[:len(stack)-1]
	}
	if !isNil(n) {
		visit(n)
	}
}

// Descendants returns every node beneath n in pre-order, n excluded.
func Descendants(n Node) []Node {
	var out []Node
	Walk(n, func(x Node) bool {
		if x != n {
			out = append(out, x)
		}
		return true
	})
	return out
}

// Find returns the first node in pre-order satisfying pred, or nil.
func Find(n Node, pred func(Node) bool) Node {
	var found Node
	Walk(n, func(x Node) bool {
		if found != nil {
			return false
		}
		if pred(x) {
			found = x
			return false
		}
		return true
	})
	return found
}

// Transform rewrites the tree under root bottom-up. fn receives each node
// after its children have been rewritten and returns the node to put in
// its place: itself to keep it, a new or detached node to replace it, or
// nil to remove it. A returned descendant of the visited node is detached
// before being moved up. Transform returns the (possibly new) root.
//
// Errors from fn are wrapped once with the failing node unless they are
// already *errors.Error.
func Transform(root Node, fn func(Node) (Node, error)) (Node, error) {
	if isNil(root) {
		return nil, nil
	}
	return transform(root, fn)
}

func transform(n Node, fn func(Node) (Node, error)) (Node, error) {
	for _, c := range n.Children() {
		if c == nil {
			continue
		}
		if _, err := transform(c, fn); err != nil {
			return nil, err
		}
	}
	r, err := fn(n)
	if err != nil {
		return nil, errors.Traversal(err, Dump(n, CSharp), n.Kind().String())
	}
	if isNil(r) {
		r = nil
	}
	if r == n {
		return n, nil
	}
	if r != nil && r.Parent() != nil && IsAncestor(n, r) {
		Detach(r)
	}
	if p := n.Parent(); p != nil {
		i := p.base().indexOf(n)
		if b, ok := p.(*Block); ok && r == nil {
			b.removeChild(i)
		} else {
			p.SetChild(i, r)
		}
	}
	return r, nil
}

// Reduce folds the tree under n bottom-up. fn receives each node with
// the results for its child slots; empty slots yield the zero T.
func Reduce[T any](n Node, fn func(x Node, kids []T) (T, error)) (T, error) {
	var zero T
	if isNil(n) {
		return zero, nil
	}
	kids := make([]T, n.NumChildren())
	for i, c := range n.Children() {
		if c == nil {
			continue
		}
		v, err := Reduce(c, fn)
		if err != nil {
			return zero, err
		}
		kids[i] = v
	}
	v, err := fn(n, kids)
	if err != nil {
		return zero, errors.Traversal(err, Dump(n, CSharp), n.Kind().String())
	}
	return v, nil
}
