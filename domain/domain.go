// Package domain bundles a decompilation session: the semantics that
// shape the output and the caches of facts derived from trees.
//
// A Domain is not safe for concurrent use. Decompile independent methods
// in parallel by giving each goroutine its own Domain.
package domain

import (
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/types"
)

// Semantics is the configuration part of a domain.
type Semantics struct {
	Language      hir.Language
	LoadDebugInfo bool
}

// DefaultSemantics is csharp with debug info.
func DefaultSemantics() Semantics {
	return Semantics{Language: hir.CSharp, LoadDebugInfo: true}
}

// Domain holds the semantics of a session and its caches. Cache entries
// are keyed by node identity and assume a cached node is not mutated
// afterwards; code that rewrites a tree calls Evict or Forget.
type Domain struct {
	methods   map[string]*hir.Lambda
	dumps     map[hir.Node]string
	types     map[hir.Node]types.Type
	Semantics Semantics
}

// New creates an empty domain.
func New(sem Semantics) *Domain {
	return &Domain{
		Semantics: sem,
		methods:   make(map[string]*hir.Lambda),
		dumps:     make(map[hir.Node]string),
		types:     make(map[hir.Node]types.Type),
	}
}

// Method returns the tree previously decompiled for key.
func (d *Domain) Method(key string) (*hir.Lambda, bool) {
	l, ok := d.methods[key]
	return l, ok
}

// StoreMethod caches a finished tree.
func (d *Domain) StoreMethod(key string, l *hir.Lambda) {
	d.methods[key] = l
}

// Dump returns the text of n in the domain's language, cached.
func (d *Domain) Dump(n hir.Node) string {
	if s, ok := d.dumps[n]; ok {
		return s
	}
	s := hir.Dump(n, d.Semantics.Language)
	d.dumps[n] = s
	return s
}

// Type returns the cached inferred type of n. A cached nil means the node
// has no value.
func (d *Domain) Type(n hir.Node) (types.Type, bool) {
	t, ok := d.types[n]
	return t, ok
}

// StoreTypes commits a batch of inferred types.
func (d *Domain) StoreTypes(m map[hir.Node]types.Type) {
	for n, t := range m {
		d.types[n] = t
	}
}

// Evict drops the cached facts of n and of every ancestor, whose text and
// type may depend on it.
func (d *Domain) Evict(n hir.Node) {
	for cur := n; cur != nil; cur = cur.Parent() {
		delete(d.dumps, cur)
		delete(d.types, cur)
	}
}

// Forget drops the cached facts of every node under root, and root's
// method entry when it is one.
func (d *Domain) Forget(root hir.Node) {
	hir.Walk(root, func(n hir.Node) bool {
		delete(d.dumps, n)
		delete(d.types, n)
		return true
	})
	for k, l := range d.methods {
		if hir.Node(l) == root {
			delete(d.methods, k)
		}
	}
}

// Clear empties every cache.
func (d *Domain) Clear() {
	clear(d.methods)
	clear(d.dumps)
	clear(d.types)
}

// Stats reports cache sizes.
type Stats struct {
	Methods int
	Dumps   int
	Types   int
}

// Stats returns the current cache sizes.
func (d *Domain) Stats() Stats {
	return Stats{Methods: len(d.methods), Dumps: len(d.dumps), Types: len(d.types)}
}
