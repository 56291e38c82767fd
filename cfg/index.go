package cfg

import (
	"fmt"
	"math"
	"sort"

	"github.com/wippyai/decompiler/hir"
)

// Usage is one occurrence of an atom.
type Usage struct {
	// Atom is the occurrence itself.
	Atom hir.Node
	// Stmt is the statement containing it.
	Stmt  hir.Node
	Key   float64
	Read  bool
	Write bool
}

// Index orders every statement of a graph and records, per atom, where it
// is read and written. Atoms are side-effect free addressable expressions:
// local and parameter references, field and property accesses on atoms,
// and indexer applications with atom or constant arguments.
//
// Keys are dense reals: statements inserted later get the midpoint of
// their neighbours, so nothing is renumbered.
type Index struct {
	keys   map[hir.Node]float64
	uses   map[string][]*Usage
	byStmt map[hir.Node][]*Usage
}

// Index returns the def/use index of the graph, building it on first use.
func (g *Graph) Index() *Index {
	if g.index == nil {
		g.index = newIndex(g)
	}
	return g.index
}

// Invalidate drops the index. Structural edits that move statements
// between blocks call it; the next Index call rebuilds from scratch.
func (g *Graph) Invalidate() { g.index = nil }

func newIndex(g *Graph) *Index {
	ix := &Index{
		keys:   make(map[hir.Node]float64),
		uses:   make(map[string][]*Usage),
		byStmt: make(map[hir.Node][]*Usage),
	}
	key := 0.0
	for _, b := range g.Blocks {
		for _, s := range b.Statements() {
			key++
			ix.add(s, key)
		}
	}
	return ix
}

// Key returns the execution-order key of a statement.
func (ix *Index) Key(stmt hir.Node) (float64, bool) {
	k, ok := ix.keys[stmt]
	return k, ok
}

// Len returns the number of indexed statements.
func (ix *Index) Len() int { return len(ix.keys) }

// Usages returns the occurrences of the atom n in key order.
func (ix *Index) Usages(n hir.Node) []*Usage {
	k, ok := AtomKey(n)
	if !ok {
		return nil
	}
	return append([]*Usage(nil), ix.uses[k]...)
}

// UsagesOf returns the occurrences of references to sym.
func (ix *Index) UsagesOf(sym hir.Symbol) []*Usage {
	return append([]*Usage(nil), ix.uses[symKey(sym)]...)
}

// Reads filters Usages to reads.
func (ix *Index) Reads(n hir.Node) []*Usage { return filter(ix.Usages(n), true) }

// Writes filters Usages to writes.
func (ix *Index) Writes(n hir.Node) []*Usage { return filter(ix.Usages(n), false) }

func filter(us []*Usage, read bool) []*Usage {
	var out []*Usage
	for _, u := range us {
		if (read && u.Read) || (!read && u.Write) {
			out = append(out, u)
		}
	}
	return out
}

// Between reports the statements whose keys lie strictly between lo and
// hi, in order.
func (ix *Index) Between(lo, hi float64) []hir.Node {
	var out []hir.Node
	for s, k := range ix.keys {
		if k > lo && k < hi {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return ix.keys[out[i]] < ix.keys[out[j]] })
	return out
}

// neighbours returns the largest key below k and the smallest key above
// it, defaulting to k-1 and k+1.
func (ix *Index) neighbours(k float64) (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	for _, v := range ix.keys {
		if v < k && v > lo {
			lo = v
		}
		if v > k && v < hi {
			hi = v
		}
	}
	if math.IsInf(lo, -1) {
		lo = k - 1
	}
	if math.IsInf(hi, 1) {
		hi = k + 1
	}
	return lo, hi
}

func (ix *Index) add(stmt hir.Node, key float64) {
	ix.keys[stmt] = key
	hir.Walk(stmt, func(x hir.Node) bool {
		if _, ok := x.(*hir.Lambda); ok && x != stmt {
			return false
		}
		k, ok := AtomKey(x)
		if !ok {
			return true
		}
		u := &Usage{Atom: x, Stmt: stmt, Key: key, Read: hir.IsRead(x), Write: hir.IsWrite(x)}
		list := append(ix.uses[k], u)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Key < list[j].Key })
		ix.uses[k] = list
		ix.byStmt[stmt] = append(ix.byStmt[stmt], u)
		return true
	})
}

func (ix *Index) evict(stmt hir.Node) (float64, bool) {
	key, ok := ix.keys[stmt]
	if !ok {
		return 0, false
	}
	delete(ix.keys, stmt)
	for _, u := range ix.byStmt[stmt] {
		k, _ := AtomKey(u.Atom)
		list := ix.uses[k][:0]
		for _, v := range ix.uses[k] {
			if v != u {
				list = append(list, v)
			}
		}
		if len(list) == 0 {
			delete(ix.uses, k)
		} else {
			ix.uses[k] = list
		}
	}
	delete(ix.byStmt, stmt)
	return key, true
}

func symKey(s hir.Symbol) string {
	return fmt.Sprintf("ref:%d:%s", s.ProtoID(), s.Name())
}

// AtomKey returns the identity under which the index tracks n, and whether
// n is an atom at all.
func AtomKey(n hir.Node) (string, bool) {
	switch x := n.(type) {
	case *hir.Ref:
		return symKey(x.Sym), true
	case *hir.Fld:
		if !atomOrNil(x.This()) {
			return "", false
		}
		return "fld:" + hir.Dump(x, hir.CSharp), true
	case *hir.Prop:
		if x.Property.IsIndexer() || !atomOrNil(x.This()) {
			return "", false
		}
		return "prop:" + hir.Dump(x, hir.CSharp), true
	case *hir.Apply:
		p, ok := x.Callee().(*hir.Prop)
		if !ok || !atomOrNil(p.This()) {
			return "", false
		}
		for _, a := range x.Args() {
			if _, c := a.(*hir.Const); !c && !atomOrNil(a) {
				return "", false
			}
		}
		return "idx:" + hir.Dump(x, hir.CSharp), true
	}
	return "", false
}

func atomOrNil(n hir.Node) bool {
	if n == nil {
		return true
	}
	_, ok := AtomKey(n)
	return ok
}

// IsAtom reports whether n is tracked by the index.
func IsAtom(n hir.Node) bool {
	_, ok := AtomKey(n)
	return ok
}
