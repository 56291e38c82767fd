package cfg

import (
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
)

// AddEdge links from to to.
func (g *Graph) AddEdge(from, to *Block, kind EdgeKind) *Edge {
	e := &Edge{From: from, To: to, Kind: kind}
	from.Succs = append(from.Succs, e)
	to.Preds = append(to.Preds, e)
	return e
}

// RemoveEdge unlinks e.
func (g *Graph) RemoveEdge(e *Edge) {
	e.From.Succs = dropEdge(e.From.Succs, e)
	e.To.Preds = dropEdge(e.To.Preds, e)
}

// Redirect moves the target of e to to.
func (g *Graph) Redirect(e *Edge, to *Block) {
	e.To.Preds = dropEdge(e.To.Preds, e)
	e.To = to
	to.Preds = append(to.Preds, e)
}

func dropEdge(es []*Edge, e *Edge) []*Edge {
	out := es[:0]
	for _, x := range es {
		if x != e {
			out = append(out, x)
		}
	}
	return out
}

// NewBlock creates an empty synthetic block placed after origin in the
// same region.
func (g *Graph) NewBlock(origin *Block) *Block {
	b := newBlock(g.nextID)
	g.nextID++
	b.synthetic = true
	b.Start, b.End = origin.Start, origin.End
	b.Region = origin.Region
	b.Flow = il.FlowNext
	for i, x := range g.Blocks {
		if x == origin {
			g.Blocks = append(g.Blocks[:i+1], append([]*Block{b}, g.Blocks[i+1:]...)...)
			break
		}
	}
	g.Invalidate()
	return b
}

// RemoveBlock unlinks b and drops it from the graph.
func (g *Graph) RemoveBlock(b *Block) {
	for len(b.Succs) > 0 {
		g.RemoveEdge(b.Succs[0])
	}
	for len(b.Preds) > 0 {
		g.RemoveEdge(b.Preds[0])
	}
	for i, x := range g.Blocks {
		if x == b {
			g.Blocks = append(g.Blocks[:i], g.Blocks[i+1:]...)
			break
		}
	}
	g.Invalidate()
}

// Merge appends x to p. p must reach x by its only normal edge, x must
// have p as its only predecessor and x must not expect stack values: the
// caller substitutes x's entry placeholders first. x is removed.
func (g *Graph) Merge(p, x *Block) {
	if len(x.Entry) > 0 || len(x.Preds) != 1 || x.Preds[0].From != p {
		panic(errors.Assertion(errors.PhaseCFG, "cannot merge %s into %s", x, p))
	}
	for x.Code.Len() > 0 {
		p.Code.Add(x.Code.RemoveAt(0))
	}
	p.SetResidue()
	for x.stack.Len() > 0 {
		p.stack.Add(x.stack.RemoveAt(0))
	}
	p.SetTail(nil)
	for x.tail.Len() > 0 {
		p.tail.Add(x.tail.RemoveAt(0))
	}
	p.Flow = x.Flow
	p.TermOffset = x.TermOffset
	p.End = x.End
	p.targets = x.targets

	g.RemoveEdge(x.Preds[0])
	for len(x.Succs) > 0 {
		e := x.Succs[0]
		g.RemoveEdge(e)
		g.AddEdge(p, e.To, e.Kind).Case = e.Case
	}
	for _, gd := range g.Guards {
		if gd.Entry == x {
			gd.Entry = p
		}
	}
	g.RemoveBlock(x)
}

// Remove deletes the statement containing n.
func (g *Graph) Remove(n hir.Node) {
	s := g.statement(n)
	g.Index().evict(s)
	hir.Detach(s)
}

// Replace puts nw in the place of old. The statement containing old is
// reindexed under its previous key.
func (g *Graph) Replace(old, nw hir.Node) {
	s := g.statement(old)
	ix := g.Index()
	key, ok := ix.evict(s)
	hir.Replace(old, nw)
	if old == s {
		s = nw
	}
	if ok {
		ix.add(s, key)
	}
}

// ReplaceEquiv replaces every subtree equivalent to pattern with the node
// built by mk and returns the number of replacements.
func (g *Graph) ReplaceEquiv(pattern hir.Node, mk func(hir.Node) hir.Node) int {
	return g.ReplaceWhere(func(n hir.Node) bool { return hir.Equiv(n, pattern) }, mk)
}

// ReplaceWhere replaces every node satisfying pred, bottom-up, with the
// node built by mk and returns the number of replacements.
func (g *Graph) ReplaceWhere(pred func(hir.Node) bool, mk func(hir.Node) hir.Node) int {
	ix := g.Index()
	total := 0
	for _, b := range g.Blocks {
		for _, s := range b.Statements() {
			count := 0
			key, _ := ix.Key(s)
			ix.evict(s)
			out, _ := hir.Transform(s, func(n hir.Node) (hir.Node, error) {
				if !pred(n) {
					return n, nil
				}
				count++
				return mk(n), nil
			})
			if out != nil {
				ix.add(out, key)
			}
			total += count
		}
	}
	return total
}

// InsertBefore places stmt in front of the statement containing anchor.
// Its key is the midpoint between its new neighbours.
func (g *Graph) InsertBefore(anchor, stmt hir.Node) {
	a := g.statement(anchor)
	ix := g.Index()
	k, _ := ix.Key(a)
	lo, _ := ix.neighbours(k)
	c := a.Parent().(*hir.Block)
	c.Insert(hir.IndexInParent(a), stmt)
	ix.add(stmt, (lo+k)/2)
}

// InsertAfter places stmt behind the statement containing anchor.
func (g *Graph) InsertAfter(anchor, stmt hir.Node) {
	a := g.statement(anchor)
	ix := g.Index()
	k, _ := ix.Key(a)
	_, hi := ix.neighbours(k)
	c := a.Parent().(*hir.Block)
	c.Insert(hir.IndexInParent(a)+1, stmt)
	ix.add(stmt, (k+hi)/2)
}

// Append adds stmt at the end of b's code.
func (g *Graph) Append(b *Block, stmt hir.Node) {
	if b.Code.Len() > 0 {
		g.InsertAfter(b.Code.Child(b.Code.Len()-1), stmt)
		return
	}
	b.Code.Add(stmt)
	g.Invalidate()
}

func (g *Graph) statement(n hir.Node) hir.Node {
	s := hir.Statement(n)
	if s == nil {
		panic(errors.Assertion(errors.PhaseCFG, "%s `%s` is not part of a block", n.Kind(), hir.Dump(n, hir.CSharp)))
	}
	return s
}
