package cfg

import "sort"

// Analyze recomputes reverse post-order numbers, dominators,
// post-dominators and natural loops. It must be called again after the
// edges change.
func (g *Graph) Analyze() {
	g.sortBlocks()
	g.computeDom()
	g.computePostDom()
	g.computeLoops()
}

// ReversePostOrder returns the blocks reachable from the entry in reverse
// post-order, following handler edges too.
func (g *Graph) ReversePostOrder() []*Block {
	visited := make(map[*Block]bool, len(g.Blocks))
	var order []*Block

	var dfs func(b *Block)
	dfs = func(b *Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, e := range b.Succs {
			dfs(e.To)
		}
		order = append(order, b)
	}
	if g.Entry != nil {
		dfs(g.Entry)
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// dominators computes immediate dominators of nodes 0..n-1 rooted at root
// using Cooper, Harvey and Kennedy's iterative algorithm. idom[root] is
// root; unreachable nodes get -1. It also returns the reverse post-order
// number of every node (-1 when unreachable).
func dominators(n, root int, succs, preds func(int) []int) (idom, rpoNum []int) {
	rpoNum = make([]int, n)
	for i := range rpoNum {
		rpoNum[i] = -1
	}
	visited := make([]bool, n)
	var post []int
	var dfs func(v int)
	dfs = func(v int) {
		visited[v] = true
		for _, s := range succs(v) {
			if !visited[s] {
				dfs(s)
			}
		}
		post = append(post, v)
	}
	dfs(root)
	rpo := make([]int, len(post))
	for i, v := range post {
		rpo[len(post)-1-i] = v
	}
	for i, v := range rpo {
		rpoNum[v] = i
	}

	idom = make([]int, n)
	for i := range idom {
		idom[i] = -1
	}
	idom[root] = root

	intersect := func(a, b int) int {
		for a != b {
			for rpoNum[a] > rpoNum[b] {
				a = idom[a]
			}
			for rpoNum[b] > rpoNum[a] {
				b = idom[b]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, v := range rpo[1:] {
			nd := -1
			for _, p := range preds(v) {
				if rpoNum[p] < 0 || idom[p] < 0 {
					continue
				}
				if nd < 0 {
					nd = p
				} else {
					nd = intersect(p, nd)
				}
			}
			if nd >= 0 && idom[v] != nd {
				idom[v] = nd
				changed = true
			}
		}
	}
	return idom, rpoNum
}

func (g *Graph) positions() map[*Block]int {
	pos := make(map[*Block]int, len(g.Blocks))
	for i, b := range g.Blocks {
		pos[b] = i
	}
	return pos
}

func (g *Graph) computeDom() {
	pos := g.positions()
	n := len(g.Blocks)
	for _, b := range g.Blocks {
		b.Idom, b.Dominees, b.order = nil, nil, -1
	}
	if g.Entry == nil || n == 0 {
		return
	}
	idx := func(es []*Edge, to bool) []int {
		out := make([]int, 0, len(es))
		for _, e := range es {
			if to {
				out = append(out, pos[e.To])
			} else {
				out = append(out, pos[e.From])
			}
		}
		return out
	}
	idom, rpoNum := dominators(n, pos[g.Entry],
		func(v int) []int { return idx(g.Blocks[v].Succs, true) },
		func(v int) []int { return idx(g.Blocks[v].Preds, false) })

	for i, b := range g.Blocks {
		b.order = rpoNum[i]
		if idom[i] >= 0 && idom[i] != i {
			b.Idom = g.Blocks[idom[i]]
		}
	}
	for _, b := range g.ReversePostOrder() {
		if b.Idom != nil {
			b.Idom.Dominees = append(b.Idom.Dominees, b)
		}
	}
}

// computePostDom runs the dominator algorithm on the reversed graph of
// normal edges, with a virtual exit joining every block that has no
// normal successor.
func (g *Graph) computePostDom() {
	pos := g.positions()
	n := len(g.Blocks)
	exit := n
	for _, b := range g.Blocks {
		b.Ipdom = nil
	}
	if n == 0 {
		return
	}
	var exits []int
	for i, b := range g.Blocks {
		if len(b.NormalSuccs()) == 0 {
			exits = append(exits, i)
		}
	}
	succs := func(v int) []int {
		if v == exit {
			return exits
		}
		var out []int
		for _, p := range g.Blocks[v].NormalPreds() {
			out = append(out, pos[p])
		}
		return out
	}
	preds := func(v int) []int {
		if v == exit {
			return nil
		}
		ss := g.Blocks[v].NormalSuccs()
		if len(ss) == 0 {
			return []int{exit}
		}
		out := make([]int, 0, len(ss))
		for _, s := range ss {
			out = append(out, pos[s])
		}
		return out
	}
	ipdom, _ := dominators(n+1, exit, succs, preds)
	for i, b := range g.Blocks {
		if d := ipdom[i]; d >= 0 && d != exit && d != i {
			b.Ipdom = g.Blocks[d]
		}
	}
}

// Dominates reports whether a dominates b. Every block dominates itself.
func Dominates(a, b *Block) bool {
	for x := b; x != nil; x = x.Idom {
		if x == a {
			return true
		}
	}
	return false
}

// PostDominates reports whether every path from b to the method exit
// passes through a.
func PostDominates(a, b *Block) bool {
	for x := b; x != nil; x = x.Ipdom {
		if x == a {
			return true
		}
	}
	return false
}

// BackEdges returns the normal edges whose target dominates their source.
func (g *Graph) BackEdges() []*Edge {
	var out []*Edge
	for _, b := range g.Blocks {
		for _, e := range b.Succs {
			if e.Normal() && b.order >= 0 && Dominates(e.To, b) {
				out = append(out, e)
			}
		}
	}
	return out
}

func (g *Graph) computeLoops() {
	g.Loops = nil
	byHeader := make(map[*Block]*Loop)
	for _, e := range g.BackEdges() {
		h := e.To
		l := byHeader[h]
		if l == nil {
			l = &Loop{Header: h, Body: NewBlockSet(g.MaxID())}
			l.Body.Add(h.ID)
			byHeader[h] = l
			g.Loops = append(g.Loops, l)
		}
		l.Latches = append(l.Latches, e.From)
		work := []*Block{e.From}
		for len(work) > 0 {
			b := work[len(work)-1]
			work = work[:len(work)-1]
			if l.Body.Has(b.ID) {
				continue
			}
			l.Body.Add(b.ID)
			for _, p := range b.NormalPreds() {
				if p.order >= 0 {
					work = append(work, p)
				}
			}
		}
	}
	sort.SliceStable(g.Loops, func(i, j int) bool {
		return g.Loops[i].Header.order < g.Loops[j].Header.order
	})
	for _, l := range g.Loops {
		for _, o := range g.Loops {
			if o == l || !o.Body.Has(l.Header.ID) || o.Body.Len() <= l.Body.Len() {
				continue
			}
			if l.Parent == nil || o.Body.Len() < l.Parent.Body.Len() {
				l.Parent = o
			}
		}
	}
}
