package cfg

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/reconstruct"
	"github.com/wippyai/decompiler/typeinfer"
	"github.com/wippyai/decompiler/types"
)

// Build splits the method into basic blocks, reconstructs each reachable
// block with the stack depth it is entered with, links the blocks and
// computes dominators and loops. A nil registry selects the default one.
func Build(m *il.Method, syms *reconstruct.Symbols, reg *reconstruct.Registry) (*Graph, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(errors.PhaseCFG, errors.KindInvalidInput, err, "malformed method body")
	}
	g := &Graph{Method: m, Symbols: syms}
	g.buildRegions()
	g.split()

	if err := g.reconstruct(reconstruct.New(m, syms, reg)); err != nil {
		return nil, err
	}
	g.link()
	g.Analyze()

	Logger().Debug("built control-flow graph",
		zap.String("method", m.Name),
		zap.Int("blocks", len(g.Blocks)),
		zap.Int("guards", len(g.Guards)),
		zap.Int("loops", len(g.Loops)))
	return g, nil
}

func (g *Graph) buildRegions() {
	m := g.Method
	g.Root = &Region{Kind: RegionMethod, Start: m.Body[0].Offset, End: m.Body[len(m.Body)-1].Offset + 1}

	byRange := make(map[[2]int]*Guard)
	for _, r := range m.Regions {
		key := [2]int{r.TryStart, r.TryEnd}
		gd := byRange[key]
		if gd == nil {
			gd = &Guard{}
			gd.Try = &Region{Kind: RegionTry, Start: r.TryStart, End: r.TryEnd, Guard: gd}
			byRange[key] = gd
			g.Guards = append(g.Guards, gd)
		}
		h := &Handler{Kind: r.Kind, CatchType: r.CatchType}
		h.Body = &Region{Kind: handlerRegionKind(r.Kind), Start: r.HandlerStart, End: r.HandlerEnd, Guard: gd, Handler: h}
		if r.Kind == il.RegionFilter {
			h.Filter = &Region{Kind: RegionFilter, Start: r.FilterStart, End: r.HandlerStart, Guard: gd, Handler: h}
		}
		gd.Handlers = append(gd.Handlers, h)
	}
	sort.SliceStable(g.Guards, func(i, j int) bool {
		a, b := g.Guards[i].Try, g.Guards[j].Try
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End > b.End
	})

	for _, gd := range g.Guards {
		g.regions = append(g.regions, gd.Try)
		for _, h := range gd.Handlers {
			if h.Filter != nil {
				g.regions = append(g.regions, h.Filter)
			}
			g.regions = append(g.regions, h.Body)
		}
	}
	sort.SliceStable(g.regions, func(i, j int) bool {
		a, b := g.regions[i], g.regions[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End-a.Start > b.End-b.Start
	})
	for _, r := range g.regions {
		r.Parent = g.Root
		for _, q := range g.regions {
			if q == r || q.Start > r.Start || q.End < r.End || q.End-q.Start <= r.End-r.Start {
				continue
			}
			if r.Parent == g.Root || q.End-q.Start < r.Parent.End-r.Parent.Start {
				r.Parent = q
			}
		}
	}
}

func handlerRegionKind(k il.RegionKind) RegionKind {
	switch k {
	case il.RegionFinally:
		return RegionFinally
	case il.RegionFault:
		return RegionFault
	}
	return RegionCatch
}

// RegionAt returns the innermost region containing offset.
func (g *Graph) RegionAt(offset int) *Region {
	best := g.Root
	for _, r := range g.regions {
		if r.Contains(offset) && r.End-r.Start < best.End-best.Start {
			best = r
		}
	}
	return best
}

func (g *Graph) leaders() map[int]bool {
	m := g.Method
	lead := map[int]bool{m.Body[0].Offset: true}
	for i, in := range m.Body {
		for _, t := range in.Targets() {
			lead[t] = true
		}
		if il.Info(in.Op).Flow != il.FlowNext && i+1 < len(m.Body) {
			lead[m.Body[i+1].Offset] = true
		}
	}
	for _, r := range g.regions {
		lead[r.Start] = true
		lead[r.End] = true
	}
	return lead
}

func (g *Graph) split() {
	m := g.Method
	lead := g.leaders()
	var cur *Block
	for i, in := range m.Body {
		if cur == nil || lead[in.Offset] {
			cur = newBlock(g.nextID)
			g.nextID++
			cur.Start = in.Offset
			cur.first = i
			g.Blocks = append(g.Blocks, cur)
		}
		cur.last = i + 1
	}
	for _, b := range g.Blocks {
		b.End = g.offsetAfter(b.last)
		b.Region = g.RegionAt(b.Start)
	}
}

// offsetAfter returns the offset of instruction i, or one past the last
// instruction when i is the end of the body.
func (g *Graph) offsetAfter(i int) int {
	body := g.Method.Body
	if i < len(body) {
		return body[i].Offset
	}
	return body[len(body)-1].Offset + 1
}

func (g *Graph) reconstruct(rc *reconstruct.Reconstructor) error {
	entries := make(map[*Block][]types.Type)
	seen := make(map[*Block]bool)
	var work []*Block
	push := func(b *Block, ts []types.Type) {
		seen[b] = true
		entries[b] = ts
		work = append(work, b)
	}

	push(g.Blocks[0], nil)
	for _, gd := range g.Guards {
		for _, h := range gd.Handlers {
			exc := h.CatchType
			if exc == nil {
				exc = types.Typ[types.Object]
			}
			if h.Filter != nil {
				if b := g.Block(h.Filter.Start); b != nil && !seen[b] {
					push(b, []types.Type{types.Typ[types.Object]})
				}
			}
			b := g.Block(h.Body.Start)
			if b == nil || seen[b] {
				continue
			}
			switch h.Kind {
			case il.RegionCatch, il.RegionFilter:
				push(b, []types.Type{exc})
			default:
				push(b, nil)
			}
		}
	}

	for len(work) > 0 {
		b := work[0]
		work = work[1:]
		res, err := rc.Block(b.first, b.last, entries[b])
		if err != nil {
			return err
		}
		g.fill(b, res)

		exit := make([]types.Type, len(res.Residue))
		for i, r := range res.Residue {
			exit[i], _ = typeinfer.Of(r)
		}
		for _, off := range b.targets {
			s := g.Block(off)
			if s == nil {
				return errors.New(errors.PhaseCFG, errors.KindInvalidInput).
					Offset(b.TermOffset).
					Detail("control leaves the method body at IL_%04x", off).
					Build()
			}
			if seen[s] {
				if len(entries[s]) != len(exit) {
					return errors.StackMismatch(s.Start, len(entries[s]), len(exit))
				}
				continue
			}
			push(s, exit)
		}
	}

	kept := g.Blocks[:0]
	for _, b := range g.Blocks {
		if seen[b] {
			kept = append(kept, b)
		} else {
			Logger().Debug("dropping unreachable block", zap.Stringer("block", b))
		}
	}
	g.Blocks = kept
	g.Entry = g.Blocks[0]
	return nil
}

func (g *Graph) fill(b *Block, res *reconstruct.Result) {
	b.Entry = res.Entry
	b.Code.Add(res.Code...)
	b.SetResidue(res.Residue...)
	b.Flow = res.Term.Flow
	b.TermOffset = res.Term.Offset
	switch b.Flow {
	case il.FlowCondBranch:
		b.SetTail(res.Term.Cond)
	case il.FlowSwitch, il.FlowEndHandler:
		b.SetTail(res.Term.Value)
	}

	b.targets = nil
	switch b.Flow {
	case il.FlowNext, il.FlowBranch, il.FlowLeave:
		b.targets = res.Term.Targets[:1]
	case il.FlowCondBranch, il.FlowSwitch:
		b.targets = append(append(b.targets, res.Term.Targets...), b.End)
	}
}

func (g *Graph) link() {
	for _, b := range g.Blocks {
		switch b.Flow {
		case il.FlowNext, il.FlowBranch, il.FlowLeave:
			g.AddEdge(b, g.Block(b.targets[0]), EdgeNext)
		case il.FlowCondBranch:
			g.AddEdge(b, g.Block(b.targets[0]), EdgeTrue)
			g.AddEdge(b, g.Block(b.targets[1]), EdgeFalse)
		case il.FlowSwitch:
			n := len(b.targets) - 1
			for i, t := range b.targets[:n] {
				g.AddEdge(b, g.Block(t), EdgeCase).Case = i
			}
			g.AddEdge(b, g.Block(b.targets[n]), EdgeDefault)
		}
	}

	guards := g.Guards[:0]
	for _, gd := range g.Guards {
		gd.Entry = g.Block(gd.Try.Start)
		if gd.Entry == nil {
			continue
		}
		for _, h := range gd.Handlers {
			h.Entry = g.Block(h.Body.Start)
			if h.Filter != nil {
				h.FilterEntry = g.Block(h.Filter.Start)
				if h.FilterEntry != nil {
					g.AddEdge(gd.Entry, h.FilterEntry, EdgeHandler)
				}
			}
			if h.Entry != nil {
				g.AddEdge(gd.Entry, h.Entry, EdgeHandler)
			}
		}
		guards = append(guards, gd)
	}
	g.Guards = guards
}

// HandlerOf returns the handler whose entry or filter entry is b.
func (g *Graph) HandlerOf(b *Block) *Handler {
	for _, gd := range g.Guards {
		for _, h := range gd.Handlers {
			if h.Entry == b || h.FilterEntry == b {
				return h
			}
		}
	}
	return nil
}

// IsHandlerEntry reports whether b is entered by the runtime rather than
// by a branch.
func (g *Graph) IsHandlerEntry(b *Block) bool { return g.HandlerOf(b) != nil }
