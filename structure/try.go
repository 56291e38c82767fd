package structure

import (
	"github.com/wippyai/decompiler/cfg"
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/types"
)

// try emits the guard gd with all of its handlers and returns the block
// control continues with after the statement.
func (s *builder) try(out *hir.Block, gd *cfg.Guard) (*cfg.Block, error) {
	s.tried[gd] = true
	follow := s.tryFollow(gd)

	body, err := s.fill(gd.Try, gd.Entry, follow)
	if err != nil {
		return nil, err
	}
	tr := hir.NewTry(body, nil, nil, nil)
	for _, h := range gd.Handlers {
		switch h.Kind {
		case il.RegionCatch, il.RegionFilter:
			c, err := s.catch(h, follow)
			if err != nil {
				return nil, err
			}
			tr.AddCatch(c)
		case il.RegionFinally, il.RegionFault:
			b, err := s.fill(h.Body, h.Entry, follow)
			if err != nil {
				return nil, err
			}
			if h.Kind == il.RegionFinally {
				tr.SetFinally(b)
			} else {
				tr.SetFault(b)
			}
		}
	}
	out.Add(tr)
	return follow, nil
}

// fill emits the blocks of region r reachable from entry.
func (s *builder) fill(r *cfg.Region, entry, follow *cfg.Block) (*hir.Block, error) {
	out := hir.NewBlock()
	if entry == nil {
		return out, nil
	}
	s.push(&frame{region: r, follow: follow})
	defer s.pop()
	if err := s.seq(out, entry, follow); err != nil {
		return nil, err
	}
	if err := s.flush(out); err != nil {
		return nil, err
	}
	return out, nil
}

// tryFollow picks the block the guard is left to: the most common target
// of the edges leaving the protected body and its handlers, first in
// layout on ties.
func (s *builder) tryFollow(gd *cfg.Guard) *cfg.Block {
	within := func(r *cfg.Region) bool {
		if gd.Try.Encloses(r) {
			return true
		}
		for _, h := range gd.Handlers {
			if h.Body.Encloses(r) || h.Filter != nil && h.Filter.Encloses(r) {
				return true
			}
		}
		return false
	}

	outer := s.region()
	count := make(map[*cfg.Block]int)
	var best *cfg.Block
	for _, b := range s.g.Blocks {
		if b.Order() < 0 || !within(b.Region) {
			continue
		}
		for _, x := range b.NormalSuccs() {
			if within(x.Region) || x.Region != outer && s.guardAt(x, outer) == nil {
				continue
			}
			count[x]++
			if best == nil || count[x] > count[best] || count[x] == count[best] && x.Start < best.Start {
				best = x
			}
		}
	}
	return best
}

// catch emits a catch or filter clause.
func (s *builder) catch(h *cfg.Handler, follow *cfg.Block) (*hir.Catch, error) {
	typ := h.CatchType
	if typ == nil {
		typ = types.Typ[types.Object]
	}
	var v *hir.Local
	var filter hir.Node
	if h.Filter != nil {
		fe := h.FilterEntry
		if fe == nil || fe.Flow != il.FlowEndHandler || len(fe.NormalSuccs()) > 0 {
			return nil, errors.Unsupported(errors.PhaseStructure, "exception filter spanning several blocks")
		}
		s.done[fe] = true
		v = s.catchVar(fe, v)
		if fe.Code.Len() > 0 {
			return nil, errors.New(errors.PhaseStructure, errors.KindUnsupported).
				Offset(fe.Start).
				Detail("exception filter with statements").
				Build()
		}
		filter = fe.TakeTail()
	}
	if h.Entry != nil {
		v = s.catchVar(h.Entry, v)
	}
	body, err := s.fill(h.Body, h.Entry, follow)
	if err != nil {
		return nil, err
	}
	return hir.NewCatch(typ, v, filter, body), nil
}

// catchVar binds the exception on entry to b to a local and returns it.
// A leading store of the exception into a local names the variable;
// otherwise v, or a fresh temporary when v is nil, takes its place.
func (s *builder) catchVar(b *cfg.Block, v *hir.Local) *hir.Local {
	if len(b.Entry) == 0 {
		return v
	}
	in := b.Entry[0]
	uses := loopholes(b, in.Slot)
	b.Entry = nil
	if len(uses) == 0 {
		return v
	}
	if v == nil && len(uses) == 1 && b.Code.Len() > 0 {
		if as, ok := b.Code.Child(0).(*hir.Assign); ok && as.Rhs() == uses[0] {
			if r, ok := as.Lhs().(*hir.Ref); ok {
				if loc, ok := r.Sym.(*hir.Local); ok {
					s.g.Remove(as)
					return loc
				}
			}
		}
	}
	if v == nil {
		v = s.g.Symbols.Temp(in.Type)
	}
	for _, u := range uses {
		hir.Replace(u, hir.NewRef(v))
	}
	return v
}
