package structure

import (
	"go.uber.org/zap"

	"github.com/wippyai/decompiler/cfg"
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
)

// frame is one enclosing construct during emission: a loop, or the try
// body or handler region being filled. A region frame's follow is where
// the guard is left to.
type frame struct {
	loop *cfg.Loop
	// cont is where continue goes: the header, or the latch of a
	// do-while loop.
	cont   *cfg.Block
	follow *cfg.Block
	latch  *cfg.Block

	region *cfg.Region
}

type builder struct {
	g       *cfg.Graph
	done    map[*cfg.Block]bool
	tried   map[*cfg.Guard]bool
	frames  []*frame
	pending []*cfg.Block
}

// Structure emits the statement tree of a prepared graph. The statements
// are moved out of the graph, which must not be used afterwards.
func Structure(g *cfg.Graph) (*hir.Block, error) {
	s := &builder{
		g:      g,
		done:   make(map[*cfg.Block]bool),
		tried:  make(map[*cfg.Guard]bool),
		frames: []*frame{{region: g.Root}},
	}
	root := hir.NewBlock()
	if err := s.seq(root, g.Entry, nil); err != nil {
		return nil, err
	}
	if err := s.flush(root); err != nil {
		return nil, err
	}
	for _, b := range g.Blocks {
		if !s.done[b] && b.Order() >= 0 {
			return nil, errors.New(errors.PhaseStructure, errors.KindUnsupported).
				Offset(b.Start).
				Detail("block %s cannot be placed in the structured tree", b.Label()).
				Build()
		}
	}

	Tidy(root)
	if n := countGotos(root); n > 0 {
		Logger().Warn("unstructured control flow kept as goto",
			zap.String("method", g.Method.Name), zap.Int("gotos", n))
	}
	return root, nil
}

func (s *builder) push(f *frame) { s.frames = append(s.frames, f) }
func (s *builder) pop()          { s.frames = s.frames[:len(s.frames)-1] }

func (s *builder) region() *cfg.Region {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if r := s.frames[i].region; r != nil {
			return r
		}
	}
	return s.g.Root
}

func (s *builder) loopFrame() *frame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].loop != nil {
			return s.frames[i]
		}
	}
	return nil
}

func (s *builder) active(l *cfg.Loop) bool {
	for _, f := range s.frames {
		if f.loop == l {
			return true
		}
	}
	return false
}

// guardAt returns the not yet emitted guard whose protected body starts at
// b directly inside region r.
func (s *builder) guardAt(b *cfg.Block, r *cfg.Region) *cfg.Guard {
	for _, gd := range s.g.Guards {
		if gd.Entry == b && gd.Try.Parent == r && !s.tried[gd] {
			return gd
		}
	}
	return nil
}

// enterable reports whether b can be emitted at the current position.
func (s *builder) enterable(b *cfg.Block) bool {
	r := s.region()
	if b.Region != r && s.guardAt(b, r) == nil {
		return false
	}
	if f := s.loopFrame(); f != nil && !f.loop.Contains(b) && !s.deadEnd(b, f) {
		return false
	}
	return true
}

// deadEnd reports whether every path from b stays in b's region and ends
// in a return or throw without touching the loop of f, so the code can be
// emitted in place of the jump out of the loop.
func (s *builder) deadEnd(b *cfg.Block, f *frame) bool {
	seen := make(map[*cfg.Block]bool)
	var visit func(x *cfg.Block) bool
	visit = func(x *cfg.Block) bool {
		if seen[x] {
			return true
		}
		seen[x] = true
		if f.loop.Contains(x) || x == f.follow || s.done[x] || x.Region != b.Region {
			return false
		}
		switch x.Flow {
		case il.FlowReturn, il.FlowThrow:
			return true
		case il.FlowLeave, il.FlowEndHandler:
			return false
		}
		for _, y := range x.NormalSuccs() {
			if !visit(y) {
				return false
			}
		}
		return true
	}
	return visit(b)
}

// seq emits the chain of blocks starting at b until stop is reached or
// the chain ends in a jump.
func (s *builder) seq(out *hir.Block, b, stop *cfg.Block) error {
	for b != nil && b != stop {
		if s.done[b] || !s.enterable(b) {
			s.jump(out, b)
			return nil
		}
		var err error
		l := s.g.LoopAt(b)
		gd := s.guardAt(b, s.region())
		switch {
		case l != nil && !s.active(l) && (gd == nil || !s.inside(l, gd.Try)):
			b, err = s.loop(out, l)
		case gd != nil:
			b, err = s.try(out, gd)
		default:
			b, err = s.block(out, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// inside reports whether the whole body of l lies in r.
func (s *builder) inside(l *cfg.Loop, r *cfg.Region) bool {
	for _, id := range l.Body.IDs() {
		if b := s.g.BlockByID(id); b != nil && !r.Encloses(b.Region) {
			return false
		}
	}
	return true
}

// jump emits the transfer of control to b from the current position.
func (s *builder) jump(out *hir.Block, b *cfg.Block) {
	if f := s.loopFrame(); f != nil {
		switch b {
		case f.cont:
			out.Add(hir.NewContinue())
			return
		case f.follow:
			out.Add(hir.NewBreak())
			return
		}
	}
	out.Add(hir.NewGoto(b.Label()))
	if !s.done[b] {
		s.pending = append(s.pending, b)
	}
}

// flush emits the pending goto targets that belong to the current region
// at the end of out. Enclosing loops are left, since the targets lie
// outside them.
func (s *builder) flush(out *hir.Block) error {
	saved := s.frames
	var frames []*frame
	for _, f := range s.frames {
		if f.loop == nil {
			frames = append(frames, f)
		}
	}
	s.frames = frames
	defer func() { s.frames = saved }()

	r := s.region()
	for i := 0; i < len(s.pending); i++ {
		b := s.pending[i]
		if s.done[b] || (b.Region != r && s.guardAt(b, r) == nil) {
			continue
		}
		if err := s.seq(out, b, nil); err != nil {
			return err
		}
	}
	return nil
}

// block emits b and returns the block control continues with.
func (s *builder) block(out *hir.Block, b *cfg.Block) (*cfg.Block, error) {
	s.done[b] = true
	out.Add(hir.NewLabel(b.Label()))
	for b.Code.Len() > 0 {
		out.Add(b.Code.RemoveAt(0))
	}
	switch b.Flow {
	case il.FlowCondBranch:
		return s.cond(out, b)
	case il.FlowNext, il.FlowBranch, il.FlowLeave:
		return b.Succ(cfg.EdgeNext), nil
	case il.FlowSwitch:
		return nil, errors.Assertion(errors.PhaseStructure, "switch at %s was not lowered", b.Label())
	}
	return nil, nil
}

// cond emits the two-way branch ending b as an if statement and returns
// the block both arms meet at.
func (s *builder) cond(out *hir.Block, b *cfg.Block) (*cfg.Block, error) {
	t, f := b.Succ(cfg.EdgeTrue), b.Succ(cfg.EdgeFalse)
	follow := s.ifFollow(b)

	// The arm laid out first becomes the then branch.
	first, second, negate := f, t, true
	if before(t, f, b) {
		first, second, negate = t, f, false
	}
	then, els := hir.NewBlock(), hir.NewBlock()
	if first != follow {
		if err := s.seq(then, first, follow); err != nil {
			return nil, err
		}
	}
	if second != follow {
		if err := s.seq(els, second, follow); err != nil {
			return nil, err
		}
	}

	test := b.TakeTail()
	switch {
	case then.Len() == 0 && els.Len() == 0:
		if !cfg.Pure(test) {
			out.Add(hir.NewEval(test))
		}
		return follow, nil
	case then.Len() == 0:
		then, els = els, then
		negate = !negate
	}
	if negate {
		test = hir.Unary(hir.OpNot, test)
	}
	if els.Len() == 0 {
		els = nil
	}
	out.Add(hir.NewIf(test, then, els))
	return follow, nil
}

// before reports whether arm x is laid out ahead of arm y. A synthetic
// block split off b, such as the next test of a lowered switch, comes
// after the code it branches around.
func before(x, y, b *cfg.Block) bool {
	xs, ys := x.Synthetic() && x.Start == b.Start, y.Synthetic() && y.Start == b.Start
	if xs != ys {
		return ys
	}
	return x.Start < y.Start
}

// ifFollow is the immediate post-dominator of b when it can be reached
// from the current position without a jump.
func (s *builder) ifFollow(b *cfg.Block) *cfg.Block {
	p := b.Ipdom
	if p == nil || s.done[p] {
		return nil
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.loop != nil {
			if !f.loop.Contains(p) || p == f.cont {
				return nil
			}
			break
		}
		if f.region != nil {
			// Arms leaving the try or handler stop where the guard is left.
			if p == f.follow {
				return p
			}
			break
		}
	}
	if r := s.region(); p.Region != r && s.guardAt(p, r) == nil {
		return nil
	}
	return p
}

// loop emits the natural loop l and returns its follow block.
func (s *builder) loop(out *hir.Block, l *cfg.Loop) (*cfg.Block, error) {
	h := l.Header
	f := &frame{loop: l, cont: h}
	body := hir.NewBlock()
	var lp *hir.Loop

	if in, exit, ok := s.pretest(l); ok {
		f.follow = exit
		s.done[h] = true
		out.Add(hir.NewLabel(h.Label()))
		test := h.TakeTail()
		if h.Succ(cfg.EdgeFalse) == in {
			test = hir.Unary(hir.OpNot, test)
		}
		s.push(f)
		err := s.seq(body, in, nil)
		s.pop()
		if err != nil {
			return nil, err
		}
		lp = hir.NewLoop(nil, test, body, nil)
	} else if latch, exit, ok := s.postTest(l); ok {
		f.cont, f.latch, f.follow = latch, latch, exit
		s.push(f)
		err := s.seq(body, h, latch)
		s.pop()
		if err != nil {
			return nil, err
		}
		s.done[latch] = true
		body.Add(hir.NewLabel(latch.Label()))
		for latch.Code.Len() > 0 {
			body.Add(latch.Code.RemoveAt(0))
		}
		test := latch.TakeTail()
		if latch.Succ(cfg.EdgeFalse) == h {
			test = hir.Unary(hir.OpNot, test)
		}
		lp = hir.NewLoop(nil, test, body, nil)
		lp.IsDoWhile = true
	} else {
		f.follow = s.loopExit(l)
		s.push(f)
		err := s.seq(body, h, nil)
		s.pop()
		if err != nil {
			return nil, err
		}
		lp = hir.NewLoop(nil, nil, body, nil)
	}
	out.Add(lp)
	return f.follow, nil
}

// pretest matches a header that only tests the loop condition.
func (s *builder) pretest(l *cfg.Loop) (in, exit *cfg.Block, ok bool) {
	h := l.Header
	if h.Flow != il.FlowCondBranch || h.Code.Len() > 0 || s.isGuardEntry(h) {
		return nil, nil, false
	}
	t, f := h.Succ(cfg.EdgeTrue), h.Succ(cfg.EdgeFalse)
	switch {
	case l.Contains(t) && !l.Contains(f):
		return t, f, true
	case l.Contains(f) && !l.Contains(t):
		return f, t, true
	}
	return nil, nil, false
}

// postTest matches a single latch that tests the condition and either
// jumps back to the header or leaves the loop.
func (s *builder) postTest(l *cfg.Loop) (latch, exit *cfg.Block, ok bool) {
	if len(l.Latches) != 1 || s.isGuardEntry(l.Header) {
		return nil, nil, false
	}
	lt := l.Latches[0]
	if lt.Flow != il.FlowCondBranch || lt.Region != l.Header.Region {
		return nil, nil, false
	}
	t, f := lt.Succ(cfg.EdgeTrue), lt.Succ(cfg.EdgeFalse)
	switch {
	case t == l.Header && !l.Contains(f):
		return lt, f, true
	case f == l.Header && !l.Contains(t):
		return lt, t, true
	}
	return nil, nil, false
}

// loopExit picks the follow of an endless loop among the blocks its body
// branches to: the most common target that does not end the method,
// first in layout on ties.
func (s *builder) loopExit(l *cfg.Loop) *cfg.Block {
	count := make(map[*cfg.Block]int)
	var cands []*cfg.Block
	for _, e := range s.loopEdges(l) {
		x := e.To
		if l.Contains(x) || x.Region != l.Header.Region && s.guardAt(x, l.Header.Region) == nil {
			continue
		}
		if count[x] == 0 {
			cands = append(cands, x)
		}
		count[x]++
	}
	var best *cfg.Block
	better := func(x *cfg.Block) bool {
		if best == nil {
			return true
		}
		if terminal(x) != terminal(best) {
			return !terminal(x)
		}
		if count[x] != count[best] {
			return count[x] > count[best]
		}
		return x.Start < best.Start
	}
	for _, x := range cands {
		if better(x) {
			best = x
		}
	}
	return best
}

func (s *builder) loopEdges(l *cfg.Loop) []*cfg.Edge {
	var out []*cfg.Edge
	for _, b := range s.g.Blocks {
		if !l.Contains(b) {
			continue
		}
		for _, e := range b.Succs {
			if e.Normal() {
				out = append(out, e)
			}
		}
	}
	return out
}

// terminal reports whether b ends the method without a successor.
func terminal(b *cfg.Block) bool {
	return len(b.NormalSuccs()) == 0 && (b.Flow == il.FlowReturn || b.Flow == il.FlowThrow)
}

func (s *builder) isGuardEntry(b *cfg.Block) bool {
	for _, gd := range s.g.Guards {
		if gd.Entry == b {
			return true
		}
	}
	return false
}

func countGotos(root hir.Node) int {
	n := 0
	hir.Walk(root, func(x hir.Node) bool {
		if x.Kind() == hir.KindGoto {
			n++
		}
		return true
	})
	return n
}
