package structure

import (
	"go.uber.org/zap"

	"github.com/wippyai/decompiler/cfg"
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/typeinfer"
	"github.com/wippyai/decompiler/types"
)

// Prepare rewrites g into the shape Structure expects: no switch blocks
// and no stack values crossing block boundaries, except the exception
// object on handler entries. Dominators and loops are recomputed.
func Prepare(g *cfg.Graph) error {
	if err := lowerSwitches(g); err != nil {
		return err
	}
	var ternary, fused, merged int
	for {
		t, f, m := ternaries(g), shortCircuits(g), mergeChains(g)
		if t+f+m == 0 {
			break
		}
		ternary, fused, merged = ternary+t, fused+f, merged+m
	}
	slots := spillResidue(g)
	g.Invalidate()
	g.Analyze()

	Logger().Debug("graph prepared",
		zap.String("method", g.Method.Name),
		zap.Int("blocks", g.Len()),
		zap.Int("ternaries", ternary),
		zap.Int("short_circuits", fused),
		zap.Int("merges", merged),
		zap.Int("stack_slots", slots))
	return nil
}

func alive(g *cfg.Graph, b *cfg.Block) bool { return g.BlockByID(b.ID) == b }

func snapshot(g *cfg.Graph) []*cfg.Block { return append([]*cfg.Block(nil), g.Blocks...) }

func typeOf(n hir.Node) types.Type {
	t, _ := typeinfer.Of(n)
	if t == nil {
		return types.Typ[types.Object]
	}
	return t
}

func lowerSwitches(g *cfg.Graph) error {
	for _, b := range snapshot(g) {
		if b.Flow != il.FlowSwitch {
			continue
		}
		if n := len(b.Residue()); n > 0 {
			return errors.New(errors.PhaseStructure, errors.KindUnsupported).
				Offset(b.TermOffset).
				Detail("switch leaves %d values on the stack", n).
				Build()
		}
		sel := b.TakeTail()
		switch sel.(type) {
		case *hir.Const, *hir.Ref:
		default:
			t := g.Symbols.Temp(typeOf(sel))
			b.Code.Add(hir.NewAssign(hir.NewRef(t), sel))
			sel = hir.NewRef(t)
		}

		var cases []*cfg.Edge
		var def *cfg.Block
		for _, e := range append([]*cfg.Edge(nil), b.Succs...) {
			switch e.Kind {
			case cfg.EdgeCase:
				cases = append(cases, e)
			case cfg.EdgeDefault:
				def = e.To
			default:
				continue
			}
			g.RemoveEdge(e)
		}
		if len(cases) == 0 {
			b.Flow = il.FlowBranch
			g.AddEdge(b, def, cfg.EdgeNext)
			continue
		}
		cur := b
		for i, e := range cases {
			v := sel
			if i > 0 {
				v = hir.Clone(sel)
			}
			cur.Flow = il.FlowCondBranch
			cur.SetTail(hir.Binary(hir.OpEqual, v, hir.NewConst(int32(e.Case), types.Typ[types.Int32])))
			g.AddEdge(cur, e.To, cfg.EdgeTrue)
			if i == len(cases)-1 {
				g.AddEdge(cur, def, cfg.EdgeFalse)
				break
			}
			next := g.NewBlock(cur)
			g.AddEdge(cur, next, cfg.EdgeFalse)
			cur = next
		}
	}
	return nil
}

func ternaries(g *cfg.Graph) int {
	n := 0
	for _, j := range snapshot(g) {
		if alive(g, j) && ternary(g, j) {
			n++
		}
	}
	return n
}

// ternary folds
//
//	C: ... if (c) goto T else F      T: push a      F: push b      J: use
//
// into C: ... push c ? a : b; goto J. Either arm may be the edge from C
// straight to J when C already pushed the value for that side.
func ternary(g *cfg.Graph, j *cfg.Block) bool {
	k := len(j.Entry)
	if k == 0 || len(j.Preds) != 2 {
		return false
	}
	var c *cfg.Block
	for _, e := range j.Preds {
		if !e.Normal() {
			return false
		}
		x := e.From
		if x.Flow == il.FlowCondBranch {
			c = x
			break
		}
		if len(x.Preds) == 1 && x.Preds[0].From.Flow == il.FlowCondBranch {
			c = x.Preds[0].From
			break
		}
	}
	if c == nil || c.Region != j.Region {
		return false
	}
	t, f := c.Succ(cfg.EdgeTrue), c.Succ(cfg.EdgeFalse)
	if t == f || t == g.Entry || f == g.Entry {
		return false
	}
	m := len(c.Residue())
	if m != k && m != k-1 {
		return false
	}
	if !isArm(c, t, j, k, m) || !isArm(c, f, j, k, m) {
		return false
	}
	cond := c.Cond()
	if hasStore(cond) {
		return false
	}
	popped := m == k && t != j && f != j
	if m == k && !cfg.Pure(c.Residue()[k-1]) && (popped || !cfg.Pure(cond)) {
		return false
	}

	cond = c.TakeTail()
	vals := c.TakeResidue()
	var last hir.Node
	if m == k {
		last = vals[k-1]
		vals = vals[:k-1]
	}
	value := func(x *cfg.Block) hir.Node {
		if x == j {
			return last
		}
		return hir.Detach(x.Residue()[k-1])
	}
	c.SetResidue(append(vals, hir.Cond(cond, value(t), value(f)))...)

	for _, e := range append([]*cfg.Edge(nil), c.Succs...) {
		if e.Normal() {
			g.RemoveEdge(e)
		}
	}
	for _, x := range []*cfg.Block{t, f} {
		if x != j {
			g.RemoveBlock(x)
		}
	}
	c.Flow = il.FlowBranch
	g.AddEdge(c, j, cfg.EdgeNext)
	return true
}

// isArm reports whether x is one side of a ternary headed by c that meets
// at j: either j itself, or an empty block that passes the stack through
// and replaces or adds the top value.
func isArm(c, x, j *cfg.Block, k, m int) bool {
	if x == j {
		return m == k
	}
	if len(x.Preds) != 1 || x.Preds[0].From != c || x.Code.Len() > 0 || x.Region != c.Region {
		return false
	}
	if x.Flow != il.FlowNext && x.Flow != il.FlowBranch {
		return false
	}
	if ns := x.NormalSuccs(); len(ns) != 1 || ns[0] != j || len(x.Succs) != 1 {
		return false
	}
	res := x.Residue()
	if len(x.Entry) != m || len(res) != k {
		return false
	}
	for i := 0; i < k-1; i++ {
		if res[i] != hir.Node(x.Entry[i]) {
			return false
		}
	}
	return hir.Find(res[k-1], isLoophole) == nil
}

func isLoophole(n hir.Node) bool { return n.Kind() == hir.KindLoophole }

func hasStore(n hir.Node) bool {
	return hir.Find(n, func(x hir.Node) bool {
		if op, ok := x.(*hir.Operator); ok && op.Op.IsAssignment() {
			return true
		}
		return x.Kind() == hir.KindAssign
	}) != nil
}

func shortCircuits(g *cfg.Graph) int {
	n := 0
	for _, b := range snapshot(g) {
		for alive(g, b) && shortCircuit(g, b) {
			n++
		}
	}
	return n
}

// shortCircuit fuses b with a condition-only successor that b alone
// reaches, when one of the second test's targets is also a target of b:
//
//	if (c1) goto T; if (c2) goto T; goto F   =>   if (c1 || c2) goto T; goto F
func shortCircuit(g *cfg.Graph, b *cfg.Block) bool {
	if b.Flow != il.FlowCondBranch {
		return false
	}
	t1, f1 := b.Succ(cfg.EdgeTrue), b.Succ(cfg.EdgeFalse)
	if t1 == f1 {
		return false
	}
	for _, b2 := range []*cfg.Block{f1, t1} {
		if b2 == b || b2 == g.Entry || b2.Flow != il.FlowCondBranch || len(b2.Preds) != 1 || !b2.Empty() || b2.Region != b.Region {
			continue
		}
		if g.IsHandlerEntry(b2) || hir.Find(b2.Cond(), isLoophole) != nil {
			continue
		}
		t2, f2 := b2.Succ(cfg.EdgeTrue), b2.Succ(cfg.EdgeFalse)
		if t2 == f2 {
			continue
		}
		var op hir.OpType
		var negate bool
		var nt, nf *cfg.Block
		switch {
		case b2 == f1 && t2 == t1:
			op, nt, nf = hir.OpOrElse, t1, f2
		case b2 == f1 && f2 == t1:
			op, negate, nt, nf = hir.OpOrElse, true, t1, t2
		case b2 == t1 && f2 == f1:
			op, nt, nf = hir.OpAndAlso, t2, f1
		case b2 == t1 && t2 == f1:
			op, negate, nt, nf = hir.OpAndAlso, true, f2, f1
		default:
			continue
		}

		c1, c2 := b.TakeTail(), b2.TakeTail()
		if negate {
			c2 = hir.Unary(hir.OpNot, c2)
		}
		for _, e := range append([]*cfg.Edge(nil), b.Succs...) {
			if e.Normal() {
				g.RemoveEdge(e)
			}
		}
		g.RemoveBlock(b2)
		b.SetTail(hir.Binary(op, c1, c2))
		g.AddEdge(b, nt, cfg.EdgeTrue)
		g.AddEdge(b, nf, cfg.EdgeFalse)
		return true
	}
	return false
}

func mergeChains(g *cfg.Graph) int {
	n := 0
	for _, p := range snapshot(g) {
		for alive(g, p) {
			x := mergeable(g, p)
			if x == nil {
				break
			}
			merge(g, p, x)
			n++
		}
	}
	return n
}

func mergeable(g *cfg.Graph, p *cfg.Block) *cfg.Block {
	switch p.Flow {
	case il.FlowNext, il.FlowBranch, il.FlowLeave:
	default:
		return nil
	}
	ns := p.NormalSuccs()
	if len(ns) != 1 {
		return nil
	}
	x := ns[0]
	if x == p || x == g.Entry || len(x.Preds) != 1 || !x.Preds[0].Normal() || x.Region != p.Region || g.IsHandlerEntry(x) {
		return nil
	}
	for _, gd := range g.Guards {
		if gd.Entry == x {
			return nil
		}
	}
	return x
}

// merge appends x to p, handing p's leftover stack values to x's entry
// placeholders. Constants and side-effect free values move into place
// when x has no statements of its own; anything else goes through a temp
// so that its evaluation stays ahead of x's code.
func merge(g *cfg.Graph, p, x *cfg.Block) {
	if len(x.Entry) > 0 {
		vals := p.TakeResidue()
		for i, l := range x.Entry {
			v := vals[i]
			uses := loopholes(x, l.Slot)
			_, isConst := v.(*hir.Const)
			switch {
			case len(uses) == 0:
				if !cfg.Pure(v) {
					p.Code.Add(hir.NewEval(v))
				}
			case len(uses) == 1 && (isConst || (x.Code.Len() == 0 && cfg.Pure(v))):
				hir.Replace(uses[0], v)
			default:
				t := g.Symbols.Temp(typeOf(v))
				p.Code.Add(hir.NewAssign(hir.NewRef(t), v))
				for _, u := range uses {
					hir.Replace(u, hir.NewRef(t))
				}
			}
		}
		x.Entry = nil
	}
	g.Merge(p, x)
}

// loopholes returns the entry placeholders for stack slot slot used in b.
func loopholes(b *cfg.Block, slot int) []hir.Node {
	var out []hir.Node
	for _, s := range b.Statements() {
		hir.Walk(s, func(n hir.Node) bool {
			if l, ok := n.(*hir.Loophole); ok && l.Slot == slot {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// spillResidue carries the remaining cross-block stack values in shared
// $stackN locals and returns how many slots it needed.
func spillResidue(g *cfg.Graph) int {
	for _, b := range g.Blocks {
		if len(b.Entry) == 0 || g.IsHandlerEntry(b) {
			continue
		}
		for i, l := range b.Entry {
			slot := g.StackSlot(i, l.Type)
			for _, u := range loopholes(b, l.Slot) {
				hir.Replace(u, hir.NewRef(slot))
			}
		}
		b.Entry = nil
	}
	for _, b := range g.Blocks {
		vals := b.TakeResidue()
		if len(vals) == 0 {
			continue
		}
		slots := make([]*hir.Local, len(vals))
		for i, v := range vals {
			slots[i] = g.StackSlot(i, typeOf(v))
		}
		// A value that reads a lower slot which is about to change is
		// staged through a temp first.
		for i, v := range vals {
			for j := 0; j < i; j++ {
				if !isRefTo(vals[j], slots[j]) && len(hir.Usages(v, slots[j])) > 0 {
					t := g.Symbols.Temp(typeOf(v))
					b.Code.Add(hir.NewAssign(hir.NewRef(t), v))
					vals[i] = hir.NewRef(t)
					break
				}
			}
		}
		for i, v := range vals {
			if isRefTo(v, slots[i]) {
				continue
			}
			b.Code.Add(hir.NewAssign(hir.NewRef(slots[i]), v))
		}
	}
	return len(g.StackSlots())
}

func isRefTo(n hir.Node, sym hir.Symbol) bool {
	r, ok := n.(*hir.Ref)
	return ok && hir.SymbolsEqual(r.Sym, sym)
}
