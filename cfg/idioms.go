package cfg

import (
	"go.uber.org/zap"

	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/types"
)

// Idiom is a rewrite over the graph that returns how many sites it changed.
type Idiom struct {
	Run  func(*Graph) int
	Name string
}

// Idioms are the graph-level rewrites in the order they run.
var Idioms = []Idiom{
	{Name: "recover-increments", Run: RecoverIncrements},
	{Name: "recover-initializers", Run: RecoverInitializers},
	{Name: "inline-temps", Run: InlineTemps},
	{Name: "recover-compound", Run: RecoverCompound},
}

// RunIdioms applies every idiom once, in order.
func RunIdioms(g *Graph) {
	for _, id := range Idioms {
		if n := id.Run(g); n > 0 {
			Logger().Debug("idiom applied", zap.String("idiom", id.Name), zap.Int("sites", n))
		}
	}
}

// InlineTemps folds synthesized temps that are written once and read once
// later in the same block back into the reading expression, provided no
// statement in between can observe the difference.
func InlineTemps(g *Graph) int {
	n := 0
	for changed := true; changed; {
		changed = false
		for _, t := range g.Symbols.Temps {
			if inlineTemp(g, t) {
				n++
				changed = true
			}
		}
	}
	return n
}

func inlineTemp(g *Graph, t *hir.Local) bool {
	us := g.Index().UsagesOf(t)
	if len(us) != 2 {
		return false
	}
	w, r := us[0], us[1]
	if !w.Write || w.Read || !r.Read || r.Write {
		return false
	}
	as, ok := w.Stmt.(*hir.Assign)
	if !ok || as.Lhs() != w.Atom {
		return false
	}
	b := g.BlockOf(w.Stmt)
	if b == nil || g.BlockOf(r.Stmt) != b {
		return false
	}
	rhs := as.Rhs()
	if hasStore(rhs) {
		return false
	}
	between := stmtsBetween(b, w.Stmt, r.Stmt)
	if Pure(rhs) {
		for _, s := range between {
			if writesAny(s, rhs) {
				return false
			}
		}
		if writesAny(r.Stmt, rhs) && !topLevelStore(r.Stmt, rhs) {
			return false
		}
	} else if len(between) > 0 || impureBefore(r.Stmt, r.Atom) {
		return false
	}

	hir.Detach(rhs)
	g.Remove(w.Stmt)
	g.Replace(r.Atom, rhs)
	return true
}

// RecoverIncrements turns the temp patterns left by dup around an
// increment into ++ and -- expressions:
//
//	t = x; x = x + 1; ... t ...   =>   ... x++ ...
//	t = x + 1; x = t; ... t ...   =>   ... ++x ...
func RecoverIncrements(g *Graph) int {
	n := 0
	for _, t := range g.Symbols.Temps {
		if postIncrement(g, t) || preIncrement(g, t) {
			n++
		}
	}
	return n
}

func postIncrement(g *Graph, t *hir.Local) bool {
	us := g.Index().UsagesOf(t)
	if len(us) < 2 || !us[0].Write || us[0].Read {
		return false
	}
	s1, ok := us[0].Stmt.(*hir.Assign)
	if !ok || s1.Lhs() != us[0].Atom || !IsAtom(s1.Rhs()) {
		return false
	}
	x := s1.Rhs()
	b := g.BlockOf(s1)
	s2, ok := nextStmt(b, s1).(*hir.Assign)
	if !ok || !hir.Equiv(s2.Lhs(), x) {
		return false
	}
	op, ok := stepOf(s2.Rhs(), func(n hir.Node) bool {
		return hir.Equiv(n, x) || isRefTo(n, t)
	})
	if !ok {
		return false
	}
	var r *Usage
	for _, u := range us[1:] {
		if u.Stmt == hir.Node(s2) {
			continue
		}
		if r != nil || u.Write {
			return false
		}
		r = u
	}
	if r == nil || g.BlockOf(r.Stmt) != b || touchedBetween(g, x, s2, r) {
		return false
	}
	inc := hir.OpPostIncrement
	if op == hir.OpSubtract {
		inc = hir.OpPostDecrement
	}
	g.Replace(r.Atom, hir.Unary(inc, hir.Clone(x)))
	g.Remove(s2)
	g.Remove(s1)
	return true
}

func preIncrement(g *Graph, t *hir.Local) bool {
	us := g.Index().UsagesOf(t)
	if len(us) != 3 || !us[0].Write || us[0].Read {
		return false
	}
	s1, ok := us[0].Stmt.(*hir.Assign)
	if !ok || s1.Lhs() != us[0].Atom {
		return false
	}
	b := g.BlockOf(s1)
	s2, ok := nextStmt(b, s1).(*hir.Assign)
	if !ok || !IsAtom(s2.Lhs()) || !isRefTo(s2.Rhs(), t) || us[1].Atom != s2.Rhs() {
		return false
	}
	x := s2.Lhs()
	op, ok := stepOf(s1.Rhs(), func(n hir.Node) bool { return hir.Equiv(n, x) })
	if !ok {
		return false
	}
	r := us[2]
	if r.Write || g.BlockOf(r.Stmt) != b || touchedBetween(g, x, s2, r) {
		return false
	}
	inc := hir.OpPreIncrement
	if op == hir.OpSubtract {
		inc = hir.OpPreDecrement
	}
	g.Replace(r.Atom, hir.Unary(inc, hir.Clone(x)))
	g.Remove(s2)
	g.Remove(s1)
	return true
}

// RecoverCompound rewrites x = x op y statements into x op= y, and x += 1
// or x -= 1 into x++ or x--.
func RecoverCompound(g *Graph) int {
	n := 0
	for _, b := range g.Blocks {
		for _, s := range b.Code.Stmts() {
			as, ok := s.(*hir.Assign)
			if !ok || !IsAtom(as.Lhs()) {
				continue
			}
			bin, ok := as.Rhs().(*hir.Operator)
			if !ok || bin.Op.Arity() != 2 || !hir.Equiv(bin.Arg(0), as.Lhs()) {
				continue
			}
			cop, ok := hir.CompoundOf(bin.Op)
			if !ok {
				continue
			}
			y := bin.Arg(1)
			var nw hir.Node
			switch {
			case cop == hir.OpAddAssign && isOne(y):
				nw = hir.Unary(hir.OpPostIncrement, hir.Detach(as.Lhs()))
			case cop == hir.OpSubtractAssign && isOne(y):
				nw = hir.Unary(hir.OpPostDecrement, hir.Detach(as.Lhs()))
			default:
				nw = hir.Binary(cop, hir.Detach(as.Lhs()), hir.Detach(y))
			}
			g.Replace(s, nw)
			n++
		}
	}
	return n
}

// RecoverInitializers folds a constructed temp that is immediately filled
// through Add calls or member stores into a collection or object
// initializer, when the temp is read exactly once afterwards.
func RecoverInitializers(g *Graph) int {
	n := 0
	for _, t := range g.Symbols.Temps {
		if initializer(g, t) {
			n++
		}
	}
	return n
}

func initializer(g *Graph, t *hir.Local) bool {
	us := g.Index().UsagesOf(t)
	if len(us) < 3 || !us[0].Write || us[0].Read {
		return false
	}
	s0, ok := us[0].Stmt.(*hir.Assign)
	if !ok || s0.Lhs() != us[0].Atom || !isCtorCall(s0.Rhs()) {
		return false
	}
	b := g.BlockOf(s0)

	var run []hir.Node
	collection, object := false, false
	next := nextStmt(b, s0)
	for next != nil {
		if elem := addCallArg(next, t); elem != nil {
			collection = true
		} else if memberStoreOf(next, t) {
			object = true
		} else {
			break
		}
		run = append(run, next)
		next = nextStmt(b, next)
	}
	if len(run) == 0 || collection == object || next == nil {
		return false
	}
	last := us[len(us)-1]
	if last.Stmt != next || len(us) != len(run)+2 || last.Write {
		return false
	}

	ctor := hir.Detach(s0.Rhs())
	var parts []hir.Node
	for _, s := range run {
		if collection {
			parts = append(parts, hir.Detach(addCallArg(s, t)))
			continue
		}
		as := s.(*hir.Assign)
		v := hir.Detach(as.Rhs())
		var m hir.Node
		switch x := as.Lhs().(type) {
		case *hir.Fld:
			m = hir.NewFld(x.Field, nil)
		case *hir.Prop:
			m = hir.NewProp(x.Property, nil)
		}
		parts = append(parts, hir.NewAssign(m, v))
	}
	var init hir.Node
	if collection {
		init = hir.NewCollectionInit(ctor, parts...)
	} else {
		init = hir.NewObjectInit(ctor, parts...)
	}
	for _, s := range run {
		g.Remove(s)
	}
	g.Remove(s0)
	g.Replace(last.Atom, init)
	return true
}

func isCtorCall(n hir.Node) bool {
	ap, ok := n.(*hir.Apply)
	if !ok {
		return false
	}
	l, ok := ap.Callee().(*hir.Lambda)
	return ok && l.Method != nil && l.Method.Ctor && !types.IsArrayCtor(l.Method)
}

// addCallArg returns the element of a statement t.Add(elem), or nil.
func addCallArg(s hir.Node, t *hir.Local) hir.Node {
	ev, ok := s.(*hir.Eval)
	if !ok {
		return nil
	}
	ap, ok := ev.Expr().(*hir.Apply)
	if !ok {
		return nil
	}
	l, ok := ap.Callee().(*hir.Lambda)
	args := ap.Args()
	if !ok || l.Method == nil || l.Method.Name != "Add" || l.Method.Static || len(args) != 2 {
		return nil
	}
	if !isRefTo(args[0], t) || mentions(args[1], t) {
		return nil
	}
	return args[1]
}

func memberStoreOf(s hir.Node, t *hir.Local) bool {
	as, ok := s.(*hir.Assign)
	if !ok || mentions(as.Rhs(), t) {
		return false
	}
	switch x := as.Lhs().(type) {
	case *hir.Fld:
		return !x.Field.Static && isRefTo(x.This(), t)
	case *hir.Prop:
		return !x.Property.Static && !x.Property.IsIndexer() && isRefTo(x.This(), t)
	}
	return false
}

// stepOf matches base + 1 or base - 1 where base satisfies isBase.
func stepOf(n hir.Node, isBase func(hir.Node) bool) (hir.OpType, bool) {
	op, ok := n.(*hir.Operator)
	if !ok || (op.Op != hir.OpAdd && op.Op != hir.OpSubtract) {
		return 0, false
	}
	if !isBase(op.Arg(0)) || !isOne(op.Arg(1)) {
		return 0, false
	}
	return op.Op, true
}

func isOne(n hir.Node) bool {
	c, ok := n.(*hir.Const)
	if !ok {
		return false
	}
	switch v := c.Value.(type) {
	case int:
		return v == 1
	case int8:
		return v == 1
	case int16:
		return v == 1
	case int32:
		return v == 1
	case int64:
		return v == 1
	case uint8:
		return v == 1
	case uint16:
		return v == 1
	case uint32:
		return v == 1
	case uint64:
		return v == 1
	}
	return false
}

func isRefTo(n hir.Node, sym hir.Symbol) bool {
	r, ok := n.(*hir.Ref)
	return ok && hir.SymbolsEqual(r.Sym, sym)
}

func mentions(n hir.Node, sym hir.Symbol) bool {
	return len(hir.Usages(n, sym)) > 0
}

// touchedBetween reports whether x is used by a statement strictly between
// after and the statement of r.
func touchedBetween(g *Graph, x hir.Node, after hir.Node, r *Usage) bool {
	ix := g.Index()
	lo, _ := ix.Key(after)
	for _, u := range ix.Usages(x) {
		if u.Key > lo && u.Key < r.Key {
			return true
		}
	}
	return false
}

func nextStmt(b *Block, s hir.Node) hir.Node {
	if b == nil {
		return nil
	}
	all := b.Statements()
	for i, x := range all {
		if x == s && i+1 < len(all) {
			return all[i+1]
		}
	}
	return nil
}

func stmtsBetween(b *Block, from, to hir.Node) []hir.Node {
	var out []hir.Node
	in := false
	for _, s := range b.Statements() {
		if s == to {
			break
		}
		if in {
			out = append(out, s)
		}
		if s == from {
			in = true
		}
	}
	return out
}

// Pure reports whether n only reads locals, parameters and constants.
func Pure(n hir.Node) bool {
	ok := true
	hir.Walk(n, func(x hir.Node) bool {
		if ok && !pureKind(x) {
			ok = false
		}
		return ok
	})
	return ok
}

func pureKind(x hir.Node) bool {
	switch x.Kind() {
	case hir.KindConst, hir.KindNull, hir.KindRef, hir.KindLoophole, hir.KindConvert,
		hir.KindTypeIs, hir.KindTypeAs, hir.KindSizeOf, hir.KindDefault, hir.KindLambda:
		return true
	case hir.KindOperator:
		return !x.(*hir.Operator).Op.IsAssignment()
	}
	return false
}

func hasStore(n hir.Node) bool {
	return hir.Find(n, func(x hir.Node) bool {
		if op, ok := x.(*hir.Operator); ok && op.Op.IsAssignment() {
			return true
		}
		return x.Kind() == hir.KindAssign
	}) != nil
}

// writesAny reports whether s stores to a symbol that n reads.
func writesAny(s, n hir.Node) bool {
	for _, sym := range hir.UsedSymbols(n) {
		for _, r := range hir.Usages(s, sym) {
			if hir.IsWrite(r) {
				return true
			}
		}
	}
	return false
}

// topLevelStore reports whether the only writes s makes to symbols read by
// n are the target of s itself, which happens after its value is computed.
func topLevelStore(s, n hir.Node) bool {
	as, ok := s.(*hir.Assign)
	if !ok || hasStore(as.Rhs()) {
		return false
	}
	_, isRef := as.Lhs().(*hir.Ref)
	return isRef
}

// impureBefore reports whether evaluating s performs a side effect or a
// memory read before it reaches x.
func impureBefore(s, x hir.Node) bool {
	found, bad := false, false
	var visit func(n hir.Node)
	visit = func(n hir.Node) {
		if found || bad || n == nil {
			return
		}
		if n == x {
			found = true
			return
		}
		for _, c := range n.Children() {
			visit(c)
		}
		if found {
			return
		}
		if as, ok := n.Parent().(*hir.Assign); ok && as.Lhs() == n {
			return
		}
		if !pureKind(n) {
			bad = true
		}
	}
	visit(s)
	return bad
}
