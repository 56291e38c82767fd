package cfg

import (
	"strings"
	"testing"

	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/reconstruct"
	"github.com/wippyai/decompiler/types"
)

var i32 = types.Typ[types.Int32]

func ins(op il.Opcode, operand any) il.Instruction {
	return il.Instruction{Op: op, Operand: operand}
}

func method(body ...il.Instruction) *il.Method {
	for i := range body {
		body[i].Offset = i
	}
	return &il.Method{
		Name:    "F",
		Static:  true,
		Returns: i32,
		Params:  []il.Variable{{Name: "x", Type: i32}},
		Locals:  []il.Variable{{Name: "i", Type: i32}, {Name: "j", Type: i32}},
		Body:    body,
	}
}

func ldc(v int32) il.Instruction { return ins(il.OpLdc, il.Const{Value: v, Type: i32}) }

func build(t *testing.T, m *il.Method) *Graph {
	t.Helper()
	g, err := Build(m, reconstruct.NewSymbols(m, true), nil)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func code(b *Block) []string {
	var out []string
	for _, s := range b.Code.Stmts() {
		out = append(out, hir.Dump(s, hir.CSharp))
	}
	return out
}

func expectCode(t *testing.T, b *Block, want ...string) {
	t.Helper()
	got := code(b)
	if len(got) != len(want) {
		t.Fatalf("%s: got %q, want %q", b, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s stmt %d: got %q, want %q", b, i, got[i], want[i])
		}
	}
}

// if (x > 0) j = 1; else j = 0; return j;
func diamond() *il.Method {
	return method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ldc(0),
		ins(il.OpBle, il.Target(6)),
		ldc(1),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpBr, il.Target(8)),
		ldc(0),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	)
}

// i = 0; while (i < x) i = i + 1; return i;
func counting() *il.Method {
	return method(
		ldc(0),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpBr, il.Target(7)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ldc(1),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpBlt, il.Target(3)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpRet, nil),
	)
}

func TestBuild_Diamond(t *testing.T) {
	g := build(t, diamond())
	if g.Len() != 4 {
		t.Fatalf("got %d blocks, want 4", g.Len())
	}
	head, then, els, join := g.Block(0), g.Block(3), g.Block(6), g.Block(8)
	if head.Flow != il.FlowCondBranch {
		t.Fatalf("head flow = %v", head.Flow)
	}
	if head.Succ(EdgeTrue) != els || head.Succ(EdgeFalse) != then {
		t.Errorf("branch edges: true=%v false=%v", head.Succ(EdgeTrue), head.Succ(EdgeFalse))
	}
	if got := hir.Dump(head.Cond(), hir.CSharp); got != "x <= 0" {
		t.Errorf("cond = %q", got)
	}
	expectCode(t, then, "j = 1")
	expectCode(t, els, "j = 0")
	expectCode(t, join, "return j;")
	if len(join.Preds) != 2 {
		t.Errorf("join has %d preds", len(join.Preds))
	}
	if join.Idom != head || head.Ipdom != join {
		t.Errorf("idom(join) = %v, ipdom(head) = %v", join.Idom, head.Ipdom)
	}
	if !Dominates(head, els) || Dominates(then, join) {
		t.Error("dominance relation is wrong")
	}
	if !PostDominates(join, then) {
		t.Error("join should post-dominate the then arm")
	}
	if len(g.BackEdges()) != 0 || len(g.Loops) != 0 {
		t.Errorf("acyclic graph reports loops: %v", g.Loops)
	}
}

func TestBuild_NaturalLoop(t *testing.T) {
	g := build(t, counting())
	body, header, exit := g.Block(3), g.Block(7), g.Block(10)
	if header == nil || body == nil || exit == nil {
		t.Fatal("missing blocks")
	}
	back := g.BackEdges()
	if len(back) != 1 || back[0].From != body || back[0].To != header {
		t.Fatalf("back edges = %v", back)
	}
	if len(g.Loops) != 1 {
		t.Fatalf("got %d loops", len(g.Loops))
	}
	l := g.LoopAt(header)
	if l == nil || !l.Contains(body) || !l.Contains(header) || l.Contains(exit) {
		t.Fatalf("loop = %+v", l)
	}
	if g.LoopOf(body) != l || g.LoopOf(exit) != nil {
		t.Error("LoopOf does not match the loop body")
	}
	if header.Idom != g.Entry {
		t.Errorf("idom(header) = %v", header.Idom)
	}
}

func TestBuild_StackMismatch(t *testing.T) {
	m := method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpBrtrue, il.Target(3)),
		ldc(1),
		ldc(5),
		ins(il.OpRet, nil),
	)
	_, err := Build(m, reconstruct.NewSymbols(m, true), nil)
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind != errors.KindStackMismatch {
		t.Fatalf("expected stack mismatch, got %v", err)
	}
	if e.Offset != 3 {
		t.Errorf("offset = %d, want 3", e.Offset)
	}
}

func TestBuild_CatchHandler(t *testing.T) {
	exc := &types.Class{Name: "Exception"}
	m := method(
		ins(il.OpNop, nil),
		ins(il.OpLeave, il.Target(4)),
		ins(il.OpPop, nil),
		ins(il.OpLeave, il.Target(4)),
		ldc(0),
		ins(il.OpRet, nil),
	)
	m.Regions = []il.ExceptionRegion{{
		Kind: il.RegionCatch, CatchType: exc,
		TryStart: 0, TryEnd: 2, HandlerStart: 2, HandlerEnd: 4,
	}}
	g := build(t, m)
	if len(g.Guards) != 1 || len(g.Guards[0].Handlers) != 1 {
		t.Fatalf("guards = %+v", g.Guards)
	}
	gd := g.Guards[0]
	h := gd.Handlers[0]
	if gd.Entry != g.Block(0) || h.Entry != g.Block(2) {
		t.Fatalf("guard entry %v, handler entry %v", gd.Entry, h.Entry)
	}
	if len(h.Entry.Entry) != 1 {
		t.Errorf("catch entry expects %d values, want 1", len(h.Entry.Entry))
	}
	if gd.Entry.Succ(EdgeHandler) != h.Entry {
		t.Error("missing handler edge")
	}
	if !g.IsHandlerEntry(h.Entry) || g.IsHandlerEntry(g.Block(4)) {
		t.Error("IsHandlerEntry")
	}
	if g.Block(0).Region.Kind != RegionTry || h.Entry.Region.Kind != RegionCatch || g.Block(4).Region != g.Root {
		t.Errorf("regions: %v %v %v", g.Block(0).Region, h.Entry.Region, g.Block(4).Region)
	}
	if h.Entry.Idom != gd.Entry {
		t.Errorf("idom(catch) = %v", h.Entry.Idom)
	}
}

func TestBuild_ResidueCarriedAcrossBlocks(t *testing.T) {
	// j = x != 0 ? 1 : 2 in its raw form: each arm leaves one value.
	m := method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpBrtrue, il.Target(4)),
		ldc(2),
		ins(il.OpBr, il.Target(5)),
		ldc(1),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	)
	g := build(t, m)
	join := g.Block(5)
	if len(join.Entry) != 1 {
		t.Fatalf("join entry = %d values", len(join.Entry))
	}
	if r := g.Block(2).Residue(); len(r) != 1 || hir.Dump(r[0], hir.CSharp) != "2" {
		t.Errorf("residue = %v", r)
	}
	if g.Block(2).Empty() {
		t.Error("a block that pushes a value is not empty")
	}
	if g.BlockOf(join.Code.Child(0)) != join {
		t.Error("BlockOf")
	}
}

func TestIndex_RemoveSoleWriter(t *testing.T) {
	g := build(t, diamond())
	j := g.Symbols.Locals[1]
	ix := g.Index()
	writes := 0
	for _, u := range ix.UsagesOf(j) {
		if u.Write {
			writes++
		}
	}
	if writes != 2 {
		t.Fatalf("got %d writes of j, want 2", writes)
	}
	g.Remove(g.Block(3).Code.Child(0))
	g.Remove(g.Block(6).Code.Child(0))
	for _, u := range g.Index().UsagesOf(j) {
		if u.Write {
			t.Errorf("stale write %s", hir.Dump(u.Stmt, hir.CSharp))
		}
	}
	if g.Block(3).Code.Len() != 0 {
		t.Error("statement still attached")
	}
}

func TestIndex_InsertKeepsOrder(t *testing.T) {
	g := build(t, diamond())
	ix := g.Index()
	anchor := g.Block(3).Code.Child(0)
	before, _ := ix.Key(anchor)
	next, _ := ix.Key(g.Block(6).Code.Child(0))

	s := hir.NewAssign(hir.NewRef(g.Symbols.Locals[0]), hir.NewConst(int32(9), i32))
	g.InsertAfter(anchor, s)
	k, ok := ix.Key(s)
	if !ok || k <= before || k >= next {
		t.Fatalf("key %v not strictly between %v and %v", k, before, next)
	}
	if got := ix.Between(before, next); len(got) != 1 || got[0] != hir.Node(s) {
		t.Errorf("Between = %v", got)
	}
	w := ix.Writes(hir.NewRef(g.Symbols.Locals[0]))
	if len(w) != 1 || w[0].Stmt != hir.Node(s) {
		t.Errorf("writes of i = %v", w)
	}

	s2 := hir.NewEval(hir.NewRef(g.Symbols.Locals[0]))
	g.InsertBefore(s, s2)
	k2, _ := ix.Key(s2)
	if k2 <= before || k2 >= k {
		t.Errorf("key %v not strictly between %v and %v", k2, before, k)
	}
}

func TestIndex_ReplaceKeepsKey(t *testing.T) {
	g := build(t, diamond())
	ix := g.Index()
	s := g.Block(3).Code.Child(0).(*hir.Assign)
	k, _ := ix.Key(s)
	g.Replace(s.Rhs(), hir.NewRef(g.Symbols.Params[0]))
	if k2, ok := ix.Key(s); !ok || k2 != k {
		t.Errorf("key changed from %v to %v", k, k2)
	}
	if r := ix.Reads(hir.NewRef(g.Symbols.Params[0])); len(r) != 2 {
		t.Errorf("reads of x = %d, want 2", len(r))
	}
}

func TestIdioms_PostIncrement(t *testing.T) {
	m := method(
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpDup, nil),
		ldc(1),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpStloc, il.LocalIndex(1)),
		ldc(0),
		ins(il.OpRet, nil),
	)
	g := build(t, m)
	if n := RecoverIncrements(g); n != 1 {
		t.Fatalf("recovered %d sites", n)
	}
	expectCode(t, g.Entry, "j = i++", "return 0;")
}

func TestIdioms_Compound(t *testing.T) {
	m := method(
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ldc(1),
		ins(il.OpSub, nil),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpRet, nil),
	)
	g := build(t, m)
	if n := RecoverCompound(g); n != 2 {
		t.Fatalf("recovered %d sites", n)
	}
	expectCode(t, g.Entry, "i += x", "j--", "return i;")
}

func TestIdioms_InlineTemps(t *testing.T) {
	c := &types.Class{Name: "C"}
	f := &types.Method{Declaring: c, Name: "F", Static: true, Result: i32}
	g := build(t, method(ins(il.OpLdarg, il.ParamIndex(0)), ins(il.OpRet, nil)))

	tmp := g.Symbols.Temp(i32)
	ret := g.Entry.Code.Child(0).(*hir.Return)
	g.InsertBefore(ret, hir.NewAssign(hir.NewRef(tmp), hir.NewApply(hir.NewMethodRef(f, false))))
	g.Replace(ret.Value(), hir.NewRef(tmp))
	expectCode(t, g.Entry, "$t0 = C.F()", "return $t0;")

	if n := InlineTemps(g); n != 1 {
		t.Fatalf("inlined %d temps", n)
	}
	expectCode(t, g.Entry, "return C.F();")
}

func TestIdioms_InlineTempsKeepsCallOrder(t *testing.T) {
	c := &types.Class{Name: "C"}
	f := &types.Method{Declaring: c, Name: "F", Static: true, Result: i32}
	gm := &types.Method{Declaring: c, Name: "G", Static: true, Result: types.Typ[types.Void]}
	m := method(
		ins(il.OpCall, f),
		ins(il.OpCall, gm),
		ins(il.OpStloc, il.LocalIndex(0)),
		ldc(0),
		ins(il.OpRet, nil),
	)
	g := build(t, m)
	if n := InlineTemps(g); n != 0 {
		t.Fatalf("inlined %d temps across a call", n)
	}
	expectCode(t, g.Entry, "$t0 = C.F()", "C.G();", "i = $t0", "return 0;")
}

func TestIdioms_CollectionInitializer(t *testing.T) {
	list := &types.Class{Name: "List"}
	ctor := &types.Method{Declaring: list, Name: ".ctor", Ctor: true}
	add := &types.Method{Declaring: list, Name: "Add", Params: []types.Type{i32}}
	m := method(
		ins(il.OpNewobj, ctor),
		ins(il.OpDup, nil),
		ldc(1),
		ins(il.OpCallvirt, add),
		ins(il.OpDup, nil),
		ldc(2),
		ins(il.OpCallvirt, add),
		ins(il.OpStloc, il.LocalIndex(0)),
		ldc(0),
		ins(il.OpRet, nil),
	)
	m.Locals[0].Type = list
	g := build(t, m)
	if n := RecoverInitializers(g); n != 1 {
		t.Fatalf("recovered %d initializers from %q", n, code(g.Entry))
	}
	expectCode(t, g.Entry, "i = new List() { 1, 2 }", "return 0;")
}

func TestMerge_StraightLine(t *testing.T) {
	m := method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpBr, il.Target(3)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpRet, nil),
	)
	g := build(t, m)
	if g.Len() != 2 {
		t.Fatalf("got %d blocks", g.Len())
	}
	g.Merge(g.Entry, g.Block(3))
	if g.Len() != 1 || g.Entry.Flow != il.FlowReturn || len(g.Entry.Succs) != 0 {
		t.Fatalf("merge left %d blocks, flow %v", g.Len(), g.Entry.Flow)
	}
	expectCode(t, g.Entry, "i = x", "return i;")
}

func TestMerge_RejectsJoin(t *testing.T) {
	g := build(t, diamond())
	defer func() {
		if recover() == nil {
			t.Error("merging a join block should panic")
		}
	}()
	g.Merge(g.Block(3), g.Block(8))
}

func TestTree_LabelsEveryBlock(t *testing.T) {
	g := build(t, diamond())
	out := hir.Dump(g.Tree(), hir.CSharp)
	for _, b := range g.Blocks {
		if !strings.Contains(out, b.Label()+":") {
			t.Errorf("missing label %s in\n%s", b.Label(), out)
		}
	}
	if !strings.Contains(out, "goto IL_0006") {
		t.Errorf("missing branch in\n%s", out)
	}
}

func TestBlockSet(t *testing.T) {
	s := NewBlockSet(4)
	s.Add(1)
	s.Add(130)
	if !s.Has(1) || !s.Has(130) || s.Has(2) || s.Has(-1) {
		t.Error("membership")
	}
	o := NewBlockSet(0)
	o.Add(2)
	s.Union(o)
	if got := s.IDs(); len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 130 {
		t.Errorf("IDs = %v", got)
	}
	s.Remove(130)
	if s.Len() != 2 {
		t.Errorf("Len = %d", s.Len())
	}
	var nilSet *BlockSet
	if nilSet.Has(0) {
		t.Error("nil set has members")
	}
}
