package structure

import (
	"strings"
	"testing"

	"github.com/wippyai/decompiler/cfg"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/reconstruct"
	"github.com/wippyai/decompiler/types"
)

var i32 = types.Typ[types.Int32]

func ins(op il.Opcode, operand any) il.Instruction {
	return il.Instruction{Op: op, Operand: operand}
}

func ldc(v int32) il.Instruction { return ins(il.OpLdc, il.Const{Value: v, Type: i32}) }

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

// structure runs the graph stages on m and returns the tree.
func structure(t *testing.T, m *il.Method) *hir.Block {
	t.Helper()
	g, err := cfg.Build(m, reconstruct.NewSymbols(m, true), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Prepare(g); err != nil {
		t.Fatal(err)
	}
	cfg.RunIdioms(g)
	root, err := Structure(g)
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func dump(n hir.Node) string { return hir.Dump(n, hir.CSharp) }

func expectStmts(t *testing.T, b *hir.Block, want ...string) {
	t.Helper()
	if b.Len() != len(want) {
		t.Fatalf("got %d statements, want %d:\n%s", b.Len(), len(want), dump(b))
	}
	for i, w := range want {
		if got := dump(b.Child(i)); got != w {
			t.Errorf("stmt %d: got %q, want %q", i, got, w)
		}
	}
}

func count(root hir.Node, kind hir.NodeKind) int {
	n := 0
	hir.Walk(root, func(x hir.Node) bool {
		if x.Kind() == kind {
			n++
		}
		return true
	})
	return n
}

func TestStructure_IfElse(t *testing.T) {
	// if (x > 0) j = 1; else j = 0; return j;
	root := structure(t, method(
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
	))
	if root.Len() != 2 {
		t.Fatalf("got\n%s", dump(root))
	}
	x, ok := root.Child(0).(*hir.If)
	if !ok {
		t.Fatalf("first statement is %s", root.Child(0).Kind())
	}
	if got := dump(x.Test()); got != "!(x <= 0)" {
		t.Errorf("test = %q", got)
	}
	expectStmts(t, x.IfTrue(), "j = 1")
	expectStmts(t, x.IfFalse(), "j = 0")
	if got := dump(root.Child(1)); got != "return j;" {
		t.Errorf("tail = %q", got)
	}
	if ls := root.Locals(); len(ls) != 1 || ls[0].Name() != "j" {
		t.Errorf("locals = %v", ls)
	}
	if n := count(root, hir.KindLabel); n != 0 {
		t.Errorf("%d labels left", n)
	}
}

func TestStructure_WhileLoop(t *testing.T) {
	// i = 0; while (i < x) i = i + 1; return i;
	root := structure(t, method(
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
	))
	if root.Len() != 3 || count(root, hir.KindLoop) != 1 {
		t.Fatalf("got\n%s", dump(root))
	}
	lp := root.Child(1).(*hir.Loop)
	if lp.IsDoWhile {
		t.Error("pretest loop emitted as do-while")
	}
	if got := dump(lp.Test()); got != "i < x" {
		t.Errorf("test = %q", got)
	}
	if lp.Body().Len() != 1 {
		t.Errorf("body:\n%s", dump(lp.Body()))
	}
	if count(root, hir.KindContinue) != 0 {
		t.Error("trailing continue kept")
	}
}

func TestStructure_DoWhile(t *testing.T) {
	// i = 0; do i = i + 1; while (i < x); return i;
	root := structure(t, method(
		ldc(0),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ldc(1),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpBlt, il.Target(2)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpRet, nil),
	))
	if root.Len() != 3 {
		t.Fatalf("got\n%s", dump(root))
	}
	lp, ok := root.Child(1).(*hir.Loop)
	if !ok || !lp.IsDoWhile {
		t.Fatalf("got\n%s", dump(root))
	}
	if got := dump(lp.Test()); got != "i < x" {
		t.Errorf("test = %q", got)
	}
}

func TestStructure_EndlessLoopWithBreak(t *testing.T) {
	// for (;;) { i = i + 1; if (i > x) break; j = j + 1; } return j;
	root := structure(t, method(
		ins(il.OpLdloc, il.LocalIndex(0)),
		ldc(1),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpBgt, il.Target(12)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ldc(1),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpBr, il.Target(0)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	))
	if root.Len() != 2 {
		t.Fatalf("got\n%s", dump(root))
	}
	lp, ok := root.Child(0).(*hir.Loop)
	if !ok || lp.Test() != nil {
		t.Fatalf("got\n%s", dump(root))
	}
	if count(lp, hir.KindBreak) != 1 || count(root, hir.KindGoto) != 0 {
		t.Errorf("got\n%s", dump(root))
	}
	if lp.Body().Len() == 0 || !strings.HasPrefix(dump(lp.Body().Child(0)), "i") {
		t.Errorf("loop body does not start with the increment:\n%s", dump(lp))
	}
	if got := dump(root.Child(1)); got != "return j;" {
		t.Errorf("tail = %q", got)
	}
}

func TestStructure_WhileAtEntry(t *testing.T) {
	// while (x > 0) x = x - 1; return x;
	root := structure(t, method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ldc(0),
		ins(il.OpBle, il.Target(8)),
		ins(il.OpLdarg, il.ParamIndex(0)),
		ldc(1),
		ins(il.OpSub, nil),
		ins(il.OpStarg, il.ParamIndex(0)),
		ins(il.OpBr, il.Target(0)),
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpRet, nil),
	))
	if root.Len() != 2 || count(root, hir.KindGoto) != 0 {
		t.Fatalf("got\n%s", dump(root))
	}
	lp, ok := root.Child(0).(*hir.Loop)
	if !ok || lp.Test() == nil || lp.IsDoWhile {
		t.Fatalf("got\n%s", dump(root))
	}
	if lp.Body().Len() != 1 {
		t.Errorf("body:\n%s", dump(lp.Body()))
	}
	if got := dump(root.Child(1)); got != "return x;" {
		t.Errorf("tail = %q", got)
	}
}

func TestStructure_Ternary(t *testing.T) {
	// j = x != 0 ? 1 : 2 in its raw form: each arm leaves one value.
	root := structure(t, method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpBrtrue, il.Target(4)),
		ldc(2),
		ins(il.OpBr, il.Target(5)),
		ldc(1),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	))
	expectStmts(t, root, "j = x ? 1 : 2", "return j;")
}

func TestStructure_ShortCircuit(t *testing.T) {
	// if (x > 0 && x < 10) j = 1; return j;
	root := structure(t, method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ldc(0),
		ins(il.OpBle, il.Target(9)),
		ins(il.OpLdarg, il.ParamIndex(0)),
		ldc(10),
		ins(il.OpBge, il.Target(9)),
		ldc(1),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpNop, nil),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	))
	if root.Len() != 2 || count(root, hir.KindIf) != 1 {
		t.Fatalf("got\n%s", dump(root))
	}
	x := root.Child(0).(*hir.If)
	if got := dump(x.Test()); got != "!(x <= 0 || x >= 10)" {
		t.Errorf("test = %q", got)
	}
	if x.IfFalse() != nil {
		t.Error("unexpected else arm")
	}
	expectStmts(t, x.IfTrue(), "j = 1")
}

func TestStructure_TryCatch(t *testing.T) {
	// try { } catch (Exception e) { j = 1; } return j;
	exc := &types.Class{Name: "Exception"}
	m := method(
		ins(il.OpNop, nil),
		ins(il.OpLeave, il.Target(6)),
		ins(il.OpStloc, il.LocalIndex(2)),
		ldc(1),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpLeave, il.Target(6)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	)
	m.Locals = append(m.Locals, il.Variable{Name: "e", Type: exc})
	m.Regions = []il.ExceptionRegion{{
		Kind: il.RegionCatch, CatchType: exc,
		TryStart: 0, TryEnd: 2, HandlerStart: 2, HandlerEnd: 6,
	}}
	root := structure(t, m)
	if root.Len() != 2 {
		t.Fatalf("got\n%s", dump(root))
	}
	tr, ok := root.Child(0).(*hir.Try)
	if !ok {
		t.Fatalf("got\n%s", dump(root))
	}
	cs := tr.Catches()
	if len(cs) != 1 || cs[0].ExceptionType != exc {
		t.Fatalf("catches = %v", cs)
	}
	if cs[0].Var == nil || cs[0].Var.Name() != "e" {
		t.Errorf("catch variable = %v", cs[0].Var)
	}
	expectStmts(t, cs[0].Body(), "j = 1")
	for _, l := range root.Locals() {
		if l.Name() == "e" {
			t.Error("catch variable declared in the method body")
		}
	}
}

func TestStructure_CatchIgnoringException(t *testing.T) {
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
	root := structure(t, m)
	tr, ok := root.Child(0).(*hir.Try)
	if !ok {
		t.Fatalf("got\n%s", dump(root))
	}
	if c := tr.Catches()[0]; c.Var != nil || c.Body().Len() != 0 {
		t.Errorf("catch = %s", dump(tr))
	}
	if got := dump(root.Child(1)); got != "return 0;" {
		t.Errorf("tail = %q", got)
	}
}

func TestStructure_Switch(t *testing.T) {
	// switch (x) { case 0: j = 1; break; case 1: j = 2; break; default: j = 0; }
	root := structure(t, method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpSwitch, []il.Target{5, 8}),
		ldc(0),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpBr, il.Target(10)),
		ldc(1),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpBr, il.Target(10)),
		ldc(2),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	))
	if count(root, hir.KindGoto) != 0 || count(root, hir.KindIf) != 2 {
		t.Fatalf("got\n%s", dump(root))
	}
	x := root.Child(0).(*hir.If)
	if got := dump(x.Test()); got != "x == 0" {
		t.Errorf("first test = %q", got)
	}
	expectStmts(t, x.IfTrue(), "j = 1")
	if got := dump(root.Child(root.Len() - 1)); got != "return j;" {
		t.Errorf("tail = %q", got)
	}
}

func TestStructure_IrreducibleFallsBackToGoto(t *testing.T) {
	// Two entries into the cycle between IL_0002 and IL_0006.
	root := structure(t, method(
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpBrtrue, il.Target(6)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ldc(1),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ldc(1),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ldc(10),
		ins(il.OpBlt, il.Target(2)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpRet, nil),
	))
	if n := count(root, hir.KindGoto); n != 1 {
		t.Fatalf("%d gotos in\n%s", n, dump(root))
	}
	label := hir.Find(root, func(n hir.Node) bool { return n.Kind() == hir.KindLabel })
	if label == nil || label.(*hir.Label).Name != "IL_0002" {
		t.Errorf("goto target label missing in\n%s", dump(root))
	}
}

func TestTidy_FlattensElseAfterJump(t *testing.T) {
	c := hir.NewLocal("c", types.Typ[types.Bool])
	j := hir.NewLocal("j", i32)
	root := hir.NewBlock(
		hir.NewIf(hir.NewRef(c),
			hir.NewBlock(hir.NewReturn(hir.NewConst(int32(1), i32))),
			hir.NewBlock(hir.NewAssign(hir.NewRef(j), hir.NewConst(int32(0), i32)))),
		hir.NewReturn(hir.NewRef(j)),
	)
	Tidy(root)
	expectStmts(t, root, "if (c) {\n    return 1;\n}", "j = 0", "return j;")
	if len(root.Locals()) != 2 {
		t.Errorf("locals = %v", root.Locals())
	}
}

func TestTidy_EmptyThenArm(t *testing.T) {
	c := hir.NewLocal("c", types.Typ[types.Bool])
	j := hir.NewLocal("j", i32)
	root := hir.NewBlock(
		hir.NewIf(hir.NewRef(c), hir.NewBlock(hir.NewLabel("L")),
			hir.NewBlock(hir.NewAssign(hir.NewRef(j), hir.NewConst(int32(0), i32)))),
	)
	Tidy(root)
	x := root.Child(0).(*hir.If)
	if got := dump(x.Test()); got != "!c" {
		t.Errorf("test = %q", got)
	}
	if x.IfFalse() != nil {
		t.Error("empty else arm kept")
	}
	expectStmts(t, x.IfTrue(), "j = 0")
}

func TestTidy_GotoNextLabel(t *testing.T) {
	c := hir.NewLocal("c", types.Typ[types.Bool])
	root := hir.NewBlock(
		hir.NewIf(hir.NewRef(c), hir.NewBlock(hir.NewEval(hir.NewRef(c)), hir.NewGoto("L")), nil),
		hir.NewLabel("L"),
		hir.NewReturn(nil),
	)
	Tidy(root)
	if count(root, hir.KindGoto) != 0 || count(root, hir.KindLabel) != 0 {
		t.Errorf("got\n%s", dump(root))
	}
	if count(root, hir.KindReturn) != 0 {
		t.Error("trailing void return kept")
	}
}

func TestStructure_TryFinally(t *testing.T) {
	// try { i = 1; } finally { j = 2; } return j;
	for _, kind := range []il.RegionKind{il.RegionFinally, il.RegionFault} {
		m := method(
			ldc(1),
			ins(il.OpStloc, il.LocalIndex(0)),
			ins(il.OpLeave, il.Target(6)),
			ldc(2),
			ins(il.OpStloc, il.LocalIndex(1)),
			ins(il.OpEndfinally, nil),
			ins(il.OpLdloc, il.LocalIndex(1)),
			ins(il.OpRet, nil),
		)
		m.Regions = []il.ExceptionRegion{{
			Kind: kind, TryStart: 0, TryEnd: 3, HandlerStart: 3, HandlerEnd: 6,
		}}
		root := structure(t, m)
		if root.Len() != 2 {
			t.Fatalf("got\n%s", dump(root))
		}
		tr, ok := root.Child(0).(*hir.Try)
		if !ok || len(tr.Catches()) != 0 {
			t.Fatalf("got\n%s", dump(root))
		}
		expectStmts(t, tr.Body(), "i = 1")
		handler, other := tr.Finally(), tr.Fault()
		if kind == il.RegionFault {
			handler, other = other, handler
		}
		if handler == nil || other != nil {
			t.Fatalf("handler missing:\n%s", dump(tr))
		}
		expectStmts(t, handler, "j = 2")
		if got := dump(root.Child(1)); got != "return j;" {
			t.Errorf("tail = %q", got)
		}
	}
}

func TestStructure_TryCatchInsideTryFinally(t *testing.T) {
	// try { try { i = 1; } catch { } j = 3; } finally { j = 2; } return j;
	exc := &types.Class{Name: "Exception"}
	m := method(
		ldc(1),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLeave, il.Target(5)),
		ins(il.OpPop, nil),
		ins(il.OpLeave, il.Target(5)),
		ldc(3),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpLeave, il.Target(11)),
		ldc(2),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpEndfinally, nil),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	)
	m.Regions = []il.ExceptionRegion{
		{Kind: il.RegionCatch, CatchType: exc, TryStart: 0, TryEnd: 3, HandlerStart: 3, HandlerEnd: 5},
		{Kind: il.RegionFinally, TryStart: 0, TryEnd: 8, HandlerStart: 8, HandlerEnd: 11},
	}
	root := structure(t, m)
	if root.Len() != 2 || count(root, hir.KindTry) != 2 {
		t.Fatalf("got\n%s", dump(root))
	}
	outer, ok := root.Child(0).(*hir.Try)
	if !ok || len(outer.Catches()) != 0 || outer.Finally() == nil {
		t.Fatalf("got\n%s", dump(root))
	}
	expectStmts(t, outer.Finally(), "j = 2")
	body := outer.Body()
	if body.Len() != 2 {
		t.Fatalf("outer body:\n%s", dump(body))
	}
	inner, ok := body.Child(0).(*hir.Try)
	if !ok || len(inner.Catches()) != 1 || inner.Finally() != nil {
		t.Fatalf("outer body:\n%s", dump(body))
	}
	expectStmts(t, inner.Body(), "i = 1")
	if got := dump(body.Child(1)); got != "j = 3" {
		t.Errorf("after inner try = %q", got)
	}
}

func TestStructure_TryInsideLoop(t *testing.T) {
	// while (i < x) { try { i = i + 1; } catch { } } return i;
	exc := &types.Class{Name: "Exception"}
	m := method(
		ins(il.OpBr, il.Target(8)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ldc(1),
		ins(il.OpAdd, nil),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLeave, il.Target(8)),
		ins(il.OpPop, nil),
		ins(il.OpLeave, il.Target(8)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpLdarg, il.ParamIndex(0)),
		ins(il.OpBlt, il.Target(1)),
		ins(il.OpLdloc, il.LocalIndex(0)),
		ins(il.OpRet, nil),
	)
	m.Regions = []il.ExceptionRegion{{
		Kind: il.RegionCatch, CatchType: exc,
		TryStart: 1, TryEnd: 6, HandlerStart: 6, HandlerEnd: 8,
	}}
	root := structure(t, m)
	if count(root, hir.KindLoop) != 1 || count(root, hir.KindTry) != 1 || count(root, hir.KindGoto) != 0 {
		t.Fatalf("got\n%s", dump(root))
	}
	var lp, tr hir.Node
	hir.Walk(root, func(n hir.Node) bool {
		switch n.Kind() {
		case hir.KindLoop:
			lp = n
		case hir.KindTry:
			tr = n
		}
		return true
	})
	if !hir.IsAncestor(lp, tr) {
		t.Errorf("try not inside the loop:\n%s", dump(root))
	}
	if len(tr.(*hir.Try).Catches()) != 1 {
		t.Errorf("got\n%s", dump(tr))
	}
	if got := dump(root.Child(root.Len() - 1)); got != "return i;" {
		t.Errorf("tail = %q", got)
	}
}

func TestTidy_MergesTryCatchFinally(t *testing.T) {
	// try { i = 1; } catch { } finally { j = 2; } return j;
	exc := &types.Class{Name: "Exception"}
	m := method(
		ldc(1),
		ins(il.OpStloc, il.LocalIndex(0)),
		ins(il.OpLeave, il.Target(5)),
		ins(il.OpPop, nil),
		ins(il.OpLeave, il.Target(5)),
		ins(il.OpLeave, il.Target(9)),
		ldc(2),
		ins(il.OpStloc, il.LocalIndex(1)),
		ins(il.OpEndfinally, nil),
		ins(il.OpLdloc, il.LocalIndex(1)),
		ins(il.OpRet, nil),
	)
	m.Regions = []il.ExceptionRegion{
		{Kind: il.RegionCatch, CatchType: exc, TryStart: 0, TryEnd: 3, HandlerStart: 3, HandlerEnd: 5},
		{Kind: il.RegionFinally, TryStart: 0, TryEnd: 6, HandlerStart: 6, HandlerEnd: 9},
	}
	root := structure(t, m)
	if root.Len() != 2 || count(root, hir.KindTry) != 1 {
		t.Fatalf("got\n%s", dump(root))
	}
	tr := root.Child(0).(*hir.Try)
	if len(tr.Catches()) != 1 || tr.Finally() == nil {
		t.Fatalf("got\n%s", dump(tr))
	}
	expectStmts(t, tr.Body(), "i = 1")
	expectStmts(t, tr.Finally(), "j = 2")
}
