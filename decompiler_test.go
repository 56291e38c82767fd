package decompiler

import (
	"strings"
	"testing"

	"github.com/wippyai/decompiler/domain"
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/listing"
	"github.com/wippyai/decompiler/passes"
	"github.com/wippyai/decompiler/reconstruct"
)

// if (x > 0) y = 1; else y = 0; return y;
const ifElseListing = `
name: Sign
declaring_type: Calc
static: true
returns: int32
params:
  - {name: x, type: int32}
locals:
  - {name: i, type: int32}
  - {name: y, type: int32}
body:
  - {offset: 0, op: ldarg, arg: 0}
  - {offset: 1, op: ldc, value: 0, type: int32}
  - {offset: 2, op: ble, target: 6}
  - {offset: 3, op: ldc, value: 1, type: int32}
  - {offset: 4, op: stloc, local: 1}
  - {offset: 5, op: br, target: 8}
  - {offset: 6, op: ldc, value: 0, type: int32}
  - {offset: 7, op: stloc, local: 1}
  - {offset: 8, op: ldloc, local: 1}
  - {offset: 9, op: ret}
`

// i = 0; while (i < x) i = i + 1; return i;
const countListing = `
name: Count
static: true
returns: int32
params:
  - {name: x, type: int32}
locals:
  - {name: i, type: int32}
body:
  - {offset: 0, op: ldc, value: 0, type: int32}
  - {offset: 1, op: stloc, local: 0}
  - {offset: 2, op: br, target: 7}
  - {offset: 3, op: ldloc, local: 0}
  - {offset: 4, op: ldc, value: 1, type: int32}
  - {offset: 5, op: add}
  - {offset: 6, op: stloc, local: 0}
  - {offset: 7, op: ldloc, local: 0}
  - {offset: 8, op: ldarg, arg: 0}
  - {offset: 9, op: blt, target: 3}
  - {offset: 10, op: ldloc, local: 0}
  - {offset: 11, op: ret}
`

func load(t *testing.T, src string) *il.Method {
	t.Helper()
	d, err := listing.ParseYAML(src)
	if err != nil {
		t.Fatal(err)
	}
	m, err := d.Method(nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func dump(n hir.Node) string { return hir.Dump(n, hir.CSharp) }

func newDomain() *domain.Domain { return domain.New(domain.DefaultSemantics()) }

func TestDecompile_IfElse(t *testing.T) {
	fn, err := DecompileIn(newDomain(), load(t, ifElseListing))
	if err != nil {
		t.Fatal(err)
	}
	body := fn.Body()
	if body.Len() != 2 {
		t.Fatalf("got\n%s", dump(fn))
	}
	x, ok := body.Child(0).(*hir.If)
	if !ok {
		t.Fatalf("first statement is %s", body.Child(0).Kind())
	}
	if got := dump(x.Test()); got != "x > 0" {
		t.Errorf("test = %q", got)
	}
	if x.IfTrue().Len() != 1 || dump(x.IfTrue().Child(0)) != "y = 1" {
		t.Errorf("then = %s", dump(x.IfTrue()))
	}
	if x.IfFalse() == nil || x.IfFalse().Len() != 1 || dump(x.IfFalse().Child(0)) != "y = 0" {
		t.Errorf("else = %s", dump(x.IfFalse()))
	}
	if got := dump(body.Child(1)); got != "return y;" {
		t.Errorf("tail = %q", got)
	}
	if fn.Name != "Sign" || fn.Sig == nil || len(fn.Sig.Params) != 1 {
		t.Errorf("signature = %v", fn.Sig)
	}
}

func TestDecompile_CloneIsEquivalent(t *testing.T) {
	fn, err := DecompileIn(newDomain(), load(t, ifElseListing))
	if err != nil {
		t.Fatal(err)
	}
	if !hir.Equiv(fn, hir.Clone(fn)) {
		t.Error("clone of the result is not equivalent")
	}
}

func TestDecompile_ForLoop(t *testing.T) {
	fn, err := DecompileIn(newDomain(), load(t, countListing))
	if err != nil {
		t.Fatal(err)
	}
	lp := hir.Find(fn, func(n hir.Node) bool { return n.Kind() == hir.KindLoop })
	if lp == nil {
		t.Fatalf("no loop in\n%s", dump(fn))
	}
	if got := dump(lp); !strings.HasPrefix(got, "for (i = 0; i < x; ") {
		t.Errorf("loop =\n%s", got)
	}
}

func TestDecompile_NoDebugInfo(t *testing.T) {
	d := domain.New(domain.Semantics{Language: hir.CSharp})
	fn, err := DecompileIn(d, load(t, ifElseListing))
	if err != nil {
		t.Fatal(err)
	}
	x := fn.Body().Child(0).(*hir.If)
	if got := dump(x.Test()); got != "arg0 > 0" {
		t.Errorf("test = %q", got)
	}
	if got := dump(fn.Body().Child(1)); got != "return loc1;" {
		t.Errorf("tail = %q", got)
	}
}

func TestDecompile_VBDump(t *testing.T) {
	fn, err := DecompileIn(newDomain(), load(t, ifElseListing))
	if err != nil {
		t.Fatal(err)
	}
	x := fn.Body().Child(0).(*hir.If)
	x.SetTest(hir.Unary(hir.OpNot, hir.Detach(x.Test())))
	if got := hir.Dump(x.Test(), hir.VB); !strings.HasPrefix(got, "Not ") {
		t.Errorf("vb test = %q", got)
	}
}

func TestDecompile_MethodCache(t *testing.T) {
	d := newDomain()
	m := load(t, ifElseListing)
	a, err := DecompileIn(d, m)
	if err != nil {
		t.Fatal(err)
	}
	b, err := DecompileIn(d, m)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second call did not hit the method cache")
	}
	c, err := DecompileIn(newDomain(), m)
	if err != nil {
		t.Fatal(err)
	}
	if c == a {
		t.Error("domains share a method cache")
	}
}

func TestDecompile_FailureNotCached(t *testing.T) {
	d := newDomain()
	m := &il.Method{Name: "Empty"}
	if _, err := DecompileIn(d, m); err == nil {
		t.Fatal("expected error for empty body")
	}
	if _, ok := d.Method(m.Key()); ok {
		t.Error("failed method was cached")
	}
}

func TestDecompile_CurrentDomainNesting(t *testing.T) {
	outer, inner := newDomain(), newDomain()
	before := Current()
	var seen []*domain.Domain

	dc, err := New(&Config{OnStage: func(stage string, _ *hir.Block) {
		if stage != StageStructure {
			return
		}
		seen = append(seen, Current())
		if Current() == outer {
			if _, err := DecompileIn(inner, load(t, countListing)); err != nil {
				t.Error(err)
			}
			seen = append(seen, Current())
		}
	}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dc.DecompileIn(outer, load(t, ifElseListing)); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != outer || seen[1] != outer {
		t.Errorf("domains seen = %v", seen)
	}
	if Current() != before {
		t.Error("current domain not restored")
	}
	if _, ok := inner.Method("Count(int32)"); !ok {
		t.Error("nested call did not use its own domain")
	}
}

func TestDecompile_PanicRestoresDomain(t *testing.T) {
	reg := reconstruct.DefaultRegistry()
	reg.RegisterFunc(il.OpLdarg, func(*reconstruct.Context, il.Instruction) error {
		panic(errors.Assertion(errors.PhaseReconstruct, "boom"))
	}, "ldarg")
	dc, err := New(&Config{Registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	before := Current()
	d := newDomain()
	_, err = dc.DecompileIn(d, load(t, ifElseListing))
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind != errors.KindAssertion {
		t.Fatalf("err = %v", err)
	}
	if Current() != before {
		t.Error("current domain not restored after panic")
	}
}

func TestDecompile_StagesAndDisabledPasses(t *testing.T) {
	var stages []string
	dc, err := New(&Config{
		Passes:  []string{passes.SimplifyBooleans},
		OnStage: func(stage string, _ *hir.Block) { stages = append(stages, stage) },
	})
	if err != nil {
		t.Fatal(err)
	}
	fn, err := dc.DecompileIn(newDomain(), load(t, ifElseListing))
	if err != nil {
		t.Fatal(err)
	}
	var want []string
	for _, s := range Stages() {
		if s != passes.SimplifyBooleans {
			want = append(want, s)
		}
	}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Errorf("stages = %v, want %v", stages, want)
	}
	x := fn.Body().Child(0).(*hir.If)
	if got := dump(x.Test()); got != "!(x <= 0)" {
		t.Errorf("test without simplification = %q", got)
	}
}

func TestNew_UnknownPass(t *testing.T) {
	if _, err := New(&Config{Passes: []string{"restore-nothing"}}); err == nil {
		t.Error("expected error")
	}
}

func TestNewFromDomainConfig(t *testing.T) {
	c, err := domain.ParseConfig([]byte(`
[semantics]
language = "vb"
debug_info = false

[passes]
disable = ["restore-type-is"]
`))
	if err != nil {
		t.Fatal(err)
	}
	dc, d, err := NewFromDomainConfig(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Semantics.Language != hir.VB || d.Semantics.LoadDebugInfo {
		t.Errorf("semantics = %+v", d.Semantics)
	}
	if !dc.runner.Disabled[passes.TypeIs] {
		t.Error("pass not disabled")
	}
}

func TestDecompile_UsesCurrentDomain(t *testing.T) {
	d := newDomain()
	m := load(t, ifElseListing)
	err := WithDomain(d, func() error {
		_, err := Decompile(m)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Method(m.Key()); !ok {
		t.Error("Decompile ignored the pushed domain")
	}
}

// while (x > 0) x = x - 1; return x; with the loop header at offset 0
const countdownListing = `
name: Countdown
static: true
returns: int32
params:
  - {name: x, type: int32}
body:
  - {offset: 0, op: ldarg, arg: 0}
  - {offset: 1, op: ldc, value: 0, type: int32}
  - {offset: 2, op: ble, target: 8}
  - {offset: 3, op: ldarg, arg: 0}
  - {offset: 4, op: ldc, value: 1, type: int32}
  - {offset: 5, op: sub}
  - {offset: 6, op: starg, arg: 0}
  - {offset: 7, op: br, target: 0}
  - {offset: 8, op: ldarg, arg: 0}
  - {offset: 9, op: ret}
`

// for (;;) { i = i + 1; if (i > x) break; j = j + 1; } return j;
const endlessListing = `
name: Endless
static: true
returns: int32
params:
  - {name: x, type: int32}
locals:
  - {name: i, type: int32}
  - {name: j, type: int32}
body:
  - {offset: 0, op: ldloc, local: 0}
  - {offset: 1, op: ldc, value: 1, type: int32}
  - {offset: 2, op: add}
  - {offset: 3, op: stloc, local: 0}
  - {offset: 4, op: ldloc, local: 0}
  - {offset: 5, op: ldarg, arg: 0}
  - {offset: 6, op: bgt, target: 12}
  - {offset: 7, op: ldloc, local: 1}
  - {offset: 8, op: ldc, value: 1, type: int32}
  - {offset: 9, op: add}
  - {offset: 10, op: stloc, local: 1}
  - {offset: 11, op: br, target: 0}
  - {offset: 12, op: ldloc, local: 1}
  - {offset: 13, op: ret}
`

func countKind(root hir.Node, kind hir.NodeKind) int {
	n := 0
	hir.Walk(root, func(x hir.Node) bool {
		if x.Kind() == kind {
			n++
		}
		return true
	})
	return n
}

func TestDecompile_EntryBlockLoops(t *testing.T) {
	t.Run("while", func(t *testing.T) {
		fn, err := DecompileIn(newDomain(), load(t, countdownListing))
		if err != nil {
			t.Fatal(err)
		}
		body := fn.Body()
		if body.Len() != 2 || countKind(fn, hir.KindLoop) != 1 || countKind(fn, hir.KindGoto) != 0 {
			t.Fatalf("got\n%s", dump(fn))
		}
		lp, ok := body.Child(0).(*hir.Loop)
		if !ok || lp.IsDoWhile {
			t.Fatalf("got\n%s", dump(fn))
		}
		if got := dump(lp.Test()); got != "x > 0" {
			t.Errorf("test = %q", got)
		}
		if lp.Body().Len() != 1 {
			t.Fatalf("body:\n%s", dump(lp.Body()))
		}
		if got := dump(lp.Body().Child(0)); got != "x--" && got != "x -= 1" {
			t.Errorf("body statement = %q", got)
		}
		if got := dump(body.Child(1)); got != "return x;" {
			t.Errorf("tail = %q", got)
		}
	})

	t.Run("endless", func(t *testing.T) {
		fn, err := DecompileIn(newDomain(), load(t, endlessListing))
		if err != nil {
			t.Fatal(err)
		}
		body := fn.Body()
		if body.Len() != 2 {
			t.Fatalf("got\n%s", dump(fn))
		}
		lp, ok := body.Child(0).(*hir.Loop)
		if !ok || lp.Test() != nil {
			t.Fatalf("got\n%s", dump(fn))
		}
		if countKind(lp, hir.KindBreak) != 1 || countKind(fn, hir.KindGoto) != 0 {
			t.Errorf("got\n%s", dump(fn))
		}
		if got := dump(lp.Body().Child(0)); got != "i++" {
			t.Errorf("first loop statement = %q, want the increment of i", got)
		}
		if got := dump(body.Child(1)); got != "return j;" {
			t.Errorf("tail = %q", got)
		}
	})
}
