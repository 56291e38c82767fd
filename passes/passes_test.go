package passes

import (
	"strings"
	"testing"

	"github.com/wippyai/decompiler/domain"
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/types"
)

var (
	i32   = types.Typ[types.Int32]
	boolT = types.Typ[types.Bool]
)

func i32c(v int32) *hir.Const { return hir.NewConst(v, i32) }

func ref(l *hir.Local) *hir.Ref { return hir.NewRef(l) }

// testOf wraps cond in "if (cond) return;" and returns the block and the If.
func testOf(cond hir.Node) (*hir.Block, *hir.If) {
	x := hir.NewIf(cond, hir.NewBlock(hir.NewReturn(nil)), nil)
	return hir.NewBlock(x), x
}

func expr(n hir.Node) string { return hir.Dump(n, hir.CSharp) }

func TestSimplifyBooleans_DeMorgan(t *testing.T) {
	x, y := hir.NewLocal("x", i32), hir.NewLocal("y", i32)
	cond := hir.Unary(hir.OpNot, hir.Binary(hir.OpAndAlso,
		hir.Binary(hir.OpGreaterThan, ref(x), i32c(0)),
		hir.Binary(hir.OpGreaterThan, ref(y), i32c(0))))
	root, ifs := testOf(cond)

	if err := simplifyBooleans(&Context{}, root); err != nil {
		t.Fatal(err)
	}
	if got := expr(ifs.Test()); got != "x <= 0 || y <= 0" {
		t.Errorf("test = %q", got)
	}
}

func TestSimplifyBooleans_DeMorganOr(t *testing.T) {
	a, b := hir.NewLocal("a", boolT), hir.NewLocal("b", boolT)
	root, ifs := testOf(hir.Unary(hir.OpNot, hir.Binary(hir.OpOrElse, ref(a), ref(b))))

	if err := simplifyBooleans(&Context{}, root); err != nil {
		t.Fatal(err)
	}
	if got := expr(ifs.Test()); got != "!a && !b" {
		t.Errorf("test = %q", got)
	}
}

func TestSimplifyBooleans_DoubleNegation(t *testing.T) {
	x := hir.NewLocal("x", i32)
	inner := hir.Binary(hir.OpAdd, ref(x), i32c(1))
	root, ifs := testOf(hir.Unary(hir.OpNot, hir.Unary(hir.OpNot,
		hir.Binary(hir.OpEqual, inner, i32c(3)))))

	if err := simplifyBooleans(&Context{}, root); err != nil {
		t.Fatal(err)
	}
	if got := expr(ifs.Test()); got != "x + 1 == 3" {
		t.Errorf("test = %q", got)
	}
}

func TestSimplifyBooleans_ConstantComparisons(t *testing.T) {
	b := hir.NewLocal("b", boolT)
	cases := []struct {
		op   hir.OpType
		v    bool
		want string
	}{
		{hir.OpEqual, true, "b"},
		{hir.OpEqual, false, "!b"},
		{hir.OpNotEqual, true, "!b"},
		{hir.OpNotEqual, false, "b"},
	}
	for _, tc := range cases {
		root, ifs := testOf(hir.Binary(tc.op, ref(b), hir.NewBool(tc.v)))
		if err := simplifyBooleans(&Context{}, root); err != nil {
			t.Fatal(err)
		}
		if got := expr(ifs.Test()); got != tc.want {
			t.Errorf("b %s %v = %q, want %q", tc.op, tc.v, got, tc.want)
		}
	}
}

func TestSimplifyBooleans_NegatedXor(t *testing.T) {
	a, b := hir.NewLocal("a", boolT), hir.NewLocal("b", boolT)
	root, ifs := testOf(hir.Unary(hir.OpNot, hir.Binary(hir.OpXor, ref(a), ref(b))))

	if err := simplifyBooleans(&Context{}, root); err != nil {
		t.Fatal(err)
	}
	if got := expr(ifs.Test()); got != "a == b" {
		t.Errorf("test = %q", got)
	}
}

func TestSimplifyBooleans_Conditionals(t *testing.T) {
	c, d := hir.NewLocal("c", boolT), hir.NewLocal("d", boolT)
	cases := []struct {
		name string
		mk   func() hir.Node
		want string
	}{
		{"true-then", func() hir.Node { return hir.Cond(ref(c), hir.NewBool(true), ref(d)) }, "c || d"},
		{"false-else", func() hir.Node { return hir.Cond(ref(c), ref(d), hir.NewBool(false)) }, "c && d"},
		{"false-then", func() hir.Node { return hir.Cond(ref(c), hir.NewBool(false), ref(d)) }, "!c && d"},
		{"true-else", func() hir.Node { return hir.Cond(ref(c), ref(d), hir.NewBool(true)) }, "!c || d"},
		{"repeat-then", func() hir.Node { return hir.Cond(ref(c), ref(c), ref(d)) }, "c || d"},
		{"repeat-else", func() hir.Node { return hir.Cond(ref(c), ref(d), ref(c)) }, "c && d"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root, ifs := testOf(tc.mk())
			if err := simplifyBooleans(&Context{}, root); err != nil {
				t.Fatal(err)
			}
			if got := expr(ifs.Test()); got != tc.want {
				t.Errorf("test = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSimplifyBooleans_Idempotent(t *testing.T) {
	a, b := hir.NewLocal("a", boolT), hir.NewLocal("b", boolT)
	x := hir.NewLocal("x", i32)
	trees := []func() hir.Node{
		func() hir.Node {
			return hir.Unary(hir.OpNot, hir.Binary(hir.OpAndAlso, ref(a),
				hir.Unary(hir.OpNot, hir.Binary(hir.OpOrElse, ref(b),
					hir.Binary(hir.OpLessThan, ref(x), i32c(4))))))
		},
		func() hir.Node {
			return hir.Binary(hir.OpEqual, hir.Unary(hir.OpNot, ref(a)), hir.NewBool(false))
		},
		func() hir.Node {
			return hir.Cond(hir.Unary(hir.OpNot, ref(a)), hir.NewBool(true), hir.Unary(hir.OpNot, hir.Unary(hir.OpNot, ref(b))))
		},
		func() hir.Node { return hir.Unary(hir.OpNot, ref(a)) },
	}
	for i, mk := range trees {
		root, _ := testOf(mk())
		if err := simplifyBooleans(&Context{}, root); err != nil {
			t.Fatal(err)
		}
		once := expr(root)
		if err := simplifyBooleans(&Context{}, root); err != nil {
			t.Fatal(err)
		}
		if twice := expr(root); twice != once {
			t.Errorf("tree %d: second run changed\n%s\nto\n%s", i, once, twice)
		}
	}
}

func TestRestoreTypeIs(t *testing.T) {
	cls := &types.Class{Name: "Foo"}
	o := hir.NewLocal("o", types.Typ[types.Object])
	cases := []struct {
		mk   func() hir.Node
		want string
	}{
		{func() hir.Node {
			return hir.Binary(hir.OpNotEqual, hir.NewTypeAs(ref(o), cls), hir.NewNullConst())
		}, "o is Foo"},
		{func() hir.Node {
			return hir.Binary(hir.OpGreaterThan, hir.NewTypeAs(ref(o), cls), hir.NewNullConst())
		}, "o is Foo"},
		{func() hir.Node {
			return hir.Binary(hir.OpEqual, hir.NewNullConst(), hir.NewTypeAs(ref(o), cls))
		}, "!(o is Foo)"},
		{func() hir.Node {
			return hir.Binary(hir.OpLessThanOrEqual, hir.NewTypeAs(ref(o), cls), hir.NewNullConst())
		}, "!(o is Foo)"},
	}
	for _, tc := range cases {
		root, ifs := testOf(tc.mk())
		if err := restoreTypeIs(&Context{}, root); err != nil {
			t.Fatal(err)
		}
		if got := expr(ifs.Test()); got != tc.want {
			t.Errorf("test = %q, want %q", got, tc.want)
		}
	}
}

func TestRestoreTypeIs_KeepsOtherCasts(t *testing.T) {
	cls := &types.Class{Name: "Foo"}
	o, p := hir.NewLocal("o", types.Typ[types.Object]), hir.NewLocal("p", types.Typ[types.Object])
	root, ifs := testOf(hir.Binary(hir.OpNotEqual, hir.NewTypeAs(ref(o), cls), ref(p)))
	if err := restoreTypeIs(&Context{}, root); err != nil {
		t.Fatal(err)
	}
	if got := expr(ifs.Test()); got != "o as Foo != p" {
		t.Errorf("test = %q", got)
	}
}

func TestRestoreBooleans_Conditions(t *testing.T) {
	x := hir.NewLocal("x", i32)
	o := hir.NewLocal("o", types.Typ[types.Object])
	b := hir.NewLocal("b", boolT)
	cases := []struct {
		cond hir.Node
		want string
	}{
		{ref(x), "x != 0"},
		{ref(o), "o != null"},
		{ref(b), "b"},
		{i32c(1), "true"},
		{i32c(0), "false"},
		{i32c(5), "5 != 0"},
		{hir.Binary(hir.OpAndAlso, ref(x), ref(b)), "x != 0 && b"},
	}
	for _, tc := range cases {
		root, ifs := testOf(tc.cond)
		c := &Context{Domain: domain.New(domain.DefaultSemantics())}
		if err := restoreBooleans(c, root); err != nil {
			t.Fatal(err)
		}
		if got := expr(ifs.Test()); got != tc.want {
			t.Errorf("test = %q, want %q", got, tc.want)
		}
	}
}

func TestRestoreBooleans_Stores(t *testing.T) {
	b := hir.NewLocal("b", boolT)
	root := hir.NewBlock(
		hir.NewAssign(ref(b), i32c(0)),
		hir.NewAssign(ref(b), i32c(2)),
		hir.NewReturn(i32c(1)),
	)
	root.Declare(b)
	if err := restoreBooleans(&Context{Returns: boolT}, root); err != nil {
		t.Fatal(err)
	}
	got := expr(root)
	if !strings.Contains(got, "b = false;") || !strings.Contains(got, "return true;") {
		t.Errorf("stores not converted:\n%s", got)
	}
	if !strings.Contains(got, "b = 2 != 0;") {
		t.Errorf("store of 2 not compared with zero:\n%s", got)
	}
}

func TestRestoreLoopIterators_For(t *testing.T) {
	i, n, s := hir.NewLocal("i", i32), hir.NewLocal("n", i32), hir.NewLocal("s", i32)
	body := hir.NewBlock(
		hir.NewAssign(ref(s), hir.Binary(hir.OpAdd, ref(s), ref(i))),
		hir.NewEval(hir.Unary(hir.OpPostIncrement, ref(i))),
	)
	lp := hir.NewLoop(nil, hir.Binary(hir.OpLessThan, ref(i), ref(n)), body, nil)
	root := hir.NewBlock(hir.NewAssign(ref(i), i32c(0)), lp, hir.NewReturn(ref(s)))
	root.Declare(s)
	root.Declare(i)

	if err := restoreLoopIterators(&Context{}, root); err != nil {
		t.Fatal(err)
	}
	if root.Len() != 2 {
		t.Fatalf("init not hoisted:\n%s", expr(root))
	}
	if got := expr(lp); !strings.HasPrefix(got, "for (int32 i = 0; i < n; i++) {") {
		t.Errorf("loop =\n%s", got)
	}
	if lp.Body().Len() != 1 {
		t.Errorf("body len = %d", lp.Body().Len())
	}
	if hir.DeclaringScope(lp.Body(), i) != hir.Scope(lp) {
		t.Error("i should be declared by the loop")
	}
	for _, l := range root.Locals() {
		if l == i {
			t.Error("i still declared by the method block")
		}
	}
}

func TestRestoreLoopIterators_ContinueBlocks(t *testing.T) {
	i, n := hir.NewLocal("i", i32), hir.NewLocal("n", i32)
	body := hir.NewBlock(
		hir.NewIf(hir.Binary(hir.OpEqual, ref(i), i32c(3)), hir.NewBlock(hir.NewContinue()), nil),
		hir.NewEval(hir.Unary(hir.OpPostIncrement, ref(i))),
	)
	lp := hir.NewLoop(nil, hir.Binary(hir.OpLessThan, ref(i), ref(n)), body, nil)
	root := hir.NewBlock(hir.NewAssign(ref(i), i32c(0)), lp)

	if err := restoreLoopIterators(&Context{}, root); err != nil {
		t.Fatal(err)
	}
	if lp.Init().Len() != 0 || lp.Iter().Len() != 0 {
		t.Errorf("loop with continue rewritten:\n%s", expr(root))
	}
}

func TestRunner_DisabledKeepsSlots(t *testing.T) {
	before := Names()
	r, err := NewRunner(SimplifyBooleans)
	if err != nil {
		t.Fatal(err)
	}
	var ran []string
	r.OnPass = func(name string, _ *hir.Block) { ran = append(ran, name) }

	a := hir.NewLocal("a", boolT)
	root, ifs := testOf(hir.Unary(hir.OpNot, hir.Unary(hir.OpNot, ref(a))))
	if err := r.Run(&Context{Domain: domain.New(domain.DefaultSemantics())}, root); err != nil {
		t.Fatal(err)
	}
	for _, name := range ran {
		if name == SimplifyBooleans {
			t.Error("disabled pass ran")
		}
	}
	if len(ran) != len(before)-1 {
		t.Errorf("ran %v", ran)
	}
	if got := expr(ifs.Test()); got != "!!a" {
		t.Errorf("test = %q", got)
	}
	if Slot(SimplifyBooleans) != 3 || strings.Join(Names(), ",") != strings.Join(before, ",") {
		t.Errorf("slots moved: %v", Names())
	}
}

func TestNewRunner_UnknownPass(t *testing.T) {
	_, err := NewRunner("restore-everything")
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind != errors.KindNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_Default(t *testing.T) {
	x := hir.NewLocal("x", i32)
	root, ifs := testOf(hir.Unary(hir.OpNot, hir.Binary(hir.OpLessThanOrEqual, ref(x), i32c(0))))
	if err := Run(nil, root); err != nil {
		t.Fatal(err)
	}
	if got := expr(ifs.Test()); got != "x > 0" {
		t.Errorf("test = %q", got)
	}
}
