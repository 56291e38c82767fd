package structure

import (
	"github.com/wippyai/decompiler/cfg"
	"github.com/wippyai/decompiler/hir"
)

// Tidy removes the scaffolding emission leaves in the tree until nothing
// changes: unreferenced labels, jumps to the next statement, redundant
// trailing continue and return statements, else arms after a jump and
// empty then arms. A finally wrapped around a lone try/catch joins it.
// It then declares every local the body uses in root.
func Tidy(root *hir.Block) {
	for {
		changed := false
		for _, b := range blocks(root) {
			if b.Parent() == nil && b != root {
				continue
			}
			changed = tidyBlock(b) || changed
		}
		if removeTrailing(root, isVoidReturn) {
			changed = true
		}
		if dropLabels(root) {
			changed = true
		}
		if !changed {
			break
		}
	}
	declareLocals(root)
}

func blocks(root hir.Node) []*hir.Block {
	var out []*hir.Block
	hir.Walk(root, func(n hir.Node) bool {
		if b, ok := n.(*hir.Block); ok {
			out = append(out, b)
		}
		return true
	})
	return out
}

func tidyBlock(b *hir.Block) bool {
	changed := false
	for i := 0; i < b.Len(); i++ {
		switch x := b.Child(i).(type) {
		case *hir.If:
			if tidyIf(b, i, x) {
				changed = true
				i--
			}
		case *hir.Goto:
			if next(x) == x.Label {
				b.RemoveAt(i)
				changed = true
				i--
			}
		case *hir.Loop:
			if removeTrailing(x.Body(), isContinue) {
				changed = true
			}
		case *hir.Try:
			if mergeTry(b, i, x) {
				changed = true
			}
		}
	}
	return changed
}

// mergeTry folds a try whose only handler is a finally or fault and whose
// body is a single try with catches into that inner try:
//
//	try { try { A } catch { B } } finally { C }   =>   try { A } catch { B } finally { C }
func mergeTry(b *hir.Block, i int, x *hir.Try) bool {
	if len(x.Catches()) > 0 || x.Body().Len() != 1 {
		return false
	}
	fin, fault := x.Finally(), x.Fault()
	if (fin == nil) == (fault == nil) {
		return false
	}
	inner, ok := x.Body().Child(0).(*hir.Try)
	if !ok || len(inner.Catches()) == 0 || inner.Finally() != nil || inner.Fault() != nil {
		return false
	}
	x.Body().RemoveAt(0)
	if fin != nil {
		x.SetFinally(nil)
		inner.SetFinally(fin)
	} else {
		x.SetFault(nil)
		inner.SetFault(fault)
	}
	b.RemoveAt(i)
	b.Insert(i, inner)
	return true
}

// tidyIf simplifies the if statement x at index i of b. It reports a
// change; x may then no longer be at index i.
func tidyIf(b *hir.Block, i int, x *hir.If) bool {
	then, els := x.IfTrue(), x.IfFalse()
	if els != nil && els.Len() == 0 {
		x.SetIfFalse(nil)
		return true
	}
	if then.Len() == 0 {
		if els == nil {
			test := hir.Detach(x.Test())
			b.RemoveAt(i)
			if !cfg.Pure(test) {
				b.Insert(i, hir.NewEval(test))
			}
			return true
		}
		test := hir.Detach(x.Test())
		x.SetTest(hir.Unary(hir.OpNot, test))
		x.SetIfFalse(nil)
		x.SetChild(1, els)
		x.SetIfFalse(then)
		return true
	}
	if els != nil && jumps(then) {
		x.SetIfFalse(nil)
		for j := 0; els.Len() > 0; j++ {
			b.Insert(i+1+j, els.RemoveAt(0))
		}
		return true
	}
	return false
}

// jumps reports whether control never falls out of the end of b.
func jumps(b *hir.Block) bool {
	if b == nil || b.Len() == 0 {
		return false
	}
	switch x := b.Child(b.Len() - 1).(type) {
	case *hir.Goto, *hir.Break, *hir.Continue, *hir.Return, *hir.Throw:
		return true
	case *hir.If:
		return jumps(x.IfTrue()) && jumps(x.IfFalse())
	}
	return false
}

// next returns the name of the label control reaches when it falls out of
// the statement s, or "".
func next(s hir.Node) string {
	for {
		b, ok := s.Parent().(*hir.Block)
		if !ok {
			return ""
		}
		if i := hir.IndexInParent(s); i+1 < b.Len() {
			if l, ok := b.Child(i + 1).(*hir.Label); ok {
				return l.Name
			}
			return ""
		}
		x, ok := b.Parent().(*hir.If)
		if !ok {
			return ""
		}
		s = x
	}
}

func isContinue(n hir.Node) bool { return n.Kind() == hir.KindContinue }

func isVoidReturn(n hir.Node) bool {
	r, ok := n.(*hir.Return)
	return ok && r.Value() == nil
}

// removeTrailing drops the statements matching pred that end b, looking
// into the arms of a trailing if statement.
func removeTrailing(b *hir.Block, pred func(hir.Node) bool) bool {
	if b == nil || b.Len() == 0 {
		return false
	}
	last := b.Child(b.Len() - 1)
	if pred(last) {
		b.RemoveAt(b.Len() - 1)
		return true
	}
	if x, ok := last.(*hir.If); ok {
		t := removeTrailing(x.IfTrue(), pred)
		f := removeTrailing(x.IfFalse(), pred)
		return t || f
	}
	return false
}

func dropLabels(root hir.Node) bool {
	used := make(map[string]bool)
	var labels []*hir.Label
	hir.Walk(root, func(n hir.Node) bool {
		switch x := n.(type) {
		case *hir.Goto:
			used[x.Label] = true
		case *hir.Label:
			labels = append(labels, x)
		}
		return true
	})
	changed := false
	for _, l := range labels {
		if !used[l.Name] {
			hir.Detach(l)
			changed = true
		}
	}
	return changed
}

// declareLocals declares in root the locals read or written anywhere
// below it that no inner scope declares, in order of first use.
func declareLocals(root *hir.Block) {
	scoped := make(map[*hir.Local]bool)
	for _, l := range hir.AllLocals(root) {
		scoped[l] = true
	}
	hir.Walk(root, func(n hir.Node) bool {
		r, ok := n.(*hir.Ref)
		if !ok {
			return true
		}
		if l, ok := r.Sym.(*hir.Local); ok && !scoped[l] {
			scoped[l] = true
			root.Declare(l)
		}
		return true
	})
}
