package passes

import "github.com/wippyai/decompiler/hir"

type undeclarer interface {
	Undeclare(l *hir.Local)
}

// restoreLoopIterators turns
//
//	i = a; while (i < n) { ...; i++; }
//
// into for (i = a; i < n; i++) { ... }. The init assignment is hoisted
// when the test reads the variable the body's last statement steps, and
// the step moves into the iterator slot when the loop has no continue
// that would skip it.
func restoreLoopIterators(c *Context, root *hir.Block) error {
	var loops []*hir.Loop
	hir.Walk(root, func(n hir.Node) bool {
		if lp, ok := n.(*hir.Loop); ok {
			loops = append(loops, lp)
		}
		return true
	})
	for _, lp := range loops {
		if lp.IsDoWhile || lp.Test() == nil || lp.Iter().Len() > 0 || lp.Body().Len() == 0 || continues(lp) {
			continue
		}
		if lp.Init().Len() == 0 {
			hoistInit(root, lp)
		}
		body := lp.Body()
		last := body.Child(body.Len() - 1)
		stepped := false
		for _, v := range initVars(lp) {
			if steps(last, v) {
				stepped = true
				break
			}
		}
		if !stepped {
			continue
		}
		lp.Iter().Add(body.RemoveAt(body.Len() - 1))
		c.changed(lp)
	}
	return nil
}

// hoistInit moves the assignment right before lp into its init slot.
func hoistInit(root *hir.Block, lp *hir.Loop) {
	b, ok := lp.Parent().(*hir.Block)
	if !ok {
		return
	}
	i := hir.IndexInParent(lp)
	if i == 0 {
		return
	}
	as, ok := b.Child(i - 1).(*hir.Assign)
	if !ok {
		return
	}
	v := assignedLocal(as)
	if v == nil || len(hir.Usages(lp.Test(), v)) == 0 || !steps(lp.Body().Child(lp.Body().Len()-1), v) {
		return
	}
	b.RemoveAt(i - 1)
	lp.Init().Add(as)

	for _, u := range hir.Usages(root, v) {
		if !hir.IsAncestor(lp, u) {
			return
		}
	}
	if s, ok := hir.DeclaringScope(lp, v).(undeclarer); ok {
		s.Undeclare(v)
		lp.Declare(v)
	}
}

func assignedLocal(as *hir.Assign) *hir.Local {
	r, ok := as.Lhs().(*hir.Ref)
	if !ok {
		return nil
	}
	l, _ := r.Sym.(*hir.Local)
	return l
}

func initVars(lp *hir.Loop) []*hir.Local {
	var out []*hir.Local
	for _, s := range lp.Init().Stmts() {
		if as, ok := s.(*hir.Assign); ok {
			if v := assignedLocal(as); v != nil {
				out = append(out, v)
			}
		}
	}
	return out
}

// steps reports whether statement s assigns or increments v.
func steps(s hir.Node, v *hir.Local) bool {
	if e, ok := s.(*hir.Eval); ok {
		s = e.Expr()
	}
	switch x := s.(type) {
	case *hir.Assign:
		return assignedLocal(x) == v
	case *hir.Operator:
		if !x.Op.IsAssignment() {
			return false
		}
		r, ok := x.Arg(0).(*hir.Ref)
		return ok && r.Sym == hir.Symbol(v)
	}
	return false
}

// continues reports whether a continue statement targets lp.
func continues(lp *hir.Loop) bool {
	found := false
	hir.Walk(lp.Body(), func(n hir.Node) bool {
		switch n.Kind() {
		case hir.KindLoop, hir.KindIter:
			return false
		case hir.KindContinue:
			found = true
		}
		return !found
	})
	return found
}
