package cfg

import (
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/types"
)

// Tree renders the graph as a flat block of labels, statements and gotos.
// Statements are cloned; the graph is left untouched. Leftover stack
// values appear as expression statements before the jump.
func (g *Graph) Tree() *hir.Block {
	out := hir.NewBlock()
	for _, b := range g.Blocks {
		out.Add(hir.NewLabel(b.Label()))
		for _, s := range b.Code.Stmts() {
			out.Add(hir.Clone(s))
		}
		for _, r := range b.Residue() {
			out.Add(hir.NewEval(hir.Clone(r)))
		}
		switch b.Flow {
		case il.FlowCondBranch:
			out.Add(hir.NewIf(hir.Clone(b.Cond()), hir.NewBlock(gotoOf(b.Succ(EdgeTrue))), nil))
			out.Add(gotoOf(b.Succ(EdgeFalse)))
		case il.FlowSwitch:
			for _, e := range b.Succs {
				if e.Kind != EdgeCase {
					continue
				}
				test := hir.Binary(hir.OpEqual, hir.Clone(b.Value()), hir.NewConst(int32(e.Case), types.Typ[types.Int32]))
				out.Add(hir.NewIf(test, hir.NewBlock(gotoOf(e.To)), nil))
			}
			out.Add(gotoOf(b.Succ(EdgeDefault)))
		case il.FlowEndHandler:
			if v := b.Value(); v != nil {
				out.Add(hir.NewReturn(hir.Clone(v)))
			}
		case il.FlowNext, il.FlowBranch, il.FlowLeave:
			if s := b.Succ(EdgeNext); s != nil {
				out.Add(gotoOf(s))
			}
		}
	}
	return out
}

func gotoOf(b *Block) hir.Node {
	if b == nil {
		return hir.NewGoto("?")
	}
	return hir.NewGoto(b.Label())
}
