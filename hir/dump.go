package hir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/decompiler/types"
)

// Language selects the operator spelling of a dump.
type Language uint8

const (
	CSharp Language = iota
	VB
)

func (l Language) String() string {
	if l == VB {
		return "vb"
	}
	return "csharp"
}

// ParseLanguage accepts "csharp" and "vb".
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(s) {
	case "csharp", "c#", "cs", "":
		return CSharp, true
	case "vb", "vb.net", "visualbasic":
		return VB, true
	}
	return CSharp, false
}

const indentUnit = "    "

// Dump renders n as C-like text. Statements span several lines; an
// expression is rendered on one line.
func Dump(n Node, lang Language) string {
	if isNil(n) {
		return ""
	}
	p := &printer{lang: lang}
	if isStatement(n) {
		p.stmt(n)
		return strings.TrimSuffix(p.b.String(), "\n")
	}
	return p.expr(n)
}

type printer struct {
	b     strings.Builder
	lang  Language
	depth int
}

func isStatement(n Node) bool {
	switch n.Kind() {
	case KindBlock, KindIf, KindLoop, KindTry, KindCatch, KindLabel, KindGoto,
		KindBreak, KindContinue, KindReturn, KindThrow, KindUsing, KindIter, KindEval:
		return true
	case KindLambda:
		return n.(*Lambda).Body() != nil
	}
	return false
}

func (p *printer) line(format string, args ...any) {
	for i := 0; i < p.depth; i++ {
		p.b.WriteString(indentUnit)
	}
	fmt.Fprintf(&p.b, format, args...)
	p.b.WriteByte('\n')
}

func (p *printer) open(format string, args ...any) {
	p.line(format, args...)
	p.depth++
}

func (p *printer) close(format string, args ...any) {
	p.depth--
	p.line(format, args...)
}

func typeName(t types.Type) string {
	if t == nil {
		return "void"
	}
	return t.String()
}

func (p *printer) locals(ls []*Local) {
	for _, l := range ls {
		p.line("%s %s;", typeName(l.Type()), l.Name())
	}
}

func (p *printer) body(b *Block) {
	if b == nil {
		return
	}
	p.locals(b.locals)
	for _, s := range b.kids {
		p.stmt(s)
	}
}

func (p *printer) stmt(n Node) {
	switch x := n.(type) {
	case *Block:
		p.open("{")
		p.body(x)
		p.close("}")
	case *Null:
		p.line(";")
	case *Eval:
		p.line("%s;", p.expr(x.Expr()))
	case *If:
		p.ifStmt(x, "")
	case *Loop:
		p.loop(x)
	case *Try:
		p.open("try {")
		p.body(x.Body())
		for _, c := range x.Catches() {
			p.depth--
			head := "} catch"
			if c.ExceptionType != nil {
				if c.Var != nil {
					head += fmt.Sprintf(" (%s %s)", typeName(c.ExceptionType), c.Var.Name())
				} else {
					head += fmt.Sprintf(" (%s)", typeName(c.ExceptionType))
				}
			}
			if c.Filter() != nil {
				head += fmt.Sprintf(" when (%s)", p.expr(c.Filter()))
			}
			p.line("%s {", head)
			p.depth++
			p.body(c.Body())
		}
		if f := x.Fault(); f != nil {
			p.depth--
			p.line("} fault {")
			p.depth++
			p.body(f)
		}
		if f := x.Finally(); f != nil {
			p.depth--
			p.line("} finally {")
			p.depth++
			p.body(f)
		}
		p.close("}")
	case *Catch:
		p.open("catch (%s) {", typeName(x.ExceptionType))
		p.body(x.Body())
		p.close("}")
	case *Label:
		p.depth--
		p.line("%s:", x.Name)
		p.depth++
	case *Goto:
		p.line("goto %s;", x.Label)
	case *Break:
		p.line("break;")
	case *Continue:
		p.line("continue;")
	case *Return:
		if x.Value() == nil {
			p.line("return;")
		} else {
			p.line("return %s;", p.expr(x.Value()))
		}
	case *Throw:
		if x.IsRethrow() {
			p.line("throw;")
		} else {
			p.line("throw %s;", p.expr(x.Exception()))
		}
	case *Using:
		p.open("using (%s %s = %s) {", typeName(x.Resource.Type()), x.Resource.Name(), p.expr(x.Init()))
		p.body(x.Body())
		p.close("}")
	case *Iter:
		p.open("foreach (%s %s in %s) {", typeName(x.Element.Type()), x.Element.Name(), p.expr(x.Seq()))
		p.body(x.Body())
		p.close("}")
	case *Lambda:
		var res types.Type
		if x.Sig != nil {
			res = x.Sig.Result
		}
		params := make([]string, len(x.Params))
		for i, pa := range x.Params {
			params[i] = typeName(pa.Type()) + " " + pa.Name()
		}
		p.open("%s %s(%s) {", typeName(res), x.Name, strings.Join(params, ", "))
		p.body(x.Body())
		p.close("}")
	default:
		p.line("%s;", p.expr(n))
	}
}

func (p *printer) ifStmt(x *If, prefix string) {
	p.open("%sif (%s) {", prefix, p.expr(x.Test()))
	p.body(x.IfTrue())
	f := x.IfFalse()
	switch {
	case f == nil || f.Len() == 0:
		p.close("}")
	case f.Len() == 1 && len(f.locals) == 0 && f.kids[0].Kind() == KindIf:
		p.depth--
		p.ifStmt(f.kids[0].(*If), "} else ")
	default:
		p.depth--
		p.line("} else {")
		p.depth++
		p.body(f)
		p.close("}")
	}
}

func (p *printer) inline(b *Block) string {
	if b == nil {
		return ""
	}
	parts := make([]string, 0, b.Len())
	for _, s := range b.kids {
		if e, ok := s.(*Eval); ok {
			s = e.Expr()
		}
		parts = append(parts, p.expr(s))
	}
	return strings.Join(parts, ", ")
}

func (p *printer) loop(x *Loop) {
	test := "true"
	if x.Test() != nil {
		test = p.expr(x.Test())
	}
	if x.IsDoWhile {
		p.open("do {")
		p.body(x.Body())
		p.close("} while (%s);", test)
		return
	}
	init, iter := x.Init(), x.Iter()
	locals := x.locals
	if init.Len() == 0 && iter.Len() == 0 {
		p.open("while (%s) {", test)
	} else {
		if x.Test() == nil {
			test = ""
		}
		var head string
		head, locals = p.forInit(init, locals)
		p.open("for (%s; %s; %s) {", head, test, p.inline(iter))
	}
	p.locals(locals)
	p.body(x.Body())
	p.close("}")
}

// forInit renders the init clause of a for loop, declaring a loop local
// in place when the clause is a single assignment to it. It returns the
// locals still to be declared in the body.
func (p *printer) forInit(init *Block, locals []*Local) (string, []*Local) {
	if init.Len() != 1 {
		return p.inline(init), locals
	}
	as, ok := init.kids[0].(*Assign)
	if !ok {
		return p.inline(init), locals
	}
	r, ok := as.Lhs().(*Ref)
	if !ok {
		return p.inline(init), locals
	}
	for i, l := range locals {
		if r.Sym == Symbol(l) {
			rest := append(append([]*Local(nil), locals[:i]...), locals[i+1:]...)
			return typeName(l.Type()) + " " + p.expr(as), rest
		}
	}
	return p.inline(init), locals
}

func (p *printer) expr(n Node) string {
	s, _ := p.prec(n)
	return s
}

// wrap renders n and parenthesizes it when it binds looser than min.
func (p *printer) wrap(n Node, min int) string {
	s, prec := p.prec(n)
	if prec < min {
		return "(" + s + ")"
	}
	return s
}

func (p *printer) args(ns []Node) string {
	parts := make([]string, len(ns))
	for i, a := range ns {
		parts[i] = p.wrap(a, precAssign+1)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) opText(op OpType) string {
	if p.lang == VB {
		return ops[op].vb
	}
	return ops[op].cs
}

func (p *printer) prec(n Node) (string, int) {
	if isNil(n) {
		return "", precPrimary
	}
	switch x := n.(type) {
	case *Null:
		return "nop", precPrimary
	case *Const:
		return constText(x, p.lang), precPrimary
	case *Ref:
		return x.Sym.Name(), precPrimary
	case *Loophole:
		return fmt.Sprintf("$in%d", x.Slot), precPrimary
	case *Fld:
		return p.member(x.This(), x.Field.Declaring, x.Field.Name, x.Field.Static), precPostfix
	case *Prop:
		return p.member(x.This(), x.Property.Declaring, x.Property.Name, x.Property.Static), precPostfix
	case *Operator:
		return p.operator(x)
	case *Convert:
		return fmt.Sprintf("(%s)%s", typeName(x.Type), p.wrap(x.Source(), precUnary)), precUnary
	case *Assign:
		return p.wrap(x.Lhs(), precUnary) + " = " + p.wrap(x.Rhs(), precAssign), precAssign
	case *Apply:
		return p.apply(x), precPostfix
	case *Eval:
		return p.expr(x.Expr()), precPrimary
	case *CollectionInit:
		return fmt.Sprintf("%s { %s }", p.expr(x.Ctor()), p.args(x.Elems())), precPostfix
	case *ObjectInit:
		members := make([]string, 0, x.NumChildren()-1)
		for _, m := range x.Members() {
			members = append(members, p.expr(m))
		}
		return fmt.Sprintf("%s { %s }", p.expr(x.Ctor()), strings.Join(members, ", ")), precPostfix
	case *Addr:
		return "&" + p.wrap(x.Target(), precUnary), precUnary
	case *Deref:
		return "*" + p.wrap(x.Target(), precUnary), precUnary
	case *TypeIs:
		return fmt.Sprintf("%s is %s", p.wrap(x.Target(), precRelational), typeName(x.Type)), precRelational
	case *TypeAs:
		return fmt.Sprintf("%s as %s", p.wrap(x.Target(), precRelational), typeName(x.Type)), precRelational
	case *SizeOf:
		return fmt.Sprintf("sizeof(%s)", typeName(x.Type)), precPrimary
	case *Default:
		return fmt.Sprintf("default(%s)", typeName(x.Type)), precPrimary
	case *Lambda:
		if x.Method != nil {
			return x.Method.String(), precPrimary
		}
		return x.Name, precPrimary
	}
	// Statements in expression position render on one line.
	return strings.Join(strings.Fields(Dump(n, p.lang)), " "), precPrimary
}

func (p *printer) member(this Node, decl *types.Class, name string, static bool) string {
	switch {
	case this != nil:
		return p.wrap(this, precPostfix) + "." + name
	case static && decl != nil:
		return decl.Name + "." + name
	}
	return name
}

func (p *printer) operator(x *Operator) (string, int) {
	op := x.Op
	prec := ops[op].prec
	text := p.opText(op)
	switch {
	case op == OpConditional:
		if p.lang == VB {
			return fmt.Sprintf("If(%s)", p.args(x.Args())), precPrimary
		}
		return fmt.Sprintf("%s ? %s : %s",
			p.wrap(x.Arg(0), prec+1), p.wrap(x.Arg(1), prec), p.wrap(x.Arg(2), prec)), prec
	case op == OpCoalesce && p.lang == VB:
		return fmt.Sprintf("If(%s)", p.args(x.Args())), precPrimary
	case op == OpPostIncrement || op == OpPostDecrement:
		return p.wrap(x.Arg(0), precPostfix) + text, prec
	case x.NumChildren() == 1:
		return text + p.wrap(x.Arg(0), prec), prec
	case op.IsAssignment():
		return p.wrap(x.Arg(0), precUnary) + " " + text + " " + p.wrap(x.Arg(1), prec), prec
	}
	return p.wrap(x.Arg(0), prec) + " " + text + " " + p.wrap(x.Arg(1), prec+1), prec
}

func (p *printer) apply(x *Apply) string {
	args := x.Args()
	switch c := x.Callee().(type) {
	case *Lambda:
		m := c.Method
		switch {
		case m == nil:
			return p.wrap(c, precPostfix) + "(" + p.args(args) + ")"
		case types.IsArrayCtor(m):
			elem := m.Result.(*types.Array).Elem
			return fmt.Sprintf("new %s[%s]", typeName(elem), p.args(args))
		case m.Ctor:
			return fmt.Sprintf("new %s(%s)", typeName(m.Declaring), p.args(args))
		case !m.Static && len(args) > 0:
			return p.wrap(args[0], precPostfix) + "." + m.Name + "(" + p.args(args[1:]) + ")"
		}
		return m.String() + "(" + p.args(args) + ")"
	case *Prop:
		if c.This() != nil {
			return p.wrap(c.This(), precPostfix) + "[" + p.args(args) + "]"
		}
		return c.Property.String() + "[" + p.args(args) + "]"
	}
	return p.wrap(x.Callee(), precPostfix) + "[" + p.args(args) + "]"
}

func constText(c *Const, lang Language) string {
	switch v := c.Value.(type) {
	case nil:
		if lang == VB {
			return "Nothing"
		}
		return "null"
	case bool:
		if lang == VB {
			if v {
				return "True"
			}
			return "False"
		}
		return strconv.FormatBool(v)
	case string:
		return strconv.Quote(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32) + "f"
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	}
	if b, ok := c.Type.(*types.Basic); ok && b.Kind() == types.Char {
		if r, ok := toInt(c.Value); ok {
			return strconv.QuoteRune(rune(r))
		}
	}
	return fmt.Sprint(c.Value)
}

func toInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}
