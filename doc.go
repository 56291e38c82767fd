// Package decompiler turns a compiled method body into a structured,
// typed tree.
//
// # Pipeline
//
// A method goes through these stages, each consuming the previous one's
// output completely:
//
//	reconstruct   stack machine to expression statements, per basic block
//	cfg           basic blocks, edges, exception guards, dominators, loops
//	prepare       switch lowering, ternary and short-circuit fusion
//	idioms        compound assignment, increments, initializers, temp inlining
//	structure     nested if/loop/try recovery, goto fallback, tidy
//	passes        restore-loop-iterators, restore-booleans, restore-type-is,
//	              simplify-booleans, and reserved slots
//	typeinfer     every node annotated in the domain's type cache
//
// The result is a *hir.Lambda wrapping the method signature and body.
//
// # Packages
//
//	decompiler/   Pipeline entry points and the current-domain stack
//	├── types/        Type model
//	├── il/           Instruction stream, opcode table, exception regions
//	├── hir/          Tree nodes, traversal, equivalence, dumps
//	├── domain/       Semantics, caches, TOML configuration
//	├── reconstruct/  Stack simulation with an opcode handler registry
//	├── cfg/          Control-flow graph and graph-level idioms
//	├── structure/    Graph to tree
//	├── passes/       Postprocessing passes
//	├── typeinfer/    Type inference
//	├── listing/      YAML and CBOR method listings
//	├── errors/       Structured error types
//	└── cmd/hirview/  CLI and interactive stage browser
//
// # Quick Start
//
//	m, err := listing.LoadMethod("sum.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fn, err := decompiler.Decompile(m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(hir.Dump(fn, hir.CSharp))
//
// # Domains
//
// Decompile runs in the current domain, a process-wide default unless a
// caller pushed another one. DecompileIn takes the domain explicitly and
// makes it current for its extent, restoring the previous one on every
// exit path, so a decompilation can nest another with different
// semantics.
//
// # Thread Safety
//
// A Domain is not safe for concurrent use, and the current-domain stack is
// process-wide. Decompile methods in parallel with one Decompiler and
// DecompileIn, giving each goroutine its own Domain.
package decompiler
