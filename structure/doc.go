// Package structure turns a control-flow graph into a structured statement
// tree.
//
// Prepare removes the stack traffic between blocks first: ternary
// diamonds become conditional expressions, chains of branches that test
// one condition after the other are fused into && and || operators,
// straight-line block chains are merged, and any value still crossing a
// block boundary is carried in a $stackN local. Switches are lowered to
// chains of equality tests.
//
// Structure then walks the graph from the entry, emitting loops for
// natural loops, ifs for two-way branches and try statements for guards.
// A branch that fits none of those becomes a goto; the label it targets
// is placed where the block is emitted. Tidy removes labels nobody jumps
// to and the jumps that fall through anyway.
package structure
