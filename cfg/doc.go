// Package cfg builds the control-flow graph of a method from its
// instruction stream and exception regions.
//
// Build finds the block leaders, reconstructs every reachable block with
// the stack depth it is entered with (catch and filter entries start with
// the exception on the stack) and links blocks by fall-through, branch,
// switch and handler-entry edges. Protected ranges are grouped into
// guards; regions nest by range containment.
//
// Analyze computes dominators, post-dominators against a virtual exit,
// back-edges and natural loops. The def/use Index orders every statement
// with real-valued keys and tracks reads and writes of atoms; the graph
// mutation primitives keep it current. The idiom rewrites in this package
// run on the graph before it is structured.
package cfg
