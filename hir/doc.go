// Package hir is the structured intermediate representation produced by
// the decompiler.
//
// A tree is built from concrete node structs behind the Node interface.
// Each kind has a fixed layout of child slots, kept in one ordered list
// so that generic traversal sees the same shape as the typed accessors:
//
//	If       Test, IfTrue, IfFalse
//	Loop     Init, Test, Body, Iter
//	Try      Body, Finally, Fault, Catch...
//	Apply    Callee, Arg...
//
// Nodes are singly owned. The mutation primitives (SetChild, Replace,
// Detach and the Block methods) keep parent links consistent and panic
// when a node that already has a parent is attached elsewhere; Clone
// produces an unowned copy for reuse.
//
// Walk, Inspect, Transform and Reduce dispatch over the closed set of
// kinds. Transform and Reduce wrap a foreign error once with the node it
// was raised at.
package hir
