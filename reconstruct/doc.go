// Package reconstruct turns the instructions of a basic block into
// expression trees by abstract interpretation of the evaluation stack.
//
// Each opcode is handled by a Handler looked up in a Registry. Handlers
// pop operand trees from the simulated stack, build the node the opcode
// denotes and either push it or emit it as a complete statement. Values
// live on the stack across a block boundary are surfaced as Loophole
// placeholders at entry and as residue at exit, for the structurer to
// sequence.
//
// Handler categories:
//   - Stack: constants, loads, stores, dup and pop
//   - Operators: arithmetic, comparison and conversion
//   - Members: fields, calls, properties and arrays
//   - Control: branches, returns, throws and handler ends
package reconstruct
