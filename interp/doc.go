// Package interp provides the execution engine for the bfk tape language:
// eight single-character instructions operating on a growable array of
// byte cells.
//
// The package consists of two components:
//
//   - Tape: a cursor-addressed, dynamically growing byte memory. The tape
//     starts with a single zero cell and grows by one zero cell whenever
//     the cursor moves past the right end. It never grows on the left;
//     moving left of cell 0 is an error.
//
//   - Interpreter: a single linear scan over the program with two
//     control-flow escapes (a forward skip scan for '[' taken with a zero
//     cell, and a backward jump through a stack of open loop positions
//     for ']'). Every scanned character, meaningful or inert, consumes one
//     step of the interpreter's operation budget.
//
// Loop matching is deliberately not nesting-aware: a '[' skipped with a
// zero current cell scans forward to the first ']' regardless of bracket
// depth. This matches the historical behavior of the interpreter this
// package descends from and is preserved as-is; see the note on Execute.
//
// An Interpreter is single-owner state. It is not safe for concurrent use.
package interp
