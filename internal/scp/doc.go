// Package scp holds the data model of SCP programs stored in the graph.
//
// An operator is a node tagged with exactly one operator-kind keynode. Its
// operands hang off access arcs leaving the operator; each such declaring arc
// is itself the target of modifier arcs (rrel_1, rrel_fixed, rrel_scp_var,
// rrel_node, ...) that classify the operand. Control flow is encoded as
// common arcs between operators, tagged with nrel_then, nrel_else, nrel_goto
// or nrel_error.
//
// The package turns that encoding into typed values: OperatorKind, Operand,
// Operator and Successors. It does not execute anything; see package interp.
package scp
