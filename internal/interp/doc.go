// Package interp executes SCP programs stored in a graph.
//
// There is no global instruction pointer. An operator runs when an arc from
// the active_scp_operator keynode is inserted into it, and reports its
// outcome by inserting an arc from one of the three finished markers. The
// Runtime subscribes to those keynodes on the graph's event bus and turns
// every relevant mutation into a work item:
//
//	active_scp_operator -> op          dispatch op to its interpreter family
//	question_finished_* -> op          advance control flow (synchronizer)
//	question_initiated -> request       spawn a process (creator)
//	useless_scp_process -> process     tear the process down (destroyer)
//
// Work items are drained FIFO by a bounded pool of workers. With a single
// worker the order of execution, and therefore the trace, is deterministic.
// With more workers operators of different processes, and sibling branches
// of one process, run in parallel; the graph store is the only shared state
// besides the SubscriptionTable.
//
// Every activation ends in exactly one finished marker, except sys_wait and
// waitReturn, which suspend by registering a one-shot subscription and
// finish when it fires.
package interp
