// Package harness runs conformance scenarios against the SCP interpreter.
//
// A scenario compiles one or more CUE program files, creates the graph
// elements it needs, invokes programs in order and then checks the
// resulting trace, variable bindings, output and persisted state.
//
// # Scenario Format
//
//	name: copy_payload
//	description: "relay copies its input into the caller's variable"
//	programs:
//	  - ../programs/relay.cue
//	setup:
//	  - name: payload
//	    type: node|const
//	  - name: result
//	    type: node|var
//	flow:
//	  - invoke: relay
//	    args: { 1: payload, 2: result }
//	    expect:
//	      state: finished_successfully
//	assertions:
//	  - type: bound
//	    element: result
//	    value: payload
//	  - type: trace_order
//	    operators: [copy, done]
//
// Program paths are relative to the scenario file.
//
// # Assertion Types
//
//   - trace_contains: a step with the given kind, operator and outcome exists
//   - trace_order: operators first appear in the given order
//   - trace_count: steps matching kind and operator occur exactly count times
//   - bound: a setup variable is bound, optionally to an element rendered as value
//   - output: the printed output equals the given text
//   - final_state: queries the persisted runs, steps or elements tables
//
// # Deterministic Testing
//
// Every scenario runs on a fresh graph with a single worker, sequential
// subscription IDs and the logical step clock, so the same scenario always
// produces the same trace. Runs are persisted to an in-memory SQLite store
// under IDs derived from the scenario name.
package harness
