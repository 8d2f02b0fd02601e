// Package graph is the in-memory semantic graph the interpreter runs on.
//
// Elements are nodes, links (nodes carrying text content) and edges. Edges
// are elements too, so an edge may be the source or target of another edge.
// Every element is addressed by a Handle: an arena index paired with a
// generation counter. Erasing an element bumps the generation of its slot, so
// handles held across an erasure never resolve to the slot's next occupant.
//
// The Store publishes mutations on a small event bus. Callbacks run
// synchronously in the mutating goroutine after the store lock has been
// released, which means a callback may freely read or mutate the store.
package graph
