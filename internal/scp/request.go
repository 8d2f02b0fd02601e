package scp

import (
	"fmt"
	"sort"

	"github.com/roach88/scp/internal/graph"
)

// State is the lifecycle state of an interpretation request.
type State uint8

const (
	StateUnknown State = iota
	StateCreated
	StateRunning
	StateFinishedSuccessfully
	StateFinishedUnsuccessfully
	StateFinishedWithError
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateFinishedSuccessfully:
		return "finished_successfully"
	case StateFinishedUnsuccessfully:
		return "finished_unsuccessfully"
	case StateFinishedWithError:
		return "finished_with_error"
	}
	return "unknown"
}

// Terminal reports whether s is a finished state.
func (s State) Terminal() bool { return s >= StateFinishedSuccessfully }

// Request builds an interpretation request for program with arguments keyed
// by order. The request is not initiated.
func (b *Builder) Request(program graph.Handle, args map[int]graph.Handle) (graph.Handle, graph.Handle, error) {
	g, k := b.g, b.k
	req, err := g.CreateNode(graph.NodeConst)
	if err != nil {
		return graph.Handle{}, graph.Handle{}, err
	}
	set, err := g.CreateNode(graph.NodeConst | graph.NodeTuple)
	if err != nil {
		g.Erase(req)
		return graph.Handle{}, graph.Handle{}, err
	}
	fail := func(err error) (graph.Handle, graph.Handle, error) {
		g.Erase(req)
		g.Erase(set)
		return graph.Handle{}, graph.Handle{}, fmt.Errorf("build request: %w", err)
	}
	if _, err := g.CreateEdge(graph.ArcPosConstPerm, k.Request, req); err != nil {
		return fail(err)
	}
	if err := b.tagged(req, program, k.Order[1]); err != nil {
		return fail(err)
	}
	if err := b.tagged(req, set, k.Order[2]); err != nil {
		return fail(err)
	}
	orders := make([]int, 0, len(args))
	for n := range args {
		orders = append(orders, n)
	}
	sort.Ints(orders)
	for _, n := range orders {
		if n < 1 || n > MaxOperandOrder {
			return fail(fmt.Errorf("argument order %d out of range", n))
		}
		if err := b.tagged(set, args[n], k.Order[n]); err != nil {
			return fail(err)
		}
	}
	return req, set, nil
}

func (b *Builder) tagged(src, tgt, role graph.Handle) error {
	arc, err := b.g.CreateEdge(graph.ArcPosConstPerm, src, tgt)
	if err != nil {
		return err
	}
	_, err = b.g.CreateEdge(graph.ArcPosConstPerm, role, arc)
	return err
}

// RequestParts returns the program and argument set named by a request.
func (r *Resolver) RequestParts(req graph.Handle) (program, args graph.Handle) {
	return r.Attribute(req, r.k.Order[1]), r.Attribute(req, r.k.Order[2])
}

// ProcessOfRequest returns the process spawned for req, or zero.
func (r *Resolver) ProcessOfRequest(req graph.Handle) graph.Handle {
	return r.firstRelated(req, r.k.ProcessRel)
}

// RequestOfProcess returns the request that spawned process, or zero.
func (r *Resolver) RequestOfProcess(process graph.Handle) graph.Handle {
	for _, h := range r.RelatedFrom(process, r.k.ProcessRel) {
		return h
	}
	return graph.Handle{}
}

// ProcessOf returns the process whose decomposition contains op, or zero.
func (r *Resolver) ProcessOf(op graph.Handle) graph.Handle {
	for _, in := range r.g.Incoming(op, graph.ArcAccess) {
		if r.IsMarked(in.Src, r.k.Process) {
			return in.Src
		}
	}
	return graph.Handle{}
}

// FinishState returns the finished marker on h, if any.
func (r *Resolver) FinishState(h graph.Handle) State {
	switch {
	case r.IsMarked(h, r.k.FinishedSuccessfully):
		return StateFinishedSuccessfully
	case r.IsMarked(h, r.k.FinishedUnsuccessfully):
		return StateFinishedUnsuccessfully
	case r.IsMarked(h, r.k.FinishedWithError):
		return StateFinishedWithError
	}
	return StateUnknown
}

// RequestState derives the lifecycle state of req from its markers.
func (r *Resolver) RequestState(req graph.Handle) State {
	if !r.g.Exists(req) {
		return StateUnknown
	}
	if s := r.FinishState(req); s != StateUnknown {
		return s
	}
	if !r.ProcessOfRequest(req).IsZero() {
		return StateRunning
	}
	if r.IsMarked(req, r.k.Initiated) {
		return StateCreated
	}
	return StateUnknown
}
