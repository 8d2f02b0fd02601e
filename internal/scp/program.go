package scp

import (
	"fmt"

	"github.com/roach88/scp/internal/graph"
)

// Direction of a formal parameter.
type Direction uint8

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// Param is a formal parameter of a program.
type Param struct {
	Order  int
	Dir    Direction
	Formal graph.Handle
}

// Program is the static description of an SCP program read from the graph.
type Program struct {
	Key       graph.Handle
	Params    []Param
	Vars      []graph.Handle
	Consts    []graph.Handle
	Operators graph.Handle
	Template  []graph.Handle
}

// Param returns the formal parameter of order n.
func (p *Program) Param(n int) (Param, bool) {
	for _, prm := range p.Params {
		if prm.Order == n {
			return prm, true
		}
	}
	return Param{}, false
}

// Attribute returns the target of the access arc leaving from and tagged by
// role, or zero.
func (r *Resolver) Attribute(from, role graph.Handle) graph.Handle {
	for _, q := range r.g.Iterate5(graph.Fixed(from), graph.Any(graph.ArcAccess), graph.Any(0), graph.Any(graph.ArcAccess), graph.Fixed(role)) {
		return q.Tgt
	}
	return graph.Handle{}
}

func (r *Resolver) memberElems(set graph.Handle) []graph.Handle {
	if set.IsZero() {
		return nil
	}
	var out []graph.Handle
	for _, m := range r.Members(set) {
		out = append(out, m.Elem)
	}
	return out
}

func (r *Resolver) firstRelated(from, rel graph.Handle) graph.Handle {
	for _, h := range r.Related(from, rel) {
		return h
	}
	return graph.Handle{}
}

// Program reads the program whose key element is key.
func (r *Resolver) Program(key graph.Handle) (*Program, error) {
	if !r.IsMarked(key, r.k.Program) {
		return nil, fmt.Errorf("%s is not an scp_program", r.g.Describe(key))
	}
	p := &Program{Key: key}
	p.Operators = r.Attribute(key, r.k.Operators)
	if p.Operators.IsZero() {
		return nil, fmt.Errorf("program %s has no operator set", r.g.Describe(key))
	}
	if params := r.Attribute(key, r.k.Params); !params.IsZero() {
		seen := make(map[int]bool)
		for _, m := range r.Members(params) {
			n, ok := r.OrderOf(m)
			if !ok {
				return nil, fmt.Errorf("program %s: parameter %s has no order", r.g.Describe(key), r.g.Describe(m.Elem))
			}
			if seen[n] {
				return nil, fmt.Errorf("program %s: duplicate parameter order %d", r.g.Describe(key), n)
			}
			seen[n] = true
			dir := In
			if m.HasRole(r.k.Out) {
				dir = Out
			}
			p.Params = append(p.Params, Param{Order: n, Dir: dir, Formal: m.Elem})
		}
	}
	p.Vars = r.memberElems(r.firstRelated(key, r.k.ProgramVars))
	p.Consts = r.memberElems(r.firstRelated(key, r.k.ProgramConsts))
	p.Template = r.memberElems(r.firstRelated(key, r.k.Template))
	return p, nil
}
