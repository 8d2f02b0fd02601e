package scp

import (
	"sort"
	"strings"

	"github.com/roach88/scp/internal/graph"
)

// Operator is a parsed operator ready for execution.
type Operator struct {
	Handle graph.Handle
	Kind   OperatorKind

	// byOrder is indexed by operand order; index 0 is unused.
	byOrder [MaxOperandOrder + 1]*Operand
}

// Operand returns the operand of order n, or nil.
func (o *Operator) Operand(n int) *Operand {
	if n < 1 || n > MaxOperandOrder {
		return nil
	}
	return o.byOrder[n]
}

// SetOperand returns the rrel_set_k operand paired with position k, or nil.
func (o *Operator) SetOperand(k int) *Operand {
	return o.Operand(SetOrderBase + k)
}

// Operands returns the present operands ordered by order.
func (o *Operator) Operands() []*Operand {
	var out []*Operand
	for _, op := range o.byOrder {
		if op != nil {
			out = append(out, op)
		}
	}
	return out
}

// Positions returns operands 1..n, with nil for missing ones.
func (o *Operator) Positions(n int) []*Operand {
	out := make([]*Operand, n)
	for i := range out {
		out[i] = o.Operand(i + 1)
	}
	return out
}

// Parse validates operands against kind and indexes them by order. Orders
// outside the kind's range, duplicate orders, conflicting modifiers and
// missing required positions are reported as InvalidParams.
func Parse(h graph.Handle, kind OperatorKind, operands []Operand) (*Operator, error) {
	info, ok := kinds[kind]
	if !ok {
		return nil, NewInvalidType(h, "unknown operator kind %d", kind)
	}
	op := &Operator{Handle: h, Kind: kind}
	for i := range operands {
		o := &operands[i]
		if len(o.conflicts) > 0 {
			e := NewInvalidParams(kind, "operand %d has conflicting %s modifiers", o.Order, strings.Join(o.conflicts, ", "))
			e.Operator = h
			return nil, e
		}
		limit := info.maxOrder
		if o.SetIndex != 0 {
			if !info.sets || o.SetIndex > info.maxOrder {
				return nil, invalid(h, kind, "set operand %d not accepted", o.SetIndex)
			}
			limit = MaxOperandOrder
		}
		if o.Order < 1 || o.Order > limit {
			return nil, invalid(h, kind, "operand order %d out of range 1..%d", o.Order, info.maxOrder)
		}
		if op.byOrder[o.Order] != nil {
			return nil, invalid(h, kind, "duplicate operand order %d", o.Order)
		}
		op.byOrder[o.Order] = o
	}
	for n := 1; n <= info.required; n++ {
		if op.byOrder[n] == nil {
			return nil, invalid(h, kind, "missing operand %d", n)
		}
	}
	return op, nil
}

func invalid(h graph.Handle, kind OperatorKind, format string, args ...any) *Error {
	e := NewInvalidParams(kind, format, args...)
	e.Operator = h
	return e
}

// Successors are the control-flow targets of an operator, keyed by outcome.
type Successors struct {
	Then, Else, Goto, Error []graph.Handle
}

// Successors reads the control-flow arcs leaving op.
func (r *Resolver) Successors(op graph.Handle) Successors {
	return Successors{
		Then:  r.Related(op, r.k.Then),
		Else:  r.Related(op, r.k.Else),
		Goto:  r.Related(op, r.k.Goto),
		Error: r.Related(op, r.k.ErrorRel),
	}
}

// Predecessors returns every control-flow arc entering op, sorted by source.
func (r *Resolver) Predecessors(op graph.Handle) []Edge {
	var out []Edge
	for _, rel := range []graph.Handle{r.k.Then, r.k.Else, r.k.Goto, r.k.ErrorRel} {
		for _, q := range r.g.Iterate5(graph.Any(0), graph.Any(graph.ArcCommon), graph.Fixed(op), graph.Any(graph.ArcAccess), graph.Fixed(rel)) {
			out = append(out, Edge{From: q.Src, To: op, Arc: q.Edge, Rel: rel})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].From.Index() < out[j].From.Index() })
	return out
}
