package interp

import (
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

func (rt *Runtime) execGen(op *scp.Operator) (Outcome, error) {
	switch op.Kind {
	case scp.GenEl:
		return rt.genEl(op)
	case scp.GenElStr3:
		return rt.genElStr3(op)
	case scp.GenElStr5:
		return rt.genElStr5(op)
	}
	return 0, invalid(op, "not a generation operator")
}

// nodeType completes a declared node type: class defaults to node,
// constancy to const.
func nodeType(t graph.Type) graph.Type {
	if t&(graph.Node|graph.Link) == 0 {
		t |= graph.Node
	}
	if t&graph.ConstancyMask == 0 {
		t |= graph.Const
	}
	return t
}

// edgeType completes a declared edge type: constancy defaults to const and
// access arcs to positive permanent.
func edgeType(t graph.Type) graph.Type {
	if t&graph.ConstancyMask == 0 {
		t |= graph.Const
	}
	if t&graph.ArcAccess != 0 {
		if t&graph.PolarityMask == 0 {
			t |= graph.Pos
		}
		if t&graph.PermanencyMask == 0 {
			t |= graph.Perm
		}
	}
	return t
}

func (rt *Runtime) genEl(op *scp.Operator) (Outcome, error) {
	o := op.Operand(1)
	if !o.IsAssign() {
		return 0, invalid(op, "operand 1 must be ASSIGN")
	}
	if o.Type.IsEdge() {
		return 0, invalid(op, "genEl creates nodes only; use genElStr3 for arcs")
	}
	h, err := rt.g.CreateNode(nodeType(o.Type))
	if err != nil {
		return 0, scp.NewExecError(op.Kind, err, "create node")
	}
	if err := rt.set(o, h); err != nil {
		return 0, scp.NewExecError(op.Kind, err, "bind operand 1")
	}
	return Successful, nil
}

// checkEndpoint rejects an ASSIGN outer position that declares an arc type.
func checkEndpoint(op *scp.Operator, o *scp.Operand) error {
	if o.IsAssign() && o.Type.IsEdge() {
		return invalid(op, "ASSIGN operand %d must be a node", o.Order)
	}
	return nil
}

// builder tracks the elements a generation operator creates so that a
// failure part way leaves nothing behind.
type builder struct {
	rt      *Runtime
	op      *scp.Operator
	created []graph.Handle
}

// endpoint yields the value of an outer position: the existing value when
// FIXED, a fresh node of the declared type when ASSIGN.
func (b *builder) endpoint(o *scp.Operand) (graph.Handle, error) {
	if o.IsFixed() {
		return o.Value, nil
	}
	h, err := b.rt.g.CreateNode(nodeType(o.Type))
	if err != nil {
		return graph.Handle{}, scp.NewExecError(b.op.Kind, err, "create operand %d", o.Order)
	}
	b.created = append(b.created, h)
	return h, nil
}

func (b *builder) edge(t graph.Type, src, tgt graph.Handle) (graph.Handle, error) {
	e, err := b.rt.g.CreateEdge(edgeType(t), src, tgt)
	if err != nil {
		return graph.Handle{}, scp.NewExecError(b.op.Kind, err, "create arc")
	}
	b.created = append(b.created, e)
	return e, nil
}

// rollback erases everything created so far, newest first.
func (b *builder) rollback() {
	for i := len(b.created) - 1; i >= 0; i-- {
		b.rt.g.Erase(b.created[i])
	}
	b.created = nil
}

func checkEdgeOperand(op *scp.Operator, o *scp.Operand) error {
	if !o.IsAssign() {
		return invalid(op, "operand %d must be ASSIGN", o.Order)
	}
	if !o.Type.IsEdge() {
		return invalid(op, "operand %d must have an arc type", o.Order)
	}
	return nil
}

func (rt *Runtime) genElStr3(op *scp.Operator) (Outcome, error) {
	a, b, c := op.Operand(1), op.Operand(2), op.Operand(3)
	if err := checkEdgeOperand(op, b); err != nil {
		return 0, err
	}
	for _, o := range []*scp.Operand{a, c} {
		if err := checkEndpoint(op, o); err != nil {
			return 0, err
		}
	}
	gb := &builder{rt: rt, op: op}
	values, err := func() ([]graph.Handle, error) {
		src, err := gb.endpoint(a)
		if err != nil {
			return nil, err
		}
		tgt, err := gb.endpoint(c)
		if err != nil {
			return nil, err
		}
		e, err := gb.edge(b.Type, src, tgt)
		if err != nil {
			return nil, err
		}
		return []graph.Handle{src, e, tgt}, nil
	}()
	if err != nil {
		gb.rollback()
		return 0, err
	}
	return rt.bindAll(op, []*scp.Operand{a, b, c}, values)
}

func (rt *Runtime) genElStr5(op *scp.Operator) (Outcome, error) {
	ops := op.Positions(5)
	for _, i := range []int{1, 3} {
		if err := checkEdgeOperand(op, ops[i]); err != nil {
			return 0, err
		}
	}
	for _, i := range []int{0, 2, 4} {
		if err := checkEndpoint(op, ops[i]); err != nil {
			return 0, err
		}
	}
	gb := &builder{rt: rt, op: op}
	values, err := func() ([]graph.Handle, error) {
		var ends [3]graph.Handle
		for j, i := range []int{0, 2, 4} {
			h, err := gb.endpoint(ops[i])
			if err != nil {
				return nil, err
			}
			ends[j] = h
		}
		e, err := gb.edge(ops[1].Type, ends[0], ends[1])
		if err != nil {
			return nil, err
		}
		re, err := gb.edge(ops[3].Type, ends[2], e)
		if err != nil {
			return nil, err
		}
		return []graph.Handle{ends[0], e, ends[1], re, ends[2]}, nil
	}()
	if err != nil {
		gb.rollback()
		return 0, err
	}
	return rt.bindAll(op, ops, values)
}

// bindAll writes values back into every ASSIGN operand.
func (rt *Runtime) bindAll(op *scp.Operator, ops []*scp.Operand, values []graph.Handle) (Outcome, error) {
	for i, o := range ops {
		if err := rt.set(o, values[i]); err != nil {
			return 0, scp.NewExecError(op.Kind, err, "bind operand %d", o.Order)
		}
	}
	return Successful, nil
}
