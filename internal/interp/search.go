package interp

import (
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

func (rt *Runtime) execSearch(op *scp.Operator) (Outcome, error) {
	switch op.Kind {
	case scp.SearchElStr3:
		ops := op.Positions(3)
		if err := rt.checkSearch(op, ops, searchStr3Shapes); err != nil {
			return 0, err
		}
		matches := rt.g.Iterate3(term(ops[0]), term(ops[1]), term(ops[2]))
		if len(matches) == 0 {
			return Unsuccessful, nil
		}
		m := matches[0]
		return rt.bindAll(op, ops, []graph.Handle{m.Src, m.Edge, m.Tgt})
	case scp.SearchElStr5:
		ops := op.Positions(5)
		if err := rt.checkSearch(op, ops, searchStr5Shapes); err != nil {
			return 0, err
		}
		matches := rt.g.Iterate5(term(ops[0]), term(ops[1]), term(ops[2]), term(ops[3]), term(ops[4]))
		if len(matches) == 0 {
			return Unsuccessful, nil
		}
		m := matches[0]
		return rt.bindAll(op, ops, []graph.Handle{m.Src, m.Edge, m.Tgt, m.RelEdge, m.Rel})
	case scp.SearchSetStr3:
		ops := op.Positions(3)
		if err := rt.checkSearch(op, ops, str3EndShapes); err != nil {
			return 0, err
		}
		var rows [][]graph.Handle
		for _, m := range rt.g.Iterate3(term(ops[0]), term(ops[1]), term(ops[2])) {
			rows = append(rows, []graph.Handle{m.Src, m.Edge, m.Tgt})
		}
		return rt.collect(op, ops, rows)
	case scp.SearchSetStr5:
		ops := op.Positions(5)
		if err := rt.checkSearch(op, ops, str5OuterShapes); err != nil {
			return 0, err
		}
		var rows [][]graph.Handle
		for _, m := range rt.g.Iterate5(term(ops[0]), term(ops[1]), term(ops[2]), term(ops[3]), term(ops[4])) {
			rows = append(rows, []graph.Handle{m.Src, m.Edge, m.Tgt, m.RelEdge, m.Rel})
		}
		return rt.collect(op, ops, rows)
	}
	return 0, invalid(op, "not a search operator")
}

func (rt *Runtime) checkSearch(op *scp.Operator, ops []*scp.Operand, allowed shapeSet) error {
	shape := scp.ShapeOf(ops...)
	if !allowed[shape] {
		return invalid(op, "unsupported shape %s", shape)
	}
	if ops[1].IsFixed() && !rt.g.Type(ops[1].Value).IsEdge() {
		return invalid(op, "FIXED operand 2 is not an arc")
	}
	if len(ops) == 5 && ops[3].IsFixed() && !rt.g.Type(ops[3].Value).IsEdge() {
		return invalid(op, "FIXED operand 4 is not an arc")
	}
	for k := range ops {
		if so := op.SetOperand(k + 1); so != nil && ops[k].IsFixed() {
			return invalid(op, "FIXED operand %d cannot collect into a set", k+1)
		}
	}
	return nil
}

// collect accumulates every distinct value seen at each set-flagged
// position into that position's set, creating ASSIGN sets on first use, and
// binds ASSIGN positions to the first row.
func (rt *Runtime) collect(op *scp.Operator, ops []*scp.Operand, rows [][]graph.Handle) (Outcome, error) {
	if len(rows) == 0 {
		return Unsuccessful, nil
	}
	sets := make(map[int]graph.Handle)
	for _, row := range rows {
		for k := 1; k <= len(ops); k++ {
			so := op.SetOperand(k)
			if so == nil {
				continue
			}
			set, ok := sets[k]
			if !ok {
				var err error
				if set, err = rt.setFor(op, so); err != nil {
					return 0, err
				}
				sets[k] = set
			}
			if _, _, err := rt.g.EnsureEdge(graph.ArcPosConstPerm, set, row[k-1]); err != nil {
				return 0, scp.NewExecError(op.Kind, err, "add to set %d", k)
			}
		}
	}
	return rt.bindAll(op, ops, rows[0])
}

func (rt *Runtime) setFor(op *scp.Operator, so *scp.Operand) (graph.Handle, error) {
	if so.IsFixed() {
		return so.Value, nil
	}
	set, err := rt.g.CreateNode(graph.NodeConst)
	if err != nil {
		return graph.Handle{}, scp.NewExecError(op.Kind, err, "create set")
	}
	if err := rt.set(so, set); err != nil {
		return graph.Handle{}, scp.NewExecError(op.Kind, err, "bind set %d", so.SetIndex)
	}
	return set, nil
}
