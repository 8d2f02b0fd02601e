package interp

import (
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

func (rt *Runtime) execErase(op *scp.Operator) (Outcome, error) {
	switch op.Kind {
	case scp.EraseEl:
		o := op.Operand(1)
		if !o.IsFixed() || !o.HasValue() {
			return 0, invalid(op, "operand 1 must be FIXED with a value")
		}
		rt.g.Erase(o.Value)
		return Successful, nil
	case scp.EraseElStr3, scp.EraseSetStr3:
		ops := op.Positions(3)
		if !str3EndShapes[scp.ShapeOf(ops...)] {
			return 0, invalid(op, "unsupported shape %s", scp.ShapeOf(ops...))
		}
		matches := rt.g.Iterate3(term(ops[0]), term(ops[1]), term(ops[2]))
		if op.Kind == scp.EraseElStr3 && len(matches) > 1 {
			matches = matches[:1]
		}
		for _, m := range matches {
			rt.eraseMatch(ops, []graph.Handle{m.Src, m.Edge, m.Tgt})
		}
		return outcomeOf(len(matches) > 0), nil
	case scp.EraseElStr5, scp.EraseSetStr5:
		ops := op.Positions(5)
		if !str5OuterShapes[scp.ShapeOf(ops...)] {
			return 0, invalid(op, "unsupported shape %s", scp.ShapeOf(ops...))
		}
		matches := rt.g.Iterate5(term(ops[0]), term(ops[1]), term(ops[2]), term(ops[3]), term(ops[4]))
		if op.Kind == scp.EraseElStr5 && len(matches) > 1 {
			matches = matches[:1]
		}
		for _, m := range matches {
			rt.eraseMatch(ops, []graph.Handle{m.Src, m.Edge, m.Tgt, m.RelEdge, m.Rel})
		}
		return outcomeOf(len(matches) > 0), nil
	}
	return 0, invalid(op, "not an erasure operator")
}

// eraseMatch erases the positions flagged rrel_erase, or the main arc when
// none is flagged. Positions are erased in order, so erasing the main arc
// takes a dependent relation arc with it.
func (rt *Runtime) eraseMatch(ops []*scp.Operand, values []graph.Handle) {
	flagged := false
	for i, o := range ops {
		if o.Erase {
			flagged = true
			rt.g.Erase(values[i])
		}
	}
	if !flagged {
		rt.g.Erase(values[1])
	}
}
