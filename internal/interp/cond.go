package interp

import (
	"github.com/roach88/scp/internal/scp"
)

func (rt *Runtime) execCond(op *scp.Operator) (Outcome, error) {
	switch op.Kind {
	case scp.IfType:
		o := op.Operand(1)
		if !o.IsFixed() {
			return 0, invalid(op, "operand 1 must be FIXED")
		}
		return outcomeOf(rt.g.Type(o.Value).Satisfies(o.Type)), nil
	case scp.IfCoin:
		a, b := op.Operand(1), op.Operand(2)
		if !a.IsFixed() || !b.IsFixed() {
			return 0, invalid(op, "both operands must be FIXED")
		}
		return outcomeOf(a.Value == b.Value), nil
	case scp.IfVarAssign:
		o := op.Operand(1)
		if !o.IsVar() {
			return 0, invalid(op, "operand 1 must be a variable")
		}
		return outcomeOf(!rt.r.VarValue(o.Elem).IsZero()), nil
	case scp.IfEq:
		a, b := op.Operand(1), op.Operand(2)
		if !a.IsFixed() || !b.IsFixed() {
			return 0, invalid(op, "both operands must be FIXED")
		}
		ca, okA := rt.g.Content(a.Value)
		cb, okB := rt.g.Content(b.Value)
		return outcomeOf(okA && okB && ca == cb), nil
	case scp.IfGr:
		a, err := rt.number(op, 1)
		if err != nil {
			return 0, err
		}
		b, err := rt.number(op, 2)
		if err != nil {
			return 0, err
		}
		return outcomeOf(a > b), nil
	case scp.IfFormCont:
		o := op.Operand(1)
		if !o.IsFixed() {
			return 0, invalid(op, "operand 1 must be FIXED")
		}
		if !rt.g.Type(o.Value).IsLink() {
			return 0, invalid(op, "operand 1 must be a link")
		}
		_, ok := rt.g.Content(o.Value)
		return outcomeOf(ok), nil
	}
	return 0, invalid(op, "not a conditional operator")
}
