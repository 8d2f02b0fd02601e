package interp

import (
	"github.com/roach88/scp/internal/scp"
)

func (rt *Runtime) execVar(op *scp.Operator) (Outcome, error) {
	switch op.Kind {
	case scp.VarAssign:
		dst, src := op.Operand(1), op.Operand(2)
		if !dst.IsAssign() || !dst.IsVar() {
			return 0, invalid(op, "operand 1 must be an ASSIGN variable")
		}
		if !src.IsFixed() {
			return 0, invalid(op, "operand 2 must be FIXED")
		}
		if err := rt.r.SetValue(dst, src.Value); err != nil {
			return 0, scp.NewExecError(op.Kind, err, "assign")
		}
		return Successful, nil
	case scp.VarErase:
		// Constants carry no binding; there is nothing to clear.
		if o := op.Operand(1); o.IsVar() {
			rt.r.ResetValue(o)
		}
		return Successful, nil
	}
	return 0, invalid(op, "not a variable operator")
}
