package interp

import (
	"math"
	"strconv"
	"strings"

	"github.com/roach88/scp/internal/scp"
)

// number parses the content of the FIXED link in operand n as a float.
func (rt *Runtime) number(op *scp.Operator, n int) (float64, error) {
	content, err := rt.linkContent(op, n)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
	if err != nil {
		return 0, invalid(op, "operand %d is not a number: %q", n, content)
	}
	return v, nil
}

// formatNumber renders v in its shortest exact decimal form.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// arithmetic computes operand 2 <op> operand 3 and writes the result into
// the link in operand 1.
func (rt *Runtime) arithmetic(op *scp.Operator) (Outcome, error) {
	a, err := rt.number(op, 2)
	if err != nil {
		return 0, err
	}
	b, err := rt.number(op, 3)
	if err != nil {
		return 0, err
	}

	var v float64
	switch op.Kind {
	case scp.ContAdd:
		v = a + b
	case scp.ContSub:
		v = a - b
	case scp.ContMult:
		v = a * b
	case scp.ContDiv:
		if b == 0 {
			return 0, invalid(op, "division by zero")
		}
		v = a / b
	case scp.ContPow:
		v = math.Pow(a, b)
	case scp.ContDivInt, scp.ContDivRem:
		x, y := int64(a), int64(b)
		if y == 0 {
			return 0, invalid(op, "division by zero")
		}
		if op.Kind == scp.ContDivInt {
			v = float64(x / y)
		} else {
			v = float64(x % y)
		}
	default:
		return 0, invalid(op, "not an arithmetic operator")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(op, "result is not a finite number")
	}
	return rt.writeLink(op, op.Operand(1), formatNumber(v))
}
