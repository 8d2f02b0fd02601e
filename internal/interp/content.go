package interp

import (
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

func (rt *Runtime) execContent(op *scp.Operator) (Outcome, error) {
	switch op.Kind {
	case scp.PrintEl, scp.PrintNl:
		var s string
		if o := op.Operand(1); o != nil {
			if !o.IsFixed() {
				return 0, invalid(op, "operand 1 must be FIXED")
			}
			s = rt.render(o.Value)
		}
		if op.Kind == scp.PrintNl {
			s += "\n"
		}
		rt.write(s)
		return Successful, nil
	case scp.Print:
		s, err := rt.linkContent(op, 1)
		if err != nil {
			return 0, err
		}
		rt.write(s)
		return Successful, nil
	case scp.ContAssign:
		content, err := rt.linkContent(op, 2)
		if err != nil {
			return 0, err
		}
		return rt.writeLink(op, op.Operand(1), content)
	case scp.ContErase:
		o := op.Operand(1)
		if !o.IsFixed() {
			return 0, invalid(op, "operand 1 must be FIXED")
		}
		if _, err := rt.g.ClearContent(o.Value); err != nil {
			return 0, invalid(op, "operand 1: %v", err)
		}
		return Successful, nil
	case scp.ContAdd, scp.ContSub, scp.ContMult, scp.ContDiv, scp.ContPow, scp.ContDivInt, scp.ContDivRem:
		return rt.arithmetic(op)
	}
	return 0, invalid(op, "not a content operator")
}

// linkContent reads the content of the FIXED link in operand n.
func (rt *Runtime) linkContent(op *scp.Operator, n int) (string, error) {
	o := op.Operand(n)
	if !o.IsFixed() {
		return "", invalid(op, "operand %d must be FIXED", n)
	}
	if !rt.g.Type(o.Value).IsLink() {
		return "", invalid(op, "operand %d must be a link", n)
	}
	content, ok := rt.g.Content(o.Value)
	if !ok {
		return "", invalid(op, "operand %d has no content", n)
	}
	return content, nil
}

// writeLink stores content in the link held by dst, or in a new link bound
// to dst when dst is ASSIGN.
func (rt *Runtime) writeLink(op *scp.Operator, dst *scp.Operand, content string) (Outcome, error) {
	if dst.IsFixed() {
		if err := rt.g.SetContent(dst.Value, content); err != nil {
			return 0, invalid(op, "operand %d: %v", dst.Order, err)
		}
		return Successful, nil
	}
	link, err := rt.g.CreateLink(content)
	if err != nil {
		return 0, scp.NewExecError(op.Kind, err, "create link")
	}
	if err := rt.set(dst, link); err != nil {
		return 0, scp.NewExecError(op.Kind, err, "bind operand %d", dst.Order)
	}
	return Successful, nil
}

// render prints links by content and other elements by label.
func (rt *Runtime) render(h graph.Handle) string {
	if c, ok := rt.g.Content(h); ok {
		return c
	}
	return rt.g.Describe(h)
}
