package interp

import (
	"context"
	"errors"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// lenientKinds inspect bindings themselves and skip the generic operand
// checks.
var lenientKinds = map[scp.OperatorKind]bool{
	scp.IfVarAssign: true,
	scp.VarErase:    true,
}

// dispatch runs one activation of op: it consumes the activation arc,
// resolves and parses the operator, executes it and reports the outcome.
func (rt *Runtime) dispatch(ctx context.Context, op, arc graph.Handle) error {
	rt.g.Erase(arc)
	if !rt.g.Exists(op) {
		return nil
	}

	process := rt.r.ProcessOf(op)
	rt.enter(process)
	defer rt.leave(process)

	kind, err := rt.r.Kind(op)
	if err != nil {
		return rt.finish(op, kind, Failed, err)
	}

	ctx, span := rt.tracer.Start(ctx, "scp."+kind.String())
	defer span.End()

	if err := rt.quotas.Check(process); err != nil {
		rt.log.Error("max steps exceeded", "process", process.String(), "error", err)
		span.RecordError(err)
		return rt.finish(op, kind, Failed, scp.NewExecError(kind, err, "step quota"))
	}

	parsed, err := scp.Parse(op, kind, rt.r.Operands(op))
	if err == nil {
		err = rt.prepare(parsed)
	}
	if err != nil {
		span.RecordError(err)
		return rt.finish(op, kind, Failed, err)
	}

	rt.log.Debug("executing operator", "kind", kind.String(), "operator", rt.g.Describe(op))
	outcome, err := rt.execute(ctx, parsed)
	if err != nil {
		span.RecordError(err)
		return rt.finish(op, kind, Failed, err)
	}
	if outcome == suspended {
		return nil
	}
	return rt.finish(op, kind, outcome, nil)
}

// prepare applies the checks every family shares: FIXED operands must have
// a value, constants cannot be assigned, and ASSIGN variables lose their
// previous value.
func (rt *Runtime) prepare(op *scp.Operator) error {
	if lenientKinds[op.Kind] {
		return nil
	}
	for _, o := range op.Operands() {
		switch {
		case o.IsFixed() && !o.HasValue():
			return invalid(op, "operand %d is FIXED but has no value", o.Order)
		case o.IsAssign() && !o.IsVar():
			return invalid(op, "operand %d: constant has ASSIGN modifier", o.Order)
		case o.IsAssign():
			rt.r.ResetValue(o)
		}
	}
	return nil
}

func (rt *Runtime) execute(ctx context.Context, op *scp.Operator) (Outcome, error) {
	switch op.Kind.Family() {
	case scp.FamilyGen:
		return rt.execGen(op)
	case scp.FamilyErase:
		return rt.execErase(op)
	case scp.FamilySearch:
		return rt.execSearch(op)
	case scp.FamilyCond:
		return rt.execCond(op)
	case scp.FamilyVar:
		return rt.execVar(op)
	case scp.FamilyProcess:
		return rt.execProcess(ctx, op)
	case scp.FamilyContent:
		return rt.execContent(op)
	}
	return 0, scp.NewInvalidType(op.Handle, "no interpreter for %s", op.Kind)
}

// finish records the outcome of op and inserts its finished marker.
func (rt *Runtime) finish(op graph.Handle, kind scp.OperatorKind, o Outcome, cause error) error {
	step := Step{Seq: rt.clock.Next(), Kind: kind, Operator: rt.g.Describe(op), Outcome: o}
	var se *scp.Error
	if errors.As(cause, &se) {
		step.Code = se.Code
	} else if cause != nil {
		step.Code = scp.CodeExec
	}
	rt.trace.Record(step)
	rt.metrics.operator(kind.String(), o.String())

	if cause != nil {
		rt.log.Warn("operator failed", "kind", kind.String(), "operator", step.Operator, "error", cause)
	} else {
		rt.log.Debug("operator finished", "kind", kind.String(), "operator", step.Operator, "outcome", o.String())
	}

	if !rt.g.Exists(op) {
		return nil
	}
	rt.clearFinished(op)
	if _, err := rt.g.CreateEdge(graph.ArcPosConstPerm, rt.marker(o), op); err != nil {
		return err
	}
	return nil
}

func invalid(op *scp.Operator, format string, args ...any) *scp.Error {
	e := scp.NewInvalidParams(op.Kind, format, args...)
	e.Operator = op.Handle
	return e
}

// set binds o to v when o is an ASSIGN variable.
func (rt *Runtime) set(o *scp.Operand, v graph.Handle) error {
	if o == nil || !o.IsAssign() || !o.IsVar() {
		return nil
	}
	return rt.r.SetValue(o, v)
}

// term converts an operand into an iteration term: its value when FIXED,
// its type filter when ASSIGN.
func term(o *scp.Operand) graph.Term {
	if o.IsFixed() {
		return graph.Fixed(o.Value)
	}
	return graph.Any(o.Type)
}

// enter and leave track operators executing inside a process so that the
// destroyer can wait for them.
func (rt *Runtime) enter(process graph.Handle) {
	if process.IsZero() {
		return
	}
	rt.procMu.Lock()
	rt.running[process]++
	rt.procMu.Unlock()
}

func (rt *Runtime) leave(process graph.Handle) {
	if process.IsZero() {
		return
	}
	rt.procMu.Lock()
	rt.running[process]--
	redo := rt.running[process] == 0 && rt.doomed[process]
	if rt.running[process] == 0 {
		delete(rt.running, process)
	}
	if redo {
		delete(rt.doomed, process)
	}
	rt.procMu.Unlock()
	if redo {
		rt.enqueue(work{kind: workDestroy, target: process})
	}
}
