package interp

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

func (rt *Runtime) execProcess(_ context.Context, op *scp.Operator) (Outcome, error) {
	switch op.Kind {
	case scp.Call:
		return rt.call(op)
	case scp.Return:
		return rt.ret(op)
	case scp.WaitReturn:
		return rt.waitReturn(op)
	case scp.WaitReturnSet:
		return rt.waitReturnSet(op)
	case scp.SysWait:
		return rt.sysWait(op)
	}
	return 0, invalid(op, "not a process-control operator")
}

// call validates the actual parameters against the program's formal list,
// builds the request and initiates it. Nothing is written to the graph
// until validation has passed.
func (rt *Runtime) call(op *scp.Operator) (Outcome, error) {
	progOp, paramsOp, reqOp := op.Operand(1), op.Operand(2), op.Operand(3)
	if !progOp.IsFixed() || !paramsOp.IsFixed() {
		return 0, invalid(op, "operands 1 and 2 must be FIXED")
	}
	if !reqOp.IsAssign() {
		return 0, invalid(op, "operand 3 must be ASSIGN")
	}
	prog, err := rt.r.Program(progOp.Value)
	if err != nil {
		return 0, invalid(op, "operand 1: %v", err)
	}

	actual := make(map[int]*scp.Operand)
	for _, m := range rt.r.Members(paramsOp.Value) {
		a := rt.r.Resolve(m.Arc)
		if a.Order < 1 || a.Order > scp.MaxOperandOrder {
			return 0, invalid(op, "argument %s has no order", rt.g.Describe(m.Elem))
		}
		if actual[a.Order] != nil {
			return 0, invalid(op, "duplicate argument order %d", a.Order)
		}
		actual[a.Order] = &a
	}

	args := make(map[int]graph.Handle, len(prog.Params))
	var resets []*scp.Operand
	for _, p := range prog.Params {
		a := actual[p.Order]
		switch {
		case a == nil && p.Dir == scp.In:
			return 0, invalid(op, "missing IN parameter %d", p.Order)
		case a == nil:
			// The creator supplies a fresh variable.
		case p.Dir == scp.In && a.IsAssign():
			return 0, invalid(op, "IN parameter %d has ASSIGN modifier", p.Order)
		case a.IsAssign():
			if !a.IsVar() {
				return 0, invalid(op, "OUT parameter %d: constant has ASSIGN modifier", p.Order)
			}
			resets = append(resets, a)
			args[p.Order] = a.Elem
		case !a.HasValue():
			return 0, invalid(op, "parameter %d has no value", p.Order)
		default:
			args[p.Order] = a.Value
		}
	}
	for n := range actual {
		if _, ok := prog.Param(n); !ok {
			return 0, invalid(op, "program %s has no parameter %d", rt.g.Describe(prog.Key), n)
		}
	}

	for _, a := range resets {
		rt.r.ResetValue(a)
	}
	req, _, err := rt.b.Request(prog.Key, args)
	if err != nil {
		return 0, scp.NewExecError(op.Kind, err, "build request")
	}
	if err := rt.set(reqOp, req); err != nil {
		rt.g.Erase(req)
		return 0, scp.NewExecError(op.Kind, err, "bind operand 3")
	}
	if _, err := rt.g.CreateEdge(graph.ArcPosConstPerm, rt.k.Initiated, req); err != nil {
		return 0, scp.NewExecError(op.Kind, err, "initiate request")
	}
	return Successful, nil
}

// ret finishes the enclosing process's request and releases the process.
func (rt *Runtime) ret(op *scp.Operator) (Outcome, error) {
	process := rt.r.ProcessOf(op.Handle)
	if process.IsZero() {
		return 0, scp.NewExecError(op.Kind, nil, "no enclosing process")
	}
	req := rt.r.RequestOfProcess(process)
	if req.IsZero() {
		return 0, scp.NewExecError(op.Kind, nil, "process %s has no request", process)
	}
	rt.finishRequest(req, Successful)
	if _, _, err := rt.g.EnsureEdge(graph.ArcPosConstPerm, rt.k.UselessProcess, process); err != nil {
		return 0, scp.NewExecError(op.Kind, err, "release process")
	}
	return Successful, nil
}

// waitReturn completes once the request in operand 1 has finished:
// successfully if the request did, unsuccessfully otherwise.
func (rt *Runtime) waitReturn(op *scp.Operator) (Outcome, error) {
	o := op.Operand(1)
	if !o.IsFixed() {
		return 0, invalid(op, "operand 1 must be FIXED")
	}
	req := o.Value
	if s := rt.r.FinishState(req); s != scp.StateUnknown {
		return returnOutcome(s), nil
	}
	process := rt.r.ProcessOf(op.Handle)
	id, err := rt.subs.add(subWaitReturn, process, op.Handle, req, graph.AddInputEdge, func(id string, _ graph.Event) {
		s := rt.r.FinishState(req)
		if s == scp.StateUnknown {
			return
		}
		if rt.subs.Retire(id) {
			rt.enqueue(work{kind: workResume, target: op.Handle, sub: id, outcome: returnOutcome(s)})
		}
	})
	if err != nil {
		return 0, scp.NewExecError(op.Kind, err, "subscribe to request")
	}
	// The request may have finished before the subscription was in place.
	if s := rt.r.FinishState(req); s != scp.StateUnknown && rt.subs.Retire(id) {
		return returnOutcome(s), nil
	}
	return suspended, nil
}

// setWait groups the subscriptions of one waitReturnSet so that exactly one
// of them resumes the operator.
type setWait struct {
	mu   sync.Mutex
	ids  []string
	done bool
}

// track records id. It reports false when the wait already completed, in
// which case the caller retires id itself.
func (w *setWait) track(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false
	}
	w.ids = append(w.ids, id)
	return true
}

func (w *setWait) claim() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false
	}
	w.done = true
	return true
}

// retire retires every tracked subscription and returns how many were
// still live.
func (w *setWait) retire(t *SubscriptionTable) int {
	w.mu.Lock()
	ids := w.ids
	w.ids = nil
	w.mu.Unlock()
	n := 0
	for _, id := range ids {
		if t.Retire(id) {
			n++
		}
	}
	return n
}

// waitReturnSet completes once every request in the set held by operand 1
// has finished: successfully if all of them did, unsuccessfully otherwise.
func (rt *Runtime) waitReturnSet(op *scp.Operator) (Outcome, error) {
	o := op.Operand(1)
	if !o.IsFixed() {
		return 0, invalid(op, "operand 1 must be FIXED")
	}
	var reqs []graph.Handle
	for _, m := range rt.r.Members(o.Value) {
		reqs = append(reqs, m.Elem)
	}
	if out, ok := rt.setOutcome(reqs); ok {
		return out, nil
	}

	process := rt.r.ProcessOf(op.Handle)
	w := &setWait{}
	for _, req := range reqs {
		if rt.r.FinishState(req) != scp.StateUnknown {
			continue
		}
		id, err := rt.subs.add(subWaitReturn, process, op.Handle, req, graph.AddInputEdge, func(id string, _ graph.Event) {
			out, ok := rt.setOutcome(reqs)
			if !ok || !w.claim() {
				return
			}
			n := w.retire(rt.subs)
			if rt.subs.Retire(id) {
				n++
			}
			if n > 0 {
				rt.enqueue(work{kind: workResume, target: op.Handle, sub: id, outcome: out})
			}
		})
		if err != nil {
			w.claim()
			w.retire(rt.subs)
			return 0, scp.NewExecError(op.Kind, err, "subscribe to request %s", rt.g.Describe(req))
		}
		if !w.track(id) {
			rt.subs.Retire(id)
		}
	}
	// Every request may have finished while the subscriptions were added.
	if out, ok := rt.setOutcome(reqs); ok && w.claim() {
		w.retire(rt.subs)
		return out, nil
	}
	return suspended, nil
}

// setOutcome reports the combined outcome of reqs once all have finished.
func (rt *Runtime) setOutcome(reqs []graph.Handle) (Outcome, bool) {
	out := Successful
	for _, req := range reqs {
		s := rt.r.FinishState(req)
		if s == scp.StateUnknown {
			return 0, false
		}
		if s != scp.StateFinishedSuccessfully {
			out = Unsuccessful
		}
	}
	return out, true
}

func returnOutcome(s scp.State) Outcome {
	if s == scp.StateFinishedSuccessfully {
		return Successful
	}
	return Unsuccessful
}

// sysWait suspends the operator until an event of the kind named by
// operand 1 occurs on the element in operand 2.
func (rt *Runtime) sysWait(op *scp.Operator) (Outcome, error) {
	kindOp, targetOp := op.Operand(1), op.Operand(2)
	if !kindOp.IsFixed() || !targetOp.IsFixed() {
		return 0, invalid(op, "both operands must be FIXED")
	}
	ev, ok := rt.k.EventOf(kindOp.Value)
	if !ok {
		e := scp.NewInvalidType(op.Handle, "unknown event kind %s", rt.g.Describe(kindOp.Value))
		e.Kind = op.Kind
		return 0, e
	}
	process := rt.r.ProcessOf(op.Handle)
	_, err := rt.subs.add(subSysWait, process, op.Handle, targetOp.Value, ev, func(id string, _ graph.Event) {
		if rt.subs.Retire(id) {
			rt.enqueue(work{kind: workResume, target: op.Handle, sub: id, outcome: Successful})
		}
	})
	if err != nil {
		return 0, scp.NewExecError(op.Kind, err, "subscribe to %s", rt.g.Describe(targetOp.Value))
	}
	rt.log.Debug("operator waiting", "operator", rt.g.Describe(op.Handle), "event", ev.String(), "target", rt.g.Describe(targetOp.Value))
	return suspended, nil
}

// resume finishes a suspended operator whose subscription fired.
func (rt *Runtime) resume(op graph.Handle, sub string, o Outcome) error {
	if !rt.g.Exists(op) {
		rt.log.Debug("dropping resume for erased operator", "subscription", sub)
		return nil
	}
	kind, err := rt.r.Kind(op)
	if err != nil {
		return fmt.Errorf("resume %s: %w", sub, err)
	}
	return rt.finish(op, kind, o, nil)
}
