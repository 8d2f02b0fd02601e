package interp

import (
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// destroy reclaims the private elements of a finished process. It waits
// for operators still executing inside the process: the last one to leave
// re-queues the destruction.
func (rt *Runtime) destroy(process graph.Handle) error {
	if !rt.g.Exists(process) {
		return nil
	}
	rt.procMu.Lock()
	if rt.running[process] > 0 {
		rt.doomed[process] = true
		rt.procMu.Unlock()
		return nil
	}
	copies := rt.copies[process]
	delete(rt.copies, process)
	rt.procMu.Unlock()

	cancelled := rt.subs.CancelOwner(process)

	keep := make(map[graph.Handle]bool)
	if req := rt.r.RequestOfProcess(process); !req.IsZero() {
		if _, args := rt.r.RequestParts(req); !args.IsZero() {
			for _, m := range rt.r.Members(args) {
				keep[m.Elem] = true
			}
		}
	}

	var doomed []graph.Handle
	for _, m := range rt.r.Members(process) {
		op := m.Elem
		kind, _ := rt.r.Kind(op)
		for _, o := range rt.r.Operands(op) {
			if o.IsVar() && !keep[o.Elem] {
				doomed = append(doomed, o.Elem)
			}
		}
		if kind == scp.Call {
			doomed = append(doomed, rt.callArtifacts(op)...)
		}
		doomed = append(doomed, op)
		rt.forgetJoin(op)
	}
	for _, h := range copies {
		if !keep[h] {
			doomed = append(doomed, h)
		}
	}
	for _, h := range doomed {
		rt.g.Erase(h)
	}
	rt.g.Erase(process)
	rt.quotas.Forget(process)
	rt.metrics.process("destroyed")
	rt.log.Debug("process destroyed", "process", process.String(), "erased", len(doomed), "cancelled_subscriptions", cancelled)
	return nil
}

// callArtifacts returns the argument set and request built by a call
// operator, once the callee has finished with them.
func (rt *Runtime) callArtifacts(op graph.Handle) []graph.Handle {
	var out []graph.Handle
	for _, o := range rt.r.Operands(op) {
		if o.Order != 3 || !o.IsVar() || !o.HasValue() {
			continue
		}
		req := o.Value
		if !rt.r.FinishState(req).Terminal() {
			continue
		}
		if _, args := rt.r.RequestParts(req); !args.IsZero() {
			out = append(out, args)
		}
		out = append(out, req)
	}
	return out
}
