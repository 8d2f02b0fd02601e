package interp

import (
	"slices"
	"strings"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// synchronize advances control flow after op finished with marker.
//
// Successful follows then and goto arcs, Unsuccessful follows else and goto
// arcs, an error follows error arcs. An error with nowhere to go fails the
// whole process. Operators marked executable-after-all-previous start only
// once every predecessor has reached an outcome its arc accepts.
func (rt *Runtime) synchronize(op, marker graph.Handle) error {
	outcome, ok := rt.outcomeOfMarker(marker)
	if !ok || !rt.g.Exists(op) {
		return nil
	}
	if _, err := rt.r.Kind(op); err != nil {
		// Requests carry the same markers; they have no successors.
		return nil
	}
	process := rt.r.ProcessOf(op)
	if !process.IsZero() && rt.r.IsMarked(process, rt.k.UselessProcess) {
		return nil
	}

	succ := rt.r.Successors(op)
	var next []graph.Handle
	switch outcome {
	case Successful:
		next = append(append(next, succ.Then...), succ.Goto...)
	case Unsuccessful:
		next = append(append(next, succ.Else...), succ.Goto...)
	case Failed:
		next = succ.Error
		if len(next) == 0 {
			rt.log.Warn("unhandled operator error", "operator", rt.g.Describe(op), "process", process.String())
			rt.abandon(process)
			return nil
		}
	}

	for _, n := range next {
		if rt.r.IsMarked(n, rt.k.Active) {
			continue
		}
		if rt.r.IsMarked(n, rt.k.AfterAllPrevious) && !rt.claimJoin(n) {
			continue
		}
		if err := rt.Activate(n); err != nil {
			return err
		}
	}
	return nil
}

// predecessorsDone reports whether every control arc entering op comes
// from an operator whose outcome that arc follows.
func (rt *Runtime) predecessorsDone(op graph.Handle) bool {
	for _, p := range rt.r.Predecessors(op) {
		state := rt.r.FinishState(p.From)
		switch p.Rel {
		case rt.k.Then:
			if state != scp.StateFinishedSuccessfully {
				return false
			}
		case rt.k.Else:
			if state != scp.StateFinishedUnsuccessfully {
				return false
			}
		case rt.k.Goto:
			if state != scp.StateFinishedSuccessfully && state != scp.StateFinishedUnsuccessfully {
				return false
			}
		case rt.k.ErrorRel:
			if state != scp.StateFinishedWithError {
				return false
			}
		}
	}
	return true
}

// claimJoin reports whether the caller may activate the join operator op.
// Predecessors finishing on different workers race to release it; only the
// first to see a given set of predecessor outcomes wins.
func (rt *Runtime) claimJoin(op graph.Handle) bool {
	rt.joinMu.Lock()
	defer rt.joinMu.Unlock()
	if !rt.predecessorsDone(op) {
		return false
	}
	key := rt.joinKey(op)
	if rt.joins[op] == key {
		return false
	}
	rt.joins[op] = key
	return true
}

// joinKey identifies the finished markers of op's predecessors. A
// predecessor that runs again gets a new marker, so the key changes.
func (rt *Runtime) joinKey(op graph.Handle) string {
	var arcs []string
	for _, p := range rt.r.Predecessors(op) {
		for _, m := range []graph.Handle{rt.k.FinishedSuccessfully, rt.k.FinishedUnsuccessfully, rt.k.FinishedWithError} {
			for _, t := range rt.g.Iterate3(graph.Fixed(m), graph.Any(graph.ArcAccess), graph.Fixed(p.From)) {
				arcs = append(arcs, t.Edge.String())
			}
		}
	}
	slices.Sort(arcs)
	return strings.Join(arcs, ",")
}

func (rt *Runtime) forgetJoin(op graph.Handle) {
	rt.joinMu.Lock()
	delete(rt.joins, op)
	rt.joinMu.Unlock()
}
