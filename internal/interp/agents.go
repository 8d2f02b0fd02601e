package interp

import (
	"fmt"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// RegisterAgent makes program run whenever an event of kind ev occurs on
// target. Each event spawns a new process whose parameter 1 is the agent
// program itself and parameter 2 the triggering arc. Events whose opposite
// end is an interpretation request are skipped, so agents never react to
// the interpreter's own bookkeeping. The subscription stays until
// UnregisterAgent or Close.
func (rt *Runtime) RegisterAgent(program graph.Handle, ev graph.EventKind, target graph.Handle) (string, error) {
	if _, err := rt.r.Program(program); err != nil {
		return "", fmt.Errorf("register agent: %w", err)
	}
	id, err := rt.subs.add(subAgent, graph.Handle{}, program, target, ev, func(id string, e graph.Event) {
		if rt.subs.Live(id) {
			rt.enqueue(work{kind: workAgent, target: program, sub: id, arc: e.Edge, other: e.Other})
		}
	})
	if err != nil {
		return "", fmt.Errorf("register agent: %w", err)
	}
	rt.log.Debug("agent registered", "program", rt.g.Describe(program), "event", ev.String(), "target", rt.g.Describe(target), "subscription", id)
	return id, nil
}

// UnregisterAgent retires an agent subscription. It reports whether the
// subscription was still live.
func (rt *Runtime) UnregisterAgent(id string) bool {
	return rt.subs.Retire(id)
}

// RegisterAgentByKeynode is RegisterAgent with the event kind given as its
// keynode, as stored in agent descriptions.
func (rt *Runtime) RegisterAgentByKeynode(program, event, target graph.Handle) (string, error) {
	ev, ok := rt.k.EventOf(event)
	if !ok {
		return "", scp.NewInvalidType(event, "unknown event kind %s", rt.g.Describe(event))
	}
	return rt.RegisterAgent(program, ev, target)
}

func (rt *Runtime) runAgent(program graph.Handle, sub string, arc, other graph.Handle) error {
	if !rt.subs.Live(sub) {
		return nil
	}
	if !other.IsZero() && rt.r.IsMarked(other, rt.k.Request) {
		rt.log.Debug("agent skipped interpretation request", "subscription", sub, "request", rt.g.Describe(other))
		return nil
	}
	args := map[int]graph.Handle{1: program}
	if rt.g.Exists(arc) {
		args[2] = arc
	}
	if _, err := rt.Invoke(program, args); err != nil {
		return fmt.Errorf("agent %s: %w", sub, err)
	}
	return nil
}
