package interp

import (
	"fmt"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// spawn creates the process for an initiated request: it copies the
// program's template, substituting actual arguments for formal parameters
// and fresh variables for program variables, then activates the initial
// operators.
func (rt *Runtime) spawn(req graph.Handle) error {
	if !rt.r.IsMarked(req, rt.k.Request) {
		return nil
	}
	if !rt.r.ProcessOfRequest(req).IsZero() || rt.r.FinishState(req) != scp.StateUnknown {
		return nil
	}
	key, argSet := rt.r.RequestParts(req)
	prog, err := rt.r.Program(key)
	if err != nil {
		rt.log.Warn("request names no program", "request", req.String(), "error", err)
		rt.finishRequest(req, Failed)
		return nil
	}

	args := make(map[int]graph.Handle)
	if !argSet.IsZero() {
		for _, m := range rt.r.Members(argSet) {
			if n, ok := rt.r.OrderOf(m); ok {
				args[n] = m.Elem
			}
		}
	}

	c := &copier{rt: rt, mapping: make(map[graph.Handle]graph.Handle), template: make(map[graph.Handle]bool, len(prog.Template))}
	for _, h := range prog.Template {
		c.template[h] = true
	}
	for _, p := range prog.Params {
		if arg, ok := args[p.Order]; ok {
			c.mapping[p.Formal] = arg
			continue
		}
		if p.Dir == scp.In {
			rt.log.Warn("missing IN parameter", "program", rt.g.Describe(key), "order", p.Order)
			rt.finishRequest(req, Failed)
			return nil
		}
		fresh, err := c.fresh(p.Formal)
		if err != nil {
			return err
		}
		c.mapping[p.Formal] = fresh
	}
	for _, v := range prog.Vars {
		if _, err := c.fresh(v); err != nil {
			return err
		}
	}
	for _, k := range prog.Consts {
		c.mapping[k] = k
	}

	process, err := rt.g.CreateNode(graph.NodeConst)
	if err != nil {
		return fmt.Errorf("create process: %w", err)
	}
	rt.g.SetLabel(process, "process:"+rt.g.Describe(key))
	c.mapping[prog.Operators] = process

	for _, h := range prog.Template {
		if _, err := c.copy(h); err != nil {
			rt.g.Erase(process)
			for _, e := range c.created {
				rt.g.Erase(e)
			}
			return fmt.Errorf("copy template of %s: %w", rt.g.Describe(key), err)
		}
	}

	rt.procMu.Lock()
	rt.copies[process] = c.created
	rt.procMu.Unlock()

	if _, err := rt.g.CreateEdge(graph.ArcPosConstPerm, rt.k.Process, process); err != nil {
		return fmt.Errorf("mark process: %w", err)
	}
	rel, err := rt.g.CreateEdge(graph.ArcCommonConst, req, process)
	if err != nil {
		return fmt.Errorf("link process: %w", err)
	}
	if _, err := rt.g.CreateEdge(graph.ArcPosConstPerm, rt.k.ProcessRel, rel); err != nil {
		return fmt.Errorf("tag process link: %w", err)
	}
	rt.metrics.process("spawned")
	rt.log.Debug("process spawned", "program", rt.g.Describe(key), "process", process.String(), "elements", len(c.created))

	inits := rt.g.Iterate5(graph.Fixed(process), graph.Any(graph.ArcAccess), graph.Any(0), graph.Any(graph.ArcAccess), graph.Fixed(rt.k.Init))
	if len(inits) == 0 {
		rt.log.Warn("program has no initial operator", "program", rt.g.Describe(key))
		rt.abandon(process)
		return nil
	}
	for _, q := range inits {
		if err := rt.Activate(q.Tgt); err != nil {
			return err
		}
	}
	return nil
}

// copier duplicates template elements. Elements outside the template map
// to themselves; edges are copied after their ends.
type copier struct {
	rt       *Runtime
	mapping  map[graph.Handle]graph.Handle
	template map[graph.Handle]bool
	created  []graph.Handle
}

func (c *copier) fresh(h graph.Handle) (graph.Handle, error) {
	g := c.rt.g
	n, err := g.CreateNode(g.Type(h))
	if err != nil {
		return graph.Handle{}, fmt.Errorf("copy %s: %w", g.Describe(h), err)
	}
	g.SetLabel(n, g.Label(h))
	c.mapping[h] = n
	c.created = append(c.created, n)
	return n, nil
}

func (c *copier) copy(h graph.Handle) (graph.Handle, error) {
	if m, ok := c.mapping[h]; ok {
		return m, nil
	}
	if !c.template[h] {
		return h, nil
	}
	g := c.rt.g
	t := g.Type(h)
	if !t.IsEdge() {
		return c.fresh(h)
	}
	src, tgt, ok := g.Ends(h)
	if !ok {
		return graph.Handle{}, fmt.Errorf("template arc %s: %w", h, graph.ErrNotFound)
	}
	s, err := c.copy(src)
	if err != nil {
		return graph.Handle{}, err
	}
	d, err := c.copy(tgt)
	if err != nil {
		return graph.Handle{}, err
	}
	e, err := g.CreateEdge(t, s, d)
	if err != nil {
		return graph.Handle{}, fmt.Errorf("copy arc %s: %w", h, err)
	}
	c.mapping[h] = e
	c.created = append(c.created, e)
	return e, nil
}
