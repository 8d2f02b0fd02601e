package compiler

import (
	"fmt"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/ir"
	"github.com/roach88/scp/internal/scp"
)

// Link writes progs into the graph through b and returns each program's key
// element by name. Every key is created before any body, so programs may
// call each other in any order. A program operand naming something outside
// progs is resolved as a system identifier of g.
//
// Link does not validate; run ValidateAll first.
func Link(b *scp.Builder, g *graph.Store, progs []*ir.Program) (map[string]graph.Handle, error) {
	builders := make([]*scp.ProgramBuilder, len(progs))
	keys := make(map[string]graph.Handle, len(progs))
	for i, p := range progs {
		builders[i] = b.Program(p.Name)
		keys[p.Name] = builders[i].Key
	}
	for i, p := range progs {
		l := &linker{g: g, p: p, pb: builders[i], keys: keys, refs: make(map[string]ref)}
		if err := l.link(); err != nil {
			return nil, fmt.Errorf("link program %s: %w", p.Name, err)
		}
		if _, err := builders[i].Build(); err != nil {
			return nil, fmt.Errorf("link program %s: %w", p.Name, err)
		}
	}
	return keys, nil
}

type ref struct {
	h     graph.Handle
	quant scp.Quantifier
}

type linker struct {
	g    *graph.Store
	p    *ir.Program
	pb   *scp.ProgramBuilder
	keys map[string]graph.Handle
	refs map[string]ref
}

func (l *linker) link() error {
	p, pb := l.p, l.pb
	// An IN parameter is replaced by the caller's value, so operands read
	// it as a constant. An OUT parameter is replaced by the caller's
	// variable.
	for _, prm := range p.Params {
		dir, quant := scp.In, scp.Const
		if prm.Dir == "out" {
			dir, quant = scp.Out, scp.Var
		}
		l.refs[prm.Name] = ref{pb.Param(prm.Order, dir, prm.Name), quant}
	}
	for _, name := range p.Vars {
		l.refs[name] = ref{pb.Var(name), scp.Var}
	}
	for _, c := range p.Consts {
		h, err := l.constant(c)
		if err != nil {
			return err
		}
		l.refs[c.Name] = ref{pb.Const(h), scp.Const}
	}
	for _, a := range p.Args {
		specs, err := l.specs(a.Operands)
		if err != nil {
			return fmt.Errorf("args %s: %w", a.Name, err)
		}
		l.refs[a.Name] = ref{pb.Args(a.Name, specs...), scp.Const}
	}

	ops := make(map[string]graph.Handle, len(p.Operators))
	for _, op := range p.Operators {
		kind, ok := scp.KindByName(op.Kind)
		if !ok {
			return fmt.Errorf("operator %s: unknown kind %q", op.Name, op.Kind)
		}
		specs, err := l.specs(op.Operands)
		if err != nil {
			return fmt.Errorf("operator %s: %w", op.Name, err)
		}
		ops[op.Name] = pb.Operator(kind, op.Name, specs...)
	}
	for _, op := range p.Operators {
		h := ops[op.Name]
		if op.Init {
			pb.Init(h)
		}
		if op.Join {
			pb.JoinAll(h)
		}
		for _, flow := range []struct {
			targets []string
			link    func(from, to graph.Handle)
		}{
			{op.Then, pb.Then},
			{op.Else, pb.Else},
			{op.Goto, pb.Goto},
			{op.Error, pb.OnError},
		} {
			for _, name := range flow.targets {
				next, ok := ops[name]
				if !ok {
					return fmt.Errorf("operator %s: unknown successor %q", op.Name, name)
				}
				flow.link(h, next)
			}
		}
	}
	return nil
}

// constant resolves a const by system identifier or creates its element.
func (l *linker) constant(c ir.Const) (graph.Handle, error) {
	if c.ID != "" {
		h, ok := l.g.Resolve(c.ID)
		if !ok {
			return graph.Handle{}, fmt.Errorf("const %s: identifier %q not found", c.Name, c.ID)
		}
		return h, nil
	}
	t, ok := graph.ParseType(c.Type)
	if !ok {
		return graph.Handle{}, fmt.Errorf("const %s: invalid type %q", c.Name, c.Type)
	}
	var (
		h   graph.Handle
		err error
	)
	if c.Content != nil || t.IsLink() {
		content := ""
		if c.Content != nil {
			content = *c.Content
		}
		h, err = l.g.CreateLink(content)
	} else {
		if t == 0 {
			t = graph.NodeConst
		}
		h, err = l.g.CreateNode(t)
	}
	if err != nil {
		return graph.Handle{}, fmt.Errorf("const %s: %w", c.Name, err)
	}
	l.g.SetLabel(h, c.Name)
	return h, nil
}

func (l *linker) specs(ops []ir.Operand) ([]scp.OperandSpec, error) {
	specs := make([]scp.OperandSpec, 0, len(ops))
	for i, o := range ops {
		s, err := l.spec(o)
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i+1, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func (l *linker) spec(o ir.Operand) (scp.OperandSpec, error) {
	var target ref
	switch {
	case o.Program != "":
		h, ok := l.keys[o.Program]
		if !ok {
			if h, ok = l.g.Resolve(o.Program); !ok {
				return scp.OperandSpec{}, fmt.Errorf("unknown program %q", o.Program)
			}
		}
		target = ref{h, scp.Const}
	default:
		r, ok := l.refs[o.Ref]
		if !ok {
			return scp.OperandSpec{}, fmt.Errorf("unknown ref %q", o.Ref)
		}
		target = r
	}
	t, ok := graph.ParseType(o.Type)
	if !ok {
		return scp.OperandSpec{}, fmt.Errorf("invalid type %q", o.Type)
	}
	s := scp.OperandSpec{
		Elem:     target.h,
		Order:    o.Order,
		SetIndex: o.Set,
		Mode:     scp.Assign,
		Quant:    target.quant,
		Type:     t,
		Erase:    o.Erase,
	}
	if o.Mode == "fixed" {
		s.Mode = scp.Fixed
	}
	switch o.Quant {
	case "const":
		s.Quant = scp.Const
	case "var":
		s.Quant = scp.Var
	}
	return s, nil
}
