package scp

import (
	"errors"
	"fmt"

	"github.com/roach88/scp/internal/graph"
)

// OperandSpec describes an operand to attach when building an operator.
type OperandSpec struct {
	Elem     graph.Handle
	Order    int
	SetIndex int
	Mode     Mode
	Quant    Quantifier
	Type     graph.Type
	Erase    bool
}

// FixedConst is a FIXED operand whose value is elem itself.
func FixedConst(order int, elem graph.Handle) OperandSpec {
	return OperandSpec{Elem: elem, Order: order, Mode: Fixed, Quant: Const}
}

// FixedVar is a FIXED operand reading the value bound to variable elem.
func FixedVar(order int, elem graph.Handle) OperandSpec {
	return OperandSpec{Elem: elem, Order: order, Mode: Fixed, Quant: Var}
}

// AssignVar is an ASSIGN operand binding variable elem to a value of type t.
func AssignVar(order int, elem graph.Handle, t graph.Type) OperandSpec {
	return OperandSpec{Elem: elem, Order: order, Mode: Assign, Quant: Var, Type: t}
}

// SetVar is the ASSIGN rrel_set_k operand collecting values of position k.
func SetVar(k int, elem graph.Handle) OperandSpec {
	return OperandSpec{Elem: elem, SetIndex: k, Mode: Assign, Quant: Var}
}

// WithType returns a copy of s constrained to type t.
func (s OperandSpec) WithType(t graph.Type) OperandSpec { s.Type = t; return s }

// Erased returns a copy of s carrying the erase flag.
func (s OperandSpec) Erased() OperandSpec { s.Erase = true; return s }

// Builder writes SCP programs into the graph.
type Builder struct {
	g *graph.Store
	k *Keynodes
}

// NewBuilder returns a builder over g.
func NewBuilder(g *graph.Store, k *Keynodes) *Builder {
	return &Builder{g: g, k: k}
}

// ProgramBuilder accumulates one program. Errors are sticky and reported by
// Build.
type ProgramBuilder struct {
	b   *Builder
	err error

	Key       graph.Handle
	params    graph.Handle
	vars      graph.Handle
	consts    graph.Handle
	operators graph.Handle
	template  graph.Handle
}

// Program starts a program whose key element carries name as identifier.
func (b *Builder) Program(name string) *ProgramBuilder {
	p := &ProgramBuilder{b: b}
	p.Key = p.node(graph.NodeConst)
	if p.err == nil {
		if err := b.g.SetIdentifier(p.Key, name); err != nil {
			p.err = fmt.Errorf("program %s: %w", name, err)
		}
	}
	p.mark(b.k.Program, p.Key)

	p.params = p.node(graph.NodeConst | graph.NodeTuple)
	p.roleArc(p.Key, p.params, b.k.Params)
	p.vars = p.node(graph.NodeConst)
	p.relArc(p.Key, p.vars, b.k.ProgramVars)
	p.consts = p.node(graph.NodeConst)
	p.relArc(p.Key, p.consts, b.k.ProgramConsts)
	p.template = p.node(graph.NodeConst | graph.NodeStruct)
	p.relArc(p.Key, p.template, b.k.Template)

	p.operators = p.local(p.node(graph.NodeConst))
	p.roleArc(p.Key, p.operators, b.k.Operators)
	return p
}

func (p *ProgramBuilder) node(t graph.Type) graph.Handle {
	if p.err != nil {
		return graph.Handle{}
	}
	h, err := p.b.g.CreateNode(t)
	if err != nil {
		p.err = err
	}
	return h
}

func (p *ProgramBuilder) edge(t graph.Type, src, tgt graph.Handle) graph.Handle {
	if p.err != nil {
		return graph.Handle{}
	}
	h, err := p.b.g.CreateEdge(t, src, tgt)
	if err != nil {
		p.err = err
	}
	return h
}

// local adds h to the process-creation template.
func (p *ProgramBuilder) local(h graph.Handle) graph.Handle {
	if p.err == nil && !h.IsZero() {
		p.edge(graph.ArcPosConstPerm, p.template, h)
	}
	return h
}

func (p *ProgramBuilder) mark(class, h graph.Handle) graph.Handle {
	return p.edge(graph.ArcPosConstPerm, class, h)
}

func (p *ProgramBuilder) roleArc(src, tgt, role graph.Handle) graph.Handle {
	arc := p.edge(graph.ArcPosConstPerm, src, tgt)
	p.edge(graph.ArcPosConstPerm, role, arc)
	return arc
}

func (p *ProgramBuilder) relArc(src, tgt, rel graph.Handle) graph.Handle {
	arc := p.edge(graph.ArcCommonConst, src, tgt)
	p.edge(graph.ArcPosConstPerm, rel, arc)
	return arc
}

func (p *ProgramBuilder) labeled(h graph.Handle, label string) graph.Handle {
	if p.err == nil && label != "" {
		p.b.g.SetLabel(h, label)
	}
	return h
}

// Param declares the formal parameter of the given order.
func (p *ProgramBuilder) Param(order int, dir Direction, label string) graph.Handle {
	if order < 1 || order > MaxOperandOrder {
		p.fail(fmt.Errorf("parameter order %d out of range", order))
		return graph.Handle{}
	}
	h := p.labeled(p.local(p.node(graph.NodeVar)), label)
	arc := p.roleArc(p.params, h, p.b.k.Order[order])
	if dir == Out {
		p.edge(graph.ArcPosConstPerm, p.b.k.Out, arc)
	} else {
		p.edge(graph.ArcPosConstPerm, p.b.k.In, arc)
	}
	return h
}

// Var declares a program variable, instantiated afresh for each process.
func (p *ProgramBuilder) Var(label string) graph.Handle {
	h := p.labeled(p.local(p.node(graph.NodeVar)), label)
	p.edge(graph.ArcPosConstPerm, p.vars, h)
	return h
}

// Const declares an element shared by every process of the program.
func (p *ProgramBuilder) Const(h graph.Handle) graph.Handle {
	p.edge(graph.ArcPosConstPerm, p.consts, h)
	return h
}

// Node creates a template-local element copied into each process.
func (p *ProgramBuilder) Node(label string, t graph.Type) graph.Handle {
	return p.labeled(p.local(p.node(t)), label)
}

// Operator adds an operator of kind with the given operands.
func (p *ProgramBuilder) Operator(kind OperatorKind, label string, operands ...OperandSpec) graph.Handle {
	kh, ok := p.b.k.Kinds[kind]
	if !ok {
		p.fail(fmt.Errorf("unknown operator kind %d", kind))
		return graph.Handle{}
	}
	op := p.labeled(p.local(p.node(graph.NodeConst)), label)
	p.local(p.mark(kh, op))
	p.local(p.edge(graph.ArcPosConstPerm, p.operators, op))
	for _, spec := range operands {
		p.operand(op, spec)
	}
	return op
}

func (p *ProgramBuilder) operand(op graph.Handle, s OperandSpec) {
	if p.err != nil {
		return
	}
	if s.Elem.IsZero() {
		p.fail(errors.New("operand without element"))
		return
	}
	k := p.b.k
	decl := p.local(p.edge(graph.ArcPosConstPerm, op, s.Elem))
	mod := func(m graph.Handle) { p.local(p.edge(graph.ArcPosConstPerm, m, decl)) }

	switch {
	case s.SetIndex > 0:
		if s.SetIndex >= len(k.SetOrder) {
			p.fail(fmt.Errorf("set index %d out of range", s.SetIndex))
			return
		}
		mod(k.SetOrder[s.SetIndex])
	case s.Order >= 1 && s.Order <= MaxOperandOrder:
		mod(k.Order[s.Order])
	default:
		p.fail(fmt.Errorf("operand order %d out of range", s.Order))
		return
	}
	if s.Mode == Fixed {
		mod(k.Fixed)
	} else {
		mod(k.Assign)
	}
	if s.Quant == Var {
		mod(k.ScpVar)
	} else {
		mod(k.ScpConst)
	}
	if s.Erase {
		mod(k.Erase)
	}
	for _, id := range ModifierFor(s.Type) {
		h, ok := p.b.g.Resolve(id)
		if !ok {
			p.fail(fmt.Errorf("type modifier %s not loaded", id))
			return
		}
		mod(h)
	}
}

// Args creates a template-local argument set for call. Each member arc
// carries the modifiers of its spec, so arguments are classified like
// operands.
func (p *ProgramBuilder) Args(label string, specs ...OperandSpec) graph.Handle {
	set := p.Node(label, graph.NodeConst|graph.NodeTuple)
	for _, s := range specs {
		p.operand(set, s)
	}
	return set
}

// Init marks op as an initial operator of the program.
func (p *ProgramBuilder) Init(op graph.Handle) {
	for _, t := range p.b.g.Iterate3(graph.Fixed(p.operators), graph.Any(graph.ArcAccess), graph.Fixed(op)) {
		p.local(p.edge(graph.ArcPosConstPerm, p.b.k.Init, t.Edge))
		return
	}
	p.fail(fmt.Errorf("init: %s is not an operator of this program", op))
}

func (p *ProgramBuilder) flow(from, to, rel graph.Handle) {
	arc := p.local(p.edge(graph.ArcCommonConst, from, to))
	p.local(p.edge(graph.ArcPosConstPerm, rel, arc))
}

// Then links from to to on success.
func (p *ProgramBuilder) Then(from, to graph.Handle) { p.flow(from, to, p.b.k.Then) }

// Else links from to to on failure.
func (p *ProgramBuilder) Else(from, to graph.Handle) { p.flow(from, to, p.b.k.Else) }

// Goto links from to to unconditionally.
func (p *ProgramBuilder) Goto(from, to graph.Handle) { p.flow(from, to, p.b.k.Goto) }

// OnError links from to to on error.
func (p *ProgramBuilder) OnError(from, to graph.Handle) { p.flow(from, to, p.b.k.ErrorRel) }

// JoinAll makes op wait for every predecessor before it starts.
func (p *ProgramBuilder) JoinAll(op graph.Handle) {
	p.local(p.mark(p.b.k.AfterAllPrevious, op))
}

func (p *ProgramBuilder) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// Build returns the program key element or the first error encountered.
func (p *ProgramBuilder) Build() (graph.Handle, error) {
	if p.err != nil {
		return graph.Handle{}, fmt.Errorf("build program: %w", p.err)
	}
	return p.Key, nil
}
