package scp

import (
	"fmt"

	"github.com/roach88/scp/internal/graph"
)

// Resolver classifies operands and reads operator structure from the graph.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	g *graph.Store
	k *Keynodes
}

// NewResolver returns a resolver over g.
func NewResolver(g *graph.Store, k *Keynodes) *Resolver {
	return &Resolver{g: g, k: k}
}

func (r *Resolver) Graph() *graph.Store { return r.g }
func (r *Resolver) Keynodes() *Keynodes { return r.k }

// Resolve classifies the operand declared by the access arc decl. An arc
// without recognised modifiers yields an ASSIGN/CONST operand of order 0,
// which Parse rejects.
func (r *Resolver) Resolve(decl graph.Handle) Operand {
	_, elem, _ := r.g.Ends(decl)
	op := Operand{Decl: decl, Elem: elem}

	var modeSeen, quantSeen bool
	for _, m := range r.g.Incoming(decl, graph.ArcAccess) {
		mod := m.Src
		switch {
		case mod == r.k.Fixed || mod == r.k.Assign:
			mode := Assign
			if mod == r.k.Fixed {
				mode = Fixed
			}
			if modeSeen && op.Mode != mode {
				op.conflicts = append(op.conflicts, "binding mode")
			}
			op.Mode, modeSeen = mode, true
		case mod == r.k.ScpConst || mod == r.k.ScpVar:
			q := Const
			if mod == r.k.ScpVar {
				q = Var
			}
			if quantSeen && op.Quant != q {
				op.conflicts = append(op.conflicts, "quantifier")
			}
			op.Quant, quantSeen = q, true
		case mod == r.k.Set:
			// A bare rrel_set adds nothing; set operands are rrel_set_k.
		case mod == r.k.Erase:
			op.Erase = true
		default:
			if n, ok := r.k.OrderOf(mod); ok {
				r.setOrder(&op, n)
				continue
			}
			if n, ok := r.setIndexOf(mod); ok {
				op.SetIndex = n
				r.setOrder(&op, SetOrderBase+n)
				continue
			}
			if bits, ok := r.k.Types[mod]; ok {
				op.Type |= bits
			}
		}
	}
	op.Value = r.valueOf(&op)
	return op
}

func (r *Resolver) setOrder(op *Operand, n int) {
	if op.Order != 0 && op.Order != n {
		op.conflicts = append(op.conflicts, "order")
	}
	op.Order = n
}

func (r *Resolver) setIndexOf(h graph.Handle) (int, bool) {
	for i := 1; i < len(r.k.SetOrder); i++ {
		if r.k.SetOrder[i] == h {
			return i, true
		}
	}
	return 0, false
}

func (r *Resolver) valueOf(op *Operand) graph.Handle {
	if op.Quant == Const {
		return op.Elem
	}
	return r.VarValue(op.Elem)
}

// VarValue returns the element bound to variable v, or zero.
func (r *Resolver) VarValue(v graph.Handle) graph.Handle {
	for _, q := range r.g.Iterate5(graph.Fixed(v), graph.Any(graph.ArcCommon), graph.Any(0), graph.Any(graph.ArcAccess), graph.Fixed(r.k.Value)) {
		return q.Tgt
	}
	return graph.Handle{}
}

// Operands resolves every operand declared on op, in declaration order.
func (r *Resolver) Operands(op graph.Handle) []Operand {
	decls := r.g.Outgoing(op, graph.ArcAccess)
	out := make([]Operand, 0, len(decls))
	for _, d := range decls {
		out = append(out, r.Resolve(d.Edge))
	}
	return out
}

// Kind returns the unique operator kind tagging op.
func (r *Resolver) Kind(op graph.Handle) (OperatorKind, error) {
	if !r.g.Exists(op) {
		return KindUnknown, NewInvalidType(op, "operator %s does not exist", op)
	}
	found := KindUnknown
	for _, in := range r.g.Incoming(op, graph.ArcAccess) {
		kind, ok := r.k.KindOf(in.Src)
		if !ok {
			continue
		}
		if found != KindUnknown && found != kind {
			return KindUnknown, NewInvalidType(op, "operator %s has kinds %s and %s", r.g.Describe(op), found, kind)
		}
		found = kind
	}
	if found == KindUnknown {
		return KindUnknown, NewInvalidType(op, "operator %s has no kind", r.g.Describe(op))
	}
	return found, nil
}

// SetValue binds variable operand o to v, replacing any prior binding, and
// updates o.Value.
func (r *Resolver) SetValue(o *Operand, v graph.Handle) error {
	if o.Quant != Var {
		return fmt.Errorf("set value of const operand %s", o)
	}
	if err := r.BindVar(o.Elem, v); err != nil {
		return err
	}
	o.Value = v
	return nil
}

// BindVar replaces the binding of variable node vr with v.
func (r *Resolver) BindVar(vr, v graph.Handle) error {
	r.UnbindVar(vr)
	arc, err := r.g.CreateEdge(graph.ArcCommonConst, vr, v)
	if err != nil {
		return fmt.Errorf("bind %s: %w", r.g.Describe(vr), err)
	}
	if _, err := r.g.CreateEdge(graph.ArcPosConstPerm, r.k.Value, arc); err != nil {
		r.g.Erase(arc)
		return fmt.Errorf("tag binding of %s: %w", r.g.Describe(vr), err)
	}
	return nil
}

// ResetValue removes the binding of a variable operand.
func (r *Resolver) ResetValue(o *Operand) {
	if o.Quant != Var {
		return
	}
	r.UnbindVar(o.Elem)
	o.Value = graph.Handle{}
}

// UnbindVar erases every binding arc of variable node vr.
func (r *Resolver) UnbindVar(vr graph.Handle) {
	for _, q := range r.g.Iterate5(graph.Fixed(vr), graph.Any(graph.ArcCommon), graph.Any(0), graph.Any(graph.ArcAccess), graph.Fixed(r.k.Value)) {
		r.g.Erase(q.Edge)
	}
}

// Edge is a tagged common arc between two elements.
type Edge struct {
	From, To graph.Handle
	Arc      graph.Handle
	Rel      graph.Handle
}

// Related returns the targets of common arcs leaving from and tagged by rel.
func (r *Resolver) Related(from, rel graph.Handle) []graph.Handle {
	var out []graph.Handle
	for _, q := range r.g.Iterate5(graph.Fixed(from), graph.Any(graph.ArcCommon), graph.Any(0), graph.Any(graph.ArcAccess), graph.Fixed(rel)) {
		out = append(out, q.Tgt)
	}
	return out
}

// RelatedFrom returns the sources of common arcs entering to and tagged by rel.
func (r *Resolver) RelatedFrom(to, rel graph.Handle) []graph.Handle {
	var out []graph.Handle
	for _, q := range r.g.Iterate5(graph.Any(0), graph.Any(graph.ArcCommon), graph.Fixed(to), graph.Any(graph.ArcAccess), graph.Fixed(rel)) {
		out = append(out, q.Src)
	}
	return out
}

// Member is an element of a set together with the role arcs tagging its
// membership arc.
type Member struct {
	Elem  graph.Handle
	Arc   graph.Handle
	Roles []graph.Handle
}

// Members lists the access-arc members of set.
func (r *Resolver) Members(set graph.Handle) []Member {
	var out []Member
	for _, t := range r.g.Outgoing(set, graph.ArcAccess) {
		m := Member{Elem: t.Tgt, Arc: t.Edge}
		for _, in := range r.g.Incoming(t.Edge, graph.ArcAccess) {
			m.Roles = append(m.Roles, in.Src)
		}
		out = append(out, m)
	}
	return out
}

// HasRole reports whether role tags the membership.
func (m Member) HasRole(role graph.Handle) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// OrderOf returns the rrel_n order tagging the membership.
func (r *Resolver) OrderOf(m Member) (int, bool) {
	for _, role := range m.Roles {
		if n, ok := r.k.OrderOf(role); ok {
			return n, true
		}
	}
	return 0, false
}

// IsMarked reports whether class --access--> h exists.
func (r *Resolver) IsMarked(h, class graph.Handle) bool {
	return r.g.CheckEdge(class, h, graph.ArcAccess)
}
