package graph

// Term is one position of an iteration pattern: either a fixed element or a
// type filter.
type Term struct {
	h    Handle
	mask Type
}

// Fixed matches exactly h.
func Fixed(h Handle) Term { return Term{h: h} }

// Any matches every element whose type satisfies mask.
func Any(mask Type) Term { return Term{mask: mask} }

// IsFixed reports whether the term pins an element.
func (t Term) IsFixed() bool { return !t.h.IsZero() }

func (t Term) match(h Handle, typ Type) bool {
	if t.IsFixed() {
		return t.h == h
	}
	return typ.Satisfies(t.mask)
}

// Triple is a match of src --edge--> tgt.
type Triple struct {
	Src, Edge, Tgt Handle
}

// Quintuple is a match of src --edge--> tgt with rel --relEdge--> edge.
type Quintuple struct {
	Src, Edge, Tgt, RelEdge, Rel Handle
}

// Iterate3 returns every triple matching the pattern, in adjacency order.
func (s *Store) Iterate3(src, edge, tgt Term) []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iterate3Locked(src, edge, tgt)
}

func (s *Store) iterate3Locked(src, edge, tgt Term) []Triple {
	var out []Triple
	check := func(e Handle) {
		es := s.lookup(e)
		if es == nil || !edge.match(e, es.typ) {
			return
		}
		ss, ts := s.lookup(es.src), s.lookup(es.tgt)
		if ss == nil || ts == nil {
			return
		}
		if src.match(es.src, ss.typ) && tgt.match(es.tgt, ts.typ) {
			out = append(out, Triple{Src: es.src, Edge: e, Tgt: es.tgt})
		}
	}
	switch {
	case edge.IsFixed():
		check(edge.h)
	case src.IsFixed():
		if sl := s.lookup(src.h); sl != nil {
			for _, e := range sl.out {
				check(e)
			}
		}
	case tgt.IsFixed():
		if sl := s.lookup(tgt.h); sl != nil {
			for _, e := range sl.in {
				check(e)
			}
		}
	default:
		for i := 1; i < len(s.slots); i++ {
			sl := &s.slots[i]
			if sl.live && sl.typ.IsEdge() {
				check(Handle{index: uint32(i), gen: sl.gen})
			}
		}
	}
	return out
}

// Iterate5 returns every quintuple matching the pattern.
func (s *Store) Iterate5(src, edge, tgt, relEdge, rel Term) []Quintuple {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Quintuple
	if rel.IsFixed() && !src.IsFixed() && !edge.IsFixed() && !tgt.IsFixed() {
		// Only the relation is pinned: walk its outgoing edges.
		for _, r := range s.iterate3Locked(rel, relEdge, Any(EdgeMask)) {
			if !edge.match(r.Tgt, s.slots[r.Tgt.index].typ) {
				continue
			}
			for _, t := range s.iterate3Locked(src, Fixed(r.Tgt), tgt) {
				out = append(out, Quintuple{Src: t.Src, Edge: t.Edge, Tgt: t.Tgt, RelEdge: r.Edge, Rel: r.Src})
			}
		}
		return out
	}
	for _, t := range s.iterate3Locked(src, edge, tgt) {
		for _, r := range s.iterate3Locked(rel, relEdge, Fixed(t.Edge)) {
			out = append(out, Quintuple{Src: t.Src, Edge: t.Edge, Tgt: t.Tgt, RelEdge: r.Edge, Rel: r.Src})
		}
	}
	return out
}

// Outgoing returns the edges leaving h whose type satisfies mask.
func (s *Store) Outgoing(h Handle, mask Type) []Triple {
	return s.Iterate3(Fixed(h), Any(mask), Any(0))
}

// Incoming returns the edges entering h whose type satisfies mask.
func (s *Store) Incoming(h Handle, mask Type) []Triple {
	return s.Iterate3(Any(0), Any(mask), Fixed(h))
}
