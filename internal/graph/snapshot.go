package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Record is the persisted form of one element.
type Record struct {
	Handle     Handle
	Type       Type
	Source     Handle
	Target     Handle
	Content    string
	HasContent bool
	Identifier string
	Label      string
}

// Snapshot returns every live element in arena order.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, s.live)
	for i := 1; i < len(s.slots); i++ {
		sl := &s.slots[i]
		if !sl.live {
			continue
		}
		out = append(out, Record{
			Handle:     Handle{index: uint32(i), gen: sl.gen},
			Type:       sl.typ,
			Source:     sl.src,
			Target:     sl.tgt,
			Content:    sl.content,
			HasContent: sl.hasContent,
			Identifier: sl.ident,
			Label:      sl.label,
		})
	}
	return out
}

// Restore loads records into an empty store, preserving handles. No events
// are published.
func (s *Store) Restore(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live != 0 {
		return errors.New("restore into non-empty store")
	}
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Handle.index < sorted[j].Handle.index })

	var top uint32
	for _, r := range sorted {
		if r.Handle.IsZero() || r.Handle.index == 0 {
			return fmt.Errorf("restore record with empty handle")
		}
		if r.Handle.index > top {
			top = r.Handle.index
		}
	}
	s.slots = make([]slot, top+1)
	for _, r := range sorted {
		sl := &s.slots[r.Handle.index]
		if sl.live {
			return fmt.Errorf("restore duplicate handle %s", r.Handle)
		}
		*sl = slot{
			gen:        r.Handle.gen,
			live:       true,
			typ:        r.Type,
			src:        r.Source,
			tgt:        r.Target,
			content:    r.Content,
			hasContent: r.HasContent,
			ident:      r.Identifier,
			label:      r.Label,
		}
		if r.Identifier != "" {
			s.idents[r.Identifier] = r.Handle
		}
	}
	for _, r := range sorted {
		if !r.Type.IsEdge() {
			continue
		}
		if s.lookup(r.Source) == nil || s.lookup(r.Target) == nil {
			return fmt.Errorf("restore edge %s: dangling end: %w", r.Handle, ErrNotFound)
		}
		s.slots[r.Source.index].out = append(s.slots[r.Source.index].out, r.Handle)
		s.slots[r.Target.index].in = append(s.slots[r.Target.index].in, r.Handle)
	}
	s.free = s.free[:0]
	for i := uint32(1); i <= top; i++ {
		if !s.slots[i].live {
			s.free = append(s.free, i)
		}
	}
	s.live = len(sorted)
	return nil
}
