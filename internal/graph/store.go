package graph

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound        = errors.New("element not found")
	ErrInvalidType     = errors.New("invalid element type")
	ErrNotLink         = errors.New("element is not a link")
	ErrIdentifierTaken = errors.New("identifier already bound")
)

// Handle addresses one element. The zero Handle addresses nothing.
type Handle struct {
	index uint32
	gen   uint32
}

// HandleOf rebuilds a handle from its raw parts.
func HandleOf(index, gen uint32) Handle { return Handle{index: index, gen: gen} }

func (h Handle) Index() uint32 { return h.index }
func (h Handle) Gen() uint32   { return h.gen }

// IsZero reports whether h is the empty handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return "#-"
	}
	return fmt.Sprintf("#%d.%d", h.index, h.gen)
}

type slot struct {
	gen  uint32
	live bool
	typ  Type

	src, tgt Handle
	out, in  []Handle

	content    string
	hasContent bool
	ident      string
	label      string
}

// Store is a concurrency-safe element arena.
type Store struct {
	mu     sync.RWMutex
	slots  []slot
	free   []uint32
	idents map[string]Handle
	live   int

	bus *bus
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		// Slot 0 is reserved so that the zero Handle never resolves.
		slots:  make([]slot, 1),
		idents: make(map[string]Handle),
		bus:    newBus(),
	}
}

func (s *Store) lookup(h Handle) *slot {
	if h.IsZero() || int(h.index) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[h.index]
	if !sl.live || sl.gen != h.gen {
		return nil
	}
	return sl
}

func (s *Store) alloc(t Type) Handle {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, slot{})
		idx = uint32(len(s.slots) - 1)
	}
	sl := &s.slots[idx]
	gen := sl.gen + 1
	*sl = slot{gen: gen, live: true, typ: t}
	s.live++
	return Handle{index: idx, gen: gen}
}

// CreateNode creates a node of type t. Missing class bits default to Node.
func (s *Store) CreateNode(t Type) (Handle, error) {
	if t&ElementMask == 0 {
		t |= Node
	}
	if t&(Node|Link) == 0 || t.IsEdge() {
		return Handle{}, fmt.Errorf("create node of type %s: %w", t, ErrInvalidType)
	}
	s.mu.Lock()
	h := s.alloc(t)
	s.mu.Unlock()
	return h, nil
}

// CreateLink creates a const link holding content.
func (s *Store) CreateLink(content string) (Handle, error) {
	h, err := s.CreateNode(LinkConst)
	if err != nil {
		return Handle{}, err
	}
	if err := s.SetContent(h, content); err != nil {
		return Handle{}, err
	}
	return h, nil
}

// CreateEdge creates an edge of type t from src to tgt.
func (s *Store) CreateEdge(t Type, src, tgt Handle) (Handle, error) {
	s.mu.Lock()
	h, err := s.createEdgeLocked(t, src, tgt)
	s.mu.Unlock()
	if err != nil {
		return Handle{}, err
	}
	s.bus.deliver(edgeAdded(h, src, tgt))
	return h, nil
}

// EnsureEdge returns an existing edge from src to tgt whose type satisfies t,
// creating one when none exists. The check and the creation are atomic.
func (s *Store) EnsureEdge(t Type, src, tgt Handle) (Handle, bool, error) {
	s.mu.Lock()
	if e, ok := s.findEdgeLocked(src, tgt, t); ok {
		s.mu.Unlock()
		return e, false, nil
	}
	h, err := s.createEdgeLocked(t, src, tgt)
	s.mu.Unlock()
	if err != nil {
		return Handle{}, false, err
	}
	s.bus.deliver(edgeAdded(h, src, tgt))
	return h, true, nil
}

func (s *Store) createEdgeLocked(t Type, src, tgt Handle) (Handle, error) {
	if !t.IsEdge() {
		return Handle{}, fmt.Errorf("create edge of type %s: %w", t, ErrInvalidType)
	}
	if s.lookup(src) == nil {
		return Handle{}, fmt.Errorf("edge source %s: %w", src, ErrNotFound)
	}
	if s.lookup(tgt) == nil {
		return Handle{}, fmt.Errorf("edge target %s: %w", tgt, ErrNotFound)
	}
	h := s.alloc(t)
	sl := &s.slots[h.index]
	sl.src, sl.tgt = src, tgt
	s.slots[src.index].out = append(s.slots[src.index].out, h)
	s.slots[tgt.index].in = append(s.slots[tgt.index].in, h)
	return h, nil
}

func (s *Store) findEdgeLocked(src, tgt Handle, mask Type) (Handle, bool) {
	sl := s.lookup(src)
	if sl == nil {
		return Handle{}, false
	}
	for _, e := range sl.out {
		es := &s.slots[e.index]
		if es.tgt == tgt && es.typ.Satisfies(mask) {
			return e, true
		}
	}
	return Handle{}, false
}

func edgeAdded(e, src, tgt Handle) []Event {
	return []Event{
		{Kind: AddOutputEdge, Subject: src, Edge: e, Other: tgt},
		{Kind: AddInputEdge, Subject: tgt, Edge: e, Other: src},
	}
}

// Erase removes h together with every edge incident to it, recursively.
// Erasing a missing element is not an error.
func (s *Store) Erase(h Handle) {
	s.mu.Lock()
	if s.lookup(h) == nil {
		s.mu.Unlock()
		return
	}
	var events []Event
	s.eraseLocked(h, &events)
	s.mu.Unlock()
	s.bus.deliver(events)
	for _, ev := range events {
		if ev.Kind == EraseElement {
			s.bus.dropTarget(ev.Subject)
		}
	}
}

func (s *Store) eraseLocked(h Handle, events *[]Event) {
	sl := s.lookup(h)
	if sl == nil {
		return
	}
	for len(sl.out) > 0 {
		s.eraseLocked(sl.out[len(sl.out)-1], events)
		sl = &s.slots[h.index]
	}
	for len(sl.in) > 0 {
		s.eraseLocked(sl.in[len(sl.in)-1], events)
		sl = &s.slots[h.index]
	}
	if sl.typ.IsEdge() {
		src, tgt := sl.src, sl.tgt
		if ss := s.lookup(src); ss != nil {
			ss.out = removeHandle(ss.out, h)
		}
		if ts := s.lookup(tgt); ts != nil {
			ts.in = removeHandle(ts.in, h)
		}
		*events = append(*events,
			Event{Kind: RemoveOutputEdge, Subject: src, Edge: h, Other: tgt},
			Event{Kind: RemoveInputEdge, Subject: tgt, Edge: h, Other: src},
		)
	}
	if sl.ident != "" {
		delete(s.idents, sl.ident)
	}
	*events = append(*events, Event{Kind: EraseElement, Subject: h})
	gen := sl.gen
	*sl = slot{gen: gen}
	s.free = append(s.free, h.index)
	s.live--
}

func removeHandle(list []Handle, h Handle) []Handle {
	for i, x := range list {
		if x == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Exists reports whether h addresses a live element.
func (s *Store) Exists(h Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(h) != nil
}

// Type returns the type of h, or zero if h is not live.
func (s *Store) Type(h Handle) Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl := s.lookup(h); sl != nil {
		return sl.typ
	}
	return 0
}

// Ends returns the source and target of edge h.
func (s *Store) Ends(h Handle) (Handle, Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl := s.lookup(h)
	if sl == nil || !sl.typ.IsEdge() {
		return Handle{}, Handle{}, false
	}
	return sl.src, sl.tgt, true
}

// CheckEdge reports whether an edge whose type satisfies mask joins src to tgt.
func (s *Store) CheckEdge(src, tgt Handle, mask Type) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.findEdgeLocked(src, tgt, mask)
	return ok
}

// Count returns the number of live elements.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// SetIdentifier binds a unique system identifier to h.
func (s *Store) SetIdentifier(h Handle, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.lookup(h)
	if sl == nil {
		return fmt.Errorf("set identifier %q: %w", id, ErrNotFound)
	}
	if cur, ok := s.idents[id]; ok && cur != h {
		return fmt.Errorf("set identifier %q: %w", id, ErrIdentifierTaken)
	}
	if sl.ident != "" {
		delete(s.idents, sl.ident)
	}
	sl.ident = id
	s.idents[id] = h
	if sl.label == "" {
		sl.label = id
	}
	return nil
}

// Resolve finds the element bound to a system identifier.
func (s *Store) Resolve(id string) (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.idents[id]
	return h, ok
}

// Identifier returns the system identifier of h, if any.
func (s *Store) Identifier(h Handle) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl := s.lookup(h); sl != nil {
		return sl.ident
	}
	return ""
}

// SetLabel attaches a non-unique display label to h.
func (s *Store) SetLabel(h Handle, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl := s.lookup(h); sl != nil {
		sl.label = label
	}
}

// Label returns the display label of h.
func (s *Store) Label(h Handle) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl := s.lookup(h); sl != nil {
		return sl.label
	}
	return ""
}

// Describe renders h for logs and traces: its label, link content, or handle.
func (s *Store) Describe(h Handle) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl := s.lookup(h)
	switch {
	case sl == nil:
		return h.String()
	case sl.label != "":
		return sl.label
	case sl.hasContent:
		return fmt.Sprintf("%q", sl.content)
	}
	return h.String()
}
