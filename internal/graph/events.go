package graph

import "sync"

// EventKind identifies a store mutation observable on one element.
type EventKind uint8

const (
	AddOutputEdge EventKind = iota + 1
	AddInputEdge
	RemoveOutputEdge
	RemoveInputEdge
	EraseElement
	ContentChanged
)

var eventKindNames = map[EventKind]string{
	AddOutputEdge:    "add_output_edge",
	AddInputEdge:     "add_input_edge",
	RemoveOutputEdge: "remove_output_edge",
	RemoveInputEdge:  "remove_input_edge",
	EraseElement:     "erase_element",
	ContentChanged:   "content_changed",
}

func (k EventKind) String() string {
	if n, ok := eventKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, bool) {
	for k, n := range eventKindNames {
		if n == s {
			return k, true
		}
	}
	return 0, false
}

// Event describes one mutation as seen from Subject. For edge events Edge is
// the edge and Other is its opposite end.
type Event struct {
	Kind    EventKind
	Subject Handle
	Edge    Handle
	Other   Handle
}

// Callback receives events for a subscription.
type Callback func(Event)

// SubscriptionID identifies a subscription on the bus.
type SubscriptionID uint64

type subscriber struct {
	id     SubscriptionID
	target Handle
	kind   EventKind
	fn     Callback
}

type bus struct {
	mu       sync.Mutex
	next     SubscriptionID
	byTarget map[Handle][]*subscriber
	byID     map[SubscriptionID]*subscriber
}

func newBus() *bus {
	return &bus{
		byTarget: make(map[Handle][]*subscriber),
		byID:     make(map[SubscriptionID]*subscriber),
	}
}

// Subscribe registers fn for events of kind on target. Subscriptions on an
// element are dropped when the element is erased, after its EraseElement
// event has been delivered.
func (s *Store) Subscribe(target Handle, kind EventKind, fn Callback) (SubscriptionID, error) {
	if !s.Exists(target) {
		return 0, ErrNotFound
	}
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	sub := &subscriber{id: b.next, target: target, kind: kind, fn: fn}
	b.byTarget[target] = append(b.byTarget[target], sub)
	b.byID[sub.id] = sub
	return sub.id, nil
}

// Unsubscribe cancels a subscription. Unknown ids are ignored.
func (s *Store) Unsubscribe(id SubscriptionID) {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.byID[id]
	if !ok {
		return
	}
	delete(b.byID, id)
	list := b.byTarget[sub.target]
	for i, x := range list {
		if x == sub {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.byTarget, sub.target)
	} else {
		b.byTarget[sub.target] = list
	}
}

// Subscriptions returns the number of live subscriptions.
func (s *Store) Subscriptions() int {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return len(s.bus.byID)
}

func (b *bus) deliver(events []Event) {
	for _, ev := range events {
		b.mu.Lock()
		var fns []Callback
		for _, sub := range b.byTarget[ev.Subject] {
			if sub.kind == ev.Kind {
				fns = append(fns, sub.fn)
			}
		}
		b.mu.Unlock()
		for _, fn := range fns {
			fn(ev)
		}
	}
}

func (b *bus) dropTarget(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.byTarget[h] {
		delete(b.byID, sub.id)
	}
	delete(b.byTarget, h)
}
