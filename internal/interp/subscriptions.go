package interp

import (
	"sync"

	"github.com/roach88/scp/internal/graph"
)

// subscriptionKind tells what a table entry is waiting for.
type subscriptionKind string

const (
	subSysWait    subscriptionKind = "sys_wait"
	subWaitReturn subscriptionKind = "waitReturn"
	subAgent      subscriptionKind = "agent"
)

type subscription struct {
	id       string
	kind     subscriptionKind
	owner    graph.Handle // process, zero for agents
	operator graph.Handle // waiting operator, or agent program
	busID    graph.SubscriptionID
}

// SubscriptionTable owns every pending event subscription. An entry is
// retired exactly once, either by the event it waits for or by
// cancellation; Retire reports which caller won.
type SubscriptionTable struct {
	mu      sync.Mutex
	g       *graph.Store
	ids     IDGenerator
	entries map[string]*subscription
	metrics *Metrics
}

func newSubscriptionTable(g *graph.Store, ids IDGenerator, m *Metrics) *SubscriptionTable {
	return &SubscriptionTable{
		g:       g,
		ids:     ids,
		entries: make(map[string]*subscription),
		metrics: m,
	}
}

// add registers fn for ev on target. fn receives the entry id so it can
// retire it.
func (t *SubscriptionTable) add(kind subscriptionKind, owner, operator, target graph.Handle, ev graph.EventKind, fn func(id string, e graph.Event)) (string, error) {
	id := t.ids.Generate()
	entry := &subscription{id: id, kind: kind, owner: owner, operator: operator}

	t.mu.Lock()
	t.entries[id] = entry
	t.mu.Unlock()
	t.metrics.Subscriptions.Inc()

	busID, err := t.g.Subscribe(target, ev, func(e graph.Event) { fn(id, e) })
	if err != nil {
		t.Retire(id)
		return "", err
	}

	t.mu.Lock()
	if _, live := t.entries[id]; live {
		entry.busID = busID
		t.mu.Unlock()
		return id, nil
	}
	t.mu.Unlock()
	// Fired and retired before the bus id was recorded.
	t.g.Unsubscribe(busID)
	return id, nil
}

// Retire removes the entry and cancels its bus subscription. It returns
// false if the entry was already retired.
func (t *SubscriptionTable) Retire(id string) bool {
	t.mu.Lock()
	entry, ok := t.entries[id]
	var busID graph.SubscriptionID
	if ok {
		busID = entry.busID
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	if busID != 0 {
		t.g.Unsubscribe(busID)
	}
	t.metrics.Subscriptions.Dec()
	return true
}

// Live reports whether id is still pending.
func (t *SubscriptionTable) Live(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// CancelOwner retires every entry owned by process.
func (t *SubscriptionTable) CancelOwner(process graph.Handle) int {
	var ids []string
	t.mu.Lock()
	for id, e := range t.entries {
		if e.owner == process {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()
	n := 0
	for _, id := range ids {
		if t.Retire(id) {
			n++
		}
	}
	return n
}

// CancelAll retires every entry.
func (t *SubscriptionTable) CancelAll() int {
	t.mu.Lock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	n := 0
	for _, id := range ids {
		if t.Retire(id) {
			n++
		}
	}
	return n
}

// Len returns the number of pending entries.
func (t *SubscriptionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
