package interp

import (
	"sync"

	"github.com/roach88/scp/internal/graph"
)

type workKind uint8

const (
	workActivate workKind = iota + 1
	workFinished
	workSpawn
	workDestroy
	workResume
	workAgent
)

func (k workKind) String() string {
	switch k {
	case workActivate:
		return "activate"
	case workFinished:
		return "finished"
	case workSpawn:
		return "spawn"
	case workDestroy:
		return "destroy"
	case workResume:
		return "resume"
	case workAgent:
		return "agent"
	}
	return "unknown"
}

// work is one unit of interpreter activity.
type work struct {
	kind    workKind
	target  graph.Handle // operator, request or process
	arc     graph.Handle // triggering arc
	marker  graph.Handle // finished marker for workFinished
	other   graph.Handle // opposite end of the triggering arc
	outcome Outcome      // for workResume
	sub     string       // subscription for workResume / workAgent
}

// workQueue is an unbounded, thread-safe FIFO.
//
// signal has a buffer of one; a dequeue that leaves items behind re-arms it
// so that idle workers keep draining.
type workQueue struct {
	mu     sync.Mutex
	items  []work
	closed bool
	signal chan struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{
		items:  make([]work, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

func (q *workQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Enqueue appends w. It returns false once the queue is closed.
func (q *workQueue) Enqueue(w work) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, w)
	q.notify()
	return true
}

// TryDequeue pops the front item without blocking.
func (q *workQueue) TryDequeue() (work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return work{}, false
	}
	w := q.items[0]
	q.items[0] = work{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
		if !q.closed {
			q.notify()
		}
	}
	return w, true
}

// Wait returns the channel signalled when items may be available. It is
// closed by Close.
func (q *workQueue) Wait() <-chan struct{} { return q.signal }

func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting work and wakes every waiter.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
