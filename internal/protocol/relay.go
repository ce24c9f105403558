package protocol

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// ErrRelayTimeout is returned to a relay caller when the server never
// answers within relayTimeout. The source kept relay callbacks forever;
// §9 calls for a bounded lifetime instead.
var ErrRelayTimeout = errors.New("protocol: relay timed out")

const relayTimeout = 60 * time.Second

// RelayCallback is invoked exactly once: on relay_response, on timeout, or
// on shutdown — never more than once, per the data model's invariant.
type RelayCallback func(result any, err error)

type relayEntry struct {
	id       string
	cb       RelayCallback
	deadline time.Time
	index    int
}

// relayDeadlineHeap is a min-heap ordered by deadline, so the timer
// goroutine only ever needs to look at the earliest-expiring entry.
type relayDeadlineHeap []*relayEntry

func (h relayDeadlineHeap) Len() int            { return len(h) }
func (h relayDeadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h relayDeadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *relayDeadlineHeap) Push(x any) {
	e := x.(*relayEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *relayDeadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// relayTable tracks outstanding relay calls keyed by ID, with a min-heap
// timer enforcing the bounded lifetime.
type relayTable struct {
	mu      sync.Mutex
	byID    map[string]*relayEntry
	heap    relayDeadlineHeap
	timer   *time.Timer
	stopped bool
}

func newRelayTable() *relayTable {
	return &relayTable{byID: make(map[string]*relayEntry)}
}

// add registers a pending relay callback with the standard timeout and
// arms the expiry timer if this entry is now the earliest to expire.
func (t *relayTable) add(id string, cb RelayCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		cb(nil, ErrRelayTimeout)
		return
	}
	e := &relayEntry{id: id, cb: cb, deadline: time.Now().Add(relayTimeout)}
	t.byID[id] = e
	heap.Push(&t.heap, e)
	t.rearm()
}

// complete resolves a pending relay call by ID, invoking its callback
// exactly once and removing it from both the map and the heap.
func (t *relayTable) complete(id string, result any) bool {
	t.mu.Lock()
	e, ok := t.byID[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.byID, id)
	heap.Remove(&t.heap, e.index)
	t.rearm()
	t.mu.Unlock()

	e.cb(result, nil)
	return true
}

// shutdown fires ErrRelayTimeout for every outstanding entry exactly once
// and stops the timer, satisfying "released on exactly one of: response
// received, timeout, or shutdown".
func (t *relayTable) shutdown() {
	t.mu.Lock()
	t.stopped = true
	entries := make([]*relayEntry, 0, len(t.byID))
	for _, e := range t.byID {
		entries = append(entries, e)
	}
	t.byID = make(map[string]*relayEntry)
	t.heap = nil
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	for _, e := range entries {
		e.cb(nil, ErrRelayTimeout)
	}
}

// rearm must be called with mu held; it (re)starts the single timer to
// fire when the earliest entry expires.
func (t *relayTable) rearm() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if len(t.heap) == 0 {
		return
	}
	wait := time.Until(t.heap[0].deadline)
	if wait < 0 {
		wait = 0
	}
	t.timer = time.AfterFunc(wait, t.expireDue)
}

func (t *relayTable) expireDue() {
	t.mu.Lock()
	now := time.Now()
	var due []*relayEntry
	for len(t.heap) > 0 && !t.heap[0].deadline.After(now) {
		e := heap.Pop(&t.heap).(*relayEntry)
		delete(t.byID, e.id)
		due = append(due, e)
	}
	t.rearm()
	t.mu.Unlock()

	for _, e := range due {
		e.cb(nil, ErrRelayTimeout)
	}
}
