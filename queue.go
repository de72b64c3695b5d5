package dispatcher

import (
	"container/heap"
	"sync"
)

// Priority bands. Lower sorts first. Values are part of the cross-language
// contract (spec.md §6) and observers may introspect them.
const (
	BandQueueShutdown = -5
	BandWorkerPause   = 0
	BandWorkerResume  = 1
	BandStdAction     = 2
)

// item is a (band, action) pair, the unit stored in the two priority queues.
type item struct {
	band   int
	action Action
}

// itemHeap implements container/heap.Interface over []item, ordered by
// (band, id) lexicographically, the same way joeycumines-go-utilpkg's
// eventloop timerHeap implements heap.Interface over a slice of timers.
type itemHeap []item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].band != h[j].band {
		return h[i].band < h[j].band
	}
	return h[i].action.ID() < h[j].action.ID()
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// priorityQueue is a (band, id)-ordered blocking queue supporting the
// peek-then-conditionally-dequeue contract the Worker loop needs (spec.md
// §4.3): a plain channel always removes on receive, so it can't express
// "look at the head, decide whether to take it". sync.Cond guarding a heap
// is the idiom used instead.
type priorityQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	heap    itemHeap
	closed  bool
	seq     int
	onCount func(seq, n int) // contents-changed notification hook: mutation sequence + new length
}

func newPriorityQueue(onCount func(seq, n int)) *priorityQueue {
	q := &priorityQueue{onCount: onCount}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues action at band, waking exactly one blocked consumer.
func (q *priorityQueue) Push(band int, a Action) {
	q.mu.Lock()
	heap.Push(&q.heap, item{band: band, action: a})
	n := len(q.heap)
	seq := q.seq
	q.seq++
	q.mu.Unlock()
	q.cond.Signal()
	if q.onCount != nil {
		q.onCount(seq, n)
	}
}

// Peek blocks until the queue is non-empty, then returns the head without
// removing it. closed becomes true only once Close has been called and the
// queue has drained, signalling the caller to stop looping.
func (q *priorityQueue) Peek() (a Action, band int, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.heap) == 0 {
		if q.closed {
			return nil, 0, true
		}
		q.cond.Wait()
	}
	return q.heap[0].action, q.heap[0].band, false
}

// TryDequeueHead removes the head iff it is still a non-empty queue's head
// and predicate(head) holds (or predicate is nil). Returns ok=false without
// mutating the queue when the predicate rejects the current head, letting
// the caller retry after sleeping, which is how the Worker's pause filter
// avoids a peek/steal race against other workers on the same queue.
func (q *priorityQueue) TryDequeueHead(predicate func(Action) bool) (a Action, ok bool) {
	q.mu.Lock()
	if len(q.heap) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	head := q.heap[0].action
	if predicate != nil && !predicate(head) {
		q.mu.Unlock()
		return nil, false
	}
	popped := heap.Pop(&q.heap).(item)
	n := len(q.heap)
	seq := q.seq
	q.seq++
	q.mu.Unlock()
	if q.onCount != nil {
		q.onCount(seq, n)
	}
	return popped.action, true
}

// Snapshot returns a defensive copy of the current contents, ordered by
// (band, id), for Observable Views' queue-contents read model.
func (q *priorityQueue) Snapshot() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := make(itemHeap, len(q.heap))
	copy(cp, q.heap)
	out := make([]Action, 0, len(cp))
	for len(cp) > 0 {
		out = append(out, heap.Pop(&cp).(item).action)
	}
	return out
}

// Len reports the current queue length.
func (q *priorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Close marks the queue as no longer accepting new blocking waiters once
// empty; existing items already enqueued are still served.
func (q *priorityQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// demandQueue is a plain FIFO staging queue: actions buffered before the
// application explicitly starts the demand queue (spec.md §4.2).
type demandQueue struct {
	mu      sync.Mutex
	items   []Action
	seq     int
	onCount func(seq, n int)
}

func newDemandQueue(onCount func(seq, n int)) *demandQueue {
	return &demandQueue{onCount: onCount}
}

func (q *demandQueue) Push(a Action) {
	q.mu.Lock()
	q.items = append(q.items, a)
	n := len(q.items)
	seq := q.seq
	q.seq++
	q.mu.Unlock()
	if q.onCount != nil {
		q.onCount(seq, n)
	}
}

// DrainAll removes and returns every buffered action in FIFO order, calling
// onCount after each removal as spec.md §4.5 requires ("emit
// contents-changed for demand_q after each removal").
func (q *demandQueue) DrainAll() []Action {
	q.mu.Lock()
	items := q.items
	q.items = nil
	remaining := len(items)
	out := make([]Action, 0, remaining)
	seqs := make([]int, remaining)
	for i, a := range items {
		out = append(out, a)
		seqs[i] = q.seq
		q.seq++
	}
	q.mu.Unlock()
	for i := range out {
		remaining--
		if q.onCount != nil {
			q.onCount(seqs[i], remaining)
		}
	}
	return out
}

func (q *demandQueue) Snapshot() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Action, len(q.items))
	copy(out, q.items)
	return out
}

func (q *demandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
