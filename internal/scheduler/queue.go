package scheduler

import (
	"container/heap"
	"sync"
)

// taskHeap implements heap.Interface. The root is the highest priority task;
// ties go to the earliest arrival.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].info.Priority != h[j].info.Priority {
		return h[i].info.Priority > h[j].info.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	*h = old[:n-1]
	return item
}

// taskQueue wraps taskHeap with a mutex, a capacity bound and a wake-up
// signal for idle workers.
type taskQueue struct {
	mu     sync.Mutex
	h      taskHeap
	seq    uint64
	limit  int
	signal chan struct{}
}

func newTaskQueue(limit int) *taskQueue {
	return &taskQueue{limit: limit, signal: make(chan struct{}, 1)}
}

// push enqueues t, stamping its arrival sequence. It fails when the queue is
// at capacity.
func (q *taskQueue) push(t *task) error {
	q.mu.Lock()
	if len(q.h) >= q.limit {
		q.mu.Unlock()
		return queueFullError{depth: q.limit}
	}
	q.seq++
	t.seq = q.seq
	heap.Push(&q.h, t)
	q.mu.Unlock()
	q.notify()
	return nil
}

// pop returns the next task or nil when empty. If work remains after the
// pop, another idle worker is woken.
func (q *taskQueue) pop() *task {
	q.mu.Lock()
	if len(q.h) == 0 {
		q.mu.Unlock()
		return nil
	}
	t := heap.Pop(&q.h).(*task)
	more := len(q.h) > 0
	q.mu.Unlock()
	if more {
		q.notify()
	}
	return t
}

// drain removes and returns all queued tasks.
func (q *taskQueue) drain() []*task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*task, 0, len(q.h))
	for len(q.h) > 0 {
		out = append(out, heap.Pop(&q.h).(*task))
	}
	return out
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

func (q *taskQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
