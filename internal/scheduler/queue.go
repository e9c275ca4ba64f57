package scheduler

import (
	"container/list"
	"sync"

	"github.com/quillrt/quill/internal/engine"
)

// ResumePayload is what gets delivered to a coroutine on its next Resume:
// either a value list (a normal resume/return) or an error to re-raise
// inside the coroutine (a host async failure, per spec.md §4.5).
type ResumePayload struct {
	Values []engine.Value
	Err    error
}

// entry pairs a queued thread with the payload it should be resumed with.
type entry struct {
	ID      ThreadId
	Payload ResumePayload
}

// Queue is one of the three FIFOs of spec.md §4.3 (spawn, defer,
// resumption). Grounded on the teacher's channel-backed work queues in
// scheduler.go, reimplemented over a plain mutex + container/list since
// this queue is drained synchronously by the single main-loop goroutine,
// not selected over from multiple goroutines the way the teacher's is.
type Queue struct {
	mu     sync.Mutex
	l      list.List
	notify func()
}

// NewQueue creates an empty queue.
func NewQueue() *Queue { return &Queue{} }

// Autorun installs f to be called whenever an entry is pushed, so the main
// loop can block waiting for work instead of spinning (spec.md §8: "wait(0)
// must yield and resume, not busy-loop"). Mirrors executor.Executor.Autorun.
func (q *Queue) Autorun(f func()) {
	q.mu.Lock()
	q.notify = f
	q.mu.Unlock()
}

// PushBack enqueues a thread to be resumed with payload. Safe for
// concurrent use (the resumption queue is pushed to from executor worker
// goroutines).
func (q *Queue) PushBack(id ThreadId, payload ResumePayload) {
	q.mu.Lock()
	q.l.PushBack(entry{ID: id, Payload: payload})
	notify := q.notify
	q.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// PushFront enqueues at the front, used by mergeResumptions to place
// resumption entries ahead of anything already in the spawn queue.
func (q *Queue) PushFront(id ThreadId, payload ResumePayload) {
	q.mu.Lock()
	q.l.PushFront(entry{ID: id, Payload: payload})
	notify := q.notify
	q.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// PopFront removes and returns the first entry, or ok=false if empty.
func (q *Queue) PopFront() (entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.l.Front()
	if e == nil {
		return entry{}, false
	}
	q.l.Remove(e)
	return e.Value.(entry), true
}

// Drain removes and returns every queued entry in FIFO order, leaving the
// queue empty. Used to merge the resumption queue into the front of the
// spawn queue at the top of each main-loop iteration (spec.md §4.7 step 1).
func (q *Queue) Drain() []entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]entry, 0, q.l.Len())
	for e := q.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(entry))
	}
	q.l.Init()
	return out
}

// Len reports the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}

// IsEmpty reports whether the queue holds no entries.
func (q *Queue) IsEmpty() bool { return q.Len() == 0 }
