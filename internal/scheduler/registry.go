// Package scheduler implements the cooperative task scheduler that binds
// the engine's coroutines to the executor's background/local task lanes:
// the thread registry, the spawn/defer/resumption queues, the main loop,
// and the spawn/defer/delay/cancel/wait primitives scripts see through
// @std/task. Grounded on the teacher's scheduler.go (a single goroutine
// owning all mutable scheduling state, reached only through channel sends
// from other goroutines); Quill keeps that "one owner goroutine, everyone
// else talks to it via a synchronized entry point" shape but replaces its
// deadlock-graph bookkeeping with the FIFO queue-draining loop this
// specification calls for.
package scheduler

import (
	"errors"
	"sync"

	"github.com/quillrt/quill/internal/engine"
)

// ThreadId identifies a parked coroutine. Zero is never a valid id.
type ThreadId uint64

// ErrClosed is returned by Store after the scheduler has torn down.
var ErrClosed = errors.New("quill: scheduler: registry closed")

// ErrNotFound is returned by Resume for an unknown or already-resumed id.
var ErrNotFound = errors.New("quill: scheduler: thread not found")

type regEntry struct {
	coro *engine.Coroutine
}

// Registry maps ThreadId to a parked coroutine. Grounded on the teacher's
// single-mutex map-of-goroutine-state pattern (iolang/scheduler.go's
// `procs map[*Coroutine]*procState`), keyed by an opaque handle instead of
// the coroutine pointer itself so script code gets a stable, comparable
// value it can hold and pass to cancel().
type Registry struct {
	mu      sync.Mutex
	entries map[ThreadId]regEntry
	nextID  ThreadId
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ThreadId]regEntry)}
}

// Store parks a suspended coroutine and returns its handle.
func (r *Registry) Store(co *engine.Coroutine) (ThreadId, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}
	r.nextID++
	id := r.nextID
	r.entries[id] = regEntry{coro: co}
	return id, nil
}

// NextID allocates a fresh handle without parking anything under it yet.
// The scheduler uses this so a spawned/deferred/delayed thread has a
// stable ThreadId to hand back to script code even if it runs to
// completion before ever being parked.
func (r *Registry) NextID() ThreadId {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// Park stores co under a previously allocated id (see NextID).
func (r *Registry) Park(id ThreadId, co *engine.Coroutine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.entries[id] = regEntry{coro: co}
	return nil
}

// Resume atomically removes and returns the parked coroutine for id.
func (r *Registry) Resume(id ThreadId) (*engine.Coroutine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.entries, id)
	return e.coro, nil
}

// Drop removes id without resuming it, used by cancel() on a suspended
// coroutine.
func (r *Registry) Drop(id ThreadId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Len reports how many coroutines are currently parked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsEmpty reports whether the registry holds no parked coroutines.
func (r *Registry) IsEmpty() bool {
	return r.Len() == 0
}

// Close marks the registry closed; further Store calls fail with
// ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
