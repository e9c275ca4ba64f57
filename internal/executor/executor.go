// Package executor implements the Executor contract the scheduler consumes:
// a two-lane task runner with a Send-safe background lane and a VM-thread
// local lane, plus a tick/drain interface. Grounded on b97tsk-async's
// Executor type (_examples/b97tsk-async/executor.go): kept its "spawn adds
// to an internal queue, a run loop drains it" shape and its recover-per-task
// panic isolation, dropped its path-ordered priority queue (this contract
// has no notion of task priority) in favor of a plain FIFO queue for the
// local lane; each background future runs on its own goroutine.
package executor

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// LocalFunc is a unit of VM-thread-local work: not required to be
// goroutine-safe, since it only ever runs on the thread that calls
// RunUntilIdle or TryTick.
type LocalFunc func()

// FutureFunc is a unit of background work. It may run on any goroutine and
// must not touch VM state directly; its result should be marshaled back
// via SpawnLocal.
type FutureFunc func(ctx context.Context) error

// Executor runs local tasks single-threadedly on whatever goroutine drives
// it (the scheduler's VM thread) and background tasks on the Go runtime's
// own goroutine pool, matching spec.md's "one VM thread, any number of
// Executor worker threads" scheduling model.
type Executor struct {
	mu     sync.Mutex
	local  list.List // of LocalFunc
	ctx    context.Context
	cancel context.CancelFunc

	wg         sync.WaitGroup
	background atomic.Int32

	onPanic func(error)

	notifyMu sync.Mutex
	notify   func()
}

// Autorun installs f to be called (from whatever goroutine triggered it)
// whenever a local task is enqueued, so a driver blocked waiting for work
// can wake promptly instead of polling. Grounded on b97tsk-async's
// Executor.Autorun (_examples/b97tsk-async/executor.go), minus its
// "never call the autorun function twice at once" guarantee: Quill's
// driver (the scheduler main loop) only ever does a best-effort wake-up,
// so a redundant call is harmless.
func (e *Executor) Autorun(f func()) {
	e.notifyMu.Lock()
	e.notify = f
	e.notifyMu.Unlock()
}

func (e *Executor) fireNotify() {
	e.notifyMu.Lock()
	f := e.notify
	e.notifyMu.Unlock()
	if f != nil {
		f()
	}
}

// New creates an Executor. onPanic, if non-nil, is invoked (from whichever
// goroutine encountered it) whenever a background future or local task
// panics; if nil, panics are silently absorbed as PanicError values
// delivered nowhere, which is only appropriate for tests.
func New(onPanic func(error)) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{ctx: ctx, cancel: cancel, onPanic: onPanic}
}

// SpawnFuture runs f on a new goroutine (spec.md §4.1's spawn_future: "run
// f on any thread; f may be Send"). Safe to call from any goroutine.
func (e *Executor) SpawnFuture(f FutureFunc) {
	e.wg.Add(1)
	e.background.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.background.Add(-1)
		err := catch(func() error { return f(e.ctx) })
		if err != nil && e.onPanic != nil {
			if _, ok := err.(*PanicError); ok {
				e.onPanic(err)
			}
		}
	}()
}

// BackgroundPending reports whether any spawn_future task is still running,
// used by the scheduler's termination check (spec.md §4.7).
func (e *Executor) BackgroundPending() bool {
	return e.background.Load() > 0
}

// SpawnLocal enqueues f to run on the VM thread (spec.md §4.1's
// spawn_local: "run f on the VM thread; f need not be Send. Reentrant with
// the VM."). Safe to call from any goroutine; f itself only ever runs from
// inside TryTick/RunUntilIdle.
func (e *Executor) SpawnLocal(f LocalFunc) {
	e.mu.Lock()
	e.local.PushBack(f)
	e.mu.Unlock()
	e.fireNotify()
}

// TryTick processes at most one queued local task and reports whether it
// ran anything (spec.md §4.1's try_tick).
func (e *Executor) TryTick() bool {
	e.mu.Lock()
	elem := e.local.Front()
	if elem == nil {
		e.mu.Unlock()
		return false
	}
	e.local.Remove(elem)
	e.mu.Unlock()

	fn := elem.Value.(LocalFunc)
	err := catch(func() error { fn(); return nil })
	if err != nil && e.onPanic != nil {
		e.onPanic(err)
	}
	return true
}

// RunUntilIdle drives local tasks until none remain ready (spec.md §4.1's
// run_until_idle). A local task that enqueues another local task
// (reentrant spawn_local) is picked up in the same drain, matching the
// "Reentrant with the VM" contract.
func (e *Executor) RunUntilIdle() {
	for e.TryTick() {
	}
}

// Pending reports whether any local task is currently queued, used by the
// scheduler's termination check (spec.md §4.7).
func (e *Executor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.Len() > 0
}

// Close cancels the context passed to in-flight background futures and
// waits for them to observe cancellation and return. It does not cancel
// futures that ignore ctx.Done(); the scheduler's own shutdown sequencing
// (spec.md §4.7's termination check) is what actually decides when it's
// safe to stop waiting.
func (e *Executor) Close() {
	e.cancel()
	e.wg.Wait()
}
