package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/quillrt/quill/internal/engine"
	"github.com/quillrt/quill/internal/executor"
)

// ErrorCallback is the host-installed handler for uncaught coroutine
// errors (spec.md §4.7, "invoke the error callback if installed").
type ErrorCallback func(err error)

// Scheduler is the cooperative main loop: it owns the thread registry, the
// three FIFOs of spec.md §4.3, and the executor that drives background
// work. Grounded on the teacher's Scheduler type (iolang/scheduler.go): a
// single owner of all mutable scheduling state, reached by other
// goroutines only through synchronized entry points (there, channels into
// one arbiter goroutine; here, a mutex-guarded registry/queues drained by
// one loop goroutine) — same shape, since both are solving "many
// goroutines want to mutate scheduler state, but only one may observe it
// as consistent at a time."
type Scheduler struct {
	Machine *engine.Machine
	Exec    *executor.Executor

	registry     *Registry
	spawnQ       *Queue
	deferQ       *Queue
	resumptionQ  *Queue

	mu      sync.Mutex
	tokens  map[ThreadId]chan struct{}
	onError ErrorCallback

	wake chan struct{}

	exiting  bool
	exitCode int
	sawError bool
}

// New creates a Scheduler bound to a fresh Machine and Executor.
func New() *Scheduler {
	s := &Scheduler{
		Machine:     engine.NewMachine(),
		registry:    NewRegistry(),
		spawnQ:      NewQueue(),
		deferQ:      NewQueue(),
		resumptionQ: NewQueue(),
		tokens:      make(map[ThreadId]chan struct{}),
		wake:        make(chan struct{}, 1),
	}
	s.Exec = executor.New(func(err error) {
		s.reportError(err)
	})
	s.spawnQ.Autorun(s.notifyWake)
	s.deferQ.Autorun(s.notifyWake)
	s.resumptionQ.Autorun(s.notifyWake)
	s.Exec.Autorun(s.notifyWake)
	return s
}

// notifyWake performs a non-blocking send on the wake channel, used by the
// spawn/defer/resumption queues and the executor's local lane to rouse a
// main loop that is blocked waiting for work (see Run's idle branch).
func (s *Scheduler) notifyWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetErrorCallback installs the handler invoked when a coroutine
// terminates with an unhandled error (spec.md §4.7/§7).
func (s *Scheduler) SetErrorCallback(cb ErrorCallback) {
	s.onError = cb
}

func (s *Scheduler) reportError(err error) {
	s.sawError = true
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Scheduler) toCoroutine(target engine.Value) (*engine.Coroutine, error) {
	switch t := target.(type) {
	case *engine.Closure:
		return engine.NewCoroutine(s.Machine, t), nil
	case *engine.Coroutine:
		return t, nil
	default:
		return nil, engine.Errorf("spawn target must be a function or coroutine, got %s", engine.TypeName(target))
	}
}

// idFor returns co's stable ThreadId, minting and tagging one on first
// use. Every later suspension of the same coroutine (task.wait, the
// async bridge) reuses this same id instead of allocating a fresh
// handle: both call idFor before parking, so a coroutine that suspends
// itself mid-Resume is parked under the very id its caller already
// received, and a redundant Park by that caller afterward just
// re-stores the same id/coroutine pair instead of registering a second,
// unreachable entry.
func (s *Scheduler) idFor(co *engine.Coroutine) ThreadId {
	if tag, ok := co.SchedTag(); ok {
		return ThreadId(tag)
	}
	id := s.registry.NextID()
	co.SetSchedTag(uint64(id))
	return id
}

// Spawn implements spec.md §4.4's spawn primitive: it eagerly resumes
// target with args up to its first yield (or completion), then parks it if
// it yielded, and returns its handle regardless.
func (s *Scheduler) Spawn(target engine.Value, args []engine.Value) (ThreadId, error) {
	co, err := s.toCoroutine(target)
	if err != nil {
		return 0, err
	}
	id := s.idFor(co)
	values, yielded, err := co.Resume(args)
	if err != nil {
		s.reportError(err)
		return id, nil
	}
	if yielded {
		// co may already be parked under id if it suspended itself via
		// task.wait or the async bridge while resuming (both call idFor
		// too); Park is idempotent under a shared id, so this is a no-op
		// in that case and the only registration in every other case.
		if err := s.registry.Park(id, co); err != nil {
			return id, err
		}
		return id, nil
	}
	_ = values // spec.md §4.7: a value-terminated coroutine's result is discarded here
	return id, nil
}

// Defer implements spec.md §4.4's defer primitive: target never runs
// before the caller returns; it is parked and placed at the back of the
// defer queue.
func (s *Scheduler) Defer(target engine.Value, args []engine.Value) (ThreadId, error) {
	co, err := s.toCoroutine(target)
	if err != nil {
		return 0, err
	}
	id := s.idFor(co)
	if err := s.registry.Park(id, co); err != nil {
		return 0, err
	}
	s.deferQ.PushBack(id, ResumePayload{Values: args})
	return id, nil
}

// Delay implements spec.md §4.4's delay primitive: target is scheduled
// onto the spawn queue no earlier than d after the call, unless cancelled
// first.
func (s *Scheduler) Delay(d time.Duration, target engine.Value, args []engine.Value) (ThreadId, error) {
	co, err := s.toCoroutine(target)
	if err != nil {
		return 0, err
	}
	id := s.idFor(co)
	if err := s.registry.Park(id, co); err != nil {
		return 0, err
	}
	token := make(chan struct{})
	s.mu.Lock()
	s.tokens[id] = token
	s.mu.Unlock()

	s.Exec.SpawnFuture(func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-token:
			return nil
		case <-ctx.Done():
			return nil
		}
		s.clearToken(id)
		s.spawnQ.PushBack(id, ResumePayload{Values: args})
		return nil
	})
	return id, nil
}

func (s *Scheduler) clearToken(id ThreadId) {
	s.mu.Lock()
	delete(s.tokens, id)
	s.mu.Unlock()
}

// Cancel implements spec.md §4.4's cancel primitive: the coroutine will
// never be resumed again. If it is currently suspended in the registry it
// is dropped; if a delay timer is associated, its CancelToken is tripped.
func (s *Scheduler) Cancel(id ThreadId) {
	s.mu.Lock()
	if token, ok := s.tokens[id]; ok {
		close(token)
		delete(s.tokens, id)
	}
	s.mu.Unlock()
	s.registry.Drop(id)
}

// Wait implements spec.md §4.4's wait primitive: it yields the calling
// coroutine and arranges for it to be resumed no earlier than d later (or
// as soon as possible if d <= 0), with the resume value being actual
// elapsed seconds. It must be called from within the coroutine's own
// goroutine (i.e. from a native function's Fn, via Frame.Coro).
func (s *Scheduler) Wait(f *engine.Frame, d time.Duration) (float64, error) {
	co := f.Coro
	if co == nil {
		return 0, engine.Errorf("wait called outside a running coroutine")
	}
	id := s.idFor(co)
	if err := s.registry.Park(id, co); err != nil {
		return 0, err
	}
	start := time.Now()
	s.Exec.SpawnFuture(func(ctx context.Context) error {
		if d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil
			}
		}
		elapsed := time.Since(start).Seconds()
		s.resumptionQ.PushBack(id, ResumePayload{Values: []engine.Value{elapsed}})
		return nil
	})
	values, raise := co.Yield(nil)
	if raise != nil {
		return 0, raise
	}
	if len(values) > 0 {
		if elapsed, ok := values[0].(float64); ok {
			return elapsed, nil
		}
	}
	return 0, nil
}

// Run drives the main loop (spec.md §4.7) until termination: it resumes
// main with args, then keeps merging/draining the three queues and ticking
// the executor until every queue, the registry, and the executor are all
// empty, or script code calls Exit. It returns the process exit code.
func (s *Scheduler) Run(main *engine.Coroutine, args []engine.Value) int {
	id, err := s.Spawn(main, args)
	if err != nil {
		s.reportError(err)
		return 1
	}
	_ = id

	for !s.exiting {
		s.mergeResumptions()
		didWork := s.drain(s.spawnQ)
		if s.exiting {
			break
		}
		didWork = s.Exec.TryTick() || didWork
		didWork = s.drain(s.deferQ) || didWork
		if s.terminated() {
			break
		}
		if !didWork {
			s.idleWait()
		}
	}

	s.registry.Close()
	s.Exec.Close()

	if s.exiting {
		return s.exitCode
	}
	if s.sawError && s.onError == nil {
		return 1
	}
	return 0
}

// mergeResumptions moves the resumption queue's contents to the front of
// the spawn queue (spec.md §4.7 step 1), preserving their relative order.
func (s *Scheduler) mergeResumptions() {
	entries := s.resumptionQ.Drain()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		s.spawnQ.PushFront(e.ID, e.Payload)
	}
}

// drain pops and resumes every entry currently in q, reporting whether it
// processed at least one. Reentrant spawn/defer/delay/require calls made by
// a resumed coroutine land in a queue and are picked up on a later
// iteration, not mid-drain, matching spec.md §4.7's determinism requirement:
// only the entries present when drain starts are popped.
func (s *Scheduler) drain(q *Queue) bool {
	didWork := false
	for n := q.Len(); n > 0; n-- {
		e, ok := q.PopFront()
		if !ok {
			return didWork
		}
		didWork = true
		co, err := s.registry.Resume(e.ID)
		if err != nil {
			// Already cancelled/dropped; a no-op resumption.
			continue
		}
		var values []engine.Value
		var resumeErr error
		if e.Payload.Err != nil {
			values, _, resumeErr = co.Raise(e.Payload.Err)
		} else {
			values, _, resumeErr = co.Resume(e.Payload.Values)
		}
		_ = values
		if resumeErr != nil {
			s.reportError(resumeErr)
		}
		if s.exiting {
			return didWork
		}
	}
	return didWork
}

// idleWait blocks briefly when an iteration did no work but background or
// local tasks are still outstanding, so the main loop parks instead of
// spinning (spec.md §8: "wait(0) must yield and resume, not busy-loop").
// It wakes immediately on the next queue push or local-task enqueue via
// notifyWake, or after a short ceiling so a future completing through some
// path this scheduler doesn't instrument is still noticed promptly.
func (s *Scheduler) idleWait() {
	select {
	case <-s.wake:
	case <-time.After(5 * time.Millisecond):
	}
}

func (s *Scheduler) terminated() bool {
	return s.spawnQ.IsEmpty() && s.deferQ.IsEmpty() && s.resumptionQ.IsEmpty() &&
		s.registry.IsEmpty() && !s.Exec.BackgroundPending() && !s.Exec.Pending()
}

// Exit implements script-visible exit(code): it records the exit code and
// stops the main loop from dispatching further work.
func (s *Scheduler) Exit(code int) {
	s.exiting = true
	s.exitCode = code
}

// PushResumption exposes the resumption queue to the async bridge, which
// runs on an executor worker goroutine and cannot touch the registry or
// spawn/defer queues directly.
func (s *Scheduler) PushResumption(id ThreadId, payload ResumePayload) {
	s.resumptionQ.PushBack(id, payload)
}

// Park exposes registry parking to the async bridge (step 2 of spec.md
// §4.5: "Bridge registers (coroutine, pending_payload) in the registry").
// It reuses co's stable id (see idFor) rather than minting a fresh one,
// so a coroutine bridged mid-Spawn/Defer/Delay is parked under the same
// handle its caller already received.
func (s *Scheduler) Park(co *engine.Coroutine) (ThreadId, error) {
	id := s.idFor(co)
	if err := s.registry.Park(id, co); err != nil {
		return 0, err
	}
	return id, nil
}
