// Package bridge implements the async-function bridge of spec.md §4.5: it
// makes a host asynchronous operation look like a blocking script function
// while cooperating with the scheduler, so builtins like net.request or
// process.readOut can await real I/O without blocking the VM thread. Grounded
// on the teacher's future.go (iolang/coreext/future, since removed from
// the workspace after being generalized here) and the Control-channel
// yield/resume handshake of iolang/coroutine.go.
package bridge

import (
	"context"

	"github.com/quillrt/quill/internal/engine"
	"github.com/quillrt/quill/internal/scheduler"
)

// Host is a host-side asynchronous operation: it runs on an executor
// worker goroutine (spec.md's spawn_future contract — it may be Send) and
// produces either a value list or an error.
type Host func(ctx context.Context, args []engine.Value) ([]engine.Value, error)

// Wrap turns h into a script-callable NativeFunc that behaves
// synchronously from the calling script's perspective: the coroutine
// yields, h runs in the background, and the coroutine resumes with h's
// result (or has h's error raised into it) once it completes.
func Wrap(name string, s *scheduler.Scheduler, h Host) *engine.NativeFunc {
	return &engine.NativeFunc{Name: name, Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
		values, err := Call(f, s, h, args)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	}}
}

// Call runs the bridge protocol for a single invocation and returns the
// full result value list, for builtins that need more than one return
// value (a NativeFunc can only hand back one; stdlib packages needing
// multiple results call Call directly and pack the extras into a table).
func Call(f *engine.Frame, s *scheduler.Scheduler, h Host, args []engine.Value) ([]engine.Value, error) {
	co := f.Coro
	if co == nil {
		return nil, engine.Errorf("async call made outside a running coroutine")
	}

	// Step 2: register (coroutine, pending payload) in the registry.
	id, err := s.Park(co)
	if err != nil {
		return nil, err
	}

	// Step 4: submit the background task; on completion, push a
	// resumption entry keyed by id.
	s.Exec.SpawnFuture(func(ctx context.Context) error {
		values, hostErr := h(ctx, args)
		if hostErr != nil {
			s.PushResumption(id, scheduler.ResumePayload{Err: hostErr})
			return nil
		}
		s.PushResumption(id, scheduler.ResumePayload{Values: values})
		return nil
	})

	// Step 3: yield the coroutine; step 5 (main loop resuming us with the
	// eventual result) happens via Coroutine.Yield/Resume's rendezvous.
	values, raise := co.Yield(nil)
	if raise != nil {
		return nil, raise
	}
	return values, nil
}
