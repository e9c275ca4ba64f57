// Package task exposes the scheduler's spawn/defer/delay/cancel/wait
// primitives (spec.md §4.4) as the @std/task module surface.
package task

import (
	"time"

	"github.com/quillrt/quill/internal/engine"
	"github.com/quillrt/quill/internal/scheduler"
)

// Loader returns the @std/task table bound to s.
func Loader(s *scheduler.Scheduler) func(m *engine.Machine) ([]engine.Value, error) {
	return func(m *engine.Machine) ([]engine.Value, error) {
		t := engine.NewTable()
		t.Set("spawn", &engine.NativeFunc{Name: "task.spawn", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			return spawnLike(s.Spawn, args)
		}})
		t.Set("defer", &engine.NativeFunc{Name: "task.defer", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			return spawnLike(s.Defer, args)
		}})
		t.Set("delay", &engine.NativeFunc{Name: "task.delay", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			if len(args) < 2 {
				return nil, engine.Errorf("delay requires a duration and a target")
			}
			secs, ok := args[0].(float64)
			if !ok {
				return nil, engine.Errorf("delay: expected a number for duration, got %s", engine.TypeName(args[0]))
			}
			id, err := s.Delay(secondsToDuration(secs), args[1], args[2:])
			if err != nil {
				return nil, err
			}
			return threadHandle(id), nil
		}})
		t.Set("cancel", &engine.NativeFunc{Name: "task.cancel", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			if len(args) < 1 {
				return nil, engine.Errorf("cancel requires a thread handle")
			}
			id, ok := threadID(args[0])
			if !ok {
				return nil, engine.Errorf("cancel: not a thread handle")
			}
			s.Cancel(id)
			return nil, nil
		}})
		t.Set("wait", &engine.NativeFunc{Name: "task.wait", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			var d time.Duration
			if len(args) > 0 {
				secs, ok := args[0].(float64)
				if !ok {
					return nil, engine.Errorf("wait: expected a number for duration, got %s", engine.TypeName(args[0]))
				}
				d = secondsToDuration(secs)
			}
			return s.Wait(f, d)
		}})
		return []engine.Value{t}, nil
	}
}

func secondsToDuration(secs float64) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// threadHandle wraps a ThreadId as a script value: a one-field table
// tagged so cancel() and equality checks can recover the id without
// exposing an opaque Go type to script code.
func threadHandle(id scheduler.ThreadId) *engine.Table {
	h := engine.NewTable()
	h.Set("__thread_id", float64(id))
	return h
}

func threadID(v engine.Value) (scheduler.ThreadId, bool) {
	t, ok := v.(*engine.Table)
	if !ok {
		return 0, false
	}
	n, ok := t.Get("__thread_id").(float64)
	if !ok {
		return 0, false
	}
	return scheduler.ThreadId(n), true
}

func spawnLike(fn func(engine.Value, []engine.Value) (scheduler.ThreadId, error), args []engine.Value) (engine.Value, error) {
	if len(args) < 1 {
		return nil, engine.Errorf("expected a function or coroutine as the first argument")
	}
	id, err := fn(args[0], args[1:])
	if err != nil {
		return nil, err
	}
	return threadHandle(id), nil
}
