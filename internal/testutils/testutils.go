// Package testutils provides utilities for testing Quill scripts in Go.
// Grounded on iolang/testutils/testutils.go's shape (a shared test VM, a
// source-plus-predicate test case struct, a family of Pass* predicate
// constructors), adapted from a bare VM/Message-eval model to one that
// spins up a scheduler.Scheduler and runs a source string to completion
// through Scheduler.Run, since Quill scripts are coroutines driven by
// the scheduler rather than single Message sends.
package testutils

import (
	"testing"

	"github.com/quillrt/quill/internal/engine"
	"github.com/quillrt/quill/internal/scheduler"
)

// NewScheduler returns a fresh Scheduler with its own Machine, for
// tests that want isolation from other tests' globals.
func NewScheduler() *scheduler.Scheduler {
	return scheduler.New()
}

// SourceTestCase is a test case containing Quill source code and a
// predicate to check the run's outcome.
type SourceTestCase struct {
	// Source is the Quill source code to execute.
	Source string
	// Pass is a predicate over the exit code and any error the run's
	// callback observed. If Pass returns false, the test fails.
	Pass func(exitCode int, runErr error) bool
}

// TestFunc returns a test function for the test case, running Source
// on a fresh Scheduler.
func (c SourceTestCase) TestFunc(name string) func(*testing.T) {
	return func(t *testing.T) {
		s := scheduler.New()
		var runErr error
		s.SetErrorCallback(func(err error) { runErr = err })
		main, err := engine.NewMainCoroutine(s.Machine, c.Source, name)
		if err != nil {
			t.Fatalf("could not parse %q: %v", c.Source, err)
		}
		code := s.Run(main, nil)
		if !c.Pass(code, runErr) {
			t.Errorf("%q produced wrong result: exit=%d err=%v", c.Source, code, runErr)
		}
	}
}

// PassExitCode returns a Pass function that checks the run's exit code.
func PassExitCode(want int) func(int, error) bool {
	return func(code int, _ error) bool {
		return code == want
	}
}

// PassSuccess returns a Pass function that requires a clean exit with
// no reported error.
func PassSuccess() func(int, error) bool {
	return func(code int, err error) bool {
		return code == 0 && err == nil
	}
}

// PassFailure returns a Pass function that requires a reported error.
func PassFailure() func(int, error) bool {
	return func(_ int, err error) bool {
		return err != nil
	}
}

// GlobalEquals runs source to completion on a fresh Scheduler and
// asserts that the named global equals want.
func GlobalEquals(t *testing.T, source, name string, want engine.Value) {
	t.Helper()
	s := scheduler.New()
	main, err := engine.NewMainCoroutine(s.Machine, source, "test")
	if err != nil {
		t.Fatalf("could not parse %q: %v", source, err)
	}
	if code := s.Run(main, nil); code != 0 {
		t.Fatalf("%q exited with code %d", source, code)
	}
	got := s.Machine.Globals.Get(name)
	if got != want {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}
