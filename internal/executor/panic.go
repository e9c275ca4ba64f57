package executor

import (
	"fmt"
	"runtime/debug"
)

// PanicError wraps a recovered panic from a spawned future, so a runaway
// background task turns into an error the scheduler reports through its
// error callback instead of crashing the process. Grounded on b97tsk-async's
// paniccatcher.go/panicstack.go pairing, trimmed to the single-item case:
// this executor recovers per task, not per batch, so there is no need for
// b97tsk-async's multi-panic aggregation.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.Value, p.Stack)
}

// catch runs f, converting a panic into a *PanicError instead of letting it
// unwind past the executor.
func catch(f func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return f()
}
