package engine

// Multi lets a NativeFunc hand back more than one value without widening
// every Fn's signature to a slice: call (interp.go) unwraps a Multi result
// into its components instead of treating it as a single value. pcall and
// the functions coroutine.wrap returns use it; bridge.Call already solves
// the same problem for async host functions by returning a value list
// directly instead of going through the single-value NativeFunc.Fn path,
// and Multi generalizes that same idea to a plain synchronous builtin.
type Multi []Value

// errorFn implements the script-level error(value) builtin: it raises
// value as a Script error (spec.md's "any value raised by script-level
// error"), propagating up through call/execBlock until a pcall catches it
// or it reaches the coroutine's top level.
func errorFn(f *Frame, args []Value) (Value, error) {
	var v Value
	if len(args) > 0 {
		v = args[0]
	}
	return nil, NewScriptError(v)
}

// pcallFn implements protected calls: fn(args...) runs through the same
// call dispatch every script-level call uses, and whatever error would
// otherwise unwind the caller is converted into a (false, value) result
// pair instead, matching spec.md's "catchable via script-level protected
// call" and its mandatory S4 scenario: the caught value stringifies to
// include the message error() was raised with, and the calling coroutine
// continues normally afterward.
func pcallFn(f *Frame, args []Value) (Value, error) {
	if len(args) < 1 {
		return nil, Errorf("pcall requires a function as its first argument")
	}
	results, err := call(f, args[0], args[1:])
	if err != nil {
		return Multi{false, raisedValue(err)}, nil
	}
	out := make(Multi, 0, len(results)+1)
	out = append(out, true)
	out = append(out, results...)
	return out, nil
}

// raisedValue extracts the value a ScriptError was raised with, so pcall
// hands the script back exactly what error() was called with rather than
// a Go error's formatted message. Any other error kind (one of interp.go's
// internal "quill: unhandled ..." errors, which never goes through
// NewScriptError/Errorf) falls back to its message string.
func raisedValue(err error) Value {
	if se, ok := err.(*ScriptError); ok {
		return se.Value
	}
	return err.Error()
}

// coroutineCreateFn implements coroutine.create(fn): it wraps a script
// function in a real *Coroutine, the same type task.spawn/defer/delay
// already accept as a target (scheduler.go's Spawn/Defer/Delay all switch
// on *engine.Coroutine alongside *Closure). Without this, no script could
// ever construct the coroutine-handle half of spec.md §4.4's "a function
// or coroutine handle" target contract; task.spawn(coroutine.create(f))
// now exercises it the same way task.spawn(f) exercises the closure half.
func coroutineCreateFn(f *Frame, args []Value) (Value, error) {
	if len(args) < 1 {
		return nil, Errorf("coroutine.create requires a function")
	}
	cl, ok := args[0].(*Closure)
	if !ok {
		return nil, Errorf("coroutine.create: expected a function, got %s", TypeName(args[0]))
	}
	return NewCoroutine(f.Machine, cl), nil
}

// coroutineWrapFn implements coroutine.wrap(fn): like create, but returns
// a plain callable that resumes the underlying coroutine on each call and
// re-raises its error in the caller rather than handing back an (ok,
// ...) pair, matching Lua's coroutine.wrap semantics.
func coroutineWrapFn(f *Frame, args []Value) (Value, error) {
	v, err := coroutineCreateFn(f, args)
	if err != nil {
		return nil, err
	}
	co := v.(*Coroutine)
	wrapped := func(_ *Frame, callArgs []Value) (Value, error) {
		results, _, rerr := co.Resume(callArgs)
		if rerr != nil {
			return nil, rerr
		}
		return Multi(results), nil
	}
	return &NativeFunc{Name: "coroutine.wrap", Fn: wrapped}, nil
}

// coroutineStatusFn implements coroutine.status(co), reporting one of
// Lua's familiar suspended/running/normal/dead strings.
func coroutineStatusFn(f *Frame, args []Value) (Value, error) {
	if len(args) < 1 {
		return nil, Errorf("coroutine.status requires a coroutine")
	}
	co, ok := args[0].(*Coroutine)
	if !ok {
		return nil, Errorf("coroutine.status: expected a coroutine, got %s", TypeName(args[0]))
	}
	return co.Status().String(), nil
}

// installBuiltins binds the language-level globals every Machine carries
// regardless of which @std modules a host registers (spec.md's CORE, not
// an @std surface): error, pcall, and the coroutine table.
func installBuiltins(m *Machine) {
	m.Globals.Set("error", &NativeFunc{Name: "error", Fn: errorFn})
	m.Globals.Set("pcall", &NativeFunc{Name: "pcall", Fn: pcallFn})

	co := NewTable()
	co.Set("create", &NativeFunc{Name: "coroutine.create", Fn: coroutineCreateFn})
	co.Set("wrap", &NativeFunc{Name: "coroutine.wrap", Fn: coroutineWrapFn})
	co.Set("status", &NativeFunc{Name: "coroutine.status", Fn: coroutineStatusFn})
	m.Globals.Set("coroutine", co)
}
