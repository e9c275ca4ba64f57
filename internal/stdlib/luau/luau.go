// Package luau implements the @std/luau module: dynamic compilation and
// execution of script source from within a running script, mirroring
// the load/loadstring-style facility spec.md §6 names. It is a thin
// wrapper around internal/engine's own compile/run entry points rather
// than a new implementation, since the engine already exposes exactly
// this capability for the top-level bootstrap coroutine.
package luau

import (
	"github.com/quillrt/quill/internal/engine"
)

// Loader returns the @std/luau table.
func Loader(m *engine.Machine) ([]engine.Value, error) {
	t := engine.NewTable()
	t.Set("load", &engine.NativeFunc{Name: "luau.load", Fn: loadFn})
	return []engine.Value{t}, nil
}

// load(source, chunkName) -> function, compiling source into a callable
// closure without running it. Calling the returned function starts a
// fresh coroutine sharing the calling machine's globals.
func loadFn(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	if len(args) < 1 {
		return nil, engine.Errorf("load requires a source string")
	}
	src, ok := args[0].(string)
	if !ok {
		return nil, engine.Errorf("load: expected a string, got %s", engine.TypeName(args[0]))
	}
	chunkName := "=(load)"
	if len(args) > 1 {
		name, ok := args[1].(string)
		if !ok {
			return nil, engine.Errorf("load: expected a string chunk name, got %s", engine.TypeName(args[1]))
		}
		chunkName = name
	}
	if f == nil || f.Machine == nil {
		return nil, engine.Errorf("load: no machine in scope")
	}
	co, err := engine.NewMainCoroutine(f.Machine, src, chunkName)
	if err != nil {
		return nil, engine.NewScriptError(err.Error())
	}
	return &engine.NativeFunc{
		Name: "loaded chunk",
		Fn: func(callFrame *engine.Frame, callArgs []engine.Value) (engine.Value, error) {
			values, _, err := co.Resume(callArgs)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, nil
			}
			return values[0], nil
		},
	}, nil
}
