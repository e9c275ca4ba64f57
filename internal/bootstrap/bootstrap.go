// Package bootstrap wires a Scheduler, its require Cache, and every
// @std/* module loader together into one running Quill environment,
// the way the teacher's cmd/io/main.go constructs a VM and installs its
// core addons before evaluating a script. RegisterStd's std-allowlist
// gating is new: the teacher has no equivalent to a project config file
// restricting which addons load.
package bootstrap

import (
	"os"
	"path/filepath"

	"github.com/quillrt/quill/internal/config"
	"github.com/quillrt/quill/internal/engine"
	"github.com/quillrt/quill/internal/logging"
	"github.com/quillrt/quill/internal/require"
	"github.com/quillrt/quill/internal/scheduler"
	"github.com/quillrt/quill/internal/stdlib/datetime"
	"github.com/quillrt/quill/internal/stdlib/fs"
	"github.com/quillrt/quill/internal/stdlib/luau"
	"github.com/quillrt/quill/internal/stdlib/net"
	"github.com/quillrt/quill/internal/stdlib/process"
	"github.com/quillrt/quill/internal/stdlib/regex"
	"github.com/quillrt/quill/internal/stdlib/serde"
	"github.com/quillrt/quill/internal/stdlib/stdio"
	"github.com/quillrt/quill/internal/stdlib/task"
)

// Environment bundles everything a running script needs: a scheduler
// bound to its own Machine, a require cache with every enabled @std
// module registered, and a logger for host-side diagnostics.
type Environment struct {
	Scheduler *scheduler.Scheduler
	Cache     *require.Cache
	Log       *logging.Logger
	Project   config.Project
}

// New builds an Environment for running scripts of the project proj, with
// scriptArgs exposed as process.args. Std modules are registered
// according to proj.StdEnabled, so a quill.toml that restricts the
// std allowlist actually removes the corresponding @std/name entries
// rather than merely hiding them from documentation.
func New(proj config.Project, scriptArgs []string) *Environment {
	s := scheduler.New()
	c := require.NewCache()
	log := logging.Default()

	s.SetErrorCallback(func(err error) {
		log.Error(err)
	})

	register := func(name string, load require.Loader) {
		if proj.StdEnabled(name) {
			c.RegisterStd(name, load)
		}
	}

	register("task", task.Loader(s))
	register("serde", serde.Loader)
	register("datetime", datetime.Loader)
	register("fs", fs.Loader)
	register("net", net.Loader(s))
	register("process", process.Loader(s, scriptArgs))
	register("stdio", stdio.Loader)
	register("luau", luau.Loader)
	register("regex", regex.Loader)

	return &Environment{Scheduler: s, Cache: c, Log: log, Project: proj}
}

// Compiler returns a require.Compiler bound to this environment's
// Machine, for resolving non-std requires by reading the resolved
// path's source and compiling it as a fresh coroutine.
func (e *Environment) Compiler() require.Compiler {
	return func(m *engine.Machine, canonicalPath string) (*engine.Coroutine, error) {
		src, err := os.ReadFile(canonicalPath)
		if err != nil {
			return nil, err
		}
		return engine.NewMainCoroutine(m, string(src), canonicalPath)
	}
}

// installRequire binds the global "require" function. Each call resolves
// relative paths against the directory of the chunk the calling coroutine
// is currently running (engine.Closure.Dir, spec.md §4.6's "relative to
// the requiring script's directory"), falling back to fallbackDir for a
// coroutine whose closure carries no directory of its own (the REPL, or a
// closure built without going through NewMainCoroutine).
func (e *Environment) installRequire(fallbackDir string) {
	compile := e.Compiler()
	e.Scheduler.Machine.Globals.Set("require", &engine.NativeFunc{
		Name: "require",
		Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			if len(args) < 1 {
				return nil, engine.Errorf("require expects a module path")
			}
			spec, ok := args[0].(string)
			if !ok {
				return nil, engine.Errorf("require: expected a string path, got %s", engine.TypeName(args[0]))
			}
			fromDir := fallbackDir
			if f.Coro != nil && f.Coro.Closure != nil && f.Coro.Closure.Dir != "" {
				fromDir = f.Coro.Closure.Dir
			}
			values, err := e.Cache.Require(f.Machine, f.Coro, fromDir, spec, compile)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, nil
			}
			return values[0], nil
		},
	})
}

// Run compiles and runs source under chunkName to completion, resolving
// requires against chunkName's own directory, and returns the
// scheduler's exit code (spec.md §4.7).
func (e *Environment) Run(source, chunkName string, args []engine.Value) (int, error) {
	return e.RunFrom(source, chunkName, filepath.Dir(chunkName), args)
}

// RunFrom is Run with an explicit require base directory, for the
// "legacy CWD-relative require" mode spec.md §6 calls out as an
// environment-variable-gated CLI behavior.
func (e *Environment) RunFrom(source, chunkName, requireBase string, args []engine.Value) (int, error) {
	e.installRequire(requireBase)
	main, err := engine.NewMainCoroutine(e.Scheduler.Machine, source, chunkName)
	if err != nil {
		return 1, err
	}
	code := e.Scheduler.Run(main, args)
	return code, nil
}
