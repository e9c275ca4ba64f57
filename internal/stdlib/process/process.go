// Package process implements the @std/process module: process
// arguments, environment variables, working directory, exit, and
// subprocess execution. Grounded on iolang/system.go's System object
// (args, getEnvironmentVariable, setEnvironmentVariable, exit,
// thisProcessPid, launchPath), generalized with an exec/create
// primitive built on os/exec since spec.md §6 asks for subprocess
// support the teacher's System object does not provide. create's
// streaming stdin/stdout/stderr handles are bridged through
// internal/bridge exactly like stdlib/net's sockets, so a blocking
// pipe read or child wait never stalls the VM thread — grounded on
// original_source/src/lune/process.rs's split between a blocking
// exec and a streaming create.
package process

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/quillrt/quill/internal/bridge"
	"github.com/quillrt/quill/internal/engine"
	"github.com/quillrt/quill/internal/scheduler"
)

// Loader returns the @std/process table bound to s (for create's
// streaming handles) and scriptArgs (the script's own argument
// vector, captured once at startup since os.Args includes the
// interpreter binary).
func Loader(s *scheduler.Scheduler, scriptArgs []string) func(m *engine.Machine) ([]engine.Value, error) {
	return func(m *engine.Machine) ([]engine.Value, error) {
		t := engine.NewTable()

		argsTable := engine.NewTable()
		for _, a := range scriptArgs {
			argsTable.Append(a)
		}
		t.Set("args", argsTable)

		t.Set("pid", &engine.NativeFunc{Name: "process.pid", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			return float64(os.Getpid()), nil
		}})
		t.Set("cwd", &engine.NativeFunc{Name: "process.cwd", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			wd, err := os.Getwd()
			if err != nil {
				return nil, engine.Errorf("cwd: %v", err)
			}
			return wd, nil
		}})
		t.Set("exit", &engine.NativeFunc{Name: "process.exit", Fn: exitFn(s)})
		t.Set("getEnv", &engine.NativeFunc{Name: "process.getEnv", Fn: getEnv})
		t.Set("setEnv", &engine.NativeFunc{Name: "process.setEnv", Fn: setEnv})
		t.Set("exec", &engine.NativeFunc{Name: "process.exec", Fn: execFn})
		t.Set("create", bridgedCreate(s))
		t.Set("write", bridge.Wrap("process.write", s, writeHost))
		t.Set("readOut", bridge.Wrap("process.readOut", s, readOutHost))
		t.Set("readErr", bridge.Wrap("process.readErr", s, readErrHost))
		t.Set("wait", bridge.Wrap("process.wait", s, waitHost))
		return []engine.Value{t}, nil
	}
}

// exitFn implements process.exit(code): it routes through s.Exit rather
// than os.Exit, so the scheduler's own main loop (internal/scheduler
// .Run) is the single place a script-requested exit turns into the
// process return code (spec.md: "it sets the exit code, stops
// dispatching, and attempts an orderly drop of all outstanding
// coroutines and futures"). cmd/quill/run.go is what finally passes
// that code to os.Exit once Run returns.
func exitFn(s *scheduler.Scheduler) func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	return func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
		code := 0
		if len(args) > 0 {
			n, ok := args[0].(float64)
			if !ok {
				return nil, engine.Errorf("exit: expected a number, got %s", engine.TypeName(args[0]))
			}
			code = int(n)
		}
		s.Exit(code)
		return nil, nil
	}
}

func getEnv(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	if len(args) < 1 {
		return nil, engine.Errorf("getEnv requires a name")
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, engine.Errorf("getEnv: expected a string, got %s", engine.TypeName(args[0]))
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func setEnv(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	if len(args) < 2 {
		return nil, engine.Errorf("setEnv requires a name and a value")
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, engine.Errorf("setEnv: expected a string name, got %s", engine.TypeName(args[0]))
	}
	val, ok := args[1].(string)
	if !ok {
		return nil, engine.Errorf("setEnv: expected a string value, got %s", engine.TypeName(args[1]))
	}
	if err := os.Setenv(name, val); err != nil {
		return nil, engine.Errorf("setEnv: %v", err)
	}
	return nil, nil
}

func commandArgs(args []engine.Value) (string, []string, error) {
	if len(args) < 1 {
		return "", nil, engine.Errorf("expected a program name")
	}
	name, ok := args[0].(string)
	if !ok {
		return "", nil, engine.Errorf("expected a string program name, got %s", engine.TypeName(args[0]))
	}
	extra := make([]string, 0, len(args)-1)
	for i, a := range args[1:] {
		s, ok := a.(string)
		if !ok {
			return "", nil, engine.Errorf("expected argument %d to be a string, got %s", i+2, engine.TypeName(a))
		}
		extra = append(extra, s)
	}
	return name, extra, nil
}

// exec(program, ...args) -> {ok, code, stdout, stderr}, running the
// process to completion and capturing its output. This is the
// blocking half of original_source's process split.
func execFn(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	name, extra, err := commandArgs(args)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(name, extra...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	result := engine.NewTable()
	result.Set("stdout", stdout.String())
	result.Set("stderr", stderr.String())
	if runErr == nil {
		result.Set("ok", true)
		result.Set("code", float64(0))
		return result, nil
	}
	exitErr, ok := runErr.(*exec.ExitError)
	if !ok {
		return nil, engine.Errorf("exec: %v", runErr)
	}
	result.Set("ok", false)
	result.Set("code", float64(exitErr.ExitCode()))
	return result, nil
}

// child is a running streaming subprocess created by process.create,
// tracked in children by an opaque handle distinct from its OS pid so
// a reused pid can never collide with a stale handle.
type child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *bufio.Reader
}

var children = struct {
	mu   sync.Mutex
	next int
	live map[int]*child
}{live: make(map[int]*child)}

// bridgedCreate starts a subprocess with its stdio piped, registers it
// under a fresh handle, and returns a NativeFunc yielding that handle.
// create itself does not block, so it is not wrapped in the bridge;
// the write/readOut/readErr/wait operations that follow are.
func bridgedCreate(s *scheduler.Scheduler) *engine.NativeFunc {
	return &engine.NativeFunc{Name: "process.create", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
		name, extra, err := commandArgs(args)
		if err != nil {
			return nil, err
		}
		cmd := exec.Command(name, extra...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, engine.Errorf("create: %v", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, engine.Errorf("create: %v", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, engine.Errorf("create: %v", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, engine.Errorf("create: %v", err)
		}

		children.mu.Lock()
		children.next++
		handle := children.next
		children.live[handle] = &child{
			cmd:    cmd,
			stdin:  stdin,
			stdout: bufio.NewReader(stdout),
			stderr: bufio.NewReader(stderr),
		}
		children.mu.Unlock()

		return float64(handle), nil
	}}
}

func childFor(args []engine.Value) (*child, error) {
	if len(args) < 1 {
		return nil, engine.Errorf("expected a process handle")
	}
	n, ok := args[0].(float64)
	if !ok {
		return nil, engine.Errorf("expected a process handle, got %s", engine.TypeName(args[0]))
	}
	children.mu.Lock()
	c, ok := children.live[int(n)]
	children.mu.Unlock()
	if !ok {
		return nil, engine.Errorf("process handle %v is not open", n)
	}
	return c, nil
}

func writeHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	c, err := childFor(args)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, engine.Errorf("write requires a handle and data")
	}
	data, ok := args[1].(string)
	if !ok {
		return nil, engine.Errorf("write: expected a string, got %s", engine.TypeName(args[1]))
	}
	if _, err := io.WriteString(c.stdin, data); err != nil {
		return nil, engine.Errorf("write: %v", err)
	}
	return nil, nil
}

func readOutHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	return readLineFrom(args, func(c *child) *bufio.Reader { return c.stdout })
}

func readErrHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	return readLineFrom(args, func(c *child) *bufio.Reader { return c.stderr })
}

func readLineFrom(args []engine.Value, pick func(*child) *bufio.Reader) ([]engine.Value, error) {
	c, err := childFor(args)
	if err != nil {
		return nil, err
	}
	line, err := pick(c).ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return []engine.Value{nil}, nil
		}
		return nil, engine.Errorf("read: %v", err)
	}
	return []engine.Value{trimNewline(line)}, nil
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}

func waitHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	c, err := childFor(args)
	if err != nil {
		return nil, err
	}
	runErr := c.cmd.Wait()

	if len(args) >= 1 {
		if n, ok := args[0].(float64); ok {
			children.mu.Lock()
			delete(children.live, int(n))
			children.mu.Unlock()
		}
	}

	result := engine.NewTable()
	if runErr == nil {
		result.Set("ok", true)
		result.Set("code", float64(0))
		return []engine.Value{result}, nil
	}
	exitErr, ok := runErr.(*exec.ExitError)
	if !ok {
		return nil, engine.Errorf("wait: %v", runErr)
	}
	result.Set("ok", false)
	result.Set("code", float64(exitErr.ExitCode()))
	return []engine.Value{result}, nil
}
