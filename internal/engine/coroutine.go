package engine

import (
	"path/filepath"
	"sync/atomic"
)

// Status is a coroutine's lifecycle state, mirroring Lua's coroutine.status
// values (suspended/running/normal/dead).
type Status int

const (
	StatusSuspended Status = iota
	StatusRunning
	StatusNormal
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusNormal:
		return "normal"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

var nextCoroID int64

// resumeMsg carries the arguments a Resume call is handing to a parked
// coroutine goroutine. raise, when non-nil, is delivered as the error half
// of the pending yield point instead of a normal value resume (spec.md
// §4.5: a failed host async operation "re-raises inside the coroutine").
type resumeMsg struct {
	args  []Value
	raise error
}

// yieldMsg is what a coroutine's goroutine sends back across yieldCh: either
// a mid-flight yield (Done=false) or its final outcome (Done=true).
type yieldMsg struct {
	values []Value
	err    error
	done   bool
}

// Coroutine is Quill's script-visible thread of execution: one Go goroutine
// gated by a pair of unbuffered channels so exactly one side runs at a time.
// Grounded on the teacher's Coroutine type (iolang/coroutine.go), whose
// Control channel is this same rendezvous pattern; the deadlock-detecting
// scheduler built on top of it there is not carried forward; the scheduler
// package is a wholly different cooperative loop (spec.md's task model, not
// Io's free-running actor model).
type Coroutine struct {
	id      int64
	Machine *Machine
	Closure *Closure

	status Status

	resumeCh chan resumeMsg
	yieldCh  chan yieldMsg
	started  bool

	// Name is a diagnostic label (e.g. "main", or a spawn call site).
	Name string

	schedTag    uint64
	schedTagSet bool
}

// SchedTag returns the scheduler-assigned identifier previously recorded
// by SetSchedTag, if any. The engine never interprets this value; it lets
// the scheduler recognize a coroutine that suspends itself (task.wait,
// the async bridge) as the same one it already handed a ThreadId to,
// instead of minting a second one per suspension.
func (c *Coroutine) SchedTag() (uint64, bool) {
	return c.schedTag, c.schedTagSet
}

// SetSchedTag records the scheduler-assigned identifier for this
// coroutine. Callers only set it once, the first time the scheduler
// associates an id with the coroutine.
func (c *Coroutine) SetSchedTag(tag uint64) {
	c.schedTag = tag
	c.schedTagSet = true
}

// NewCoroutine creates a suspended coroutine wrapping a closure. It does not
// start the underlying goroutine until the first Resume.
func NewCoroutine(m *Machine, cl *Closure) *Coroutine {
	return &Coroutine{
		id:       atomic.AddInt64(&nextCoroID, 1),
		Machine:  m,
		Closure:  cl,
		status:   StatusSuspended,
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan yieldMsg),
	}
}

// ID returns the coroutine's engine-assigned identity. The scheduler's
// thread registry does not use it; it allocates its own ThreadId values.
func (c *Coroutine) ID() int64 { return c.id }

// Status reports the coroutine's current lifecycle state.
func (c *Coroutine) Status() Status { return c.status }

// Resume hands args to a suspended coroutine and runs it until it either
// yields, returns, or raises. It must only be called from the single
// scheduler thread that owns this coroutine (spec.md's cooperative
// single-VM-thread model: never called concurrently for the same
// coroutine, and never while another coroutine on the same machine is
// running).
func (c *Coroutine) Resume(args []Value) (values []Value, yielded bool, err error) {
	return c.resume(resumeMsg{args: args})
}

// Raise resumes a suspended coroutine by delivering err at its pending
// yield point instead of a value list, per spec.md §4.5's "if h fails,
// the resume re-raises inside the coroutine".
func (c *Coroutine) Raise(err error) (values []Value, yielded bool, resultErr error) {
	return c.resume(resumeMsg{raise: err})
}

func (c *Coroutine) resume(msg resumeMsg) (values []Value, yielded bool, err error) {
	if c.status == StatusDead {
		return nil, false, Errorf("cannot resume dead coroutine")
	}
	if c.status == StatusRunning || c.status == StatusNormal {
		return nil, false, Errorf("cannot resume non-suspended coroutine")
	}
	prev := c.Machine.swapCurrent(c)
	c.status = StatusRunning
	if !c.started {
		c.started = true
		go c.run()
	}
	c.resumeCh <- msg
	out := <-c.yieldCh
	c.Machine.swapCurrent(prev)
	if out.done {
		c.status = StatusDead
		return out.values, false, out.err
	}
	c.status = StatusSuspended
	return out.values, true, out.err
}

// run is the coroutine's goroutine body. It blocks for its first resume,
// evaluates the closure body, and reports the outcome on yieldCh.
func (c *Coroutine) run() {
	first := <-c.resumeCh
	f := &Frame{Machine: c.Machine, Coro: c}
	env := NewEnv(c.Closure.Env)
	bindParams(env, c.Closure.Params, c.Closure.Vararg, first.args)
	values, err := execFuncBody(f, env, c.Closure.Body)
	c.yieldCh <- yieldMsg{values: values, err: err, done: true}
}

// Yield suspends the calling coroutine, handing values to whoever is
// resuming it, and blocks until the next Resume or Raise. It must be
// called from within the coroutine's own goroutine (i.e. from code reached
// through run()), never from the scheduler thread. The returned error is
// non-nil only when the resumer used Raise.
func (c *Coroutine) Yield(values []Value) ([]Value, error) {
	c.yieldCh <- yieldMsg{values: values, done: false}
	next := <-c.resumeCh
	return next.args, next.raise
}

// Machine is the shared engine state a family of coroutines run against: a
// global table and the bookkeeping for which coroutine currently holds the
// single VM thread. spec.md's core assumes exactly one script thread runs
// at a time; Machine.Current lets native functions (the async bridge, the
// task library) find "who is asking" without threading a coroutine pointer
// through every call by hand.
type Machine struct {
	Globals *Table

	current *Coroutine
}

// NewMachine creates a fresh engine instance whose global table holds only
// the core builtins (error, pcall, and the coroutine table).
func NewMachine() *Machine {
	m := &Machine{Globals: NewTable()}
	installBuiltins(m)
	return m
}

// Current returns the coroutine presently holding the VM thread, or nil if
// none is running (e.g. between scheduler ticks).
func (m *Machine) Current() *Coroutine {
	return m.current
}

func (m *Machine) swapCurrent(c *Coroutine) *Coroutine {
	prev := m.current
	m.current = c
	return prev
}

// NewMainCoroutine compiles src and wraps it in a coroutine representing a
// script's entry point (the "main" thread the scheduler resumes to start a
// run), matching spec.md's "the scheduler owns a single Machine per running
// script" framing.
func NewMainCoroutine(m *Machine, src, chunkName string) (*Coroutine, error) {
	stmts, err := Parse(src)
	if err != nil {
		return nil, err
	}
	cl := &Closure{Name: chunkName, Vararg: true, Body: stmts, Env: NewEnv(nil), Machine: m, Dir: filepath.Dir(chunkName)}
	co := NewCoroutine(m, cl)
	co.Name = chunkName
	return co, nil
}
