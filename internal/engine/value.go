// Package engine implements the embeddable scripting engine that the
// scheduler, require subsystem, and async bridge bind to. Its lexer,
// parser, and evaluator are the "opaque embeddable engine" spec.md treats
// as an external collaborator: the core cares only about the Coroutine and
// Machine contracts in coroutine.go, not about how a chunk gets from source
// text to a value.
package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is any value a Quill script can hold: nil, bool, float64, string,
// *Table, *Closure, *NativeFunc, or *Coroutine.
type Value interface{}

// Table is Quill's single compound data structure, playing the role Lua and
// Luau tables play: an ordered array part plus a hash part. Requiring the
// same module twice returns the same *Table by reference, which is how
// script modules get singleton semantics (spec.md §4.6).
type Table struct {
	array []Value
	hash  map[Value]Value
	Proto *Table
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Get resolves a key, falling back to Proto if the key is absent locally
// (Proto exists so builtin namespace objects can share methods; scripts
// rarely set it).
func (t *Table) Get(key Value) Value {
	if idx, ok := arrayIndex(key); ok && idx >= 1 && idx <= len(t.array) {
		return t.array[idx-1]
	}
	if t.hash != nil {
		if v, ok := t.hash[normalizeKey(key)]; ok {
			return v
		}
	}
	if t.Proto != nil {
		return t.Proto.Get(key)
	}
	return nil
}

// Set assigns a key. Setting array[len+1] appends; nil erases a key.
func (t *Table) Set(key, val Value) {
	if idx, ok := arrayIndex(key); ok && idx >= 1 {
		if idx <= len(t.array) {
			t.array[idx-1] = val
			return
		}
		if idx == len(t.array)+1 {
			t.array = append(t.array, val)
			return
		}
	}
	key = normalizeKey(key)
	if val == nil {
		delete(t.hash, key)
		return
	}
	if t.hash == nil {
		t.hash = make(map[Value]Value)
	}
	t.hash[key] = val
}

// Len returns the length of the array part, matching Lua's `#t` semantics
// for sequences with no holes.
func (t *Table) Len() int {
	return len(t.array)
}

// Append adds a value to the end of the array part.
func (t *Table) Append(v Value) {
	t.array = append(t.array, v)
}

// Array exposes the array part for iteration by stdlib code (e.g. process
// args, fs directory listings).
func (t *Table) Array() []Value {
	return t.array
}

// Keys returns the hash-part keys in a stable (sorted-by-formatted-string)
// order, so pretty-printing and serde encoding are deterministic.
func (t *Table) Keys() []Value {
	keys := make([]Value, 0, len(t.hash))
	for k := range t.hash {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return ToDisplayString(keys[i]) < ToDisplayString(keys[j]) })
	return keys
}

func arrayIndex(key Value) (int, bool) {
	f, ok := key.(float64)
	if !ok || math.Trunc(f) != f {
		return 0, false
	}
	return int(f), true
}

// normalizeKey collapses integral floats used as hash keys ("1" vs 1.0) the
// way Lua does, so t[1] and t[1.0] hit the same slot.
func normalizeKey(key Value) Value {
	if f, ok := key.(float64); ok && math.Trunc(f) == f && !math.IsInf(f, 0) {
		return f
	}
	return key
}

// Closure is a script-defined function: a parameter list, a body, and the
// lexical environment it closed over.
type Closure struct {
	Name    string
	Params  []string
	Vararg  bool
	Body    []Stmt
	Env     *Env
	Machine *Machine

	// Dir is the directory a require() call made from within this
	// closure resolves relative paths against: the directory of the
	// chunk the closure was ultimately defined in (spec.md §4.6,
	// "relative to the requiring script's directory").
	Dir string
}

// NativeFunc is a host function exposed to scripts (an @std entry point,
// or a function produced by the async bridge). Frame gives access to the
// running coroutine so native functions can yield.
type NativeFunc struct {
	Name string
	Fn   func(f *Frame, args []Value) (Value, error)
}

// Frame is the execution context passed to native functions.
type Frame struct {
	Machine *Machine
	Coro    *Coroutine
}

// Truthy implements Quill's truthiness: everything except nil and false is
// truthy (Lua semantics, not Io's isTrue-slot dispatch, since Quill has no
// prototype dispatch to hang that on).
func Truthy(v Value) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// TypeName returns the script-visible type name of a value.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case *Table:
		return "table"
	case *Closure, *NativeFunc:
		return "function"
	case *Coroutine:
		return "coroutine"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ToDisplayString renders a value the way the stdio pretty-printer and
// serde error messages want it: compact and stable, not a Go %#v dump.
func ToDisplayString(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(x)
	case string:
		return x
	case *Table:
		return fmt.Sprintf("table: %p", x)
	case *Closure:
		return fmt.Sprintf("function: %s", x.Name)
	case *NativeFunc:
		return fmt.Sprintf("function: %s [native]", x.Name)
	case *Coroutine:
		return fmt.Sprintf("coroutine: %d", x.id)
	case error:
		return x.Error()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func formatNumber(f float64) string {
	if math.Trunc(f) == f && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Quote renders a value for the stdio prompt/print helpers when a string
// needs to be visually distinguished from its contents.
func Quote(v Value) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return ToDisplayString(v)
}

// ScriptError is the value carried by an error raised from script code
// (spec.md §7's "Script error" kind). It preserves the original raised
// value verbatim and only formats a message lazily.
type ScriptError struct {
	Value     Value
	Trace     []string
	Underlying error
}

func (e *ScriptError) Error() string {
	if e.Underlying != nil {
		return e.Underlying.Error()
	}
	msg := ToDisplayString(e.Value)
	if len(e.Trace) == 0 {
		return msg
	}
	return msg + "\n" + strings.Join(e.Trace, "\n")
}

func (e *ScriptError) Unwrap() error {
	return e.Underlying
}

// NewScriptError wraps a raised script value as a Go error.
func NewScriptError(v Value) *ScriptError {
	if se, ok := v.(*ScriptError); ok {
		return se
	}
	return &ScriptError{Value: v}
}

// Errorf builds a ScriptError from a formatted string, the common case for
// host-raised errors (host async failures, argument type errors).
func Errorf(format string, args ...interface{}) *ScriptError {
	return &ScriptError{Value: fmt.Sprintf(format, args...)}
}
