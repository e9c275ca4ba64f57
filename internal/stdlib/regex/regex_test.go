package regex

import (
	"testing"

	"github.com/quillrt/quill/internal/engine"
)

func loadModule(t *testing.T) *engine.Table {
	t.Helper()
	loaded, err := Loader(nil)
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	return loaded[0].(*engine.Table)
}

func TestMatchAndFind(t *testing.T) {
	mod := loadModule(t)
	matchFn := mod.Get("match").(*engine.NativeFunc)
	findFn := mod.Get("find").(*engine.NativeFunc)

	v, err := matchFn.Fn(nil, []engine.Value{`\d+`, "abc123"})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if v != true {
		t.Fatalf("expected match true")
	}

	v, err = findFn.Fn(nil, []engine.Value{`\d+`, "abc123def"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if v != "123" {
		t.Fatalf("got %v", v)
	}
}

func TestFindAllReturnsEveryMatch(t *testing.T) {
	mod := loadModule(t)
	findAllFn := mod.Get("findAll").(*engine.NativeFunc)

	v, err := findAllFn.Fn(nil, []engine.Value{`\d+`, "a1 b22 c333"})
	if err != nil {
		t.Fatalf("findAll: %v", err)
	}
	table := v.(*engine.Table)
	if table.Len() != 3 {
		t.Fatalf("expected 3 matches, got %d", table.Len())
	}
}

func TestReplaceAndSplit(t *testing.T) {
	mod := loadModule(t)
	replaceFn := mod.Get("replace").(*engine.NativeFunc)
	splitFn := mod.Get("split").(*engine.NativeFunc)

	v, err := replaceFn.Fn(nil, []engine.Value{`\s+`, "a   b  c", "-"})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if v != "a-b-c" {
		t.Fatalf("got %v", v)
	}

	v, err = splitFn.Fn(nil, []engine.Value{`,\s*`, "a, b,c"})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	table := v.(*engine.Table)
	if table.Len() != 3 {
		t.Fatalf("expected 3 parts, got %d", table.Len())
	}
}

func TestCompileErrorSurfacesAsScriptError(t *testing.T) {
	mod := loadModule(t)
	matchFn := mod.Get("match").(*engine.NativeFunc)
	if _, err := matchFn.Fn(nil, []engine.Value{"(unclosed", "text"}); err == nil {
		t.Fatalf("expected a compile error")
	}
}
