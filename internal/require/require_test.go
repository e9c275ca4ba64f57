package require

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quillrt/quill/internal/engine"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func compileFile(m *engine.Machine, path string) (*engine.Coroutine, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return engine.NewMainCoroutine(m, string(src), path)
}

func TestResolveRelativeWithExtensionSearch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.luau", "return {}")
	got, err := Resolve(dir, "util")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(dir, "util.luau"))
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveDirectoryRewritesToInit(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "pkg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, sub, "init.luau", "return {}")
	got, err := Resolve(dir, "pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(sub, "init.luau"))
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveAmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.luau", "return {}")
	writeFile(t, dir, "util.lua", "return {}")
	_, err := Resolve(dir, "util")
	rerr, ok := err.(*Error)
	if !ok || rerr.Kind != KindAmbiguousMatch {
		t.Fatalf("err = %v, want AmbiguousMatch", err)
	}
}

func TestResolveAlias(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "lib")
	if err := os.Mkdir(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, libDir, "shared.luau", "return {}")
	writeFile(t, dir, "quill.toml", "[aliases]\nLIB = \"lib\"\n")
	got, err := Resolve(dir, "@lib/shared")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(libDir, "shared.luau"))
	if got != want {
		t.Fatalf("got %q, want %q (alias name matching is case-insensitive)", got, want)
	}
}

func TestRequireCachesAndReturnsSameValue(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.luau", "return { tag = 1 }")

	m := engine.NewMachine()
	cache := NewCache()
	co, err := engine.NewMainCoroutine(m, "", "main")
	if err != nil {
		t.Fatalf("main coroutine: %v", err)
	}

	v1, err := cache.Require(m, co, dir, "shared", compileFile)
	if err != nil {
		t.Fatalf("first require: %v", err)
	}
	v2, err := cache.Require(m, co, dir, "shared", compileFile)
	if err != nil {
		t.Fatalf("second require: %v", err)
	}
	t1, ok1 := v1[0].(*engine.Table)
	t2, ok2 := v2[0].(*engine.Table)
	if !ok1 || !ok2 || t1 != t2 {
		t.Fatalf("expected the same table reference from both requires")
	}
}

func TestRequireCycleDetected(t *testing.T) {
	dir := t.TempDir()
	m := engine.NewMachine()
	cache := NewCache()

	writeFile(t, dir, "a.luau", "")
	writeFile(t, dir, "b.luau", "")

	co, err := engine.NewMainCoroutine(m, "", "main")
	if err != nil {
		t.Fatalf("main coroutine: %v", err)
	}

	aPath, err := Resolve(dir, "a")
	if err != nil {
		t.Fatalf("resolve a: %v", err)
	}
	if !cache.enterLoading(co, aPath) {
		t.Fatalf("expected first enter to succeed")
	}
	defer cache.leaveLoading(co, aPath)

	_, err = cache.requirePath(m, co, aPath, compileFile)
	rerr, ok := err.(*Error)
	if !ok || rerr.Kind != KindCycleDetected {
		t.Fatalf("err = %v, want CycleDetected", err)
	}
}
