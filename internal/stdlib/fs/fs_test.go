package fs

import (
	"path/filepath"
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

func call(t *testing.T, mod *engine.Table, name string, args ...engine.Value) engine.Value {
	t.Helper()
	fn, ok := mod.Get(name).(*engine.NativeFunc)
	if !ok {
		t.Fatalf("no such function %q", name)
	}
	v, err := fn.Fn(nil, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func TestWriteReadAppendRoundTrip(t *testing.T) {
	mod := loadModule(t)
	path := filepath.Join(t.TempDir(), "greeting.txt")

	call(t, mod, "writeFile", path, "hello")
	call(t, mod, "appendFile", path, " world")

	got := call(t, mod, "readFile", path)
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestExistsIsFileIsDir(t *testing.T) {
	mod := loadModule(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	call(t, mod, "writeFile", file, "x")

	if call(t, mod, "exists", file) != true {
		t.Fatalf("expected file to exist")
	}
	if call(t, mod, "isFile", file) != true {
		t.Fatalf("expected isFile true")
	}
	if call(t, mod, "isDir", dir) != true {
		t.Fatalf("expected isDir true for the temp dir")
	}
	missing := filepath.Join(dir, "nope.txt")
	if call(t, mod, "exists", missing) != false {
		t.Fatalf("expected missing file to not exist")
	}
}

func TestCreateDirAndListDir(t *testing.T) {
	mod := loadModule(t)
	dir := filepath.Join(t.TempDir(), "nested", "sub")
	call(t, mod, "createDir", dir)
	call(t, mod, "writeFile", filepath.Join(dir, "one.txt"), "1")
	call(t, mod, "writeFile", filepath.Join(dir, "two.txt"), "2")

	entries := call(t, mod, "listDir", dir).(*engine.Table)
	if entries.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", entries.Len())
	}
}

func TestMoveAndCopy(t *testing.T) {
	mod := loadModule(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	moved := filepath.Join(dir, "moved.txt")
	copied := filepath.Join(dir, "copied.txt")

	call(t, mod, "writeFile", src, "payload")
	call(t, mod, "move", src, moved)
	if call(t, mod, "exists", src) != false {
		t.Fatalf("expected source to be gone after move")
	}
	call(t, mod, "copy", moved, copied)
	if got := call(t, mod, "readFile", copied); got != "payload" {
		t.Fatalf("got %q", got)
	}
}

func TestRemoveFileAndDir(t *testing.T) {
	mod := loadModule(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "gone.txt")
	call(t, mod, "writeFile", file, "x")
	call(t, mod, "removeFile", file)
	if call(t, mod, "exists", file) != false {
		t.Fatalf("expected file removed")
	}

	nested := filepath.Join(dir, "tree", "leaf")
	call(t, mod, "createDir", nested)
	call(t, mod, "removeDir", filepath.Join(dir, "tree"), true)
	if call(t, mod, "exists", filepath.Join(dir, "tree")) != false {
		t.Fatalf("expected recursive removeDir to remove the tree")
	}
}

func TestMetadataReportsSizeAndKind(t *testing.T) {
	mod := loadModule(t)
	path := filepath.Join(t.TempDir(), "sized.txt")
	call(t, mod, "writeFile", path, "12345")

	meta := call(t, mod, "metadata", path).(*engine.Table)
	if meta.Get("size").(float64) != 5 {
		t.Fatalf("expected size 5, got %v", meta.Get("size"))
	}
	if meta.Get("isFile") != true {
		t.Fatalf("expected isFile true")
	}
}
