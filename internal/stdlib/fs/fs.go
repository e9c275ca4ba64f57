// Package fs implements the @std/fs module: reading, writing, and
// inspecting files and directories. Grounded on iolang/coreext/file's
// File object (open/read/write/exists/isDirectory/moveTo/remove) and
// iolang/coreext/directory's Directory object (create/items/exists),
// reworked from Io's stateful, per-instance File/Directory objects into
// stateless path-taking functions, since spec.md's fs surface names
// one-shot operations rather than a cursor-holding file handle.
package fs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/quillrt/quill/internal/engine"
)

// Loader returns the @std/fs table.
func Loader(m *engine.Machine) ([]engine.Value, error) {
	t := engine.NewTable()
	t.Set("readFile", &engine.NativeFunc{Name: "fs.readFile", Fn: readFile})
	t.Set("writeFile", &engine.NativeFunc{Name: "fs.writeFile", Fn: writeFile})
	t.Set("appendFile", &engine.NativeFunc{Name: "fs.appendFile", Fn: appendFile})
	t.Set("removeFile", &engine.NativeFunc{Name: "fs.removeFile", Fn: removePath})
	t.Set("removeDir", &engine.NativeFunc{Name: "fs.removeDir", Fn: removeDir})
	t.Set("createDir", &engine.NativeFunc{Name: "fs.createDir", Fn: createDir})
	t.Set("listDir", &engine.NativeFunc{Name: "fs.listDir", Fn: listDir})
	t.Set("exists", &engine.NativeFunc{Name: "fs.exists", Fn: exists})
	t.Set("isFile", &engine.NativeFunc{Name: "fs.isFile", Fn: isFile})
	t.Set("isDir", &engine.NativeFunc{Name: "fs.isDir", Fn: isDir})
	t.Set("metadata", &engine.NativeFunc{Name: "fs.metadata", Fn: metadata})
	t.Set("move", &engine.NativeFunc{Name: "fs.move", Fn: move})
	t.Set("copy", &engine.NativeFunc{Name: "fs.copy", Fn: copyFile})
	return []engine.Value{t}, nil
}

func argPath(args []engine.Value, i int) (string, error) {
	if i >= len(args) {
		return "", engine.Errorf("expected argument %d to be a path string", i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", engine.Errorf("expected argument %d to be a path string, got %s", i+1, engine.TypeName(args[i]))
	}
	return filepath.FromSlash(s), nil
}

func readFile(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapErr("readFile", err)
	}
	return string(b), nil
}

func writeFile(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	text, ok := args[1].(string)
	if !ok {
		return nil, engine.Errorf("writeFile: expected a string for the contents, got %s", engine.TypeName(args[1]))
	}
	if err := os.WriteFile(path, []byte(text), 0666); err != nil {
		return nil, wrapErr("writeFile", err)
	}
	return nil, nil
}

func appendFile(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	text, ok := args[1].(string)
	if !ok {
		return nil, engine.Errorf("appendFile: expected a string for the contents, got %s", engine.TypeName(args[1]))
	}
	fp, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		return nil, wrapErr("appendFile", err)
	}
	defer fp.Close()
	if _, err := fp.WriteString(text); err != nil {
		return nil, wrapErr("appendFile", err)
	}
	return nil, nil
}

func removePath(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, wrapErr("removeFile", err)
	}
	return nil, nil
}

func removeDir(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	recursive := len(args) > 1 && truthy(args[1])
	if recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, wrapErr("removeDir", err)
	}
	return nil, nil
}

func createDir(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0777); err != nil {
		return nil, wrapErr("createDir", err)
	}
	return nil, nil
}

func listDir(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, wrapErr("listDir", err)
	}
	list := engine.NewTable()
	for _, e := range entries {
		list.Append(filepath.ToSlash(e.Name()))
	}
	return list, nil
}

func exists(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(path)
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return nil, wrapErr("exists", statErr)
}

func isFile(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	fi, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return false, nil
		}
		return nil, wrapErr("isFile", statErr)
	}
	return fi.Mode().IsRegular(), nil
}

func isDir(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	fi, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return false, nil
		}
		return nil, wrapErr("isDir", statErr)
	}
	return fi.IsDir(), nil
}

// metadata(path) -> {size, modified, isDir, isFile}
func metadata(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	path, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	fi, statErr := os.Stat(path)
	if statErr != nil {
		return nil, wrapErr("metadata", statErr)
	}
	t := engine.NewTable()
	t.Set("size", float64(fi.Size()))
	t.Set("modified", float64(fi.ModTime().Unix()))
	t.Set("isDir", fi.IsDir())
	t.Set("isFile", fi.Mode().IsRegular())
	return t, nil
}

func move(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	from, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	to, err := argPath(args, 1)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(from, to); err != nil {
		return nil, wrapErr("move", err)
	}
	return nil, nil
}

func copyFile(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	from, err := argPath(args, 0)
	if err != nil {
		return nil, err
	}
	to, err := argPath(args, 1)
	if err != nil {
		return nil, err
	}
	src, err := os.Open(from)
	if err != nil {
		return nil, wrapErr("copy", err)
	}
	defer src.Close()
	dst, err := os.Create(to)
	if err != nil {
		return nil, wrapErr("copy", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return nil, wrapErr("copy", err)
	}
	return nil, nil
}

// truthy applies Lua's truthiness rule: everything but nil and false
// counts as true.
func truthy(v engine.Value) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func wrapErr(op string, err error) error {
	return engine.Errorf("%s: %v", op, err)
}
