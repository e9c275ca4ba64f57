package luau

import (
	"testing"

	"github.com/quillrt/quill/internal/engine"
)

func TestLoadCompilesAndReturnsCallable(t *testing.T) {
	m := engine.NewMachine()
	loaded, err := Loader(m)
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	mod := loaded[0].(*engine.Table)
	load := mod.Get("load").(*engine.NativeFunc)

	v, err := load.Fn(&engine.Frame{Machine: m}, []engine.Value{"return 1 + 2"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	fn, ok := v.(*engine.NativeFunc)
	if !ok {
		t.Fatalf("expected a callable, got %T", v)
	}
	result, err := fn.Fn(nil, nil)
	if err != nil {
		t.Fatalf("calling loaded chunk: %v", err)
	}
	if result != float64(3) {
		t.Fatalf("got %v", result)
	}
}

func TestLoadRejectsSyntaxErrors(t *testing.T) {
	m := engine.NewMachine()
	loaded, _ := Loader(m)
	mod := loaded[0].(*engine.Table)
	load := mod.Get("load").(*engine.NativeFunc)

	_, err := load.Fn(&engine.Frame{Machine: m}, []engine.Value{"this is not luau"})
	if err == nil {
		t.Fatalf("expected a syntax error")
	}
}

func TestLoadRequiresMachineInFrame(t *testing.T) {
	loaded, _ := Loader(nil)
	mod := loaded[0].(*engine.Table)
	load := mod.Get("load").(*engine.NativeFunc)

	if _, err := load.Fn(nil, []engine.Value{"return 1"}); err == nil {
		t.Fatalf("expected an error without a machine in scope")
	}
}
