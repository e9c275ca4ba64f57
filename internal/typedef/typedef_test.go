package typedef

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCacheDirIsUnderHomeQuillTypedefs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err := CacheDir("0.1.0")
	if err != nil {
		t.Fatalf("CacheDir: %v", err)
	}
	want := filepath.Join(home, ".quill", ".typedefs", "0.1.0")
	if dir != want {
		t.Fatalf("CacheDir = %q, want %q", dir, want)
	}
}

func TestGenerateWritesOneStubPerBuiltin(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	version, err := Generate("0.1.0")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if version != "0.1.0" {
		t.Fatalf("Generate returned version %q, want %q", version, "0.1.0")
	}
	dir, _ := CacheDir("0.1.0")
	for _, s := range stubs {
		path := filepath.Join(dir, s.Name+".d.quill")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected stub for %q at %s: %v", s.Name, path, err)
		}
		if !strings.Contains(string(data), "declare "+s.Name+":") {
			t.Fatalf("stub for %q missing declaration, got: %s", s.Name, data)
		}
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if _, err := Generate("0.2.0"); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if _, err := Generate("0.2.0"); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
}
