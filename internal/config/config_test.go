package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "quill.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "" {
		t.Fatalf("expected zero-value project, got %+v", p)
	}
}

func TestLoadDecodesProjectFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.toml")
	contents := `
name = "demo"
version = "0.1.0"

[aliases]
utils = "./src/utils"

[std]
enabled = ["fs", "task"]
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "demo" || p.Version != "0.1.0" {
		t.Fatalf("got %+v", p)
	}
	if p.Aliases["utils"] != "./src/utils" {
		t.Fatalf("got aliases %+v", p.Aliases)
	}
	if !p.StdEnabled("fs") || p.StdEnabled("net") {
		t.Fatalf("std allowlist not respected: %+v", p.Std)
	}
}

func TestStdEnabledDefaultsToAllowAllWhenUnset(t *testing.T) {
	var p Project
	if !p.StdEnabled("anything") {
		t.Fatalf("expected an empty allowlist to permit everything")
	}
}
