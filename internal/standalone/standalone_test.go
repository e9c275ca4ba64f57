package standalone

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestBuildAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fakeExe := filepath.Join(dir, "fake-quill")
	if err := os.WriteFile(fakeExe, []byte("PRETEND-ELF-HEADER"), 0777); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := filepath.Join(dir, "bundled")
	source := `print("hello from a bundled script")`
	if err := Build(fakeExe, out, source); err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	got, err := Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != source {
		t.Fatalf("got %q, want %q", got, source)
	}
}

func TestReadRejectsPlainBinary(t *testing.T) {
	if _, err := Read([]byte("just a regular executable, no trailer here")); err != ErrNotStandalone {
		t.Fatalf("expected ErrNotStandalone, got %v", err)
	}
}

func TestReadRejectsTooShortInput(t *testing.T) {
	if _, err := Read([]byte("short")); err != ErrNotStandalone {
		t.Fatalf("expected ErrNotStandalone, got %v", err)
	}
}

func TestCheckSelfOnOrdinaryTestBinaryIsNotStandalone(t *testing.T) {
	if runtime.GOOS == "js" {
		t.Skip("os.Executable is unsupported on this platform")
	}
	_, ok, err := CheckSelf()
	if err != nil {
		t.Fatalf("CheckSelf: %v", err)
	}
	if ok {
		t.Fatalf("test binary should not carry a standalone trailer")
	}
}
