package logging

import (
	"bytes"
	"log"
	"testing"
)

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{level: level, target: log.New(&buf, "", 0)}, &buf
}

func TestLevelFilteringSuppressesLowerSeverity(t *testing.T) {
	l, buf := newTestLogger(LevelWarn)
	l.Infof("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
	l.Warnf("should appear")
	if buf.Len() == 0 {
		t.Fatalf("expected output for a warn-level message")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if parseLevel("nonsense") != LevelInfo {
		t.Fatalf("expected unrecognized level names to default to info")
	}
	if parseLevel("DEBUG") != LevelDebug {
		t.Fatalf("expected case-insensitive matching")
	}
}

func TestErrorSkipsNilError(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)
	l.Error(nil)
	if buf.Len() != 0 {
		t.Fatalf("expected nil error to produce no output")
	}
}
