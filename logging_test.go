package evloop

import (
	"errors"
	"os"
	"testing"
)

func TestNoopLoggerSatisfiesLogger(t *testing.T) {
	var l Logger = noopLogger{}
	l.Debug("msg", map[string]any{"k": 1})
	l.Info("msg", nil)
	l.Warn("msg", map[string]any{})
	l.Error("msg", errors.New("boom"), nil)
}

func TestNewDefaultLoggerWritesNewlineDelimitedJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "evloop-log-*.ndjson")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	l := NewDefaultLogger(f)
	l.Info("driver starting", map[string]any{"backend": "generic"})
	l.Error("dispatch failed", errors.New("boom"), map[string]any{"id": "a"})

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("NewDefaultLogger wrote nothing to the backing file")
	}
}
