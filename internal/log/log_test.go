package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
	})

	Info("hidden line")
	Warn("store write failed", "slot", "file:/tmp/x.json")
	Error("persist failed", errors.New("disk full"), "count", 3)

	out := buf.String()
	if strings.Contains(out, "hidden line") {
		t.Errorf("INFO line should be filtered at WARN level, got %q", out)
	}
	if !strings.Contains(out, "[WARN] store write failed slot=file:/tmp/x.json") {
		t.Errorf("missing WARN line, got %q", out)
	}
	if !strings.Contains(out, `[ERROR] persist failed err="disk full" count=3`) {
		t.Errorf("missing ERROR line with err first, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
