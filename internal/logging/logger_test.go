package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "pipeline").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "pipeline") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DebugLogFile)
	logger, closer, err := New(Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug().Int("frames", 3).Msg("flushed")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"frames":3`) {
		t.Errorf("log file = %q, want JSON entry", data)
	}
}

func TestNewBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New accepted an unknown level")
	}
}
