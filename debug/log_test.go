package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogDisabledIsNoop(t *testing.T) {
	Disable()
	Log("test", "should not panic %d", 1)
	LogEvery(2, "test", "nor this")
	if Enabled() {
		t.Fatal("expected logging disabled")
	}
}

func TestEnableTo(t *testing.T) {
	var buf bytes.Buffer
	EnableTo(&buf)
	defer Disable()

	Log("sched", "drone fired at %dms", 4100)

	out := buf.String()
	if !strings.Contains(out, "Debug logging started") {
		t.Errorf("missing banner: %q", out)
	}
	if !strings.Contains(out, "sched") || !strings.Contains(out, "drone fired at 4100ms") {
		t.Errorf("missing message: %q", out)
	}
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableTo(&buf)
	defer Disable()

	for i := 0; i < 9; i++ {
		LogEvery(3, "tick", "ticked")
	}
	if got := strings.Count(buf.String(), "ticked (every 3"); got != 3 {
		t.Errorf("got %d lines, want 3:\n%s", got, buf.String())
	}
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "debug.log")
	if err := EnableFile(path); err != nil {
		t.Fatal(err)
	}
	Log("file", "hello")
	Disable()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing message: %q", data)
	}
}
