package obs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_DisabledIsNoop(t *testing.T) {
	l := New(Options{Enabled: false})
	if l.Enabled() {
		t.Fatal("expected a disabled logger to report Enabled() == false")
	}
	l.Infof("should not write anything")
	l.Errorf("neither should this")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLogger_EnabledWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.log")
	l := New(Options{Enabled: true, Path: path})
	if !l.Enabled() {
		t.Fatal("expected an enabled logger to report Enabled() == true")
	}

	l.Infof("auto-sync completed: %d synced", 3)
	l.Errorf("batch %d failed: %v", 1, "boom")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "auto-sync completed: 3 synced") {
		t.Errorf("expected Infof line in log, got: %s", content)
	}
	if !strings.Contains(content, "error: batch 1 failed: boom") {
		t.Errorf("expected Errorf line in log, got: %s", content)
	}
}
