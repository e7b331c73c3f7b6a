package scripttest

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rsc.io/script"
)

// runFile executes one scenario script against a fresh State rooted at a
// temp directory, driving a full command sequence against a fresh
// SQLite file rather than one function in isolation.
func runFile(t *testing.T, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := script.NewState(ctx, t.TempDir(), os.Environ())
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	defer scenarios.Delete(s)

	var log bytes.Buffer
	if err := Engine().Execute(s, path, bufio.NewReader(bytes.NewReader(data)), &log); err != nil {
		t.Logf("script log:\n%s", log.String())
		t.Fatalf("%s: %v", filepath.Base(path), err)
	}
}

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.txt"))
	if err != nil {
		t.Fatalf("glob testdata: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no scenario scripts found under testdata/")
	}
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".txt")
		t.Run(name, func(t *testing.T) {
			runFile(t, path)
		})
	}
}
