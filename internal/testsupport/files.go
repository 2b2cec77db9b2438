package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	mkdirParent(t, path)
	buf := make([]byte, min(size, 32*1024))
	for i := range buf {
		buf[i] = 0x42
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	for remaining := size; remaining > 0; {
		n := min(remaining, int64(len(buf)))
		if _, err := f.Write(buf[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}

// WriteSparse creates a file that reports size bytes without allocating them,
// for inputs in the hundreds of megabytes.
func WriteSparse(t testing.TB, path string, size int64) {
	t.Helper()

	mkdirParent(t, path)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate %s: %v", path, err)
	}
}

// WriteExecutable writes a POSIX shell script and returns its path.
func WriteExecutable(t testing.TB, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	mkdirParent(t, path)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func mkdirParent(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}
