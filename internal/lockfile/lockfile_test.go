package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	content, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	expected := fmt.Sprintf("pid=%d\n", os.Getpid())
	if string(content) != expected {
		t.Errorf("expected %q, got %q", expected, string(content))
	}
}

func TestAcquireCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected state directory to exist: %v", err)
	}
}

func TestReleaseRemovesLockFile(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Errorf("expected lock file removal, stat err: %v", err)
	}

	// Second release is a no-op.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	lock1, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := lock1.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	lock2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	lock2.Release()
}

func TestHeldErrorMessage(t *testing.T) {
	cause := errors.New("resource temporarily unavailable")
	err := &HeldError{LockPath: "/var/lib/scriptagent/scriptagent.lock", Holder: "PID 42 (running)", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected HeldError to unwrap its cause")
	}
	msg := err.Error()
	if !strings.Contains(msg, "PID 42") || !strings.Contains(msg, "scriptagent.lock") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestParsePID(t *testing.T) {
	cases := []struct {
		content string
		want    int
	}{
		{"pid=1234\n", 1234},
		{"pid=", 0},
		{"garbage", 0},
		{"prefix pid=7 suffix", 7},
	}
	for _, tc := range cases {
		if got := parsePID(tc.content); got != tc.want {
			t.Errorf("parsePID(%q) = %d, want %d", tc.content, got, tc.want)
		}
	}
}
