package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitEvent(t *testing.T, w *FileWatcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestWatchFile_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "HEAD")

	w, err := WatchFile(target)
	if err != nil {
		t.Fatalf("WatchFile error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "index"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("ref: refs/heads/main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if ev.Path != target {
		t.Errorf("event path = %s, want %s", ev.Path, target)
	}
}

func TestWatchFile_FollowsRenameReplace(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "breakpoints.json")
	if err := os.WriteFile(target, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := WatchFile(target)
	if err != nil {
		t.Fatalf("WatchFile error = %v", err)
	}
	defer w.Close()

	for i := 0; i < 2; i++ {
		tmp := filepath.Join(dir, "breakpoints.json.tmp")
		if err := os.WriteFile(tmp, []byte(`{"version":1}`), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(tmp, target); err != nil {
			t.Fatal(err)
		}

		ev := waitEvent(t, w)
		if ev.Path != target {
			t.Fatalf("replace %d: event path = %s, want %s", i, ev.Path, target)
		}
		// Drain what the rename produced before the next round.
		time.Sleep(50 * time.Millisecond)
		select {
		case <-w.Events():
		default:
		}
	}
}

func TestWatchFile_MissingDirectory(t *testing.T) {
	_, err := WatchFile(filepath.Join(t.TempDir(), "missing", "HEAD"))
	if !errors.Is(err, ErrNoDirectory) {
		t.Errorf("WatchFile error = %v, want ErrNoDirectory", err)
	}
}

func TestFileWatcher_CloseIdempotent(t *testing.T) {
	w, err := WatchFile(filepath.Join(t.TempDir(), "HEAD"))
	if err != nil {
		t.Fatalf("WatchFile error = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel should be closed")
	}
	if _, ok := <-w.Errors(); ok {
		t.Error("errors channel should be closed")
	}
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpRemove, "REMOVE"},
		{OpCreate | OpWrite, "CREATE|WRITE"},
		{0, "NONE"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}

	if !(OpCreate | OpWrite).Has(OpWrite) {
		t.Error("Has(OpWrite) should be true")
	}
}
