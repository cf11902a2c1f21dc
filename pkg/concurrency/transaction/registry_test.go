package transaction

import (
	"path/filepath"
	"testing"

	"txnstore/pkg/log/wal"
	"txnstore/pkg/primitives"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	l, err := wal.Open(primitives.Filepath(filepath.Join(dir, "wal.log")))
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return NewRegistry(l)
}

func TestBeginMarksActive(t *testing.T) {
	r := newTestRegistry(t)
	tid, err := r.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !r.IsActive(tid) {
		t.Fatalf("transaction should be active immediately after Begin")
	}
}

func TestCompleteClearsActive(t *testing.T) {
	r := newTestRegistry(t)
	tid, _ := r.Begin()
	r.Complete(tid)
	if r.IsActive(tid) {
		t.Fatalf("transaction should not be active after Complete")
	}
}

func TestActiveSnapshot(t *testing.T) {
	r := newTestRegistry(t)
	a, _ := r.Begin()
	b, _ := r.Begin()
	r.Complete(a)

	active := r.Active()
	if len(active) != 1 || active[0] != b {
		t.Fatalf("Active() = %+v, want only %v", active, b)
	}
}
