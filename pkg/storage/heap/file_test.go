package heap

import (
	"path/filepath"
	"testing"

	"txnstore/pkg/dberr"
	"txnstore/pkg/primitives"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	dir := t.TempDir()
	path := primitives.Filepath(filepath.Join(dir, "table.dat"))
	f, err := Open(1, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAllocateAndReadPage(t *testing.T) {
	f := openTestFile(t)

	pid, err := f.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	n, err := f.NumPages()
	if err != nil || n != 1 {
		t.Fatalf("NumPages = (%d, %v), want (1, nil)", n, err)
	}

	pg, err := f.ReadPage(pid)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	hp := pg.(*Page)
	if hp.EmptySlots() != NumSlots() {
		t.Fatalf("freshly allocated page should be entirely empty")
	}
}

func TestWriteThenReadPage(t *testing.T) {
	f := openTestFile(t)
	pid, _ := f.AllocatePage()

	pg, _ := f.ReadPage(pid)
	hp := pg.(*Page)
	hp.Insert(100)

	if err := f.WritePage(hp); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	reread, err := f.ReadPage(pid)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	records := reread.(*Page).Records()
	if len(records) != 1 || records[0].Value != 100 {
		t.Fatalf("Records() = %+v, want a single record with value 100", records)
	}
}

func TestReadPastEndOfFileIsIoError(t *testing.T) {
	f := openTestFile(t)
	pid := primitives.PageID{Table: f.ID(), Num: 5}

	_, err := f.ReadPage(pid)
	if !dberr.Is(err, dberr.IoError) {
		t.Fatalf("ReadPage past EOF = %v, want an IoError", err)
	}
}
