package heap

import (
	"fmt"
	"io"
	"os"
	"sync"

	"txnstore/pkg/dberr"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/page"
)

// File is the on-disk backing store for a single table: a flat sequence
// of page.Size-byte pages, addressed by page number times page size.
type File struct {
	mu    sync.RWMutex
	id    primitives.TableID
	path  primitives.Filepath
	fd    *os.File
}

// Open opens (creating if necessary) the file backing a table.
func Open(id primitives.TableID, path primitives.Filepath) (*File, error) {
	if err := path.MkdirAll(0o755); err != nil {
		return nil, dberr.Wrap(err, "Open", "heap.File")
	}
	fd, err := os.OpenFile(path.String(), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberr.Wrap(err, "Open", "heap.File")
	}
	return &File{id: id, path: path, fd: fd}, nil
}

// ID implements page.File.
func (f *File) ID() primitives.TableID { return f.id }

// NumPages implements page.File.
func (f *File) NumPages() (primitives.PageNumber, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	info, err := f.fd.Stat()
	if err != nil {
		return 0, dberr.Wrap(err, "NumPages", "heap.File")
	}
	return primitives.PageNumber(info.Size() / page.Size), nil
}

// ReadPage implements page.File. Reading a page number at or past the
// current end of file is an IoError: the buffer pool is responsible for
// deciding when to allocate a new page, not this layer.
func (f *File) ReadPage(pid primitives.PageID) (page.Page, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := make([]byte, page.Size)
	off := pid.Offset(page.Size)
	n, err := f.fd.ReadAt(buf, off)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, dberr.Newf(dberr.IoError, "read past end of file for %s", pid)
		}
		return nil, dberr.Wrap(err, "ReadPage", "heap.File")
	}
	if n != page.Size {
		return nil, dberr.Newf(dberr.IoError, "short read for %s: got %d bytes, want %d", pid, n, page.Size)
	}
	return Decode(pid, buf)
}

// WritePage implements page.File.
func (f *File) WritePage(p page.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := p.Bytes()
	if len(data) != page.Size {
		return dberr.Newf(dberr.DbError, "page %s serialized to %d bytes, want %d", p.ID(), len(data), page.Size)
	}
	off := p.ID().Offset(page.Size)
	n, err := f.fd.WriteAt(data, off)
	if err != nil {
		return dberr.Wrap(err, "WritePage", "heap.File")
	}
	if n != page.Size {
		return dberr.Newf(dberr.IoError, "short write for %s: wrote %d bytes, want %d", p.ID(), n, page.Size)
	}
	return nil
}

// Close implements page.File.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fd.Close(); err != nil {
		return dberr.Wrap(err, "Close", "heap.File")
	}
	return nil
}

// AllocatePage extends the file by one blank page and returns its number,
// used when an insert finds every existing page full.
func (f *File) AllocatePage() (primitives.PageID, error) {
	n, err := f.NumPages()
	if err != nil {
		return primitives.PageID{}, err
	}
	pid := primitives.PageID{Table: f.id, Num: n}
	blank := NewEmpty(pid)
	if err := f.WritePage(blank); err != nil {
		return primitives.PageID{}, err
	}
	return pid, nil
}

func (f *File) String() string {
	return fmt.Sprintf("heap.File(table=%d,path=%s)", f.id, f.path)
}
