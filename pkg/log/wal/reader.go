package wal

import (
	"errors"
	"io"

	"txnstore/pkg/log/record"
	"txnstore/pkg/primitives"
)

// Reader scans a fixed range of the log forward, decoding one record at a
// time. It snapshots the log's length at construction, so a reader used
// for rollback or recovery never sees records appended by other
// transactions after the scan begins.
type Reader struct {
	fd  io.ReaderAt
	pos int64
	end int64
}

// NewReader returns a Reader over [from, current end of file).
func (l *Log) NewReader(from primitives.LSN) *Reader {
	l.mu.Lock()
	end := l.size
	l.mu.Unlock()

	return &Reader{
		fd:  l.fd,
		pos: int64(from),
		end: end,
	}
}

// countingReader wraps an io.Reader to track exactly how many bytes have
// been consumed, so the caller can advance a section-based cursor by the
// true size of a variable-length decoded record.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Next decodes the record at the reader's current position and advances
// past it. It returns io.EOF once the snapshot's end has been reached.
func (r *Reader) Next() (*record.Record, error) {
	if r.pos >= r.end {
		return nil, io.EOF
	}
	sr := io.NewSectionReader(r.fd, r.pos, r.end-r.pos)
	cr := &countingReader{r: sr}

	rec, err := record.Decode(cr, primitives.LSN(r.pos))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	r.pos += cr.n
	return rec, nil
}

// Offset returns the reader's current position, i.e. where the next
// record (if any) begins.
func (r *Reader) Offset() primitives.LSN {
	return primitives.LSN(r.pos)
}
