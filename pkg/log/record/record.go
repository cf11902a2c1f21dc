// Package record defines the on-disk representation of write-ahead log
// entries: the fixed set of record types, their binary layout, and the
// encode/decode routines shared by the log writer and every reader
// (rollback, recovery, and diagnostic tools).
package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"txnstore/pkg/dberr"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/page"
)

// Type tags the kind of a log record. Values match the wire encoding, so
// they must never be renumbered once records exist on disk.
type Type uint32

const (
	Begin Type = 1
	Update Type = 2
	Commit Type = 3
	Abort Type = 4
	Checkpoint Type = 5
)

func (t Type) String() string {
	switch t {
	case Begin:
		return "Begin"
	case Update:
		return "Update"
	case Commit:
		return "Commit"
	case Abort:
		return "Abort"
	case Checkpoint:
		return "Checkpoint"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// pageHeaderSize is the fixed encoding of a primitives.PageID: 8 bytes of
// table id followed by 8 bytes of page number.
const pageHeaderSize = 8 + 8

// Record is a single decoded log entry. Only the fields relevant to its
// Kind are populated.
type Record struct {
	Kind   Type
	Offset primitives.LSN // absolute start offset, set on decode
	Txn    primitives.TransactionID

	// Update fields.
	Page   primitives.PageID
	Before []byte
	After  []byte

	// Checkpoint fields.
	Active map[primitives.TransactionID]primitives.LSN
}

func serializeTxn(w *bytes.Buffer, tid primitives.TransactionID) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(tid.ID()))
	w.Write(buf[:])
}

func serializePageID(w *bytes.Buffer, pid primitives.PageID) {
	var buf [pageHeaderSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(pid.Table))
	binary.BigEndian.PutUint64(buf[8:16], uint64(pid.Num))
	w.Write(buf[:])
}

// Encode serializes r, including its leading type tag and trailing
// start-offset trailer, so the result can be appended to the log verbatim.
func Encode(r *Record, startOffset primitives.LSN) ([]byte, error) {
	var buf bytes.Buffer

	var typeBuf [4]byte
	binary.BigEndian.PutUint32(typeBuf[:], uint32(r.Kind))
	buf.Write(typeBuf[:])

	switch r.Kind {
	case Begin, Commit, Abort:
		serializeTxn(&buf, r.Txn)

	case Update:
		if len(r.Before) != page.Size || len(r.After) != page.Size {
			return nil, dberr.Newf(dberr.DbError, "update record images must be %d bytes", page.Size)
		}
		serializeTxn(&buf, r.Txn)
		serializePageID(&buf, r.Page)
		buf.Write(r.Before)
		buf.Write(r.After)

	case Checkpoint:
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(r.Active)))
		buf.Write(countBuf[:])
		for tid, offset := range r.Active {
			var entry [16]byte
			binary.BigEndian.PutUint64(entry[0:8], uint64(tid.ID()))
			binary.BigEndian.PutUint64(entry[8:16], uint64(offset))
			buf.Write(entry[:])
		}

	default:
		return nil, dberr.Newf(dberr.DbError, "unknown record type %d", r.Kind)
	}

	var trailer [8]byte
	binary.BigEndian.PutUint64(trailer[:], uint64(startOffset))
	buf.Write(trailer[:])

	return buf.Bytes(), nil
}

// Decode reads one record starting at the current position of rd, which
// must be positioned at the record's leading type tag. startOffset is the
// absolute file offset of that tag, stored on the returned Record and
// cross-checked against the trailer.
func Decode(rd io.Reader, startOffset primitives.LSN) (*Record, error) {
	var typeBuf [4]byte
	if _, err := io.ReadFull(rd, typeBuf[:]); err != nil {
		return nil, err
	}
	kind := Type(binary.BigEndian.Uint32(typeBuf[:]))

	r := &Record{Kind: kind, Offset: startOffset}

	switch kind {
	case Begin, Commit, Abort:
		tid, err := readTxn(rd)
		if err != nil {
			return nil, err
		}
		r.Txn = tid

	case Update:
		tid, err := readTxn(rd)
		if err != nil {
			return nil, err
		}
		r.Txn = tid

		var hdr [pageHeaderSize]byte
		if _, err := io.ReadFull(rd, hdr[:]); err != nil {
			return nil, err
		}
		r.Page = primitives.PageID{
			Table: primitives.TableID(binary.BigEndian.Uint64(hdr[0:8])),
			Num:   primitives.PageNumber(binary.BigEndian.Uint64(hdr[8:16])),
		}

		before := make([]byte, page.Size)
		if _, err := io.ReadFull(rd, before); err != nil {
			return nil, err
		}
		after := make([]byte, page.Size)
		if _, err := io.ReadFull(rd, after); err != nil {
			return nil, err
		}
		r.Before, r.After = before, after

	case Checkpoint:
		var countBuf [4]byte
		if _, err := io.ReadFull(rd, countBuf[:]); err != nil {
			return nil, err
		}
		count := binary.BigEndian.Uint32(countBuf[:])
		r.Active = make(map[primitives.TransactionID]primitives.LSN, count)
		for i := uint32(0); i < count; i++ {
			var entry [16]byte
			if _, err := io.ReadFull(rd, entry[:]); err != nil {
				return nil, err
			}
			id := int64(binary.BigEndian.Uint64(entry[0:8]))
			offset := primitives.LSN(binary.BigEndian.Uint64(entry[8:16]))
			r.Active[primitives.FromID(id, 0)] = offset
		}

	default:
		return nil, dberr.Newf(dberr.DbError, "unknown record type %d at offset %d", kind, startOffset)
	}

	var trailer [8]byte
	if _, err := io.ReadFull(rd, trailer[:]); err != nil {
		return nil, err
	}
	trailerOffset := primitives.LSN(binary.BigEndian.Uint64(trailer[:]))
	if trailerOffset != startOffset {
		return nil, dberr.Newf(dberr.IoError, "log corruption: record at %d has trailer %d", startOffset, trailerOffset)
	}

	return r, nil
}

func readTxn(rd io.Reader) (primitives.TransactionID, error) {
	var buf [8]byte
	if _, err := io.ReadFull(rd, buf[:]); err != nil {
		return primitives.TransactionID{}, err
	}
	id := int64(binary.BigEndian.Uint64(buf[:]))
	return primitives.FromID(id, 0), nil
}
