// Package heap implements the only concrete page-type and backing file the
// storage core ships with: a slotted page holding fixed-size 8-byte
// records behind a bitmap occupancy header, in the spirit of SimpleDB's
// HeapPage. Tuple layout beyond this single-column record is explicitly
// out of scope for the transactional core; a real access method would
// swap this package for something richer without touching the buffer
// pool, lock table, or log.
package heap

import (
	"encoding/binary"

	"txnstore/pkg/dberr"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/page"
)

const recordSize = 8

// Page is a slotted heap page: a bitmap header marking which slots are
// occupied, followed by a fixed array of 8-byte record slots.
type Page struct {
	id       primitives.PageID
	numSlots int
	occupied []bool
	records  [][recordSize]byte
	before   []byte // last-committed snapshot of Bytes(), or nil if never set
	dirtyBy  primitives.TransactionID
}

// NumSlots returns the maximum number of records a page can hold, derived
// once from page.Size so every page of this type agrees on the layout.
func NumSlots() int {
	// n*recordSize + ceil(n/8) <= page.Size
	n := (page.Size * 8) / (8*recordSize + 1)
	for n*recordSize+headerBytes(n) > page.Size {
		n--
	}
	return n
}

func headerBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// NewEmpty builds a zeroed page for a page number past the current end of
// file, used when an insert needs to allocate a fresh page.
func NewEmpty(id primitives.PageID) *Page {
	n := NumSlots()
	return &Page{
		id:       id,
		numSlots: n,
		occupied: make([]bool, n),
		records:  make([][recordSize]byte, n),
	}
}

// Decode parses a page.Size buffer read from disk into a Page.
func Decode(id primitives.PageID, data []byte) (page.Page, error) {
	if len(data) != page.Size {
		return nil, dberr.Newf(dberr.DbError, "heap: invalid page length %d, want %d", len(data), page.Size)
	}
	n := NumSlots()
	hb := headerBytes(n)
	p := &Page{
		id:       id,
		numSlots: n,
		occupied: make([]bool, n),
		records:  make([][recordSize]byte, n),
	}
	for i := 0; i < n; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		p.occupied[i] = data[byteIdx]&(1<<bitIdx) != 0
	}
	for i := 0; i < n; i++ {
		off := hb + i*recordSize
		copy(p.records[i][:], data[off:off+recordSize])
	}
	p.before = append([]byte(nil), data...)
	return p, nil
}

// ID implements page.Page.
func (p *Page) ID() primitives.PageID { return p.id }

// Bytes implements page.Page.
func (p *Page) Bytes() []byte {
	buf := make([]byte, page.Size)
	hb := headerBytes(p.numSlots)
	for i := 0; i < p.numSlots; i++ {
		if p.occupied[i] {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	for i := 0; i < p.numSlots; i++ {
		off := hb + i*recordSize
		copy(buf[off:off+recordSize], p.records[i][:])
	}
	return buf
}

// BeforeImage implements page.Page.
func (p *Page) BeforeImage() page.Page {
	data := p.before
	if data == nil {
		data = make([]byte, page.Size)
	}
	before, _ := Decode(p.id, data)
	return before
}

// SetBeforeImage implements page.Page.
func (p *Page) SetBeforeImage() {
	p.before = p.Bytes()
}

// IsDirty implements page.Page.
func (p *Page) IsDirty() primitives.TransactionID { return p.dirtyBy }

// MarkDirty implements page.Page.
func (p *Page) MarkDirty(tid primitives.TransactionID) { p.dirtyBy = tid }

// EmptySlots reports how many slots are unoccupied.
func (p *Page) EmptySlots() int {
	free := 0
	for _, occ := range p.occupied {
		if !occ {
			free++
		}
	}
	return free
}

// Insert writes value into the first free slot and returns its slot index.
func (p *Page) Insert(value int64) (int, error) {
	for i := 0; i < p.numSlots; i++ {
		if !p.occupied[i] {
			binary.BigEndian.PutUint64(p.records[i][:], uint64(value))
			p.occupied[i] = true
			return i, nil
		}
	}
	return 0, dberr.Newf(dberr.DbError, "heap: page %s is full", p.id)
}

// Delete clears a slot, freeing it for reuse.
func (p *Page) Delete(slot int) error {
	if slot < 0 || slot >= p.numSlots {
		return dberr.Newf(dberr.DbError, "heap: slot %d out of range", slot)
	}
	if !p.occupied[slot] {
		return dberr.Newf(dberr.DbError, "heap: slot %d is already empty", slot)
	}
	p.occupied[slot] = false
	p.records[slot] = [recordSize]byte{}
	return nil
}

// Get reads the value stored in an occupied slot.
func (p *Page) Get(slot int) (int64, bool) {
	if slot < 0 || slot >= p.numSlots || !p.occupied[slot] {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(p.records[slot][:])), true
}

// Records returns every occupied (slot, value) pair in slot order, used by
// table scans.
func (p *Page) Records() []SlotRecord {
	out := make([]SlotRecord, 0, p.numSlots-p.EmptySlots())
	for i := 0; i < p.numSlots; i++ {
		if p.occupied[i] {
			v, _ := p.Get(i)
			out = append(out, SlotRecord{Slot: i, Value: v})
		}
	}
	return out
}

// SlotRecord pairs a slot number with the value it holds.
type SlotRecord struct {
	Slot  int
	Value int64
}
