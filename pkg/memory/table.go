package memory

import (
	"txnstore/pkg/concurrency/lock"
	"txnstore/pkg/dberr"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/heap"
	"txnstore/pkg/storage/page"
)

// RecordID names a single stored record: the page holding it and its
// slot within that page.
type RecordID struct {
	Page primitives.PageID
	Slot int
}

// InsertTuple stores value in the first page of tableID with a free slot,
// allocating a new page at the end of the file if none has room. The
// touched page is acquired exclusively and marked dirty for tid.
func (p *BufferPool) InsertTuple(tid primitives.TransactionID, tableID primitives.TableID, value int64) (RecordID, error) {
	p.mu.Lock()
	f, ok := p.files[tableID]
	p.mu.Unlock()
	if !ok {
		return RecordID{}, dberr.Newf(dberr.DbError, "no backing file registered for table %d", tableID)
	}

	numPages, err := f.NumPages()
	if err != nil {
		return RecordID{}, err
	}

	for n := primitives.PageNumber(0); n < numPages; n++ {
		pid := primitives.PageID{Table: tableID, Num: n}
		inserted, slot, err := p.Mutate(tid, pid, func(pg page.Page) (bool, int, error) {
			hp, ok := pg.(*heap.Page)
			if !ok {
				return false, 0, dberr.Newf(dberr.DbError, "page %s is not a heap page", pid)
			}
			if hp.EmptySlots() == 0 {
				return false, 0, nil
			}
			slot, err := hp.Insert(value)
			if err != nil {
				return false, 0, err
			}
			return true, slot, nil
		})
		if err != nil {
			return RecordID{}, err
		}
		if !inserted {
			continue
		}
		return RecordID{Page: pid, Slot: slot}, nil
	}

	hf, ok := f.(*heap.File)
	if !ok {
		return RecordID{}, dberr.Newf(dberr.DbError, "table %d is not backed by a heap file", tableID)
	}
	pid, err := hf.AllocatePage()
	if err != nil {
		return RecordID{}, err
	}
	_, slot, err := p.Mutate(tid, pid, func(pg page.Page) (bool, int, error) {
		hp, ok := pg.(*heap.Page)
		if !ok {
			return false, 0, dberr.Newf(dberr.DbError, "page %s is not a heap page", pid)
		}
		slot, err := hp.Insert(value)
		if err != nil {
			return false, 0, err
		}
		return true, slot, nil
	})
	if err != nil {
		return RecordID{}, err
	}
	return RecordID{Page: pid, Slot: slot}, nil
}

// DeleteTuple removes the record at rid, acquiring an exclusive lock on
// its page and marking the page dirty for tid.
func (p *BufferPool) DeleteTuple(tid primitives.TransactionID, rid RecordID) error {
	_, _, err := p.Mutate(tid, rid.Page, func(pg page.Page) (bool, int, error) {
		hp, ok := pg.(*heap.Page)
		if !ok {
			return false, 0, dberr.Newf(dberr.DbError, "page %s is not a heap page", rid.Page)
		}
		if err := hp.Delete(rid.Slot); err != nil {
			return false, 0, err
		}
		return true, 0, nil
	})
	return err
}

// ScanTable returns every currently stored value in tableID, acquiring a
// shared lock per page it touches. Locks persist until tid commits or
// aborts, per strict two-phase locking.
func (p *BufferPool) ScanTable(tid primitives.TransactionID, tableID primitives.TableID) ([]int64, error) {
	p.mu.Lock()
	f, ok := p.files[tableID]
	p.mu.Unlock()
	if !ok {
		return nil, dberr.Newf(dberr.DbError, "no backing file registered for table %d", tableID)
	}

	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}

	var out []int64
	for n := primitives.PageNumber(0); n < numPages; n++ {
		pid := primitives.PageID{Table: tableID, Num: n}
		pg, err := p.GetPage(tid, pid, lock.Shared)
		if err != nil {
			return nil, err
		}
		hp, ok := pg.(*heap.Page)
		if !ok {
			return nil, dberr.Newf(dberr.DbError, "page %s is not a heap page", pid)
		}
		for _, rec := range hp.Records() {
			out = append(out, rec.Value)
		}
	}
	return out, nil
}
