package heap

import (
	"testing"

	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/page"
)

func testPageID() primitives.PageID {
	return primitives.PageID{Table: 1, Num: 0}
}

func TestInsertAndGet(t *testing.T) {
	p := NewEmpty(testPageID())

	slot, err := p.Insert(42)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok := p.Get(slot)
	if !ok || got != 42 {
		t.Fatalf("Get(%d) = (%d, %v), want (42, true)", slot, got, ok)
	}
}

func TestDeleteFreesSlot(t *testing.T) {
	p := NewEmpty(testPageID())
	slot, _ := p.Insert(7)
	before := p.EmptySlots()

	if err := p.Delete(slot); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if p.EmptySlots() != before+1 {
		t.Fatalf("EmptySlots after delete = %d, want %d", p.EmptySlots(), before+1)
	}
	if _, ok := p.Get(slot); ok {
		t.Fatalf("Get after delete should report false")
	}
}

func TestDeleteEmptySlotFails(t *testing.T) {
	p := NewEmpty(testPageID())
	if err := p.Delete(0); err == nil {
		t.Fatalf("expected error deleting an unoccupied slot")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := NewEmpty(testPageID())
	p.Insert(1)
	p.Insert(2)
	slot3, _ := p.Insert(3)
	p.Delete(slot3)

	data := p.Bytes()
	if len(data) != page.Size {
		t.Fatalf("Bytes() length = %d, want %d", len(data), page.Size)
	}

	decoded, err := Decode(testPageID(), data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	hp := decoded.(*Page)

	records := hp.Records()
	if len(records) != 2 {
		t.Fatalf("Records() len = %d, want 2", len(records))
	}
	seen := map[int64]bool{}
	for _, r := range records {
		seen[r.Value] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("Records() = %+v, missing expected values", records)
	}
}

func TestPageFullReturnsError(t *testing.T) {
	p := NewEmpty(testPageID())
	n := NumSlots()
	for i := 0; i < n; i++ {
		if _, err := p.Insert(int64(i)); err != nil {
			t.Fatalf("Insert #%d: %v", i, err)
		}
	}
	if _, err := p.Insert(999); err == nil {
		t.Fatalf("expected error inserting into a full page")
	}
}

func TestBeforeImageDefaultsToBlank(t *testing.T) {
	p := NewEmpty(testPageID())
	p.Insert(9)

	before := p.BeforeImage()
	hp := before.(*Page)
	if len(hp.Records()) != 0 {
		t.Fatalf("before-image of a never-committed page should be blank")
	}

	p.SetBeforeImage()
	afterSet := p.BeforeImage().(*Page)
	if len(afterSet.Records()) != 1 {
		t.Fatalf("before-image after SetBeforeImage should reflect current contents")
	}
}
