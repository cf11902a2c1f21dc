package record

import (
	"bytes"
	"testing"

	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/page"
)

func TestEncodeDecodeBegin(t *testing.T) {
	tid := primitives.FromID(5, 1000)
	r := &Record{Kind: Begin, Txn: tid}

	data, err := Encode(r, 8)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(bytes.NewReader(data), 8)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Kind != Begin || decoded.Txn.ID() != 5 {
		t.Fatalf("decoded = %+v, want Begin for txn 5", decoded)
	}
}

func TestEncodeDecodeUpdate(t *testing.T) {
	tid := primitives.FromID(1, 0)
	pid := primitives.PageID{Table: 2, Num: 3}
	before := bytes.Repeat([]byte{0xAA}, page.Size)
	after := bytes.Repeat([]byte{0xBB}, page.Size)

	r := &Record{Kind: Update, Txn: tid, Page: pid, Before: before, After: after}
	data, err := Encode(r, 100)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(bytes.NewReader(data), 100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Page != pid {
		t.Fatalf("decoded.Page = %v, want %v", decoded.Page, pid)
	}
	if !bytes.Equal(decoded.Before, before) || !bytes.Equal(decoded.After, after) {
		t.Fatalf("decoded images do not match originals")
	}
}

func TestEncodeUpdateRejectsWrongSizedImages(t *testing.T) {
	r := &Record{Kind: Update, Before: []byte{1, 2, 3}, After: make([]byte, page.Size)}
	if _, err := Encode(r, 0); err == nil {
		t.Fatalf("expected an error for a short before-image")
	}
}

func TestEncodeDecodeCheckpoint(t *testing.T) {
	active := map[primitives.TransactionID]primitives.LSN{
		primitives.FromID(1, 0): 8,
		primitives.FromID(2, 0): 40,
	}
	r := &Record{Kind: Checkpoint, Active: active}

	data, err := Encode(r, 500)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(bytes.NewReader(data), 500)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Active) != 2 {
		t.Fatalf("decoded.Active = %+v, want 2 entries", decoded.Active)
	}
}

func TestDecodeRejectsCorruptTrailer(t *testing.T) {
	tid := primitives.FromID(1, 0)
	r := &Record{Kind: Commit, Txn: tid}
	data, _ := Encode(r, 16)

	// Flip the last byte of the trailer to break the offset check.
	data[len(data)-1] ^= 0xFF

	if _, err := Decode(bytes.NewReader(data), 16); err == nil {
		t.Fatalf("expected corrupted trailer to be detected")
	}
}
