package primitives

import "testing"

func TestTransactionIDUniqueness(t *testing.T) {
	a := NewTransactionID()
	b := NewTransactionID()
	if a == b {
		t.Fatalf("expected distinct transaction ids, got %v twice", a)
	}
	if !a.IsValid() || !b.IsValid() {
		t.Fatalf("freshly allocated transaction ids must be valid")
	}
}

func TestInvalidTransactionID(t *testing.T) {
	var zero TransactionID
	if zero.IsValid() {
		t.Fatalf("zero value TransactionID must be invalid")
	}
	if zero != InvalidTransactionID {
		t.Fatalf("zero value must equal InvalidTransactionID")
	}
}

func TestTransactionIDAsMapKey(t *testing.T) {
	a := NewTransactionID()
	b := FromID(a.ID(), a.StartMillis())
	m := map[TransactionID]int{a: 1}
	if _, ok := m[b]; !ok {
		t.Fatalf("two TransactionID values with the same id and start time must compare equal as map keys")
	}
}

func TestPageIDOffset(t *testing.T) {
	pid := PageID{Table: 1, Num: 3}
	if got, want := pid.Offset(4096), int64(3*4096); got != want {
		t.Fatalf("Offset() = %d, want %d", got, want)
	}
}
