package orchestrator

import (
	"testing"
	"time"
)

func TestLedgerOrderAndCopy(t *testing.T) {
	l := NewLedger()
	at := time.Now()
	l.Append(newEntry("public", "orders", ActionCreateHistoryTable, "alice", at))
	l.Append(newEntry("public", "orders", ActionCreateTriggers, "alice", at))

	entries := l.Entries()
	if len(entries) != 2 {
		t.Fatalf("len = %d", len(entries))
	}
	if entries[0].Action != ActionCreateHistoryTable || entries[1].Action != ActionCreateTriggers {
		t.Fatalf("order wrong: %+v", entries)
	}
	if entries[0].ID == entries[1].ID {
		t.Fatalf("entry ids not unique")
	}

	// mutating the copy must not touch the ledger
	entries[0].Table = "mutated"
	if l.Entries()[0].Table != "orders" {
		t.Fatalf("Entries returned a view, not a copy")
	}
}

func TestLedgerRemoveLast(t *testing.T) {
	l := NewLedger()
	at := time.Now()
	l.Append(newEntry("public", "a", ActionCreateHistoryTable, "u", at))
	l.Append(newEntry("public", "b", ActionCreateHistoryTable, "u", at))

	l.RemoveLast()
	if l.Len() != 1 || l.Entries()[0].Table != "a" {
		t.Fatalf("unexpected ledger after RemoveLast: %+v", l.Entries())
	}

	l.RemoveLast()
	l.RemoveLast() // no-op on empty
	if l.Len() != 0 {
		t.Fatalf("len = %d", l.Len())
	}
}
