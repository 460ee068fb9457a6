package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// Action tags what a ledger entry recorded.
type Action string

const (
	ActionCreateHistoryTable Action = "CREATE_HISTORY_TABLE"
	ActionCreateTriggers     Action = "CREATE_TRIGGERS"
)

// LedgerEntry records one applied DDL object. Entries are immutable once
// appended.
type LedgerEntry struct {
	ID        string
	Schema    string
	Table     string
	Action    Action
	AppliedAt time.Time
	User      string
}

// Ledger is the in-session, append-only record of applied changes, ordered
// by application sequence. That order is the contract rollback traverses in
// reverse; the ledger does not survive the process.
type Ledger struct {
	entries []LedgerEntry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func newEntry(schema, table string, action Action, user string, at time.Time) LedgerEntry {
	return LedgerEntry{
		ID:        uuid.NewString(),
		Schema:    schema,
		Table:     table,
		Action:    action,
		AppliedAt: at,
		User:      user,
	}
}

func (l *Ledger) Append(entry LedgerEntry) {
	l.entries = append(l.entries, entry)
}

// Entries returns a copy in application order.
func (l *Ledger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

// RemoveLast drops the most recent entry; rollback calls it after each
// successful reversal so a failure preserves the unreversed prefix.
func (l *Ledger) RemoveLast() {
	if len(l.entries) > 0 {
		l.entries = l.entries[:len(l.entries)-1]
	}
}
