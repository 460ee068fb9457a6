package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled reports that the user declined the confirmation step.
	// It can only occur before the apply transaction opens.
	ErrCancelled = errors.New("apply cancelled before transaction")

	// ErrNoTables reports that selection produced no work.
	ErrNoTables = errors.New("no tables selected")
)

// RollbackFailure reports that inverse DDL failed mid-reversal. The ledger
// still holds the failing entry and everything applied before it, so
// retrying rollback is safe.
type RollbackFailure struct {
	Entry LedgerEntry
	Err   error
}

func (e *RollbackFailure) Error() string {
	return fmt.Sprintf("rollback failed at %s on %s.%s: %v",
		e.Entry.Action, e.Entry.Schema, e.Entry.Table, e.Err)
}

func (e *RollbackFailure) Unwrap() error { return e.Err }
