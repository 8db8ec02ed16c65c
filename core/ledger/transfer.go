package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrRollbackFailed is returned when an inverse transfer cannot be applied.
// It means the ledger was mutated outside the undo discipline and is fatal
// to the enclosing transaction.
var ErrRollbackFailed = errors.New("ledger: rollback failed")

// TransferRecord describes one value movement made on behalf of a single call
// attempt. Applied is false when the transfer was rejected.
type TransferRecord struct {
	From    common.Address
	To      common.Address
	Amount  *uint256.Int
	Applied bool
}

// Undo issues the inverse transfer of an applied record. Unapplied records
// are a no-op.
func (r TransferRecord) Undo(l *Ledger) error {
	if !r.Applied || r.Amount == nil || r.Amount.IsZero() {
		return nil
	}
	if _, err := l.Transfer(r.To, r.From, r.Amount); err != nil {
		return fmt.Errorf("%w: %s -> %s (%s): %v", ErrRollbackFailed, r.To, r.From, r.Amount, err)
	}
	return nil
}

// UndoLog is the ordered list of transfers retained by a call frame and its
// successful descendants.
type UndoLog []TransferRecord

// Record appends an applied transfer. Unapplied records are dropped.
func (u *UndoLog) Record(r TransferRecord) {
	if r.Applied {
		*u = append(*u, r)
	}
}

// Merge appends a child frame's log after the entries already present.
func (u *UndoLog) Merge(child UndoLog) {
	*u = append(*u, child...)
}

// Unwind undoes every record newest first and empties the log.
func (u *UndoLog) Unwind(l *Ledger) error {
	entries := *u
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].Undo(l); err != nil {
			return err
		}
	}
	*u = nil
	return nil
}

// Len returns the number of retained transfers.
func (u UndoLog) Len() int { return len(u) }
