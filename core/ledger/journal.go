package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a revertible ledger change.
type journalEntry interface {
	revert(l *Ledger)
}

// journal tracks ledger modifications for transaction-wide snapshot/revert.
type journal struct {
	entries   []journalEntry
	snapshots map[int]int // snapshot ID -> entry index
	nextID    int
}

func newJournal() *journal {
	return &journal{
		snapshots: make(map[int]int),
	}
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) snapshot() int {
	id := j.nextID
	j.nextID++
	j.snapshots[id] = len(j.entries)
	return id
}

func (j *journal) revertToSnapshot(id int, l *Ledger) {
	idx, ok := j.snapshots[id]
	if !ok {
		return
	}
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i].revert(l)
	}
	j.entries = j.entries[:idx]

	for sid := range j.snapshots {
		if sid >= id {
			delete(j.snapshots, sid)
		}
	}
}

type balanceChange struct {
	addr common.Address
	prev *uint256.Int // nil if the entry did not exist
}

func (ch balanceChange) revert(l *Ledger) {
	if ch.prev == nil {
		delete(l.balances, ch.addr)
		return
	}
	l.balances[ch.addr] = ch.prev
}

type supplyChange struct {
	prev *uint256.Int
}

func (ch supplyChange) revert(l *Ledger) {
	l.supply = ch.prev
}
