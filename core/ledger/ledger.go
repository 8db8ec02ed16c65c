// Package ledger implements the balance ledger that backs every ether value
// observed or moved by the interpreter. Balances are unsigned 256-bit
// entries keyed by address; the ledger is the single store behind the
// BALANCE/SELFBALANCE opcodes, the BVM_ETH token view and the RPC balance
// query.
package ledger

import (
	"bytes"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/log"
	"github.com/bitnetwork/bvm/metrics"
)

var (
	// ErrInsufficientBalance is returned by Debit, Transfer and Burn when the
	// source balance is below the requested amount.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrOverflow is returned by Credit and Mint when the result would not fit
	// in 256 bits.
	ErrOverflow = errors.New("ledger: balance overflow")
	// ErrStaticContextViolation is returned by every mutating operation while
	// a static frame is active.
	ErrStaticContextViolation = errors.New("ledger: mutation in static context")
)

// Ledger is the authoritative address-to-balance mapping. It is not safe for
// concurrent use; execution is sequential per transaction.
type Ledger struct {
	balances map[common.Address]*uint256.Int
	supply   *uint256.Int
	journal  *journal
	static   int
	log      *log.Logger
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]*uint256.Int),
		supply:   new(uint256.Int),
		journal:  newJournal(),
		log:      log.Default().Module("ledger"),
	}
}

// Get returns a copy of the balance of addr. Absent entries read as zero.
func (l *Ledger) Get(addr common.Address) *uint256.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Has reports whether addr has an entry, even a zero one.
func (l *Ledger) Has(addr common.Address) bool {
	_, ok := l.balances[addr]
	return ok
}

// Credit increases the balance of addr by amount.
func (l *Ledger) Credit(addr common.Address, amount *uint256.Int) error {
	if err := l.checkWritable(); err != nil {
		return err
	}
	cur := l.Get(addr)
	next, overflow := new(uint256.Int).AddOverflow(cur, amount)
	if overflow {
		return ErrOverflow
	}
	l.set(addr, next)
	return nil
}

// Debit decreases the balance of addr by amount. Nothing is changed when the
// balance is too small.
func (l *Ledger) Debit(addr common.Address, amount *uint256.Int) error {
	if err := l.checkWritable(); err != nil {
		return err
	}
	cur := l.Get(addr)
	if cur.Lt(amount) {
		metrics.LedgerInsufficient.Inc()
		return ErrInsufficientBalance
	}
	l.set(addr, cur.Sub(cur, amount))
	return nil
}

// Transfer moves amount from one address to another. If the debit fails the
// credit is never attempted; if the credit fails the debit is restored, so a
// failed transfer leaves both balances untouched.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) (TransferRecord, error) {
	rec := TransferRecord{From: from, To: to, Amount: amount.Clone()}
	if amount.IsZero() {
		return rec, l.checkWritable()
	}
	if err := l.Debit(from, amount); err != nil {
		return rec, err
	}
	if err := l.Credit(to, amount); err != nil {
		// Put the debited amount back; this cannot overflow since it was
		// just taken out.
		l.set(from, new(uint256.Int).Add(l.Get(from), amount))
		return rec, err
	}
	rec.Applied = true
	metrics.LedgerTransfers.Inc()
	l.log.Debug("transfer", "from", from, "to", to, "amount", amount)
	return rec, nil
}

// TotalSupply returns the sum of all balances, which changes only through
// Mint and Burn.
func (l *Ledger) TotalSupply() *uint256.Int {
	return l.supply.Clone()
}

// Accounts returns every address with an entry, sorted ascending.
func (l *Ledger) Accounts() []common.Address {
	addrs := make([]common.Address, 0, len(l.balances))
	for addr := range l.balances {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	return addrs
}

// EnterStatic marks the start of a static frame. Static frames nest.
func (l *Ledger) EnterStatic() { l.static++ }

// ExitStatic marks the end of a static frame.
func (l *Ledger) ExitStatic() {
	if l.static > 0 {
		l.static--
	}
}

// IsStatic reports whether any static frame is active.
func (l *Ledger) IsStatic() bool { return l.static > 0 }

// Snapshot returns an identifier for the current ledger state.
func (l *Ledger) Snapshot() int {
	return l.journal.snapshot()
}

// RevertToSnapshot rolls back every change made since the snapshot was taken.
func (l *Ledger) RevertToSnapshot(id int) {
	l.journal.revertToSnapshot(id, l)
}

// Finalise drops the journal; earlier snapshots become invalid.
func (l *Ledger) Finalise() {
	l.journal = newJournal()
}

func (l *Ledger) checkWritable() error {
	if l.static > 0 {
		return ErrStaticContextViolation
	}
	return nil
}

// set writes a balance and journals the previous value.
func (l *Ledger) set(addr common.Address, bal *uint256.Int) {
	var prev *uint256.Int
	if cur, ok := l.balances[addr]; ok {
		prev = cur.Clone()
	}
	l.journal.append(balanceChange{addr: addr, prev: prev})
	l.balances[addr] = bal
}

func (l *Ledger) setSupply(supply *uint256.Int) {
	l.journal.append(supplyChange{prev: l.supply.Clone()})
	l.supply = supply
}
