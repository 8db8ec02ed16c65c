package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BalanceWriter receives balance entries on Commit.
type BalanceWriter interface {
	WriteBalance(addr common.Address, bal *uint256.Int) error
}

// BalanceReader replays stored balance entries on Load.
type BalanceReader interface {
	IterateBalances(fn func(addr common.Address, bal *uint256.Int) error) error
}

// Commit writes every entry, zero entries included, to w in address order.
func (l *Ledger) Commit(w BalanceWriter) error {
	for _, addr := range l.Accounts() {
		if err := w.WriteBalance(addr, l.balances[addr]); err != nil {
			return err
		}
	}
	l.log.Debug("ledger committed", "accounts", len(l.balances), "supply", l.supply)
	return nil
}

// Load replaces the ledger contents with the entries read from r and
// recomputes the total supply. The journal is reset.
func (l *Ledger) Load(r BalanceReader) error {
	balances := make(map[common.Address]*uint256.Int)
	supply := new(uint256.Int)
	err := r.IterateBalances(func(addr common.Address, bal *uint256.Int) error {
		if _, overflow := supply.AddOverflow(supply, bal); overflow {
			return ErrOverflow
		}
		balances[addr] = bal.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	l.balances = balances
	l.supply = supply
	l.journal = newJournal()
	l.log.Info("ledger loaded", "accounts", len(balances), "supply", supply)
	return nil
}
