package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/metrics"
)

// BalanceHook is the supply-changing surface handed to the deposit and
// withdrawal pipeline. It is the only way to create or destroy balance.
type BalanceHook interface {
	Mint(addr common.Address, amount *uint256.Int) error
	Burn(addr common.Address, amount *uint256.Int) error
}

var _ BalanceHook = (*Ledger)(nil)

// Mint credits addr and grows the total supply by the same amount.
func (l *Ledger) Mint(addr common.Address, amount *uint256.Int) error {
	if err := l.checkWritable(); err != nil {
		return err
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return ErrOverflow
	}
	if err := l.Credit(addr, amount); err != nil {
		return err
	}
	l.setSupply(supply)
	metrics.LedgerMinted.Inc()
	l.log.Info("mint", "to", addr, "amount", amount, "supply", supply)
	return nil
}

// Burn debits addr and shrinks the total supply by the same amount.
func (l *Ledger) Burn(addr common.Address, amount *uint256.Int) error {
	if err := l.Debit(addr, amount); err != nil {
		return err
	}
	l.setSupply(new(uint256.Int).Sub(l.supply, amount))
	metrics.LedgerBurned.Inc()
	l.log.Info("burn", "from", addr, "amount", amount, "supply", l.supply)
	return nil
}
