package core

import (
	"errors"
	"fmt"
)

// ErrGasPoolExhausted is returned when a message asks for more gas than the
// block has left.
var ErrGasPoolExhausted = errors.New("gas pool exhausted")

// GasPool tracks the gas still available to the messages of a block.
type GasPool uint64

// AddGas returns gas to the pool, saturating at the uint64 maximum.
func (gp *GasPool) AddGas(amount uint64) *GasPool {
	if uint64(*gp) > ^uint64(0)-amount {
		*gp = GasPool(^uint64(0))
		return gp
	}
	*gp += GasPool(amount)
	return gp
}

// SubGas reserves amount from the pool.
func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return fmt.Errorf("%w: have %d, want %d", ErrGasPoolExhausted, uint64(*gp), amount)
	}
	*gp -= GasPool(amount)
	return nil
}

// Gas returns the amount of gas remaining in the pool.
func (gp *GasPool) Gas() uint64 {
	return uint64(*gp)
}
