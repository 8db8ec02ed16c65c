package vm

import (
	"github.com/ethereum/go-ethereum/common"
)

// The value opcodes never reach the StateDB: BALANCE and SELFBALANCE read
// the ledger and CALLVALUE reads the executing frame. ADDRESS followed by
// BALANCE and SELFBALANCE therefore agree in every frame kind.

// opBalance answers BALANCE(addr) from the ledger.
func opBalance(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	slot := stack.Peek()
	addr := common.Address(slot.Bytes20())
	slot.Set(evm.Ledger.Get(addr))
	return nil, nil
}

// opSelfBalance answers SELFBALANCE with the ledger balance of the frame's
// account, which DELEGATECALL and CALLCODE inherit from their parent.
func opSelfBalance(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(evm.Ledger.Get(evm.frames.Current().Account))
	return nil, nil
}

// opCallValue answers CALLVALUE with the frame's carried value.
func opCallValue(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(evm.frames.Current().CarriedValue)
	return nil, nil
}

// applyValueIntercepts binds the ledger-backed value opcodes into tbl.
func applyValueIntercepts(tbl *JumpTable) {
	tbl[BALANCE] = &operation{
		execute:     opBalance,
		constantGas: GasBalance,
		minStack:    minStack(1, 1),
		maxStack:    maxStack(1, 1),
	}
	tbl[SELFBALANCE] = &operation{
		execute:     opSelfBalance,
		constantGas: GasLow,
		minStack:    minStack(0, 1),
		maxStack:    maxStack(0, 1),
	}
	tbl[CALLVALUE] = &operation{
		execute:     opCallValue,
		constantGas: GasBase,
		minStack:    minStack(0, 1),
		maxStack:    maxStack(0, 1),
	}
}
