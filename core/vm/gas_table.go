package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/params"
)

// gasExp charges per byte of the exponent.
func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	expByteLen := uint64((stack.Back(1).BitLen() + 7) / 8)
	gas, overflow := math.SafeMul(expByteLen, GasExpByte)
	if overflow {
		return 0, ErrOutOfGas
	}
	return gas, nil
}

// wordGas charges perWord for every 32-byte word of the size operand.
func wordGas(size uint64, sizeOverflow bool, perWord uint64) (uint64, error) {
	if sizeOverflow {
		return 0, ErrOutOfGas
	}
	gas, overflow := math.SafeMul(toWordSize(size), perWord)
	if overflow {
		return 0, ErrOutOfGas
	}
	return gas, nil
}

func gasKeccak256(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := stack.Back(1).Uint64WithOverflow()
	return wordGas(size, overflow, GasKeccak256Word)
}

// gasCopy covers CALLDATACOPY, CODECOPY and RETURNDATACOPY.
func gasCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := stack.Back(2).Uint64WithOverflow()
	return wordGas(size, overflow, GasCopy)
}

func gasExtCodeCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := stack.Back(3).Uint64WithOverflow()
	return wordGas(size, overflow, GasCopy)
}

func makeGasLog(n uint64) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size, overflow := stack.Back(1).Uint64WithOverflow()
		if overflow {
			return 0, ErrOutOfGas
		}
		dataGas, overflow := math.SafeMul(size, GasLogData)
		if overflow {
			return 0, ErrOutOfGas
		}
		gas, overflow := math.SafeAdd(n*GasLogTopic, dataGas)
		if overflow {
			return 0, ErrOutOfGas
		}
		return gas, nil
	}
}

// gasSStore charges for setting a fresh slot or rewriting an existing one.
// A frame running on the call stipend alone cannot write storage.
func gasSStore(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if contract.Gas <= params.SstoreSentryGasEIP2200 {
		return 0, ErrOutOfGas
	}
	key := common.Hash(stack.Back(0).Bytes32())
	current := evm.StateDB.GetState(contract.Address, key)
	if current == (common.Hash{}) && !stack.Back(1).IsZero() {
		return GasSstoreSet, nil
	}
	return GasSstoreReset, nil
}

// gasCallValue adds the value-transfer surcharge for CALL and CALLCODE.
func gasCallValue(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if stack.Back(2).IsZero() {
		return 0, nil
	}
	return GasCallValue, nil
}
