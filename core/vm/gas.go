package vm

import "github.com/ethereum/go-ethereum/params"

// Gas cost constants. Tiers follow the yellow paper; the rest are fixed at
// their Istanbul values since access lists are not tracked.
const (
	GasZero    uint64 = 0
	GasBase    uint64 = 2  // ADDRESS, CALLER, CALLVALUE, ...
	GasVerylow uint64 = 3  // ADD, SUB, PUSH, DUP, ...
	GasLow     uint64 = 5  // MUL, DIV, SELFBALANCE, ...
	GasMid     uint64 = 8  // ADDMOD, MULMOD, JUMP
	GasHigh    uint64 = 10 // JUMPI, EXP base
	GasExt     uint64 = 20 // BLOCKHASH

	GasExpByte      uint64 = 50  // per byte of EXP exponent
	GasBalance      uint64 = 700 // BALANCE
	GasExtcode      uint64 = 700 // EXTCODESIZE, EXTCODECOPY, EXTCODEHASH
	GasSload        uint64 = 800
	GasSstoreSet    uint64 = 20000 // zero to non-zero
	GasSstoreReset  uint64 = 5000  // every other write
	GasCall         uint64 = 700   // CALL family base
	GasSelfdestruct uint64 = 5000
	GasJumpDest     uint64 = 1

	GasKeccak256     = params.Keccak256Gas
	GasKeccak256Word = params.Keccak256WordGas
	GasCopy          = params.CopyGas
	GasLog           = params.LogGas
	GasLogTopic      = params.LogTopicGas
	GasLogData       = params.LogDataGas

	// GasCallValue is the surcharge for a CALL or CALLCODE carrying value.
	GasCallValue = params.CallValueTransferGas
)
