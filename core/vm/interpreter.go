package vm

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core/ledger"
	"github.com/bitnetwork/bvm/core/state"
	"github.com/bitnetwork/bvm/log"
)

var (
	ErrOutOfGas              = errors.New("out of gas")
	ErrStackOverflow         = errors.New("stack overflow")
	ErrStackUnderflow        = errors.New("stack underflow")
	ErrInvalidJump           = errors.New("invalid jump destination")
	ErrWriteProtection       = errors.New("write protection")
	ErrExecutionReverted     = errors.New("execution reverted")
	ErrMaxCallDepthExceeded  = errors.New("max call depth exceeded")
	ErrInvalidOpCode         = errors.New("invalid opcode")
	ErrReturnDataOutOfBounds = errors.New("return data out of bounds")
)

// IsFatal reports whether err must abort the whole transaction instead of
// failing a single frame.
func IsFatal(err error) bool {
	return errors.Is(err, ledger.ErrOverflow) || errors.Is(err, ledger.ErrRollbackFailed)
}

// GetHashFunc returns the hash of the block with the given number.
type GetHashFunc func(uint64) common.Hash

// BlockContext provides the EVM with block-level information.
type BlockContext struct {
	GetHash     GetHashFunc
	BlockNumber uint64
	Time        uint64
	Coinbase    common.Address
	GasLimit    uint64
	BaseFee     *uint256.Int
	PrevRandao  common.Hash
}

// TxContext provides the EVM with transaction-level information.
type TxContext struct {
	Origin   common.Address
	GasPrice *uint256.Int
}

// Config holds EVM configuration options.
type Config struct {
	ChainID      uint64
	MaxCallDepth int
	Debug        bool
}

// EVM executes messages against a StateDB for code and storage and a
// Ledger for every ether balance.
type EVM struct {
	Context   BlockContext
	TxContext TxContext
	Config    Config
	StateDB   state.StateDB
	Ledger    *ledger.Ledger

	jumpTable   *JumpTable
	precompiles map[common.Address]PrecompiledContract
	frames      *CallFrameStack
	log         *log.Logger
}

// NewEVM creates a new EVM instance.
func NewEVM(blockCtx BlockContext, txCtx TxContext, config Config, statedb state.StateDB, l *ledger.Ledger) *EVM {
	if config.MaxCallDepth == 0 {
		config.MaxCallDepth = MaxCallDepth
	}
	return &EVM{
		Context:     blockCtx,
		TxContext:   txCtx,
		Config:      config,
		StateDB:     statedb,
		Ledger:      l,
		jumpTable:   newBVMJumpTable(),
		precompiles: defaultPrecompiles(l),
		frames:      NewCallFrameStackWithLimit(config.MaxCallDepth),
		log:         log.Default().Module("vm"),
	}
}

// Depth returns the number of frames currently executing.
func (evm *EVM) Depth() int {
	return evm.frames.Depth()
}

// CurrentFrame returns the executing frame, or nil between messages.
func (evm *EVM) CurrentFrame() *CallFrame {
	return evm.frames.Current()
}

// PrecompiledContract is a native contract reachable through the call family.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// SetPrecompiles replaces the EVM's precompile map.
func (evm *EVM) SetPrecompiles(p map[common.Address]PrecompiledContract) {
	evm.precompiles = p
}

func (evm *EVM) precompile(addr common.Address) (PrecompiledContract, bool) {
	p, ok := evm.precompiles[addr]
	return p, ok
}

// runPrecompile executes a precompiled contract and returns the output,
// remaining gas, and any error.
func runPrecompile(p PrecompiledContract, input []byte, gas uint64) ([]byte, uint64, error) {
	gasCost := p.RequiredGas(input)
	if gas < gasCost {
		return nil, 0, ErrOutOfGas
	}
	output, err := p.Run(input)
	return output, gas - gasCost, err
}

// Run executes the contract bytecode using the interpreter loop.
func (evm *EVM) Run(contract *Contract) ([]byte, error) {
	var (
		pc    uint64
		stack = NewStack()
		mem   = NewMemory()
	)

	for {
		op := contract.GetOp(pc)
		operation := evm.jumpTable[op]
		if operation == nil {
			return nil, ErrInvalidOpCode
		}

		sLen := stack.Len()
		if sLen < operation.minStack {
			return nil, ErrStackUnderflow
		}
		if sLen > operation.maxStack {
			return nil, ErrStackOverflow
		}

		if operation.constantGas > 0 {
			if !contract.UseGas(operation.constantGas) {
				return nil, ErrOutOfGas
			}
		}

		var memSize uint64
		if operation.memorySize != nil {
			size, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrOutOfGas
			}
			if size > 0 {
				words := toWordSize(size)
				if words > maxMemorySize/32 {
					return nil, ErrOutOfGas
				}
				memSize = words * 32
			}
		}
		if memSize > uint64(mem.Len()) {
			cost, ok := MemoryCost(uint64(mem.Len()), memSize)
			if !ok || !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
			mem.Resize(memSize)
		}

		if operation.dynamicGas != nil {
			cost, err := operation.dynamicGas(evm, contract, stack, mem, memSize)
			if err != nil {
				return nil, err
			}
			if !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
		}

		if evm.Config.Debug {
			evm.log.Debug("step", "pc", pc, "op", op.String(), "gas", contract.Gas, "depth", evm.frames.Depth())
		}

		ret, err := operation.execute(&pc, evm, contract, mem, stack)
		if err != nil {
			if errors.Is(err, ErrExecutionReverted) {
				return ret, err
			}
			return nil, err
		}

		if operation.halts {
			return ret, nil
		}
		if operation.jumps {
			continue
		}
		pc++
	}
}
