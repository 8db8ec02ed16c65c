package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Contract is the code being executed in one call frame.
type Contract struct {
	CallerAddress common.Address // msg.sender as seen by the code
	Address       common.Address // account whose storage and balance apply
	CodeAddress   common.Address // account the code was loaded from
	Code          []byte
	CodeHash      common.Hash
	Input         []byte
	Gas           uint64
	Value         *uint256.Int // value reported by CALLVALUE
	jumpdests     map[uint64]bool
}

// NewContract creates the contract for frame with gas available.
func NewContract(frame *CallFrame, gas uint64) *Contract {
	return &Contract{
		CallerAddress: frame.Caller,
		Address:       frame.Account,
		CodeAddress:   frame.CodeAddress,
		Input:         frame.Input,
		Value:         frame.CarriedValue,
		Gas:           gas,
	}
}

// GetOp returns the opcode at position n in the contract code.
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// UseGas attempts to consume the given gas. Returns false if insufficient gas.
func (c *Contract) UseGas(gas uint64) bool {
	if c.Gas < gas {
		return false
	}
	c.Gas -= gas
	return true
}

// RefundGas returns unused gas from a child call.
func (c *Contract) RefundGas(gas uint64) {
	c.Gas += gas
}

// SetCallCode sets the code and code hash for execution.
func (c *Contract) SetCallCode(hash common.Hash, code []byte) {
	c.Code = code
	c.CodeHash = hash
	c.jumpdests = nil
}

// validJumpdest checks whether dest is a JUMPDEST outside PUSH data.
func (c *Contract) validJumpdest(dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow || udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	return c.isCode(udest)
}

// isCode returns true if the given offset is an opcode (not PUSH data).
func (c *Contract) isCode(pos uint64) bool {
	if c.jumpdests == nil {
		c.jumpdests = make(map[uint64]bool)
		c.analyzeJumpdests()
	}
	return c.jumpdests[pos]
}

// analyzeJumpdests scans the code to identify all valid JUMPDEST locations.
func (c *Contract) analyzeJumpdests() {
	for i := uint64(0); i < uint64(len(c.Code)); i++ {
		op := OpCode(c.Code[i])
		if op == JUMPDEST {
			c.jumpdests[i] = true
		}
		if op.IsPush() {
			i += uint64(op - PUSH1 + 1)
		}
	}
}
