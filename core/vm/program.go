package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Program assembles EVM bytecode. Jump targets are named labels resolved
// by Bytes. Call helpers push their arguments in reverse so the call sees
// them in operand order.
type Program struct {
	code   []byte
	labels map[string]int
	fixups []labelRef
	nextID int
}

type labelRef struct {
	pos   int // offset of the two-byte PUSH2 immediate
	label string
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{labels: make(map[string]int)}
}

// Op appends raw opcodes.
func (p *Program) Op(ops ...OpCode) *Program {
	for _, op := range ops {
		p.code = append(p.code, byte(op))
	}
	return p
}

// Push pushes v with the shortest PUSH form.
func (p *Program) Push(v uint64) *Program {
	return p.PushBig(new(uint256.Int).SetUint64(v))
}

// PushBig pushes v with the shortest PUSH form.
func (p *Program) PushBig(v *uint256.Int) *Program {
	if v.IsZero() {
		return p.Op(PUSH0)
	}
	return p.PushBytes(v.Bytes())
}

// PushAddr pushes a 20-byte address.
func (p *Program) PushAddr(addr common.Address) *Program {
	return p.PushBytes(addr.Bytes())
}

// PushBytes pushes b as a single PUSHn immediate. b must be 1 to 32 bytes.
func (p *Program) PushBytes(b []byte) *Program {
	if len(b) == 0 || len(b) > 32 {
		panic(fmt.Sprintf("program: cannot push %d bytes", len(b)))
	}
	p.code = append(p.code, byte(PUSH1)+byte(len(b)-1))
	p.code = append(p.code, b...)
	return p
}

// pushGas pushes gas, or the GAS opcode when gas is zero.
func (p *Program) pushGas(gas uint64) *Program {
	if gas == 0 {
		return p.Op(GAS)
	}
	return p.Push(gas)
}

// Call emits CALL with a constant value. A zero gas forwards everything.
func (p *Program) Call(gas uint64, addr common.Address, value *uint256.Int, inOffset, inSize, retOffset, retSize uint64) *Program {
	p.Push(retSize).Push(retOffset).Push(inSize).Push(inOffset)
	p.PushBig(value)
	return p.PushAddr(addr).pushGas(gas).Op(CALL)
}

// CallWithValueOp emits CALL whose value is produced by valueOp, for
// instance CALLVALUE to forward msg.value or SELFBALANCE to send everything.
func (p *Program) CallWithValueOp(gas uint64, addr common.Address, valueOp OpCode, inOffset, inSize, retOffset, retSize uint64) *Program {
	p.Push(retSize).Push(retOffset).Push(inSize).Push(inOffset)
	p.Op(valueOp)
	return p.PushAddr(addr).pushGas(gas).Op(CALL)
}

// CallCode emits CALLCODE with a constant value.
func (p *Program) CallCode(gas uint64, addr common.Address, value *uint256.Int, inOffset, inSize, retOffset, retSize uint64) *Program {
	p.Push(retSize).Push(retOffset).Push(inSize).Push(inOffset)
	p.PushBig(value)
	return p.PushAddr(addr).pushGas(gas).Op(CALLCODE)
}

// DelegateCall emits DELEGATECALL.
func (p *Program) DelegateCall(gas uint64, addr common.Address, inOffset, inSize, retOffset, retSize uint64) *Program {
	p.Push(retSize).Push(retOffset).Push(inSize).Push(inOffset)
	return p.PushAddr(addr).pushGas(gas).Op(DELEGATECALL)
}

// StaticCall emits STATICCALL.
func (p *Program) StaticCall(gas uint64, addr common.Address, inOffset, inSize, retOffset, retSize uint64) *Program {
	p.Push(retSize).Push(retOffset).Push(inSize).Push(inOffset)
	return p.PushAddr(addr).pushGas(gas).Op(STATICCALL)
}

// StoreTop writes the top of the stack to storage slot.
func (p *Program) StoreTop(slot uint64) *Program {
	return p.Push(slot).Op(SSTORE)
}

// ReturnTop returns the top of the stack as one 32-byte word.
func (p *Program) ReturnTop() *Program {
	return p.Op(PUSH0, MSTORE).Push(32).Op(PUSH0, RETURN)
}

// ReturnData returns the output of the last call verbatim.
func (p *Program) ReturnData() *Program {
	p.Op(RETURNDATASIZE, PUSH0, PUSH0, RETURNDATACOPY)
	return p.Op(RETURNDATASIZE, PUSH0, RETURN)
}

// RevertData reverts with the output of the last call.
func (p *Program) RevertData() *Program {
	p.Op(RETURNDATASIZE, PUSH0, PUSH0, RETURNDATACOPY)
	return p.Op(RETURNDATASIZE, PUSH0, REVERT)
}

// Revert reverts with empty output.
func (p *Program) Revert() *Program {
	return p.Op(PUSH0, PUSH0, REVERT)
}

// RevertOnFailure consumes a call status and bubbles the callee's revert
// payload when it is zero.
func (p *Program) RevertOnFailure() *Program {
	ok := p.newLabel()
	p.JumpIf(ok)
	p.RevertData()
	return p.Label(ok)
}

// Label marks the current position with a JUMPDEST.
func (p *Program) Label(name string) *Program {
	if _, dup := p.labels[name]; dup {
		panic("program: duplicate label " + name)
	}
	p.labels[name] = len(p.code)
	return p.Op(JUMPDEST)
}

// Jump jumps unconditionally to label.
func (p *Program) Jump(label string) *Program {
	return p.pushLabel(label).Op(JUMP)
}

// JumpIf consumes the top of the stack and jumps to label when it is non-zero.
func (p *Program) JumpIf(label string) *Program {
	return p.pushLabel(label).Op(JUMPI)
}

func (p *Program) pushLabel(label string) *Program {
	p.code = append(p.code, byte(PUSH2), 0, 0)
	p.fixups = append(p.fixups, labelRef{pos: len(p.code) - 2, label: label})
	return p
}

func (p *Program) newLabel() string {
	p.nextID++
	return fmt.Sprintf("__auto%d", p.nextID)
}

// Bytes resolves labels and returns the bytecode.
func (p *Program) Bytes() []byte {
	out := common.CopyBytes(p.code)
	for _, ref := range p.fixups {
		dest, ok := p.labels[ref.label]
		if !ok {
			panic("program: undefined label " + ref.label)
		}
		binary.BigEndian.PutUint16(out[ref.pos:], uint16(dest))
	}
	return out
}
