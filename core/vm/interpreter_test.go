package vm

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// runCode executes code at addrA and returns the outcome.
func runCode(t *testing.T, code []byte, gas uint64) (*vmEnv, CallOutcome) {
	t.Helper()
	env := newVMEnv(t)
	env.state.SetCode(addrA, code)
	return env, env.evm.AttemptCall(FrameCall, addrX, addrA, nil, gas, nil)
}

func TestRun_Arithmetic(t *testing.T) {
	tests := []struct {
		name string
		prog *Program
		want uint64
	}{
		{"add", NewProgram().Push(2).Push(3).Op(ADD), 5},
		{"sub", NewProgram().Push(3).Push(10).Op(SUB), 7},
		{"mul", NewProgram().Push(6).Push(7).Op(MUL), 42},
		{"div by zero", NewProgram().Push(0).Push(10).Op(DIV), 0},
		{"mod", NewProgram().Push(3).Push(10).Op(MOD), 1},
		{"addmod", NewProgram().Push(5).Push(4).Push(3).Op(ADDMOD), 2},
		{"exp", NewProgram().Push(10).Push(2).Op(EXP), 1024},
		{"lt", NewProgram().Push(2).Push(1).Op(LT), 1},
		{"iszero", NewProgram().Push(0).Op(ISZERO), 1},
		{"shl", NewProgram().Push(1).Push(4).Op(SHL), 16},
		{"shr", NewProgram().Push(16).Push(4).Op(SHR), 1},
		{"byte", NewProgram().Push(0xab).Push(31).Op(BYTE), 0xab},
		{"dup swap", NewProgram().Push(1).Push(2).Op(SWAP1, DUP2, ADD, ADD), 5},
		{"chainid", NewProgram().Op(CHAINID), 1},
		{"number", NewProgram().Op(NUMBER), 1},
		{"calldatasize", NewProgram().Op(CALLDATASIZE), 0},
		{"pc", NewProgram().Op(JUMPDEST, JUMPDEST, PC), 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, out := runCode(t, tc.prog.ReturnTop().Bytes(), testGas)
			if !out.Success {
				t.Fatalf("execution failed: %v", out.Err)
			}
			if got := word(out.ReturnData); got != tc.want {
				t.Errorf("result = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRun_Keccak256(t *testing.T) {
	code := NewProgram().Push(0).Push(0).Op(KECCAK256).ReturnTop().Bytes()
	_, out := runCode(t, code, testGas)
	if !out.Success {
		t.Fatalf("execution failed: %v", out.Err)
	}
	want := common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if common.BytesToHash(out.ReturnData) != want {
		t.Errorf("keccak256('') = %x, want %x", out.ReturnData, want)
	}
}

func TestRun_Labels(t *testing.T) {
	// Counts down from 3, accumulating into slot 0.
	p := NewProgram().Push(3).
		Label("loop").
		Op(DUP1, ISZERO).JumpIf("done").
		Push(0).Op(SLOAD).Push(1).Op(ADD).StoreTop(0).
		Push(1).Op(SWAP1, SUB).
		Jump("loop").
		Label("done").
		Push(0).Op(SLOAD).ReturnTop()

	env, out := runCode(t, p.Bytes(), testGas)
	if !out.Success {
		t.Fatalf("execution failed: %v", out.Err)
	}
	if got := word(out.ReturnData); got != 3 {
		t.Errorf("loop count = %d, want 3", got)
	}
	if got := env.state.GetState(addrA, common.Hash{}); got != common.BigToHash(uint256.NewInt(3).ToBig()) {
		t.Errorf("slot 0 = %x, want 3", got)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		gas  uint64
		want error
	}{
		{"invalid opcode", []byte{byte(INVALID)}, testGas, ErrInvalidOpCode},
		{"create is invalid", NewProgram().Push(0).Push(0).Push(0).Op(CREATE).Bytes(), testGas, ErrInvalidOpCode},
		{"create2 is invalid", NewProgram().Op(CREATE2).Bytes(), testGas, ErrInvalidOpCode},
		{"stack underflow", []byte{byte(ADD)}, testGas, ErrStackUnderflow},
		{"bad jump", NewProgram().Push(1).Op(JUMP).Bytes(), testGas, ErrInvalidJump},
		{"jump into push data", []byte{byte(PUSH1), byte(JUMPDEST), byte(PUSH1), 1, byte(JUMP)}, testGas, ErrInvalidJump},
		{"out of gas", NewProgram().Push(1).Push(2).Op(ADD).Bytes(), 5, ErrOutOfGas},
		{"returndata out of bounds", NewProgram().Push(1).Push(0).Push(0).Op(RETURNDATACOPY).Bytes(), testGas, ErrReturnDataOutOfBounds},
		{"memory overflow", NewProgram().PushBig(new(uint256.Int).SetAllOne()).Op(MLOAD).Bytes(), testGas, ErrOutOfGas},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, out := runCode(t, tc.code, tc.gas)
			if out.Success {
				t.Fatal("expected failure")
			}
			if !errors.Is(out.Err, tc.want) {
				t.Errorf("err = %v, want %v", out.Err, tc.want)
			}
			if out.GasLeft != 0 {
				t.Errorf("gas left = %d, want 0", out.GasLeft)
			}
		})
	}
}

func TestRun_RevertKeepsGasAndData(t *testing.T) {
	code := NewProgram().Push(0xbeef).Push(0).Op(MSTORE).Push(32).Push(0).Op(REVERT).Bytes()
	_, out := runCode(t, code, testGas)
	if !errors.Is(out.Err, ErrExecutionReverted) {
		t.Fatalf("err = %v, want revert", out.Err)
	}
	if word(out.ReturnData) != 0xbeef {
		t.Errorf("revert data = %x", out.ReturnData)
	}
	if out.GasLeft == 0 || out.GasLeft >= testGas {
		t.Errorf("gas left = %d, want partial refund", out.GasLeft)
	}
}

func TestRun_LogsAndRevert(t *testing.T) {
	env := newVMEnv(t)
	env.state.SetCode(addrB, NewProgram().Push(7).Push(0).Push(0).Op(LOG1, STOP).Bytes())
	env.state.SetCode(addrA, NewProgram().Call(0, addrB, uint256.NewInt(0), 0, 0, 0, 0).Op(POP).Revert().Bytes())

	out := env.evm.AttemptCall(FrameCall, addrX, addrB, nil, testGas, nil)
	if !out.Success {
		t.Fatalf("log call failed: %v", out.Err)
	}
	if n := len(env.state.GetLogs(common.Hash{})); n != 1 {
		t.Fatalf("logs = %d, want 1", n)
	}
	env.evm.AttemptCall(FrameCall, addrX, addrA, nil, testGas, nil)
	if n := len(env.state.GetLogs(common.Hash{})); n != 1 {
		t.Errorf("logs after reverted call = %d, want 1", n)
	}
}

func TestRun_IdentityPrecompile(t *testing.T) {
	p := NewProgram().
		Push(0x1234).Push(0).Op(MSTORE).
		StaticCall(0, common.BytesToAddress([]byte{4}), 0, 32, 32, 32).Op(POP).
		Push(32).Op(MLOAD).ReturnTop()
	_, out := runCode(t, p.Bytes(), testGas)
	if !out.Success {
		t.Fatalf("execution failed: %v", out.Err)
	}
	if word(out.ReturnData) != 0x1234 {
		t.Errorf("identity output = %x", out.ReturnData)
	}
}

func TestRun_ExtCodeHash(t *testing.T) {
	env := newVMEnv(t)
	env.fund(t, addrY, 1)
	env.state.SetCode(addrA, NewProgram().
		PushAddr(addrY).Op(EXTCODEHASH).Push(0).Op(MSTORE).
		PushAddr(addrZ).Op(EXTCODEHASH).Push(32).Op(MSTORE).
		Push(64).Op(PUSH0, RETURN).Bytes())

	out := env.evm.AttemptCall(FrameCall, addrX, addrA, nil, testGas, nil)
	if !out.Success {
		t.Fatalf("execution failed: %v", out.Err)
	}
	if common.BytesToHash(out.ReturnData[:32]) != common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470") {
		t.Errorf("funded EOA hash = %x", out.ReturnData[:32])
	}
	if common.BytesToHash(out.ReturnData[32:]) != (common.Hash{}) {
		t.Errorf("absent account hash = %x", out.ReturnData[32:])
	}
}
