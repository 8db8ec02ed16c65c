package vm

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core/ledger"
	"github.com/bitnetwork/bvm/metrics"
)

// CallOutcome is the result of one call attempt as seen by its caller.
type CallOutcome struct {
	Success    bool
	ReturnData []byte
	GasLeft    uint64
	Err        error
}

// AttemptCall runs a call of the given kind and folds the result into a
// CallOutcome. value is ignored for DELEGATECALL and STATICCALL.
func (evm *EVM) AttemptCall(kind CallFrameType, caller, addr common.Address, input []byte, gas uint64, value *uint256.Int) CallOutcome {
	ret, left, err := evm.call(kind, caller, addr, input, gas, value)
	return CallOutcome{
		Success:    err == nil,
		ReturnData: ret,
		GasLeft:    left,
		Err:        err,
	}
}

// Call executes a message call that moves value from caller to addr.
func (evm *EVM) Call(caller, addr common.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	return evm.call(FrameCall, caller, addr, input, gas, value)
}

// CallCode runs addr's code in the caller's account. value is checked
// against the caller's balance but not moved.
func (evm *EVM) CallCode(caller, addr common.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	return evm.call(FrameCallCode, caller, addr, input, gas, value)
}

// DelegateCall runs addr's code with the current frame's caller, account
// and carried value.
func (evm *EVM) DelegateCall(caller, addr common.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	return evm.call(FrameDelegateCall, caller, addr, input, gas, nil)
}

// StaticCall runs addr's code with state and ledger writes disabled.
func (evm *EVM) StaticCall(caller, addr common.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	return evm.call(FrameStaticCall, caller, addr, input, gas, nil)
}

// call is the single entry for every frame. The inbound value movement is
// recorded in the new frame's undo log so that a failed frame unwinds it
// together with every transfer its successful descendants retained.
func (evm *EVM) call(kind CallFrameType, caller, addr common.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error) {
	if value == nil || kind == FrameDelegateCall || kind == FrameStaticCall {
		value = new(uint256.Int)
	}
	if !evm.frames.CanPush() {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if kind == FrameCall && !value.IsZero() && evm.frames.IsStatic() {
		return nil, gas, ledger.ErrStaticContextViolation
	}

	parent := evm.frames.Current()
	frame := newCallFrame(kind, parent, caller, addr, value)
	frame.Input = input
	frame.GasStart = gas

	switch {
	case kind == FrameCall && !value.IsZero():
		rec, err := evm.Ledger.Transfer(caller, addr, value)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				return nil, gas, err
			}
			return nil, 0, err
		}
		frame.undo.Record(rec)
	case kind == FrameCallCode && !value.IsZero():
		if evm.Ledger.Get(caller).Lt(value) {
			return nil, gas, ledger.ErrInsufficientBalance
		}
	}

	snapshot := evm.StateDB.Snapshot()
	if err := evm.frames.Push(frame); err != nil {
		if uerr := frame.undo.Unwind(evm.Ledger); uerr != nil {
			return nil, 0, uerr
		}
		return nil, gas, err
	}
	metrics.VMCalls.Inc()
	metrics.VMFrameDepth.Set(int64(evm.frames.Depth()))
	if kind == FrameStaticCall {
		evm.Ledger.EnterStatic()
	}

	ret, leftOverGas, err = evm.execute(frame, gas)

	if kind == FrameStaticCall {
		evm.Ledger.ExitStatic()
	}
	evm.frames.Pop()
	metrics.VMFrameDepth.Set(int64(evm.frames.Depth()))

	if err != nil {
		if IsFatal(err) {
			return nil, 0, err
		}
		if uerr := frame.undo.Unwind(evm.Ledger); uerr != nil {
			evm.log.Error("frame rollback failed", "kind", kind.String(), "account", frame.Account, "depth", frame.Depth, "err", uerr)
			return nil, 0, uerr
		}
		evm.StateDB.RevertToSnapshot(snapshot)
		metrics.VMRollbacks.Inc()
		if !errors.Is(err, ErrExecutionReverted) {
			ret, leftOverGas = nil, 0
		}
		evm.log.Debug("frame failed", "kind", kind.String(), "account", frame.Account, "depth", frame.Depth, "err", err)
		return ret, leftOverGas, err
	}
	if parent != nil {
		parent.undo.Merge(frame.undo)
	}
	return ret, leftOverGas, nil
}

// execute runs the code the frame points at. Accounts without code succeed
// immediately with all gas returned.
func (evm *EVM) execute(frame *CallFrame, gas uint64) ([]byte, uint64, error) {
	if p, ok := evm.precompile(frame.CodeAddress); ok {
		return runPrecompile(p, frame.Input, gas)
	}
	code := evm.StateDB.GetCode(frame.CodeAddress)
	if len(code) == 0 {
		return nil, gas, nil
	}
	contract := NewContract(frame, gas)
	contract.SetCallCode(evm.StateDB.GetCodeHash(frame.CodeAddress), code)
	ret, err := evm.Run(contract)
	return ret, contract.Gas, err
}
