package vm

// call_frame.go tracks the execution context at each call depth. Besides
// the usual caller/target bookkeeping every frame carries the two pieces of
// data the value layer needs: the account whose ledger balance answers
// SELFBALANCE, and the carried value answered by CALLVALUE.

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core/ledger"
)

const (
	// MaxCallDepth is the maximum number of nested calls below the
	// top-level frame.
	MaxCallDepth = int(params.CallCreateDepth)

	// CallGasFraction is the EIP-150 divisor: a caller keeps 1/64 of its gas.
	CallGasFraction = 64

	// CallStipend is the free gas a value-bearing call hands to the callee.
	CallStipend = params.CallStipend
)

// CallFrameType enumerates the different types of EVM call frames.
type CallFrameType uint8

const (
	FrameCall         CallFrameType = iota // CALL opcode or top-level message
	FrameStaticCall                        // STATICCALL opcode
	FrameDelegateCall                      // DELEGATECALL opcode
	FrameCallCode                          // CALLCODE opcode
)

// String returns the human-readable name of the call frame type.
func (ft CallFrameType) String() string {
	switch ft {
	case FrameCall:
		return "CALL"
	case FrameStaticCall:
		return "STATICCALL"
	case FrameDelegateCall:
		return "DELEGATECALL"
	case FrameCallCode:
		return "CALLCODE"
	default:
		return "UNKNOWN"
	}
}

// CallFrame is a single execution frame in the call stack.
type CallFrame struct {
	Type         CallFrameType
	Caller       common.Address // msg.sender for code in this frame
	Account      common.Address // whose balance answers SELFBALANCE
	CodeAddress  common.Address // where the executing code lives
	CarriedValue *uint256.Int   // what CALLVALUE reports
	Input        []byte
	GasStart     uint64
	Depth        int  // 0 = top-level message
	ReadOnly     bool // static context, inherited by every descendant

	returnData []byte
	undo       ledger.UndoLog
}

// newCallFrame derives the frame for a call of kind from caller to target.
// parent is nil for the top-level message.
func newCallFrame(kind CallFrameType, parent *CallFrame, caller, target common.Address, value *uint256.Int) *CallFrame {
	if value == nil {
		value = new(uint256.Int)
	}
	f := &CallFrame{
		Type:         kind,
		Caller:       caller,
		Account:      target,
		CodeAddress:  target,
		CarriedValue: value.Clone(),
	}
	if parent != nil {
		f.ReadOnly = parent.ReadOnly
	}
	switch kind {
	case FrameStaticCall:
		f.CarriedValue = new(uint256.Int)
		f.ReadOnly = true
	case FrameDelegateCall, FrameCallCode:
		if parent == nil {
			f.Account = caller
			if kind == FrameDelegateCall {
				f.CarriedValue = new(uint256.Int)
			}
			break
		}
		f.Account = parent.Account
		f.CarriedValue = parent.CarriedValue.Clone()
		if kind == FrameDelegateCall {
			f.Caller = parent.Caller
		}
	}
	return f
}

// UndoLog returns the transfers retained by this frame and its successful
// descendants, oldest first.
func (cf *CallFrame) UndoLog() ledger.UndoLog {
	return cf.undo
}

// ReturnData returns the output of the last call made from this frame.
func (cf *CallFrame) ReturnData() []byte {
	return cf.returnData
}

// CallFrameStack manages a stack of call frames, enforcing the maximum
// call depth.
type CallFrameStack struct {
	frames   []*CallFrame
	maxDepth int
}

// NewCallFrameStack creates a CallFrameStack with the standard depth limit.
func NewCallFrameStack() *CallFrameStack {
	return NewCallFrameStackWithLimit(MaxCallDepth)
}

// NewCallFrameStackWithLimit creates a CallFrameStack with a custom depth limit.
func NewCallFrameStackWithLimit(maxDepth int) *CallFrameStack {
	return &CallFrameStack{
		frames:   make([]*CallFrame, 0, 16),
		maxDepth: maxDepth,
	}
}

// Depth returns the number of active frames.
func (cfs *CallFrameStack) Depth() int {
	return len(cfs.frames)
}

// CanPush returns true if a new frame fits under the depth limit.
func (cfs *CallFrameStack) CanPush() bool {
	return len(cfs.frames) <= cfs.maxDepth
}

// Push pushes frame and stamps its depth. Returns ErrMaxCallDepthExceeded
// if the depth limit would be exceeded.
func (cfs *CallFrameStack) Push(frame *CallFrame) error {
	if !cfs.CanPush() {
		return ErrMaxCallDepthExceeded
	}
	frame.Depth = len(cfs.frames)
	cfs.frames = append(cfs.frames, frame)
	return nil
}

// Pop removes and returns the top frame from the stack. Returns nil if
// the stack is empty.
func (cfs *CallFrameStack) Pop() *CallFrame {
	n := len(cfs.frames)
	if n == 0 {
		return nil
	}
	frame := cfs.frames[n-1]
	cfs.frames[n-1] = nil
	cfs.frames = cfs.frames[:n-1]
	return frame
}

// Current returns the frame at the top of the stack, or nil.
func (cfs *CallFrameStack) Current() *CallFrame {
	n := len(cfs.frames)
	if n == 0 {
		return nil
	}
	return cfs.frames[n-1]
}

// Parent returns the frame one level below the current frame, or nil.
func (cfs *CallFrameStack) Parent() *CallFrame {
	n := len(cfs.frames)
	if n < 2 {
		return nil
	}
	return cfs.frames[n-2]
}

// AtDepth returns the frame at the specified depth, or nil.
func (cfs *CallFrameStack) AtDepth(depth int) *CallFrame {
	if depth < 0 || depth >= len(cfs.frames) {
		return nil
	}
	return cfs.frames[depth]
}

// IsStatic reports whether the current frame runs in a static context.
func (cfs *CallFrameStack) IsStatic() bool {
	cur := cfs.Current()
	return cur != nil && cur.ReadOnly
}

// ForwardGas computes the gas to forward to a child call using the EIP-150
// 63/64 rule. The caller retains at least 1/64 of its remaining gas.
//
//	maxForward = available - floor(available / 64)
//	forwarded  = min(requested, maxForward)
//
// If the call transfers value, the stipend is added to the child and is not
// deducted from the caller.
func ForwardGas(available, requested uint64, transfersValue bool) (childGas, callerDeduction uint64) {
	maxForward := available - available/CallGasFraction
	if requested > maxForward {
		requested = maxForward
	}
	callerDeduction = requested
	if transfersValue {
		requested = safeAddGas(requested, CallStipend)
	}
	return requested, callerDeduction
}

// safeAddGas adds two uint64 values, capping at max uint64 on overflow.
func safeAddGas(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}
