package vm

import "github.com/holiman/uint256"

type (
	executionFunc  func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error)
	dynamicGasFunc func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error)
	// memorySizeFunc returns the memory end offset the operation touches.
	// The bool reports an overflow.
	memorySizeFunc func(stack *Stack) (uint64, bool)
)

// operation represents a single EVM opcode's execution metadata.
type operation struct {
	execute     executionFunc
	constantGas uint64
	dynamicGas  dynamicGasFunc
	minStack    int // minimum stack items required
	maxStack    int // maximum stack items allowed (1024 - net stack items pushed)
	memorySize  memorySizeFunc
	halts       bool // STOP, RETURN, REVERT, SELFDESTRUCT
	jumps       bool // JUMP, JUMPI set pc themselves
}

// JumpTable maps every possible opcode to its operation definition.
type JumpTable [256]*operation

func minStack(pops, push int) int {
	return pops
}

func maxStack(pops, push int) int {
	return stackLimit + pops - push
}

// --- Memory size calculations ---

// calcMemSize64 returns off+l, or 0 when l is zero.
func calcMemSize64(off, l *uint256.Int) (uint64, bool) {
	if !l.IsUint64() {
		return 0, true
	}
	return calcMemSize64WithUint(off, l.Uint64())
}

func calcMemSize64WithUint(off *uint256.Int, length64 uint64) (uint64, bool) {
	if length64 == 0 {
		return 0, false
	}
	offset64, overflow := off.Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	val := offset64 + length64
	return val, val < offset64
}

func memoryMLoad(stack *Stack) (uint64, bool) {
	return calcMemSize64WithUint(stack.Back(0), 32)
}

func memoryMStore(stack *Stack) (uint64, bool) {
	return calcMemSize64WithUint(stack.Back(0), 32)
}

func memoryMStore8(stack *Stack) (uint64, bool) {
	return calcMemSize64WithUint(stack.Back(0), 1)
}

func memoryKeccak256(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(1))
}

func memoryCopy(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(2))
}

func memoryExtCodeCopy(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(1), stack.Back(3))
}

func memoryLog(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(1))
}

func memoryReturn(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(1))
}

func memoryCall(stack *Stack) (uint64, bool) {
	x, overflow := calcMemSize64(stack.Back(5), stack.Back(6))
	if overflow {
		return 0, true
	}
	y, overflow := calcMemSize64(stack.Back(3), stack.Back(4))
	if overflow {
		return 0, true
	}
	return max(x, y), false
}

func memoryDelegateCall(stack *Stack) (uint64, bool) {
	x, overflow := calcMemSize64(stack.Back(4), stack.Back(5))
	if overflow {
		return 0, true
	}
	y, overflow := calcMemSize64(stack.Back(2), stack.Back(3))
	if overflow {
		return 0, true
	}
	return max(x, y), false
}

// newBVMJumpTable returns the instruction set: Shanghai-era opcodes without
// CREATE, CREATE2 or the blob and transient-storage extensions, with the
// value opcodes answered from the ledger.
func newBVMJumpTable() *JumpTable {
	tbl := &JumpTable{
		STOP: {execute: opStop, minStack: minStack(0, 0), maxStack: maxStack(0, 0), halts: true},

		ADD:        {execute: opAdd, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		MUL:        {execute: opMul, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SUB:        {execute: opSub, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		DIV:        {execute: opDiv, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SDIV:       {execute: opSdiv, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		MOD:        {execute: opMod, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SMOD:       {execute: opSmod, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		ADDMOD:     {execute: opAddmod, constantGas: GasMid, minStack: minStack(3, 1), maxStack: maxStack(3, 1)},
		MULMOD:     {execute: opMulmod, constantGas: GasMid, minStack: minStack(3, 1), maxStack: maxStack(3, 1)},
		EXP:        {execute: opExp, constantGas: GasHigh, dynamicGas: gasExp, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SIGNEXTEND: {execute: opSignExtend, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},

		LT:     {execute: opLt, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		GT:     {execute: opGt, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SLT:    {execute: opSlt, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SGT:    {execute: opSgt, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		EQ:     {execute: opEq, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		ISZERO: {execute: opIszero, constantGas: GasVerylow, minStack: minStack(1, 1), maxStack: maxStack(1, 1)},
		AND:    {execute: opAnd, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		OR:     {execute: opOr, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		XOR:    {execute: opXor, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		NOT:    {execute: opNot, constantGas: GasVerylow, minStack: minStack(1, 1), maxStack: maxStack(1, 1)},
		BYTE:   {execute: opByte, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SHL:    {execute: opSHL, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SHR:    {execute: opSHR, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},
		SAR:    {execute: opSAR, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)},

		KECCAK256: {execute: opKeccak256, constantGas: GasKeccak256, dynamicGas: gasKeccak256, minStack: minStack(2, 1), maxStack: maxStack(2, 1), memorySize: memoryKeccak256},

		ADDRESS:        {execute: opAddress, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		ORIGIN:         {execute: opOrigin, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		CALLER:         {execute: opCaller, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		CALLDATALOAD:   {execute: opCallDataLoad, constantGas: GasVerylow, minStack: minStack(1, 1), maxStack: maxStack(1, 1)},
		CALLDATASIZE:   {execute: opCallDataSize, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		CALLDATACOPY:   {execute: opCallDataCopy, constantGas: GasVerylow, dynamicGas: gasCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryCopy},
		CODESIZE:       {execute: opCodeSize, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		CODECOPY:       {execute: opCodeCopy, constantGas: GasVerylow, dynamicGas: gasCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryCopy},
		GASPRICE:       {execute: opGasPrice, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		EXTCODESIZE:    {execute: opExtCodeSize, constantGas: GasExtcode, minStack: minStack(1, 1), maxStack: maxStack(1, 1)},
		EXTCODECOPY:    {execute: opExtCodeCopy, constantGas: GasExtcode, dynamicGas: gasExtCodeCopy, minStack: minStack(4, 0), maxStack: maxStack(4, 0), memorySize: memoryExtCodeCopy},
		RETURNDATASIZE: {execute: opReturnDataSize, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		RETURNDATACOPY: {execute: opReturnDataCopy, constantGas: GasVerylow, dynamicGas: gasCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryCopy},
		EXTCODEHASH:    {execute: opExtCodeHash, constantGas: GasExtcode, minStack: minStack(1, 1), maxStack: maxStack(1, 1)},

		BLOCKHASH:  {execute: opBlockhash, constantGas: GasExt, minStack: minStack(1, 1), maxStack: maxStack(1, 1)},
		COINBASE:   {execute: opCoinbase, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		TIMESTAMP:  {execute: opTimestamp, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		NUMBER:     {execute: opNumber, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		PREVRANDAO: {execute: opPrevRandao, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		GASLIMIT:   {execute: opGasLimit, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		CHAINID:    {execute: opChainID, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		BASEFEE:    {execute: opBaseFee, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},

		POP:      {execute: opPop, constantGas: GasBase, minStack: minStack(1, 0), maxStack: maxStack(1, 0)},
		MLOAD:    {execute: opMload, constantGas: GasVerylow, minStack: minStack(1, 1), maxStack: maxStack(1, 1), memorySize: memoryMLoad},
		MSTORE:   {execute: opMstore, constantGas: GasVerylow, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryMStore},
		MSTORE8:  {execute: opMstore8, constantGas: GasVerylow, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryMStore8},
		SLOAD:    {execute: opSload, constantGas: GasSload, minStack: minStack(1, 1), maxStack: maxStack(1, 1)},
		SSTORE:   {execute: opSstore, dynamicGas: gasSStore, minStack: minStack(2, 0), maxStack: maxStack(2, 0)},
		JUMP:     {execute: opJump, constantGas: GasMid, minStack: minStack(1, 0), maxStack: maxStack(1, 0), jumps: true},
		JUMPI:    {execute: opJumpi, constantGas: GasHigh, minStack: minStack(2, 0), maxStack: maxStack(2, 0), jumps: true},
		PC:       {execute: opPc, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		MSIZE:    {execute: opMsize, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		GAS:      {execute: opGas, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},
		JUMPDEST: {execute: opJumpdest, constantGas: GasJumpDest, minStack: minStack(0, 0), maxStack: maxStack(0, 0)},
		PUSH0:    {execute: opPush0, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)},

		CALL:         {execute: opCall, constantGas: GasCall, dynamicGas: gasCallValue, minStack: minStack(7, 1), maxStack: maxStack(7, 1), memorySize: memoryCall},
		CALLCODE:     {execute: opCallCode, constantGas: GasCall, dynamicGas: gasCallValue, minStack: minStack(7, 1), maxStack: maxStack(7, 1), memorySize: memoryCall},
		RETURN:       {execute: opReturn, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryReturn, halts: true},
		DELEGATECALL: {execute: opDelegateCall, constantGas: GasCall, minStack: minStack(6, 1), maxStack: maxStack(6, 1), memorySize: memoryDelegateCall},
		STATICCALL:   {execute: opStaticCall, constantGas: GasCall, minStack: minStack(6, 1), maxStack: maxStack(6, 1), memorySize: memoryDelegateCall},
		REVERT:       {execute: opRevert, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryReturn, halts: true},
		SELFDESTRUCT: {execute: opSelfdestruct, constantGas: GasSelfdestruct, minStack: minStack(1, 0), maxStack: maxStack(1, 0), halts: true},
	}

	for i := 0; i < 32; i++ {
		tbl[PUSH1+OpCode(i)] = &operation{
			execute:     makePush(uint64(i + 1)),
			constantGas: GasVerylow,
			minStack:    minStack(0, 1),
			maxStack:    maxStack(0, 1),
		}
	}
	for i := 1; i <= 16; i++ {
		tbl[DUP1+OpCode(i-1)] = &operation{
			execute:     makeDup(i),
			constantGas: GasVerylow,
			minStack:    minStack(i, i+1),
			maxStack:    maxStack(i, i+1),
		}
		tbl[SWAP1+OpCode(i-1)] = &operation{
			execute:     makeSwap(i),
			constantGas: GasVerylow,
			minStack:    minStack(i+1, i+1),
			maxStack:    maxStack(i+1, i+1),
		}
	}
	for n := 0; n <= 4; n++ {
		tbl[LOG0+OpCode(n)] = &operation{
			execute:     makeLog(n),
			constantGas: GasLog,
			dynamicGas:  makeGasLog(uint64(n)),
			minStack:    minStack(n+2, 0),
			maxStack:    maxStack(n+2, 0),
			memorySize:  memoryLog,
		}
	}

	applyValueIntercepts(tbl)
	return tbl
}
