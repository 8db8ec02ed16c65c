// Package core applies blocks of messages to the world state and the
// balance ledger.
package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bitnetwork/bvm/core/ledger"
	"github.com/bitnetwork/bvm/core/state"
	"github.com/bitnetwork/bvm/core/vm"
	"github.com/bitnetwork/bvm/log"
	"github.com/bitnetwork/bvm/metrics"
)

const (
	// TxGas is the base gas cost of a message.
	TxGas = params.TxGas
	// TxDataZeroGas is the gas cost per zero byte of message data.
	TxDataZeroGas = params.TxDataZeroGas
	// TxDataNonZeroGas is the gas cost per non-zero byte of message data.
	TxDataNonZeroGas = params.TxDataNonZeroGasEIP2028
)

var (
	ErrNonceTooLow       = errors.New("nonce too low")
	ErrNonceTooHigh      = errors.New("nonce too high")
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")
	ErrIntrinsicGas      = errors.New("intrinsic gas too low")
	ErrContractCreation  = errors.New("contract creation not supported")
	ErrGasUintOverflow   = errors.New("gas uint64 overflow")
)

const tracerName = "github.com/bitnetwork/bvm/core"

// DiscardedMessage records a message that was rejected and left no trace in
// the ledger or the state.
type DiscardedMessage struct {
	Index int
	Hash  common.Hash
	Err   error
}

// ProcessResult is the outcome of applying a block.
type ProcessResult struct {
	Receipts  []*types.Receipt
	Discarded []DiscardedMessage
	GasUsed   uint64
}

// finaliser is implemented by state backends that keep a per-block journal.
type finaliser interface {
	Finalise()
}

// StateProcessor applies messages sequentially. Gas is bought from the
// sender's ledger balance up front and held outside the ledger while the
// message runs; afterwards the unused part goes back to the sender and the
// fee to the block coinbase.
type StateProcessor struct {
	config  vm.Config
	statedb state.StateDB
	ledger  *ledger.Ledger
	hashes  map[uint64]common.Hash
	log     *log.Logger
	tracer  trace.Tracer
}

// NewStateProcessor creates a processor over the given state and ledger.
func NewStateProcessor(config vm.Config, statedb state.StateDB, l *ledger.Ledger) *StateProcessor {
	return &StateProcessor{
		config:  config,
		statedb: statedb,
		ledger:  l,
		hashes:  make(map[uint64]common.Hash),
		log:     log.Default().Module("core"),
		tracer:  otel.Tracer(tracerName),
	}
}

// GetHash returns the hash of a block processed earlier, or the zero hash.
func (p *StateProcessor) GetHash(number uint64) common.Hash {
	return p.hashes[number]
}

// Process applies every message of block in order. Messages that fail
// validation are discarded; messages whose call fails are still included
// with a failed receipt. The ledger and state journals are finalised at the
// end of the block.
func (p *StateProcessor) Process(ctx context.Context, block *Block) (*ProcessResult, error) {
	ctx, span := p.tracer.Start(ctx, "core.Process", trace.WithAttributes(
		attribute.Int64("block.number", int64(block.Number())),
		attribute.Int("block.messages", len(block.Messages)),
	))
	defer span.End()

	var (
		header = block.Header
		gp     = new(GasPool).AddGas(header.GasLimit)
		result = new(ProcessResult)
	)
	for i, msg := range block.Messages {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		hash := msg.Hash()
		p.statedb.SetTxContext(hash, len(result.Receipts))

		res, err := p.ApplyMessage(ctx, header, msg, gp)
		if err != nil {
			result.Discarded = append(result.Discarded, DiscardedMessage{Index: i, Hash: hash, Err: err})
			continue
		}
		result.GasUsed += res.UsedGas

		receipt := types.NewReceipt(nil, res.Failed(), result.GasUsed)
		receipt.TxHash = hash
		receipt.GasUsed = res.UsedGas
		receipt.Logs = p.statedb.GetLogs(hash)
		receipt.TransactionIndex = uint(len(result.Receipts))
		receipt.BlockNumber = new(big.Int).SetUint64(header.Number)
		result.Receipts = append(result.Receipts, receipt)
	}
	p.finalise()
	p.hashes[header.Number] = header.Hash()

	span.SetAttributes(
		attribute.Int64("block.gas_used", int64(result.GasUsed)),
		attribute.Int("block.discarded", len(result.Discarded)),
	)
	p.log.Info("processed block", "number", header.Number, "receipts", len(result.Receipts),
		"discarded", len(result.Discarded), "gas", result.GasUsed)
	return result, nil
}

// ApplyMessage applies one message. On error the ledger and the state are
// reverted to their values before the message and the message is discarded.
// A nil error means the message was included; its call may still have failed,
// which the result reports.
func (p *StateProcessor) ApplyMessage(ctx context.Context, header *Header, msg *Message, gp *GasPool) (*ExecutionResult, error) {
	hash := msg.Hash()
	_, span := p.tracer.Start(ctx, "core.ApplyMessage", trace.WithAttributes(
		attribute.String("tx.hash", hash.Hex()),
		attribute.String("tx.from", msg.From.Hex()),
		attribute.String("tx.value", msg.value().Dec()),
	))
	defer span.End()

	start := time.Now()
	ledgerSnap := p.ledger.Snapshot()
	stateSnap := p.statedb.Snapshot()

	res, err := p.applyMessage(header, msg, gp)
	if err != nil {
		p.ledger.RevertToSnapshot(ledgerSnap)
		p.statedb.RevertToSnapshot(stateSnap)
		metrics.TxDiscarded.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if vm.IsFatal(err) {
			p.log.Error("message aborted", "hash", hash, "err", err)
		} else {
			p.log.Debug("message discarded", "hash", hash, "err", err)
		}
		return nil, err
	}
	metrics.TxApplied.Inc()
	metrics.TxExecTime.ObserveSince(start)
	span.SetAttributes(
		attribute.Int64("tx.gas_used", int64(res.UsedGas)),
		attribute.Bool("tx.failed", res.Failed()),
	)
	return res, nil
}

func (p *StateProcessor) applyMessage(header *Header, msg *Message, gp *GasPool) (*ExecutionResult, error) {
	if msg.To == nil {
		return nil, ErrContractCreation
	}
	if err := p.preCheck(msg); err != nil {
		return nil, err
	}
	igas, err := IntrinsicGas(msg.Data)
	if err != nil {
		return nil, err
	}
	if msg.GasLimit < igas {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, msg.GasLimit, igas)
	}

	var (
		value = msg.value()
		price = msg.gasPrice()
	)
	gasCost, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(msg.GasLimit), price)
	if overflow {
		return nil, ErrGasUintOverflow
	}
	total, overflow := new(uint256.Int).AddOverflow(gasCost, value)
	if overflow {
		return nil, ErrInsufficientFunds
	}
	if have := p.ledger.Get(msg.From); have.Lt(total) {
		return nil, fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, msg.From, have.Dec(), total.Dec())
	}
	if err := gp.SubGas(msg.GasLimit); err != nil {
		return nil, err
	}

	// Buy gas. No account holds the escrow during execution, so BALANCE of
	// the coinbase does not see it.
	if err := p.ledger.Debit(msg.From, gasCost); err != nil {
		gp.AddGas(msg.GasLimit)
		return nil, err
	}
	p.statedb.SetNonce(msg.From, msg.Nonce+1)

	evm := vm.NewEVM(header.blockContext(p.GetHash), vm.TxContext{Origin: msg.From, GasPrice: price}, p.config, p.statedb, p.ledger)
	ret, gasLeft, vmErr := evm.Call(msg.From, *msg.To, msg.Data, msg.GasLimit-igas, value)
	if vm.IsFatal(vmErr) {
		gp.AddGas(msg.GasLimit)
		return nil, vmErr
	}

	refund := new(uint256.Int).Mul(uint256.NewInt(gasLeft), price)
	fee := new(uint256.Int).Sub(gasCost, refund)
	if err := p.settle(msg.From, refund); err != nil {
		gp.AddGas(msg.GasLimit)
		return nil, fmt.Errorf("gas refund: %w", err)
	}
	if err := p.settle(header.Coinbase, fee); err != nil {
		gp.AddGas(msg.GasLimit)
		return nil, fmt.Errorf("gas fee: %w", err)
	}
	gp.AddGas(gasLeft)

	return &ExecutionResult{
		UsedGas:    msg.GasLimit - gasLeft,
		Err:        vmErr,
		ReturnData: ret,
	}, nil
}

// settle credits part of the gas escrow back into the ledger.
func (p *StateProcessor) settle(addr common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return p.ledger.Credit(addr, amount)
}

// preCheck validates the sender nonce.
func (p *StateProcessor) preCheck(msg *Message) error {
	stNonce := p.statedb.GetNonce(msg.From)
	switch {
	case msg.Nonce < stNonce:
		return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooLow, msg.From, msg.Nonce, stNonce)
	case msg.Nonce > stNonce:
		return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooHigh, msg.From, msg.Nonce, stNonce)
	case stNonce+1 < stNonce:
		return fmt.Errorf("nonce uint64 overflow: address %s", msg.From)
	}
	return nil
}

// Simulate runs msg as an ordinary call against the current state and
// discards every effect, the way eth_call does. The value moves through the
// ledger like a real call, so the sender must hold it; nonce and gas price
// are not checked and no gas is bought.
func (p *StateProcessor) Simulate(ctx context.Context, header *Header, msg *Message) (*ExecutionResult, error) {
	_, span := p.tracer.Start(ctx, "core.Simulate")
	defer span.End()

	if msg.To == nil {
		return nil, ErrContractCreation
	}
	value := msg.value()
	if have := p.ledger.Get(msg.From); have.Lt(value) {
		return nil, fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, msg.From, have.Dec(), value.Dec())
	}
	ledgerSnap := p.ledger.Snapshot()
	stateSnap := p.statedb.Snapshot()
	defer func() {
		p.statedb.RevertToSnapshot(stateSnap)
		p.ledger.RevertToSnapshot(ledgerSnap)
	}()

	gas := msg.GasLimit
	if gas == 0 {
		gas = header.GasLimit
	}
	evm := vm.NewEVM(header.blockContext(p.GetHash), vm.TxContext{Origin: msg.From, GasPrice: msg.gasPrice()}, p.config, p.statedb, p.ledger)
	ret, gasLeft, err := evm.Call(msg.From, *msg.To, msg.Data, gas, value)
	if vm.IsFatal(err) {
		span.RecordError(err)
		return nil, err
	}
	return &ExecutionResult{UsedGas: gas - gasLeft, Err: err, ReturnData: ret}, nil
}

func (p *StateProcessor) finalise() {
	p.ledger.Finalise()
	if f, ok := p.statedb.(finaliser); ok {
		f.Finalise()
	}
}

// IntrinsicGas computes the gas charged before execution: the base cost
// plus a per-byte data cost.
func IntrinsicGas(data []byte) (uint64, error) {
	gas := TxGas
	if len(data) == 0 {
		return gas, nil
	}
	var nz uint64
	for _, b := range data {
		if b != 0 {
			nz++
		}
	}
	z := uint64(len(data)) - nz
	if (^uint64(0)-gas)/TxDataNonZeroGas < nz {
		return 0, ErrGasUintOverflow
	}
	gas += nz * TxDataNonZeroGas
	if (^uint64(0)-gas)/TxDataZeroGas < z {
		return 0, ErrGasUintOverflow
	}
	gas += z * TxDataZeroGas
	return gas, nil
}
