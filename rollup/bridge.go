// Package rollup connects the balance ledger to the L1 bridge: confirmed
// deposits mint balance, withdrawals burn it.
package rollup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core/ledger"
	"github.com/bitnetwork/bvm/crypto"
	"github.com/bitnetwork/bvm/log"
)

// DefaultConfirmationBlocks is the number of L1 blocks a deposit must be
// buried under before it is minted.
const DefaultConfirmationBlocks = 50

// Status is the lifecycle stage of a deposit or withdrawal.
type Status uint8

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusProven
	StatusFinalized
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusProven:
		return "proven"
	case StatusFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Bridge errors.
var (
	ErrDepositZeroAmount    = errors.New("bridge: deposit amount must be positive")
	ErrWithdrawalZeroAmount = errors.New("bridge: withdrawal amount must be positive")
	ErrMaxPendingDeposits   = errors.New("bridge: maximum pending deposits reached")
	ErrWithdrawalNotFound   = errors.New("bridge: withdrawal not found")
	ErrWithdrawalNotProven  = errors.New("bridge: withdrawal not proven")
	ErrWithdrawalAlready    = errors.New("bridge: withdrawal already finalized")
	ErrDepositNotFound      = errors.New("bridge: deposit not found")
	ErrDepositKnown         = errors.New("bridge: deposit already queued")
	ErrDepositApplied       = errors.New("bridge: deposit already applied")
	ErrProofEmpty           = errors.New("bridge: proof data is empty")
)

// BridgeConfig controls the L1-L2 bridge behavior.
type BridgeConfig struct {
	// L1ContractAddr is the bridge contract address on L1.
	L1ContractAddr common.Address

	// ConfirmationBlocks is the number of L1 blocks required to confirm a deposit.
	ConfirmationBlocks uint64

	// MaxPendingDeposits is the maximum number of unconfirmed deposits allowed.
	MaxPendingDeposits int
}

// DefaultBridgeConfig returns a BridgeConfig with sensible defaults.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		ConfirmationBlocks: DefaultConfirmationBlocks,
		MaxPendingDeposits: 256,
	}
}

// BridgeDeposit is an L1->L2 deposit. Its amount is minted to To once it
// has enough confirmations.
type BridgeDeposit struct {
	ID      common.Hash
	From    common.Address // L1 sender
	To      common.Address // L2 recipient
	Amount  *uint256.Int
	L1Block uint64
	// LogIndex is the position of the deposit event within its L1 block.
	LogIndex uint64
	Status   Status
	seq      uint64
}

// BridgeWithdrawal is an L2->L1 withdrawal. Its amount is burned when it is
// initiated.
type BridgeWithdrawal struct {
	ID        common.Hash
	From      common.Address // L2 sender
	To        common.Address // L1 recipient
	Amount    *uint256.Int
	ProofData []byte
	Status    Status
	seq       uint64
}

// Bridge manages L1<->L2 deposits and withdrawals against a balance hook.
// The hook is not locked by the bridge; callers serialise ledger access.
type Bridge struct {
	mu          sync.Mutex
	config      BridgeConfig
	hook        ledger.BalanceHook
	deposits    map[common.Hash]*BridgeDeposit
	withdrawals map[common.Hash]*BridgeWithdrawal
	depositSeq  uint64
	withdrawSeq uint64
	applied     func(common.Hash) bool
	log         *log.Logger
}

// NewBridge creates a new Bridge minting and burning through hook.
func NewBridge(config BridgeConfig, hook ledger.BalanceHook) *Bridge {
	return &Bridge{
		config:      config,
		hook:        hook,
		deposits:    make(map[common.Hash]*BridgeDeposit),
		withdrawals: make(map[common.Hash]*BridgeWithdrawal),
		applied:     func(common.Hash) bool { return false },
		log:         log.Default().Module("rollup"),
	}
}

// SetAppliedFilter installs the check for deposits minted in an earlier
// run. Such deposits are refused by Deposit and never minted again.
func (b *Bridge) SetAppliedFilter(applied func(id common.Hash) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = applied
}

// Deposit records a pending L1->L2 deposit emitted at (l1Block, logIndex).
// The ID depends only on the L1 event, so observing it twice is refused.
func (b *Bridge) Deposit(from, to common.Address, amount *uint256.Int, l1Block, logIndex uint64) (*BridgeDeposit, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrDepositZeroAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := DepositID(from, to, amount, l1Block, logIndex)
	if _, ok := b.deposits[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDepositKnown, id)
	}
	if b.applied(id) {
		return nil, fmt.Errorf("%w: %s", ErrDepositApplied, id)
	}

	pending := 0
	for _, d := range b.deposits {
		if d.Status == StatusPending {
			pending++
		}
	}
	if pending >= b.config.MaxPendingDeposits {
		return nil, ErrMaxPendingDeposits
	}

	b.depositSeq++
	dep := &BridgeDeposit{
		ID:       id,
		From:     from,
		To:       to,
		Amount:   amount.Clone(),
		L1Block:  l1Block,
		LogIndex: logIndex,
		Status:   StatusPending,
		seq:      b.depositSeq,
	}
	b.deposits[dep.ID] = dep
	b.log.Debug("deposit queued", "id", dep.ID, "to", to, "amount", amount, "l1block", l1Block)
	return dep, nil
}

// ConfirmDeposits mints every pending deposit that has at least
// ConfirmationBlocks confirmations at l1Block, oldest first. It stops at the
// first mint failure, leaving that deposit and the rest pending. Deposits
// the applied filter reports are marked confirmed without minting.
func (b *Bridge) ConfirmDeposits(l1Block uint64) ([]*BridgeDeposit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var confirmed []*BridgeDeposit
	for _, d := range b.sortedDeposits(StatusPending) {
		if l1Block < d.L1Block+b.config.ConfirmationBlocks {
			continue
		}
		if b.applied(d.ID) {
			d.Status = StatusConfirmed
			b.log.Warn("deposit already applied", "id", d.ID)
			continue
		}
		if err := b.hook.Mint(d.To, d.Amount); err != nil {
			return confirmed, fmt.Errorf("confirm deposit %s: %w", d.ID, err)
		}
		d.Status = StatusConfirmed
		confirmed = append(confirmed, d)
	}
	if len(confirmed) > 0 {
		b.log.Info("deposits confirmed", "count", len(confirmed), "l1block", l1Block)
	}
	return confirmed, nil
}

// InitiateWithdrawal burns amount from the L2 sender and records a pending
// withdrawal to the L1 recipient. A failed burn leaves nothing recorded.
func (b *Bridge) InitiateWithdrawal(from, to common.Address, amount *uint256.Int) (*BridgeWithdrawal, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrWithdrawalZeroAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.hook.Burn(from, amount); err != nil {
		return nil, err
	}
	b.withdrawSeq++
	w := &BridgeWithdrawal{
		ID:     WithdrawalID(from, to, amount, b.withdrawSeq),
		From:   from,
		To:     to,
		Amount: amount.Clone(),
		Status: StatusPending,
		seq:    b.withdrawSeq,
	}
	b.withdrawals[w.ID] = w
	b.log.Info("withdrawal initiated", "id", w.ID, "from", from, "amount", amount)
	return w, nil
}

// ProveWithdrawal attaches a proof to a withdrawal that is not yet finalized.
func (b *Bridge) ProveWithdrawal(id common.Hash, proofData []byte) error {
	if len(proofData) == 0 {
		return ErrProofEmpty
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.withdrawals[id]
	if !ok {
		return ErrWithdrawalNotFound
	}
	if w.Status == StatusFinalized {
		return ErrWithdrawalAlready
	}
	w.ProofData = common.CopyBytes(proofData)
	w.Status = StatusProven
	return nil
}

// FinalizeWithdrawal marks a proven withdrawal as released on L1.
func (b *Bridge) FinalizeWithdrawal(id common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.withdrawals[id]
	if !ok {
		return ErrWithdrawalNotFound
	}
	switch w.Status {
	case StatusFinalized:
		return ErrWithdrawalAlready
	case StatusProven:
	default:
		return ErrWithdrawalNotProven
	}
	w.Status = StatusFinalized
	b.log.Info("withdrawal finalized", "id", id)
	return nil
}

// GetDeposit returns the deposit with the given ID.
func (b *Bridge) GetDeposit(id common.Hash) (*BridgeDeposit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.deposits[id]
	if !ok {
		return nil, ErrDepositNotFound
	}
	return d, nil
}

// GetWithdrawal returns the withdrawal with the given ID.
func (b *Bridge) GetWithdrawal(id common.Hash) (*BridgeWithdrawal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.withdrawals[id]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	return w, nil
}

// PendingDeposits returns all pending deposits in arrival order.
func (b *Bridge) PendingDeposits() []*BridgeDeposit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedDeposits(StatusPending)
}

// PendingWithdrawals returns all pending withdrawals in arrival order.
func (b *Bridge) PendingWithdrawals() []*BridgeWithdrawal {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []*BridgeWithdrawal
	for _, w := range b.withdrawals {
		if w.Status == StatusPending {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

func (b *Bridge) sortedDeposits(status Status) []*BridgeDeposit {
	var result []*BridgeDeposit
	for _, d := range b.deposits {
		if d.Status == status {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

// DepositID derives a deterministic deposit ID from the L1 deposit event.
func DepositID(from, to common.Address, amount *uint256.Int, l1Block, logIndex uint64) common.Hash {
	amt := amount.Bytes32()
	return crypto.Keccak256Hash(from[:], to[:], amt[:],
		binary.BigEndian.AppendUint64(nil, l1Block),
		binary.BigEndian.AppendUint64(nil, logIndex))
}

// WithdrawalID derives a deterministic withdrawal ID from its parameters.
func WithdrawalID(from, to common.Address, amount *uint256.Int, seq uint64) common.Hash {
	amt := amount.Bytes32()
	return crypto.Keccak256Hash(from[:], to[:], amt[:],
		binary.BigEndian.AppendUint64(nil, seq))
}
