package rollup

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core/ledger"
)

var (
	l1Sender = common.HexToAddress("0x1111111111111111111111111111111111111111")
	l2User   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newTestBridge() (*Bridge, *ledger.Ledger) {
	l := ledger.New()
	return NewBridge(DefaultBridgeConfig(), l), l
}

func TestDeposit(t *testing.T) {
	bridge, l := newTestBridge()

	dep, err := bridge.Deposit(l1Sender, l2User, uint256.NewInt(1_000_000_000), 100, 0)
	if err != nil {
		t.Fatalf("Deposit error: %v", err)
	}
	if dep.ID == (common.Hash{}) {
		t.Error("expected non-zero deposit ID")
	}
	if dep.From != l1Sender || dep.To != l2User {
		t.Error("address mismatch")
	}
	if dep.L1Block != 100 {
		t.Errorf("L1Block: got %d, want 100", dep.L1Block)
	}
	if dep.Status != StatusPending {
		t.Errorf("Status: got %s, want %s", dep.Status, StatusPending)
	}
	if !l.Get(l2User).IsZero() {
		t.Error("pending deposit must not mint")
	}
}

func TestDepositZeroAmount(t *testing.T) {
	bridge, _ := newTestBridge()
	if _, err := bridge.Deposit(l1Sender, l2User, new(uint256.Int), 100, 0); !errors.Is(err, ErrDepositZeroAmount) {
		t.Errorf("expected ErrDepositZeroAmount, got %v", err)
	}
	if _, err := bridge.Deposit(l1Sender, l2User, nil, 100, 0); !errors.Is(err, ErrDepositZeroAmount) {
		t.Errorf("expected ErrDepositZeroAmount for nil amount, got %v", err)
	}
}

func TestDepositDistinctIDs(t *testing.T) {
	bridge, _ := newTestBridge()
	a, _ := bridge.Deposit(l1Sender, l2User, uint256.NewInt(5), 100, 0)
	b, _ := bridge.Deposit(l1Sender, l2User, uint256.NewInt(5), 100, 1)
	if a.ID == b.ID {
		t.Fatal("deposits at different log indexes share an ID")
	}
	if a.ID != DepositID(l1Sender, l2User, uint256.NewInt(5), 100, 0) {
		t.Error("ID does not match DepositID")
	}
}

func TestDepositSameEventRefused(t *testing.T) {
	bridge, _ := newTestBridge()
	if _, err := bridge.Deposit(l1Sender, l2User, uint256.NewInt(5), 100, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := bridge.Deposit(l1Sender, l2User, uint256.NewInt(5), 100, 3); !errors.Is(err, ErrDepositKnown) {
		t.Fatalf("err = %v, want %v", err, ErrDepositKnown)
	}
	if got := len(bridge.PendingDeposits()); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
}

func TestDepositAppliedFilter(t *testing.T) {
	bridge, l := newTestBridge()
	done := DepositID(l1Sender, l2User, uint256.NewInt(77), 100, 0)
	bridge.SetAppliedFilter(func(id common.Hash) bool { return id == done })

	if _, err := bridge.Deposit(l1Sender, l2User, uint256.NewInt(77), 100, 0); !errors.Is(err, ErrDepositApplied) {
		t.Fatalf("err = %v, want %v", err, ErrDepositApplied)
	}
	if _, err := bridge.Deposit(l1Sender, l2User, uint256.NewInt(5), 100, 1); err != nil {
		t.Fatal(err)
	}
	confirmed, err := bridge.ConfirmDeposits(1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(confirmed) != 1 {
		t.Fatalf("confirmed %d deposits, want 1", len(confirmed))
	}
	if got := l.Get(l2User).Uint64(); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}
}

func TestConfirmDepositsSkipsApplied(t *testing.T) {
	bridge, l := newTestBridge()
	dep, err := bridge.Deposit(l1Sender, l2User, uint256.NewInt(9), 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Marked applied after queueing, e.g. by a direct mint.
	bridge.SetAppliedFilter(func(id common.Hash) bool { return id == dep.ID })

	confirmed, err := bridge.ConfirmDeposits(1000)
	if err != nil || len(confirmed) != 0 {
		t.Fatalf("confirmed %d deposits, err %v", len(confirmed), err)
	}
	if dep.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", dep.Status)
	}
	if !l.Get(l2User).IsZero() {
		t.Error("applied deposit minted again")
	}
}

func TestMaxPendingDeposits(t *testing.T) {
	cfg := DefaultBridgeConfig()
	cfg.MaxPendingDeposits = 2
	bridge := NewBridge(cfg, ledger.New())
	for i := uint64(0); i < 2; i++ {
		if _, err := bridge.Deposit(l1Sender, l2User, uint256.NewInt(1), 1, i); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := bridge.Deposit(l1Sender, l2User, uint256.NewInt(1), 1, 2); !errors.Is(err, ErrMaxPendingDeposits) {
		t.Fatalf("expected ErrMaxPendingDeposits, got %v", err)
	}
}

func TestConfirmDeposits(t *testing.T) {
	bridge, l := newTestBridge()
	bridge.Deposit(l1Sender, l2User, uint256.NewInt(100), 100, 0)
	bridge.Deposit(l1Sender, l2User, uint256.NewInt(200), 120, 0)

	confirmed, err := bridge.ConfirmDeposits(149)
	if err != nil || len(confirmed) != 0 {
		t.Fatalf("early confirm: %d deposits, err %v", len(confirmed), err)
	}

	confirmed, err = bridge.ConfirmDeposits(150)
	if err != nil {
		t.Fatal(err)
	}
	if len(confirmed) != 1 || confirmed[0].Status != StatusConfirmed {
		t.Fatalf("confirmed %d deposits, want 1", len(confirmed))
	}
	if got := l.Get(l2User).Uint64(); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
	if got := len(bridge.PendingDeposits()); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}

	confirmed, _ = bridge.ConfirmDeposits(1000)
	if len(confirmed) != 1 {
		t.Fatalf("confirmed %d deposits, want 1", len(confirmed))
	}
	if got := l.TotalSupply().Uint64(); got != 300 {
		t.Errorf("supply = %d, want 300", got)
	}
	if again, _ := bridge.ConfirmDeposits(2000); len(again) != 0 {
		t.Error("deposit minted twice")
	}
}

func TestConfirmDepositsMintFailure(t *testing.T) {
	bridge, l := newTestBridge()
	full := new(uint256.Int).SetAllOne()
	if err := l.Mint(l2User, full); err != nil {
		t.Fatal(err)
	}
	dep, _ := bridge.Deposit(l1Sender, l2User, uint256.NewInt(1), 0, 0)

	if _, err := bridge.ConfirmDeposits(100); !errors.Is(err, ledger.ErrOverflow) {
		t.Fatalf("err = %v, want %v", err, ledger.ErrOverflow)
	}
	if dep.Status != StatusPending {
		t.Errorf("status = %s, want pending", dep.Status)
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	bridge, l := newTestBridge()
	if err := l.Mint(l2User, uint256.NewInt(1000)); err != nil {
		t.Fatal(err)
	}

	w, err := bridge.InitiateWithdrawal(l2User, l1Sender, uint256.NewInt(400))
	if err != nil {
		t.Fatal(err)
	}
	if got := l.Get(l2User).Uint64(); got != 600 {
		t.Errorf("balance after burn = %d, want 600", got)
	}
	if got := l.TotalSupply().Uint64(); got != 600 {
		t.Errorf("supply after burn = %d, want 600", got)
	}
	if len(bridge.PendingWithdrawals()) != 1 {
		t.Error("expected one pending withdrawal")
	}

	if err := bridge.FinalizeWithdrawal(w.ID); !errors.Is(err, ErrWithdrawalNotProven) {
		t.Errorf("finalize unproven: err = %v", err)
	}
	if err := bridge.ProveWithdrawal(w.ID, nil); !errors.Is(err, ErrProofEmpty) {
		t.Errorf("empty proof: err = %v", err)
	}
	if err := bridge.ProveWithdrawal(w.ID, []byte{0x01}); err != nil {
		t.Fatal(err)
	}
	if err := bridge.FinalizeWithdrawal(w.ID); err != nil {
		t.Fatal(err)
	}
	if err := bridge.FinalizeWithdrawal(w.ID); !errors.Is(err, ErrWithdrawalAlready) {
		t.Errorf("double finalize: err = %v", err)
	}
	if err := bridge.ProveWithdrawal(w.ID, []byte{0x02}); !errors.Is(err, ErrWithdrawalAlready) {
		t.Errorf("prove finalized: err = %v", err)
	}
	got, err := bridge.GetWithdrawal(w.ID)
	if err != nil || got.Status != StatusFinalized {
		t.Errorf("GetWithdrawal = %v, %v", got, err)
	}
}

func TestWithdrawalInsufficientBalance(t *testing.T) {
	bridge, l := newTestBridge()
	l.Mint(l2User, uint256.NewInt(10))

	if _, err := bridge.InitiateWithdrawal(l2User, l1Sender, uint256.NewInt(11)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want %v", err, ledger.ErrInsufficientBalance)
	}
	if len(bridge.PendingWithdrawals()) != 0 {
		t.Error("failed burn recorded a withdrawal")
	}
	if got := l.Get(l2User).Uint64(); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}
}

func TestWithdrawalNotFound(t *testing.T) {
	bridge, _ := newTestBridge()
	if err := bridge.ProveWithdrawal(common.Hash{1}, []byte{1}); !errors.Is(err, ErrWithdrawalNotFound) {
		t.Errorf("prove: err = %v", err)
	}
	if err := bridge.FinalizeWithdrawal(common.Hash{1}); !errors.Is(err, ErrWithdrawalNotFound) {
		t.Errorf("finalize: err = %v", err)
	}
	if _, err := bridge.GetDeposit(common.Hash{1}); !errors.Is(err, ErrDepositNotFound) {
		t.Errorf("deposit: err = %v", err)
	}
	if _, err := bridge.InitiateWithdrawal(l2User, l1Sender, nil); !errors.Is(err, ErrWithdrawalZeroAmount) {
		t.Errorf("zero withdrawal: err = %v", err)
	}
}

func TestStatusString(t *testing.T) {
	if StatusProven.String() != "proven" || Status(9).String() != "status(9)" {
		t.Error("unexpected status names")
	}
}
