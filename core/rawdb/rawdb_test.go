package rawdb

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestBalanceRoundTrip(t *testing.T) {
	db := NewMemoryDB()
	defer db.Close()
	addr := common.HexToAddress("0x01")

	bal, err := ReadBalance(db, addr)
	if err != nil || !bal.IsZero() {
		t.Fatalf("missing balance: got %v, %v", bal, err)
	}
	if HasBalance(db, addr) {
		t.Fatal("unexpected balance entry")
	}
	if err := WriteBalance(db, addr, uint256.NewInt(42000)); err != nil {
		t.Fatalf("write: %v", err)
	}
	bal, err = ReadBalance(db, addr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bal.Uint64() != 42000 {
		t.Fatalf("expected 42000, got %s", bal)
	}
}

func TestIterateBalancesOrdered(t *testing.T) {
	db := NewMemoryDB()
	defer db.Close()
	a := common.HexToAddress("0x02")
	b := common.HexToAddress("0x01")
	WriteBalance(db, a, uint256.NewInt(2))
	WriteBalance(db, b, uint256.NewInt(1))
	WriteNonce(db, a, 9) // other prefixes must not leak in

	var seen []common.Address
	err := IterateBalances(db, func(addr common.Address, bal *uint256.Int) error {
		seen = append(seen, addr)
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(seen) != 2 || seen[0] != b || seen[1] != a {
		t.Fatalf("unexpected iteration order %v", seen)
	}
}

func TestStorageAndDeleteAccount(t *testing.T) {
	db := NewMemoryDB()
	defer db.Close()
	addr := common.HexToAddress("0x0a")
	other := common.HexToAddress("0x0b")
	slot := common.HexToHash("0x01")

	WriteCode(db, addr, []byte{0x00})
	WriteNonce(db, addr, 1)
	WriteStorage(db, addr, slot, common.HexToHash("0xff"))
	WriteStorage(db, other, slot, common.HexToHash("0xee"))
	WriteBalance(db, addr, uint256.NewInt(5))

	if v, _ := ReadStorage(db, addr, slot); v != common.HexToHash("0xff") {
		t.Fatalf("unexpected slot value %x", v)
	}
	if err := DeleteAccount(db, db, addr); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if v, _ := ReadStorage(db, addr, slot); v != (common.Hash{}) {
		t.Fatalf("slot should be gone, got %x", v)
	}
	if _, err := ReadCode(db, addr); err != ErrNotFound {
		t.Fatalf("code should be gone, got %v", err)
	}
	if n, _ := ReadNonce(db, addr); n != 0 {
		t.Fatalf("nonce should be gone, got %d", n)
	}
	if v, _ := ReadStorage(db, other, slot); v != common.HexToHash("0xee") {
		t.Fatal("other account's storage must survive")
	}
	if !HasBalance(db, addr) {
		t.Fatal("balance entry is owned by the ledger and must survive")
	}
}

func TestWriteZeroStorageDeletes(t *testing.T) {
	db := NewMemoryDB()
	defer db.Close()
	addr := common.HexToAddress("0x0a")
	slot := common.HexToHash("0x01")

	WriteStorage(db, addr, slot, common.HexToHash("0x01"))
	WriteStorage(db, addr, slot, common.Hash{})
	if ok, _ := db.Has(storageKey(addr, slot)); ok {
		t.Fatal("zero write should delete the slot")
	}
}

func TestStateStoreBatching(t *testing.T) {
	db := NewMemoryDB()
	defer db.Close()
	store := NewStateStore(db)
	addr := common.HexToAddress("0x0c")

	if err := store.WriteBalance(addr, uint256.NewInt(15)); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if HasBalance(db, addr) {
		t.Fatal("staged write must not be visible before Flush")
	}
	if store.Pending() != 1 {
		t.Fatalf("expected 1 pending op, got %d", store.Pending())
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if bal, _ := ReadBalance(db, addr); bal.Uint64() != 15 {
		t.Fatalf("expected 15 after flush, got %s", bal)
	}
	if store.Pending() != 0 {
		t.Fatal("batch should be reset after Flush")
	}
}

func TestMarkers(t *testing.T) {
	db := NewMemoryDB()
	defer db.Close()
	id := common.HexToHash("0xabcd")

	if HasDepositApplied(db, id) {
		t.Fatal("unexpected deposit marker")
	}
	WriteDepositApplied(db, id)
	if !HasDepositApplied(db, id) {
		t.Fatal("deposit marker missing")
	}

	if n, _ := ReadHeadNumber(db); n != 0 {
		t.Fatalf("expected head 0, got %d", n)
	}
	WriteHeadNumber(db, 12)
	if n, _ := ReadHeadNumber(db); n != 12 {
		t.Fatalf("expected head 12, got %d", n)
	}
}

func TestLevelDBOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chaindata")
	db, err := NewLevelDB(dir, 16, 16)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	addr := common.HexToAddress("0x0d")
	WriteNonce(db, addr, 3)
	db.Close()

	db, err = NewLevelDB(dir, 16, 16)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if n, _ := ReadNonce(db, addr); n != 3 {
		t.Fatalf("expected nonce 3 after reopen, got %d", n)
	}
}
