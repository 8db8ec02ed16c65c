package rawdb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// --- Balance Accessors ---

// WriteBalance stores a ledger balance as a 32-byte big-endian word.
func WriteBalance(db KeyValueWriter, addr common.Address, bal *uint256.Int) error {
	enc := bal.Bytes32()
	return db.Put(balanceKey(addr), enc[:])
}

// ReadBalance retrieves a ledger balance. Missing entries read as zero.
func ReadBalance(db KeyValueReader, addr common.Address) (*uint256.Int, error) {
	data, err := db.Get(balanceKey(addr))
	if errors.Is(err, ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) != 32 {
		return nil, fmt.Errorf("rawdb: corrupt balance for %s: %d bytes", addr, len(data))
	}
	return new(uint256.Int).SetBytes32(data), nil
}

// HasBalance reports whether a balance entry exists for addr.
func HasBalance(db KeyValueReader, addr common.Address) bool {
	ok, _ := db.Has(balanceKey(addr))
	return ok
}

// IterateBalances calls fn for every stored balance in address order.
func IterateBalances(db Iteratee, fn func(common.Address, *uint256.Int) error) error {
	it := db.NewIterator(balancePrefix)
	defer it.Release()
	for it.Next() {
		key, val := it.Key(), it.Value()
		if len(key) != len(balancePrefix)+common.AddressLength || len(val) != 32 {
			return fmt.Errorf("rawdb: corrupt balance record %x", key)
		}
		addr := common.BytesToAddress(key[len(balancePrefix):])
		if err := fn(addr, new(uint256.Int).SetBytes32(val)); err != nil {
			return err
		}
	}
	return it.Error()
}

// --- Code Accessors ---

// WriteCode stores the bytecode deployed at addr.
func WriteCode(db KeyValueWriter, addr common.Address, code []byte) error {
	return db.Put(codeKey(addr), code)
}

// ReadCode retrieves the bytecode deployed at addr.
func ReadCode(db KeyValueReader, addr common.Address) ([]byte, error) {
	return db.Get(codeKey(addr))
}

// IterateCode calls fn for every stored contract.
func IterateCode(db Iteratee, fn func(common.Address, []byte) error) error {
	it := db.NewIterator(codePrefix)
	defer it.Release()
	for it.Next() {
		addr := common.BytesToAddress(it.Key()[len(codePrefix):])
		if err := fn(addr, common.CopyBytes(it.Value())); err != nil {
			return err
		}
	}
	return it.Error()
}

// --- Nonce Accessors ---

// WriteNonce stores the nonce of addr.
func WriteNonce(db KeyValueWriter, addr common.Address, nonce uint64) error {
	return db.Put(nonceKey(addr), encodeUint64(nonce))
}

// ReadNonce retrieves the nonce of addr. Missing entries read as zero.
func ReadNonce(db KeyValueReader, addr common.Address) (uint64, error) {
	data, err := db.Get(nonceKey(addr))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("rawdb: corrupt nonce for %s", addr)
	}
	return binary.BigEndian.Uint64(data), nil
}

// IterateNonces calls fn for every stored nonce.
func IterateNonces(db Iteratee, fn func(common.Address, uint64) error) error {
	it := db.NewIterator(noncePrefix)
	defer it.Release()
	for it.Next() {
		val := it.Value()
		if len(val) != 8 {
			return fmt.Errorf("rawdb: corrupt nonce record %x", it.Key())
		}
		addr := common.BytesToAddress(it.Key()[len(noncePrefix):])
		if err := fn(addr, binary.BigEndian.Uint64(val)); err != nil {
			return err
		}
	}
	return it.Error()
}

// --- Storage Accessors ---

// WriteStorage stores one storage slot. A zero value deletes the slot.
func WriteStorage(db KeyValueWriter, addr common.Address, slot, value common.Hash) error {
	if value == (common.Hash{}) {
		return db.Delete(storageKey(addr, slot))
	}
	return db.Put(storageKey(addr, slot), value[:])
}

// ReadStorage retrieves one storage slot. Missing slots read as zero.
func ReadStorage(db KeyValueReader, addr common.Address, slot common.Hash) (common.Hash, error) {
	data, err := db.Get(storageKey(addr, slot))
	if errors.Is(err, ErrNotFound) {
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

// IterateStorage calls fn for every stored slot.
func IterateStorage(db Iteratee, fn func(common.Address, common.Hash, common.Hash) error) error {
	it := db.NewIterator(storagePrefix)
	defer it.Release()
	for it.Next() {
		key := it.Key()
		if len(key) != len(storagePrefix)+common.AddressLength+common.HashLength {
			return fmt.Errorf("rawdb: corrupt storage record %x", key)
		}
		rest := key[len(storagePrefix):]
		addr := common.BytesToAddress(rest[:common.AddressLength])
		slot := common.BytesToHash(rest[common.AddressLength:])
		if err := fn(addr, slot, common.BytesToHash(it.Value())); err != nil {
			return err
		}
	}
	return it.Error()
}

// DeleteAccount removes the code, nonce and every storage slot of addr.
// Slots are enumerated from r and deleted through w. The balance entry
// belongs to the ledger and is left alone.
func DeleteAccount(r Iteratee, w KeyValueWriter, addr common.Address) error {
	it := r.NewIterator(storageAccountPrefix(addr))
	var keys [][]byte
	for it.Next() {
		keys = append(keys, common.CopyBytes(it.Key()))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}
	keys = append(keys, codeKey(addr), nonceKey(addr))
	for _, key := range keys {
		if err := w.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// --- Bridge and chain markers ---

// WriteDepositApplied marks a bridge deposit as minted.
func WriteDepositApplied(db KeyValueWriter, id common.Hash) error {
	return db.Put(depositKey(id), []byte{1})
}

// HasDepositApplied reports whether a bridge deposit was already minted.
func HasDepositApplied(db KeyValueReader, id common.Hash) bool {
	ok, _ := db.Has(depositKey(id))
	return ok
}

// WriteHeadNumber stores the number of the last applied block.
func WriteHeadNumber(db KeyValueWriter, number uint64) error {
	return db.Put(headKey, encodeUint64(number))
}

// ReadHeadNumber returns the number of the last applied block, or zero.
func ReadHeadNumber(db KeyValueReader) (uint64, error) {
	data, err := db.Get(headKey)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, errors.New("rawdb: corrupt head number")
	}
	return binary.BigEndian.Uint64(data), nil
}
