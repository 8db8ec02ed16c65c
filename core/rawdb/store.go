package rawdb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StateStore adapts a Database to the ledger and world-state persistence
// interfaces. Writes are staged in a batch and land atomically on Flush.
type StateStore struct {
	db    Database
	batch Batch
}

// NewStateStore returns a store over db with an empty pending batch.
func NewStateStore(db Database) *StateStore {
	return &StateStore{db: db, batch: db.NewBatch()}
}

// Database returns the underlying database.
func (s *StateStore) Database() Database { return s.db }

func (s *StateStore) WriteBalance(addr common.Address, bal *uint256.Int) error {
	return WriteBalance(s.batch, addr, bal)
}

func (s *StateStore) WriteNonce(addr common.Address, nonce uint64) error {
	return WriteNonce(s.batch, addr, nonce)
}

func (s *StateStore) WriteCode(addr common.Address, code []byte) error {
	return WriteCode(s.batch, addr, code)
}

func (s *StateStore) WriteStorage(addr common.Address, key, value common.Hash) error {
	return WriteStorage(s.batch, addr, key, value)
}

func (s *StateStore) DeleteAccount(addr common.Address) error {
	return DeleteAccount(s.db, s.batch, addr)
}

func (s *StateStore) IterateBalances(fn func(common.Address, *uint256.Int) error) error {
	return IterateBalances(s.db, fn)
}

func (s *StateStore) IterateNonces(fn func(common.Address, uint64) error) error {
	return IterateNonces(s.db, fn)
}

func (s *StateStore) IterateCode(fn func(common.Address, []byte) error) error {
	return IterateCode(s.db, fn)
}

func (s *StateStore) IterateStorage(fn func(common.Address, common.Hash, common.Hash) error) error {
	return IterateStorage(s.db, fn)
}

// WriteHeadNumber stages the number of the last applied block.
func (s *StateStore) WriteHeadNumber(number uint64) error {
	return WriteHeadNumber(s.batch, number)
}

// ReadHeadNumber returns the committed head number.
func (s *StateStore) ReadHeadNumber() (uint64, error) {
	return ReadHeadNumber(s.db)
}

// MarkDepositApplied stages the applied marker for a bridge deposit.
func (s *StateStore) MarkDepositApplied(id common.Hash) error {
	return WriteDepositApplied(s.batch, id)
}

// DepositApplied reports whether a committed marker exists for id.
func (s *StateStore) DepositApplied(id common.Hash) bool {
	return HasDepositApplied(s.db, id)
}

// Pending returns the number of staged operations.
func (s *StateStore) Pending() int { return s.batch.Len() }

// Flush writes the staged batch and starts a new one.
func (s *StateStore) Flush() error {
	if s.batch.Len() == 0 {
		return nil
	}
	if err := s.batch.Write(); err != nil {
		return err
	}
	s.batch.Reset()
	return nil
}
