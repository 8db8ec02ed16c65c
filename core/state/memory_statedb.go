package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bitnetwork/bvm/crypto"
)

// stateObject is one account's non-value state.
type stateObject struct {
	nonce            uint64
	code             []byte
	codeHash         common.Hash
	dirtyStorage     map[common.Hash]common.Hash
	committedStorage map[common.Hash]common.Hash
	selfDestructed   bool
}

func newStateObject() *stateObject {
	return &stateObject{
		codeHash:         crypto.EmptyCodeHash,
		dirtyStorage:     make(map[common.Hash]common.Hash),
		committedStorage: make(map[common.Hash]common.Hash),
	}
}

// MemoryStateDB is an in-memory StateDB with journaled snapshots.
type MemoryStateDB struct {
	stateObjects map[common.Address]*stateObject
	journal      *journal
	logs         map[common.Hash][]*types.Log
	logSize      uint

	txHash  common.Hash
	txIndex int
}

// NewMemoryStateDB creates an empty state.
func NewMemoryStateDB() *MemoryStateDB {
	return &MemoryStateDB{
		stateObjects: make(map[common.Address]*stateObject),
		journal:      newJournal(),
		logs:         make(map[common.Hash][]*types.Log),
	}
}

func (s *MemoryStateDB) getStateObject(addr common.Address) *stateObject {
	return s.stateObjects[addr]
}

func (s *MemoryStateDB) getOrNewStateObject(addr common.Address) *stateObject {
	if obj := s.stateObjects[addr]; obj != nil {
		return obj
	}
	obj := newStateObject()
	s.journal.append(createAccountChange{addr: addr})
	s.stateObjects[addr] = obj
	return obj
}

// --- Account operations ---

func (s *MemoryStateDB) CreateAccount(addr common.Address) {
	s.journal.append(createAccountChange{addr: addr, prev: s.stateObjects[addr]})
	s.stateObjects[addr] = newStateObject()
}

func (s *MemoryStateDB) GetNonce(addr common.Address) uint64 {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.nonce
	}
	return 0
}

func (s *MemoryStateDB) SetNonce(addr common.Address, nonce uint64) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(nonceChange{addr: addr, prev: obj.nonce})
	obj.nonce = nonce
}

func (s *MemoryStateDB) GetCode(addr common.Address) []byte {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.code
	}
	return nil
}

func (s *MemoryStateDB) SetCode(addr common.Address, code []byte) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(codeChange{addr: addr, prevCode: obj.code, prevHash: obj.codeHash})
	obj.code = common.CopyBytes(code)
	obj.codeHash = crypto.Keccak256Hash(code)
}

func (s *MemoryStateDB) GetCodeHash(addr common.Address) common.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.codeHash
	}
	return common.Hash{}
}

func (s *MemoryStateDB) GetCodeSize(addr common.Address) int {
	if obj := s.getStateObject(addr); obj != nil {
		return len(obj.code)
	}
	return 0
}

// --- Self-destruct ---

// SelfDestruct flags addr. Its balance is moved by the caller through the
// ledger; the flag only clears code and storage at Finalise.
func (s *MemoryStateDB) SelfDestruct(addr common.Address) {
	obj := s.getStateObject(addr)
	if obj == nil {
		return
	}
	s.journal.append(selfDestructChange{addr: addr, prev: obj.selfDestructed})
	obj.selfDestructed = true
}

func (s *MemoryStateDB) HasSelfDestructed(addr common.Address) bool {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// --- Storage operations ---

func (s *MemoryStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		if val, ok := obj.dirtyStorage[key]; ok {
			return val
		}
		return obj.committedStorage[key]
	}
	return common.Hash{}
}

func (s *MemoryStateDB) SetState(addr common.Address, key common.Hash, value common.Hash) {
	obj := s.getOrNewStateObject(addr)
	prev, prevExists := obj.dirtyStorage[key]
	s.journal.append(storageChange{addr: addr, key: key, prev: prev, prevExists: prevExists})
	obj.dirtyStorage[key] = value
}

func (s *MemoryStateDB) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.committedStorage[key]
	}
	return common.Hash{}
}

// --- Account existence ---

func (s *MemoryStateDB) Exist(addr common.Address) bool {
	return s.stateObjects[addr] != nil
}

// Accounts returns the number of known accounts.
func (s *MemoryStateDB) Accounts() int {
	return len(s.stateObjects)
}

// --- Snapshot and revert ---

func (s *MemoryStateDB) Snapshot() int {
	return s.journal.snapshot()
}

func (s *MemoryStateDB) RevertToSnapshot(id int) {
	s.journal.revertToSnapshot(id, s)
}

// --- Logs ---

// SetTxContext sets the transaction that subsequent logs belong to.
func (s *MemoryStateDB) SetTxContext(txHash common.Hash, txIndex int) {
	s.txHash = txHash
	s.txIndex = txIndex
}

func (s *MemoryStateDB) AddLog(log *types.Log) {
	log.TxHash = s.txHash
	log.TxIndex = uint(s.txIndex)
	log.Index = s.logSize
	s.journal.append(logChange{txHash: s.txHash, prevLen: len(s.logs[s.txHash])})
	s.logs[s.txHash] = append(s.logs[s.txHash], log)
	s.logSize++
}

func (s *MemoryStateDB) GetLogs(txHash common.Hash) []*types.Log {
	return s.logs[txHash]
}

// Finalise removes self-destructed accounts, folds dirty storage into the
// committed view and drops the journal. Snapshots taken earlier become
// invalid.
func (s *MemoryStateDB) Finalise() {
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			delete(s.stateObjects, addr)
			continue
		}
		for key, val := range obj.dirtyStorage {
			if val == (common.Hash{}) {
				delete(obj.committedStorage, key)
			} else {
				obj.committedStorage[key] = val
			}
		}
		obj.dirtyStorage = make(map[common.Hash]common.Hash)
	}
	s.journal = newJournal()
}

// Verify interface compliance at compile time.
var _ StateDB = (*MemoryStateDB)(nil)
