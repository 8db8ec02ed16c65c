package state

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitnetwork/bvm/crypto"
)

// Writer receives the state on Commit.
type Writer interface {
	WriteNonce(addr common.Address, nonce uint64) error
	WriteCode(addr common.Address, code []byte) error
	WriteStorage(addr common.Address, key, value common.Hash) error
	DeleteAccount(addr common.Address) error
}

// Reader replays stored state on Load.
type Reader interface {
	IterateNonces(fn func(addr common.Address, nonce uint64) error) error
	IterateCode(fn func(addr common.Address, code []byte) error) error
	IterateStorage(fn func(addr common.Address, key, value common.Hash) error) error
}

// Commit finalises pending changes and writes every account to w in
// address order. Self-destructed accounts are deleted from w and cleared
// slots are written as zero.
func (s *MemoryStateDB) Commit(w Writer) error {
	type slot struct {
		addr common.Address
		key  common.Hash
	}
	var (
		destructed []common.Address
		cleared    []slot
	)
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			destructed = append(destructed, addr)
			continue
		}
		for key, val := range obj.dirtyStorage {
			if val == (common.Hash{}) {
				cleared = append(cleared, slot{addr, key})
			}
		}
	}
	s.Finalise()
	for _, addr := range destructed {
		if err := w.DeleteAccount(addr); err != nil {
			return err
		}
	}
	for _, sl := range cleared {
		if err := w.WriteStorage(sl.addr, sl.key, common.Hash{}); err != nil {
			return err
		}
	}

	addrs := make([]common.Address, 0, len(s.stateObjects))
	for addr := range s.stateObjects {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	for _, addr := range addrs {
		obj := s.stateObjects[addr]
		if err := w.WriteNonce(addr, obj.nonce); err != nil {
			return err
		}
		if len(obj.code) > 0 {
			if err := w.WriteCode(addr, obj.code); err != nil {
				return err
			}
		}
		for key, val := range obj.committedStorage {
			if err := w.WriteStorage(addr, key, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load fills an empty state from r.
func (s *MemoryStateDB) Load(r Reader) error {
	err := r.IterateNonces(func(addr common.Address, nonce uint64) error {
		s.loadObject(addr).nonce = nonce
		return nil
	})
	if err != nil {
		return err
	}
	err = r.IterateCode(func(addr common.Address, code []byte) error {
		obj := s.loadObject(addr)
		obj.code = common.CopyBytes(code)
		obj.codeHash = crypto.Keccak256Hash(code)
		return nil
	})
	if err != nil {
		return err
	}
	return r.IterateStorage(func(addr common.Address, key, value common.Hash) error {
		s.loadObject(addr).committedStorage[key] = value
		return nil
	})
}

// loadObject returns the object for addr, creating it without journaling.
func (s *MemoryStateDB) loadObject(addr common.Address) *stateObject {
	obj := s.stateObjects[addr]
	if obj == nil {
		obj = newStateObject()
		s.stateObjects[addr] = obj
	}
	return obj
}
