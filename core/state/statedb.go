// Package state holds the non-value world state: code, nonces, storage and
// logs. Account balances are deliberately absent; they live in the ledger.
package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// StateDB is the world state surface used by the interpreter and the
// transaction processor. It exposes no balance accessors.
type StateDB interface {
	// Account operations
	CreateAccount(addr common.Address)
	GetNonce(addr common.Address) uint64
	SetNonce(addr common.Address, nonce uint64)
	GetCode(addr common.Address) []byte
	SetCode(addr common.Address, code []byte)
	GetCodeHash(addr common.Address) common.Hash
	GetCodeSize(addr common.Address) int

	// Self-destruct
	SelfDestruct(addr common.Address)
	HasSelfDestructed(addr common.Address) bool

	// Storage operations
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetCommittedState(addr common.Address, key common.Hash) common.Hash

	// Account existence
	Exist(addr common.Address) bool

	// Snapshot and revert for frame- and tx-level atomicity
	Snapshot() int
	RevertToSnapshot(id int)

	// Logs
	SetTxContext(txHash common.Hash, txIndex int)
	AddLog(log *types.Log)
	GetLogs(txHash common.Hash) []*types.Log
}
