package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core"
)

// Backend provides the node data the API serves. Every state accessor reads
// the head state; older states are not retained.
type Backend interface {
	ChainID() uint64
	CurrentBlock() uint64

	// Balance returns the ledger balance of addr.
	Balance(addr common.Address) *uint256.Int
	Nonce(addr common.Address) uint64
	Code(addr common.Address) []byte
	StorageAt(addr common.Address, slot common.Hash) common.Hash
	TotalSupply() *uint256.Int

	// Call runs msg read-only against the head state.
	Call(ctx context.Context, msg *core.Message) (*core.ExecutionResult, error)
}
