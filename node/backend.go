package node

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core"
	"github.com/bitnetwork/bvm/rpc"
)

// nodeBackend implements rpc.Backend for a Node.
type nodeBackend struct {
	node *Node
}

func newNodeBackend(n *Node) rpc.Backend {
	return &nodeBackend{node: n}
}

func (b *nodeBackend) ChainID() uint64 {
	return b.node.config.ChainID
}

func (b *nodeBackend) CurrentBlock() uint64 {
	return b.node.Head()
}

func (b *nodeBackend) Balance(addr common.Address) *uint256.Int {
	return b.node.Balance(addr)
}

func (b *nodeBackend) Nonce(addr common.Address) uint64 {
	b.node.mu.Lock()
	defer b.node.mu.Unlock()
	return b.node.state.GetNonce(addr)
}

func (b *nodeBackend) Code(addr common.Address) []byte {
	b.node.mu.Lock()
	defer b.node.mu.Unlock()
	return common.CopyBytes(b.node.state.GetCode(addr))
}

func (b *nodeBackend) StorageAt(addr common.Address, slot common.Hash) common.Hash {
	b.node.mu.Lock()
	defer b.node.mu.Unlock()
	return b.node.state.GetState(addr, slot)
}

func (b *nodeBackend) TotalSupply() *uint256.Int {
	b.node.mu.Lock()
	defer b.node.mu.Unlock()
	return b.node.ledger.TotalSupply()
}

// Call simulates msg on top of the head state in the context of the next
// block.
func (b *nodeBackend) Call(ctx context.Context, msg *core.Message) (*core.ExecutionResult, error) {
	return b.node.Call(ctx, msg)
}
