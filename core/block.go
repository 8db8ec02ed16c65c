package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core/vm"
	"github.com/bitnetwork/bvm/crypto"
)

// Header carries the block-level context a message executes in.
type Header struct {
	Number     uint64
	Time       uint64
	Coinbase   common.Address // receives the gas fees
	GasLimit   uint64
	BaseFee    *uint256.Int
	PrevRandao common.Hash
}

// Hash returns the keccak256 hash of the RLP-encoded header.
func (h *Header) Hash() common.Hash {
	enc := *h
	if enc.BaseFee == nil {
		enc.BaseFee = new(uint256.Int)
	}
	b, err := rlp.EncodeToBytes(&enc)
	if err != nil {
		panic("core: header encoding failed: " + err.Error())
	}
	return crypto.Keccak256Hash(b)
}

// blockContext derives the interpreter's block context from the header.
func (h *Header) blockContext(getHash vm.GetHashFunc) vm.BlockContext {
	return vm.BlockContext{
		GetHash:     getHash,
		BlockNumber: h.Number,
		Time:        h.Time,
		Coinbase:    h.Coinbase,
		GasLimit:    h.GasLimit,
		BaseFee:     h.BaseFee,
		PrevRandao:  h.PrevRandao,
	}
}

// Block is an ordered batch of messages applied under one header.
type Block struct {
	Header   *Header
	Messages []*Message
}

// NewBlock creates a block from a header and its messages.
func NewBlock(header *Header, msgs []*Message) *Block {
	return &Block{Header: header, Messages: msgs}
}

// Number returns the block number.
func (b *Block) Number() uint64 { return b.Header.Number }
