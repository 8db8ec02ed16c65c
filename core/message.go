package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/crypto"
)

// Message is a transaction prepared for execution. Contract creation is not
// supported, so To must always be set.
type Message struct {
	From     common.Address
	To       *common.Address
	Nonce    uint64
	Value    *uint256.Int
	GasLimit uint64
	GasPrice *uint256.Int
	Data     []byte
}

// messageRLP is the canonical encoding hashed by Message.Hash.
type messageRLP struct {
	From     common.Address
	To       []byte
	Nonce    uint64
	Value    *uint256.Int
	GasLimit uint64
	GasPrice *uint256.Int
	Data     []byte
}

// Hash returns the keccak256 hash of the RLP encoding of the message.
func (m *Message) Hash() common.Hash {
	enc := messageRLP{
		From:     m.From,
		Nonce:    m.Nonce,
		Value:    m.value(),
		GasLimit: m.GasLimit,
		GasPrice: m.gasPrice(),
		Data:     m.Data,
	}
	if m.To != nil {
		enc.To = m.To.Bytes()
	}
	b, err := rlp.EncodeToBytes(&enc)
	if err != nil {
		panic("core: message encoding failed: " + err.Error())
	}
	return crypto.Keccak256Hash(b)
}

// value returns the carried value, treating nil as zero.
func (m *Message) value() *uint256.Int {
	if m.Value == nil {
		return new(uint256.Int)
	}
	return m.Value
}

func (m *Message) gasPrice() *uint256.Int {
	if m.GasPrice == nil {
		return new(uint256.Int)
	}
	return m.GasPrice
}
