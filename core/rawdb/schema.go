package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key prefixes for the database schema.
var (
	balancePrefix = []byte("B") // B + address -> balance (32 bytes BE)
	codePrefix    = []byte("C") // C + address -> contract bytecode
	storagePrefix = []byte("S") // S + address + slot -> value (32 bytes)
	noncePrefix   = []byte("N") // N + address -> nonce (8 bytes BE)

	depositPrefix = []byte("d") // d + deposit id -> bridge deposit record
	headKey       = []byte("head") // -> last applied block number (8 bytes BE)
)

func balanceKey(addr common.Address) []byte {
	return append(append([]byte{}, balancePrefix...), addr[:]...)
}

func codeKey(addr common.Address) []byte {
	return append(append([]byte{}, codePrefix...), addr[:]...)
}

func nonceKey(addr common.Address) []byte {
	return append(append([]byte{}, noncePrefix...), addr[:]...)
}

func storageKey(addr common.Address, slot common.Hash) []byte {
	key := make([]byte, 0, len(storagePrefix)+common.AddressLength+common.HashLength)
	key = append(key, storagePrefix...)
	key = append(key, addr[:]...)
	return append(key, slot[:]...)
}

func storageAccountPrefix(addr common.Address) []byte {
	return append(append([]byte{}, storagePrefix...), addr[:]...)
}

func depositKey(id common.Hash) []byte {
	return append(append([]byte{}, depositPrefix...), id[:]...)
}

func encodeUint64(v uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, v)
	return enc
}
