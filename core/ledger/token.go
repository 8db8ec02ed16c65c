package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenAddress is the predeploy address of the BVM_ETH token view.
var TokenAddress = common.HexToAddress("0xDeadDeAddeAddEAddeadDEaDDEAdDeaDDeAD0000")

const (
	TokenName     = "Ether"
	TokenSymbol   = "ETH"
	TokenDecimals = uint8(18)

	// TokenCallGas is charged for every call into the token view.
	TokenCallGas = 2100
)

// ErrTokenCallReverted is returned by TokenView.Call together with an
// Error(string) payload when the call cannot be served.
var ErrTokenCallReverted = errors.New("ledger: token call reverted")

const tokenABIJSON = `[
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// TokenABI is the parsed ERC-20 surface served by the token view.
var TokenABI = mustParseABI(tokenABIJSON)

var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("ledger: bad token abi: %v", err))
	}
	return parsed
}

// TokenView is the read-only ERC-20 style query surface over a ledger. It
// holds no balances of its own.
type TokenView struct {
	ledger *Ledger
}

// NewTokenView returns a view over l.
func NewTokenView(l *Ledger) *TokenView {
	return &TokenView{ledger: l}
}

// BalanceOf equals Ledger.Get for every address.
func (t *TokenView) BalanceOf(addr common.Address) *uint256.Int {
	return t.ledger.Get(addr)
}

// TotalSupply returns the ledger's total supply.
func (t *TokenView) TotalSupply() *uint256.Int {
	return t.ledger.TotalSupply()
}

// RequiredGas returns the gas charged for a call into the view.
func (t *TokenView) RequiredGas(input []byte) uint64 {
	return TokenCallGas
}

// Call decodes an ABI-encoded call and answers it from the ledger.
// Mutating selectors and malformed input return an Error(string) payload
// together with ErrTokenCallReverted.
func (t *TokenView) Call(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return revertPayload("BVM_ETH: missing selector")
	}
	method, err := TokenABI.MethodById(input[:4])
	if err != nil {
		return revertPayload("BVM_ETH: unknown selector")
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return revertPayload("BVM_ETH: malformed arguments")
	}
	switch method.Name {
	case "name":
		return method.Outputs.Pack(TokenName)
	case "symbol":
		return method.Outputs.Pack(TokenSymbol)
	case "decimals":
		return method.Outputs.Pack(TokenDecimals)
	case "totalSupply":
		return method.Outputs.Pack(t.TotalSupply().ToBig())
	case "balanceOf":
		addr := args[0].(common.Address)
		return method.Outputs.Pack(t.BalanceOf(addr).ToBig())
	case "allowance":
		return method.Outputs.Pack(new(uint256.Int).ToBig())
	default:
		return revertPayload("BVM_ETH: " + method.Name + " is disabled, use a value call")
	}
}

// revertPayload encodes msg as Error(string).
func revertPayload(msg string) ([]byte, error) {
	stringTy, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, err
	}
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(msg)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, revertSelector...), packed...), ErrTokenCallReverted
}
