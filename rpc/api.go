package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core"
	"github.com/bitnetwork/bvm/core/vm"
)

// ClientVersion is reported by web3_clientVersion.
const ClientVersion = "bvm/v0.1.0"

// defaultCallGas caps eth_call when the request sets no gas.
const defaultCallGas = 50_000_000

var errStateUnavailable = errors.New("historical state unavailable")

// EthAPI implements the eth_, bvm_, net_ and web3_ methods.
type EthAPI struct {
	backend Backend
}

// NewEthAPI creates a new API service.
func NewEthAPI(backend Backend) *EthAPI {
	return &EthAPI{backend: backend}
}

// HandleRequest dispatches a JSON-RPC request to the appropriate method.
func (api *EthAPI) HandleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "eth_chainId":
		return successResponse(req.ID, hexutil.Uint64(api.backend.ChainID()))
	case "net_version":
		return successResponse(req.ID, fmt.Sprint(api.backend.ChainID()))
	case "web3_clientVersion":
		return successResponse(req.ID, ClientVersion)
	case "eth_blockNumber":
		return successResponse(req.ID, hexutil.Uint64(api.backend.CurrentBlock()))
	case "eth_getBalance":
		return api.getBalance(req)
	case "eth_getTransactionCount":
		return api.getTransactionCount(req)
	case "eth_getCode":
		return api.getCode(req)
	case "eth_getStorageAt":
		return api.getStorageAt(req)
	case "eth_call":
		return api.ethCall(ctx, req)
	case "bvm_totalSupply":
		return successResponse(req.ID, encodeU256(api.backend.TotalSupply()))
	default:
		return errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %s not found", req.Method))
	}
}

func (api *EthAPI) getBalance(req *Request) *Response {
	addr, resp := api.addressAt(req)
	if resp != nil {
		return resp
	}
	return successResponse(req.ID, encodeU256(api.backend.Balance(addr)))
}

func (api *EthAPI) getTransactionCount(req *Request) *Response {
	addr, resp := api.addressAt(req)
	if resp != nil {
		return resp
	}
	return successResponse(req.ID, hexutil.Uint64(api.backend.Nonce(addr)))
}

func (api *EthAPI) getCode(req *Request) *Response {
	addr, resp := api.addressAt(req)
	if resp != nil {
		return resp
	}
	return successResponse(req.ID, hexutil.Bytes(api.backend.Code(addr)))
}

func (api *EthAPI) getStorageAt(req *Request) *Response {
	if len(req.Params) < 2 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "missing address or slot")
	}
	var addr common.Address
	if err := json.Unmarshal(req.Params[0], &addr); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	var slot hexutil.Big
	if err := json.Unmarshal(req.Params[1], &slot); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if err := api.checkBlock(req.Params, 2); err != nil {
		return blockError(req.ID, err)
	}
	val := api.backend.StorageAt(addr, common.BigToHash(slot.ToInt()))
	return successResponse(req.ID, val)
}

func (api *EthAPI) ethCall(ctx context.Context, req *Request) *Response {
	if len(req.Params) < 1 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "missing call object")
	}
	var args CallArgs
	if err := json.Unmarshal(req.Params[0], &args); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if args.To == nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, "missing to address")
	}
	if err := api.checkBlock(req.Params, 1); err != nil {
		return blockError(req.ID, err)
	}

	msg := &core.Message{To: args.To, Data: args.input(), GasLimit: defaultCallGas}
	if args.From != nil {
		msg.From = *args.From
	}
	if args.Gas != nil {
		msg.GasLimit = uint64(*args.Gas)
	}
	if args.GasPrice != nil {
		price, overflow := uint256.FromBig(args.GasPrice.ToInt())
		if overflow {
			return errorResponse(req.ID, ErrCodeInvalidParams, "gasPrice overflows 256 bits")
		}
		msg.GasPrice = price
	}
	if args.Value != nil {
		value, overflow := uint256.FromBig(args.Value.ToInt())
		if overflow {
			return errorResponse(req.ID, ErrCodeInvalidParams, "value overflows 256 bits")
		}
		msg.Value = value
	}

	res, err := api.backend.Call(ctx, msg)
	if errors.Is(err, core.ErrInsufficientFunds) {
		return errorResponse(req.ID, ErrCodeUnavailable, err.Error())
	}
	if err != nil {
		return errorResponse(req.ID, ErrCodeInternal, err.Error())
	}
	if errors.Is(res.Err, vm.ErrExecutionReverted) {
		return &Response{
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    ErrCodeExecution,
				Message: "execution reverted",
				Data:    hexutil.Encode(res.Revert()),
			},
			ID: req.ID,
		}
	}
	if res.Err != nil {
		return errorResponse(req.ID, ErrCodeInternal, res.Err.Error())
	}
	return successResponse(req.ID, hexutil.Bytes(res.Return()))
}

// addressAt decodes the (address, block) parameter pair shared by the
// account queries.
func (api *EthAPI) addressAt(req *Request) (common.Address, *Response) {
	if len(req.Params) < 1 {
		return common.Address{}, errorResponse(req.ID, ErrCodeInvalidParams, "missing address")
	}
	var addr common.Address
	if err := json.Unmarshal(req.Params[0], &addr); err != nil {
		return common.Address{}, errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if err := api.checkBlock(req.Params, 1); err != nil {
		return common.Address{}, blockError(req.ID, err)
	}
	return addr, nil
}

// checkBlock accepts an absent block parameter, a tag resolving to the
// head, or the head's number.
func (api *EthAPI) checkBlock(params []json.RawMessage, idx int) error {
	if len(params) <= idx {
		return nil
	}
	var bn BlockNumber
	if err := json.Unmarshal(params[idx], &bn); err != nil {
		return err
	}
	switch {
	case bn == LatestBlockNumber, bn == PendingBlockNumber:
		return nil
	case bn >= 0 && uint64(bn) == api.backend.CurrentBlock():
		return nil
	}
	return fmt.Errorf("%w: block %d", errStateUnavailable, bn)
}

func blockError(id json.RawMessage, err error) *Response {
	if errors.Is(err, errStateUnavailable) {
		return errorResponse(id, ErrCodeUnavailable, err.Error())
	}
	return errorResponse(id, ErrCodeInvalidParams, err.Error())
}

func encodeU256(v *uint256.Int) string {
	return hexutil.EncodeBig(v.ToBig())
}

func successResponse(id json.RawMessage, result interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
		ID:      id,
	}
}
