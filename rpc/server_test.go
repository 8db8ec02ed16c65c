package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitnetwork/bvm/core"
	"github.com/bitnetwork/bvm/core/vm"
)

var (
	rich     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	contract = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type stubBackend struct {
	head     uint64
	balances map[common.Address]*uint256.Int
	lastCall *core.Message
	result   *core.ExecutionResult
	callErr  error
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		head:     7,
		balances: map[common.Address]*uint256.Int{rich: uint256.NewInt(1_000_000)},
		result:   &core.ExecutionResult{ReturnData: []byte{0xca, 0xfe}},
	}
}

func (b *stubBackend) ChainID() uint64      { return 1337 }
func (b *stubBackend) CurrentBlock() uint64 { return b.head }

func (b *stubBackend) Balance(addr common.Address) *uint256.Int {
	if bal, ok := b.balances[addr]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (b *stubBackend) Nonce(addr common.Address) uint64 {
	if addr == rich {
		return 3
	}
	return 0
}

func (b *stubBackend) Code(addr common.Address) []byte {
	if addr == contract {
		return []byte{0x60, 0x00}
	}
	return nil
}

func (b *stubBackend) StorageAt(addr common.Address, slot common.Hash) common.Hash {
	return common.BytesToHash(slot.Bytes())
}

func (b *stubBackend) TotalSupply() *uint256.Int { return uint256.NewInt(1_000_000) }

func (b *stubBackend) Call(ctx context.Context, msg *core.Message) (*core.ExecutionResult, error) {
	b.lastCall = msg
	if b.callErr != nil {
		return nil, b.callErr
	}
	return b.result, nil
}

func rpcCall(t *testing.T, srv *Server, method string, params ...interface{}) *Response {
	t.Helper()
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": method, "params": params,
	})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func TestServer_Queries(t *testing.T) {
	srv := NewServer(newStubBackend())

	tests := []struct {
		method string
		params []interface{}
		want   interface{}
	}{
		{"eth_chainId", nil, "0x539"},
		{"net_version", nil, "1337"},
		{"eth_blockNumber", nil, "0x7"},
		{"eth_getBalance", []interface{}{rich.Hex(), "latest"}, "0xf4240"},
		{"eth_getBalance", []interface{}{rich.Hex(), "0x7"}, "0xf4240"},
		{"eth_getBalance", []interface{}{contract.Hex()}, "0x0"},
		{"eth_getTransactionCount", []interface{}{rich.Hex(), "pending"}, "0x3"},
		{"eth_getCode", []interface{}{contract.Hex(), "latest"}, "0x6000"},
		{"eth_getCode", []interface{}{rich.Hex(), "latest"}, "0x"},
		{"eth_getStorageAt", []interface{}{contract.Hex(), "0x2", "latest"}, common.BytesToHash([]byte{2}).Hex()},
		{"bvm_totalSupply", nil, "0xf4240"},
		{"web3_clientVersion", nil, ClientVersion},
	}
	for _, tc := range tests {
		t.Run(tc.method, func(t *testing.T) {
			resp := rpcCall(t, srv, tc.method, tc.params...)
			require.Nil(t, resp.Error)
			assert.Equal(t, tc.want, resp.Result)
		})
	}
}

func TestServer_Errors(t *testing.T) {
	srv := NewServer(newStubBackend())

	tests := []struct {
		name   string
		method string
		params []interface{}
		code   int
	}{
		{"unknown method", "eth_mining", nil, ErrCodeMethodNotFound},
		{"missing address", "eth_getBalance", nil, ErrCodeInvalidParams},
		{"bad address", "eth_getBalance", []interface{}{"0x1234", "latest"}, ErrCodeInvalidParams},
		{"bad block", "eth_getBalance", []interface{}{rich.Hex(), "tomorrow"}, ErrCodeInvalidParams},
		{"historical block", "eth_getBalance", []interface{}{rich.Hex(), "0x3"}, ErrCodeUnavailable},
		{"call without to", "eth_call", []interface{}{map[string]string{"data": "0x"}}, ErrCodeInvalidParams},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := rpcCall(t, srv, tc.method, tc.params...)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestServer_EthCall(t *testing.T) {
	backend := newStubBackend()
	srv := NewServer(backend)

	resp := rpcCall(t, srv, "eth_call", map[string]string{
		"from":  rich.Hex(),
		"to":    contract.Hex(),
		"input": "0x70a08231",
		"gas":   "0x5208",
	}, "latest")
	require.Nil(t, resp.Error)
	assert.Equal(t, "0xcafe", resp.Result)

	require.NotNil(t, backend.lastCall)
	assert.Equal(t, rich, backend.lastCall.From)
	assert.Equal(t, contract, *backend.lastCall.To)
	assert.Equal(t, []byte{0x70, 0xa0, 0x82, 0x31}, backend.lastCall.Data)
	assert.Equal(t, uint64(21000), backend.lastCall.GasLimit)
}

func TestServer_EthCallValue(t *testing.T) {
	backend := newStubBackend()
	srv := NewServer(backend)

	resp := rpcCall(t, srv, "eth_call", map[string]string{
		"from":  rich.Hex(),
		"to":    contract.Hex(),
		"value": "0x11",
	})
	require.Nil(t, resp.Error)
	require.NotNil(t, backend.lastCall)
	assert.Equal(t, uint64(17), backend.lastCall.Value.Uint64())

	resp = rpcCall(t, srv, "eth_call", map[string]string{"to": contract.Hex()})
	require.Nil(t, resp.Error)
	assert.Nil(t, backend.lastCall.Value)
}

func TestServer_EthCallInsufficientFunds(t *testing.T) {
	backend := newStubBackend()
	backend.callErr = fmt.Errorf("%w: short", core.ErrInsufficientFunds)
	srv := NewServer(backend)

	resp := rpcCall(t, srv, "eth_call", map[string]string{"to": contract.Hex(), "value": "0x1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnavailable, resp.Error.Code)
}

func TestServer_EthCallRevert(t *testing.T) {
	backend := newStubBackend()
	backend.result = &core.ExecutionResult{Err: vm.ErrExecutionReverted, ReturnData: []byte{0x08, 0xc3}}
	srv := NewServer(backend)

	resp := rpcCall(t, srv, "eth_call", map[string]string{"to": contract.Hex()})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeExecution, resp.Error.Code)
	assert.Equal(t, "0x08c3", resp.Error.Data)
	assert.Equal(t, uint64(defaultCallGas), backend.lastCall.GasLimit)
}

func TestServer_Batch(t *testing.T) {
	srv := NewServer(newStubBackend())
	body := `[{"jsonrpc":"2.0","id":1,"method":"eth_chainId","params":[]},{"jsonrpc":"2.0","id":2,"method":"nope","params":[]}]`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	var resps []Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resps))
	require.Len(t, resps, 2)
	assert.Equal(t, "0x539", resps[0].Result)
	require.NotNil(t, resps[1].Error)
	assert.Equal(t, ErrCodeMethodNotFound, resps[1].Error.Code)
}

func TestServer_RejectsGet(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(newStubBackend()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv := NewServer(newStubBackend())
	rpcCall(t, srv, "eth_chainId")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rpc_requests")
}

func TestBlockNumber_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want BlockNumber
	}{
		{`"latest"`, LatestBlockNumber},
		{`"pending"`, PendingBlockNumber},
		{`"earliest"`, EarliestBlockNumber},
		{`"finalized"`, LatestBlockNumber},
		{`"0x10"`, 16},
		{`12`, 12},
	}
	for _, tc := range tests {
		var bn BlockNumber
		if err := json.Unmarshal([]byte(tc.in), &bn); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if bn != tc.want {
			t.Errorf("unmarshal %s = %d, want %d", tc.in, bn, tc.want)
		}
	}
}
