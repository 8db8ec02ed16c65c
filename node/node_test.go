package node

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitnetwork/bvm/core"
	"github.com/bitnetwork/bvm/core/vm"
	"github.com/bitnetwork/bvm/rollup"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	miner    = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	selfBal  = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	oneEther = uint256.NewInt(1_000_000_000_000_000_000)
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.HTTP.Enabled = false
	cfg.Block.Coinbase = miner
	cfg.Genesis = []GenesisAccount{
		{Address: alice, Balance: "1000000000000000000"},
		{Address: selfBal, Code: vm.NewProgram().Op(vm.SELFBALANCE).ReturnTop().Bytes()},
	}
	return &cfg
}

func newTestNode(t *testing.T, cfg *Config) *Node {
	t.Helper()
	n, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { n.Stop() })
	return n
}

func transfer(nonce uint64, to common.Address, value uint64) *core.Message {
	return &core.Message{
		From:     alice,
		To:       &to,
		Nonce:    nonce,
		Value:    uint256.NewInt(value),
		GasLimit: 50_000,
		GasPrice: uint256.NewInt(1),
	}
}

func TestNode_Genesis(t *testing.T) {
	n := newTestNode(t, testConfig())
	assert.Equal(t, oneEther, n.Balance(alice))
	assert.Equal(t, uint64(0), n.Head())
}

func TestNode_ApplyMessages(t *testing.T) {
	n := newTestNode(t, testConfig())

	res, err := n.ApplyMessages(context.Background(), []*core.Message{transfer(0, bob, 1000)})
	require.NoError(t, err)
	require.Len(t, res.Receipts, 1)
	assert.Equal(t, uint64(1), n.Head())
	assert.Equal(t, uint64(1000), n.Balance(bob).Uint64())
	assert.Equal(t, core.TxGas, n.Balance(miner).Uint64())

	want := new(uint256.Int).Sub(oneEther, uint256.NewInt(1000+core.TxGas))
	assert.Equal(t, want, n.Balance(alice))
}

func TestNode_Bridge(t *testing.T) {
	cfg := testConfig()
	cfg.Bridge.ConfirmationBlocks = 10
	n := newTestNode(t, cfg)

	_, err := n.Deposit(common.Address{}, bob, uint256.NewInt(77), 100, 0)
	require.NoError(t, err)
	confirmed, err := n.ConfirmDeposits(110)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, uint64(77), n.Balance(bob).Uint64())
	assert.True(t, n.store.DepositApplied(confirmed[0].ID))

	_, err = n.Withdraw(bob, common.Address{}, uint256.NewInt(70))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n.Balance(bob).Uint64())

	id := common.HexToHash("0x01")
	require.NoError(t, n.ApplyDeposit(id, bob, uint256.NewInt(3)))
	assert.Error(t, n.ApplyDeposit(id, bob, uint256.NewInt(3)))
	assert.Equal(t, uint64(10), n.Balance(bob).Uint64())
}

func TestNode_Persistence(t *testing.T) {
	cfg := testConfig()
	cfg.InMemory = false
	cfg.DataDir = t.TempDir()

	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start())
	_, err = n.ApplyMessages(context.Background(), []*core.Message{transfer(0, bob, 500)})
	require.NoError(t, err)
	require.NoError(t, n.Stop())

	// Genesis must not be re-applied on restart.
	n, err = New(cfg)
	require.NoError(t, err)
	defer n.Close()
	assert.Equal(t, uint64(1), n.Head())
	assert.Equal(t, uint64(500), n.Balance(bob).Uint64())
	assert.Equal(t, oneEther, n.ledger.TotalSupply())
	assert.Equal(t, uint64(1), n.state.GetNonce(alice))
	assert.NotEmpty(t, n.state.GetCode(selfBal))
}

func TestNode_BridgeReplayAfterRestart(t *testing.T) {
	cfg := testConfig()
	cfg.InMemory = false
	cfg.DataDir = t.TempDir()
	cfg.Bridge.ConfirmationBlocks = 50
	depositor := common.HexToAddress("0x00000000000000000000000000000000000000e0")

	n, err := New(cfg)
	require.NoError(t, err)
	_, err = n.Deposit(depositor, bob, uint256.NewInt(77), 100, 0)
	require.NoError(t, err)
	confirmed, err := n.ConfirmDeposits(150)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	require.NoError(t, n.Close())

	// The same L1 event observed again by a fresh process.
	n, err = New(cfg)
	require.NoError(t, err)
	defer n.Close()
	_, err = n.Deposit(depositor, bob, uint256.NewInt(77), 100, 0)
	require.ErrorIs(t, err, rollup.ErrDepositApplied)
	confirmed, err = n.ConfirmDeposits(150)
	require.NoError(t, err)
	assert.Empty(t, confirmed)
	assert.Equal(t, uint64(77), n.Balance(bob).Uint64())

	// A different event from the same block still mints.
	_, err = n.Deposit(depositor, bob, uint256.NewInt(77), 100, 1)
	require.NoError(t, err)
	_, err = n.ConfirmDeposits(150)
	require.NoError(t, err)
	assert.Equal(t, uint64(154), n.Balance(bob).Uint64())
}

func TestNode_RPC(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Enabled = true
	cfg.HTTP.Port = 0
	n := newTestNode(t, cfg)
	require.NoError(t, n.Start())
	require.ErrorIs(t, n.Start(), ErrNodeRunning)

	url := "http://" + n.HTTPEndpoint()
	call := func(method string, params ...interface{}) map[string]interface{} {
		body, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	assert.Equal(t, "0xde0b6b3a7640000", call("eth_getBalance", alice.Hex(), "latest")["result"])
	assert.Equal(t, "0xde0b6b3a7640000", call("bvm_totalSupply")["result"])
	assert.Equal(t, "0x539", call("eth_chainId")["result"])

	require.NoError(t, n.ledger.Mint(selfBal, uint256.NewInt(9)))
	out := call("eth_call", map[string]string{"to": selfBal.Hex()}, "latest")
	assert.Equal(t, common.BytesToHash([]byte{9}).Hex(), out["result"])

	echo := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	forwarder := common.HexToAddress("0x00000000000000000000000000000000000000d2")
	require.NoError(t, n.SetCode(echo, vm.NewProgram().Op(vm.CALLVALUE).ReturnTop().Bytes()))
	require.NoError(t, n.SetCode(forwarder, vm.NewProgram().
		Call(0, echo, uint256.NewInt(15), 0, 0, 0, 0).RevertOnFailure().ReturnData().Bytes()))

	out = call("eth_call", map[string]string{"from": alice.Hex(), "to": echo.Hex(), "value": "0x11"}, "latest")
	assert.Equal(t, common.BytesToHash([]byte{17}).Hex(), out["result"])
	out = call("eth_call", map[string]string{"from": alice.Hex(), "to": forwarder.Hex(), "value": "0xf"}, "latest")
	assert.Equal(t, common.BytesToHash([]byte{15}).Hex(), out["result"])
	assert.Equal(t, oneEther, n.Balance(alice))
	assert.True(t, n.Balance(echo).IsZero())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty datadir", func(c *Config) { c.DataDir = "" }},
		{"zero chain id", func(c *Config) { c.ChainID = 0 }},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"low gas limit", func(c *Config) { c.Block.GasLimit = 100 }},
		{"bad balance", func(c *Config) { c.Genesis = []GenesisAccount{{Address: alice, Balance: "lots"}} }},
		{"duplicate genesis", func(c *Config) {
			c.Genesis = []GenesisAccount{{Address: alice, Balance: "1"}, {Address: alice, Balance: "2"}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestGenesisAccount_Balance(t *testing.T) {
	for in, want := range map[string]uint64{"": 0, "42": 42, "0x2a": 42} {
		acc := GenesisAccount{Balance: in}
		got, err := acc.balance()
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Uint64(), in)
	}
}
