package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/bitnetwork/bvm/core"
	"github.com/bitnetwork/bvm/core/ledger"
	"github.com/bitnetwork/bvm/core/vm"
	"github.com/bitnetwork/bvm/log"
	"github.com/bitnetwork/bvm/node"
)

var (
	demoAlice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	demoBob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	demoVault     = common.HexToAddress("0x000000000000000000000000000000000000fa17")
	demoForwarder = common.HexToAddress("0x000000000000000000000000000000000000f0f0")
	demoReverter  = common.HexToAddress("0x000000000000000000000000000000000000dead")
	demoProbe     = common.HexToAddress("0x000000000000000000000000000000000000beef")
	demoCoinbase  = common.HexToAddress("0x000000000000000000000000000000000000c0de")
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run value-transfer scenarios on an in-memory node and print every balance view",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetDefault(log.Discard())
			return runDemo(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// demoConfig allocates alice and deploys the scenario contracts:
//
//	vault:     accepts any value
//	forwarder: passes CALLVALUE on to the vault
//	reverter:  forwards to the vault, then reverts
//	probe:     returns BALANCE(calldata[0:32])
func demoConfig() *node.Config {
	cfg := node.DefaultConfig()
	cfg.InMemory = true
	cfg.HTTP.Enabled = false
	cfg.Block.Coinbase = demoCoinbase
	cfg.Genesis = []node.GenesisAccount{
		{Address: demoAlice, Balance: "1000000000000000000"},
		{Address: demoVault, Code: vm.NewProgram().Op(vm.STOP).Bytes()},
		{Address: demoForwarder, Code: vm.NewProgram().
			CallWithValueOp(0, demoVault, vm.CALLVALUE, 0, 0, 0, 0).
			RevertOnFailure().Op(vm.STOP).Bytes()},
		{Address: demoReverter, Code: vm.NewProgram().
			CallWithValueOp(0, demoVault, vm.CALLVALUE, 0, 0, 0, 0).
			Op(vm.POP).Revert().Bytes()},
		{Address: demoProbe, Code: vm.NewProgram().
			Op(vm.PUSH0, vm.CALLDATALOAD, vm.BALANCE).ReturnTop().Bytes()},
	}
	return &cfg
}

func runDemo(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	n, err := node.New(demoConfig())
	if err != nil {
		return err
	}
	defer n.Close()

	steps := []struct {
		title string
		to    common.Address
		value uint64
	}{
		{"alice pays bob 1000 wei", demoBob, 1000},
		{"alice pays the forwarder 500 wei, which lands in the vault", demoForwarder, 500},
		{"alice pays the reverter 700 wei; the revert undoes both hops", demoReverter, 700},
	}
	for i, step := range steps {
		to := step.to
		msg := &core.Message{
			From:     demoAlice,
			To:       &to,
			Nonce:    uint64(i),
			Value:    uint256.NewInt(step.value),
			GasLimit: 100_000,
			GasPrice: uint256.NewInt(1),
		}
		res, err := n.ApplyMessages(ctx, []*core.Message{msg})
		if err != nil {
			return err
		}
		status := "ok"
		switch {
		case len(res.Discarded) > 0:
			status = "discarded: " + res.Discarded[0].Err.Error()
		case res.Receipts[0].Status == 0:
			status = "reverted"
		}
		fmt.Fprintf(w, "block %d: %s (%s)\n", n.Head(), step.title, status)
	}
	fmt.Fprintln(w)
	return printViews(ctx, w, n)
}

// printViews prints, for every demo account, the balance as seen by the
// ledger, the BALANCE opcode, the BVM_ETH token and eth_getBalance.
func printViews(ctx context.Context, w io.Writer, n *node.Node) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "account\tledger\tBALANCE\tbalanceOf\teth_getBalance")

	accounts := []struct {
		name string
		addr common.Address
	}{
		{"alice", demoAlice}, {"bob", demoBob}, {"vault", demoVault},
		{"forwarder", demoForwarder}, {"reverter", demoReverter}, {"coinbase", demoCoinbase},
	}
	for _, acc := range accounts {
		opcode, err := probeBalance(ctx, n, acc.addr)
		if err != nil {
			return err
		}
		token, err := tokenBalance(ctx, n, acc.addr)
		if err != nil {
			return err
		}
		rpcBal, err := rpcBalance(n, acc.addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", acc.name, n.Balance(acc.addr).Dec(), opcode, token, rpcBal)
	}
	return tw.Flush()
}

func probeBalance(ctx context.Context, n *node.Node, addr common.Address) (string, error) {
	to := demoProbe
	res, err := n.Call(ctx, &core.Message{To: &to, Data: common.LeftPadBytes(addr.Bytes(), 32)})
	if err != nil {
		return "", err
	}
	if res.Failed() {
		return "", fmt.Errorf("probe %s: %w", addr, res.Err)
	}
	return new(uint256.Int).SetBytes(res.Return()).Dec(), nil
}

func tokenBalance(ctx context.Context, n *node.Node, addr common.Address) (string, error) {
	input, err := ledger.TokenABI.Pack("balanceOf", addr)
	if err != nil {
		return "", err
	}
	to := ledger.TokenAddress
	res, err := n.Call(ctx, &core.Message{To: &to, Data: input})
	if err != nil {
		return "", err
	}
	if res.Failed() {
		return "", fmt.Errorf("balanceOf %s: %w", addr, res.Err)
	}
	out, err := ledger.TokenABI.Unpack("balanceOf", res.Return())
	if err != nil {
		return "", err
	}
	return out[0].(*big.Int).String(), nil
}

func rpcBalance(n *node.Node, addr common.Address) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": "eth_getBalance", "params": []string{addr.Hex(), "latest"},
	})
	if err != nil {
		return "", err
	}
	rec := httptest.NewRecorder()
	n.RPCHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))

	var resp struct {
		Result string `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("eth_getBalance: %s", resp.Error.Message)
	}
	v, err := uint256.FromHex(resp.Result)
	if err != nil {
		return "", err
	}
	return v.Dec(), nil
}
