package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/core"
	"github.com/bitnetwork/bvm/core/ledger"
	"github.com/bitnetwork/bvm/core/rawdb"
	"github.com/bitnetwork/bvm/core/state"
	"github.com/bitnetwork/bvm/core/vm"
	"github.com/bitnetwork/bvm/log"
	"github.com/bitnetwork/bvm/rollup"
	"github.com/bitnetwork/bvm/rpc"
)

// ErrNodeRunning is returned by Start and Close on a running node.
var ErrNodeRunning = errors.New("node already running")

// Node is the top-level bvm node. All ledger and state access goes through
// its mutex; the interpreter itself is single-threaded.
type Node struct {
	config *Config
	log    *log.Logger

	db        rawdb.Database
	store     *rawdb.StateStore
	ledger    *ledger.Ledger
	state     *state.MemoryStateDB
	processor *core.StateProcessor
	bridge    *rollup.Bridge

	rpcHandler *rpc.Server
	rpcServer  *http.Server
	listener   net.Listener

	mu      sync.Mutex
	head    uint64
	running bool
	stop    chan struct{}
}

// New opens the database, loads the committed ledger and state, applies the
// genesis allocation on first start and wires the RPC handler. It does not
// start any network service.
func New(config *Config) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	n := &Node{
		config: config,
		log:    log.Default().Module("node").With("name", config.Name),
		ledger: ledger.New(),
		state:  state.NewMemoryStateDB(),
		stop:   make(chan struct{}),
	}
	db, err := openDatabase(config)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	n.db = db
	n.store = rawdb.NewStateStore(db)

	if err := n.load(); err != nil {
		db.Close()
		return nil, err
	}
	n.processor = core.NewStateProcessor(vm.Config{ChainID: config.ChainID}, n.state, n.ledger)
	n.bridge = rollup.NewBridge(config.rollupConfig(), n.ledger)
	n.bridge.SetAppliedFilter(n.store.DepositApplied)
	n.rpcHandler = rpc.NewServer(newNodeBackend(n))
	return n, nil
}

func openDatabase(config *Config) (rawdb.Database, error) {
	if config.InMemory {
		return rawdb.NewMemoryDB(), nil
	}
	if err := os.MkdirAll(config.DataDir, 0o700); err != nil {
		return nil, err
	}
	return rawdb.NewLevelDB(config.ResolvePath("chaindata"), 64, 128)
}

// load restores the committed state, or writes genesis into an empty
// database.
func (n *Node) load() error {
	head, err := n.store.ReadHeadNumber()
	if err != nil {
		return fmt.Errorf("read head: %w", err)
	}
	if err := n.ledger.Load(n.store); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if err := n.state.Load(n.store); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	n.head = head
	if head > 0 || len(n.ledger.Accounts()) > 0 {
		return nil
	}
	return n.applyGenesis()
}

func (n *Node) applyGenesis() error {
	for _, acc := range n.config.Genesis {
		bal, err := acc.balance()
		if err != nil {
			return err
		}
		if !bal.IsZero() {
			if err := n.ledger.Mint(acc.Address, bal); err != nil {
				return fmt.Errorf("genesis %s: %w", acc.Address, err)
			}
		}
		if len(acc.Code) > 0 {
			n.state.SetCode(acc.Address, acc.Code)
		}
	}
	if err := n.commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	n.log.Info("genesis applied", "accounts", len(n.config.Genesis), "supply", n.ledger.TotalSupply())
	return nil
}

// commit persists the ledger, the state and the head in one batch.
func (n *Node) commit() error {
	n.ledger.Finalise()
	if err := n.ledger.Commit(n.store); err != nil {
		return err
	}
	if err := n.state.Commit(n.store); err != nil {
		return err
	}
	if err := n.store.WriteHeadNumber(n.head); err != nil {
		return err
	}
	return n.store.Flush()
}

// Start starts the JSON-RPC server when enabled.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return ErrNodeRunning
	}
	n.log.Info("starting node", "chainid", n.config.ChainID, "head", n.head, "datadir", n.config.DataDir)

	if n.config.HTTP.Enabled {
		ln, err := net.Listen("tcp", n.config.HTTPAddr())
		if err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
		n.listener = ln
		n.rpcServer = &http.Server{
			Handler:           n.rpcHandler.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			n.log.Info("RPC server listening", "addr", ln.Addr().String())
			if err := n.rpcServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.log.Error("RPC server error", "err", err)
			}
		}()
	}

	n.running = true
	return nil
}

// Stop shuts down the RPC server, commits the state and closes the
// database.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}
	n.log.Info("stopping node")

	if n.rpcServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.rpcServer.Shutdown(ctx); err != nil {
			n.log.Warn("RPC server shutdown error", "err", err)
		}
		cancel()
		n.rpcServer, n.listener = nil, nil
	}
	err := n.commit()
	if cerr := n.db.Close(); err == nil {
		err = cerr
	}

	n.running = false
	close(n.stop)
	n.log.Info("node stopped")
	return err
}

// Close releases the database of a node that was never started.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return ErrNodeRunning
	}
	return n.db.Close()
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	<-n.stop
}

// HTTPEndpoint returns the address the RPC server listens on, or "" when
// it is not running.
func (n *Node) HTTPEndpoint() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return ""
	}
	return n.listener.Addr().String()
}

// ApplyMessages processes msgs as the next block and commits the result.
func (n *Node) ApplyMessages(ctx context.Context, msgs []*core.Message) (*core.ProcessResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	header := n.nextHeader()
	res, err := n.processor.Process(ctx, core.NewBlock(header, msgs))
	if err != nil {
		return nil, err
	}
	n.head = header.Number
	if err := n.commit(); err != nil {
		return nil, fmt.Errorf("commit block %d: %w", header.Number, err)
	}
	return res, nil
}

// Deposit queues the L1 deposit event at (l1Block, logIndex) with the
// bridge. Events already applied in the database are refused.
func (n *Node) Deposit(from, to common.Address, amount *uint256.Int, l1Block, logIndex uint64) (*rollup.BridgeDeposit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bridge.Deposit(from, to, amount, l1Block, logIndex)
}

// ConfirmDeposits mints the deposits confirmed at l1Block and commits the
// new balances together with their applied markers.
func (n *Node) ConfirmDeposits(l1Block uint64) ([]*rollup.BridgeDeposit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	confirmed, err := n.bridge.ConfirmDeposits(l1Block)
	for _, d := range confirmed {
		if merr := n.store.MarkDepositApplied(d.ID); merr != nil && err == nil {
			err = merr
		}
	}
	if cerr := n.commit(); cerr != nil && err == nil {
		err = cerr
	}
	return confirmed, err
}

// ApplyDeposit mints a deposit that is already final on L1, skipping the
// confirmation queue. A deposit ID is applied at most once.
func (n *Node) ApplyDeposit(id common.Hash, to common.Address, amount *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.store.DepositApplied(id) {
		return fmt.Errorf("deposit %s already applied", id)
	}
	if err := n.ledger.Mint(to, amount); err != nil {
		return err
	}
	if err := n.store.MarkDepositApplied(id); err != nil {
		return err
	}
	return n.commit()
}

// Withdraw burns amount from an L2 account and records the withdrawal.
func (n *Node) Withdraw(from, to common.Address, amount *uint256.Int) (*rollup.BridgeWithdrawal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	w, err := n.bridge.InitiateWithdrawal(from, to, amount)
	if err != nil {
		return nil, err
	}
	return w, n.commit()
}

// Call simulates msg on top of the head state and discards its effects.
func (n *Node) Call(ctx context.Context, msg *core.Message) (*core.ExecutionResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.processor.Simulate(ctx, n.nextHeader(), msg)
}

// RPCHandler returns the JSON-RPC HTTP handler, usable without Start.
func (n *Node) RPCHandler() http.Handler {
	return n.rpcHandler.Handler()
}

// Balance returns the ledger balance of addr.
func (n *Node) Balance(addr common.Address) *uint256.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Get(addr)
}

// SetCode installs code at addr outside of block processing.
func (n *Node) SetCode(addr common.Address, code []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.SetCode(addr, code)
	return n.commit()
}

// Head returns the number of the last applied block.
func (n *Node) Head() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head
}

// Bridge returns the bridge instance.
func (n *Node) Bridge() *rollup.Bridge {
	return n.bridge
}

// Config returns the node configuration.
func (n *Node) Config() *Config {
	return n.config
}

// Running reports whether the node is currently running.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// nextHeader builds the header of the block after head. Caller holds mu.
func (n *Node) nextHeader() *core.Header {
	return &core.Header{
		Number:   n.head + 1,
		Time:     uint64(time.Now().Unix()),
		Coinbase: n.config.Block.Coinbase,
		GasLimit: n.config.Block.GasLimit,
		BaseFee:  new(uint256.Int),
	}
}
