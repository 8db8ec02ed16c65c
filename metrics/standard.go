package metrics

// Pre-defined metrics for the bvm execution layer. All metrics live in
// DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- Ledger metrics ----

	// LedgerTransfers counts successful ledger transfers, including the
	// inverse transfers issued on rollback.
	LedgerTransfers = DefaultRegistry.Counter("ledger.transfers")
	// LedgerInsufficient counts debits rejected for insufficient balance.
	LedgerInsufficient = DefaultRegistry.Counter("ledger.insufficient_balance")
	// LedgerMinted counts bridge mints.
	LedgerMinted = DefaultRegistry.Counter("ledger.mints")
	// LedgerBurned counts bridge burns.
	LedgerBurned = DefaultRegistry.Counter("ledger.burns")

	// ---- Interpreter metrics ----

	// VMCalls counts call-type frames entered.
	VMCalls = DefaultRegistry.Counter("vm.calls")
	// VMRollbacks counts frames whose undo log was unwound.
	VMRollbacks = DefaultRegistry.Counter("vm.rollbacks")
	// VMFrameDepth tracks the current frame stack depth.
	VMFrameDepth = DefaultRegistry.Gauge("vm.frame_depth")

	// ---- Processor metrics ----

	// TxApplied counts messages that produced a receipt.
	TxApplied = DefaultRegistry.Counter("core.tx_applied")
	// TxDiscarded counts messages rejected before or during execution.
	TxDiscarded = DefaultRegistry.Counter("core.tx_discarded")
	// TxExecTime records message execution time in milliseconds.
	TxExecTime = DefaultRegistry.Histogram("core.tx_exec_ms")

	// ---- RPC metrics ----

	// RPCRequests counts incoming JSON-RPC requests.
	RPCRequests = DefaultRegistry.Counter("rpc.requests")
	// RPCErrors counts JSON-RPC requests that returned an error.
	RPCErrors = DefaultRegistry.Counter("rpc.errors")
)
