// Package node wires the bvm components into a runnable node: persistent
// storage, the balance ledger and world state, the message processor, the
// bridge and the JSON-RPC server.
package node

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/bitnetwork/bvm/rollup"
)

// Config holds all configuration for a bvm node.
type Config struct {
	// DataDir is the root directory for all data storage. Ignored when
	// InMemory is set.
	DataDir string

	// InMemory keeps the database in memory; nothing survives Stop.
	InMemory bool

	// Name is a human-readable node identifier (used in logs).
	Name string

	// ChainID is reported by eth_chainId and the CHAINID opcode.
	ChainID uint64

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string

	// LogFormat selects the log encoding (json, text).
	LogFormat string

	HTTP    HTTPConfig
	Metrics bool
	Block   BlockConfig
	Bridge  BridgeConfig
	Genesis []GenesisAccount
}

// HTTPConfig configures the JSON-RPC listener.
type HTTPConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// BlockConfig configures locally produced blocks.
type BlockConfig struct {
	Coinbase common.Address
	GasLimit uint64
}

// BridgeConfig configures deposit confirmation.
type BridgeConfig struct {
	ConfirmationBlocks uint64
	MaxPendingDeposits int
}

// GenesisAccount is an account allocated at genesis. Balance is a decimal
// or 0x-prefixed hex string.
type GenesisAccount struct {
	Address common.Address
	Balance string
	Code    hexutil.Bytes
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	bridge := rollup.DefaultBridgeConfig()
	return Config{
		DataDir:   "bvm-data",
		Name:      "bvm",
		ChainID:   1337,
		LogLevel:  "info",
		LogFormat: "json",
		HTTP: HTTPConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8545,
		},
		Metrics: true,
		Block: BlockConfig{
			GasLimit: 30_000_000,
		},
		Bridge: BridgeConfig{
			ConfirmationBlocks: bridge.ConfirmationBlocks,
			MaxPendingDeposits: bridge.MaxPendingDeposits,
		},
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" && !c.InMemory {
		return errors.New("config: datadir must not be empty")
	}
	if c.ChainID == 0 {
		return errors.New("config: chain id must be positive")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: invalid http port: %d", c.HTTP.Port)
	}
	if c.Block.GasLimit < 21000 {
		return fmt.Errorf("config: block gas limit %d below 21000", c.Block.GasLimit)
	}
	if c.Bridge.MaxPendingDeposits <= 0 {
		return fmt.Errorf("config: invalid max pending deposits: %d", c.Bridge.MaxPendingDeposits)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	seen := make(map[common.Address]bool, len(c.Genesis))
	for _, acc := range c.Genesis {
		if seen[acc.Address] {
			return fmt.Errorf("config: duplicate genesis account %s", acc.Address)
		}
		seen[acc.Address] = true
		if _, err := acc.balance(); err != nil {
			return fmt.Errorf("config: genesis account %s: %w", acc.Address, err)
		}
	}
	return nil
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// HTTPAddr returns the JSON-RPC listen address.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.HTTP.Host, strconv.Itoa(c.HTTP.Port))
}

// rollupConfig converts the bridge section to the bridge's own config.
func (c *Config) rollupConfig() rollup.BridgeConfig {
	cfg := rollup.DefaultBridgeConfig()
	cfg.ConfirmationBlocks = c.Bridge.ConfirmationBlocks
	cfg.MaxPendingDeposits = c.Bridge.MaxPendingDeposits
	return cfg
}

func (g *GenesisAccount) balance() (*uint256.Int, error) {
	s := strings.TrimSpace(g.Balance)
	switch {
	case s == "":
		return new(uint256.Int), nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		return uint256.FromHex(s)
	default:
		return uint256.FromDecimal(s)
	}
}
