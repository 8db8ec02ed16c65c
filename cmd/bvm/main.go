// Command bvm runs a bvm node and offers offline tools over its data
// directory.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/bitnetwork/bvm/log"
	"github.com/bitnetwork/bvm/node"
	"github.com/bitnetwork/bvm/rollup"
)

var (
	Version = "dev"
	Commit  = "none"
)

// flags shared by every command that opens a data directory.
type commonFlags struct {
	configPath string
	dataDir    string
	verbosity  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cf commonFlags
	rootCmd := &cobra.Command{
		Use:           "bvm",
		Short:         "bvm native-value execution node",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&cf.configPath, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&cf.dataDir, "datadir", "", "data directory (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&cf.verbosity, "verbosity", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newRunCmd(&cf),
		newBalanceCmd(&cf),
		newMintCmd(&cf),
		newDumpConfigCmd(&cf),
		newDemoCmd(),
	)
	return rootCmd
}

// loadConfig resolves the configuration from the file and flag overrides
// and installs the default logger.
func (cf *commonFlags) loadConfig(stderr io.Writer) (*node.Config, error) {
	var cfg *node.Config
	if cf.configPath != "" {
		loaded, err := node.LoadConfig(cf.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := node.DefaultConfig()
		cfg = &def
	}
	if cf.dataDir != "" {
		cfg.DataDir = cf.dataDir
	}
	if cf.verbosity != "" {
		cfg.LogLevel = cf.verbosity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogger(stderr, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(w io.Writer, cfg *node.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.LogFormat == "text" {
		log.SetDefault(log.NewText(w, level))
	} else {
		log.SetDefault(log.NewJSON(w, level))
	}
	return nil
}

func newRunCmd(cf *commonFlags) *cobra.Command {
	var httpPort int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the node and its JSON-RPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cf.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http.port") {
				cfg.HTTP.Port = httpPort
			}
			n, err := node.New(cfg)
			if err != nil {
				return err
			}
			if err := n.Start(); err != nil {
				n.Close()
				return err
			}

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigc)
			go func() {
				<-sigc
				log.Info("shutdown signal received")
				if err := n.Stop(); err != nil {
					log.Error("shutdown failed", "err", err)
				}
			}()
			n.Wait()
			return nil
		},
	}
	cmd.Flags().IntVar(&httpPort, "http.port", 8545, "JSON-RPC listen port")
	return cmd
}

func newBalanceCmd(cf *commonFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Print the committed ledger balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			n, err := openOffline(cmd, cf)
			if err != nil {
				return err
			}
			defer n.Close()
			fmt.Fprintln(cmd.OutOrStdout(), n.Balance(addr).Dec())
			return nil
		},
	}
}

func newMintCmd(cf *commonFlags) *cobra.Command {
	var (
		fromHex  string
		l1Block  uint64
		logIndex uint64
	)
	cmd := &cobra.Command{
		Use:   "mint <address> <amount>",
		Short: "Apply a finalized L1 deposit to the data directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := uint256.FromDecimal(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			if amount.IsZero() {
				return rollup.ErrDepositZeroAmount
			}
			var from common.Address
			if fromHex != "" {
				if from, err = parseAddress(fromHex); err != nil {
					return err
				}
			}
			n, err := openOffline(cmd, cf)
			if err != nil {
				return err
			}
			defer n.Close()

			id := rollup.DepositID(from, to, amount, l1Block, logIndex)
			if err := n.ApplyDeposit(id, to, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deposit %s applied, balance %s\n", id.Hex(), n.Balance(to).Dec())
			return nil
		},
	}
	cmd.Flags().StringVar(&fromHex, "from", "", "L1 sender of the deposit")
	cmd.Flags().Uint64Var(&l1Block, "l1-block", 0, "L1 block the deposit was included in")
	cmd.Flags().Uint64Var(&logIndex, "log-index", 0, "Index of the deposit event within the L1 block")
	return cmd
}

func newDumpConfigCmd(cf *commonFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dumpconfig",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cf.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out, err := node.MarshalConfig(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// openOffline opens the data directory without starting the RPC server.
func openOffline(cmd *cobra.Command, cf *commonFlags) (*node.Node, error) {
	cfg, err := cf.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	cfg.HTTP.Enabled = false
	return node.New(cfg)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
