package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/driftlabs/murmur/internal/telemetry"
	"github.com/driftlabs/murmur/pkg/node"
)

var config = node.DefaultConfig()

// RootCmd is the root command for murmur.
var RootCmd = &cobra.Command{
	Use:              "murmur",
	Short:            "murmur workload node",
	Long:             "A node runtime speaking newline-delimited JSON on stdin/stdout, one subcommand per workload.",
	TraverseChildren: true,
}

func init() {
	RootCmd.PersistentFlags().Duration("gossip-interval", config.GossipInterval, "Time between gossip rounds")
	RootCmd.PersistentFlags().Duration("rpc-timeout", config.RPCTimeout, "Deadline for correlated sends")
	RootCmd.PersistentFlags().String("metrics-addr", config.MetricsAddr, "Listen address for /metrics (empty disables)")
	RootCmd.PersistentFlags().String("log-level", config.LogLevel, "debug, info, warn, error")

	RootCmd.AddCommand(
		NewEchoCmd(),
		NewBroadcastCmd(),
		NewUniqueIDsCmd(),
	)
}

// loadConfig binds flags through viper into the shared config and builds
// the logger. Used as PreRunE by every workload command.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.Unmarshal(config); err != nil {
		return err
	}

	logger, err := config.BuildLogger()
	if err != nil {
		return err
	}
	config.Logger = logger

	logger.Debug("RUN",
		zap.Duration("gossip-interval", config.GossipInterval),
		zap.Duration("rpc-timeout", config.RPCTimeout),
		zap.String("metrics-addr", config.MetricsAddr),
		zap.String("log-level", config.LogLevel),
	)

	if config.MetricsAddr != "" {
		go func() {
			if err := telemetry.Serve(config.MetricsAddr); err != nil {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}
	return nil
}
