package commands

import (
	"github.com/spf13/cobra"

	"github.com/driftlabs/murmur/pkg/broadcast"
	"github.com/driftlabs/murmur/pkg/node"
)

// NewBroadcastCmd returns the command that runs the broadcast workload.
func NewBroadcastCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "broadcast",
		Short:   "Run the gossip broadcast workload",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := node.New(config)
			engine := broadcast.New(n)
			engine.Start()
			defer engine.Stop()
			return n.Run()
		},
	}
}
