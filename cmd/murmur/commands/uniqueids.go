package commands

import (
	"github.com/spf13/cobra"

	"github.com/driftlabs/murmur/pkg/node"
	"github.com/driftlabs/murmur/pkg/uniqueid"
)

// NewUniqueIDsCmd returns the command that runs the unique-ids workload.
func NewUniqueIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "unique-ids",
		Short:   "Run the unique-id generation workload",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := node.New(config)
			uniqueid.Register(n)
			return n.Run()
		},
	}
}
