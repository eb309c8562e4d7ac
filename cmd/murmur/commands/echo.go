package commands

import (
	"github.com/spf13/cobra"

	"github.com/driftlabs/murmur/pkg/echo"
	"github.com/driftlabs/murmur/pkg/node"
)

// NewEchoCmd returns the command that runs the echo workload.
func NewEchoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "echo",
		Short:   "Run the echo workload",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := node.New(config)
			echo.Register(n)
			return n.Run()
		},
	}
}
