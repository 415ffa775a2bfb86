package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentcore/agentcore/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of agentcore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "agentcore version %s\n", version.Version)
			return nil
		},
	}
}
