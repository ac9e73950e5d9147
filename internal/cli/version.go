package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/termdiff/internal/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and supported interface versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.SupportedVersion()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "termdiff %s (commit %s, built %s)\n", Version, Commit, Date)
			fmt.Fprintf(out, "engine abi %d.%d.%d, drawlist v%d, event batch v%d\n",
				v.EngineABIMajor, v.EngineABIMinor, v.EngineABIPatch, v.DrawlistVersion, v.EventBatchVersion)
			return nil
		},
	}
}
