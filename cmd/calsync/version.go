package main

import (
	"fmt"

	"github.com/pysugar/calsync/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "calsync %s (commit %s, built %s, %s)\n",
				info["version"], info["commit"], info["build_time"], info["go_version"])
		},
	}
}
