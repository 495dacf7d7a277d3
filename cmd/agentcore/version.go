package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agentcore %s\n", Version)
			fmt.Fprintf(out, "  build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  git commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
		},
	}
}
