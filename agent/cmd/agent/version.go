package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mongorelic/mongorelic/agent/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mongorelic-agent %s\n", version.Version)
		},
	}
}
