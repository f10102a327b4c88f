package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mongorelic-agent",
		Short: "Report MongoDB serverStatus counters to New Relic",
		Long: `mongorelic-agent polls serverStatus on a MongoDB server, turns the
cumulative counters into per-interval deltas and posts them to the
New Relic plugin API.

Commands:
  run       Poll and report until interrupted (Ctrl+C)
  sample    Fetch serverStatus once and print the extracted snapshot
  version   Print the agent version`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newSampleCmd(),
		newVersionCmd(),
	)
	return root
}
