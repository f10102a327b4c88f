package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mongorelic/mongorelic/agent/internal/config"
	"github.com/mongorelic/mongorelic/agent/internal/logging"
	"github.com/mongorelic/mongorelic/agent/internal/scraper"
)

type sampleOptions struct {
	configPath string
	fromFile   string
}

func newSampleCmd() *cobra.Command {
	opts := &sampleOptions{}
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Fetch serverStatus once and print the extracted snapshot",
		Long: `Fetch one serverStatus document, extract the tracked fields and print
the snapshot as JSON. Exits non-zero when a field is missing or has the
wrong type, naming the field.

Example:
  mongorelic-agent sample --config config.yaml
  mongorelic-agent sample --config config.yaml --from-file status.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSample(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to config file")
	cmd.Flags().StringVar(&opts.fromFile, "from-file", "", "Read serverStatus from an Extended JSON file instead of MongoDB")
	return cmd
}

func runSample(ctx context.Context, opts *sampleOptions, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	src, closeSrc, err := openSource(ctx, cfg, opts.fromFile, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	doc, err := src.ServerStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetch serverStatus: %w", err)
	}

	snap, err := scraper.Sample(doc, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	snap.SampledAt = time.Now().UTC()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
