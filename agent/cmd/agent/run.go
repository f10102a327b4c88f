package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mongorelic/mongorelic/agent/internal/config"
	"github.com/mongorelic/mongorelic/agent/internal/logging"
	"github.com/mongorelic/mongorelic/agent/internal/newrelic"
	"github.com/mongorelic/mongorelic/agent/internal/pipeline"
	"github.com/mongorelic/mongorelic/agent/internal/scraper"
	"github.com/mongorelic/mongorelic/agent/internal/security"
	"github.com/mongorelic/mongorelic/agent/internal/shipper"
	"github.com/mongorelic/mongorelic/agent/internal/telemetry"
	"github.com/mongorelic/mongorelic/agent/internal/version"
)

type runOptions struct {
	configPath string
	fromFile   string
	dryRun     bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll and report until interrupted",
		Long: `Poll serverStatus every agent.poll_cadence_secs seconds and post one
envelope per interval. The first poll only records a baseline.

Example:
  mongorelic-agent run --config /etc/mongorelic/config.yaml
  mongorelic-agent run --config config.yaml --dry-run
  mongorelic-agent run --config config.yaml --from-file status.json --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runAgent(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to config file")
	cmd.Flags().StringVar(&opts.fromFile, "from-file", "", "Read serverStatus from an Extended JSON file instead of MongoDB")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print envelopes to stdout instead of posting them")
	return cmd
}

// runAgent blocks until ctx is cancelled. Envelopes go to out in dry-run
// mode.
func runAgent(ctx context.Context, opts *runOptions, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Infow("agent: starting",
		"version", version.Version,
		"config", opts.configPath,
		"database", cfg.Mongo.Database,
		"interval", cfg.Agent.Interval(),
		"dry_run", opts.dryRun,
	)

	src, closeSrc, err := openSource(ctx, cfg, opts.fromFile, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	rec := telemetry.NewRecorder(cfg.Agent.Interval())

	ship, err := openShipper(ctx, cfg, opts, out, rec, logger)
	if err != nil {
		return err
	}

	if addr := cfg.Agent.TelemetryAddr; addr != "" {
		go func() {
			if err := telemetry.Serve(ctx, addr, telemetry.Router(rec, logger), logger); err != nil {
				logger.Errorw("agent: telemetry server stopped", "addr", addr, "err", err)
			}
		}()
	}

	pipeline.New(src, ship, newrelic.MetadataFor(cfg), cfg.Mongo.Database, logger).
		WithRecorder(rec).
		Run(ctx, cfg.Agent.Interval())

	logger.Infow("agent: shutting down")
	return nil
}

// openSource picks the status source. The returned func releases it.
func openSource(ctx context.Context, cfg *config.Config, fromFile string, logger *zap.SugaredLogger) (scraper.StatusSource, func(), error) {
	if fromFile != "" {
		logger.Infow("agent: reading serverStatus from file", "path", fromFile)
		return scraper.FileSource{Path: fromFile}, func() {}, nil
	}

	src, err := scraper.NewMongoSource(ctx, cfg.Mongo, logger)
	if err != nil {
		return nil, nil, err
	}
	return src, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := src.Close(closeCtx); err != nil {
			logger.Warnw("agent: disconnect", "err", err)
		}
	}, nil
}

// openShipper builds the reporter. The HTTP reporter follows config file
// changes to newrelic.api_url and the license key.
func openShipper(ctx context.Context, cfg *config.Config, opts *runOptions, out io.Writer,
	rec *telemetry.Recorder, logger *zap.SugaredLogger) (pipeline.Shipper, error) {
	if opts.dryRun {
		return shipper.NewWriter(out), nil
	}

	hs, err := shipper.New(cfg.NewRelic, logger)
	if err != nil {
		return nil, err
	}
	if cfg.NewRelic.Key() == "" {
		logger.Warnw("agent: no license key configured, the endpoint will reject reports",
			"license_key_env", cfg.NewRelic.LicenseKeyEnv)
	}

	checkCert(ctx, cfg.NewRelic.APIURL, rec, logger)

	go func() {
		err := config.Watch(ctx, opts.configPath, logger, func(updated *config.Config) {
			hs.SetTarget(updated.NewRelic.APIURL, updated.NewRelic.Key())
			checkCert(ctx, updated.NewRelic.APIURL, rec, logger)
		})
		if err != nil {
			logger.Errorw("agent: config watcher stopped", "err", err)
		}
	}()
	return hs, nil
}

func checkCert(ctx context.Context, endpoint string, rec *telemetry.Recorder, logger *zap.SugaredLogger) {
	cs := security.Check(ctx, endpoint)
	if cs == nil {
		return
	}
	switch cs.Status {
	case "unreachable":
		logger.Warnw("agent: ingestion endpoint unreachable", "endpoint", endpoint)
		return
	case "expired", "expiring":
		logger.Warnw("agent: ingestion endpoint certificate", "status", cs.Status,
			"days_left", cs.DaysLeft, "not_after", cs.NotAfter, "issuer", cs.Issuer)
	default:
		logger.Infow("agent: ingestion endpoint certificate", "status", cs.Status,
			"days_left", cs.DaysLeft, "issuer", cs.Issuer)
	}
	rec.SetCertDaysLeft(cs.DaysLeft)
}
