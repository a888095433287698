package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/gradecast/internal/adapters/mirror"
	"github.com/okian/gradecast/internal/adapters/repository"
	service "github.com/okian/gradecast/internal/app"
	"github.com/okian/gradecast/internal/config"
	"github.com/okian/gradecast/internal/domain/scoring"
	"github.com/okian/gradecast/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// The logger may not be initialized yet.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gradecast",
		Short: "Score student record files and predict Pass/Fail outcomes",
		Long: `gradecast scores uploaded student record files, stores every batch
atomically and mirrors each scored row to a spreadsheet on a best-effort basis.

Without a subcommand it runs the HTTP server.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(newServeCmd(), newScoreCmd(), newTemplateCmd(), newGenerateCmd())
	return root
}

// bootstrap loads configuration and initializes the global logger writing to w.
func bootstrap(w io.Writer) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.WithOutput(w), logger.WithFormat(cfg.LogFormat)); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	log := logger.Get()
	// Fall back to info on invalid input.
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, log, nil
}

// buildService opens the primary store and assembles the pipeline from cfg.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	store, err := repository.Open(ctx, repository.Config{
		Driver:   cfg.StoreDriver,
		DSN:      cfg.StoreDSN,
		Database: cfg.StoreDatabase,
		Timeout:  cfg.StoreTimeout(),
	}, repository.WithLogger(log.Named("store")))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	engine := scoring.NewEngine(
		scoring.WithConfidenceBounds(cfg.ConfidenceMin, cfg.ConfidenceMax),
		scoring.WithConfidenceJitter(cfg.ConfidenceJitter),
	)

	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithStore(store),
		service.WithMirror(newAppender(ctx, cfg, log)),
		service.WithEngine(engine),
		service.WithBatchThreshold(cfg.BatchThreshold),
		service.WithManualThreshold(cfg.ManualThreshold),
		service.WithStrictRanges(cfg.StrictRanges),
		service.WithWorkerCount(cfg.SyncWorkers),
		service.WithQueueSize(cfg.SyncQueueSize),
		service.WithJoinTimeout(cfg.SyncJoinTimeout()),
	), nil
}

// newAppender returns the spreadsheet client, or a disabled mirror when
// credentials are absent.
func newAppender(ctx context.Context, cfg *config.Config, log logger.Logger) mirror.Appender {
	if !cfg.MirrorConfigured() {
		log.Info(ctx, "spreadsheet mirror disabled", logger.Bool("enabled", cfg.MirrorEnabled))
		return mirror.Disabled{}
	}

	retry := mirror.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MirrorRetryAttempts

	client, err := mirror.NewSheetsClient(
		mirror.Credentials{APIKey: cfg.MirrorAPIKey, SheetID: cfg.MirrorSheetID},
		mirror.WithBaseURL(cfg.MirrorBaseURL),
		mirror.WithRange(cfg.MirrorRange),
		mirror.WithTimeout(cfg.MirrorTimeout()),
		mirror.WithRetry(retry),
		mirror.WithRateLimit(cfg.MirrorRatePerSec),
		mirror.WithLogger(log.Named("mirror")),
	)
	if err != nil {
		log.Warn(ctx, "spreadsheet mirror disabled", logger.Error(err))
		return mirror.Disabled{}
	}
	log.Info(ctx, "spreadsheet mirror enabled", logger.String("range", cfg.MirrorRange))
	return client
}
