package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/blobstore"
	"github.com/rfpwatch/rfpwatch/internal/config"
	"github.com/rfpwatch/rfpwatch/internal/domain/rfp"
	"github.com/rfpwatch/rfpwatch/internal/domain/site"
	"github.com/rfpwatch/rfpwatch/internal/guard"
	"github.com/rfpwatch/rfpwatch/internal/outbox"
)

// app holds the wired object graph shared by the serve and reconcile
// commands.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  blobstore.Store
	queue  *outbox.SQLiteQueue
	rfps   *rfp.Service
	sites  *site.Service
}

// buildApp loads configuration and constructs the full stack: store,
// guards, batch processors, outbox and domain services. Logs go to stderr
// so stdout stays clean for JSON-RPC in stdio mode.
func buildApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}

	level := parseLogLevel(cfg.Log.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store := blobstore.NewGitHub(blobstore.GitHubConfig{
		Owner:   cfg.Store.Owner,
		Repo:    cfg.Store.Repo,
		Branch:  cfg.Store.Branch,
		Token:   cfg.Store.Token,
		BaseURL: cfg.Store.BaseURL,
		Timeout: time.Duration(cfg.Store.TimeoutSeconds) * time.Second,
	}, logger)

	queue, err := outbox.OpenSQLite(cfg.Outbox.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening outbox", err)
	}

	guardCfg := guard.Config{
		MaxRetries:  cfg.Guard.MaxRetries,
		BackoffBase: time.Duration(cfg.Guard.BackoffMillis) * time.Millisecond,
		Logger:      logger,
	}
	batchCfg := batch.Config{
		MaxOperations: cfg.Batch.MaxOperations,
		Logger:        logger,
	}

	rfpGuard := guard.New[rfp.RFP](store, guardCfg)
	rfpProcessor := batch.New(rfpGuard, rfp.Actions(), batchCfg)
	rfpSvc := rfp.NewService(store, rfpProcessor, queue, cfg.Documents.RFPs, logger)

	siteGuard := guard.New[site.SiteConfig](store, guardCfg)
	siteProcessor := batch.New(siteGuard, site.Actions(), batchCfg)
	siteSvc := site.NewService(store, siteGuard, siteProcessor, queue, cfg.Documents.Sites, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		queue:  queue,
		rfps:   rfpSvc,
		sites:  siteSvc,
	}, nil
}

func (a *app) Close() {
	if err := a.queue.Close(); err != nil {
		a.logger.Error("closing outbox", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
