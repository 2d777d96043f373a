package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FacilityScanner/internal/collect"
	"FacilityScanner/internal/config"
	"FacilityScanner/internal/export"
	"FacilityScanner/internal/infrastructure/fetch"
	"FacilityScanner/internal/infrastructure/parser"
	"FacilityScanner/internal/infrastructure/scheduler"
	"FacilityScanner/internal/infrastructure/storage"
	"FacilityScanner/internal/logging"
	"FacilityScanner/internal/merge"
	"FacilityScanner/internal/ports"
	"FacilityScanner/internal/process"
	"FacilityScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	sched    ports.Scheduler
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	client, err := fetch.NewClient(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("build fetch client: %w", err)
	}

	if cfg.Catalog.ChunkSize != parser.RemotePageSize {
		baseLogger.Warn("chunkSize differs from the directory's page size; page math follows chunkSize",
			"chunk_size", cfg.Catalog.ChunkSize, "remote_page_size", parser.RemotePageSize)
	}

	facility := parser.NewFacilityScraper(client, cfg.Source.DetailURL, baseLogger.With("component", "scraper.facility"))
	listing := parser.NewListingScraper(client, cfg.Source.ListingURL, baseLogger.With("component", "scraper.listing"))

	discovery := collect.NewRangeBuilder(listing, cfg.Catalog.ChunkSize, cfg.Catalog.StopThreshold,
		baseLogger.With("component", "discovery"))
	fetcher := collect.NewParallelFetcher(facility, cfg.Catalog.MaxWorkers,
		baseLogger.With("component", "fetcher"))

	var repository ports.RunRepository
	if cfg.Database.DSN != "" {
		db, err := storage.Open(cfg.Database.DSN)
		if err != nil {
			baseLogger.Warn("run history unavailable", "error", err)
		} else {
			repository = storage.NewPostgresRepository(db)
		}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Discovery:  discovery,
		Fetcher:    fetcher,
		Processor:  process.NewProcessor(baseLogger.With("component", "processor")),
		Exporter:   export.NewExporter(cfg.Export.OutputDir, cfg.Export.Collection, baseLogger.With("component", "exporter")),
		Merger:     merge.NewMerger(cfg.Export.OutputDir, cfg.Export.Collection, cfg.Merge.SubField, baseLogger.With("component", "merger")),
		Repository: repository,
		Catalog:    cfg.Catalog,
		Merge:      cfg.Merge,
		BaseName:   cfg.Export.BaseName,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		pipeline: pipeline,
		sched:    scheduler.NewIntervalScheduler(cfg.Scheduler.Interval()),
		logger:   baseLogger,
	}, nil
}

// Run executes a single catalog sync, or periodic syncs when an interval is
// configured. Cancellation flows through the progress callback.
func (a *Application) Run(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}

	progress := func(current, total int, message string) bool {
		a.logger.Debug("progress", "current", current, "total", total, "message", message)
		return ctx.Err() == nil
	}

	if a.cfg.Scheduler.Interval() > 0 {
		if err := a.sched.Start(ctx, func(t time.Time) {
			if _, err := a.pipeline.Run(ctx, progress); err != nil {
				a.logger.Error("scheduled sync failed", "error", err)
			}
		}); err != nil {
			return err
		}
		<-ctx.Done()
		return a.sched.Stop(context.Background())
	}

	_, err := a.pipeline.Run(ctx, progress)
	return err
}
