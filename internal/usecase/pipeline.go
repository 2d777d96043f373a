package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"FacilityScanner/internal/collect"
	"FacilityScanner/internal/config"
	"FacilityScanner/internal/domain"
	"FacilityScanner/internal/export"
	"FacilityScanner/internal/merge"
	"FacilityScanner/internal/ports"
	"FacilityScanner/internal/process"
)

// Stage names in execution order.
const (
	StageFetching   = "fetching"
	StageProcessing = "processing"
	StageExporting  = "exporting"
	StageConverting = "converting"
	StageMerging    = "merging"
)

var stageOrder = []string{StageFetching, StageProcessing, StageExporting, StageConverting, StageMerging}

// StageOutcome records how one stage ended.
type StageOutcome struct {
	Stage  string
	Ok     bool
	Detail string
}

// RunSummary aggregates per-stage outcomes for one pipeline run.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	Fetched    int
	Failed     int
	Exported   int
	Matched    int
	Stages     []StageOutcome
}

// Text renders the human-readable multi-line run report. It is produced on
// every run, partial failures included.
func (s *RunSummary) Text() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("catalog sync %s -> %s\n",
		s.StartedAt.Format(time.RFC3339), s.FinishedAt.Format(time.RFC3339)))
	for _, stage := range s.Stages {
		mark := "ok"
		if !stage.Ok {
			mark = "failed"
		}
		b.WriteString(fmt.Sprintf("  %-10s %-6s %s\n", stage.Stage, mark, stage.Detail))
	}
	b.WriteString(fmt.Sprintf("  discovered=%d fetched=%d failed=%d exported=%d matched=%d",
		s.Discovered, s.Fetched, s.Failed, s.Exported, s.Matched))
	return b.String()
}

// ConvertFunc is the external conversion hook run between export and merge.
type ConvertFunc func(ctx context.Context, artifact *domain.ExportArtifact) error

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Discovery  *collect.RangeBuilder
	Fetcher    *collect.ParallelFetcher
	Processor  *process.Processor
	Exporter   *export.Exporter
	Merger     *merge.Merger
	Repository ports.RunRepository
	Converter  ConvertFunc
	Catalog    config.CatalogConfig
	Merge      config.MergeConfig
	BaseName   string
	Logger     *slog.Logger
}

// Pipeline drives fetch -> process -> export -> convert -> merge as one
// cancellable run.
type Pipeline struct {
	discovery  *collect.RangeBuilder
	fetcher    *collect.ParallelFetcher
	processor  *process.Processor
	exporter   *export.Exporter
	merger     *merge.Merger
	repository ports.RunRepository
	converter  ConvertFunc
	catalog    config.CatalogConfig
	mergeCfg   config.MergeConfig
	baseName   string
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		discovery:  deps.Discovery,
		fetcher:    deps.Fetcher,
		processor:  deps.Processor,
		exporter:   deps.Exporter,
		merger:     deps.Merger,
		repository: deps.Repository,
		converter:  deps.Converter,
		catalog:    deps.Catalog,
		mergeCfg:   deps.Merge,
		baseName:   deps.BaseName,
		logger:     deps.Logger,
	}
}

// Run executes one full catalog sync. Per-item and stage-level failures are
// absorbed into the summary; cancellation is honored inside the fetch stage,
// where the many independent sub-operations live. The returned summary is
// complete even on partial failure.
func (p *Pipeline) Run(ctx context.Context, progress ports.ProgressFunc) (*RunSummary, error) {
	if p.fetcher == nil || p.processor == nil || p.exporter == nil {
		return nil, fmt.Errorf("pipeline is missing required stages")
	}

	sum := &RunSummary{StartedAt: time.Now()}
	defer func() {
		sum.FinishedAt = time.Now()
		p.info("run finished\n" + sum.Text())
		p.saveRun(ctx, sum)
	}()

	// Fetching: discovery plus the parallel detail fetch.
	p.transition(progress, StageFetching, "discovering identifiers")
	var ids []string
	if p.discovery != nil {
		collected, err := p.discovery.CollectValidIDs(ctx, p.catalog.StartID, p.catalog.EndID, progress)
		if err != nil {
			sum.Stages = append(sum.Stages, StageOutcome{Stage: StageFetching, Detail: fmt.Sprintf("discovery rejected: %v", err)})
			return sum, nil
		}
		ids = collected
	}
	sum.Discovered = len(ids)

	if p.repository != nil && len(ids) > 0 {
		if known, err := p.repository.ExportedCodes(ctx, ids); err != nil {
			p.warn("exported-code lookup failed", "error", err)
		} else if len(known) > 0 {
			p.info("identifiers seen in earlier exports", "count", len(known))
		}
	}

	successes, failures := p.fetcher.FetchAll(ctx, ids, progress)
	sum.Fetched = len(successes)
	sum.Failed = len(failures)
	for _, failure := range failures {
		p.warn("fetch failed", "id", failure.ID, "error", failure.Err)
	}

	if len(successes) == 0 {
		sum.Stages = append(sum.Stages, StageOutcome{
			Stage:  StageFetching,
			Detail: fmt.Sprintf("no records fetched (%d ids, %d failures)", len(ids), len(failures)),
		})
		return sum, nil
	}
	sum.Stages = append(sum.Stages, StageOutcome{
		Stage:  StageFetching,
		Ok:     true,
		Detail: fmt.Sprintf("%d of %d ids fetched, %d failed", len(successes), len(ids), len(failures)),
	})

	// Processing.
	p.transition(progress, StageProcessing, "validating records")
	valid, itemErrors := p.processor.ProcessBatch(successes)
	stats := p.processor.Summarize(valid)
	sum.Stages = append(sum.Stages, StageOutcome{
		Stage:  StageProcessing,
		Ok:     true,
		Detail: fmt.Sprintf("%d valid, %d dropped, %d prefixes, %d categories", len(valid), len(itemErrors), len(stats.ByPrefix), len(stats.ByCategory)),
	})

	// Exporting.
	p.transition(progress, StageExporting, "writing artifacts")
	artifact, err := p.exporter.ExportWithBackup(valid, p.baseName)
	if err != nil {
		sum.Stages = append(sum.Stages, StageOutcome{Stage: StageExporting, Detail: fmt.Sprintf("export failed: %v", err)})
		return sum, nil
	}
	if _, err := p.exporter.ExportPerItem(valid, ""); err != nil {
		p.warn("per-item export failed", "error", err)
	}
	sum.Exported = len(valid)
	sum.Stages = append(sum.Stages, StageOutcome{
		Stage:  StageExporting,
		Ok:     true,
		Detail: fmt.Sprintf("%d records -> %s (backup %s)", len(valid), artifact.LatestDocument, artifact.BackupDir),
	})
	p.saveExported(ctx, valid)

	// Converting: external hook, soft dependency of the merge.
	p.transition(progress, StageConverting, "running external conversion")
	converted := true
	if p.converter != nil {
		if err := p.converter(ctx, artifact); err != nil {
			converted = false
			p.warn("conversion failed, merge will be skipped", "error", err)
			sum.Stages = append(sum.Stages, StageOutcome{Stage: StageConverting, Detail: fmt.Sprintf("conversion failed: %v", err)})
		}
	}
	if converted {
		sum.Stages = append(sum.Stages, StageOutcome{Stage: StageConverting, Ok: true, Detail: "done"})
	}

	// Merging: skipped when conversion failed; exported artifacts stay valid.
	p.transition(progress, StageMerging, "joining secondary dataset")
	switch {
	case !converted:
		sum.Stages = append(sum.Stages, StageOutcome{Stage: StageMerging, Detail: "skipped: conversion failed"})
	case p.merger == nil || p.mergeCfg.SecondaryPath == "":
		sum.Stages = append(sum.Stages, StageOutcome{Stage: StageMerging, Ok: true, Detail: "skipped: no secondary dataset configured"})
	default:
		result, err := p.merger.Run(artifact.LatestDocument, p.mergeCfg.SecondaryPath, p.baseName+"_merged.json")
		if err != nil {
			sum.Stages = append(sum.Stages, StageOutcome{Stage: StageMerging, Detail: fmt.Sprintf("merge failed: %v", err)})
		} else {
			sum.Matched = result.Matched
			sum.Stages = append(sum.Stages, StageOutcome{
				Stage:  StageMerging,
				Ok:     true,
				Detail: fmt.Sprintf("%d matched, %d unmatched", result.Matched, result.Unmatched),
			})
		}
	}

	return sum, nil
}

// transition emits the stage-change event. Only the fetch stage honors the
// callback's cancellation signal; later stages run to completion.
func (p *Pipeline) transition(progress ports.ProgressFunc, stage, message string) {
	p.info("stage", "stage", stage, "detail", message)
	if progress != nil {
		for i, name := range stageOrder {
			if name == stage {
				progress(i+1, len(stageOrder), fmt.Sprintf("%s: %s", stage, message))
				return
			}
		}
	}
}

func (p *Pipeline) saveExported(ctx context.Context, records []*domain.Record) {
	if p.repository == nil {
		return
	}
	codes := make([]string, 0, len(records))
	for _, record := range records {
		codes = append(codes, record.Code())
	}
	if err := p.repository.SaveExported(ctx, codes); err != nil {
		p.warn("exported-code save failed", "error", err)
	}
}

func (p *Pipeline) saveRun(ctx context.Context, sum *RunSummary) {
	if p.repository == nil {
		return
	}
	err := p.repository.SaveRun(ctx, domain.RunRecord{
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
		Discovered: sum.Discovered,
		Fetched:    sum.Fetched,
		Failed:     sum.Failed,
		Exported:   sum.Exported,
		Matched:    sum.Matched,
		Summary:    sum.Text(),
	})
	if err != nil {
		p.warn("run save failed", "error", err)
	}
}

func (p *Pipeline) info(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
