package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"FacilityScanner/internal/domain"
	"FacilityScanner/internal/ports"
)

// smallBatchSize is the cutoff below which pool setup is not worth it.
const smallBatchSize = 3

// ParallelFetcher runs the record source across many identifiers with a
// bounded worker pool. Completion order is unspecified; the success and
// failure id sets are exact and disjoint.
type ParallelFetcher struct {
	source     ports.RecordSource
	maxWorkers int
	logger     *slog.Logger
}

// NewParallelFetcher wires the record source with the pool bound.
func NewParallelFetcher(source ports.RecordSource, maxWorkers int, log *slog.Logger) *ParallelFetcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &ParallelFetcher{source: source, maxWorkers: maxWorkers, logger: log}
}

// FetchAll fetches every identifier, wrapping per-item errors into failures.
// The progress callback fires after each completion; returning false stops
// further dispatch while in-flight fetches finish naturally. When no
// cancellation occurs, len(successes)+len(failures) == len(ids).
func (f *ParallelFetcher) FetchAll(ctx context.Context, ids []string, progress ports.ProgressFunc) ([]*domain.Record, []domain.FetchFailure) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) < smallBatchSize {
		return f.fetchSequential(ctx, ids, progress)
	}
	return f.fetchPooled(ctx, ids, progress)
}

func (f *ParallelFetcher) fetchSequential(ctx context.Context, ids []string, progress ports.ProgressFunc) ([]*domain.Record, []domain.FetchFailure) {
	var (
		successes []*domain.Record
		failures  []domain.FetchFailure
	)

	for i, id := range ids {
		record, err := f.source.Fetch(ctx, id)
		if err != nil {
			failures = append(failures, domain.FetchFailure{ID: id, Err: err})
		} else {
			successes = append(successes, record)
		}

		if progress != nil && !progress(i+1, len(ids), fmt.Sprintf("fetched %s", id)) {
			break
		}
	}

	return successes, failures
}

func (f *ParallelFetcher) fetchPooled(ctx context.Context, ids []string, progress ports.ProgressFunc) ([]*domain.Record, []domain.FetchFailure) {
	var (
		successes []*domain.Record
		failures  []domain.FetchFailure

		mu        sync.Mutex
		done      int
		cancelled atomic.Bool
		wg        sync.WaitGroup
	)

	workers := f.maxWorkers
	if workers > len(ids) {
		workers = len(ids)
	}

	jobs := make(chan string)
	total := len(ids)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				record, err := f.source.Fetch(ctx, id)

				mu.Lock()
				if err != nil {
					failures = append(failures, domain.FetchFailure{ID: id, Err: err})
				} else {
					successes = append(successes, record)
				}
				done++
				if progress != nil && !progress(done, total, fmt.Sprintf("fetched %s", id)) {
					cancelled.Store(true)
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		if cancelled.Load() || ctx.Err() != nil {
			break
		}
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	f.debug("parallel fetch done", "requested", total, "ok", len(successes), "failed", len(failures))
	return successes, failures
}

func (f *ParallelFetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
