package collect

import (
	"context"
	"fmt"
	"log/slog"

	"FacilityScanner/internal/ports"
)

// RangeBuilder converts a requested identifier range into listing pages and
// collects the identifiers that actually exist. Identifier ranges in this
// directory are sparse, so the walk gives up after enough consecutive empty
// pages instead of scanning the whole range unconditionally.
type RangeBuilder struct {
	listing       ports.ListingSource
	chunkSize     int
	stopThreshold int
	logger        *slog.Logger
}

// NewRangeBuilder wires the listing source with the page math parameters.
// chunkSize is the caller's idea of identifiers per page; the remote page
// size is a server-side constant and may differ. The mismatch is a
// configuration concern, surfaced by logging, never reconciled silently.
func NewRangeBuilder(listing ports.ListingSource, chunkSize, stopThreshold int, log *slog.Logger) *RangeBuilder {
	return &RangeBuilder{
		listing:       listing,
		chunkSize:     chunkSize,
		stopThreshold: stopThreshold,
		logger:        log,
	}
}

// CollectValidIDs walks the page range covering [startID, endID] and returns
// every identifier the listing references, de-duplicated in first-seen order.
// The walk is sequential on purpose: the stopping decision depends on what
// prior pages yielded.
func (b *RangeBuilder) CollectValidIDs(ctx context.Context, startID, endID int, progress ports.ProgressFunc) ([]string, error) {
	if b.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", b.chunkSize)
	}
	if b.stopThreshold <= 0 {
		return nil, fmt.Errorf("stop threshold must be positive, got %d", b.stopThreshold)
	}
	if startID <= 0 || endID < startID {
		return nil, fmt.Errorf("invalid id range [%d, %d]", startID, endID)
	}

	startPage := (startID + b.chunkSize - 1) / b.chunkSize
	endPage := (endID + b.chunkSize - 1) / b.chunkSize

	if summary, err := b.listing.Summary(ctx); err != nil {
		b.warn("listing summary unavailable, scanning requested range", "error", err)
	} else if summary == nil {
		b.warn("listing declares no total or page links, scanning requested range")
	} else if summary.FinalPage > 0 && summary.FinalPage < endPage {
		endPage = summary.FinalPage
	}

	maxEmptyPages := (b.stopThreshold + b.chunkSize - 1) / b.chunkSize
	totalPages := endPage - startPage + 1

	var (
		ids      []string
		seen     = map[string]struct{}{}
		emptyRun = 0
	)

	for page := startPage; page <= endPage; page++ {
		if ctx.Err() != nil {
			break
		}
		if progress != nil && !progress(page-startPage+1, totalPages, fmt.Sprintf("scanning page %d/%d", page, endPage)) {
			break
		}

		pageIDs, err := b.listing.CollectIDs(ctx, page, page, nil)
		if err != nil {
			b.warn("page scan failed, counting as empty", "page", page, "error", err)
			pageIDs = nil
		}

		if len(pageIDs) == 0 {
			emptyRun++
			if emptyRun >= maxEmptyPages {
				b.debug("empty page run reached threshold, stopping", "page", page, "run", emptyRun)
				break
			}
			continue
		}

		emptyRun = 0
		for _, id := range pageIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}

		if len(pageIDs) < b.chunkSize {
			b.debug("short page, treating as last", "page", page, "ids", len(pageIDs))
			break
		}
	}

	b.debug("range scan done", "ids", len(ids))
	return ids, nil
}

func (b *RangeBuilder) debug(msg string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *RangeBuilder) warn(msg string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}
