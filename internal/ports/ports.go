package ports

import (
	"context"
	"time"

	"FacilityScanner/internal/domain"
)

// ProgressFunc reports pipeline progress after each unit of work. Returning
// false requests cooperative cancellation: no new work is dispatched, work
// already in flight finishes naturally.
type ProgressFunc func(current, total int, message string) bool

// Response is the raw result of one HTTP fetch, body already decoded to UTF-8.
type Response struct {
	Status  int
	Body    []byte
	Charset string
}

// Fetcher is the single HTTP capability the scrapers depend on.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// RecordSource resolves one identifier into a facility record.
type RecordSource interface {
	Fetch(ctx context.Context, id string) (*domain.Record, error)
}

// ListingSource exposes the paginated directory.
type ListingSource interface {
	Summary(ctx context.Context) (*domain.ListingSummary, error)
	CollectIDs(ctx context.Context, startPage, endPage int, progress ProgressFunc) ([]string, error)
}

// RunRepository persists run provenance and previously exported codes.
type RunRepository interface {
	SaveRun(ctx context.Context, run domain.RunRecord) error
	SaveExported(ctx context.Context, codes []string) error
	ExportedCodes(ctx context.Context, codes []string) (map[string]bool, error)
}

// Scheduler controls when catalog syncs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
