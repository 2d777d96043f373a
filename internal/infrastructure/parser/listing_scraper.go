package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"FacilityScanner/internal/domain"
	"FacilityScanner/internal/ports"
)

// RemotePageSize is how many entries the directory renders per listing page.
// It is fixed server-side and is not necessarily the caller's chunk size.
const RemotePageSize = 100

var (
	totalExpr = regexp.MustCompile(`([0-9][0-9,]*)\s*件中`)
	pageExpr  = regexp.MustCompile(`[?&]page=(\d+)`)
)

// ListingScraper walks the paginated search endpoint and extracts the
// identifiers each page references.
type ListingScraper struct {
	fetcher    ports.Fetcher
	listingURL string
	pageSize   int
	logger     *slog.Logger
}

var _ ports.ListingSource = (*ListingScraper)(nil)

// NewListingScraper wires the fetch capability and the search endpoint.
func NewListingScraper(fetcher ports.Fetcher, listingURL string, log *slog.Logger) *ListingScraper {
	return &ListingScraper{
		fetcher:    fetcher,
		listingURL: listingURL,
		pageSize:   RemotePageSize,
		logger:     log,
	}
}

// Summary fetches page 1 and reads what the directory declares about its own
// size: the "<N>件中" total label and the highest page number referenced by
// pagination links. Returns nil when neither is present; callers must then
// fall back to a full linear scan.
func (s *ListingScraper) Summary(ctx context.Context) (*domain.ListingSummary, error) {
	doc, err := s.fetchPage(ctx, 1)
	if err != nil {
		return nil, err
	}

	total := parseTotalCount(doc)
	maxPage := parseMaxPage(doc)
	if total == 0 && maxPage == 0 {
		return nil, nil
	}

	summary := &domain.ListingSummary{TotalCount: total, FinalPage: maxPage}
	if total > 0 {
		summary.FinalPage = (total + s.pageSize - 1) / s.pageSize
	}

	s.debug("listing summary", "total", summary.TotalCount, "final_page", summary.FinalPage)
	return summary, nil
}

// CollectIDs walks pages [startPage, endPage] and returns the identifiers
// referenced by their detail links, de-duplicated in first-seen order. An
// endPage of 0 walks until a short page. The progress callback can stop the
// walk between pages.
func (s *ListingScraper) CollectIDs(ctx context.Context, startPage, endPage int, progress ports.ProgressFunc) ([]string, error) {
	if startPage <= 0 {
		startPage = 1
	}

	var (
		ids  []string
		seen = map[string]struct{}{}
	)

	totalPages := 0
	if endPage > 0 {
		totalPages = endPage - startPage + 1
	}

	for page := startPage; endPage <= 0 || page <= endPage; page++ {
		if ctx.Err() != nil {
			break
		}
		if progress != nil && !progress(page-startPage+1, totalPages, fmt.Sprintf("listing page %d", page)) {
			break
		}

		doc, err := s.fetchPage(ctx, page)
		if err != nil {
			return ids, fmt.Errorf("listing page %d: %w", page, err)
		}

		pageIDs := parseDetailIDs(doc)
		for _, id := range pageIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}

		s.debug("listing page collected", "page", page, "ids", len(pageIDs))

		if len(pageIDs) < s.pageSize {
			break
		}
	}

	return ids, nil
}

func (s *ListingScraper) fetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	pageURL, err := buildListingURL(s.listingURL, page)
	if err != nil {
		return nil, err
	}

	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, fmt.Errorf("status %d", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return doc, nil
}

func parseTotalCount(doc *goquery.Document) int {
	match := totalExpr.FindStringSubmatch(doc.Text())
	if match == nil {
		return 0
	}
	total, err := strconv.Atoi(strings.ReplaceAll(match[1], ",", ""))
	if err != nil {
		return 0
	}
	return total
}

func parseMaxPage(doc *goquery.Document) int {
	maxPage := 0
	doc.Find("a[href*=\"page=\"]").Each(func(i int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		match := pageExpr.FindStringSubmatch(href)
		if match == nil {
			return
		}
		if page, err := strconv.Atoi(match[1]); err == nil && page > maxPage {
			maxPage = page
		}
	})
	return maxPage
}

// parseDetailIDs extracts codes from same-page detail links in document order.
func parseDetailIDs(doc *goquery.Document) []string {
	var ids []string
	doc.Find("a[href*=\"mode=detail\"]").Each(func(i int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		if code := parsed.Query().Get("code"); code != "" {
			ids = append(ids, code)
		}
	})
	return ids
}

func buildListingURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("mode", "search")
	query.Set("page", strconv.Itoa(page))
	query.Set("display_result", "2")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (s *ListingScraper) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
