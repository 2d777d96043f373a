package parser

import (
	"context"
	"strings"
	"testing"
)

func TestListingSummaryFromTotal(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]string{"1": listingHTML("1,234", 5, 3)}}
	scraper := NewListingScraper(fetcher, "https://facility.example.jp/search", nil)

	summary, err := scraper.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if summary == nil {
		t.Fatalf("expected a summary")
	}
	if summary.TotalCount != 1234 {
		t.Fatalf("unexpected total: %d", summary.TotalCount)
	}
	// ceil(1234/100) with the remote page size.
	if summary.FinalPage != 13 {
		t.Fatalf("unexpected final page: %d", summary.FinalPage)
	}
}

func TestListingSummaryFromPageLinks(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]string{"1": listingHTML("", 7, 3)}}
	scraper := NewListingScraper(fetcher, "https://facility.example.jp/search", nil)

	summary, err := scraper.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if summary == nil || summary.FinalPage != 7 {
		t.Fatalf("expected final page 7 from links, got %+v", summary)
	}
}

func TestListingSummaryAbsent(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]string{"1": "<p>検索結果</p>"}}
	scraper := NewListingScraper(fetcher, "https://facility.example.jp/search", nil)

	summary, err := scraper.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if summary != nil {
		t.Fatalf("expected nil summary, got %+v", summary)
	}
}

func TestCollectIDsDeduplicatesInOrder(t *testing.T) {
	t.Parallel()

	page := `
	<a href="?mode=detail&code=KK003">c</a>
	<a href="?mode=detail&code=KK001">a</a>
	<a href="?mode=detail&code=KK003">dup</a>
	<a href="?mode=detail&code=KK002">b</a>`

	fetcher := &stubFetcher{pages: map[string]string{"1": page}}
	scraper := NewListingScraper(fetcher, "https://facility.example.jp/search", nil)

	ids, err := scraper.CollectIDs(context.Background(), 1, 1, nil)
	if err != nil {
		t.Fatalf("CollectIDs error: %v", err)
	}

	want := []string{"KK003", "KK001", "KK002"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %v", len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("unexpected order: %v", ids)
		}
	}
}

func TestCollectIDsStopsOnShortPage(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]string{
		"1": listingHTML("", 0, 2),
		"2": listingHTML("", 0, 2),
	}}
	scraper := NewListingScraper(fetcher, "https://facility.example.jp/search", nil)
	scraper.pageSize = 5

	ids, err := scraper.CollectIDs(context.Background(), 1, 0, nil)
	if err != nil {
		t.Fatalf("CollectIDs error: %v", err)
	}
	// Page 1 is short, so page 2 is never requested.
	if len(fetcher.calls) != 1 {
		t.Fatalf("expected 1 page request, got %d", len(fetcher.calls))
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
}

func TestCollectIDsHonorsCancellation(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]string{
		"1": listingHTML("", 0, 5),
		"2": listingHTML("", 0, 5),
		"3": listingHTML("", 0, 5),
	}}
	scraper := NewListingScraper(fetcher, "https://facility.example.jp/search", nil)
	scraper.pageSize = 5

	ids, err := scraper.CollectIDs(context.Background(), 1, 3, func(current, total int, message string) bool {
		return current <= 1
	})
	if err != nil {
		t.Fatalf("CollectIDs error: %v", err)
	}
	if len(fetcher.calls) != 1 {
		t.Fatalf("expected walk to stop after 1 page, got %d requests", len(fetcher.calls))
	}
	if len(ids) != 5 {
		t.Fatalf("expected the first page's ids, got %v", ids)
	}
}

func TestBuildListingURL(t *testing.T) {
	t.Parallel()

	u, err := buildListingURL("https://facility.example.jp/search", 4)
	if err != nil {
		t.Fatalf("buildListingURL returned error: %v", err)
	}
	for _, fragment := range []string{"mode=search", "page=4", "display_result=2"} {
		if !strings.Contains(u, fragment) {
			t.Fatalf("url %s missing %s", u, fragment)
		}
	}
}
