package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"FacilityScanner/internal/domain"
	"FacilityScanner/internal/ports"
)

// labelFields maps the directory's table headers onto known record fields.
// Headers outside this table are preserved under their raw label.
var labelFields = map[string]string{
	"名称":     domain.FieldName,
	"施設名":    domain.FieldName,
	"分類":     domain.FieldCategory,
	"設置機関":   domain.FieldOrganization,
	"所在地":    domain.FieldAddress,
	"電話番号":   domain.FieldPhone,
	"URL":    domain.FieldURL,
	"概要":     domain.FieldOverview,
	"問い合わせ先": domain.FieldContact,
}

// FacilityScraper turns one detail page into a Record.
type FacilityScraper struct {
	fetcher   ports.Fetcher
	detailURL string
	logger    *slog.Logger
}

var _ ports.RecordSource = (*FacilityScraper)(nil)

// NewFacilityScraper wires the fetch capability and the detail endpoint.
func NewFacilityScraper(fetcher ports.Fetcher, detailURL string, log *slog.Logger) *FacilityScraper {
	return &FacilityScraper{fetcher: fetcher, detailURL: detailURL, logger: log}
}

// Fetch resolves one identifier. A non-2xx status, an empty body, or a parse
// failure is reported as an error to the caller; nothing escapes as a panic.
func (s *FacilityScraper) Fetch(ctx context.Context, id string) (*domain.Record, error) {
	pageURL, err := buildDetailURL(s.detailURL, id)
	if err != nil {
		return nil, err
	}

	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, fmt.Errorf("facility %s: status %d", id, resp.Status)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, fmt.Errorf("facility %s: empty body", id)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse facility %s: %w", id, err)
	}

	record := parseFacility(doc, id)
	if record.Len() <= 1 {
		return nil, fmt.Errorf("facility %s: no fields extracted", id)
	}

	s.debug("facility fetched", "id", id, "fields", record.Len())
	return record, nil
}

func parseFacility(doc *goquery.Document, id string) *domain.Record {
	record := domain.NewRecord()
	record.Set(domain.FieldCode, id)
	record.Set(domain.FieldPrefix, domain.CodePrefix(id))

	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th").First().Text())
		if label == "" {
			return
		}
		value := strings.TrimSpace(row.Find("td").First().Text())

		field, known := labelFields[label]
		if !known {
			field = label
		}
		if value == "" && record.Has(field) {
			return
		}
		record.Set(field, value)
	})

	if name := record.Get(domain.FieldName); name != "" {
		ja, en := domain.SplitLocalizedName(name)
		record.Set(domain.FieldNameJA, ja)
		record.Set(domain.FieldNameEN, en)
	}

	return record
}

func buildDetailURL(base, id string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid detail url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("mode", "detail")
	query.Set("code", id)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (s *FacilityScraper) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
