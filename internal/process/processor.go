package process

import (
	"log/slog"
	"strings"

	"FacilityScanner/internal/domain"
)

// ItemError records why one raw record was dropped from a batch.
type ItemError struct {
	Index  int
	Key    string
	Reason string
}

// Stats summarizes a batch for reporting.
type Stats struct {
	Total      int
	ByPrefix   map[string]int
	ByCategory map[string]int
}

// Processor validates and normalizes fetched records. Process is a pure
// transform; it never fails, it only fills and derives.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor builds a processor.
func NewProcessor(log *slog.Logger) *Processor {
	return &Processor{logger: log}
}

// Process returns a normalized copy: known columns defaulted, the code
// prefix and locale name splits derived when missing.
func (p *Processor) Process(raw *domain.Record) *domain.Record {
	record := raw.Clone()

	for _, column := range domain.ColumnOrder {
		if record.Has(column) && strings.TrimSpace(record.Get(column)) != "" {
			continue
		}
		if def, ok := domain.DefaultValues[column]; ok {
			record.Set(column, def)
		}
	}

	if record.Get(domain.FieldPrefix) == "" {
		record.Set(domain.FieldPrefix, domain.CodePrefix(record.Code()))
	}

	if record.Get(domain.FieldNameJA) == "" && record.Get(domain.FieldName) != "" {
		ja, en := domain.SplitLocalizedName(record.Get(domain.FieldName))
		record.Set(domain.FieldNameJA, ja)
		if record.Get(domain.FieldNameEN) == "" {
			record.Set(domain.FieldNameEN, en)
		}
	}

	return record
}

// Validate rejects records missing the canonical identifier or the name key.
func (p *Processor) Validate(record *domain.Record) bool {
	if strings.TrimSpace(record.Code()) == "" {
		return false
	}
	if strings.TrimSpace(record.Get(domain.FieldName)) == "" {
		return false
	}
	return true
}

// ProcessBatch normalizes every record independently; one bad item never
// aborts the batch.
func (p *Processor) ProcessBatch(raws []*domain.Record) ([]*domain.Record, []ItemError) {
	var (
		valid  []*domain.Record
		errors []ItemError
	)

	for i, raw := range raws {
		record := p.Process(raw)
		if !p.Validate(record) {
			reason := "missing name"
			if strings.TrimSpace(record.Code()) == "" {
				reason = "missing code"
			}
			errors = append(errors, ItemError{Index: i, Key: record.Code(), Reason: reason})
			p.debug("record dropped", "index", i, "code", record.Code(), "reason", reason)
			continue
		}
		valid = append(valid, record)
	}

	return valid, errors
}

// Summarize counts records by code prefix and by category.
func (p *Processor) Summarize(records []*domain.Record) Stats {
	stats := Stats{
		Total:      len(records),
		ByPrefix:   map[string]int{},
		ByCategory: map[string]int{},
	}

	for _, record := range records {
		stats.ByPrefix[record.Get(domain.FieldPrefix)]++
		stats.ByCategory[record.Get(domain.FieldCategory)]++
	}

	return stats
}

func (p *Processor) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
