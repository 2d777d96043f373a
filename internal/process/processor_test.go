package process

import (
	"testing"

	"FacilityScanner/internal/domain"
)

func rawRecord(code, name string) *domain.Record {
	record := domain.NewRecord()
	record.Set(domain.FieldCode, code)
	if name != "" {
		record.Set(domain.FieldName, name)
	}
	return record
}

func TestProcessFillsDefaultsAndDerives(t *testing.T) {
	t.Parallel()

	processor := NewProcessor(nil)
	record := processor.Process(rawRecord("KK001", "京都分析センター Kyoto Analysis Center"))

	if record.Get(domain.FieldCategory) != "未分類" {
		t.Fatalf("category default missing: %q", record.Get(domain.FieldCategory))
	}
	if record.Get(domain.FieldPrefix) != "KK" {
		t.Fatalf("prefix not derived: %q", record.Get(domain.FieldPrefix))
	}
	if record.Get(domain.FieldNameJA) != "京都分析センター" {
		t.Fatalf("name_ja not derived: %q", record.Get(domain.FieldNameJA))
	}
	if record.Get(domain.FieldNameEN) != "Kyoto Analysis Center" {
		t.Fatalf("name_en not derived: %q", record.Get(domain.FieldNameEN))
	}
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	raw := rawRecord("KK001", "施設")
	NewProcessor(nil).Process(raw)

	if raw.Has(domain.FieldCategory) {
		t.Fatalf("input record was mutated")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	processor := NewProcessor(nil)

	if !processor.Validate(processor.Process(rawRecord("KK001", "施設"))) {
		t.Fatalf("complete record rejected")
	}
	if processor.Validate(processor.Process(rawRecord("", "施設"))) {
		t.Fatalf("record without code accepted")
	}
	if processor.Validate(processor.Process(rawRecord("KK001", ""))) {
		t.Fatalf("record without name accepted")
	}
}

func TestProcessBatchContinuesPastBadItems(t *testing.T) {
	t.Parallel()

	raws := []*domain.Record{
		rawRecord("KK001", "第一施設"),
		rawRecord("", "名無し"),
		rawRecord("KK003", "第三施設"),
		rawRecord("KK004", ""),
	}

	valid, itemErrors := NewProcessor(nil).ProcessBatch(raws)

	if len(valid) != 2 {
		t.Fatalf("expected 2 valid records, got %d", len(valid))
	}
	if len(itemErrors) != 2 {
		t.Fatalf("expected 2 item errors, got %d", len(itemErrors))
	}
	if itemErrors[0].Index != 1 || itemErrors[0].Reason != "missing code" {
		t.Fatalf("unexpected first error: %+v", itemErrors[0])
	}
	if itemErrors[1].Index != 3 || itemErrors[1].Key != "KK004" || itemErrors[1].Reason != "missing name" {
		t.Fatalf("unexpected second error: %+v", itemErrors[1])
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	processor := NewProcessor(nil)
	records := []*domain.Record{
		processor.Process(rawRecord("KK001", "一号")),
		processor.Process(rawRecord("KK002", "二号")),
		processor.Process(rawRecord("TA001", "三号")),
	}
	records[2].Set(domain.FieldCategory, "顕微鏡")

	stats := processor.Summarize(records)
	if stats.Total != 3 {
		t.Fatalf("unexpected total: %d", stats.Total)
	}
	if stats.ByPrefix["KK"] != 2 || stats.ByPrefix["TA"] != 1 {
		t.Fatalf("unexpected prefix counts: %v", stats.ByPrefix)
	}
	if stats.ByCategory["未分類"] != 2 || stats.ByCategory["顕微鏡"] != 1 {
		t.Fatalf("unexpected category counts: %v", stats.ByCategory)
	}
}
