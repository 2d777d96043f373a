package merge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestMergeByKey(t *testing.T) {
	t.Parallel()

	merger := NewMerger("", "facilities", "reservation", nil)

	primary := []map[string]any{
		{"code": "KK001", "name": "一号"},
		{"code": "KK002", "name": "二号"},
		{"code": "KK003", "name": "三号"},
	}
	secondary := map[string]map[string]any{
		"KK001": {"slots": float64(3)},
		"KK003": {"slots": float64(1), "note": "要事前連絡"},
	}

	result := merger.MergeByKey(primary, secondary)

	if len(result.Rows) != 3 {
		t.Fatalf("every primary row must survive, got %d", len(result.Rows))
	}
	if result.Matched != 2 || result.Unmatched != 1 {
		t.Fatalf("unexpected counts: matched=%d unmatched=%d", result.Matched, result.Unmatched)
	}

	first, ok := result.Rows[0]["reservation"].(map[string]any)
	if !ok || first["slots"] != float64(3) {
		t.Fatalf("matched row not enriched: %v", result.Rows[0])
	}
	if _, present := result.Rows[1]["reservation"]; present {
		t.Fatalf("unmatched row must stay unchanged: %v", result.Rows[1])
	}
}

func TestMergeByKeyCoercesStringSubField(t *testing.T) {
	t.Parallel()

	merger := NewMerger("", "facilities", "reservation", nil)

	primary := []map[string]any{
		{"code": "KK001", "reservation": `{"existing":"yes"}`},
	}
	secondary := map[string]map[string]any{
		"KK001": {"slots": float64(2)},
	}

	result := merger.MergeByKey(primary, secondary)

	sub, ok := result.Rows[0]["reservation"].(map[string]any)
	if !ok {
		t.Fatalf("sub-field not structured: %v", result.Rows[0]["reservation"])
	}
	if sub["existing"] != "yes" {
		t.Fatalf("pre-existing payload lost: %v", sub)
	}
	if sub["slots"] != float64(2) {
		t.Fatalf("secondary payload missing: %v", sub)
	}
}

func TestMergeByKeyNumericKeys(t *testing.T) {
	t.Parallel()

	merger := NewMerger("", "facilities", "reservation", nil)

	primary := []map[string]any{{"code": float64(1001)}}
	secondary := map[string]map[string]any{"1001": {"slots": float64(5)}}

	result := merger.MergeByKey(primary, secondary)
	if result.Matched != 1 {
		t.Fatalf("numeric code did not match: %+v", result)
	}
}

func TestMergerRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	primaryPath := filepath.Join(dir, "facilities.json")
	primaryDoc := map[string]any{
		"facilities": []map[string]any{
			{"code": "KK001", "name": "一号"},
			{"code": "KK002", "name": "二号"},
		},
		"count":       2,
		"exported_at": "2026-09-01T00:00:00Z",
	}
	writeJSON(t, primaryPath, primaryDoc)

	secondaryPath := filepath.Join(dir, "reservations.json")
	writeJSON(t, secondaryPath, map[string]any{
		"KK002": map[string]any{"slots": 4},
	})

	merger := NewMerger(dir, "facilities", "reservation", nil)
	result, err := merger.Run(primaryPath, secondaryPath, "facilities_merged.json")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Matched != 1 || result.Unmatched != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}

	var merged map[string]any
	readJSON(t, filepath.Join(dir, "facilities_merged.json"), &merged)
	rows := merged["facilities"].([]any)
	if len(rows) != 2 {
		t.Fatalf("merged output must carry all rows, got %d", len(rows))
	}
	second := rows[1].(map[string]any)
	reservation, ok := second["reservation"].(map[string]any)
	if !ok || reservation["slots"] != float64(4) {
		t.Fatalf("merged row missing reservation payload: %v", second)
	}

	// Provenance log carries one entry per run.
	var entries []map[string]any
	readJSON(t, filepath.Join(dir, logFilename), &entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0]["matched"] != float64(1) {
		t.Fatalf("unexpected log entry: %v", entries[0])
	}

	// Backup follows copy-after-write: byte-identical to the merged output.
	backupsRoot := filepath.Join(dir, "backups")
	stamps, err := os.ReadDir(backupsRoot)
	if err != nil || len(stamps) == 0 {
		t.Fatalf("no backup directory created: %v", err)
	}
	backupFile := filepath.Join(backupsRoot, stamps[0].Name(), "facilities_merged.json")
	backupBytes, err := os.ReadFile(backupFile)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	latestBytes, err := os.ReadFile(filepath.Join(dir, "facilities_merged.json"))
	if err != nil {
		t.Fatalf("read merged output: %v", err)
	}
	if string(backupBytes) != string(latestBytes) {
		t.Fatalf("backup differs from merged output")
	}
}

func TestMergerRunMissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	merger := NewMerger(dir, "facilities", "reservation", nil)

	if _, err := merger.Run(filepath.Join(dir, "absent.json"), filepath.Join(dir, "also-absent.json"), "out.json"); err == nil {
		t.Fatalf("expected error for missing primary dataset")
	}
}

func writeJSON(t *testing.T, path string, value any) {
	t.Helper()
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readJSON(t *testing.T, path string, into any) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}
