package merge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"

	"FacilityScanner/internal/domain"
	"FacilityScanner/internal/export"
)

const logFilename = "merge_log.json"

// Merger joins exported facility rows with a secondary dataset by code,
// injecting matched payloads under a nested sub-field.
type Merger struct {
	outputDir  string
	collection string
	subField   string
	logger     *slog.Logger
}

// NewMerger wires output location and join settings.
func NewMerger(outputDir, collection, subField string, log *slog.Logger) *Merger {
	return &Merger{
		outputDir:  outputDir,
		collection: collection,
		subField:   subField,
		logger:     log,
	}
}

// MergeByKey enriches every primary row whose code exists in the secondary
// map. Rows without a match are left unchanged; every row appears exactly
// once in the result.
func (m *Merger) MergeByKey(primary []map[string]any, secondary map[string]map[string]any) domain.MergeResult {
	matched := 0
	for _, row := range primary {
		key := stringKey(row[domain.FieldCode])
		if key == "" {
			continue
		}
		payload, ok := secondary[key]
		if !ok {
			continue
		}

		sub := coerceSubField(row[m.subField])
		if err := mergo.Merge(&sub, payload, mergo.WithOverride); err != nil {
			m.warn("payload merge failed", "code", key, "error", err)
			continue
		}
		row[m.subField] = sub
		matched++
	}

	return domain.MergeResult{
		Rows:      primary,
		Matched:   matched,
		Unmatched: len(primary) - matched,
	}
}

// Run reads the exported document artifact and the secondary dataset, merges
// them, writes the merged document, backs it up copy-after-write, and appends
// a provenance entry to the merge log.
func (m *Merger) Run(primaryPath, secondaryPath, outFilename string) (*domain.MergeResult, error) {
	rows, err := m.readPrimary(primaryPath)
	if err != nil {
		return nil, err
	}
	secondary, err := readSecondary(secondaryPath)
	if err != nil {
		return nil, err
	}

	result := m.MergeByKey(rows, secondary)

	outPath := filepath.Join(m.outputDir, outFilename)
	payload := map[string]any{
		m.collection:  result.Rows,
		"count":       len(result.Rows),
		"exported_at": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal merged document: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write merged document: %w", err)
	}

	if _, err := export.BackupInto(m.outputDir, outPath); err != nil {
		return nil, fmt.Errorf("backup merged document: %w", err)
	}

	if err := m.appendLog(primaryPath, secondaryPath, outPath, result); err != nil {
		m.warn("merge log append failed", "error", err)
	}

	m.debug("merge done", "matched", result.Matched, "total", len(result.Rows))
	return &result, nil
}

func (m *Merger) readPrimary(path string) ([]map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read primary dataset: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse primary dataset: %w", err)
	}

	items, ok := doc[m.collection].([]any)
	if !ok {
		return nil, fmt.Errorf("primary dataset has no %q collection", m.collection)
	}

	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// readSecondary accepts either a direct code-to-payload object or a document
// whose arrays hold payloads carrying their own "code" field.
func readSecondary(path string) (map[string]map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secondary dataset: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse secondary dataset: %w", err)
	}

	out := map[string]map[string]any{}
	for key, value := range doc {
		switch v := value.(type) {
		case map[string]any:
			out[key] = v
		case []any:
			for _, item := range v {
				payload, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if code := stringKey(payload[domain.FieldCode]); code != "" {
					out[code] = payload
				}
			}
		}
	}
	return out, nil
}

func (m *Merger) appendLog(primaryPath, secondaryPath, outPath string, result domain.MergeResult) error {
	logPath := filepath.Join(m.outputDir, logFilename)

	var entries []map[string]any
	if raw, err := os.ReadFile(logPath); err == nil {
		_ = json.Unmarshal(raw, &entries)
	}

	entries = append(entries, map[string]any{
		"primary":      filepath.Base(primaryPath),
		"secondary":    filepath.Base(secondaryPath),
		"output":       filepath.Base(outPath),
		"processed_at": time.Now().UTC().Format(time.RFC3339),
		"matched":      result.Matched,
		"total":        len(result.Rows),
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(logPath, data, 0o644)
}

// coerceSubField turns whatever occupies the sub-field into a structured map.
// A string-encoded value is decoded first; undecodable strings survive under
// a raw key.
func coerceSubField(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			return decoded
		}
		return map[string]any{"raw": v}
	default:
		return map[string]any{}
	}
}

func stringKey(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (m *Merger) debug(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Merger) warn(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
