package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"FacilityScanner/internal/domain"
)

const (
	sheetName   = "Facilities"
	backupStamp = "20060102_150405"
	sourceTag   = "web_scraping"
)

// Exporter serializes normalized records into the tabular and document
// artifacts, with versioned backups. A destination locked by another process
// (Excel holding the spreadsheet open is the usual case) degrades to a
// timestamp-suffixed alternate path instead of failing the export.
type Exporter struct {
	dir        string
	collection string
	logger     *slog.Logger
}

// NewExporter wires the output directory and collection name.
func NewExporter(dir, collection string, log *slog.Logger) *Exporter {
	return &Exporter{dir: dir, collection: collection, logger: log}
}

// ExportTabular writes one spreadsheet row per record in the fixed column
// order. With appendMode the existing sheet is extended below its last row;
// otherwise the file is recreated with a single header row.
func (e *Exporter) ExportTabular(records []*domain.Record, filename string, appendMode bool) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(e.dir, filename)

	var (
		file     *excelize.File
		startRow int
	)

	if appendMode {
		if _, statErr := os.Stat(path); statErr == nil {
			opened, err := excelize.OpenFile(path)
			if err != nil {
				return "", fmt.Errorf("open existing %s: %w", path, err)
			}
			rows, err := opened.GetRows(sheetName)
			if err != nil {
				_ = opened.Close()
				return "", fmt.Errorf("read sheet %s: %w", sheetName, err)
			}
			file = opened
			startRow = len(rows) + 1
		}
	}

	if file == nil {
		file = excelize.NewFile()
		if err := file.SetSheetName(file.GetSheetName(0), sheetName); err != nil {
			_ = file.Close()
			return "", fmt.Errorf("name sheet: %w", err)
		}
		header := make([]interface{}, len(domain.ColumnOrder))
		for i, column := range domain.ColumnOrder {
			header[i] = column
		}
		if err := file.SetSheetRow(sheetName, "A1", &header); err != nil {
			_ = file.Close()
			return "", fmt.Errorf("write header: %w", err)
		}
		startRow = 2
	}
	defer file.Close()

	for i, record := range records {
		row := make([]interface{}, len(domain.ColumnOrder))
		for j, column := range domain.ColumnOrder {
			row[j] = record.Get(column)
		}
		cell := fmt.Sprintf("A%d", startRow+i)
		if err := file.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", fmt.Errorf("write row %d: %w", startRow+i, err)
		}
	}

	out := path
	err := file.SaveAs(out)
	if isLockConflict(err) {
		out = alternatePath(path)
		e.warn("destination locked, writing alternate", "path", path, "alternate", out)
		err = file.SaveAs(out)
	}
	if err != nil {
		return "", fmt.Errorf("save %s: %w", out, err)
	}

	e.debug("tabular exported", "path", out, "rows", len(records), "append", appendMode)
	return out, nil
}

// ExportDocument writes the document artifact:
// {"<collection>": [record...], "count": n, "exported_at": ISO8601}.
func (e *Exporter) ExportDocument(records []*domain.Record, filename string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(e.dir, filename)

	payload := map[string]interface{}{
		e.collection:  records,
		"count":       len(records),
		"exported_at": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	out := path
	err = os.WriteFile(out, data, 0o644)
	if isLockConflict(err) {
		out = alternatePath(path)
		e.warn("destination locked, writing alternate", "path", path, "alternate", out)
		err = os.WriteFile(out, data, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}

	e.debug("document exported", "path", out, "count", len(records))
	return out, nil
}

// ExportPerItem writes one wrapped document per record into dir.
func (e *Exporter) ExportPerItem(records []*domain.Record, dir string) (string, error) {
	if dir == "" {
		dir = filepath.Join(e.dir, "entries")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create entries dir: %w", err)
	}

	processedAt := time.Now().UTC().Format(time.RFC3339)
	for _, record := range records {
		envelope := map[string]interface{}{
			"source":       sourceTag,
			"facility_id":  record.Code(),
			"processed_at": processedAt,
			"data":         record,
		}
		data, err := json.MarshalIndent(envelope, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal entry %s: %w", record.Code(), err)
		}
		name := fmt.Sprintf("%s_%s.json", e.collection, record.Code())
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return "", fmt.Errorf("write entry %s: %w", name, err)
		}
	}

	e.debug("per-item export done", "dir", dir, "count", len(records))
	return dir, nil
}

// ExportWithBackup writes the latest-named artifacts first, then copies both
// into a fresh timestamped backup directory. Copy-after-write guarantees the
// backup is byte-identical to what was just written.
func (e *Exporter) ExportWithBackup(records []*domain.Record, baseName string) (*domain.ExportArtifact, error) {
	tabular, err := e.ExportTabular(records, baseName+".xlsx", false)
	if err != nil {
		return nil, err
	}
	document, err := e.ExportDocument(records, baseName+".json")
	if err != nil {
		return nil, err
	}

	backupDir, err := BackupInto(e.dir, tabular, document)
	if err != nil {
		return nil, err
	}

	return &domain.ExportArtifact{
		LatestTabular:  tabular,
		LatestDocument: document,
		BackupDir:      backupDir,
	}, nil
}

// BackupInto byte-copies the given files into <root>/backups/<timestamp>/.
func BackupInto(root string, paths ...string) (string, error) {
	dir := filepath.Join(root, "backups", time.Now().Format(backupStamp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	for _, path := range paths {
		if err := copyFile(path, filepath.Join(dir, filepath.Base(path))); err != nil {
			return "", fmt.Errorf("backup %s: %w", path, err)
		}
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// isLockConflict reports whether a write failed because the destination is
// held by another process. Windows surfaces sharing violations, which wrap
// into permission errors; the message checks cover the raw variants.
func isLockConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "being used by another process") ||
		strings.Contains(msg, "sharing violation")
}

func alternatePath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s_%s%s", base, time.Now().Format(backupStamp), ext)
}

func (e *Exporter) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Exporter) warn(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
