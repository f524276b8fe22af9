// Package export writes dividend records as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/models"
)

// Encode writes the header and one row per record
func Encode(w io.Writer, records []models.DividendRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.RecordHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", r.Instrument, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVWriter replaces the export file in one step so readers never see a partial table
type CSVWriter struct {
	path   string
	logger arbor.ILogger
}

func NewCSVWriter(path string, logger arbor.ILogger) *CSVWriter {
	return &CSVWriter{path: path, logger: logger}
}

// Path returns the export file location
func (w *CSVWriter) Path() string {
	return w.path
}

// Write encodes records to a temp file in the target directory, then renames it into place.
func (w *CSVWriter) Write(records []models.DividendRecord) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to replace export file: %w", err)
	}

	w.logger.Info().
		Str("path", w.path).
		Int("records", len(records)).
		Msg("Exported dividend records")
	return nil
}

// Exists reports whether an export file has been written
func (w *CSVWriter) Exists() bool {
	info, err := os.Stat(w.path)
	return err == nil && !info.IsDir()
}
