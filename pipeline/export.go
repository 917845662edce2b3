// Package pipeline writes crawled galleries to CSV, JSONL and parquet files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acirtautas/genmetrika-gallery/models"
	"github.com/acirtautas/genmetrika-gallery/parser"
)

// ErrNothingToExport is returned for an empty gallery.
var ErrNothingToExport = errors.New("pipeline: gallery is empty")

const defaultBatchSize = 64

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []Record) error
	Close() error
	Validate() error
}

// Stats summarises an export.
type Stats struct {
	Written    int
	Unresolved int
	Invalid    int
}

// NewWriter returns the writer for format. The dual format writes filename
// as CSV and a sibling .json file.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "json":
		return NewJSONWriter(filename)
	case "csv":
		return NewCSVWriter(filename)
	case "parquet":
		return NewParquetWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Export writes the gallery in collection order, batchSize records at a time.
// Entries missing a detail page or thumbnail are counted and skipped;
// unresolved full images are written with an empty URL.
func Export(ctx context.Context, w OutputWriter, gallery *models.Gallery, batchSize int) (Stats, error) {
	var stats Stats
	if gallery.Len() == 0 {
		return stats, ErrNothingToExport
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	batch := make([]Record, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.Write(batch); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		stats.Written += len(batch)
		batch = batch[:0]
		return nil
	}

	for i, entry := range gallery.Entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := parser.ValidateEntry(entry); err != nil {
			stats.Invalid++
			slog.Debug("skipping entry", slog.Int("position", i), slog.Any("error", err))
			continue
		}
		if !entry.Resolved() {
			stats.Unresolved++
		}
		batch = append(batch, newRecord(i, entry))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}
