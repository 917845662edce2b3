package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/acirtautas/genmetrika-gallery/models"
)

func sampleGallery(n int) *models.Gallery {
	g := &models.Gallery{Origin: "http://example.test/index.html"}
	for i := 0; i < n; i++ {
		id := strconv.Itoa(i)
		g.Entries = append(g.Entries, models.GalleryEntry{
			ThumbnailURL:  "http://example.test/thumbs/" + id + ".jpg",
			DetailPageURL: "http://example.test/" + id + "_large.html",
			FullImageURL:  "http://example.test/full/" + id + ".jpg",
		})
	}
	return g
}

type mockWriter struct {
	mu      sync.Mutex
	batches [][]Record
}

func (mw *mockWriter) Write(records []Record) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.batches = append(mw.batches, append([]Record(nil), records...))
	return nil
}

func (mw *mockWriter) Close() error {
	return nil
}

func (mw *mockWriter) Validate() error {
	return nil
}

func TestExportBatchesInOrder(t *testing.T) {
	writer := &mockWriter{}
	g := sampleGallery(65)
	g.Entries[10].FullImageURL = ""
	g.Entries[20].ThumbnailURL = ""

	stats, err := Export(context.Background(), writer, g, 32)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if stats.Written != 64 || stats.Unresolved != 1 || stats.Invalid != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(writer.batches) != 2 || len(writer.batches[0]) != 32 || len(writer.batches[1]) != 32 {
		t.Fatalf("unexpected batches: %d", len(writer.batches))
	}

	prev := -1
	for _, batch := range writer.batches {
		for _, rec := range batch {
			if rec.Position <= prev {
				t.Fatalf("positions out of order: %d after %d", rec.Position, prev)
			}
			prev = rec.Position
		}
	}
}

func TestExportEmptyGallery(t *testing.T) {
	if _, err := Export(context.Background(), &mockWriter{}, &models.Gallery{}, 0); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if _, err := Export(context.Background(), writer, sampleGallery(2), 0); err != nil {
		t.Fatalf("export csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "position" || records[0][2] != "detail_page_url" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[2][0] != "1" || records[2][2] != "http://example.test/1_large.html" {
		t.Fatalf("unexpected row: %v", records[2])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if _, err := Export(context.Background(), writer, sampleGallery(3), 0); err != nil {
		t.Fatalf("export json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded Record
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded.Position != count {
			t.Fatalf("position = %d, want %d", decoded.Position, count)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 3 {
		t.Fatalf("json lines=%d, want 3", count)
	}
}

func TestParquetWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.parquet")

	writer, err := NewParquetWriter(path)
	if err != nil {
		t.Fatalf("create parquet writer: %v", err)
	}
	if _, err := Export(context.Background(), writer, sampleGallery(4), 0); err != nil {
		t.Fatalf("export parquet: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate parquet: %v", err)
	}

	rows, err := parquet.ReadFile[Record](path)
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(rows) != 4 || rows[3].FullImageURL != "http://example.test/full/3.jpg" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "gallery.csv")

	writer, err := NewWriter("dual", csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if _, err := Export(context.Background(), writer, sampleGallery(1), 0); err != nil {
		t.Fatalf("export dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(filepath.Join(dir, "gallery.json")); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestNewWriterUnsupported(t *testing.T) {
	if _, err := NewWriter("xml", filepath.Join(t.TempDir(), "out.xml")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
