package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/acirtautas/genmetrika-gallery/config"
	"github.com/acirtautas/genmetrika-gallery/models"
	"github.com/acirtautas/genmetrika-gallery/pipeline"
)

func TestResolveConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	doc := "parallelism: 2\ntimeout: 4s\noutput_format: json\nuser_agent: from-file\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GALLERY_PARALLEL", "3")
	t.Setenv("GALLERY_TIMEOUT", "5s")

	opts := &rootOptions{flags: config.DefaultConfig()}
	root := newRootCmdWith(opts)
	crawl, _, err := root.Find([]string{"crawl"})
	if err != nil {
		t.Fatalf("find crawl: %v", err)
	}
	if err := crawl.ParseFlags([]string{"--config", path, "--timeout", "9s", "--format", "parquet"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := resolveConfig(crawl, opts)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Parallelism != 3 {
		t.Fatalf("parallelism = %d, env should override file", cfg.Parallelism)
	}
	if cfg.Timeout != 9*time.Second {
		t.Fatalf("timeout = %v, flag should override env", cfg.Timeout)
	}
	if cfg.OutputFormat != "parquet" {
		t.Fatalf("format = %q, flag should override file", cfg.OutputFormat)
	}
	if cfg.UserAgent != "from-file" {
		t.Fatalf("user agent = %q, file should override default", cfg.UserAgent)
	}
	if cfg.CacheSize != config.DefaultConfig().CacheSize {
		t.Fatalf("cache size = %d, want default", cfg.CacheSize)
	}
}

func TestResolveConfigBadEnv(t *testing.T) {
	t.Setenv("GALLERY_CACHE_SIZE", "lots")
	opts := &rootOptions{flags: config.DefaultConfig()}
	root := newRootCmdWith(opts)
	view, _, err := root.Find([]string{"view"})
	if err != nil {
		t.Fatalf("find view: %v", err)
	}
	if _, err := resolveConfig(view, opts); err == nil || !strings.Contains(err.Error(), "GALLERY_CACHE_SIZE") {
		t.Fatalf("expected env error, got %v", err)
	}
}

func TestOriginFromArgs(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := originFromArgs(cfg, nil); err == nil {
		t.Fatalf("missing origin should fail")
	}
	if err := originFromArgs(cfg, []string{"https://www.genmetrika.eu/lt/content/index.html"}); err != nil {
		t.Fatalf("valid origin: %v", err)
	}
	cfg.OutputFormat = "xml"
	if err := originFromArgs(cfg, nil); err == nil || !strings.Contains(err.Error(), "output format") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", "entries", 6)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written without verbose: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"entries":6`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	result := &models.CrawlResult{
		Gallery: &models.Gallery{
			Title:   "Foto archyvas",
			Entries: make([]models.GalleryEntry, 6),
		},
		StartIndex:   3,
		StartFound:   true,
		StartTime:    start,
		EndTime:      start.Add(1500 * time.Millisecond),
		RequestCount: 8,
		PageCount:    3,
	}
	var buf bytes.Buffer
	printSummary(&buf, result, pipeline.Stats{Written: 6, Unresolved: 1}, "out/gallery.csv")

	out := buf.String()
	for _, want := range []string{"Foto archyvas", "Entries:       6", "Start index:   4", "Requests:      8", "1.5s", "out/gallery.csv"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Invalid") {
		t.Fatalf("invalid line printed for zero invalid entries")
	}
}
