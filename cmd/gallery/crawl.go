package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/briandowns/spinner"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/acirtautas/genmetrika-gallery/config"
	"github.com/acirtautas/genmetrika-gallery/models"
	"github.com/acirtautas/genmetrika-gallery/pipeline"
	"github.com/acirtautas/genmetrika-gallery/scraper"
)

func newCrawlCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a gallery and export its entries",
		Long: `Crawl fetches the gallery at <url>, follows its pagination, resolves the
full-size image of every thumbnail and writes the collection in gallery
order. <url> may be a listing page or a single image detail page.`,
		Example: `  # Export to CSV
  gallery crawl https://www.genmetrika.eu/lt/content/index.html

  # Parquet, with metrics on :9090
  gallery crawl --format parquet --output out/gallery.parquet --metrics-addr :9090 <url>`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if err := originFromArgs(cfg, args); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	flags := opts.flags
	cmd.Flags().StringVarP(&flags.OutputFile, "output", "o", flags.OutputFile, "Output file path")
	cmd.Flags().StringVar(&flags.OutputFormat, "format", flags.OutputFormat, "Output format: csv, json, dual or parquet")
	cmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	return cmd
}

func runCrawl(ctx context.Context, out io.Writer, cfg *config.Config) error {
	slog.Info("starting crawl",
		slog.String("origin", cfg.OriginURL),
		slog.String("fetcher", cfg.Fetcher),
		slog.Int("workers", cfg.Parallelism),
	)

	metrics := scraper.NewMetrics()
	stopMetrics := serveMetrics(cfg.MetricsAddr, metrics)
	defer stopMetrics()

	result, err := crawlGallery(ctx, cfg, metrics, out)
	if err != nil {
		return err
	}

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	stats, exportErr := pipeline.Export(ctx, writer, result.Gallery, 0)
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
	}
	if exportErr != nil {
		return fmt.Errorf("export: %w", exportErr)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	printSummary(out, result, stats, cfg.OutputFile)
	return nil
}

// crawlGallery resolves the gallery behind cfg.OriginURL with a spinner on
// out while it runs.
func crawlGallery(ctx context.Context, cfg *config.Config, metrics *scraper.Metrics, out io.Writer) (*models.CrawlResult, error) {
	fetcher, closeFetcher, err := newFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	defer closeFetcher()

	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " Loading gallery..."
	s.Start()
	defer s.Stop()

	crawler := scraper.NewCrawler(fetcher, metrics)
	return crawler.CrawlPage(ctx, cfg.OriginURL)
}

func newFetcher(cfg *config.Config, metrics *scraper.Metrics) (scraper.Fetcher, func(), error) {
	switch cfg.Fetcher {
	case "chrome":
		f := scraper.NewChromeFetcher(cfg, metrics)
		return f, f.Close, nil
	default:
		f, err := scraper.NewHTTPFetcher(cfg, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("initialising fetcher: %w", err)
		}
		return f, func() {}, nil
	}
}

// serveMetrics exposes metrics on addr until the returned stop is called.
// An empty addr disables the server.
func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(out io.Writer, result *models.CrawlResult, stats pipeline.Stats, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "Crawl complete")
	if result.Gallery.Title != "" {
		fmt.Fprintf(out, "  Title:         %s\n", result.Gallery.Title)
	}
	fmt.Fprintf(out, "  Pages:         %d\n", result.PageCount)
	fmt.Fprintf(out, "  Entries:       %d\n", result.Gallery.Len())
	fmt.Fprintf(out, "  Written:       %d\n", stats.Written)
	fmt.Fprintf(out, "  Unresolved:    %d\n", stats.Unresolved)
	if stats.Invalid > 0 {
		fmt.Fprintf(out, "  Invalid:       %d\n", stats.Invalid)
	}
	if result.StartFound {
		fmt.Fprintf(out, "  Start index:   %d\n", result.StartIndex+1)
	}
	fmt.Fprintf(out, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(out, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Fprintf(out, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(out, separator)
}
