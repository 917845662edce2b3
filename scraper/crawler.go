package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/acirtautas/genmetrika-gallery/models"
	"github.com/acirtautas/genmetrika-gallery/parser"
)

// Crawler discovers every entry across a paginated listing and resolves each
// one to its full-size image.
type Crawler struct {
	fetcher Fetcher
	metrics *Metrics

	requestCount int64
}

// NewCrawler builds a crawler on top of fetcher. metrics may be nil.
func NewCrawler(fetcher Fetcher, metrics *Metrics) *Crawler {
	return &Crawler{
		fetcher: fetcher,
		metrics: metrics,
	}
}

type listingPage struct {
	URL  string
	HTML string
}

// Crawl returns the ordered gallery reachable from the origin listing page.
// originHTML is the already available markup of originURL and is not
// fetched again.
func (c *Crawler) Crawl(ctx context.Context, originURL, originHTML string) (*models.Gallery, error) {
	result, err := c.CrawlFrom(ctx, originURL, originHTML, "")
	if err != nil {
		return nil, err
	}
	return result.Gallery, nil
}

// CrawlFrom is Crawl plus the position of startImageURL in the resolved
// gallery. The first entry whose full image matches wins; no match starts
// at 0.
func (c *Crawler) CrawlFrom(ctx context.Context, originURL, originHTML, startImageURL string) (*models.CrawlResult, error) {
	start := time.Now()
	before := atomic.LoadInt64(&c.requestCount)

	pages, err := discoverPages(originURL, originHTML)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGalleryLoad, err)
	}
	slog.Debug("pagination discovered", slog.String("origin", pages[0]), slog.Int("pages", len(pages)))

	listings, err := c.fetchListings(ctx, pages, originHTML)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGalleryLoad, err)
	}

	entries := collectEntries(listings)
	c.metrics.AddEntries(len(entries))

	if err := c.resolveImages(ctx, entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGalleryLoad, err)
	}

	gallery := &models.Gallery{
		Title:   parser.Title(originHTML),
		Origin:  pages[0],
		Pages:   pages,
		Entries: entries,
	}
	startIndex, found := locateStart(gallery, startImageURL)

	end := time.Now()
	c.metrics.ObserveCrawl(end.Sub(start))
	slog.Info("gallery crawled",
		slog.String("origin", gallery.Origin),
		slog.Int("pages", len(pages)),
		slog.Int("entries", gallery.Len()),
		slog.Int("unresolved", gallery.Unresolved()),
		slog.Int("start_index", startIndex),
	)

	return &models.CrawlResult{
		Gallery:      gallery,
		StartIndex:   startIndex,
		StartFound:   found,
		StartTime:    start,
		EndTime:      end,
		RequestCount: int(atomic.LoadInt64(&c.requestCount) - before),
		PageCount:    len(pages),
	}, nil
}

// CrawlPage starts from any gallery page. A detail page that links back to
// its index crawls the index and starts at the detail page's image;
// anything else is treated as the origin listing page.
func (c *Crawler) CrawlPage(ctx context.Context, pageURL string) (*models.CrawlResult, error) {
	html, err := c.fetch(ctx, PhaseOrigin, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGalleryLoad, err)
	}

	originURL, originHTML := pageURL, html
	startImageURL := ""
	if parser.IsDetailPage(html) {
		startImageURL, _ = parser.ExtractFullImage(html, pageURL)
		if indexURL, ok := parser.ExtractIndexLink(html, pageURL); ok {
			indexHTML, err := c.fetch(ctx, PhaseOrigin, indexURL)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrGalleryLoad, err)
			}
			originURL, originHTML = indexURL, indexHTML
		}
	}

	result, err := c.CrawlFrom(ctx, originURL, originHTML, startImageURL)
	if err != nil {
		return nil, err
	}
	if title := parser.Title(html); title != "" {
		result.Gallery.Title = title
	}
	return result, nil
}

func discoverPages(originURL, originHTML string) ([]string, error) {
	pages := parser.ExtractPaginationLinks(originHTML, originURL)
	if len(pages) == 0 {
		return nil, fmt.Errorf("invalid origin URL %q", originURL)
	}
	return pages, nil
}

// fetchListings fetches every page except the origin, pages[0], whose markup
// is reused.
func (c *Crawler) fetchListings(ctx context.Context, pages []string, originHTML string) ([]listingPage, error) {
	return fanOut(ctx, len(pages), func(ctx context.Context, i int) (listingPage, error) {
		if i == 0 {
			return listingPage{URL: pages[0], HTML: originHTML}, nil
		}
		html, err := c.fetch(ctx, PhaseListing, pages[i])
		if err != nil {
			return listingPage{}, err
		}
		return listingPage{URL: pages[i], HTML: html}, nil
	})
}

// collectEntries concatenates thumbnails in page order. Duplicates reached
// from different pages are kept.
func collectEntries(listings []listingPage) []models.GalleryEntry {
	var entries []models.GalleryEntry
	for _, page := range listings {
		for _, thumb := range parser.ExtractThumbnails(page.HTML, page.URL) {
			entries = append(entries, thumb.Entry())
		}
	}
	return entries
}

// resolveImages fills FullImageURL in place. Results land at their input
// position regardless of completion order.
func (c *Crawler) resolveImages(ctx context.Context, entries []models.GalleryEntry) error {
	images, err := fanOut(ctx, len(entries), func(ctx context.Context, i int) (string, error) {
		html, err := c.fetch(ctx, PhaseDetail, entries[i].DetailPageURL)
		if err != nil {
			return "", err
		}
		image, ok := parser.ExtractFullImage(html, entries[i].DetailPageURL)
		if !ok {
			c.metrics.IncUnresolved()
			slog.Warn("detail page without image", slog.String("url", entries[i].DetailPageURL))
		}
		return image, nil
	})
	if err != nil {
		return err
	}
	for i := range entries {
		entries[i].FullImageURL = images[i]
	}
	return nil
}

func locateStart(gallery *models.Gallery, startImageURL string) (int, bool) {
	if idx := gallery.IndexOfImage(startImageURL); idx >= 0 {
		return idx, true
	}
	return 0, false
}

// fetch tags any failure with the crawl phase it happened in.
func (c *Crawler) fetch(ctx context.Context, phase Phase, url string) (string, error) {
	atomic.AddInt64(&c.requestCount, 1)
	c.metrics.IncRequest(phase)
	html, err := c.fetcher.Fetch(ctx, url)
	if err == nil {
		return html, nil
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		fetchErr = NewFetchError(url, 0, err)
	}
	fetchErr = fetchErr.inPhase(phase)
	c.metrics.IncError(fetchErr.Phase, fetchErr.Failure)
	return "", fetchErr
}

// fanOut runs fn for every index in [0, n) concurrently and returns the
// results by index. The first error cancels the rest and is returned.
func fanOut[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			value, err := fn(gctx, i)
			if err != nil {
				return err
			}
			results[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
