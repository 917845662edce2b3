package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testOrigin = "http://example.test/gallery/index.html"

// memoryFetcher serves pages from a map. A URL listed in after blocks until
// the named URL has completed, which lets tests force completion order.
type memoryFetcher struct {
	pages map[string]string
	fail  map[string]error
	after map[string]string

	mu        sync.Mutex
	calls     map[string]int
	completed []string
	done      map[string]chan struct{}
}

func newMemoryFetcher(pages map[string]string) *memoryFetcher {
	done := make(map[string]chan struct{}, len(pages))
	for url := range pages {
		done[url] = make(chan struct{})
	}
	return &memoryFetcher{
		pages: pages,
		fail:  make(map[string]error),
		after: make(map[string]string),
		calls: make(map[string]int),
		done:  done,
	}
}

func (f *memoryFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls[url]++
	wait := f.done[f.after[url]]
	f.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.fail[url]; ok {
		return "", NewFetchError(url, 500, err)
	}
	body, ok := f.pages[url]
	if !ok {
		return "", NewFetchError(url, 404, errors.New("Not Found"))
	}

	f.mu.Lock()
	f.completed = append(f.completed, url)
	if ch, ok := f.done[url]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	f.mu.Unlock()
	return body, nil
}

func (f *memoryFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *memoryFetcher) completionOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.completed...)
}

// buildListingPage renders a listing page linking to pages 1..pages and
// carrying one thumbnail per id.
func buildListingPage(pages int, ids ...string) string {
	var builder strings.Builder
	builder.WriteString("<html><head><title>Gallery</title></head><body><ul class=\"pagination\">")
	for p := 1; p <= pages; p++ {
		fmt.Fprintf(&builder, "<li><a href=\"%s\">%d</a></li>", pageName(p), p)
	}
	builder.WriteString("</ul>")
	for _, id := range ids {
		fmt.Fprintf(&builder, "<div class=\"thumbnail\"><a href=\"%s_large.html\"><img src=\"thumbs/%s.jpg\"></a></div>", id, id)
	}
	builder.WriteString("</body></html>")
	return builder.String()
}

func detailHTML(src string) string {
	return fmt.Sprintf("<html><body><ul><li class=\"index\"><a href=\"index.html\">index</a></li></ul><div id=\"detailImage\"><img src=\"%s\"></div></body></html>", src)
}

func pageName(p int) string {
	if p == 1 {
		return "index.html"
	}
	return fmt.Sprintf("index%d.html", p)
}

func galleryURL(path string) string {
	return "http://example.test/gallery/" + path
}

// threePageSite has three listing pages with two thumbnails each.
func threePageSite() map[string]string {
	pages := map[string]string{
		galleryURL("index.html"):  buildListingPage(3, "a", "b"),
		galleryURL("index2.html"): buildListingPage(3, "c", "d"),
		galleryURL("index3.html"): buildListingPage(3, "e", "f"),
	}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		pages[galleryURL(id+"_large.html")] = detailHTML("full/" + id + ".jpg")
	}
	return pages
}

func TestCrawlThreePagesStartIndex(t *testing.T) {
	site := threePageSite()
	fetcher := newMemoryFetcher(site)
	crawler := NewCrawler(fetcher, NewMetrics())

	result, err := crawler.CrawlFrom(context.Background(), testOrigin, site[testOrigin], galleryURL("full/d.jpg"))
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	gallery := result.Gallery
	if gallery.Len() != 6 {
		t.Fatalf("entries = %d, want 6", gallery.Len())
	}
	if result.StartIndex != 3 || !result.StartFound {
		t.Fatalf("start = %d (found=%v), want 3", result.StartIndex, result.StartFound)
	}
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		entry := gallery.Entry(i)
		if entry.DetailPageURL != galleryURL(id+"_large.html") {
			t.Fatalf("entry %d detail = %s", i, entry.DetailPageURL)
		}
		if entry.ThumbnailURL != galleryURL("thumbs/"+id+".jpg") {
			t.Fatalf("entry %d thumbnail = %s", i, entry.ThumbnailURL)
		}
		if entry.FullImageURL != galleryURL("full/"+id+".jpg") {
			t.Fatalf("entry %d full = %s", i, entry.FullImageURL)
		}
	}
	if fetcher.callCount(testOrigin) != 0 {
		t.Fatalf("origin page must not be fetched again")
	}
	if result.PageCount != 3 || result.RequestCount != 8 {
		t.Fatalf("pages=%d requests=%d, want 3 and 8", result.PageCount, result.RequestCount)
	}
	if gallery.Title != "Gallery" {
		t.Fatalf("title = %q", gallery.Title)
	}
}

func TestCrawlStartImageNotFound(t *testing.T) {
	site := threePageSite()
	crawler := NewCrawler(newMemoryFetcher(site), nil)

	result, err := crawler.CrawlFrom(context.Background(), testOrigin, site[testOrigin], galleryURL("full/zzz.jpg"))
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if result.StartIndex != 0 || result.StartFound {
		t.Fatalf("start = %d (found=%v), want 0", result.StartIndex, result.StartFound)
	}
}

func TestCrawlListingOrderIndependentOfCompletion(t *testing.T) {
	site := threePageSite()
	fetcher := newMemoryFetcher(site)
	// page 2 completes after page 3
	fetcher.after[galleryURL("index2.html")] = galleryURL("index3.html")

	gallery, err := NewCrawler(fetcher, nil).Crawl(context.Background(), testOrigin, site[testOrigin])
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	var got []string
	for _, entry := range gallery.Entries {
		got = append(got, strings.TrimSuffix(strings.TrimPrefix(entry.DetailPageURL, galleryURL("")), "_large.html"))
	}
	if strings.Join(got, ",") != "a,b,c,d,e,f" {
		t.Fatalf("order = %v", got)
	}
}

func TestCrawlResolutionOrderPreserved(t *testing.T) {
	origin := buildListingPage(1, "x", "y", "z")
	site := map[string]string{
		testOrigin:                 origin,
		galleryURL("x_large.html"): detailHTML("full/x.jpg"),
		galleryURL("y_large.html"): detailHTML("full/y.jpg"),
		galleryURL("z_large.html"): detailHTML("full/z.jpg"),
	}
	fetcher := newMemoryFetcher(site)
	// y completes first, then z, then x
	fetcher.after[galleryURL("z_large.html")] = galleryURL("y_large.html")
	fetcher.after[galleryURL("x_large.html")] = galleryURL("z_large.html")

	gallery, err := NewCrawler(fetcher, nil).Crawl(context.Background(), testOrigin, origin)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	order := fetcher.completionOrder()
	wantOrder := []string{galleryURL("y_large.html"), galleryURL("z_large.html"), galleryURL("x_large.html")}
	if strings.Join(order, " ") != strings.Join(wantOrder, " ") {
		t.Fatalf("completion order = %v, want %v", order, wantOrder)
	}
	for i, id := range []string{"x", "y", "z"} {
		if got := gallery.Entry(i).FullImageURL; got != galleryURL("full/"+id+".jpg") {
			t.Fatalf("entry %d full = %s", i, got)
		}
	}
}

func TestCrawlKeepsDuplicateThumbnails(t *testing.T) {
	site := map[string]string{
		testOrigin:                 buildListingPage(2, "a", "b"),
		galleryURL("index2.html"):  buildListingPage(2, "b", "c"),
		galleryURL("a_large.html"): detailHTML("full/a.jpg"),
		galleryURL("b_large.html"): detailHTML("full/b.jpg"),
		galleryURL("c_large.html"): detailHTML("full/c.jpg"),
	}
	gallery, err := NewCrawler(newMemoryFetcher(site), nil).Crawl(context.Background(), testOrigin, site[testOrigin])
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if gallery.Len() != 4 {
		t.Fatalf("entries = %d, want 4 (duplicates kept)", gallery.Len())
	}
	if gallery.Entry(1).DetailPageURL != gallery.Entry(2).DetailPageURL {
		t.Fatalf("expected duplicate detail page at positions 1 and 2")
	}
}

func TestCrawlDuplicateDetailFetchedOnce(t *testing.T) {
	site := map[string]string{
		testOrigin:                 buildListingPage(2, "a", "b"),
		galleryURL("index2.html"):  buildListingPage(2, "b", "c"),
		galleryURL("a_large.html"): detailHTML("full/a.jpg"),
		galleryURL("b_large.html"): detailHTML("full/b.jpg"),
		galleryURL("c_large.html"): detailHTML("full/c.jpg"),
	}
	transport := httpmock.NewMockTransport()
	for url, body := range site {
		body := body
		transport.RegisterResponder("GET", url, func(req *http.Request) (*http.Response, error) {
			time.Sleep(50 * time.Millisecond)
			return httpmock.NewStringResponse(http.StatusOK, body), nil
		})
	}

	fetcher := newTestFetcher(t, transport, 64)
	gallery, err := NewCrawler(fetcher, fetcher.metrics).Crawl(context.Background(), testOrigin, site[testOrigin])
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if gallery.Len() != 4 {
		t.Fatalf("entries = %d, want 4", gallery.Len())
	}
	if gallery.Entry(1).FullImageURL != gallery.Entry(2).FullImageURL {
		t.Fatalf("duplicate entries resolved differently: %s vs %s", gallery.Entry(1).FullImageURL, gallery.Entry(2).FullImageURL)
	}
	if got := transport.GetCallCountInfo()["GET "+galleryURL("b_large.html")]; got != 1 {
		t.Fatalf("b_large.html network calls = %d, want 1", got)
	}
}

func TestCrawlUnresolvedDetailPage(t *testing.T) {
	site := map[string]string{
		testOrigin:                 buildListingPage(1, "a", "b"),
		galleryURL("a_large.html"): detailHTML("full/a.jpg"),
		galleryURL("b_large.html"): "<html><body><p>moved</p></body></html>",
	}
	gallery, err := NewCrawler(newMemoryFetcher(site), NewMetrics()).Crawl(context.Background(), testOrigin, site[testOrigin])
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if gallery.Entry(1).Resolved() || gallery.Unresolved() != 1 {
		t.Fatalf("entry 1 should be unresolved: %+v", gallery.Entry(1))
	}
	if !gallery.Entry(0).Resolved() {
		t.Fatalf("entry 0 should be resolved")
	}
}

func TestCrawlFetchFailureAborts(t *testing.T) {
	tests := []struct {
		name    string
		failURL string
		phase   Phase
	}{
		{name: "listing page", failURL: galleryURL("index3.html"), phase: PhaseListing},
		{name: "detail page", failURL: galleryURL("e_large.html"), phase: PhaseDetail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := threePageSite()
			fetcher := newMemoryFetcher(site)
			fetcher.fail[tt.failURL] = errors.New("Internal Server Error")

			metrics := NewMetrics()
			gallery, err := NewCrawler(fetcher, metrics).Crawl(context.Background(), testOrigin, site[testOrigin])
			if gallery != nil {
				t.Fatalf("no partial gallery expected")
			}
			if !errors.Is(err, ErrGalleryLoad) {
				t.Fatalf("expected ErrGalleryLoad, got %v", err)
			}
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) || fetchErr.URL != tt.failURL {
				t.Fatalf("expected fetch error for %s, got %v", tt.failURL, err)
			}
			if fetchErr.Phase != tt.phase || fetchErr.Failure != FailureStatus {
				t.Fatalf("phase=%q failure=%q, want %q status", fetchErr.Phase, fetchErr.Failure, tt.phase)
			}
			if !errors.Is(err, ErrBadStatus) {
				t.Fatalf("expected ErrBadStatus in chain")
			}
			if got := testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(string(tt.phase), string(FailureStatus))); got != 1 {
				t.Fatalf("errors_total{%s,status} = %v, want 1", tt.phase, got)
			}
		})
	}
}

func TestCrawlInvalidOrigin(t *testing.T) {
	_, err := NewCrawler(newMemoryFetcher(nil), nil).Crawl(context.Background(), "http://[::1", "<html></html>")
	if !errors.Is(err, ErrGalleryLoad) {
		t.Fatalf("expected ErrGalleryLoad, got %v", err)
	}
}

func TestCrawlPageFromDetailPage(t *testing.T) {
	site := threePageSite()
	fetcher := newMemoryFetcher(site)

	result, err := NewCrawler(fetcher, nil).CrawlPage(context.Background(), galleryURL("e_large.html"))
	if err != nil {
		t.Fatalf("crawl page: %v", err)
	}
	if result.Gallery.Origin != testOrigin {
		t.Fatalf("origin = %s, want %s", result.Gallery.Origin, testOrigin)
	}
	if result.StartIndex != 4 || !result.StartFound {
		t.Fatalf("start = %d, want 4", result.StartIndex)
	}
	if fetcher.callCount(testOrigin) != 1 {
		t.Fatalf("index page should be fetched exactly once, got %d", fetcher.callCount(testOrigin))
	}
}

func TestCrawlPageFromListingPage(t *testing.T) {
	site := threePageSite()
	result, err := NewCrawler(newMemoryFetcher(site), nil).CrawlPage(context.Background(), galleryURL("index2.html"))
	if err != nil {
		t.Fatalf("crawl page: %v", err)
	}
	if result.StartIndex != 0 || result.Gallery.Len() != 6 {
		t.Fatalf("start=%d len=%d", result.StartIndex, result.Gallery.Len())
	}
	// page 2 is the origin here, so its entries come first
	if !strings.HasSuffix(result.Gallery.Entry(0).DetailPageURL, "c_large.html") {
		t.Fatalf("first entry = %s", result.Gallery.Entry(0).DetailPageURL)
	}
}

func TestCrawler_Integration(t *testing.T) {
	site := threePageSite()
	transport := httpmock.NewMockTransport()
	for url, body := range site {
		transport.RegisterResponder("GET", url, htmlResponder(body))
	}

	fetcher := newTestFetcher(t, transport, 64)
	crawler := NewCrawler(fetcher, fetcher.metrics)

	result, err := crawler.CrawlPage(context.Background(), galleryURL("b_large.html"))
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if result.Gallery.Len() != 6 || result.StartIndex != 1 {
		t.Fatalf("len=%d start=%d", result.Gallery.Len(), result.StartIndex)
	}
	// b_large.html is fetched once as the entry page and served from cache afterwards
	info := transport.GetCallCountInfo()
	if got := info["GET "+galleryURL("b_large.html")]; got != 1 {
		t.Fatalf("b_large.html network calls = %d, want 1", got)
	}
}

func BenchmarkCrawlFrom(b *testing.B) {
	const pageCount, perPage = 10, 20
	site := make(map[string]string)
	for p := 1; p <= pageCount; p++ {
		ids := make([]string, perPage)
		for i := range ids {
			ids[i] = fmt.Sprintf("p%di%d", p, i)
			site[galleryURL(ids[i]+"_large.html")] = detailHTML("full/" + ids[i] + ".jpg")
		}
		site[galleryURL(pageName(p))] = buildListingPage(pageCount, ids...)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crawler := NewCrawler(newMemoryFetcher(site), nil)
		result, err := crawler.CrawlFrom(context.Background(), testOrigin, site[testOrigin], "")
		if err != nil {
			b.Fatalf("crawl: %v", err)
		}
		if result.Gallery.Len() != pageCount*perPage {
			b.Fatalf("entries = %d", result.Gallery.Len())
		}
	}
}
