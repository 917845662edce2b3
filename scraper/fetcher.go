package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/acirtautas/genmetrika-gallery/config"
)

const (
	bodyKey   = "body"
	statusKey = "status"
)

// Fetcher retrieves the raw markup of a page. Any non-success status or
// transport failure is an error; there is no retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches pages through a colly collector. Concurrent fetches
// of one URL share a single request and recently fetched bodies are kept in
// an LRU cache, so a detail page listed twice is downloaded once.
type HTTPFetcher struct {
	collector *colly.Collector
	cache     *lru.Cache[string, string]
	group     singleflight.Group
	metrics   *Metrics

	requestCount int64
}

// NewHTTPFetcher builds a fetcher configured from cfg.
func NewHTTPFetcher(cfg *config.Config, metrics *Metrics) (*HTTPFetcher, error) {
	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	}
	if len(cfg.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(cfg.AllowedDomains...))
	}
	collector := colly.NewCollector(opts...)

	if cfg.Timeout > 0 {
		collector.SetRequestTimeout(cfg.Timeout)
	}
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &HTTPFetcher{
		collector: collector,
		metrics:   metrics,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create page cache: %w", err)
		}
		f.cache = cache
	}
	f.configureHandlers()
	return f, nil
}

// Fetch issues a GET for pageURL and returns the body of a 200 response.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewFetchError(pageURL, 0, err)
	}
	if f.cache != nil {
		if body, ok := f.cache.Get(pageURL); ok {
			f.metrics.IncCacheHit()
			return body, nil
		}
	}

	v, err, shared := f.group.Do(pageURL, func() (any, error) {
		return f.request(pageURL)
	})
	if err != nil {
		return "", err
	}
	if shared {
		f.metrics.IncCacheHit()
	}
	return v.(string), nil
}

func (f *HTTPFetcher) request(pageURL string) (string, error) {
	reqCtx := colly.NewContext()
	start := time.Now()
	err := f.collector.Request(http.MethodGet, pageURL, nil, reqCtx, nil)
	f.metrics.ObserveDuration(time.Since(start))

	status, _ := reqCtx.GetAny(statusKey).(int)
	if err == nil && status != http.StatusOK {
		err = fmt.Errorf("unexpected status %d", status)
	}
	if err != nil {
		return "", NewFetchError(pageURL, status, err)
	}

	body, _ := reqCtx.GetAny(bodyKey).(string)
	if f.cache != nil {
		f.cache.Add(pageURL, body)
	}
	return body, nil
}

// RequestCount returns the number of requests sent over the network.
func (f *HTTPFetcher) RequestCount() int {
	return int(atomic.LoadInt64(&f.requestCount))
}

func (f *HTTPFetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		current := atomic.AddInt64(&f.requestCount, 1)
		if current%50 == 0 {
			slog.Debug("fetch progress",
				slog.Int64("requests", current),
				slog.String("url", r.URL.String()),
			)
		}
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(statusKey, r.StatusCode)
		r.Ctx.Put(bodyKey, string(r.Body))
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		url := ""
		if r != nil {
			r.Ctx.Put(statusKey, r.StatusCode)
			if r.Request != nil && r.Request.URL != nil {
				url = r.Request.URL.String()
			}
		}
		slog.Error("request error",
			slog.String("url", url),
			slog.Any("error", err),
		)
	})
}
