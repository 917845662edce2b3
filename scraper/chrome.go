package scraper

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/acirtautas/genmetrika-gallery/config"
)

// ChromeFetcher renders pages in headless Chrome and returns the resulting
// document markup. It is used for mirrors that build the listing with
// scripts.
type ChromeFetcher struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	startOnce     sync.Once
	startErr      error

	timeout time.Duration
	slots   chan struct{}
	metrics *Metrics
}

// NewChromeFetcher prepares a browser allocator; Chrome starts on first use.
func NewChromeFetcher(cfg *config.Config, metrics *Metrics) *ChromeFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &ChromeFetcher{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       cfg.Timeout,
		slots:         make(chan struct{}, cfg.Parallelism),
		metrics:       metrics,
	}
}

// Fetch navigates a fresh tab to pageURL and returns the rendered markup.
func (f *ChromeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	select {
	case f.slots <- struct{}{}:
	case <-ctx.Done():
		return "", NewFetchError(pageURL, 0, ctx.Err())
	}
	defer func() { <-f.slots }()

	f.startOnce.Do(func() {
		f.startErr = chromedp.Run(f.browserCtx)
	})
	if f.startErr != nil {
		return "", NewFetchError(pageURL, 0, fmt.Errorf("start browser: %w", f.startErr))
	}

	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	defer cancel()
	var (
		runCtx    context.Context
		runCancel context.CancelFunc
	)
	if f.timeout > 0 {
		runCtx, runCancel = context.WithTimeout(tabCtx, f.timeout)
	} else {
		runCtx, runCancel = context.WithCancel(tabCtx)
	}
	defer runCancel()
	stop := context.AfterFunc(ctx, runCancel)
	defer stop()

	var (
		mu     sync.Mutex
		status int64
	)
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
			return
		}
		mu.Lock()
		if status == 0 {
			status = resp.Response.Status
		}
		mu.Unlock()
	})

	var html string
	start := time.Now()
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	f.metrics.ObserveDuration(time.Since(start))

	mu.Lock()
	code := int(status)
	mu.Unlock()
	if err == nil && code != http.StatusOK {
		err = fmt.Errorf("unexpected status %d", code)
	}
	if err != nil {
		return "", NewFetchError(pageURL, code, err)
	}
	return html, nil
}

// Close shuts the browser down.
func (f *ChromeFetcher) Close() {
	f.browserCancel()
	f.allocCancel()
}
