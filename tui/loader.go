package tui

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/acirtautas/genmetrika-gallery/scraper"
	"github.com/acirtautas/genmetrika-gallery/viewer"
)

// ImageInfo describes a decoded image header.
type ImageInfo struct {
	URL    string
	Format string
	Width  int
	Height int
}

func (i ImageInfo) String() string {
	return fmt.Sprintf("%dx%d %s", i.Width, i.Height, i.Format)
}

type imageLoadedMsg struct {
	seq  uint64
	info ImageInfo
}

type imageFailedMsg struct {
	seq uint64
	err error
}

// ImageLoader fetches full images and decodes their headers. Only the
// header is read; the terminal draws a placeholder card sized from it.
type ImageLoader struct {
	client    *http.Client
	userAgent string
}

// NewImageLoader returns a loader using client, or a client with timeout
// when client is nil. A zero timeout waits indefinitely.
func NewImageLoader(client *http.Client, userAgent string, timeout time.Duration) *ImageLoader {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &ImageLoader{client: client, userAgent: userAgent}
}

// Fetch downloads imageURL and decodes its configuration. Any status other
// than 200 is a *scraper.FetchError in the image phase.
func (l *ImageLoader) Fetch(ctx context.Context, imageURL string) (ImageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return ImageInfo{}, imageFetchError(imageURL, 0, err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return ImageInfo{}, imageFetchError(imageURL, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ImageInfo{}, imageFetchError(imageURL, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	cfg, format, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode %s: %w", imageURL, err)
	}
	return ImageInfo{URL: imageURL, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func imageFetchError(url string, status int, err error) error {
	fetchErr := scraper.NewFetchError(url, status, err)
	fetchErr.Phase = scraper.PhaseImage
	return fetchErr
}

// Load returns a command that fetches req and reports back with its Seq.
func (l *ImageLoader) Load(ctx context.Context, req viewer.LoadRequest) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		info, err := l.Fetch(ctx, req.URL)
		if err != nil {
			slog.Warn("image load failed",
				slog.String("url", req.URL),
				slog.Any("error", err),
			)
			return imageFailedMsg{seq: req.Seq, err: err}
		}
		slog.Debug("image loaded",
			slog.String("url", req.URL),
			slog.String("size", info.String()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return imageLoadedMsg{seq: req.Seq, info: info}
	}
}
