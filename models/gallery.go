// Package models defines data structures shared by the crawler and the viewer.
package models

import "time"

// GalleryEntry is one discovered image. Identity is DetailPageURL.
// FullImageURL stays empty until the detail page is resolved, and also when
// the detail page had no recognizable image.
type GalleryEntry struct {
	ThumbnailURL  string `csv:"thumbnail_url" json:"thumbnail_url" parquet:"thumbnail_url"`
	DetailPageURL string `csv:"detail_page_url" json:"detail_page_url" parquet:"detail_page_url"`
	FullImageURL  string `csv:"full_image_url" json:"full_image_url,omitempty" parquet:"full_image_url"`
}

// Resolved reports whether the full-size image URL is known.
func (e GalleryEntry) Resolved() bool {
	return e.FullImageURL != ""
}

// Gallery is the ordered collection produced by a crawl.
// Order is page order, then in-page document order.
type Gallery struct {
	Title   string
	Origin  string
	Pages   []string
	Entries []GalleryEntry
}

// Len returns the number of entries.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Entries)
}

// Entry returns the entry at i; callers keep i within [0, Len()).
func (g *Gallery) Entry(i int) GalleryEntry {
	return g.Entries[i]
}

// IndexOfImage returns the position of the first entry whose full image URL
// equals imageURL, or -1.
func (g *Gallery) IndexOfImage(imageURL string) int {
	if g == nil || imageURL == "" {
		return -1
	}
	for i, entry := range g.Entries {
		if entry.FullImageURL == imageURL {
			return i
		}
	}
	return -1
}

// Unresolved counts entries without a full image URL.
func (g *Gallery) Unresolved() int {
	if g == nil {
		return 0
	}
	count := 0
	for _, entry := range g.Entries {
		if !entry.Resolved() {
			count++
		}
	}
	return count
}

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	Gallery      *Gallery
	StartIndex   int
	StartFound   bool
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	PageCount    int
}
