// Package parser turns gallery page markup into structured data.
// Nothing here returns an error for malformed markup: a miss is an empty or
// absent result and the caller decides whether that is fatal.
package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/acirtautas/genmetrika-gallery/models"
)

const (
	paginationSelector  = ".pagination a[href]"
	thumbnailSelector   = `.thumbnail a[href$="_large.html"]`
	detailImageSelector = "#detailImage img"
	indexLinkSelector   = ".index a, li.index a"
)

// Thumbnail pairs a listing-page thumbnail with its detail page.
type Thumbnail struct {
	ThumbnailURL  string
	DetailPageURL string
}

// Entry converts the pair into an unresolved gallery entry.
func (t Thumbnail) Entry() models.GalleryEntry {
	return models.GalleryEntry{
		ThumbnailURL:  t.ThumbnailURL,
		DetailPageURL: t.DetailPageURL,
	}
}

// ExtractPaginationLinks returns baseURL followed by every pagination link,
// resolved and de-duplicated in first-seen order.
func ExtractPaginationLinks(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	origin := base.String()
	pages := []string{origin}
	seen := map[string]struct{}{origin: {}}

	doc, ok := parse(html)
	if !ok {
		return pages
	}
	doc.Find(paginationSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := Resolve(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		pages = append(pages, abs)
	})
	return pages
}

// ExtractThumbnails returns every detail-page anchor that wraps an image, in
// document order. Anchors without an image source are skipped.
func ExtractThumbnails(html, baseURL string) []Thumbnail {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, ok := parse(html)
	if !ok {
		return nil
	}

	var thumbs []Thumbnail
	doc.Find(thumbnailSelector).Each(func(_ int, a *goquery.Selection) {
		img := a.Find("img").First()
		if img.Length() == 0 {
			return
		}
		src, ok := img.Attr("src")
		if !ok {
			return
		}
		href, _ := a.Attr("href")
		thumbURL, ok := Resolve(base, src)
		if !ok {
			return
		}
		pageURL, ok := Resolve(base, href)
		if !ok {
			return
		}
		thumbs = append(thumbs, Thumbnail{ThumbnailURL: thumbURL, DetailPageURL: pageURL})
	})
	return thumbs
}

// ExtractFullImage returns the absolute source of the detail image.
func ExtractFullImage(html, baseURL string) (string, bool) {
	return firstAttr(html, baseURL, detailImageSelector, "src")
}

// ExtractIndexLink returns the listing page a detail page links back to.
func ExtractIndexLink(html, baseURL string) (string, bool) {
	return firstAttr(html, baseURL, indexLinkSelector, "href")
}

// IsDetailPage reports whether html carries a detail image element.
func IsDetailPage(html string) bool {
	doc, ok := parse(html)
	if !ok {
		return false
	}
	return doc.Find(detailImageSelector).Length() > 0
}

// Title returns the trimmed document title.
func Title(html string) string {
	doc, ok := parse(html)
	if !ok {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Resolve makes ref absolute against base.
func Resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(parsed).String(), true
}

// ValidateEntry ensures an entry carries the URLs the viewer depends on.
func ValidateEntry(e models.GalleryEntry) error {
	if strings.TrimSpace(e.DetailPageURL) == "" {
		return fmt.Errorf("entry missing detail page URL")
	}
	if strings.TrimSpace(e.ThumbnailURL) == "" {
		return fmt.Errorf("entry missing thumbnail URL for %s", e.DetailPageURL)
	}
	return nil
}

func firstAttr(html, baseURL, selector, attr string) (string, bool) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	doc, ok := parse(html)
	if !ok {
		return "", false
	}
	value, ok := doc.Find(selector).First().Attr(attr)
	if !ok {
		return "", false
	}
	return Resolve(base, value)
}

func parse(html string) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	return doc, true
}
