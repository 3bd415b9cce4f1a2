package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/mmcdole/gofeed"
)

const (
	// maxEntries caps how many items are taken from a single feed
	// document, in document order.
	maxEntries = 120
	// maxSummaryRunes caps the HTML-stripped summary length.
	maxSummaryRunes = 500
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	imageRe      = regexp.MustCompile(`(?i)<img[^>]*src=["']([^"']+)["'][^>]*>`)
)

// ParseFeed parses an RSS 2.0 or Atom document into raw entries. The
// route identifies the source and seeds guid fallbacks.
func ParseFeed(body, route string) ([]model.RawEntry, error) {
	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) && wellFormedXML(body) {
			return nil, &model.ParseError{Message: "Unsupported feed format"}
		}
		return nil, &model.ParseError{Message: "Invalid RSS XML"}
	}

	items := parsed.Items
	if len(items) == 0 {
		return nil, &model.ParseError{Message: "Unsupported feed format"}
	}
	if len(items) > maxEntries {
		items = items[:maxEntries]
	}

	now := time.Now()
	entries := make([]model.RawEntry, 0, len(items))
	for i, item := range items {
		entries = append(entries, mapItem(item, route, i, now))
	}
	return entries, nil
}

func mapItem(item *gofeed.Item, route string, index int, now time.Time) model.RawEntry {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = fmt.Sprintf("Untitled #%d", index+1)
	}

	link := strings.TrimSpace(item.Link)
	guid := strings.TrimSpace(item.GUID)
	if guid == "" {
		guid = link
	}
	if guid == "" {
		guid = fmt.Sprintf("%s#%d", route, index)
	}
	if link == "" {
		link = route
	}

	// RSS carries the body in description or content:encoded; Atom in
	// summary or content. gofeed normalizes both pairs.
	raw := item.Description
	if raw == "" {
		raw = item.Content
	}
	summary := truncateRunes(stripHTML(raw), maxSummaryRunes)
	if summary == "" {
		summary = title
	}

	published := now
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return model.RawEntry{
		GuidOrLink:   guid,
		Title:        title,
		Summary:      summary,
		URL:          link,
		ThumbnailURL: thumbnailURL(item, raw),
		PublishedAt:  published,
	}
}

// thumbnailURL walks the fallback ladder: media:content url, then an
// image-typed enclosure, then the first <img src> in the raw body.
func thumbnailURL(item *gofeed.Item, raw string) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, content := range media["content"] {
			if u := strings.TrimSpace(content.Attrs["url"]); u != "" {
				return u
			}
		}
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && strings.TrimSpace(enc.URL) != "" {
			return strings.TrimSpace(enc.URL)
		}
	}
	return ExtractThumbnailURL(raw)
}

// ExtractThumbnailURL pulls the src of the first img tag in the given
// HTML fragment, or "" when there is none.
func ExtractThumbnailURL(input string) string {
	match := imageRe.FindStringSubmatch(input)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func stripHTML(value string) string {
	stripped := tagRe.ReplaceAllString(value, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(stripped, " "))
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

// wellFormedXML distinguishes "not a feed" from "broken XML" when
// gofeed cannot detect a feed type.
func wellFormedXML(body string) bool {
	dec := xml.NewDecoder(strings.NewReader(body))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return true
		}
		if err != nil {
			return false
		}
	}
}
