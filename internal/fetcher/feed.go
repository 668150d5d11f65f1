package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"inspirepixel/internal/filter"
	"inspirepixel/internal/model"
)

// FeedSource is a Source backed by a single RSS/Atom media feed. The feed is
// paginated locally and searched with the filter engine.
type FeedSource struct {
	fetcher *Fetcher
	url     string
}

// NewFeedSource creates a source reading the feed at url.
func NewFeedSource(f *Fetcher, url string) *FeedSource {
	return &FeedSource{fetcher: f, url: url}
}

// Curated returns one page of the feed in publication order.
func (s *FeedSource) Curated(ctx context.Context, page, perPage int) ([]model.PhotoRecord, error) {
	feed, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return paginate(ImageRecords(feed.Items, filter.Query{}), page, perPage), nil
}

// Search returns one page of feed entries matching query.
func (s *FeedSource) Search(ctx context.Context, query string, page, perPage int) ([]model.PhotoRecord, error) {
	feed, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return paginate(ImageRecords(feed.Items, filter.Parse(query)), page, perPage), nil
}

// Fetch downloads and parses an RSS/Atom feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, _, err := f.get(ctx, url, nil, maxPageBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w: %w", model.ErrMalformedResponse, err)
	}
	return feed, nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// ImageRecords converts feed items that carry an image into photo records,
// keeping only those that match q. Items without an image are skipped.
func ImageRecords(items []*gofeed.Item, q filter.Query) []model.PhotoRecord {
	var records []model.PhotoRecord
	for _, item := range items {
		src, thumb := itemImage(item)
		if src == "" {
			continue
		}
		if !q.Match(filter.Item{Title: item.Title, Description: item.Description}) {
			continue
		}
		if thumb == "" {
			thumb = src
		}
		records = append(records, model.PhotoRecord{
			ID:           ItemGUID(item),
			Alt:          item.Title,
			LargeSrc:     src,
			OriginalSrc:  src,
			MediumSrc:    thumb,
			Photographer: itemAuthor(item),
			PageURL:      item.Link,
		})
	}
	return records
}

func itemImage(item *gofeed.Item) (src, thumb string) {
	if media, ok := item.Extensions["media"]; ok {
		for _, c := range media["content"] {
			if u := c.Attrs["url"]; u != "" && (c.Attrs["medium"] == "image" || strings.HasPrefix(c.Attrs["type"], "image/") || c.Attrs["type"] == "") {
				src = u
				break
			}
		}
		for _, c := range media["thumbnail"] {
			if u := c.Attrs["url"]; u != "" {
				thumb = u
				break
			}
		}
	}
	if src == "" {
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
				src = enc.URL
				break
			}
		}
	}
	if src == "" && item.Image != nil {
		src = item.Image.URL
	}
	return src, thumb
}

func itemAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return item.Authors[0].Name
	}
	if item.Author != nil {
		return item.Author.Name
	}
	return ""
}

func paginate(records []model.PhotoRecord, page, perPage int) []model.PhotoRecord {
	start := (page - 1) * perPage
	if page < 1 || perPage < 1 || start >= len(records) {
		return []model.PhotoRecord{}
	}
	end := min(start+perPage, len(records))
	return records[start:end]
}
