// Package feedcache fetches pages of images from a provider, caches them
// process-wide by query, and tracks per-consumer pagination state.
package feedcache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"inspirepixel/internal/model"
)

// Source is an image provider.
type Source interface {
	Curated(ctx context.Context, page, perPage int) ([]model.PhotoRecord, error)
	Search(ctx context.Context, query string, page, perPage int) ([]model.PhotoRecord, error)
}

// Cache holds normalized pages keyed by query. Entries are immutable and
// never evicted. Concurrent misses for the same key share one request.
type Cache struct {
	source Source
	log    *slog.Logger

	mu      sync.RWMutex
	entries map[model.Query][]model.Image

	group    singleflight.Group
	requests atomic.Int64
}

// New creates an empty cache in front of source.
func New(source Source, log *slog.Logger) *Cache {
	return &Cache{
		source:  source,
		log:     log,
		entries: make(map[model.Query][]model.Image),
	}
}

// Get returns the page for q, fetching and normalizing it on a miss.
// The returned slice must not be modified.
func (c *Cache) Get(ctx context.Context, q model.Query) ([]model.Image, error) {
	if images, ok := c.Lookup(q); ok {
		return images, nil
	}

	v, err, shared := c.group.Do(q.String(), func() (any, error) {
		if images, ok := c.Lookup(q); ok {
			return images, nil
		}

		c.requests.Add(1)
		var (
			records []model.PhotoRecord
			err     error
		)
		switch q.Kind {
		case model.KindSearch:
			records, err = c.source.Search(ctx, q.Text, q.Page, model.PageSize)
		default:
			records, err = c.source.Curated(ctx, q.Page, model.PageSize)
		}
		if err != nil {
			return nil, err
		}

		images := Normalize(records, q.Text)
		c.mu.Lock()
		c.entries[q] = images
		c.mu.Unlock()
		c.log.Debug("cached page", "query", q.String(), "count", len(images))
		return images, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q, err)
	}
	if shared {
		c.log.Debug("coalesced request", "query", q.String())
	}
	return v.([]model.Image), nil
}

// Lookup returns a cached page without performing I/O.
func (c *Cache) Lookup(q model.Query) ([]model.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	images, ok := c.entries[q]
	return images, ok
}

// Requests returns the number of outbound provider requests issued so far.
func (c *Cache) Requests() int64 {
	return c.requests.Load()
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Normalize converts provider records into images. Every third record,
// starting with the first, is flagged premium.
func Normalize(records []model.PhotoRecord, query string) []model.Image {
	query = strings.TrimSpace(query)
	category := model.CuratedCategory
	if query != "" {
		category = strings.ToLower(query)
	}

	images := make([]model.Image, 0, len(records))
	for i, r := range records {
		title := r.Alt
		if title == "" {
			if query != "" {
				title = fmt.Sprintf("%s photo %s", query, r.ID)
			} else {
				title = "Photo " + r.ID
			}
		}
		images = append(images, model.Image{
			ID:               r.ID,
			DisplaySrc:       r.LargeSrc,
			OriginalSrc:      r.OriginalSrc,
			MediumSrc:        r.MediumSrc,
			Title:            title,
			Category:         category,
			PhotographerName: r.Photographer,
			PhotographerURL:  r.PhotographerURL,
			IsPremium:        i%3 == 0,
			ProviderPageURL:  r.PageURL,
		})
	}
	return images
}
