package feedcache

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"inspirepixel/internal/model"
)

// ErrStale is returned when a response arrives after its query was
// superseded. The images are returned alongside it but were not applied.
// It is also returned without images when a later page is requested for a
// query whose first page was never applied.
var ErrStale = errors.New("stale response")

// State is a snapshot of a consumer's feed.
type State struct {
	Items         []model.Image
	Loading       bool
	ErrorMessage  string
	HasMore       bool
	CurrentPage   int
	LastQueryText string
}

// Feed accumulates pages for one consumer on top of a shared Cache.
type Feed struct {
	cache *Cache
	log   *slog.Logger

	mu       sync.Mutex
	state    State
	inflight int
	// applied is the query text whose pages are in state.Items.
	applied string
}

// NewFeed creates an empty feed reading through cache.
func NewFeed(cache *Cache, log *slog.Logger) *Feed {
	return &Feed{
		cache: cache,
		log:   log,
		state: State{HasMore: true, CurrentPage: 1},
	}
}

// FetchCurated loads page of the curated feed.
func (f *Feed) FetchCurated(ctx context.Context, page int) ([]model.Image, error) {
	return f.fetch(ctx, model.NewQuery("", page))
}

// Search loads page of results for text. Blank text loads the curated feed.
func (f *Feed) Search(ctx context.Context, text string, page int) ([]model.Image, error) {
	return f.fetch(ctx, model.NewQuery(text, page))
}

// LoadMore loads the page after the current one for the last query and
// appends it. While a new query's first page is pending or has failed it
// returns ErrStale without fetching.
func (f *Feed) LoadMore(ctx context.Context) ([]model.Image, error) {
	f.mu.Lock()
	q := model.NewQuery(f.state.LastQueryText, f.state.CurrentPage+1)
	f.mu.Unlock()
	return f.fetch(ctx, q)
}

// State returns a copy of the current feed state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.Items = slices.Clone(f.state.Items)
	return s
}

func (f *Feed) fetch(ctx context.Context, q model.Query) ([]model.Image, error) {
	f.mu.Lock()
	if q.Page == 1 {
		f.state.LastQueryText = q.Text
	} else if q.Text != f.state.LastQueryText || q.Text != f.applied {
		f.mu.Unlock()
		f.log.Debug("skipping page of unapplied query", "query", q.String(), "applied", f.applied)
		return nil, ErrStale
	}
	if images, ok := f.cache.Lookup(q); ok {
		f.apply(q, images)
		f.mu.Unlock()
		return images, nil
	}
	f.inflight++
	f.state.Loading = true
	f.state.ErrorMessage = ""
	f.mu.Unlock()

	images, err := f.cache.Get(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	f.state.Loading = f.inflight > 0

	if !f.current(q) {
		f.log.Debug("dropping stale page", "query", q.String(), "current", f.state.LastQueryText)
		if err != nil {
			return nil, err
		}
		return images, ErrStale
	}
	if err != nil {
		f.state.ErrorMessage = model.FetchMessage(err)
		f.log.Warn("fetch page", "query", q.String(), "error", err)
		return nil, err
	}
	f.apply(q, images)
	return images, nil
}

// current reports whether a response for q may still be applied: the query
// text must not have been superseded, and a later page must continue the
// items already shown for that same text.
func (f *Feed) current(q model.Query) bool {
	if q.Text != f.state.LastQueryText {
		return false
	}
	if q.Page == 1 {
		return true
	}
	return q.Text == f.applied && q.Page > f.state.CurrentPage
}

func (f *Feed) apply(q model.Query, images []model.Image) {
	if q.Page == 1 {
		f.state.Items = slices.Clone(images)
	} else {
		f.state.Items = append(f.state.Items, images...)
	}
	f.state.HasMore = len(images) == model.PageSize
	f.state.CurrentPage = q.Page
	f.state.ErrorMessage = ""
	f.applied = q.Text
}
