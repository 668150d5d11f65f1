// Package gallery holds the view state of the image gallery and turns user
// interactions into feed, favorite and description requests.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"inspirepixel/internal/feedcache"
	"inspirepixel/internal/model"
)

// Tab selects which images are listed.
type Tab string

// Tabs.
const (
	TabAll       Tab = "all"
	TabFavorites Tab = "favorites"
)

const (
	// ManualLoadThreshold is the number of automatic loads after which more
	// pages are only fetched on explicit request.
	ManualLoadThreshold = 3
	// DefaultDebounce is the quiet period before a search text change is
	// applied.
	DefaultDebounce = 300 * time.Millisecond
)

// Feed is the per-consumer paginated feed.
type Feed interface {
	FetchCurated(ctx context.Context, page int) ([]model.Image, error)
	Search(ctx context.Context, text string, page int) ([]model.Image, error)
	LoadMore(ctx context.Context) ([]model.Image, error)
	State() feedcache.State
}

// Auth exposes the user state the controller needs.
type Auth interface {
	IsAuthenticated() bool
	IsPro() bool
	IsFavorite(imageID string) bool
	ToggleFavorite(ctx context.Context, imageID string) (bool, error)
}

// Describer produces image descriptions.
type Describer interface {
	Generate(ctx context.Context, imageURL, imageID, category string) (model.Description, bool)
	Get(imageID string) (model.Description, bool)
}

// Notifier surfaces messages to the user.
type Notifier interface {
	Notify(message string)
	// RequestAuth asks the user to log in or register.
	RequestAuth()
}

// Controller is the gallery state machine.
type Controller struct {
	feed     Feed
	auth     Auth
	desc     Describer
	notify   Notifier
	log      *slog.Logger
	debounce time.Duration

	mu            sync.Mutex
	tab           Tab
	category      string
	searchText    string
	autoLoadCount int

	timer   *time.Timer
	gen     int
	pending sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce sets the search quiet period.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// New creates a controller on the all tab with no filters.
func New(feed Feed, auth Auth, desc Describer, notify Notifier, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		feed:     feed,
		auth:     auth,
		desc:     desc,
		notify:   notify,
		log:      log,
		debounce: DefaultDebounce,
		tab:      TabAll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start loads the first curated page.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.autoLoadCount = 0
	c.mu.Unlock()
	_, err := c.feed.FetchCurated(ctx, 1)
	return c.report(err)
}

// SetSearchText records text and queries page 1 for it once no further
// change arrived within the debounce period.
func (c *Controller) SetSearchText(ctx context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.searchText = text
	c.gen++
	gen := c.gen
	if c.timer != nil && c.timer.Stop() {
		c.pending.Done()
	}
	c.pending.Add(1)
	c.timer = time.AfterFunc(c.debounce, func() {
		defer c.pending.Done()
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		if err := c.refresh(ctx); err != nil {
			c.log.Warn("debounced search failed", "error", err)
		}
	})
}

// Settle waits for pending debounced searches to finish.
func (c *Controller) Settle() {
	c.pending.Wait()
}

// SetCategory filters by category and queries page 1 immediately. An empty
// category returns to the search text.
func (c *Controller) SetCategory(ctx context.Context, category string) error {
	c.mu.Lock()
	c.category = strings.ToLower(strings.TrimSpace(category))
	c.gen++
	if c.timer != nil && c.timer.Stop() {
		c.pending.Done()
	}
	c.mu.Unlock()
	return c.refresh(ctx)
}

// refresh resets the auto-load counter and replaces the items with page 1
// of the active query.
func (c *Controller) refresh(ctx context.Context) error {
	c.mu.Lock()
	c.autoLoadCount = 0
	text := c.queryText()
	c.mu.Unlock()

	_, err := c.feed.Search(ctx, text, 1)
	return c.report(err)
}

// queryText is the category when one is selected, else the search text.
// Callers hold c.mu.
func (c *Controller) queryText() string {
	if c.category != "" {
		return c.category
	}
	return c.searchText
}

// Visible handles a scroll or visibility signal at the end of the list. It
// loads the next page automatically until ManualLoadThreshold loads have
// happened and reports whether it did.
func (c *Controller) Visible(ctx context.Context) (bool, error) {
	st := c.feed.State()
	c.mu.Lock()
	if c.tab != TabAll || c.autoLoadCount >= ManualLoadThreshold || !st.HasMore || st.Loading {
		c.mu.Unlock()
		return false, nil
	}
	c.autoLoadCount++
	c.mu.Unlock()

	_, err := c.feed.LoadMore(ctx)
	return true, c.report(err)
}

// ShowLoadMore reports whether the manual load-more affordance is shown.
func (c *Controller) ShowLoadMore() bool {
	st := c.feed.State()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab == TabAll && c.autoLoadCount >= ManualLoadThreshold && st.HasMore
}

// LoadMore fetches the next page on explicit request. It does nothing while
// another page is loading.
func (c *Controller) LoadMore(ctx context.Context) error {
	if st := c.feed.State(); !st.HasMore || st.Loading {
		return nil
	}
	_, err := c.feed.LoadMore(ctx)
	return c.report(err)
}

// SetTab switches between all images and favorites. It performs no I/O.
func (c *Controller) SetTab(t Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t != TabFavorites {
		t = TabAll
	}
	c.tab = t
}

// Items returns the images listed on the active tab.
func (c *Controller) Items() []model.Image {
	items := c.feed.State().Items
	c.mu.Lock()
	tab := c.tab
	c.mu.Unlock()
	if tab == TabAll {
		return items
	}
	favs := make([]model.Image, 0, len(items))
	for _, img := range items {
		if c.auth.IsFavorite(img.ID) {
			favs = append(favs, img)
		}
	}
	return favs
}

// FavoritesEmpty reports whether the favorites tab has nothing to list.
func (c *Controller) FavoritesEmpty() bool {
	c.mu.Lock()
	tab := c.tab
	c.mu.Unlock()
	return tab == TabFavorites && len(c.Items()) == 0
}

// Open returns the image for display. Premium images are refused to users
// without the pro entitlement.
func (c *Controller) Open(imageID string) (model.Image, error) {
	img, ok := c.find(imageID)
	if !ok {
		return model.Image{}, fmt.Errorf("open %s: %w", imageID, model.ErrNotFound)
	}
	if img.IsPremium && !c.auth.IsPro() {
		c.notify.Notify(model.Message(model.ErrPremiumLocked))
		return model.Image{}, fmt.Errorf("open %s: %w", imageID, model.ErrPremiumLocked)
	}
	return img, nil
}

// ToggleFavorite flips the favorite flag of an image. Signed-out users are
// asked to authenticate instead.
func (c *Controller) ToggleFavorite(ctx context.Context, imageID string) (bool, error) {
	if !c.auth.IsAuthenticated() {
		c.notify.RequestAuth()
		return false, fmt.Errorf("favorite %s: %w", imageID, model.ErrUnauthenticated)
	}
	added, err := c.auth.ToggleFavorite(ctx, imageID)
	if err != nil {
		c.notify.Notify(model.Message(err))
		return added, err
	}
	return added, nil
}

// Describe generates the description of a listed image. It reports false
// when a generation for the image is already running.
func (c *Controller) Describe(ctx context.Context, imageID string) (model.Description, bool, error) {
	img, ok := c.find(imageID)
	if !ok {
		if d, ok := c.desc.Get(imageID); ok {
			return d, true, nil
		}
		return model.Description{}, false, fmt.Errorf("describe %s: %w", imageID, model.ErrNotFound)
	}
	d, ran := c.desc.Generate(ctx, img.DisplaySrc, img.ID, img.Category)
	return d, ran, nil
}

// View is a snapshot of the controller state.
type View struct {
	Tab           Tab
	Category      string
	SearchText    string
	AutoLoadCount int
	Feed          feedcache.State
}

// View returns the current state.
func (c *Controller) View() View {
	st := c.feed.State()
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Tab:           c.tab,
		Category:      c.category,
		SearchText:    c.searchText,
		AutoLoadCount: c.autoLoadCount,
		Feed:          st,
	}
}

func (c *Controller) find(imageID string) (model.Image, bool) {
	for _, img := range c.feed.State().Items {
		if img.ID == imageID {
			return img, true
		}
	}
	return model.Image{}, false
}

// report drops stale responses and surfaces fetch failures.
func (c *Controller) report(err error) error {
	if err == nil || errors.Is(err, feedcache.ErrStale) {
		return nil
	}
	c.notify.Notify(model.FetchMessage(err))
	return err
}
