package feedcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inspirepixel/internal/model"
)

type fakeSource struct {
	mu    sync.Mutex
	calls []model.Query

	size func(q model.Query) int
	err  error

	// blockText makes requests for that query text wait for release.
	blockText string
	started   chan struct{}
	release   chan struct{}
}

func (s *fakeSource) Curated(ctx context.Context, page, perPage int) ([]model.PhotoRecord, error) {
	return s.serve(ctx, model.Query{Kind: model.KindCurated, Page: page}, perPage)
}

func (s *fakeSource) Search(ctx context.Context, query string, page, perPage int) ([]model.PhotoRecord, error) {
	return s.serve(ctx, model.Query{Kind: model.KindSearch, Text: query, Page: page}, perPage)
}

func (s *fakeSource) serve(_ context.Context, q model.Query, perPage int) ([]model.PhotoRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	err := s.err
	s.mu.Unlock()

	if s.release != nil && q.Text == s.blockText {
		if s.started != nil {
			s.started <- struct{}{}
		}
		<-s.release
	}
	if err != nil {
		return nil, err
	}

	n := perPage
	if s.size != nil {
		n = s.size(q)
	}
	prefix := q.Text
	if prefix == "" {
		prefix = "c"
	}
	records := make([]model.PhotoRecord, n)
	for i := range records {
		records[i] = model.PhotoRecord{ID: fmt.Sprintf("%s-%d-%d", prefix, q.Page, i), LargeSrc: "https://cdn.example.com/x.jpg"}
	}
	return records, nil
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ids(images []model.Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.ID
	}
	return out
}

func TestCacheIdempotence(t *testing.T) {
	ctx := context.Background()

	queries := []model.Query{
		model.NewQuery("", 1),
		model.NewQuery("", 2),
		model.NewQuery("cats", 1),
		model.NewQuery("cats", 3),
	}

	for _, q := range queries {
		t.Run(q.String(), func(t *testing.T) {
			src := &fakeSource{}
			c := New(src, discardLogger())

			first, err := c.Get(ctx, q)
			if err != nil {
				t.Fatalf("first get: %v", err)
			}
			second, err := c.Get(ctx, q)
			if err != nil {
				t.Fatalf("second get: %v", err)
			}

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("cached page differs (-first +second):\n%s", diff)
			}
			if got := src.callCount(); got != 1 {
				t.Errorf("expected 1 outbound request, got %d", got)
			}
			if got := c.Requests(); got != 1 {
				t.Errorf("Requests() = %d, want 1", got)
			}
		})
	}
}

func TestCacheCoalescesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{blockText: "cats", started: make(chan struct{}, 4), release: make(chan struct{})}
	c := New(src, discardLogger())
	q := model.NewQuery("cats", 1)

	var wg sync.WaitGroup
	results := make([][]model.Image, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			images, err := c.Get(ctx, q)
			if err != nil {
				t.Errorf("get %d: %v", i, err)
				return
			}
			results[i] = images
		}(i)
	}

	<-src.started
	close(src.release)
	wg.Wait()

	if got := src.callCount(); got != 1 {
		t.Errorf("expected 1 outbound request, got %d", got)
	}
	for i := 1; i < len(results); i++ {
		if diff := cmp.Diff(results[0], results[i]); diff != "" {
			t.Errorf("result %d differs (-0 +%d):\n%s", i, i, diff)
		}
	}
}

func TestCacheErrorNotStored(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{err: model.ErrNetwork}
	c := New(src, discardLogger())
	q := model.NewQuery("", 1)

	if _, err := c.Get(ctx, q); !errors.Is(err, model.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed page must not be cached, cache has %d entries", c.Len())
	}

	src.setErr(nil)
	if _, err := c.Get(ctx, q); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := src.callCount(); got != 2 {
		t.Errorf("expected retry to hit the provider, got %d calls", got)
	}
}

func TestNormalize(t *testing.T) {
	records := []model.PhotoRecord{
		{ID: "1", Alt: "Red fox", LargeSrc: "l1", OriginalSrc: "o1", MediumSrc: "m1", Photographer: "Ana", PhotographerURL: "pa", PageURL: "u1"},
		{ID: "2"},
		{ID: "3"},
		{ID: "4"},
	}

	tests := []struct {
		name  string
		query string
		want  []model.Image
	}{
		{
			name:  "curated fallbacks",
			query: "",
			want: []model.Image{
				{ID: "1", DisplaySrc: "l1", OriginalSrc: "o1", MediumSrc: "m1", Title: "Red fox", Category: "curated", PhotographerName: "Ana", PhotographerURL: "pa", IsPremium: true, ProviderPageURL: "u1"},
				{ID: "2", Title: "Photo 2", Category: "curated"},
				{ID: "3", Title: "Photo 3", Category: "curated"},
				{ID: "4", Title: "Photo 4", Category: "curated", IsPremium: true},
			},
		},
		{
			name:  "search fallbacks",
			query: "Black-And-White",
			want: []model.Image{
				{ID: "1", DisplaySrc: "l1", OriginalSrc: "o1", MediumSrc: "m1", Title: "Red fox", Category: "black-and-white", PhotographerName: "Ana", PhotographerURL: "pa", IsPremium: true, ProviderPageURL: "u1"},
				{ID: "2", Title: "Black-And-White photo 2", Category: "black-and-white"},
				{ID: "3", Title: "Black-And-White photo 3", Category: "black-and-white"},
				{ID: "4", Title: "Black-And-White photo 4", Category: "black-and-white", IsPremium: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Normalize(records, tt.query)); diff != "" {
				t.Errorf("normalized mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPremiumEveryThirdOnCuratedPage(t *testing.T) {
	f := NewFeed(New(&fakeSource{}, discardLogger()), discardLogger())

	images, err := f.FetchCurated(context.Background(), 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(images) != model.PageSize {
		t.Fatalf("expected %d images, got %d", model.PageSize, len(images))
	}
	for i, img := range images {
		if want := i%3 == 0; img.IsPremium != want {
			t.Errorf("image %d: IsPremium = %v, want %v", i, img.IsPremium, want)
		}
	}
}

func TestHasMore(t *testing.T) {
	tests := []struct {
		name string
		size int
		want bool
	}{
		{name: "full page", size: 30, want: true},
		{name: "short page", size: 29, want: false},
		{name: "empty page", size: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{size: func(model.Query) int { return tt.size }}
			f := NewFeed(New(src, discardLogger()), discardLogger())

			if _, err := f.Search(context.Background(), "dogs", 1); err != nil {
				t.Fatalf("search: %v", err)
			}
			if got := f.State().HasMore; got != tt.want {
				t.Errorf("HasMore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasMoreUpdatedOnCacheHit(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{size: func(q model.Query) int {
		if q.Text == "short" {
			return 10
		}
		return 30
	}}
	cache := New(src, discardLogger())
	f := NewFeed(cache, discardLogger())

	steps := []struct {
		text string
		want bool
	}{
		{text: "full", want: true},
		{text: "short", want: false},
		{text: "full", want: true},
		{text: "short", want: false},
	}
	for i, s := range steps {
		if _, err := f.Search(ctx, s.text, 1); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := f.State().HasMore; got != s.want {
			t.Errorf("step %d (%s): HasMore = %v, want %v", i, s.text, got, s.want)
		}
	}
	if got := src.callCount(); got != 2 {
		t.Errorf("expected 2 outbound requests, got %d", got)
	}
}

func TestBlankSearchIsCurated(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	cache := New(src, discardLogger())

	curated, err := NewFeed(cache, discardLogger()).FetchCurated(ctx, 2)
	if err != nil {
		t.Fatalf("curated: %v", err)
	}
	for _, text := range []string{"", "   "} {
		got, err := NewFeed(cache, discardLogger()).Search(ctx, text, 2)
		if err != nil {
			t.Fatalf("search %q: %v", text, err)
		}
		if diff := cmp.Diff(curated, got); diff != "" {
			t.Errorf("search %q differs from curated (-want +got):\n%s", text, diff)
		}
	}
	if got := src.callCount(); got != 1 {
		t.Errorf("expected a single curated request, got %d", got)
	}
}

func TestLoadMoreAppends(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{size: func(q model.Query) int {
		if q.Page == 2 {
			return 5
		}
		return 30
	}}
	f := NewFeed(New(src, discardLogger()), discardLogger())

	if _, err := f.Search(ctx, "cats", 1); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := f.LoadMore(ctx); err != nil {
		t.Fatalf("load more: %v", err)
	}

	st := f.State()
	if len(st.Items) != 35 {
		t.Fatalf("expected 35 items, got %d", len(st.Items))
	}
	if diff := cmp.Diff("cats-1-0", st.Items[0].ID); diff != "" {
		t.Errorf("earlier items were reset (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("cats-2-4", st.Items[34].ID); diff != "" {
		t.Errorf("last item mismatch (-want +got):\n%s", diff)
	}
	if st.CurrentPage != 2 || st.HasMore {
		t.Errorf("CurrentPage = %d, HasMore = %v; want 2, false", st.CurrentPage, st.HasMore)
	}
	if diff := cmp.Diff(model.NewQuery("cats", 2), src.calls[1]); diff != "" {
		t.Errorf("load more query mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMoreCuratedFromCacheHit(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	cache := New(src, discardLogger())

	warm := NewFeed(cache, discardLogger())
	if _, err := warm.FetchCurated(ctx, 1); err != nil {
		t.Fatalf("warm page 1: %v", err)
	}
	if _, err := warm.LoadMore(ctx); err != nil {
		t.Fatalf("warm page 2: %v", err)
	}

	f := NewFeed(cache, discardLogger())
	if _, err := f.FetchCurated(ctx, 1); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if _, err := f.LoadMore(ctx); err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if got := len(f.State().Items); got != 60 {
		t.Errorf("expected 60 items, got %d", got)
	}
	if got := src.callCount(); got != 2 {
		t.Errorf("expected cached pages to be reused, got %d calls", got)
	}
}

func TestFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	f := NewFeed(New(src, discardLogger()), discardLogger())

	if _, err := f.FetchCurated(ctx, 1); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	before := f.State()

	src.setErr(fmt.Errorf("%w: unexpected status 503", model.ErrNetwork))
	_, err := f.LoadMore(ctx)
	if !errors.Is(err, model.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}

	after := f.State()
	if diff := cmp.Diff(ids(before.Items), ids(after.Items)); diff != "" {
		t.Errorf("items changed on failure (-before +after):\n%s", diff)
	}
	if after.HasMore != before.HasMore || after.CurrentPage != before.CurrentPage {
		t.Errorf("pagination changed on failure: before %+v, after %+v", before, after)
	}
	if after.ErrorMessage == "" {
		t.Error("expected an error message")
	}
	if after.Loading {
		t.Error("expected loading to be cleared")
	}

	src.setErr(nil)
	if _, err := f.LoadMore(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if st := f.State(); st.ErrorMessage != "" || len(st.Items) != 60 {
		t.Errorf("after retry: error %q, %d items", st.ErrorMessage, len(st.Items))
	}
}

func TestStaleResponseDropped(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{blockText: "cats", started: make(chan struct{}, 1), release: make(chan struct{})}
	f := NewFeed(New(src, discardLogger()), discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := f.Search(ctx, "cats", 1)
		done <- err
	}()
	<-src.started

	if _, err := f.Search(ctx, "dogs", 1); err != nil {
		t.Fatalf("dogs: %v", err)
	}
	close(src.release)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale for superseded search, got %v", err)
	}

	st := f.State()
	if diff := cmp.Diff("dogs", st.LastQueryText); diff != "" {
		t.Errorf("last query mismatch (-want +got):\n%s", diff)
	}
	if len(st.Items) == 0 || st.Items[0].ID != "dogs-1-0" {
		t.Errorf("stale cats page overwrote dogs items: %v", ids(st.Items)[:min(3, len(st.Items))])
	}
	if st.Loading {
		t.Error("expected loading to be cleared")
	}
}

func TestLoadMoreWaitsForNewQueryFirstPage(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{blockText: "cats", started: make(chan struct{}, 1), release: make(chan struct{})}
	f := NewFeed(New(src, discardLogger()), discardLogger())

	if _, err := f.FetchCurated(ctx, 1); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if _, err := f.LoadMore(ctx); err != nil {
		t.Fatalf("page 2: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.Search(ctx, "cats", 1)
		done <- err
	}()
	<-src.started

	images, err := f.LoadMore(ctx)
	if !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale while cats page 1 is pending, got %v", err)
	}
	if len(images) != 0 {
		t.Errorf("expected no images, got %v", ids(images))
	}

	st := f.State()
	if st.CurrentPage != 2 || len(st.Items) != 60 {
		t.Errorf("CurrentPage = %d with %d items; want 2 with 60", st.CurrentPage, len(st.Items))
	}
	if diff := cmp.Diff("c-2-29", st.Items[len(st.Items)-1].ID); diff != "" {
		t.Errorf("curated items were extended (-want +got):\n%s", diff)
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("cats: %v", err)
	}

	st = f.State()
	if st.CurrentPage != 1 || len(st.Items) != 30 || st.Items[0].ID != "cats-1-0" {
		t.Errorf("after cats page 1: page %d, %d items, first %q", st.CurrentPage, len(st.Items), st.Items[0].ID)
	}
	want := []model.Query{model.NewQuery("", 1), model.NewQuery("", 2), model.NewQuery("cats", 1)}
	if diff := cmp.Diff(want, src.calls); diff != "" {
		t.Errorf("outbound queries mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMoreRefusedAfterFailedFirstPage(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	f := NewFeed(New(src, discardLogger()), discardLogger())

	if _, err := f.FetchCurated(ctx, 1); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	src.setErr(fmt.Errorf("%w: unexpected status 503", model.ErrNetwork))
	if _, err := f.Search(ctx, "cats", 1); !errors.Is(err, model.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	src.setErr(nil)

	if _, err := f.LoadMore(ctx); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	st := f.State()
	if st.CurrentPage != 1 || len(st.Items) != 30 || st.Items[0].ID != "c-1-0" {
		t.Errorf("curated page changed: page %d, %d items", st.CurrentPage, len(st.Items))
	}
	if diff := cmp.Diff("Failed to fetch images. Please try again.", st.ErrorMessage); diff != "" {
		t.Errorf("error message mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.Search(ctx, "cats", 1); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, err := f.LoadMore(ctx); err != nil {
		t.Fatalf("cats page 2: %v", err)
	}
	if got := f.State().Items[59].ID; got != "cats-2-29" {
		t.Errorf("last item = %q, want cats-2-29", got)
	}
}
