package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"

	"inspirepixel/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	header     http.Header
	err        error

	requests []*http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	h := m.header
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Header:     h,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func TestPexelsCurated(t *testing.T) {
	tr := &mockTransport{body: loadFixture(t, "../../testdata/curated.json"), statusCode: 200}
	p := NewPexels(New(tr), "https://api.example.com/v1/", "secret-key")

	got, err := p.Curated(context.Background(), 2, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tr.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(tr.requests))
	}
	req := tr.requests[0]
	if diff := cmp.Diff("https://api.example.com/v1/curated?page=2&per_page=30", req.URL.String()); diff != "" {
		t.Errorf("url mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("secret-key", req.Header.Get("Authorization")); diff != "" {
		t.Errorf("auth header mismatch (-want +got):\n%s", diff)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	want := model.PhotoRecord{
		ID:              "2014422",
		Alt:             "Brown Rocks During Golden Hour",
		LargeSrc:        "https://images.pexels.com/photos/2014422/pexels-photo-2014422.jpeg?auto=compress&cs=tinysrgb&h=650&w=940",
		OriginalSrc:     "https://images.pexels.com/photos/2014422/pexels-photo-2014422.jpeg",
		MediumSrc:       "https://images.pexels.com/photos/2014422/pexels-photo-2014422.jpeg?auto=compress&cs=tinysrgb&h=350",
		Photographer:    "Joey Farina",
		PhotographerURL: "https://www.pexels.com/@joey",
		PageURL:         "https://www.pexels.com/photo/brown-rocks-during-golden-hour-2014422/",
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if got[1].Alt != "" {
		t.Errorf("expected empty alt, got %q", got[1].Alt)
	}
}

func TestPexelsSearchEncodesQuery(t *testing.T) {
	tr := &mockTransport{body: `{"photos": []}`, statusCode: 200}
	p := NewPexels(New(tr), "", "k")

	got, err := p.Search(context.Background(), "black & white", 1, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}

	u := tr.requests[0].URL
	if diff := cmp.Diff("/v1/search", u.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("black & white", u.Query().Get("query")); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestPexelsErrors(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
		wantErr   error
	}{
		{
			name:      "http error status",
			transport: &mockTransport{body: "rate limited", statusCode: 429},
			wantErr:   model.ErrNetwork,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   model.ErrNetwork,
		},
		{
			name:      "invalid json",
			transport: &mockTransport{body: "<html>", statusCode: 200},
			wantErr:   model.ErrMalformedResponse,
		},
		{
			name:      "missing photos",
			transport: &mockTransport{body: `{"page": 1}`, statusCode: 200},
			wantErr:   model.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPexels(New(tt.transport), "", "k")
			_, err := p.Curated(context.Background(), 1, 30)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFeedSourceCurated(t *testing.T) {
	xml := loadFixture(t, "../../testdata/media.xml")

	tests := []struct {
		name    string
		page    int
		perPage int
		wantIDs []string
	}{
		{name: "first page", page: 1, perPage: 2, wantIDs: []string{"photo-101", "photo-102"}},
		{name: "second page", page: 2, perPage: 2, wantIDs: []string{"photo-103", ItemGUID(&gofeed.Item{Title: "Beach sunset", Link: "https://photos.example.com/p/104"})}},
		{name: "past the end", page: 3, perPage: 2, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFeedSource(New(&mockTransport{body: xml, statusCode: 200}), "https://photos.example.com/rss")
			got, err := src.Curated(context.Background(), tt.page, tt.perPage)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFeedSourceImageFields(t *testing.T) {
	xml := loadFixture(t, "../../testdata/media.xml")
	src := NewFeedSource(New(&mockTransport{body: xml, statusCode: 200}), "https://photos.example.com/rss")

	got, err := src.Curated(context.Background(), 1, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 image records (audio skipped), got %d", len(got))
	}

	first := got[0]
	if diff := cmp.Diff("https://cdn.example.com/101.jpg", first.LargeSrc); diff != "" {
		t.Errorf("src mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://cdn.example.com/101_t.jpg", first.MediumSrc); diff != "" {
		t.Errorf("thumb mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://cdn.example.com/102.jpg", got[1].LargeSrc); diff != "" {
		t.Errorf("enclosure src mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(got[1].LargeSrc, got[1].MediumSrc); diff != "" {
		t.Errorf("thumb should fall back to src (-want +got):\n%s", diff)
	}
}

func TestFeedSourceSearch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/media.xml")

	tests := []struct {
		name       string
		query      string
		wantTitles []string
	}{
		{name: "word", query: "forest", wantTitles: []string{"Misty forest at dawn", "Forest fire aftermath"}},
		{name: "exclusion", query: "forest -fire", wantTitles: []string{"Misty forest at dawn"}},
		{name: "matches description", query: "skyline", wantTitles: []string{"City lights at night"}},
		{name: "no match", query: "glacier", wantTitles: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFeedSource(New(&mockTransport{body: xml, statusCode: 200}), "https://photos.example.com/rss")
			got, err := src.Search(context.Background(), tt.query, 1, 30)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var titles []string
			for _, r := range got {
				titles = append(titles, r.Alt)
			}
			if diff := cmp.Diff(tt.wantTitles, titles); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchInvalidFeed(t *testing.T) {
	f := New(&mockTransport{body: "not xml at all", statusCode: 200})
	_, err := f.Fetch(context.Background(), "https://example.com/rss")
	if !errors.Is(err, model.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestItemGUID(t *testing.T) {
	tests := []struct {
		name     string
		item     *gofeed.Item
		wantGUID string
		hasHash  bool
	}{
		{
			name:     "with guid",
			item:     &gofeed.Item{GUID: "abc-123"},
			wantGUID: "abc-123",
		},
		{
			name:    "without guid generates hash",
			item:    &gofeed.Item{Title: "Photo Without GUID", Link: "https://example.com/p/1"},
			hasHash: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ItemGUID(tt.item)
			if tt.hasHash {
				if !strings.HasPrefix(got, "sha256:") {
					t.Errorf("expected sha256 prefix, got %q", got)
				}
				return
			}
			if diff := cmp.Diff(tt.wantGUID, got); diff != "" {
				t.Errorf("GUID mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
		wantType  string
		wantErr   bool
	}{
		{
			name:      "content type from header",
			transport: &mockTransport{body: "jpegbytes", statusCode: 200, header: http.Header{"Content-Type": {"image/jpeg"}}},
			wantType:  "image/jpeg",
		},
		{
			name:      "content type sniffed",
			transport: &mockTransport{body: "\x89PNG\r\n\x1a\n0000", statusCode: 200},
			wantType:  "image/png",
		},
		{
			name:      "not found",
			transport: &mockTransport{statusCode: 404},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct, err := New(tt.transport).Download(context.Background(), "https://cdn.example.com/a.jpg")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantType, ct); diff != "" {
				t.Errorf("content type mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.transport.body, string(body)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
