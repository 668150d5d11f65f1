package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"inspirepixel/internal/model"
)

// DefaultPexelsURL is the public Pexels API base.
const DefaultPexelsURL = "https://api.pexels.com/v1"

// Pexels is a Source backed by the Pexels photo API.
type Pexels struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
}

// NewPexels creates a Pexels source. An empty baseURL selects DefaultPexelsURL.
func NewPexels(f *Fetcher, baseURL, apiKey string) *Pexels {
	if baseURL == "" {
		baseURL = DefaultPexelsURL
	}
	return &Pexels{
		fetcher: f,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type pexelsResponse struct {
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Photos  *[]pexelsPhoto `json:"photos"`
}

type pexelsPhoto struct {
	ID              int64  `json:"id"`
	URL             string `json:"url"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	Alt             string `json:"alt"`
	Src             struct {
		Original string `json:"original"`
		Large    string `json:"large"`
		Medium   string `json:"medium"`
	} `json:"src"`
}

// Curated returns one page of the curated feed.
func (p *Pexels) Curated(ctx context.Context, page, perPage int) ([]model.PhotoRecord, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	return p.list(ctx, "curated", q)
}

// Search returns one page of results for query.
func (p *Pexels) Search(ctx context.Context, query string, page, perPage int) ([]model.PhotoRecord, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	return p.list(ctx, "search", q)
}

func (p *Pexels) list(ctx context.Context, endpoint string, q url.Values) ([]model.PhotoRecord, error) {
	h := http.Header{}
	h.Set("Authorization", p.apiKey)

	body, _, err := p.fetcher.get(ctx, p.baseURL+"/"+endpoint+"?"+q.Encode(), h, maxPageBytes)
	if err != nil {
		return nil, fmt.Errorf("pexels %s: %w", endpoint, err)
	}

	var resp pexelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pexels %s: decode: %w: %w", endpoint, model.ErrMalformedResponse, err)
	}
	if resp.Photos == nil {
		return nil, fmt.Errorf("pexels %s: %w: missing photos", endpoint, model.ErrMalformedResponse)
	}

	records := make([]model.PhotoRecord, 0, len(*resp.Photos))
	for _, ph := range *resp.Photos {
		records = append(records, model.PhotoRecord{
			ID:              strconv.FormatInt(ph.ID, 10),
			Alt:             ph.Alt,
			LargeSrc:        ph.Src.Large,
			OriginalSrc:     ph.Src.Original,
			MediumSrc:       ph.Src.Medium,
			Photographer:    ph.Photographer,
			PhotographerURL: ph.PhotographerURL,
			PageURL:         ph.URL,
		})
	}
	return records, nil
}
