// Package model defines the domain types used across the application.
package model

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// PageSize is the number of images requested per provider page.
const PageSize = 30

// CuratedCategory is the category assigned to images of the curated feed.
const CuratedCategory = "curated"

// Image is a normalized photo from the image provider.
type Image struct {
	ID               string `json:"id"`
	DisplaySrc       string `json:"display_src"`
	OriginalSrc      string `json:"original_src"`
	MediumSrc        string `json:"medium_src,omitempty"`
	Title            string `json:"title"`
	Category         string `json:"category"`
	PhotographerName string `json:"photographer_name"`
	PhotographerURL  string `json:"photographer_url"`
	IsPremium        bool   `json:"is_premium"`
	ProviderPageURL  string `json:"provider_page_url"`
}

// PhotoRecord is a raw photo as returned by a provider, before normalization.
type PhotoRecord struct {
	ID              string
	Alt             string
	LargeSrc        string
	OriginalSrc     string
	MediumSrc       string
	Photographer    string
	PhotographerURL string
	PageURL         string
}

// QueryKind distinguishes the provider endpoint a query targets.
type QueryKind string

// Supported query kinds.
const (
	KindCurated QueryKind = "curated"
	KindSearch  QueryKind = "search"
)

// Query identifies one page of a feed. It is the cache key.
type Query struct {
	Kind QueryKind
	Text string
	Page int
}

// NewQuery builds a normalized query. Blank text selects the curated feed.
func NewQuery(text string, page int) Query {
	text = strings.TrimSpace(text)
	if page < 1 {
		page = 1
	}
	if text == "" {
		return Query{Kind: KindCurated, Page: page}
	}
	return Query{Kind: KindSearch, Text: text, Page: page}
}

// String returns the cache key representation of the query.
func (q Query) String() string {
	return string(q.Kind) + "-" + q.Text + "-" + strconv.Itoa(q.Page)
}

// Entitlement is the user's access tier.
type Entitlement string

// Supported entitlements.
const (
	EntitlementFree Entitlement = "free"
	EntitlementPro  Entitlement = "pro"
)

// ParseEntitlement maps a stored value to an Entitlement, defaulting to free.
func ParseEntitlement(s string) Entitlement {
	if Entitlement(s) == EntitlementPro {
		return EntitlementPro
	}
	return EntitlementFree
}

// User is the signed-in account.
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Entitlement Entitlement `json:"entitlement"`
}

// Profile is the remote store document for a user.
type Profile struct {
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Entitlement Entitlement `json:"entitlement"`
	Favorites   []string    `json:"favorites"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Credentials are the login inputs.
type Credentials struct {
	Email    string
	Password string
}

// Registration are the sign-up inputs.
type Registration struct {
	Name     string
	Email    string
	Password string
}

// FavoriteSet is an ordered set of image ids.
type FavoriteSet []string

// Contains reports whether id is in the set.
func (f FavoriteSet) Contains(id string) bool {
	return slices.Contains(f, id)
}

// Toggle returns a new set with id added or removed.
func (f FavoriteSet) Toggle(id string) FavoriteSet {
	if i := slices.Index(f, id); i >= 0 {
		return slices.Delete(slices.Clone(f), i, i+1)
	}
	return append(slices.Clone(f), id)
}

// Origin is the provenance of a description.
type Origin string

// Supported origins.
const (
	OriginCache    Origin = "cache"
	OriginRemote   Origin = "remote"
	OriginFallback Origin = "fallback"
)

// Description is the one-sentence text attached to an image.
type Description struct {
	ImageID     string
	Text        string
	GeneratedAt time.Time
	Origin      Origin
}
