// Package describe attaches a one-sentence description to images. Texts come
// from the persistent cache, a remote captioning model, or a per-category
// fallback catalog, in that order.
package describe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"inspirepixel/internal/model"
)

// GenericDescription is published when no other text could be produced.
const GenericDescription = "A beautiful image that inspires creativity and artistic expression."

var errNoCaptioner = errors.New("no captioner configured")

const (
	keyPrefix      = "desc_"
	defaultTimeout = 30 * time.Second
)

// KV is the persistent store descriptions are cached in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Downloader fetches the bytes of an image.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Captioner generates a caption for image bytes.
type Captioner interface {
	Caption(ctx context.Context, image []byte, contentType string) (string, error)
}

// Service generates, caches and publishes descriptions. At most one
// generation runs per image at a time.
type Service struct {
	kv        KV
	images    Downloader
	captioner Captioner
	catalog   Catalog
	log       *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.RWMutex
	published map[string]model.Description
	loading   map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the random source used to pick fallback sentences.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithCatalog replaces the embedded fallback catalog.
func WithCatalog(c Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithTimeout bounds the download and captioning round trip.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock sets the time source for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. A nil captioner disables remote captioning and every
// uncached image gets a fallback sentence.
func New(kv KV, images Downloader, captioner Captioner, log *slog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		kv:        kv,
		images:    images,
		captioner: captioner,
		log:       log,
		timeout:   defaultTimeout,
		now:       time.Now,
		published: make(map[string]model.Description),
		loading:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		c, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		s.catalog = c
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return s, nil
}

// Generate produces and publishes the description for imageID. It returns
// false without doing anything when a generation for the image is already
// running.
func (s *Service) Generate(ctx context.Context, imageURL, imageID, category string) (model.Description, bool) {
	s.mu.Lock()
	if s.loading[imageID] {
		s.mu.Unlock()
		return model.Description{}, false
	}
	s.loading[imageID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.loading, imageID)
		s.mu.Unlock()
	}()

	d := s.resolve(ctx, imageURL, imageID, category)
	s.mu.Lock()
	s.published[imageID] = d
	s.mu.Unlock()
	return d, true
}

// Get returns the published description for imageID.
func (s *Service) Get(imageID string) (model.Description, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.published[imageID]
	return d, ok
}

// IsLoading reports whether a generation for imageID is running.
func (s *Service) IsLoading(imageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[imageID]
}

func (s *Service) resolve(ctx context.Context, imageURL, imageID, category string) (d model.Description) {
	key := keyPrefix + imageID

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("describe image panicked", "image_id", imageID, "panic", r)
			d = s.generic(ctx, imageID, key)
		}
	}()

	cached, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("read cached description", "image_id", imageID, "error", err)
	}
	if ok {
		return s.describe(imageID, cached, model.OriginCache)
	}

	text, err := s.caption(ctx, imageURL)
	if err == nil {
		if err := s.kv.Set(ctx, key, text); err != nil {
			s.log.Warn("store description", "image_id", imageID, "error", err)
		}
		return s.describe(imageID, text, model.OriginRemote)
	}
	s.log.Info("captioning failed, using fallback", "image_id", imageID, "error", err)

	text = s.fallback(category)
	if err := s.kv.Set(ctx, key, text); err != nil {
		s.log.Warn("store fallback description", "image_id", imageID, "error", err)
		return s.generic(ctx, imageID, key)
	}
	return s.describe(imageID, text, model.OriginFallback)
}

func (s *Service) caption(ctx context.Context, imageURL string) (string, error) {
	if s.captioner == nil {
		return "", errNoCaptioner
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, contentType, err := s.images.Download(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	text, err := s.captioner.Caption(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("caption image: %w", err)
	}
	return text, nil
}

// fallback picks a random catalog sentence for category.
func (s *Service) fallback(category string) string {
	sentences := s.catalog.Sentences(category)
	s.rngMu.Lock()
	i := s.rng.IntN(len(sentences))
	s.rngMu.Unlock()
	return sentences[i] + "."
}

func (s *Service) generic(ctx context.Context, imageID, key string) model.Description {
	if err := s.kv.Set(ctx, key, GenericDescription); err != nil {
		s.log.Warn("store generic description", "image_id", imageID, "error", err)
	}
	return s.describe(imageID, GenericDescription, model.OriginFallback)
}

func (s *Service) describe(imageID, text string, origin model.Origin) model.Description {
	return model.Description{ImageID: imageID, Text: text, GeneratedAt: s.now(), Origin: origin}
}
