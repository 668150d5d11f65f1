// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Image providers.
const (
	ProviderPexels = "pexels"
	ProviderFeed   = "feed"
)

// Caption providers.
const (
	CaptionHuggingFace = "huggingface"
	CaptionOllama      = "ollama"
	CaptionOpenAI      = "openai"
	CaptionGemini      = "gemini"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	ImageProvider string
	PexelsAPIKey  string
	PexelsAPIURL  string
	MediaFeedURL  string

	CaptionProvider string
	HFAPIKey        string
	HFCaptionURL    string
	OllamaURL       string
	OllamaModel     string
	OpenAIAPIKey    string
	OpenAIModel     string
	GeminiAPIKey    string
	GeminiModel     string

	RemoteStoreURL   string
	RemoteStoreToken string

	SessionPollInterval time.Duration
	SearchDebounce      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken: token,
		DatabasePath:     envOr("DATABASE_PATH", "./data/gallery.db"),
		LogLevel:         envOr("LOG_LEVEL", "info"),

		ImageProvider: strings.ToLower(envOr("IMAGE_PROVIDER", ProviderPexels)),
		PexelsAPIKey:  os.Getenv("PEXELS_API_KEY"),
		PexelsAPIURL:  envOr("PEXELS_API_URL", "https://api.pexels.com/v1"),
		MediaFeedURL:  os.Getenv("MEDIA_FEED_URL"),

		CaptionProvider: strings.ToLower(envOr("CAPTION_PROVIDER", CaptionHuggingFace)),
		HFAPIKey:        os.Getenv("HF_API_KEY"),
		HFCaptionURL:    os.Getenv("HF_CAPTION_URL"),
		OllamaURL:       envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:     envOr("OLLAMA_MODEL", "llava"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     envOr("GEMINI_MODEL", "gemini-1.5-flash"),

		RemoteStoreURL:   os.Getenv("REMOTE_STORE_URL"),
		RemoteStoreToken: os.Getenv("REMOTE_STORE_TOKEN"),
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	var err error
	if cfg.SessionPollInterval, err = duration("SESSION_POLL_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SearchDebounce, err = duration("SEARCH_DEBOUNCE", 300*time.Millisecond); err != nil {
		return nil, err
	}

	switch cfg.ImageProvider {
	case ProviderPexels:
		if cfg.PexelsAPIKey == "" {
			return nil, fmt.Errorf("PEXELS_API_KEY is required when IMAGE_PROVIDER is %s", ProviderPexels)
		}
	case ProviderFeed:
		if cfg.MediaFeedURL == "" {
			return nil, fmt.Errorf("MEDIA_FEED_URL is required when IMAGE_PROVIDER is %s", ProviderFeed)
		}
	default:
		return nil, fmt.Errorf("unknown IMAGE_PROVIDER %q", cfg.ImageProvider)
	}

	if !slices.Contains([]string{CaptionHuggingFace, CaptionOllama, CaptionOpenAI, CaptionGemini}, cfg.CaptionProvider) {
		return nil, fmt.Errorf("unknown CAPTION_PROVIDER %q", cfg.CaptionProvider)
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}

// UsesRemoteStore reports whether accounts live in the remote store instead
// of the local registry.
func (c *Config) UsesRemoteStore() bool {
	return c.RemoteStoreURL != ""
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}
