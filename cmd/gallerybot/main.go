package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"inspirepixel/internal/auth"
	"inspirepixel/internal/bot"
	"inspirepixel/internal/caption"
	"inspirepixel/internal/config"
	"inspirepixel/internal/describe"
	"inspirepixel/internal/feedcache"
	"inspirepixel/internal/fetcher"
	"inspirepixel/internal/gallery"
	"inspirepixel/internal/remotestore"
	"inspirepixel/internal/storage"
	"inspirepixel/internal/watcher"
)

const httpTimeout = 30 * time.Second

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: httpTimeout}
	images := fetcher.New(client)

	captioner, closeCaptioner, err := newCaptioner(ctx, cfg, client, log)
	if err != nil {
		log.Error("create captioner", "provider", cfg.CaptionProvider, "error", err)
		os.Exit(1)
	}
	defer closeCaptioner()

	desc, err := describe.New(store, images, captioner, log.With("component", "describe"))
	if err != nil {
		log.Error("create describer", "error", err)
		os.Exit(1)
	}

	gate := auth.NewGate(ctx, newBackend(cfg, client, store, log), store, log.With("component", "auth"))

	b, err := bot.New(cfg.TelegramBotToken, cfg, log.With("component", "bot"))
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	cache := feedcache.New(newSource(cfg, images), log.With("component", "feedcache"))
	feed := feedcache.NewFeed(cache, log.With("component", "feed"))
	ctrl := gallery.New(feed, gate, desc, b, log.With("component", "gallery"), gallery.WithDebounce(cfg.SearchDebounce))
	b.Bind(ctrl, gate, images)

	w := watcher.New(gate, log.With("component", "watcher"))
	w.SetTickInterval(cfg.SessionPollInterval)

	log.Info("starting bot",
		"image_provider", cfg.ImageProvider,
		"caption_provider", cfg.CaptionProvider,
		"remote_store", cfg.UsesRemoteStore(),
	)

	go w.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped", "provider_requests", cache.Requests())
}

func newSource(cfg *config.Config, f *fetcher.Fetcher) feedcache.Source {
	if cfg.ImageProvider == config.ProviderFeed {
		return fetcher.NewFeedSource(f, cfg.MediaFeedURL)
	}
	return fetcher.NewPexels(f, cfg.PexelsAPIURL, cfg.PexelsAPIKey)
}

func newBackend(cfg *config.Config, client *http.Client, store *storage.SQLite, log *slog.Logger) auth.Backend {
	if cfg.UsesRemoteStore() {
		return remotestore.New(client, cfg.RemoteStoreURL, cfg.RemoteStoreToken, store, log.With("component", "remotestore"))
	}
	return auth.NewLocalBackend(store, store)
}

// newCaptioner returns the configured captioning backend and a function
// releasing it.
func newCaptioner(ctx context.Context, cfg *config.Config, client *http.Client, log *slog.Logger) (describe.Captioner, func(), error) {
	noop := func() {}
	switch cfg.CaptionProvider {
	case config.CaptionOllama:
		return caption.NewOllama(client, cfg.OllamaURL, cfg.OllamaModel), noop, nil
	case config.CaptionOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, noop, errors.New("OPENAI_API_KEY is required")
		}
		return caption.NewOpenAI(client, cfg.OpenAIAPIKey, cfg.OpenAIModel), noop, nil
	case config.CaptionGemini:
		g, err := caption.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return g, func() {
			if err := g.Close(); err != nil {
				log.Warn("close gemini client", "error", err)
			}
		}, nil
	default:
		if cfg.HFAPIKey == "" {
			log.Warn("HF_API_KEY is not set, captioning requests may be rejected")
		}
		return caption.NewHuggingFace(client, cfg.HFCaptionURL, cfg.HFAPIKey), noop, nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
