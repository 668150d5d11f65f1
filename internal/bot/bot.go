package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"inspirepixel/internal/config"
	"inspirepixel/internal/gallery"
	"inspirepixel/internal/model"
)

const genericFailure = "Something went wrong. Please try again."

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Gallery is the view controller the bot drives.
type Gallery interface {
	Start(ctx context.Context) error
	SetSearchText(ctx context.Context, text string)
	Settle()
	SetCategory(ctx context.Context, category string) error
	Visible(ctx context.Context) (bool, error)
	ShowLoadMore() bool
	LoadMore(ctx context.Context) error
	SetTab(t gallery.Tab)
	Items() []model.Image
	FavoritesEmpty() bool
	Open(imageID string) (model.Image, error)
	ToggleFavorite(ctx context.Context, imageID string) (bool, error)
	Describe(ctx context.Context, imageID string) (model.Description, bool, error)
	View() gallery.View
}

// Account is the signed-in user state.
type Account interface {
	Login(ctx context.Context, c model.Credentials) error
	Register(ctx context.Context, r model.Registration) error
	Logout(ctx context.Context)
	Upgrade(ctx context.Context) error
	UpdateName(ctx context.Context, name string) error
	User() (model.User, bool)
	IsPro() bool
	IsFavorite(imageID string) bool
}

// Downloader fetches image bytes.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Bot is the Telegram front end of the gallery.
type Bot struct {
	api     telegramAPI
	gallery Gallery
	account Account
	images  Downloader
	cfg     *config.Config
	log     *slog.Logger

	// chatID is the chat notifications go to: the one of the update being
	// handled or, between updates, the last one seen.
	chatID atomic.Int64
}

// New creates a Bot with the given Telegram token and config. Bind must be
// called before Run.
func New(token string, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api: api,
		cfg: cfg,
		log: log,
	}, nil
}

// Bind attaches the gallery, the account state and the image downloader.
// The bot is itself the gallery's notifier, so these are wired after New.
func (b *Bot) Bind(g Gallery, a Account, images Downloader) {
	b.gallery = g
	b.account = a
	b.images = images
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		cb := update.CallbackQuery
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			return
		}
		b.chatID.Store(cb.Message.Chat.ID)
		b.safely(cb.Message.Chat.ID, func() { b.handleCallback(ctx, cb) })
	case update.Message != nil && update.Message.IsCommand():
		msg := update.Message
		if !b.cfg.IsUserAllowed(msg.From.ID) {
			b.reply(msg.Chat.ID, "Access denied.")
			return
		}
		b.chatID.Store(msg.Chat.ID)
		b.safely(msg.Chat.ID, func() { b.handleCommand(ctx, msg) })
	}
}

// safely runs fn and turns a panic into a generic notification.
func (b *Bot) safely(chatID int64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panic", "chat_id", chatID, "panic", r, "stack", string(debug.Stack()))
			b.reply(chatID, genericFailure)
		}
	}()
	fn()
}

// Notify sends message to the active chat.
func (b *Bot) Notify(message string) {
	if chatID := b.chatID.Load(); chatID != 0 {
		b.SendMessage(chatID, message)
	}
}

// RequestAuth asks the user in the active chat to sign in.
func (b *Bot) RequestAuth() {
	b.Notify("Please log in first.\n/login <email> <password>\n/register <name> <email> <password>")
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) send(c tgbotapi.Chattable, what string) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("send "+what, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	// Credentials are never logged.
	logArgs := args
	if cmd == cmdLogin || cmd == cmdRegister {
		logArgs = "[redacted]"
	}
	b.log.Debug("command", "cmd", cmd, "args", logArgs, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "curated":
		b.handleCurated(ctx, chatID)
	case "search":
		b.handleSearch(ctx, chatID, args)
	case "category":
		b.handleCategory(ctx, chatID, args)
	case cmdMore:
		b.handleMore(ctx, chatID)
	case "favorites":
		b.handleTab(chatID, gallery.TabFavorites)
	case "all":
		b.handleTab(chatID, gallery.TabAll)
	case cmdOpen:
		b.handleOpen(chatID, args)
	case cmdFav:
		b.handleFavorite(ctx, chatID, args)
	case "describe":
		b.handleDescribe(ctx, chatID, args)
	case "download":
		b.handleDownload(ctx, chatID, args)
	case cmdLogin:
		b.handleLogin(ctx, chatID, args)
	case cmdRegister:
		b.handleRegister(ctx, chatID, args)
	case "logout":
		b.handleLogout(ctx, chatID)
	case "upgrade":
		b.handleUpgrade(ctx, chatID)
	case "rename":
		b.handleRename(ctx, chatID, args)
	case "whoami":
		b.handleWhoAmI(chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
