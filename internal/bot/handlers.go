package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"inspirepixel/internal/gallery"
	"inspirepixel/internal/model"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.reply(chatID, `Welcome to InspirePixel!

Browse curated photos, search by keyword or category, and keep your favorites.

Use /help for the full command reference.`)

	if err := b.gallery.Start(ctx); err != nil {
		return
	}
	b.renderPage(chatID, 0)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Browsing:
/curated — curated photos
/search <text> — search photos
/category <name> — photos of a category (nature, city, ...)
/more — load the next page
/all — list all loaded images
/favorites — list your favorites
/open <id> — show an image
/describe <id> — describe an image
/download <id> — download the original file

Account:
/register <name> <email> <password>
/login <email> <password>
/logout
/upgrade — unlock premium images
/rename <name> — change your display name
/whoami — show your account`)
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, text string) {
	b.gallery.SetSearchText(ctx, text)
	if b.gallery.View().Category != "" {
		if err := b.gallery.SetCategory(ctx, ""); err != nil {
			return
		}
	} else {
		b.gallery.Settle()
	}
	b.renderPage(chatID, 0)
}

// handleCurated clears the search text and the category.
func (b *Bot) handleCurated(ctx context.Context, chatID int64) {
	b.gallery.SetSearchText(ctx, "")
	b.handleCategory(ctx, chatID, "")
}

func (b *Bot) handleCategory(ctx context.Context, chatID int64, category string) {
	if err := b.gallery.SetCategory(ctx, category); err != nil {
		return
	}
	b.renderPage(chatID, 0)
}

func (b *Bot) handleMore(ctx context.Context, chatID int64) {
	if b.gallery.View().Tab == gallery.TabFavorites {
		b.reply(chatID, "Switch to /all to load more images.")
		return
	}

	before := len(b.gallery.Items())
	loaded, err := b.gallery.Visible(ctx)
	switch {
	case err != nil:
		return
	case loaded:
		b.renderPage(chatID, before)
	case b.gallery.ShowLoadMore():
		msg := tgbotapi.NewMessage(chatID, "Tap Load more to fetch the next page.")
		msg.ReplyMarkup = loadMoreKeyboard()
		b.send(msg, "load more prompt")
	case !b.gallery.View().Feed.HasMore:
		b.reply(chatID, "No more images.")
	default:
		b.reply(chatID, "Still loading, try again in a moment.")
	}
}

func (b *Bot) handleLoadMore(ctx context.Context, chatID int64) {
	before := len(b.gallery.Items())
	if err := b.gallery.LoadMore(ctx); err != nil {
		return
	}
	if len(b.gallery.Items()) == before {
		b.reply(chatID, "No more images.")
		return
	}
	b.renderPage(chatID, before)
}

func (b *Bot) handleTab(chatID int64, tab gallery.Tab) {
	b.gallery.SetTab(tab)
	if b.gallery.FavoritesEmpty() {
		b.reply(chatID, "No favorites yet. Open an image and tap \"Add to favorites\" to save it.")
		return
	}
	b.renderPage(chatID, 0)
}

// renderPage lists the images of the active tab starting at index from.
func (b *Bot) renderPage(chatID int64, from int) {
	items := b.gallery.Items()
	if from > len(items) {
		from = len(items)
	}
	msg := tgbotapi.NewMessage(chatID, FormatImageList(items[from:], b.gallery.View(), b.account.IsFavorite))
	msg.DisableWebPagePreview = true
	if b.gallery.ShowLoadMore() {
		msg.ReplyMarkup = loadMoreKeyboard()
	}
	b.send(msg, "image list")
}

func (b *Bot) handleOpen(chatID int64, args string) {
	id, err := ParseImageID(args)
	if err != nil {
		b.reply(chatID, "Usage: /open <id>")
		return
	}

	img, ok := b.open(chatID, id)
	if !ok {
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(img.DisplaySrc))
	photo.Caption = FormatImageCaption(img)
	photo.ReplyMarkup = imageKeyboard(img.ID, b.account.IsFavorite(img.ID))
	b.send(photo, "photo")
}

// open resolves an image the user may view. Premium refusals are notified
// by the gallery.
func (b *Bot) open(chatID int64, id string) (model.Image, bool) {
	img, err := b.gallery.Open(id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		b.reply(chatID, fmt.Sprintf("Image %s not found. Load it first with /search or /more.", id))
		return model.Image{}, false
	case err != nil:
		return model.Image{}, false
	}
	return img, true
}

func (b *Bot) handleFavorite(ctx context.Context, chatID int64, args string) {
	id, err := ParseImageID(args)
	if err != nil {
		b.reply(chatID, "Usage: /fav <id>")
		return
	}

	added, err := b.gallery.ToggleFavorite(ctx, id)
	if err != nil {
		return
	}
	if added {
		b.reply(chatID, fmt.Sprintf("Added %s to favorites.", id))
	} else {
		b.reply(chatID, fmt.Sprintf("Removed %s from favorites.", id))
	}
}

func (b *Bot) handleDescribe(ctx context.Context, chatID int64, args string) {
	id, err := ParseImageID(args)
	if err != nil {
		b.reply(chatID, "Usage: /describe <id>")
		return
	}

	d, ran, err := b.gallery.Describe(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		b.reply(chatID, fmt.Sprintf("Image %s not found. Load it first with /search or /more.", id))
	case err != nil:
		b.reply(chatID, model.Message(err))
	case !ran:
		b.reply(chatID, fmt.Sprintf("A description for %s is already being generated.", id))
	default:
		b.reply(chatID, FormatDescription(d))
	}
}

func (b *Bot) handleDownload(ctx context.Context, chatID int64, args string) {
	id, err := ParseImageID(args)
	if err != nil {
		b.reply(chatID, "Usage: /download <id>")
		return
	}

	img, ok := b.open(chatID, id)
	if !ok {
		return
	}
	src := img.OriginalSrc
	if src == "" {
		src = img.DisplaySrc
	}
	data, contentType, err := b.images.Download(ctx, src)
	if err != nil {
		b.log.Warn("download image", "image_id", id, "error", err)
		b.reply(chatID, "Download failed. Please try again.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName(id, contentType), Bytes: data})
	b.send(doc, "document")
}

func (b *Bot) handleLogin(ctx context.Context, chatID int64, args string) {
	creds, err := ParseLoginArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := b.account.Login(ctx, creds); err != nil {
		b.reply(chatID, model.Message(err))
		return
	}
	u, _ := b.account.User()
	b.reply(chatID, "Logged in.\n"+FormatUser(u))
}

func (b *Bot) handleRegister(ctx context.Context, chatID int64, args string) {
	r, err := ParseRegisterArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	res := model.ResultOf(b.account.Register(ctx, r), fmt.Sprintf("Account created. Welcome, %s!", r.Name))
	b.reply(chatID, res.Message)
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64) {
	b.account.Logout(ctx)
	b.reply(chatID, "Logged out.")
}

func (b *Bot) handleUpgrade(ctx context.Context, chatID int64) {
	if b.account.IsPro() {
		b.reply(chatID, "You already have Pro.")
		return
	}
	res := model.ResultOf(b.account.Upgrade(ctx), "Upgraded to Pro. Premium images are unlocked.")
	b.reply(chatID, res.Message)
}

func (b *Bot) handleRename(ctx context.Context, chatID int64, name string) {
	if name == "" {
		b.reply(chatID, "Usage: /rename <name>")
		return
	}
	res := model.ResultOf(b.account.UpdateName(ctx, name), fmt.Sprintf("Name changed to %q.", name))
	b.reply(chatID, res.Message)
}

func (b *Bot) handleWhoAmI(chatID int64) {
	u, ok := b.account.User()
	if !ok {
		b.reply(chatID, "You are not logged in.")
		return
	}
	b.reply(chatID, FormatUser(u))
}
