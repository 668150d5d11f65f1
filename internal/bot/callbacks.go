package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdOpen     = "open"
	cmdFav      = "fav"
	cmdDesc     = "desc"
	cmdMore     = "more"
	cmdLogin    = "login"
	cmdRegister = "register"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, id, ok := strings.Cut(cb.Data, ":")
	if !ok || id == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"image_id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdOpen:
		b.handleOpen(chatID, id)
	case cmdFav:
		b.handleFavorite(ctx, chatID, id)
	case cmdDesc:
		b.handleDescribe(ctx, chatID, id)
	case cmdMore:
		b.handleLoadMore(ctx, chatID)
	}
}

func imageKeyboard(imageID string, favorite bool) tgbotapi.InlineKeyboardMarkup {
	favLabel := "Add to favorites"
	if favorite {
		favLabel = "Remove from favorites"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(favLabel, cmdFav+":"+imageID),
			tgbotapi.NewInlineKeyboardButtonData("Describe", cmdDesc+":"+imageID),
		),
	)
}

func loadMoreKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Load more", cmdMore+":0"),
		),
	)
}
