// Package handlers contains the Telegram operator console commands, along
// with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const unauthorizedMsg = "Sorry, only the bot operator can do that."

// AdminOnly creates a middleware that lets only the configured admin user
// through. Everyone else gets a refusal and the handler is not called.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if update.Message == nil {
				return
			}

			var userID int64
			if update.Message.From != nil {
				userID = update.Message.From.ID
			}
			if userID == 0 || userID != deps.Config.Telegram.AdminUserID {
				chatID := update.Message.Chat.ID
				log := deps.Logger.With("middleware", "AdminOnly")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)

				_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: unauthorizedMsg})
				if err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}
				return
			}

			next(ctx, b, update)
		}
	}
}

// reply answers the chat an update came from.
func reply(ctx context.Context, deps HandlerDeps, b *tgbot.Bot, update *models.Update, handler, text string) {
	chatID := update.Message.Chat.ID
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send reply", "handler", handler, "error", err, "chat_id", chatID)
	}
}
