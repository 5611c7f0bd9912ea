package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const helpMsg = `Botfriend operator console

/bf_dashboard - post counts and next post time of every bot
/bf_backlog <bot> - the first backlog items of a bot
/bf_republish [bot...] - retry failed publications`

// NewHelpHandler returns a handler for the /bf_help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.deps.Logger.InfoContext(ctx, "Handling /bf_help command", "chat_id", update.Message.Chat.ID)
	reply(ctx, h.deps, b, update, "help", helpMsg)
}
