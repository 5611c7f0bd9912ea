package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewRepublishHandler returns a handler for /bf_republish [bot...].
func NewRepublishHandler(deps HandlerDeps) bot.HandlerFunc {
	return republishHandler{deps}.Handle
}

type republishHandler struct {
	deps HandlerDeps
}

func (h republishHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "republish")
	names := commandArgs(update.Message.Text)
	log.InfoContext(ctx, "Handling /bf_republish command", "bots", names, "chat_id", update.Message.Chat.ID)

	report, err := h.deps.Console.RepublishPass(ctx, names...)
	if report == nil {
		reply(ctx, h.deps, b, update, "republish", "Republish failed: "+err.Error())
		return
	}

	var sb strings.Builder
	attempted, failed := 0, 0
	for _, br := range report.Bots {
		attempted += br.Attempted
		failed += br.Failed
		if br.Err != nil {
			fmt.Fprintf(&sb, "\n%s: %v", br.Bot, br.Err)
		}
	}
	summary := fmt.Sprintf("Republished %d publications, %d still failing.", attempted-failed, failed)
	if err != nil {
		summary += "\nPass aborted: " + err.Error()
	}
	reply(ctx, h.deps, b, update, "republish", summary+sb.String())
}
