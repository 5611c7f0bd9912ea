package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const backlogPreview = 10

// NewBacklogHandler returns a handler for /bf_backlog <bot>.
func NewBacklogHandler(deps HandlerDeps) bot.HandlerFunc {
	return backlogHandler{deps}.Handle
}

type backlogHandler struct {
	deps HandlerDeps
}

func (h backlogHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "backlog")
	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		reply(ctx, h.deps, b, update, "backlog", "Usage: /bf_backlog <bot>")
		return
	}

	name := args[0]
	backlog, ok := h.deps.Console.Backlog(name)
	if !ok {
		reply(ctx, h.deps, b, update, "backlog", fmt.Sprintf("No bot called %q.", name))
		return
	}
	log.InfoContext(ctx, "Handling /bf_backlog command", "bot", name, "chat_id", update.Message.Chat.ID)

	if len(backlog) == 0 {
		reply(ctx, h.deps, b, update, "backlog", name+" has an empty backlog.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s has %d backlog items", name, len(backlog))
	for i, item := range backlog {
		if i == backlogPreview {
			fmt.Fprintf(&sb, "\n...and %d more", len(backlog)-backlogPreview)
			break
		}
		fmt.Fprintf(&sb, "\n%d. %s", i+1, truncate(string(item), 120))
	}
	reply(ctx, h.deps, b, update, "backlog", sb.String())
}

// commandArgs returns the words after the command itself.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
