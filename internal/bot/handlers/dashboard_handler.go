package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	botpkg "github.com/edgard/botfriend/internal/bot"
)

// NewDashboardHandler returns a handler for the /bf_dashboard command.
func NewDashboardHandler(deps HandlerDeps) bot.HandlerFunc {
	return dashboardHandler{deps: deps, now: time.Now}.Handle
}

type dashboardHandler struct {
	deps HandlerDeps
	now  func() time.Time
}

func (h dashboardHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "dashboard")
	log.InfoContext(ctx, "Handling /bf_dashboard command", "chat_id", update.Message.Chat.ID)

	summaries, err := h.deps.Console.Summarize(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build dashboard", "error", err)
		reply(ctx, h.deps, b, update, "dashboard", "Could not read the dashboard: "+err.Error())
		return
	}
	reply(ctx, h.deps, b, update, "dashboard", formatDashboard(summaries, h.now()))
}

func formatDashboard(summaries []botpkg.Summary, now time.Time) string {
	if len(summaries) == 0 {
		return "No bots are loaded."
	}
	var sb strings.Builder
	for i, s := range summaries {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %d posts, %d waiting (%d scheduled), %d failed, backlog %d, next post %s\n",
			s.Bot, s.Stats.Posts, s.Stats.Unpublished, s.Stats.Scheduled, s.Stats.FailedPosts,
			s.Backlog, s.NextPostLabel(now))
	}
	return strings.TrimRight(sb.String(), "\n")
}
