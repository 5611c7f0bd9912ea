package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
)

// Console is what the operator commands act on. *bot.Runner implements it.
// Its methods are safe to call while a pass runs.
type Console interface {
	Summarize(ctx context.Context) ([]bot.Summary, error)
	Backlog(name string) (database.Backlog, bool)
	RepublishPass(ctx context.Context, names ...string) (*bot.PassReport, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Console Console
}
