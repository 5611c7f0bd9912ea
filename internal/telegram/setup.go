// Package telegram builds the operator console bot and registers its commands.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/botfriend/internal/bot/handlers"
	"github.com/edgard/botfriend/internal/logger"
)

// NewConsole creates the console bot for token with every command of
// commands registered. Updates that match no command are ignored.
func NewConsole(token string, log *slog.Logger, commands map[string]handlers.RegisteredHandler, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telegram_console")

	base := []bot.Option{
		bot.WithMiddlewares(logger.Middleware(log)),
		bot.WithDefaultHandler(func(context.Context, *bot.Bot, *models.Update) {}),
	}
	b, err := bot.New(token, append(base, opts...)...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	RegisterHandlers(b, log, commands)
	log.Info("Telegram console created", "token_prefix", tokenPrefix(token), "commands", len(commands))
	return b, nil
}

// applyMiddleware wraps handler so the first middleware is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers commands in sorted order and returns the
// registered patterns.
func RegisterHandlers(b *bot.Bot, log *slog.Logger, commands map[string]handlers.RegisteredHandler) []string {
	var patterns []string
	for _, name := range slices.Sorted(maps.Keys(commands)) {
		cmd := commands[name]
		if cmd.Handler == nil {
			log.Warn("Skipping registration for nil handler", "pattern", cmd.Pattern)
			continue
		}
		b.RegisterHandler(cmd.HandlerType, cmd.Pattern, cmd.MatchType, applyMiddleware(cmd.Handler, cmd.Middleware))
		patterns = append(patterns, cmd.Pattern)
		log.Debug("Registered handler", "pattern", cmd.Pattern, "middleware_count", len(cmd.Middleware))
	}
	return patterns
}

func tokenPrefix(token string) string {
	head, _, _ := strings.Cut(token, ":")
	return head + ":..."
}
