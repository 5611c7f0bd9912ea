package telegram

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/botfriend/internal/bot/handlers"
	"github.com/edgard/botfriend/internal/logger"
)

func TestNewConsoleRequiresToken(t *testing.T) {
	_, err := NewConsole("", logger.Discard(), nil)
	assert.Error(t, err)
}

func TestRegisterHandlers(t *testing.T) {
	noop := func(context.Context, *bot.Bot, *models.Update) {}
	commands := map[string]handlers.RegisteredHandler{
		"/b": {HandlerType: bot.HandlerTypeMessageText, Pattern: "b", Handler: noop, MatchType: bot.MatchTypeCommandStartOnly},
		"/a": {HandlerType: bot.HandlerTypeMessageText, Pattern: "a", Handler: noop, MatchType: bot.MatchTypeCommandStartOnly},
		"/x": {Pattern: "x"},
	}

	b, err := NewConsole("123:abc", logger.Discard(), nil, bot.WithSkipGetMe())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, RegisterHandlers(b, logger.Discard(), commands))
}

func TestApplyMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				order = append(order, name)
				next(ctx, b, u)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) { order = append(order, "handler") },
		[]bot.Middleware{mark("outer"), mark("inner")})
	h(context.Background(), nil, &models.Update{})
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestTokenPrefix(t *testing.T) {
	assert.Equal(t, "123:...", tokenPrefix("123:secret"))
	assert.Equal(t, "short:...", tokenPrefix("short"))
}
