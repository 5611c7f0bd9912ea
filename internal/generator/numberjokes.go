package generator

import (
	"context"
	"fmt"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
)

// NumberJokes tells the same joke about a different number every time.
type NumberJokes struct {
	limit int
}

func newNumberJokes(_ context.Context, cfg *config.BotConfig, _ Deps) (bot.ContentGenerator, error) {
	limit := cfg.Options.Int("max_number", 10)
	if limit < 1 {
		return nil, fmt.Errorf("%w: max_number must be positive", config.ErrConfiguration)
	}
	return &NumberJokes{limit: limit}, nil
}

func (g *NumberJokes) NewPost(_ context.Context, b *bot.Bot) (any, error) {
	// 1..limit inclusive
	n := b.Rand().IntN(g.limit) + 1
	return fmt.Sprintf("Why is %d afraid of %d? Because %d ate %d!", n, n+1, n+1, n+3), nil
}
