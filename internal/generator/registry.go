// Package generator holds the content generators a bot.yaml can name.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/gemini"
)

// Deps carries what generator constructors may need besides the bot's
// own configuration.
type Deps struct {
	Logger *slog.Logger
	// NewGemini builds the shared Gemini client. It is only called for bots
	// that use the gemini generator.
	NewGemini func(ctx context.Context) (gemini.Client, error)
}

// Factory builds a generator for one bot.
type Factory func(ctx context.Context, cfg *config.BotConfig, deps Deps) (bot.ContentGenerator, error)

// Generator names, as used by the generator key of bot.yaml.
const (
	NumberJokesName = "number-jokes"
	DullName        = "dull"
	LinesName       = "lines"
	ChorusName      = "chorus"
	GeminiName      = "gemini"
)

var registry = map[string]Factory{
	NumberJokesName: newNumberJokes,
	DullName:        newDull,
	LinesName:       newLines,
	ChorusName:      newChorus,
	GeminiName:      newGeminiGenerator,
}

// New builds the generator cfg names. Unknown names and invalid settings
// are configuration errors.
func New(ctx context.Context, cfg *config.BotConfig, deps Deps) (bot.ContentGenerator, error) {
	factory, ok := registry[cfg.Generator]
	if !ok {
		return nil, fmt.Errorf("%w: bot %s: unknown generator %q (known: %v)",
			config.ErrConfiguration, cfg.Name, cfg.Generator, Names())
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gen, err := factory(ctx, cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("bot %s: generator %s: %w", cfg.Name, cfg.Generator, err)
	}
	return gen, nil
}

// Names lists the registered generators in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}
