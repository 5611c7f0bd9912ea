// Package publish holds the publishers a bot's publish block can name.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
)

// Target is the bot a publisher is built for.
type Target struct {
	BotName   string
	Directory string
	Logger    *slog.Logger
	// Stdout receives echo output.
	Stdout io.Writer
}

// AttachmentPath resolves a bot-local attachment filename.
func (t Target) AttachmentPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(t.Directory, filename)
}

// Factory builds one publisher from its publish block.
type Factory func(ctx context.Context, service string, target Target, opts config.Options) (bot.Publisher, error)

// Publisher types. A publish block is built by the type under its "type"
// key, or by the type named like the block itself.
const (
	EchoType     = "echo"
	FileType     = "file"
	PodcastType  = "podcast"
	TelegramType = "telegram"
	MastodonType = "mastodon"
)

var registry = map[string]Factory{
	EchoType:     newEcho,
	FileType:     newFile,
	PodcastType:  newPodcast,
	TelegramType: newTelegram,
	MastodonType: newMastodon,
}

// New builds every publisher of a bot, sorted by service name. Missing
// credentials and unknown types are configuration errors.
func New(ctx context.Context, cfg *config.BotConfig, log *slog.Logger, stdout io.Writer) ([]bot.Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	target := Target{BotName: cfg.Name, Directory: cfg.Directory, Logger: log, Stdout: stdout}

	services := slices.Sorted(maps.Keys(cfg.Publish))
	publishers := make([]bot.Publisher, 0, len(services))
	for _, service := range services {
		opts := cfg.Publish[service]
		if opts == nil {
			opts = config.Options{}
		}
		kind := opts.String("type", service)
		factory, ok := registry[kind]
		if !ok {
			return nil, fmt.Errorf("%w: bot %s: unknown publisher %q (known: %v)",
				config.ErrConfiguration, cfg.Name, kind, Types())
		}
		p, err := factory(ctx, service, target, opts)
		if err != nil {
			return nil, fmt.Errorf("bot %s: publisher %s: %w", cfg.Name, service, err)
		}
		if perMinute := opts.Float("rate_per_minute", 0); perMinute > 0 {
			p = Throttle(p, perMinute)
		}
		publishers = append(publishers, p)
	}
	return publishers, nil
}

// Types lists the registered publisher types in sorted order.
func Types() []string {
	return slices.Sorted(maps.Keys(registry))
}
