// Package app wires configuration, storage, generators and publishers into
// the bots the commands operate on.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/bot/handlers"
	"github.com/edgard/botfriend/internal/bot/tasks"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
	"github.com/edgard/botfriend/internal/gemini"
	"github.com/edgard/botfriend/internal/generator"
	"github.com/edgard/botfriend/internal/logger"
	"github.com/edgard/botfriend/internal/publish"
	"github.com/edgard/botfriend/internal/telegram"
)

// Options selects what Load loads.
type Options struct {
	ConfigPath string
	// Bots limits loading to bots with these names or directory names.
	Bots []string
	// Stdout receives echo publisher output.
	Stdout io.Writer
	// Logger overrides the logger built from the config.
	Logger *slog.Logger
}

// App is a loaded configuration: the database and every selected bot.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  database.Store
	Runner *bot.Runner

	db *sqlx.DB
}

// Load reads the configuration, opens the database and builds the bots.
// Any configuration error is returned wrapped in config.ErrConfiguration.
func Load(ctx context.Context, opts Options) (*App, error) {
	startTime := time.Now()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	botConfigs, err := config.DiscoverBots(cfg.BotsDir, opts.Bots, log)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return nil, err
	}
	store := database.NewStore(db, log)

	deps := generator.Deps{Logger: log, NewGemini: lazyGemini(cfg.Gemini, log)}
	bots := make([]*bot.Bot, 0, len(botConfigs))
	for _, bc := range botConfigs {
		b, err := BuildBot(ctx, bc, store, deps, log, opts.Stdout)
		if err != nil {
			database.CloseDB(db)
			return nil, err
		}
		bots = append(bots, b)
	}

	log.Info("Loaded bots", "count", len(bots), "duration_ms", time.Since(startTime).Milliseconds())
	return &App{
		Config: cfg,
		Logger: log,
		Store:  store,
		Runner: bot.NewRunner(log, bots...),
		db:     db,
	}, nil
}

// BuildBot creates the generator, publishers and schedules of one bot and
// binds them to its stored record, creating the record on first load.
func BuildBot(ctx context.Context, bc *config.BotConfig, store database.Store, deps generator.Deps, log *slog.Logger, stdout io.Writer) (*bot.Bot, error) {
	schedule, err := bot.ParseSchedule(bc.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: bot %s: schedule: %v", config.ErrConfiguration, bc.Name, err)
	}
	stateSchedule, err := bot.ParseSchedule(bc.StateUpdateSchedule)
	if err != nil {
		return nil, fmt.Errorf("%w: bot %s: state_update_schedule: %v", config.ErrConfiguration, bc.Name, err)
	}

	gen, err := generator.New(ctx, bc, deps)
	if err != nil {
		return nil, err
	}
	publishers, err := publish.New(ctx, bc, log, stdout)
	if err != nil {
		return nil, err
	}

	model, created, err := store.GetOrCreateBot(ctx, bc.Name)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", bc.Name, err)
	}
	if created {
		log.Info("Created bot record", "bot", bc.Name)
	}

	return bot.New(model, store, gen,
		bot.WithPublishers(publishers...),
		bot.WithSchedule(schedule),
		bot.WithStateUpdateSchedule(stateSchedule),
		bot.WithDirectory(bc.Directory),
		bot.WithLogger(log),
	), nil
}

// lazyGemini builds the shared Gemini client the first time a bot asks for
// it, so configurations without gemini bots need no API key.
func lazyGemini(cfg config.GeminiConfig, log *slog.Logger) func(context.Context) (gemini.Client, error) {
	var (
		once   sync.Once
		client gemini.Client
		err    error
	)
	return func(ctx context.Context) (gemini.Client, error) {
		once.Do(func() { client, err = gemini.NewClient(ctx, cfg, log) })
		return client, err
	}
}

// Serve runs the scheduler and, when enabled, the Telegram console until
// ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	taskDeps := tasks.TaskDeps{Logger: a.Logger, Store: a.Store, Runner: a.Runner}
	sched, err := bot.NewScheduler(a.Logger, &a.Config.Scheduler, tasks.RegisterAllTasks(taskDeps))
	if err != nil {
		return err
	}

	var console *tgbot.Bot
	if a.Config.Telegram.Enabled {
		hDeps := handlers.HandlerDeps{Logger: a.Logger, Config: a.Config, Console: a.Runner}
		console, err = telegram.NewConsole(a.Config.Telegram.Token, a.Logger, handlers.RegisterAllCommands(hDeps))
		if err != nil {
			return err
		}
	}

	return bot.NewService(a.Logger, sched, console, a.Config.Scheduler.RunOnStart).Run(ctx)
}

// Close releases the database.
func (a *App) Close() {
	if a.db != nil {
		database.CloseDB(a.db)
		a.db = nil
	}
}
