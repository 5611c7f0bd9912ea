// Package commands implements the botfriend command line.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgard/botfriend/internal/app"
	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/printer"
)

var (
	configPath string
	botNames   []string
)

var rootCmd = &cobra.Command{
	Use:   "botfriend",
	Short: "Botfriend - a framework for creative bots",
	Long: `Botfriend runs a stable of creative bots. Each bot lives in its own
directory under bots_dir with a bot.yaml naming its generator, posting
schedule and publishers. Botfriend decides when each bot posts, keeps its
state and backlog, and records every attempt to publish.

Run "botfriend post" from cron, or "botfriend serve" to keep the scheduler
running in the foreground.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the command line. Errors have already been printed when it
// returns.
func Execute(ctx context.Context) error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default ./config.yaml)")
	rootCmd.PersistentFlags().StringArrayVarP(&botNames, "bot", "b", nil, "Only act on this bot (repeatable)")
}

func newPrinter(cmd *cobra.Command) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// withApp loads the configuration and selected bots, runs fn and closes
// the app. Load failures are printed as friendly errors.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, p *printer.Printer) error) error {
	p := newPrinter(cmd)
	a, err := app.Load(cmd.Context(), app.Options{
		ConfigPath: configPath,
		Bots:       botNames,
		Stdout:     cmd.OutOrStdout(),
	})
	if err != nil {
		if errors.Is(err, config.ErrConfiguration) {
			return p.Error("Configuration problem", err.Error(), []string{
				"Check config.yaml and the bot.yaml files under bots_dir",
				"Pass --config to point at another configuration file",
			})
		}
		return p.Error("Failed to load bots", err.Error(), nil)
	}
	defer a.Close()

	if err := fn(cmd.Context(), a, p); err != nil {
		if errors.Is(err, bot.ErrInvalidPost) {
			return p.Error("A bot produced an invalid post", err.Error(), []string{
				"Fix the bot's generator, then run the command again",
			})
		}
		return p.Error("Command failed", err.Error(), nil)
	}
	return nil
}

// singleBot returns the one bot a command acts on, which must be the only
// loaded bot or the only one named with --bot.
func singleBot(a *app.App) (*bot.Bot, error) {
	bots := a.Runner.Bots()
	if len(bots) != 1 {
		return nil, fmt.Errorf("this command acts on one bot; select it with --bot (%d loaded)", len(bots))
	}
	return bots[0], nil
}

// reportPass prints per-bot outcomes of a pass.
func reportPass(p *printer.Printer, verb string, report *bot.PassReport) {
	if report == nil {
		return
	}
	for _, br := range report.Bots {
		switch {
		case br.Err != nil:
			p.Warning("%s: %v\n", br.Bot, br.Err)
		case br.Failed > 0:
			p.Warning("%s: %s %d posts, %d of %d publications failed\n", br.Bot, verb, br.Posts, br.Failed, br.Attempted)
		default:
			p.Success("%s: %s %d posts, %d publications\n", br.Bot, verb, br.Posts, br.Attempted)
		}
	}
}
