package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edgard/botfriend/internal/app"
	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/printer"
)

var backlogLimit int

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Inspect or change the backlog of items waiting to be posted",
}

var backlogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the first backlog items of each bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			for _, b := range a.Runner.Bots() {
				backlog := b.Backlog()
				p.Header("%s: %d backlog items", b.Name(), len(backlog))
				for i, item := range backlog {
					if backlogLimit > 0 && i == backlogLimit {
						p.Info("...and %d more\n", len(backlog)-backlogLimit)
						break
					}
					p.Step("%s\n", item)
				}
			}
			return nil
		})
	},
}

var backlogClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the backlog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			for _, b := range a.Runner.Bots() {
				if err := b.ClearBacklog(ctx); err != nil {
					return err
				}
				p.Success("%s: backlog cleared\n", b.Name())
			}
			return nil
		})
	},
}

var backlogLoadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Append items to one bot's backlog",
	Long: `Append the items in FILE to the backlog of one bot.

A .yaml, .yml or .json file must hold a list; each element becomes one
item as it is. Any other file is read one item per line, and the bot's
generator may turn each line into a structured item.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			b, err := singleBot(a)
			if err != nil {
				return err
			}
			n, err := loadBacklog(ctx, b, args[0])
			if err != nil {
				return err
			}
			p.Success("%s: added %d items, backlog now holds %d\n", b.Name(), n, len(b.Backlog()))
			return nil
		})
	},
}

func init() {
	backlogShowCmd.Flags().IntVar(&backlogLimit, "limit", 20, "Show at most this many items (0 for all)")
	backlogCmd.AddCommand(backlogShowCmd, backlogClearCmd, backlogLoadCmd)
	rootCmd.AddCommand(backlogCmd)
}

// loadBacklog appends the items in path and returns how many were added.
func loadBacklog(ctx context.Context, b *bot.Bot, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read backlog file: %w", err)
	}

	var items []any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &items); err != nil {
			return 0, fmt.Errorf("%s must hold a YAML list: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &items); err != nil {
			return 0, fmt.Errorf("%s must hold a JSON list: %w", path, err)
		}
	default:
		var lines []string
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return 0, fmt.Errorf("failed to read backlog file: %w", err)
		}
		return len(lines), b.ExtendBacklog(ctx, lines)
	}
	return len(items), b.AppendBacklog(ctx, items)
}
