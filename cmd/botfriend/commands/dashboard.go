package commands

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/edgard/botfriend/internal/app"
	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/printer"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show post counts, backlog size and next post time of every bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			summaries, err := a.Runner.Summarize(ctx)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				p.Info("No bots are configured.\n")
				return nil
			}
			return renderDashboard(cmd.OutOrStdout(), summaries, time.Now())
		})
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func renderDashboard(w io.Writer, summaries []bot.Summary, now time.Time) error {
	table := tablewriter.NewWriter(w)
	table.Header("Bot", "Posts", "Waiting", "Scheduled", "Failed", "Backlog", "Next post")
	for _, s := range summaries {
		err := table.Append([]string{
			s.Bot,
			strconv.Itoa(s.Stats.Posts),
			strconv.Itoa(s.Stats.Unpublished),
			strconv.Itoa(s.Stats.Scheduled),
			strconv.Itoa(s.Stats.FailedPosts),
			strconv.Itoa(s.Backlog),
			s.NextPostLabel(now),
		})
		if err != nil {
			return err
		}
	}
	return table.Render()
}
