package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edgard/botfriend/internal/app"
	"github.com/edgard/botfriend/internal/printer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, and the Telegram console when enabled, until interrupted",
	Long: `Run the tasks under scheduler.tasks on their cron schedules until
SIGINT or SIGTERM. post_pass publishes due posts, republish retries failed
publications and sql_maintenance vacuums the database.

When telegram.enabled is set, the operator console answers /bf_dashboard,
/bf_backlog and /bf_republish from the admin user.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			p.Info("Serving %d bots, press Ctrl-C to stop\n", len(a.Runner.Bots()))
			return a.Serve(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
