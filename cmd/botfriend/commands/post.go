package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edgard/botfriend/internal/app"
	"github.com/edgard/botfriend/internal/printer"
)

var postDryRun bool

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Run one scheduling pass: make the posts that are due and publish them",
	Long: `Run one scheduling pass over the selected bots.

Each bot publishes its overdue scheduled posts, or, when its next post time
has come, takes the next backlog item or asks its generator for a new post.
Failures of one bot are logged and the pass moves on, except an invalid
post, which stops the pass.

With --dry-run nothing is published or saved; the posts that would have
been made are printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runPost)
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Let bots that plan ahead create their timed posts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			report, err := a.Runner.SchedulePass(ctx)
			reportPass(p, "scheduled", report)
			return err
		})
	},
}

var republishCmd = &cobra.Command{
	Use:   "republish",
	Short: "Retry publications that failed or never completed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			report, err := a.Runner.RepublishPass(ctx)
			reportPass(p, "republished for", report)
			return err
		})
	},
}

var clearScheduleCmd = &cobra.Command{
	Use:   "clear-schedule",
	Short: "Delete posts nobody has tried to publish yet and reset the next post time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			for _, b := range a.Runner.Bots() {
				n, err := b.ClearSchedule(ctx)
				if err != nil {
					return err
				}
				p.Success("%s: removed %d scheduled posts\n", b.Name(), n)
			}
			return nil
		})
	},
}

func init() {
	postCmd.Flags().BoolVar(&postDryRun, "dry-run", false, "Show what would be posted without saving or publishing")
	rootCmd.AddCommand(postCmd, scheduleCmd, republishCmd, clearScheduleCmd)
}

func runPost(ctx context.Context, a *app.App, p *printer.Printer) error {
	if !postDryRun {
		report, err := a.Runner.RunPass(ctx)
		reportPass(p, "published", report)
		return err
	}

	for _, b := range a.Runner.Bots() {
		posts, err := b.DryRun(ctx)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			p.Info("%s: nothing to post\n", b.Name())
			continue
		}
		p.Header("%s would publish %d posts", b.Name(), len(posts))
		for _, post := range posts {
			p.Step("%s\n", post.Content)
		}
	}
	return nil
}
