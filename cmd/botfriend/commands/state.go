package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edgard/botfriend/internal/app"
	"github.com/edgard/botfriend/internal/printer"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or change a bot's private state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print each bot's state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			for _, b := range a.Runner.Bots() {
				p.Header("%s", b.Name())
				if state := b.State(); state != "" {
					p.Info("%s\n", state)
				} else {
					p.Info("(no state)\n")
				}
			}
			return nil
		})
	},
}

var stateRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh each bot's state now, even if it is not due",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			for _, b := range a.Runner.Bots() {
				if _, err := b.CheckAndUpdateState(ctx, true); err != nil {
					return err
				}
				p.Success("%s: state refreshed\n", b.Name())
			}
			return nil
		})
	},
}

var stateSetCmd = &cobra.Command{
	Use:   "set VALUE",
	Short: "Replace one bot's state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *printer.Printer) error {
			b, err := singleBot(a)
			if err != nil {
				return err
			}
			if err := b.SetState(ctx, args[0]); err != nil {
				return err
			}
			p.Success("%s: state set\n", b.Name())
			return nil
		})
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd, stateRefreshCmd, stateSetCmd)
	rootCmd.AddCommand(stateCmd)
}
