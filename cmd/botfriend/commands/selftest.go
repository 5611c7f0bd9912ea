package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/edgard/botfriend/internal/app"
	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/printer"
)

var selfTestCmd = &cobra.Command{
	Use:   "self-test",
	Short: "Check every publisher's credentials without posting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runSelfTest)
	},
}

func init() {
	rootCmd.AddCommand(selfTestCmd)
}

func runSelfTest(ctx context.Context, a *app.App, p *printer.Printer) error {
	failed := 0
	for _, b := range a.Runner.Bots() {
		p.Header("%s", b.Name())
		for _, pub := range b.Publishers() {
			tester, ok := pub.(bot.SelfTester)
			if !ok {
				p.Info("%s: no self-test\n", pub.Service())
				continue
			}
			msg, err := tester.SelfTest(ctx)
			switch {
			case errors.Is(err, errors.ErrUnsupported):
				p.Info("%s: no self-test\n", pub.Service())
			case err != nil:
				failed++
				p.Warning("%s: %v\n", pub.Service(), err)
			default:
				p.Success("%s: %s\n", pub.Service(), msg)
			}
		}
	}
	if failed > 0 {
		return errors.New("some publishers failed their self-test")
	}
	return nil
}
