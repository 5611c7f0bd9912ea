package commands

import (
	"context"
	"errors"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/edgard/botfriend/internal/app"
	"github.com/edgard/botfriend/internal/printer"
)

var stressRounds int

var stressTestCmd = &cobra.Command{
	Use:   "stress-test",
	Short: "Generate sample posts without saving or publishing anything",
	Long: `Ask each bot's generator for sample posts and print them. Nothing is
saved and nothing is published. Bots whose generator cannot produce
samples are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runStressTest)
	},
}

func init() {
	stressTestCmd.Flags().IntVarP(&stressRounds, "rounds", "r", 10, "Number of sample posts per bot")
	rootCmd.AddCommand(stressTestCmd)
}

func runStressTest(ctx context.Context, a *app.App, p *printer.Printer) error {
	for _, b := range a.Runner.Bots() {
		bar := progressbar.NewOptions(stressRounds,
			progressbar.OptionSetDescription(b.Name()),
			progressbar.OptionSetWriter(p.Err),
			progressbar.OptionSetWidth(15),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		var samples []string
		for range stressRounds {
			out, err := b.StressTest(ctx, 1)
			if errors.Is(err, errors.ErrUnsupported) {
				break
			}
			if err != nil {
				bar.Exit()
				return err
			}
			samples = append(samples, out...)
			bar.Add(1)
		}
		bar.Finish()

		if len(samples) == 0 {
			p.Warning("%s: generator cannot produce samples, skipped\n", b.Name())
			continue
		}
		p.Header("%s", b.Name())
		for _, s := range samples {
			p.Step("%s\n", s)
		}
	}
	return nil
}
