package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/botfriend/internal/database"
)

// BotReport is the outcome of one bot's turn in a pass.
type BotReport struct {
	Bot       string
	Posts     int
	Attempted int
	Failed    int
	Err       error
}

// PassReport collects the per-bot outcomes of a pass, in processing order.
type PassReport struct {
	Started  time.Time
	Duration time.Duration
	Bots     []BotReport
}

// Failed returns the reports of bots whose turn ended with an error.
func (r *PassReport) Failed() []BotReport {
	var out []BotReport
	for _, br := range r.Bots {
		if br.Err != nil {
			out = append(out, br)
		}
	}
	return out
}

// Runner sweeps over bots one at a time. Only one pass runs at a time.
type Runner struct {
	mu     sync.Mutex
	bots   []*Bot
	byName map[string]*Bot
	logger *slog.Logger
}

// NewRunner creates a runner over bots, processed in the given order.
func NewRunner(logger *slog.Logger, bots ...*Bot) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]*Bot, len(bots))
	for _, b := range bots {
		byName[b.Name()] = b
	}
	return &Runner{
		bots:   bots,
		byName: byName,
		logger: logger.With("component", "runner"),
	}
}

// Bots returns the bots in processing order.
func (r *Runner) Bots() []*Bot {
	return r.bots
}

// Bot looks a bot up by name.
func (r *Runner) Bot(name string) (*Bot, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// RunPass is one scheduling pass: for each bot, find or create the posts
// due now and publish them. ErrInvalidPost aborts the pass. Any other
// failure is logged against the bot and the pass moves on.
func (r *Runner) RunPass(ctx context.Context, names ...string) (*PassReport, error) {
	return r.pass(ctx, "post", names, func(ctx context.Context, b *Bot, br *BotReport) error {
		posts, err := b.PublishablePosts(ctx)
		if err != nil {
			return err
		}
		br.Posts = len(posts)
		var errs []error
		for _, post := range posts {
			pubs, err := b.Publish(ctx, post)
			countAttempts(br, pubs)
			if err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// RepublishPass retries failed publications of every bot.
func (r *Runner) RepublishPass(ctx context.Context, names ...string) (*PassReport, error) {
	return r.pass(ctx, "republish", names, func(ctx context.Context, b *Bot, br *BotReport) error {
		pubs, err := b.Republish(ctx)
		countAttempts(br, pubs)
		return err
	})
}

// SchedulePass lets advance-scheduling bots create their timed posts.
func (r *Runner) SchedulePass(ctx context.Context, names ...string) (*PassReport, error) {
	return r.pass(ctx, "schedule", names, func(ctx context.Context, b *Bot, br *BotReport) error {
		posts, err := b.SchedulePosts(ctx)
		br.Posts = len(posts)
		return err
	})
}

// PostPass runs RunPass over every bot, logging the summary.
func (r *Runner) PostPass(ctx context.Context) error {
	report, err := r.RunPass(ctx)
	r.logSummary(ctx, "post", report)
	return err
}

// AdvancePass runs SchedulePass over every bot, logging the summary.
func (r *Runner) AdvancePass(ctx context.Context) error {
	report, err := r.SchedulePass(ctx)
	r.logSummary(ctx, "schedule", report)
	return err
}

// RepairPass runs RepublishPass over every bot, logging the summary.
func (r *Runner) RepairPass(ctx context.Context) error {
	report, err := r.RepublishPass(ctx)
	r.logSummary(ctx, "republish", report)
	return err
}

type botTurn func(ctx context.Context, b *Bot, br *BotReport) error

func (r *Runner) pass(ctx context.Context, kind string, names []string, turn botTurn) (*PassReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bots, err := r.selectBots(names)
	if err != nil {
		return nil, err
	}

	report := &PassReport{Started: time.Now()}
	defer func() { report.Duration = time.Since(report.Started) }()

	for _, b := range bots {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		br := BotReport{Bot: b.Name()}
		err := runTurn(ctx, b, &br, turn)
		br.Err = err
		report.Bots = append(report.Bots, br)

		if err == nil {
			continue
		}
		if errors.Is(err, ErrInvalidPost) {
			b.Logger().ErrorContext(ctx, "Invalid post, aborting pass", "pass", kind, "error", err)
			return report, fmt.Errorf("bot %s: %w", b.Name(), err)
		}
		b.Logger().ErrorContext(ctx, "Bot failed during pass", "pass", kind, "error", err)
	}
	return report, nil
}

// runTurn converts a panic inside one bot's turn into an error so the
// remaining bots still run.
func runTurn(ctx context.Context, b *Bot, br *BotReport, turn botTurn) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return turn(ctx, b, br)
}

func (r *Runner) selectBots(names []string) ([]*Bot, error) {
	if len(names) == 0 {
		return r.bots, nil
	}
	out := make([]*Bot, 0, len(names))
	for _, name := range names {
		b, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown bot %q", name)
		}
		out = append(out, b)
	}
	return out, nil
}

func countAttempts(br *BotReport, pubs []*database.Publication) {
	for _, pub := range pubs {
		br.Attempted++
		if !pub.Succeeded() {
			br.Failed++
		}
	}
}

func (r *Runner) logSummary(ctx context.Context, kind string, report *PassReport) {
	if report == nil {
		return
	}
	var posts, attempted, failed int
	for _, br := range report.Bots {
		posts += br.Posts
		attempted += br.Attempted
		failed += br.Failed
	}
	r.logger.InfoContext(ctx, "Pass finished",
		"pass", kind,
		"bots", len(report.Bots),
		"bot_errors", len(report.Failed()),
		"posts", posts,
		"attempted", attempted,
		"failed", failed,
		"duration", report.Duration)
}
