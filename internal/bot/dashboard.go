package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/botfriend/internal/database"
)

// Summary is one bot's row on the dashboard.
type Summary struct {
	Bot      string
	Stats    database.BotStats
	Backlog  int
	NextPost time.Time
	// HasNextPost is false when the bot posts as soon as it can.
	HasNextPost bool
}

// Summarize reports the post counts and schedule of each bot.
func Summarize(ctx context.Context, bots []*Bot) ([]Summary, error) {
	out := make([]Summary, 0, len(bots))
	for _, b := range bots {
		stats, err := b.store.BotStats(ctx, b.model.ID)
		if err != nil {
			return nil, fmt.Errorf("bot %s: %w", b.Name(), err)
		}
		s := Summary{
			Bot:         b.Name(),
			Stats:       *stats,
			Backlog:     len(b.model.Backlog),
			NextPost:    b.model.NextPostTime.Time,
			HasNextPost: b.model.NextPostTime.Valid,
		}
		out = append(out, s)
	}
	return out, nil
}

// Summarize is Summarize over the runner's bots, taken between passes so
// the bot records are not read while a pass updates them.
func (r *Runner) Summarize(ctx context.Context) ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summarize(ctx, r.bots)
}

// Backlog returns a copy of the named bot's backlog, taken between passes.
func (r *Runner) Backlog(name string) (database.Backlog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return b.Backlog(), true
}

// NextPostLabel renders the next post time relative to now.
func (s Summary) NextPostLabel(now time.Time) string {
	if !s.HasNextPost {
		return "now"
	}
	d := s.NextPost.Sub(now).Round(time.Minute)
	if d <= 0 {
		return "due"
	}
	return "in " + d.String()
}
