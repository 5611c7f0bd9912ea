package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
)

var chorusHours = []int{9, 11, 13, 15, 16, 17}

// Syllables of the Mahna Mahna scat.
var scatSyllables = []string{
	"mahna", "mah", "ma", "nah", "nuh", "nih", "muh", "mih", "nina", "neh",
	"bee", "bip", "bibi", "yip", "dee", "deet", "bah", "bunna", "wah", "eehn",
}

// Chorus schedules a whole working day of posts in advance: three calm
// "Mahna mahna." posts, then increasingly confused scat.
type Chorus struct {
	loc *time.Location
}

func newChorus(_ context.Context, cfg *config.BotConfig, _ Deps) (bot.ContentGenerator, error) {
	loc, err := time.LoadLocation(cfg.Options.String("timezone", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("%w: timezone: %v", config.ErrConfiguration, err)
	}
	return &Chorus{loc: loc}, nil
}

// NewPost never improvises; all posts come from SchedulePosts.
func (g *Chorus) NewPost(context.Context, *bot.Bot) (any, error) {
	return nil, nil
}

// SchedulePosts creates the next workday's posts unless some scheduled
// posts are still waiting.
func (g *Chorus) SchedulePosts(ctx context.Context, b *bot.Bot) ([]*database.Post, error) {
	pending, err := b.Store().UnpublishedPosts(ctx, b.Model().ID)
	if err != nil {
		return nil, err
	}
	for _, p := range pending {
		if p.PublishAt.Valid {
			return nil, nil
		}
	}

	day := nextWorkday(b.Now().In(g.loc))
	rng := b.Rand()
	posts := make([]*database.Post, 0, len(chorusHours))
	for i, hour := range chorusHours {
		p := b.NewPost(chorusLine(rng, i))
		at := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, g.loc)
		p.PublishAt.Time, p.PublishAt.Valid = at.UTC(), true
		posts = append(posts, p)
	}
	return posts, nil
}

// nextWorkday is today if the first post of the day is still ahead and it
// is a weekday, otherwise the next weekday.
func nextWorkday(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !now.Before(day.Add(time.Duration(chorusHours[0]) * time.Hour)) {
		day = day.AddDate(0, 0, 1)
	}
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func chorusLine(rng *rand.Rand, i int) string {
	switch {
	case i < 3:
		return "Mahna mahna."
	case i == 3:
		starts := []string{"Mahna ", "Mah ", "Mahna mah "}
		return starts[rng.IntN(len(starts))] + scat(rng, 40)
	case i == 4:
		return capitalize(scat(rng, 50))
	default:
		out := capitalize(scat(rng, 30)) + "...\n" + capitalize(scat(rng, 10)) + "..."
		if rng.IntN(2) == 1 {
			out += "\n" + capitalize(scat(rng, 5)) + "..."
		}
		return out
	}
}

// scat strings random syllables together up to about n characters.
func scat(rng *rand.Rand, n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(scatSyllables[rng.IntN(len(scatSyllables))])
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
