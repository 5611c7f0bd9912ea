package bot

import (
	"context"

	"github.com/edgard/botfriend/internal/database"
)

// ContentGenerator is the creative half of a bot.
//
// NewPost may return nil (nothing to post this cycle), a *database.Post, a
// []*database.Post, a string, or any other value the generator knows how to
// turn into posts through ObjectToPost.
type ContentGenerator interface {
	NewPost(ctx context.Context, b *Bot) (any, error)
}

// ObjectConverter turns a backlog item or a NewPost result into postable
// form. The result must be a string, a *database.Post or a []*database.Post.
// Generators without it treat every item as post content.
type ObjectConverter interface {
	ObjectToPost(ctx context.Context, b *Bot, obj any) (any, error)
}

// StateUpdater refreshes a bot's private state. An empty result leaves the
// stored state unchanged.
type StateUpdater interface {
	UpdateState(ctx context.Context, b *Bot) (string, error)
}

// BacklogFormatter converts one raw input line into the value stored in the
// backlog. The value must be JSON-serializable.
type BacklogFormatter interface {
	BacklogItem(line string) (any, error)
}

// AdvanceScheduler creates posts with explicit publish times ahead of time.
type AdvanceScheduler interface {
	SchedulePosts(ctx context.Context, b *Bot) ([]*database.Post, error)
}

// StressTester generates sample content without side effects.
type StressTester interface {
	StressTest(ctx context.Context, b *Bot, rounds int) ([]string, error)
}

// Publisher delivers a post to one external service. Ordinary delivery
// failures are reported through the Delivery, not returned. A returned error
// is recorded as an uncaught failure.
type Publisher interface {
	Service() string
	Publish(ctx context.Context, post *database.Post, d *Delivery) error
}

// SelfTester checks a publisher's credentials or connectivity without
// posting anything.
type SelfTester interface {
	SelfTest(ctx context.Context) (string, error)
}
