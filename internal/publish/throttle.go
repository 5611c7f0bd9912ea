package publish

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/database"
)

// Throttled limits how often the wrapped publisher is called. A call that
// cannot get a slot before the context ends is reported as a failure.
type Throttled struct {
	bot.Publisher
	limiter *rate.Limiter
}

// Throttle wraps p so it runs at most perMinute times a minute.
func Throttle(p bot.Publisher, perMinute float64) *Throttled {
	return &Throttled{
		Publisher: p,
		limiter:   rate.NewLimiter(rate.Limit(perMinute/60), 1),
	}
}

func (t *Throttled) Publish(ctx context.Context, post *database.Post, d *bot.Delivery) error {
	if err := t.limiter.Wait(ctx); err != nil {
		d.ReportFailure(err)
		return nil
	}
	return t.Publisher.Publish(ctx, post, d)
}

// SelfTest forwards to the wrapped publisher when it has one.
func (t *Throttled) SelfTest(ctx context.Context) (string, error) {
	tester, ok := t.Publisher.(bot.SelfTester)
	if !ok {
		return "", errors.ErrUnsupported
	}
	return tester.SelfTest(ctx)
}

// Unwrap returns the throttled publisher.
func (t *Throttled) Unwrap() bot.Publisher {
	return t.Publisher
}
