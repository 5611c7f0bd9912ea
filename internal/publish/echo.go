package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
)

// Echo prints every post. It is mostly useful while writing a bot.
type Echo struct {
	service string
	out     io.Writer
}

func newEcho(_ context.Context, service string, target Target, _ config.Options) (bot.Publisher, error) {
	return &Echo{service: service, out: target.Stdout}, nil
}

func (e *Echo) Service() string { return e.service }

func (e *Echo) Publish(_ context.Context, _ *database.Post, d *bot.Delivery) error {
	if _, err := fmt.Fprintln(e.out, d.Content()); err != nil {
		d.ReportFailure(err)
		return nil
	}
	d.ReportSuccess(uuid.NewString())
	return nil
}
