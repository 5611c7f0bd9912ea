package publish

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-mastodon"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
)

const (
	defaultMastodonServer = "https://mastodon.social"
	mastodonStatusLimit   = 500
)

// Mastodon posts statuses to a Mastodon account. Attachments are uploaded
// first and referenced from the status.
type Mastodon struct {
	service string
	target  Target
	client  *mastodon.Client
}

func newMastodon(_ context.Context, service string, target Target, opts config.Options) (bot.Publisher, error) {
	clientID, err := opts.Require("client_id")
	if err != nil {
		return nil, err
	}
	token, err := opts.Require("access_token")
	if err != nil {
		return nil, err
	}
	server := opts.String("api_base_url", opts.String("url", defaultMastodonServer))

	client := mastodon.NewClient(&mastodon.Config{
		Server:       strings.TrimRight(server, "/"),
		ClientID:     clientID,
		ClientSecret: opts.String("client_secret", ""),
		AccessToken:  token,
	})
	return &Mastodon{service: service, target: target, client: client}, nil
}

func (m *Mastodon) Service() string { return m.service }

// SelfTest verifies the access token.
func (m *Mastodon) SelfTest(ctx context.Context) (string, error) {
	acct, err := m.client.GetAccountCurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("mastodon credential check failed: %w", err)
	}
	return "authenticated as @" + acct.Acct, nil
}

func (m *Mastodon) Publish(ctx context.Context, post *database.Post, d *bot.Delivery) error {
	toot := &mastodon.Toot{
		Status:    truncateRunes(d.Content(), mastodonStatusLimit),
		Sensitive: post.Sensitive,
	}
	for _, a := range post.Attachments {
		id, err := m.upload(ctx, a)
		if err != nil {
			d.ReportFailure(err)
			return nil
		}
		toot.MediaIDs = append(toot.MediaIDs, id)
	}
	if toot.Status == "" && len(toot.MediaIDs) == 0 {
		d.ReportFailure(fmt.Errorf("nothing to post"))
		return nil
	}

	status, err := m.client.PostStatus(ctx, toot)
	if err != nil {
		d.ReportFailure(err)
		return nil
	}
	d.ReportSuccess(string(status.ID))
	return nil
}

func (m *Mastodon) upload(ctx context.Context, a *database.Attachment) (mastodon.ID, error) {
	_, data, err := openAttachment(m.target, a)
	if err != nil {
		return "", err
	}
	if c, ok := data.(io.Closer); ok {
		defer c.Close()
	}
	media, err := m.client.UploadMediaFromReader(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}
	return media.ID, nil
}
