package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
)

// Telegram captions are shorter than messages.
const telegramCaptionLimit = 1024

// Telegram posts to a chat or channel through the Bot API. A post with an
// attachment is sent as a photo, audio or document with the content as
// caption.
type Telegram struct {
	service string
	target  Target
	client  *tgbot.Bot
	chatID  string
}

func newTelegram(_ context.Context, service string, target Target, opts config.Options) (bot.Publisher, error) {
	token, err := opts.Require("token")
	if err != nil {
		return nil, err
	}
	chatID, err := opts.Require("chat_id")
	if err != nil {
		return nil, err
	}

	tgOpts := []tgbot.Option{tgbot.WithSkipGetMe()}
	if serverURL := opts.String("server_url", ""); serverURL != "" {
		tgOpts = append(tgOpts, tgbot.WithServerURL(serverURL))
	}
	client, err := tgbot.New(token, tgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}
	return &Telegram{service: service, target: target, client: client, chatID: chatID}, nil
}

func (t *Telegram) Service() string { return t.service }

// SelfTest asks the Bot API who we are.
func (t *Telegram) SelfTest(ctx context.Context) (string, error) {
	me, err := t.client.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("telegram getMe failed: %w", err)
	}
	return "authenticated as @" + me.Username, nil
}

func (t *Telegram) Publish(ctx context.Context, post *database.Post, d *bot.Delivery) error {
	content := d.Content()

	var (
		msg *models.Message
		err error
	)
	if len(post.Attachments) == 0 {
		if strings.TrimSpace(content) == "" {
			d.ReportFailure(fmt.Errorf("nothing to send"))
			return nil
		}
		msg, err = t.client.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: t.chatID, Text: content})
	} else {
		msg, err = t.sendAttachment(ctx, post, content)
	}
	if err != nil {
		d.ReportFailure(err)
		return nil
	}
	d.ReportSuccess(strconv.Itoa(msg.ID))
	return nil
}

func (t *Telegram) sendAttachment(ctx context.Context, post *database.Post, content string) (*models.Message, error) {
	a := post.Attachments[0]
	name, data, err := openAttachment(t.target, a)
	if err != nil {
		return nil, err
	}
	if c, ok := data.(io.Closer); ok {
		defer c.Close()
	}

	file := &models.InputFileUpload{Filename: name, Data: data}
	caption := truncateRunes(content, telegramCaptionLimit)
	mediaType := a.MediaType.String
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return t.client.SendPhoto(ctx, &tgbot.SendPhotoParams{
			ChatID: t.chatID, Photo: file, Caption: caption, HasSpoiler: post.Sensitive,
		})
	case strings.HasPrefix(mediaType, "audio/"):
		return t.client.SendAudio(ctx, &tgbot.SendAudioParams{ChatID: t.chatID, Audio: file, Caption: caption})
	default:
		return t.client.SendDocument(ctx, &tgbot.SendDocumentParams{ChatID: t.chatID, Document: file, Caption: caption})
	}
}

// openAttachment returns a file name and reader for an attachment, reading
// bot-local files from disk. File readers must be closed by the caller.
func openAttachment(target Target, a *database.Attachment) (string, io.Reader, error) {
	if len(a.Content) > 0 {
		name := "attachment"
		if a.Filename.Valid {
			name = filepath.Base(a.Filename.String)
		}
		return name, bytes.NewReader(a.Content), nil
	}
	if !a.Filename.Valid {
		return "", nil, fmt.Errorf("attachment %d has neither content nor filename", a.ID)
	}
	f, err := os.Open(target.AttachmentPath(a.Filename.String))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return filepath.Base(a.Filename.String), f, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
