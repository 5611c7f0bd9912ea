package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
)

const fileTimeFormat = "2006-01-02 15:04:05"

// File appends one line per post to a text file.
type File struct {
	service string
	path    string
	now     func() time.Time
}

func newFile(_ context.Context, service string, target Target, opts config.Options) (bot.Publisher, error) {
	filename, err := opts.Require("filename")
	if err != nil {
		return nil, err
	}
	path := target.AttachmentPath(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &File{service: service, path: path, now: time.Now}, nil
}

func (f *File) Service() string { return f.service }

// SelfTest checks that the output directory exists.
func (f *File) SelfTest(context.Context) (string, error) {
	dir := filepath.Dir(f.path)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("destination directory %s does not exist: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("destination %s is not a directory", dir)
	}
	return "writing to " + f.path, nil
}

func (f *File) Publish(_ context.Context, post *database.Post, d *bot.Delivery) error {
	line := formatFileLine(post, d.Content(), f.now())

	out, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		d.ReportFailure(err)
		return nil
	}
	_, err = out.WriteString(line)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		d.ReportFailure(err)
		return nil
	}
	d.ReportSuccess(uuid.NewString())
	return nil
}

// formatFileLine renders "<time> | content | attachments...". The time is
// the publish time, falling back to now.
func formatFileLine(post *database.Post, content string, now time.Time) string {
	at := now
	if post.PublishAt.Valid {
		at = post.PublishAt.Time
	}
	if content == "" {
		content = "[no textual content]"
	}

	parts := []string{content}
	for _, a := range post.Attachments {
		if len(a.Content) > 0 {
			parts = append(parts, fmt.Sprintf("%d-byte %s", len(a.Content), a.MediaType.String))
		} else {
			parts = append(parts, fmt.Sprintf("Local %s: %s", a.MediaType.String, a.Filename.String))
		}
	}
	return at.UTC().Format(fileTimeFormat) + " | " + strings.Join(parts, " | ") + "\n"
}
