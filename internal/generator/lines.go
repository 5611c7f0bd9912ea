package generator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
)

// Lines posts a random line of a text file. The bot state is the JSON
// array of lines last read from the file; it is re-read on the bot's
// state_update_schedule.
//
// Backlog items are {"content": ..., "key": ...} objects. The optional key
// (by default a UUID derived from the content) makes sure one item never
// becomes two posts.
type Lines struct {
	source string
}

func newLines(_ context.Context, cfg *config.BotConfig, _ Deps) (bot.ContentGenerator, error) {
	source, err := cfg.Options.Require("source")
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(source) {
		source = filepath.Join(cfg.Directory, source)
	}
	return &Lines{source: source}, nil
}

// UpdateState reads the source file into the state.
func (g *Lines) UpdateState(_ context.Context, _ *bot.Bot) (string, error) {
	lines, err := readLines(g.source)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	return bot.EncodeState(lines)
}

func (g *Lines) NewPost(ctx context.Context, b *bot.Bot) (any, error) {
	var lines []string
	ok, err := b.JSONState(&lines)
	if err != nil {
		return nil, err
	}
	if !ok || len(lines) == 0 {
		// state refresh may not have run yet
		if lines, err = readLines(g.source); err != nil {
			return nil, err
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	line := lines[b.Rand().IntN(len(lines))]
	if len(lines) > 1 {
		recent, err := b.Store().RecentPosts(ctx, b.Model().ID, 1)
		if err != nil {
			return nil, err
		}
		for tries := 0; tries < 5 && len(recent) > 0 && recent[0].Content == line; tries++ {
			line = lines[b.Rand().IntN(len(lines))]
		}
	}
	return line, nil
}

// BacklogItem wraps one line of input as a backlog object.
func (g *Lines) BacklogItem(line string) (any, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	return map[string]any{"content": line}, nil
}

// ObjectToPost turns a backlog object into a post, reusing the post made
// earlier for the same key.
func (g *Lines) ObjectToPost(ctx context.Context, b *bot.Bot, obj any) (any, error) {
	item, ok := obj.(map[string]any)
	if !ok {
		return obj, nil
	}
	content, _ := item["content"].(string)
	if content == "" {
		return nil, fmt.Errorf("%w: backlog object has no content", bot.ErrInvalidPost)
	}
	key, _ := item["key"].(string)
	if key == "" {
		key = uuid.NewSHA1(uuid.NameSpaceOID, []byte(content)).String()
	}

	post, created, err := b.PostForExternalKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if !created {
		return post, nil
	}
	post.Content = content
	if sensitive, _ := item["sensitive"].(bool); sensitive {
		post.Sensitive = true
	}
	if media, _ := item["attachment"].(string); media != "" {
		post.AttachFile(mediaTypeFor(media), media)
	}
	return []*database.Post{post}, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	return lines, nil
}

func mediaTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".mp4":
		return "video/mp4"
	}
	return "application/octet-stream"
}
