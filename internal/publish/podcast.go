package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
	"github.com/edgard/botfriend/internal/sanitize"
)

const defaultArchiveSize = 10

// Podcast keeps an RSS feed with one item per post, newest first. The first
// line of the post is the item title and the rest its description, in
// markdown. The first attachment becomes the enclosure, served from url.
//
// Items are kept in a JSON archive next to the feed so the feed can be
// rebuilt without parsing it back.
type Podcast struct {
	service     string
	target      Target
	path        string
	archivePath string
	title       string
	url         string
	description string
	archiveSize int
	policy      *sanitize.Policy
	now         func() time.Time
}

type podcastItem struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	MediaURL    string    `json:"media_url,omitempty"`
	MediaType   string    `json:"media_type,omitempty"`
	MediaSize   int64     `json:"media_size,omitempty"`
	Published   time.Time `json:"published"`
}

func newPodcast(_ context.Context, service string, target Target, opts config.Options) (bot.Publisher, error) {
	filename, err := opts.Require("filename")
	if err != nil {
		return nil, err
	}
	url, err := opts.Require("url")
	if err != nil {
		return nil, err
	}
	size := opts.Int("archive_size", defaultArchiveSize)
	if size < 1 {
		return nil, fmt.Errorf("%w: archive_size must be positive", config.ErrConfiguration)
	}

	path := target.AttachmentPath(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create feed directory: %w", err)
	}
	return &Podcast{
		service:     service,
		target:      target,
		path:        path,
		archivePath: strings.TrimSuffix(path, filepath.Ext(path)) + ".json",
		title:       opts.String("title", target.BotName),
		url:         strings.TrimRight(url, "/"),
		description: opts.String("description", ""),
		archiveSize: size,
		policy:      sanitize.NewFeedPolicy(),
		now:         time.Now,
	}, nil
}

func (p *Podcast) Service() string { return p.service }

// SelfTest checks the feed directory and that the archive can be read.
func (p *Podcast) SelfTest(context.Context) (string, error) {
	if _, err := os.Stat(filepath.Dir(p.path)); err != nil {
		return "", fmt.Errorf("feed directory does not exist: %w", err)
	}
	items, err := p.loadArchive()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s has %d items", p.path, len(items)), nil
}

func (p *Podcast) Publish(_ context.Context, post *database.Post, d *bot.Delivery) error {
	items, err := p.loadArchive()
	if err != nil {
		d.ReportFailure(err)
		return nil
	}

	item := p.itemFor(post, d.Content())
	kept := []podcastItem{item}
	for _, existing := range items {
		if existing.GUID != item.GUID {
			kept = append(kept, existing)
		}
	}
	if len(kept) > p.archiveSize {
		kept = kept[:p.archiveSize]
	}

	if err := p.saveArchive(kept); err != nil {
		d.ReportFailure(err)
		return nil
	}
	if err := p.writeFeed(kept); err != nil {
		d.ReportFailure(err)
		return nil
	}
	d.ReportSuccess(item.GUID)
	return nil
}

func (p *Podcast) itemFor(post *database.Post, content string) podcastItem {
	title, rest, _ := strings.Cut(strings.TrimSpace(content), "\n")
	item := podcastItem{
		GUID:        post.ExternalKey.String,
		Title:       strings.TrimSpace(title),
		Description: p.policy.RenderHTML(strings.TrimSpace(rest)),
		Published:   p.now().UTC(),
	}
	if item.GUID == "" {
		item.GUID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(p.url+"/"+strconv.FormatInt(post.ID, 10))).String()
	}

	if len(post.Attachments) > 0 {
		a := post.Attachments[0]
		item.MediaType = a.MediaType.String
		item.MediaSize = int64(len(a.Content))
		if a.Filename.Valid {
			item.MediaURL = p.url + "/" + strings.TrimLeft(filepath.ToSlash(a.Filename.String), "/")
			if info, err := os.Stat(p.target.AttachmentPath(a.Filename.String)); err == nil {
				item.MediaSize = info.Size()
			}
		}
	}
	return item
}

func (p *Podcast) loadArchive() ([]podcastItem, error) {
	data, err := os.ReadFile(p.archivePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read podcast archive: %w", err)
	}
	var items []podcastItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("podcast archive %s is corrupt: %w", p.archivePath, err)
	}
	return items, nil
}

func (p *Podcast) saveArchive(items []podcastItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode podcast archive: %w", err)
	}
	return writeFileAtomic(p.archivePath, data)
}

func (p *Podcast) writeFeed(items []podcastItem) error {
	now := p.now().UTC()
	feed := &feeds.Feed{
		Title:       p.title,
		Link:        &feeds.Link{Href: p.url},
		Description: p.description,
		Updated:     now,
		Created:     now,
	}
	for _, it := range items {
		entry := &feeds.Item{
			Id:          it.GUID,
			Title:       it.Title,
			Link:        &feeds.Link{Href: p.url},
			Description: it.Description,
			Created:     it.Published,
			Updated:     it.Published,
		}
		if it.MediaURL != "" {
			entry.Link = &feeds.Link{Href: it.MediaURL}
			entry.Enclosure = &feeds.Enclosure{
				Url:    it.MediaURL,
				Length: strconv.FormatInt(it.MediaSize, 10),
				Type:   it.MediaType,
			}
		}
		feed.Items = append(feed.Items, entry)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return fmt.Errorf("failed to render feed: %w", err)
	}
	return writeFileAtomic(p.path, []byte(rss))
}

// writeFileAtomic replaces path through a temporary file in the same
// directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".botfriend-*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
