package database

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Bot is the persisted record of one configured bot. It holds the bot's
// posting schedule, its private state and its backlog of not-yet-converted items.
type Bot struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`

	// No new post is manufactured before NextPostTime.
	NextPostTime sql.NullTime `db:"next_post_time"`

	State               sql.NullString `db:"state"`
	LastStateUpdateTime sql.NullTime   `db:"last_state_update_time"`

	Backlog Backlog `db:"backlog"`
}

// Post is one unit of generated content belonging to a bot.
type Post struct {
	ID      int64     `db:"id"`
	BotID   int64     `db:"bot_id"`
	Created time.Time `db:"created"`

	// A NULL PublishAt means "as soon as possible".
	PublishAt sql.NullTime `db:"publish_at"`
	Content   string       `db:"content"`

	ReplyToID        sql.NullInt64  `db:"reply_to_id"`
	ReplyToForeignID sql.NullString `db:"reply_to_foreign_id"`

	// ExternalKey identifies the post in an outside source (a feed entry id,
	// a media URL) so the same item is never turned into two posts.
	ExternalKey sql.NullString `db:"external_key"`
	Sensitive   bool           `db:"sensitive"`

	Attachments []*Attachment `db:"-"`
}

// IsNew reports whether the post has not been written to the store yet.
func (p *Post) IsNew() bool {
	return p.ID == 0
}

// Attach adds an inline binary attachment to the post.
func (p *Post) Attach(mediaType string, content []byte) *Attachment {
	a := &Attachment{
		PostID:    p.ID,
		MediaType: sql.NullString{String: mediaType, Valid: mediaType != ""},
		Content:   content,
	}
	p.Attachments = append(p.Attachments, a)
	return a
}

// AttachFile adds an attachment that points at a file in bot-local storage.
func (p *Post) AttachFile(mediaType, filename string) *Attachment {
	a := &Attachment{
		PostID:    p.ID,
		Filename:  sql.NullString{String: filename, Valid: filename != ""},
		MediaType: sql.NullString{String: mediaType, Valid: mediaType != ""},
	}
	p.Attachments = append(p.Attachments, a)
	return a
}

// Publication records the delivery attempts of one post to one service.
type Publication struct {
	ID      int64  `db:"id"`
	PostID  int64  `db:"post_id"`
	Service string `db:"service"`

	FirstAttempt      sql.NullTime `db:"first_attempt"`
	MostRecentAttempt sql.NullTime `db:"most_recent_attempt"`

	// A NULL Error after an attempt means the attempt succeeded.
	Error      sql.NullString `db:"error"`
	ExternalID sql.NullString `db:"external_id"`

	// Content overrides the post content for this service only.
	Content sql.NullString `db:"content"`
}

// ReportAttempt stamps an attempt made at the given time. An empty errMsg
// marks the attempt as successful.
func (p *Publication) ReportAttempt(at time.Time, errMsg string) {
	at = at.UTC()
	if !p.FirstAttempt.Valid {
		p.FirstAttempt = sql.NullTime{Time: at, Valid: true}
	}
	p.MostRecentAttempt = sql.NullTime{Time: at, Valid: true}
	p.Error = sql.NullString{String: errMsg, Valid: errMsg != ""}
}

// Attempted reports whether any delivery attempt has been recorded.
func (p *Publication) Attempted() bool {
	return p.MostRecentAttempt.Valid
}

// Succeeded reports whether the most recent attempt delivered the post.
func (p *Publication) Succeeded() bool {
	return p.Attempted() && !p.Error.Valid
}

// Status returns "unattempted", "succeeded" or "failed".
func (p *Publication) Status() string {
	switch {
	case !p.Attempted():
		return "unattempted"
	case p.Error.Valid:
		return "failed"
	default:
		return "succeeded"
	}
}

// Attachment is a binary or file payload carried by a post.
type Attachment struct {
	ID        int64          `db:"id"`
	PostID    int64          `db:"post_id"`
	Filename  sql.NullString `db:"filename"`
	MediaType sql.NullString `db:"media_type"`
	Content   []byte         `db:"content"`
}

// Backlog is an ordered queue of JSON-encoded items. It is always stored
// as a JSON array.
type Backlog []json.RawMessage

// Scan implements sql.Scanner. Besides a plain array it accepts NULL, an
// empty string and an object wrapping a single list, which older databases
// used for the same column.
func (b *Backlog) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*b = Backlog{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into backlog", src)
	}
	items, err := decodeBacklog(raw)
	if err != nil {
		return err
	}
	*b = items
	return nil
}

// Value implements driver.Valuer.
func (b Backlog) Value() (driver.Value, error) {
	if len(b) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]json.RawMessage(b))
	if err != nil {
		return nil, fmt.Errorf("failed to encode backlog: %w", err)
	}
	return string(data), nil
}

func decodeBacklog(raw []byte) (Backlog, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Backlog{}, nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("invalid backlog array: %w", err)
		}
		return Backlog(items), nil
	case '{':
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid backlog object: %w", err)
		}
		if len(wrapped) != 1 {
			return nil, fmt.Errorf("backlog object must wrap exactly one list, found %d keys", len(wrapped))
		}
		for _, inner := range wrapped {
			return decodeBacklog(inner)
		}
	}
	return nil, fmt.Errorf("backlog must be a JSON array")
}
