// Package bot implements the post lifecycle of a configured bot: deciding
// when new content is due, turning generator output into posts, fanning
// posts out to publishers and tracking every delivery attempt.
package bot

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/edgard/botfriend/internal/database"
	"github.com/edgard/botfriend/internal/logger"
)

// Bot binds a persisted bot record to its generator and publishers.
type Bot struct {
	model     *database.Bot
	store     database.Store
	generator ContentGenerator

	publishers          []Publisher
	schedule            *Schedule
	stateUpdateSchedule *Schedule
	directory           string

	clock  func() time.Time
	rng    *rand.Rand
	logger *slog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithPublishers sets the publishers every post is delivered to.
func WithPublishers(publishers ...Publisher) Option {
	return func(b *Bot) { b.publishers = publishers }
}

// WithSchedule sets the delay between posts.
func WithSchedule(s *Schedule) Option {
	return func(b *Bot) { b.schedule = s }
}

// WithStateUpdateSchedule sets how often the generator's state is refreshed.
func WithStateUpdateSchedule(s *Schedule) Option {
	return func(b *Bot) { b.stateUpdateSchedule = s }
}

// WithDirectory sets the bot's directory, used for bot-local files.
func WithDirectory(dir string) Option {
	return func(b *Bot) { b.directory = dir }
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(b *Bot) { b.clock = clock }
}

// WithRand sets the random source used for Gaussian schedules.
func WithRand(rng *rand.Rand) Option {
	return func(b *Bot) { b.rng = rng }
}

// WithLogger sets the parent logger. The bot adds its own name to it.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bot) { b.logger = log }
}

// New creates a Bot for an existing bot record.
func New(model *database.Bot, store database.Store, generator ContentGenerator, opts ...Option) *Bot {
	b := &Bot{
		model:     model,
		store:     store,
		generator: generator,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(model.ID)))
	}
	if b.model.Backlog == nil {
		b.model.Backlog = database.Backlog{}
	}
	b.logger = logger.ForBot(b.logger, model.Name)
	if len(b.publishers) == 0 {
		b.logger.Warn("Bot defines no publishers")
	}
	return b
}

// Name returns the bot's configured name.
func (b *Bot) Name() string { return b.model.Name }

// Model returns the stored bot record.
func (b *Bot) Model() *database.Bot { return b.model }

// Store returns the store the bot reads and writes through.
func (b *Bot) Store() database.Store { return b.store }

// Generator returns the bot's content generator.
func (b *Bot) Generator() ContentGenerator { return b.generator }

// Publishers returns the configured publishers in delivery order.
func (b *Bot) Publishers() []Publisher { return b.publishers }

// Directory returns the bot's directory.
func (b *Bot) Directory() string { return b.directory }

// Logger returns the logger carrying the bot's name.
func (b *Bot) Logger() *slog.Logger { return b.logger }

// Rand returns the bot's random source.
func (b *Bot) Rand() *rand.Rand { return b.rng }

// Schedule returns the delay between posts, or nil.
func (b *Bot) Schedule() *Schedule { return b.schedule }

// StateUpdateSchedule returns the state refresh interval, or nil.
func (b *Bot) StateUpdateSchedule() *Schedule { return b.stateUpdateSchedule }

// Now returns the current time in UTC.
func (b *Bot) Now() time.Time {
	return b.clock().UTC()
}

// NewPost builds an unsaved post with the given content.
func (b *Bot) NewPost(content string) *database.Post {
	return &database.Post{
		BotID:   b.model.ID,
		Created: b.Now(),
		Content: content,
	}
}

// PostForExternalKey returns the post already created for key or, when
// there is none, a new unsaved post carrying the key.
func (b *Bot) PostForExternalKey(ctx context.Context, key string) (*database.Post, bool, error) {
	existing, err := b.store.GetPostByExternalKey(ctx, b.model.ID, key)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}
	post := b.NewPost("")
	post.ExternalKey = sql.NullString{String: key, Valid: true}
	return post, true, nil
}

// ReadyScheduledPosts returns the posts that should be delivered right now.
// Only posts without any publication qualify. When some are due, all of
// them are returned, oldest publish time first. Otherwise, if the bot is
// ready to post, the oldest unscheduled post is returned alone.
func (b *Bot) ReadyScheduledPosts(ctx context.Context) ([]*database.Post, error) {
	posts, err := b.store.UnpublishedPosts(ctx, b.model.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unpublished posts: %w", err)
	}
	now := b.Now()

	var due, unscheduled []*database.Post
	for _, p := range posts {
		switch {
		case !p.PublishAt.Valid:
			unscheduled = append(unscheduled, p)
		case !p.PublishAt.Time.After(now):
			due = append(due, p)
		}
	}

	if len(due) > 0 {
		slices.SortStableFunc(due, func(x, y *database.Post) int {
			return cmp.Or(x.PublishAt.Time.Compare(y.PublishAt.Time), cmp.Compare(x.ID, y.ID))
		})
		return due, nil
	}
	if len(unscheduled) > 0 && b.ShouldMakeNewPost() {
		oldest := slices.MinFunc(unscheduled, func(x, y *database.Post) int {
			return cmp.Or(x.Created.Compare(y.Created), cmp.Compare(x.ID, y.ID))
		})
		return []*database.Post{oldest}, nil
	}
	return nil, nil
}

// ShouldMakeNewPost reports whether the bot may manufacture new content.
func (b *Bot) ShouldMakeNewPost() bool {
	next := b.model.NextPostTime
	return !next.Valid || !b.Now().Before(next.Time)
}

// ScheduleNextPost advances next_post_time past the given posts and persists it.
func (b *Bot) ScheduleNextPost(ctx context.Context, posts []*database.Post) error {
	b.scheduleNext(posts)
	if err := b.store.SaveBot(ctx, b.model); err != nil {
		return fmt.Errorf("failed to save next post time: %w", err)
	}
	return nil
}

// scheduleNext sets next_post_time to the later of the latest publish time
// among posts and now plus the scheduled delay. With neither, the next post
// may happen immediately.
func (b *Bot) scheduleNext(posts []*database.Post) {
	var next time.Time
	for _, p := range posts {
		if p.PublishAt.Valid && p.PublishAt.Time.After(next) {
			next = p.PublishAt.Time.UTC()
		}
	}
	if b.schedule != nil {
		if candidate := b.Now().Add(b.schedule.Delay(b.rng)); candidate.After(next) {
			next = candidate
		}
	}

	if next.IsZero() {
		b.model.NextPostTime = sql.NullTime{}
		return
	}
	b.model.NextPostTime = sql.NullTime{Time: next, Valid: true}
	b.logger.Debug("Scheduled next post", "next_post_time", next)
}

// StateNeedsUpdate reports whether the state refresh interval has elapsed.
func (b *Bot) StateNeedsUpdate() bool {
	if b.stateUpdateSchedule == nil {
		return false
	}
	last := b.model.LastStateUpdateTime
	if !last.Valid {
		return true
	}
	return !b.Now().Before(last.Time.Add(b.stateUpdateSchedule.Interval()))
}

// CheckAndUpdateState refreshes the state when it is due or when forced,
// and reports whether a refresh happened.
func (b *Bot) CheckAndUpdateState(ctx context.Context, force bool) (bool, error) {
	if !force && !b.StateNeedsUpdate() {
		return false, nil
	}

	if updater, ok := b.generator.(StateUpdater); ok {
		state, err := updater.UpdateState(ctx, b)
		if err != nil {
			return false, fmt.Errorf("failed to update state: %w", err)
		}
		if state != "" {
			b.model.State = sql.NullString{String: state, Valid: true}
		}
	}
	b.model.LastStateUpdateTime = sql.NullTime{Time: b.Now(), Valid: true}

	if err := b.store.SaveBot(ctx, b.model); err != nil {
		return false, fmt.Errorf("failed to save state: %w", err)
	}
	b.logger.DebugContext(ctx, "State updated", "forced", force)
	return true, nil
}

// State returns the raw state string.
func (b *Bot) State() string {
	return b.model.State.String
}

// JSONState decodes the state into v. It reports false when no state is set.
func (b *Bot) JSONState(v any) (bool, error) {
	if !b.model.State.Valid || b.model.State.String == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(b.model.State.String), v); err != nil {
		return false, fmt.Errorf("state is not valid JSON: %w", err)
	}
	return true, nil
}

// SetState replaces and persists the state.
func (b *Bot) SetState(ctx context.Context, state string) error {
	b.model.State = sql.NullString{String: state, Valid: state != ""}
	b.model.LastStateUpdateTime = sql.NullTime{Time: b.Now(), Valid: true}
	if err := b.store.SaveBot(ctx, b.model); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// SetJSONState encodes v as JSON and persists it as the state.
func (b *Bot) SetJSONState(ctx context.Context, v any) error {
	state, err := EncodeState(v)
	if err != nil {
		return err
	}
	return b.SetState(ctx, state)
}

// EncodeState serializes v for use as a state string.
func EncodeState(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return string(data), nil
}

// Backlog returns a copy of the stored backlog.
func (b *Bot) Backlog() database.Backlog {
	return slices.Clone(b.model.Backlog)
}

// PopBacklog removes the head of the backlog, persists the change and
// returns the decoded item.
func (b *Bot) PopBacklog(ctx context.Context) (any, bool, error) {
	raw, ok := b.popBacklogItem()
	if !ok {
		return nil, false, nil
	}
	if err := b.store.SaveBot(ctx, b.model); err != nil {
		b.model.Backlog = slices.Insert(b.model.Backlog, 0, raw)
		return nil, false, fmt.Errorf("failed to save backlog: %w", err)
	}
	item, err := decodeBacklogItem(raw)
	return item, true, err
}

func (b *Bot) popBacklogItem() (json.RawMessage, bool) {
	if len(b.model.Backlog) == 0 {
		return nil, false
	}
	head := b.model.Backlog[0]
	b.model.Backlog = slices.Clone(b.model.Backlog[1:])
	return head, true
}

// ExtendBacklog converts each line through the generator's BacklogItem hook
// and appends the results. Without the hook each line is stored as a string.
func (b *Bot) ExtendBacklog(ctx context.Context, lines []string) error {
	items := make([]any, 0, len(lines))
	formatter, hasFormatter := b.generator.(BacklogFormatter)
	for _, line := range lines {
		var item any = line
		if hasFormatter {
			converted, err := formatter.BacklogItem(line)
			if err != nil {
				return fmt.Errorf("failed to convert backlog line %q: %w", line, err)
			}
			item = converted
		}
		items = append(items, item)
	}
	return b.AppendBacklog(ctx, items)
}

// AppendBacklog appends already-structured items to the backlog.
func (b *Bot) AppendBacklog(ctx context.Context, items []any) error {
	backlog := slices.Clone(b.model.Backlog)
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("backlog item is not JSON-serializable: %w", err)
		}
		backlog = append(backlog, data)
	}
	previous := b.model.Backlog
	b.model.Backlog = backlog
	if err := b.store.SaveBot(ctx, b.model); err != nil {
		b.model.Backlog = previous
		return fmt.Errorf("failed to save backlog: %w", err)
	}
	return nil
}

// ClearBacklog empties the backlog.
func (b *Bot) ClearBacklog(ctx context.Context) error {
	previous := b.model.Backlog
	b.model.Backlog = database.Backlog{}
	if err := b.store.SaveBot(ctx, b.model); err != nil {
		b.model.Backlog = previous
		return fmt.Errorf("failed to clear backlog: %w", err)
	}
	return nil
}

// ClearSchedule deletes every post nobody has tried to publish yet and
// resets next_post_time.
func (b *Bot) ClearSchedule(ctx context.Context) (int64, error) {
	var removed int64
	err := b.store.WithTx(ctx, func(tx database.Store) error {
		n, err := tx.DeleteUnpublishedPosts(ctx, b.model.ID)
		if err != nil {
			return err
		}
		removed = n
		next := b.model.NextPostTime
		b.model.NextPostTime = sql.NullTime{}
		if err := tx.SaveBot(ctx, b.model); err != nil {
			b.model.NextPostTime = next
			return err
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear schedule: %w", err)
	}
	return removed, nil
}

func decodeBacklogItem(raw json.RawMessage) (any, error) {
	var item any
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("backlog item is not valid JSON: %w", err)
	}
	return item, nil
}

// snapshot captures the mutable parts of the model so a failed operation
// can put them back.
func (b *Bot) snapshot() database.Bot {
	s := *b.model
	s.Backlog = slices.Clone(b.model.Backlog)
	return s
}

func (b *Bot) restore(s database.Bot) {
	*b.model = s
}
