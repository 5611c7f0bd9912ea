package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/edgard/botfriend/internal/database"
)

var errDryRun = errors.New("dry run")

// PublishablePosts returns the posts that should be published right now,
// manufacturing a new one from the backlog or the generator when nothing
// is due and the schedule allows it.
//
// New posts are saved together with the advanced next_post_time before
// anything is delivered, so a broken publisher cannot make the bot produce
// a new post on every pass.
func (b *Bot) PublishablePosts(ctx context.Context) ([]*database.Post, error) {
	posts, _, err := b.publishablePosts(ctx)
	return posts, err
}

// publishablePosts is PublishablePosts that also reports which of the
// returned posts it created.
func (b *Bot) publishablePosts(ctx context.Context) ([]*database.Post, []*database.Post, error) {
	if _, err := b.CheckAndUpdateState(ctx, false); err != nil {
		return nil, nil, err
	}

	ready, err := b.ReadyScheduledPosts(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(ready) > 0 {
		return ready, nil, nil
	}

	if !b.ShouldMakeNewPost() {
		return nil, nil, nil
	}

	before := b.snapshot()
	output, fromBacklog, err := b.produce(ctx)
	if err != nil {
		b.restore(before)
		return nil, nil, err
	}
	if isEmptyOutput(output) {
		if fromBacklog {
			// the consumed item was blank
			if err := b.store.SaveBot(ctx, b.model); err != nil {
				b.restore(before)
				return nil, nil, fmt.Errorf("failed to save backlog: %w", err)
			}
		}
		b.logger.DebugContext(ctx, "No new content produced")
		return nil, nil, nil
	}

	posts, err := b.toPostList(ctx, output)
	if err != nil {
		b.restore(before)
		return nil, nil, err
	}

	var created []*database.Post
	err = b.store.WithTx(ctx, func(tx database.Store) error {
		for _, p := range posts {
			if !p.IsNew() {
				continue
			}
			b.prepare(p)
			if err := tx.CreatePost(ctx, p); err != nil {
				return err
			}
			created = append(created, p)
		}
		b.scheduleNext(posts)
		return tx.SaveBot(ctx, b.model)
	})
	if err != nil {
		b.restore(before)
		for _, p := range created {
			// the rows were rolled back
			p.ID = 0
		}
		return nil, nil, fmt.Errorf("failed to save new posts: %w", err)
	}

	b.logger.InfoContext(ctx, "Created new posts", "count", len(posts), "from_backlog", fromBacklog)
	return posts, created, nil
}

// produce takes the head of the backlog or, when the backlog is empty or
// its head is blank, asks the generator for new content.
func (b *Bot) produce(ctx context.Context) (any, bool, error) {
	var output any
	fromBacklog := false
	if raw, ok := b.popBacklogItem(); ok {
		item, err := decodeBacklogItem(raw)
		if err != nil {
			return nil, false, err
		}
		output, fromBacklog = item, true
	}
	if !isEmptyOutput(output) {
		return output, fromBacklog, nil
	}

	generated, err := b.generator.NewPost(ctx, b)
	if err != nil {
		return nil, false, fmt.Errorf("generator failed: %w", err)
	}
	return generated, fromBacklog, nil
}

func (b *Bot) prepare(p *database.Post) {
	p.BotID = b.model.ID
	if p.Created.IsZero() {
		p.Created = b.Now()
	}
}

// toPostList normalizes generator output into posts. Posts pass through;
// anything else goes through ObjectToPost, whose result must be a string,
// a post or a list of posts.
func (b *Bot) toPostList(ctx context.Context, obj any) ([]*database.Post, error) {
	if posts, ok := asPosts(obj); ok {
		return posts, nil
	}

	converted := obj
	if converter, ok := b.generator.(ObjectConverter); ok {
		var err error
		if converted, err = converter.ObjectToPost(ctx, b, obj); err != nil {
			return nil, fmt.Errorf("failed to convert %T into a post: %w", obj, err)
		}
	}

	if content, ok := converted.(string); ok {
		return []*database.Post{b.NewPost(content)}, nil
	}
	if posts, ok := asPosts(converted); ok {
		return posts, nil
	}
	return nil, fmt.Errorf("%w: ObjectToPost must return a post or a list of posts, got %T", ErrInvalidPost, converted)
}

func asPosts(obj any) ([]*database.Post, bool) {
	switch v := obj.(type) {
	case *database.Post:
		if v == nil {
			return nil, false
		}
		return []*database.Post{v}, true
	case []*database.Post:
		if len(v) == 0 || containsNil(v) {
			return nil, false
		}
		return v, true
	case []any:
		if len(v) == 0 {
			return nil, false
		}
		posts := make([]*database.Post, 0, len(v))
		for _, item := range v {
			p, ok := item.(*database.Post)
			if !ok || p == nil {
				return nil, false
			}
			posts = append(posts, p)
		}
		return posts, true
	}
	return nil, false
}

func containsNil(posts []*database.Post) bool {
	for _, p := range posts {
		if p == nil {
			return true
		}
	}
	return false
}

func isEmptyOutput(obj any) bool {
	switch v := obj.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case *database.Post:
		return v == nil
	case []*database.Post:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case json.RawMessage:
		return len(v) == 0
	}
	return false
}

// Publish delivers post to every publisher that has not already delivered
// it, records each attempt, then advances next_post_time. Publisher
// failures are recorded, never returned. The error reports store failures.
func (b *Bot) Publish(ctx context.Context, post *database.Post) ([]*database.Publication, error) {
	if post.IsNew() {
		return nil, errors.New("post must be saved before it is published")
	}
	if post.PublishAt.Valid && post.PublishAt.Time.After(b.Now()) {
		b.logger.WarnContext(ctx, "Not publishing post before its publish time",
			"post_id", post.ID, "publish_at", post.PublishAt.Time)
		return nil, nil
	}

	var attempted []*database.Publication
	var errs []error
	for _, publisher := range b.publishers {
		service := publisher.Service()
		pub, _, err := b.store.GetOrCreatePublication(ctx, post.ID, service)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pub.Succeeded() {
			continue
		}
		if err := b.attempt(ctx, publisher, post, pub); err != nil {
			errs = append(errs, err)
		}
		attempted = append(attempted, pub)
	}

	if err := b.ScheduleNextPost(ctx, []*database.Post{post}); err != nil {
		errs = append(errs, err)
	}
	return attempted, errors.Join(errs...)
}

// attempt invokes one publisher and persists the outcome.
func (b *Bot) attempt(ctx context.Context, publisher Publisher, post *database.Post, pub *database.Publication) error {
	d := newDelivery(pub, post, b.Now)
	b.invoke(ctx, publisher, post, d)

	log := b.logger.With("service", pub.Service, "post_id", post.ID)
	if pub.Succeeded() {
		log.InfoContext(ctx, "Published post", "external_id", pub.ExternalID.String)
	} else {
		log.WarnContext(ctx, "Publishing failed", "error", pub.Error.String)
	}

	if err := b.store.SavePublication(ctx, pub); err != nil {
		return fmt.Errorf("failed to record %s publication of post %d: %w", pub.Service, post.ID, err)
	}
	return nil
}

func (b *Bot) invoke(ctx context.Context, publisher Publisher, post *database.Post, d *Delivery) {
	defer func() {
		if r := recover(); r != nil {
			d.reportError(fmt.Sprintf("Uncaught exception: %v", r))
		}
	}()

	if err := publisher.Publish(ctx, post, d); err != nil {
		d.reportError("Uncaught exception: " + err.Error())
		return
	}
	if !d.Reported() {
		d.reportError("publisher returned without reporting an outcome")
	}
}

// SchedulePosts asks an advance-scheduling generator for timed posts and
// saves them. A post dated in the past fails the whole batch.
func (b *Bot) SchedulePosts(ctx context.Context) ([]*database.Post, error) {
	scheduler, ok := b.generator.(AdvanceScheduler)
	if !ok {
		return nil, nil
	}
	posts, err := scheduler.SchedulePosts(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule posts: %w", err)
	}

	now := b.Now()
	for _, p := range posts {
		if p == nil {
			return nil, fmt.Errorf("%w: advance scheduler returned a nil post", ErrInvalidPost)
		}
		if p.PublishAt.Valid && p.PublishAt.Time.Before(now) {
			return nil, fmt.Errorf("%w: a new post can't be scheduled for the past (%q was scheduled for %s)",
				ErrInvalidPost, truncate(p.Content, 40), p.PublishAt.Time.Format("2006-01-02 15:04:05"))
		}
	}

	err = b.store.WithTx(ctx, func(tx database.Store) error {
		for _, p := range posts {
			if !p.IsNew() {
				continue
			}
			b.prepare(p)
			if err := tx.CreatePost(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save scheduled posts: %w", err)
	}
	if len(posts) > 0 {
		b.logger.InfoContext(ctx, "Scheduled posts", "count", len(posts))
	}
	return posts, nil
}

// Republish retries every publication of this bot that failed or never
// completed. Services no longer configured for the bot are left untouched.
func (b *Bot) Republish(ctx context.Context) ([]*database.Publication, error) {
	posts, err := b.store.FailedPosts(ctx, b.model.ID)
	if err != nil {
		return nil, err
	}

	byService := make(map[string]Publisher, len(b.publishers))
	for _, p := range b.publishers {
		byService[p.Service()] = p
	}

	var attempted []*database.Publication
	var errs []error
	for _, post := range posts {
		pubs, err := b.store.GetPublications(ctx, post.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, pub := range pubs {
			if pub.Succeeded() {
				continue
			}
			publisher, ok := byService[pub.Service]
			if !ok {
				b.logger.WarnContext(ctx, "Service is no longer configured, leaving failed publication",
					"service", pub.Service, "post_id", post.ID)
				continue
			}
			if err := b.attempt(ctx, publisher, post, pub); err != nil {
				errs = append(errs, err)
			}
			attempted = append(attempted, pub)
		}
	}
	return attempted, errors.Join(errs...)
}

// StressTest generates rounds of sample content without saving anything.
func (b *Bot) StressTest(ctx context.Context, rounds int) ([]string, error) {
	tester, ok := b.generator.(StressTester)
	if !ok {
		return nil, fmt.Errorf("bot %s: stress test: %w", b.Name(), errors.ErrUnsupported)
	}
	return tester.StressTest(ctx, b, rounds)
}

// DryRun runs PublishablePosts inside a transaction that is always rolled
// back, returning what would have been published.
func (b *Bot) DryRun(ctx context.Context) ([]*database.Post, error) {
	before := b.snapshot()
	defer b.restore(before)

	var posts, created []*database.Post
	err := b.store.WithTx(ctx, func(tx database.Store) error {
		store := b.store
		b.store = tx
		defer func() { b.store = store }()

		var err error
		if posts, created, err = b.publishablePosts(ctx); err != nil {
			return err
		}
		return errDryRun
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}
	for _, p := range created {
		// the rows were rolled back
		p.ID = 0
	}
	return posts, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
