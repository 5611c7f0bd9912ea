package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/botfriend/internal/database"
)

func returning(v any) func(context.Context, *Bot) (any, error) {
	return func(context.Context, *Bot) (any, error) { return v, nil }
}

func TestPublishablePostsFirstPostScenario(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{newPost: returning("hello")}
	tb := newTestBot(t, "hourly", gen, WithSchedule(Fixed(60)))

	posts, err := tb.PublishablePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hello", posts[0].Content)
	assert.False(t, posts[0].IsNew())
	assert.Equal(t, testNow.Add(60*time.Minute), tb.Model().NextPostTime.Time)

	posts, err = tb.PublishablePosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, 1, gen.calls)

	unpublished, err := tb.store.UnpublishedPosts(ctx, tb.Model().ID)
	require.NoError(t, err)
	assert.Len(t, unpublished, 1)
}

func TestPublishablePostsBacklogPrecedence(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{newPost: returning("generated")}
	tb := newTestBot(t, "queued", gen, WithSchedule(Fixed(30)))
	require.NoError(t, tb.AppendBacklog(ctx, []any{"x", "y"}))

	posts, err := tb.PublishablePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "x", posts[0].Content)
	require.Len(t, tb.Backlog(), 1)
	assert.JSONEq(t, `"y"`, string(tb.Backlog()[0]))

	posts, err = tb.PublishablePosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)

	stored, err := tb.store.GetBot(ctx, tb.Model().ID)
	require.NoError(t, err)
	require.Len(t, stored.Backlog, 1, "backlog is not drained eagerly")
	assert.JSONEq(t, `"y"`, string(stored.Backlog[0]))
	assert.Zero(t, gen.calls)
}

func TestPublishablePostsFatalNormalization(t *testing.T) {
	t.Run("generator output", func(t *testing.T) {
		ctx := context.Background()
		tb := newTestBot(t, "dict", &fakeGenerator{newPost: returning(map[string]any{"text": "hi"})})

		posts, err := tb.PublishablePosts(ctx)
		require.ErrorIs(t, err, ErrInvalidPost)
		assert.Nil(t, posts)

		unpublished, err := tb.store.UnpublishedPosts(ctx, tb.Model().ID)
		require.NoError(t, err)
		assert.Empty(t, unpublished)
		assert.False(t, tb.Model().NextPostTime.Valid)
	})

	t.Run("backlog item", func(t *testing.T) {
		ctx := context.Background()
		tb := newTestBot(t, "dict-backlog", &fakeGenerator{})
		require.NoError(t, tb.AppendBacklog(ctx, []any{map[string]any{"text": "hi"}}))

		_, err := tb.PublishablePosts(ctx)
		require.ErrorIs(t, err, ErrInvalidPost)
		assert.Len(t, tb.Backlog(), 1, "the item stays queued")

		stored, err := tb.store.GetBot(ctx, tb.Model().ID)
		require.NoError(t, err)
		assert.Len(t, stored.Backlog, 1)
	})
}

func TestPublishablePostsConvertsObjects(t *testing.T) {
	ctx := context.Background()
	gen := &convertingGenerator{}
	gen.newPost = returning(map[string]any{"content": "converted"})
	tb := newTestBot(t, "converter", gen)

	posts, err := tb.PublishablePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "converted", posts[0].Content)
}

func TestPublishablePostsAcceptsPostLists(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{newPost: func(_ context.Context, b *Bot) (any, error) {
		return []*database.Post{b.NewPost("one"), b.NewPost("two")}, nil
	}}
	tb := newTestBot(t, "thread", gen)

	posts, err := tb.PublishablePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.NotEqual(t, posts[0].ID, posts[1].ID)
}

func TestPublishablePostsBlankBacklogItemFallsBackToGenerator(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	tb := newTestBot(t, "blank", gen)
	require.NoError(t, tb.AppendBacklog(ctx, []any{""}))

	posts, err := tb.PublishablePosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, 1, gen.calls)

	stored, err := tb.store.GetBot(ctx, tb.Model().ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Backlog, "the blank item is consumed")
}

func TestPublishablePostsGeneratorError(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{newPost: func(context.Context, *Bot) (any, error) {
		return nil, errors.New("out of ideas")
	}}
	tb := newTestBot(t, "broken", gen)

	_, err := tb.PublishablePosts(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPost)
}

func TestPublishAtMostOneSuccessPerService(t *testing.T) {
	ctx := context.Background()
	good := newSucceedingPublisher("good")
	bad := newFailingPublisher("bad")
	tb := newTestBot(t, "fanout", &fakeGenerator{}, WithPublishers(good, bad))
	post := tb.savePost(t, "hello", testNow, nil)

	for range 3 {
		_, err := tb.Publish(ctx, post)
		require.NoError(t, err)
	}

	assert.Len(t, good.calls, 1, "a delivered service is never invoked again")
	assert.Len(t, bad.calls, 3)

	pubs, err := tb.store.GetPublications(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, pubs, 2)

	byService := map[string]*database.Publication{}
	for _, pub := range pubs {
		byService[pub.Service] = pub
	}
	assert.True(t, byService["good"].Succeeded())
	assert.Equal(t, "ext-1", byService["good"].ExternalID.String)
	assert.Equal(t, "service unavailable", byService["bad"].Error.String)
	assert.Equal(t, "failed", byService["bad"].Status())
}

func TestPublishRecordsUncaughtFailures(t *testing.T) {
	testCases := []struct {
		name    string
		publish func(*database.Post, *Delivery) error
		want    string
	}{
		{
			name:    "returned error",
			publish: func(*database.Post, *Delivery) error { return errors.New("boom") },
			want:    "Uncaught exception: boom",
		},
		{
			name:    "panic",
			publish: func(*database.Post, *Delivery) error { panic("kaboom") },
			want:    "Uncaught exception: kaboom",
		},
		{
			name:    "no outcome",
			publish: func(*database.Post, *Delivery) error { return nil },
			want:    "publisher returned without reporting an outcome",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			pub := &fakePublisher{service: "flaky", publish: tc.publish}
			tb := newTestBot(t, "flaky", &fakeGenerator{}, WithPublishers(pub))
			post := tb.savePost(t, "hello", testNow, nil)

			attempted, err := tb.Publish(ctx, post)
			require.NoError(t, err)
			require.Len(t, attempted, 1)
			assert.Equal(t, tc.want, attempted[0].Error.String)
			assert.True(t, attempted[0].Attempted())
		})
	}
}

func TestPublishSkipsFuturePosts(t *testing.T) {
	ctx := context.Background()
	pub := newSucceedingPublisher("echo")
	tb := newTestBot(t, "future", &fakeGenerator{}, WithPublishers(pub))
	post := tb.savePost(t, "later", testNow, ptr(testNow.Add(time.Hour)))

	attempted, err := tb.Publish(ctx, post)
	require.NoError(t, err)
	assert.Empty(t, attempted)
	assert.Empty(t, pub.calls)

	_, err = tb.Publish(ctx, tb.NewPost("unsaved"))
	assert.Error(t, err)
}

func TestPublishAdvancesSchedule(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t, "advance", &fakeGenerator{}, WithSchedule(Fixed(15)), WithPublishers(newSucceedingPublisher("echo")))
	post := tb.savePost(t, "hello", testNow, nil)

	_, err := tb.Publish(ctx, post)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(15*time.Minute), tb.Model().NextPostTime.Time)
}

func TestSchedulePosts(t *testing.T) {
	t.Run("rejects the past", func(t *testing.T) {
		ctx := context.Background()
		gen := &schedulingGenerator{posts: func(b *Bot) []*database.Post {
			ok := b.NewPost("tomorrow")
			ok.PublishAt.Time, ok.PublishAt.Valid = testNow.Add(24*time.Hour), true
			late := b.NewPost("yesterday")
			late.PublishAt.Time, late.PublishAt.Valid = testNow.Add(-time.Minute), true
			return []*database.Post{ok, late}
		}}
		tb := newTestBot(t, "late", gen)

		_, err := tb.SchedulePosts(ctx)
		require.ErrorIs(t, err, ErrInvalidPost)

		unpublished, err := tb.store.UnpublishedPosts(ctx, tb.Model().ID)
		require.NoError(t, err)
		assert.Empty(t, unpublished)
	})

	t.Run("saves future posts", func(t *testing.T) {
		ctx := context.Background()
		gen := &schedulingGenerator{posts: func(b *Bot) []*database.Post {
			var posts []*database.Post
			for i := 1; i <= 2; i++ {
				p := b.NewPost("chorus")
				p.PublishAt.Time, p.PublishAt.Valid = testNow.Add(time.Duration(i)*time.Hour), true
				posts = append(posts, p)
			}
			return posts
		}}
		tb := newTestBot(t, "ahead", gen)

		posts, err := tb.SchedulePosts(ctx)
		require.NoError(t, err)
		assert.Len(t, posts, 2)

		ready, err := tb.ReadyScheduledPosts(ctx)
		require.NoError(t, err)
		assert.Empty(t, ready)

		tb.clock.Advance(90 * time.Minute)
		ready, err = tb.ReadyScheduledPosts(ctx)
		require.NoError(t, err)
		assert.Len(t, ready, 1)
	})

	t.Run("generators without the hook", func(t *testing.T) {
		tb := newTestBot(t, "plain", &fakeGenerator{})
		posts, err := tb.SchedulePosts(context.Background())
		require.NoError(t, err)
		assert.Empty(t, posts)
	})
}

func TestRepublish(t *testing.T) {
	ctx := context.Background()
	flaky := newFailingPublisher("flaky")
	tb := newTestBot(t, "repair", &fakeGenerator{}, WithPublishers(flaky))
	post := tb.savePost(t, "hello", testNow, nil)

	_, err := tb.Publish(ctx, post)
	require.NoError(t, err)

	gone, _, err := tb.store.GetOrCreatePublication(ctx, post.ID, "retired")
	require.NoError(t, err)
	gone.ReportAttempt(testNow, "old failure")
	require.NoError(t, tb.store.SavePublication(ctx, gone))

	flaky.publish = func(_ *database.Post, d *Delivery) error {
		d.ReportSuccess("")
		return nil
	}
	attempted, err := tb.Republish(ctx)
	require.NoError(t, err)
	require.Len(t, attempted, 1)
	assert.Equal(t, "flaky", attempted[0].Service)
	assert.True(t, attempted[0].Succeeded())

	pubs, err := tb.store.GetPublications(ctx, post.ID)
	require.NoError(t, err)
	for _, pub := range pubs {
		if pub.Service == "retired" {
			assert.Equal(t, "old failure", pub.Error.String)
		}
	}

	attempted, err = tb.Republish(ctx)
	require.NoError(t, err)
	assert.Empty(t, attempted)
	assert.Len(t, flaky.calls, 2)
}

func TestDryRunPersistsNothing(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{newPost: returning("preview")}
	tb := newTestBot(t, "dry", gen, WithSchedule(Fixed(60)))
	require.NoError(t, tb.AppendBacklog(ctx, []any{"queued"}))

	posts, err := tb.DryRun(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "queued", posts[0].Content)
	assert.Zero(t, posts[0].ID, "the preview post was never stored")

	assert.Len(t, tb.Backlog(), 1)
	assert.False(t, tb.Model().NextPostTime.Valid)

	unpublished, err := tb.store.UnpublishedPosts(ctx, tb.Model().ID)
	require.NoError(t, err)
	assert.Empty(t, unpublished)

	stored, err := tb.store.GetBot(ctx, tb.Model().ID)
	require.NoError(t, err)
	assert.Len(t, stored.Backlog, 1)
}

func TestStressTestUnsupported(t *testing.T) {
	tb := newTestBot(t, "plain", &fakeGenerator{})
	_, err := tb.StressTest(context.Background(), 3)
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}
