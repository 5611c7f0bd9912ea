package bot

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgard/botfriend/internal/database"
	"github.com/edgard/botfriend/internal/logger"
	"github.com/edgard/botfriend/internal/testutil"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGenerator returns whatever its hooks return. A nil newPost hook
// makes NewPost return nothing.
type fakeGenerator struct {
	newPost func(ctx context.Context, b *Bot) (any, error)
	calls   int
}

func (g *fakeGenerator) NewPost(ctx context.Context, b *Bot) (any, error) {
	g.calls++
	if g.newPost == nil {
		return nil, nil
	}
	return g.newPost(ctx, b)
}

type stateGenerator struct {
	fakeGenerator
	state   string
	updates int
}

func (g *stateGenerator) UpdateState(context.Context, *Bot) (string, error) {
	g.updates++
	return g.state, nil
}

type convertingGenerator struct {
	fakeGenerator
}

func (convertingGenerator) ObjectToPost(_ context.Context, b *Bot, obj any) (any, error) {
	m, ok := obj.(map[string]any)
	if !ok {
		return obj, nil
	}
	content, _ := m["content"].(string)
	return b.NewPost(content), nil
}

func (convertingGenerator) BacklogItem(line string) (any, error) {
	return map[string]any{"content": line}, nil
}

type schedulingGenerator struct {
	fakeGenerator
	posts func(b *Bot) []*database.Post
}

func (g *schedulingGenerator) SchedulePosts(_ context.Context, b *Bot) ([]*database.Post, error) {
	return g.posts(b), nil
}

// fakePublisher records every post it is asked to deliver.
type fakePublisher struct {
	service string
	publish func(post *database.Post, d *Delivery) error
	calls   []int64
}

func newSucceedingPublisher(service string) *fakePublisher {
	return &fakePublisher{service: service, publish: func(_ *database.Post, d *Delivery) error {
		d.ReportSuccess("ext-1")
		return nil
	}}
}

func newFailingPublisher(service string) *fakePublisher {
	return &fakePublisher{service: service, publish: func(_ *database.Post, d *Delivery) error {
		d.ReportFailure(errors.New("service unavailable"))
		return nil
	}}
}

func (p *fakePublisher) Service() string { return p.service }

func (p *fakePublisher) Publish(_ context.Context, post *database.Post, d *Delivery) error {
	p.calls = append(p.calls, post.ID)
	return p.publish(post, d)
}

type testBot struct {
	*Bot
	clock *fakeClock
	store database.Store
}

func newTestBot(t *testing.T, name string, gen ContentGenerator, opts ...Option) *testBot {
	t.Helper()
	store := testutil.NewStore(t)
	return newTestBotWithStore(t, store, name, gen, opts...)
}

func newTestBotWithStore(t *testing.T, store database.Store, name string, gen ContentGenerator, opts ...Option) *testBot {
	t.Helper()
	clock := &fakeClock{now: testNow}
	model := testutil.NewBotModel(t, store, name)
	base := []Option{
		WithClock(clock.Now),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(logger.Discard()),
	}
	b := New(model, store, gen, append(base, opts...)...)
	return &testBot{Bot: b, clock: clock, store: store}
}

// savePost stores a post for the bot directly.
func (tb *testBot) savePost(t *testing.T, content string, created time.Time, publishAt *time.Time) *database.Post {
	t.Helper()
	p := tb.NewPost(content)
	p.Created = created
	if publishAt != nil {
		p.PublishAt.Time, p.PublishAt.Valid = *publishAt, true
	}
	require.NoError(t, tb.store.CreatePost(context.Background(), p))
	return p
}

func ptr[T any](v T) *T { return &v }
