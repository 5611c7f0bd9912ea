package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botpkg "github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/database"
	"github.com/edgard/botfriend/internal/logger"
	"github.com/edgard/botfriend/internal/testutil"
)

const adminID = 99

type quiet struct{}

func (quiet) NewPost(context.Context, *botpkg.Bot) (any, error) { return nil, nil }

// telegramRecorder is a fake Bot API that records sent messages.
type telegramRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *telegramRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	_ = req.ParseMultipartForm(1 << 20)
	r.mu.Lock()
	r.texts = append(r.texts, req.FormValue("text"))
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ok":     true,
		"result": map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 5, "type": "private"}},
	})
}

func (r *telegramRecorder) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.texts)
	return r.texts[len(r.texts)-1]
}

func setup(t *testing.T) (*tgbot.Bot, *telegramRecorder, HandlerDeps, *botpkg.Bot) {
	t.Helper()
	rec := &telegramRecorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	client, err := tgbot.New("1:test", tgbot.WithSkipGetMe(), tgbot.WithServerURL(srv.URL))
	require.NoError(t, err)

	store := testutil.NewStore(t)
	model := testutil.NewBotModel(t, store, "jokes")
	b := botpkg.New(model, store, quiet{}, botpkg.WithLogger(logger.Discard()))

	deps := HandlerDeps{
		Logger:  logger.Discard(),
		Config:  &config.Config{Telegram: config.TelegramConfig{AdminUserID: adminID}},
		Console: botpkg.NewRunner(logger.Discard(), b),
	}
	return client, rec, deps, b
}

func message(from int64, text string) *models.Update {
	return &models.Update{ID: 1, Message: &models.Message{
		ID:   1,
		Text: text,
		Chat: models.Chat{ID: 5},
		From: &models.User{ID: from},
	}}
}

func TestAdminOnly(t *testing.T) {
	client, rec, deps, _ := setup(t)
	called := false
	handler := AdminOnly(deps)(func(context.Context, *tgbot.Bot, *models.Update) { called = true })

	handler(context.Background(), client, message(1, "/bf_dashboard"))
	assert.False(t, called)
	assert.Equal(t, unauthorizedMsg, rec.last(t))

	handler(context.Background(), client, message(adminID, "/bf_dashboard"))
	assert.True(t, called)
}

func TestRegisterAllCommands(t *testing.T) {
	_, _, deps, _ := setup(t)
	cmds := RegisterAllCommands(deps)
	require.Len(t, cmds, 4)
	assert.Empty(t, cmds["/bf_help"].Middleware)
	assert.Len(t, cmds["/bf_dashboard"].Middleware, 1)
	assert.Equal(t, BacklogCommand, cmds["/bf_backlog"].Pattern)
}

func TestDashboardHandler(t *testing.T) {
	client, rec, deps, b := setup(t)
	require.NoError(t, b.Store().CreatePost(context.Background(), b.NewPost("waiting")))

	NewDashboardHandler(deps)(context.Background(), client, message(adminID, "/bf_dashboard"))
	assert.Equal(t, "jokes: 1 posts, 1 waiting (0 scheduled), 0 failed, backlog 0, next post now", rec.last(t))
}

func TestFormatDashboard(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := formatDashboard([]botpkg.Summary{
		{Bot: "a", Stats: database.BotStats{Posts: 3}, NextPost: now.Add(90 * time.Minute), HasNextPost: true},
		{Bot: "b", NextPost: now.Add(-time.Minute), HasNextPost: true},
	}, now)
	assert.Equal(t,
		"a: 3 posts, 0 waiting (0 scheduled), 0 failed, backlog 0, next post in 1h30m0s\n\n"+
			"b: 0 posts, 0 waiting (0 scheduled), 0 failed, backlog 0, next post due",
		out)
	assert.Equal(t, "No bots are loaded.", formatDashboard(nil, now))
}

func TestBacklogHandler(t *testing.T) {
	client, rec, deps, b := setup(t)
	handler := NewBacklogHandler(deps)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"missing bot", "/bf_backlog", "Usage: /bf_backlog <bot>"},
		{"unknown bot", "/bf_backlog nobody", `No bot called "nobody".`},
		{"empty backlog", "/bf_backlog jokes", "jokes has an empty backlog."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler(context.Background(), client, message(adminID, tt.text))
			assert.Equal(t, tt.want, rec.last(t))
		})
	}

	require.NoError(t, b.ExtendBacklog(context.Background(), []string{"one", "two"}))
	handler(context.Background(), client, message(adminID, "/bf_backlog jokes"))
	assert.Equal(t, "jokes has 2 backlog items\n1. \"one\"\n2. \"two\"", rec.last(t))
}

func TestRepublishHandler(t *testing.T) {
	client, rec, deps, _ := setup(t)
	handler := NewRepublishHandler(deps)

	handler(context.Background(), client, message(adminID, "/bf_republish"))
	assert.Equal(t, "Republished 0 publications, 0 still failing.", rec.last(t))

	handler(context.Background(), client, message(adminID, "/bf_republish ghost"))
	assert.Equal(t, `Republish failed: unknown bot "ghost"`, rec.last(t))
}

func TestCommandArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, commandArgs("/bf_republish  a b"))
	assert.Empty(t, commandArgs("/bf_republish"))
	assert.Nil(t, commandArgs(""))
}
