package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// WithTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a Store that is already transactional reuses the
	// outer transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// GetOrCreateBot returns the bot row with the given name, inserting it
	// when missing. The bool is true when the row was created.
	GetOrCreateBot(ctx context.Context, name string) (*Bot, bool, error)
	GetBot(ctx context.Context, id int64) (*Bot, error)
	GetBotByName(ctx context.Context, name string) (*Bot, error)
	ListBots(ctx context.Context) ([]*Bot, error)
	// SaveBot persists the mutable fields of a bot: schedule, state and backlog.
	SaveBot(ctx context.Context, bot *Bot) error

	// CreatePost inserts a new post together with its attachments.
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id int64) (*Post, error)
	GetPostByExternalKey(ctx context.Context, botID int64, key string) (*Post, error)
	// UnpublishedPosts returns the posts of a bot that have no publication
	// rows at all, ordered by id.
	UnpublishedPosts(ctx context.Context, botID int64) ([]*Post, error)
	// RecentPosts returns the newest posts of a bot, newest first.
	RecentPosts(ctx context.Context, botID int64, limit int) ([]*Post, error)
	// FailedPosts returns posts of a bot with at least one publication whose
	// last attempt failed or never completed.
	FailedPosts(ctx context.Context, botID int64) ([]*Post, error)
	// DeleteUnpublishedPosts removes posts of a bot that have not been
	// published anywhere and returns how many were removed.
	DeleteUnpublishedPosts(ctx context.Context, botID int64) (int64, error)

	GetAttachments(ctx context.Context, postID int64) ([]*Attachment, error)

	// GetOrCreatePublication returns the publication for (postID, service),
	// inserting it when missing. The bool is true when the row was created.
	// A concurrent insert of the same pair is resolved by re-reading.
	GetOrCreatePublication(ctx context.Context, postID int64, service string) (*Publication, bool, error)
	SavePublication(ctx context.Context, pub *Publication) error
	GetPublications(ctx context.Context, postID int64) ([]*Publication, error)

	// BotStats summarises a bot's posts and publications.
	BotStats(ctx context.Context, botID int64) (*BotStats, error)
}

// BotStats is the summary shown on the dashboard.
type BotStats struct {
	Posts             int          `db:"posts"`
	Unpublished       int          `db:"unpublished"`
	Scheduled         int          `db:"scheduled"`
	FailedPosts       int          `db:"failed_posts"`
	MostRecentAttempt sql.NullTime `db:"-"`
}

// execer is the query surface shared by *sqlx.DB and *sqlx.Tx.
type execer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	q      execer
	inTx   bool
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		q:      db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	txStore := &sqlxStore{db: s.db, q: tx, inTx: true, logger: s.logger}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}
	if s.inTx {
		return errors.New("VACUUM cannot run inside a transaction")
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
			return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
		}
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}
	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

// --- bots ---

const botColumns = `id, name, next_post_time, state, last_state_update_time, backlog`

func (s *sqlxStore) GetOrCreateBot(ctx context.Context, name string) (*Bot, bool, error) {
	if name == "" {
		return nil, false, errors.New("bot name cannot be empty")
	}

	bot, err := s.GetBotByName(ctx, name)
	if err == nil {
		return bot, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	res, err := s.q.ExecContext(ctx, `INSERT INTO bots (name, backlog) VALUES (?, '[]');`, name)
	if err != nil {
		if isUniqueViolation(err) {
			s.logger.DebugContext(ctx, "Bot inserted concurrently, re-reading", "bot", name)
			bot, err := s.GetBotByName(ctx, name)
			return bot, false, err
		}
		s.logger.ErrorContext(ctx, "Error creating bot", "bot", name, "error", err)
		return nil, false, fmt.Errorf("failed to create bot %q: %w", name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read bot id: %w", err)
	}
	s.logger.InfoContext(ctx, "Created bot record", "bot", name, "bot_id", id)
	return &Bot{ID: id, Name: name, Backlog: Backlog{}}, true, nil
}

func (s *sqlxStore) GetBot(ctx context.Context, id int64) (*Bot, error) {
	var bot Bot
	err := s.q.GetContext(ctx, &bot, `SELECT `+botColumns+` FROM bots WHERE id = ?;`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bot %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get bot %d: %w", id, err)
	}
	return &bot, nil
}

func (s *sqlxStore) GetBotByName(ctx context.Context, name string) (*Bot, error) {
	var bot Bot
	err := s.q.GetContext(ctx, &bot, `SELECT `+botColumns+` FROM bots WHERE name = ?;`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bot %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get bot %q: %w", name, err)
	}
	return &bot, nil
}

func (s *sqlxStore) ListBots(ctx context.Context) ([]*Bot, error) {
	var bots []*Bot
	if err := s.q.SelectContext(ctx, &bots, `SELECT `+botColumns+` FROM bots ORDER BY name;`); err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}
	return bots, nil
}

func (s *sqlxStore) SaveBot(ctx context.Context, bot *Bot) error {
	if bot == nil || bot.ID == 0 {
		return errors.New("cannot save a bot without an id")
	}
	utcNullTime(&bot.NextPostTime)
	utcNullTime(&bot.LastStateUpdateTime)
	if bot.Backlog == nil {
		bot.Backlog = Backlog{}
	}

	query := `
        UPDATE bots
        SET next_post_time = :next_post_time,
            state = :state,
            last_state_update_time = :last_state_update_time,
            backlog = :backlog
        WHERE id = :id;
    `
	res, err := s.q.NamedExecContext(ctx, query, bot)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving bot", "bot", bot.Name, "error", err)
		return fmt.Errorf("failed to save bot %q: %w", bot.Name, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("bot %d: %w", bot.ID, ErrNotFound)
	}
	return nil
}

// --- posts ---

const postColumns = `id, bot_id, created, publish_at, content, reply_to_id, reply_to_foreign_id, external_key, sensitive`

func (s *sqlxStore) CreatePost(ctx context.Context, post *Post) error {
	if post == nil {
		return errors.New("cannot save nil post")
	}
	if post.BotID == 0 {
		return errors.New("post must have a non-zero bot_id")
	}
	if !post.IsNew() {
		return fmt.Errorf("post %d already exists", post.ID)
	}
	if post.Created.IsZero() {
		post.Created = time.Now()
	}
	post.Created = post.Created.UTC()
	utcNullTime(&post.PublishAt)

	return s.WithTx(ctx, func(st Store) error {
		tx := st.(*sqlxStore)
		query := `
            INSERT INTO posts (bot_id, created, publish_at, content, reply_to_id, reply_to_foreign_id, external_key, sensitive)
            VALUES (:bot_id, :created, :publish_at, :content, :reply_to_id, :reply_to_foreign_id, :external_key, :sensitive);
        `
		res, err := tx.q.NamedExecContext(ctx, query, post)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error saving post", "bot_id", post.BotID, "error", err)
			return fmt.Errorf("failed to save post for bot %d: %w", post.BotID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read post id: %w", err)
		}
		post.ID = id

		for _, a := range post.Attachments {
			a.PostID = id
			if err := tx.insertAttachment(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqlxStore) insertAttachment(ctx context.Context, a *Attachment) error {
	query := `
        INSERT INTO attachments (post_id, filename, media_type, content)
        VALUES (:post_id, :filename, :media_type, :content);
    `
	res, err := s.q.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("failed to save attachment for post %d: %w", a.PostID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

func (s *sqlxStore) GetPost(ctx context.Context, id int64) (*Post, error) {
	var post Post
	if err := s.q.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = ?;`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	posts := []*Post{&post}
	if err := s.loadAttachments(ctx, posts); err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *sqlxStore) GetPostByExternalKey(ctx context.Context, botID int64, key string) (*Post, error) {
	var post Post
	err := s.q.GetContext(ctx, &post,
		`SELECT `+postColumns+` FROM posts WHERE bot_id = ? AND external_key = ?;`, botID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post with key %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post by key %q: %w", key, err)
	}
	return &post, nil
}

func (s *sqlxStore) UnpublishedPosts(ctx context.Context, botID int64) ([]*Post, error) {
	query := `
        SELECT ` + postColumns + ` FROM posts
        WHERE bot_id = ?
          AND NOT EXISTS (SELECT 1 FROM publications WHERE publications.post_id = posts.id)
        ORDER BY id;
    `
	return s.selectPosts(ctx, query, botID)
}

func (s *sqlxStore) RecentPosts(ctx context.Context, botID int64, limit int) ([]*Post, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE bot_id = ? ORDER BY id DESC LIMIT ?;`
	return s.selectPosts(ctx, query, botID, limit)
}

func (s *sqlxStore) FailedPosts(ctx context.Context, botID int64) ([]*Post, error) {
	query := `
        SELECT ` + postColumns + ` FROM posts
        WHERE bot_id = ?
          AND id IN (
            SELECT post_id FROM publications
            WHERE error IS NOT NULL OR most_recent_attempt IS NULL
          )
        ORDER BY id;
    `
	return s.selectPosts(ctx, query, botID)
}

func (s *sqlxStore) DeleteUnpublishedPosts(ctx context.Context, botID int64) (int64, error) {
	query := `
        DELETE FROM posts
        WHERE bot_id = ?
          AND NOT EXISTS (SELECT 1 FROM publications WHERE publications.post_id = posts.id);
    `
	res, err := s.q.ExecContext(ctx, query, botID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting unpublished posts", "bot_id", botID, "error", err)
		return 0, fmt.Errorf("failed to delete unpublished posts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted posts: %w", err)
	}
	return n, nil
}

func (s *sqlxStore) selectPosts(ctx context.Context, query string, args ...any) ([]*Post, error) {
	var posts []*Post
	if err := s.q.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	if err := s.loadAttachments(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// loadAttachments fills Attachments on every post with a single query.
func (s *sqlxStore) loadAttachments(ctx context.Context, posts []*Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(posts))
	byID := make(map[int64]*Post, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		byID[p.ID] = p
		p.Attachments = nil
	}

	query, args, err := sqlx.In(`SELECT id, post_id, filename, media_type, content FROM attachments WHERE post_id IN (?) ORDER BY id;`, ids)
	if err != nil {
		return fmt.Errorf("failed to build attachment query: %w", err)
	}
	var attachments []*Attachment
	if err := s.q.SelectContext(ctx, &attachments, s.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load attachments: %w", err)
	}
	for _, a := range attachments {
		if p, ok := byID[a.PostID]; ok {
			p.Attachments = append(p.Attachments, a)
		}
	}
	return nil
}

func (s *sqlxStore) GetAttachments(ctx context.Context, postID int64) ([]*Attachment, error) {
	var attachments []*Attachment
	err := s.q.SelectContext(ctx, &attachments,
		`SELECT id, post_id, filename, media_type, content FROM attachments WHERE post_id = ? ORDER BY id;`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments for post %d: %w", postID, err)
	}
	return attachments, nil
}

// --- publications ---

const publicationColumns = `id, post_id, service, first_attempt, most_recent_attempt, error, external_id, content`

func (s *sqlxStore) getPublication(ctx context.Context, postID int64, service string) (*Publication, error) {
	var pub Publication
	err := s.q.GetContext(ctx, &pub,
		`SELECT `+publicationColumns+` FROM publications WHERE post_id = ? AND service = ?;`, postID, service)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get publication (post %d, %s): %w", postID, service, err)
	}
	return &pub, nil
}

func (s *sqlxStore) GetOrCreatePublication(ctx context.Context, postID int64, service string) (*Publication, bool, error) {
	if postID == 0 || service == "" {
		return nil, false, errors.New("publication needs a post id and a service")
	}

	pub, err := s.getPublication(ctx, postID, service)
	if err == nil {
		return pub, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	res, err := s.q.ExecContext(ctx, `INSERT INTO publications (post_id, service) VALUES (?, ?);`, postID, service)
	if err != nil {
		if isUniqueViolation(err) {
			s.logger.DebugContext(ctx, "Publication inserted concurrently, re-reading",
				"post_id", postID, "service", service)
			pub, err := s.getPublication(ctx, postID, service)
			if err != nil {
				return nil, false, fmt.Errorf("failed to re-read publication after conflict: %w", err)
			}
			return pub, false, nil
		}
		s.logger.ErrorContext(ctx, "Error creating publication", "post_id", postID, "service", service, "error", err)
		return nil, false, fmt.Errorf("failed to create publication (post %d, %s): %w", postID, service, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read publication id: %w", err)
	}
	return &Publication{ID: id, PostID: postID, Service: service}, true, nil
}

func (s *sqlxStore) SavePublication(ctx context.Context, pub *Publication) error {
	if pub == nil || pub.ID == 0 {
		return errors.New("cannot save a publication without an id")
	}
	utcNullTime(&pub.FirstAttempt)
	utcNullTime(&pub.MostRecentAttempt)

	query := `
        UPDATE publications
        SET first_attempt = :first_attempt,
            most_recent_attempt = :most_recent_attempt,
            error = :error,
            external_id = :external_id,
            content = :content
        WHERE id = :id;
    `
	if _, err := s.q.NamedExecContext(ctx, query, pub); err != nil {
		s.logger.ErrorContext(ctx, "Error saving publication",
			"post_id", pub.PostID, "service", pub.Service, "error", err)
		return fmt.Errorf("failed to save publication %d: %w", pub.ID, err)
	}
	return nil
}

func (s *sqlxStore) GetPublications(ctx context.Context, postID int64) ([]*Publication, error) {
	var pubs []*Publication
	err := s.q.SelectContext(ctx, &pubs,
		`SELECT `+publicationColumns+` FROM publications WHERE post_id = ? ORDER BY service;`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get publications for post %d: %w", postID, err)
	}
	return pubs, nil
}

func (s *sqlxStore) BotStats(ctx context.Context, botID int64) (*BotStats, error) {
	var stats BotStats
	query := `
        SELECT
            (SELECT COUNT(*) FROM posts WHERE bot_id = ?) AS posts,
            (SELECT COUNT(*) FROM posts WHERE bot_id = ?
                AND NOT EXISTS (SELECT 1 FROM publications WHERE publications.post_id = posts.id)) AS unpublished,
            (SELECT COUNT(*) FROM posts WHERE bot_id = ? AND publish_at IS NOT NULL
                AND NOT EXISTS (SELECT 1 FROM publications WHERE publications.post_id = posts.id)) AS scheduled,
            (SELECT COUNT(DISTINCT post_id) FROM publications
                WHERE post_id IN (SELECT id FROM posts WHERE bot_id = ?)
                  AND (error IS NOT NULL OR most_recent_attempt IS NULL)) AS failed_posts;
    `
	if err := s.q.GetContext(ctx, &stats, query, botID, botID, botID, botID); err != nil {
		return nil, fmt.Errorf("failed to compute stats for bot %d: %w", botID, err)
	}

	var latest Publication
	err := s.q.GetContext(ctx, &latest, `
        SELECT `+publicationColumns+` FROM publications
        WHERE most_recent_attempt IS NOT NULL
          AND post_id IN (SELECT id FROM posts WHERE bot_id = ?)
        ORDER BY most_recent_attempt DESC, id DESC
        LIMIT 1;
    `, botID)
	switch {
	case err == nil:
		stats.MostRecentAttempt = latest.MostRecentAttempt
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("failed to find latest attempt for bot %d: %w", botID, err)
	}
	return &stats, nil
}

func utcNullTime(t *sql.NullTime) {
	if t.Valid {
		t.Time = t.Time.UTC()
	}
}
