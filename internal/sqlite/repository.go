package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blackmichael/reader-tagsfeed/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	blog_id          INTEGER NOT NULL,
	post_id          INTEGER NOT NULL,
	feed_id          INTEGER NOT NULL DEFAULT 0,
	tag              TEXT    NOT NULL,
	title            TEXT    NOT NULL DEFAULT '',
	excerpt          TEXT    NOT NULL DEFAULT '',
	site_name        TEXT    NOT NULL DEFAULT '',
	url              TEXT    NOT NULL DEFAULT '',
	featured_image   TEXT    NOT NULL DEFAULT '',
	published_at     INTEGER NOT NULL DEFAULT 0,
	like_count       INTEGER NOT NULL DEFAULT 0,
	liked_by_user    BOOLEAN NOT NULL DEFAULT 0,
	followed_by_user BOOLEAN NOT NULL DEFAULT 0,
	indexed_at       INTEGER NOT NULL,
	PRIMARY KEY (blog_id, post_id)
);
CREATE INDEX IF NOT EXISTS idx_posts_indexed_at ON posts(indexed_at DESC);
CREATE TABLE IF NOT EXISTS followed_tags (
	slug         TEXT PRIMARY KEY,
	display_name TEXT    NOT NULL DEFAULT '',
	position     INTEGER NOT NULL
);
`

// Repository implements domain.PostRepository and domain.TagRepository
// using an embedded SQLite database.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository opens (or creates) the SQLite database at path, applies the
// schema and returns a new Repository. The caller should call Close when
// the repository is no longer needed.
func NewRepository(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer keeps SQLite from returning SQLITE_BUSY under concurrent fetches
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SavePosts upserts posts fetched for a tag in one transaction.
func (r *Repository) SavePosts(ctx context.Context, tag string, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (blog_id, post_id, feed_id, tag, title, excerpt, site_name, url,
			featured_image, published_at, like_count, liked_by_user, followed_by_user, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (blog_id, post_id) DO UPDATE SET
			feed_id = excluded.feed_id,
			tag = excluded.tag,
			title = excluded.title,
			excerpt = excluded.excerpt,
			site_name = excluded.site_name,
			url = excluded.url,
			featured_image = excluded.featured_image,
			published_at = excluded.published_at,
			like_count = excluded.like_count,
			liked_by_user = excluded.liked_by_user,
			followed_by_user = excluded.followed_by_user,
			indexed_at = excluded.indexed_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	indexedAt := r.now().UTC().UnixMilli()
	for _, p := range posts {
		_, err := stmt.ExecContext(ctx,
			p.BlogID,
			p.PostID,
			p.FeedID,
			tag,
			p.Title,
			p.Excerpt,
			p.SiteName,
			p.URL,
			p.FeaturedImage,
			toMillis(p.Date),
			p.LikeCount,
			p.IsLikedByCurrentUser,
			p.IsFollowedByCurrentUser,
			indexedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert post %d/%d: %w", p.BlogID, p.PostID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetBlogPost returns a cached post or domain.ErrPostNotFound.
func (r *Repository) GetBlogPost(ctx context.Context, blogID, postID int64) (*domain.Post, error) {
	var (
		p           domain.Post
		publishedAt int64
		indexedAt   int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT blog_id, post_id, feed_id, title, excerpt, site_name, url, featured_image,
			published_at, like_count, liked_by_user, followed_by_user, indexed_at
		FROM posts
		WHERE blog_id = ? AND post_id = ?`,
		blogID, postID,
	).Scan(
		&p.BlogID,
		&p.PostID,
		&p.FeedID,
		&p.Title,
		&p.Excerpt,
		&p.SiteName,
		&p.URL,
		&p.FeaturedImage,
		&publishedAt,
		&p.LikeCount,
		&p.IsLikedByCurrentUser,
		&p.IsFollowedByCurrentUser,
		&indexedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query post %d/%d: %w", blogID, postID, err)
	}

	p.Date = fromMillis(publishedAt)
	p.IndexedAt = fromMillis(indexedAt)
	return &p, nil
}

// SetPostLiked updates the cached liked flag and like count of a post.
func (r *Repository) SetPostLiked(ctx context.Context, blogID, postID int64, liked bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts SET
			like_count = CASE
				WHEN liked_by_user = ? THEN like_count
				WHEN ? THEN like_count + 1
				ELSE MAX(like_count - 1, 0)
			END,
			liked_by_user = ?
		WHERE blog_id = ? AND post_id = ?`,
		liked, liked, liked, blogID, postID,
	)
	if err != nil {
		return fmt.Errorf("update like %d/%d: %w", blogID, postID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// DeleteOldPosts removes posts older than maxAge and any excess rows beyond
// maxRows, keeping the most recent posts. Returns the total number of rows deleted.
func (r *Repository) DeleteOldPosts(ctx context.Context, maxAge time.Duration, maxRows int) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete posts older than maxAge
	res, err := tx.ExecContext(ctx,
		`DELETE FROM posts WHERE indexed_at < ?`,
		r.now().UTC().Add(-maxAge).UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired posts: %w", err)
	}
	ttlDeleted, _ := res.RowsAffected()

	// Delete excess rows beyond maxRows, keeping the most recent
	res, err = tx.ExecContext(ctx, `
		DELETE FROM posts WHERE rowid IN (
			SELECT rowid FROM posts
			ORDER BY indexed_at DESC, blog_id DESC, post_id DESC
			LIMIT -1 OFFSET ?
		)`, maxRows,
	)
	if err != nil {
		return 0, fmt.Errorf("delete excess posts: %w", err)
	}
	capDeleted, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return ttlDeleted + capDeleted, nil
}

// GetFollowedTags returns followed tags in display order.
func (r *Repository) GetFollowedTags(ctx context.Context) ([]domain.ReaderTag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slug, display_name FROM followed_tags ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query followed tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.ReaderTag
	for rows.Next() {
		var t domain.ReaderTag
		if err := rows.Scan(&t.Slug, &t.DisplayName); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// ReplaceFollowedTags replaces the followed tags list, keeping the given
// order. Repeated slugs keep their first position.
func (r *Repository) ReplaceFollowedTags(ctx context.Context, tags []domain.ReaderTag) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM followed_tags`); err != nil {
		return fmt.Errorf("clear followed tags: %w", err)
	}

	for i, t := range tags {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO followed_tags (slug, display_name, position)
			VALUES (?, ?, ?)
			ON CONFLICT (slug) DO NOTHING`,
			t.Slug, t.DisplayName, i,
		)
		if err != nil {
			return fmt.Errorf("insert tag %q: %w", t.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
