package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fragmede/astroshare/internal/api"
)

// GetPostList retrieves a cached post list.
// Returns (posts, isFresh, error). posts is nil on cache miss.
func (d *DB) GetPostList(ctx context.Context, listKey string, ttl time.Duration) ([]api.Post, bool, error) {
	row := d.db.QueryRowContext(ctx, `SELECT posts, fetched_at FROM post_lists WHERE list_key = ?`, listKey)

	var postsJSON string
	var fetchedAt int64
	err := row.Scan(&postsJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading post list %s: %w", listKey, err)
	}

	var posts []api.Post
	if err := json.Unmarshal([]byte(postsJSON), &posts); err != nil {
		return nil, false, fmt.Errorf("decoding post list %s: %w", listKey, err)
	}
	if posts == nil {
		posts = []api.Post{}
	}

	isFresh := time.Since(time.Unix(fetchedAt, 0)) < ttl
	return posts, isFresh, nil
}

// PutPostList stores a post list in the cache.
func (d *DB) PutPostList(ctx context.Context, listKey string, posts []api.Post) error {
	postsJSON, err := json.Marshal(posts)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `INSERT OR REPLACE INTO post_lists (list_key, posts, fetched_at) VALUES (?, ?, ?)`,
		listKey, string(postsJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("writing post list %s: %w", listKey, err)
	}
	return nil
}

// InvalidatePostLists drops every cached list so the next read refetches.
func (d *DB) InvalidatePostLists(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM post_lists`); err != nil {
		return fmt.Errorf("invalidating post lists: %w", err)
	}
	return nil
}
