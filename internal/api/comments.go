package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ListComments fetches the comments on a post.
func (c *Client) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	var comments []Comment
	if err := c.get(ctx, "/comments/post/"+url.PathEscape(postID), false, &comments); err != nil {
		return nil, fmt.Errorf("fetching comments for %s: %w", postID, err)
	}
	return comments, nil
}

// CreateComment adds a comment.
func (c *Client) CreateComment(ctx context.Context, d CommentDraft) (*Comment, error) {
	var out Comment
	if err := c.sendJSON(ctx, http.MethodPost, "/comments", true, d, &out); err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}
	return &out, nil
}

// UpdateComment replaces a comment's content.
func (c *Client) UpdateComment(ctx context.Context, id string, d CommentDraft) (*Comment, error) {
	var out Comment
	if err := c.sendJSON(ctx, http.MethodPut, "/comments/"+url.PathEscape(id), true, d, &out); err != nil {
		return nil, fmt.Errorf("updating comment %s: %w", id, err)
	}
	return &out, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/comments/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("deleting comment %s: %w", id, err)
	}
	return nil
}

// CommentCounts fetches comment counts for several posts concurrently.
// Posts whose fetch fails are left out of the result.
func (c *Client) CommentCounts(ctx context.Context, postIDs []string) (map[string]int, error) {
	var (
		mu     sync.Mutex
		counts = make(map[string]int, len(postIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, id := range postIDs {
		g.Go(func() error {
			comments, err := c.ListComments(gctx, id)
			if err != nil {
				c.log.Debug().Err(err).Str("post", id).Msg("comment count unavailable")
				return nil
			}
			mu.Lock()
			counts[id] = len(comments)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return counts, err
	}
	return counts, ctx.Err()
}
