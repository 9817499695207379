package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListPosts fetches all posts, newest first as the server orders them.
// A non-empty sender restricts the list to that user's posts.
func (c *Client) ListPosts(ctx context.Context, sender string) ([]Post, error) {
	path := "/posts"
	if sender != "" {
		path += "?" + url.Values{"sender": {sender}}.Encode()
	}
	var posts []Post
	if err := c.get(ctx, path, false, &posts); err != nil {
		return nil, fmt.Errorf("fetching posts: %w", err)
	}
	return posts, nil
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, d PostDraft) (*Post, error) {
	return c.writePost(ctx, http.MethodPost, "/posts", d)
}

// UpdatePost edits an existing post.
func (c *Client) UpdatePost(ctx context.Context, id string, d PostDraft) (*Post, error) {
	return c.writePost(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), d)
}

func (c *Client) writePost(ctx context.Context, method, path string, d PostDraft) (*Post, error) {
	f := newForm()
	f.field("title", d.Title)
	f.field("content", d.Content)
	f.file("photo", d.PhotoPath)
	if method == http.MethodPut {
		f.field("deletePhoto", strconv.FormatBool(d.DeletePhoto))
	}
	body, contentType, err := f.encode()
	if err != nil {
		return nil, fmt.Errorf("building post: %w", err)
	}
	var p Post
	err = c.do(ctx, request{method: method, path: path, body: body, contentType: contentType, auth: true}, &p)
	if err != nil {
		return nil, fmt.Errorf("saving post: %w", err)
	}
	return &p, nil
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/posts/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("deleting post %s: %w", id, err)
	}
	return nil
}

// ToggleLike likes or unlikes a post for userName and returns the post as
// the server now has it.
func (c *Client) ToggleLike(ctx context.Context, id, userName string) (*Post, error) {
	var p Post
	in := map[string]string{"username": userName}
	if err := c.sendJSON(ctx, http.MethodPost, "/posts/like/"+url.PathEscape(id), true, in, &p); err != nil {
		return nil, fmt.Errorf("toggling like on %s: %w", id, err)
	}
	return &p, nil
}
