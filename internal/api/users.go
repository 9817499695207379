package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GetUser fetches the canonical record for userName. The endpoint answers
// with an array; its first element is the record.
func (c *Client) GetUser(ctx context.Context, userName string) (*User, error) {
	var users []User
	if err := c.get(ctx, "/users/"+url.PathEscape(userName), true, &users); err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", userName, err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("fetching user %s: %w", userName, ErrUserNotFound)
	}
	return &users[0], nil
}

// UpdateUser edits a password account's password and avatar.
func (c *Client) UpdateUser(ctx context.Context, userName string, upd LocalProfileUpdate) (*User, error) {
	f := newForm()
	f.optional("password", upd.Password)
	if upd.PicturePath != "" {
		f.file("profilePicture", upd.PicturePath)
		f.optional("oldProfilePictureUrl", upd.OldPictureURL)
	}
	return c.putProfile(ctx, "/users/"+url.PathEscape(userName), f)
}

// UpdateGoogleUser edits a provider account's name, bio and avatar.
func (c *Client) UpdateGoogleUser(ctx context.Context, userName string, upd FederatedProfileUpdate) (*User, error) {
	f := newForm()
	f.field("userName", upd.UserName)
	f.field("bio", upd.Bio)
	f.file("profilePicture", upd.PicturePath)
	return c.putProfile(ctx, "/users/google/"+url.PathEscape(userName), f)
}

func (c *Client) putProfile(ctx context.Context, path string, f *form) (*User, error) {
	body, contentType, err := f.encode()
	if err != nil {
		return nil, fmt.Errorf("building profile update: %w", err)
	}
	var u User
	err = c.do(ctx, request{method: http.MethodPut, path: path, body: body, contentType: contentType, auth: true}, &u)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return &u, nil
}
