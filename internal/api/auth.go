package api

import (
	"context"
	"fmt"
	"net/http"
)

// Login exchanges a user name and password for tokens.
func (c *Client) Login(ctx context.Context, userName, password string) (*AuthResult, error) {
	in := map[string]string{"userName": userName, "password": password}
	return c.authenticate(ctx, "/auth/login", in)
}

// GoogleLogin forwards a provider credential. A 409 response (check with
// IsConflict) means the derived user name is taken.
func (c *Client) GoogleLogin(ctx context.Context, credential string) (*AuthResult, error) {
	return c.authenticate(ctx, "/auth/google", map[string]string{"credential": credential})
}

// CompleteGoogleLogin retries a conflicted provider login with a chosen name.
func (c *Client) CompleteGoogleLogin(ctx context.Context, credential, newUsername string) (*AuthResult, error) {
	in := map[string]string{"credential": credential, "newUsername": newUsername}
	return c.authenticate(ctx, "/auth/google/complete", in)
}

func (c *Client) authenticate(ctx context.Context, path string, in interface{}) (*AuthResult, error) {
	var out AuthResult
	if err := c.sendJSON(ctx, http.MethodPost, path, false, in, &out); err != nil {
		return nil, err
	}
	if !out.valid() {
		return nil, fmt.Errorf("%s: %w", path, ErrMalformedResponse)
	}
	return &out, nil
}

// Logout invalidates a refresh token on the server.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	in := map[string]string{"refreshToken": refreshToken}
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/logout", false, in, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Register creates a password account.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	f := newForm()
	f.field("email", reg.Email)
	f.field("userName", reg.UserName)
	f.field("password", reg.Password)
	f.field("confirmPassword", reg.ConfirmPassword)
	f.file("profilePicture", reg.PicturePath)
	body, contentType, err := f.encode()
	if err != nil {
		return fmt.Errorf("building registration: %w", err)
	}
	err = c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: body, contentType: contentType}, nil)
	if err != nil {
		return fmt.Errorf("registering %s: %w", reg.UserName, err)
	}
	return nil
}
