package session

import (
	"context"
	"fmt"

	"github.com/fragmede/astroshare/internal/api"
)

// Persisted keys. The manager is their only writer.
const (
	KeyUserName          = "userName"
	KeyUserID            = "userId"
	KeyProfilePictureURL = "profilePictureUrl"
	KeyAccessToken       = "accessToken"
	KeyRefreshToken      = "refreshToken"
	KeyAccountKind       = "accountKind"
)

var identityKeys = []string{
	KeyUserName,
	KeyUserID,
	KeyProfilePictureURL,
	KeyAccessToken,
	KeyRefreshToken,
	KeyAccountKind,
}

// Storage is the durable key-value store the session is mirrored into.
// Update must apply set and remove atomically.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Update(ctx context.Context, set map[string]string, remove []string) error
}

// StoredTokens returns a token source that reads the access token from
// storage at call time.
func StoredTokens(s Storage) api.TokenSource {
	return storedTokens{s: s}
}

type storedTokens struct {
	s Storage
}

func (t storedTokens) AccessToken(ctx context.Context) (string, error) {
	token, _, err := t.s.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", KeyAccessToken, err)
	}
	return token, nil
}

// optionalSet puts value under key in set, or schedules key for removal when
// value is empty.
func optionalSet(set map[string]string, remove []string, key, value string) []string {
	if value == "" {
		return append(remove, key)
	}
	set[key] = value
	return remove
}
