package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrUserNotFound      = errors.New("user not found")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s %s", e.StatusCode, e.Method, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s %s: %s", e.StatusCode, e.Method, e.URL, e.Body)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsConflict reports a 409, which the provider login uses for username
// collisions.
func IsConflict(err error) bool {
	return IsStatus(err, http.StatusConflict)
}
