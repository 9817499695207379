package session

import "errors"

var (
	// ErrAuthenticationRejected covers every failed login: bad credentials,
	// transport errors and malformed responses.
	ErrAuthenticationRejected = errors.New("authentication rejected")

	// ErrUsernameChoiceRequired means the provider login collided with an
	// existing user name. Call CompleteProviderLogin with a new one.
	ErrUsernameChoiceRequired = errors.New("username already taken, choose another")

	ErrNoPendingUsernameChoice = errors.New("no provider login awaiting a username")
	ErrInvalidUsername         = errors.New("invalid username")

	// ErrNoRefreshToken is returned by Logout when nobody is logged in.
	// It is a warning; callers may ignore it.
	ErrNoRefreshToken = errors.New("no refresh token stored")

	// ErrSuperseded is returned by an operation whose result was discarded
	// because a newer operation started.
	ErrSuperseded = errors.New("superseded by a newer session operation")
)
