package session

import (
	"errors"
	"strings"
	"unicode"
)

// AccountKind tells password accounts apart from third-party identity
// accounts. The value is what gets persisted under KeyAccountKind.
type AccountKind string

const (
	KindLocal     AccountKind = "local"
	KindFederated AccountKind = "federated"
)

// Identity is the part of an account both kinds share.
type Identity struct {
	UserID            string
	UserName          string
	ProfilePictureURL string
}

// Account is either a LocalAccount or a FederatedAccount.
type Account interface {
	Kind() AccountKind
	Identity() Identity
}

// LocalAccount authenticates with a user name and password.
type LocalAccount struct {
	User Identity
}

func (a LocalAccount) Kind() AccountKind  { return KindLocal }
func (a LocalAccount) Identity() Identity { return a.User }

// FederatedAccount authenticates through the identity provider.
type FederatedAccount struct {
	User Identity
}

func (a FederatedAccount) Kind() AccountKind  { return KindFederated }
func (a FederatedAccount) Identity() Identity { return a.User }

func newAccount(kind AccountKind, id Identity) Account {
	if kind == KindFederated {
		return FederatedAccount{User: id}
	}
	return LocalAccount{User: id}
}

// Session is a snapshot of who is logged in. The zero value is logged out.
type Session struct {
	Account Account
}

// LoggedIn reports whether the session holds an account.
func (s Session) LoggedIn() bool { return s.Account != nil }

// Identity returns the account's identity, or the zero Identity when
// logged out.
func (s Session) Identity() Identity {
	if s.Account == nil {
		return Identity{}
	}
	return s.Account.Identity()
}

// UserName is shorthand for Identity().UserName.
func (s Session) UserName() string { return s.Identity().UserName }

// UserID is shorthand for Identity().UserID.
func (s Session) UserID() string { return s.Identity().UserID }

// IsGoogleUser is true exactly for federated accounts.
func (s Session) IsGoogleUser() bool {
	_, ok := s.Account.(FederatedAccount)
	return ok
}

// Phase is the login state machine position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAuthenticating
	PhaseAuthenticated
	PhaseAwaitingUsernameChoice
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAwaitingUsernameChoice:
		return "awaiting username choice"
	default:
		return "unknown"
	}
}

// PasswordCredentials is the input of a password login.
type PasswordCredentials struct {
	UserName string
	Password string
}

const minPasswordLen = 6

var (
	errUserNameRequired   = errors.New("username is required")
	errUserNameWhitespace = errors.New("username cannot contain spaces")
	errPasswordTooShort   = errors.New("password must be at least 6 characters")
)

// Validate applies the login form rules: a user name without whitespace and
// a password of at least six characters.
func (c PasswordCredentials) Validate() error {
	if err := ValidateUserName(c.UserName); err != nil {
		return err
	}
	return ValidatePassword(c.Password)
}

// ValidateUserName rejects empty names and names containing whitespace.
func ValidateUserName(name string) error {
	if name == "" {
		return errUserNameRequired
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return errUserNameWhitespace
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(pw string) error {
	if len([]rune(pw)) < minPasswordLen {
		return errPasswordTooShort
	}
	return nil
}
