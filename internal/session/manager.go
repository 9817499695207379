// Package session owns the logged-in user. It mirrors the session into
// durable storage, restores it on start, reconciles it with the backend and
// tells subscribers whenever it changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fragmede/astroshare/internal/api"
)

// Backend is the subset of the API the manager talks to.
type Backend interface {
	Login(ctx context.Context, userName, password string) (*api.AuthResult, error)
	GoogleLogin(ctx context.Context, credential string) (*api.AuthResult, error)
	CompleteGoogleLogin(ctx context.Context, credential, newUsername string) (*api.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, userName string) (*api.User, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithAssetBaseURL sets the base that relative avatar paths resolve against.
func WithAssetBaseURL(base string) Option {
	return func(m *Manager) { m.assetBase = base }
}

// WithLogger sets the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager is the single owner of the Session. All methods are safe for
// concurrent use.
type Manager struct {
	backend   Backend
	store     Storage
	assetBase string
	log       zerolog.Logger

	mu      sync.Mutex
	session Session
	phase   Phase
	pending string // provider credential awaiting a username choice
	gen     uint64
	cancel  context.CancelFunc
	version uint64
	subs    map[int]func(Session)
	nextSub int

	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a logged-out manager. Call Restore to load a persisted session.
func New(backend Backend, store Storage, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		store:   store,
		log:     zerolog.Nop(),
		subs:    make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns a snapshot of the session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Phase returns the login phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// PendingProviderLogin reports whether a provider login waits for
// CompleteProviderLogin.
func (m *Manager) PendingProviderLogin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != ""
}

// Subscribe registers fn to be called with the new session after every
// change. fn runs outside the manager's lock but must not call Login,
// Logout or RefreshUserData synchronously. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Restore loads the persisted identity into memory without contacting the
// backend. A half-written identity (name without id) is ignored.
func (m *Manager) Restore(ctx context.Context) error {
	values := make(map[string]string, 4)
	for _, k := range []string{KeyUserName, KeyUserID, KeyProfilePictureURL, KeyAccountKind} {
		v, _, err := m.store.Get(ctx, k)
		if err != nil {
			return fmt.Errorf("restoring session: %w", err)
		}
		values[k] = v
	}
	if values[KeyUserName] == "" || values[KeyUserID] == "" {
		return nil
	}

	acct := newAccount(AccountKind(values[KeyAccountKind]), Identity{
		UserID:            values[KeyUserID],
		UserName:          values[KeyUserName],
		ProfilePictureURL: ResolveAvatarURL(m.assetBase, values[KeyProfilePictureURL]),
	})

	m.mu.Lock()
	if m.session.LoggedIn() || m.phase == PhaseAuthenticating {
		m.mu.Unlock()
		return nil
	}
	m.session = Session{Account: acct}
	m.phase = PhaseAuthenticated
	m.version++
	v, s, subs := m.version, m.session, m.subscribers()
	m.mu.Unlock()

	m.notify(v, s, subs)
	return nil
}

// Login authenticates with a user name and password.
func (m *Manager) Login(ctx context.Context, creds PasswordCredentials) error {
	opCtx, gen, done := m.beginExchange(ctx)
	defer done()

	res, err := m.backend.Login(opCtx, creds.UserName, creds.Password)
	if err != nil {
		m.log.Info().Err(err).Str("user", creds.UserName).Msg("password login failed")
		return m.fail(gen, fmt.Errorf("%w: %w", ErrAuthenticationRejected, err))
	}
	return m.establish(opCtx, gen, res, KindLocal)
}

// LoginWithProvider forwards an identity-provider credential. When the
// derived user name is taken the credential is held, the phase becomes
// PhaseAwaitingUsernameChoice and ErrUsernameChoiceRequired is returned.
// A credential held from an earlier attempt is dropped first.
func (m *Manager) LoginWithProvider(ctx context.Context, credential string) error {
	if credential == "" {
		return fmt.Errorf("%w: empty provider credential", ErrAuthenticationRejected)
	}

	opCtx, gen, done := m.beginExchange(ctx)
	defer done()

	res, err := m.backend.GoogleLogin(opCtx, credential)
	if api.IsConflict(err) {
		return m.awaitUsername(gen, credential, err)
	}
	if err != nil {
		m.log.Info().Err(err).Msg("provider login failed")
		return m.fail(gen, fmt.Errorf("%w: %w", ErrAuthenticationRejected, err))
	}
	return m.establish(opCtx, gen, res, KindFederated)
}

// CompleteProviderLogin retries the held provider credential with a new
// user name. On failure the credential stays held so another name can be
// tried.
func (m *Manager) CompleteProviderLogin(ctx context.Context, newUsername string) error {
	m.mu.Lock()
	credential := m.pending
	m.mu.Unlock()
	if credential == "" {
		return ErrNoPendingUsernameChoice
	}

	newUsername = strings.TrimSpace(newUsername)
	if newUsername == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUsername)
	}

	opCtx, gen, done := m.begin(ctx, true)
	defer done()

	res, err := m.backend.CompleteGoogleLogin(opCtx, credential, newUsername)
	if api.IsConflict(err) {
		return m.awaitUsername(gen, credential, err)
	}
	if err != nil {
		m.log.Info().Err(err).Str("user", newUsername).Msg("provider login completion failed")
		return m.fail(gen, fmt.Errorf("%w: %w", ErrAuthenticationRejected, err))
	}
	return m.establish(opCtx, gen, res, KindFederated)
}

// AbandonProviderLogin drops a held provider credential. An operation in
// flight is superseded.
func (m *Manager) AbandonProviderLogin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == "" && m.phase != PhaseAuthenticating {
		return
	}
	m.supersede()
	m.pending = ""
	m.phase = m.restingPhase()
}

// Logout clears the session locally and then tells the backend. The local
// clear always happens; the backend call is best effort. Without a stored
// refresh token nothing happens and ErrNoRefreshToken is returned.
//
// A failed storage delete is retried once, detached from ctx. If that fails
// too the in-memory session is still cleared but the identity keys remain
// on disk, so the next Restore brings the user back; the error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	refreshToken, _, err := m.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("reading refresh token: %w", err)
	}
	if refreshToken == "" {
		m.log.Warn().Msg("logout requested without a refresh token")
		return ErrNoRefreshToken
	}

	m.mu.Lock()
	m.supersede()
	m.gen++
	gen := m.gen
	opCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	storeErr := m.store.Update(opCtx, nil, identityKeys)
	if storeErr != nil {
		m.log.Warn().Err(storeErr).Msg("clearing stored session failed, retrying")
		storeErr = m.store.Update(context.WithoutCancel(opCtx), nil, identityKeys)
	}
	changed := m.session.LoggedIn()
	m.session = Session{}
	m.pending = ""
	m.phase = PhaseIdle
	if changed {
		m.version++
	}
	v, s, subs := m.version, m.session, m.subscribers()
	m.mu.Unlock()

	defer m.finish(gen, cancel)
	if changed {
		m.notify(v, s, subs)
	}

	if err := m.backend.Logout(opCtx, refreshToken); err != nil {
		m.log.Warn().Err(err).Msg("server logout failed")
	}
	if storeErr != nil {
		m.log.Error().Err(storeErr).Msg("clearing stored session failed")
		return fmt.Errorf("clearing stored session: %w", storeErr)
	}
	return nil
}

// RefreshUserData reconciles the session with the backend's record for the
// stored user name. Without a stored user name it does nothing. On failure
// the session and storage are left untouched.
func (m *Manager) RefreshUserData(ctx context.Context) error {
	userName, _, err := m.store.Get(ctx, KeyUserName)
	if err != nil {
		return fmt.Errorf("reading %s: %w", KeyUserName, err)
	}
	if userName == "" {
		return nil
	}

	opCtx, gen, done := m.begin(ctx, false)
	defer done()

	u, err := m.backend.GetUser(opCtx, userName)
	if err == nil && (u.ID == "" || u.UserName == "") {
		err = api.ErrMalformedResponse
	}
	if err != nil {
		m.log.Warn().Err(err).Str("user", userName).Msg("refreshing user data failed")
		return m.fail(gen, fmt.Errorf("refreshing user data: %w", err))
	}

	kind := KindLocal
	if u.GoogleID != "" {
		kind = KindFederated
	}
	return m.adopt(opCtx, gen, u, kind)
}

// ApplyProfile adopts the user record returned by a profile update, so a
// renamed account keeps resolving. Tokens are untouched. A record without
// googleId keeps the current account kind.
func (m *Manager) ApplyProfile(ctx context.Context, u api.User) error {
	if u.ID == "" || u.UserName == "" {
		return fmt.Errorf("applying profile: %w", api.ErrMalformedResponse)
	}

	m.mu.Lock()
	kind := KindLocal
	if m.session.LoggedIn() {
		kind = m.session.Account.Kind()
	}
	m.mu.Unlock()
	if u.GoogleID != "" {
		kind = KindFederated
	}

	opCtx, gen, done := m.begin(ctx, false)
	defer done()
	return m.adopt(opCtx, gen, &u, kind)
}

func (m *Manager) adopt(ctx context.Context, gen uint64, u *api.User, kind AccountKind) error {
	id := Identity{
		UserID:            u.ID,
		UserName:          u.UserName,
		ProfilePictureURL: ResolveAvatarURL(m.assetBase, u.ProfilePictureURL),
	}
	set := map[string]string{
		KeyUserName:    id.UserName,
		KeyUserID:      id.UserID,
		KeyAccountKind: string(kind),
	}
	remove := optionalSet(set, nil, KeyProfilePictureURL, id.ProfilePictureURL)
	return m.commit(ctx, gen, set, remove, newAccount(kind, id), false)
}

// AccessTokenExpiry returns the exp claim of the stored access token.
// ok is false when no token is stored.
func (m *Manager) AccessTokenExpiry(ctx context.Context) (exp time.Time, ok bool, err error) {
	token, _, err := m.store.Get(ctx, KeyAccessToken)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading %s: %w", KeyAccessToken, err)
	}
	if token == "" {
		return time.Time{}, false, nil
	}
	exp, err = tokenExpiry(token)
	if err != nil {
		return time.Time{}, false, err
	}
	return exp, true, nil
}

func (m *Manager) establish(ctx context.Context, gen uint64, res *api.AuthResult, kind AccountKind) error {
	id := Identity{
		UserID:            res.ID,
		UserName:          res.UserName,
		ProfilePictureURL: ResolveAvatarURL(m.assetBase, res.ProfilePictureURL),
	}
	set := map[string]string{
		KeyUserName:     id.UserName,
		KeyUserID:       id.UserID,
		KeyAccessToken:  res.AccessToken,
		KeyRefreshToken: res.RefreshToken,
		KeyAccountKind:  string(kind),
	}
	remove := optionalSet(set, nil, KeyProfilePictureURL, id.ProfilePictureURL)

	if err := m.commit(ctx, gen, set, remove, newAccount(kind, id), true); err != nil {
		if errors.Is(err, ErrSuperseded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrAuthenticationRejected, err)
	}
	m.log.Info().Str("user", id.UserName).Str("kind", string(kind)).Msg("logged in")
	return nil
}

// commit writes storage and swaps the in-memory session under one lock.
// clearPending ends any provider login awaiting a username.
func (m *Manager) commit(ctx context.Context, gen uint64, set map[string]string, remove []string, acct Account, clearPending bool) error {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return ErrSuperseded
	}
	if err := m.store.Update(ctx, set, remove); err != nil {
		m.phase = m.restingPhase()
		m.mu.Unlock()
		return fmt.Errorf("persisting session: %w", err)
	}

	next := Session{Account: acct}
	changed := m.session != next
	m.session = next
	if clearPending {
		m.pending = ""
	}
	m.phase = m.restingPhase()
	if changed {
		m.version++
	}
	v, subs := m.version, m.subscribers()
	m.mu.Unlock()

	if changed {
		m.notify(v, next, subs)
	}
	return nil
}

func (m *Manager) awaitUsername(gen uint64, credential string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return ErrSuperseded
	}
	m.pending = credential
	m.phase = PhaseAwaitingUsernameChoice
	m.log.Info().Msg("provider login needs a new username")
	return fmt.Errorf("%w: %w", ErrUsernameChoiceRequired, cause)
}

func (m *Manager) fail(gen uint64, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return ErrSuperseded
	}
	m.phase = m.restingPhase()
	return err
}

// begin supersedes the operation in flight and starts a new one.
func (m *Manager) begin(ctx context.Context, authenticating bool) (context.Context, uint64, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beginLocked(ctx, authenticating)
}

// beginExchange starts a fresh login exchange. Any held provider
// credential belongs to the exchange being replaced and is dropped.
func (m *Manager) beginExchange(ctx context.Context) (context.Context, uint64, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = ""
	return m.beginLocked(ctx, true)
}

// Callers hold m.mu.
func (m *Manager) beginLocked(ctx context.Context, authenticating bool) (context.Context, uint64, func()) {
	m.supersede()
	m.gen++
	gen := m.gen
	opCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	if authenticating {
		m.phase = PhaseAuthenticating
	}
	return opCtx, gen, func() { m.finish(gen, cancel) }
}

func (m *Manager) finish(gen uint64, cancel context.CancelFunc) {
	cancel()
	m.mu.Lock()
	if m.gen == gen {
		m.cancel = nil
	}
	m.mu.Unlock()
}

// supersede cancels the operation in flight and invalidates its result.
// Callers hold m.mu.
func (m *Manager) supersede() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
		m.gen++
	}
	if m.phase == PhaseAuthenticating {
		m.phase = m.restingPhase()
	}
}

// restingPhase is the phase implied by the current state when no
// operation is running. Callers hold m.mu.
func (m *Manager) restingPhase() Phase {
	switch {
	case m.pending != "":
		return PhaseAwaitingUsernameChoice
	case m.session.LoggedIn():
		return PhaseAuthenticated
	default:
		return PhaseIdle
	}
}

// subscribers copies the subscriber list. Callers hold m.mu.
func (m *Manager) subscribers() []func(Session) {
	subs := make([]func(Session), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	return subs
}

// notify delivers s unless a newer version was already delivered.
func (m *Manager) notify(version uint64, s Session, subs []func(Session)) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if version <= m.delivered {
		return
	}
	m.delivered = version
	for _, fn := range subs {
		fn(s)
	}
}
