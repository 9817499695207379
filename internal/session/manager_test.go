package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/store"
)

const assetBase = "http://backend.test/public"

// backend is a fake AstroShare server. Handlers are swapped per test; calls
// counts requests per route pattern.
type backend struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    map[string]int
}

func (b *backend) handle(pattern string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[pattern] = h
}

func (b *backend) count(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[pattern]
}

func (b *backend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

type fixture struct {
	mgr     *Manager
	db      *store.DB
	backend *backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	b := &backend{handlers: map[string]http.HandlerFunc{}, calls: map[string]int{}}
	mux := http.NewServeMux()
	for _, p := range []string{
		"POST /api/auth/login",
		"POST /api/auth/google",
		"POST /api/auth/google/complete",
		"POST /api/auth/logout",
		"GET /api/users/{name}",
	} {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.calls[p]++
			h := b.handlers[p]
			b.mu.Unlock()
			if h == nil {
				http.Error(w, "unexpected call", http.StatusTeapot)
				return
			}
			h(w, r)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	client := api.NewClient(srv.URL+"/api", api.WithTokenSource(StoredTokens(db)))
	mgr := New(client, db, WithAssetBaseURL(assetBase))
	return &fixture{mgr: mgr, db: db, backend: b}
}

func respond(status int, v interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func fakeAuth() api.AuthResult {
	return api.AuthResult{
		ID:                gofakeit.UUID(),
		UserName:          gofakeit.Username(),
		ProfilePictureURL: "uploads/" + gofakeit.Word() + ".png",
		AccessToken:       gofakeit.UUID(),
		RefreshToken:      gofakeit.UUID(),
	}
}

func (f *fixture) stored(t *testing.T) map[string]string {
	t.Helper()
	all := map[string]string{}
	for _, k := range identityKeys {
		v, ok, err := f.db.Get(context.Background(), k)
		require.NoError(t, err)
		if ok {
			all[k] = v
		}
	}
	return all
}

func (f *fixture) login(t *testing.T) api.AuthResult {
	t.Helper()
	res := fakeAuth()
	f.backend.handle("POST /api/auth/login", respond(http.StatusOK, res))
	require.NoError(t, f.mgr.Login(context.Background(), PasswordCredentials{UserName: res.UserName, Password: "secret1"}))
	return res
}

func TestLogin_PopulatesSessionAndStorage(t *testing.T) {
	f := newFixture(t)
	var seen []Session
	f.mgr.Subscribe(func(s Session) { seen = append(seen, s) })

	res := f.login(t)

	s := f.mgr.Current()
	require.True(t, s.LoggedIn())
	assert.Equal(t, res.ID, s.UserID())
	assert.Equal(t, res.UserName, s.UserName())
	assert.False(t, s.IsGoogleUser())
	assert.Equal(t, assetBase+"/"+res.ProfilePictureURL, s.Identity().ProfilePictureURL)
	assert.Equal(t, PhaseAuthenticated, f.mgr.Phase())

	assert.Equal(t, map[string]string{
		KeyUserName:          res.UserName,
		KeyUserID:            res.ID,
		KeyProfilePictureURL: assetBase + "/" + res.ProfilePictureURL,
		KeyAccessToken:       res.AccessToken,
		KeyRefreshToken:      res.RefreshToken,
		KeyAccountKind:       string(KindLocal),
	}, f.stored(t))

	require.Len(t, seen, 1)
	assert.Equal(t, s, seen[0])
}

func TestLogin_RejectedLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t)
	prev := f.login(t)
	before := f.mgr.Current()
	storedBefore := f.stored(t)

	f.backend.handle("POST /api/auth/login", respond(http.StatusUnauthorized, map[string]string{"message": "bad credentials"}))
	err := f.mgr.Login(context.Background(), PasswordCredentials{UserName: "someone", Password: "wrong-pw"})

	require.ErrorIs(t, err, ErrAuthenticationRejected)
	assert.True(t, api.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, before, f.mgr.Current())
	assert.Equal(t, storedBefore, f.stored(t))
	assert.Equal(t, prev.UserName, f.mgr.Current().UserName())
	assert.Equal(t, PhaseAuthenticated, f.mgr.Phase())
}

func TestLogin_MalformedResponseIsRejection(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/auth/login", respond(http.StatusOK, map[string]string{"userName": "half"}))

	err := f.mgr.Login(context.Background(), PasswordCredentials{UserName: "half", Password: "secret1"})
	require.ErrorIs(t, err, ErrAuthenticationRejected)
	assert.False(t, f.mgr.Current().LoggedIn())
	assert.Equal(t, PhaseIdle, f.mgr.Phase())
	assert.Empty(t, f.stored(t))
}

func TestLogin_MissingRefreshTokenIsRejected(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	before, storedBefore := f.mgr.Current(), f.stored(t)

	res := fakeAuth()
	res.RefreshToken = ""
	f.backend.handle("POST /api/auth/login", respond(http.StatusOK, res))
	err := f.mgr.Login(context.Background(), PasswordCredentials{UserName: res.UserName, Password: "secret1"})

	require.ErrorIs(t, err, ErrAuthenticationRejected)
	assert.ErrorIs(t, err, api.ErrMalformedResponse)
	assert.Equal(t, before, f.mgr.Current())
	assert.Equal(t, storedBefore, f.stored(t))
	assert.NotEmpty(t, f.stored(t)[KeyRefreshToken])
	assert.Equal(t, PhaseAuthenticated, f.mgr.Phase())
}

func TestLogin_AbsoluteAvatarPassesThrough(t *testing.T) {
	f := newFixture(t)
	res := fakeAuth()
	res.ProfilePictureURL = "https://lh3.googleusercontent.com/a/photo"
	f.backend.handle("POST /api/auth/login", respond(http.StatusOK, res))

	require.NoError(t, f.mgr.Login(context.Background(), PasswordCredentials{UserName: res.UserName, Password: "secret1"}))
	assert.Equal(t, res.ProfilePictureURL, f.mgr.Current().Identity().ProfilePictureURL)
}

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	gotToken := make(chan string, 1)
	f.backend.handle("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		gotToken <- in["refreshToken"]
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	var seen []Session
	f.mgr.Subscribe(func(s Session) { seen = append(seen, s) })

	require.NoError(t, f.mgr.Logout(context.Background()))

	assert.False(t, f.mgr.Current().LoggedIn())
	assert.Equal(t, PhaseIdle, f.mgr.Phase())
	assert.Empty(t, f.stored(t))
	assert.Equal(t, res.RefreshToken, <-gotToken)
	require.Len(t, seen, 1)
	assert.False(t, seen[0].LoggedIn())
}

func TestLogout_WithoutRefreshTokenIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Update(ctx, map[string]string{
		KeyUserName:    "ada",
		KeyUserID:      "u1",
		KeyAccessToken: "at",
	}, nil))
	require.NoError(t, f.mgr.Restore(ctx))
	require.True(t, f.mgr.Current().LoggedIn())
	before := f.mgr.Current()
	calls := f.backend.total()

	err := f.mgr.Logout(context.Background())

	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Equal(t, before, f.mgr.Current())
	assert.Equal(t, calls, f.backend.total())
	assert.Zero(t, f.backend.count("POST /api/auth/logout"))
}

func TestRefreshUserData_ProviderFlag(t *testing.T) {
	tests := []struct {
		name     string
		googleID string
		want     bool
		kind     AccountKind
	}{
		{name: "google id present", googleID: "1099", want: true, kind: KindFederated},
		{name: "google id absent", googleID: "", want: false, kind: KindLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.login(t)
			f.backend.handle("GET /api/users/{name}", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, res.UserName, r.PathValue("name"))
				assert.Equal(t, "JWT "+res.AccessToken, r.Header.Get("Authorization"))
				respond(http.StatusOK, []api.User{{
					ID:                res.ID,
					UserName:          res.UserName,
					ProfilePictureURL: "p.png",
					GoogleID:          tt.googleID,
				}})(w, r)
			})

			require.NoError(t, f.mgr.RefreshUserData(context.Background()))

			s := f.mgr.Current()
			assert.Equal(t, tt.want, s.IsGoogleUser())
			assert.Equal(t, tt.kind, s.Account.Kind())
			assert.Equal(t, assetBase+"/p.png", s.Identity().ProfilePictureURL)
			assert.Equal(t, string(tt.kind), f.stored(t)[KeyAccountKind])
			assert.Equal(t, res.AccessToken, f.stored(t)[KeyAccessToken])
		})
	}
}

func TestRefreshUserData_Idempotent(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	f.backend.handle("GET /api/users/{name}", respond(http.StatusOK, []api.User{{
		ID: res.ID, UserName: res.UserName, ProfilePictureURL: "https://cdn.test/a.png", Bio: "stars",
	}}))

	var notified int
	f.mgr.Subscribe(func(Session) { notified++ })

	require.NoError(t, f.mgr.RefreshUserData(context.Background()))
	first := f.mgr.Current()
	storedFirst := f.stored(t)

	require.NoError(t, f.mgr.RefreshUserData(context.Background()))
	assert.Equal(t, first, f.mgr.Current())
	assert.Equal(t, storedFirst, f.stored(t))
	assert.Equal(t, 1, notified)
}

func TestRefreshUserData_NoStoredUserIsNoop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.mgr.RefreshUserData(context.Background()))
	assert.Zero(t, f.backend.total())
	assert.False(t, f.mgr.Current().LoggedIn())
}

func TestRefreshUserData_FailureKeepsState(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: respond(http.StatusInternalServerError, map[string]string{"message": "down"})},
		{name: "empty array", handler: respond(http.StatusOK, []api.User{})},
		{name: "missing id", handler: respond(http.StatusOK, []api.User{{UserName: "x"}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.login(t)
			before := f.mgr.Current()
			storedBefore := f.stored(t)
			f.backend.handle("GET /api/users/{name}", tt.handler)

			require.Error(t, f.mgr.RefreshUserData(context.Background()))
			assert.Equal(t, before, f.mgr.Current())
			assert.Equal(t, storedBefore, f.stored(t))
		})
	}
}

func TestProviderLogin_Success(t *testing.T) {
	f := newFixture(t)
	res := fakeAuth()
	f.backend.handle("POST /api/auth/google", respond(http.StatusOK, res))

	require.NoError(t, f.mgr.LoginWithProvider(context.Background(), "id-token"))

	s := f.mgr.Current()
	assert.True(t, s.IsGoogleUser())
	assert.Equal(t, FederatedAccount{User: Identity{
		UserID: res.ID, UserName: res.UserName, ProfilePictureURL: assetBase + "/" + res.ProfilePictureURL,
	}}, s.Account)
	assert.Equal(t, string(KindFederated), f.stored(t)[KeyAccountKind])
}

func TestProviderLogin_EmptyCredential(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.LoginWithProvider(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuthenticationRejected)
	assert.Zero(t, f.backend.total())
}

func TestProviderLogin_ConflictThenComplete(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/auth/google", respond(http.StatusConflict, map[string]string{"message": "username taken"}))

	err := f.mgr.LoginWithProvider(context.Background(), "cred-1")

	require.ErrorIs(t, err, ErrUsernameChoiceRequired)
	assert.NotErrorIs(t, err, ErrAuthenticationRejected)
	assert.False(t, f.mgr.Current().LoggedIn())
	assert.Empty(t, f.stored(t))
	assert.Equal(t, PhaseAwaitingUsernameChoice, f.mgr.Phase())
	assert.True(t, f.mgr.PendingProviderLogin())

	res := fakeAuth()
	f.backend.handle("POST /api/auth/google/complete", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "cred-1", in["credential"])
		assert.Equal(t, res.UserName, in["newUsername"])
		respond(http.StatusOK, res)(w, r)
	})

	require.NoError(t, f.mgr.CompleteProviderLogin(context.Background(), "  "+res.UserName+" "))

	// Same result a direct provider login with this response would give.
	direct := newFixture(t)
	direct.backend.handle("POST /api/auth/google", respond(http.StatusOK, res))
	require.NoError(t, direct.mgr.LoginWithProvider(context.Background(), "cred-1"))

	assert.Equal(t, direct.mgr.Current(), f.mgr.Current())
	assert.Equal(t, direct.stored(t), f.stored(t))
	assert.Equal(t, PhaseAuthenticated, f.mgr.Phase())
	assert.False(t, f.mgr.PendingProviderLogin())
}

func TestCompleteProviderLogin_FailuresKeepPending(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/auth/google", respond(http.StatusConflict, nil))
	require.ErrorIs(t, f.mgr.LoginWithProvider(context.Background(), "cred"), ErrUsernameChoiceRequired)

	err := f.mgr.CompleteProviderLogin(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	assert.Zero(t, f.backend.count("POST /api/auth/google/complete"))

	f.backend.handle("POST /api/auth/google/complete", respond(http.StatusConflict, nil))
	err = f.mgr.CompleteProviderLogin(context.Background(), "taken")
	assert.ErrorIs(t, err, ErrUsernameChoiceRequired)
	assert.True(t, f.mgr.PendingProviderLogin())

	f.backend.handle("POST /api/auth/google/complete", respond(http.StatusBadRequest, nil))
	err = f.mgr.CompleteProviderLogin(context.Background(), "bad name")
	assert.ErrorIs(t, err, ErrAuthenticationRejected)
	assert.True(t, f.mgr.PendingProviderLogin())
	assert.Equal(t, PhaseAwaitingUsernameChoice, f.mgr.Phase())
	assert.False(t, f.mgr.Current().LoggedIn())
}

func TestProviderLogin_NewAttemptDropsHeldCredential(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/auth/google", respond(http.StatusConflict, nil))
	require.ErrorIs(t, f.mgr.LoginWithProvider(context.Background(), "cred-old"), ErrUsernameChoiceRequired)

	f.backend.handle("POST /api/auth/google", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "cred-new", in["credential"])
		http.Error(w, "invalid credential", http.StatusUnauthorized)
	})
	err := f.mgr.LoginWithProvider(context.Background(), "cred-new")

	require.ErrorIs(t, err, ErrAuthenticationRejected)
	assert.Equal(t, PhaseIdle, f.mgr.Phase())
	assert.False(t, f.mgr.PendingProviderLogin())

	err = f.mgr.CompleteProviderLogin(context.Background(), "fresh")
	assert.ErrorIs(t, err, ErrNoPendingUsernameChoice)
	assert.Zero(t, f.backend.count("POST /api/auth/google/complete"))
}

func TestLogin_PasswordDropsHeldCredential(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/auth/google", respond(http.StatusConflict, nil))
	require.ErrorIs(t, f.mgr.LoginWithProvider(context.Background(), "cred"), ErrUsernameChoiceRequired)

	f.backend.handle("POST /api/auth/login", respond(http.StatusUnauthorized, nil))
	err := f.mgr.Login(context.Background(), PasswordCredentials{UserName: "ada", Password: "secret1"})

	require.ErrorIs(t, err, ErrAuthenticationRejected)
	assert.Equal(t, PhaseIdle, f.mgr.Phase())
	assert.False(t, f.mgr.PendingProviderLogin())
}

func TestCompleteProviderLogin_WithoutPending(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.CompleteProviderLogin(context.Background(), "name")
	assert.ErrorIs(t, err, ErrNoPendingUsernameChoice)
	assert.Zero(t, f.backend.total())
}

func TestAbandonProviderLogin(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/auth/google", respond(http.StatusConflict, nil))
	require.ErrorIs(t, f.mgr.LoginWithProvider(context.Background(), "cred"), ErrUsernameChoiceRequired)

	f.mgr.AbandonProviderLogin()

	assert.False(t, f.mgr.PendingProviderLogin())
	assert.Equal(t, PhaseIdle, f.mgr.Phase())
	assert.ErrorIs(t, f.mgr.CompleteProviderLogin(context.Background(), "name"), ErrNoPendingUsernameChoice)
}

func TestLogin_SupersededByNewerLogin(t *testing.T) {
	f := newFixture(t)
	slow := fakeAuth()
	fast := fakeAuth()
	entered := make(chan struct{})

	f.backend.handle("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["userName"] == slow.UserName {
			close(entered)
			<-r.Context().Done()
			return
		}
		respond(http.StatusOK, fast)(w, r)
	})

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- f.mgr.Login(context.Background(), PasswordCredentials{UserName: slow.UserName, Password: "secret1"})
	}()
	<-entered

	require.NoError(t, f.mgr.Login(context.Background(), PasswordCredentials{UserName: fast.UserName, Password: "secret1"}))

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("superseded login did not return")
	}
	assert.Equal(t, fast.UserName, f.mgr.Current().UserName())
	assert.Equal(t, fast.AccessToken, f.stored(t)[KeyAccessToken])
}

func TestRestore_LoadsPersistedIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Update(ctx, map[string]string{
		KeyUserName:          "ada",
		KeyUserID:            "u1",
		KeyProfilePictureURL: "https://cdn.test/ada.png",
		KeyAccountKind:       string(KindFederated),
	}, nil))

	require.NoError(t, f.mgr.Restore(ctx))

	assert.Equal(t, FederatedAccount{User: Identity{UserID: "u1", UserName: "ada", ProfilePictureURL: "https://cdn.test/ada.png"}}, f.mgr.Current().Account)
	assert.Equal(t, PhaseAuthenticated, f.mgr.Phase())
	assert.Zero(t, f.backend.total())
}

func TestRestore_IgnoresHalfIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Update(ctx, map[string]string{KeyUserName: "ada"}, nil))

	require.NoError(t, f.mgr.Restore(ctx))
	assert.False(t, f.mgr.Current().LoggedIn())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := newFixture(t)
	var notified int
	unsubscribe := f.mgr.Subscribe(func(Session) { notified++ })
	unsubscribe()
	unsubscribe()

	f.login(t)
	assert.Zero(t, notified)
}

func TestAccessTokenExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok, err := f.mgr.AccessTokenExpiry(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	require.NoError(t, f.db.Update(ctx, map[string]string{KeyAccessToken: token}, nil))

	got, ok, err := f.mgr.AccessTokenExpiry(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestAccessTokenExpiry_Opaque(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Update(ctx, map[string]string{KeyAccessToken: "not-a-jwt"}, nil))

	_, _, err := f.mgr.AccessTokenExpiry(ctx)
	assert.Error(t, err)
}

func TestStoredTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := StoredTokens(f.db)

	tok, err := ts.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	res := f.login(t)
	tok, err = ts.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.AccessToken, tok)
}

type failingStorage struct {
	Storage
}

func (failingStorage) Update(context.Context, map[string]string, []string) error {
	return errors.New("disk full")
}

func TestLogin_StorageFailureLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t)
	res := fakeAuth()
	f.backend.handle("POST /api/auth/login", respond(http.StatusOK, res))
	mgr := New(f.mgr.backend, failingStorage{Storage: f.db}, WithAssetBaseURL(assetBase))
	err := mgr.Login(context.Background(), PasswordCredentials{UserName: res.UserName, Password: "secret1"})

	require.ErrorIs(t, err, ErrAuthenticationRejected)
	assert.False(t, mgr.Current().LoggedIn())
	assert.Equal(t, PhaseIdle, mgr.Phase())
}

func TestApplyProfile_RenameThenRefresh(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/auth/google", respond(http.StatusOK, api.AuthResult{
		ID: "u1", UserName: "old", AccessToken: "at", RefreshToken: "rt",
	}))
	require.NoError(t, f.mgr.LoginWithProvider(context.Background(), "cred"))

	require.NoError(t, f.mgr.ApplyProfile(context.Background(), api.User{ID: "u1", UserName: "new", ProfilePictureURL: "n.png"}))

	s := f.mgr.Current()
	assert.Equal(t, "new", s.UserName())
	assert.True(t, s.IsGoogleUser())
	assert.Equal(t, assetBase+"/n.png", s.Identity().ProfilePictureURL)
	assert.Equal(t, "at", f.stored(t)[KeyAccessToken])

	f.backend.handle("GET /api/users/{name}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "new", r.PathValue("name"))
		respond(http.StatusOK, []api.User{{ID: "u1", UserName: "new", GoogleID: "g", ProfilePictureURL: "n.png"}})(w, r)
	})
	require.NoError(t, f.mgr.RefreshUserData(context.Background()))
	assert.Equal(t, s, f.mgr.Current())
}

func TestApplyProfile_RejectsIncompleteRecord(t *testing.T) {
	f := newFixture(t)
	err := f.mgr.ApplyProfile(context.Background(), api.User{UserName: "x"})
	assert.ErrorIs(t, err, api.ErrMalformedResponse)
}

// flakyStorage fails the first failures calls to Update.
type flakyStorage struct {
	Storage
	failures int
}

func (s *flakyStorage) Update(ctx context.Context, set map[string]string, remove []string) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("database is locked")
	}
	return s.Storage.Update(ctx, set, remove)
}

func TestLogout_RetriesFailedClear(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.handle("POST /api/auth/logout", respond(http.StatusOK, nil))

	mgr := New(f.mgr.backend, &flakyStorage{Storage: f.db, failures: 1}, WithAssetBaseURL(assetBase))
	require.NoError(t, mgr.Restore(context.Background()))
	require.True(t, mgr.Current().LoggedIn())

	require.NoError(t, mgr.Logout(context.Background()))
	assert.False(t, mgr.Current().LoggedIn())
	assert.Empty(t, f.stored(t))
}

func TestLogout_ClearFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.handle("POST /api/auth/logout", respond(http.StatusOK, nil))

	mgr := New(f.mgr.backend, &flakyStorage{Storage: f.db, failures: 2}, WithAssetBaseURL(assetBase))
	require.NoError(t, mgr.Restore(context.Background()))

	err := mgr.Logout(context.Background())
	require.Error(t, err)
	assert.False(t, mgr.Current().LoggedIn())
	assert.NotEmpty(t, f.stored(t)[KeyRefreshToken])
}
