// Package profile shows the signed-in user's identity and posts and edits
// their account.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/render"
	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/ui/messages"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE")).Bold(true).Padding(1, 0)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8FA3")).Bold(true).Width(10)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	postStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

var (
	errNothingToUpdate  = errors.New("nothing to update")
	errPasswordMismatch = errors.New("passwords do not match")
)

// Sessions is the part of the session manager the profile uses.
type Sessions interface {
	Current() session.Session
	AccessTokenExpiry(ctx context.Context) (time.Time, bool, error)
	ApplyProfile(ctx context.Context, u api.User) error
	RefreshUserData(ctx context.Context) error
}

// Backend is the user and post API the profile uses.
type Backend interface {
	GetUser(ctx context.Context, userName string) (*api.User, error)
	ListPosts(ctx context.Context, sender string) ([]api.Post, error)
	UpdateUser(ctx context.Context, userName string, upd api.LocalProfileUpdate) (*api.User, error)
	UpdateGoogleUser(ctx context.Context, userName string, upd api.FederatedProfileUpdate) (*api.User, error)
}

type userLoadedMsg struct {
	User *api.User
	Err  error
}

type expiryMsg struct {
	Expires time.Time
	OK      bool
}

// Model is the profile view.
type Model struct {
	session  session.Session
	user     *api.User
	posts    []api.Post
	expires  time.Time
	hasToken bool

	editing bool
	inputs  []textinput.Model
	focused int

	err      string
	notice   string
	saving   bool
	sessions Sessions
	backend  Backend
	width    int
	height   int
}

// New creates the profile view for the current session.
func New(sessions Sessions, backend Backend) Model {
	return Model{
		session:  sessions.Current(),
		sessions: sessions,
		backend:  backend,
	}
}

// Init loads the user record, the user's posts and the token expiry.
func (m Model) Init() tea.Cmd {
	name := m.session.UserName()
	if name == "" {
		return nil
	}
	backend := m.backend
	sessions := m.sessions
	return tea.Batch(
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			u, err := backend.GetUser(ctx, name)
			return userLoadedMsg{User: u, Err: err}
		},
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			posts, err := backend.ListPosts(ctx, name)
			return messages.UserPostsLoadedMsg{Posts: posts, Err: err}
		},
		func() tea.Msg {
			exp, ok, _ := sessions.AccessTokenExpiry(context.Background())
			return expiryMsg{Expires: exp, OK: ok}
		},
	)
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetSession updates the identity shown.
func (m *Model) SetSession(s session.Session) {
	m.session = s
}

// Editing reports whether the edit form has focus.
func (m Model) Editing() bool { return m.editing }

// Err returns the error currently shown.
func (m Model) Err() string { return m.err }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case userLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, nil
		}
		m.user = msg.User
		return m, nil

	case messages.UserPostsLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, nil
		}
		m.posts = msg.Posts
		return m, nil

	case expiryMsg:
		m.expires, m.hasToken = msg.Expires, msg.OK
		return m, nil

	case messages.ProfileSavedMsg:
		m.saving = false
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, nil
		}
		m.editing = false
		m.inputs = nil
		m.err = ""
		m.notice = "Profile updated."
		m.session = m.sessions.Current()
		return m, m.Init()

	case tea.KeyMsg:
		if m.editing {
			return m.updateForm(msg)
		}
		switch msg.String() {
		case "e":
			if m.session.LoggedIn() {
				cmd := m.startEditing()
				return m, cmd
			}
		case "r":
			m.notice = ""
			return m, m.Init()
		}
	}
	return m, nil
}

func (m *Model) startEditing() tea.Cmd {
	m.editing = true
	m.focused = 0
	m.err = ""
	m.notice = ""

	newInput := func(placeholder string) textinput.Model {
		in := textinput.New()
		in.Placeholder = placeholder
		in.Width = 40
		in.CharLimit = 512
		return in
	}

	if m.session.IsGoogleUser() {
		name := newInput("username")
		name.SetValue(m.session.UserName())
		name.CursorEnd()
		bio := newInput("bio")
		if m.user != nil {
			bio.SetValue(m.user.Bio)
			bio.CursorEnd()
		}
		m.inputs = []textinput.Model{name, bio, newInput("path to a new avatar (optional)")}
	} else {
		pw := newInput("new password")
		pw.EchoMode = textinput.EchoPassword
		confirm := newInput("confirm password")
		confirm.EchoMode = textinput.EchoPassword
		m.inputs = []textinput.Model{pw, confirm, newInput("path to a new avatar (optional)")}
	}
	return m.inputs[0].Focus()
}

func (m Model) labels() []string {
	if m.session.IsGoogleUser() {
		return []string{"username", "bio", "avatar"}
	}
	return []string{"password", "confirm", "avatar"}
}

func (m Model) updateForm(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.inputs = nil
		m.err = ""
		return m, nil
	case "tab", "shift+tab":
		m.inputs[m.focused].Blur()
		if msg.String() == "tab" {
			m.focused = (m.focused + 1) % len(m.inputs)
		} else {
			m.focused = (m.focused + len(m.inputs) - 1) % len(m.inputs)
		}
		cmd := m.inputs[m.focused].Focus()
		return m, cmd
	case "ctrl+s", "enter":
		if m.saving {
			return m, nil
		}
		save, err := m.buildSave()
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.saving = true
		m.err = ""
		return m, save
	}
	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m Model) buildSave() (tea.Cmd, error) {
	name := m.session.UserName()
	backend := m.backend
	sessions := m.sessions
	picture := strings.TrimSpace(m.inputs[2].Value())

	var update func(ctx context.Context) (*api.User, error)
	if m.session.IsGoogleUser() {
		upd := api.FederatedProfileUpdate{
			UserName:    strings.TrimSpace(m.inputs[0].Value()),
			Bio:         strings.TrimSpace(m.inputs[1].Value()),
			PicturePath: picture,
		}
		if err := session.ValidateUserName(upd.UserName); err != nil {
			return nil, err
		}
		update = func(ctx context.Context) (*api.User, error) {
			return backend.UpdateGoogleUser(ctx, name, upd)
		}
	} else {
		pw, confirm := m.inputs[0].Value(), m.inputs[1].Value()
		if pw == "" && picture == "" {
			return nil, errNothingToUpdate
		}
		if pw != "" {
			if err := session.ValidatePassword(pw); err != nil {
				return nil, err
			}
			if pw != confirm {
				return nil, errPasswordMismatch
			}
		}
		upd := api.LocalProfileUpdate{Password: pw, PicturePath: picture}
		if m.user != nil {
			upd.OldPictureURL = m.user.ProfilePictureURL
		}
		update = func(ctx context.Context) (*api.User, error) {
			return backend.UpdateUser(ctx, name, upd)
		}
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		u, err := update(ctx)
		if err != nil {
			return messages.ProfileSavedMsg{Err: err}
		}
		if u != nil && u.ID != "" && u.UserName != "" {
			if err := sessions.ApplyProfile(ctx, *u); err != nil {
				return messages.ProfileSavedMsg{Err: err}
			}
		}
		return messages.ProfileSavedMsg{Err: sessions.RefreshUserData(ctx)}
	}, nil
}

// View renders the profile.
func (m Model) View() string {
	if !m.session.LoggedIn() {
		return titleStyle.Render("Not logged in. Press L to log in.")
	}

	id := m.session.Identity()
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(id.UserName))
	sb.WriteString("\n")

	kind := "password"
	if m.session.IsGoogleUser() {
		kind = "google"
	}
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("id", id.UserID)
	row("account", kind)
	if m.user != nil && m.user.Email != "" {
		row("email", m.user.Email)
	}
	if m.user != nil && m.user.Bio != "" {
		row("bio", m.user.Bio)
	}
	if id.ProfilePictureURL != "" {
		row("avatar", id.ProfilePictureURL)
	}
	if m.hasToken {
		row("token", "expires "+m.expires.Local().Format(time.RFC1123))
	}

	if m.editing {
		sb.WriteString("\n")
		labels := m.labels()
		for i, in := range m.inputs {
			sb.WriteString(labelStyle.Render(labels[i]) + in.View() + "\n")
		}
		if m.saving {
			sb.WriteString("Saving...\n")
		} else {
			sb.WriteString(hintStyle.Render("Tab to switch fields | Enter to save | Esc to cancel") + "\n")
		}
	}

	if m.err != "" {
		sb.WriteString("\n" + errorStyle.Render(m.err) + "\n")
	}
	if m.notice != "" {
		sb.WriteString("\n" + valueStyle.Render(m.notice) + "\n")
	}

	sb.WriteString("\n" + titleStyle.Render(fmt.Sprintf("Posts (%d)", len(m.posts))) + "\n")
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	for _, p := range m.posts {
		sb.WriteString(valueStyle.Render(p.Title) + "  " + hintStyle.Render(fmt.Sprintf("%d likes", len(p.Likes))) + "\n")
		sb.WriteString(postStyle.Render(render.Preview(p.Content, width)) + "\n\n")
	}

	if !m.editing {
		sb.WriteString(hintStyle.Render("e edit profile | r reload | esc back"))
	}
	return sb.String()
}
