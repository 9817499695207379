package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/config"
	"github.com/fragmede/astroshare/internal/idp"
	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/store"
	"github.com/fragmede/astroshare/internal/ui/chooseusername"
	"github.com/fragmede/astroshare/internal/ui/comments"
	"github.com/fragmede/astroshare/internal/ui/login"
	"github.com/fragmede/astroshare/internal/ui/messages"
	"github.com/fragmede/astroshare/internal/ui/postform"
	"github.com/fragmede/astroshare/internal/ui/postlist"
	"github.com/fragmede/astroshare/internal/ui/profile"
	"github.com/fragmede/astroshare/internal/ui/register"
	"github.com/fragmede/astroshare/internal/ui/statusbar"
)

// ViewType identifies the active view.
type ViewType int

const (
	ViewPosts ViewType = iota
	ViewComments
	ViewLogin
	ViewRegister
	ViewChooseName
	ViewPostForm
	ViewProfile
)

var viewNames = map[ViewType]string{
	ViewPosts:      "Posts",
	ViewComments:   "Comments",
	ViewLogin:      "Login",
	ViewRegister:   "Register",
	ViewChooseName: "Choose username",
	ViewPostForm:   "Post",
	ViewProfile:    "Profile",
}

// App is the root Bubble Tea model.
type App struct {
	// View state
	activeView    ViewType
	previousViews []ViewType
	showHelp      bool

	// Child models
	postList     postlist.Model
	comments     comments.Model
	loginForm    login.Model
	registerForm register.Model
	chooseName   chooseusername.Model
	postForm     postform.Model
	profile      profile.Model
	statusBar    statusbar.Model

	// Shared state
	cfg         config.Config
	client      *api.Client
	sessions    *session.Manager
	provider    idp.CredentialSource
	log         zerolog.Logger
	unsubscribe func()

	// Dimensions
	width  int
	height int

	program *tea.Program
}

// NewApp creates the root application model.
func NewApp(cfg config.Config, client *api.Client, db *store.DB, sessions *session.Manager, log zerolog.Logger) *App {
	a := &App{
		activeView: ViewPosts,
		postList:   postlist.New(cfg, client, db),
		statusBar:  statusbar.New(),
		cfg:        cfg,
		client:     client,
		sessions:   sessions,
		log:        log,
	}
	a.provider = idp.Select(cfg.GoogleCredential, idp.GoogleConfig{
		Issuer:       cfg.GoogleIssuer,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
	}, a.showDevicePrompt, log)

	current := sessions.Current()
	a.statusBar.SetSession(current)
	a.postList.SetSession(current)
	return a
}

// SetProgram stores the tea.Program reference and forwards session changes
// into it.
func (a *App) SetProgram(p *tea.Program) {
	a.program = p
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.unsubscribe = a.sessions.Subscribe(func(s session.Session) {
		p.Send(messages.SessionChangedMsg{Session: s})
	})
}

// Close stops forwarding session changes.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

func (a *App) showDevicePrompt(p idp.DevicePrompt) {
	if a.program == nil {
		return
	}
	a.program.Send(messages.ProviderPromptMsg{VerificationURI: p.VerificationURI, UserCode: p.UserCode})
}

// Init starts the application.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.postList.Init(), a.refreshSession())
}

func (a *App) refreshSession() tea.Cmd {
	sessions := a.sessions
	timeout := a.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
		defer cancel()
		if err := sessions.RefreshUserData(ctx); err != nil && !errors.Is(err, session.ErrSuperseded) {
			return messages.StatusMsg{Text: "Could not refresh profile", IsError: true}
		}
		return nil
	}
}

// textEntry reports whether the active view consumes plain keys.
func (a *App) textEntry() bool {
	switch a.activeView {
	case ViewLogin, ViewRegister, ViewChooseName, ViewPostForm:
		return true
	case ViewComments:
		return a.comments.Composing()
	case ViewProfile:
		return a.profile.Editing()
	}
	return false
}

// Update handles all messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentHeight := msg.Height - 1
		a.postList.SetSize(msg.Width, contentHeight)
		a.statusBar.SetSize(msg.Width)
		switch a.activeView {
		case ViewComments:
			a.comments.SetSize(msg.Width, contentHeight)
		case ViewLogin:
			a.loginForm.SetSize(msg.Width, contentHeight)
		case ViewRegister:
			a.registerForm.SetSize(msg.Width, contentHeight)
		case ViewChooseName:
			a.chooseName.SetSize(msg.Width, contentHeight)
		case ViewPostForm:
			a.postForm.SetSize(msg.Width, contentHeight)
		case ViewProfile:
			a.profile.SetSize(msg.Width, contentHeight)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.showHelp {
			a.showHelp = false
			return a, nil
		}
		if a.textEntry() {
			// The modal abandons the pending login itself; composers close
			// their own editors.
			if msg.String() == "esc" && (a.activeView == ViewLogin || a.activeView == ViewRegister || a.activeView == ViewPostForm) {
				return a, a.goBack()
			}
			break
		}
		s := a.sessions.Current()
		switch {
		case key.Matches(msg, Keys.Quit):
			if a.activeView == ViewPosts {
				return a, tea.Quit
			}
			return a, a.goBack()
		case key.Matches(msg, Keys.Back):
			return a, a.goBack()
		case key.Matches(msg, Keys.Help):
			a.showHelp = true
			return a, nil
		case key.Matches(msg, Keys.Login):
			if !s.LoggedIn() {
				a.openLogin()
			}
			return a, nil
		case key.Matches(msg, Keys.Register):
			if !s.LoggedIn() {
				a.openRegister()
			}
			return a, nil
		case key.Matches(msg, Keys.Logout):
			if s.LoggedIn() {
				return a, a.logout()
			}
			return a, nil
		case key.Matches(msg, Keys.Profile):
			if !s.LoggedIn() {
				a.openLogin()
				return a, nil
			}
			return a, a.openProfile()
		}

	// View transitions.
	case messages.GoBackMsg:
		return a, a.goBack()

	case messages.OpenLoginMsg:
		a.openLogin()
		return a, nil

	case messages.OpenRegisterMsg:
		a.openRegister()
		return a, nil

	case messages.OpenCommentsMsg:
		a.pushView(ViewComments)
		a.comments = comments.New(msg.Post, a.sessions.Current(), a.client)
		a.comments.SetSize(a.width, a.height-1)
		return a, a.comments.Init()

	case messages.OpenPostFormMsg:
		a.pushView(ViewPostForm)
		a.postForm = postform.New(a.client, msg.Post)
		a.postForm.SetSize(a.width, a.height-1)
		return a, nil

	case messages.OpenProfileMsg:
		return a, a.openProfile()

	case messages.OpenChooseNameMsg:
		a.pushView(ViewChooseName)
		a.chooseName = chooseusername.New(a.sessions)
		a.chooseName.SetSize(a.width, a.height-1)
		return a, nil

	// Results.
	case messages.LoginResultMsg:
		switch {
		case msg.Err == nil:
			a.leaveAuthViews()
			a.statusBar.SetStatus("Logged in as "+a.sessions.Current().UserName(), false)
			return a, nil
		case errors.Is(msg.Err, session.ErrUsernameChoiceRequired) && a.activeView == ViewLogin:
			a.loginForm, _ = a.loginForm.Update(messages.LoginResultMsg{Provider: true})
			return a, func() tea.Msg { return messages.OpenChooseNameMsg{} }
		}

	case messages.RegisterResultMsg:
		if msg.Err == nil {
			cmd := a.goBack()
			a.statusBar.SetStatus("Account "+msg.UserName+" created. Log in to continue.", false)
			return a, cmd
		}

	case messages.LogoutResultMsg:
		switch {
		case errors.Is(msg.Err, session.ErrNoRefreshToken):
			a.statusBar.SetStatus("Not logged in", false)
		case msg.Err != nil:
			a.statusBar.SetStatus("Logout: "+msg.Err.Error(), true)
		default:
			a.statusBar.SetStatus("Logged out", false)
		}
		return a, nil

	case messages.PostSavedMsg:
		if msg.Err != nil {
			break
		}
		cmd := a.goBack()
		var listCmd tea.Cmd
		a.postList, listCmd = a.postList.Update(msg)
		text := "Post updated"
		if msg.Created {
			text = "Post published"
		}
		a.statusBar.SetStatus(text, false)
		return a, tea.Batch(cmd, listCmd)

	case messages.PostsLoadedMsg, messages.CommentCountsMsg, messages.LikeResultMsg, messages.PostDeletedMsg:
		var cmd tea.Cmd
		a.postList, cmd = a.postList.Update(msg)
		return a, cmd

	case messages.CommentsLoadedMsg, messages.CommentSavedMsg, messages.CommentDeletedMsg:
		var cmd tea.Cmd
		a.comments, cmd = a.comments.Update(msg)
		return a, cmd

	case messages.ProviderPromptMsg:
		var cmd tea.Cmd
		a.loginForm, cmd = a.loginForm.Update(msg)
		return a, cmd

	case messages.SessionChangedMsg:
		a.statusBar.SetSession(msg.Session)
		a.postList.SetSession(msg.Session)
		a.comments.SetSession(msg.Session)
		a.profile.SetSession(msg.Session)
		if !msg.Session.LoggedIn() && (a.activeView == ViewProfile || a.activeView == ViewPostForm) {
			a.activeView = ViewPosts
			a.previousViews = nil
			a.statusBar.SetView(viewNames[ViewPosts])
		}
		return a, nil

	case messages.StatusMsg:
		a.statusBar.SetStatus(msg.Text, msg.IsError)
		return a, nil
	}

	// Route to active view.
	var cmd tea.Cmd
	switch a.activeView {
	case ViewPosts:
		a.postList, cmd = a.postList.Update(msg)
	case ViewComments:
		a.comments, cmd = a.comments.Update(msg)
	case ViewLogin:
		a.loginForm, cmd = a.loginForm.Update(msg)
	case ViewRegister:
		a.registerForm, cmd = a.registerForm.Update(msg)
	case ViewChooseName:
		a.chooseName, cmd = a.chooseName.Update(msg)
	case ViewPostForm:
		a.postForm, cmd = a.postForm.Update(msg)
	case ViewProfile:
		a.profile, cmd = a.profile.Update(msg)
	}
	return a, cmd
}

// View renders the application.
func (a *App) View() string {
	var content string
	switch {
	case a.showHelp:
		content = a.helpView()
	case a.activeView == ViewPosts:
		content = a.postList.View()
	case a.activeView == ViewComments:
		content = a.comments.View()
	case a.activeView == ViewLogin:
		content = a.loginForm.View()
	case a.activeView == ViewRegister:
		content = a.registerForm.View()
	case a.activeView == ViewChooseName:
		content = a.chooseName.View()
	case a.activeView == ViewPostForm:
		content = a.postForm.View()
	case a.activeView == ViewProfile:
		content = a.profile.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, a.statusBar.View())
}

// ActiveView returns the view currently shown.
func (a *App) ActiveView() ViewType {
	return a.activeView
}

func (a *App) pushView(v ViewType) {
	a.previousViews = append(a.previousViews, a.activeView)
	a.activeView = v
	a.statusBar.SetView(viewNames[v])
}

func (a *App) goBack() tea.Cmd {
	if len(a.previousViews) > 0 {
		a.activeView = a.previousViews[len(a.previousViews)-1]
		a.previousViews = a.previousViews[:len(a.previousViews)-1]
	}
	a.statusBar.SetView(viewNames[a.activeView])
	return nil
}

// leaveAuthViews pops the login, register and choose-username views.
func (a *App) leaveAuthViews() {
	for {
		switch a.activeView {
		case ViewLogin, ViewRegister, ViewChooseName:
			if len(a.previousViews) == 0 {
				a.activeView = ViewPosts
				a.statusBar.SetView(viewNames[ViewPosts])
				return
			}
			a.goBack()
		default:
			return
		}
	}
}

func (a *App) openLogin() {
	if a.activeView == ViewLogin {
		return
	}
	a.pushView(ViewLogin)
	a.loginForm = login.New(a.sessions, a.provider)
	a.loginForm.SetSize(a.width, a.height-1)
}

func (a *App) openRegister() {
	a.pushView(ViewRegister)
	a.registerForm = register.New(a.client)
	a.registerForm.SetSize(a.width, a.height-1)
}

func (a *App) openProfile() tea.Cmd {
	if a.activeView != ViewProfile {
		a.pushView(ViewProfile)
	}
	a.profile = profile.New(a.sessions, a.client)
	a.profile.SetSize(a.width, a.height-1)
	return a.profile.Init()
}

func (a *App) logout() tea.Cmd {
	sessions := a.sessions
	timeout := a.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
		defer cancel()
		return messages.LogoutResultMsg{Err: sessions.Logout(ctx)}
	}
}

func (a *App) helpView() string {
	lines := []string{
		TitleStyle.Render("Keys"),
		"",
		Keys.HelpLine(),
		"",
		DimStyle.Render("posts     enter comments  l like  a new  e edit  d delete  n/p page  r refresh"),
		DimStyle.Render("comments  c comment  e edit  d delete  j/k move  r refresh"),
		DimStyle.Render("profile   e edit  r reload"),
		DimStyle.Render("login     ctrl+g Google  ctrl+r register"),
		"",
		DimStyle.Render("any key to close"),
	}
	box := HelpBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, box)
}
