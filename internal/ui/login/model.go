package login

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/common-nighthawk/go-figure"

	"github.com/fragmede/astroshare/internal/idp"
	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/ui/messages"
)

const (
	requestTimeout  = 30 * time.Second
	providerTimeout = 10 * time.Minute
)

var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	codeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ECE6A")).Bold(true)
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE")).Bold(true)
)

var banner = figure.NewFigure("AstroShare", "cybermedium", true).String()

// Authenticator is the part of the session manager the form drives.
type Authenticator interface {
	Login(ctx context.Context, creds session.PasswordCredentials) error
	LoginWithProvider(ctx context.Context, credential string) error
}

// Model is the login form view.
type Model struct {
	usernameInput textinput.Model
	passwordInput textinput.Model
	focusIndex    int
	err           string
	submitting    bool
	prompt        *messages.ProviderPromptMsg
	auth          Authenticator
	provider      idp.CredentialSource
	width         int
	height        int
}

// New creates a new login form. provider is nil when provider login is
// not configured.
func New(auth Authenticator, provider idp.CredentialSource) Model {
	usernameInput := textinput.New()
	usernameInput.Placeholder = "username"
	usernameInput.Focus()
	usernameInput.Width = 30

	passwordInput := textinput.New()
	passwordInput.Placeholder = "password"
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.Width = 30

	return Model{
		usernameInput: usernameInput,
		passwordInput: passwordInput,
		auth:          auth,
		provider:      provider,
	}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "shift+tab":
			if m.focusIndex == 0 {
				m.focusIndex = 1
				m.usernameInput.Blur()
				m.passwordInput.Focus()
			} else {
				m.focusIndex = 0
				m.passwordInput.Blur()
				m.usernameInput.Focus()
			}
			return m, nil
		case "enter":
			if m.submitting {
				return m, nil
			}
			creds := session.PasswordCredentials{
				UserName: strings.TrimSpace(m.usernameInput.Value()),
				Password: m.passwordInput.Value(),
			}
			if err := creds.Validate(); err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.submitting = true
			m.err = ""
			auth := m.auth
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()
				return messages.LoginResultMsg{Err: auth.Login(ctx, creds)}
			}
		case "ctrl+g":
			if m.submitting {
				return m, nil
			}
			if m.provider == nil {
				m.err = "Google login is not configured"
				return m, nil
			}
			m.submitting = true
			m.err = ""
			auth, provider := m.auth, m.provider
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
				defer cancel()
				credential, err := provider.Credential(ctx)
				if err != nil {
					return messages.LoginResultMsg{Provider: true, Err: err}
				}
				return messages.LoginResultMsg{Provider: true, Err: auth.LoginWithProvider(ctx, credential)}
			}
		case "ctrl+r":
			return m, func() tea.Msg { return messages.OpenRegisterMsg{} }
		}

	case messages.ProviderPromptMsg:
		m.prompt = &msg
		return m, nil

	case messages.LoginResultMsg:
		m.submitting = false
		m.prompt = nil
		if msg.Err != nil {
			m.err = msg.Err.Error()
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.focusIndex == 0 {
		m.usernameInput, cmd = m.usernameInput.Update(msg)
	} else {
		m.passwordInput, cmd = m.passwordInput.Update(msg)
	}
	return m, cmd
}

// Err returns the error currently shown on the form.
func (m Model) Err() string { return m.err }

// Submitting reports whether a login is in flight.
func (m Model) Submitting() bool { return m.submitting }

// View renders the login form.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(bannerStyle.Render(banner))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Username:"))
	sb.WriteString("\n")
	sb.WriteString(m.usernameInput.View())
	sb.WriteString("\n\n")
	sb.WriteString(labelStyle.Render("Password:"))
	sb.WriteString("\n")
	sb.WriteString(m.passwordInput.View())
	sb.WriteString("\n\n")

	if m.err != "" {
		sb.WriteString(errorStyle.Render(m.err))
		sb.WriteString("\n\n")
	}

	switch {
	case m.prompt != nil:
		sb.WriteString("Open " + codeStyle.Render(m.prompt.VerificationURI) + " and enter " + codeStyle.Render(m.prompt.UserCode))
		sb.WriteString("\nWaiting for approval...")
	case m.submitting:
		sb.WriteString("Logging in...")
	default:
		sb.WriteString(focusedStyle.Render("Enter") + " to log in, " +
			focusedStyle.Render("Ctrl+G") + " Google, " +
			focusedStyle.Render("Ctrl+R") + " register, " +
			focusedStyle.Render("Esc") + " to cancel")
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, sb.String())
}
