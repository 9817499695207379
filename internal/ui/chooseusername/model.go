// Package chooseusername is the modal shown when a provider login collides
// with an existing username.
package chooseusername

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/ui/messages"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7B68EE")).
			Padding(1, 2)
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8FA3"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

// Completer finishes or abandons a pending provider login.
type Completer interface {
	CompleteProviderLogin(ctx context.Context, newUsername string) error
	AbandonProviderLogin()
}

// Model is the choose-username modal.
type Model struct {
	input      textinput.Model
	completer  Completer
	err        string
	submitting bool
	width      int
	height     int
}

// New creates the modal.
func New(c Completer) Model {
	in := textinput.New()
	in.Placeholder = "new username"
	in.CharLimit = 40
	in.Width = 30
	in.Focus()
	return Model{input: in, completer: c}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Err returns the error currently shown.
func (m Model) Err() string { return m.err }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.completer.AbandonProviderLogin()
			return m, func() tea.Msg { return messages.GoBackMsg{} }
		case "enter":
			if m.submitting {
				return m, nil
			}
			name := strings.TrimSpace(m.input.Value())
			if err := session.ValidateUserName(name); err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.submitting = true
			m.err = ""
			c := m.completer
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return messages.LoginResultMsg{Provider: true, Err: c.CompleteProviderLogin(ctx, name)}
			}
		}

	case messages.LoginResultMsg:
		m.submitting = false
		if msg.Err != nil {
			m.err = "That username is not available. Try another."
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the modal.
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Choose a username"))
	sb.WriteString("\n\n")
	sb.WriteString("Your Google account's username is already taken.\n\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n\n")
	if m.err != "" {
		sb.WriteString(errorStyle.Render(m.err))
		sb.WriteString("\n\n")
	}
	if m.submitting {
		sb.WriteString("Checking...")
	} else {
		sb.WriteString(hintStyle.Render("Enter to confirm | Esc to cancel"))
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(sb.String()))
}
