package statusbar

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/astroshare/internal/session"
)

var (
	barStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2335")).
			Foreground(lipgloss.Color("#FFFFFF"))

	viewStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#7B68EE")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2335")).
			Foreground(lipgloss.Color("#9ECE6A")).
			Padding(0, 1)

	googleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#4285F4")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	statusTextStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2335")).
			Foreground(lipgloss.Color("#AAAAAA")).
			Padding(0, 1)

	errorTextStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#8B0000")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)
)

// Model is the status bar at the bottom of the screen.
type Model struct {
	width      int
	viewName   string
	session    session.Session
	statusText string
	isError    bool
}

// New creates a new status bar.
func New() Model {
	return Model{viewName: "Posts"}
}

// SetSize sets the width.
func (m *Model) SetSize(w int) {
	m.width = w
}

// SetView sets the name of the active view.
func (m *Model) SetView(name string) {
	m.viewName = name
}

// SetSession sets the session shown on the right.
func (m *Model) SetSession(s session.Session) {
	m.session = s
}

// SetStatus sets a transient status message.
func (m *Model) SetStatus(text string, isError bool) {
	m.statusText = text
	m.isError = isError
}

// View renders the status bar.
func (m Model) View() string {
	left := viewStyle.Render(m.viewName)

	var right string
	if m.statusText != "" {
		if m.isError {
			right += errorTextStyle.Render(m.statusText)
		} else {
			right += statusTextStyle.Render(m.statusText)
		}
	}
	if m.session.LoggedIn() {
		if m.session.IsGoogleUser() {
			right += googleStyle.Render("G")
		}
		right += userStyle.Render(m.session.UserName())
	} else {
		right += statusTextStyle.Render("L:login")
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	mid := barStyle.Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, mid, right)
}
