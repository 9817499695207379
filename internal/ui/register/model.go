package register

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/ui/messages"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true).Width(10)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8FA3"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

const (
	fieldEmail = iota
	fieldUserName
	fieldPassword
	fieldConfirm
	fieldPicture
	fieldCount
)

var labels = [fieldCount]string{"email", "username", "password", "confirm", "avatar"}

var (
	errEmailInvalid     = errors.New("a valid email is required")
	errPasswordMismatch = errors.New("passwords do not match")
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, reg api.Registration) error
}

// Model is the registration form.
type Model struct {
	inputs     [fieldCount]textinput.Model
	focused    int
	registrar  Registrar
	err        string
	submitting bool
	width      int
	height     int
}

// New creates a new registration form.
func New(r Registrar) Model {
	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		in := textinput.New()
		in.Width = 40
		in.CharLimit = 256
		inputs[i] = in
	}
	inputs[fieldEmail].Placeholder = "you@example.com"
	inputs[fieldUserName].Placeholder = "stargazer"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldConfirm].EchoMode = textinput.EchoPassword
	inputs[fieldPicture].Placeholder = "path to an image (optional)"
	inputs[fieldEmail].Focus()

	return Model{inputs: inputs, registrar: r}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	fw := w - 16
	if fw > 60 {
		fw = 60
	}
	for i := range m.inputs {
		m.inputs[i].Width = fw
	}
}

// Err returns the error currently shown on the form.
func (m Model) Err() string { return m.err }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "down":
			m.focused = (m.focused + 1) % fieldCount
			cmd := m.updateFocus()
			return m, cmd
		case "shift+tab", "up":
			m.focused = (m.focused + fieldCount - 1) % fieldCount
			cmd := m.updateFocus()
			return m, cmd
		case "enter", "ctrl+s":
			if m.submitting {
				return m, nil
			}
			reg := m.registration()
			if err := validate(reg); err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.submitting = true
			m.err = ""
			r := m.registrar
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				return messages.RegisterResultMsg{UserName: reg.UserName, Err: r.Register(ctx, reg)}
			}
		}

	case messages.RegisterResultMsg:
		m.submitting = false
		if msg.Err != nil {
			m.err = "Registration failed: " + msg.Err.Error()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m Model) registration() api.Registration {
	return api.Registration{
		Email:           strings.TrimSpace(m.inputs[fieldEmail].Value()),
		UserName:        strings.TrimSpace(m.inputs[fieldUserName].Value()),
		Password:        m.inputs[fieldPassword].Value(),
		ConfirmPassword: m.inputs[fieldConfirm].Value(),
		PicturePath:     strings.TrimSpace(m.inputs[fieldPicture].Value()),
	}
}

func validate(reg api.Registration) error {
	if at := strings.Index(reg.Email, "@"); at < 1 || at == len(reg.Email)-1 {
		return errEmailInvalid
	}
	if err := session.ValidateUserName(reg.UserName); err != nil {
		return err
	}
	if err := session.ValidatePassword(reg.Password); err != nil {
		return err
	}
	if reg.Password != reg.ConfirmPassword {
		return errPasswordMismatch
	}
	return nil
}

func (m *Model) updateFocus() tea.Cmd {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	return m.inputs[m.focused].Focus()
}

// View renders the registration form.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Create an account"))
	sb.WriteString("\n\n")
	for i := range m.inputs {
		sb.WriteString(labelStyle.Render(labels[i]) + " " + m.inputs[i].View())
		sb.WriteString("\n\n")
	}

	if m.err != "" {
		sb.WriteString(errorStyle.Render(m.err))
		sb.WriteString("\n")
	}

	if m.submitting {
		sb.WriteString("Registering...")
	} else {
		sb.WriteString(hintStyle.Render("Tab to switch fields | Enter to register | Esc to cancel"))
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, sb.String())
}
