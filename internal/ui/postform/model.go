package postform

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/ui/messages"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true).Width(8)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8FA3"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

type field int

const (
	fieldTitle field = iota
	fieldContent
	fieldPhoto
	fieldDeletePhoto
)

// Backend writes posts.
type Backend interface {
	CreatePost(ctx context.Context, d api.PostDraft) (*api.Post, error)
	UpdatePost(ctx context.Context, id string, d api.PostDraft) (*api.Post, error)
}

// Model is the create/edit post form.
type Model struct {
	titleInput   textinput.Model
	contentInput textarea.Model
	photoInput   textinput.Model
	deletePhoto  bool
	focused      field
	editing      *api.Post
	backend      Backend
	err          string
	submitting   bool
	width        int
	height       int
}

// New creates a post form. A nil post creates a new post; otherwise the
// form edits it.
func New(backend Backend, post *api.Post) Model {
	ti := textinput.New()
	ti.Placeholder = "Title"
	ti.Focus()
	ti.CharLimit = 120
	ti.Width = 60

	ta := textarea.New()
	ta.Placeholder = "What did you see tonight?"
	ta.SetWidth(60)
	ta.SetHeight(8)

	pi := textinput.New()
	pi.Placeholder = "path to an image (optional)"
	pi.CharLimit = 512
	pi.Width = 60

	if post != nil {
		ti.SetValue(post.Title)
		ta.SetValue(post.Content)
	}

	return Model{
		titleInput:   ti,
		contentInput: ta,
		photoInput:   pi,
		editing:      post,
		backend:      backend,
	}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	fw := w - 14
	if fw > 80 {
		fw = 80
	}
	m.titleInput.Width = fw
	m.photoInput.Width = fw
	m.contentInput.SetWidth(fw)
	th := h - 16
	if th < 3 {
		th = 3
	}
	if th > 12 {
		th = 12
	}
	m.contentInput.SetHeight(th)
}

// Err returns the error currently shown on the form.
func (m Model) Err() string { return m.err }

func (m Model) fieldCount() field {
	if m.editing != nil && m.editing.PictureURL != "" {
		return 4
	}
	return 3
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab":
			m.focused = (m.focused + 1) % m.fieldCount()
			cmd := m.updateFocus()
			return m, cmd
		case "shift+tab":
			m.focused = (m.focused + m.fieldCount() - 1) % m.fieldCount()
			cmd := m.updateFocus()
			return m, cmd
		case " ", "x":
			if m.focused == fieldDeletePhoto {
				m.deletePhoto = !m.deletePhoto
				return m, nil
			}
		case "ctrl+s":
			if m.submitting {
				return m, nil
			}
			draft := api.PostDraft{
				Title:       strings.TrimSpace(m.titleInput.Value()),
				Content:     strings.TrimSpace(m.contentInput.Value()),
				PhotoPath:   strings.TrimSpace(m.photoInput.Value()),
				DeletePhoto: m.deletePhoto,
			}
			if draft.Title == "" {
				m.err = "Title is required"
				return m, nil
			}
			if draft.Content == "" {
				m.err = "Content is required"
				return m, nil
			}
			m.submitting = true
			m.err = ""
			return m, m.save(draft)
		}

	case messages.PostSavedMsg:
		m.submitting = false
		if msg.Err != nil {
			m.err = msg.Err.Error()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focused {
	case fieldTitle:
		m.titleInput, cmd = m.titleInput.Update(msg)
	case fieldContent:
		m.contentInput, cmd = m.contentInput.Update(msg)
	case fieldPhoto:
		m.photoInput, cmd = m.photoInput.Update(msg)
	}
	return m, cmd
}

func (m Model) save(draft api.PostDraft) tea.Cmd {
	backend := m.backend
	editing := m.editing
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if editing == nil {
			post, err := backend.CreatePost(ctx, draft)
			return messages.PostSavedMsg{Post: post, Created: true, Err: err}
		}
		post, err := backend.UpdatePost(ctx, editing.ID, draft)
		return messages.PostSavedMsg{Post: post, Err: err}
	}
}

func (m *Model) updateFocus() tea.Cmd {
	m.titleInput.Blur()
	m.contentInput.Blur()
	m.photoInput.Blur()
	switch m.focused {
	case fieldTitle:
		return m.titleInput.Focus()
	case fieldContent:
		return m.contentInput.Focus()
	case fieldPhoto:
		return m.photoInput.Focus()
	}
	return nil
}

// View renders the post form.
func (m Model) View() string {
	var sb strings.Builder

	if m.editing != nil {
		sb.WriteString(titleStyle.Render("Edit Post"))
	} else {
		sb.WriteString(titleStyle.Render("New Post"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(labelStyle.Render("title") + " " + m.titleInput.View())
	sb.WriteString("\n\n")
	sb.WriteString(labelStyle.Render("content"))
	sb.WriteString("\n")
	sb.WriteString(m.contentInput.View())
	sb.WriteString("\n\n")
	sb.WriteString(labelStyle.Render("photo") + " " + m.photoInput.View())
	sb.WriteString("\n\n")

	if m.fieldCount() == 4 {
		box := "[ ]"
		if m.deletePhoto {
			box = "[x]"
		}
		line := box + " delete current photo"
		if m.focused == fieldDeletePhoto {
			line = titleStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n\n")
	}

	if m.err != "" {
		sb.WriteString(errorStyle.Render(m.err))
		sb.WriteString("\n")
	}

	if m.submitting {
		sb.WriteString("Saving...")
	} else {
		sb.WriteString(hintStyle.Render("Tab to switch fields | Ctrl+S to save | Esc to cancel"))
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, sb.String())
}
