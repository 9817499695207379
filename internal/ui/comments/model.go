// Package comments shows a post with its comments and lets the signed-in
// user add, edit and delete their own.
package comments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/render"
	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/ui/messages"
)

var (
	selectedBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE"))
	normalBorderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	authorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE")).Bold(true)
	ownStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ECE6A")).Bold(true)
	metaStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8FA3"))
	headerStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorMsgStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

// Backend is the comment API used by the view.
type Backend interface {
	ListComments(ctx context.Context, postID string) ([]api.Comment, error)
	CreateComment(ctx context.Context, d api.CommentDraft) (*api.Comment, error)
	UpdateComment(ctx context.Context, id string, d api.CommentDraft) (*api.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type itemOffset struct {
	startLine int
	endLine   int
}

// Model is the comments view for one post.
type Model struct {
	viewport      viewport.Model
	composer      textarea.Model
	post          api.Post
	comments      []api.Comment
	offsets       []itemOffset
	cursor        int
	composing     bool
	editingID     string
	pendingDelete string
	err           string
	session       session.Session
	backend       Backend
	loading       bool
	width         int
	height        int
}

// New creates the comments view for post.
func New(post api.Post, s session.Session, backend Backend) Model {
	ta := textarea.New()
	ta.Placeholder = "Write a comment..."
	ta.SetHeight(4)
	ta.ShowLineNumbers = false

	return Model{
		viewport: viewport.New(0, 0),
		composer: ta,
		post:     post,
		session:  s,
		backend:  backend,
		loading:  true,
	}
}

// Init loads the comments.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// SetSize updates viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.composer.SetWidth(w - 2)
	m.resizeViewport()
	m.rebuildContent()
}

func (m *Model) resizeViewport() {
	h := m.height - 2
	if m.composing {
		h -= m.composer.Height() + 2
	}
	if h < 1 {
		h = 1
	}
	m.viewport.Height = h
}

// SetSession updates the signed-in user.
func (m *Model) SetSession(s session.Session) {
	m.session = s
	m.rebuildContent()
}

// Composing reports whether the comment editor has focus.
func (m Model) Composing() bool { return m.composing }

// Comments returns the loaded comments.
func (m Model) Comments() []api.Comment { return m.comments }

// Err returns the last error shown.
func (m Model) Err() string { return m.err }

// PostID returns the id of the post being shown.
func (m Model) PostID() string { return m.post.ID }

func (m Model) owns(c api.Comment) bool {
	return m.session.LoggedIn() && c.Sender == m.session.UserID()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.CommentsLoadedMsg:
		if msg.PostID != m.post.ID {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err.Error()
			m.rebuildContent()
			return m, nil
		}
		m.err = ""
		m.comments = msg.Comments
		if m.cursor >= len(m.comments) {
			m.cursor = max(len(m.comments)-1, 0)
		}
		m.rebuildContent()
		return m, nil

	case messages.CommentSavedMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
			m.rebuildContent()
			return m, nil
		}
		m.err = ""
		m.stopComposing()
		if msg.Comment != nil {
			if msg.Edited {
				for i := range m.comments {
					if m.comments[i].ID == msg.Comment.ID {
						m.comments[i] = *msg.Comment
					}
				}
			} else {
				m.comments = append(m.comments, *msg.Comment)
				m.cursor = len(m.comments) - 1
			}
		}
		m.rebuildContent()
		m.scrollToCursor()
		return m, nil

	case messages.CommentDeletedMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
			m.rebuildContent()
			return m, nil
		}
		for i, c := range m.comments {
			if c.ID == msg.CommentID {
				m.comments = append(m.comments[:i:i], m.comments[i+1:]...)
				break
			}
		}
		if m.cursor >= len(m.comments) {
			m.cursor = max(len(m.comments)-1, 0)
		}
		m.rebuildContent()
		return m, nil

	case tea.KeyMsg:
		if m.composing {
			return m.updateComposer(msg)
		}
		key := msg.String()
		if key != "d" {
			m.pendingDelete = ""
		}
		switch key {
		case "j", "down":
			if m.cursor < len(m.comments)-1 {
				m.cursor++
				m.rebuildContent()
				m.scrollToCursor()
			}
			return m, nil
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
				m.rebuildContent()
				m.scrollToCursor()
			}
			return m, nil
		case "r":
			m.loading = true
			return m, m.load()
		case "c", "a":
			if !m.session.LoggedIn() {
				return m, func() tea.Msg { return messages.OpenLoginMsg{} }
			}
			cmd := m.startComposing("", "")
			return m, cmd
		case "e":
			if c, ok := m.selected(); ok && m.owns(c) {
				cmd := m.startComposing(c.ID, c.Content)
				return m, cmd
			}
			return m, nil
		case "d":
			c, ok := m.selected()
			if !ok || !m.owns(c) {
				return m, nil
			}
			if m.pendingDelete != c.ID {
				m.pendingDelete = c.ID
				return m, func() tea.Msg {
					return messages.StatusMsg{Text: "Press d again to delete this comment"}
				}
			}
			m.pendingDelete = ""
			return m, m.delete(c.ID)
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateComposer(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stopComposing()
		m.rebuildContent()
		return m, nil
	case "ctrl+s":
		text := strings.TrimSpace(m.composer.Value())
		if text == "" {
			m.err = "Comment cannot be empty"
			return m, nil
		}
		draft := api.CommentDraft{Content: text, Sender: m.session.UserID(), PostID: m.post.ID}
		return m, m.save(m.editingID, draft)
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m *Model) startComposing(id, content string) tea.Cmd {
	m.composing = true
	m.editingID = id
	m.err = ""
	m.composer.SetValue(content)
	m.resizeViewport()
	return m.composer.Focus()
}

func (m *Model) stopComposing() {
	m.composing = false
	m.editingID = ""
	m.composer.Reset()
	m.composer.Blur()
	m.resizeViewport()
}

func (m Model) selected() (api.Comment, bool) {
	if m.cursor < 0 || m.cursor >= len(m.comments) {
		return api.Comment{}, false
	}
	return m.comments[m.cursor], true
}

// View renders the comments view.
func (m Model) View() string {
	title := m.post.Title
	if m.loading {
		title += " (loading...)"
	}
	out := headerStyle.Render(title) + "\n" + m.viewport.View()
	if m.composing {
		label := "New comment"
		if m.editingID != "" {
			label = "Edit comment"
		}
		out += "\n" + metaStyle.Render(label+"  Ctrl+S to save | Esc to cancel") + "\n" + m.composer.View()
	}
	return out
}

func (m *Model) rebuildContent() {
	var sb strings.Builder
	width := m.width - 4
	if width < 20 {
		width = 20
	}

	lineCount := 0
	write := func(s string) {
		sb.WriteString(s + "\n")
		lineCount += strings.Count(s, "\n") + 1
	}

	write(metaStyle.Render("by " + m.post.Sender + " | " + fmt.Sprintf("%d likes", len(m.post.Likes))))
	if m.post.PictureURL != "" {
		write(metaStyle.Render("photo: " + m.post.PictureURL))
	}
	write("")
	write(render.Body(m.post.Content, width))
	write("")
	write(headerStyle.Render(fmt.Sprintf("Comments (%d)", len(m.comments))))
	if m.err != "" {
		write(errorMsgStyle.Render("Error: " + m.err))
	}

	m.offsets = make([]itemOffset, len(m.comments))
	for i, c := range m.comments {
		start := lineCount
		border := normalBorderStyle.Render("▎")
		if i == m.cursor {
			border = selectedBorderStyle.Render("▎")
		}
		prefix := border + " "

		author := authorStyle.Render(c.Sender)
		if m.owns(c) {
			author = ownStyle.Render(m.session.UserName() + " (you)")
		}
		write(prefix + author)
		for _, line := range strings.Split(render.Body(c.Content, width-2), "\n") {
			write(prefix + line)
		}
		write("")
		m.offsets[i] = itemOffset{startLine: start, endLine: lineCount - 1}
	}
	if len(m.comments) == 0 && !m.loading {
		write(metaStyle.Render("No comments yet."))
	}

	m.viewport.SetContent(sb.String())
}

func (m *Model) scrollToCursor() {
	if m.cursor >= len(m.offsets) {
		return
	}
	ri := m.offsets[m.cursor]
	if ri.startLine < m.viewport.YOffset {
		m.viewport.SetYOffset(ri.startLine)
	}
	if ri.endLine >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(ri.startLine)
	}
}

func (m Model) load() tea.Cmd {
	backend := m.backend
	postID := m.post.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		list, err := backend.ListComments(ctx, postID)
		return messages.CommentsLoadedMsg{PostID: postID, Comments: list, Err: err}
	}
}

func (m Model) save(id string, d api.CommentDraft) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if id == "" {
			c, err := backend.CreateComment(ctx, d)
			return messages.CommentSavedMsg{Comment: c, Err: err}
		}
		c, err := backend.UpdateComment(ctx, id, d)
		return messages.CommentSavedMsg{Comment: c, Edited: true, Err: err}
	}
}

func (m Model) delete(id string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return messages.CommentDeletedMsg{CommentID: id, Err: backend.DeleteComment(ctx, id)}
	}
}
