package postlist

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/config"
	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/ui/messages"
)

const allPostsKey = "all"

// Backend is the post API used by the list.
type Backend interface {
	ListPosts(ctx context.Context, sender string) ([]api.Post, error)
	ToggleLike(ctx context.Context, id, userName string) (*api.Post, error)
	DeletePost(ctx context.Context, id string) error
	CommentCounts(ctx context.Context, postIDs []string) (map[string]int, error)
}

// Cache stores fetched post lists.
type Cache interface {
	GetPostList(ctx context.Context, listKey string, ttl time.Duration) ([]api.Post, bool, error)
	PutPostList(ctx context.Context, listKey string, posts []api.Post) error
	InvalidatePostLists(ctx context.Context) error
}

// Model is the paginated post list view.
type Model struct {
	list          list.Model
	posts         []api.Post
	counts        map[string]int
	page          int
	session       session.Session
	pendingDelete string
	backend       Backend
	cache         Cache
	cfg           config.Config
	loading       bool
	width         int
	height        int
}

// New creates a new post list model.
func New(cfg config.Config, backend Backend, cache Cache) Model {
	l := list.New(nil, Delegate{}, 0, 0)
	l.Title = "AstroShare"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)

	if cfg.PostsPerPage <= 0 {
		cfg.PostsPerPage = config.Default().PostsPerPage
	}

	return Model{
		list:    l,
		counts:  map[string]int{},
		backend: backend,
		cache:   cache,
		cfg:     cfg,
	}
}

// Init loads the post list.
func (m Model) Init() tea.Cmd {
	return m.loadPosts(false)
}

// SetSize updates the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.list.SetSize(w, h)
}

// SetSession updates the user the list renders likes and ownership for.
func (m *Model) SetSession(s session.Session) {
	m.session = s
	m.pendingDelete = ""
	m.refreshItems()
}

// Page returns the zero-based current page.
func (m Model) Page() int { return m.page }

// PageCount returns the number of pages, at least one.
func (m Model) PageCount() int {
	n := (len(m.posts) + m.cfg.PostsPerPage - 1) / m.cfg.PostsPerPage
	if n == 0 {
		return 1
	}
	return n
}

// Visible returns the posts on the current page.
func (m Model) Visible() []api.Post {
	start := m.page * m.cfg.PostsPerPage
	if start >= len(m.posts) {
		return nil
	}
	end := start + m.cfg.PostsPerPage
	if end > len(m.posts) {
		end = len(m.posts)
	}
	return m.posts[start:end]
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.PostsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.list.Title = "Error: " + msg.Err.Error()
			return m, nil
		}
		m.posts = msg.Posts
		if m.page >= m.PageCount() {
			m.page = m.PageCount() - 1
		}
		m.refreshItems()
		if msg.Stale {
			m.list.Title += " (offline)"
		}
		return m, m.loadCounts()

	case messages.CommentCountsMsg:
		for id, n := range msg.Counts {
			m.counts[id] = n
		}
		m.refreshItems()
		return m, nil

	case messages.LikeResultMsg:
		if msg.Err != nil {
			return m, status("Like failed: "+msg.Err.Error(), true)
		}
		m.replace(*msg.Post)
		return m, m.persist()

	case messages.PostSavedMsg:
		if msg.Err != nil || msg.Post == nil {
			return m, nil
		}
		if msg.Created {
			m.posts = append([]api.Post{*msg.Post}, m.posts...)
			m.page = 0
		} else {
			m.replace(*msg.Post)
		}
		m.refreshItems()
		return m, tea.Batch(m.persist(), m.loadCounts())

	case messages.PostDeletedMsg:
		if msg.Err != nil {
			return m, status("Delete failed: "+msg.Err.Error(), true)
		}
		for i, p := range m.posts {
			if p.ID == msg.PostID {
				m.posts = append(m.posts[:i:i], m.posts[i+1:]...)
				break
			}
		}
		if m.page >= m.PageCount() {
			m.page = m.PageCount() - 1
		}
		m.refreshItems()
		return m, tea.Batch(m.persist(), status("Post deleted", false))

	case tea.KeyMsg:
		key := msg.String()
		if key != "d" {
			m.pendingDelete = ""
		}
		switch key {
		case "enter":
			if item, ok := m.list.SelectedItem().(PostItem); ok {
				post := item.Post
				return m, func() tea.Msg { return messages.OpenCommentsMsg{Post: post} }
			}
			return m, nil
		case "right", "n", "pgdown":
			if m.page < m.PageCount()-1 {
				m.page++
				m.list.Select(0)
				m.refreshItems()
				return m, m.loadCounts()
			}
			return m, nil
		case "left", "p", "pgup":
			if m.page > 0 {
				m.page--
				m.list.Select(0)
				m.refreshItems()
				return m, m.loadCounts()
			}
			return m, nil
		case "r", "ctrl+r":
			m.loading = true
			m.list.Title = m.title() + " (refreshing...)"
			return m, m.loadPosts(true)
		case "l":
			item, ok := m.list.SelectedItem().(PostItem)
			if !ok {
				return m, nil
			}
			if !m.session.LoggedIn() {
				return m, openLogin
			}
			return m, m.toggleLike(item.Post.ID)
		case "a":
			if !m.session.LoggedIn() {
				return m, openLogin
			}
			return m, func() tea.Msg { return messages.OpenPostFormMsg{} }
		case "e":
			item, ok := m.list.SelectedItem().(PostItem)
			if !ok || !item.Own {
				return m, nil
			}
			post := item.Post
			return m, func() tea.Msg { return messages.OpenPostFormMsg{Post: &post} }
		case "d":
			item, ok := m.list.SelectedItem().(PostItem)
			if !ok || !item.Own {
				return m, nil
			}
			if m.pendingDelete != item.Post.ID {
				m.pendingDelete = item.Post.ID
				return m, status("Press d again to delete \""+item.Title()+"\"", false)
			}
			m.pendingDelete = ""
			return m, m.deletePost(item.Post.ID)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the post list.
func (m Model) View() string {
	return m.list.View()
}

func (m *Model) replace(p api.Post) {
	for i := range m.posts {
		if m.posts[i].ID == p.ID {
			m.posts[i] = p
		}
	}
	m.refreshItems()
}

func (m *Model) refreshItems() {
	visible := m.Visible()
	items := make([]list.Item, 0, len(visible))
	user := m.session.UserName()
	for i, p := range visible {
		n, ok := m.counts[p.ID]
		if !ok {
			n = -1
		}
		items = append(items, PostItem{
			Post:     p,
			Index:    m.page*m.cfg.PostsPerPage + i,
			Comments: n,
			Liked:    p.LikedBy(user),
			Own:      user != "" && p.Sender == user,
		})
	}
	m.list.SetItems(items)
	if !m.loading {
		m.list.Title = m.title()
	}
}

func (m Model) title() string {
	return fmt.Sprintf("AstroShare  page %d/%d", m.page+1, m.PageCount())
}

func (m Model) loadPosts(force bool) tea.Cmd {
	backend := m.backend
	db := m.cache
	cfg := m.cfg
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+time.Second)
		defer cancel()

		if force {
			_ = db.InvalidatePostLists(ctx)
		}
		cached, fresh, _ := db.GetPostList(ctx, allPostsKey, cfg.PostListTTL)
		if fresh && cached != nil {
			return messages.PostsLoadedMsg{Posts: cached}
		}

		posts, err := backend.ListPosts(ctx, "")
		if err != nil {
			if cached != nil {
				return messages.PostsLoadedMsg{Posts: cached, Stale: true}
			}
			return messages.PostsLoadedMsg{Err: err}
		}
		_ = db.PutPostList(ctx, allPostsKey, posts)
		return messages.PostsLoadedMsg{Posts: posts}
	}
}

func (m Model) loadCounts() tea.Cmd {
	visible := m.Visible()
	if len(visible) == 0 {
		return nil
	}
	ids := make([]string, len(visible))
	for i, p := range visible {
		ids[i] = p.ID
	}
	backend := m.backend
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
		defer cancel()
		counts, _ := backend.CommentCounts(ctx, ids)
		return messages.CommentCountsMsg{Counts: counts}
	}
}

func (m Model) toggleLike(id string) tea.Cmd {
	backend := m.backend
	user := m.session.UserName()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		post, err := backend.ToggleLike(ctx, id, user)
		return messages.LikeResultMsg{Post: post, Err: err}
	}
}

func (m Model) deletePost(id string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return messages.PostDeletedMsg{PostID: id, Err: backend.DeletePost(ctx, id)}
	}
}

func (m Model) persist() tea.Cmd {
	posts := append([]api.Post(nil), m.posts...)
	db := m.cache
	return func() tea.Msg {
		_ = db.PutPostList(context.Background(), allPostsKey, posts)
		return nil
	}
}

func openLogin() tea.Msg { return messages.OpenLoginMsg{} }

func status(text string, isError bool) tea.Cmd {
	return func() tea.Msg { return messages.StatusMsg{Text: text, IsError: isError} }
}
