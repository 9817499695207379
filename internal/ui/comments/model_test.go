package comments

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/ui/messages"
)

type fakeBackend struct {
	list    []api.Comment
	listErr error
	created []api.CommentDraft
	updated map[string]api.CommentDraft
	deleted []string
}

func (f *fakeBackend) ListComments(context.Context, string) ([]api.Comment, error) {
	return f.list, f.listErr
}

func (f *fakeBackend) CreateComment(_ context.Context, d api.CommentDraft) (*api.Comment, error) {
	f.created = append(f.created, d)
	return &api.Comment{ID: "c-new", Content: d.Content, Sender: d.Sender, PostID: d.PostID}, nil
}

func (f *fakeBackend) UpdateComment(_ context.Context, id string, d api.CommentDraft) (*api.Comment, error) {
	if f.updated == nil {
		f.updated = map[string]api.CommentDraft{}
	}
	f.updated[id] = d
	return &api.Comment{ID: id, Content: d.Content, Sender: d.Sender, PostID: d.PostID}, nil
}

func (f *fakeBackend) DeleteComment(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

var post = api.Post{ID: "p1", Title: "Orion Nebula", Content: "Long exposure", Sender: "vega"}

func user(id, name string) session.Session {
	return session.Session{Account: session.LocalAccount{User: session.Identity{UserID: id, UserName: name}}}
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func newLoaded(t *testing.T, b *fakeBackend, s session.Session) Model {
	t.Helper()
	m := New(post, s, b)
	m.SetSize(100, 40)
	m, _ = m.Update(m.Init()())
	return m
}

func TestLoad(t *testing.T) {
	b := &fakeBackend{list: []api.Comment{
		{ID: "c1", Content: gofakeit.Sentence(6), Sender: "u2", PostID: "p1"},
		{ID: "c2", Content: gofakeit.Sentence(6), Sender: "u1", PostID: "p1"},
	}}
	m := newLoaded(t, b, session.Session{})
	assert.Len(t, m.Comments(), 2)
	assert.Contains(t, m.View(), "Comments (2)")
}

func TestLoad_IgnoresOtherPost(t *testing.T) {
	m := New(post, session.Session{}, &fakeBackend{})
	m, _ = m.Update(messages.CommentsLoadedMsg{PostID: "other", Comments: []api.Comment{{ID: "x"}}})
	assert.Empty(t, m.Comments())
}

func TestLoad_Error(t *testing.T) {
	m := newLoaded(t, &fakeBackend{listErr: errors.New("HTTP 500")}, session.Session{})
	assert.Equal(t, "HTTP 500", m.Err())
}

func TestAdd_RequiresLogin(t *testing.T) {
	m := newLoaded(t, &fakeBackend{}, session.Session{})
	m, cmd := m.Update(runes("c"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.OpenLoginMsg{}, cmd())
	assert.False(t, m.Composing())
}

func TestAdd_SendsUserIDAsSender(t *testing.T) {
	b := &fakeBackend{}
	m := newLoaded(t, b, user("u1", "orion"))

	m, _ = m.Update(runes("c"))
	require.True(t, m.Composing())
	for _, r := range "clear skies" {
		m, _ = m.Update(runes(string(r)))
	}
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	require.Len(t, b.created, 1)
	assert.Equal(t, api.CommentDraft{Content: "clear skies", Sender: "u1", PostID: "p1"}, b.created[0])
	assert.False(t, m.Composing())
	assert.Len(t, m.Comments(), 1)
}

func TestEmptyCommentRejected(t *testing.T) {
	b := &fakeBackend{}
	m := newLoaded(t, b, user("u1", "orion"))
	m, _ = m.Update(runes("c"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)
	assert.NotEmpty(t, m.Err())
	assert.Empty(t, b.created)
}

func TestEditAndDelete_OnlyOwn(t *testing.T) {
	b := &fakeBackend{list: []api.Comment{
		{ID: "c1", Content: "theirs", Sender: "u2", PostID: "p1"},
		{ID: "c2", Content: "mine", Sender: "u1", PostID: "p1"},
	}}
	m := newLoaded(t, b, user("u1", "orion"))

	m, cmd := m.Update(runes("e"))
	assert.Nil(t, cmd)
	assert.False(t, m.Composing())

	m, _ = m.Update(runes("j"))
	m, _ = m.Update(runes("e"))
	require.True(t, m.Composing())
	m, _ = m.Update(runes("!"))
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.Equal(t, "mine!", b.updated["c2"].Content)
	assert.Equal(t, "mine!", m.Comments()[1].Content)

	m, _ = m.Update(runes("d"))
	assert.Empty(t, b.deleted)
	m, cmd = m.Update(runes("d"))
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.Equal(t, []string{"c2"}, b.deleted)
	assert.Len(t, m.Comments(), 1)
}

func TestEsc_CancelsComposer(t *testing.T) {
	m := newLoaded(t, &fakeBackend{}, user("u1", "orion"))
	m, _ = m.Update(runes("c"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Composing())
}
