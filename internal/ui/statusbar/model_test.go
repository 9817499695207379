package statusbar

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fragmede/astroshare/internal/session"
)

func TestView_LoggedOutShowsLoginHint(t *testing.T) {
	m := New()
	m.SetSize(60)
	out := m.View()
	assert.Contains(t, out, "Posts")
	assert.Contains(t, out, "L:login")
}

func TestView_ShowsUserAndStatus(t *testing.T) {
	m := New()
	m.SetSize(80)
	m.SetView("Profile")
	m.SetSession(session.Session{Account: session.FederatedAccount{User: session.Identity{UserID: "u1", UserName: "vega"}}})
	m.SetStatus("Saved", false)

	out := m.View()
	assert.Contains(t, out, "Profile")
	assert.Contains(t, out, "vega")
	assert.Contains(t, out, "Saved")
	assert.NotContains(t, out, "L:login")
}
