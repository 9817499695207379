package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Quit     key.Binding
	Back     key.Binding
	Login    key.Binding
	Logout   key.Binding
	Register key.Binding
	Profile  key.Binding
	Help     key.Binding
}

var Keys = KeyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Login:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "login")),
	Logout:   key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "logout")),
	Register: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "register")),
	Profile:  key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "profile")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// HelpLine is the one-line key summary shown by "?".
func (k KeyMap) HelpLine() string {
	s := ""
	for i, b := range []key.Binding{k.Login, k.Logout, k.Register, k.Profile, k.Back, k.Quit} {
		if i > 0 {
			s += "  "
		}
		h := b.Help()
		s += h.Key + " " + h.Desc
	}
	return s
}
