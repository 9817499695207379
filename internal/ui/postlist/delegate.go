package postlist

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const gutter = 5

var (
	rowTitle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	rowTitleSel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7B68EE"))
	rowMeta     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8FA3"))
	rowMetaSel  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	rowPreview  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	likedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7768E"))
	badgeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ECE6A"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B68EE"))

	numberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7B68EE")).
			Width(gutter - 1).
			Align(lipgloss.Right)
)

// Delegate draws a post as three lines: title with badges, a stats line
// (likes, comments, author) and a one-line preview cut to the list width.
type Delegate struct{}

func (d Delegate) Height() int                             { return 3 }
func (d Delegate) Spacing() int                            { return 1 }
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d Delegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(PostItem)
	if !ok {
		return
	}
	selected := index == m.Index()

	number := numberStyle.Render(fmt.Sprintf("%d.", item.Index+1))
	if selected {
		number = cursorStyle.Render(">") + numberStyle.Width(gutter-2).Render(fmt.Sprintf("%d.", item.Index+1))
	}

	fmt.Fprintf(w, "%s %s\n%s%s\n%s%s",
		number, titleLine(item, selected),
		pad(), statsLine(item, selected),
		pad(), rowPreview.Render(clip(item.Preview(), m.Width()-gutter)))
}

func titleLine(item PostItem, selected bool) string {
	style := rowTitle
	if selected {
		style = rowTitleSel
	}
	line := style.Render(item.Title())
	if item.Post.PictureURL != "" {
		line += " " + badgeStyle.Render("[photo]")
	}
	if item.Own {
		line += " " + badgeStyle.Render("(yours)")
	}
	return line
}

func statsLine(item PostItem, selected bool) string {
	meta := rowMeta
	if selected {
		meta = rowMetaSel
	}

	heart := meta.Render("♡")
	if item.Liked {
		heart = likedStyle.Render("♥")
	}
	likes := heart + " " + meta.Render(fmt.Sprint(len(item.Post.Likes)))

	comments := meta.Render("… comments")
	if item.Comments >= 0 {
		comments = meta.Render(plural(item.Comments, "comment"))
	}

	sep := meta.Render(" · ")
	return likes + sep + comments + sep + meta.Render("by "+item.Post.Sender)
}

func pad() string { return strings.Repeat(" ", gutter) }

// clip cuts s to width cells, marking the cut with an ellipsis.
func clip(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
