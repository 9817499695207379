package postlist

import (
	"fmt"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/render"
)

const previewLen = 120

// PostItem wraps a post for the bubbles list.
type PostItem struct {
	Post     api.Post
	Index    int
	Comments int
	Liked    bool
	Own      bool
}

func (p PostItem) Title() string {
	if p.Post.Title != "" {
		return p.Post.Title
	}
	return "(untitled)"
}

// Preview is the first line of the post body.
func (p PostItem) Preview() string {
	return render.Preview(p.Post.Content, previewLen)
}

func (p PostItem) FilterValue() string {
	return p.Post.Title + " " + p.Post.Sender
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
