package messages

import (
	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/session"
)

// View transition messages.
type (
	GoBackMsg         struct{}
	OpenLoginMsg      struct{}
	OpenRegisterMsg   struct{}
	OpenCommentsMsg   struct{ Post api.Post }
	OpenProfileMsg    struct{}
	OpenChooseNameMsg struct{}

	// OpenPostFormMsg opens the post editor. A nil Post creates a new one.
	OpenPostFormMsg struct{ Post *api.Post }
)

// Data messages.
type (
	PostsLoadedMsg struct {
		Posts []api.Post
		Stale bool
		Err   error
	}

	CommentCountsMsg struct {
		Counts map[string]int
	}

	CommentsLoadedMsg struct {
		PostID   string
		Comments []api.Comment
		Err      error
	}

	UserPostsLoadedMsg struct {
		Posts []api.Post
		Err   error
	}

	LoginResultMsg struct {
		Provider bool
		Err      error
	}

	// ProviderPromptMsg carries the device code the user must approve.
	ProviderPromptMsg struct {
		VerificationURI string
		UserCode        string
	}

	RegisterResultMsg struct {
		UserName string
		Err      error
	}

	PostSavedMsg struct {
		Post    *api.Post
		Created bool
		Err     error
	}

	PostDeletedMsg struct {
		PostID string
		Err    error
	}

	LikeResultMsg struct {
		Post *api.Post
		Err  error
	}

	CommentSavedMsg struct {
		Comment *api.Comment
		Edited  bool
		Err     error
	}

	CommentDeletedMsg struct {
		CommentID string
		Err       error
	}

	ProfileSavedMsg struct {
		Err error
	}

	LogoutResultMsg struct {
		Err error
	}

	// SessionChangedMsg is forwarded from the session manager's subscription.
	SessionChangedMsg struct {
		Session session.Session
	}

	StatusMsg struct {
		Text    string
		IsError bool
	}
)
