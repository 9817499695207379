package api

// User is the canonical user record returned by GET /users/{userName}.
type User struct {
	ID                string `json:"_id"`
	UserName          string `json:"userName"`
	Email             string `json:"email,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	GoogleID          string `json:"googleId,omitempty"`
	Bio               string `json:"bio,omitempty"`
}

// AuthResult is the body of every successful login exchange.
type AuthResult struct {
	ID                string `json:"_id"`
	UserName          string `json:"userName"`
	ProfilePictureURL string `json:"profilePictureUrl"`
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
}

func (r *AuthResult) valid() bool {
	return r.ID != "" && r.UserName != "" && r.AccessToken != "" && r.RefreshToken != ""
}

// Post is a text post with an optional picture.
type Post struct {
	ID         string   `json:"_id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Sender     string   `json:"sender"`
	PictureURL string   `json:"pictureUrl,omitempty"`
	Likes      []string `json:"likes,omitempty"`
}

// LikedBy reports whether userName is among the post's likes.
func (p Post) LikedBy(userName string) bool {
	if userName == "" {
		return false
	}
	for _, l := range p.Likes {
		if l == userName {
			return true
		}
	}
	return false
}

// Comment is a comment on a post. Sender holds the author's user id.
type Comment struct {
	ID      string `json:"_id"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
	PostID  string `json:"postId"`
}

// Registration is the payload of POST /auth/register.
type Registration struct {
	Email           string
	UserName        string
	Password        string
	ConfirmPassword string
	PicturePath     string
}

// LocalProfileUpdate edits a password account.
type LocalProfileUpdate struct {
	Password      string
	PicturePath   string
	OldPictureURL string
}

// FederatedProfileUpdate edits a third-party identity account.
type FederatedProfileUpdate struct {
	UserName    string
	Bio         string
	PicturePath string
}

// PostDraft is the editable part of a post.
type PostDraft struct {
	Title       string
	Content     string
	PhotoPath   string
	DeletePhoto bool
}

// CommentDraft is the body of comment create/update calls.
type CommentDraft struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
	PostID  string `json:"postId"`
}
