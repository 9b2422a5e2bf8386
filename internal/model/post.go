package model

// UnknownAuthor is the display name used when a post has no resolvable author,
// either because author_id is NULL or the user row is gone.
const UnknownAuthor = "Unknown author"

// Post is a stored blog post.
//
// AuthorID is nil for orphaned posts (the admin tool nulls it when deleting a user).
type Post struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	AuthorID  *int64 `json:"authorId"`
}

// OwnedBy reports whether the actor is exactly the stored author.
// Orphaned posts are owned by nobody.
func (p Post) OwnedBy(actor Actor) bool {
	return p.AuthorID != nil && !actor.IsZero() && *p.AuthorID == actor.UserID
}

// Tag is a named label attachable to many posts.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PostRow is a post joined with its author's username, as read by the query engine.
// Username is empty when the LEFT JOIN found no user.
type PostRow struct {
	Post
	Username string
}

// PostView is a post enriched for presentation: rendered HTML and excerpt, formatted
// timestamp, resolved tags and a non-empty author label.
type PostView struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentHTML string `json:"contentHtml"`
	ExcerptHTML string `json:"excerptHtml"`
	CreatedAt   string `json:"createdAt"`
	AuthorID    *int64 `json:"authorId"`
	Username    string `json:"username"`
	Tags        []Tag  `json:"tags"`
}

// IsAuthoredBy reports whether the actor may edit or delete this post.
func (v PostView) IsAuthoredBy(actor Actor) bool {
	return Post{AuthorID: v.AuthorID}.OwnedBy(actor)
}

// PostPage is one page of the filtered feed.
type PostPage struct {
	Posts      []PostView `json:"posts"`
	Search     string     `json:"search"`
	Tag        string     `json:"tag"`
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	Total      int        `json:"total"`
	TotalPages int        `json:"totalPages"`
}

// HasPrev reports whether a previous page exists.
func (p PostPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p PostPage) HasNext() bool { return p.Page < p.TotalPages }
