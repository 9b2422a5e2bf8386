// Package repository declares the storage contracts the service layer depends on.
// The sqlite subpackage is the only implementation; services receive these
// interfaces so they can be tested against in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/markdown-blog/internal/model"
)

// PostFilter selects posts for the feed. Empty Search and Tag mean "no filter".
type PostFilter struct {
	Search string // substring of title or content
	Tag    string // exact tag name
	Limit  int
	Offset int
}

// PostRepository reads posts and runs the transactional mutation sequences.
type PostRepository interface {
	ListPosts(ctx context.Context, filter PostFilter) ([]model.PostRow, error)
	CountPosts(ctx context.Context, filter PostFilter) (int, error)
	GetPost(ctx context.Context, id int64) (*model.PostRow, error)

	// CreatePost inserts the post and associates tagNames in one transaction,
	// creating missing tags. It fills in post.ID.
	CreatePost(ctx context.Context, post *model.Post, tagNames []string) error
	// UpdatePost rewrites title and content and replaces the whole tag set in one
	// transaction.
	UpdatePost(ctx context.Context, post *model.Post, tagNames []string) error
	DeletePost(ctx context.Context, id int64) error
}

// TagRepository reads tags.
type TagRepository interface {
	TagsForPost(ctx context.Context, postID int64) ([]model.Tag, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
}

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	// DeleteUser removes the account and orphans its posts (author_id = NULL) in one
	// transaction. Posts are never deleted with their author.
	DeleteUser(ctx context.Context, id int64) error
}
