// Package service contains the business logic layer of the blog.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses, owns flash/redirects
//	Service (Business layer) → validates, checks ownership, enriches posts for display
//	Repository (Data layer)  → reads/writes SQLite, owns transactions
//
// Services take repository interfaces, never *sqlite.DB, so every rule here is
// exercised in tests against an in-memory database or a fake. They also never
// read identity from a context: the acting user is always an explicit
// model.Actor argument, resolved by the auth middleware and handed in by the
// handler (or by the admin CLI, which has no HTTP at all).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/repository"
	"github.com/sakif/markdown-blog/internal/tagging"
	"github.com/sakif/markdown-blog/internal/timefmt"
)

// PerPage is the fixed size of one feed page.
const PerPage = 10

// ExcerptBlocks is how many top-level Markdown blocks the feed shows per post.
const ExcerptBlocks = 5

// Renderer converts Markdown to HTML fragments. *markdown.Renderer satisfies it.
type Renderer interface {
	Render(src string) (string, error)
	Excerpt(src string, blocks int) (string, error)
}

// PostService runs the feed queries and the post mutation workflows.
type PostService struct {
	posts    repository.PostRepository
	tags     repository.TagRepository
	renderer Renderer
	logger   *slog.Logger
}

// NewPostService creates a PostService. In production the sqlite DB is passed as
// both posts and tags.
func NewPostService(
	posts repository.PostRepository,
	tags repository.TagRepository,
	renderer Renderer,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		posts:    posts,
		tags:     tags,
		renderer: renderer,
		logger:   logger,
	}
}

// EditForm is what the edit page is prefilled with.
type EditForm struct {
	Post      model.PostView
	TagsInput string // tag names joined by ", "
}

// =========================================================================
// QUERIES
// =========================================================================

// List returns one page of the feed, filtered by search text and/or tag name.
//
// PAGINATION:
// page is 1-indexed; anything below 1 is treated as 1. A page past the end is not
// an error: it comes back empty with the real Total and TotalPages, so the
// template can still offer a link back.
//
//	page 3 → LIMIT 10 OFFSET 20
func (s *PostService) List(ctx context.Context, search, tag string, page int) (*model.PostPage, error) {
	if page < 1 {
		page = 1
	}

	filter := repository.PostFilter{
		Search: strings.TrimSpace(search),
		Tag:    strings.TrimSpace(tag),
		Limit:  PerPage,
	}

	total, err := s.posts.CountPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("counting posts: %w", err)
	}

	result := &model.PostPage{
		Posts:      []model.PostView{},
		Search:     filter.Search,
		Tag:        filter.Tag,
		Page:       page,
		PerPage:    PerPage,
		Total:      total,
		TotalPages: (total + PerPage - 1) / PerPage,
	}

	// Checked before the offset is computed, so a huge page number cannot overflow it.
	if page > result.TotalPages {
		return result, nil
	}
	filter.Offset = (page - 1) * PerPage

	rows, err := s.posts.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	for _, row := range rows {
		view, err := s.enrich(ctx, row)
		if err != nil {
			return nil, err
		}
		result.Posts = append(result.Posts, view)
	}
	return result, nil
}

// Get returns a single enriched post.
// Returns apperror.ErrNotFound if the post doesn't exist.
func (s *PostService) Get(ctx context.Context, id int64) (*model.PostView, error) {
	row, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	view, err := s.enrich(ctx, *row)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Tags returns every known tag for the tag cloud.
func (s *PostService) Tags(ctx context.Context) ([]model.Tag, error) {
	tags, err := s.tags.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// enrich turns a stored row into what the pages and the API show: tags, rendered
// HTML and excerpt, a display timestamp and an author label that is never empty.
//
// A Markdown failure is logged and leaves ContentHTML empty; a tag lookup failure
// fails the whole request.
func (s *PostService) enrich(ctx context.Context, row model.PostRow) (model.PostView, error) {
	tags, err := s.tags.TagsForPost(ctx, row.ID)
	if err != nil {
		return model.PostView{}, fmt.Errorf("loading tags of post %d: %w", row.ID, err)
	}

	html, err := s.renderer.Render(row.Content)
	if err != nil {
		s.logger.Warn("failed to render post",
			slog.Int64("post_id", row.ID),
			slog.String("error", err.Error()),
		)
		html = ""
	}

	excerpt, err := s.renderer.Excerpt(row.Content, ExcerptBlocks)
	if err != nil {
		s.logger.Warn("failed to render post excerpt",
			slog.Int64("post_id", row.ID),
			slog.String("error", err.Error()),
		)
		excerpt = ""
	}

	view := model.PostView{
		ID:          row.ID,
		Title:       row.Title,
		Content:     row.Content,
		ContentHTML: html,
		ExcerptHTML: excerpt,
		CreatedAt:   timefmt.Format(row.CreatedAt),
		AuthorID:    row.AuthorID,
		Username:    row.Username,
		Tags:        tags,
	}

	// LEFT JOIN misses cover both a NULL author_id and a dangling one.
	if view.Username == "" {
		view.Username = model.UnknownAuthor
		view.AuthorID = nil
	}

	return view, nil
}

// =========================================================================
// MUTATIONS
// =========================================================================
//
// CHECK ORDER (all before any write):
//  1. auth.RequireActor → ErrUnauthorized
//  2. the post exists    → ErrNotFound      (Update, Delete, EditForm)
//  3. actor is author    → ErrForbidden     (Update, Delete, EditForm)
//  4. title is non-empty → ErrValidation    (Create, Update)
//
// Persistence failures after that are rolled back by the repository and come back
// as apperror.Internal, whose message carries the cause.

// Create validates and saves a new post authored by actor.
func (s *PostService) Create(ctx context.Context, actor model.Actor, title, content, tagsInput string) (*model.Post, error) {
	if err := auth.RequireActor(actor); err != nil {
		return nil, err
	}

	title, err := requireTitle(title)
	if err != nil {
		return nil, err
	}

	authorID := actor.UserID
	post := &model.Post{
		Title:     title,
		Content:   content,
		CreatedAt: timefmt.Now(),
		AuthorID:  &authorID,
	}
	tagNames := tagging.Split(tagsInput)

	if err := s.posts.CreatePost(ctx, post, tagNames); err != nil {
		s.logger.Error("failed to create post",
			slog.Int64("actor_id", actor.UserID),
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("Creating post", err)
	}

	s.logger.Info("post created",
		slog.Int64("actor_id", actor.UserID),
		slog.Int64("post_id", post.ID),
		slog.Any("tags", tagNames),
	)
	return post, nil
}

// Update rewrites title and content and replaces the tag set. Author, id and
// creation time never change.
func (s *PostService) Update(ctx context.Context, actor model.Actor, id int64, title, content, tagsInput string) (*model.Post, error) {
	row, err := s.ownedPost(ctx, actor, id, "You can only edit your own posts")
	if err != nil {
		return nil, err
	}

	title, err = requireTitle(title)
	if err != nil {
		return nil, err
	}

	post := row.Post
	post.Title = title
	post.Content = content
	tagNames := tagging.Split(tagsInput)

	if err := s.posts.UpdatePost(ctx, &post, tagNames); err != nil {
		s.logger.Error("failed to update post",
			slog.Int64("actor_id", actor.UserID),
			slog.Int64("post_id", id),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("Updating post", err)
	}

	s.logger.Info("post updated",
		slog.Int64("actor_id", actor.UserID),
		slog.Int64("post_id", id),
		slog.Any("tags", tagNames),
	)
	return &post, nil
}

// Delete removes a post owned by actor. Its tag associations go with it; the
// tags stay.
func (s *PostService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if _, err := s.ownedPost(ctx, actor, id, "You can only delete your own posts"); err != nil {
		return err
	}

	if err := s.posts.DeletePost(ctx, id); err != nil {
		s.logger.Error("failed to delete post",
			slog.Int64("actor_id", actor.UserID),
			slog.Int64("post_id", id),
			slog.String("error", err.Error()),
		)
		return apperror.Internal("Deleting post", err)
	}

	s.logger.Info("post deleted",
		slog.Int64("actor_id", actor.UserID),
		slog.Int64("post_id", id),
	)
	return nil
}

// EditForm loads a post owned by actor together with its tags as editable text.
func (s *PostService) EditForm(ctx context.Context, actor model.Actor, id int64) (*EditForm, error) {
	row, err := s.ownedPost(ctx, actor, id, "You can only edit your own posts")
	if err != nil {
		return nil, err
	}

	view, err := s.enrich(ctx, *row)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(view.Tags))
	for _, t := range view.Tags {
		names = append(names, t.Name)
	}

	return &EditForm{Post: view, TagsInput: tagging.Join(names)}, nil
}

// ownedPost runs checks 1–3 and returns the stored post.
func (s *PostService) ownedPost(ctx context.Context, actor model.Actor, id int64, denied string) (*model.PostRow, error) {
	if err := auth.RequireActor(actor); err != nil {
		return nil, err
	}

	row, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	if !row.OwnedBy(actor) {
		s.logger.Warn("post ownership check failed",
			slog.Int64("actor_id", actor.UserID),
			slog.Int64("post_id", id),
		)
		return nil, apperror.Forbidden(denied)
	}
	return row, nil
}

func requireTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "Title is required")
	}
	return title, nil
}
