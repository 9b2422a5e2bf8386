package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/model"
)

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_ThenGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	post, err := env.posts.Create(ctx, alice, "  Hello  ", "World", "a, b  c")
	require.NoError(t, err)
	require.NotZero(t, post.ID)
	assert.Equal(t, "Hello", post.Title, "title is stored trimmed")

	view, err := env.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", view.Title)
	assert.Equal(t, "World", view.Content)
	assert.Contains(t, view.ContentHTML, "<p>World</p>")
	assert.Equal(t, "alice", view.Username)
	require.NotNil(t, view.AuthorID)
	assert.Equal(t, alice.UserID, *view.AuthorID)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, tagSet(view.Tags))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, view.CreatedAt)
}

func TestCreate_EmptyContentAllowed(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	post, err := env.posts.Create(context.Background(), alice, "Title only", "", "")
	require.NoError(t, err)

	view, err := env.posts.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Content)
	assert.Empty(t, view.Tags)
}

func TestCreate_DuplicateTagNamesCollapse(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	post, err := env.posts.Create(context.Background(), alice, "dups", "", "go go, go Go")
	require.NoError(t, err)

	view, err := env.posts.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "Go"}, tagSet(view.Tags), "case-sensitive, exact duplicates collapse")
}

func TestCreate_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	tests := []struct {
		name    string
		actor   model.Actor
		title   string
		wantErr error
	}{
		{name: "anonymous", actor: model.Actor{}, title: "t", wantErr: apperror.ErrUnauthorized},
		{name: "empty title", actor: alice, title: "", wantErr: apperror.ErrValidation},
		{name: "blank title", actor: alice, title: " \t ", wantErr: apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.posts.Create(ctx, tt.actor, tt.title, "body", "x")
			assert.True(t, errors.Is(err, tt.wantErr), "error = %v, want %v", err, tt.wantErr)
		})
	}

	page, err := env.posts.List(ctx, "", "", 1)
	require.NoError(t, err)
	assert.Zero(t, page.Total, "rejected creates must not write anything")
}

func TestCreate_PersistenceFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	svc := NewPostService(&failingPosts{PostRepository: env.db, failCreate: true}, env.db, brokenRenderer{}, discardLogger())

	_, err := svc.Create(context.Background(), alice, "Hello", "World", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrInternal))
	assert.True(t, errors.Is(err, errStorage), "cause must stay in the chain")
	assert.Equal(t, "Creating post failed: disk on fire", err.Error())
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdate_ReplacesTags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	post, err := env.posts.Create(ctx, alice, "Hello", "World", "a, b  c")
	require.NoError(t, err)

	_, err = env.posts.Update(ctx, alice, post.ID, "Hello", "World", "b")
	require.NoError(t, err)

	view, err := env.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tagSet(view.Tags))

	// "a" and "c" are orphaned but kept.
	all, err := env.posts.Tags(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, tagSet(all))
}

func TestUpdate_ChangesTitleAndContentOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	post, err := env.posts.Create(ctx, alice, "v1", "old", "")
	require.NoError(t, err)
	before, err := env.posts.Get(ctx, post.ID)
	require.NoError(t, err)

	updated, err := env.posts.Update(ctx, alice, post.ID, "v2", "# new", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Title)

	after, err := env.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", after.Title)
	assert.Contains(t, after.ContentHTML, "<h1")
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.Equal(t, before.AuthorID, after.AuthorID)
}

func TestUpdate_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	post, err := env.posts.Create(ctx, alice, "mine", "body", "keep")
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   model.Actor
		id      int64
		title   string
		wantErr error
	}{
		{name: "anonymous", actor: model.Actor{}, id: post.ID, title: "x", wantErr: apperror.ErrUnauthorized},
		{name: "missing post", actor: alice, id: post.ID + 100, title: "x", wantErr: apperror.ErrNotFound},
		{name: "other user", actor: bob, id: post.ID, title: "x", wantErr: apperror.ErrForbidden},
		{name: "other user with empty title is still forbidden", actor: bob, id: post.ID, title: "", wantErr: apperror.ErrForbidden},
		{name: "owner with empty title", actor: alice, id: post.ID, title: "", wantErr: apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.posts.Update(ctx, tt.actor, tt.id, tt.title, "changed", "new")
			assert.True(t, errors.Is(err, tt.wantErr), "error = %v, want %v", err, tt.wantErr)
		})
	}

	view, err := env.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", view.Title)
	assert.Equal(t, "body", view.Content)
	assert.Equal(t, []string{"keep"}, tagSet(view.Tags))
}

func TestUpdate_PersistenceFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	post, err := env.posts.Create(ctx, alice, "t", "", "")
	require.NoError(t, err)

	svc := NewPostService(&failingPosts{PostRepository: env.db, failUpdate: true}, env.db, env.posts.renderer, discardLogger())
	_, err = svc.Update(ctx, alice, post.ID, "t2", "", "")
	assert.True(t, errors.Is(err, apperror.ErrInternal))
	assert.Contains(t, err.Error(), "Updating post failed")
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	post, err := env.posts.Create(ctx, alice, "bye", "", "x")
	require.NoError(t, err)

	err = env.posts.Delete(ctx, bob, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	_, err = env.posts.Get(ctx, post.ID)
	require.NoError(t, err, "forbidden delete must leave the post")

	require.NoError(t, env.posts.Delete(ctx, alice, post.ID))
	_, err = env.posts.Get(ctx, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	err = env.posts.Delete(ctx, alice, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	page, err := env.posts.List(ctx, "", "x", 1)
	require.NoError(t, err)
	assert.Zero(t, page.Total, "tag association is gone with the post")
}

func TestDelete_PersistenceFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	post, err := env.posts.Create(ctx, alice, "t", "", "")
	require.NoError(t, err)

	svc := NewPostService(&failingPosts{PostRepository: env.db, failDelete: true}, env.db, env.posts.renderer, discardLogger())
	err = svc.Delete(ctx, alice, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrInternal))
}

// =========================================================================
// ORPHANED POSTS
// =========================================================================

func TestOrphanedPost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	post, err := env.posts.Create(ctx, alice, "left behind", "", "")
	require.NoError(t, err)
	require.NoError(t, env.admin.DeleteUser(ctx, alice.UserID))

	view, err := env.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnknownAuthor, view.Username)
	assert.Nil(t, view.AuthorID)

	// Nobody may touch a post without an author, not even a stale session of the
	// account that wrote it.
	_, err = env.posts.Update(ctx, alice, post.ID, "mine again", "", "")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	err = env.posts.Delete(ctx, alice, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

// =========================================================================
// EDIT FORM
// =========================================================================

func TestEditForm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	post, err := env.posts.Create(ctx, alice, "Hello", "World", "a, b  c")
	require.NoError(t, err)

	form, err := env.posts.EditForm(ctx, alice, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", form.Post.Title)
	assert.Equal(t, "a, b, c", form.TagsInput)

	_, err = env.posts.EditForm(ctx, bob, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = env.posts.EditForm(ctx, alice, 9999)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// =========================================================================
// LIST
// =========================================================================

func TestList_Pagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	for i := 0; i < 25; i++ {
		_, err := env.posts.Create(ctx, alice, fmt.Sprintf("post %02d", i), "", "")
		require.NoError(t, err)
	}

	tests := []struct {
		page      int
		wantPage  int
		wantCount int
		wantFirst string
		hasPrev   bool
		hasNext   bool
	}{
		{page: 1, wantPage: 1, wantCount: 10, wantFirst: "post 24", hasNext: true},
		{page: 0, wantPage: 1, wantCount: 10, wantFirst: "post 24", hasNext: true},
		{page: -4, wantPage: 1, wantCount: 10, wantFirst: "post 24", hasNext: true},
		{page: 2, wantPage: 2, wantCount: 10, wantFirst: "post 14", hasPrev: true, hasNext: true},
		{page: 3, wantPage: 3, wantCount: 5, wantFirst: "post 04", hasPrev: true},
		{page: 4, wantPage: 4, wantCount: 0, hasPrev: true},
		{page: math.MaxInt, wantPage: math.MaxInt, wantCount: 0, hasPrev: true},
		{page: math.MaxInt/PerPage + 2, wantPage: math.MaxInt/PerPage + 2, wantCount: 0, hasPrev: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			page, err := env.posts.List(ctx, "", "", tt.page)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, PerPage, page.PerPage)
			assert.Equal(t, 25, page.Total)
			assert.Equal(t, 3, page.TotalPages)
			require.Len(t, page.Posts, tt.wantCount)
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, page.Posts[0].Title)
			}
			assert.NotNil(t, page.Posts)
			assert.Equal(t, tt.hasPrev, page.HasPrev())
			assert.Equal(t, tt.hasNext, page.HasNext())
		})
	}
}

func TestList_EmptyFeed(t *testing.T) {
	env := newTestEnv(t)

	page, err := env.posts.List(context.Background(), "", "", 1)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Zero(t, page.TotalPages)
	assert.Empty(t, page.Posts)
	assert.False(t, page.HasNext())
}

func TestList_SearchAndTag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	mustCreate := func(title, content, tags string) {
		_, err := env.posts.Create(ctx, alice, title, content, tags)
		require.NoError(t, err)
	}
	mustCreate("Go tips", "channels", "go")
	mustCreate("Rust tips", "ownership of Go values", "rust")
	mustCreate("Baking", "bread", "go")

	page, err := env.posts.List(ctx, "  go ", "", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total, "search hits title or content")
	assert.Equal(t, "go", page.Search, "echoed back trimmed")

	page, err = env.posts.List(ctx, "", "go", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = env.posts.List(ctx, "tips", "go", 1)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Go tips", page.Posts[0].Title)
}

func TestList_RenderFailureKeepsPost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	_, err := env.posts.Create(ctx, alice, "t", "**bold**", "")
	require.NoError(t, err)

	svc := NewPostService(env.db, env.db, brokenRenderer{}, discardLogger())
	page, err := svc.List(ctx, "", "", 1)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Empty(t, page.Posts[0].ContentHTML)
	assert.Empty(t, page.Posts[0].ExcerptHTML)
	assert.Equal(t, "**bold**", page.Posts[0].Content)
}

func TestGet_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.posts.Get(context.Background(), 1)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
