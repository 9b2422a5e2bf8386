package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/markdown"
	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/repository"
	"github.com/sakif/markdown-blog/internal/repository/sqlite"
	"github.com/sakif/markdown-blog/internal/validation"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================
//
// Most tests run the services against a real in-memory SQLite database: the
// mutation workflows are only interesting together with their transactions.
// Fakes are used where a failure has to be injected.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	db     *sqlite.DB
	posts  *PostService
	auth   *AuthService
	admin  *AdminService
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("service-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)
	v := validation.New()
	logger := discardLogger()

	return &testEnv{
		db:     db,
		posts:  NewPostService(db, db, markdown.New(), logger),
		auth:   NewAuthService(db, tokens, passwords, v, logger),
		admin:  NewAdminService(db, passwords, v, logger),
		tokens: tokens,
	}
}

// register creates an account through the real registration path and returns
// the Actor that account would act as.
func (e *testEnv) register(t *testing.T, username string) model.Actor {
	t.Helper()
	u, err := e.auth.Register(context.Background(), RegisterInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "password-" + username,
		ConfirmPassword: "password-" + username,
	})
	require.NoError(t, err)
	return model.Actor{UserID: u.ID, Username: u.Username}
}

func tagSet(tags []model.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

var errStorage = errors.New("disk on fire")

// failingPosts wraps a real repository and fails the chosen mutations.
type failingPosts struct {
	repository.PostRepository
	failCreate, failUpdate, failDelete bool
}

func (f *failingPosts) CreatePost(ctx context.Context, p *model.Post, tags []string) error {
	if f.failCreate {
		return errStorage
	}
	return f.PostRepository.CreatePost(ctx, p, tags)
}

func (f *failingPosts) UpdatePost(ctx context.Context, p *model.Post, tags []string) error {
	if f.failUpdate {
		return errStorage
	}
	return f.PostRepository.UpdatePost(ctx, p, tags)
}

func (f *failingPosts) DeletePost(ctx context.Context, id int64) error {
	if f.failDelete {
		return errStorage
	}
	return f.PostRepository.DeletePost(ctx, id)
}

// brokenRenderer fails every render.
type brokenRenderer struct{}

func (brokenRenderer) Render(string) (string, error) { return "", errors.New("renderer exploded") }

func (brokenRenderer) Excerpt(string, int) (string, error) {
	return "", errors.New("renderer exploded")
}
