package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/flash"
	"github.com/sakif/markdown-blog/internal/markdown"
	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/repository/sqlite"
	"github.com/sakif/markdown-blog/internal/service"
	"github.com/sakif/markdown-blog/internal/validation"
	"github.com/sakif/markdown-blog/web"
)

// Handler tests run the real services over an in-memory database and drive them
// through a chi router, the same way the server mounts them.

type handlerEnv struct {
	db     *sqlite.DB
	posts  *service.PostService
	auth   *service.AuthService
	tokens *auth.TokenService
	tmpl   *Templates
	router http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	logger := discardLogger()
	posts := service.NewPostService(db, db, markdown.New(), logger)
	authService := service.NewAuthService(db, tokens,
		auth.NewPasswordServiceWithCost(bcrypt.MinCost), validation.New(), logger)

	tmpl, err := NewTemplates(web.Templates(), logger)
	require.NoError(t, err)

	pages := NewPageHandler(posts, tmpl, logger)
	forms := NewPostHandler(posts, tmpl, logger)
	authHandler := NewAuthHandler(authService, tokens.TTL(), false, tmpl, logger)
	api := NewAPIHandler(posts, authService, logger)

	r := chi.NewRouter()
	r.Use(auth.OptionalAuth(tokens))
	r.Get("/", pages.HandleIndex)
	r.Get("/post/{id}", pages.HandlePost)
	r.Get("/about", pages.HandleAbout)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/create", forms.HandleNew)
		r.Post("/create", forms.HandleCreate)
		r.Get("/edit/{id}", forms.HandleEdit)
		r.Post("/edit/{id}", forms.HandleUpdate)
		r.Post("/delete/{id}", forms.HandleDelete)
	})
	r.Get("/register", authHandler.HandleRegisterPage)
	r.Post("/register", authHandler.HandleRegister)
	r.Get("/login", authHandler.HandleLoginPage)
	r.Post("/login", authHandler.HandleLogin)
	r.Get("/logout", authHandler.HandleLogout)
	r.Get("/api/posts", api.HandleListPosts)
	r.Get("/api/posts/{id}", api.HandleGetPost)
	r.Get("/api/tags", api.HandleListTags)
	r.With(auth.RequireAPIAuth(tokens)).Get("/api/me", api.HandleMe)

	return &handlerEnv{
		db:     db,
		posts:  posts,
		auth:   authService,
		tokens: tokens,
		tmpl:   tmpl,
		router: r,
	}
}

// register creates an account and returns its actor and a session cookie.
func (e *handlerEnv) register(t *testing.T, username string) (model.Actor, *http.Cookie) {
	t.Helper()
	user, err := e.auth.Register(context.Background(), service.RegisterInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "password-" + username,
		ConfirmPassword: "password-" + username,
	})
	require.NoError(t, err)

	actor := model.Actor{UserID: user.ID, Username: user.Username}
	token, err := e.tokens.Generate(actor)
	require.NoError(t, err)
	return actor, &http.Cookie{Name: auth.CookieName, Value: token}
}

func (e *handlerEnv) createPost(t *testing.T, actor model.Actor, title, content, tags string) int64 {
	t.Helper()
	post, err := e.posts.Create(context.Background(), actor, title, content, tags)
	require.NoError(t, err)
	return post.ID
}

// do sends a request through the router. A non-nil form makes it a form POST.
func (e *handlerEnv) do(method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// cookieOf returns the cookie named name set by the response, or nil.
func cookieOf(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// flashOf decodes the flash message set by the response.
func flashOf(t *testing.T, rec *httptest.ResponseRecorder) flash.Message {
	t.Helper()
	c := cookieOf(rec, flash.CookieName)
	require.NotNil(t, c, "response sets no flash cookie")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	msg, ok := flash.Pop(httptest.NewRecorder(), req)
	require.True(t, ok, "flash cookie does not decode")
	return msg
}

// assertRedirect checks a 303 to location with the given flash message.
func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string, kind flash.Kind, text string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, location, rec.Header().Get("Location"))

	msg := flashOf(t, rec)
	require.Equal(t, kind, msg.Kind)
	require.Equal(t, text, msg.Text)
}
