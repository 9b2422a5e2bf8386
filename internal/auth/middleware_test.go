package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/flash"
	"github.com/sakif/markdown-blog/internal/model"
)

// echoActor writes the username of the context Actor, or "anonymous".
var echoActor = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(actor.Username))
})

func requestWithToken(t *testing.T, ts *TokenService, actor model.Actor) *http.Request {
	t.Helper()
	token, err := ts.Generate(actor)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/create", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	return req
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	h := OptionalAuth(ts)(echoActor)

	t.Run("valid cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithToken(t, ts, alice))
		assert.Equal(t, "alice", rec.Body.String())
	})

	t.Run("no cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("bad cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})
}

func TestRequireAuth_RedirectsAnonymous(t *testing.T) {
	ts := newTestTokenService(t)
	h := RequireAuth(ts)(echoActor)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/create", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))

	var sawFlash bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == flash.CookieName {
			sawFlash = true
		}
	}
	assert.True(t, sawFlash, "redirect should carry a flash message")
}

func TestRequireAuth_AllowsLoggedIn(t *testing.T) {
	ts := newTestTokenService(t)
	h := OptionalAuth(ts)(RequireAuth(ts)(echoActor))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(t, ts, alice))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestRequireAPIAuth(t *testing.T) {
	ts := newTestTokenService(t)
	h := RequireAPIAuth(ts)(echoActor)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body["error"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(t, ts, alice))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireActor(t *testing.T) {
	err := RequireActor(model.Actor{})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	assert.NoError(t, RequireActor(alice))
}
