package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/service"
)

// APIHandler serves the read-only JSON API under /api.
type APIHandler struct {
	posts  *service.PostService
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(posts *service.PostService, authService *service.AuthService, logger *slog.Logger) *APIHandler {
	return &APIHandler{posts: posts, auth: authService, logger: logger}
}

// HandleListPosts returns one page of the feed.
//
// HTTP: GET /api/posts?search=&tag=&page=
func (h *APIHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.posts.List(r.Context(), q.Get("search"), q.Get("tag"), parsePage(q.Get("page")))
	if err != nil {
		h.logger.Error("failed to list posts", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGetPost returns a single enriched post.
//
// HTTP: GET /api/posts/{id}
func (h *APIHandler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, ok := parseID(raw)
	if !ok {
		writeError(w, apperror.NotFound("Post", raw))
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleListTags returns every tag in creation order.
//
// HTTP: GET /api/tags
func (h *APIHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.posts.Tags(r.Context())
	if err != nil {
		h.logger.Error("failed to list tags", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if tags == nil {
		tags = []model.Tag{} // encode as [] rather than null
	}
	writeJSON(w, http.StatusOK, tags)
}

// HandleMe returns the logged-in user's profile. Mounted behind
// auth.RequireAPIAuth.
//
// HTTP: GET /api/me
func (h *APIHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
