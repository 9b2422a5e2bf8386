package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/flash"
	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/service"
)

const msgPostNotFound = "Post not found"

// PageHandler serves the read-only pages: the feed, a single post and About.
type PageHandler struct {
	posts  *service.PostService
	tmpl   *Templates
	logger *slog.Logger
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(posts *service.PostService, tmpl *Templates, logger *slog.Logger) *PageHandler {
	return &PageHandler{posts: posts, tmpl: tmpl, logger: logger}
}

type indexData struct {
	Page *model.PostPage
	Tags []model.Tag
}

// HandleIndex renders the feed.
//
// HTTP: GET /?search=go&tag=web&page=2
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := h.posts.List(r.Context(), q.Get("search"), q.Get("tag"), parsePage(q.Get("page")))
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}

	tags, err := h.posts.Tags(r.Context())
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}

	h.tmpl.render(w, r, http.StatusOK, "index", "", indexData{Page: page, Tags: tags})
}

type postData struct {
	Post     *model.PostView
	IsAuthor bool
}

// HandlePost renders one post with edit/delete controls for its author.
//
// HTTP: GET /post/{id}
func (h *PageHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		flash.Redirect(w, r, "/", flash.Error, msgPostNotFound)
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			flash.Redirect(w, r, "/", flash.Error, msgPostNotFound)
			return
		}
		serverError(h.logger, w, r, err)
		return
	}

	h.tmpl.render(w, r, http.StatusOK, "post", post.Title, postData{
		Post:     post,
		IsAuthor: post.IsAuthoredBy(actorOf(r)),
	})
}

// HandleAbout renders the static About page.
func (h *PageHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.tmpl.render(w, r, http.StatusOK, "about", "About", nil)
}
