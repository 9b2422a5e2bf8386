package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/flash"
	"github.com/sakif/markdown-blog/internal/service"
)

// PostHandler serves the create, edit and delete forms.
//
// Every route here sits behind auth.RequireAuth, so the actor is always present;
// the services still check it.
//
// OUTCOMES:
//
//	success            → 303 + success flash (create → /, edit → /post/{id}, delete → /)
//	ErrValidation      → the form again, 400, with the typed values kept
//	ErrNotFound        → /        "Post not found"
//	ErrForbidden       → /post/{id} with the service's message
//	ErrUnauthorized    → /login
//	anything else      → the target view with "<action> failed: <cause>"
type PostHandler struct {
	posts  *service.PostService
	tmpl   *Templates
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *service.PostService, tmpl *Templates, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, tmpl: tmpl, logger: logger}
}

// postForm fills the shared "post-form" template.
type postForm struct {
	Action       string
	Submit       string
	PostID       int64
	TitleValue   string
	ContentValue string
	TagsValue    string
}

func newPostForm() postForm {
	return postForm{Action: "/create", Submit: "Publish"}
}

func editPostForm(id int64, title, content, tags string) postForm {
	return postForm{
		Action:       fmt.Sprintf("/edit/%d", id),
		Submit:       "Save changes",
		PostID:       id,
		TitleValue:   title,
		ContentValue: content,
		TagsValue:    tags,
	}
}

// HandleNew renders the empty create form.
//
// HTTP: GET /create
func (h *PostHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.tmpl.render(w, r, http.StatusOK, "create", "New post", newPostForm())
}

// HandleCreate saves a new post.
//
// HTTP: POST /create  (form: title, content, tags)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flash.Redirect(w, r, "/create", flash.Error, "Could not read the form")
		return
	}
	title, content, tags := r.PostFormValue("title"), r.PostFormValue("content"), r.PostFormValue("tags")

	_, err := h.posts.Create(r.Context(), actorOf(r), title, content, tags)
	if err == nil {
		flash.Redirect(w, r, "/", flash.Success, "Post created")
		return
	}

	if errors.Is(err, apperror.ErrValidation) {
		form := newPostForm()
		form.TitleValue, form.ContentValue, form.TagsValue = title, content, tags
		h.tmpl.renderMessage(w, r, http.StatusBadRequest, "create", "New post", form, flash.Error, err.Error())
		return
	}
	h.fail(w, r, err, 0, "/")
}

// HandleEdit renders the edit form prefilled with the stored post.
//
// HTTP: GET /edit/{id}
func (h *PostHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		flash.Redirect(w, r, "/", flash.Error, msgPostNotFound)
		return
	}

	form, err := h.posts.EditForm(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err, id, fmt.Sprintf("/post/%d", id))
		return
	}

	h.tmpl.render(w, r, http.StatusOK, "edit", "Edit post",
		editPostForm(id, form.Post.Title, form.Post.Content, form.TagsInput))
}

// HandleUpdate saves the edit form.
//
// HTTP: POST /edit/{id}  (form: title, content, tags)
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		flash.Redirect(w, r, "/", flash.Error, msgPostNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		flash.Redirect(w, r, fmt.Sprintf("/edit/%d", id), flash.Error, "Could not read the form")
		return
	}
	title, content, tags := r.PostFormValue("title"), r.PostFormValue("content"), r.PostFormValue("tags")

	_, err := h.posts.Update(r.Context(), actorOf(r), id, title, content, tags)
	if err == nil {
		flash.Redirect(w, r, fmt.Sprintf("/post/%d", id), flash.Success, "Post updated")
		return
	}

	if errors.Is(err, apperror.ErrValidation) {
		h.tmpl.renderMessage(w, r, http.StatusBadRequest, "edit", "Edit post",
			editPostForm(id, title, content, tags), flash.Error, err.Error())
		return
	}
	h.fail(w, r, err, id, fmt.Sprintf("/post/%d", id))
}

// HandleDelete removes a post.
//
// HTTP: POST /delete/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		flash.Redirect(w, r, "/", flash.Error, msgPostNotFound)
		return
	}

	if err := h.posts.Delete(r.Context(), actorOf(r), id); err != nil {
		h.fail(w, r, err, id, "/")
		return
	}
	flash.Redirect(w, r, "/", flash.Success, "Post deleted")
}

// fail turns a non-validation service error into a flash + redirect. target is
// where the request would have landed had it succeeded.
func (h *PostHandler) fail(w http.ResponseWriter, r *http.Request, err error, id int64, target string) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		flash.Redirect(w, r, "/", flash.Error, msgPostNotFound)
	case errors.Is(err, apperror.ErrForbidden):
		flash.Redirect(w, r, fmt.Sprintf("/post/%d", id), flash.Error, err.Error())
	case errors.Is(err, apperror.ErrUnauthorized):
		flash.Redirect(w, r, auth.LoginPath, flash.Info, err.Error())
	default:
		h.logger.Error("post mutation failed",
			slog.String("path", r.URL.Path),
			slog.Int64("post_id", id),
			slog.String("error", err.Error()),
		)
		flash.Redirect(w, r, target, flash.Error,
			apperror.MessageOf(err, "Something went wrong, please try again"))
	}
}
