// Package handler contains the HTTP handlers of the blog: HTML pages and forms,
// and the read-only JSON API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path params, query string, form body)
//  2. Read the actor from the request context and call a service with it
//  3. Turn the result into a response: a rendered page, a flash + redirect, or JSON
//
// Handlers hold no business rules. Everything they decide is "which page / which
// status / which flash message" for a given apperror sentinel.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/flash"
	"github.com/sakif/markdown-blog/internal/model"
)

// pageNames are the templates under web/templates that fill the "content" block.
var pageNames = []string{"index", "post", "create", "edit", "login", "register", "about"}

// PageData is what every page template receives.
//
// TEMPLATE COMPOSITION:
// base.html renders the header (using Actor/LoggedIn), the flash banner and the
// footer, then calls {{template "content" .}}. Each page reads its own payload
// from .Data.
type PageData struct {
	Title    string
	Actor    model.Actor
	LoggedIn bool
	Flash    *flash.Message
	Year     int
	Data     any
}

// Templates holds one parsed template set per page. They are parsed once at
// startup and are safe for concurrent use.
type Templates struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewTemplates parses base.html and form.html together with every page file in fsys.
func NewTemplates(fsys fs.FS, logger *slog.Logger) (*Templates, error) {
	t := &Templates{
		pages:  make(map[string]*template.Template, len(pageNames)),
		logger: logger,
	}

	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, "base.html", "form.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	return t, nil
}

var templateFuncs = template.FuncMap{
	// Post bodies and excerpts come out of goldmark in safe mode as whole
	// blocks, so they are trusted HTML.
	"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	"pageURL": pageURL,
	"tagURL":  func(name string) string { return pageURL("", name, 1) },
	"add":     func(a, b int) int { return a + b },
	"sub":     func(a, b int) int { return a - b },
}

// pageURL builds an index link that keeps the active filters.
func pageURL(search, tag string, page int) string {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if tag != "" {
		q.Set("tag", tag)
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(q) == 0 {
		return "/"
	}
	return "/?" + q.Encode()
}

// render executes a page with the pending flash message, if any.
func (t *Templates) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	var msg *flash.Message
	if m, ok := flash.Pop(w, r); ok {
		msg = &m
	}
	t.execute(w, r, status, page, title, data, msg)
}

// renderMessage executes a page with msg instead of the stored flash. Forms use it
// to redisplay themselves with an error without a redirect, so the typed values
// survive.
func (t *Templates) renderMessage(w http.ResponseWriter, r *http.Request, status int, page, title string, data any, kind flash.Kind, text string) {
	t.execute(w, r, status, page, title, data, &flash.Message{Kind: kind, Text: text})
}

// execute renders into a buffer first, so a template error can still become a
// clean 500 instead of half a page.
func (t *Templates) execute(w http.ResponseWriter, r *http.Request, status int, page, title string, data any, msg *flash.Message) {
	tmpl, ok := t.pages[page]
	if !ok {
		t.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	actor, loggedIn := auth.ActorFromContext(r.Context())
	pd := PageData{
		Title:    title,
		Actor:    actor,
		LoggedIn: loggedIn,
		Flash:    msg,
		Year:     time.Now().Year(),
		Data:     data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", pd); err != nil {
		t.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// serverError logs err and answers a page request with a bare 500.
func serverError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// parseID reads a positive numeric path parameter.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePage reads the 1-indexed page number; anything unparseable is page 1.
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func actorOf(r *http.Request) model.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}
