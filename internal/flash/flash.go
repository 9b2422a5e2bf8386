// Package flash carries one-shot status messages across a redirect.
//
// The message rides in a cookie named "flash". The page that follows the redirect
// reads it and clears it in the same response, so every message is shown exactly
// once. The value is base64 so any text (commas, quotes, non-ASCII) survives the
// cookie grammar.
package flash

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// CookieName is the name of the flash cookie.
const CookieName = "flash"

// Kind selects how a message is styled.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Message is a flash message waiting to be shown.
type Message struct {
	Kind Kind
	Text string
}

// Set stores a message for the next rendered page.
func Set(w http.ResponseWriter, kind Kind, text string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encode(Message{Kind: kind, Text: text}),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop returns the pending message, if any, and deletes the cookie.
// A cookie that fails to decode is deleted and reported as no message.
func Pop(w http.ResponseWriter, r *http.Request) (Message, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Message{}, false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return decode(c.Value)
}

// Redirect sets a flash message and sends a 303 See Other to url.
func Redirect(w http.ResponseWriter, r *http.Request, url string, kind Kind, text string) {
	Set(w, kind, text)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func encode(m Message) string {
	return base64.RawURLEncoding.EncodeToString([]byte(string(m.Kind) + "|" + m.Text))
}

func decode(v string) (Message, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return Message{}, false
	}

	kind, text, ok := strings.Cut(string(raw), "|")
	if !ok || text == "" {
		return Message{}, false
	}

	switch Kind(kind) {
	case Success, Error, Info:
	default:
		kind = string(Info)
	}
	return Message{Kind: Kind(kind), Text: text}, true
}
