package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/flash"
	"github.com/sakif/markdown-blog/internal/service"
)

// AuthHandler manages registration, login and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegisterPage / HandleRegister → the sign-up form
//   - HandleLoginPage / HandleLogin       → check credentials, set the JWT cookie
//   - HandleLoginLimited                  → answer once the login rate limit trips
//   - HandleLogout                        → clear the JWT cookie
//
// The token cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: not sent on cross-site POSTs
//   - Secure in production, so it never travels over plain HTTP
//   - as long-lived as the token itself
type AuthHandler struct {
	auth         *service.AuthService
	tokenTTL     time.Duration
	secureCookie bool
	tmpl         *Templates
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	authService *service.AuthService,
	tokenTTL time.Duration,
	secureCookie bool,
	tmpl *Templates,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		tmpl:         tmpl,
		logger:       logger,
	}
}

type registerForm struct {
	Username string
	Email    string
}

type loginForm struct {
	Username string
}

// HandleRegisterPage renders the sign-up form.
//
// HTTP: GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.tmpl.render(w, r, http.StatusOK, "register", "Register", registerForm{})
}

// HandleRegister creates an account and sends the user to the login page.
//
// HTTP: POST /register  (form: username, email, password, confirm_password)
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flash.Redirect(w, r, "/register", flash.Error, "Could not read the form")
		return
	}
	in := service.RegisterInput{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}

	_, err := h.auth.Register(r.Context(), in)
	switch {
	case err == nil:
		flash.Redirect(w, r, auth.LoginPath, flash.Success, "Registration successful, please log in")
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
		status := http.StatusBadRequest
		if errors.Is(err, apperror.ErrConflict) {
			status = http.StatusConflict
		}
		h.tmpl.renderMessage(w, r, status, "register", "Register",
			registerForm{Username: in.Username, Email: in.Email}, flash.Error, err.Error())
	default:
		h.logger.Error("registration failed", slog.String("error", err.Error()))
		flash.Redirect(w, r, "/register", flash.Error,
			apperror.MessageOf(err, "Registration failed, please try again"))
	}
}

// HandleLoginPage renders the login form.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.tmpl.render(w, r, http.StatusOK, "login", "Log in", loginForm{})
}

// HandleLogin checks the credentials and issues the session cookie.
//
// HTTP: POST /login  (form: username, password)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flash.Redirect(w, r, auth.LoginPath, flash.Error, "Could not read the form")
		return
	}
	username := r.PostFormValue("username")

	result, err := h.auth.Login(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.tmpl.renderMessage(w, r, http.StatusUnauthorized, "login", "Log in",
				loginForm{Username: username}, flash.Error, "Invalid username or password")
			return
		}
		h.logger.Error("login failed", slog.String("error", err.Error()))
		flash.Redirect(w, r, auth.LoginPath, flash.Error, "Login failed, please try again")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	flash.Redirect(w, r, "/", flash.Success, "Logged in successfully")
}

// HandleLoginLimited is the rate limiter's answer for POST /login. The status
// and Retry-After header are already decided; this only picks the page.
func (h *AuthHandler) HandleLoginLimited(w http.ResponseWriter, r *http.Request) {
	h.tmpl.renderMessage(w, r, http.StatusTooManyRequests, "login", "Log in",
		loginForm{Username: r.PostFormValue("username")}, flash.Error,
		"Too many login attempts, please wait a minute and try again")
}

// HandleLogout clears the session cookie.
//
// HTTP: GET or POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	flash.Redirect(w, r, "/", flash.Info, "Logged out")
}
