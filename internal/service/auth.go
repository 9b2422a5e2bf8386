package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/repository"
	"github.com/sakif/markdown-blog/internal/validation"
)

// msgBadCredentials is the single answer to every failed login, so the form
// never reveals which usernames exist.
const msgBadCredentials = "invalid username or password"

// AuthService handles registration, login and session tokens.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	validate *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validate:  validate,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can set
// the cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the registration form. The form tags name the HTML inputs and
// the fields in validation messages.
type RegisterInput struct {
	Username        string `form:"username" validate:"required,min=3,max=32"`
	Email           string `form:"email" validate:"required,email,max=254"`
	Password        string `form:"password" validate:"required"`
	ConfirmPassword string `form:"confirm_password" validate:"required"`
}

// Register validates the form and creates the account.
//
// Duplicate usernames and emails surface as apperror.ErrConflict from the
// repository ("username already exists" / "email already registered").
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	if err := checkNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.Internal("Registering user", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to register user",
			slog.String("username", in.Username),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("Registering user", err)
	}

	s.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks the credentials and issues a session token.
//
// Unknown username and wrong password both return apperror.ErrUnauthorized with
// the same message, and both pay for one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyNothing(password)
			s.logger.Info("login failed", slog.String("username", username), slog.String("reason", "unknown user"))
			return nil, apperror.Unauthorized(msgBadCredentials)
		}
		return nil, fmt.Errorf("looking up user %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unusable",
				slog.Int64("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Info("login failed", slog.String("username", username), slog.String("reason", "bad password"))
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	token, err := s.tokens.Generate(model.Actor{UserID: user.ID, Username: user.Username})
	if err != nil {
		return nil, fmt.Errorf("generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// Me returns the full record of the logged-in user.
func (s *AuthService) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	if err := auth.RequireActor(actor); err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, actor.UserID)
}

// ValidateToken is a thin delegation to TokenService.Validate.
func (s *AuthService) ValidateToken(tokenStr string) (model.Actor, error) {
	actor, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return model.Actor{}, apperror.Unauthorized(err.Error())
	}
	return actor, nil
}

// checkNewPassword enforces the rules shared by registration and password change.
func checkNewPassword(password, confirm string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "Password is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	if password != confirm {
		return apperror.ValidationFailed("confirm_password", "Passwords do not match")
	}
	return nil
}
