package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/repository"
	"github.com/sakif/markdown-blog/internal/validation"
)

// AdminService holds the user-management rules behind cmd/blogadmin. It works
// on any account; the CLI is trusted because it has direct database access.
type AdminService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	validate  *validation.Validator
	logger    *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	validate *validation.Validator,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		users:     users,
		passwords: passwords,
		validate:  validate,
		logger:    logger,
	}
}

// NewUserInput is a user created from the admin tool. Unlike registration there is
// no length rule on the username.
type NewUserInput struct {
	Username        string `form:"username" validate:"required"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
}

// ListUsers returns every account ordered by id.
func (s *AdminService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.ListUsers(ctx)
}

// GetUser returns one account.
func (s *AdminService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// ValidateIdentity checks username and email before the CLI asks for a password,
// including whether either is already taken.
func (s *AdminService) ValidateIdentity(ctx context.Context, username, email string) error {
	in := NewUserInput{Username: strings.TrimSpace(username), Email: strings.TrimSpace(email)}
	if err := s.validate.Validate(in); err != nil {
		return err
	}

	if _, err := s.users.GetUserByUsername(ctx, in.Username); err == nil {
		return apperror.Conflict("username", "username already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return apperror.Conflict("email", "email already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	return nil
}

// CreateUser validates and inserts an account.
func (s *AdminService) CreateUser(ctx context.Context, in NewUserInput) (*model.User, error) {
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
		return nil, apperror.Internal("Creating user", err)
	}

	user := &model.User{Username: in.Username, Email: in.Email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created by admin",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// DeleteUser removes an account. Its posts stay, without an author.
func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted by admin", slog.Int64("user_id", id))
	return nil
}

// ChangePassword replaces a password after checking the current one.
func (s *AdminService) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword, confirm string) error {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.passwords.Verify(user.PasswordHash, oldPassword); err != nil {
		return apperror.ValidationFailed("old_password", "Current password is incorrect")
	}
	if err := checkNewPassword(newPassword, confirm); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.Internal("Changing password", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, id, hash); err != nil {
		return err
	}

	s.logger.Info("password changed by admin", slog.Int64("user_id", id))
	return nil
}
