package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/model"
)

func validRegistration() RegisterInput {
	return RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "s3cret-pass",
		ConfirmPassword: "s3cret-pass",
	}
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister_Success(t *testing.T) {
	env := newTestEnv(t)

	in := validRegistration()
	in.Username = "  alice  "
	user, err := env.auth.Register(context.Background(), in)
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, in.Password, user.PasswordHash, "password must be stored hashed")
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		mutate    func(*RegisterInput)
		wantField string
	}{
		{name: "missing username", mutate: func(in *RegisterInput) { in.Username = "   " }, wantField: "username"},
		{name: "short username", mutate: func(in *RegisterInput) { in.Username = "al" }, wantField: "username"},
		{name: "long username", mutate: func(in *RegisterInput) { in.Username = strings.Repeat("a", 33) }, wantField: "username"},
		{name: "missing email", mutate: func(in *RegisterInput) { in.Email = "" }, wantField: "email"},
		{name: "bad email", mutate: func(in *RegisterInput) { in.Email = "alice-at-example" }, wantField: "email"},
		{name: "missing password", mutate: func(in *RegisterInput) { in.Password = "" }, wantField: "password"},
		{name: "password too long", mutate: func(in *RegisterInput) {
			in.Password = strings.Repeat("p", 73)
			in.ConfirmPassword = in.Password
		}, wantField: "password"},
		{name: "confirmation mismatch", mutate: func(in *RegisterInput) { in.ConfirmPassword = "other" }, wantField: "confirm_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)

			_, err := env.auth.Register(context.Background(), in)
			require.True(t, errors.Is(err, apperror.ErrValidation), "error = %v, want ErrValidation", err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}

	users, err := env.admin.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRegister_Conflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	sameName := validRegistration()
	sameName.Email = "other@example.com"
	_, err = env.auth.Register(ctx, sameName)
	require.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, "username already exists", err.Error())

	sameEmail := validRegistration()
	sameEmail.Username = "alice2"
	_, err = env.auth.Register(ctx, sameEmail)
	require.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, "email already registered", err.Error())
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	result, err := env.auth.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.User.Username)
	require.NotEmpty(t, result.Token)

	actor, err := env.auth.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, model.Actor{UserID: result.User.ID, Username: "alice"}, actor)
}

func TestLogin_FailuresLookTheSame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	cases := map[string][2]string{
		"wrong password": {"alice", "nope"},
		"unknown user":   {"mallory", "s3cret-pass"},
		"empty password": {"alice", ""},
		"empty username": {"", "s3cret-pass"},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.auth.Login(ctx, c[0], c[1])
			require.True(t, errors.Is(err, apperror.ErrUnauthorized), "error = %v", err)
			assert.Equal(t, "invalid username or password", err.Error())
		})
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.ValidateToken("garbage")
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	user, err := env.auth.Me(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = env.auth.Me(ctx, model.Actor{})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}
